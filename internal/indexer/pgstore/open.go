package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/resilience"
)

// Open connects to PostgreSQL with retries, migrates the schema and returns
// a Store whose breaker state is exported through m. m may be nil. The
// caller closes the returned client.
func Open(ctx context.Context, cfg config.PostgresConfig, m *metrics.Metrics) (*Store, *postgres.Client, error) {
	var db *postgres.Client
	err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Retryable:    retryableConnectError,
	}, func() error {
		var err error
		db, err = postgres.New(cfg)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	bcfg := BreakerConfig()
	bcfg.OnStateChange = func(name string, _, to resilience.State) {
		if m != nil {
			m.SetBreakerState(name, int(to))
		}
	}
	breaker := resilience.NewCircuitBreaker("postgres-store", bcfg)
	store := New(db, breaker)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrating term-vector schema: %w", err)
	}
	return store, db, nil
}

// retryableConnectError is false for failures a retry cannot fix: bad
// credentials and a missing database.
func retryableConnectError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return true
	}
	switch pqErr.Code {
	case "28000", "28P01", "3D000":
		return false
	default:
		return true
	}
}
