package pgstore

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/highlight/tokensource"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/resilience"
)

var _ index.Store = (*Store)(nil)

func TestLikePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"cat*", "cat%"},
		{"?og", "_og"},
		{"50%_off*", `50\%\_off%`},
		{`back\slash`, `back\\slash`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.pattern))
		})
	}
}

func TestOffsetArraysRoundTrip(t *testing.T) {
	offsets := []tokensource.Offset{{Start: 0, End: 3}, {Start: 10, End: 13}}
	starts, ends := splitOffsets(offsets)
	assert.Equal(t, pq.Int64Array{0, 10}, starts)
	assert.Equal(t, pq.Int64Array{3, 13}, ends)
	assert.Equal(t, offsets, joinOffsets(starts, ends))
}

func TestMissingOffsetsStayNil(t *testing.T) {
	starts, ends := splitOffsets(nil)
	assert.Nil(t, starts)
	assert.Nil(t, ends)
	assert.Nil(t, joinOffsets(starts, ends))
}

func TestPositionsConversion(t *testing.T) {
	assert.Equal(t, []int{0, 100001}, toInts(toInt64Array([]int{0, 100001})))
}

func TestBreakerIgnoresMissingDocumentsAndTimeouts(t *testing.T) {
	cfg := BreakerConfig()
	cfg.FailureThreshold = 1
	cb := resilience.NewCircuitBreaker("pg", cfg)

	_ = cb.Execute(func() error {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document d1")
	})
	_ = cb.Execute(func() error { return context.DeadlineExceeded })
	assert.Equal(t, resilience.StateClosed, cb.GetState())

	_ = cb.Execute(func() error { return errors.New("connection refused") })
	assert.Equal(t, resilience.StateOpen, cb.GetState())
}

func TestRetryableConnectError(t *testing.T) {
	assert.True(t, retryableConnectError(errors.New("dial tcp: connection refused")))
	assert.True(t, retryableConnectError(&pq.Error{Code: "57P03"}))
	assert.False(t, retryableConnectError(&pq.Error{Code: "28P01"}))
	assert.False(t, retryableConnectError(wrap(&pq.Error{Code: "3D000"})))
}

func wrap(err error) error { return errors.Join(errors.New("pinging postgres"), err) }
