package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Search-Highlighter/pkg/metrics"
)

// Collector publishes hitword events in the background. Track never blocks
// the highlight path; events that do not fit the buffer are dropped.
type Collector struct {
	producer kafka.Publisher
	eventCh  chan HitwordsEvent
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(producer kafka.Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan HitwordsEvent, bufferSize),
		metrics:  m,
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event HitwordsEvent) {
	if event.Type == "" {
		event.Type = EventHitwords
	}
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)", "doc_id", event.DocumentID)
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event HitwordsEvent) {
	if err := c.producer.Publish(ctx, kafka.Event{Key: event.DocumentID, Value: event}); err != nil {
		c.logger.Error("failed to publish analytics event", "doc_id", event.DocumentID, "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
