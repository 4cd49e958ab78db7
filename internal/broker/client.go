package broker

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
)

// DefaultNotifyTimeout bounds a single outbound notify attempt.
const DefaultNotifyTimeout = 1 * time.Second

// Client is the fire-and-forget outbound notifier to the external broker.
//
// Notify is deliberately at-most-once, best-effort: every failure (timeout,
// refused connection, non-2xx response) is swallowed, so a caller's primary
// transaction never fails because the broker is down.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *Metrics
}

// NewClient creates a broker client posting to the given endpoint URL.
// The metrics may be nil.
func NewClient(endpoint string, logger zerolog.Logger, metrics *Metrics) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultNotifyTimeout,
		},
		logger:  logger.With().Str("component", "broker-client").Logger(),
		metrics: metrics,
	}
}

// Notify serializes the event and POSTs it to the broker endpoint.
// It never returns an error; failures are logged at debug and counted.
func (c *Client) Notify(ctx context.Context, evt events.Event) {
	body, err := evt.MarshalWire()
	if err != nil {
		c.fail(evt.Type, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.fail(evt.Type, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(evt.Type, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug().
			Str("event_type", evt.Type).
			Int("status", resp.StatusCode).
			Msg("broker rejected notification; dropped")
		if c.metrics != nil {
			c.metrics.NotifyFailures.Inc()
		}
		return
	}

	if c.metrics != nil {
		c.metrics.NotifySent.Inc()
	}
}

func (c *Client) fail(eventType string, err error) {
	if c.metrics != nil {
		c.metrics.NotifyFailures.Inc()
	}
	c.logger.Debug().
		Str("event_type", eventType).
		Err(err).
		Msg("broker notification dropped")
}
