package httpclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/comandago/comanda/pkg/events"
)

// StreamClient consumes the service's server-sent event stream.
type StreamClient struct {
	client *Client
	events chan events.Event
	errors chan error
	done   chan struct{}
	cancel context.CancelFunc
}

// StreamConfig configures the streaming client.
type StreamConfig struct {
	// BufferSize for the event channel. Default: 100.
	BufferSize int

	// ReconnectDelay between reconnect attempts. Default: 2s.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts before giving up (0 = infinite).
	MaxReconnectAttempts int
}

// SetDefaults fills in zero-valued fields.
func (sc *StreamConfig) SetDefaults() {
	if sc.BufferSize == 0 {
		sc.BufferSize = 100
	}
	if sc.ReconnectDelay == 0 {
		sc.ReconnectDelay = 2 * time.Second
	}
}

// Stream opens the realtime event stream. Events arrive on Events() until
// the context is cancelled or Close is called.
func (c *Client) Stream(ctx context.Context, config StreamConfig) (*StreamClient, error) {
	if c.token == "" {
		return nil, fmt.Errorf("client not authenticated - call Authenticate() first")
	}
	config.SetDefaults()

	streamCtx, cancel := context.WithCancel(ctx)
	sc := &StreamClient{
		client: c,
		events: make(chan events.Event, config.BufferSize),
		errors: make(chan error, 10),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go sc.run(streamCtx, config)
	return sc, nil
}

// Events returns the channel delivering received events.
func (sc *StreamClient) Events() <-chan events.Event { return sc.events }

// Errors returns the channel delivering stream errors.
func (sc *StreamClient) Errors() <-chan error { return sc.errors }

// Done is closed when streaming ends.
func (sc *StreamClient) Done() <-chan struct{} { return sc.done }

// Close stops the stream and waits for the reader goroutine to exit.
func (sc *StreamClient) Close() error {
	sc.cancel()
	<-sc.done
	return nil
}

// run is the connect/reconnect loop.
func (sc *StreamClient) run(ctx context.Context, config StreamConfig) {
	defer close(sc.done)
	defer close(sc.events)
	defer close(sc.errors)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := sc.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			sc.reportError(err)
		}

		attempts++
		if config.MaxReconnectAttempts > 0 && attempts >= config.MaxReconnectAttempts {
			sc.reportError(fmt.Errorf("giving up after %d reconnect attempts", attempts))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(config.ReconnectDelay):
		}
	}
}

// connectAndRead opens one SSE connection and reads it until it breaks.
func (sc *StreamClient) connectAndRead(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(sc.client.baseURL.String(), "/")+"/api/v1/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+sc.client.token)

	// The stream stays open indefinitely, so bypass the client timeout.
	httpClient := &http.Client{Transport: sc.client.httpClient.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stream returned %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			// Comments and keepalives.
			continue
		}
		evt, err := events.ParseWire([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			sc.reportError(fmt.Errorf("malformed stream frame: %w", err))
			continue
		}

		select {
		case sc.events <- evt:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (sc *StreamClient) reportError(err error) {
	select {
	case sc.errors <- err:
	default:
	}
}
