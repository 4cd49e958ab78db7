package broker

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
)

// Ingress connection states.
type ConnState string

const (
	StateDisconnected ConnState = "DISCONNECTED"
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
)

// IngressConfig configures the inbound broker connection.
type IngressConfig struct {
	// URL of the broker's event stream endpoint.
	URL string

	// BackoffUnit is the initial reconnect delay. Doubles per consecutive
	// failure up to BackoffCeiling and resets on a successful connect.
	// Default: 1s.
	BackoffUnit time.Duration

	// BackoffCeiling caps the reconnect delay. Default: 60s.
	BackoffCeiling time.Duration

	// KeepAliveInterval is the expected cadence of broker keep-alive
	// comments. Default: 20s.
	KeepAliveInterval time.Duration

	// KeepAliveTimeout is the extra grace beyond the interval before the
	// connection is considered dead. Default: 10s.
	KeepAliveTimeout time.Duration
}

// SetDefaults fills in zero-valued fields.
func (c *IngressConfig) SetDefaults() {
	if c.BackoffUnit == 0 {
		c.BackoffUnit = 1 * time.Second
	}
	if c.BackoffCeiling == 0 {
		c.BackoffCeiling = 60 * time.Second
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = 20 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 10 * time.Second
	}
}

// IngressClient maintains the persistent inbound connection to the broker.
// Each received frame is appended to the event log and then dispatched;
// malformed frames are logged and dropped, never fatal.
//
// The receive loop runs on its own goroutine so the caller never blocks on
// network I/O. Stop aborts an in-progress backoff sleep and an in-flight
// connect attempt immediately.
type IngressClient struct {
	config     IngressConfig
	dispatcher events.Dispatcher
	eventLog   events.Log
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *Metrics

	// sleep waits for d or until ctx is done; returns false when aborted.
	// Injected in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) bool

	mu      sync.Mutex
	state   ConnState
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewIngressClient creates an ingress client. The metrics may be nil.
func NewIngressClient(config IngressConfig, dispatcher events.Dispatcher, eventLog events.Log, logger zerolog.Logger, metrics *Metrics) *IngressClient {
	config.SetDefaults()
	return &IngressClient{
		config:     config,
		dispatcher: dispatcher,
		eventLog:   eventLog,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: config.KeepAliveInterval,
				}).DialContext,
			},
		},
		logger:  logger.With().Str("component", "ingress").Logger(),
		metrics: metrics,
		sleep:   ctxSleep,
		state:   StateDisconnected,
	}
}

// Start launches the receive loop. Idempotent.
func (c *IngressClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	go c.run(loopCtx)
	return nil
}

// Stop signals the receive loop to terminate and waits for it to exit.
// The stop signal aborts a backoff sleep or an in-flight connect attempt
// immediately; no further retries happen. Idempotent.
func (c *IngressClient) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// State returns the current connection state.
func (c *IngressClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *IngressClient) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// run is the reconnect loop: connect, stream until failure, back off, retry.
func (c *IngressClient) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateDisconnected)

	backoff := c.config.BackoffUnit

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.setState(StateConnecting)
		connected, err := c.connectAndReceive(ctx)
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn().Err(err).Dur("backoff", backoff).Msg("broker connection lost; reconnecting")
		}

		if connected {
			// The previous attempt reached the broker, so the next
			// failure starts over at one unit.
			backoff = c.config.BackoffUnit
		}

		if c.metrics != nil {
			c.metrics.Reconnects.Inc()
		}
		if !c.sleep(ctx, backoff) {
			return
		}

		if !connected {
			backoff *= 2
			if backoff > c.config.BackoffCeiling {
				backoff = c.config.BackoffCeiling
			}
		}
	}
}

// connectAndReceive opens the stream and forwards frames until the
// connection drops. The returned bool reports whether the connect itself
// succeeded (HTTP 200), which resets the backoff.
func (c *IngressClient) connectAndReceive(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("broker stream returned status %d", resp.StatusCode)
	}

	c.setState(StateConnected)
	c.logger.Info().Str("url", c.config.URL).Msg("connected to broker stream")

	return true, c.receive(ctx, resp)
}

// receive reads SSE lines until the stream ends or the keep-alive watchdog
// fires. Any line activity, including keep-alive comments, feeds the
// watchdog.
func (c *IngressClient) receive(ctx context.Context, resp *http.Response) error {
	deadline := c.config.KeepAliveInterval + c.config.KeepAliveTimeout

	// The watchdog closes the body to unblock the scanner when the broker
	// goes silent past the keep-alive deadline.
	watchdog := time.AfterFunc(deadline, func() {
		resp.Body.Close()
	})
	defer watchdog.Stop()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		watchdog.Reset(deadline)

		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			c.handleFrame([]byte(strings.TrimPrefix(line, "data: ")))
		case strings.HasPrefix(line, ":"):
			// Keep-alive comment.
		case line == "":
			// Event separator.
		default:
			// Other SSE fields (id:, event:, retry:) are ignored.
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("broker stream read failed: %w", err)
	}
	return fmt.Errorf("broker closed the stream")
}

// handleFrame parses one frame and forwards it in arrival order: append to
// the event log first, then dispatch. Malformed frames are dropped.
func (c *IngressClient) handleFrame(frame []byte) {
	evt, err := events.ParseWire(frame)
	if err != nil {
		if c.metrics != nil {
			c.metrics.FramesDropped.Inc()
		}
		c.logger.Warn().Err(err).Str("frame", string(frame)).Msg("dropped malformed broker frame")
		return
	}

	c.eventLog.Append(evt)
	if err := c.dispatcher.Dispatch(evt); err != nil {
		c.logger.Warn().Err(err).Str("event_type", evt.Type).Msg("failed to dispatch broker event")
		return
	}
	if c.metrics != nil {
		c.metrics.FramesReceived.Inc()
	}
}

// ctxSleep waits for d, returning false if ctx ends first.
func ctxSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
