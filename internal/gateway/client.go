package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/goodtune/presenced/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Config holds gateway client configuration.
type Config struct {
	URL              string
	Token            string
	ProfileURL       string
	Identities       []string // identity IDs to monitor; empty means all
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

// PresenceHandler receives filtered presence events in delivery order.
type PresenceHandler func(ctx context.Context, ev PresenceEvent)

// Client maintains a websocket connection to the presence gateway,
// dispatching presence events for monitored identities to a handler.
// Events are processed sequentially in the order delivered; the client
// reconnects with exponential backoff after any disconnect.
type Client struct {
	config    Config
	handler   PresenceHandler
	monitored map[string]bool
	logger    zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a gateway client. handler is invoked from the read
// loop goroutine, one event at a time.
func NewClient(config Config, handler PresenceHandler, logger zerolog.Logger) *Client {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.ReconnectMin == 0 {
		config.ReconnectMin = time.Second
	}
	if config.ReconnectMax == 0 {
		config.ReconnectMax = time.Minute
	}

	monitored := make(map[string]bool, len(config.Identities))
	for _, id := range config.Identities {
		monitored[id] = true
	}

	return &Client{
		config:    config,
		handler:   handler,
		monitored: monitored,
		logger:    logger.With().Str("component", "gateway").Logger(),
	}
}

// Start begins the connect/read loop.
func (c *Client) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(ctx)

	c.logger.Info().Str("url", c.config.URL).Msg("Gateway client started")
	return nil
}

// Stop disconnects and waits for the read loop to exit.
func (c *Client) Stop() error {
	c.cancel()
	c.wg.Wait()
	c.logger.Info().Msg("Gateway client stopped")
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	backoff := c.config.ReconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Dur("retry_in", backoff).
				Msg("Gateway connection failed")
		} else {
			backoff = c.config.ReconnectMin
			c.readLoop(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn().
				Dur("retry_in", backoff).
				Msg("Gateway connection lost")
		}

		metrics.GatewayReconnects.Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > c.config.ReconnectMax {
			backoff = c.config.ReconnectMax
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return nil, err
	}

	// Authenticate before the gateway sends any dispatch frames.
	identify := frame{Op: opIdentify}
	identify.Data, _ = json.Marshal(identifyPayload{Token: c.config.Token})
	if err := conn.WriteJSON(identify); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.logger.Info().Str("url", c.config.URL).Msg("Gateway connected")
	return conn, nil
}

// readLoop processes frames until the connection drops or ctx is done.
// Closing the connection from Stop unblocks the pending read.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("Gateway read failed")
			}
			return
		}

		switch f.Op {
		case opPing:
			if err := conn.WriteJSON(frame{Op: opPong}); err != nil {
				return
			}
		case opDispatch:
			if f.Event != eventPresenceUpdate {
				continue
			}
			var ev PresenceEvent
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				c.logger.Warn().Err(err).Msg("Malformed presence event")
				continue
			}
			if len(c.monitored) > 0 && !c.monitored[ev.IdentityID] {
				continue
			}
			c.handler(ctx, ev)
		}
	}
}
