package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// liveRequestToken is the literal command sent after connecting; the
// server answers with the current last-known locations. Some servers echo
// the token back, which is not an error.
const liveRequestToken = "LAST"

// LocationHandler is invoked for every live location event. Invocations
// are strictly sequential: the channel does not read the next message
// until the handler returns.
type LocationHandler func(ctx context.Context) error

// LiveService maintains the websocket connection to the recorder's live
// endpoint. It requests an initial last-locations push, classifies
// inbound messages and reconnects after a fixed delay whenever the
// connection drops. There is no backoff growth and no retry cap: a
// dashboard that gives up is worse than one that keeps knocking.
type LiveService struct {
	url            string
	reconnectDelay time.Duration
	handler        LocationHandler
	logger         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Exactly one live connection exists at a time.
	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewLiveService creates a LiveService for the given websocket URL.
func NewLiveService(url string, reconnectDelay time.Duration, handler LocationHandler, logger zerolog.Logger) *LiveService {
	return &LiveService{
		url:            url,
		reconnectDelay: reconnectDelay,
		handler:        handler,
		logger:         logger,
	}
}

// Start launches the connect/read/reconnect loop in a separate goroutine.
func (l *LiveService) Start() error {
	if l.ctx != nil {
		l.logger.Warn().Msg("LiveService is already running")
		return errors.New("live service is already running")
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runConnectLoop()
	}()

	l.logger.Info().Str("url", l.url).Msg("LiveService started successfully")
	return nil
}

// Stop gracefully stops the live service, closing the current connection
// and waiting for the loop to exit.
func (l *LiveService) Stop() error {
	if l.ctx == nil {
		l.logger.Warn().Msg("LiveService is not running")
		return errors.New("live service is not running")
	}

	l.cancel()
	l.closeConn()
	l.wg.Wait()

	l.ctx = nil
	l.cancel = nil

	l.logger.Info().Msg("LiveService stopped successfully")
	return nil
}

// runConnectLoop dials, reads until the connection drops, then waits the
// fixed reconnect delay and dials again, until the service is stopped.
func (l *LiveService) runConnectLoop() {
	for {
		if l.ctx.Err() != nil {
			return
		}

		l.logger.Debug().Str("url", l.url).Msg("Connecting to live endpoint")
		conn, resp, err := websocket.DefaultDialer.DialContext(l.ctx, l.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			l.logger.Warn().Err(err).
				Dur("retry_in", l.reconnectDelay).
				Msg("Failed to connect to live endpoint")
			if !l.waitReconnect() {
				return
			}
			continue
		}

		l.setConn(conn)
		l.logger.Info().Msg("Live channel connected")

		// Ask the server to push the current last-known locations.
		if err := conn.WriteMessage(websocket.TextMessage, []byte(liveRequestToken)); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to request initial locations")
		} else {
			l.readMessages(conn)
		}

		l.setConn(nil)
		conn.Close()

		if l.ctx.Err() != nil {
			return
		}
		l.logger.Warn().
			Dur("retry_in", l.reconnectDelay).
			Msg("Live channel disconnected unexpectedly, reconnecting")
		if !l.waitReconnect() {
			return
		}
	}
}

// readMessages consumes inbound messages until the connection fails.
func (l *LiveService) readMessages(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		l.handleMessage(payload)
	}
}

// handleMessage classifies one inbound payload. Empty payloads are
// keep-alives; malformed payloads are logged and tolerated, they never
// close the connection.
func (l *LiveService) handleMessage(payload []byte) {
	if len(payload) == 0 {
		l.logger.Debug().Msg("Ping")
		return
	}

	var msg struct {
		Type string `json:"_type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		if string(payload) != liveRequestToken {
			l.logger.Error().Err(err).Msg("Malformed live message")
		}
		return
	}

	if msg.Type != "location" {
		return
	}

	l.logger.Debug().Msg("Location update received")
	if l.handler == nil {
		return
	}
	if err := l.handler(l.ctx); err != nil {
		l.logger.Error().Err(err).Msg("Location handler failed")
	}
}

// waitReconnect sleeps for the reconnect delay. It returns false when the
// service was stopped while waiting.
func (l *LiveService) waitReconnect() bool {
	select {
	case <-l.ctx.Done():
		return false
	case <-time.After(l.reconnectDelay):
		return true
	}
}

func (l *LiveService) setConn(conn *websocket.Conn) {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	l.conn = conn
}

// closeConn closes the current connection to unblock a pending read.
func (l *LiveService) closeConn() {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}
