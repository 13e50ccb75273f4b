package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/homeatlas/atlas-core/internal/infrastructure/logging"
	"github.com/homeatlas/atlas-core/internal/layout"
)

// Connection timing constants.
const (
	dialTimeout      = 10 * time.Second
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second

	// maxReconnectInterval caps the backoff between reconnect attempts.
	maxReconnectInterval = 2 * time.Minute
)

// StateSink receives translated device states. The sync coordinator
// implements it.
type StateSink interface {
	HandleBridgeState(entityID string, state layout.DeviceState)
}

// Config carries the Home Assistant endpoint and credential.
type Config struct {
	// Host is the Home Assistant host:port (no scheme).
	Host string

	// Token is a long-lived access token.
	Token string

	// TLS switches the websocket scheme to wss.
	TLS bool
}

// Bridge is the Home Assistant websocket client.
type Bridge struct {
	cfg    Config
	sink   StateSink
	logger *logging.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	connected atomic.Bool
	nextID    atomic.Int64
}

// New creates a bridge. Run must be called before the bridge can carry
// commands or states.
func New(cfg Config, sink StateSink, logger *logging.Logger) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("component", "hass"),
	}
	b.nextID.Store(commandIDBase)
	return b
}

// IsConnected reports whether a handshaken connection is live.
func (b *Bridge) IsConnected() bool {
	return b.connected.Load()
}

// Run connects and serves the event stream until the context is
// cancelled, reconnecting with exponential backoff. An invalid token
// stops the loop; every other failure is retried.
func (b *Bridge) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxReconnectInterval
	bo.MaxElapsedTime = 0

	for {
		err := b.connectAndServe(ctx)
		b.setConn(nil)

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrAuthFailed):
			return err
		}
		wait := bo.NextBackOff()
		b.logger.Warn("connection lost, reconnecting", "error", err, "wait", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// PushCommand translates a device command into a call_service request
// and sends it. Errors are per-command; the connection stays up.
func (b *Bridge) PushCommand(_ context.Context, entityID, command string, data map[string]any) error {
	domain := entityDomain(entityID)
	service, serviceData, err := serviceForCommand(domain, command, data)
	if err != nil {
		return err
	}

	msg := callServiceMessage{
		ID:          b.nextID.Add(1),
		Type:        typeCallService,
		Domain:      domain,
		Service:     service,
		ServiceData: serviceData,
		Target:      serviceTarget{EntityID: entityID},
	}
	if err := b.writeJSON(msg); err != nil {
		return fmt.Errorf("sending %s.%s: %w", domain, service, err)
	}
	return nil
}

func (b *Bridge) endpoint() string {
	scheme := "ws"
	if b.cfg.TLS {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: b.cfg.Host, Path: "/api/websocket"}
	return u.String()
}

func (b *Bridge) connectAndServe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, b.endpoint(), nil)
	if err != nil {
		return fmt.Errorf("dialling %s: %w", b.endpoint(), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if err := b.handshake(conn); err != nil {
		return err
	}
	b.setConn(conn)
	b.logger.Info("connected", "host", b.cfg.Host)

	// The subscription is not resumable, so each (re)connect starts
	// the stream and re-fetches every state.
	if err := writeWithDeadline(conn, subscribeMessage{ID: subscribeID, Type: typeSubscribe, EventType: "state_changed"}); err != nil {
		return fmt.Errorf("subscribing to state_changed: %w", err)
	}
	if err := writeWithDeadline(conn, requestMessage{ID: getStatesID, Type: typeGetStates}); err != nil {
		return fmt.Errorf("requesting states: %w", err)
	}

	// Tear the read loop down when the context goes.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}
		b.handleMessage(&msg)
	}
}

// handshake performs the auth exchange: auth_required, auth, then
// auth_ok or auth_invalid.
func (b *Bridge) handshake(conn *websocket.Conn) error {
	deadline := time.Now().Add(handshakeTimeout)
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	var hello serverMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading auth_required: %w", err)
	}
	if hello.Type != typeAuthRequired {
		return fmt.Errorf("unexpected greeting %q", hello.Type)
	}

	if err := writeWithDeadline(conn, authMessage{Type: typeAuth, AccessToken: b.cfg.Token}); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	var result serverMessage
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("reading auth result: %w", err)
	}
	switch result.Type {
	case typeAuthOK:
		return nil
	case typeAuthInvalid:
		return fmt.Errorf("%s: %w", result.Message, ErrAuthFailed)
	default:
		return fmt.Errorf("unexpected auth response %q", result.Type)
	}
}

func (b *Bridge) handleMessage(msg *serverMessage) {
	switch {
	case msg.Type == typeEvent && msg.ID == subscribeID:
		if msg.Event == nil || msg.Event.EventType != "state_changed" {
			return
		}
		b.deliverState(msg.Event.Data.NewState, msg.Event.Data.EntityID)

	case msg.Type == typeResult && msg.ID == getStatesID:
		if msg.Success != nil && !*msg.Success {
			b.logger.Warn("get_states request failed")
			return
		}
		var states []entityState
		if err := json.Unmarshal(msg.Result, &states); err != nil {
			b.logger.Error("decoding get_states result", "error", err)
			return
		}
		for i := range states {
			b.deliverState(&states[i], states[i].EntityID)
		}
		b.logger.Info("full state sync", "entities", len(states))

	case msg.Type == typeResult && msg.Success != nil && !*msg.Success:
		b.logger.Warn("service call failed", "id", msg.ID, "message", msg.Message)
	}
}

func (b *Bridge) deliverState(s *entityState, entityID string) {
	state, ok := translateState(s)
	if !ok {
		return
	}
	if s.EntityID != "" {
		entityID = s.EntityID
	}
	b.sink.HandleBridgeState(entityID, state)
}

func (b *Bridge) setConn(conn *websocket.Conn) {
	b.writeMu.Lock()
	b.conn = conn
	b.writeMu.Unlock()
	b.connected.Store(conn != nil)
}

func (b *Bridge) writeJSON(v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		return ErrNotConnected
	}
	return writeWithDeadline(b.conn, v)
}

func writeWithDeadline(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}
