package hass

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homeatlas/atlas-core/internal/infrastructure/logging"
	"github.com/homeatlas/atlas-core/internal/layout"
)

// recordingSink collects delivered states.
type recordingSink struct {
	mu     sync.Mutex
	states map[string]layout.DeviceState
}

func newRecordingSink() *recordingSink {
	return &recordingSink{states: make(map[string]layout.DeviceState)}
}

func (s *recordingSink) HandleBridgeState(entityID string, state layout.DeviceState) {
	s.mu.Lock()
	s.states[entityID] = state
	s.mu.Unlock()
}

func (s *recordingSink) get(entityID string) (layout.DeviceState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[entityID]
	return st, ok
}

// fakeHA is a minimal Home Assistant websocket endpoint: it runs the
// auth handshake, answers get_states, emits one state_changed event,
// and records call_service requests.
type fakeHA struct {
	t         *testing.T
	token     string
	mu        sync.Mutex
	services  []callServiceMessage
	connected chan *websocket.Conn
}

func newFakeHA(t *testing.T, token string) (*fakeHA, *httptest.Server) {
	t.Helper()
	f := &fakeHA{t: t, token: token, connected: make(chan *websocket.Conn, 1)}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeHA) handle(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn.WriteJSON(map[string]any{"type": typeAuthRequired, "ha_version": "2024.1"})

	var auth authMessage
	if err := conn.ReadJSON(&auth); err != nil {
		conn.Close()
		return
	}
	if auth.AccessToken != f.token {
		conn.WriteJSON(map[string]any{"type": typeAuthInvalid, "message": "Invalid access token"})
		conn.Close()
		return
	}
	conn.WriteJSON(map[string]any{"type": typeAuthOK})

	select {
	case f.connected <- conn:
	default:
	}

	for {
		var raw map[string]any
		if err := conn.ReadJSON(&raw); err != nil {
			conn.Close()
			return
		}
		switch raw["type"] {
		case typeSubscribe:
			conn.WriteJSON(map[string]any{"id": raw["id"], "type": typeResult, "success": true})
		case typeGetStates:
			conn.WriteJSON(map[string]any{
				"id": raw["id"], "type": typeResult, "success": true,
				"result": []map[string]any{
					{"entity_id": "light.hall", "state": "on", "attributes": map[string]any{"brightness": 255.0}},
					{"entity_id": "sensor.temp", "state": "20.5", "attributes": map[string]any{"unit_of_measurement": "C"}},
				},
			})
		case typeCallService:
			data, _ := json.Marshal(raw)
			var msg callServiceMessage
			json.Unmarshal(data, &msg)
			f.mu.Lock()
			f.services = append(f.services, msg)
			f.mu.Unlock()
			conn.WriteJSON(map[string]any{"id": raw["id"], "type": typeResult, "success": true})
		}
	}
}

func (f *fakeHA) lastService() (callServiceMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.services) == 0 {
		return callServiceMessage{}, false
	}
	return f.services[len(f.services)-1], true
}

func wsHost(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgeFullStateSync(t *testing.T) {
	fake, srv := newFakeHA(t, "good-token")
	sink := newRecordingSink()
	b := New(Config{Host: wsHost(srv), Token: "good-token"}, sink, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	waitFor(t, func() bool { _, ok := sink.get("sensor.temp"); return ok }, "initial state sync")

	light, _ := sink.get("light.hall")
	if light["on"] != true || light["brightness"] != 1.0 {
		t.Fatalf("light state = %v", light)
	}
	temp, _ := sink.get("sensor.temp")
	if temp["value"] != 20.5 || temp["unit"] != "C" {
		t.Fatalf("sensor state = %v", temp)
	}

	// A state_changed event updates the sink.
	conn := <-fake.connected
	conn.WriteJSON(map[string]any{
		"id": subscribeID, "type": typeEvent,
		"event": map[string]any{
			"event_type": "state_changed",
			"data": map[string]any{
				"entity_id": "light.hall",
				"new_state": map[string]any{"entity_id": "light.hall", "state": "off", "attributes": map[string]any{}},
			},
		},
	})
	waitFor(t, func() bool {
		s, ok := sink.get("light.hall")
		return ok && s["on"] == false
	}, "state_changed delivery")
}

func TestBridgePushCommand(t *testing.T) {
	fake, srv := newFakeHA(t, "good-token")
	sink := newRecordingSink()
	b := New(Config{Host: wsHost(srv), Token: "good-token"}, sink, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	waitFor(t, b.IsConnected, "connection")

	if err := b.PushCommand(ctx, "light.hall", "set_brightness", map[string]any{"brightness": 0.5}); err != nil {
		t.Fatalf("PushCommand: %v", err)
	}

	waitFor(t, func() bool { _, ok := fake.lastService(); return ok }, "service call")
	svc, _ := fake.lastService()
	if svc.Domain != "light" || svc.Service != "turn_on" {
		t.Fatalf("service = %s.%s", svc.Domain, svc.Service)
	}
	if svc.Target.EntityID != "light.hall" {
		t.Fatalf("target = %q", svc.Target.EntityID)
	}
	if got := svc.ServiceData["brightness"]; got != 127.0 {
		t.Fatalf("brightness = %v", got)
	}
	if svc.ID < commandIDBase {
		t.Fatalf("command id = %d, want >= %d", svc.ID, commandIDBase)
	}
}

func TestBridgeRejectsBadToken(t *testing.T) {
	_, srv := newFakeHA(t, "good-token")
	b := New(Config{Host: wsHost(srv), Token: "bad-token"}, newRecordingSink(), logging.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := b.Run(ctx)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Run err = %v, want ErrAuthFailed", err)
	}
}

func TestPushCommandWhenDisconnected(t *testing.T) {
	b := New(Config{Host: "localhost:1"}, newRecordingSink(), logging.Default())
	err := b.PushCommand(context.Background(), "light.hall", "turn_on", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}
