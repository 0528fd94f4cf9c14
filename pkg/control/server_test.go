package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satriadi/bellhop/pkg/call"
	mockdrv "github.com/satriadi/bellhop/pkg/driver/mock"
	"github.com/satriadi/bellhop/pkg/watcher"
)

type stubDialer struct {
	mu      sync.Mutex
	targets []string
}

func (d *stubDialer) Run(ctx context.Context, target string) (*call.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, target)
	return call.NewSession(call.Outgoing, target, ""), nil
}

func (d *stubDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.targets...)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *stubDialer, *call.Registry) {
	t.Helper()
	registry := call.NewRegistry()
	w := watcher.New(watcher.Config{}, mockdrv.New(), nil, registry, nil)
	dialer := &stubDialer{}
	s := NewServer(Config{}, w, dialer, registry, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv, dialer, registry
}

func TestHealthReportsActiveCall(t *testing.T) {
	_, srv, _, registry := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["status"] != "ok" || body["active_call"] != "" {
		t.Fatalf("health = %v", body)
	}

	sess := call.NewSession(call.Outgoing, "+15550100", "")
	if err := registry.Acquire(sess); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["active_call"] != sess.ID {
		t.Fatalf("active_call = %v, want %s", body["active_call"], sess.ID)
	}
}

func TestWatcherToggleEndpoints(t *testing.T) {
	_, srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/watcher/enable", "", nil)
	if err != nil {
		t.Fatalf("POST enable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("enable status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/watcher/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var status watcher.Status
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if !status.Enabled {
		t.Fatal("watcher not enabled after POST /watcher/enable")
	}

	if resp, err = http.Get(srv.URL + "/watcher/enable"); err != nil {
		t.Fatalf("GET enable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET enable status = %d, want 405", resp.StatusCode)
	}
}

func TestDialStartsCall(t *testing.T) {
	_, srv, dialer, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"target":"+15550100"}`)
	resp, err := http.Post(srv.URL+"/dial", "application/json", body)
	if err != nil {
		t.Fatalf("POST /dial: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("dial status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for len(dialer.dialed()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dialer never invoked")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := dialer.dialed(); got[0] != "+15550100" {
		t.Fatalf("dialed = %v", got)
	}
}

func TestDialRejectedWhileCallActive(t *testing.T) {
	_, srv, dialer, registry := newTestServer(t)
	if err := registry.Acquire(call.NewSession(call.Outgoing, "+15550999", "")); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	body := bytes.NewBufferString(`{"target":"+15550100"}`)
	resp, err := http.Post(srv.URL+"/dial", "application/json", body)
	if err != nil {
		t.Fatalf("POST /dial: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("dial status = %d, want 409", resp.StatusCode)
	}
	if len(dialer.dialed()) != 0 {
		t.Fatal("dial ran despite active call")
	}
}

func TestDialRequiresTarget(t *testing.T) {
	_, srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/dial", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST /dial: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("dial status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscriptStreamDeliversEntries(t *testing.T) {
	s, srv, _, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/transcript/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	// Subscription registration races the publish without a wait.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		n := len(s.subs)
		s.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Publish("call-1", call.Entry{Speaker: call.SpeakerCaller, Text: "hello", Time: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev StreamEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.CallID != "call-1" || ev.Text != "hello" || ev.Speaker != call.SpeakerCaller {
		t.Fatalf("event = %+v", ev)
	}
}
