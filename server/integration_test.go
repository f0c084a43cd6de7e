package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parceltrack/pkg/config"
	"parceltrack/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.ErrorLevel, "text")
	os.Exit(m.Run())
}

type testEnv struct {
	srv *Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Auth.JWTSecret = "integration-test-secret"

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.hub.Stop()
		srv.store.Close()
	})
	return &testEnv{srv: srv, ts: ts}
}

func (e *testEnv) postJSON(t *testing.T, path, token string, body any) (int, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response from %s: %v", path, err)
	}
	return resp.StatusCode, out
}

// register creates a user through the API and returns an access token
// for it
func (e *testEnv) register(t *testing.T, email, role string) string {
	t.Helper()
	status, _ := e.postJSON(t, "/api/users", "", map[string]any{
		"email":    email,
		"name":     strings.Split(email, "@")[0],
		"password": "hunter22",
		"role":     role,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, status)
	}
	status, body := e.postJSON(t, "/api/login", "", map[string]any{
		"email":    email,
		"password": "hunter22",
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d", email, status)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("login %s: no access_token in response", email)
	}
	return token
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws/connect?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}
	return msg
}

// waitForType discards messages until one of the wanted type arrives
func waitForType(t *testing.T, ws *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readMessage(t, ws)
		if msg["type"] == want {
			return msg
		}
	}
	t.Fatalf("no %q message received", want)
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	token := env.register(t, "alice@example.com", "sender")
	if token == "" {
		t.Fatal("expected a token")
	}

	status, _ := env.postJSON(t, "/api/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", status)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws/connect?token=not-a-token"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed before auth check: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	if !websocket.IsCloseError(err, closeAuthFailure) {
		t.Errorf("expected close code %d, got %v", closeAuthFailure, err)
	}
}

func TestWebSocketWelcome(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "bob@example.com", "courier")

	ws := env.dial(t, token)
	msg := readMessage(t, ws)
	if msg["type"] != "connection_established" {
		t.Fatalf("expected connection_established, got %v", msg["type"])
	}
	if msg["role"] != "courier" {
		t.Errorf("expected role courier, got %v", msg["role"])
	}
}

func TestWebSocketPingPong(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ping@example.com", "sender")

	ws := env.dial(t, token)
	waitForType(t, ws, "connection_established")

	if err := ws.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	waitForType(t, ws, "pong")
}

func TestWebSocketSubscribeAck(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "sub@example.com", "sender")

	ws := env.dial(t, token)
	waitForType(t, ws, "connection_established")

	if err := ws.WriteJSON(map[string]any{"type": "subscribe_package", "package_id": 42}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	ack := waitForType(t, ws, "package_subscribed")
	if id, _ := ack["package_id"].(float64); int64(id) != 42 {
		t.Errorf("expected package_id 42, got %v", ack["package_id"])
	}
}

func TestStatsRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	senderToken := env.register(t, "nobody@example.com", "sender")
	ws := env.dial(t, senderToken)
	waitForType(t, ws, "connection_established")

	if err := ws.WriteJSON(map[string]any{"type": "get_stats"}); err != nil {
		t.Fatalf("write get_stats: %v", err)
	}
	msg := waitForType(t, ws, "error")
	if m, _ := msg["message"].(string); !strings.Contains(m, "Insufficient permissions") {
		t.Errorf("unexpected error message: %v", msg["message"])
	}

	adminToken := env.register(t, "root@example.com", "admin")
	adminWS := env.dial(t, adminToken)
	waitForType(t, adminWS, "connection_established")

	if err := adminWS.WriteJSON(map[string]any{"type": "get_stats"}); err != nil {
		t.Fatalf("write get_stats: %v", err)
	}
	waitForType(t, adminWS, "stats")
}

func TestDeliveryLocationFanout(t *testing.T) {
	env := newTestEnv(t)

	senderToken := env.register(t, "shipper@example.com", "sender")

	status, pkg := env.postJSON(t, "/api/packages", senderToken, map[string]any{
		"title": "Laptop",
	})
	if status != http.StatusCreated {
		t.Fatalf("create package: status %d", status)
	}
	pkgID := int64(pkg["id"].(float64))

	status, delivery := env.postJSON(t, "/api/deliveries", senderToken, map[string]any{
		"package_id": pkgID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create delivery: status %d", status)
	}
	deliveryID := int64(delivery["id"].(float64))

	// The sender is auto-subscribed to its own packages and their
	// deliveries on connect
	ws := env.dial(t, senderToken)
	waitForType(t, ws, "connection_established")

	path := fmt.Sprintf("/api/deliveries/%d/location", deliveryID)
	status, _ = env.postJSON(t, path, senderToken, map[string]any{
		"lat": 52.52,
		"lng": 13.405,
	})
	if status != http.StatusOK {
		t.Fatalf("location update: status %d", status)
	}

	msg := waitForType(t, ws, "delivery_location")
	if lat, _ := msg["lat"].(float64); lat != 52.52 {
		t.Errorf("expected lat 52.52, got %v", msg["lat"])
	}
	if lng, _ := msg["lng"].(float64); lng != 13.405 {
		t.Errorf("expected lng 13.405, got %v", msg["lng"])
	}
}

func TestPackageStatusNotification(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.register(t, "ops@example.com", "admin")
	senderToken := env.register(t, "origin@example.com", "sender")

	status, pkg := env.postJSON(t, "/api/packages", senderToken, map[string]any{
		"title": "Books",
	})
	if status != http.StatusCreated {
		t.Fatalf("create package: status %d", status)
	}
	pkgID := int64(pkg["id"].(float64))

	// Admins are auto-subscribed to every package
	ws := env.dial(t, adminToken)
	waitForType(t, ws, "connection_established")

	req, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/api/packages/%d/status", env.ts.URL, pkgID),
		strings.NewReader(`{"status":"in_transit"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+senderToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("status update failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status update: status %d", resp.StatusCode)
	}

	msg := waitForType(t, ws, "package_update")
	if id, _ := msg["package_id"].(float64); int64(id) != pkgID {
		t.Errorf("expected package_id %d, got %v", pkgID, msg["package_id"])
	}
}

func TestAnnouncementFanout(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.register(t, "announcer@example.com", "admin")
	courierToken := env.register(t, "driver@example.com", "courier")
	senderToken := env.register(t, "quiet@example.com", "sender")

	courierWS := env.dial(t, courierToken)
	waitForType(t, courierWS, "connection_established")
	senderWS := env.dial(t, senderToken)
	waitForType(t, senderWS, "connection_established")

	status, _ := env.postJSON(t, "/api/announcements", adminToken, map[string]any{
		"message": "Depot closed tomorrow",
		"roles":   []string{"courier"},
	})
	if status != http.StatusAccepted {
		t.Fatalf("announce: status %d", status)
	}

	msg := waitForType(t, courierWS, "system_announcement")
	if msg["message"] != "Depot closed tomorrow" {
		t.Errorf("unexpected message: %v", msg["message"])
	}

	// The sender's role was not targeted
	senderWS.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var stray map[string]any
	if err := senderWS.ReadJSON(&stray); err == nil && stray["type"] == "system_announcement" {
		t.Error("sender received an announcement targeted at couriers")
	}

	status, _ = env.postJSON(t, "/api/announcements", senderToken, map[string]any{
		"message": "not allowed",
	})
	if status != http.StatusForbidden {
		t.Errorf("non-admin announce: expected 403, got %d", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/packages")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}
