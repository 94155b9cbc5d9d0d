package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/events"
	"x-physics/backend/internal/game"
	"x-physics/backend/internal/world"
)

// fakeController запоминает команды клиентов
type fakeController struct {
	mu     sync.Mutex
	paused bool
	steps  int
	count  uint64
}

func (c *fakeController) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

func (c *fakeController) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *fakeController) RequestSingleStep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps++
}

func (c *fakeController) StepCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *testClient) send(v interface{}) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("Failed to send: %v", err)
	}
}

// next читает следующее сообщение и разбирает его в map
func (c *testClient) next() map[string]interface{} {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("Failed to read: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("Invalid JSON %s: %v", data, err)
	}
	return msg
}

func newTestServer(t *testing.T) (*Server, *fakeController, *testClient) {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	w := world.NewWorld()
	factory := world.NewFactory(w, 0, logger)
	factory.CreatePlane(mgl64.Vec3{0, 1, 0}, 0)
	if _, err := factory.CreateBox(mgl64.Vec3{0, 2, 0}, mgl64.QuatIdent(), mgl64.Vec3{0.5, 0.5, 0.5}, 1, "#ff0000"); err != nil {
		t.Fatal(err)
	}

	controller := &fakeController{count: 3}
	server := NewServer(controller, w, logger)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	client := &testClient{t: t, conn: conn}

	// Приветствие и описание двух сущностей
	if msg := client.next(); msg["type"] != MessageTypeInfo {
		t.Fatalf("Expected info message, got %v", msg)
	}
	plane, box := client.next(), client.next()
	if plane["type"] != MessageTypeCreate || plane["object_type"] != "plane" {
		t.Fatalf("Expected plane create message, got %v", plane)
	}
	if box["type"] != MessageTypeCreate || box["object_type"] != "box" || box["color"] != "#ff0000" {
		t.Fatalf("Expected box create message, got %v", box)
	}

	return server, controller, client
}

func TestServer_PingPong(t *testing.T) {
	_, _, client := newTestServer(t)

	client.send(PingMessage{Type: MessageTypePing, ClientTime: 1234})
	msg := client.next()
	if msg["type"] != MessageTypePong || msg["client_time"] != float64(1234) {
		t.Errorf("Unexpected pong %v", msg)
	}
}

func TestServer_Commands(t *testing.T) {
	_, controller, client := newTestServer(t)

	tests := []struct {
		cmd        string
		wantType   string
		wantPaused bool
		wantSteps  int
	}{
		{cmd: CommandPause, wantType: MessageTypeAck, wantPaused: true},
		{cmd: CommandResume, wantType: MessageTypeAck, wantPaused: false},
		{cmd: CommandStep, wantType: MessageTypeAck, wantPaused: true, wantSteps: 1},
		{cmd: "explode", wantType: MessageTypeError, wantPaused: true, wantSteps: 1},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			client.send(CommandMessage{Type: MessageTypeCommand, Cmd: tt.cmd, ClientTime: 99})
			msg := client.next()
			if msg["type"] != tt.wantType {
				t.Fatalf("Expected %s, got %v", tt.wantType, msg)
			}
			if tt.wantType == MessageTypeAck {
				if msg["cmd"] != tt.cmd || msg["paused"] != tt.wantPaused || msg["step"] != float64(3) {
					t.Errorf("Unexpected ack %v", msg)
				}
			}
			if controller.IsPaused() != tt.wantPaused {
				t.Errorf("Expected paused %v", tt.wantPaused)
			}
			controller.mu.Lock()
			steps := controller.steps
			controller.mu.Unlock()
			if steps != tt.wantSteps {
				t.Errorf("Expected %d single steps, got %d", tt.wantSteps, steps)
			}
		})
	}
}

func TestServer_InvalidMessage(t *testing.T) {
	_, _, client := newTestServer(t)

	if err := client.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fly"}`)); err != nil {
		t.Fatal(err)
	}
	if msg := client.next(); msg["type"] != MessageTypeError {
		t.Errorf("Expected error message, got %v", msg)
	}
}

// waitClients ждет регистрации клиента, она идет после отправки сущностей
func waitClients(t *testing.T, server *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() != n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if server.ClientCount() != n {
		t.Fatalf("Expected %d clients, got %d", n, server.ClientCount())
	}
}

func TestServer_BroadcastsCollisionBeginAndState(t *testing.T) {
	server, _, client := newTestServer(t)
	waitClients(t, server, 1)

	bus := events.NewBus(log.New(io.Discard, "", 0))
	server.Attach(bus)

	manifold := &collision.Manifold{
		EntityA:  1,
		EntityB:  2,
		Normal:   mgl64.Vec3{0, 1, 0},
		Contacts: []collision.Contact{{Position: mgl64.Vec3{0, 0, 0}, Penetration: 0.01}},
	}
	bodies := []game.BodyState{{Entity: 2, Position: mgl64.Vec3{0, 0.5, 0}, Rotation: mgl64.QuatIdent()}}

	// Шаг 1: начало контакта
	bus.RaiseCollision(events.CollisionEvent{Manifold: manifold, Timestep: 0.02, Step: 1})
	if err := server.BroadcastState(1, bodies); err != nil {
		t.Fatal(err)
	}
	collisionMsg := client.next()
	if collisionMsg["type"] != MessageTypeCollision || collisionMsg["step"] != float64(1) {
		t.Fatalf("Expected collision at step 1, got %v", collisionMsg)
	}
	state := client.next()
	if state["type"] != MessageTypeState || state["step"] != float64(1) {
		t.Fatalf("Expected state at step 1, got %v", state)
	}
	if got := len(state["bodies"].([]interface{})); got != 1 {
		t.Errorf("Expected 1 body, got %d", got)
	}

	// Шаг 2: контакт продолжается, B и A в обратном порядке - та же пара
	reversed := *manifold
	reversed.EntityA, reversed.EntityB = 2, 1
	bus.RaiseCollision(events.CollisionEvent{Manifold: &reversed, Timestep: 0.02, Step: 2})
	if err := server.BroadcastState(2, bodies); err != nil {
		t.Fatal(err)
	}
	if msg := client.next(); msg["type"] != MessageTypeState || msg["step"] != float64(2) {
		t.Fatalf("Expected only state at step 2, got %v", msg)
	}

	// Шаги 3 и 4 без контакта, на шаге 5 контакт начинается снова
	for step := uint64(3); step <= 4; step++ {
		if err := server.BroadcastState(step, bodies); err != nil {
			t.Fatal(err)
		}
		client.next()
	}
	bus.RaiseCollision(events.CollisionEvent{Manifold: manifold, Timestep: 0.02, Step: 5})
	if err := server.BroadcastState(5, bodies); err != nil {
		t.Fatal(err)
	}
	if msg := client.next(); msg["type"] != MessageTypeCollision || msg["step"] != float64(5) {
		t.Errorf("Expected new collision at step 5, got %v", msg)
	}
}

func TestServer_DisconnectRemovesClient(t *testing.T) {
	server, _, client := newTestServer(t)
	waitClients(t, server, 1)

	client.conn.Close()
	waitClients(t, server, 0)

	// Рассылка без клиентов не должна падать
	if err := server.BroadcastState(1, nil); err != nil {
		t.Errorf("BroadcastState failed: %v", err)
	}
}
