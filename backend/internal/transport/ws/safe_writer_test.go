package ws

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialEcho поднимает сервер, который читает n сообщений и отдает их в канал
func dialEcho(t *testing.T, n int) (*websocket.Conn, <-chan []string) {
	t.Helper()

	received := make(chan []string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		var msgs []string
		for i := 0; i < n; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			msgs = append(msgs, string(msg))
		}
		received <- msgs
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket server: %v", err)
	}
	t.Cleanup(func() { wsConn.Close() })
	return wsConn, received
}

func TestSafeWriter_WriteJSON_Concurrency(t *testing.T) {
	wsConn, received := dialEcho(t, 10)
	writer := NewSafeWriter(wsConn)

	// Запускаем 10 горутин, каждая отправляет свое сообщение
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			msg := struct {
				ID  int    `json:"id"`
				Msg string `json:"msg"`
			}{
				ID:  id,
				Msg: "Test message",
			}

			if err := writer.WriteJSON(msg); err != nil {
				t.Errorf("Error writing message: %v", err)
			}
		}(i)
	}
	wg.Wait()

	select {
	case msgs := <-received:
		uniq := make(map[string]struct{})
		for _, msg := range msgs {
			uniq[msg] = struct{}{}
		}
		if len(uniq) != 10 {
			t.Errorf("Expected 10 unique messages, got %d", len(uniq))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for messages")
	}
}

func TestSafeWriter_SanitizesNaN(t *testing.T) {
	wsConn, received := dialEcho(t, 1)
	writer := NewSafeWriter(wsConn)

	msg := map[string]interface{}{
		"type": "state",
		"position": map[string]interface{}{
			"x": math.NaN(),
			"y": 1.5,
		},
		"values": []interface{}{math.Inf(1), 2.0},
	}
	if err := writer.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	select {
	case msgs := <-received:
		if len(msgs) != 1 {
			t.Fatalf("Expected 1 message, got %d", len(msgs))
		}
		expected := `{"position":{"x":0,"y":1.5},"type":"state","values":[0,2]}`
		if msgs[0] != expected {
			t.Errorf("Expected %s, got %s", expected, msgs[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestSafeWriter_RejectsNaNStruct(t *testing.T) {
	wsConn, _ := dialEcho(t, 1)
	writer := NewSafeWriter(wsConn)

	// Структуры не обходятся, NaN в них - ошибка сериализации
	err := writer.WriteJSON(struct {
		X float64 `json:"x"`
	}{X: math.NaN()})
	if err == nil {
		t.Error("Expected marshal error for NaN in struct")
	}
}

func TestSafeWriter_Close(t *testing.T) {
	wsConn, _ := dialEcho(t, 1)

	// Создаем SafeWriter и сразу закрываем
	writer := NewSafeWriter(wsConn)
	if err := writer.Close(); err != nil {
		t.Errorf("Error closing connection: %v", err)
	}

	// Попытка записи в закрытое соединение должна вернуть ошибку
	if err := writer.WriteJSON("test"); err == nil {
		t.Error("Expected error when writing to closed connection, got nil")
	}
}
