package ws

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/gorilla/websocket"
)

// SafeWriter обеспечивает потокобезопасную запись в WebSocket соединение
type SafeWriter struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

// NewSafeWriter создает новый экземпляр SafeWriter
func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return &SafeWriter{
		conn: conn,
	}
}

// WriteJSON потокобезопасно записывает JSON данные в WebSocket соединение
func (w *SafeWriter) WriteJSON(v interface{}) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		// Ошибка сериализации из-за NaN: обходим карту и заменяем NaN на 0
		mapData, ok := v.(map[string]interface{})
		if !ok {
			return err
		}
		sanitizeMapValues(mapData)
		if jsonData, err = json.Marshal(mapData); err != nil {
			return err
		}
	}

	return w.WriteMessage(websocket.TextMessage, jsonData)
}

// WriteMessage потокобезопасно записывает сообщение в WebSocket соединение
func (w *SafeWriter) WriteMessage(messageType int, data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteMessage(messageType, data)
}

// Close закрывает WebSocket соединение
func (w *SafeWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}

// RemoteAddr возвращает адрес клиента
func (w *SafeWriter) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

// sanitizeMapValues рекурсивно обходит map и заменяет NaN значения на 0
func sanitizeMapValues(data map[string]interface{}) {
	for k, v := range data {
		switch val := v.(type) {
		case float64:
			if math.IsNaN(val) || math.IsInf(val, 0) {
				data[k] = 0.0
			}
		case map[string]interface{}:
			sanitizeMapValues(val)
		case []interface{}:
			for i, item := range val {
				if itemMap, ok := item.(map[string]interface{}); ok {
					sanitizeMapValues(itemMap)
				} else if itemFloat, ok := item.(float64); ok && (math.IsNaN(itemFloat) || math.IsInf(itemFloat, 0)) {
					val[i] = 0.0
				}
			}
		}
	}
}
