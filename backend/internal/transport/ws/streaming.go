package ws

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"x-physics/backend/internal/events"
	"x-physics/backend/internal/game"
)

// Attach подписывает сервер на столкновения. Клиентам уходит только
// начало контакта: пара, не сталкивавшаяся на предыдущем шаге.
func (s *Server) Attach(bus *events.Bus) {
	bus.OnCollision(func(event events.CollisionEvent) {
		m := event.Manifold
		if m == nil {
			return
		}
		key := newPairKey(uint64(m.EntityA), uint64(m.EntityB))

		s.contactsMu.Lock()
		defer s.contactsMu.Unlock()

		last, seen := s.contacts[key]
		s.contacts[key] = event.Step
		if seen && last+1 >= event.Step {
			return
		}
		s.pending = append(s.pending, NewCollisionMessage(event.Step, m))
	})
}

// BroadcastState рассылает накопленные сообщения о контактах и снимок
// состояния всем клиентам
func (s *Server) BroadcastState(step uint64, bodies []game.BodyState) error {
	s.contactsMu.Lock()
	pending := s.pending
	s.pending = nil
	for key, last := range s.contacts {
		if last+1 < step {
			delete(s.contacts, key)
		}
	}
	s.contactsMu.Unlock()

	for _, msg := range pending {
		if err := s.broadcast(msg); err != nil {
			return err
		}
	}
	return s.broadcast(NewStateMessage(step, bodies))
}

// broadcast сериализует сообщение один раз и отправляет его всем клиентам.
// Клиенты с ошибкой записи отключаются.
func (s *Server) broadcast(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.clientsMu.RLock()
	clients := make([]*SafeWriter, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Printf("[WSServer] Ошибка отправки клиенту %s: %v", client.RemoteAddr(), err)
			s.removeClient(client)
			client.Close()
		}
	}
	return nil
}
