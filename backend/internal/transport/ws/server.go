package ws

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"x-physics/backend/internal/world"
)

// Controller - управление симуляцией со стороны клиентов
type Controller interface {
	SetPaused(paused bool)
	IsPaused() bool
	RequestSingleStep()
	StepCount() uint64
}

// MessageHandler - тип функции обработчика сообщений
type MessageHandler func(conn *SafeWriter, message interface{}) error

// pairKey - неупорядоченная пара сущностей
type pairKey struct {
	a, b uint64
}

func newPairKey(a, b uint64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Server - WebSocket сервер наблюдения за симуляцией
type Server struct {
	upgrader   websocket.Upgrader
	controller Controller
	world      *world.World
	handlers   map[string]MessageHandler
	logger     *log.Logger

	clients   map[*SafeWriter]bool
	clientsMu sync.RWMutex

	// Контакты, виденные на последних шагах, и очередь сообщений о новых
	contacts   map[pairKey]uint64
	pending    []*CollisionMessage
	contactsMu sync.Mutex
}

// NewServer создает новый экземпляр WebSocket сервера
func NewServer(controller Controller, w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	server := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		controller: controller,
		world:      w,
		handlers:   make(map[string]MessageHandler),
		logger:     logger,
		clients:    make(map[*SafeWriter]bool),
		contacts:   make(map[pairKey]uint64),
	}

	// Регистрируем стандартные обработчики
	server.RegisterHandler(MessageTypePing, server.handlePing)
	server.RegisterHandler(MessageTypeCommand, server.handleCmd)

	return server
}

// RegisterHandler регистрирует обработчик для конкретного типа сообщений
func (s *Server) RegisterHandler(messageType string, handler MessageHandler) {
	s.handlers[messageType] = handler
}

// Handler возвращает HTTP обработчик с маршрутом /ws
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	return mux
}

// ClientCount возвращает число подключенных клиентов
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// HandleWS обрабатывает входящие WebSocket соединения
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[WSServer] Ошибка upgrade: %v", err)
		return
	}

	// Создаем потокобезопасную обертку для WebSocket соединения
	safeConn := NewSafeWriter(conn)
	defer func() {
		s.removeClient(safeConn)
		safeConn.Close()
	}()

	s.logger.Printf("[WSServer] Новое соединение от %s", conn.RemoteAddr())

	// Отправляем приветственное сообщение
	if err := safeConn.WriteJSON(NewInfoMessage("Successfully connected to x-physics server")); err != nil {
		s.logger.Printf("[WSServer] Ошибка отправки приветствия: %v", err)
		return
	}

	// Отправляем описание всех сущностей до первого снимка
	if err := s.sendCreateForAll(safeConn); err != nil {
		s.logger.Printf("[WSServer] Ошибка отправки сущностей: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[safeConn] = true
	s.clientsMu.Unlock()

	// Основной цикл обработки сообщений
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Printf("[WSServer] Ошибка соединения: %v", err)
			}
			break
		}

		message, err := ParseMessage(data)
		if err != nil {
			s.logger.Printf("[WSServer] Ошибка разбора сообщения: %v", err)
			if err := safeConn.WriteJSON(NewErrorMessage(err)); err != nil {
				break
			}
			continue
		}

		var messageType string
		switch msg := message.(type) {
		case *CommandMessage:
			messageType = msg.Type
		case *PingMessage:
			messageType = msg.Type
		default:
			s.logger.Printf("[WSServer] Неизвестный тип сообщения: %T", message)
			continue
		}

		if handler, ok := s.handlers[messageType]; ok {
			if err := handler(safeConn, message); err != nil {
				s.logger.Printf("[WSServer] Ошибка обработки %s: %v", messageType, err)
			}
		} else {
			s.logger.Printf("[WSServer] Нет обработчика для типа: %s", messageType)
		}
	}

	s.logger.Printf("[WSServer] Соединение закрыто: %s", conn.RemoteAddr())
}

// Close закрывает все клиентские соединения
func (s *Server) Close() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
}

func (s *Server) removeClient(conn *SafeWriter) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
}

// handlePing отвечает на пинг клиента
func (s *Server) handlePing(conn *SafeWriter, message interface{}) error {
	ping, ok := message.(*PingMessage)
	if !ok {
		return fmt.Errorf("invalid ping message: %T", message)
	}
	return conn.WriteJSON(NewPongMessage(ping.ClientTime))
}

// handleCmd выполняет команду управления симуляцией
func (s *Server) handleCmd(conn *SafeWriter, message interface{}) error {
	cmd, ok := message.(*CommandMessage)
	if !ok {
		return fmt.Errorf("invalid command message: %T", message)
	}
	if s.controller == nil {
		return conn.WriteJSON(NewInfoMessage("simulation control is disabled"))
	}

	switch cmd.Cmd {
	case CommandPause:
		s.controller.SetPaused(true)
	case CommandResume:
		s.controller.SetPaused(false)
	case CommandStep:
		// Одиночный шаг имеет смысл только на паузе
		if !s.controller.IsPaused() {
			s.controller.SetPaused(true)
		}
		s.controller.RequestSingleStep()
	default:
		err := fmt.Errorf("unknown command %q", cmd.Cmd)
		if writeErr := conn.WriteJSON(NewErrorMessage(err)); writeErr != nil {
			return writeErr
		}
		return err
	}

	s.logger.Printf("[WSServer] Команда %s от %s", cmd.Cmd, conn.RemoteAddr())
	return conn.WriteJSON(NewAckMessage(cmd.Cmd, s.controller.StepCount(), s.controller.IsPaused(), cmd.ClientTime))
}

// sendCreateForAll отправляет клиенту описание всех сущностей мира
func (s *Server) sendCreateForAll(conn *SafeWriter) error {
	if s.world == nil {
		return nil
	}

	count := 0
	for _, e := range s.world.Query() {
		position, _ := s.world.Positions.Get(e)
		rotation, ok := s.world.Rotations.Get(e)
		if !ok {
			rotation = mgl64.QuatIdent()
		}
		shape, _ := s.world.Shapes.Get(e)
		trigger := false
		if pc, ok := s.world.Physics.Get(e); ok && pc != nil {
			trigger = pc.IsTrigger
		}

		if err := conn.WriteJSON(NewCreateMessage(e, position, rotation, shape, trigger)); err != nil {
			return fmt.Errorf("entity %d: %w", e, err)
		}
		count++
	}

	s.logger.Printf("[WSServer] Отправлено %d сущностей клиенту %s", count, conn.RemoteAddr())
	return nil
}
