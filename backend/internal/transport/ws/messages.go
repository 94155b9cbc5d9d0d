package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/ecs"
	"x-physics/backend/internal/game"
	"x-physics/backend/internal/world"
)

// ErrUnknownMessage - тип сообщения не поддерживается
var ErrUnknownMessage = errors.New("unknown message type")

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// ParseMessage разбирает входящее сообщение в соответствующий тип
func ParseMessage(data []byte) (interface{}, error) {
	var baseMessage struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &baseMessage); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}

	switch baseMessage.Type {
	case MessageTypeCommand:
		var msg CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("error parsing command message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("error parsing ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, baseMessage.Type)
	}
}

// NewPongMessage создает ответ на пинг
func NewPongMessage(clientTime int64) *PongMessage {
	return &PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewAckMessage создает подтверждение команды
func NewAckMessage(cmd string, step uint64, paused bool, clientTime int64) *AckMessage {
	return &AckMessage{
		Type:       MessageTypeAck,
		Cmd:        cmd,
		Step:       step,
		Paused:     paused,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewInfoMessage создает новое информационное сообщение
func NewInfoMessage(message string) *InfoMessage {
	return &InfoMessage{
		Type:    MessageTypeInfo,
		Message: message,
	}
}

// NewErrorMessage создает сообщение об ошибке обработки
func NewErrorMessage(err error) *InfoMessage {
	return &InfoMessage{
		Type:    MessageTypeError,
		Message: err.Error(),
	}
}

// NewStateMessage создает снимок состояния. NaN заменяются нулями.
func NewStateMessage(step uint64, bodies []game.BodyState) *StateMessage {
	msg := &StateMessage{
		Type:       MessageTypeState,
		Step:       step,
		Bodies:     make([]BodyMessage, 0, len(bodies)),
		ServerTime: GetCurrentServerTime(),
	}
	for _, b := range bodies {
		msg.Bodies = append(msg.Bodies, BodyMessage{
			ID:              uint64(b.Entity),
			Position:        toVector3(b.Position),
			Rotation:        toQuaternion(b.Rotation),
			Velocity:        toVector3(b.Velocity),
			AngularVelocity: toVector3(b.AngularVelocity),
			Static:          b.Static,
		})
	}
	return msg
}

// NewCollisionMessage создает сообщение о контакте из манифолда
func NewCollisionMessage(step uint64, m *collision.Manifold) *CollisionMessage {
	msg := &CollisionMessage{
		Type:        MessageTypeCollision,
		Step:        step,
		EntityA:     uint64(m.EntityA),
		EntityB:     uint64(m.EntityB),
		Normal:      toVector3(m.Normal),
		Penetration: safeValue(m.Penetration, 0),
		Contacts:    make([]ContactMessage, 0, len(m.Contacts)),
		ServerTime:  GetCurrentServerTime(),
	}
	for _, c := range m.Contacts {
		msg.Contacts = append(msg.Contacts, ContactMessage{
			Position:    toVector3(c.Position),
			Penetration: safeValue(c.Penetration, 0),
		})
	}
	return msg
}

// NewCreateMessage описывает сущность по ее форме
func NewCreateMessage(e ecs.Entity, position mgl64.Vec3, rotation mgl64.Quat, shape *world.ShapeDescriptor, trigger bool) *CreateMessage {
	msg := &CreateMessage{
		Type:       MessageTypeCreate,
		ID:         uint64(e),
		ObjectType: "unknown",
		Position:   toVector3(position),
		Rotation:   toQuaternion(rotation),
		Trigger:    trigger,
		ServerTime: GetCurrentServerTime(),
	}
	if shape == nil {
		return msg
	}

	msg.ObjectType = shape.Type.String()
	msg.Color = shape.Color
	switch {
	case shape.Box != nil:
		half := toVector3(shape.Box.HalfExtents)
		msg.HalfExtents = &half
		msg.Mass = safeValue(shape.Box.Mass, 0)
	case shape.Plane != nil:
		normal := toVector3(shape.Plane.Normal)
		msg.Normal = &normal
		msg.Offset = safeValue(shape.Plane.Offset, 0)
	case shape.Hull != nil:
		msg.Vertices = make([]Vector3, 0, len(shape.Hull.Vertices))
		for _, v := range shape.Hull.Vertices {
			msg.Vertices = append(msg.Vertices, toVector3(v))
		}
		msg.Faces = shape.Hull.Faces
		msg.Mass = safeValue(shape.Hull.Mass, 0)
	}
	return msg
}

// safeValue проверяет значения на NaN и Inf и заменяет их на defaultValue
func safeValue(value float64, defaultValue float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return defaultValue
	}
	return value
}

func toVector3(v mgl64.Vec3) Vector3 {
	return Vector3{
		X: safeValue(v[0], 0),
		Y: safeValue(v[1], 0),
		Z: safeValue(v[2], 0),
	}
}

func toQuaternion(q mgl64.Quat) Quaternion {
	return Quaternion{
		X: safeValue(q.V[0], 0),
		Y: safeValue(q.V[1], 0),
		Z: safeValue(q.V[2], 0),
		W: safeValue(q.W, 1),
	}
}
