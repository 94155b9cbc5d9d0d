package ws

// Константы для WebSocket сообщений
const (
	// Исходящие
	MessageTypeCreate    = "create"    // Описание сущности при подключении
	MessageTypeState     = "state"     // Снимок состояния тел
	MessageTypeCollision = "collision" // Начало контакта
	MessageTypePong      = "pong"      // Ответ на пинг
	MessageTypeAck       = "cmd_ack"   // Подтверждение команды
	MessageTypeInfo      = "info"      // Информационное сообщение
	MessageTypeError     = "error"     // Ошибка обработки сообщения

	// Входящие
	MessageTypePing    = "ping" // Пинг для измерения задержки
	MessageTypeCommand = "cmd"  // Команда от клиента
)

// Команды управления симуляцией
const (
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStep   = "step"
)

// Vector3 - вектор в JSON
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion - ориентация в JSON
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// CreateMessage описывает форму сущности
type CreateMessage struct {
	Type        string     `json:"type"`
	ID          uint64     `json:"id"`
	ObjectType  string     `json:"object_type"`
	Position    Vector3    `json:"position"`
	Rotation    Quaternion `json:"rotation"`
	HalfExtents *Vector3   `json:"half_extents,omitempty"`
	Normal      *Vector3   `json:"normal,omitempty"`
	Offset      float64    `json:"offset,omitempty"`
	Vertices    []Vector3  `json:"vertices,omitempty"`
	Faces       [][]int    `json:"faces,omitempty"`
	Mass        float64    `json:"mass,omitempty"`
	Color       string     `json:"color,omitempty"`
	Trigger     bool       `json:"trigger,omitempty"`
	ServerTime  int64      `json:"server_time"`
}

// BodyMessage - состояние одного тела в снимке
type BodyMessage struct {
	ID              uint64     `json:"id"`
	Position        Vector3    `json:"position"`
	Rotation        Quaternion `json:"rotation"`
	Velocity        Vector3    `json:"velocity"`
	AngularVelocity Vector3    `json:"angular_velocity"`
	Static          bool       `json:"static,omitempty"`
}

// StateMessage - снимок состояния после шага Step
type StateMessage struct {
	Type       string        `json:"type"`
	Step       uint64        `json:"step"`
	Bodies     []BodyMessage `json:"bodies"`
	ServerTime int64         `json:"server_time"`
}

// ContactMessage - точка контакта
type ContactMessage struct {
	Position    Vector3 `json:"position"`
	Penetration float64 `json:"penetration"`
}

// CollisionMessage сообщает о начале контакта двух сущностей
type CollisionMessage struct {
	Type        string           `json:"type"`
	Step        uint64           `json:"step"`
	EntityA     uint64           `json:"entity_a"`
	EntityB     uint64           `json:"entity_b"`
	Normal      Vector3          `json:"normal"`
	Penetration float64          `json:"penetration"`
	Contacts    []ContactMessage `json:"contacts"`
	ServerTime  int64            `json:"server_time"`
}

// CommandMessage представляет команду от клиента
type CommandMessage struct {
	Type       string `json:"type"`
	Cmd        string `json:"cmd"`
	ClientTime int64  `json:"client_time,omitempty"`
}

// AckMessage представляет подтверждение команды сервером
type AckMessage struct {
	Type       string `json:"type"`
	Cmd        string `json:"cmd"`
	Step       uint64 `json:"step"`
	Paused     bool   `json:"paused"`
	ClientTime int64  `json:"client_time"`
	ServerTime int64  `json:"server_time"`
}

// PingMessage представляет пинг от клиента
type PingMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
}

// PongMessage представляет ответ на пинг от сервера
type PongMessage struct {
	Type       string `json:"type"`
	ClientTime int64  `json:"client_time"`
	ServerTime int64  `json:"server_time"`
}

// InfoMessage представляет информационное сообщение от сервера
type InfoMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
