package telemetry

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector3 структура для 3D вектора в JSON
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FromVec3 переводит mgl64.Vec3 в Vector3
func FromVec3(v mgl64.Vec3) Vector3 {
	return Vector3{X: v[0], Y: v[1], Z: v[2]}
}

// Типы записей
const (
	KindBody    = "body"
	KindContact = "contact"
)

// Sample - одна запись телеметрии: состояние тела или импульс контакта
type Sample struct {
	Timestamp int64   `json:"timestamp"` // Время в миллисекундах
	Step      uint64  `json:"step"`      // Номер шага симуляции
	Kind      string  `json:"kind"`      // body или contact
	Entity    uint64  `json:"entity"`    // Сущность (A для контакта)
	Other     uint64  `json:"other,omitempty"`
	Position  Vector3 `json:"position"` // Позиция тела или точка контакта
	Velocity  Vector3 `json:"velocity"`
	Angular   Vector3 `json:"angular_velocity"`
	Normal    Vector3 `json:"normal"`
	Mass      float64 `json:"mass,omitempty"`
	Speed     float64 `json:"speed,omitempty"` // Модуль скорости
	Impulse   float64 `json:"impulse,omitempty"`
}

// Manager управляет сбором и выводом телеметрии
type Manager struct {
	enabled    bool
	data       []Sample
	mutex      sync.RWMutex
	maxEntries int

	// Счетчики для статистики
	counters      map[string]int
	lastPrint     time.Time
	printInterval time.Duration

	logger *log.Logger
}

// NewManager создает новый менеджер телеметрии
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		enabled:       true,
		data:          make([]Sample, 0),
		maxEntries:    200, // Храним последние 200 записей
		counters:      make(map[string]int),
		lastPrint:     time.Now(),
		printInterval: 2 * time.Second, // Выводим статистику не чаще раза в 2 секунды
		logger:        logger,
	}
}

// SetPrintInterval меняет минимальный интервал между сводками
func (tm *Manager) SetPrintInterval(interval time.Duration) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.printInterval = interval
}

// RecordBody записывает состояние тела
func (tm *Manager) RecordBody(step, entity uint64, position, velocity, angular mgl64.Vec3, mass float64) {
	tm.record(Sample{
		Step:     step,
		Kind:     KindBody,
		Entity:   entity,
		Position: FromVec3(position),
		Velocity: FromVec3(velocity),
		Angular:  FromVec3(angular),
		Mass:     mass,
		Speed:    velocity.Len(),
	}, KindBody)
}

// RecordContact записывает суммарный нормальный импульс контакта
func (tm *Manager) RecordContact(step, entityA, entityB uint64, point, normal mgl64.Vec3, impulse float64) {
	tm.record(Sample{
		Step:     step,
		Kind:     KindContact,
		Entity:   entityA,
		Other:    entityB,
		Position: FromVec3(point),
		Normal:   FromVec3(normal),
		Impulse:  impulse,
	}, KindContact)
}

// Count увеличивает именованный счетчик
func (tm *Manager) Count(key string, n int) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}
	tm.counters[key] += n
}

func (tm *Manager) record(entry Sample, counter string) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return
	}

	entry.Timestamp = time.Now().UnixMilli()
	tm.data = append(tm.data, entry)

	// Ограничиваем размер буфера
	if len(tm.data) > tm.maxEntries {
		tm.data = tm.data[len(tm.data)-tm.maxEntries:]
	}

	tm.counters[counter]++
}

// PrintSummary выводит сводку телеметрии не чаще printInterval.
// Возвращает true, если сводка была выведена.
func (tm *Manager) PrintSummary() bool {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if !tm.enabled {
		return false
	}

	now := time.Now()
	if now.Sub(tm.lastPrint) < tm.printInterval {
		return false
	}

	tm.logger.Println("[Telemetry] ===== ТЕЛЕМЕТРИЯ ФИЗИКИ =====")
	tm.logger.Printf("[Telemetry] Всего записей: %d", len(tm.data))

	// Статистика по счетчикам в стабильном порядке
	keys := make([]string, 0, len(tm.counters))
	for key := range tm.counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		tm.logger.Printf("[Telemetry] %s: %d", key, tm.counters[key])
	}

	tm.printRecentBodies()

	// Сброс счетчиков
	tm.counters = make(map[string]int)
	tm.lastPrint = now

	tm.logger.Println("[Telemetry] ==============================")
	return true
}

// printRecentBodies выводит последние состояния каждого тела
func (tm *Manager) printRecentBodies() {
	latest := make(map[uint64]Sample)
	for i := len(tm.data) - 1; i >= 0; i-- {
		entry := tm.data[i]
		if entry.Kind != KindBody {
			continue
		}
		if _, exists := latest[entry.Entity]; !exists {
			latest[entry.Entity] = entry
		}
	}

	entities := make([]uint64, 0, len(latest))
	for e := range latest {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })

	for _, e := range entities {
		data := latest[e]
		tm.logger.Printf("[Telemetry] Тело %d, шаг %d: позиция (%.2f, %.2f, %.2f), скорость |%.2f|, масса %.2f",
			e, data.Step, data.Position.X, data.Position.Y, data.Position.Z, data.Speed, data.Mass)
	}
}

// JSON возвращает телеметрию в JSON формате
func (tm *Manager) JSON() (string, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	jsonData, err := json.MarshalIndent(tm.data, "", "  ")
	if err != nil {
		return "", err
	}

	return string(jsonData), nil
}

// Samples возвращает копию буфера
func (tm *Manager) Samples() []Sample {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	return append([]Sample(nil), tm.data...)
}

// Counters возвращает копию счетчиков с момента последней сводки
func (tm *Manager) Counters() map[string]int {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	counters := make(map[string]int, len(tm.counters))
	for k, v := range tm.counters {
		counters[k] = v
	}
	return counters
}

// SetEnabled включает/выключает телеметрию
func (tm *Manager) SetEnabled(enabled bool) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.enabled = enabled
	tm.logger.Printf("[Telemetry] Телеметрия %s", map[bool]string{true: "включена", false: "выключена"}[enabled])
}

// Enabled сообщает, собирается ли телеметрия
func (tm *Manager) Enabled() bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.enabled
}

// Clear очищает все данные телеметрии
func (tm *Manager) Clear() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.data = make([]Sample, 0)
	tm.counters = make(map[string]int)
	tm.logger.Println("[Telemetry] Данные телеметрии очищены")
}
