package game

import (
	"log"
	"time"

	"x-physics/backend/internal/telemetry"
)

// StateBroadcaster интерфейс для отправки состояния клиентам
type StateBroadcaster interface {
	BroadcastState(step uint64, bodies []BodyState) error
}

// StreamSystem система рассылки состояния тел
type StreamSystem struct {
	name        string
	priority    int
	physics     *PhysicsSystem
	broadcaster StateBroadcaster
	logger      *log.Logger

	// Рассылаем каждые everyTicks тиков
	everyTicks uint64
	ticks      uint64
	sent       uint64
}

// NewStreamSystem создает новую систему рассылки состояния
func NewStreamSystem(physics *PhysicsSystem, broadcaster StateBroadcaster, everyTicks int, logger *log.Logger) *StreamSystem {
	if everyTicks <= 0 {
		everyTicks = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StreamSystem{
		name:        "StreamSystem",
		priority:    100, // Самый низкий приоритет - отправляем в конце тика
		physics:     physics,
		broadcaster: broadcaster,
		logger:      logger,
		everyTicks:  uint64(everyTicks),
	}
}

// Update отправляет снимок состояния клиентам
func (ss *StreamSystem) Update(deltaTime time.Duration) error {
	ss.ticks++
	if ss.ticks%ss.everyTicks != 0 || ss.broadcaster == nil {
		return nil
	}

	bodies := ss.physics.Snapshot()
	if err := ss.broadcaster.BroadcastState(ss.physics.StepCount(), bodies); err != nil {
		return err
	}
	ss.sent++

	// Логируем периодически для отладки
	if ss.sent%1000 == 0 {
		ss.logger.Printf("[StreamSystem] Отправлено снимков: %d, тел в последнем: %d", ss.sent, len(bodies))
	}

	return nil
}

// Sent возвращает число отправленных снимков
func (ss *StreamSystem) Sent() uint64 {
	return ss.sent
}

// GetName возвращает имя системы
func (ss *StreamSystem) GetName() string {
	return ss.name
}

// GetPriority возвращает приоритет системы
func (ss *StreamSystem) GetPriority() int {
	return ss.priority
}

// MetricsSystem система сбора метрик симуляции
type MetricsSystem struct {
	name      string
	priority  int
	ticker    *Ticker
	physics   *PhysicsSystem
	telemetry *telemetry.Manager
	logger    *log.Logger

	lastMetricsLog  time.Time
	metricsInterval time.Duration
}

// NewMetricsSystem создает новую систему сбора метрик. telemetry может быть nil.
func NewMetricsSystem(ticker *Ticker, physics *PhysicsSystem, tm *telemetry.Manager, logger *log.Logger) *MetricsSystem {
	if logger == nil {
		logger = log.Default()
	}
	return &MetricsSystem{
		name:            "MetricsSystem",
		priority:        200, // Очень низкий приоритет - метрики в самом конце
		ticker:          ticker,
		physics:         physics,
		telemetry:       tm,
		logger:          logger,
		lastMetricsLog:  time.Now(),
		metricsInterval: 30 * time.Second, // Логируем метрики каждые 30 секунд
	}
}

// Update собирает и логирует метрики
func (ms *MetricsSystem) Update(deltaTime time.Duration) error {
	if ms.telemetry != nil {
		ms.telemetry.PrintSummary()
	}

	now := time.Now()
	if now.Sub(ms.lastMetricsLog) < ms.metricsInterval {
		return nil
	}
	ms.lastMetricsLog = now

	stats := ms.ticker.GetStats()
	last := ms.physics.LastStats()

	ms.logger.Printf("[Metrics] TPS: %.1f/%d, Тиков: %d, Время тика: %v",
		stats["actual_tps"], stats["target_tps"], stats["tick_count"], stats["average_tick_time"])
	ms.logger.Printf("[Metrics] Шаг %d: сущностей %d, пар %d, манифолдов %d, контактов %d, импульс %.3f, время %v",
		last.Step, last.Entities, last.Pairs, last.Manifolds, last.Solver.Contacts, last.Solver.NormalImpulse, last.Duration)

	// Проверяем производительность
	if actualTPS, ok := stats["actual_tps"].(float64); ok && actualTPS < float64(ms.ticker.TargetTPS())*0.9 {
		ms.logger.Printf("[Metrics] ПРЕДУПРЕЖДЕНИЕ: TPS снижен до %.1f", actualTPS)
	}

	return nil
}

// SetInterval меняет период вывода метрик
func (ms *MetricsSystem) SetInterval(interval time.Duration) {
	ms.metricsInterval = interval
}

// GetName возвращает имя системы
func (ms *MetricsSystem) GetName() string {
	return ms.name
}

// GetPriority возвращает приоритет системы
func (ms *MetricsSystem) GetPriority() int {
	return ms.priority
}
