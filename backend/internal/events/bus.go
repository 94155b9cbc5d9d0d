package events

import (
	"log"
	"sync"

	"x-physics/backend/internal/collision"
)

// CollisionEvent рассылается один раз на каждый сталкивающийся
// манифолд без триггера, до работы решателя
type CollisionEvent struct {
	Manifold *collision.Manifold
	Timestep float64
	Step     uint64
}

// TriggerEvent рассылается один раз на каждый манифолд с триггером
type TriggerEvent struct {
	Manifold *collision.Manifold
	Timestep float64
	Step     uint64
}

type CollisionHandler func(CollisionEvent)

type TriggerHandler func(TriggerEvent)

// Bus - синхронная шина событий физики. Обработчики вызываются в потоке
// физики, манифолд валиден только внутри обработчика.
type Bus struct {
	collisionHandlers []CollisionHandler
	triggerHandlers   []TriggerHandler
	mu                sync.RWMutex
	logger            *log.Logger
}

func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{logger: logger}
}

// OnCollision подписывает обработчик на столкновения
func (b *Bus) OnCollision(handler CollisionHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collisionHandlers = append(b.collisionHandlers, handler)
}

// OnTrigger подписывает обработчик на срабатывания триггеров
func (b *Bus) OnTrigger(handler TriggerHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggerHandlers = append(b.triggerHandlers, handler)
}

func (b *Bus) RaiseCollision(event CollisionEvent) {
	b.mu.RLock()
	handlers := b.collisionHandlers
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(func() { h(event) })
	}
}

func (b *Bus) RaiseTrigger(event TriggerEvent) {
	b.mu.RLock()
	handlers := b.triggerHandlers
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(func() { h(event) })
	}
}

// safeCall не дает панике подписчика остановить шаг симуляции
func (b *Bus) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[EventBus] Паника в обработчике: %v", r)
		}
	}()
	fn()
}
