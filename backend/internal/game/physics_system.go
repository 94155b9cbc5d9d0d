package game

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/broadphase"
	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/ecs"
	"x-physics/backend/internal/events"
	"x-physics/backend/internal/geometry"
	"x-physics/backend/internal/jobs"
	"x-physics/backend/internal/physics"
	"x-physics/backend/internal/rigidbody"
	"x-physics/backend/internal/solver"
	"x-physics/backend/internal/telemetry"
	"x-physics/backend/internal/world"
)

var (
	ErrNilWorld     = errors.New("physics system: nil world")
	ErrNilScheduler = errors.New("physics system: nil scheduler")
)

// BodyState - состояние сущности после шага
type BodyState struct {
	Entity          ecs.Entity
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Static          bool
	Trigger         bool
}

// StepStats - итоги одного шага симуляции
type StepStats struct {
	Step      uint64
	Entities  int
	Pairs     int
	Manifolds int
	Triggers  int
	Skipped   int
	Solver    solver.Stats
	Duration  time.Duration
}

// PhysicsSystem выполняет конвейер шага: скорости, трансформации, широкая
// и узкая фазы, события, решатель, позы и запись в мир. Все поэлементные
// фазы раздаются планировщику, решатель работает в одном потоке.
type PhysicsSystem struct {
	name     string
	priority int

	world     *world.World
	scheduler *jobs.Scheduler
	bus       *events.Bus
	solver    *solver.Solver
	telemetry *telemetry.Manager
	logger    *log.Logger

	broadPhase      broadphase.Strategy
	collision       collision.Settings
	gravity         mgl64.Vec3
	timeStep        float64
	maxAngularSpeed float64
	waitPriority    jobs.WaitPriority
	logEvery        uint64

	paused     atomic.Bool
	singleStep atomic.Bool
	stepCount  atomic.Uint64

	// mu сериализует шаги и защищает broadPhase и lastStats
	mu        sync.Mutex
	lastStats StepStats
}

// NewPhysicsSystem собирает систему из конфигурации. nil config означает
// текущую глобальную конфигурацию, nil bus - новую шину.
func NewPhysicsSystem(w *world.World, scheduler *jobs.Scheduler, bus *events.Bus, config *physics.PhysicsConfig, logger *log.Logger) (*PhysicsSystem, error) {
	if w == nil {
		return nil, ErrNilWorld
	}
	if scheduler == nil {
		return nil, ErrNilScheduler
	}
	if logger == nil {
		logger = log.Default()
	}
	if config == nil {
		config = physics.GetPhysicsConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("physics system: %w", err)
	}
	if bus == nil {
		bus = events.NewBus(logger)
	}

	strategy, err := config.BroadPhaseStrategy()
	if err != nil {
		return nil, fmt.Errorf("physics system: %w", err)
	}
	priority, err := config.Priority()
	if err != nil {
		return nil, fmt.Errorf("physics system: %w", err)
	}

	return &PhysicsSystem{
		name:            "PhysicsSystem",
		priority:        15, // После ввода, до рассылки состояния
		world:           w,
		scheduler:       scheduler,
		bus:             bus,
		solver:          solver.New(config.SolverSettings()),
		logger:          logger,
		broadPhase:      strategy,
		collision:       config.CollisionSettings(),
		gravity:         config.Gravity,
		timeStep:        config.TimeStep,
		maxAngularSpeed: config.MaxAngularSpeed,
		waitPriority:    priority,
		logEvery:        uint64(10 / config.TimeStep), // Примерно раз в 10 секунд симуляции
	}, nil
}

// Update выполняет один фиксированный шаг. Прошедшее время игнорируется:
// тикер вызывает систему с частотой 1/TimeStep.
func (ps *PhysicsSystem) Update(deltaTime time.Duration) error {
	step := ps.singleStep.Swap(false)
	if ps.paused.Load() && !step {
		return nil
	}

	ps.FixedUpdate(ps.timeStep)
	return nil
}

// GetName возвращает имя системы
func (ps *PhysicsSystem) GetName() string {
	return ps.name
}

// GetPriority возвращает приоритет системы
func (ps *PhysicsSystem) GetPriority() int {
	return ps.priority
}

// SetPaused останавливает или возобновляет шаги
func (ps *PhysicsSystem) SetPaused(paused bool) {
	if ps.paused.Swap(paused) != paused {
		ps.logger.Printf("[PhysicsSystem] Пауза: %v (шаг %d)", paused, ps.StepCount())
	}
}

func (ps *PhysicsSystem) IsPaused() bool {
	return ps.paused.Load()
}

// RequestSingleStep разрешает один шаг на паузе. Флаг сбрасывается
// ближайшим Update.
func (ps *PhysicsSystem) RequestSingleStep() {
	ps.singleStep.Store(true)
}

// StepCount возвращает число выполненных шагов
func (ps *PhysicsSystem) StepCount() uint64 {
	return ps.stepCount.Load()
}

// SetBroadPhase подменяет стратегию широкой фазы начиная со следующего шага
func (ps *PhysicsSystem) SetBroadPhase(strategy broadphase.Strategy) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.broadPhase = strategy
	ps.logger.Printf("[PhysicsSystem] Широкая фаза: %s", strategy)
}

// BroadPhase возвращает текущую стратегию широкой фазы
func (ps *PhysicsSystem) BroadPhase() broadphase.Strategy {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.broadPhase
}

// SetTelemetry включает запись тел и контактных импульсов после каждого шага
func (ps *PhysicsSystem) SetTelemetry(tm *telemetry.Manager) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.telemetry = tm
}

// Bus возвращает шину событий системы
func (ps *PhysicsSystem) Bus() *events.Bus {
	return ps.bus
}

// TimeStep возвращает фиксированный шаг в секундах
func (ps *PhysicsSystem) TimeStep() float64 {
	return ps.timeStep
}

// LastStats возвращает итоги последнего шага
func (ps *PhysicsSystem) LastStats() StepStats {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.lastStats
}

// frame - представления компонентов на время одного шага
type frame struct {
	entities   []ecs.Entity
	positions  *ecs.Container[mgl64.Vec3]
	rotations  *ecs.Container[mgl64.Quat]
	scales     *ecs.Container[mgl64.Vec3]
	components *ecs.Container[*collision.PhysicsComponent]
	bodies     *ecs.Container[rigidbody.Rigidbody]
}

func newFrame(w *world.World, entities []ecs.Entity) *frame {
	return &frame{
		entities:   entities,
		positions:  ecs.NewContainer(w.Positions, entities),
		rotations:  ecs.NewContainer(w.Rotations, entities),
		scales:     ecs.NewContainer(w.Scales, entities),
		components: ecs.NewContainer(w.Physics, entities),
		bodies:     ecs.NewContainer(w.Rigidbodies, entities),
	}
}

func (f *frame) load(i int) {
	f.positions.Load(i)
	f.rotations.Load(i)
	f.scales.Load(i)
	f.components.Load(i)
	f.bodies.Load(i)
}

func (f *frame) rotation(i int) mgl64.Quat {
	if !f.rotations.Has(i) {
		return mgl64.QuatIdent()
	}
	return f.rotations.Read(i)
}

func (f *frame) scale(i int) mgl64.Vec3 {
	if !f.scales.Has(i) {
		return mgl64.Vec3{1, 1, 1}
	}
	return f.scales.Read(i)
}

// FixedUpdate выполняет один шаг длительностью dt секунд
func (ps *PhysicsSystem) FixedUpdate(dt float64) StepStats {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	start := time.Now()
	entities := ps.world.Query()
	n := len(entities)
	f := newFrame(ps.world, entities)

	// Выборка компонентов
	ps.run(n, f.load)

	// Скорости
	ps.run(n, func(i int) {
		if rb := f.bodies.At(i); rb != nil {
			rigidbody.IntegrateVelocity(rb, ps.gravity, dt)
		}
	})

	// Трансформации и ограничивающие объемы
	volumes := make([]geometry.AABB, n)
	ps.run(n, func(i int) {
		pc := f.components.Read(i)
		if pc == nil {
			volumes[i] = geometry.EmptyAABB()
			return
		}
		position, rotation := f.positions.Read(i), f.rotation(i)
		pc.UpdateTransform(collision.Transform(position, rotation, f.scale(i)))
		volumes[i] = pc.Bounds()

		if rb := f.bodies.At(i); rb != nil {
			rb.GlobalCentreOfMass = position
			rb.UpdateInertiaTensor(rotation)
		}
	})

	// Широкая фаза
	pairs := ps.broadPhase.CollectPairs(volumes)

	// Узкая фаза и события, до решателя
	stats := StepStats{Step: ps.stepCount.Load() + 1, Entities: n, Pairs: len(pairs)}
	manifolds := make([]*collision.Manifold, 0, len(pairs))
	for _, pair := range pairs {
		manifolds = ps.narrowPhase(f, pair, dt, manifolds, &stats)
	}

	// Решатель
	stats.Solver = ps.solver.Solve(manifolds, dt)
	stats.Manifolds = len(manifolds)

	// Позы
	positions := make([]mgl64.Vec3, n)
	rotations := make([]mgl64.Quat, n)
	moved := make([]bool, n)
	ps.run(n, func(i int) {
		rb := f.bodies.At(i)
		if rb == nil || rb.IsStatic() {
			return
		}
		positions[i], rotations[i] = f.positions.Read(i), f.rotation(i)
		rigidbody.IntegratePose(rb, &positions[i], &rotations[i], dt, ps.maxAngularSpeed)
		moved[i] = true
	})

	// Запись в мир
	ps.run(n, func(i int) {
		if !moved[i] {
			return
		}
		f.positions.Write(i, positions[i])
		f.rotations.Write(i, rotations[i])
	})
	f.positions.Submit()
	f.rotations.Submit()
	f.bodies.Submit()

	ps.stepCount.Add(1)
	stats.Duration = time.Since(start)
	ps.lastStats = stats

	if ps.telemetry != nil {
		ps.recordTelemetry(f, manifolds, stats.Step)
	}
	if ps.logEvery > 0 && stats.Step%ps.logEvery == 0 {
		ps.logger.Printf("[PhysicsSystem] Шаг %d: сущностей %d, пар %d, манифолдов %d, контактов %d, время %v",
			stats.Step, stats.Entities, stats.Pairs, stats.Manifolds, stats.Solver.Contacts, stats.Duration)
	}

	return stats
}

// narrowPhase проверяет все пары коллайдеров двух сущностей и добавляет
// манифолды для решателя
func (ps *PhysicsSystem) narrowPhase(f *frame, pair broadphase.Pair, dt float64, manifolds []*collision.Manifold, stats *StepStats) []*collision.Manifold {
	i, j := pair.A, pair.B
	pa, pb := f.components.Read(i), f.components.Read(j)
	if pa == nil || pb == nil {
		ps.logger.Printf("[PhysicsSystem] ПРЕДУПРЕЖДЕНИЕ: пара %d-%d без физического компонента пропущена",
			f.entities[i], f.entities[j])
		stats.Skipped++
		return manifolds
	}

	bodyA, bodyB := dynamicBody(f.bodies.At(i)), dynamicBody(f.bodies.At(j))
	trigger := pa.IsTrigger || pb.IsTrigger
	if !trigger && bodyA == nil && bodyB == nil {
		return manifolds
	}

	for _, ca := range pa.Colliders {
		for _, cb := range pb.Colliders {
			if ca == nil || cb == nil {
				ps.logger.Printf("[PhysicsSystem] ПРЕДУПРЕЖДЕНИЕ: пустой коллайдер у пары %d-%d",
					f.entities[i], f.entities[j])
				stats.Skipped++
				continue
			}

			result, ok := collision.Collide(ca, cb, ps.collision)
			if !ok {
				continue
			}

			m := collision.NewManifold(ca, cb, result)
			m.EntityA, m.EntityB = f.entities[i], f.entities[j]
			m.RigidbodyA, m.RigidbodyB = bodyA, bodyB
			m.IsTrigger = trigger

			if trigger {
				stats.Triggers++
				ps.bus.RaiseTrigger(events.TriggerEvent{Manifold: m, Timestep: dt, Step: stats.Step})
				continue
			}
			if m.InvolvesRigidbody() {
				ps.bus.RaiseCollision(events.CollisionEvent{Manifold: m, Timestep: dt, Step: stats.Step})
				manifolds = append(manifolds, m)
			}
		}
	}
	return manifolds
}

// dynamicBody возвращает nil для отсутствующих и статических тел
func dynamicBody(rb *rigidbody.Rigidbody) *rigidbody.Rigidbody {
	if rb == nil || rb.IsStatic() {
		return nil
	}
	return rb
}

func (ps *PhysicsSystem) recordTelemetry(f *frame, manifolds []*collision.Manifold, step uint64) {
	for i := range f.entities {
		if !f.bodies.Has(i) {
			continue
		}
		rb := f.bodies.Read(i)
		if rb.IsStatic() {
			continue
		}
		ps.telemetry.RecordBody(step, uint64(f.entities[i]), f.positions.Read(i), rb.Velocity, rb.AngularVelocity, rb.Mass)
	}

	for _, m := range manifolds {
		var impulse float64
		var point mgl64.Vec3
		for _, c := range m.Contacts {
			impulse += c.NormalImpulse
			point = point.Add(c.Position)
		}
		if len(m.Contacts) > 0 {
			point = point.Mul(1 / float64(len(m.Contacts)))
		}
		ps.telemetry.RecordContact(step, uint64(m.EntityA), uint64(m.EntityB), point, m.Normal, impulse)
	}
	ps.telemetry.Count("steps", 1)
}

// Snapshot возвращает состояние всех физических сущностей в порядке Query
func (ps *PhysicsSystem) Snapshot() []BodyState {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	entities := ps.world.Query()
	states := make([]BodyState, 0, len(entities))
	for _, e := range entities {
		state := BodyState{Entity: e, Rotation: mgl64.QuatIdent(), Static: true}
		state.Position, _ = ps.world.Positions.Get(e)
		if rotation, ok := ps.world.Rotations.Get(e); ok {
			state.Rotation = rotation
		}
		if rb, ok := ps.world.Rigidbodies.Get(e); ok {
			state.Velocity = rb.Velocity
			state.AngularVelocity = rb.AngularVelocity
			state.Static = rb.IsStatic()
		}
		if pc, ok := ps.world.Physics.Get(e); ok && pc != nil {
			state.Trigger = pc.IsTrigger
		}
		states = append(states, state)
	}
	return states
}

func (ps *PhysicsSystem) run(n int, work jobs.Work) {
	ps.scheduler.Run(n, work, ps.waitPriority)
}
