package physics

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"

	"x-physics/backend/internal/broadphase"
	"x-physics/backend/internal/collision"
	"x-physics/backend/internal/geometry"
	"x-physics/backend/internal/jobs"
	"x-physics/backend/internal/rigidbody"
	"x-physics/backend/internal/solver"
)

var ErrInvalidConfig = errors.New("physics: invalid config")

// PhysicsConfig содержит настройки симуляции
type PhysicsConfig struct {
	// Gravity - ускорение свободного падения
	Gravity mgl64.Vec3 `yaml:"gravity"`

	// TimeStep - фиксированный шаг симуляции в секундах
	TimeStep float64 `yaml:"time_step"`

	// SolverIterations - число проходов последовательных импульсов
	SolverIterations int `yaml:"solver_iterations"`

	// Baumgarte - доля проникновения, исправляемая за шаг
	Baumgarte float64 `yaml:"baumgarte"`

	// PenetrationSlop - допустимое проникновение без коррекции
	PenetrationSlop float64 `yaml:"penetration_slop"`

	// Restitution - коэффициент восстановления (отскока)
	Restitution float64 `yaml:"restitution"`

	// RestitutionThreshold - скорость сближения, ниже которой отскока нет
	RestitutionThreshold float64 `yaml:"restitution_threshold"`

	// Friction - коэффициент трения Кулона
	Friction float64 `yaml:"friction"`

	// MaxAngularSpeed - ограничение угловой скорости, рад/с
	MaxAngularSpeed float64 `yaml:"max_angular_speed"`

	// CoplanarEpsilon - допуск слияния копланарных граней при построении мешей
	CoplanarEpsilon float64 `yaml:"coplanar_epsilon"`

	// TieEpsilon - допуск выбора оси SAT
	TieEpsilon float64 `yaml:"tie_epsilon"`

	// ContactTolerance - допуск точек контакта над опорной гранью
	ContactTolerance float64 `yaml:"contact_tolerance"`

	BroadPhase BroadPhaseConfig `yaml:"broad_phase"`

	// Workers - размер пула задач, 0 означает число CPU
	Workers int `yaml:"workers"`

	// WaitPriority - sleep, normal или real_time
	WaitPriority string `yaml:"wait_priority"`

	// StreamEveryTicks - как часто рассылать состояние клиентам
	StreamEveryTicks int `yaml:"stream_every_ticks"`
}

// BroadPhaseConfig выбирает стратегию широкой фазы
type BroadPhaseConfig struct {
	Kind     string     `yaml:"kind"`
	CellSize mgl64.Vec3 `yaml:"cell_size"`
}

// GlobalPhysicsConfig - глобальная конфигурация физики
var GlobalPhysicsConfig *PhysicsConfig
var configMutex sync.RWMutex

// DefaultPhysicsConfig возвращает конфигурацию по умолчанию
func DefaultPhysicsConfig() *PhysicsConfig {
	s := solver.DefaultSettings()
	c := collision.DefaultSettings()

	return &PhysicsConfig{
		Gravity:              mgl64.Vec3{0, -9.81, 0},
		TimeStep:             0.02, // 50 TPS
		SolverIterations:     s.Iterations,
		Baumgarte:            s.Baumgarte,
		PenetrationSlop:      s.PenetrationSlop,
		Restitution:          s.Restitution,
		RestitutionThreshold: s.RestitutionThreshold,
		Friction:             s.Friction,
		MaxAngularSpeed:      rigidbody.DefaultMaxAngularSpeed,
		CoplanarEpsilon:      geometry.DefaultEpsilon,
		TieEpsilon:           c.TieEpsilon,
		ContactTolerance:     c.ContactTolerance,
		BroadPhase: BroadPhaseConfig{
			Kind:     broadphase.UniformGrid.String(),
			CellSize: mgl64.Vec3{1, 1, 1},
		},
		Workers:          0,
		WaitPriority:     jobs.WaitNormal.String(),
		StreamEveryTicks: 5,
	}
}

// LoadPhysicsConfig читает YAML поверх значений по умолчанию
func LoadPhysicsConfig(path string) (*PhysicsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read physics config: %w", err)
	}
	return ParsePhysicsConfig(data)
}

// ParsePhysicsConfig разбирает YAML поверх значений по умолчанию
func ParsePhysicsConfig(data []byte) (*PhysicsConfig, error) {
	config := DefaultPhysicsConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse physics config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate проверяет значения конфигурации
func (c *PhysicsConfig) Validate() error {
	switch {
	case c.TimeStep <= 0:
		return fmt.Errorf("%w: time_step must be positive, got %v", ErrInvalidConfig, c.TimeStep)
	case c.SolverIterations <= 0:
		return fmt.Errorf("%w: solver_iterations must be positive, got %d", ErrInvalidConfig, c.SolverIterations)
	case c.Baumgarte < 0 || c.Baumgarte > 1:
		return fmt.Errorf("%w: baumgarte must be in [0, 1], got %v", ErrInvalidConfig, c.Baumgarte)
	case c.Restitution < 0 || c.Restitution > 1:
		return fmt.Errorf("%w: restitution must be in [0, 1], got %v", ErrInvalidConfig, c.Restitution)
	case c.PenetrationSlop < 0:
		return fmt.Errorf("%w: penetration_slop must be non-negative, got %v", ErrInvalidConfig, c.PenetrationSlop)
	case c.RestitutionThreshold < 0:
		return fmt.Errorf("%w: restitution_threshold must be non-negative, got %v", ErrInvalidConfig, c.RestitutionThreshold)
	case c.Friction < 0:
		return fmt.Errorf("%w: friction must be non-negative, got %v", ErrInvalidConfig, c.Friction)
	case c.CoplanarEpsilon <= 0:
		return fmt.Errorf("%w: coplanar_epsilon must be positive, got %v", ErrInvalidConfig, c.CoplanarEpsilon)
	case c.TieEpsilon < 0:
		return fmt.Errorf("%w: tie_epsilon must be non-negative, got %v", ErrInvalidConfig, c.TieEpsilon)
	case c.ContactTolerance < 0:
		return fmt.Errorf("%w: contact_tolerance must be non-negative, got %v", ErrInvalidConfig, c.ContactTolerance)
	case c.MaxAngularSpeed <= 0:
		return fmt.Errorf("%w: max_angular_speed must be positive, got %v", ErrInvalidConfig, c.MaxAngularSpeed)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfig, c.Workers)
	case c.StreamEveryTicks <= 0:
		return fmt.Errorf("%w: stream_every_ticks must be positive, got %d", ErrInvalidConfig, c.StreamEveryTicks)
	}

	if _, err := c.BroadPhaseStrategy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Priority(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SolverSettings переводит конфигурацию в параметры решателя
func (c *PhysicsConfig) SolverSettings() solver.Settings {
	return solver.Settings{
		Iterations:           c.SolverIterations,
		Baumgarte:            c.Baumgarte,
		PenetrationSlop:      c.PenetrationSlop,
		Restitution:          c.Restitution,
		RestitutionThreshold: c.RestitutionThreshold,
		Friction:             c.Friction,
	}
}

// CollisionSettings переводит конфигурацию в допуски узкой фазы
func (c *PhysicsConfig) CollisionSettings() collision.Settings {
	s := collision.DefaultSettings()
	s.TieEpsilon = c.TieEpsilon
	s.ContactTolerance = c.ContactTolerance
	return s
}

// BroadPhaseStrategy собирает стратегию широкой фазы
func (c *PhysicsConfig) BroadPhaseStrategy() (broadphase.Strategy, error) {
	kind, err := broadphase.ParseKind(c.BroadPhase.Kind)
	if err != nil {
		return broadphase.Strategy{}, err
	}
	if kind == broadphase.UniformGrid {
		return broadphase.NewUniformGrid(c.BroadPhase.CellSize), nil
	}
	return broadphase.NewBruteForce(), nil
}

// Priority возвращает приоритет ожидания задач
func (c *PhysicsConfig) Priority() (jobs.WaitPriority, error) {
	return jobs.ParseWaitPriority(c.WaitPriority)
}

// Clone возвращает глубокую копию
func (c *PhysicsConfig) Clone() *PhysicsConfig {
	clone := &PhysicsConfig{}
	if err := copier.CopyWithOption(clone, c, copier.Option{DeepCopy: true}); err != nil {
		// Структура без интерфейсов и каналов, copier здесь не ошибается
		copied := *c
		return &copied
	}
	return clone
}

// GetPhysicsConfig возвращает копию текущей конфигурации физики
func GetPhysicsConfig() *PhysicsConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if GlobalPhysicsConfig == nil {
		return DefaultPhysicsConfig()
	}

	// Создаем копию, чтобы избежать гонок данных
	return GlobalPhysicsConfig.Clone()
}

// SetPhysicsConfig устанавливает новую конфигурацию физики
func SetPhysicsConfig(config *PhysicsConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()

	// Создаем копию для предотвращения гонок данных
	GlobalPhysicsConfig = config.Clone()
}

// Initialize инициализирует глобальную конфигурацию физики
func Initialize() {
	if GlobalPhysicsConfig == nil {
		SetPhysicsConfig(DefaultPhysicsConfig())
	}
}

func init() {
	Initialize()
}
