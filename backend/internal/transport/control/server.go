package control

import (
	"context"
	"errors"
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"x-physics/backend/internal/broadphase"
	"x-physics/backend/internal/game"
)

// Simulation - то, чем управляет сервис
type Simulation interface {
	SetPaused(paused bool)
	IsPaused() bool
	RequestSingleStep()
	StepCount() uint64
	Snapshot() []game.BodyState
	SetBroadPhase(strategy broadphase.Strategy)
	BroadPhase() broadphase.Strategy
}

// ControlServer реализует ControlService поверх симуляции
type ControlServer struct {
	sim    Simulation
	logger *log.Logger
}

// NewControlServer создает новый экземпляр сервиса
func NewControlServer(sim Simulation, logger *log.Logger) *ControlServer {
	if logger == nil {
		logger = log.Default()
	}
	return &ControlServer{
		sim:    sim,
		logger: logger,
	}
}

func (s *ControlServer) Pause(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.sim.SetPaused(true)
	s.logger.Printf("[Control] Пауза на шаге %d", s.sim.StepCount())
	return s.status()
}

func (s *ControlServer) Resume(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.sim.SetPaused(false)
	s.logger.Printf("[Control] Продолжение с шага %d", s.sim.StepCount())
	return s.status()
}

// Step ставит симуляцию на паузу и разрешает один шаг
func (s *ControlServer) Step(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if !s.sim.IsPaused() {
		s.sim.SetPaused(true)
	}
	s.sim.RequestSingleStep()
	return s.status()
}

// GetState возвращает статус и снимок всех тел
func (s *ControlServer) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snapshot := s.sim.Snapshot()
	bodies := make([]interface{}, 0, len(snapshot))
	for _, b := range snapshot {
		bodies = append(bodies, map[string]interface{}{
			"id":               float64(b.Entity),
			"position":         vecList(b.Position),
			"rotation":         []interface{}{b.Rotation.V[0], b.Rotation.V[1], b.Rotation.V[2], b.Rotation.W},
			"velocity":         vecList(b.Velocity),
			"angular_velocity": vecList(b.AngularVelocity),
			"static":           b.Static,
			"trigger":          b.Trigger,
		})
	}

	fields := s.statusFields()
	fields["bodies"] = bodies
	reply, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode state: %v", err)
	}
	return reply, nil
}

// SetBroadPhase меняет стратегию широкой фазы.
// Запрос: {"kind": "uniform_grid", "cell_size": [x, y, z]}.
func (s *ControlServer) SetBroadPhase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	strategy, err := parseStrategy(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.sim.SetBroadPhase(strategy)
	s.logger.Printf("[Control] Широкая фаза: %s", strategy)
	return s.status()
}

func (s *ControlServer) statusFields() map[string]interface{} {
	return map[string]interface{}{
		"step":        float64(s.sim.StepCount()),
		"paused":      s.sim.IsPaused(),
		"broad_phase": s.sim.BroadPhase().Kind().String(),
	}
}

func (s *ControlServer) status() (*structpb.Struct, error) {
	reply, err := structpb.NewStruct(s.statusFields())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return reply, nil
}

var errCellSize = errors.New("cell_size must be a list of 3 numbers")

func parseStrategy(req *structpb.Struct) (broadphase.Strategy, error) {
	fields := req.GetFields()
	kind, err := broadphase.ParseKind(fields["kind"].GetStringValue())
	if err != nil {
		return broadphase.Strategy{}, err
	}
	if kind == broadphase.BruteForce {
		return broadphase.NewBruteForce(), nil
	}

	var cellSize mgl64.Vec3
	if raw, ok := fields["cell_size"]; ok {
		values := raw.GetListValue().GetValues()
		if len(values) != 3 {
			return broadphase.Strategy{}, errCellSize
		}
		for i, v := range values {
			if _, isNumber := v.GetKind().(*structpb.Value_NumberValue); !isNumber {
				return broadphase.Strategy{}, errCellSize
			}
			cellSize[i] = v.GetNumberValue()
		}
	}
	return broadphase.NewUniformGrid(cellSize), nil
}

func vecList(v mgl64.Vec3) []interface{} {
	return []interface{}{v[0], v[1], v[2]}
}
