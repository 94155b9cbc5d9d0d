package control

import (
	"context"
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Status - состояние симуляции в ответах сервиса
type Status struct {
	Step       uint64
	Paused     bool
	BroadPhase string
}

// Body - тело в ответе GetState
type Body struct {
	ID       uint64
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Static   bool
	Trigger  bool
}

// ControlClient - клиент сервиса управления
type ControlClient struct {
	conn *grpc.ClientConn
}

// NewControlClient создает клиент. Без опций используется соединение без TLS.
func NewControlClient(target string, opts ...grpc.DialOption) (*ControlClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &ControlClient{conn: conn}, nil
}

// Close закрывает соединение с сервером
func (c *ControlClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Printf("[Control] Ошибка при закрытии соединения: %v", err)
		}
	}
}

func (c *ControlClient) Pause(ctx context.Context) (Status, error) {
	return c.invokeStatus(ctx, MethodPause, nil)
}

func (c *ControlClient) Resume(ctx context.Context) (Status, error) {
	return c.invokeStatus(ctx, MethodResume, nil)
}

func (c *ControlClient) Step(ctx context.Context) (Status, error) {
	return c.invokeStatus(ctx, MethodStep, nil)
}

// SetBroadPhase переключает стратегию. cellSize учитывается только для сетки.
func (c *ControlClient) SetBroadPhase(ctx context.Context, kind string, cellSize mgl64.Vec3) (Status, error) {
	return c.invokeStatus(ctx, MethodSetBroadPhase, map[string]interface{}{
		"kind":      kind,
		"cell_size": []interface{}{cellSize[0], cellSize[1], cellSize[2]},
	})
}

// GetState возвращает статус и тела
func (c *ControlClient) GetState(ctx context.Context) (Status, []Body, error) {
	reply, err := c.invoke(ctx, MethodGetState, nil)
	if err != nil {
		return Status{}, nil, err
	}

	values := reply.GetFields()["bodies"].GetListValue().GetValues()
	bodies := make([]Body, 0, len(values))
	for _, v := range values {
		fields := v.GetStructValue().GetFields()
		bodies = append(bodies, Body{
			ID:       uint64(fields["id"].GetNumberValue()),
			Position: vecValue(fields["position"]),
			Velocity: vecValue(fields["velocity"]),
			Static:   fields["static"].GetBoolValue(),
			Trigger:  fields["trigger"].GetBoolValue(),
		})
	}
	return parseStatus(reply), bodies, nil
}

func (c *ControlClient) invokeStatus(ctx context.Context, method string, fields map[string]interface{}) (Status, error) {
	reply, err := c.invoke(ctx, method, fields)
	if err != nil {
		return Status{}, err
	}
	return parseStatus(reply), nil
}

func (c *ControlClient) invoke(ctx context.Context, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseStatus(reply *structpb.Struct) Status {
	fields := reply.GetFields()
	return Status{
		Step:       uint64(fields["step"].GetNumberValue()),
		Paused:     fields["paused"].GetBoolValue(),
		BroadPhase: fields["broad_phase"].GetStringValue(),
	}
}

func vecValue(v *structpb.Value) mgl64.Vec3 {
	var out mgl64.Vec3
	for i, item := range v.GetListValue().GetValues() {
		if i >= 3 {
			break
		}
		out[i] = item.GetNumberValue()
	}
	return out
}
