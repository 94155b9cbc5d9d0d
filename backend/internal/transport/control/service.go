// Package control - gRPC сервис управления симуляцией. Сообщения
// передаются как google.protobuf.Struct, поэтому сгенерированный код не нужен.
package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "xphysics.Control"

// Полные имена методов
const (
	MethodPause         = "/" + ServiceName + "/Pause"
	MethodResume        = "/" + ServiceName + "/Resume"
	MethodStep          = "/" + ServiceName + "/Step"
	MethodGetState      = "/" + ServiceName + "/GetState"
	MethodSetBroadPhase = "/" + ServiceName + "/SetBroadPhase"
)

// ControlService - серверная сторона сервиса
type ControlService interface {
	Pause(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Resume(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Step(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetBroadPhase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type call func(srv ControlService, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryHandler повторяет то, что protoc-gen-go-grpc генерирует для
// каждого унарного метода
func unaryHandler(fullMethod string, fn call) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(ControlService), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(srv.(ControlService), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc - описание сервиса для grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Pause",
			Handler:    unaryHandler(MethodPause, ControlService.Pause),
		},
		{
			MethodName: "Resume",
			Handler:    unaryHandler(MethodResume, ControlService.Resume),
		},
		{
			MethodName: "Step",
			Handler:    unaryHandler(MethodStep, ControlService.Step),
		},
		{
			MethodName: "GetState",
			Handler:    unaryHandler(MethodGetState, ControlService.GetState),
		},
		{
			MethodName: "SetBroadPhase",
			Handler:    unaryHandler(MethodSetBroadPhase, ControlService.SetBroadPhase),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xphysics/control",
}

// RegisterControlService регистрирует реализацию на gRPC сервере
func RegisterControlService(s grpc.ServiceRegistrar, srv ControlService) {
	s.RegisterService(&ServiceDesc, srv)
}
