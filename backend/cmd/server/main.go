package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"x-physics/backend/internal/events"
	"x-physics/backend/internal/game"
	"x-physics/backend/internal/jobs"
	"x-physics/backend/internal/physics"
	"x-physics/backend/internal/telemetry"
	"x-physics/backend/internal/transport/control"
	"x-physics/backend/internal/transport/ws"
	"x-physics/backend/internal/world"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации физики")
	wsAddr := flag.String("ws", ":8080", "адрес WebSocket сервера")
	grpcAddr := flag.String("grpc", ":50051", "адрес gRPC сервиса управления, пустой отключает")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Конфигурация физики
	config := physics.DefaultPhysicsConfig()
	if *configPath != "" {
		loaded, err := physics.LoadPhysicsConfig(*configPath)
		if err != nil {
			logger.Fatalf("[Main] Ошибка загрузки конфигурации: %v", err)
		}
		config = loaded
	}
	if err := config.Validate(); err != nil {
		logger.Fatalf("[Main] Неверная конфигурация: %v", err)
	}
	physics.SetPhysicsConfig(config)

	// Пул задач
	scheduler := jobs.NewScheduler(config.Workers, logger)
	defer scheduler.Close()

	// Мир и демонстрационная сцена
	w := world.NewWorld()
	factory := world.NewFactory(w, config.CoplanarEpsilon, logger)
	if err := world.NewSceneBuilder(factory).Build(world.DefaultSceneConfig()); err != nil {
		logger.Fatalf("[Main] Ошибка создания сцены: %v", err)
	}

	// Физика
	bus := events.NewBus(logger)
	physicsSystem, err := game.NewPhysicsSystem(w, scheduler, bus, config, logger)
	if err != nil {
		logger.Fatalf("[Main] Ошибка создания физики: %v", err)
	}
	bus.OnTrigger(func(event events.TriggerEvent) {
		m := event.Manifold
		logger.Printf("[Main] Триггер: %d и %d на шаге %d", m.EntityA, m.EntityB, event.Step)
	})

	tm := telemetry.NewManager(logger)
	tm.SetPrintInterval(30 * time.Second)
	physicsSystem.SetTelemetry(tm)

	// WebSocket сервер
	wsServer := ws.NewServer(physicsSystem, w, logger)
	wsServer.Attach(bus)

	// Тикер и системы
	timeStep := time.Duration(config.TimeStep * float64(time.Second))
	ticker := game.NewTicker(timeStep, logger)
	ticker.RegisterSystem(physicsSystem)
	ticker.RegisterSystem(game.NewStreamSystem(physicsSystem, wsServer, config.StreamEveryTicks, logger))
	ticker.RegisterSystem(game.NewMetricsSystem(ticker, physicsSystem, tm, logger))

	httpServer := &http.Server{
		Addr:    *wsAddr,
		Handler: wsServer.Handler(),
	}
	go func() {
		logger.Printf("[Main] WebSocket сервер запущен на %s/ws", *wsAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[Main] Ошибка HTTP сервера: %v", err)
		}
	}()

	var grpcServer *grpc.Server
	if *grpcAddr != "" {
		listener, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			logger.Fatalf("[Main] Ошибка прослушивания %s: %v", *grpcAddr, err)
		}
		grpcServer = grpc.NewServer()
		control.RegisterControlService(grpcServer, control.NewControlServer(physicsSystem, logger))
		go func() {
			logger.Printf("[Main] gRPC сервис управления запущен на %s", *grpcAddr)
			if err := grpcServer.Serve(listener); err != nil {
				logger.Printf("[Main] gRPC сервер остановлен: %v", err)
			}
		}()
	}

	if err := ticker.Start(); err != nil {
		logger.Fatalf("[Main] Ошибка запуска тикера: %v", err)
	}

	// Ожидаем сигнал завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Printf("[Main] Завершение работы")
	ticker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[Main] Ошибка остановки HTTP сервера: %v", err)
	}
	wsServer.Close()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}
