package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-physics/backend/internal/transport/control"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Использование: ctl [-addr host:port] pause|resume|step|state|broadphase <kind> [cell]\n")
	flag.PrintDefaults()
}

func main() {
	addr := flag.String("addr", "localhost:50051", "адрес gRPC сервиса управления")
	timeout := flag.Duration("timeout", 5*time.Second, "таймаут вызова")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	client, err := control.NewControlClient(*addr)
	if err != nil {
		log.Fatalf("Ошибка подключения: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var st control.Status
	switch flag.Arg(0) {
	case "pause":
		st, err = client.Pause(ctx)
	case "resume":
		st, err = client.Resume(ctx)
	case "step":
		st, err = client.Step(ctx)
	case "state":
		var bodies []control.Body
		st, bodies, err = client.GetState(ctx)
		for _, b := range bodies {
			kind := "dynamic"
			if b.Trigger {
				kind = "trigger"
			} else if b.Static {
				kind = "static"
			}
			fmt.Printf("%4d %-8s pos=(%.3f, %.3f, %.3f) vel=(%.3f, %.3f, %.3f)\n",
				b.ID, kind, b.Position[0], b.Position[1], b.Position[2], b.Velocity[0], b.Velocity[1], b.Velocity[2])
		}
	case "broadphase":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		cell := 1.0
		if flag.NArg() > 2 {
			if _, scanErr := fmt.Sscanf(flag.Arg(2), "%g", &cell); scanErr != nil {
				log.Fatalf("Неверный размер ячейки %q: %v", flag.Arg(2), scanErr)
			}
		}
		st, err = client.SetBroadPhase(ctx, flag.Arg(1), mgl64.Vec3{cell, cell, cell})
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Ошибка вызова %s: %v", flag.Arg(0), err)
	}

	fmt.Printf("шаг %d, пауза %v, широкая фаза %s\n", st.Step, st.Paused, st.BroadPhase)
}
