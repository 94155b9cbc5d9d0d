package control

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"x-physics/backend/internal/broadphase"
	"x-physics/backend/internal/game"
	"x-physics/backend/internal/jobs"
	"x-physics/backend/internal/world"
)

func newTestControl(t *testing.T) (*game.PhysicsSystem, *ControlClient) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	scheduler := jobs.NewScheduler(2, logger)
	t.Cleanup(scheduler.Close)

	w := world.NewWorld()
	factory := world.NewFactory(w, 0, logger)
	factory.CreatePlane(mgl64.Vec3{0, 1, 0}, 0)
	if _, err := factory.CreateBox(mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent(), mgl64.Vec3{0.5, 0.5, 0.5}, 1, ""); err != nil {
		t.Fatal(err)
	}

	ps, err := game.NewPhysicsSystem(w, scheduler, nil, nil, logger)
	if err != nil {
		t.Fatal(err)
	}

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterControlService(server, NewControlServer(ps, logger))
	go server.Serve(listener)
	t.Cleanup(server.Stop)

	client, err := NewControlClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.Close)

	return ps, client
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestControl_PauseStepResume(t *testing.T) {
	ps, client := newTestControl(t)
	ctx := testContext(t)

	st, err := client.Pause(ctx)
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if !st.Paused || st.Step != 0 || st.BroadPhase != "brute_force" && st.BroadPhase != "uniform_grid" {
		t.Errorf("Unexpected status %+v", st)
	}

	// На паузе шаги не выполняются
	ps.Update(20 * time.Millisecond)
	if ps.StepCount() != 0 {
		t.Fatalf("Paused system advanced to step %d", ps.StepCount())
	}

	if _, err := client.Step(ctx); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	ps.Update(20 * time.Millisecond)
	ps.Update(20 * time.Millisecond)
	if ps.StepCount() != 1 {
		t.Errorf("Expected exactly one step, got %d", ps.StepCount())
	}

	st, err = client.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if st.Paused || st.Step != 1 {
		t.Errorf("Unexpected status after resume %+v", st)
	}
}

func TestControl_StepPausesRunningSimulation(t *testing.T) {
	ps, client := newTestControl(t)

	st, err := client.Step(testContext(t))
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !st.Paused || !ps.IsPaused() {
		t.Error("Step must pause a running simulation")
	}
}

func TestControl_GetState(t *testing.T) {
	ps, client := newTestControl(t)
	ps.FixedUpdate(ps.TimeStep())

	st, bodies, err := client.GetState(testContext(t))
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if st.Step != 1 {
		t.Errorf("Expected step 1, got %d", st.Step)
	}
	if len(bodies) != 2 {
		t.Fatalf("Expected 2 bodies, got %d", len(bodies))
	}

	plane, box := bodies[0], bodies[1]
	if !plane.Static || plane.ID != 1 {
		t.Errorf("Unexpected plane %+v", plane)
	}
	if box.Static || box.ID != 2 {
		t.Errorf("Unexpected box %+v", box)
	}
	if box.Velocity.Y() >= 0 || box.Position.Y() >= 5 {
		t.Errorf("Box must be falling after one step: %+v", box)
	}
}

func TestControl_SetBroadPhase(t *testing.T) {
	ps, client := newTestControl(t)
	ctx := testContext(t)

	tests := []struct {
		name     string
		kind     string
		cellSize mgl64.Vec3
		want     broadphase.Kind
		code     codes.Code
	}{
		{name: "grid", kind: "uniform_grid", cellSize: mgl64.Vec3{2, 2, 2}, want: broadphase.UniformGrid},
		{name: "brute force", kind: "brute_force", want: broadphase.BruteForce},
		{name: "unknown", kind: "octree", code: codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := client.SetBroadPhase(ctx, tt.kind, tt.cellSize)
			if tt.code != codes.OK {
				if status.Code(err) != tt.code {
					t.Fatalf("Expected code %v, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetBroadPhase failed: %v", err)
			}
			if st.BroadPhase != tt.want.String() || ps.BroadPhase().Kind() != tt.want {
				t.Errorf("Expected %v, got status %+v and strategy %v", tt.want, st, ps.BroadPhase())
			}
			if tt.want == broadphase.UniformGrid && ps.BroadPhase().CellSize() != tt.cellSize {
				t.Errorf("Expected cell size %v, got %v", tt.cellSize, ps.BroadPhase().CellSize())
			}
		})
	}
}
