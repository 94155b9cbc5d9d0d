package telemetry

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func newTestManager() *Manager {
	return NewManager(log.New(io.Discard, "", 0))
}

func TestManager_RingBuffer(t *testing.T) {
	tm := newTestManager()

	for i := 0; i < tm.maxEntries+50; i++ {
		tm.RecordBody(uint64(i), 1, mgl64.Vec3{}, mgl64.Vec3{3, 4, 0}, mgl64.Vec3{}, 1)
	}

	samples := tm.Samples()
	if len(samples) != tm.maxEntries {
		t.Fatalf("Expected %d samples, got %d", tm.maxEntries, len(samples))
	}
	if samples[0].Step != 50 {
		t.Errorf("Expected oldest step 50, got %d", samples[0].Step)
	}
	if samples[len(samples)-1].Speed != 5 {
		t.Errorf("Expected speed 5, got %v", samples[len(samples)-1].Speed)
	}
	if got := tm.Counters()[KindBody]; got != tm.maxEntries+50 {
		t.Errorf("Expected body counter %d, got %d", tm.maxEntries+50, got)
	}
}

func TestManager_Disabled(t *testing.T) {
	tm := newTestManager()
	tm.SetEnabled(false)

	tm.RecordContact(1, 1, 2, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, 1)
	tm.Count("steps", 1)

	if len(tm.Samples()) != 0 || len(tm.Counters()) != 0 {
		t.Error("Disabled manager must not record")
	}
	if tm.PrintSummary() {
		t.Error("Disabled manager must not print")
	}
}

func TestManager_PrintSummaryIsRateLimited(t *testing.T) {
	tm := newTestManager()
	tm.SetPrintInterval(time.Hour)
	tm.Count("steps", 3)

	if tm.PrintSummary() {
		t.Error("Summary must wait for the interval")
	}

	tm.SetPrintInterval(0)
	if !tm.PrintSummary() {
		t.Fatal("Expected summary to be printed")
	}
	if len(tm.Counters()) != 0 {
		t.Error("Counters must reset after summary")
	}
}

func TestManager_JSON(t *testing.T) {
	tm := newTestManager()
	tm.RecordContact(7, 1, 2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, 0.5)

	data, err := tm.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	var decoded []Sample
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Kind != KindContact || decoded[0].Other != 2 || decoded[0].Impulse != 0.5 {
		t.Errorf("Unexpected samples %+v", decoded)
	}

	tm.Clear()
	if len(tm.Samples()) != 0 {
		t.Error("Clear must drop samples")
	}
}
