package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/petri-sim/petri/agent"
	"github.com/petri-sim/petri/config"
	"github.com/petri-sim/petri/diffusion"
)

func TestComputeDistribution(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	mean, p10, p50, p90 := ComputeDistribution(values)

	if math.Abs(mean-5.5) > 0.001 {
		t.Errorf("mean = %v, want 5.5", mean)
	}
	if p10 > p50 || p50 > p90 {
		t.Errorf("quantiles not ordered: p10=%v p50=%v p90=%v", p10, p50, p90)
	}
	if p50 < 5 || p50 > 6 {
		t.Errorf("p50 = %v, want around 5.5", p50)
	}
}

func TestComputeDistributionEmpty(t *testing.T) {
	mean, p10, p50, p90 := ComputeDistribution(nil)
	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty input should return all zeros")
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("NewOutputManager(\"\") failed: %v", err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}

	// all writes on the nil manager are no-ops
	if err := om.WriteStats(StepStats{}); err != nil {
		t.Errorf("WriteStats on nil manager: %v", err)
	}
	if err := om.WritePerf(PerfStats{}, 0); err != nil {
		t.Errorf("WritePerf on nil manager: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil manager: %v", err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := om.WriteStats(StepStats{Step: 10, Agents: 5}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteStats(StepStats{Step: 20, Agents: 7}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("stats.csv has %d lines, want header plus 2 records:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "step,") {
		t.Errorf("header = %q, want it to start with step,", lines[0])
	}
	if !strings.HasPrefix(lines[1], "10,5,") {
		t.Errorf("first record = %q, want prefix 10,5,", lines[1])
	}
}

func TestWriteLatticeSnapshot(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	dg := diffusion.NewEulerGrid(0, "oxygen", 0.4, 0, 4, config.BoundOpen, false)
	dg.Initialize(0, 40)
	dg.AddInitializer(diffusion.Uniform(1.5))
	dg.RunInitializers()

	if err := om.WriteLatticeSnapshot(dg, 30); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "lattice_oxygen_000030.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1+4*4*4 {
		t.Fatalf("snapshot has %d lines, want header plus 64 boxes", len(lines))
	}
	if !strings.HasSuffix(lines[1], ",1.5") {
		t.Errorf("first box record = %q, want value 1.5", lines[1])
	}
}

func TestCollectorEmitsAtWindowBoundary(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	col := NewCollector(2, om, false)

	c := agent.NewCell(r3.Vec{})
	c.SetDiameter(10)
	agents := []agent.Agent{c}

	col.RecordStep(1, agents, 1, 0, nil) // accumulates only
	col.RecordStep(2, agents, 2, 1, nil) // window boundary: emits
	col.RecordStep(3, agents, 0, 0, nil)

	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("stats.csv has %d lines, want header plus 1 record:\n%s", len(lines), data)
	}
	// created and removed counters accumulate across the window
	if !strings.HasPrefix(lines[1], "2,1,3,1,") {
		t.Errorf("record = %q, want prefix 2,1,3,1,", lines[1])
	}
}

func TestCollectorSkipsUninitializedGrids(t *testing.T) {
	col := NewCollector(1, nil, false)

	dg := diffusion.NewEulerGrid(0, "oxygen", 0.4, 0, 4, config.BoundOpen, false)
	// not initialized: RecordStep must not touch its buffers
	col.RecordStep(1, nil, 0, 0, []diffusion.Grid{dg})
}
