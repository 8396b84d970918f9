package highlights

import (
	"math"
	"testing"
)

func TestDeriveWithZeroTotalsUsesFallback(t *testing.T) {
	d := Derive(Snapshot{
		TotalReporters:                 0,
		CurrentShiftMachineUtilization: math.NaN(),
		TotalFactoryMachineUtilization: 12,
	})

	for name, p := range map[string]Percent{
		"active":        d.ActiveShare,
		"idle":          d.IdleShare,
		"stopped":       d.StoppedShare,
		"machinesInUse": d.MachinesInUseShare,
		"currentShift":  d.CurrentShiftUsage,
		"totalFactory":  d.TotalFactoryUsage,
	} {
		if p.Valid || p.Label != FallbackLabel {
			t.Fatalf("%s: expected fallback, got %+v", name, p)
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			t.Fatalf("%s: non-finite value %v", name, p.Value)
		}
	}
}

func TestDeriveShares(t *testing.T) {
	d := Derive(Snapshot{
		ActiveReporters:                3,
		IdleReporters:                  1,
		TotalReporters:                 4,
		RegisteredMachines:             10,
		MachinesNotInUse:               4,
		CurrentShiftMachineUtilization: 62.5,
		TotalFactoryMachineUtilization: 40,
	})

	if d.ActiveShare.Label != "75.0%" || d.IdleShare.Label != "25.0%" || d.StoppedShare.Label != "0.0%" {
		t.Fatalf("unexpected shares: %+v %+v %+v", d.ActiveShare, d.IdleShare, d.StoppedShare)
	}
	if d.MachinesInUse != 6 || d.MachinesInUseShare.Label != "60.0%" {
		t.Fatalf("unexpected machine usage: %d %+v", d.MachinesInUse, d.MachinesInUseShare)
	}
	if d.CurrentShiftUsage.Label != "62.5%" || !d.TotalFactoryUsage.Valid {
		t.Fatalf("unexpected utilization: %+v %+v", d.CurrentShiftUsage, d.TotalFactoryUsage)
	}
}

func TestPercentOfRejectsInfinity(t *testing.T) {
	if p := PercentOf(1, 0); p.Valid {
		t.Fatalf("expected invalid percent, got %+v", p)
	}
	if p := Utilization(math.Inf(1)); p.Valid || p.Label != FallbackLabel {
		t.Fatalf("expected fallback for +Inf, got %+v", p)
	}
}
