package highlights

import (
	"fmt"
	"math"
)

// FallbackLabel é exibido quando um percentual não pode ser calculado.
const FallbackLabel = "--"

// Snapshot é o agregado de reporters e máquinas enviado pelo socket.
// Cada mensagem substitui o snapshot inteiro.
type Snapshot struct {
	ActiveReporters                int     `json:"activeReporters"`
	IdleReporters                  int     `json:"idleReporters"`
	StoppedReporters               int     `json:"stoppedReporters"`
	TotalReporters                 int     `json:"totalReporters"`
	RegisteredMachines             int     `json:"registeredMachines"`
	CurrentShiftMachineUtilization float64 `json:"currentShiftMachineUtilization"`
	TotalFactoryMachineUtilization float64 `json:"totalFactoryMachineUtilization"`
	MachinesNotInUse               int     `json:"machinesNotInUse"`
}

// Percent é um percentual pronto para exibição.
type Percent struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
	Label string  `json:"label"`
}

// PercentOf calcula part/total em pontos percentuais. total <= 0 gera o fallback.
func PercentOf(part, total float64) Percent {
	if total <= 0 {
		return invalidPercent()
	}
	return percentValue(part / total * 100)
}

// Utilization normaliza um percentual vindo pronto do servidor.
func Utilization(v float64) Percent {
	return percentValue(v)
}

func percentValue(v float64) Percent {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalidPercent()
	}
	return Percent{Value: v, Valid: true, Label: fmt.Sprintf("%.1f%%", v)}
}

func invalidPercent() Percent {
	return Percent{Label: FallbackLabel}
}

// Derived agrupa os campos calculados a partir do snapshot.
type Derived struct {
	ActiveShare        Percent `json:"activeShare"`
	IdleShare          Percent `json:"idleShare"`
	StoppedShare       Percent `json:"stoppedShare"`
	MachinesInUseShare Percent `json:"machinesInUseShare"`
	CurrentShiftUsage  Percent `json:"currentShiftUsage"`
	TotalFactoryUsage  Percent `json:"totalFactoryUsage"`
	MachinesInUse      int     `json:"machinesInUse"`
}

// Derive nunca produz NaN ou Inf, mesmo com totais zerados.
func Derive(s Snapshot) Derived {
	total := float64(s.TotalReporters)
	inUse := s.RegisteredMachines - s.MachinesNotInUse
	if inUse < 0 {
		inUse = 0
	}

	d := Derived{
		ActiveShare:        PercentOf(float64(s.ActiveReporters), total),
		IdleShare:          PercentOf(float64(s.IdleReporters), total),
		StoppedShare:       PercentOf(float64(s.StoppedReporters), total),
		MachinesInUseShare: PercentOf(float64(inUse), float64(s.RegisteredMachines)),
		MachinesInUse:      inUse,
	}

	// utilização de turno e fábrica só faz sentido com reporters ativos no total
	if total > 0 {
		d.CurrentShiftUsage = Utilization(s.CurrentShiftMachineUtilization)
		d.TotalFactoryUsage = Utilization(s.TotalFactoryMachineUtilization)
	} else {
		d.CurrentShiftUsage = invalidPercent()
		d.TotalFactoryUsage = invalidPercent()
	}
	return d
}
