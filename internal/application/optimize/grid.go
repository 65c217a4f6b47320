package optimize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Objective es la métrica por la que se ordenan los trials.
type Objective string

const (
	ObjectiveSharpe Objective = "sharpe"
	ObjectiveReturn Objective = "return"
)

// ParseObjective acepta "sharpe" (por defecto si vacío) o "return".
func ParseObjective(s string) (Objective, error) {
	switch Objective(strings.ToLower(strings.TrimSpace(s))) {
	case "", ObjectiveSharpe:
		return ObjectiveSharpe, nil
	case ObjectiveReturn:
		return ObjectiveReturn, nil
	}
	return "", fmt.Errorf("optimize: unknown objective %q (want sharpe or return)", s)
}

// setters mapea el nombre YAML de un parámetro a su campo.
var setters = map[string]func(*domain.StrategyParams, float64){
	"volatility_threshold":   func(p *domain.StrategyParams, v float64) { p.VolatilityThreshold = v },
	"min_signal_quality":     func(p *domain.StrategyParams, v float64) { p.MinSignalQuality = v },
	"take_profit_multiplier": func(p *domain.StrategyParams, v float64) { p.TakeProfitMultiplier = v },
	"stop_loss_multiplier":   func(p *domain.StrategyParams, v float64) { p.StopLossMultiplier = v },
	"risk_per_trade":         func(p *domain.StrategyParams, v float64) { p.RiskPerTrade = v },
	"trade_timeout_hours":    func(p *domain.StrategyParams, v float64) { p.TradeTimeoutHours = v },
	"hedge_threshold":        func(p *domain.StrategyParams, v float64) { p.HedgeThreshold = v },
	"max_hedge_ratio":        func(p *domain.StrategyParams, v float64) { p.MaxHedgeRatio = v },
	"vol_collapse_ratio":     func(p *domain.StrategyParams, v float64) { p.VolCollapseRatio = v },
	"max_positions":          func(p *domain.StrategyParams, v float64) { p.MaxPositions = int(math.Round(v)) },
	"max_contracts":          func(p *domain.StrategyParams, v float64) { p.MaxContracts = int(math.Round(v)) },
}

// Parameters lista los nombres que acepta un Grid, ordenados.
func Parameters() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply devuelve base con los valores sobrescritos. No valida el resultado.
func Apply(base domain.StrategyParams, values map[string]float64) (domain.StrategyParams, error) {
	for name, v := range values {
		set, ok := setters[name]
		if !ok {
			return base, fmt.Errorf("optimize: unknown parameter %q (known: %s)", name, strings.Join(Parameters(), ", "))
		}
		set(&base, v)
	}
	return base, nil
}

// Grid asigna a cada parámetro la lista de valores a probar.
type Grid map[string][]float64

// Trial es una combinación concreta del grid.
type Trial struct {
	ID     int                   `json:"id"`
	Values map[string]float64    `json:"values"`
	Params domain.StrategyParams `json:"-"`
}

// Label describe el trial como "a=1 b=2" en orden de nombre.
func (t Trial) Label() string {
	names := make([]string, 0, len(t.Values))
	for name := range t.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, t.Values[name])
	}
	return strings.Join(parts, " ")
}

// Size es el número de combinaciones.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Validate rechaza nombres desconocidos y listas vacías.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("optimize: empty grid")
	}
	for name, values := range g {
		if _, ok := setters[name]; !ok {
			return fmt.Errorf("optimize: unknown parameter %q (known: %s)", name, strings.Join(Parameters(), ", "))
		}
		if len(values) == 0 {
			return fmt.Errorf("optimize: parameter %q has no values", name)
		}
	}
	return nil
}

// Trials expande el producto cartesiano sobre base. Cada trial lleva su propia
// copia de los parámetros; nada se comparte entre trials.
func (g Grid) Trials(base domain.StrategyParams) ([]Trial, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	trials := make([]Trial, 0, g.Size())
	idx := make([]int, len(names))
	for {
		params := base
		values := make(map[string]float64, len(names))
		for i, name := range names {
			v := g[name][idx[i]]
			setters[name](&params, v)
			values[name] = v
		}
		trials = append(trials, Trial{ID: len(trials), Values: values, Params: params})

		// odómetro: avanza el último índice y arrastra
		k := len(names) - 1
		for k >= 0 {
			idx[k]++
			if idx[k] < len(g[names[k]]) {
				break
			}
			idx[k] = 0
			k--
		}
		if k < 0 {
			return trials, nil
		}
	}
}
