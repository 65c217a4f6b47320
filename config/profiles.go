package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alejandrodnm/straddlebot/internal/domain"
)

// Nombres de los perfiles predefinidos.
const (
	ProfileConservative = "CONSERVATIVE"
	ProfileBalanced     = "BALANCED"
	ProfileAggressive   = "AGGRESSIVE"
)

// Profile es un preset de riesgo que se aplica sobre los parámetros por defecto.
type Profile struct {
	Name                 string  `json:"name"`
	RiskPerTrade         float64 `json:"risk_per_trade"`
	VolatilityThreshold  float64 `json:"volatility_threshold"`
	MaxPositions         int     `json:"max_positions"`
	TakeProfitMultiplier float64 `json:"take_profit_multiplier"`
	StopLossMultiplier   float64 `json:"stop_loss_multiplier"`
}

var profiles = map[string]Profile{
	ProfileConservative: {
		Name:                 ProfileConservative,
		RiskPerTrade:         0.008,
		VolatilityThreshold:  70,
		MaxPositions:         2,
		TakeProfitMultiplier: 1.2,
		StopLossMultiplier:   0.5,
	},
	ProfileBalanced: {
		Name:                 ProfileBalanced,
		RiskPerTrade:         0.012,
		VolatilityThreshold:  55,
		MaxPositions:         3,
		TakeProfitMultiplier: 1.3,
		StopLossMultiplier:   0.6,
	},
	ProfileAggressive: {
		Name:                 ProfileAggressive,
		RiskPerTrade:         0.020,
		VolatilityThreshold:  40,
		MaxPositions:         5,
		TakeProfitMultiplier: 1.5,
		StopLossMultiplier:   0.8,
	},
}

// Profiles devuelve los perfiles ordenados por nombre.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupProfile busca un perfil sin distinguir mayúsculas.
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// ApplyProfile devuelve base con los valores del perfil. Un nombre vacío deja
// base intacto.
func ApplyProfile(base domain.StrategyParams, name string) (domain.StrategyParams, error) {
	if strings.TrimSpace(name) == "" {
		return base, nil
	}
	p, ok := LookupProfile(name)
	if !ok {
		return base, fmt.Errorf("config.ApplyProfile: unknown profile %q", name)
	}
	base.RiskPerTrade = p.RiskPerTrade
	base.VolatilityThreshold = p.VolatilityThreshold
	base.MaxPositions = p.MaxPositions
	base.TakeProfitMultiplier = p.TakeProfitMultiplier
	base.StopLossMultiplier = p.StopLossMultiplier
	return base, nil
}
