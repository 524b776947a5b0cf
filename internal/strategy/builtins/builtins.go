package builtins

import (
	"candlebt/internal/strategy"
	"candlebt/internal/util"
)

// Params configures the built-in strategies.
type Params struct {
	TrendWindow       int
	RiskReward        float64
	SessionRiskReward float64
	SessionHour       int
	SessionMinute     int
	SessionZone       string // IANA name, empty for util.DefaultSessionZone
	StrictTrendOnly   bool   // disable the relaxed trend fallback
}

// DefaultParams returns the stock parameters of every built-in strategy.
func DefaultParams() Params {
	return Params{
		TrendWindow:       DefaultTrendWindow,
		RiskReward:        DefaultRiskReward,
		SessionRiskReward: DefaultSessionRiskReward,
		SessionHour:       DefaultSessionHour,
		SessionMinute:     DefaultSessionMinute,
		SessionZone:       util.DefaultSessionZone,
	}
}

// RegisterAll builds every built-in strategy from p and adds it to r.
func RegisterAll(r *strategy.Registry, p Params) error {
	loc, err := util.LoadSessionZone(p.SessionZone)
	if err != nil {
		return err
	}

	hammer := NewHammerReversal(p.TrendWindow, p.RiskReward)
	star := NewShootingStarReversal(p.TrendWindow, p.RiskReward)
	hammer.SetRelaxedFallback(!p.StrictTrendOnly)
	star.SetRelaxedFallback(!p.StrictTrendOnly)

	r.Register(hammer)
	r.Register(star)
	r.Register(NewSessionBreakout(p.SessionHour, p.SessionMinute, p.SessionRiskReward, loc))
	return nil
}
