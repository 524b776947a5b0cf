package builtins

import (
	"testing"
	"time"

	"candlebt/internal/domain"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mk(i int, o, h, l, c float64) domain.Bar {
	return domain.Bar{
		Symbol:    "TEST",
		Timestamp: day0.AddDate(0, 0, i),
		Open:      o, High: h, Low: l, Close: c,
		Volume: 1000,
	}
}

// hammerSeries is seven bearish bars with strictly falling highs, a hammer
// (low 90, high 100, body/range 0.2), a breakout bar opening at 101 and a
// trailing bar.
func hammerSeries() []domain.Bar {
	var bars []domain.Bar
	for i := 0; i < 7; i++ {
		h := 130 - float64(i)*3
		l := h - 10
		bars = append(bars, mk(i, h-1, h, l, l+1))
	}
	bars = append(bars,
		mk(7, 98, 100, 90, 100),
		mk(8, 101, 105, 100, 103),
		mk(9, 103, 104, 102, 103),
	)
	return bars
}

// starSeries mirrors hammerSeries for the short side.
func starSeries() []domain.Bar {
	var bars []domain.Bar
	for i := 0; i < 7; i++ {
		l := 100 + float64(i)*3
		h := l + 10
		bars = append(bars, mk(i, l+1, h, l, h-1))
	}
	bars = append(bars,
		mk(7, 132, 140, 130, 130),
		mk(8, 129, 129.5, 125, 127),
		mk(9, 127, 128, 126, 127),
	)
	return bars
}

func signalIndices(anns []domain.Annotation) []int {
	var idx []int
	for i, a := range anns {
		if a.HasSignal() {
			idx = append(idx, i)
		}
	}
	return idx
}

func TestHammerReversalSignal(t *testing.T) {
	bars := hammerSeries()
	orig := append([]domain.Bar(nil), bars...)

	anns := NewHammerReversal(DefaultTrendWindow, DefaultRiskReward).GenerateSignals(bars)

	if len(anns) != len(bars) {
		t.Fatalf("got %d annotations, want %d", len(anns), len(bars))
	}
	if got := signalIndices(anns); len(got) != 1 || got[0] != 8 {
		t.Fatalf("signals at %v, want [8]", got)
	}

	a := anns[8]
	if a.Signal != domain.SignalLong {
		t.Errorf("Signal = %v, want LONG", a.Signal)
	}
	if a.EntryPrice != 101 {
		t.Errorf("EntryPrice = %v, want 101", a.EntryPrice)
	}
	if a.StopLoss != 90 {
		t.Errorf("StopLoss = %v, want 90", a.StopLoss)
	}
	if a.Target != 117.5 {
		t.Errorf("Target = %v, want 117.5", a.Target)
	}
	if !a.PatternTime.Equal(bars[7].Timestamp) {
		t.Errorf("PatternTime = %v, want %v", a.PatternTime, bars[7].Timestamp)
	}
	if !anns[7].IsHammer || !anns[7].HasTrend {
		t.Errorf("pattern bar diagnostics = %+v, want IsHammer and HasTrend", anns[7])
	}

	for i := range bars {
		if bars[i] != orig[i] {
			t.Fatalf("input bar %d modified", i)
		}
	}
}

func TestHammerReversalFailedBreakoutIsAbandoned(t *testing.T) {
	bars := hammerSeries()
	bars[8] = mk(8, 99.5, 101, 98, 100.5) // breaks the high but opens below it
	bars[9] = mk(9, 106, 107, 105, 106)   // a later break must not revive the pattern

	anns := NewHammerReversal(DefaultTrendWindow, DefaultRiskReward).GenerateSignals(bars)
	if got := signalIndices(anns); len(got) != 0 {
		t.Errorf("signals at %v, want none", got)
	}
	if !anns[7].IsHammer {
		t.Error("hammer diagnostic missing on pattern bar")
	}
}

func TestHammerReversalLastBarNotScanned(t *testing.T) {
	bars := hammerSeries()[:8] // hammer is the final bar

	anns := NewHammerReversal(DefaultTrendWindow, DefaultRiskReward).GenerateSignals(bars)
	if anns[7].IsHammer {
		t.Error("last bar should not be scanned")
	}
	if got := signalIndices(anns); len(got) != 0 {
		t.Errorf("signals at %v, want none", got)
	}
}

func TestHammerReversalRelaxedFallback(t *testing.T) {
	bars := hammerSeries()
	bars[3].High = bars[2].High // breaks the strict run; candles stay bearish

	r := NewHammerReversal(DefaultTrendWindow, DefaultRiskReward)
	if got := signalIndices(r.GenerateSignals(bars)); len(got) != 1 {
		t.Fatalf("with relaxed fallback: signals at %v, want one", got)
	}

	r.SetRelaxedFallback(false)
	anns := r.GenerateSignals(bars)
	if got := signalIndices(anns); len(got) != 0 {
		t.Errorf("strict only: signals at %v, want none", got)
	}
	if anns[7].HasTrend {
		t.Error("strict only: HasTrend should be false")
	}
}

func TestHammerReversalShortSeries(t *testing.T) {
	r := NewHammerReversal(DefaultTrendWindow, DefaultRiskReward)
	if anns := r.GenerateSignals(nil); len(anns) != 0 {
		t.Errorf("GenerateSignals(nil) returned %d annotations", len(anns))
	}
	bars := hammerSeries()[:5]
	if got := signalIndices(r.GenerateSignals(bars)); len(got) != 0 {
		t.Errorf("signals at %v on a series shorter than the window", got)
	}
}

func TestShootingStarReversalSignal(t *testing.T) {
	bars := starSeries()
	anns := NewShootingStarReversal(DefaultTrendWindow, DefaultRiskReward).GenerateSignals(bars)

	if got := signalIndices(anns); len(got) != 1 || got[0] != 8 {
		t.Fatalf("signals at %v, want [8]", got)
	}
	a := anns[8]
	if a.Signal != domain.SignalShort {
		t.Errorf("Signal = %v, want SHORT", a.Signal)
	}
	if a.EntryPrice != 129 || a.StopLoss != 140 || a.Target != 112.5 {
		t.Errorf("entry/stop/target = %v/%v/%v, want 129/140/112.5", a.EntryPrice, a.StopLoss, a.Target)
	}
	if !anns[7].IsShootingStar || !anns[7].HasTrend {
		t.Errorf("pattern bar diagnostics = %+v", anns[7])
	}
}

func TestReversalNames(t *testing.T) {
	if got := NewHammerReversal(6, 1.5).Name(); got != HammerReversalName {
		t.Errorf("Name() = %q, want %q", got, HammerReversalName)
	}
	if got := NewShootingStarReversal(6, 1.5).Name(); got != ShootingStarReversalName {
		t.Errorf("Name() = %q, want %q", got, ShootingStarReversalName)
	}
}
