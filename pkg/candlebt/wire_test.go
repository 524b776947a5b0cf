package candlebt

import (
	"testing"
	"time"
)

func TestEncodeDecodeRunRequest(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	in := BatchRequest{
		RunRequest: RunRequest{
			Strategy:        "hammer-reversal",
			Market:          "nse",
			Interval:        "15m",
			Start:           &start,
			InitialCapital:  500000,
			MaxPositionRisk: 0.1,
		},
		Symbols: []string{"HDFCBANK", "TCS"},
	}

	s, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := s.Fields["strategy"].GetStringValue(); got != "hammer-reversal" {
		t.Errorf("strategy field = %q", got)
	}
	if _, ok := s.Fields["end"]; ok {
		t.Error("unset end should be omitted")
	}

	var out BatchRequest
	if err := Decode(s, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Strategy != in.Strategy || out.Market != "nse" || len(out.Symbols) != 2 {
		t.Errorf("Decode = %+v", out)
	}
	if out.Start == nil || !out.Start.Equal(start) || out.End != nil {
		t.Errorf("window = %v, %v", out.Start, out.End)
	}
}

func TestDecodeNil(t *testing.T) {
	out := RunResult{Symbol: "kept"}
	if err := Decode(nil, &out); err != nil || out.Symbol != "kept" {
		t.Errorf("Decode(nil) = %v, %+v", err, out)
	}
}

func TestFullMethod(t *testing.T) {
	if got := FullMethod(MethodRunBacktest); got != "/candlebt.v1.BacktestService/RunBacktest" {
		t.Errorf("FullMethod = %q", got)
	}
}
