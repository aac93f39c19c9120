package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// [0] = (10+11+12)/3 = 11 ... [3] = (13+14+15)/3 = 14
	expected := []float64{11, 12, 13, 14}

	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}

	for i, v := range expected {
		if sma[i] != v {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	if sma := SMA([]float64{10, 11}, 5); len(sma) != 0 {
		t.Errorf("expected empty slice, got %d values", len(sma))
	}
	if sma := SMA([]float64{10, 11}, 0); len(sma) != 0 {
		t.Errorf("expected empty slice for zero period, got %d values", len(sma))
	}
}

func TestEMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	ema := EMA(prices, 3)

	if len(ema) != 4 {
		t.Fatalf("expected 4 values, got %d", len(ema))
	}

	// First EMA = SMA = 11
	if ema[0] != 11 {
		t.Errorf("first EMA should equal SMA, got %f", ema[0])
	}

	for i := 1; i < len(ema); i++ {
		if ema[i] <= ema[i-1] {
			t.Errorf("EMA should be increasing, ema[%d]=%f <= ema[%d]=%f", i, ema[i], i-1, ema[i-1])
		}
	}
}

func TestColumn_PadsWithNaN(t *testing.T) {
	col := Column(SMA([]float64{10, 11, 12, 13}, 3), 4)

	if len(col) != 4 {
		t.Fatalf("expected 4 values, got %d", len(col))
	}
	if !math.IsNaN(col[0]) || !math.IsNaN(col[1]) {
		t.Errorf("expected NaN warm-up, got %v", col[:2])
	}
	if !almostEqual(col[2], 11, 1e-9) || !almostEqual(col[3], 12, 1e-9) {
		t.Errorf("unexpected values %v", col[2:])
	}
}

func TestShift(t *testing.T) {
	out := Shift([]float64{1, 2, 3}, 1)
	if !math.IsNaN(out[0]) || out[1] != 1 || out[2] != 2 {
		t.Errorf("unexpected shift result %v", out)
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
