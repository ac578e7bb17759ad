package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rate   string
		scale  int32
		want   string
	}{
		{name: "whole", amount: "1000", rate: "20", scale: 0, want: "200"},
		{name: "half rounds to even down", amount: "5", rate: "50", scale: 0, want: "2"},
		{name: "half rounds to even up", amount: "7", rate: "50", scale: 0, want: "4"},
		{name: "cents", amount: "10.01", rate: "15", scale: 2, want: "1.5"},
		{name: "fractional rate", amount: "200", rate: "12.5", scale: 0, want: "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percent(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.rate), tt.scale)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Percent(%s, %s) = %s, want %s", tt.amount, tt.rate, got, tt.want)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	if _, err := Quantize(decimal.RequireFromString("10.5"), 0); !errors.Is(err, ErrSubUnit) {
		t.Fatalf("expected ErrSubUnit, got %v", err)
	}
	got, err := Quantize(decimal.RequireFromString("10.50"), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("got %s", got)
	}
}

func TestSum(t *testing.T) {
	if !Sum().IsZero() {
		t.Fatal("empty sum should be zero")
	}
	got := Sum(decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.RequireFromString("0.5"))
	if !got.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("got %s", got)
	}
}
