package payment

import (
	"context"
	"strings"
	"testing"
)

func TestSimulated_AlwaysSucceeds(t *testing.T) {
	res, err := NewSimulated().Charge(context.Background(), ChargeRequest{Amount: 50, Currency: "inr"})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if !strings.HasPrefix(res.Reference, "sim_") {
		t.Errorf("Reference = %q", res.Reference)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := map[float64]int64{
		50:     5000,
		30.5:   3050,
		0.1:    10,
		19.999: 2000,
	}
	for in, want := range cases {
		if got := minorUnits(in); got != want {
			t.Errorf("minorUnits(%v) = %d, want %d", in, got, want)
		}
	}
}
