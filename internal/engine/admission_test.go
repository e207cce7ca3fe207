package engine

import "testing"

func TestAdmission_Capacity(t *testing.T) {
	a := newAdmission(2)

	if !a.TryAdmitBuy() || !a.TryAdmitBuy() {
		t.Fatal("expected first two buys admitted")
	}
	if a.TryAdmitBuy() {
		t.Fatal("third buy admitted over capacity")
	}

	a.ReleaseBuy()
	if !a.TryAdmitBuy() {
		t.Fatal("buy rejected after release")
	}
}

func TestAdmission_SellsReduceCapacity(t *testing.T) {
	a := newAdmission(2)

	if !a.TryAdmitBuy() {
		t.Fatal("first buy rejected")
	}
	if n := a.BeginSell(); n != 1 {
		t.Fatalf("BeginSell() = %d, want 1", n)
	}
	if a.TryAdmitBuy() {
		t.Fatal("buy admitted while a sell is running at capacity")
	}
	if got := a.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}

	if n := a.EndSell(); n != 0 {
		t.Fatalf("EndSell() = %d, want 0", n)
	}
	if !a.TryAdmitBuy() {
		t.Fatal("buy rejected after sell ended")
	}
}

func TestAdmission_MinimumCapacity(t *testing.T) {
	a := newAdmission(0)
	if !a.TryAdmitBuy() {
		t.Fatal("capacity below one should admit one buy")
	}
	if a.TryAdmitBuy() {
		t.Fatal("second buy admitted")
	}
}

func TestAdmission_SellsAloneFillCapacity(t *testing.T) {
	a := newAdmission(2)
	a.BeginSell()
	a.BeginSell()

	if a.TryAdmitBuy() {
		t.Fatal("buy admitted while sells fill capacity")
	}
	if got := a.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}

	a.EndSell()
	if !a.TryAdmitBuy() {
		t.Fatal("buy rejected after a sell ended")
	}
}

func TestAdmission_ExtraReleaseIgnored(t *testing.T) {
	a := newAdmission(1)
	a.ReleaseBuy()

	if !a.TryAdmitBuy() {
		t.Fatal("first buy rejected")
	}
	if a.TryAdmitBuy() {
		t.Fatal("stray release raised capacity")
	}
	if got := a.InFlight(); got != 1 {
		t.Errorf("InFlight() = %d, want 1", got)
	}
}
