package engine

import "sync"

// admission bounds concurrent positions. Buys hold one of capacity permits
// for their whole pipeline; running sells do not hold permits but count
// against capacity when a buy asks for one.
type admission struct {
	mu       sync.Mutex
	capacity int64
	held     int64 // buy permits in use
	sells    int64
}

func newAdmission(capacity int) *admission {
	if capacity < 1 {
		capacity = 1
	}
	return &admission{capacity: int64(capacity)}
}

// TryAdmitBuy takes a permit without blocking. It fails when held permits
// plus running sells already reach capacity.
func (a *admission) TryAdmitBuy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	inFlight := a.held + a.sells
	if inFlight >= a.capacity {
		return false
	}
	a.held++
	return true
}

// ReleaseBuy returns a permit taken by TryAdmitBuy.
func (a *admission) ReleaseBuy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.held > 0 {
		a.held--
	}
}

// BeginSell registers a running sell and returns the new count.
func (a *admission) BeginSell() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sells++
	return int(a.sells)
}

// EndSell unregisters a running sell and returns the new count.
func (a *admission) EndSell() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sells--
	return int(a.sells)
}

// InFlight returns held permits plus running sells.
func (a *admission) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.held + a.sells)
}
