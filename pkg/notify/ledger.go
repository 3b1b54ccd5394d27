package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is the single record of when each kind was last sent to a tenant.
// Claim is the atomic read-decide-write step shared by the sweep and the
// on-demand path.
type Ledger interface {
	LastNotifiedAt(ctx context.Context, tenantID uuid.UUID, kind Kind) (time.Time, bool, error)
	// Claim records at as the last send unless a send at or after cutoff is
	// already recorded.
	Claim(ctx context.Context, tenantID uuid.UUID, kind Kind, at, cutoff time.Time) (Claim, error)
	// Release restores the value a granted claim replaced, if the claim is
	// still the latest record.
	Release(ctx context.Context, c Claim) error
}

// Claim is the outcome of Ledger.Claim.
type Claim struct {
	TenantID uuid.UUID
	Kind     Kind
	At       time.Time
	Previous time.Time // zero when nothing was recorded
	Granted  bool
}

type ledgerKey struct {
	tenantID uuid.UUID
	kind     Kind
}

// MemoryLedger keeps the records in process memory.
type MemoryLedger struct {
	mu   sync.Mutex
	last map[ledgerKey]time.Time
}

// NewMemoryLedger returns a Ledger for a single process.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{last: make(map[ledgerKey]time.Time)}
}

func (l *MemoryLedger) LastNotifiedAt(_ context.Context, tenantID uuid.UUID, kind Kind) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.last[ledgerKey{tenantID, kind}]
	return t, ok, nil
}

func (l *MemoryLedger) Claim(_ context.Context, tenantID uuid.UUID, kind Kind, at, cutoff time.Time) (Claim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{tenantID, kind}
	prev := l.last[key]
	c := Claim{TenantID: tenantID, Kind: kind, At: at, Previous: prev}
	if !prev.IsZero() && !prev.Before(cutoff) {
		return c, nil
	}
	l.last[key] = at
	c.Granted = true
	return c, nil
}

func (l *MemoryLedger) Release(_ context.Context, c Claim) error {
	if !c.Granted {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{c.TenantID, c.Kind}
	if !l.last[key].Equal(c.At) {
		return nil
	}
	if c.Previous.IsZero() {
		delete(l.last, key)
	} else {
		l.last[key] = c.Previous
	}
	return nil
}
