// Package budget implements the daily investment cap as a two-phase
// reservation ledger. Reserve holds an amount against today's cap,
// Commit makes the hold permanent once the buy confirms, Release
// returns it when the buy fails. All three are short, non-blocking
// critical sections; no I/O happens under the lock.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrDailyCapExceeded is returned by Reserve when the requested amount
// would push committed+pending past the daily cap.
var ErrDailyCapExceeded = errors.New("daily investment cap exceeded")

// dayBucket holds the committed and pending totals for one calendar day.
// Historical buckets are retained, never deleted.
type dayBucket struct {
	committed float64
	pending   float64
}

// Ledger tracks cumulative invested amount per calendar day and
// enforces a hard cap. Day boundaries follow the configured timezone.
type Ledger struct {
	mu       sync.Mutex
	dailyCap float64
	loc      *time.Location
	days     map[string]*dayBucket
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLocation sets the timezone used for day boundaries. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		l.loc = loc
	}
}

// NewLedger creates a ledger with the given daily cap in USD.
func NewLedger(dailyCap float64, opts ...Option) *Ledger {
	l := &Ledger{
		dailyCap: dailyCap,
		loc:      time.UTC,
		days:     make(map[string]*dayBucket),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reservation is a provisional hold against one day's budget. It must be
// settled exactly once, with either Commit or Release.
type Reservation struct {
	day     string
	amount  float64
	settled bool
}

// Amount returns the reserved amount in USD.
func (r *Reservation) Amount() float64 {
	return r.amount
}

// Reserve atomically checks committed+pending+amount against the cap for
// the current day and, if it fits, adds the amount to the pending total.
// Returns ErrDailyCapExceeded when the hold does not fit.
func (l *Ledger) Reserve(amountUsd float64) (*Reservation, error) {
	if amountUsd <= 0 {
		return nil, fmt.Errorf("reserve amount must be positive, got %f", amountUsd)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.currentDay()
	bucket := l.bucket(day)

	if bucket.committed+bucket.pending+amountUsd > l.dailyCap {
		return nil, ErrDailyCapExceeded
	}

	bucket.pending += amountUsd
	return &Reservation{day: day, amount: amountUsd}, nil
}

// Commit moves a reservation's amount from pending to committed.
func (l *Ledger) Commit(r *Reservation) error {
	if r == nil {
		return fmt.Errorf("nil reservation")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return fmt.Errorf("reservation already settled")
	}
	r.settled = true

	bucket := l.bucket(r.day)
	bucket.pending -= r.amount
	bucket.committed += r.amount
	return nil
}

// Release removes a reservation's amount from pending without committing.
func (l *Ledger) Release(r *Reservation) error {
	if r == nil {
		return fmt.Errorf("nil reservation")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return fmt.Errorf("reservation already settled")
	}
	r.settled = true

	bucket := l.bucket(r.day)
	bucket.pending -= r.amount
	return nil
}

// CommittedToday returns the committed total for the current day.
func (l *Ledger) CommittedToday() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucket(l.currentDay()).committed
}

// PendingToday returns the pending total for the current day.
func (l *Ledger) PendingToday() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucket(l.currentDay()).pending
}

// CommittedOn returns the committed total for an arbitrary day
// (YYYY-MM-DD in the ledger's timezone). Historical days are retained.
func (l *Ledger) CommittedOn(day string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.days[day]; ok {
		return bucket.committed
	}
	return 0
}

// currentDay returns the bucket key for now. Callers must hold l.mu.
func (l *Ledger) currentDay() string {
	return l.now().In(l.loc).Format("2006-01-02")
}

// bucket returns the bucket for a day, creating it on first use.
// Callers must hold l.mu.
func (l *Ledger) bucket(day string) *dayBucket {
	b, ok := l.days[day]
	if !ok {
		b = &dayBucket{}
		l.days[day] = b
	}
	return b
}
