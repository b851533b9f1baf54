package paymentstatus

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

var (
	ErrRecordNotFound = errors.New("payment status not found")
	ErrRecordExpired  = errors.New("payment status expired")
)

// Store keeps the last known status per charge for the lifetime of the
// process. All writes go through apply.
type Store struct {
	mu      sync.RWMutex
	records map[string]payment.Record

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	deletes   sync.WaitGroup
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		records:       make(map[string]payment.Record),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) Now() time.Time {
	return s.now()
}

// Get returns the record for chargeID. A record past its TTL is returned
// together with ErrRecordExpired and removed in the background.
func (s *Store) Get(chargeID string) (payment.Record, error) {
	s.mu.RLock()
	rec, ok := s.records[chargeID]
	s.mu.RUnlock()

	if !ok {
		return payment.Record{}, ErrRecordNotFound
	}
	if rec.ExpiredAt(s.now(), s.ttl) {
		s.deleteIfStale(chargeID)
		return cloneRecord(rec), ErrRecordExpired
	}
	return cloneRecord(rec), nil
}

// deleteIfStale re-checks staleness under the write lock so a write that
// lands between Get and the delete survives.
func (s *Store) deleteIfStale(chargeID string) {
	s.deletes.Add(1)
	go func() {
		defer s.deletes.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if rec, ok := s.records[chargeID]; ok && rec.ExpiredAt(s.now(), s.ttl) {
			delete(s.records, chargeID)
		}
	}()
}

// Set merges patch into the record, creating it when absent.
func (s *Store) Set(chargeID string, patch payment.Patch) payment.Record {
	s.mu.Lock()
	rec := s.apply(chargeID, patch, s.now())
	s.mu.Unlock()

	metrics.StatusWrite(string(rec.Status))
	return rec
}

// SetIfAbsent writes patch only when no live record exists. It returns the
// record now stored and whether this call created it.
func (s *Store) SetIfAbsent(chargeID string, patch payment.Patch) (payment.Record, bool) {
	now := s.now()

	s.mu.Lock()
	if existing, ok := s.records[chargeID]; ok && !existing.ExpiredAt(now, s.ttl) {
		s.mu.Unlock()
		return cloneRecord(existing), false
	}
	rec := s.apply(chargeID, patch, now)
	s.mu.Unlock()

	metrics.StatusWrite(string(rec.Status))
	return rec, true
}

// apply must be called with s.mu held for writing. A stale record is treated
// as absent, so it contributes neither its CreatedAt nor its fields.
func (s *Store) apply(chargeID string, patch payment.Patch, now time.Time) payment.Record {
	rec, ok := s.records[chargeID]
	if !ok || rec.ExpiredAt(now, s.ttl) {
		rec = payment.Record{
			ChargeID:  chargeID,
			Status:    payment.StatusPending,
			CreatedAt: now,
		}
	}

	if patch.Status != "" {
		rec.Status = patch.Status
	}
	if patch.Amount != nil {
		rec.Amount = cloneInt(patch.Amount)
	}
	if patch.PaymentMethod != nil {
		rec.PaymentMethod = cloneString(patch.PaymentMethod)
	}
	if patch.ReferenceID != nil {
		rec.ReferenceID = cloneString(patch.ReferenceID)
	}
	rec.LastUpdated = now

	s.records[chargeID] = rec
	return cloneRecord(rec)
}

func (s *Store) Delete(chargeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[chargeID]
	delete(s.records, chargeID)
	return ok
}

// Sweep removes every record past its TTL and returns how many went.
func (s *Store) Sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for id, rec := range s.records {
		if rec.ExpiredAt(now, s.ttl) {
			delete(s.records, id)
			removed++
		}
	}
	s.mu.Unlock()

	metrics.StatusSwept(removed)
	if removed > 0 {
		s.logger.Info("payment status sweep", "removed", removed)
	}
	return removed
}

func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[string]payment.Record)
	return n
}

// List returns a snapshot of every stored record, stale ones included,
// ordered by charge id.
func (s *Store) List() []payment.Record {
	s.mu.RLock()
	out := make([]payment.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ChargeID < out[j].ChargeID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Start launches the periodic sweep. Calling it twice is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()

	s.logger.Info("payment status sweeper started",
		"interval", s.sweepInterval.String(),
		"ttl", s.ttl.String())
}

// Stop halts the sweeper and waits for background deletes to finish.
func (s *Store) Stop() {
	s.lifecycle.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.lifecycle.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.deletes.Wait()
}

func cloneRecord(r payment.Record) payment.Record {
	r.Amount = cloneInt(r.Amount)
	r.PaymentMethod = cloneString(r.PaymentMethod)
	r.ReferenceID = cloneString(r.ReferenceID)
	return r
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
