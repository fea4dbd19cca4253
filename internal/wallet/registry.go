package wallet

import (
	"bytes"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dashpay/dash-evo-tool-sub003/internal/metrics"
	"github.com/dashpay/dash-evo-tool-sub003/internal/platform/ratelimiter"
)

// Default unlock throttle: a burst of five attempts, then one every 10s.
const (
	defaultUnlockRPS   = 0.1
	defaultUnlockBurst = 5
)

// Registry holds the wallet seeds known to the process, keyed by seed hash.
// It hands out shared *Seed handles; each handle synchronizes itself.
type Registry struct {
	mu      sync.RWMutex
	seeds   map[SeedHash]*Seed
	limiter *ratelimiter.MapLimiter
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithUnlockLimit overrides the per-wallet unlock throttle. rps <= 0 disables it.
func WithUnlockLimit(rps float64, burst int) Option {
	return func(r *Registry) {
		r.limiter = ratelimiter.New(rps, burst, time.Hour)
	}
}

func withClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		seeds:   make(map[SeedHash]*Seed),
		limiter: ratelimiter.New(defaultUnlockRPS, defaultUnlockBurst, time.Hour),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers seed. An existing handle with the same hash is kept and
// returned so callers keep sharing one instance.
func (r *Registry) Add(seed *Seed) *Seed {
	hash := seed.Hash()
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.seeds[hash]; ok {
		return existing
	}
	r.seeds[hash] = seed
	r.logger.Debug("wallet registered", zap.String("seed_hash", ShortHash(hash)))
	return seed
}

// LookupSeed returns the handle for hash.
func (r *Registry) LookupSeed(hash SeedHash) (*Seed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.seeds[hash]
	return s, ok
}

// Remove locks and forgets the seed.
func (r *Registry) Remove(hash SeedHash) bool {
	r.mu.Lock()
	s, ok := r.seeds[hash]
	delete(r.seeds, hash)
	r.mu.Unlock()
	if ok {
		s.Lock()
		r.limiter.Reset(hex.EncodeToString(hash[:]))
	}
	return ok
}

// Unlock opens the seed identified by hash. Failed attempts count against a
// per-wallet token bucket; a successful unlock refills it.
func (r *Registry) Unlock(hash SeedHash, password []byte) error {
	s, ok := r.LookupSeed(hash)
	if !ok {
		return errors.Wrap(ErrSeedNotFound, ShortHash(hash))
	}
	if s.IsOpen() {
		return nil
	}
	key := hex.EncodeToString(hash[:])
	if !r.limiter.Allow(key, r.now()) {
		metrics.ObserveUnlock("throttled")
		r.logger.Warn("wallet unlock throttled", zap.String("seed_hash", ShortHash(hash)))
		return ErrUnlockThrottled
	}
	if err := s.Unlock(password); err != nil {
		metrics.ObserveUnlock(metrics.ResultError)
		r.logger.Info("wallet unlock failed", zap.String("seed_hash", ShortHash(hash)), zap.Error(err))
		return err
	}
	r.limiter.Reset(key)
	metrics.ObserveUnlock(metrics.ResultSuccess)
	r.logger.Info("wallet unlocked", zap.String("seed_hash", ShortHash(hash)))
	return nil
}

func (r *Registry) Lock(hash SeedHash) error {
	s, ok := r.LookupSeed(hash)
	if !ok {
		return errors.Wrap(ErrSeedNotFound, ShortHash(hash))
	}
	s.Lock()
	return nil
}

func (r *Registry) LockAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.seeds {
		s.Lock()
	}
}

// Hashes returns the registered seed hashes in byte order.
func (r *Registry) Hashes() []SeedHash {
	r.mu.RLock()
	out := make([]SeedHash, 0, len(r.seeds))
	for h := range r.seeds {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seeds)
}

// ShortHash is the log form of a seed hash.
func ShortHash(h SeedHash) string {
	return hex.EncodeToString(h[:4])
}
