/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package ratelimit provides per endpoint token bucket rate limiting with persisted state.
//
// The limiter shapes outbound traffic for a better user experience. It is not a security
// boundary: persisted state is trusted as loaded, and the upstream must enforce its own limits.
package ratelimit

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/kvstore"
	"github.com/asgardeo/stayfront/internal/metrics"
	"github.com/asgardeo/stayfront/internal/system/log"
)

// Options configures a Limiter.
type Options struct {
	// AutoSaveInterval is how often dirty state is persisted. Defaults to 5s.
	AutoSaveInterval time.Duration
	// Configs overrides the built-in category limits.
	Configs map[Category]Config
	// Rules overrides the built-in route table.
	Rules []Rule
	// Recorder receives denial events.
	Recorder metrics.Recorder
}

// Info describes the limit state of one endpoint.
type Info struct {
	Endpoint   string        `json:"endpoint"`
	Category   Category      `json:"category"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Burst      int           `json:"burst"`
	Window     time.Duration `json:"window"`
	RetryAfter time.Duration `json:"retryAfter"`
	ResetAt    time.Time     `json:"resetAt"`
}

// bucket is the persisted state of one endpoint. Times are epoch milliseconds.
type bucket struct {
	Tokens       float64 `json:"tokens"`
	LastRefill   int64   `json:"lastRefill"`
	RequestCount int     `json:"requestCount"`
	WindowStart  int64   `json:"windowStart"`
}

// Limiter holds one token bucket per endpoint. All methods are safe for concurrent use.
type Limiter struct {
	store    kvstore.Store
	resolver *Resolver
	configs  map[Category]Config
	recorder metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
	autoSave time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	dirty   bool

	stopCh    chan struct{}
	loopDone  sync.WaitGroup
	closeOnce sync.Once
}

// New validates the route table, restores persisted bucket state from store and starts
// the auto-save loop. Call Close to stop it.
func New(ctx context.Context, store kvstore.Store, opts Options) (*Limiter, error) {
	return newLimiter(ctx, store, opts, time.Now)
}

func newLimiter(ctx context.Context, store kvstore.Store, opts Options, now func() time.Time) (*Limiter, error) {
	configs := opts.Configs
	if configs == nil {
		configs = DefaultConfigs()
	}
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	resolver, err := NewResolver(rules, configs, CategoryAPI)
	if err != nil {
		return nil, err
	}

	autoSave := opts.AutoSaveInterval
	if autoSave <= 0 {
		autoSave = DefaultAutoSaveInterval
	}

	l := &Limiter{
		store:    store,
		resolver: resolver,
		configs:  configs,
		recorder: metrics.OrNoop(opts.Recorder),
		logger:   log.GetLogger().With(zap.String(log.LoggerKeyComponentName, loggerComponentName)),
		now:      now,
		autoSave: autoSave,
		buckets:  make(map[string]*bucket),
		stopCh:   make(chan struct{}),
	}
	l.load(ctx)
	l.startAutoSave()

	return l, nil
}

// Category returns the category endpoint resolves to.
func (l *Limiter) Category(endpoint string) Category {
	return l.resolver.Resolve(endpoint)
}

// CheckLimit reports whether a request to endpoint may proceed now. It does not consume a
// token; callers that proceed must call RecordRequest.
func (l *Limiter) CheckLimit(ctx context.Context, endpoint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	category, cfg, b := l.bucketLocked(endpoint)
	allowed := l.allowedLocked(cfg, b)
	if !allowed {
		l.recorder.RateLimited(string(category))
		l.logger.Debug("Rate limit reached", zap.String(log.LoggerKeyEndpoint, endpoint),
			zap.String("category", string(category)), zap.Float64("tokens", b.Tokens),
			zap.Int("requestCount", b.RequestCount))
	}
	return allowed
}

// RecordRequest consumes one token for endpoint and persists the state.
func (l *Limiter) RecordRequest(ctx context.Context, endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, _, b := l.bucketLocked(endpoint)
	b.Tokens = math.Max(0, b.Tokens-1)
	b.RequestCount++
	l.dirty = true
	l.saveLocked(ctx)
}

// WaitTime returns how long to wait before endpoint admits a request, or 0 when it does now.
// A non zero wait is at least one second.
func (l *Limiter) WaitTime(endpoint string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, cfg, b := l.bucketLocked(endpoint)
	return l.waitLocked(cfg, b)
}

// RemainingRequests returns how many requests endpoint admits right now.
func (l *Limiter) RemainingRequests(endpoint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, cfg, b := l.bucketLocked(endpoint)
	return remaining(cfg, b)
}

// Info returns the limit state of endpoint.
func (l *Limiter) Info(endpoint string) Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	category, cfg, b := l.bucketLocked(endpoint)
	return Info{
		Endpoint:   endpoint,
		Category:   category,
		Limit:      cfg.MaxRequests,
		Remaining:  remaining(cfg, b),
		Burst:      cfg.BurstCapacity,
		Window:     cfg.Window,
		RetryAfter: l.waitLocked(cfg, b),
		ResetAt:    time.UnixMilli(b.WindowStart).Add(cfg.Window),
	}
}

// Reset restores the bucket of endpoint to full capacity with an empty window.
func (l *Limiter) Reset(ctx context.Context, endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := l.configs[l.resolver.Resolve(endpoint)]
	l.buckets[endpoint] = l.newBucket(cfg)
	l.dirty = true
	l.saveLocked(ctx)
}

// ResetAll drops every bucket. Buckets are recreated at full capacity on next use.
func (l *Limiter) ResetAll(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets = make(map[string]*bucket)
	l.dirty = true
	l.saveLocked(ctx)
}

// Close stops the auto-save loop and persists the current state.
func (l *Limiter) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.loopDone.Wait()

		l.mu.Lock()
		defer l.mu.Unlock()
		l.dirty = true
		err = l.saveLocked(context.Background())
	})
	return err
}

// bucketLocked returns the category, config and refreshed bucket of endpoint,
// creating a full bucket on first use.
func (l *Limiter) bucketLocked(endpoint string) (Category, Config, *bucket) {
	category := l.resolver.Resolve(endpoint)
	cfg := l.configs[category]

	b, ok := l.buckets[endpoint]
	if !ok {
		b = l.newBucket(cfg)
		l.buckets[endpoint] = b
		l.dirty = true
		return category, cfg, b
	}

	l.refillLocked(cfg, b)
	return category, cfg, b
}

func (l *Limiter) newBucket(cfg Config) *bucket {
	nowMs := l.now().UnixMilli()
	return &bucket{
		Tokens:      float64(cfg.BurstCapacity),
		LastRefill:  nowMs,
		WindowStart: nowMs,
	}
}

// refillLocked adds whole tokens for the time since the last refill and rolls the window.
// Partial tokens are kept as elapsed time by leaving LastRefill unchanged.
func (l *Limiter) refillLocked(cfg Config, b *bucket) {
	nowMs := l.now().UnixMilli()

	elapsed := float64(nowMs-b.LastRefill) / 1000
	if add := math.Floor(elapsed * cfg.RefillRate); add >= 1 {
		b.Tokens = math.Min(float64(cfg.BurstCapacity), b.Tokens+add)
		b.LastRefill = nowMs
		l.dirty = true
	}

	if nowMs-b.WindowStart > cfg.Window.Milliseconds() {
		b.RequestCount = 0
		b.WindowStart = nowMs
		l.dirty = true
	}
}

func (l *Limiter) allowedLocked(cfg Config, b *bucket) bool {
	return b.RequestCount < cfg.MaxRequests && b.Tokens >= 1
}

func (l *Limiter) waitLocked(cfg Config, b *bucket) time.Duration {
	if l.allowedLocked(cfg, b) {
		return 0
	}

	var wait time.Duration
	if b.Tokens < 1 {
		wait = time.Duration(math.Ceil((1-b.Tokens)/cfg.RefillRate)) * time.Second
	}
	if b.RequestCount >= cfg.MaxRequests {
		untilRoll := time.Duration(b.WindowStart+cfg.Window.Milliseconds()-l.now().UnixMilli()) * time.Millisecond
		if untilRoll > wait {
			wait = untilRoll
		}
	}
	wait = (wait + time.Second - 1).Truncate(time.Second)
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

func remaining(cfg Config, b *bucket) int {
	n := int(math.Floor(b.Tokens))
	if left := cfg.MaxRequests - b.RequestCount; left < n {
		n = left
	}
	if n < 0 {
		return 0
	}
	return n
}

func (l *Limiter) load(ctx context.Context) {
	if l.store == nil {
		return
	}
	raw, ok, err := l.store.Get(ctx, StateKey)
	if err != nil {
		l.logger.Warn("Failed to load rate limiter state", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	var buckets map[string]*bucket
	if err := json.Unmarshal([]byte(raw), &buckets); err != nil {
		l.logger.Warn("Ignoring corrupt rate limiter state", zap.Error(err))
		return
	}
	for endpoint, b := range buckets {
		if b == nil {
			continue
		}
		cfg := l.configs[l.resolver.Resolve(endpoint)]
		b.Tokens = math.Min(math.Max(b.Tokens, 0), float64(cfg.BurstCapacity))
		if b.RequestCount < 0 {
			b.RequestCount = 0
		}
		l.buckets[endpoint] = b
	}
	l.logger.Debug("Restored rate limiter state", zap.Int("buckets", len(l.buckets)))
}

func (l *Limiter) saveLocked(ctx context.Context) error {
	if l.store == nil || !l.dirty {
		return nil
	}
	raw, err := json.Marshal(l.buckets)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, StateKey, string(raw)); err != nil {
		l.logger.Warn("Failed to persist rate limiter state", zap.Error(err))
		return err
	}
	l.dirty = false
	return nil
}

func (l *Limiter) startAutoSave() {
	l.loopDone.Add(1)
	go func() {
		defer l.loopDone.Done()

		ticker := time.NewTicker(l.autoSave)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.mu.Lock()
				_ = l.saveLocked(context.Background())
				l.mu.Unlock()
			case <-l.stopCh:
				return
			}
		}
	}()
}
