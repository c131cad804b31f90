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

// Package cache provides the tiered response cache: an in-memory tier backed by the persistent key-value store.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/asgardeo/stayfront/internal/kvstore"
	"github.com/asgardeo/stayfront/internal/metrics"
	"github.com/asgardeo/stayfront/internal/system/log"
)

// Service is the tiered cache. All methods are safe for concurrent use.
// Storage failures are logged and degrade to a miss or a no-op.
type Service struct {
	store    kvstore.Store
	opts     Options
	memory   *lru.Cache[string, *Entry]
	recorder metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	index map[string]*list.Element
	order *list.List
	meta  Metadata

	group     singleflight.Group
	inflight  sync.WaitGroup
	closed    bool
	stopCh    chan struct{}
	loopDone  sync.WaitGroup
	closeOnce sync.Once
}

// New creates a cache over store, restores the persisted metadata and entry index,
// and starts the periodic cleanup sweep. Call Close to stop it.
func New(ctx context.Context, store kvstore.Store, opts Options) *Service {
	return newService(ctx, store, opts, time.Now)
}

func newService(ctx context.Context, store kvstore.Store, opts Options, now func() time.Time) *Service {
	opts = opts.withDefaults()
	if store == nil {
		opts.DisablePersistent = true
	}

	s := &Service{
		store:    store,
		opts:     opts,
		recorder: opts.Recorder,
		logger:   log.GetLogger().With(zap.String(log.LoggerKeyComponentName, loggerComponentName)),
		now:      now,
		index:    make(map[string]*list.Element),
		order:    list.New(),
		stopCh:   make(chan struct{}),
	}

	if !opts.DisableMemoryCache {
		memory, err := lru.New[string, *Entry](opts.MemoryEntries)
		if err != nil {
			s.logger.Error("Failed to create the in-memory tier, continuing without it", zap.Error(err))
		} else {
			s.memory = memory
		}
	}

	if !opts.DisablePersistent {
		s.loadMetadata(ctx)
		s.rebuildIndex(ctx)
	}

	s.logger.Debug("Cache service initialized",
		zap.Int64("maxSize", opts.MaxSize),
		zap.Duration("cleanupInterval", opts.CleanupInterval),
		zap.Bool("memoryTier", s.memory != nil),
		zap.Bool("persistentTier", !opts.DisablePersistent),
		zap.String("evictionOrder", string(opts.EvictionOrder)),
		zap.Int("entries", s.meta.Entries))

	s.startCleanupLoop()
	return s
}

func (s *Service) persistent() bool {
	return !s.opts.DisablePersistent
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Get returns the entry stored under key, looking in memory first and then in the
// persistent store, promoting persistent hits into memory. Expiry is not checked.
func (s *Service) Get(ctx context.Context, key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memory != nil {
		if entry, ok := s.memory.Get(key); ok {
			s.meta.Hits++
			s.recorder.CacheHit(metrics.TierMemory)
			s.touchLocked(key, entry)
			cp := *entry
			return &cp, true
		}
	}

	if s.persistent() {
		entry, raw, ok := s.readPersistent(ctx, key)
		if ok {
			s.meta.Hits++
			s.recorder.CacheHit(metrics.TierPersistent)
			if _, tracked := s.index[key]; !tracked {
				s.trackLocked(key, int64(len(raw)), entry.Timestamp, entry.LastAccessed)
			}
			s.touchLocked(key, entry)
			s.addToMemoryLocked(key, entry)
			cp := *entry
			return &cp, true
		}
	}

	s.meta.Misses++
	s.recorder.CacheMiss()
	return nil, false
}

// readPersistent loads and decodes an entry from the store. Corrupt values count as absent.
func (s *Service) readPersistent(ctx context.Context, key string) (*Entry, string, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read cache entry", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		return nil, "", false
	}
	if !ok {
		return nil, "", false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn("Ignoring corrupt cache entry", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		return nil, "", false
	}
	return &entry, raw, true
}

// Set stores data under key for ttl. Entries that do not fit the byte budget are not cached.
func (s *Service) Set(ctx context.Context, key string, data any, ttl time.Duration, opts SetOptions) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("Failed to encode cache data", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		return
	}

	if opts.Endpoint == "" || opts.Method == "" {
		if method, endpoint, ok := ParseKey(key); ok {
			if opts.Method == "" {
				opts.Method = method
			}
			if opts.Endpoint == "" {
				opts.Endpoint = endpoint
			}
		}
	}

	nowMs := s.nowMillis()
	entry := &Entry{
		Data:         raw,
		Timestamp:    nowMs,
		TTL:          ttl.Milliseconds(),
		Endpoint:     opts.Endpoint,
		Method:       opts.Method,
		ETag:         opts.ETag,
		Version:      opts.Version,
		LastAccessed: nowMs,
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		return
	}
	size := int64(len(encoded))

	s.mu.Lock()
	defer s.mu.Unlock()

	if size > s.opts.MaxSize {
		s.logger.Warn("Cache entry exceeds the cache size budget, not caching",
			zap.String(log.LoggerKeyCacheKey, key), zap.Int64("size", size), zap.Int64("maxSize", s.opts.MaxSize))
		return
	}

	// The previous value is replaced, so it must not count against the budget.
	s.untrackLocked(key)
	if s.meta.Size+size > s.opts.MaxSize {
		s.evictLocked(ctx, s.meta.Size+size-s.opts.MaxSize)
	}

	stored := false
	if s.memory != nil {
		s.addToMemoryLocked(key, entry)
		stored = true
	}

	if s.persistent() {
		err := s.store.Set(ctx, key, string(encoded))
		if errors.Is(err, kvstore.ErrQuotaExceeded) {
			s.logger.Warn("Storage quota exceeded, evicting and retrying",
				zap.String(log.LoggerKeyCacheKey, key), zap.Int64("size", size))
			s.evictLocked(ctx, 2*size)
			err = s.store.Set(ctx, key, string(encoded))
		}
		if err != nil {
			s.logger.Warn("Failed to persist cache entry", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		} else {
			stored = true
		}
	}

	if stored {
		s.trackLocked(key, size, entry.Timestamp, entry.LastAccessed)
	}
	s.persistMetadataLocked(ctx)
}

// Remove deletes key from both tiers.
func (s *Service) Remove(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(ctx, key)
	s.persistMetadataLocked(ctx)
}

// Clear deletes every entry from both tiers and zeroes the metadata.
func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked(ctx)
}

// Reset clears every entry and the metadata, returning the service to its initial state.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked(ctx)
	if s.persistent() {
		if err := s.store.Remove(ctx, MetadataKey); err != nil {
			s.logger.Warn("Failed to remove cache metadata", zap.Error(err))
		}
	}
}

func (s *Service) clearLocked(ctx context.Context) {
	if s.memory != nil {
		s.memory.Purge()
	}
	if s.persistent() {
		keys, err := s.store.Keys(ctx, KeyPrefix)
		if err != nil {
			s.logger.Warn("Failed to list cache entries", zap.Error(err))
		}
		for _, key := range keys {
			if err := s.store.Remove(ctx, key); err != nil {
				s.logger.Warn("Failed to remove cache entry", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
			}
		}
	}
	s.index = make(map[string]*list.Element)
	s.order.Init()
	s.meta = Metadata{}
	s.persistMetadataLocked(ctx)

	s.logger.Debug("Cleared all cache entries")
}

// Invalidate removes the entry named by pattern, or every entry whose key starts with
// the pattern when it ends with "*". It returns the number of keys removed.
func (s *Service) Invalidate(ctx context.Context, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		_, tracked := s.index[pattern]
		s.removeLocked(ctx, pattern)
		s.persistMetadataLocked(ctx)
		if tracked {
			return 1
		}
		return 0
	}

	keys := make(map[string]struct{})
	for key := range s.index {
		if strings.HasPrefix(key, prefix) {
			keys[key] = struct{}{}
		}
	}
	if s.memory != nil {
		for _, key := range s.memory.Keys() {
			if strings.HasPrefix(key, prefix) {
				keys[key] = struct{}{}
			}
		}
	}
	if s.persistent() {
		stored, err := s.store.Keys(ctx, prefix)
		if err != nil {
			s.logger.Warn("Failed to list cache entries", zap.String("pattern", pattern), zap.Error(err))
		}
		for _, key := range stored {
			if strings.HasPrefix(key, KeyPrefix) {
				keys[key] = struct{}{}
			}
		}
	}

	for key := range keys {
		s.removeLocked(ctx, key)
	}
	s.persistMetadataLocked(ctx)

	s.logger.Debug("Invalidated cache entries", zap.String("pattern", pattern), zap.Int("removed", len(keys)))
	return len(keys)
}

func (s *Service) removeLocked(ctx context.Context, key string) {
	if s.memory != nil {
		s.memory.Remove(key)
	}
	if s.persistent() {
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Warn("Failed to remove cache entry", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		}
	}
	s.untrackLocked(key)
}

// addToMemoryLocked inserts into the in-memory tier. When that tier is the only one,
// entries it drops for capacity are evictions.
func (s *Service) addToMemoryLocked(key string, entry *Entry) {
	if s.memory == nil {
		return
	}
	if !s.memory.Contains(key) && s.memory.Len() >= s.opts.MemoryEntries {
		if oldest, _, ok := s.memory.RemoveOldest(); ok && !s.persistent() {
			s.untrackLocked(oldest)
			s.meta.Evictions++
			s.recorder.CacheEviction()
			s.logger.Debug("Evicted entry from the in-memory tier", zap.String(log.LoggerKeyCacheKey, oldest))
		}
	}
	s.memory.Add(key, entry)
}

// IsExpired reports whether entry is expired now.
func (s *Service) IsExpired(entry *Entry) bool {
	return entry.IsExpiredAt(s.now())
}

// Metadata returns a snapshot of the cache metadata.
func (s *Service) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s *Service) HitRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.meta.Hits + s.meta.Misses
	if total == 0 {
		return 0
	}
	return float64(s.meta.Hits) / float64(total)
}

// MaxSize returns the configured byte budget.
func (s *Service) MaxSize() int64 {
	return s.opts.MaxSize
}

// Close stops the cleanup sweep, waits for in-flight fetches and persists the metadata.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.stopCh)
		s.loopDone.Wait()
		s.inflight.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.persistMetadataLocked(context.Background())
		s.logger.Debug("Cache service closed")
	})
	return err
}

func (s *Service) loadMetadata(ctx context.Context) {
	raw, ok, err := s.store.Get(ctx, MetadataKey)
	if err != nil {
		s.logger.Warn("Failed to load cache metadata", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		s.logger.Warn("Ignoring corrupt cache metadata", zap.Error(err))
		return
	}
	s.meta = meta
}

func (s *Service) persistMetadataLocked(ctx context.Context) error {
	if !s.persistent() {
		return nil
	}
	raw, err := json.Marshal(s.meta)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, MetadataKey, string(raw)); err != nil {
		s.logger.Warn("Failed to persist cache metadata", zap.Error(err))
		return err
	}
	return nil
}
