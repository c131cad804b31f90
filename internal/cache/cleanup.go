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

package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/log"
)

// startCleanupLoop runs Cleanup every CleanupInterval until Close.
func (s *Service) startCleanupLoop() {
	s.loopDone.Add(1)
	go func() {
		defer s.loopDone.Done()

		ticker := time.NewTicker(s.opts.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Cleanup(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()

	s.logger.Debug("Cache cleanup routine started", zap.Duration("interval", s.opts.CleanupInterval))
}

// Cleanup removes every expired entry and every entry whose stored value cannot be
// decoded. It returns the number of entries removed.
func (s *Service) Cleanup(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make(map[string]struct{}, len(s.index))
	for key := range s.index {
		keys[key] = struct{}{}
	}
	if s.memory != nil {
		for _, key := range s.memory.Keys() {
			keys[key] = struct{}{}
		}
	}
	if s.persistent() {
		stored, err := s.store.Keys(ctx, KeyPrefix)
		if err != nil {
			s.logger.Warn("Failed to list cache entries for cleanup", zap.Error(err))
		}
		for _, key := range stored {
			keys[key] = struct{}{}
		}
	}

	removed := 0
	for key := range keys {
		expired, corrupt := s.inspectLocked(ctx, key, now)
		if !expired && !corrupt {
			continue
		}
		s.removeLocked(ctx, key)
		removed++
		if expired {
			s.recorder.CacheExpired()
		} else {
			s.logger.Debug("Removed corrupt cache entry", zap.String(log.LoggerKeyCacheKey, key))
		}
	}

	s.meta.LastCleanup = now.UnixMilli()
	s.persistMetadataLocked(ctx)

	if removed > 0 {
		s.logger.Debug("Cache cleanup completed", zap.Int("removed", removed), zap.Int("entries", s.meta.Entries))
	}
	return removed
}

// inspectLocked reports whether the entry under key is expired or corrupt.
// Read failures leave the entry in place.
func (s *Service) inspectLocked(ctx context.Context, key string, now time.Time) (expired, corrupt bool) {
	if s.memory != nil {
		if entry, ok := s.memory.Peek(key); ok {
			return entry.IsExpiredAt(now), false
		}
	}
	if !s.persistent() {
		return false, false
	}

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read cache entry for cleanup", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		return false, false
	}
	if !ok {
		// Tracked but gone from the store.
		_, tracked := s.index[key]
		return false, tracked
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return false, true
	}
	return entry.IsExpiredAt(now), false
}
