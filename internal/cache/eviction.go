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
	"container/list"
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/log"
)

// indexEntry tracks the size and ordering timestamps of one cached key.
type indexEntry struct {
	key          string
	size         int64
	timestamp    int64
	lastAccessed int64
}

// rank returns the value eviction orders by.
func (s *Service) rank(ie *indexEntry) int64 {
	if s.opts.EvictionOrder == EvictionOrderWrite {
		return ie.timestamp
	}
	return ie.lastAccessed
}

// insertOrderedLocked places ie so the list stays ascending by rank. New entries usually
// carry the latest time, so the walk from the back stops immediately.
func (s *Service) insertOrderedLocked(ie *indexEntry) *list.Element {
	r := s.rank(ie)
	for el := s.order.Back(); el != nil; el = el.Prev() {
		if s.rank(el.Value.(*indexEntry)) <= r {
			return s.order.InsertAfter(ie, el)
		}
	}
	return s.order.PushFront(ie)
}

func (s *Service) trackLocked(key string, size, timestamp, lastAccessed int64) {
	s.untrackLocked(key)

	ie := &indexEntry{
		key:          key,
		size:         size,
		timestamp:    timestamp,
		lastAccessed: lastAccessed,
	}
	s.index[key] = s.insertOrderedLocked(ie)
	s.meta.Size += size
	s.meta.Entries = len(s.index)
}

func (s *Service) untrackLocked(key string) {
	el, ok := s.index[key]
	if !ok {
		return
	}
	ie := s.order.Remove(el).(*indexEntry)
	delete(s.index, key)
	s.meta.Size -= ie.size
	s.meta.Entries = len(s.index)
}

// touchLocked records a read of key.
func (s *Service) touchLocked(key string, entry *Entry) {
	nowMs := s.nowMillis()
	entry.LastAccessed = nowMs

	el, ok := s.index[key]
	if !ok {
		return
	}
	ie := el.Value.(*indexEntry)
	ie.lastAccessed = nowMs
	if s.opts.EvictionOrder == EvictionOrderAccess {
		s.order.Remove(el)
		s.index[key] = s.insertOrderedLocked(ie)
	}
}

// evictLocked removes entries in ascending rank order until at least need bytes are
// freed or nothing is left. It returns the bytes freed.
func (s *Service) evictLocked(ctx context.Context, need int64) int64 {
	var freed int64
	for freed < need {
		el := s.order.Front()
		if el == nil {
			break
		}
		ie := el.Value.(*indexEntry)
		s.removeLocked(ctx, ie.key)
		freed += ie.size
		s.meta.Evictions++
		s.recorder.CacheEviction()
		s.logger.Debug("Evicted cache entry", zap.String(log.LoggerKeyCacheKey, ie.key), zap.Int64("size", ie.size))
	}

	if freed < need {
		s.logger.Warn("Could not free the requested cache space", zap.Int64("requested", need),
			zap.Int64("freed", freed))
	}
	return freed
}

// rebuildIndex reconstructs the size index from the entries found in the persistent store.
// Corrupt entries rank oldest so they are evicted first.
func (s *Service) rebuildIndex(ctx context.Context) {
	keys, err := s.store.Keys(ctx, KeyPrefix)
	if err != nil {
		s.logger.Warn("Failed to list persisted cache entries", zap.Error(err))
		return
	}

	entries := make([]*indexEntry, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Failed to read persisted cache entry", zap.String(log.LoggerKeyCacheKey, key),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		ie := &indexEntry{key: key, size: int64(len(raw))}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil {
			ie.timestamp = entry.Timestamp
			ie.lastAccessed = entry.LastAccessed
		}
		entries = append(entries, ie)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return s.rank(entries[i]) < s.rank(entries[j])
	})

	s.index = make(map[string]*list.Element, len(entries))
	s.order.Init()
	s.meta.Size = 0
	for _, ie := range entries {
		s.index[ie.key] = s.order.PushBack(ie)
		s.meta.Size += ie.size
	}
	s.meta.Entries = len(s.index)
}
