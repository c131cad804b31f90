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

package kvstore

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/log"
)

// QuotaStore wraps a Store and rejects writes that would exceed a byte quota.
// Usage is counted as len(key)+len(value) for every stored key.
type QuotaStore struct {
	inner Store
	quota int64

	mu    sync.Mutex
	sizes map[string]int64
	used  int64
}

// NewQuotaStore wraps inner with the given quota and seeds usage from its current contents.
func NewQuotaStore(ctx context.Context, inner Store, quota int64) (*QuotaStore, error) {
	if quota <= 0 {
		quota = DefaultQuotaBytes
	}
	q := &QuotaStore{
		inner: inner,
		quota: quota,
		sizes: make(map[string]int64),
	}

	keys, err := inner.Keys(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load existing keys: %w", err)
	}
	for _, key := range keys {
		value, ok, err := inner.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing key %q: %w", key, err)
		}
		if ok {
			q.track(key, value)
		}
	}

	if q.used > q.quota {
		logger := log.GetLogger().With(zap.String(log.LoggerKeyComponentName, "QuotaStore"))
		logger.Warn("Existing data exceeds the storage quota",
			zap.Int64("used", q.used), zap.Int64("quota", q.quota))
	}

	return q, nil
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func (q *QuotaStore) track(key, value string) {
	size := entrySize(key, value)
	q.used += size - q.sizes[key]
	q.sizes[key] = size
}

func (q *QuotaStore) untrack(key string) {
	q.used -= q.sizes[key]
	delete(q.sizes, key)
}

// Get returns the value stored under key.
func (q *QuotaStore) Get(ctx context.Context, key string) (string, bool, error) {
	return q.inner.Get(ctx, key)
}

// Set stores value under key, or returns ErrQuotaExceeded if it does not fit.
func (q *QuotaStore) Set(ctx context.Context, key, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delta := entrySize(key, value) - q.sizes[key]
	if delta > 0 && q.used+delta > q.quota {
		return fmt.Errorf("%w: writing %d bytes with %d of %d used", ErrQuotaExceeded, delta, q.used, q.quota)
	}
	if err := q.inner.Set(ctx, key, value); err != nil {
		return err
	}
	q.track(key, value)
	return nil
}

// Remove deletes key and releases its share of the quota.
func (q *QuotaStore) Remove(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.inner.Remove(ctx, key); err != nil {
		return err
	}
	q.untrack(key)
	return nil
}

// Keys lists the keys starting with prefix.
func (q *QuotaStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return q.inner.Keys(ctx, prefix)
}

// Used returns the number of bytes currently counted against the quota.
func (q *QuotaStore) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Quota returns the configured quota in bytes.
func (q *QuotaStore) Quota() int64 {
	return q.quota
}

// Close closes the wrapped store.
func (q *QuotaStore) Close() error {
	return q.inner.Close()
}
