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
	"sync"
	"testing"
	"time"

	"github.com/asgardeo/stayfront/internal/kvstore"
)

var testEpoch = time.UnixMilli(1700000000000)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingRecorder struct {
	mu        sync.Mutex
	hits      map[string]int
	misses    int
	evictions int
	expired   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}}
}

func (r *countingRecorder) CacheHit(tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[tier]++
}

func (r *countingRecorder) CacheMiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

func (r *countingRecorder) CacheEviction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions++
}

func (r *countingRecorder) CacheExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *countingRecorder) RateLimited(string) {}

func (r *countingRecorder) FetchAttempt(string) {}

func (r *countingRecorder) FetchRetry() {}

func (r *countingRecorder) hitCount(tier string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[tier]
}

// newTestService builds a service on a fake clock whose cleanup loop never fires during a test.
func newTestService(t *testing.T, store kvstore.Store, opts Options, clock *fakeClock) *Service {
	t.Helper()
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = time.Hour
	}
	svc := newService(context.Background(), store, opts, clock.Now)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// measureEntrySize returns the byte size the cache accounts for one entry with the given shape.
func measureEntrySize(t *testing.T, key string, data any, ttl time.Duration) int64 {
	t.Helper()
	sample := newTestService(t, kvstore.NewMemoryStore(), Options{}, newFakeClock())
	sample.Set(context.Background(), key, data, ttl, SetOptions{})
	return sample.Metadata().Size
}
