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
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stayfront/internal/kvstore"
	"github.com/asgardeo/stayfront/internal/metrics"
	"github.com/asgardeo/stayfront/tests/mocks/kvstoremock"
)

type CacheServiceTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *kvstore.MemoryStore
	clock *fakeClock
}

func TestCacheServiceSuite(t *testing.T) {
	suite.Run(t, new(CacheServiceTestSuite))
}

func (suite *CacheServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = kvstore.NewMemoryStore()
	suite.clock = newFakeClock()
}

func (suite *CacheServiceTestSuite) newService(opts Options) *Service {
	return newTestService(suite.T(), suite.store, opts, suite.clock)
}

func (suite *CacheServiceTestSuite) storedKeys() []string {
	keys, err := suite.store.Keys(suite.ctx, KeyPrefix)
	require.NoError(suite.T(), err)
	return keys
}

func (suite *CacheServiceTestSuite) TestSetAndGet() {
	svc := suite.newService(Options{})
	key := BuildKey("get", "/services")

	svc.Set(suite.ctx, key, map[string]int{"count": 3}, time.Minute, SetOptions{ETag: `"v1"`})

	entry, ok := svc.Get(suite.ctx, key)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), "cache:GET:/services", key)
	assert.Equal(suite.T(), "/services", entry.Endpoint)
	assert.Equal(suite.T(), "GET", entry.Method)
	assert.Equal(suite.T(), `"v1"`, entry.ETag)
	assert.Equal(suite.T(), testEpoch.UnixMilli(), entry.Timestamp)
	assert.Equal(suite.T(), int64(60000), entry.TTL)
	assert.JSONEq(suite.T(), `{"count":3}`, string(entry.Data))

	var decoded map[string]int
	require.NoError(suite.T(), entry.Decode(&decoded))
	assert.Empty(suite.T(), cmp.Diff(map[string]int{"count": 3}, decoded))

	meta := svc.Metadata()
	assert.Equal(suite.T(), int64(1), meta.Hits)
	assert.Equal(suite.T(), 1, meta.Entries)
	assert.Positive(suite.T(), meta.Size)
}

func (suite *CacheServiceTestSuite) TestGetMissCountsMiss() {
	svc := suite.newService(Options{})

	entry, ok := svc.Get(suite.ctx, BuildKey("GET", "/missing"))

	assert.False(suite.T(), ok)
	assert.Nil(suite.T(), entry)
	assert.Equal(suite.T(), int64(1), svc.Metadata().Misses)
	assert.Equal(suite.T(), 0.0, svc.HitRate())
}

func (suite *CacheServiceTestSuite) TestHitRate() {
	svc := suite.newService(Options{})
	key := BuildKey("GET", "/services")
	svc.Set(suite.ctx, key, "x", time.Minute, SetOptions{})

	svc.Get(suite.ctx, key)
	svc.Get(suite.ctx, key)
	svc.Get(suite.ctx, key)
	svc.Get(suite.ctx, BuildKey("GET", "/other"))

	assert.InDelta(suite.T(), 0.75, svc.HitRate(), 1e-9)
}

func (suite *CacheServiceTestSuite) TestTTLBoundary() {
	svc := suite.newService(Options{})
	key := BuildKey("GET", "/availability")
	svc.Set(suite.ctx, key, "slots", 10*time.Second, SetOptions{})

	suite.clock.Advance(10*time.Second - time.Millisecond)
	entry, ok := svc.Get(suite.ctx, key)
	require.True(suite.T(), ok)
	assert.False(suite.T(), svc.IsExpired(entry))

	suite.clock.Advance(time.Millisecond)
	entry, ok = svc.Get(suite.ctx, key)
	require.True(suite.T(), ok, "get does not check expiry")
	assert.True(suite.T(), svc.IsExpired(entry))
	assert.Equal(suite.T(), testEpoch.Add(10*time.Second), entry.ExpiresAt())

	suite.clock.Advance(time.Hour)
	assert.True(suite.T(), svc.IsExpired(entry))
}

func (suite *CacheServiceTestSuite) TestPersistentTierPromotesAfterRestart() {
	key := BuildKey("GET", "/services")
	first := suite.newService(Options{})
	first.Set(suite.ctx, key, []string{"massage"}, time.Minute, SetOptions{})
	first.Get(suite.ctx, key)
	require.NoError(suite.T(), first.Close())

	recorder := newCountingRecorder()
	second := suite.newService(Options{Recorder: recorder})

	meta := second.Metadata()
	assert.Equal(suite.T(), int64(1), meta.Hits, "metadata survives restart")
	assert.Equal(suite.T(), 1, meta.Entries, "index rebuilt from the store")

	entry, ok := second.Get(suite.ctx, key)
	require.True(suite.T(), ok)
	assert.JSONEq(suite.T(), `["massage"]`, string(entry.Data))
	assert.Equal(suite.T(), 1, recorder.hitCount(metrics.TierPersistent))

	_, ok = second.Get(suite.ctx, key)
	require.True(suite.T(), ok)
	assert.Equal(suite.T(), 1, recorder.hitCount(metrics.TierMemory), "promoted into memory")
}

func (suite *CacheServiceTestSuite) TestSizeBoundHolds() {
	size := measureEntrySize(suite.T(), "cache:GET:/k0", "payload", time.Minute)
	svc := suite.newService(Options{MaxSize: 3 * size})

	for i := 0; i < 10; i++ {
		suite.clock.Advance(time.Second)
		svc.Set(suite.ctx, BuildKey("GET", "/k"+string(rune('0'+i))), "payload", time.Minute, SetOptions{})
		assert.LessOrEqual(suite.T(), svc.Metadata().Size, svc.MaxSize())
	}

	meta := svc.Metadata()
	assert.Equal(suite.T(), 3, meta.Entries)
	assert.Equal(suite.T(), int64(7), meta.Evictions)
	assert.Equal(suite.T(), []string{"cache:GET:/k7", "cache:GET:/k8", "cache:GET:/k9"}, suite.storedKeys())
}

func (suite *CacheServiceTestSuite) TestOversizedEntryIsNotCached() {
	svc := suite.newService(Options{MaxSize: 64})
	key := BuildKey("GET", "/huge")

	svc.Set(suite.ctx, key, "this value is far larger than the sixty four byte budget allows", time.Minute,
		SetOptions{})

	_, ok := svc.Get(suite.ctx, key)
	assert.False(suite.T(), ok)
	assert.Equal(suite.T(), int64(0), svc.Metadata().Size)
}

func (suite *CacheServiceTestSuite) TestWriteOrderEvictsOldestWrite() {
	size := measureEntrySize(suite.T(), "cache:GET:/a", "v", time.Minute)
	recorder := newCountingRecorder()
	svc := suite.newService(Options{MaxSize: 3 * size, EvictionOrder: EvictionOrderWrite, Recorder: recorder})

	for _, endpoint := range []string{"/a", "/b", "/c"} {
		suite.clock.Advance(time.Second)
		svc.Set(suite.ctx, BuildKey("GET", endpoint), "v", time.Minute, SetOptions{})
	}
	suite.clock.Advance(time.Second)
	_, ok := svc.Get(suite.ctx, "cache:GET:/a")
	require.True(suite.T(), ok)

	suite.clock.Advance(time.Second)
	svc.Set(suite.ctx, "cache:GET:/d", "v", time.Minute, SetOptions{})

	assert.Equal(suite.T(), []string{"cache:GET:/b", "cache:GET:/c", "cache:GET:/d"}, suite.storedKeys())
	assert.Equal(suite.T(), int64(1), svc.Metadata().Evictions)
	assert.Equal(suite.T(), 1, recorder.evictions)
}

func (suite *CacheServiceTestSuite) TestAccessOrderKeepsRecentlyRead() {
	size := measureEntrySize(suite.T(), "cache:GET:/a", "v", time.Minute)
	svc := suite.newService(Options{MaxSize: 3 * size})

	for _, endpoint := range []string{"/a", "/b", "/c"} {
		suite.clock.Advance(time.Second)
		svc.Set(suite.ctx, BuildKey("GET", endpoint), "v", time.Minute, SetOptions{})
	}
	suite.clock.Advance(time.Second)
	_, ok := svc.Get(suite.ctx, "cache:GET:/a")
	require.True(suite.T(), ok)

	suite.clock.Advance(time.Second)
	svc.Set(suite.ctx, "cache:GET:/d", "v", time.Minute, SetOptions{})

	assert.Equal(suite.T(), []string{"cache:GET:/a", "cache:GET:/c", "cache:GET:/d"}, suite.storedKeys())
}

func (suite *CacheServiceTestSuite) TestEvictionRemovesInAscendingOrderUntilFreed() {
	size := measureEntrySize(suite.T(), "cache:GET:/a", "v", time.Minute)
	svc := suite.newService(Options{MaxSize: 4 * size, EvictionOrder: EvictionOrderWrite})

	for _, endpoint := range []string{"/c", "/a", "/d", "/b"} {
		suite.clock.Advance(time.Second)
		svc.Set(suite.ctx, BuildKey("GET", endpoint), "v", time.Minute, SetOptions{})
	}

	// A wider value needs the space of two entries.
	suite.clock.Advance(time.Second)
	svc.Set(suite.ctx, "cache:GET:/e", "vvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvvv",
		time.Minute, SetOptions{})

	assert.Equal(suite.T(), []string{"cache:GET:/b", "cache:GET:/d", "cache:GET:/e"}, suite.storedKeys())
	assert.Equal(suite.T(), int64(2), svc.Metadata().Evictions)
	assert.LessOrEqual(suite.T(), svc.Metadata().Size, svc.MaxSize())
}

func (suite *CacheServiceTestSuite) TestQuotaExceededEvictsAndRetries() {
	sampleStore, err := kvstore.NewQuotaStore(suite.ctx, kvstore.NewMemoryStore(), 1<<20)
	require.NoError(suite.T(), err)
	sample := newTestService(suite.T(), sampleStore, Options{}, newFakeClock())
	sample.Set(suite.ctx, "cache:GET:/a", "v", time.Minute, SetOptions{})
	sample.Set(suite.ctx, "cache:GET:/b", "v", time.Minute, SetOptions{})
	size := sample.Metadata().Size / 2

	quotaStore, err := kvstore.NewQuotaStore(suite.ctx, kvstore.NewMemoryStore(), sampleStore.Used()+size/2)
	require.NoError(suite.T(), err)
	svc := newTestService(suite.T(), quotaStore, Options{}, suite.clock)

	svc.Set(suite.ctx, "cache:GET:/a", "v", time.Minute, SetOptions{})
	suite.clock.Advance(time.Second)
	svc.Set(suite.ctx, "cache:GET:/b", "v", time.Minute, SetOptions{})
	suite.clock.Advance(time.Second)
	svc.Set(suite.ctx, "cache:GET:/c", "v", time.Minute, SetOptions{})

	keys, err := quotaStore.Keys(suite.ctx, KeyPrefix)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"cache:GET:/c"}, keys)
	assert.Equal(suite.T(), int64(2), svc.Metadata().Evictions)
	assert.Equal(suite.T(), 1, svc.Metadata().Entries)
}

func (suite *CacheServiceTestSuite) TestRemoveAndClear() {
	svc := suite.newService(Options{})
	svc.Set(suite.ctx, "cache:GET:/a", 1, time.Minute, SetOptions{})
	svc.Set(suite.ctx, "cache:GET:/b", 2, time.Minute, SetOptions{})
	require.NoError(suite.T(), suite.store.Set(suite.ctx, "rate_limiter_state", "{}"))

	svc.Remove(suite.ctx, "cache:GET:/a")
	_, ok := svc.Get(suite.ctx, "cache:GET:/a")
	assert.False(suite.T(), ok)
	assert.Equal(suite.T(), 1, svc.Metadata().Entries)

	svc.Clear(suite.ctx)
	assert.Empty(suite.T(), suite.storedKeys())
	assert.Equal(suite.T(), Metadata{}, svc.Metadata())

	_, ok, _ = suite.store.Get(suite.ctx, "rate_limiter_state")
	assert.True(suite.T(), ok, "clear leaves keys it does not own")
}

func (suite *CacheServiceTestSuite) TestReset() {
	svc := suite.newService(Options{})
	svc.Set(suite.ctx, "cache:GET:/a", 1, time.Minute, SetOptions{})

	svc.Reset(suite.ctx)

	assert.Empty(suite.T(), suite.storedKeys())
	_, ok, _ := suite.store.Get(suite.ctx, MetadataKey)
	assert.False(suite.T(), ok)
}

func (suite *CacheServiceTestSuite) TestInvalidate() {
	svc := suite.newService(Options{})
	for _, endpoint := range []string{"/bookings", "/bookings/42", "/bookings-archive", "/services"} {
		svc.Set(suite.ctx, BuildKey("GET", endpoint), endpoint, time.Minute, SetOptions{})
	}

	assert.Equal(suite.T(), 1, svc.Invalidate(suite.ctx, "cache:GET:/services"))
	assert.Equal(suite.T(), 0, svc.Invalidate(suite.ctx, "cache:GET:/services"))
	assert.Equal(suite.T(), 3, svc.Invalidate(suite.ctx, "cache:GET:/bookings*"))

	assert.Empty(suite.T(), suite.storedKeys())
	assert.Equal(suite.T(), 0, svc.Metadata().Entries)
}

func (suite *CacheServiceTestSuite) TestCleanupRemovesExpiredAndCorrupt() {
	require.NoError(suite.T(), suite.store.Set(suite.ctx, "cache:GET:/corrupt", "{not json"))
	recorder := newCountingRecorder()
	svc := suite.newService(Options{Recorder: recorder})
	assert.Equal(suite.T(), 1, svc.Metadata().Entries, "corrupt entries are tracked until cleanup")

	svc.Set(suite.ctx, "cache:GET:/short", "x", time.Second, SetOptions{})
	svc.Set(suite.ctx, "cache:GET:/long", "x", time.Hour, SetOptions{})
	suite.clock.Advance(2 * time.Second)

	removed := svc.Cleanup(suite.ctx)

	assert.Equal(suite.T(), 2, removed)
	assert.Equal(suite.T(), []string{"cache:GET:/long"}, suite.storedKeys())
	assert.Equal(suite.T(), 1, recorder.expired)
	meta := svc.Metadata()
	assert.Equal(suite.T(), 1, meta.Entries)
	assert.Equal(suite.T(), suite.clock.Now().UnixMilli(), meta.LastCleanup)
}

func (suite *CacheServiceTestSuite) TestCorruptEntryReadsAsMiss() {
	require.NoError(suite.T(), suite.store.Set(suite.ctx, "cache:GET:/corrupt", "[1,2"))
	svc := suite.newService(Options{})

	_, ok := svc.Get(suite.ctx, "cache:GET:/corrupt")

	assert.False(suite.T(), ok)
}

func (suite *CacheServiceTestSuite) TestMemoryOnlyEvictsByEntryCount() {
	svc := suite.newService(Options{DisablePersistent: true, MemoryEntries: 2})

	svc.Set(suite.ctx, "cache:GET:/a", 1, time.Minute, SetOptions{})
	svc.Set(suite.ctx, "cache:GET:/b", 2, time.Minute, SetOptions{})
	svc.Set(suite.ctx, "cache:GET:/c", 3, time.Minute, SetOptions{})

	_, ok := svc.Get(suite.ctx, "cache:GET:/a")
	assert.False(suite.T(), ok)
	meta := svc.Metadata()
	assert.Equal(suite.T(), 2, meta.Entries)
	assert.Equal(suite.T(), int64(1), meta.Evictions)

	keys, err := suite.store.Keys(suite.ctx, "")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), keys, "persistent tier disabled")
}

func (suite *CacheServiceTestSuite) TestPersistentOnly() {
	recorder := newCountingRecorder()
	svc := suite.newService(Options{DisableMemoryCache: true, Recorder: recorder})

	svc.Set(suite.ctx, "cache:GET:/a", 1, time.Minute, SetOptions{})
	_, ok := svc.Get(suite.ctx, "cache:GET:/a")

	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), 1, recorder.hitCount(metrics.TierPersistent))
	assert.Equal(suite.T(), 0, recorder.hitCount(metrics.TierMemory))
}

func (suite *CacheServiceTestSuite) TestStorageFailuresDegrade() {
	failure := errors.New("storage unavailable")
	store := &kvstoremock.MockStore{
		MockGet:    func(context.Context, string) (string, bool, error) { return "", false, failure },
		MockSet:    func(context.Context, string, string) error { return failure },
		MockRemove: func(context.Context, string) error { return failure },
		MockKeys:   func(context.Context, string) ([]string, error) { return nil, failure },
	}
	svc := newTestService(suite.T(), store, Options{DisableMemoryCache: true}, suite.clock)

	svc.Set(suite.ctx, "cache:GET:/a", 1, time.Minute, SetOptions{})
	_, ok := svc.Get(suite.ctx, "cache:GET:/a")
	assert.False(suite.T(), ok)
	assert.Equal(suite.T(), 0, svc.Metadata().Entries)

	svc.Remove(suite.ctx, "cache:GET:/a")
	svc.Clear(suite.ctx)
	assert.Equal(suite.T(), 0, svc.Invalidate(suite.ctx, "cache:*"))
	assert.Equal(suite.T(), 0, svc.Cleanup(suite.ctx))
	assert.Contains(suite.T(), store.SetKeys(), "cache:GET:/a")
}

func (suite *CacheServiceTestSuite) TestCloseIsIdempotent() {
	svc := newService(suite.ctx, suite.store, Options{CleanupInterval: time.Hour}, suite.clock.Now)

	assert.NoError(suite.T(), svc.Close())
	assert.NoError(suite.T(), svc.Close())

	_, ok, _ := suite.store.Get(suite.ctx, MetadataKey)
	assert.True(suite.T(), ok)
}

func TestCleanupLoopRuns(t *testing.T) {
	clock := newFakeClock()
	store := kvstore.NewMemoryStore()
	svc := newTestService(t, store, Options{CleanupInterval: 10 * time.Millisecond}, clock)
	svc.Set(context.Background(), "cache:GET:/a", 1, time.Second, SetOptions{})
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return svc.Metadata().Entries == 0
	}, time.Second, 10*time.Millisecond)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cache:POST:/bookings", BuildKey("post", "/bookings"))

	method, endpoint, ok := ParseKey("cache:GET:/blog/posts?tag=spa:day")
	assert.True(t, ok)
	assert.Equal(t, "GET", method)
	assert.Equal(t, "/blog/posts?tag=spa:day", endpoint)

	_, _, ok = ParseKey("rate_limiter_state")
	assert.False(t, ok)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{EvictionOrder: "bogus"}.withDefaults()

	assert.Equal(t, DefaultMaxSize, opts.MaxSize)
	assert.Equal(t, DefaultCleanupInterval, opts.CleanupInterval)
	assert.Equal(t, DefaultMemoryEntries, opts.MemoryEntries)
	assert.Equal(t, EvictionOrderAccess, opts.EvictionOrder)
	assert.Equal(t, metrics.Noop{}, opts.Recorder)
}
