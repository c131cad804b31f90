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
	"encoding/json"
	"time"

	"github.com/asgardeo/stayfront/internal/metrics"
	"github.com/asgardeo/stayfront/internal/system/config"
)

// Entry is a cached value with its freshness information. Times are epoch milliseconds.
type Entry struct {
	Data         json.RawMessage `json:"data"`
	Timestamp    int64           `json:"timestamp"`
	TTL          int64           `json:"ttl"`
	Endpoint     string          `json:"endpoint"`
	Method       string          `json:"method"`
	ETag         string          `json:"etag,omitempty"`
	Version      string          `json:"version,omitempty"`
	LastAccessed int64           `json:"lastAccessed"`
}

// ExpiresAt returns the instant from which the entry is expired.
func (e *Entry) ExpiresAt() time.Time {
	return time.UnixMilli(e.Timestamp + e.TTL)
}

// IsExpiredAt reports whether the entry is expired at now.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return now.UnixMilli() >= e.Timestamp+e.TTL
}

// Decode unmarshals the cached data into v.
func (e *Entry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Metadata holds the aggregate cache counters. It survives restarts and is reset only by Clear.
type Metadata struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Size        int64 `json:"size"`
	Entries     int   `json:"entries"`
	LastCleanup int64 `json:"lastCleanup"`
	Evictions   int64 `json:"evictions"`
}

// SetOptions carries the optional descriptive fields of an entry.
// Endpoint and Method are derived from the key when empty.
type SetOptions struct {
	Endpoint string
	Method   string
	ETag     string
	Version  string
}

// Options configures a Service. They are read only at construction.
type Options struct {
	MaxSize            int64
	CleanupInterval    time.Duration
	DisableMemoryCache bool
	DisablePersistent  bool
	MemoryEntries      int
	EvictionOrder      EvictionOrder
	Recorder           metrics.Recorder
}

// OptionsFromConfig builds Options from the server cache configuration.
func OptionsFromConfig(cfg config.CacheConfig, recorder metrics.Recorder) Options {
	return Options{
		MaxSize:            cfg.MaxSizeBytes,
		CleanupInterval:    time.Duration(cfg.CleanupInterval) * time.Second,
		DisableMemoryCache: cfg.DisableMemoryCache,
		DisablePersistent:  cfg.DisablePersistent,
		MemoryEntries:      cfg.MemoryEntries,
		EvictionOrder:      EvictionOrder(cfg.EvictionOrder),
		Recorder:           recorder,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
	if o.MemoryEntries <= 0 {
		o.MemoryEntries = DefaultMemoryEntries
	}
	if o.EvictionOrder != EvictionOrderWrite {
		o.EvictionOrder = EvictionOrderAccess
	}
	o.Recorder = metrics.OrNoop(o.Recorder)
	return o
}
