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

import "time"

const (
	// KeyPrefix prefixes every cache entry key in the persistent store.
	KeyPrefix = "cache:"
	// MetadataKey is the persistent store key holding the aggregate cache metadata.
	MetadataKey = "cache-metadata"

	// DefaultMaxSize is the default byte budget for all cache entries.
	DefaultMaxSize int64 = 5 * 1024 * 1024
	// DefaultCleanupInterval is the default period of the expiry sweep.
	DefaultCleanupInterval = 5 * time.Minute
	// DefaultMemoryEntries is the default entry cap of the in-memory tier.
	DefaultMemoryEntries = 1000

	// flightTimeout bounds a shared origin fetch once no caller can cancel it.
	flightTimeout = 5 * time.Minute

	loggerComponentName = "CacheService"
)

// EvictionOrder selects which timestamp orders entries for LRU eviction.
type EvictionOrder string

const (
	// EvictionOrderAccess evicts the least recently read or written entries first.
	EvictionOrderAccess EvictionOrder = "access"
	// EvictionOrderWrite evicts the least recently written entries first.
	EvictionOrderWrite EvictionOrder = "write"
)

// Strategy names a fetch strategy.
type Strategy string

const (
	// StrategyCacheFirst serves fresh cached data and fetches otherwise.
	StrategyCacheFirst Strategy = "cache-first"
	// StrategyStaleWhileRevalidate serves cached data immediately and refreshes expired data in the background.
	StrategyStaleWhileRevalidate Strategy = "stale-while-revalidate"
	// StrategyNetworkFirst fetches first and falls back to cached data on failure.
	StrategyNetworkFirst Strategy = "network-first"
)
