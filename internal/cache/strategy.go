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
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/log"
)

// Fetcher loads a fresh value from the origin.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Final is implemented by fetch errors that carry an answer from the origin, such as a
// rejected request. NetworkFirst returns them instead of falling back to a cached value.
type Final interface {
	Final() bool
}

// Source reports where a strategy took the returned value from.
type Source int

const (
	// SourceCache means the value was read from the cache, possibly stale.
	SourceCache Source = iota
	// SourceOrigin means the value was fetched while the caller waited.
	SourceOrigin
)

// CacheFirst returns the cached value when it is present and fresh. Otherwise it fetches,
// stores and returns the fresh value. Concurrent misses for one key share a single fetch.
func CacheFirst[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch Fetcher[T]) (T, error) {
	value, _, err := cacheFirst(ctx, s, key, ttl, fetch)
	return value, err
}

// StaleWhileRevalidate returns the cached value immediately when present. When that value
// is expired a background refresh is started; its failures are only logged.
// Without a cached value it behaves like CacheFirst.
func StaleWhileRevalidate[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, error) {
	value, _, err := staleWhileRevalidate(ctx, s, key, ttl, fetch)
	return value, err
}

// NetworkFirst fetches and stores a fresh value. When the fetch fails it returns any cached
// value regardless of age, and the fetch error when nothing is cached. Final errors and the
// caller's own cancellation are returned without a fallback.
func NetworkFirst[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch Fetcher[T]) (T, error) {
	value, _, err := networkFirst(ctx, s, key, ttl, fetch)
	return value, err
}

// Fetch runs the named strategy.
func Fetch[T any](ctx context.Context, s *Service, strategy Strategy, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, error) {
	value, _, err := FetchWithSource(ctx, s, strategy, key, ttl, fetch)
	return value, err
}

// FetchWithSource runs the named strategy and reports whether the value came from the cache.
// A background refresh started by the strategy does not change the reported source.
func FetchWithSource[T any](ctx context.Context, s *Service, strategy Strategy, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, Source, error) {
	switch strategy {
	case StrategyCacheFirst:
		return cacheFirst(ctx, s, key, ttl, fetch)
	case StrategyStaleWhileRevalidate:
		return staleWhileRevalidate(ctx, s, key, ttl, fetch)
	case StrategyNetworkFirst:
		return networkFirst(ctx, s, key, ttl, fetch)
	default:
		var zero T
		return zero, SourceOrigin, fmt.Errorf("unknown cache strategy: %s", strategy)
	}
}

func cacheFirst[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, Source, error) {
	if value, entry, ok := lookup[T](ctx, s, key); ok && !s.IsExpired(entry) {
		return value, SourceCache, nil
	}
	value, err := fetchAndStore(ctx, s, key, ttl, fetch)
	return value, SourceOrigin, err
}

func staleWhileRevalidate[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, Source, error) {
	value, entry, ok := lookup[T](ctx, s, key)
	if !ok {
		value, err := fetchAndStore(ctx, s, key, ttl, fetch)
		return value, SourceOrigin, err
	}
	if s.IsExpired(entry) {
		revalidate(ctx, s, key, ttl, fetch)
	}
	return value, SourceCache, nil
}

func networkFirst[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, Source, error) {
	value, err := fetchAndStore(ctx, s, key, ttl, fetch)
	if err == nil {
		return value, SourceOrigin, nil
	}
	var final Final
	if ctx.Err() != nil || (errors.As(err, &final) && final.Final()) {
		return value, SourceOrigin, err
	}

	if cached, _, ok := lookup[T](ctx, s, key); ok {
		s.logger.Warn("Fetch failed, serving cached value", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		return cached, SourceCache, nil
	}
	return value, SourceOrigin, err
}

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch strategy := Strategy(name); strategy {
	case StrategyCacheFirst, StrategyStaleWhileRevalidate, StrategyNetworkFirst:
		return strategy, nil
	default:
		return "", fmt.Errorf("unknown cache strategy: %s", name)
	}
}

// lookup returns the decoded cached value. Values that do not decode into T count as absent.
func lookup[T any](ctx context.Context, s *Service, key string) (T, *Entry, bool) {
	var value T
	entry, ok := s.Get(ctx, key)
	if !ok {
		return value, nil, false
	}
	if err := entry.Decode(&value); err != nil {
		s.logger.Warn("Cached value does not match the requested type", zap.String(log.LoggerKeyCacheKey, key),
			zap.Error(err))
		return value, nil, false
	}
	return value, entry, true
}

// fetchAndStore fetches through the per key singleflight group and caches successful results.
// The shared fetch runs detached from any single caller and is bounded by flightTimeout.
// Each caller stops waiting when its own context is done.
func fetchAndStore[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch Fetcher[T]) (T, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		s.mu.Lock()
		closed := s.closed
		if !closed {
			s.inflight.Add(1)
		}
		s.mu.Unlock()
		if !closed {
			defer s.inflight.Done()
		}

		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		value, err := fetch(flightCtx)
		if err != nil {
			return value, err
		}
		s.Set(flightCtx, key, value, ttl, SetOptions{})
		return value, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Shared an in-flight fetch", zap.String(log.LoggerKeyCacheKey, key))
		}
		value, convErr := convert[T](res.Val)
		if res.Err != nil {
			return value, res.Err
		}
		return value, convErr
	}
}

// revalidate refreshes key in the background, detached from the caller's cancellation.
func revalidate[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch Fetcher[T]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		if _, err := fetchAndStore(context.WithoutCancel(ctx), s, key, ttl, fetch); err != nil {
			s.logger.Warn("Background revalidation failed", zap.String(log.LoggerKeyCacheKey, key), zap.Error(err))
		}
	}()
}

// convert returns v as T. A caller sharing a flight with a different type gets the value
// through a JSON round trip.
func convert[T any](v any) (T, error) {
	var out T
	if v == nil {
		return out, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
