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

// Package metrics records cache, rate limiter and fetch events.
package metrics

// Cache tiers reported on hits.
const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// Fetch outcomes reported per attempt.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeTimeout     = "timeout"
	OutcomeNetwork     = "network"
	OutcomeCancelled   = "cancelled"
)

// Recorder receives events from the cache, the rate limiter and the fetch client.
type Recorder interface {
	CacheHit(tier string)
	CacheMiss()
	CacheEviction()
	CacheExpired()
	RateLimited(category string)
	FetchAttempt(outcome string)
	FetchRetry()
}

// Noop is a Recorder that discards every event.
type Noop struct{}

// CacheHit implements Recorder.
func (Noop) CacheHit(string) {}

// CacheMiss implements Recorder.
func (Noop) CacheMiss() {}

// CacheEviction implements Recorder.
func (Noop) CacheEviction() {}

// CacheExpired implements Recorder.
func (Noop) CacheExpired() {}

// RateLimited implements Recorder.
func (Noop) RateLimited(string) {}

// FetchAttempt implements Recorder.
func (Noop) FetchAttempt(string) {}

// FetchRetry implements Recorder.
func (Noop) FetchRetry() {}

// OrNoop returns r, or a Noop recorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}
