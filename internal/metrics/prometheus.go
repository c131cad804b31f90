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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stayfront"

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheExpired   prometheus.Counter
	rateLimited    *prometheus.CounterVec
	fetchAttempts  *prometheus.CounterVec
	fetchRetries   prometheus.Counter
}

// NewPrometheus registers the collectors with reg and returns a recorder using them.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by tier",
		}, []string{"tier"}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		cacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted to free space",
		}),
		cacheExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_total",
			Help:      "Total number of entries removed by the cleanup sweep",
		}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests denied by the rate limiter by category",
		}, []string{"category"}),
		fetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of upstream fetch attempts by outcome",
		}, []string{"outcome"}),
		fetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Total number of upstream fetch retries",
		}),
	}
}

// CacheHit implements Recorder.
func (p *Prometheus) CacheHit(tier string) {
	p.cacheHits.WithLabelValues(tier).Inc()
}

// CacheMiss implements Recorder.
func (p *Prometheus) CacheMiss() {
	p.cacheMisses.Inc()
}

// CacheEviction implements Recorder.
func (p *Prometheus) CacheEviction() {
	p.cacheEvictions.Inc()
}

// CacheExpired implements Recorder.
func (p *Prometheus) CacheExpired() {
	p.cacheExpired.Inc()
}

// RateLimited implements Recorder.
func (p *Prometheus) RateLimited(category string) {
	p.rateLimited.WithLabelValues(category).Inc()
}

// FetchAttempt implements Recorder.
func (p *Prometheus) FetchAttempt(outcome string) {
	p.fetchAttempts.WithLabelValues(outcome).Inc()
}

// FetchRetry implements Recorder.
func (p *Prometheus) FetchRetry() {
	p.fetchRetries.Inc()
}
