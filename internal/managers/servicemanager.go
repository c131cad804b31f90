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

// Package managers wires the edge components together and owns their lifecycle.
package managers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/cache"
	"github.com/asgardeo/stayfront/internal/fetch"
	"github.com/asgardeo/stayfront/internal/gateway"
	"github.com/asgardeo/stayfront/internal/kvstore"
	"github.com/asgardeo/stayfront/internal/metrics"
	"github.com/asgardeo/stayfront/internal/ratelimit"
	"github.com/asgardeo/stayfront/internal/system/config"
	httpservice "github.com/asgardeo/stayfront/internal/system/http"
	"github.com/asgardeo/stayfront/internal/system/log"
)

// ServiceManagerInterface builds the edge handler and releases its resources.
type ServiceManagerInterface interface {
	RegisterServices(ctx context.Context) (http.Handler, error)
	Close() error
}

// ServiceManager constructs the store, cache, rate limiter and upstream client from configuration.
type ServiceManager struct {
	home     string
	config   *config.Config
	registry *prometheus.Registry
	logger   *zap.Logger

	store   kvstore.Store
	cache   *cache.Service
	limiter *ratelimit.Limiter
}

// NewServiceManager creates a new instance of ServiceManager.
func NewServiceManager(home string, cfg *config.Config) ServiceManagerInterface {
	return &ServiceManager{
		home:     home,
		config:   cfg,
		registry: prometheus.NewRegistry(),
		logger:   log.GetLogger().With(zap.String(log.LoggerKeyComponentName, "ServiceManager")),
	}
}

// RegisterServices builds every component and returns the router serving them.
// Components built before a failure are closed.
func (sm *ServiceManager) RegisterServices(ctx context.Context) (http.Handler, error) {
	cfg := sm.config
	if cfg.Upstream.BaseURL == "" {
		return nil, errors.New("upstream base_url is required")
	}
	policies, err := gateway.PoliciesFromConfig(cfg.Gateway.Routes)
	if err != nil {
		return nil, err
	}

	sm.registry.MustRegister(collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(sm.registry)

	sm.store, err = kvstore.New(ctx, sm.home, cfg.Storage)
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Disabled {
		sm.cache = cache.New(ctx, sm.store, cache.OptionsFromConfig(cfg.Cache, recorder))
	} else {
		sm.logger.Info("Response cache is disabled")
	}

	// A nil *ratelimit.Limiter must not reach the handler as a non nil interface.
	var limiter gateway.RateLimiter
	if !cfg.RateLimiter.Disabled {
		sm.limiter, err = ratelimit.New(ctx, sm.store, ratelimit.Options{
			AutoSaveInterval: time.Duration(cfg.RateLimiter.AutoSaveInterval) * time.Second,
			Recorder:         recorder,
		})
		if err != nil {
			return nil, multierr.Append(err, sm.Close())
		}
		limiter = sm.limiter
	} else {
		sm.logger.Info("Rate limiter is disabled")
	}

	client := fetch.NewClient(httpservice.NewHTTPClient(), fetch.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		MaxRetries: cfg.Upstream.MaxRetries,
		RetryDelay: time.Duration(cfg.Upstream.RetryDelayMs) * time.Millisecond,
		Recorder:   recorder,
	})

	handler := gateway.NewHandler(sm.cache, limiter, client, policies)
	sm.logger.Info("Registered edge services", zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int("cachedRoutes", len(policies)))

	return gateway.NewRouter(handler, promhttp.HandlerFor(sm.registry, promhttp.HandlerOpts{})), nil
}

// Close persists cache and limiter state and closes the store.
func (sm *ServiceManager) Close() error {
	var err error
	if sm.cache != nil {
		err = multierr.Append(err, sm.cache.Close())
		sm.cache = nil
	}
	if sm.limiter != nil {
		err = multierr.Append(err, sm.limiter.Close())
		sm.limiter = nil
	}
	if sm.store != nil {
		err = multierr.Append(err, sm.store.Close())
		sm.store = nil
	}
	return err
}
