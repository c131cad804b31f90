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

package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asgardeo/stayfront/internal/system/log"
)

// NewRouter registers the proxy, admin, health and metrics routes. metricsHandler may be nil.
func NewRouter(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(log.AccessLogMiddleware(log.GetLogger()))

	r.Get("/healthz", h.HandleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/cache/stats", h.HandleCacheStats)
	r.Delete("/cache", h.HandleCacheDelete)
	r.Get("/ratelimit", h.HandleRateLimitInfo)
	r.Post("/ratelimit/reset", h.HandleRateLimitReset)

	r.HandleFunc("/api/*", h.HandleProxy)

	return r
}
