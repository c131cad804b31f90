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

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/cache"
	"github.com/asgardeo/stayfront/internal/system/error/serviceerror"
	"github.com/asgardeo/stayfront/internal/system/utils"
)

// CacheStats is the response of the cache stats endpoint.
type CacheStats struct {
	Enabled  bool            `json:"enabled"`
	Metadata *cache.Metadata `json:"metadata,omitempty"`
	HitRate  float64         `json:"hitRate"`
	MaxSize  int64           `json:"maxSize"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth reports that the edge is serving.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// HandleCacheStats returns the cache counters.
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		utils.WriteJSON(w, http.StatusOK, CacheStats{})
		return
	}
	meta := h.cache.Metadata()
	utils.WriteJSON(w, http.StatusOK, CacheStats{
		Enabled:  true,
		Metadata: &meta,
		HitRate:  h.cache.HitRate(),
		MaxSize:  h.cache.MaxSize(),
	})
}

// HandleCacheDelete invalidates the entries matching the pattern query parameter,
// or clears the cache when it is empty.
func (h *Handler) HandleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		utils.WriteJSON(w, http.StatusOK, removedResponse{})
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		removed := h.cache.Metadata().Entries
		h.cache.Clear(r.Context())
		h.logger.Info("Cleared the cache", zap.Int("removed", removed))
		utils.WriteJSON(w, http.StatusOK, removedResponse{Removed: removed})
		return
	}

	removed := h.cache.Invalidate(r.Context(), pattern)
	h.logger.Info("Invalidated cache entries", zap.String("pattern", pattern), zap.Int("removed", removed))
	utils.WriteJSON(w, http.StatusOK, removedResponse{Removed: removed})
}

// HandleRateLimitInfo returns the caller's limit state for the endpoint query parameter.
func (h *Handler) HandleRateLimitInfo(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		utils.WriteServiceError(w, serviceerror.ErrorInvalidRequest, http.StatusBadRequest, nil)
		return
	}
	if h.limiter == nil {
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"enabled": false})
		return
	}
	info := h.limiter.Info(bucketKey(principal(r), endpoint))
	info.Endpoint = endpoint
	utils.WriteJSON(w, http.StatusOK, info)
}

// HandleRateLimitReset resets the caller's bucket for the endpoint query parameter, or every
// bucket of every caller when it is empty.
func (h *Handler) HandleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		if endpoint := r.URL.Query().Get("endpoint"); endpoint != "" {
			h.limiter.Reset(r.Context(), bucketKey(principal(r), endpoint))
		} else {
			h.limiter.ResetAll(r.Context())
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
