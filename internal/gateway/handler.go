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

// Package gateway provides the HTTP edge that forwards API requests to the booking backend
// through the response cache and the rate limiter.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/cache"
	"github.com/asgardeo/stayfront/internal/fetch"
	"github.com/asgardeo/stayfront/internal/ratelimit"
	"github.com/asgardeo/stayfront/internal/system/constants"
	"github.com/asgardeo/stayfront/internal/system/error/serviceerror"
	"github.com/asgardeo/stayfront/internal/system/log"
	"github.com/asgardeo/stayfront/internal/system/utils"
)

const (
	loggerComponentName = "Gateway"
	// APIPrefix is the mount point of the proxied API. It is stripped before forwarding.
	APIPrefix           = "/api"
	maxBodyBytes        = 10 << 20

	cacheHit  = "HIT"
	cacheMiss = "MISS"
	cacheNone = "BYPASS"
)

// forwardedHeaders are copied from the inbound request to the upstream request.
var forwardedHeaders = []string{constants.AuthorizationHeaderName, "Accept-Language"}

// Upstream sends requests to the booking backend.
type Upstream interface {
	Do(ctx context.Context, path string, opts fetch.Options) fetch.Result
}

// RateLimiter admits requests per endpoint.
type RateLimiter interface {
	CheckLimit(ctx context.Context, endpoint string) bool
	RecordRequest(ctx context.Context, endpoint string)
	WaitTime(endpoint string) time.Duration
	Info(endpoint string) ratelimit.Info
	Reset(ctx context.Context, endpoint string)
	ResetAll(ctx context.Context)
}

// Handler serves the proxied API and the admin endpoints. A nil cache or limiter
// disables that concern.
type Handler struct {
	cache    *cache.Service
	limiter  RateLimiter
	upstream Upstream
	policies []Policy
	logger   *zap.Logger
}

// NewHandler returns a handler forwarding to upstream. Policies are expected in the order
// returned by PoliciesFromConfig.
func NewHandler(cacheSvc *cache.Service, limiter RateLimiter, upstream Upstream, policies []Policy) *Handler {
	return &Handler{
		cache:    cacheSvc,
		limiter:  limiter,
		upstream: upstream,
		policies: policies,
		logger:   log.GetLogger().With(zap.String(log.LoggerKeyComponentName, loggerComponentName)),
	}
}

// HandleProxy forwards the request to the upstream with APIPrefix removed. GET requests
// matching a policy are served through the cache. Successful mutating requests invalidate
// cached reads of the path.
func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)
	if path == "" {
		path = "/"
	}
	endpoint := path
	if r.URL.RawQuery != "" {
		endpoint += "?" + r.URL.RawQuery
	}

	opts := fetch.Options{Method: r.Method, Headers: map[string]string{}}
	for _, name := range forwardedHeaders {
		if value := r.Header.Get(name); value != "" {
			opts.Headers[name] = value
		}
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			h.logger.Debug("Failed to read request body", zap.Error(err))
			utils.WriteServiceError(w, serviceerror.ErrorInvalidRequest, http.StatusBadRequest, nil)
			return
		}
		if len(body) > 0 {
			opts.Body = body
		}
	}

	if r.Method == http.MethodGet && h.cache != nil {
		if policy, ok := match(h.policies, path); ok {
			h.serveCached(w, r, policy, path, endpoint, opts)
			return
		}
	}

	if err := h.admit(r.Context(), principal(r), path); err != nil {
		h.writeError(w, err)
		return
	}
	result := h.upstream.Do(r.Context(), endpoint, opts)
	if !result.Success {
		h.writeError(w, &UpstreamError{Result: result})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead && h.cache != nil {
		removed := h.cache.Invalidate(r.Context(), cache.BuildKey(http.MethodGet, path)+"*")
		h.logger.Debug("Invalidated cached reads after write", zap.String(log.LoggerKeyEndpoint, path),
			zap.Int("removed", removed))
	}
	w.Header().Set(constants.CacheStatusHeaderName, cacheNone)
	writeData(w, result.Status, result.Data)
}

func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, policy Policy, path, endpoint string,
	opts fetch.Options) {
	caller := principal(r)
	load := func(ctx context.Context) (json.RawMessage, error) {
		if err := h.admit(ctx, caller, path); err != nil {
			return nil, err
		}
		result := h.upstream.Do(ctx, endpoint, opts)
		if !result.Success {
			return nil, &UpstreamError{Result: result}
		}
		if result.Data == nil {
			return json.RawMessage("null"), nil
		}
		return result.Data, nil
	}

	data, source, err := cache.FetchWithSource(r.Context(), h.cache, policy.Strategy, cacheKey(r, endpoint),
		policy.TTL, load)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := cacheHit
	if source == cache.SourceOrigin {
		status = cacheMiss
	}
	w.Header().Set(constants.CacheStatusHeaderName, status)
	writeData(w, http.StatusOK, data)
}

// admit checks and records a request against the caller's bucket for path.
func (h *Handler) admit(ctx context.Context, caller, path string) error {
	if h.limiter == nil {
		return nil
	}
	bucket := bucketKey(caller, path)
	if !h.limiter.CheckLimit(ctx, bucket) {
		return &RateLimitError{Endpoint: path, RetryAfter: h.limiter.WaitTime(bucket)}
	}
	h.limiter.RecordRequest(ctx, bucket)
	return nil
}

// principal identifies the caller: a digest of the Authorization header, or the client
// address for anonymous requests.
func principal(r *http.Request) string {
	if auth := r.Header.Get(constants.AuthorizationHeaderName); auth != "" {
		return credentialDigest(auth)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip-" + host
}

func credentialDigest(auth string) string {
	sum := sha256.Sum256([]byte(auth))
	return "u-" + hex.EncodeToString(sum[:8])
}

// bucketKey names the limiter bucket of a caller and path. Categories still resolve from
// the path fragments it contains.
func bucketKey(principal, path string) string {
	return principal + "|" + path
}

// cacheKey scopes the cache key of credentialed reads to the credential. Anonymous reads
// share one entry. The suffix keeps prefix invalidation of the path working.
func cacheKey(r *http.Request, endpoint string) string {
	key := cache.BuildKey(http.MethodGet, endpoint)
	if auth := r.Header.Get(constants.AuthorizationHeaderName); auth != "" {
		key += "#" + credentialDigest(auth)
	}
	return key
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rateErr *RateLimitError
	var upstreamErr *UpstreamError
	switch {
	case errors.As(err, &rateErr):
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		utils.WriteServiceError(w, serviceerror.ErrorRateLimited, http.StatusTooManyRequests,
			map[string]string{constants.RetryAfterHeaderName: strconv.Itoa(seconds)})
	case errors.As(err, &upstreamErr):
		result := upstreamErr.Result
		switch {
		case result.Status >= 400 && result.Status < 500:
			svcErr := serviceerror.ErrorUpstreamRejected
			svcErr.ErrorDescription = result.Error
			utils.WriteServiceError(w, svcErr, result.Status, nil)
		case result.Error == fetch.MessageTimeout:
			svcErr := serviceerror.ErrorUpstreamTimeout
			svcErr.ErrorDescription = result.Error
			utils.WriteServiceError(w, svcErr, http.StatusGatewayTimeout, nil)
		default:
			svcErr := serviceerror.ErrorUpstreamFailure
			svcErr.ErrorDescription = result.Error
			utils.WriteServiceError(w, svcErr, http.StatusBadGateway, nil)
		}
	case errors.Is(err, context.Canceled):
		h.logger.Debug("Client went away before the response was ready", zap.Error(err))
	default:
		h.logger.Error("Failed to serve request", zap.Error(err))
		utils.WriteServiceError(w, serviceerror.ErrorInternalServerError, http.StatusInternalServerError, nil)
	}
}

func writeData(w http.ResponseWriter, status int, data json.RawMessage) {
	if len(data) == 0 {
		w.WriteHeader(status)
		return
	}
	utils.WriteJSON(w, status, data)
}
