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
	"errors"
	"fmt"
	"time"

	"github.com/asgardeo/stayfront/internal/fetch"
)

// ErrRateLimited is matched by errors returned when the rate limiter refuses a request.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError reports a refused request and how long to wait before retrying.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s, retry after %s", e.Endpoint, e.RetryAfter)
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Final reports that a refusal is not replaced by a cached value.
func (e *RateLimitError) Final() bool {
	return true
}

// UpstreamError carries an unsuccessful fetch result.
type UpstreamError struct {
	Result fetch.Result
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed after %d attempts: status %d: %s",
		e.Result.Attempts, e.Result.Status, e.Result.Error)
}

// Unwrap returns fetch.ErrRequestFailed.
func (e *UpstreamError) Unwrap() error {
	return fetch.ErrRequestFailed
}

// Final reports whether the upstream answered with a client error. Such answers are
// returned as is rather than replaced by a cached value.
func (e *UpstreamError) Final() bool {
	return e.Result.Status >= 400 && e.Result.Status < 500
}
