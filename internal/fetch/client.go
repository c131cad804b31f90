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

// Package fetch provides an HTTP client for the booking backend with per request timeouts,
// linear backoff retries and user facing error messages.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/metrics"
	"github.com/asgardeo/stayfront/internal/system/constants"
	httpservice "github.com/asgardeo/stayfront/internal/system/http"
	"github.com/asgardeo/stayfront/internal/system/log"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

const loggerComponentName = "FetchClient"

// ErrRequestFailed is returned by DecodeResult for unsuccessful results.
var ErrRequestFailed = errors.New("request failed")

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string
	// MaxRetries is the number of attempts per request. Defaults to 3.
	MaxRetries int
	// RetryDelay is the base backoff delay. Attempt n waits RetryDelay*n. Defaults to 1s.
	RetryDelay time.Duration
	// Recorder receives attempt outcomes.
	Recorder metrics.Recorder
}

// Options configures a single request. Zero values fall back to the client defaults.
type Options struct {
	Method     string
	Body       []byte
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Result is the settled outcome of a request. Error holds a user facing message when
// Success is false. Status is 0 when no response was received.
type Result struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Status   int             `json:"status"`
	Attempts int             `json:"attempts"`
}

// Client sends requests to the booking backend.
type Client struct {
	baseURL    string
	httpClient httpservice.HTTPClientInterface
	maxRetries int
	retryDelay time.Duration
	recorder   metrics.Recorder
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient returns a client sending requests through httpClient.
func NewClient(httpClient httpservice.HTTPClientInterface, cfg Config) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		recorder:   metrics.OrNoop(cfg.Recorder),
		logger:     log.GetLogger().With(zap.String(log.LoggerKeyComponentName, loggerComponentName)),
		sleep:      sleepContext,
	}
}

// Do sends the request, retrying timeouts, 5xx responses and network errors with linear
// backoff. Client errors are returned immediately. Do never returns an error value; the
// outcome is described by the Result.
func (c *Client) Do(ctx context.Context, path string, opts Options) Result {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = TimeoutFor(method, path)
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = c.maxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = c.retryDelay
	}

	requestID := uuid.NewString()
	logger := c.logger.With(zap.String(log.LoggerKeyRequestID, requestID),
		zap.String("method", method), zap.String("path", path))

	var result Result
	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := time.Now()
		var outcome string
		var retryable bool
		result, outcome, retryable = c.attempt(ctx, method, path, opts, timeout, requestID)
		result.Attempts = attempt
		c.recorder.FetchAttempt(outcome)

		fields := []zap.Field{zap.Int("attempt", attempt), zap.Int("status", result.Status),
			zap.String("outcome", outcome), zap.Duration("duration", time.Since(start))}
		if result.Success || !retryable {
			if result.Success {
				logger.Debug("Request succeeded", fields...)
			} else {
				logger.Warn("Request failed", fields...)
			}
			return result
		}
		if attempt == maxRetries {
			logger.Warn("Request attempt failed", fields...)
			break
		}
		backoff := retryDelay * time.Duration(attempt)
		logger.Warn("Request attempt failed", append(fields, zap.Duration("retryIn", backoff))...)

		c.recorder.FetchRetry()
		if err := c.sleep(ctx, backoff); err != nil {
			logger.Debug("Request cancelled during backoff", zap.Int("attempt", attempt))
			return Result{Error: MessageCancelled, Attempts: attempt}
		}
	}

	logger.Error("Request failed after retries", zap.Int("attempts", result.Attempts),
		zap.Int("status", result.Status))
	return result
}

// attempt performs one exchange under its own timeout and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, path string, opts Options, timeout time.Duration,
	requestID string) (Result, string, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, body)
	if err != nil {
		c.logger.Error("Failed to build request", zap.String("path", path), zap.Error(err))
		return Result{Error: MessageForStatus(http.StatusBadRequest)}, metrics.OutcomeClientError, false
	}
	req.Header.Set(constants.AcceptHeaderName, constants.ContentTypeJSON)
	if opts.Body != nil {
		req.Header.Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set(constants.RequestIDHeaderName, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure(ctx, attemptCtx)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(ctx, attemptCtx)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result := Result{Status: resp.StatusCode, Error: MessageForStatus(resp.StatusCode)}
		if resp.StatusCode >= 500 {
			return result, metrics.OutcomeServerError, true
		}
		return result, metrics.OutcomeClientError, false
	}

	return Result{Success: true, Status: resp.StatusCode, Data: asJSON(data)}, metrics.OutcomeSuccess, false
}

// transportFailure classifies a failed exchange. A done parent context means the caller gave
// up; a done attempt context means the attempt timed out.
func transportFailure(parent, attemptCtx context.Context) (Result, string, bool) {
	switch {
	case parent.Err() != nil:
		return Result{Error: MessageCancelled}, metrics.OutcomeCancelled, false
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return Result{Error: MessageTimeout}, metrics.OutcomeTimeout, true
	default:
		return Result{Error: MessageNetwork}, metrics.OutcomeNetwork, true
	}
}

// asJSON returns data as a JSON value. Non JSON bodies are wrapped as a JSON string.
func asJSON(data []byte) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}

// DecodeResult decodes the data of a successful result into T.
func DecodeResult[T any](r Result) (T, error) {
	var out T
	if !r.Success {
		return out, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, r.Status, r.Error)
	}
	if len(r.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode response data: %w", err)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
