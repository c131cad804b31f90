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

package fetch

import (
	"net/http"
	"strings"
	"time"
)

// Request timeouts by operation.
const (
	DefaultTimeout       = 30 * time.Second
	BookingCreateTimeout = 45 * time.Second
	PaymentTimeout       = 60 * time.Second
	UploadTimeout        = 120 * time.Second
	ReportTimeout        = 90 * time.Second
	SearchTimeout        = 15 * time.Second
	LookupTimeout        = 10 * time.Second
)

var lookupFragments = []string{"availability", "/services", "health"}

// TimeoutFor returns the timeout of a request to path with the given method.
func TimeoutFor(method, path string) time.Duration {
	p := strings.ToLower(path)

	switch {
	case containsAny(p, "/upload", "/image"):
		return UploadTimeout
	case strings.Contains(p, "report"):
		return ReportTimeout
	case containsAny(p, "/payment", "/stripe", "/checkout"):
		return PaymentTimeout
	case method == http.MethodPost && strings.Contains(p, "/bookings"):
		return BookingCreateTimeout
	case strings.Contains(p, "search"):
		return SearchTimeout
	case method == http.MethodGet && containsAny(p, lookupFragments...):
		return LookupTimeout
	}
	return DefaultTimeout
}

func containsAny(s string, fragments ...string) bool {
	for _, fragment := range fragments {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}
