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
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/asgardeo/stayfront/internal/cache"
	"github.com/asgardeo/stayfront/internal/system/config"
)

// Policy is the cache policy of GET requests under a path prefix.
type Policy struct {
	Prefix   string
	Strategy cache.Strategy
	TTL      time.Duration
}

// PoliciesFromConfig validates the configured route policies and returns them ordered
// from the longest prefix to the shortest.
func PoliciesFromConfig(routes []config.RoutePolicy) ([]Policy, error) {
	var errs []error
	policies := make([]Policy, 0, len(routes))
	for i, route := range routes {
		strategy, err := cache.ParseStrategy(route.Strategy)
		if err != nil {
			errs = append(errs, fmt.Errorf("route %d: %w", i, err))
		}
		if !strings.HasPrefix(route.Prefix, "/") {
			errs = append(errs, fmt.Errorf("route %d: prefix %q must start with /", i, route.Prefix))
		}
		if route.TTL <= 0 {
			errs = append(errs, fmt.Errorf("route %d: ttl must be positive, got %d", i, route.TTL))
		}
		policies = append(policies, Policy{
			Prefix:   route.Prefix,
			Strategy: strategy,
			TTL:      time.Duration(route.TTL) * time.Second,
		})
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, fmt.Errorf("invalid gateway routes: %w", err)
	}

	sort.SliceStable(policies, func(i, j int) bool {
		return len(policies[i].Prefix) > len(policies[j].Prefix)
	})
	return policies, nil
}

// match returns the policy with the longest prefix of path.
func match(policies []Policy, path string) (Policy, bool) {
	for _, p := range policies {
		if strings.HasPrefix(path, p.Prefix) {
			return p, true
		}
	}
	return Policy{}, false
}
