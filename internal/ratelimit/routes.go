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

package ratelimit

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Rule maps endpoints to a category. An endpoint matches when its lowercased path
// contains every AllOf fragment and, if AnyOf is set, at least one AnyOf fragment.
type Rule struct {
	Category Category
	AllOf    []string
	AnyOf    []string
}

func (r Rule) matches(path string) bool {
	for _, fragment := range r.AllOf {
		if !strings.Contains(path, fragment) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return true
	}
	for _, fragment := range r.AnyOf {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in route table. Order matters: the first match wins.
func DefaultRules() []Rule {
	return []Rule{
		{Category: CategoryBookingCreate, AllOf: []string{"/bookings"}, AnyOf: []string{"submit"}},
		{Category: CategoryBookingUpdate, AllOf: []string{"/bookings"}, AnyOf: []string{"update", "modify"}},
		{Category: CategoryBookingList, AllOf: []string{"/bookings"}},
		{Category: CategorySearch, AnyOf: []string{"search", "filter", "query"}},
		{Category: CategoryPayment, AnyOf: []string{"/payment", "/stripe", "/checkout"}},
		{Category: CategoryUpload, AnyOf: []string{"/upload", "/image"}},
		{Category: CategoryChat, AnyOf: []string{"/chat", "/ai/"}},
	}
}

// Resolver maps endpoints to categories through an ordered rule table.
type Resolver struct {
	rules    []Rule
	fallback Category
}

// NewResolver validates rules against configs and returns a resolver that falls back to
// the given category when no rule matches.
func NewResolver(rules []Rule, configs map[Category]Config, fallback Category) (*Resolver, error) {
	var errs []error
	if _, ok := configs[fallback]; !ok {
		errs = append(errs, fmt.Errorf("fallback category %q has no configuration", fallback))
	}
	for category, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("category %q: %w", category, err))
		}
	}

	normalized := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		if _, ok := configs[rule.Category]; !ok {
			errs = append(errs, fmt.Errorf("rule %d: category %q has no configuration", i, rule.Category))
		}
		if len(rule.AllOf) == 0 && len(rule.AnyOf) == 0 {
			errs = append(errs, fmt.Errorf("rule %d: no path fragments", i))
		}
		normalized = append(normalized, Rule{
			Category: rule.Category,
			AllOf:    lowerAll(rule.AllOf),
			AnyOf:    lowerAll(rule.AnyOf),
		})
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, fmt.Errorf("invalid rate limit route table: %w", err)
	}

	return &Resolver{rules: normalized, fallback: fallback}, nil
}

// Resolve returns the category of endpoint.
func (r *Resolver) Resolve(endpoint string) Category {
	path := strings.ToLower(endpoint)
	for _, rule := range r.rules {
		if rule.matches(path) {
			return rule.Category
		}
	}
	return r.fallback
}

func lowerAll(fragments []string) []string {
	out := make([]string, len(fragments))
	for i, fragment := range fragments {
		out[i] = strings.ToLower(fragment)
	}
	return out
}
