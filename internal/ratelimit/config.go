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
	"time"
)

// StateKey is the persistent store key holding every bucket.
const StateKey = "rate_limiter_state"

// DefaultAutoSaveInterval is how often dirty bucket state is flushed to the store.
const DefaultAutoSaveInterval = 5 * time.Second

const loggerComponentName = "RateLimiter"

// Category groups endpoints that share one limit configuration.
type Category string

// Endpoint categories.
const (
	CategoryBookingCreate Category = "booking_create"
	CategoryBookingUpdate Category = "booking_update"
	CategoryBookingList   Category = "booking_list"
	CategorySearch        Category = "search"
	CategoryPayment       Category = "payment"
	CategoryUpload        Category = "upload"
	CategoryChat          Category = "chat"
	CategoryAPI           Category = "api"
)

// Config is the limit of one category.
type Config struct {
	// MaxRequests is the number of requests allowed per Window.
	MaxRequests int
	// Window is the length of the request counting window.
	Window time.Duration
	// RefillRate is the number of tokens added per second.
	RefillRate float64
	// BurstCapacity is the bucket size.
	BurstCapacity int
}

// Validate checks that the configuration can ever admit a request.
func (c Config) Validate() error {
	if c.BurstCapacity <= 0 {
		return fmt.Errorf("burst capacity must be positive, got %d", c.BurstCapacity)
	}
	if c.MaxRequests < c.BurstCapacity {
		return fmt.Errorf("max requests %d must not be below burst capacity %d", c.MaxRequests, c.BurstCapacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("refill rate must be positive, got %v", c.RefillRate)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}
	return nil
}

// DefaultConfigs returns the built-in limits. Payment is the strictest.
func DefaultConfigs() map[Category]Config {
	return map[Category]Config{
		CategoryBookingCreate: {MaxRequests: 5, Window: time.Minute, RefillRate: 0.1, BurstCapacity: 5},
		CategoryBookingUpdate: {MaxRequests: 10, Window: time.Minute, RefillRate: 0.2, BurstCapacity: 5},
		CategoryBookingList:   {MaxRequests: 30, Window: time.Minute, RefillRate: 1, BurstCapacity: 10},
		CategorySearch:        {MaxRequests: 20, Window: time.Minute, RefillRate: 0.5, BurstCapacity: 10},
		CategoryPayment:       {MaxRequests: 3, Window: 5 * time.Minute, RefillRate: 0.01, BurstCapacity: 3},
		CategoryUpload:        {MaxRequests: 10, Window: time.Minute, RefillRate: 0.2, BurstCapacity: 5},
		CategoryChat:          {MaxRequests: 20, Window: time.Minute, RefillRate: 0.5, BurstCapacity: 5},
		CategoryAPI:           {MaxRequests: 100, Window: time.Minute, RefillRate: 2, BurstCapacity: 20},
	}
}
