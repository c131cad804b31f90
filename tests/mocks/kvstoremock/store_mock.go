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

// Package kvstoremock provides a mock implementation of the key-value store for testing.
package kvstoremock

import (
	"context"
	"sync"
)

// MockStore is a mock implementation of kvstore.Store.
// Methods without a configured behavior act as an empty store that accepts every write.
type MockStore struct {
	// MockGet defines the behavior for the Get method.
	MockGet func(ctx context.Context, key string) (string, bool, error)

	// MockSet defines the behavior for the Set method.
	MockSet func(ctx context.Context, key, value string) error

	// MockRemove defines the behavior for the Remove method.
	MockRemove func(ctx context.Context, key string) error

	// MockKeys defines the behavior for the Keys method.
	MockKeys func(ctx context.Context, prefix string) ([]string, error)

	// MockClose defines the behavior for the Close method.
	MockClose func() error

	mu sync.Mutex

	// SetCalls tracks the keys passed to Set.
	SetCalls []string

	// RemoveCalls tracks the keys passed to Remove.
	RemoveCalls []string

	// CloseCalls tracks the calls to Close.
	CloseCalls int
}

// Get mocks the Get method of the Store.
func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.MockGet != nil {
		return m.MockGet(ctx, key)
	}
	return "", false, nil
}

// Set mocks the Set method of the Store.
func (m *MockStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, key)
	m.mu.Unlock()

	if m.MockSet != nil {
		return m.MockSet(ctx, key, value)
	}
	return nil
}

// Remove mocks the Remove method of the Store.
func (m *MockStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	m.RemoveCalls = append(m.RemoveCalls, key)
	m.mu.Unlock()

	if m.MockRemove != nil {
		return m.MockRemove(ctx, key)
	}
	return nil
}

// Keys mocks the Keys method of the Store.
func (m *MockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if m.MockKeys != nil {
		return m.MockKeys(ctx, prefix)
	}
	return []string{}, nil
}

// Close mocks the Close method of the Store.
func (m *MockStore) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()

	if m.MockClose != nil {
		return m.MockClose()
	}
	return nil
}

// SetKeys returns a copy of the keys passed to Set so far.
func (m *MockStore) SetKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.SetCalls...)
}
