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

package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/database/client"
	"github.com/asgardeo/stayfront/internal/system/log"
)

var likeEscaper = strings.NewReplacer(
	likeEscapeChar, likeEscapeChar+likeEscapeChar,
	"%", likeEscapeChar+"%",
	"_", likeEscapeChar+"_",
)

// SQLStore is a Store backed by the kv_store table. Rows are scoped by namespace.
type SQLStore struct {
	dbClient  client.DBClientInterface
	namespace string
	now       func() time.Time
}

// NewSQLStore creates the kv_store table if needed and returns a store over it.
func NewSQLStore(ctx context.Context, dbClient client.DBClientInterface, namespace string) (*SQLStore, error) {
	if _, err := dbClient.Execute(ctx, QueryCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create key-value table: %w", err)
	}
	return newSQLStore(dbClient, namespace), nil
}

func newSQLStore(dbClient client.DBClientInterface, namespace string) *SQLStore {
	return &SQLStore{
		dbClient:  dbClient,
		namespace: namespace,
		now:       time.Now,
	}
}

// Get returns the value stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	results, err := s.dbClient.Query(ctx, QueryGetValue, s.namespace, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	if len(results) == 0 {
		return "", false, nil
	}

	value, err := columnString(results[0], "value")
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.dbClient.Execute(ctx, QueryUpsertValue, s.namespace, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if _, err := s.dbClient.Execute(ctx, QueryDeleteValue, s.namespace, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Keys lists the keys starting with prefix.
func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	results, err := s.dbClient.Query(ctx, QueryListKeys, s.namespace, likeEscaper.Replace(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %q: %w", prefix, err)
	}

	keys := make([]string, 0, len(results))
	for _, row := range results {
		key, err := columnString(row, "key")
		if err != nil {
			return nil, err
		}
		// SQLite LIKE ignores ASCII case.
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	logger := log.GetLogger().With(zap.String(log.LoggerKeyComponentName, "SQLStore"))
	logger.Debug("Closing SQL key-value store", zap.String("namespace", s.namespace))
	return s.dbClient.Close()
}

// columnString reads a text column regardless of whether the driver returned a string or bytes.
func columnString(row map[string]interface{}, column string) (string, error) {
	switch v := row[column].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unexpected type %T for column %s", row[column], column)
	}
}
