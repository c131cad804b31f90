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
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/config"
	"github.com/asgardeo/stayfront/internal/system/database/provider"
	"github.com/asgardeo/stayfront/internal/system/log"
)

// New builds the configured backend and wraps it with the storage quota.
// Relative SQLite paths are resolved against home.
func New(ctx context.Context, home string, cfg config.StorageConfig) (Store, error) {
	logger := log.GetLogger().With(zap.String(log.LoggerKeyComponentName, "KVStoreFactory"))

	var (
		backend Store
		err     error
	)
	switch cfg.Type {
	case "", StorageTypeMemory:
		backend = NewMemoryStore()
	case StorageTypeSQLite, StorageTypePostgres:
		dataSource := cfg.Database
		if dataSource.Type == "" {
			dataSource.Type = cfg.Type
		}
		dbClient, dbErr := provider.NewDBClient(home, dataSource)
		if dbErr != nil {
			return nil, dbErr
		}
		backend, err = NewSQLStore(ctx, dbClient, cfg.Namespace)
		if err != nil {
			return nil, multierr.Append(err, dbClient.Close())
		}
	case StorageTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		backend, err = NewRedisStore(ctx, client, cfg.Namespace)
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	store, err := NewQuotaStore(ctx, backend, cfg.QuotaBytes)
	if err != nil {
		return nil, multierr.Append(err, backend.Close())
	}

	logger.Info("Key-value store initialized", zap.String("type", cfg.Type),
		zap.String("namespace", cfg.Namespace), zap.Int64("quotaBytes", store.Quota()),
		zap.Int64("usedBytes", store.Used()))
	return store, nil
}

func uniqueSorted(keys []string) []string {
	if len(keys) == 0 {
		return []string{}
	}
	sort.Strings(keys)
	out := keys[:1]
	for _, key := range keys[1:] {
		if key != out[len(out)-1] {
			out = append(out, key)
		}
	}
	return out
}
