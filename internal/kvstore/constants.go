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

import "github.com/asgardeo/stayfront/internal/system/database/model"

const (
	// StorageTypeMemory selects the in-process map backend.
	StorageTypeMemory = "memory"
	// StorageTypeSQLite selects the SQL backend with the SQLite dialect.
	StorageTypeSQLite = "sqlite"
	// StorageTypePostgres selects the SQL backend with the PostgreSQL dialect.
	StorageTypePostgres = "postgres"
	// StorageTypeRedis selects the Redis backend.
	StorageTypeRedis = "redis"

	// DefaultQuotaBytes mirrors the per origin quota of browser storage.
	DefaultQuotaBytes int64 = 5 * 1024 * 1024

	likeEscapeChar = "!"
)

var (
	// QueryCreateTable creates the key-value table if it does not exist.
	QueryCreateTable = model.DBQuery{
		ID: "KVQ-00",
		Query: "CREATE TABLE IF NOT EXISTS kv_store (" +
			"namespace VARCHAR(255) NOT NULL, " +
			"key VARCHAR(1024) NOT NULL, " +
			"value TEXT NOT NULL, " +
			"updated_at BIGINT NOT NULL, " +
			"PRIMARY KEY (namespace, key))",
	}
	// QueryGetValue retrieves the value of a key.
	QueryGetValue = model.DBQuery{
		ID:            "KVQ-01",
		PostgresQuery: "SELECT value FROM kv_store WHERE namespace = $1 AND key = $2",
		SQLiteQuery:   "SELECT value FROM kv_store WHERE namespace = ? AND key = ?",
	}
	// QueryUpsertValue inserts or replaces the value of a key.
	QueryUpsertValue = model.DBQuery{
		ID: "KVQ-02",
		PostgresQuery: "INSERT INTO kv_store (namespace, key, value, updated_at) VALUES ($1, $2, $3, $4) " +
			"ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at",
		SQLiteQuery: "INSERT INTO kv_store (namespace, key, value, updated_at) VALUES (?, ?, ?, ?) " +
			"ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
	}
	// QueryDeleteValue deletes a key.
	QueryDeleteValue = model.DBQuery{
		ID:            "KVQ-03",
		PostgresQuery: "DELETE FROM kv_store WHERE namespace = $1 AND key = $2",
		SQLiteQuery:   "DELETE FROM kv_store WHERE namespace = ? AND key = ?",
	}
	// QueryListKeys lists the keys matching a LIKE pattern.
	QueryListKeys = model.DBQuery{
		ID: "KVQ-04",
		PostgresQuery: "SELECT key FROM kv_store WHERE namespace = $1 AND key LIKE $2 ESCAPE '" +
			likeEscapeChar + "' ORDER BY key",
		SQLiteQuery: "SELECT key FROM kv_store WHERE namespace = ? AND key LIKE ? ESCAPE '" +
			likeEscapeChar + "' ORDER BY key",
	}
)
