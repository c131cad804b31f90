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

package provider

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/asgardeo/stayfront/internal/system/config"
	"github.com/asgardeo/stayfront/internal/system/database/model"
)

type DBProviderTestSuite struct {
	suite.Suite
}

func TestDBProviderSuite(t *testing.T) {
	suite.Run(t, new(DBProviderTestSuite))
}

func (suite *DBProviderTestSuite) TestGetDBConfigPostgres() {
	cfg, err := getDBConfig("/opt/stayfront", config.DataSource{
		Type:     model.DBTypePostgres,
		Hostname: "db.local",
		Port:     5432,
		Name:     "stayfront",
		Username: "app",
		Password: "secret",
		SSLMode:  "disable",
	})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "postgres", cfg.driverName)
	assert.Equal(suite.T(),
		"host=db.local port=5432 user=app password=secret dbname=stayfront sslmode=disable", cfg.dsn)
}

func (suite *DBProviderTestSuite) TestGetDBConfigSQLiteRelativePath() {
	cfg, err := getDBConfig("/opt/stayfront", config.DataSource{
		Type:    model.DBTypeSQLite,
		Path:    "repository/database/kvstore.db",
		Options: "_pragma=journal_mode(WAL)",
	})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "sqlite", cfg.driverName)
	assert.Equal(suite.T(), "/opt/stayfront/repository/database/kvstore.db?_pragma=journal_mode(WAL)", cfg.dsn)
}

func (suite *DBProviderTestSuite) TestGetDBConfigSQLiteAbsolutePath() {
	cfg, err := getDBConfig("/opt/stayfront", config.DataSource{
		Type:    model.DBTypeSQLite,
		Path:    "/var/lib/kv.db",
		Options: "?cache=shared",
	})

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "/var/lib/kv.db?cache=shared", cfg.dsn)
}

func (suite *DBProviderTestSuite) TestGetDBConfigUnsupported() {
	_, err := getDBConfig("", config.DataSource{Type: "oracle"})

	assert.EqualError(suite.T(), err, "unsupported database type: oracle")
}

func (suite *DBProviderTestSuite) TestNewDBClientSQLite() {
	home := suite.T().TempDir()

	dbClient, err := NewDBClient(home, config.DataSource{
		Type:         model.DBTypeSQLite,
		Path:         filepath.Join("repository", "database", "kv.db"),
		MaxOpenConns: 1,
	})
	assert.NoError(suite.T(), err)
	defer func() {
		assert.NoError(suite.T(), dbClient.Close())
	}()

	ctx := context.Background()
	_, err = dbClient.Execute(ctx, model.DBQuery{ID: "create", Query: "CREATE TABLE t (k TEXT PRIMARY KEY, v TEXT)"})
	assert.NoError(suite.T(), err)

	affected, err := dbClient.Execute(ctx, model.DBQuery{ID: "insert", Query: "INSERT INTO t (k, v) VALUES (?, ?)"},
		"greeting", "hello")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), affected)

	rows, err := dbClient.Query(ctx, model.DBQuery{ID: "select", Query: "SELECT k, v FROM t"})
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), rows, 1)
	assert.Equal(suite.T(), "hello", rows[0]["v"])
	assert.FileExists(suite.T(), filepath.Join(home, "repository", "database", "kv.db"))
}

func (suite *DBProviderTestSuite) TestNewDBClientUnsupported() {
	dbClient, err := NewDBClient("", config.DataSource{Type: "oracle"})

	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), dbClient)
}
