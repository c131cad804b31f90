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

package log

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/asgardeo/stayfront/internal/system/constants"
)

type LogTestSuite struct {
	suite.Suite
}

func TestLogSuite(t *testing.T) {
	suite.Run(t, new(LogTestSuite))
}

func (suite *LogTestSuite) TearDownTest() {
	// Reset logger singleton for next test
	logger = nil
	once = sync.Once{}
}

func (suite *LogTestSuite) TestParseLogLevel() {
	testCases := []struct {
		name     string
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{name: "Empty falls back to default", input: "", expected: zapcore.InfoLevel},
		{name: "Debug", input: "debug", expected: zapcore.DebugLevel},
		{name: "Warn with spaces", input: "  warn ", expected: zapcore.WarnLevel},
		{name: "Error upper case", input: "ERROR", expected: zapcore.ErrorLevel},
		{name: "Invalid", input: "verbose", wantErr: true},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			level, err := parseLogLevel(tc.input)
			if tc.wantErr {
				assert.Error(suite.T(), err)
				return
			}
			assert.NoError(suite.T(), err)
			assert.Equal(suite.T(), tc.expected, level)
		})
	}
}

func (suite *LogTestSuite) TestInitLoggerWithEnvironmentVariable() {
	suite.T().Setenv(constants.LogLevelEnvironmentVariable, "debug")

	err := InitLogger()

	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), logger)
	assert.True(suite.T(), logger.Core().Enabled(zapcore.DebugLevel))
}

func (suite *LogTestSuite) TestInitLoggerWithInvalidLevel() {
	suite.T().Setenv(constants.LogLevelEnvironmentVariable, "loud")

	err := InitLogger()

	assert.Error(suite.T(), err)
}

func (suite *LogTestSuite) TestGetLoggerReturnsSingleton() {
	first := GetLogger()
	second := GetLogger()

	assert.NotNil(suite.T(), first)
	assert.Same(suite.T(), first, second)
}

func (suite *LogTestSuite) TestSetLoggerReplacesInstance() {
	core, _ := observer.New(zapcore.DebugLevel)
	custom := zap.New(core)

	SetLogger(custom)

	assert.Same(suite.T(), custom, GetLogger())
}

func (suite *LogTestSuite) TestAccessLogHandler() {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := AccessLogHandler(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/services?page=1", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(suite.T(), http.StatusTeapot, rec.Code)
	assert.Equal(suite.T(), 1, logs.Len())
	entry := logs.All()[0].Message
	assert.True(suite.T(), strings.HasPrefix(entry, "192.0.2.10 - - ["))
	assert.Contains(suite.T(), entry, `"GET /api/services?page=1 HTTP/1.1" 418 15`)
}
