/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
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

// Package log provides the process wide zap logger.
package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/asgardeo/stayfront/internal/system/constants"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// InitLogger initializes the logger with a plain text format.
func InitLogger() error {
	level, err := parseLogLevel(os.Getenv(constants.LogLevelEnvironmentVariable))
	if err != nil {
		return err
	}

	// Define a custom encoder configuration for plain text logs
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder, // INFO, ERROR, etc.
		EncodeTime:     zapcore.ISO8601TimeEncoder,  // Human-readable timestamps
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder, // Short file paths
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(zapcore.Lock(os.Stdout)),
		level,
	)

	logger = zap.New(core, zap.AddCaller())
	return nil
}

// GetLogger returns the logger instance, initializing it on first use.
func GetLogger() *zap.Logger {
	once.Do(func() {
		if logger != nil {
			return
		}
		if err := InitLogger(); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	})
	return logger
}

// SetLogger replaces the process logger. Intended for tests that capture log output.
func SetLogger(l *zap.Logger) {
	once.Do(func() {})
	logger = l
}

// Sync flushes any buffered log entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// parseLogLevel parses the configured level, falling back to the default level.
func parseLogLevel(logLevel string) (zapcore.Level, error) {
	logLevel = strings.TrimSpace(logLevel)
	if logLevel == "" {
		logLevel = constants.DefaultLogLevel
	}
	return zapcore.ParseLevel(logLevel)
}
