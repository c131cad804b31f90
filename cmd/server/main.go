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

// Package main starts the edge server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/cert"
	"github.com/asgardeo/stayfront/internal/managers"
	"github.com/asgardeo/stayfront/internal/system/config"
	"github.com/asgardeo/stayfront/internal/system/log"
)

const (
	defaultConfigPath = "repository/conf/deployment.yaml"
	shutdownTimeout   = 10 * time.Second
)

func main() {
	homeFlag := flag.String("home", "", "Path to the server home directory")
	configFlag := flag.String("config", "", "Path to the configuration file, relative to home unless absolute")
	flag.Parse()

	home := getHome(*homeFlag)

	// Load .env before the logger so that LOG_LEVEL can be set there.
	if err := config.LoadEnvFile(filepath.Join(home, ".env")); err != nil {
		panic(fmt.Sprintf("Failed to load .env file: %v", err))
	}

	// Initialize the logger.
	if err := log.InitLogger(); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()
	logger := log.GetLogger()
	logger.Info("Using server home", zap.String("home", home))

	runtime := initConfigurations(logger, home, *configFlag)
	logger.Info("Using key-value storage", zap.String("location", runtime.StorageLocation()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serviceManager := managers.NewServiceManager(runtime.StorageHome, &runtime.Config)
	handler, err := serviceManager.RegisterServices(ctx)
	if err != nil {
		logger.Fatal("Failed to register the services", zap.Error(err))
	}

	startServer(ctx, logger, &runtime.Config, runtime.StorageHome, handler)

	if err := serviceManager.Close(); err != nil {
		logger.Error("Failed to release resources", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// getHome returns the home directory from the flag, or the current working directory.
func getHome(homeFlag string) string {
	if homeFlag != "" {
		return homeFlag
	}
	dir, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current working directory: %v", err))
	}
	return dir
}

// initConfigurations loads the configuration file and initializes the runtime.
func initConfigurations(logger *zap.Logger, home, configPath string) *config.Runtime {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(home, configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load configurations", zap.String("path", configPath), zap.Error(err))
	}
	if err := config.InitializeRuntime(home, configPath, cfg); err != nil {
		logger.Fatal("Failed to initialize runtime", zap.Error(err))
	}

	return config.GetRuntime()
}

// startServer serves handler until ctx is done, then shuts the server down gracefully.
// It serves HTTPS when a certificate is configured.
func startServer(ctx context.Context, logger *zap.Logger, cfg *config.Config, home string, handler http.Handler) {
	tlsConfig, err := cert.GetTLSConfig(cfg.Server.TLS, home)
	if err != nil {
		logger.Fatal("Failed to load TLS configuration", zap.Error(err))
	}

	// Build the server address using hostname and port from the configurations.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Hostname, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting edge server", zap.String("address", serverAddr), zap.Bool("tls", tlsConfig != nil))
		var serveErr error
		if tlsConfig != nil {
			serveErr = server.ListenAndServeTLS("", "")
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
