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

package config

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Runtime holds the resolved configuration of a running edge server.
type Runtime struct {
	Home       string `yaml:"home"`
	ConfigPath string `yaml:"config_path"`
	// StorageHome is the absolute directory that relative storage and certificate paths resolve against.
	StorageHome string `yaml:"storage_home"`
	Config      Config `yaml:"config"`
}

var (
	runtimeConfig *Runtime
	once          sync.Once
)

// InitializeRuntime resolves the server home and records the loaded configuration.
// Only the first call has an effect.
func InitializeRuntime(home, configPath string, config *Config) error {
	var err error
	once.Do(func() {
		storageHome, absErr := filepath.Abs(home)
		if absErr != nil {
			err = fmt.Errorf("failed to resolve server home %s: %w", home, absErr)
			return
		}
		runtimeConfig = &Runtime{
			Home:        home,
			ConfigPath:  configPath,
			StorageHome: storageHome,
			Config:      *config,
		}
	})

	return err
}

// GetRuntime returns the Runtime configuration.
func GetRuntime() *Runtime {
	if runtimeConfig == nil {
		panic("Runtime is not initialized")
	}
	return runtimeConfig
}

// StorageLocation describes where the key-value store keeps its data.
func (r *Runtime) StorageLocation() string {
	storage := r.Config.Storage
	switch storage.Type {
	case "sqlite":
		path := storage.Database.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.StorageHome, path)
		}
		return "sqlite:" + path
	case "postgres":
		return fmt.Sprintf("postgres://%s:%d/%s", storage.Database.Hostname, storage.Database.Port,
			storage.Database.Name)
	case "redis":
		return fmt.Sprintf("redis://%s/%d", storage.Redis.Address, storage.Redis.DB)
	default:
		return "memory"
	}
}

// ResetRuntime resets the Runtime.
// This should only be used in tests to reset the singleton state.
func ResetRuntime() {
	runtimeConfig = nil
	once = sync.Once{}
}
