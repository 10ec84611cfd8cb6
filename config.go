// config.go: Configuration system for the pixcache decode-buffer reuse library
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// ConfigName is the base name of configuration files, without extension
const ConfigName = "pixcache"

// configExtensions are searched in order in every candidate directory
var configExtensions = []string{"json", "yaml", "yml", "toml"}

// Defaults
const (
	DefaultImageDir       = "Images"
	DefaultCapacity       = 8
	DefaultWorkers        = 1
	DefaultProbeCacheSize = 256
	DefaultMaxImagePixels = 4096 * 4096
	DefaultMaxAssetBytes  = 32 << 20
)

// Global configuration state
var (
	globalConfig *CacheConfig
	configMutex  sync.RWMutex
)

// SetGlobalConfig sets the configuration used by New, overriding any file.
// Typically called from an init function.
func SetGlobalConfig(config CacheConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = &config
}

// ClearGlobalConfig removes a configuration set with SetGlobalConfig
func ClearGlobalConfig() {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = nil
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() *CacheConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// loadConfig loads configuration with priority: Go config > config file > defaults
func loadConfig() CacheConfig {
	if config := GetGlobalConfig(); config != nil {
		return *config
	}

	if path := findConfigFile(); path != "" {
		if config, err := LoadConfigFile(path); err == nil {
			return config
		}
	}

	return getDefaultConfig()
}

// LoadConfigFile reads a configuration file (JSON, YAML or TOML). Unset keys
// keep their defaults and PIXCACHE_* environment variables override the file.
func LoadConfigFile(path string) (CacheConfig, error) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, ConfigName+".") || strings.Contains(path, "..") {
		return CacheConfig{}, fmt.Errorf("invalid config file path: %s", path)
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return CacheConfig{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var config CacheConfig
	if err := v.Unmarshal(&config); err != nil {
		return CacheConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !isKnownPolicy(config.EvictionPolicy) {
		return CacheConfig{}, fmt.Errorf("invalid eviction_policy in %s: %q", path, config.EvictionPolicy)
	}
	return config, nil
}

// newViper returns a viper instance carrying defaults and env bindings
func newViper() *viper.Viper {
	d := getDefaultConfig()
	v := viper.New()
	v.SetDefault("asset_root", d.AssetRoot)
	v.SetDefault("image_dir", d.ImageDir)
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("eviction_policy", d.EvictionPolicy)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("probe_cache_size", d.ProbeCacheSize)
	v.SetDefault("max_image_pixels", d.MaxImagePixels)
	v.SetDefault("max_asset_bytes", d.MaxAssetBytes)
	v.SetDefault("load_timeout", d.LoadTimeout.String())

	v.SetEnvPrefix(ConfigName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// findConfigFile searches for pixcache.{json,yaml,yml,toml} in the current
// and up to five parent directories
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for i := 0; i < 6; i++ {
		for _, ext := range configExtensions {
			configPath := filepath.Join(dir, ConfigName+"."+ext)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root
		}
		dir = parent
	}

	return ""
}

// getDefaultConfig returns the configuration used when nothing else is set
func getDefaultConfig() CacheConfig {
	return CacheConfig{
		AssetRoot:      ".",
		ImageDir:       DefaultImageDir,
		Capacity:       DefaultCapacity,
		EvictionPolicy: "fifo",
		Workers:        DefaultWorkers,
		ProbeCacheSize: DefaultProbeCacheSize,
		MaxImagePixels: DefaultMaxImagePixels,
		MaxAssetBytes:  DefaultMaxAssetBytes,
		LoadTimeout:    0,
	}
}

// normalizeConfig fills zero values with defaults
func normalizeConfig(config CacheConfig) CacheConfig {
	d := getDefaultConfig()
	if config.AssetRoot == "" {
		config.AssetRoot = d.AssetRoot
	}
	if config.Capacity <= 0 {
		config.Capacity = d.Capacity
	}
	if config.EvictionPolicy == "" {
		config.EvictionPolicy = d.EvictionPolicy
	}
	if config.Workers <= 0 {
		config.Workers = d.Workers
	}
	if config.ProbeCacheSize <= 0 {
		config.ProbeCacheSize = d.ProbeCacheSize
	}
	if config.LoadTimeout < 0 {
		config.LoadTimeout = time.Duration(0)
	}
	if config.Logger == nil {
		config.Logger = nopLogger{}
	}
	return config
}

// LoadConfig loads the current configuration (for debugging/inspection)
func LoadConfig() CacheConfig {
	return loadConfig()
}

// GetConfigSource returns information about the configuration source
func GetConfigSource() string {
	if GetGlobalConfig() != nil {
		return "Go configuration (SetGlobalConfig)"
	}

	if path := findConfigFile(); path != "" {
		return fmt.Sprintf("File configuration (%s)", filepath.Base(path))
	}

	return "Default configuration"
}

// GetConfigInfo returns a summary of the current configuration
func GetConfigInfo() string {
	config := LoadConfig()
	return fmt.Sprintf("Configuration Source: %s\nAsset Root: %s\nImage Dir: %s\nCapacity: %d\nEviction Policy: %s\nWorkers: %d",
		GetConfigSource(), config.AssetRoot, config.ImageDir, config.Capacity, config.EvictionPolicy, config.Workers)
}
