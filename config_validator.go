// config_validator.go: Configuration validation and recommendations
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import (
	"fmt"
	"path"
	"runtime"
	"strings"
	"time"
)

// ConfigValidationResult contains validation results and suggestions
type ConfigValidationResult struct {
	IsValid         bool         `json:"is_valid"`
	Warnings        []string     `json:"warnings"`
	Suggestions     []string     `json:"suggestions"`
	OptimizedConfig *CacheConfig `json:"optimized_config,omitempty"`
}

// ValidateConfig validates a configuration and provides optimization suggestions
func ValidateConfig(config CacheConfig) ConfigValidationResult {
	result := ConfigValidationResult{
		IsValid:     true,
		Warnings:    []string{},
		Suggestions: []string{},
	}

	if config.Capacity <= 0 {
		result.IsValid = false
		result.Warnings = append(result.Warnings, "Capacity must be greater than 0")
	} else if config.Capacity > 64 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Capacity %d may pin up to %s of decoded pixels",
			config.Capacity, formatBytes(estimateMemoryUsage(config))))
	}

	if !isKnownPolicy(config.EvictionPolicy) {
		result.IsValid = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("Unknown eviction policy %q (use \"fifo\" or \"lru\")", config.EvictionPolicy))
	}

	dir := strings.ReplaceAll(config.ImageDir, "\\", "/")
	if path.IsAbs(dir) || strings.HasPrefix(path.Clean(dir), "..") {
		result.IsValid = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("Image dir %q must be relative to the asset root", config.ImageDir))
	}

	if config.Workers < 0 {
		result.IsValid = false
		result.Warnings = append(result.Warnings, "Workers must not be negative")
	}
	numCPU := runtime.NumCPU()
	if config.Workers > numCPU*2 {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Consider reducing workers to %d (2x CPU cores); decoding is CPU bound", numCPU*2))
	}
	if config.Workers > 1 && config.EvictionPolicy != "lru" && config.Capacity > 0 && config.Capacity < config.Workers {
		result.Suggestions = append(result.Suggestions, "Capacity below the worker count makes concurrent loads recycle each other's slots")
	}

	if config.MaxImagePixels <= 0 {
		result.Warnings = append(result.Warnings, "No max_image_pixels limit: oversized images are decoded without checks")
	}
	if config.MaxAssetBytes <= 0 {
		result.Suggestions = append(result.Suggestions, "Consider setting max_asset_bytes to bound memory used while reading assets")
	}

	if config.LoadTimeout > 0 && config.LoadTimeout < 10*time.Millisecond {
		result.Warnings = append(result.Warnings, "Very short load_timeout will cancel most background loads")
	}

	if len(result.Suggestions) > 0 {
		result.OptimizedConfig = generateOptimizedConfig(config)
	}

	return result
}

// estimateMemoryUsage assumes every slot holds an image of MaxImagePixels,
// or 1024x1024 when unlimited
func estimateMemoryUsage(config CacheConfig) int64 {
	pixels := int64(config.MaxImagePixels)
	if pixels <= 0 {
		pixels = 1024 * 1024
	}
	return int64(config.Capacity) * pixels * 4
}

// generateOptimizedConfig creates an optimized version of the config
func generateOptimizedConfig(config CacheConfig) *CacheConfig {
	optimized := config
	numCPU := runtime.NumCPU()

	if optimized.Workers > numCPU*2 {
		optimized.Workers = numCPU
	}
	if optimized.Capacity > 0 && optimized.Capacity < optimized.Workers {
		optimized.Capacity = optimized.Workers
	}
	if optimized.MaxAssetBytes <= 0 {
		optimized.MaxAssetBytes = DefaultMaxAssetBytes
	}

	return &optimized
}

// GetConfigRecommendation provides configuration recommendations based on use case
func GetConfigRecommendation(useCase string) CacheConfig {
	config := getDefaultConfig()
	switch useCase {
	case "lesson":
		// A handful of pictures on screen, loaded one at a time.
		config.Capacity = 8
	case "gallery":
		config.Capacity = 32
		config.EvictionPolicy = "lru"
		config.Workers = runtime.NumCPU()
	case "low-memory":
		config.Capacity = 4
		config.MaxImagePixels = 1024 * 1024
		config.MaxAssetBytes = 4 << 20
		config.ProbeCacheSize = 64
	case "development":
		config.Capacity = 4
		config.LoadTimeout = 5 * time.Second
	}
	return config
}
