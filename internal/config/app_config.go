// Package config loads the layered application configuration: a global file in
// the user's home directory overlaid by a local file in the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/codeingest/codeingest/internal/utils"
)

const (
	// ConfigFileName is the configuration file looked up in the working
	// directory and in the global configuration directory.
	ConfigFileName = "codeingest.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home that
	// holds the global configuration file.
	GlobalConfigDirectoryName = ".codeingest"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the file-provided defaults of an ingestion.
// Pointer fields distinguish "absent" from a configured zero, so a local file
// can override the global one without clobbering unset keys.
type ApplicationConfiguration struct {
	Limits LimitConfiguration  `mapstructure:"limits"`
	Tokens TokenConfiguration  `mapstructure:"tokens"`
	Paths  PathConfiguration   `mapstructure:"paths"`
	Output OutputConfiguration `mapstructure:"output"`
}

// LimitConfiguration overrides the traversal limits.
type LimitConfiguration struct {
	MaxDirectoryDepth *int   `mapstructure:"max_directory_depth"`
	MaxFiles          *int   `mapstructure:"max_files"`
	MaxTotalSizeBytes *int64 `mapstructure:"max_total_size_bytes"`
	MaxFileSizeBytes  *int64 `mapstructure:"max_file_size_bytes"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Model string `mapstructure:"model"`
}

// PathConfiguration configures filtering defaults applied to every ingestion.
type PathConfiguration struct {
	Exclude      []string `mapstructure:"exclude"`
	Include      []string `mapstructure:"include"`
	UseGitignore *bool    `mapstructure:"use_gitignore"`
}

// OutputConfiguration configures digest output defaults.
type OutputConfiguration struct {
	Format    string `mapstructure:"format"`
	Clipboard *bool  `mapstructure:"clipboard"`
}

// LoadApplicationConfiguration loads configuration from the global and local
// files. Either file may be absent; a present but unreadable file is an error.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, GlobalConfigDirectoryName, ConfigFileName)
		globalConfig, loadError := loadConfigurationFromPath(globalPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveError := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveError != nil {
		return ApplicationConfiguration{}, resolveError
	}
	if localPath != "" {
		localConfig, loadError := loadConfigurationFromPath(localPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(localConfig)
	}

	merged.Paths.Exclude = utils.DeduplicatePatterns(merged.Paths.Exclude)
	merged.Paths.Include = utils.DeduplicatePatterns(merged.Paths.Include)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, absoluteError := filepath.Abs(explicitPath)
			if absoluteError != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, absoluteError)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	pathInfo, statError := os.Stat(path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statError)
	}
	if pathInfo.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readError := reader.ReadInConfig(); readError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readError)
	}
	var loadedConfig ApplicationConfiguration
	if decodeError := reader.Unmarshal(&loadedConfig); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeError)
	}
	return loadedConfig, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Limits = result.Limits.merge(override.Limits)
	result.Tokens = result.Tokens.merge(override.Tokens)
	result.Paths = result.Paths.merge(override.Paths)
	result.Output = result.Output.merge(override.Output)
	return result
}

func (config LimitConfiguration) merge(override LimitConfiguration) LimitConfiguration {
	result := config
	if override.MaxDirectoryDepth != nil {
		result.MaxDirectoryDepth = cloneInt(override.MaxDirectoryDepth)
	}
	if override.MaxFiles != nil {
		result.MaxFiles = cloneInt(override.MaxFiles)
	}
	if override.MaxTotalSizeBytes != nil {
		result.MaxTotalSizeBytes = cloneInt64(override.MaxTotalSizeBytes)
	}
	if override.MaxFileSizeBytes != nil {
		result.MaxFileSizeBytes = cloneInt64(override.MaxFileSizeBytes)
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func (config PathConfiguration) merge(override PathConfiguration) PathConfiguration {
	result := config
	if len(override.Exclude) > 0 {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if len(override.Include) > 0 {
		result.Include = append([]string{}, utils.DeduplicatePatterns(override.Include)...)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	return result
}

func (config OutputConfiguration) merge(override OutputConfiguration) OutputConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
