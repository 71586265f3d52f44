package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestFile creates a file with the specified content, failing the test on error.
func writeTestFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// TestLoadApplicationConfigurationReadsLocalFile verifies values decode from
// a local configuration file.
func TestLoadApplicationConfigurationReadsLocalFile(testingHandle *testing.T) {
	workingDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(workingDirectory, ConfigFileName), `
limits:
  max_files: 500
  max_file_size_bytes: 2048
tokens:
  model: gpt-4o
paths:
  exclude:
    - "*.log"
    - "*.log"
output:
  format: json
`)

	loadedConfiguration, loadError := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory})
	if loadError != nil {
		testingHandle.Fatalf("LoadApplicationConfiguration failed: %v", loadError)
	}

	if loadedConfiguration.Limits.MaxFiles == nil || *loadedConfiguration.Limits.MaxFiles != 500 {
		testingHandle.Fatalf("unexpected max_files: %+v", loadedConfiguration.Limits)
	}
	if loadedConfiguration.Limits.MaxFileSizeBytes == nil || *loadedConfiguration.Limits.MaxFileSizeBytes != 2048 {
		testingHandle.Fatalf("unexpected max_file_size_bytes: %+v", loadedConfiguration.Limits)
	}
	if loadedConfiguration.Limits.MaxDirectoryDepth != nil {
		testingHandle.Fatal("unset keys must stay nil")
	}
	if loadedConfiguration.Tokens.Model != "gpt-4o" {
		testingHandle.Fatalf("unexpected token model: %q", loadedConfiguration.Tokens.Model)
	}
	if len(loadedConfiguration.Paths.Exclude) != 1 || loadedConfiguration.Paths.Exclude[0] != "*.log" {
		testingHandle.Fatalf("exclude patterns should deduplicate: %v", loadedConfiguration.Paths.Exclude)
	}
	if loadedConfiguration.Output.Format != "json" {
		testingHandle.Fatalf("unexpected output format: %q", loadedConfiguration.Output.Format)
	}
}

// TestLoadApplicationConfigurationMissingFilesIsEmpty verifies absent files
// produce the zero configuration without error.
func TestLoadApplicationConfigurationMissingFilesIsEmpty(testingHandle *testing.T) {
	loadedConfiguration, loadError := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: testingHandle.TempDir()})
	if loadError != nil {
		testingHandle.Fatalf("LoadApplicationConfiguration failed: %v", loadError)
	}
	if loadedConfiguration.Limits.MaxFiles != nil || loadedConfiguration.Tokens.Model != "" {
		testingHandle.Fatalf("expected empty configuration, got %+v", loadedConfiguration)
	}
}

// TestMergeOverlaysOnlySetValues verifies an override replaces set keys and
// preserves the rest.
func TestMergeOverlaysOnlySetValues(testingHandle *testing.T) {
	baseDepth := 5
	baseModel := "cl100k_base"
	baseConfiguration := ApplicationConfiguration{
		Limits: LimitConfiguration{MaxDirectoryDepth: &baseDepth},
		Tokens: TokenConfiguration{Model: baseModel},
		Paths:  PathConfiguration{Exclude: []string{"vendor"}},
	}

	overrideFiles := 100
	overrideConfiguration := ApplicationConfiguration{
		Limits: LimitConfiguration{MaxFiles: &overrideFiles},
		Output: OutputConfiguration{Format: "json"},
	}

	mergedConfiguration := baseConfiguration.Merge(overrideConfiguration)
	if mergedConfiguration.Limits.MaxDirectoryDepth == nil || *mergedConfiguration.Limits.MaxDirectoryDepth != 5 {
		testingHandle.Fatal("base depth should survive the merge")
	}
	if mergedConfiguration.Limits.MaxFiles == nil || *mergedConfiguration.Limits.MaxFiles != 100 {
		testingHandle.Fatal("override max_files should apply")
	}
	if mergedConfiguration.Tokens.Model != baseModel {
		testingHandle.Fatal("base token model should survive the merge")
	}
	if len(mergedConfiguration.Paths.Exclude) != 1 || mergedConfiguration.Paths.Exclude[0] != "vendor" {
		testingHandle.Fatalf("base excludes should survive the merge: %v", mergedConfiguration.Paths.Exclude)
	}
	if mergedConfiguration.Output.Format != "json" {
		testingHandle.Fatal("override output format should apply")
	}
}
