package ingest

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/codeingest/codeingest/internal/patterns"
	"github.com/codeingest/codeingest/internal/types"
	"github.com/codeingest/codeingest/internal/utils"
)

// GitingestFileName is the per-repository configuration file consulted before
// a walk starts.
const GitingestFileName = ".gitingest"

// gitingestDocument mirrors the recognized subset of the .gitingest file:
//
//	[config]
//	ignore_patterns = ["*.log", "dist"]   # a single string is also accepted
type gitingestDocument struct {
	Config struct {
		IgnorePatterns any `toml:"ignore_patterns"`
	} `toml:"config"`
}

// applyGitingestFile unions ignore patterns from a .gitingest file at the root
// of the ingestion target (or next to it, for single-file targets) into the
// query's exclude patterns. Malformed documents, wrong value types, and
// non-string list entries are logged and dropped; this never fails the walk.
func applyGitingestFile(rootPath string, query *types.IngestionQuery, logger *zap.SugaredLogger) {
	configDirectory := rootPath
	if pathInfo, statError := os.Stat(rootPath); statError == nil && !pathInfo.IsDir() {
		configDirectory = filepath.Dir(rootPath)
	}

	gitingestPath := filepath.Join(configDirectory, GitingestFileName)
	documentBytes, readError := os.ReadFile(gitingestPath)
	if readError != nil {
		return
	}

	var document gitingestDocument
	if decodeError := toml.Unmarshal(documentBytes, &document); decodeError != nil {
		logger.Warnf("error reading %s: %v", gitingestPath, decodeError)
		return
	}

	additionalPatterns := coerceIgnorePatterns(document.Config.IgnorePatterns, gitingestPath, logger)
	if len(additionalPatterns) == 0 {
		return
	}

	merged := append(append([]string{}, query.ExcludePatterns...), additionalPatterns...)
	query.ExcludePatterns = utils.DeduplicatePatterns(merged)
}

// coerceIgnorePatterns accepts a string or a list of strings and drops
// everything else with a warning.
func coerceIgnorePatterns(rawValue any, gitingestPath string, logger *zap.SugaredLogger) []string {
	var candidates []string
	switch value := rawValue.(type) {
	case nil:
		return nil
	case string:
		candidates = []string{value}
	case []any:
		for _, element := range value {
			if text, isString := element.(string); isString {
				candidates = append(candidates, text)
			} else {
				logger.Warnf("ignoring non-string pattern %v in %s", element, gitingestPath)
			}
		}
	default:
		logger.Warnf("invalid 'ignore_patterns' type in %s; expected string or list of strings", gitingestPath)
		return nil
	}

	var accepted []string
	for _, candidate := range candidates {
		normalized := patterns.NormalizePattern(candidate)
		if normalized == "" {
			continue
		}
		accepted = append(accepted, normalized)
	}
	return accepted
}
