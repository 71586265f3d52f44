// Package ingest implements the traversal-and-filtering engine: the recursive
// walker that builds the file system tree for a query while enforcing depth,
// file-count, and size limits.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gitignore "github.com/monochromegane/go-gitignore"
	"go.uber.org/zap"

	"github.com/codeingest/codeingest/internal/format"
	"github.com/codeingest/codeingest/internal/patterns"
	"github.com/codeingest/codeingest/internal/types"
)

// ErrPathNotFound marks ingestion targets that do not exist or cannot be
// accessed. It aborts the whole operation, unlike per-entry failures which are
// absorbed into the tree.
var ErrPathNotFound = errors.New("target path cannot be found or accessed")

// GitIgnoreFileName is the repository ignore file optionally honored at the
// ingestion root.
const GitIgnoreFileName = ".gitignore"

// Ingester runs ingestion requests. Limits apply to every traversal started
// through it; each IngestQuery call uses its own FileSystemStats, so a single
// Ingester is safe for concurrent ingestions of independent queries.
type Ingester struct {
	Limits           Limits
	RespectGitignore bool

	formatter *format.Formatter
	logger    *zap.SugaredLogger
}

// NewIngester wires an ingester with its formatter and logger.
func NewIngester(limits Limits, respectGitignore bool, formatter *format.Formatter, logger *zap.SugaredLogger) *Ingester {
	return &Ingester{
		Limits:           limits,
		RespectGitignore: respectGitignore,
		formatter:        formatter,
		logger:           logger,
	}
}

// IngestQuery walks the query's resolved local root and produces the digest.
// Root-level failures (missing path, fully-excluded single file, unsupported
// path kind) abort the operation; failures on individual descendants are
// logged and degrade to skipped entries or placeholder content.
func (ingester *Ingester) IngestQuery(query *types.IngestionQuery) (format.Digest, error) {
	applyGitingestFile(query.LocalPath, query, ingester.logger)

	pathInfo, statError := os.Stat(query.LocalPath)
	if statError != nil {
		return format.Digest{}, fmt.Errorf("%w: '%s' (%s)", ErrPathNotFound, ingester.sourceReference(query), query.LocalPath)
	}

	if pathInfo.Mode().IsRegular() {
		return ingester.ingestSingleFile(query, pathInfo)
	}

	if pathInfo.IsDir() {
		return ingester.ingestDirectory(query)
	}

	return format.Digest{}, fmt.Errorf("path is neither a file nor a directory: %s", query.LocalPath)
}

// ingestSingleFile handles ingestion targets that are one regular file. The
// parent directory serves as the base for pattern matching.
func (ingester *Ingester) ingestSingleFile(query *types.IngestionQuery, pathInfo os.FileInfo) (format.Digest, error) {
	parentDirectory := filepath.Dir(query.LocalPath)
	if patterns.ShouldExclude(query.LocalPath, parentDirectory, query.ExcludePatterns) {
		return format.Digest{}, fmt.Errorf("file '%s' is excluded by ignore patterns", pathInfo.Name())
	}
	if !patterns.ShouldInclude(query.LocalPath, parentDirectory, query.IncludePatterns) {
		return format.Digest{}, fmt.Errorf("file '%s' does not match include patterns", pathInfo.Name())
	}

	fileNode := &types.FileSystemNode{
		Name:         pathInfo.Name(),
		Type:         types.NodeTypeFile,
		RelativePath: pathInfo.Name(),
		AbsolutePath: query.LocalPath,
		SizeBytes:    pathInfo.Size(),
		FileCount:    1,
	}
	return ingester.formatter.FormatNode(fileNode, query)
}

func (ingester *Ingester) ingestDirectory(query *types.IngestionQuery) (format.Digest, error) {
	rootNode := &types.FileSystemNode{
		Name:         filepath.Base(query.LocalPath),
		Type:         types.NodeTypeDirectory,
		RelativePath: types.RootRelativePath,
		AbsolutePath: query.LocalPath,
	}

	state := &walkState{
		query:         query,
		stats:         &FileSystemStats{},
		ignoreMatcher: ingester.rootIgnoreMatcher(query.LocalPath),
	}
	ingester.processNode(rootNode, state)

	if len(rootNode.Children) == 0 && rootNode.FileCount == 0 {
		ingester.logger.Warnf("directory '%s' is empty or fully excluded", rootNode.Name)
		return format.EmptyDigest(query), nil
	}

	return ingester.formatter.FormatNode(rootNode, query)
}

// rootIgnoreMatcher loads the .gitignore at the ingestion root, when present
// and enabled. Nested ignore files are not consulted.
func (ingester *Ingester) rootIgnoreMatcher(rootPath string) gitignore.IgnoreMatcher {
	if !ingester.RespectGitignore {
		return nil
	}
	gitIgnorePath := filepath.Join(rootPath, GitIgnoreFileName)
	if _, statError := os.Stat(gitIgnorePath); statError != nil {
		return nil
	}
	ignoreMatcher, parseError := gitignore.NewGitIgnore(gitIgnorePath)
	if parseError != nil {
		ingester.logger.Warnf("could not parse %s: %v", gitIgnorePath, parseError)
		return nil
	}
	return ignoreMatcher
}

func (ingester *Ingester) sourceReference(query *types.IngestionQuery) string {
	switch {
	case query.URL != "":
		return query.URL
	case query.OriginalZipPath != "":
		return query.OriginalZipPath
	default:
		return query.Slug
	}
}
