package ingest

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/codeingest/codeingest/internal/content"
	"github.com/codeingest/codeingest/internal/patterns"
	"github.com/codeingest/codeingest/internal/types"
	"github.com/codeingest/codeingest/internal/utils"
)

// walkState carries the per-traversal collaborators so the recursion signature
// stays small. One walkState exists per ingestion; nothing in it is shared
// across concurrent ingestions.
type walkState struct {
	query         *types.IngestionQuery
	stats         *FileSystemStats
	ignoreMatcher gitignore.IgnoreMatcher
}

// processNode recursively walks one directory node, applying exclude and
// include filters and the traversal limits, and attaching accepted children.
// Children are sorted exactly once, after the whole directory was collected.
func (ingester *Ingester) processNode(node *types.FileSystemNode, state *walkState) {
	if ingester.limitExceeded(state.stats, node.Depth, ingester.logger) {
		return
	}

	directoryEntries, readDirectoryError := os.ReadDir(node.AbsolutePath)
	if readDirectoryError != nil {
		ingester.logger.Warnf("cannot access directory contents %s: %v", node.AbsolutePath, readDirectoryError)
		return
	}

	for _, directoryEntry := range directoryEntries {
		if ingester.limitExceeded(state.stats, node.Depth+1, ingester.logger) {
			break
		}
		if state.stats.FileLimitReached || state.stats.SizeLimitReached {
			break
		}

		childPath := filepath.Join(node.AbsolutePath, directoryEntry.Name())
		if patterns.ShouldExclude(childPath, state.query.LocalPath, state.query.ExcludePatterns) {
			continue
		}
		if state.ignoreMatcher != nil && ingester.ignoredByGitignore(state, childPath, directoryEntry.IsDir()) {
			continue
		}

		entryType := directoryEntry.Type()
		switch {
		case entryType&fs.ModeSymlink != 0:
			if !patterns.ShouldInclude(childPath, state.query.LocalPath, state.query.IncludePatterns) {
				continue
			}
			ingester.processSymlink(childPath, node, state)
		case entryType.IsRegular():
			if !patterns.ShouldInclude(childPath, state.query.LocalPath, state.query.IncludePatterns) {
				continue
			}
			ingester.processFile(childPath, directoryEntry, node, state)
		case directoryEntry.IsDir():
			// Directories recurse regardless of the include filter: a hidden
			// or non-matching directory may still contain matching files. The
			// directory node itself is only attached when something under it
			// survived filtering.
			childNode := &types.FileSystemNode{
				Name:         directoryEntry.Name(),
				Type:         types.NodeTypeDirectory,
				RelativePath: utils.RelativePathOrSelf(childPath, state.query.LocalPath),
				AbsolutePath: childPath,
				Depth:        node.Depth + 1,
			}
			ingester.processNode(childNode, state)
			if len(childNode.Children) > 0 || childNode.FileCount > 0 {
				node.Children = append(node.Children, childNode)
				node.SizeBytes += childNode.SizeBytes
				node.FileCount += childNode.FileCount
				node.DirCount += 1 + childNode.DirCount
			}
		default:
			ingester.logger.Warnf("skipping unsupported entry type %s: %s", entryType, childPath)
		}
	}

	node.SortChildren()
}

// processSymlink registers a symlink as a leaf node. The link target is
// recorded but never traversed; content for the node is a link description
// produced later by the content reader.
func (ingester *Ingester) processSymlink(path string, parentNode *types.FileSystemNode, state *walkState) {
	childNode := &types.FileSystemNode{
		Name:         filepath.Base(path),
		Type:         types.NodeTypeSymlink,
		RelativePath: utils.RelativePathOrSelf(path, state.query.LocalPath),
		AbsolutePath: path,
		LinkTarget:   content.ResolveLinkTarget(path),
		Depth:        parentNode.Depth + 1,
	}
	state.stats.TotalFiles++
	parentNode.Children = append(parentNode.Children, childNode)
	parentNode.FileCount++
}

// processFile applies the file acceptance policy: the per-file size cap is
// checked first, then the aggregate total-size and file-count limits. Only a
// file that passes all three is counted and attached; a rejected file never
// contributes partial size.
func (ingester *Ingester) processFile(path string, directoryEntry os.DirEntry, parentNode *types.FileSystemNode, state *walkState) {
	entryInfo, infoError := directoryEntry.Info()
	if infoError != nil {
		ingester.logger.Warnf("could not stat file %s: %v", path, infoError)
		return
	}
	fileSize := entryInfo.Size()

	if fileSize > state.query.MaxFileSizeBytes {
		ingester.logger.Warnf("skipping file %s (%d bytes): exceeds max file size (%d bytes)", directoryEntry.Name(), fileSize, state.query.MaxFileSizeBytes)
		return
	}

	if state.stats.TotalSizeBytes+fileSize > ingester.Limits.MaxTotalSizeBytes {
		if !state.stats.SizeLimitReached {
			ingester.logger.Warnf("total size limit (%s) reached", utils.FormatFileSize(ingester.Limits.MaxTotalSizeBytes))
			state.stats.SizeLimitReached = true
		}
		return
	}

	if state.stats.TotalFiles >= int64(ingester.Limits.MaxFiles) {
		if !state.stats.FileLimitReached {
			ingester.logger.Warnf("maximum file limit (%d) reached", ingester.Limits.MaxFiles)
			state.stats.FileLimitReached = true
		}
		return
	}

	state.stats.TotalFiles++
	state.stats.TotalSizeBytes += fileSize

	childNode := &types.FileSystemNode{
		Name:         directoryEntry.Name(),
		Type:         types.NodeTypeFile,
		RelativePath: utils.RelativePathOrSelf(path, state.query.LocalPath),
		AbsolutePath: path,
		SizeBytes:    fileSize,
		FileCount:    1,
		Depth:        parentNode.Depth + 1,
	}
	parentNode.Children = append(parentNode.Children, childNode)
	parentNode.SizeBytes += fileSize
	parentNode.FileCount++
}

// ignoredByGitignore consults the root .gitignore matcher for paths below the
// ingestion root. The root itself is never matched.
func (ingester *Ingester) ignoredByGitignore(state *walkState, path string, isDirectory bool) bool {
	relativePath := utils.RelativePathOrSelf(path, state.query.LocalPath)
	if relativePath == types.RootRelativePath {
		return false
	}
	return state.ignoreMatcher.Match(relativePath, isDirectory)
}
