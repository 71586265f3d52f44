// Package types defines every cross-package data structure used by the codeingest CLI.
package types

import (
	"sort"
	"strings"
)

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"
	NodeTypeSymlink   = "symlink"

	// RootRelativePath is the relative path assigned to the ingestion root node.
	RootRelativePath = "."

	// DefaultSubpath marks a query that targets the whole repository.
	DefaultSubpath = "/"
)

// IsDefaultBranch reports whether a branch name is one of the conventional
// default branches, compared case-insensitively. Default branches are never
// named in summaries or passed as explicit clone selectors.
func IsDefaultBranch(branchName string) bool {
	return strings.EqualFold(branchName, "main") || strings.EqualFold(branchName, "master")
}

// FileSystemNode represents one entry of the ingested tree.
//
// Aggregate fields (SizeBytes, FileCount, DirCount) of a directory are rolled
// up incrementally while children are attached during the walk; they are never
// recomputed on read. Content is populated once by the formatter, not lazily.
type FileSystemNode struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	RelativePath string            `json:"relativePath"`
	AbsolutePath string            `json:"-"`
	SizeBytes    int64             `json:"sizeBytes"`
	FileCount    int               `json:"fileCount"`
	DirCount     int               `json:"dirCount"`
	Depth        int               `json:"depth"`
	LinkTarget   string            `json:"linkTarget,omitempty"`
	Children     []*FileSystemNode `json:"children,omitempty"`
	Content      string            `json:"-"`
}

// IsHidden reports whether the node name starts with a dot.
func (node *FileSystemNode) IsHidden() bool {
	return strings.HasPrefix(node.Name, ".")
}

// sortBucket ranks a child for SortChildren. Lower buckets sort first.
func (node *FileSystemNode) sortBucket() int {
	loweredName := strings.ToLower(node.Name)
	hidden := node.IsHidden()
	switch node.Type {
	case NodeTypeFile:
		if loweredName == "readme.md" {
			return 0
		}
		if hidden {
			return 2
		}
		return 1
	case NodeTypeDirectory:
		if hidden {
			return 4
		}
		return 3
	case NodeTypeSymlink:
		if hidden {
			return 6
		}
		return 5
	default:
		return 7
	}
}

// SortChildren orders the children of a directory once, after the walk has
// collected them: readme.md first, then files, hidden files, directories,
// hidden directories, symlinks, hidden symlinks, everything else; each bucket
// alphabetical by lowercased name. The sort is stable and never re-applied.
func (node *FileSystemNode) SortChildren() {
	sort.SliceStable(node.Children, func(leftIndex, rightIndex int) bool {
		return childLess(node.Children[leftIndex], node.Children[rightIndex])
	})
}

func childLess(left, right *FileSystemNode) bool {
	leftBucket := left.sortBucket()
	rightBucket := right.sortBucket()
	if leftBucket != rightBucket {
		return leftBucket < rightBucket
	}
	return strings.ToLower(left.Name) < strings.ToLower(right.Name)
}

// TreeRecord is one entry of the flattened, depth-first, pre-order tree view.
type TreeRecord struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	RelativePath string `json:"relativePath"`
	Depth        int    `json:"depth"`
	LinkTarget   string `json:"linkTarget,omitempty"`
}

// IngestionQuery carries one ingestion request. It is built once per request
// and stays immutable during traversal, except that a .gitingest file found at
// the root may union additional patterns into ExcludePatterns before the walk
// starts.
//
// IncludePatterns distinguishes nil (no include filter, everything passes)
// from an empty slice (everything filtered out).
type IngestionQuery struct {
	UserName         string
	RepoName         string
	URL              string
	LocalPath        string
	Slug             string
	ID               string
	Subpath          string
	RefType          string
	Branch           string
	Commit           string
	MaxFileSizeBytes int64
	IncludePatterns  []string
	ExcludePatterns  []string
	OriginalZipPath  string
	TempExtractPath  string
}

// IsRemote reports whether the query targets a remote repository.
func (query *IngestionQuery) IsRemote() bool {
	return query.URL != ""
}

// CloneConfig holds the parameters handed to the clone collaborator.
type CloneConfig struct {
	URL       string
	LocalPath string
	Commit    string
	Branch    string
	Subpath   string
	Blob      bool
}

// ExtractCloneConfig derives the clone parameters from a remote query. The
// second return value is false for local queries, which cannot be cloned.
func (query *IngestionQuery) ExtractCloneConfig() (CloneConfig, bool) {
	if !query.IsRemote() {
		return CloneConfig{}, false
	}
	return CloneConfig{
		URL:       query.URL,
		LocalPath: query.LocalPath,
		Commit:    query.Commit,
		Branch:    query.Branch,
		Subpath:   query.Subpath,
		Blob:      query.RefType == "blob",
	}, true
}
