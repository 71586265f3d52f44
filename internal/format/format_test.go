package format

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeingest/codeingest/internal/content"
	"github.com/codeingest/codeingest/internal/tokenizer"
	"github.com/codeingest/codeingest/internal/types"
)

// fixedCounter reports one token per byte, or a configured error.
type fixedCounter struct {
	failWith error
}

func (counter fixedCounter) Name() string { return "fixed" }

func (counter fixedCounter) CountString(input string) (int, error) {
	if counter.failWith != nil {
		return 0, counter.failWith
	}
	return len(input), nil
}

// buildFixtureTree writes a small directory and returns its walked node tree
// alongside the query. The tree layout is root/{readme.md, sub/inner.txt}.
func buildFixtureTree(testingHandle *testing.T) (*types.FileSystemNode, *types.IngestionQuery) {
	testingHandle.Helper()
	rootDirectory := testingHandle.TempDir()
	require.NoError(testingHandle, os.WriteFile(filepath.Join(rootDirectory, "readme.md"), []byte("# readme\n"), 0o644))
	require.NoError(testingHandle, os.MkdirAll(filepath.Join(rootDirectory, "sub"), 0o755))
	require.NoError(testingHandle, os.WriteFile(filepath.Join(rootDirectory, "sub", "inner.txt"), []byte("inner\n"), 0o644))

	innerNode := &types.FileSystemNode{
		Name:         "inner.txt",
		Type:         types.NodeTypeFile,
		RelativePath: "sub/inner.txt",
		AbsolutePath: filepath.Join(rootDirectory, "sub", "inner.txt"),
		SizeBytes:    6,
		FileCount:    1,
		Depth:        2,
	}
	subNode := &types.FileSystemNode{
		Name:         "sub",
		Type:         types.NodeTypeDirectory,
		RelativePath: "sub",
		AbsolutePath: filepath.Join(rootDirectory, "sub"),
		SizeBytes:    6,
		FileCount:    1,
		Depth:        1,
		Children:     []*types.FileSystemNode{innerNode},
	}
	readmeNode := &types.FileSystemNode{
		Name:         "readme.md",
		Type:         types.NodeTypeFile,
		RelativePath: "readme.md",
		AbsolutePath: filepath.Join(rootDirectory, "readme.md"),
		SizeBytes:    9,
		FileCount:    1,
		Depth:        1,
	}
	rootNode := &types.FileSystemNode{
		Name:         filepath.Base(rootDirectory),
		Type:         types.NodeTypeDirectory,
		RelativePath: types.RootRelativePath,
		AbsolutePath: rootDirectory,
		SizeBytes:    15,
		FileCount:    2,
		DirCount:     1,
		Children:     []*types.FileSystemNode{readmeNode, subNode},
	}
	ingestionQuery := &types.IngestionQuery{
		LocalPath: rootDirectory,
		Slug:      filepath.Base(rootDirectory),
		Subpath:   types.DefaultSubpath,
	}
	return rootNode, ingestionQuery
}

func newTestFormatter(tokenCounter tokenizer.Counter) *Formatter {
	return NewFormatter(content.NewReader(nil), tokenCounter, nil)
}

// TestFormatNodeRendersTreeAndContent checks the digest views produced for a
// small directory tree.
func TestFormatNodeRendersTreeAndContent(testingHandle *testing.T) {
	rootNode, ingestionQuery := buildFixtureTree(testingHandle)
	formatter := newTestFormatter(fixedCounter{})

	ingestionDigest, formatError := formatter.FormatNode(rootNode, ingestionQuery)
	require.NoError(testingHandle, formatError)

	require.Contains(testingHandle, ingestionDigest.Summary, "Directory: "+ingestionQuery.LocalPath)
	require.Contains(testingHandle, ingestionDigest.Summary, "Files analyzed: 2")
	require.Contains(testingHandle, ingestionDigest.Summary, "Estimated tokens: ")

	expectedTree := "Directory structure:\n" +
		"└── " + rootNode.Name + "\n" +
		"├── readme.md\n" +
		"└── sub/\n" +
		"    └── inner.txt\n"
	require.Equal(testingHandle, expectedTree, ingestionDigest.Tree)

	separator := strings.Repeat("=", 48)
	require.Contains(testingHandle, ingestionDigest.Content, separator+"\nFILE: readme.md\n"+separator+"\n# readme\n")
	require.Contains(testingHandle, ingestionDigest.Content, "FILE: sub/inner.txt")
}

// TestFormatNodeSingleFileTree checks that a single-file ingestion reports the
// file name as its tree instead of a branch-connector rendering.
func TestFormatNodeSingleFileTree(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	filePath := filepath.Join(rootDirectory, "main.go")
	require.NoError(testingHandle, os.WriteFile(filePath, []byte("package main\n"), 0o644))

	fileNode := &types.FileSystemNode{
		Name:         "main.go",
		Type:         types.NodeTypeFile,
		RelativePath: "main.go",
		AbsolutePath: filePath,
		SizeBytes:    13,
		FileCount:    1,
	}
	ingestionQuery := &types.IngestionQuery{LocalPath: filePath, Slug: "main"}
	formatter := newTestFormatter(fixedCounter{})

	ingestionDigest, formatError := formatter.FormatNode(fileNode, ingestionQuery)
	require.NoError(testingHandle, formatError)
	require.Equal(testingHandle, "File: main.go\n", ingestionDigest.Tree)
	require.Contains(testingHandle, ingestionDigest.Summary, "Lines: 1")
}

// TestFormatNodeRecordsArePreOrder checks the flattened record list order and
// decorations.
func TestFormatNodeRecordsArePreOrder(testingHandle *testing.T) {
	rootNode, ingestionQuery := buildFixtureTree(testingHandle)
	formatter := newTestFormatter(fixedCounter{})

	ingestionDigest, formatError := formatter.FormatNode(rootNode, ingestionQuery)
	require.NoError(testingHandle, formatError)

	require.Len(testingHandle, ingestionDigest.Records, 4)
	require.Equal(testingHandle, rootNode.Name, ingestionDigest.Records[0].Name)
	require.Equal(testingHandle, "readme.md", ingestionDigest.Records[1].Name)
	require.Equal(testingHandle, "sub/", ingestionDigest.Records[2].Name)
	require.Equal(testingHandle, "inner.txt", ingestionDigest.Records[3].Name)
	require.Equal(testingHandle, "sub/inner.txt", ingestionDigest.Records[3].RelativePath)
}

// TestFormatNodeTokenFailureOmitsEstimate checks a failing counter suppresses
// the estimate line without failing the digest.
func TestFormatNodeTokenFailureOmitsEstimate(testingHandle *testing.T) {
	rootNode, ingestionQuery := buildFixtureTree(testingHandle)
	formatter := newTestFormatter(fixedCounter{failWith: errors.New("encoder offline")})

	ingestionDigest, formatError := formatter.FormatNode(rootNode, ingestionQuery)
	require.NoError(testingHandle, formatError)
	require.NotContains(testingHandle, ingestionDigest.Summary, "Estimated tokens")
	require.Empty(testingHandle, ingestionDigest.TokenEstimate)
}

// TestSummaryPrefixVariants checks the source-identification lines.
func TestSummaryPrefixVariants(testingHandle *testing.T) {
	remoteQuery := &types.IngestionQuery{
		UserName: "octo",
		RepoName: "widgets",
		URL:      "https://github.com/octo/widgets",
		Branch:   "dev",
		Subpath:  "/src/app",
	}
	remoteSummary := summaryPrefix(remoteQuery, false)
	require.Contains(testingHandle, remoteSummary, "Repository: octo/widgets")
	require.Contains(testingHandle, remoteSummary, "Branch: dev")
	require.Contains(testingHandle, remoteSummary, "Subpath: src/app")

	for _, defaultBranch := range []string{"main", "master", "Main", "MASTER"} {
		remoteQuery.Branch = defaultBranch
		require.NotContains(testingHandle, summaryPrefix(remoteQuery, false), "Branch:")
	}

	remoteQuery.Commit = strings.Repeat("a", 40)
	require.Contains(testingHandle, summaryPrefix(remoteQuery, false), "Commit: "+strings.Repeat("a", 40))

	zipQuery := &types.IngestionQuery{OriginalZipPath: "/tmp/src.zip", LocalPath: "/tmp/extracted"}
	require.Contains(testingHandle, summaryPrefix(zipQuery, false), "Zip File: /tmp/src.zip")

	fileQuery := &types.IngestionQuery{LocalPath: "/repo/main.go"}
	require.Contains(testingHandle, summaryPrefix(fileQuery, true), "File: /repo/main.go")
}

// TestSingleFileLineCountDistinguishesErrorPlaceholders verifies a file whose
// text merely begins with the word "Error" still reports its line count, while
// the reader's error placeholders report N/A.
func TestSingleFileLineCountDistinguishesErrorPlaceholders(testingHandle *testing.T) {
	textNode := &types.FileSystemNode{Content: "Error rates dropped\nafter the fix\n"}
	require.Equal(testingHandle, "Lines: 2\n", singleFileLineCount(textNode))

	placeholderNode := &types.FileSystemNode{Content: "Error reading file: open /x: permission denied"}
	require.Equal(testingHandle, "Lines: N/A\n", singleFileLineCount(placeholderNode))

	undecodableNode := &types.FileSystemNode{Content: "Error: Unable to decode file with available encodings"}
	require.Equal(testingHandle, "Lines: N/A\n", singleFileLineCount(undecodableNode))
}

// TestFormatTokenCountScales checks the three formatting tiers.
func TestFormatTokenCountScales(testingHandle *testing.T) {
	require.Equal(testingHandle, "999", formatTokenCount(999))
	require.Equal(testingHandle, "1.0k", formatTokenCount(1000))
	require.Equal(testingHandle, "24.5k", formatTokenCount(24_500))
	require.Equal(testingHandle, "1.2M", formatTokenCount(1_200_000))
}

// TestAssembleContentCropsOversizedOutput checks that content beyond the
// display cap is cropped behind a banner.
func TestAssembleContentCropsOversizedOutput(testingHandle *testing.T) {
	hugeNode := &types.FileSystemNode{
		Name:         "huge.txt",
		Type:         types.NodeTypeFile,
		RelativePath: "huge.txt",
		Content:      strings.Repeat("a", maxDisplaySize+100),
	}
	assembled, cropped := assembleContent([]*types.FileSystemNode{hugeNode}, false)
	require.True(testingHandle, cropped)
	require.LessOrEqual(testingHandle, len(assembled), maxDisplaySize)
	require.True(testingHandle, strings.HasPrefix(assembled, "\n(Files content cropped to 300k characters."))
}

// TestEmptyDigestShape checks the digest produced for an empty directory.
func TestEmptyDigestShape(testingHandle *testing.T) {
	emptyDigest := EmptyDigest(&types.IngestionQuery{LocalPath: "/tmp/empty", Subpath: types.DefaultSubpath})
	require.Contains(testingHandle, emptyDigest.Summary, "Files analyzed: 0")
	require.Contains(testingHandle, emptyDigest.Summary, "Estimated tokens: 0")
	require.Equal(testingHandle, "Directory structure:\n(empty or excluded)", emptyDigest.Tree)
	require.Empty(testingHandle, emptyDigest.Content)
}
