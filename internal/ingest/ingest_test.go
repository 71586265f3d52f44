package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/codeingest/codeingest/internal/content"
	"github.com/codeingest/codeingest/internal/format"
	"github.com/codeingest/codeingest/internal/types"
)

// newTestIngester builds an ingester with a silent logger and no tokenizer.
func newTestIngester(testingHandle *testing.T, limits Limits) *Ingester {
	testingHandle.Helper()
	silentLogger := zap.NewNop().Sugar()
	formatter := format.NewFormatter(content.NewReader(silentLogger), nil, silentLogger)
	return NewIngester(limits, true, formatter, silentLogger)
}

// newDirectoryQuery builds a local directory query with no filters.
func newDirectoryQuery(rootDirectory string) *types.IngestionQuery {
	return &types.IngestionQuery{
		LocalPath:        rootDirectory,
		Slug:             filepath.Base(rootDirectory),
		Subpath:          types.DefaultSubpath,
		MaxFileSizeBytes: DefaultMaxFileSizeBytes,
	}
}

// writeTestFile creates a file with the specified content, failing the test on error.
func writeTestFile(testingHandle *testing.T, filePath string, fileContent string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(fileContent), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// makeTestDirectory creates a directory, failing the test on error.
func makeTestDirectory(testingHandle *testing.T, directoryPath string) {
	testingHandle.Helper()
	if makeDirectoryError := os.MkdirAll(directoryPath, 0o755); makeDirectoryError != nil {
		testingHandle.Fatalf("failed to create directory %s: %v", directoryPath, makeDirectoryError)
	}
}

// TestIngestDirectoryBuildsTreeWithAggregates verifies file and directory
// counts roll up to the root and content sections carry every file.
func TestIngestDirectoryBuildsTreeWithAggregates(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "a.txt"), "alpha\n")
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "b"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "b", "c.py"), "print('c')\n")

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	if ingestionDigest.FileCount != 2 {
		testingHandle.Fatalf("unexpected file count: got %d want 2", ingestionDigest.FileCount)
	}
	if ingestionDigest.Root.DirCount != 1 {
		testingHandle.Fatalf("unexpected directory count: got %d want 1", ingestionDigest.Root.DirCount)
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: a.txt") {
		testingHandle.Fatal("content should contain a section for a.txt")
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: b/c.py") {
		testingHandle.Fatal("content should contain a section for b/c.py")
	}
	if !strings.Contains(ingestionDigest.Summary, "Files analyzed: 2") {
		testingHandle.Fatalf("summary should report two files, got: %s", ingestionDigest.Summary)
	}
}

// TestIngestOrdersFilesBeforeDirectories verifies the child ordering: files
// first, then hidden files, then directories.
func TestIngestOrdersFilesBeforeDirectories(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "aaa"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "aaa", "inner.txt"), "inner\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "zzz.txt"), "zzz\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ".hidden"), "dot\n")

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	childNames := make([]string, 0, len(ingestionDigest.Root.Children))
	for _, childNode := range ingestionDigest.Root.Children {
		childNames = append(childNames, childNode.Name)
	}
	expectedOrder := []string{"zzz.txt", ".hidden", "aaa"}
	if len(childNames) != len(expectedOrder) {
		testingHandle.Fatalf("unexpected children: %v", childNames)
	}
	for childIndex, expectedName := range expectedOrder {
		if childNames[childIndex] != expectedName {
			testingHandle.Fatalf("unexpected child order: got %v want %v", childNames, expectedOrder)
		}
	}
}

// TestIngestEmptyDirectoryProducesEmptyDigest verifies the empty-tree digest.
func TestIngestEmptyDirectoryProducesEmptyDigest(testingHandle *testing.T) {
	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(testingHandle.TempDir()))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}
	if !strings.Contains(ingestionDigest.Summary, "Files analyzed: 0") {
		testingHandle.Fatalf("summary should report zero files, got: %s", ingestionDigest.Summary)
	}
	if !strings.Contains(ingestionDigest.Tree, "(empty or excluded)") {
		testingHandle.Fatalf("tree should mark the empty result, got: %s", ingestionDigest.Tree)
	}
}

// TestIngestPrunesDirectoriesEmptiedByFiltering verifies a directory whose
// every file was excluded never appears in the tree.
func TestIngestPrunesDirectoriesEmptiedByFiltering(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "kept.txt"), "kept\n")
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "logs"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "logs", "run.log"), "log line\n")

	ingestionQuery := newDirectoryQuery(rootDirectory)
	ingestionQuery.ExcludePatterns = []string{"*.log"}

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(ingestionQuery)
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	if ingestionDigest.FileCount != 1 {
		testingHandle.Fatalf("unexpected file count: got %d want 1", ingestionDigest.FileCount)
	}
	if strings.Contains(ingestionDigest.Tree, "logs") {
		testingHandle.Fatalf("emptied directory should be pruned from the tree: %s", ingestionDigest.Tree)
	}
}

// TestIngestIncludeFilterKeepsOnlyMatches verifies an include pattern admits
// matching files only, and that non-matching directories are still recursed
// into so deeper matches survive.
func TestIngestIncludeFilterKeepsOnlyMatches(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "a.py"), "print('a')\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "a.txt"), "alpha\n")
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "nested"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "nested", "deep.py"), "print('deep')\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "nested", "deep.txt"), "text\n")

	ingestionQuery := newDirectoryQuery(rootDirectory)
	ingestionQuery.IncludePatterns = []string{"*.py"}

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(ingestionQuery)
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	if ingestionDigest.FileCount != 2 {
		testingHandle.Fatalf("unexpected file count: got %d want 2", ingestionDigest.FileCount)
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: a.py") {
		testingHandle.Fatal("content should contain a section for a.py")
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: nested/deep.py") {
		testingHandle.Fatal("matches inside a non-matching directory must survive")
	}
	if strings.Contains(ingestionDigest.Content, "a.txt") || strings.Contains(ingestionDigest.Content, "deep.txt") {
		testingHandle.Fatalf("non-matching files should be filtered out: %s", ingestionDigest.Content)
	}
}

// TestIngestExcludeWinsOverInclude verifies a path matching both filters is
// excluded: the exclude check runs before the include check.
func TestIngestExcludeWinsOverInclude(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "kept.py"), "print('kept')\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "dropped.py"), "print('dropped')\n")

	ingestionQuery := newDirectoryQuery(rootDirectory)
	ingestionQuery.IncludePatterns = []string{"*.py"}
	ingestionQuery.ExcludePatterns = []string{"dropped.py"}

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(ingestionQuery)
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	if strings.Contains(ingestionDigest.Content, "dropped.py") {
		testingHandle.Fatal("a path matching both include and exclude must be excluded")
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: kept.py") {
		testingHandle.Fatal("included files outside the exclude set must survive")
	}
}

// TestIngestFileLimitIsExact verifies the file-count latch admits exactly the
// configured number of files and no more.
func TestIngestFileLimitIsExact(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	for _, fileName := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		writeTestFile(testingHandle, filepath.Join(rootDirectory, fileName), "body\n")
	}

	limits := DefaultLimits()
	limits.MaxFiles = 2
	ingester := newTestIngester(testingHandle, limits)
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}
	if ingestionDigest.FileCount != 2 {
		testingHandle.Fatalf("unexpected file count under MaxFiles=2: got %d", ingestionDigest.FileCount)
	}
}

// TestIngestTotalSizeLimitLatches verifies the aggregate size latch admits
// only the files that fit under the cap and never charges partial size for a
// rejected file.
func TestIngestTotalSizeLimitLatches(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	fileBody := strings.Repeat("x", 40)
	for _, fileName := range []string{"a.txt", "b.txt", "c.txt"} {
		writeTestFile(testingHandle, filepath.Join(rootDirectory, fileName), fileBody)
	}

	limits := DefaultLimits()
	limits.MaxTotalSizeBytes = 100
	ingester := newTestIngester(testingHandle, limits)
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	if ingestionDigest.FileCount != 2 {
		testingHandle.Fatalf("unexpected file count under a 100-byte cap: got %d want 2", ingestionDigest.FileCount)
	}
	if ingestionDigest.Root.SizeBytes != 80 {
		testingHandle.Fatalf("rejected file must not contribute partial size: got %d want 80", ingestionDigest.Root.SizeBytes)
	}
}

// TestIngestDepthLimitStopsDescent verifies the depth latch cuts entries below
// the cap while files at allowed depths survive.
func TestIngestDepthLimitStopsDescent(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "shallow.txt"), "near the root\n")
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "sub"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "sub", "deep.txt"), "too far down\n")

	limits := DefaultLimits()
	limits.MaxDirectoryDepth = 1
	ingester := newTestIngester(testingHandle, limits)
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}

	if ingestionDigest.FileCount != 1 {
		testingHandle.Fatalf("unexpected file count with MaxDirectoryDepth=1: got %d want 1", ingestionDigest.FileCount)
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: shallow.txt") {
		testingHandle.Fatal("files at the allowed depth must survive")
	}
	if strings.Contains(ingestionDigest.Content, "deep.txt") {
		testingHandle.Fatal("files below the depth cap must be cut")
	}
}

// TestIngestSkipsOversizedFiles verifies the per-file size cap rejects a file
// without charging its size against the aggregate.
func TestIngestSkipsOversizedFiles(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "small.txt"), "ok\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "large.txt"), strings.Repeat("x", 2048))

	ingestionQuery := newDirectoryQuery(rootDirectory)
	ingestionQuery.MaxFileSizeBytes = 100

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(ingestionQuery)
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}
	if ingestionDigest.FileCount != 1 {
		testingHandle.Fatalf("unexpected file count: got %d want 1", ingestionDigest.FileCount)
	}
	if ingestionDigest.Root.SizeBytes >= 2048 {
		testingHandle.Fatalf("oversized file must not contribute to aggregate size, got %d", ingestionDigest.Root.SizeBytes)
	}
}

// TestIngestIsIdempotent verifies two traversals of the same tree produce the
// same digest.
func TestIngestIsIdempotent(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "one.txt"), "one\n")
	makeTestDirectory(testingHandle, filepath.Join(rootDirectory, "sub"))
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "sub", "two.txt"), "two\n")

	ingester := newTestIngester(testingHandle, DefaultLimits())
	firstDigest, firstError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if firstError != nil {
		testingHandle.Fatalf("first IngestQuery failed: %v", firstError)
	}
	secondDigest, secondError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if secondError != nil {
		testingHandle.Fatalf("second IngestQuery failed: %v", secondError)
	}
	if firstDigest.Tree != secondDigest.Tree || firstDigest.Content != secondDigest.Content {
		testingHandle.Fatal("repeated ingestion of an unchanged tree must produce identical digests")
	}
}

// TestGitingestFileAddsExcludePatterns verifies a root .gitingest file unions
// its ignore_patterns into the query before the walk.
func TestGitingestFileAddsExcludePatterns(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, GitingestFileName), "[config]\nignore_patterns = [\"*.secret\"]\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "keep.txt"), "keep\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "token.secret"), "hidden\n")

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(newDirectoryQuery(rootDirectory))
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}
	if strings.Contains(ingestionDigest.Content, "token.secret") {
		testingHandle.Fatal("pattern from .gitingest should exclude token.secret")
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: keep.txt") {
		testingHandle.Fatal("unrelated files must survive the .gitingest pre-pass")
	}
}

// TestIngestRespectsRootGitignore verifies the opt-in root .gitignore matcher
// filters entries during the walk.
func TestIngestRespectsRootGitignore(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ".gitignore"), "ignored.txt\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "ignored.txt"), "nope\n")
	writeTestFile(testingHandle, filepath.Join(rootDirectory, "kept.txt"), "yes\n")

	ingestionQuery := newDirectoryQuery(rootDirectory)
	ingestionQuery.ExcludePatterns = []string{".gitignore"}

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(ingestionQuery)
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}
	if strings.Contains(ingestionDigest.Content, "FILE: ignored.txt") {
		testingHandle.Fatal("root .gitignore entries should be filtered")
	}
	if !strings.Contains(ingestionDigest.Content, "FILE: kept.txt") {
		testingHandle.Fatal("unlisted files must survive")
	}
}

// TestIngestSingleFileReportsLineCount verifies the single-file digest path.
func TestIngestSingleFileReportsLineCount(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	filePath := filepath.Join(rootDirectory, "main.go")
	writeTestFile(testingHandle, filePath, "package main\n\nfunc main() {}\n")

	ingestionQuery := newDirectoryQuery(rootDirectory)
	ingestionQuery.LocalPath = filePath
	ingestionQuery.Slug = "main"

	ingester := newTestIngester(testingHandle, DefaultLimits())
	ingestionDigest, ingestError := ingester.IngestQuery(ingestionQuery)
	if ingestError != nil {
		testingHandle.Fatalf("IngestQuery failed: %v", ingestError)
	}
	if !strings.Contains(ingestionDigest.Summary, "Lines: 3") {
		testingHandle.Fatalf("summary should report three lines, got: %s", ingestionDigest.Summary)
	}
	if !strings.Contains(ingestionDigest.Summary, "File: "+filePath) {
		testingHandle.Fatalf("summary should name the file, got: %s", ingestionDigest.Summary)
	}
}

// TestIngestMissingPathFails verifies a nonexistent target aborts with
// ErrPathNotFound.
func TestIngestMissingPathFails(testingHandle *testing.T) {
	ingestionQuery := newDirectoryQuery(filepath.Join(testingHandle.TempDir(), "absent"))
	ingester := newTestIngester(testingHandle, DefaultLimits())
	if _, ingestError := ingester.IngestQuery(ingestionQuery); ingestError == nil {
		testingHandle.Fatal("expected an error for a missing path")
	}
}
