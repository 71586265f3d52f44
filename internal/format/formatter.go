// Package format converts a populated file system tree into the digest views:
// summary, flattened tree records, rendered tree text, and concatenated file
// content with a token estimate.
package format

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codeingest/codeingest/internal/content"
	"github.com/codeingest/codeingest/internal/tokenizer"
	"github.com/codeingest/codeingest/internal/types"
)

const (
	// maxDisplaySize caps the concatenated content embedded in a digest.
	maxDisplaySize = 300_000
	// defaultGatherConcurrency bounds parallel content reads.
	defaultGatherConcurrency = 8

	directoryStructureHeader = "Directory structure:\n"
	singleFileTreeFormat     = "File: %s\n"
	emptyTreeBody            = "(empty or excluded)"
)

// separatorLine delimits per-file sections inside the concatenated content.
var separatorLine = strings.Repeat("=", 48)

// Digest is the complete output of one ingestion. Root is nil for an empty
// ingestion.
type Digest struct {
	Summary       string
	Tree          string
	Records       []types.TreeRecord
	Content       string
	TokenEstimate string
	FileCount     int
	Root          *types.FileSystemNode
}

// Formatter renders digests. TokenCounter may be nil, in which case the
// estimate line is omitted from summaries.
type Formatter struct {
	Reader       *content.Reader
	TokenCounter tokenizer.Counter
	Concurrency  int

	logger *zap.SugaredLogger
}

// NewFormatter wires a formatter with its content reader and token counter.
func NewFormatter(reader *content.Reader, tokenCounter tokenizer.Counter, logger *zap.SugaredLogger) *Formatter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Formatter{
		Reader:       reader,
		TokenCounter: tokenCounter,
		Concurrency:  defaultGatherConcurrency,
		logger:       logger,
	}
}

// FormatNode produces the digest for a walked tree. Content is gathered with
// bounded concurrency but assembled strictly in the walker's established
// order, so output is deterministic for a given tree.
func (formatter *Formatter) FormatNode(rootNode *types.FileSystemNode, query *types.IngestionQuery) (Digest, error) {
	singleFile := rootNode.Type == types.NodeTypeFile && rootNode.AbsolutePath == query.LocalPath

	leafNodes := collectLeafNodes(rootNode)
	formatter.gatherContent(leafNodes)

	records := flattenRecords(rootNode)

	treeText := fmt.Sprintf(singleFileTreeFormat, rootNode.Name)
	if !singleFile {
		treeText = directoryStructureHeader + renderTree(rootNode)
	}

	digestContent, _ := assembleContent(leafNodes, singleFile)

	tokenEstimate := formatter.estimateTokens(records, digestContent)

	summary := summaryPrefix(query, singleFile)
	if singleFile {
		summary += singleFileLineCount(rootNode)
	} else {
		summary += fmt.Sprintf("Files analyzed: %d\n", rootNode.FileCount)
	}
	if tokenEstimate != "" {
		summary += "\nEstimated tokens: " + tokenEstimate
	}

	return Digest{
		Summary:       summary,
		Tree:          treeText,
		Records:       records,
		Content:       digestContent,
		TokenEstimate: tokenEstimate,
		FileCount:     rootNode.FileCount,
		Root:          rootNode,
	}, nil
}

// EmptyDigest is the digest produced for a directory that is empty or fully
// excluded by filtering.
func EmptyDigest(query *types.IngestionQuery) Digest {
	summary := summaryPrefix(query, false)
	summary += "Files analyzed: 0\n\nEstimated tokens: 0"
	return Digest{
		Summary:       summary,
		Tree:          directoryStructureHeader + emptyTreeBody,
		TokenEstimate: "0",
	}
}

// gatherContent reads the content of every leaf node, at most Concurrency
// files at a time, storing the result directly on the node. ReadContent never
// fails, so the group carries no errors.
func (formatter *Formatter) gatherContent(leafNodes []*types.FileSystemNode) {
	concurrency := formatter.Concurrency
	if concurrency <= 0 {
		concurrency = defaultGatherConcurrency
	}
	var gatherGroup errgroup.Group
	gatherGroup.SetLimit(concurrency)
	for _, leafNode := range leafNodes {
		currentNode := leafNode
		gatherGroup.Go(func() error {
			currentNode.Content = formatter.Reader.ReadContent(currentNode)
			return nil
		})
	}
	_ = gatherGroup.Wait()
}

// collectLeafNodes returns the FILE and SYMLINK nodes in depth-first pre-order.
func collectLeafNodes(node *types.FileSystemNode) []*types.FileSystemNode {
	if node.Type != types.NodeTypeDirectory {
		return []*types.FileSystemNode{node}
	}
	var leaves []*types.FileSystemNode
	for _, child := range node.Children {
		leaves = append(leaves, collectLeafNodes(child)...)
	}
	return leaves
}

// assembleContent concatenates every leaf's content in walker order, each
// section wrapped in a separator header naming the relative path. Content is
// cropped once it exceeds maxDisplaySize, with a banner explaining the crop.
func assembleContent(leafNodes []*types.FileSystemNode, singleFile bool) (string, bool) {
	var builder strings.Builder
	cropped := false
	for _, leafNode := range leafNodes {
		builder.WriteString(separatorLine)
		builder.WriteString("\nFILE: ")
		builder.WriteString(leafNode.RelativePath)
		builder.WriteString("\n")
		builder.WriteString(separatorLine)
		builder.WriteString("\n")
		builder.WriteString(leafNode.Content)
		builder.WriteString("\n\n")
		if builder.Len() > maxDisplaySize {
			cropped = true
			break
		}
	}

	assembled := builder.String()
	if !cropped {
		return assembled, false
	}

	itemLabel := "Files"
	if singleFile {
		itemLabel = "File"
	}
	cropMessage := fmt.Sprintf(
		"\n(%s content cropped to %dk characters. Download full ingest to see more)\n",
		itemLabel, maxDisplaySize/1000,
	)
	keep := maxDisplaySize - len(cropMessage)
	if keep > len(assembled) {
		keep = len(assembled)
	}
	return cropMessage + assembled[:keep], true
}

// singleFileLineCount formats the Lines summary entry of a single-file
// ingestion. Placeholder content counts as no lines.
func singleFileLineCount(fileNode *types.FileSystemNode) string {
	fileContent := fileNode.Content
	if fileContent == "" || fileContent == content.NonTextPlaceholder || content.IsErrorPlaceholder(fileContent) {
		return "Lines: N/A\n"
	}
	lineCount := strings.Count(fileContent, "\n")
	if !strings.HasSuffix(fileContent, "\n") {
		lineCount++
	}
	if lineCount == 0 {
		return "Lines: N/A\n"
	}
	return fmt.Sprintf("Lines: %d\n", lineCount)
}

// estimateTokens runs the counter over the flattened record paths plus the
// assembled content and formats the total. Counter failures only suppress the
// estimate; they never fail the digest.
func (formatter *Formatter) estimateTokens(records []types.TreeRecord, digestContent string) string {
	if formatter.TokenCounter == nil {
		return ""
	}
	var pathBuilder strings.Builder
	for _, record := range records {
		pathBuilder.WriteString(record.RelativePath)
		pathBuilder.WriteString("\n")
	}
	totalTokens, countError := formatter.TokenCounter.CountString(pathBuilder.String() + digestContent)
	if countError != nil {
		formatter.logger.Warnf("could not estimate token count: %v", countError)
		return ""
	}
	return formatTokenCount(totalTokens)
}

// formatTokenCount renders a token total as a bare integer below one thousand,
// a tenth-precision "k" value below one million, and "M" above.
func formatTokenCount(totalTokens int) string {
	switch {
	case totalTokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(totalTokens)/1_000_000)
	case totalTokens >= 1_000:
		return fmt.Sprintf("%.1fk", float64(totalTokens)/1_000)
	default:
		return fmt.Sprintf("%d", totalTokens)
	}
}
