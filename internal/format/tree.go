package format

import (
	"strings"

	"github.com/codeingest/codeingest/internal/types"
)

const (
	lastBranchConnector   = "└── "
	middleBranchConnector = "├── "
	continuationIndent    = "│   "
	blankIndent           = "    "
)

// flattenRecords lists every node in depth-first pre-order, decorating
// directory names with a trailing slash and symlinks with their target.
func flattenRecords(rootNode *types.FileSystemNode) []types.TreeRecord {
	var records []types.TreeRecord
	appendRecords(rootNode, &records)
	return records
}

func appendRecords(node *types.FileSystemNode, records *[]types.TreeRecord) {
	record := types.TreeRecord{
		Name:         node.Name,
		Type:         node.Type,
		RelativePath: node.RelativePath,
		Depth:        node.Depth,
	}
	if node.Type == types.NodeTypeDirectory && node.Depth > 0 {
		record.Name += "/"
	}
	if node.Type == types.NodeTypeSymlink {
		record.LinkTarget = node.LinkTarget
	}
	*records = append(*records, record)
	for _, child := range node.Children {
		appendRecords(child, records)
	}
}

// renderTree draws the branch-connector view of the tree. The root is drawn
// as the sole entry of an implicit parent, so it carries the last-branch
// connector like every other tail child.
func renderTree(rootNode *types.FileSystemNode) string {
	var builder strings.Builder
	renderSubtree(rootNode, "", true, &builder)
	return builder.String()
}

func renderSubtree(node *types.FileSystemNode, indentPrefix string, isLast bool, builder *strings.Builder) {
	connector := middleBranchConnector
	if isLast {
		connector = lastBranchConnector
	}

	displayName := node.Name
	if node.Type == types.NodeTypeDirectory && node.Depth > 0 {
		displayName += "/"
	}
	if node.Type == types.NodeTypeSymlink {
		displayName += " -> " + node.LinkTarget
	}

	builder.WriteString(indentPrefix)
	builder.WriteString(connector)
	builder.WriteString(displayName)
	builder.WriteString("\n")

	childIndent := indentPrefix + continuationIndent
	if isLast {
		childIndent = indentPrefix + blankIndent
	}
	// Entries directly under the root start at column zero; only deeper
	// levels accumulate indentation.
	if node.Depth == 0 {
		childIndent = ""
	}
	for childIndex, child := range node.Children {
		renderSubtree(child, childIndent, childIndex == len(node.Children)-1, builder)
	}
}
