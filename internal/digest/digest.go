// Package digest renders a formatted ingestion into its output artifacts: the
// plain-text digest file and the structured JSON document.
package digest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeingest/codeingest/internal/format"
	"github.com/codeingest/codeingest/internal/types"
)

// OutputFormat selects the artifact rendered for a digest.
type OutputFormat string

const (
	FormatText OutputFormat = "txt"
	FormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a format flag value.
func ParseOutputFormat(value string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(value)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, expected %q or %q", value, FormatText, FormatJSON)
	}
}

// Document is the JSON artifact of an ingestion.
type Document struct {
	Summary  string                `json:"summary"`
	Metadata Metadata              `json:"metadata"`
	Tree     *types.FileSystemNode `json:"tree"`
	Query    Query                 `json:"query"`
	Content  string                `json:"content"`
}

// Query is the serialized form of the ingestion request embedded in the JSON
// artifact, so a digest records the parameters that produced it.
type Query struct {
	Slug             string   `json:"slug"`
	URL              string   `json:"url,omitempty"`
	Branch           string   `json:"branch,omitempty"`
	Commit           string   `json:"commit,omitempty"`
	Subpath          string   `json:"subpath,omitempty"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes"`
	IncludePatterns  []string `json:"includePatterns,omitempty"`
	ExcludePatterns  []string `json:"excludePatterns,omitempty"`
}

// Metadata carries the source identification and aggregate figures of the
// ingestion alongside the rendered tree text.
type Metadata struct {
	Repository    string `json:"repository,omitempty"`
	URL           string `json:"url,omitempty"`
	Branch        string `json:"branch,omitempty"`
	Commit        string `json:"commit,omitempty"`
	Subpath       string `json:"subpath,omitempty"`
	LocalPath     string `json:"localPath,omitempty"`
	ZipPath       string `json:"zipPath,omitempty"`
	FileCount     int    `json:"fileCount"`
	TokenEstimate string `json:"tokenEstimate,omitempty"`
	TreeText      string `json:"treeText"`
}

// RenderText produces the plain-text artifact: the rendered tree followed by
// the concatenated content.
func RenderText(ingestionDigest format.Digest) string {
	return ingestionDigest.Tree + "\n" + ingestionDigest.Content
}

// BuildDocument assembles the JSON document for a digest.
func BuildDocument(ingestionDigest format.Digest, query *types.IngestionQuery) Document {
	metadata := Metadata{
		Commit:        query.Commit,
		FileCount:     ingestionDigest.FileCount,
		TokenEstimate: ingestionDigest.TokenEstimate,
		TreeText:      ingestionDigest.Tree,
	}
	if query.IsRemote() {
		metadata.Repository = query.UserName + "/" + query.RepoName
		metadata.URL = query.URL
		metadata.Branch = query.Branch
	} else {
		metadata.LocalPath = query.LocalPath
		metadata.ZipPath = query.OriginalZipPath
	}
	if query.Subpath != "" && query.Subpath != types.DefaultSubpath {
		metadata.Subpath = query.Subpath
	}

	return Document{
		Summary:  ingestionDigest.Summary,
		Metadata: metadata,
		Tree:     ingestionDigest.Root,
		Query: Query{
			Slug:             query.Slug,
			URL:              query.URL,
			Branch:           query.Branch,
			Commit:           query.Commit,
			Subpath:          metadata.Subpath,
			MaxFileSizeBytes: query.MaxFileSizeBytes,
			IncludePatterns:  query.IncludePatterns,
			ExcludePatterns:  query.ExcludePatterns,
		},
		Content: ingestionDigest.Content,
	}
}

// RenderJSON marshals the JSON artifact with indentation for readability.
func RenderJSON(ingestionDigest format.Digest, query *types.IngestionQuery) ([]byte, error) {
	document := BuildDocument(ingestionDigest, query)
	encoded, marshalError := json.MarshalIndent(document, "", "  ")
	if marshalError != nil {
		return nil, fmt.Errorf("encoding digest document: %w", marshalError)
	}
	return append(encoded, '\n'), nil
}

// DefaultFileName derives the output file name from the query slug, replacing
// path separators so a slug like "user-repo" or a relative directory spelling
// stays a single file name.
func DefaultFileName(query *types.IngestionQuery, outputFormat OutputFormat) string {
	slug := query.Slug
	if slug == "" {
		slug = "digest"
	}
	slug = strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(slug)
	slug = strings.Trim(slug, "-.")
	if slug == "" {
		slug = "digest"
	}
	return slug + "." + string(outputFormat)
}
