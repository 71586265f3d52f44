// Package content turns file system nodes into the text embedded in a digest:
// binary detection, multi-encoding decoding, notebook extraction, and symlink
// descriptions.
package content

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/codeingest/codeingest/internal/types"
)

const (
	// sniffLength bounds the raw prefix inspected for binary markers.
	sniffLength = 1024
	// readChunkSize is the unit of streaming reads while decoding a file.
	readChunkSize = 8192

	// NonTextPlaceholder replaces the content of files classified as binary.
	NonTextPlaceholder = "[Non-text file]"
	// BrokenSymlinkMarker replaces an unresolvable link target.
	BrokenSymlinkMarker = "[Broken Symlink]"

	notAFilePlaceholderFormat      = "Error: Path is not a file (%s)"
	readErrorPlaceholderFormat     = "Error reading file: %v"
	notebookErrorPlaceholderFormat = "Error processing notebook: %v"
	undecodablePlaceholder         = "Error: Unable to decode file with available encodings"

	notebookExtension = ".ipynb"
)

// errorPlaceholderPrefixes identify the placeholder strings ReadContent emits
// in place of file content. A real file may legitimately start with the word
// "Error", so matching is restricted to these exact prefixes.
var errorPlaceholderPrefixes = []string{
	"Error: ",
	"Error reading file: ",
	"Error processing notebook: ",
}

// IsErrorPlaceholder reports whether text is one of the error placeholder
// strings produced by ReadContent rather than actual file content.
func IsErrorPlaceholder(text string) bool {
	for _, placeholderPrefix := range errorPlaceholderPrefixes {
		if strings.HasPrefix(text, placeholderPrefix) {
			return true
		}
	}
	return false
}

// binaryMarkerSequences flag a file as binary when found in its sniff prefix:
// a NUL byte, a bare 0xFF, and the UTF-16 byte order marks. The list is
// deliberately identical to what existing digests were produced with.
var binaryMarkerSequences = [][]byte{
	{0x00},
	{0xFF},
	{0xFE, 0xFF},
	{0xFF, 0xFE},
}

// Reader reads node content for the formatter. A nil logger is replaced with a
// no-op one.
type Reader struct {
	logger *zap.SugaredLogger
}

// NewReader constructs a content reader.
func NewReader(logger *zap.SugaredLogger) *Reader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reader{logger: logger}
}

// ReadContent produces the textual content to embed for a node, or an explicit
// placeholder. It never fails: decode problems, races, and I/O errors all
// degrade into placeholder strings so one bad file cannot abort an ingestion.
func (reader *Reader) ReadContent(node *types.FileSystemNode) string {
	if node.Type == types.NodeTypeSymlink {
		linkTarget := node.LinkTarget
		if linkTarget == "" {
			linkTarget = ResolveLinkTarget(node.AbsolutePath)
		}
		return fmt.Sprintf("Symlink: %s -> %s", node.RelativePath, linkTarget)
	}

	pathInfo, statError := os.Stat(node.AbsolutePath)
	if statError != nil || !pathInfo.Mode().IsRegular() {
		reader.logger.Warnf("path is not a file: %s", node.AbsolutePath)
		return fmt.Sprintf(notAFilePlaceholderFormat, node.RelativePath)
	}

	sniffPrefix, sniffError := readSniffPrefix(node.AbsolutePath)
	if sniffError != nil {
		reader.logger.Warnf("error reading file %s: %v", node.AbsolutePath, sniffError)
		return fmt.Sprintf(readErrorPlaceholderFormat, sniffError)
	}
	if len(sniffPrefix) == 0 {
		return ""
	}
	if !looksTextual(sniffPrefix) {
		return NonTextPlaceholder
	}

	if strings.EqualFold(filepath.Ext(node.Name), notebookExtension) {
		notebookText, notebookError := convertNotebook(node.AbsolutePath)
		if notebookError != nil {
			reader.logger.Warnf("error processing notebook %s: %v", node.AbsolutePath, notebookError)
			return fmt.Sprintf(notebookErrorPlaceholderFormat, notebookError)
		}
		return notebookText
	}

	return reader.decodeFile(node)
}

// ResolveLinkTarget returns the symlink target at path, or BrokenSymlinkMarker
// when the link cannot be read.
func ResolveLinkTarget(path string) string {
	linkTarget, readLinkError := os.Readlink(path)
	if readLinkError != nil {
		return BrokenSymlinkMarker
	}
	return linkTarget
}

// readSniffPrefix reads the raw prefix used for binary classification.
func readSniffPrefix(path string) ([]byte, error) {
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return nil, openError
	}
	defer fileHandle.Close()

	buffer := make([]byte, sniffLength)
	bytesRead, readError := io.ReadFull(fileHandle, buffer)
	if readError != nil && readError != io.EOF && readError != io.ErrUnexpectedEOF {
		return nil, readError
	}
	return buffer[:bytesRead], nil
}

// looksTextual classifies a sniff prefix. Marker bytes force a binary verdict;
// otherwise the prefix must decode under at least one candidate encoding.
func looksTextual(sniffPrefix []byte) bool {
	for _, marker := range binaryMarkerSequences {
		if bytes.Contains(sniffPrefix, marker) {
			return false
		}
	}
	for _, candidate := range candidateEncodings() {
		if candidate.decodesPrefix(sniffPrefix) {
			return true
		}
	}
	return false
}

// decodeFile streams the file in fixed-size chunks, trying each candidate
// encoding in priority order. The first encoding that decodes the entire
// stream wins; a decode error abandons that encoding without yielding partial
// chunks, and an I/O error is terminal for the file.
func (reader *Reader) decodeFile(node *types.FileSystemNode) string {
	for _, candidate := range candidateEncodings() {
		decodedText, decodeError := candidate.decodeStream(node.AbsolutePath)
		if decodeError == nil {
			return decodedText
		}
		if isUndecodable(decodeError) {
			reader.logger.Warnf("decode error while reading %s with %s: %v", node.AbsolutePath, candidate.name, decodeError)
			continue
		}
		reader.logger.Warnf("error reading file %s with %s: %v", node.AbsolutePath, candidate.name, decodeError)
		return fmt.Sprintf(readErrorPlaceholderFormat, decodeError)
	}
	return undecodablePlaceholder
}
