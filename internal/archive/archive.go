// Package archive extracts uploaded zip files into a temporary ingestion
// directory.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractedFileMode is applied to every extracted regular file.
const extractedFileMode = 0o644

// extractedDirectoryMode is applied to every created directory.
const extractedDirectoryMode = 0o755

// ErrBadZipFile reports an archive that is not a readable zip file.
var ErrBadZipFile = errors.New("bad zip file")

// Extract unpacks the zip archive at archivePath into destinationDirectory,
// creating it if needed. Member paths that would escape the destination are
// rejected rather than silently skipped.
func Extract(archivePath string, destinationDirectory string) error {
	zipReader, openError := zip.OpenReader(archivePath)
	if openError != nil {
		if errors.Is(openError, zip.ErrFormat) {
			return fmt.Errorf("%w: %s", ErrBadZipFile, archivePath)
		}
		return fmt.Errorf("opening zip archive %s: %w", archivePath, openError)
	}
	defer zipReader.Close()

	if makeDirectoryError := os.MkdirAll(destinationDirectory, extractedDirectoryMode); makeDirectoryError != nil {
		return fmt.Errorf("creating extraction directory %s: %w", destinationDirectory, makeDirectoryError)
	}

	for _, archiveMember := range zipReader.File {
		if extractError := extractMember(archiveMember, destinationDirectory); extractError != nil {
			return extractError
		}
	}
	return nil
}

func extractMember(archiveMember *zip.File, destinationDirectory string) error {
	memberPath, resolveError := resolveMemberPath(archiveMember.Name, destinationDirectory)
	if resolveError != nil {
		return resolveError
	}

	if archiveMember.FileInfo().IsDir() {
		if makeDirectoryError := os.MkdirAll(memberPath, extractedDirectoryMode); makeDirectoryError != nil {
			return fmt.Errorf("creating directory %s: %w", memberPath, makeDirectoryError)
		}
		return nil
	}

	if makeDirectoryError := os.MkdirAll(filepath.Dir(memberPath), extractedDirectoryMode); makeDirectoryError != nil {
		return fmt.Errorf("creating directory for %s: %w", memberPath, makeDirectoryError)
	}

	memberReader, openMemberError := archiveMember.Open()
	if openMemberError != nil {
		return fmt.Errorf("opening zip member %s: %w", archiveMember.Name, openMemberError)
	}
	defer memberReader.Close()

	destinationFile, createError := os.OpenFile(memberPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, extractedFileMode)
	if createError != nil {
		return fmt.Errorf("creating extracted file %s: %w", memberPath, createError)
	}
	defer destinationFile.Close()

	if _, copyError := io.Copy(destinationFile, memberReader); copyError != nil {
		return fmt.Errorf("extracting zip member %s: %w", archiveMember.Name, copyError)
	}
	return nil
}

// resolveMemberPath joins a member name onto the destination and rejects any
// result that escapes it, which defeats zip-slip style archives.
func resolveMemberPath(memberName string, destinationDirectory string) (string, error) {
	memberPath := filepath.Join(destinationDirectory, filepath.FromSlash(memberName))
	cleanedDestination := filepath.Clean(destinationDirectory)
	if memberPath != cleanedDestination && !strings.HasPrefix(memberPath, cleanedDestination+string(os.PathSeparator)) {
		return "", fmt.Errorf("zip member %q escapes the extraction directory", memberName)
	}
	return memberPath, nil
}
