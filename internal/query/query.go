// Package query turns a source argument (remote repository URL, host-less
// slug, local directory, single file, or zip archive) into the IngestionQuery
// every downstream collaborator consumes.
package query

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/codeingest/codeingest/internal/archive"
	"github.com/codeingest/codeingest/internal/git"
	"github.com/codeingest/codeingest/internal/patterns"
	"github.com/codeingest/codeingest/internal/types"
	"github.com/codeingest/codeingest/internal/utils"
)

const (
	zipExtension = ".zip"

	// tempDirectoryName is the subdirectory of the system temp directory that
	// holds cloned repositories and extracted archives.
	tempDirectoryName = "codeingest"

	refTypeTree = "tree"
	refTypeBlob = "blob"
)

// KnownGitHosts lists the forges accepted for remote sources and probed, in
// order, when a host-less "user/repo" slug is given.
var KnownGitHosts = []string{"github.com", "gitlab.com", "bitbucket.org", "gitea.com", "codeberg.org"}

// commitHashExpression matches a full 40-character git object hash.
var commitHashExpression = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Options carries the caller-supplied knobs of query construction. Include
// and exclude entries are raw pattern strings; splitting and validation
// happen here.
type Options struct {
	MaxFileSizeBytes int64
	IncludePatterns  []string
	ExcludePatterns  []string
	FromWeb          bool
}

// ParseQuery parses source into an IngestionQuery. Remote sources may require
// network round trips (host guessing, branch resolution); local zip sources
// are extracted to a temporary directory recorded on the query for later
// cleanup.
func ParseQuery(executionContext context.Context, source string, options Options) (*types.IngestionQuery, error) {
	remoteSource := options.FromWeb || hasRemoteScheme(source) || mentionsKnownHost(source)

	var parsedQuery *types.IngestionQuery
	var parseError error
	if remoteSource {
		parsedQuery, parseError = parseRemoteRepo(executionContext, source)
	} else {
		parsedQuery, parseError = parseLocalPath(source)
	}
	if parseError != nil {
		return nil, parseError
	}

	excludePatterns := append([]string(nil), DefaultIgnorePatterns...)
	parsedExcludes, excludeError := patterns.ParsePatterns(options.ExcludePatterns)
	if excludeError != nil {
		return nil, excludeError
	}
	excludePatterns = utils.DeduplicatePatterns(append(excludePatterns, parsedExcludes...))

	var includePatterns []string
	if len(options.IncludePatterns) > 0 {
		parsedIncludes, includeError := patterns.ParsePatterns(options.IncludePatterns)
		if includeError != nil {
			return nil, includeError
		}
		includePatterns = parsedIncludes
		// Including a pattern also rescues it from the default ignore set.
		excludePatterns = subtractPatterns(excludePatterns, includePatterns)
	}

	parsedQuery.MaxFileSizeBytes = options.MaxFileSizeBytes
	parsedQuery.ExcludePatterns = excludePatterns
	parsedQuery.IncludePatterns = includePatterns
	return parsedQuery, nil
}

// parseRemoteRepo resolves a URL, a host-qualified path, or a bare
// "user/repo" slug into a remote query. Extra path segments select a ref
// (commit, branch) and a subpath within the repository.
func parseRemoteRepo(executionContext context.Context, source string) (*types.IngestionQuery, error) {
	if unescaped, unescapeError := url.PathUnescape(source); unescapeError == nil {
		source = unescaped
	}

	parsedURL, urlError := url.Parse(source)
	if urlError != nil {
		return nil, fmt.Errorf("invalid source URL %q: %w", source, urlError)
	}

	if parsedURL.Scheme != "" {
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return nil, fmt.Errorf("unsupported URL scheme %q, only http and https are accepted", parsedURL.Scheme)
		}
		if !isKnownHost(strings.ToLower(parsedURL.Host)) {
			return nil, fmt.Errorf("unknown git host %q", parsedURL.Host)
		}
	} else {
		firstSegment := strings.ToLower(strings.SplitN(source, "/", 2)[0])
		if strings.Contains(firstSegment, ".") {
			if !isKnownHost(firstSegment) {
				return nil, fmt.Errorf("unknown git host %q", firstSegment)
			}
		} else {
			userName, repoName, slugError := userAndRepoFromPath(source)
			if slugError != nil {
				return nil, slugError
			}
			host, guessError := guessHostForSlug(executionContext, userName, repoName)
			if guessError != nil {
				return nil, guessError
			}
			source = host + "/" + source
		}
		var reparseError error
		parsedURL, reparseError = url.Parse("https://" + source)
		if reparseError != nil {
			return nil, fmt.Errorf("invalid source %q: %w", source, reparseError)
		}
	}

	host := strings.ToLower(parsedURL.Host)
	userName, repoName, pathError := userAndRepoFromPath(parsedURL.Path)
	if pathError != nil {
		return nil, pathError
	}

	queryID := uuid.NewString()
	slug := userName + "-" + repoName
	parsedQuery := &types.IngestionQuery{
		UserName:  userName,
		RepoName:  repoName,
		URL:       fmt.Sprintf("https://%s/%s/%s", host, userName, repoName),
		LocalPath: filepath.Join(tempBasePath(), queryID, slug),
		Slug:      slug,
		ID:        queryID,
		Subpath:   types.DefaultSubpath,
	}

	remainingParts := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
	if len(remainingParts) <= 2 {
		return parsedQuery, nil
	}
	remainingParts = remainingParts[2:]

	referenceType := remainingParts[0]
	remainingParts = remainingParts[1:]
	// Issue and pull-request URLs point at the repository itself.
	if referenceType == "issues" || referenceType == "pull" {
		return parsedQuery, nil
	}
	parsedQuery.RefType = referenceType
	if len(remainingParts) == 0 {
		return parsedQuery, nil
	}

	if commitHashExpression.MatchString(remainingParts[0]) {
		parsedQuery.Commit = remainingParts[0]
		remainingParts = remainingParts[1:]
	} else {
		parsedQuery.Branch, remainingParts = resolveBranch(executionContext, parsedQuery.URL, remainingParts)
	}

	if len(remainingParts) > 0 {
		parsedQuery.Subpath = "/" + strings.Join(remainingParts, "/")
	}
	return parsedQuery, nil
}

// resolveBranch matches leading path segments against the remote branch list,
// preferring the longest match so branch names containing slashes resolve
// correctly. When the branch list cannot be fetched the first segment is
// assumed to be the ref.
func resolveBranch(executionContext context.Context, repositoryURL string, pathParts []string) (string, []string) {
	branchNames, fetchError := git.FetchRemoteBranchList(executionContext, repositoryURL)
	if fetchError != nil {
		return pathParts[0], pathParts[1:]
	}

	knownBranches := make(map[string]struct{}, len(branchNames))
	for _, branchName := range branchNames {
		knownBranches[branchName] = struct{}{}
	}

	matchedBranch := ""
	partsConsumed := 0
	for partIndex := range pathParts {
		candidate := strings.Join(pathParts[:partIndex+1], "/")
		if _, known := knownBranches[candidate]; known {
			matchedBranch = candidate
			partsConsumed = partIndex + 1
		}
	}
	if matchedBranch != "" {
		return matchedBranch, pathParts[partsConsumed:]
	}
	return pathParts[0], pathParts[1:]
}

// parseLocalPath builds a query for a directory, a single file, or a zip
// archive. Archives are extracted into a fresh temporary directory whose path
// the query records so the caller can remove it afterwards.
func parseLocalPath(pathArgument string) (*types.IngestionQuery, error) {
	if pathArgument == "" {
		return nil, fmt.Errorf("local path cannot be empty")
	}

	absolutePath, absoluteError := filepath.Abs(pathArgument)
	if absoluteError != nil {
		return nil, fmt.Errorf("resolving local path %q: %w", pathArgument, absoluteError)
	}
	pathInfo, statError := os.Stat(absolutePath)
	if statError != nil {
		return nil, fmt.Errorf("local path not found: %s", pathArgument)
	}

	queryID := uuid.NewString()
	parsedQuery := &types.IngestionQuery{
		ID:      queryID,
		Subpath: types.DefaultSubpath,
	}

	switch {
	case !pathInfo.IsDir() && strings.EqualFold(filepath.Ext(absolutePath), zipExtension):
		archiveStem := strings.TrimSuffix(filepath.Base(absolutePath), filepath.Ext(absolutePath))
		extractPath := filepath.Join(tempBasePath(), uuid.NewString(), archiveStem)
		if extractError := archive.Extract(absolutePath, extractPath); extractError != nil {
			os.RemoveAll(filepath.Dir(extractPath))
			return nil, extractError
		}
		parsedQuery.LocalPath = extractPath
		parsedQuery.Slug = archiveStem
		parsedQuery.OriginalZipPath = absolutePath
		parsedQuery.TempExtractPath = extractPath
	case pathInfo.IsDir():
		parsedQuery.LocalPath = absolutePath
		parsedQuery.Slug = directorySlug(pathArgument, absolutePath)
	case pathInfo.Mode().IsRegular():
		parsedQuery.LocalPath = absolutePath
		parsedQuery.Slug = strings.TrimSuffix(filepath.Base(absolutePath), filepath.Ext(absolutePath))
	default:
		return nil, fmt.Errorf("local path is not a directory, zip file, or regular file: %s", pathArgument)
	}
	return parsedQuery, nil
}

// directorySlug derives a human-friendly slug from the path the user typed,
// falling back to the resolved directory name for "." and trailing-slash
// spellings.
func directorySlug(pathArgument string, absolutePath string) string {
	if pathArgument == "." {
		return filepath.Base(absolutePath)
	}
	trimmedArgument := strings.TrimRight(pathArgument, "/\\")
	if trimmedArgument == "" || filepath.Base(trimmedArgument) == "" {
		return filepath.Base(absolutePath)
	}
	return trimmedArgument
}

// guessHostForSlug probes the known forges for user/repo and returns the first
// one hosting it.
func guessHostForSlug(executionContext context.Context, userName string, repoName string) (string, error) {
	for _, host := range KnownGitHosts {
		candidateURL := fmt.Sprintf("https://%s/%s/%s", host, userName, repoName)
		exists, existsError := git.CheckRepoExists(executionContext, candidateURL)
		if existsError != nil {
			return "", existsError
		}
		if exists {
			return host, nil
		}
	}
	return "", fmt.Errorf("could not find a repository host for '%s/%s'", userName, repoName)
}

// userAndRepoFromPath extracts the owner and repository segments, stripping a
// trailing .git from the repository name.
func userAndRepoFromPath(urlPath string) (string, string, error) {
	pathSegments := strings.Split(strings.Trim(urlPath, "/"), "/")
	if len(pathSegments) < 2 || pathSegments[0] == "" || pathSegments[1] == "" {
		return "", "", fmt.Errorf("invalid repository path %q, expected 'user/repo'", urlPath)
	}
	return pathSegments[0], strings.TrimSuffix(pathSegments[1], ".git"), nil
}

func hasRemoteScheme(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func mentionsKnownHost(source string) bool {
	for _, host := range KnownGitHosts {
		if strings.Contains(source, host) {
			return true
		}
	}
	return false
}

func isKnownHost(host string) bool {
	return utils.ContainsString(KnownGitHosts, host)
}

// subtractPatterns removes every pattern in subtrahend from the base set.
func subtractPatterns(basePatterns []string, subtrahend []string) []string {
	removal := make(map[string]struct{}, len(subtrahend))
	for _, pattern := range subtrahend {
		removal[pattern] = struct{}{}
	}
	var remaining []string
	for _, pattern := range basePatterns {
		if _, removed := removal[pattern]; !removed {
			remaining = append(remaining, pattern)
		}
	}
	return remaining
}

// tempBasePath is the root directory for clones and archive extractions.
func tempBasePath() string {
	return filepath.Join(os.TempDir(), tempDirectoryName)
}
