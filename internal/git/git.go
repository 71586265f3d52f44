// Package git shells out to the system git binary for the remote-repository
// operations of an ingestion: existence checks, branch listing, and shallow
// sparse clones.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"strings"

	"github.com/codeingest/codeingest/internal/types"
)

// gitExecutable is the binary every operation runs.
const gitExecutable = "git"

// ErrGitNotInstalled reports a missing git binary on the PATH.
var ErrGitNotInstalled = errors.New("git is not installed or not found in PATH")

// CommandError carries the failure of one git invocation, including the
// trailing stderr output git printed.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (commandError *CommandError) Error() string {
	trimmedStderr := strings.TrimSpace(commandError.Stderr)
	if trimmedStderr == "" {
		return fmt.Sprintf("git %s failed: %v", strings.Join(commandError.Args, " "), commandError.Err)
	}
	return fmt.Sprintf("git %s failed: %v: %s", strings.Join(commandError.Args, " "), commandError.Err, trimmedStderr)
}

func (commandError *CommandError) Unwrap() error {
	return commandError.Err
}

// RunCommand executes one git command under the given context and returns its
// standard output. Context cancellation surfaces as the context's error so
// callers can distinguish timeouts from git failures.
func RunCommand(executionContext context.Context, workingDirectory string, arguments ...string) (string, error) {
	command := exec.CommandContext(executionContext, gitExecutable, arguments...)
	if workingDirectory != "" {
		command.Dir = workingDirectory
	}
	var standardError strings.Builder
	command.Stderr = &standardError

	output, runError := command.Output()
	if runError != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return "", fmt.Errorf("git %s: %w", strings.Join(arguments, " "), contextError)
		}
		return "", &CommandError{Args: arguments, Stderr: standardError.String(), Err: runError}
	}
	return string(output), nil
}

// EnsureGitInstalled verifies the git binary is available before any remote
// operation is attempted.
func EnsureGitInstalled(executionContext context.Context) error {
	if _, runError := RunCommand(executionContext, "", "--version"); runError != nil {
		return fmt.Errorf("%w: %v", ErrGitNotInstalled, runError)
	}
	return nil
}

// CheckRepoExists probes the remote with ls-remote. A clean exit means the
// repository exists and is reachable; an authentication or not-found failure
// reports false without an error.
func CheckRepoExists(executionContext context.Context, repositoryURL string) (bool, error) {
	_, runError := RunCommand(executionContext, "", "ls-remote", repositoryURL, "HEAD")
	if runError == nil {
		return true, nil
	}
	var commandError *CommandError
	if errors.As(runError, &commandError) {
		return false, nil
	}
	return false, runError
}

// FetchRemoteBranchList lists the branch names of a remote repository, parsed
// from the ls-remote --heads output.
func FetchRemoteBranchList(executionContext context.Context, repositoryURL string) ([]string, error) {
	output, runError := RunCommand(executionContext, "", "ls-remote", "--heads", repositoryURL)
	if runError != nil {
		return nil, fmt.Errorf("fetching branch list for %s: %w", repositoryURL, runError)
	}

	const branchReferencePrefix = "refs/heads/"
	var branchNames []string
	for _, outputLine := range strings.Split(output, "\n") {
		lineFields := strings.Fields(outputLine)
		if len(lineFields) != 2 || !strings.HasPrefix(lineFields[1], branchReferencePrefix) {
			continue
		}
		branchNames = append(branchNames, strings.TrimPrefix(lineFields[1], branchReferencePrefix))
	}
	return branchNames, nil
}

// Clone materializes a remote repository at config.LocalPath. Clones are
// always shallow and single-branch; a subpath request additionally restricts
// the checkout to that path via a blobless sparse clone, and a pinned commit
// is checked out after cloning.
func Clone(executionContext context.Context, config types.CloneConfig) error {
	exists, existsError := CheckRepoExists(executionContext, config.URL)
	if existsError != nil {
		return existsError
	}
	if !exists {
		return fmt.Errorf("repository not found at %s, make sure it is public", config.URL)
	}

	cloneArguments, sparsePatterns := buildCloneArgs(config)
	if _, runError := RunCommand(executionContext, "", cloneArguments...); runError != nil {
		return fmt.Errorf("cloning %s: %w", config.URL, runError)
	}

	if len(sparsePatterns) > 0 {
		sparseArguments := append([]string{"-C", config.LocalPath, "sparse-checkout", "set"}, sparsePatterns...)
		if _, runError := RunCommand(executionContext, "", sparseArguments...); runError != nil {
			return fmt.Errorf("configuring sparse checkout of %s: %w", config.URL, runError)
		}
	}

	if config.Commit != "" {
		if _, runError := RunCommand(executionContext, "", "-C", config.LocalPath, "checkout", config.Commit); runError != nil {
			return fmt.Errorf("checking out commit %s: %w", config.Commit, runError)
		}
	}
	return nil
}

// buildCloneArgs derives the git clone argument list and the sparse-checkout
// patterns from the clone configuration. Pinned commits clone without a depth
// cap because the commit may not be the branch tip.
func buildCloneArgs(config types.CloneConfig) (cloneArguments []string, sparsePatterns []string) {
	cloneArguments = []string{"clone", "--single-branch"}

	partialClone := config.Subpath != "" && config.Subpath != types.DefaultSubpath
	if partialClone {
		cloneArguments = append(cloneArguments, "--filter=blob:none", "--sparse")
		sparsePattern := strings.Trim(config.Subpath, "/")
		if config.Blob {
			// A blob target needs its parent directory checked out, not the
			// blob path itself.
			sparsePattern = path.Dir(sparsePattern)
		}
		if sparsePattern != "" && sparsePattern != "." {
			sparsePatterns = []string{sparsePattern}
		}
	}

	if config.Commit == "" {
		cloneArguments = append(cloneArguments, "--depth=1")
		if config.Branch != "" && !types.IsDefaultBranch(config.Branch) {
			cloneArguments = append(cloneArguments, "--branch", config.Branch)
		}
	}

	cloneArguments = append(cloneArguments, config.URL, config.LocalPath)
	return cloneArguments, sparsePatterns
}
