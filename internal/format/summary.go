package format

import (
	"fmt"
	"strings"

	"github.com/codeingest/codeingest/internal/types"
)

// summaryPrefix builds the source-identification lines that open every digest
// summary. Branch lines for the conventional default branches are suppressed;
// a commit line always wins over a branch line.
func summaryPrefix(query *types.IngestionQuery, singleFile bool) string {
	var lines []string

	switch {
	case query.IsRemote():
		lines = append(lines, fmt.Sprintf("Repository: %s/%s", query.UserName, query.RepoName))
		if query.Commit != "" {
			lines = append(lines, "Commit: "+query.Commit)
		} else if query.Branch != "" && !types.IsDefaultBranch(query.Branch) {
			lines = append(lines, "Branch: "+query.Branch)
		}
	case query.OriginalZipPath != "":
		lines = append(lines, "Zip File: "+query.OriginalZipPath)
	case singleFile:
		lines = append(lines, "File: "+query.LocalPath)
	default:
		lines = append(lines, "Directory: "+query.LocalPath)
	}

	if !singleFile && query.Subpath != "" && query.Subpath != types.DefaultSubpath {
		lines = append(lines, "Subpath: "+strings.Trim(query.Subpath, "/"))
	}

	return strings.Join(lines, "\n") + "\n"
}
