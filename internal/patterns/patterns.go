// Package patterns implements the gitignore-style include and exclude
// predicates applied during traversal, plus the validation and normalization
// performed once at query-construction time.
package patterns

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/codeingest/codeingest/internal/utils"
)

// InvalidPatternError reports a malformed include or exclude pattern. It is
// surfaced at query-construction time, never during matching.
type InvalidPatternError struct {
	Pattern string
}

func (patternError *InvalidPatternError) Error() string {
	return fmt.Sprintf("pattern '%s' contains invalid characters; only alphanumerics, dash, underscore, dot, slash, plus, asterisk, question mark, brackets and a leading '!' are allowed", patternError.Pattern)
}

// validPatternExpression restricts patterns to a safe character set. Shell
// metacharacters (';', backticks, pipes, '$', quotes) are rejected outright.
var validPatternExpression = regexp.MustCompile(`^!?[A-Za-z0-9_\-./+*?\[\]]+$`)

// ParsePatterns splits raw pattern inputs on commas and whitespace, normalizes
// each piece, validates it, and returns a deduplicated slice. The order of
// first occurrence is preserved so diagnostics stay deterministic.
func ParsePatterns(rawPatterns []string) ([]string, error) {
	var parsedPatterns []string
	for _, rawPattern := range rawPatterns {
		for _, piece := range splitPattern(rawPattern) {
			normalizedPattern := NormalizePattern(piece)
			if normalizedPattern == "" {
				continue
			}
			if !validPatternExpression.MatchString(normalizedPattern) {
				return nil, &InvalidPatternError{Pattern: piece}
			}
			parsedPatterns = append(parsedPatterns, normalizedPattern)
		}
	}
	return utils.DeduplicatePatterns(parsedPatterns), nil
}

// NormalizePattern converts backslashes to forward slashes and strips
// surrounding whitespace from a single pattern.
func NormalizePattern(pattern string) string {
	normalized := strings.TrimSpace(pattern)
	normalized = strings.ReplaceAll(normalized, "\\", "/")
	return normalized
}

func splitPattern(rawPattern string) []string {
	return strings.FieldsFunc(rawPattern, func(character rune) bool {
		return character == ',' || character == ' ' || character == '\t' || character == '\n'
	})
}

// ShouldExclude reports whether the path, relative to basePath, matches any of
// the exclude patterns. An empty or nil pattern set excludes nothing.
func ShouldExclude(path string, basePath string, excludePatterns []string) bool {
	if len(excludePatterns) == 0 {
		return false
	}
	return matchesAnyPattern(path, basePath, excludePatterns)
}

// ShouldInclude reports whether the path passes the include filter. A nil
// pattern set means no include filter is active and everything passes; an
// empty non-nil set admits nothing.
func ShouldInclude(path string, basePath string, includePatterns []string) bool {
	if includePatterns == nil {
		return true
	}
	if len(includePatterns) == 0 {
		return false
	}
	return matchesAnyPattern(path, basePath, includePatterns)
}

// matchesAnyPattern evaluates every pattern against the path's relative-to-base
// string and against its bare filename. When the relative path cannot be
// computed the bare filename alone is matched; this deliberately permissive
// fallback is kept for compatibility with existing pattern sets.
func matchesAnyPattern(path string, basePath string, patterns []string) bool {
	fileName := filepath.Base(path)
	relativePath := ""
	if computed, relativeError := filepath.Rel(basePath, path); relativeError == nil && !strings.HasPrefix(computed, "..") {
		relativePath = filepath.ToSlash(computed)
	}

	for _, pattern := range patterns {
		if relativePath != "" && globMatch(pattern, relativePath) {
			return true
		}
		if globMatch(pattern, fileName) {
			return true
		}
	}
	return false
}

// compiledGlobs caches pattern translations. Patterns are validated before the
// walk begins, so a failed compile here simply never matches.
var compiledGlobs sync.Map

// globMatch matches name against a glob where '*' and '?' cross directory
// separators, mirroring fnmatch semantics rather than filepath.Match.
func globMatch(pattern string, name string) bool {
	if cached, found := compiledGlobs.Load(pattern); found {
		if expression, ok := cached.(*regexp.Regexp); ok {
			return expression.MatchString(name)
		}
		return false
	}

	expression, compileError := regexp.Compile(translateGlob(pattern))
	if compileError != nil {
		compiledGlobs.Store(pattern, nil)
		return false
	}
	compiledGlobs.Store(pattern, expression)
	return expression.MatchString(name)
}

// translateGlob converts a glob pattern into an anchored regular expression.
// '**' and '*' both match any run of characters including separators, '?'
// matches a single character, and bracket expressions pass through unchanged.
func translateGlob(pattern string) string {
	var builder strings.Builder
	builder.WriteString(`^`)
	runes := []rune(pattern)
	for index := 0; index < len(runes); index++ {
		character := runes[index]
		switch character {
		case '*':
			for index+1 < len(runes) && runes[index+1] == '*' {
				index++
			}
			builder.WriteString(`.*`)
		case '?':
			builder.WriteString(`.`)
		case '[':
			closing := strings.IndexRune(string(runes[index:]), ']')
			if closing <= 1 {
				builder.WriteString(regexp.QuoteMeta(string(character)))
				continue
			}
			class := string(runes[index : index+closing+1])
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			builder.WriteString(class)
			index += closing
		default:
			builder.WriteString(regexp.QuoteMeta(string(character)))
		}
	}
	builder.WriteString(`$`)
	return builder.String()
}
