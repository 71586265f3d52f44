// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/codeingest/codeingest/internal/config"
	"github.com/codeingest/codeingest/internal/content"
	"github.com/codeingest/codeingest/internal/digest"
	"github.com/codeingest/codeingest/internal/format"
	"github.com/codeingest/codeingest/internal/git"
	"github.com/codeingest/codeingest/internal/ingest"
	"github.com/codeingest/codeingest/internal/query"
	"github.com/codeingest/codeingest/internal/tokenizer"
	"github.com/codeingest/codeingest/internal/types"
	"github.com/codeingest/codeingest/internal/utils"
)

const (
	rootUse              = "codeingest [source]"
	rootShortDescription = "turn a codebase into a prompt-friendly text digest"
	rootLongDescription  = `codeingest ingests a local directory, a zip archive, or a remote Git repository
and produces a single digest: a summary, a directory tree, and the concatenated
file contents. The digest is written to a file by default; use --output - to
print it to stdout.`
	rootUsageExample = `  # Ingest the current directory into <dir>.txt
  codeingest .

  # Ingest a repository branch, keeping only Python sources
  codeingest https://github.com/user/repo/tree/dev -i "*.py"

  # Print a JSON digest of a zip archive to stdout
  codeingest sources.zip --format json -o -`

	outputFlagName       = "output"
	maxSizeFlagName      = "max-size"
	excludeFlagName      = "exclude-pattern"
	includeFlagName      = "include-pattern"
	branchFlagName       = "branch"
	formatFlagName       = "format"
	clipboardFlagName    = "clipboard"
	modelFlagName        = "model"
	cloneTimeoutFlagName = "clone-timeout"
	noGitignoreFlagName  = "no-gitignore"
	configFlagName       = "config"
	versionFlagName      = "version"

	outputFlagDescription       = "output file path; '-' prints the digest to stdout"
	maxSizeFlagDescription      = "maximum size of a single file to ingest, in bytes"
	excludeFlagDescription      = "pattern to exclude, repeatable and comma-separable"
	includeFlagDescription      = "pattern to include, repeatable and comma-separable"
	branchFlagDescription       = "branch to clone for remote sources"
	formatFlagDescription       = "digest format: txt or json"
	clipboardFlagDescription    = "copy the digest to the system clipboard"
	modelFlagDescription        = "tokenizer model used for the token estimate"
	cloneTimeoutFlagDescription = "timeout for cloning a remote repository"
	noGitignoreFlagDescription  = "do not honor the root .gitignore"
	configFlagDescription       = "explicit configuration file path"
	versionFlagDescription      = "display application version"

	versionTemplate     = "codeingest version: %s\n"
	defaultSource       = "."
	defaultCloneTimeout = 60 * time.Second
	stdoutOutputPath    = "-"

	outputWrittenMessageFormat  = "Output written to: %s\n"
	clipboardCopiedMessage      = "Digest copied to clipboard."
	tokenizerWarningFormat      = "Warning: token counting disabled: %v\n"
	clipboardWarningFormat      = "Warning: could not copy digest to clipboard: %v\n"
	temporaryCleanupErrorFormat = "Warning: could not remove temporary directory %s: %v\n"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	cloneTimeoutExceededFormat  = "cloning %s timed out after %s"
	writeOutputErrorFormat      = "writing digest to %s: %w"
	digestOutputFilePermissions = 0o644
)

// ingestionOptions stores the flag values of one invocation.
type ingestionOptions struct {
	outputPath       string
	maxFileSize      int64
	excludePatterns  []string
	includePatterns  []string
	branch           string
	outputFormat     string
	copyToClipboard  bool
	tokenizerModel   string
	cloneTimeout     time.Duration
	disableGitignore bool
	configPath       string
}

// Execute runs the codeingest application.
func Execute() error {
	rootCommand := createRootCommand()
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	var showVersion bool
	var options ingestionOptions

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			source := defaultSource
			if len(arguments) == 1 {
				source = arguments[0]
			}
			return runIngestion(command.Context(), source, options, command.Flags().Changed(maxSizeFlagName))
		},
	}

	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.Flags().StringVarP(&options.outputPath, outputFlagName, "o", "", outputFlagDescription)
	rootCommand.Flags().Int64VarP(&options.maxFileSize, maxSizeFlagName, "s", ingest.DefaultMaxFileSizeBytes, maxSizeFlagDescription)
	rootCommand.Flags().StringSliceVarP(&options.excludePatterns, excludeFlagName, "e", nil, excludeFlagDescription)
	rootCommand.Flags().StringSliceVarP(&options.includePatterns, includeFlagName, "i", nil, includeFlagDescription)
	rootCommand.Flags().StringVarP(&options.branch, branchFlagName, "b", "", branchFlagDescription)
	rootCommand.Flags().StringVarP(&options.outputFormat, formatFlagName, "f", "", formatFlagDescription)
	rootCommand.Flags().BoolVarP(&options.copyToClipboard, clipboardFlagName, "c", false, clipboardFlagDescription)
	rootCommand.Flags().StringVar(&options.tokenizerModel, modelFlagName, "", modelFlagDescription)
	rootCommand.Flags().DurationVar(&options.cloneTimeout, cloneTimeoutFlagName, defaultCloneTimeout, cloneTimeoutFlagDescription)
	rootCommand.Flags().BoolVar(&options.disableGitignore, noGitignoreFlagName, false, noGitignoreFlagDescription)
	rootCommand.Flags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// runIngestion executes one end-to-end ingestion: configuration, query
// parsing, optional clone, traversal, formatting, and output.
func runIngestion(executionContext context.Context, source string, options ingestionOptions, maxSizeFlagSet bool) error {
	if executionContext == nil {
		executionContext = context.Background()
	}

	loggerInstance, loggerError := utils.NewApplicationLogger()
	if loggerError != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
	}
	defer loggerInstance.Sync()
	sugaredLogger := loggerInstance.Sugar()

	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	applicationConfig, configError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configPath,
	})
	if configError != nil {
		return configError
	}
	applyConfigurationDefaults(&options, applicationConfig, maxSizeFlagSet)

	outputFormat, formatError := resolveOutputFormat(options.outputFormat)
	if formatError != nil {
		return formatError
	}

	parsedQuery, parseError := query.ParseQuery(executionContext, source, query.Options{
		MaxFileSizeBytes: options.maxFileSize,
		IncludePatterns:  options.includePatterns,
		ExcludePatterns:  options.excludePatterns,
	})
	if parseError != nil {
		return parseError
	}
	if parsedQuery.TempExtractPath != "" {
		defer removeTemporaryTree(parsedQuery.TempExtractPath)
	}

	if parsedQuery.IsRemote() {
		if options.branch != "" && parsedQuery.Branch == "" && parsedQuery.Commit == "" {
			parsedQuery.Branch = options.branch
		}
		if cloneError := cloneRemoteSource(executionContext, parsedQuery, options.cloneTimeout); cloneError != nil {
			return cloneError
		}
		defer removeTemporaryTree(parsedQuery.LocalPath)
	}

	tokenCounter := resolveTokenCounter(options.tokenizerModel)

	contentReader := content.NewReader(sugaredLogger)
	digestFormatter := format.NewFormatter(contentReader, tokenCounter, sugaredLogger)
	ingester := ingest.NewIngester(resolveLimits(applicationConfig), !options.disableGitignore, digestFormatter, sugaredLogger)

	ingestionDigest, ingestError := ingester.IngestQuery(parsedQuery)
	if ingestError != nil {
		return ingestError
	}

	renderedDigest, renderError := renderDigest(ingestionDigest, parsedQuery, outputFormat)
	if renderError != nil {
		return renderError
	}

	if writeError := writeDigest(renderedDigest, parsedQuery, outputFormat, options.outputPath); writeError != nil {
		return writeError
	}

	if options.copyToClipboard {
		if clipboardError := clipboard.WriteAll(renderedDigest); clipboardError != nil {
			fmt.Fprintf(os.Stderr, clipboardWarningFormat, clipboardError)
		} else {
			fmt.Println(clipboardCopiedMessage)
		}
	}

	if options.outputPath != stdoutOutputPath {
		fmt.Println(ingestionDigest.Summary)
	}
	return nil
}

// applyConfigurationDefaults backfills unset flags from the layered
// application configuration. An explicitly set flag always wins.
func applyConfigurationDefaults(options *ingestionOptions, applicationConfig config.ApplicationConfiguration, maxSizeFlagSet bool) {
	if !maxSizeFlagSet && applicationConfig.Limits.MaxFileSizeBytes != nil {
		options.maxFileSize = *applicationConfig.Limits.MaxFileSizeBytes
	}
	if options.tokenizerModel == "" {
		options.tokenizerModel = applicationConfig.Tokens.Model
	}
	if options.outputFormat == "" {
		options.outputFormat = applicationConfig.Output.Format
	}
	if !options.copyToClipboard && applicationConfig.Output.Clipboard != nil {
		options.copyToClipboard = *applicationConfig.Output.Clipboard
	}
	if !options.disableGitignore && applicationConfig.Paths.UseGitignore != nil {
		options.disableGitignore = !*applicationConfig.Paths.UseGitignore
	}
	options.excludePatterns = append(options.excludePatterns, applicationConfig.Paths.Exclude...)
	options.includePatterns = append(options.includePatterns, applicationConfig.Paths.Include...)
}

// resolveLimits derives traversal limits from the defaults overlaid with
// configuration overrides.
func resolveLimits(applicationConfig config.ApplicationConfiguration) ingest.Limits {
	limits := ingest.DefaultLimits()
	if applicationConfig.Limits.MaxDirectoryDepth != nil {
		limits.MaxDirectoryDepth = *applicationConfig.Limits.MaxDirectoryDepth
	}
	if applicationConfig.Limits.MaxFiles != nil {
		limits.MaxFiles = *applicationConfig.Limits.MaxFiles
	}
	if applicationConfig.Limits.MaxTotalSizeBytes != nil {
		limits.MaxTotalSizeBytes = *applicationConfig.Limits.MaxTotalSizeBytes
	}
	return limits
}

func resolveOutputFormat(formatValue string) (digest.OutputFormat, error) {
	if formatValue == "" {
		return digest.FormatText, nil
	}
	return digest.ParseOutputFormat(formatValue)
}

// resolveTokenCounter builds the tokenizer counter for the requested model. A
// failure only disables the token estimate.
func resolveTokenCounter(model string) tokenizer.Counter {
	tokenCounter, _, counterError := tokenizer.NewCounter(tokenizer.Config{Model: model})
	if counterError != nil {
		fmt.Fprintf(os.Stderr, tokenizerWarningFormat, counterError)
		return nil
	}
	return tokenCounter
}

// cloneRemoteSource clones the query's repository under a timeout. The git
// binary must be present; a missing binary is reported before any clone is
// attempted.
func cloneRemoteSource(executionContext context.Context, parsedQuery *types.IngestionQuery, cloneTimeout time.Duration) error {
	if installError := git.EnsureGitInstalled(executionContext); installError != nil {
		return installError
	}

	cloneContext, cancelClone := context.WithTimeout(executionContext, cloneTimeout)
	defer cancelClone()

	cloneConfig, isRemote := parsedQuery.ExtractCloneConfig()
	if !isRemote {
		return fmt.Errorf("query for %s is not a remote repository", parsedQuery.Slug)
	}
	if cloneError := git.Clone(cloneContext, cloneConfig); cloneError != nil {
		if cloneContext.Err() == context.DeadlineExceeded {
			return fmt.Errorf(cloneTimeoutExceededFormat, parsedQuery.URL, cloneTimeout)
		}
		return cloneError
	}
	return nil
}

// renderDigest produces the output artifact in the selected format.
func renderDigest(ingestionDigest format.Digest, parsedQuery *types.IngestionQuery, outputFormat digest.OutputFormat) (string, error) {
	if outputFormat == digest.FormatJSON {
		encoded, encodeError := digest.RenderJSON(ingestionDigest, parsedQuery)
		if encodeError != nil {
			return "", encodeError
		}
		return string(encoded), nil
	}
	return digest.RenderText(ingestionDigest), nil
}

// writeDigest writes the artifact to the requested destination: stdout for
// "-", the given file path, or a slug-derived default file name.
func writeDigest(renderedDigest string, parsedQuery *types.IngestionQuery, outputFormat digest.OutputFormat, outputPath string) error {
	if outputPath == stdoutOutputPath {
		fmt.Print(renderedDigest)
		return nil
	}
	if outputPath == "" {
		outputPath = digest.DefaultFileName(parsedQuery, outputFormat)
	}
	if writeError := os.WriteFile(outputPath, []byte(renderedDigest), digestOutputFilePermissions); writeError != nil {
		return fmt.Errorf(writeOutputErrorFormat, outputPath, writeError)
	}
	fmt.Printf(outputWrittenMessageFormat, outputPath)
	return nil
}

// removeTemporaryTree removes the per-query temporary directory, including the
// UUID parent that namespaces it.
func removeTemporaryTree(temporaryPath string) {
	parentDirectory := filepath.Dir(temporaryPath)
	if removeError := os.RemoveAll(parentDirectory); removeError != nil {
		fmt.Fprintf(os.Stderr, temporaryCleanupErrorFormat, parentDirectory, removeError)
	}
}
