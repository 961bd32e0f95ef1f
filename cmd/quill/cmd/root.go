// Package cmd provides the CLI commands for Quill.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/logging"
	"github.com/quillsearch/quill/pkg/version"
)

var debugMode bool

// NewRootCmd creates the root command for the quill CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quill",
		Short: "Document ingestion and hybrid retrieval for RAG",
		Long: `Quill ingests PDF, DOCX, HTML, Markdown, and plain-text documents
into a hybrid (keyword + vector) search index and answers questions
against it, either from the command line or as an MCP server.

Configuration comes from the environment, an optional .env file, and
an optional quill.yaml next to the invocation.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugMode {
				logging.SetupDefault(logging.DebugConfig())
			} else {
				logging.SetupDefault(logging.DefaultConfig())
			}
		},
	}

	cmd.SetVersionTemplate("quill version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
