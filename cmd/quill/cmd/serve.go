package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/config"
	"github.com/quillsearch/quill/internal/mcp"
	"github.com/quillsearch/quill/internal/query"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval as an MCP server over stdio",
		Long: `Serve exposes the query engine to MCP clients over stdio with two
tools: "analyze" returns relevant chunks for a question, "documents"
returns only the distinct source titles covering a topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			embedder, err := buildEmbedder(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			index, err := buildIndex(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = index.Close() }()

			server, err := mcp.NewServer(query.New(index, embedder))
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}
}
