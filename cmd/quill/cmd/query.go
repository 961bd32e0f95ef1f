package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/config"
	"github.com/quillsearch/quill/internal/query"
)

func newQueryCmd() *cobra.Command {
	var titlesOnly bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question against the indexed documents",
		Long: `Query embeds the question, runs a hybrid keyword + vector search with
semantic reranking, and prints the relevant chunks as JSON. With
--titles it prints only the distinct source document titles.`,
		Args: cobra.MinimumNArgs(1),
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

			engine := query.New(index, embedder)
			question := strings.Join(args, " ")

			var out string
			if titlesOnly {
				titles, err := engine.Titles(cmd.Context(), question)
				if err != nil {
					return err
				}
				out, err = query.MarshalResults(titles)
				if err != nil {
					return err
				}
			} else {
				results, err := engine.Search(cmd.Context(), question)
				if err != nil {
					return err
				}
				out, err = query.MarshalResults(results)
				if err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&titlesOnly, "titles", false, "Print only distinct source document titles")
	return cmd
}
