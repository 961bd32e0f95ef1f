package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillsearch/quill/internal/config"
	"github.com/quillsearch/quill/internal/pipeline"
	"github.com/quillsearch/quill/internal/syncer"
)

func newIndexCmd() *cobra.Command {
	var maxChars, overlap, uploadBatch int

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Ingest a file or directory into the search index",
		Long: `Index scans the given path for supported documents (PDF, DOCX, HTML,
Markdown, plain text), splits them into overlapping chunks, embeds the
chunks, and replaces each document's chunks in the search index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if maxChars > 0 {
				cfg.MaxChars = maxChars
			}
			if overlap >= 0 {
				cfg.Overlap = overlap
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

			sync := syncer.New(index, cfg.IndexName, syncer.WithBatchSize(uploadBatch))
			runner := pipeline.New(embedder, sync, cfg.MaxChars, cfg.Overlap)
			summary, err := runner.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Indexed %d of %d files (%d skipped): %d chunks uploaded, %d replaced, %d failed\n",
				summary.FilesIndexed, summary.FilesScanned, summary.FilesSkipped,
				summary.ChunksUploaded, summary.ChunksDeleted, summary.ChunksFailed)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Maximum chunk size in characters (default from config)")
	cmd.Flags().IntVar(&overlap, "overlap", -1, "Overlap carried between chunks (default from config)")
	cmd.Flags().IntVar(&uploadBatch, "upload-batch", syncer.DefaultUploadBatchSize, "Documents per upload batch")
	return cmd
}
