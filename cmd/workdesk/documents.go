package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/spf13/cobra"
)

func newDocumentsCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.retriever.GetDocumentList(cmd.Context())
			if !list.Success {
				return errors.New(list.Error)
			}
			if output != "text" {
				return encode(cmd.OutOrStdout(), output, list)
			}

			out := cmd.OutOrStdout()
			if list.TotalDocuments == 0 {
				fmt.Fprintln(out, "No documents ingested yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOCUMENT\tKIND\tCHUNKS\tADDED")
			for _, d := range list.Documents {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Filename, d.Kind, d.ChunkCount, d.AddedAt.Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d documents, %d indexed chunks\n", list.TotalDocuments, list.IndexedChunks)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.AddCommand(newDocumentShowCmd(opts, &output))
	return cmd
}

func newDocumentShowCmd(opts *rootOptions, output *string) *cobra.Command {
	var maxChunks int
	cmd := &cobra.Command{
		Use:   "show <source>",
		Short: "Print the stored chunks of one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			content := a.retriever.GetContentBySource(cmd.Context(), args[0], maxChunks)
			if !content.Success {
				return errors.New(content.Error)
			}
			if *output != "text" {
				return encode(cmd.OutOrStdout(), *output, content)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d chunks)\n", content.SourceFile, content.TotalChunks)
			for _, ch := range content.Content {
				fmt.Fprintf(out, "\n--- %s\n%s\n", ch.ChunkID, ch.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxChunks, "max", retrieval.DefaultMaxSourceChunk, "maximum number of chunks to print")
	return cmd
}
