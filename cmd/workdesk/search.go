package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		k         int
		threshold float64
		document  string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "search <query> [query]...",
		Short: "Search the ingested documents",
		Long: "Search the ingested documents. Several queries are merged into one\n" +
			"de-duplicated result list; --document restricts a single query to one source.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if document != "" && len(args) > 1 {
				return errors.New("--document takes a single query")
			}
			a, err := newApp(opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if !cmd.Flags().Changed("threshold") {
				threshold = a.retriever.ScoreThreshold()
			}

			if len(args) > 1 {
				res := a.retriever.SearchMultipleQueries(ctx, args, k)
				if output != "text" {
					return encode(out, output, res)
				}
				if !res.Success {
					return errors.New(res.Error)
				}
				for _, s := range res.SearchSummaries {
					fmt.Fprintf(out, "• %s: %s\n", s.Query, s.Summary)
				}
				fmt.Fprintln(out)
				printHits(out, res.Results)
				return nil
			}

			var res *retrieval.SearchResult
			if document != "" {
				res = a.retriever.SearchByDocument(ctx, args[0], document, k)
			} else {
				res = a.retriever.Search(ctx, args[0], k, threshold)
			}
			if output != "text" {
				return encode(out, output, res)
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			fmt.Fprintf(out, "%s\n\n", res.Summary)
			printHits(out, res.Results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum similarity score (default from config)")
	cmd.Flags().StringVarP(&document, "document", "d", "", "search only within this source")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func printHits(out io.Writer, hits []retrieval.SearchHit) {
	for _, h := range hits {
		loc := h.SourceFile
		if h.Page > 0 {
			loc = fmt.Sprintf("%s p.%d", h.SourceFile, h.Page)
		}
		fmt.Fprintf(out, "%d. [%s] score %.2f\n   %s\n", h.Rank, loc, h.SimilarityScore, h.ContentPreview)
	}
}
