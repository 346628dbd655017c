package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/newsqa/internal/cli"
	"github.com/hyperjump/newsqa/internal/fileid"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/seed"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var topK int
	var minScore float64
	var noFallback bool
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search Q&A pairs, generating from the news when nothing matches",
		Example: `  newsqa search interest rates
  newsqa search --top-k 3 --min-score 0 "who won the election"
  newsqa search --no-fallback --output json climate summit`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			req := models.SearchRequest{Query: joinArgs(args), TopK: topK}
			if cmd.Flags().Changed("min-score") {
				req.MinScore = &minScore
			}
			if noFallback {
				f := false
				req.FallbackToLLM = &f
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			resp, err := s.pipeline.Search(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if err := cli.WriteSearch(cmd.OutOrStdout(), resp, format); err != nil {
				return err
			}
			return outcomeError(resp.Outcome)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum relevance score (default from config)")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "do not generate from the news when nothing matches")
	return cmd
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var days, pairs int
	cmd := &cobra.Command{
		Use:   "generate [flags] <topic>",
		Short: "Generate and index Q&A pairs from recent news about a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			resp, err := s.pipeline.Generate(cmd.Context(), models.GenerateRequest{Topic: joinArgs(args), Days: days, NumPairs: pairs})
			if err != nil {
				return fmt.Errorf("generate failed: %w", err)
			}
			if err := cli.WriteGenerate(cmd.OutOrStdout(), resp, format); err != nil {
				return err
			}
			return outcomeError(resp.Outcome)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, fmt.Sprintf("lookback window in days, 1-%d (default from config)", models.MaxLookbackDays))
	cmd.Flags().IntVar(&pairs, "pairs", 0, fmt.Sprintf("number of pairs, 1-%d (default from config)", models.MaxPairs))
	return cmd
}

// outcomeError turns a failed outcome into a non-zero exit after it was printed.
func outcomeError(o models.Outcome) error {
	if o.Success {
		return nil
	}
	return errors.New(o.Message)
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var req models.IndexRequest
	cmd := &cobra.Command{
		Use:   "index --question <q> --answer <a> [flags]",
		Short: "Index one manual Q&A pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			resp, err := s.pipeline.IndexPair(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("index failed: %w", err)
			}
			return cli.WriteIndex(cmd.OutOrStdout(), resp, format)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ID, "id", "", "document id (generated when empty; an existing id is replaced)")
	f.StringVarP(&req.Question, "question", "q", "", "question text")
	f.StringVarP(&req.Answer, "answer", "a", "", "answer text")
	f.StringVar(&req.Topic, "topic", "", "topic label")
	f.StringVar(&req.Source, "source", "", "source label (default manual)")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "import [flags] <file-or-directory>",
		Short: "Import manual Q&A pairs from JSON, YAML or XLSX seed files",
		Long: `Import manual Q&A pairs from seed files.

JSON and YAML files hold a list of pairs or an object with an "items" list.
XLSX files are read from the first sheet; the header row names the question,
answer, topic, source and id columns. Importing a file again replaces the
pairs it produced before.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var res seed.Result
			if opts.serverURL != "" {
				res, err = importRemote(ctx, cli.NewClient(opts.serverURL, 0), args[0], recursive)
			} else {
				var s *session
				s, err = opts.open(ctx)
				if err != nil {
					return err
				}
				defer s.close()
				res, err = s.components.Importer.ImportPath(ctx, args[0], s.components.Config.Seed.Extensions, recursive)
			}
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			return cli.WriteIndex(cmd.OutOrStdout(), &models.IndexResponse{
				Success: res.Errors == 0,
				Indexed: res.Indexed,
				Errors:  res.Errors,
				Message: fmt.Sprintf("imported %d file(s)", res.Files),
			}, format)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "descend into subdirectories")
	return cmd
}

// seedItems loads path and keeps the valid rows with deterministic ids.
func seedItems(path string) ([]models.IndexRequest, int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, 0, err
	}
	items, err := seed.Load(abs)
	if err != nil {
		return nil, 0, err
	}
	valid := make([]models.IndexRequest, 0, len(items))
	invalid := 0
	for i, item := range items {
		if item.Validate() != nil {
			invalid++
			continue
		}
		if item.ID == "" {
			item.ID = fileid.PairID(abs, i+1)
		}
		valid = append(valid, item)
	}
	return valid, invalid, nil
}

// chunk splits items into batches of at most size.
func chunk(items []models.IndexRequest, size int) [][]models.IndexRequest {
	var out [][]models.IndexRequest
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// importRemote sends seed files to a running server in bulk batches.
func importRemote(ctx context.Context, client *cli.Client, path string, recursive bool) (seed.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return seed.Result{}, err
	}
	var files []string
	if info.IsDir() {
		walkErr := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if seed.Supported(p) {
				files = append(files, p)
			}
			return nil
		})
		if walkErr != nil {
			return seed.Result{}, walkErr
		}
	} else {
		files = []string{path}
	}

	var res seed.Result
	for _, file := range files {
		items, invalid, err := seedItems(file)
		res.Files++
		res.Errors += invalid
		if err != nil {
			res.Errors++
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", file, err)
			continue
		}
		for _, batch := range chunk(items, models.MaxBulkItems) {
			resp, err := client.IndexBulk(ctx, models.BulkIndexRequest{Items: batch})
			if err != nil {
				return res, err
			}
			res.Indexed += resp.Indexed
			res.Errors += resp.Errors
		}
	}
	return res, nil
}
