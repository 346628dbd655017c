package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/newsqa/internal/cli"
	"github.com/hyperjump/newsqa/internal/config"
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index and semantic cache statistics",
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
			resp, err := s.pipeline.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			return cli.WriteStats(cmd.OutOrStdout(), resp, format)
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var full, yes bool
	cmd := &cobra.Command{
		Use:   "delete [--full] --yes",
		Short: "Delete every Q&A pair (--full drops and recreates the index)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			format, err := opts.format()
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			del := s.pipeline.DeleteAll
			if full {
				del = s.pipeline.DeleteIndex
			}
			resp, err := del(cmd.Context())
			if err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			return cli.WriteDelete(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "drop the index and recreate it empty")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the semantic news cache",
	}
	show := func(withQueries bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			format, err := opts.format()
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			if s.cache == nil {
				return errors.New("semantic cache is disabled")
			}
			resp, err := s.cache.Cache(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteCache(cmd.OutOrStdout(), resp, withQueries, format)
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache entries, hits, misses and hit rate",
			Args:  cobra.NoArgs,
			RunE:  show(false),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List cached queries",
			Args:  cobra.NoArgs,
			RunE:  show(true),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cache entry and reset the counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.open(cmd.Context())
				if err != nil {
					return err
				}
				defer s.close()
				if s.cache == nil {
					return errors.New("semantic cache is disabled")
				}
				if err := s.cache.ClearCache(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			},
		},
	)
	return cmd
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with every default filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.Default()
			// Secrets stay in the environment.
			cfg.LLM.APIKey = ""
			cfg.Embedding.APIKey = ""
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
