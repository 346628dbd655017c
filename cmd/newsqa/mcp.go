package main

import (
	"errors"

	"github.com/hyperjump/newsqa/internal/mcpserver"
	"github.com/hyperjump/newsqa/internal/tui"
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Q&A tools to an MCP client over stdio",
		Long: `Serve the Q&A tools to an MCP client over stdio.

Tools: search_qa, generate_qa, fetch_news and cache_stats, plus the GDELT news
analysis tools search_articles, search_with_filters, get_coverage_timeline,
analyze_sentiment, search_by_proximity, search_multiple_sources, compare_topics
and search_by_domain_list. Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.serverURL != "" {
				return errors.New("mcp opens the index directly; --server is not supported")
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			c := s.components
			defaults := mcpserver.Defaults{
				TopK:     c.Config.Search.DefaultTopK,
				Days:     c.Config.Search.FallbackDays,
				NumPairs: c.Config.Search.FallbackPairs,
				MaxNews:  c.Config.News.MaxResults,
			}
			var stats mcpserver.CacheStatter
			if c.Cache != nil {
				stats = c.Cache
			}
			return mcpserver.New(c.Pipeline, c.News, stats, defaults, version, s.logger,
				mcpserver.WithNewsAnalysis(c.GDELT)).Serve()
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat over the Q&A pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			timeout := requestTimeout(nil)
			if s.components != nil {
				timeout = requestTimeout(s.components.Config)
			}
			return tui.Run(s.pipeline, timeout)
		},
	}
}
