// Package cli renders newsqa responses for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// answerPreviewLen bounds answers in text output.
const answerPreviewLen = 400

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearch writes a search response.
func WriteSearch(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", headerStyle.Render(fmt.Sprintf("%d result(s) for %q from %s in %dms [%s]",
		resp.TotalHits, resp.Query, resp.Source, resp.QueryTimeMS, resp.Status)))
	if resp.Source == models.ResultSourceLLM {
		fmt.Fprintf(w, "%s\n", metaStyle.Render(fmt.Sprintf("generated from %d news article(s), %d indexed", resp.NewsCount, resp.IndexedCount)))
	}
	writeOutcomeMessage(w, resp.Outcome)
	writePairs(w, resp.Results)
	return nil
}

// WriteGenerate writes a generate response.
func WriteGenerate(w io.Writer, resp *models.GenerateResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", headerStyle.Render(fmt.Sprintf("%d pair(s) about %q from %d article(s) in %dms [%s]",
		len(resp.Results), resp.Topic, resp.NewsCount, resp.GenerationTimeMS, resp.Status)))
	fmt.Fprintf(w, "%s\n", metaStyle.Render(fmt.Sprintf("indexed %d, errors %d", resp.IndexedCount, resp.IndexErrors)))
	writeOutcomeMessage(w, resp.Outcome)
	writePairs(w, resp.Results)
	return nil
}

func writeOutcomeMessage(w io.Writer, o models.Outcome) {
	if o.Message == "" {
		return
	}
	if o.Status == models.StatusOK || o.Status == models.StatusNoContent {
		fmt.Fprintln(w, o.Message)
		return
	}
	fmt.Fprintln(w, warnStyle.Render(o.Message))
}

func writePairs(w io.Writer, pairs []models.QAPair) {
	for i, p := range pairs {
		fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
		fmt.Fprintln(w, questionStyle.Render(fmt.Sprintf("%d. %s", i+1, p.Question)))
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(p.Answer, answerPreviewLen))
		meta := []string{"source: " + p.Source}
		if p.Topic != "" {
			meta = append(meta, "topic: "+p.Topic)
		}
		if p.Score != nil {
			meta = append(meta, fmt.Sprintf("score: %.4f (%s)", *p.Score, p.Relevance))
		}
		if p.ID != "" {
			meta = append(meta, "id: "+p.ID)
		}
		fmt.Fprintln(w, metaStyle.Render(strings.Join(meta, " | ")))
	}
}

// WriteIndex writes the result of indexing one or more pairs.
func WriteIndex(w io.Writer, resp *models.IndexResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s: indexed %d, errors %d\n", resp.Message, resp.Indexed, resp.Errors)
	for _, id := range resp.IDs {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

// WriteStats writes index and cache statistics.
func WriteStats(w io.Writer, resp *models.StatsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "index_name:      %s\n", resp.IndexName)
	fmt.Fprintf(w, "documents:       %d\n", resp.DocumentCount)
	fmt.Fprintf(w, "index_size:      %s (%d bytes)\n", resp.IndexSizeHuman, resp.IndexSizeBytes)
	fmt.Fprintf(w, "health:          %s\n", resp.Health)
	if resp.Cache != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# semantic cache")
		writeCacheStats(w, *resp.Cache)
	}
	return nil
}

func writeCacheStats(w io.Writer, s models.CacheStats) {
	fmt.Fprintf(w, "cache_entries:   %d\n", s.Entries)
	fmt.Fprintf(w, "cache_hits:      %d\n", s.Hits)
	fmt.Fprintf(w, "cache_misses:    %d\n", s.Misses)
	fmt.Fprintf(w, "cache_hit_rate:  %s\n", s.HitRate)
}

// WriteCache writes cache counters and, when withQueries is set, every cached query.
func WriteCache(w io.Writer, resp *models.CacheResponse, withQueries bool, format OutputFormat) error {
	if format == OutputJSON {
		if !withQueries {
			return writeJSON(w, resp.Stats)
		}
		return writeJSON(w, resp)
	}
	writeCacheStats(w, resp.Stats)
	if withQueries {
		fmt.Fprintln(w)
		if len(resp.Queries) == 0 {
			fmt.Fprintln(w, "(no cached queries)")
		}
		for _, q := range resp.Queries {
			fmt.Fprintln(w, q)
		}
	}
	return nil
}

// WriteDelete writes the result of a delete.
func WriteDelete(w io.Writer, resp *models.DeleteResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s (%d document(s))\n", resp.Message, resp.Deleted)
	return nil
}
