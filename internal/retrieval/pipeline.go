package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/news"
	"github.com/hyperjump/newsqa/internal/qaindex"
	"github.com/hyperjump/newsqa/internal/qaparse"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const generationPrompt = `You are an expert news analyst and educational content creator.
Your task is to analyze news headlines and create high-quality question and answer pairs.

Given the following news headlines about "{topic}":

{news_content}

Generate exactly {num_pairs} question-answer pairs based on this news content.

**Guidelines:**
- Create diverse question types: factual, analytical, and inferential
- Questions should be clear, specific, and directly tied to the news content
- Answers should be comprehensive and cite the relevant headline/source when appropriate
- Focus on key facts, implications, and broader context

**Output Format (STRICTLY follow this format):**
For each Q&A pair, use EXACTLY this format:

Q1: [Question text here]
A1: [Detailed answer here]

Q2: [Question text here]
A2: [Detailed answer here]

... and so on.

Generate the Q&A pairs now:`

// BuildPrompt fills the generation template.
func BuildPrompt(topic string, headlines *news.Result, numPairs int) string {
	return strings.NewReplacer(
		"{topic}", topic,
		"{news_content}", news.FormatForPrompt(headlines),
		"{num_pairs}", fmt.Sprint(numPairs),
	).Replace(generationPrompt)
}

var errNoGenerator = errors.New("language model not configured")

type generation struct {
	pairs       []models.QAPair
	newsCount   int
	indexed     int
	indexErrors int
	outcome     models.Outcome
}

func failed(format string, args ...any) generation {
	return generation{pairs: []models.QAPair{}, outcome: models.NewOutcome(models.StatusFailed, fmt.Sprintf(format, args...))}
}

// generate fetches headlines, prompts the model, parses its pairs and stores them.
// It never returns an error; every failure is reported in the outcome.
func (o *Orchestrator) generate(ctx context.Context, topic string, days, numPairs int) generation {
	log := o.logger.With(zap.String("topic", topic), zap.Int("days", days))

	newsCtx, cancel := withTimeout(ctx, o.settings.NewsTimeout)
	headlines, err := o.news.FetchHeadlines(newsCtx, topic, days, o.settings.MaxNews)
	cancel()
	if err != nil {
		log.Warn("news fetch failed", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return failed("news fetch timed out after %s", o.settings.NewsTimeout)
		}
		return failed("news fetch failed: %v", err)
	}
	if len(headlines.Articles) == 0 {
		return generation{
			pairs:   []models.QAPair{},
			outcome: models.NewOutcome(models.StatusNoContent, fmt.Sprintf("No news found for '%s' in the last %d days.", topic, days)),
		}
	}
	newsCount := len(headlines.Articles)

	if o.generator == nil {
		res := failed("generation error: %v", errNoGenerator)
		res.newsCount = newsCount
		return res
	}
	genCtx, cancel := withTimeout(ctx, o.settings.GenerationTimeout)
	text, err := o.generator.Generate(genCtx, BuildPrompt(topic, headlines, numPairs))
	cancel()
	if err != nil {
		log.Warn("generation failed", zap.Error(err))
		var res generation
		if errors.Is(err, context.DeadlineExceeded) {
			res = failed("generation error: timed out after %s", o.settings.GenerationTimeout)
		} else {
			res = failed("generation error: %v", err)
		}
		res.newsCount = newsCount
		return res
	}

	pairs := qaparse.Parse(text, topic)
	if len(pairs) == 0 {
		log.Warn("no Q&A pairs parsed from model output", zap.Int("output_len", len(text)))
		return generation{
			pairs:     []models.QAPair{},
			newsCount: newsCount,
			outcome:   models.NewOutcome(models.StatusNoContent, "failed to parse Q&A pairs from model output"),
		}
	}
	for i := range pairs {
		pairs[i].Source = models.SourceLLMGenerated
		pairs[i].Relevance = models.RelevanceHigh
		pairs[i].Score = nil
	}

	failures := o.persist(ctx, pairs)
	res := generation{
		pairs:       pairs,
		newsCount:   newsCount,
		indexed:     len(pairs) - failures,
		indexErrors: failures,
	}
	switch {
	case failures == 0:
		res.outcome = models.NewOutcome(models.StatusOK, "")
	case failures == len(pairs):
		res.outcome = models.NewOutcome(models.StatusFailed, "failed to store generated Q&A pairs")
	default:
		res.outcome = models.NewOutcome(models.StatusPartial,
			fmt.Sprintf("%d of %d generated Q&A pairs could not be stored", failures, len(pairs)))
	}
	log.Info("generated Q&A pairs",
		zap.Int("news", newsCount),
		zap.Int("pairs", len(pairs)),
		zap.Int("index_errors", failures))
	return res
}

// persist upserts pairs concurrently, sets the assigned IDs in place and returns the
// number of failures. All upserts finish before it returns.
func (o *Orchestrator) persist(ctx context.Context, pairs []models.QAPair) int {
	var failures atomic.Int32
	var g errgroup.Group
	g.SetLimit(o.settings.IndexConcurrency)
	for i := range pairs {
		g.Go(func() error {
			upsertCtx, cancel := withTimeout(ctx, o.settings.IndexTimeout)
			defer cancel()
			id, err := o.index.Upsert(upsertCtx, qaindex.Document{QAPair: pairs[i]})
			if err != nil {
				failures.Add(1)
				o.logger.Warn("failed to store generated pair", zap.Int("pair", i+1), zap.Error(err))
				return nil
			}
			pairs[i].ID = id
			return nil
		})
	}
	_ = g.Wait()
	return int(failures.Load())
}
