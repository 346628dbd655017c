// Package qaparse extracts question and answer pairs from model output.
//
// Two conventions are recognized:
//
//	Q1: question text          **Q1:** question text
//	A1: answer text            **A1:** answer text
//
// The plain form is tried first; the emphasized form only when the plain form yields
// nothing. When neither yields a pair, tags of either form are accepted together, so
// output that emphasizes only some labels still parses. Labels are case-insensitive. Each answer runs until the next question tag
// of the same form. Pairs with an empty question or answer are dropped.
package qaparse

import (
	"regexp"
	"strings"
	"time"

	"github.com/hyperjump/newsqa/internal/models"
)

// tagRe matches both forms; which one a match belongs to is decided from the optional
// asterisk groups, since RE2 has no backreferences.
var tagRe = regexp.MustCompile(`(?i)(\*\*)?\b([QA])(\d+):(\*\*)?`)

type form int

const (
	plainForm form = iota
	emphasizedForm
	mixedForm
)

type tag struct {
	question   bool
	num        string
	start, end int
}

// Pair is one extracted question and answer, trimmed.
type Pair struct {
	Question string
	Answer   string
}

// Parse extracts pairs from text and returns them as generated QAPairs about topic,
// in text order. It never fails; unparseable text yields an empty slice.
func Parse(text, topic string) []models.QAPair {
	raw := Extract(text)
	now := time.Now().UTC()
	out := make([]models.QAPair, 0, len(raw))
	for _, p := range raw {
		out = append(out, models.QAPair{
			Question:  p.Question,
			Answer:    p.Answer,
			Topic:     topic,
			Source:    models.SourceLLMGenerated,
			CreatedAt: now,
		})
	}
	return out
}

// Extract returns the raw pairs found in text.
func Extract(text string) []Pair {
	for _, f := range []form{plainForm, emphasizedForm} {
		if pairs := extract(text, f); len(pairs) > 0 {
			return pairs
		}
	}
	return extract(text, mixedForm)
}

func trim(s string, f form) string {
	if f == mixedForm {
		return strings.Trim(s, " \t\r\n*")
	}
	return strings.TrimSpace(s)
}

func extract(text string, f form) []Pair {
	tags := scan(text, f)
	var questions []int
	for i, t := range tags {
		if t.question {
			questions = append(questions, i)
		}
	}

	var pairs []Pair
	for qi, ti := range questions {
		q := tags[ti]
		segEnd := len(text)
		if qi+1 < len(questions) {
			segEnd = tags[questions[qi+1]].start
		}
		for _, a := range tags[ti+1:] {
			if a.start >= segEnd {
				break
			}
			if a.question || a.num != q.num {
				continue
			}
			question := trim(text[q.end:a.start], f)
			answer := trim(text[a.end:segEnd], f)
			if question != "" && answer != "" {
				pairs = append(pairs, Pair{Question: question, Answer: answer})
			}
			break
		}
	}
	return pairs
}

// scan returns the tags of form f in text order.
func scan(text string, f form) []tag {
	var tags []tag
	for _, m := range tagRe.FindAllStringSubmatchIndex(text, -1) {
		open, closed := m[2] >= 0, m[8] >= 0
		switch f {
		case plainForm:
			if open || closed {
				continue
			}
		case emphasizedForm:
			if !open || !closed {
				continue
			}
		}
		tags = append(tags, tag{
			question: strings.EqualFold(text[m[4]:m[5]], "q"),
			num:      text[m[6]:m[7]],
			start:    m[0],
			end:      m[1],
		})
	}
	return tags
}
