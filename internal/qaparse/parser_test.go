package qaparse

import (
	"testing"

	"github.com/hyperjump/newsqa/internal/models"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Pair
	}{
		{
			name: "plain",
			text: "Q1: What happened?\nA1: A storm hit the coast.\n\nQ2: Who responded?\nA2: Emergency services.",
			want: []Pair{
				{"What happened?", "A storm hit the coast."},
				{"Who responded?", "Emergency services."},
			},
		},
		{
			name: "emphasized",
			text: "Here are the pairs:\n**Q1:** Why did rates rise?\n**A1:** Inflation stayed high.\n\n**Q2:** What next?\n**A2:** Another review in June.",
			want: []Pair{
				{"Why did rates rise?", "Inflation stayed high."},
				{"What next?", "Another review in June."},
			},
		},
		{
			name: "case insensitive labels",
			text: "q1: lower question\na1: lower answer",
			want: []Pair{{"lower question", "lower answer"}},
		},
		{
			name: "multiline answer runs to next question",
			text: "Q1: Summarize.\nA1: First line.\nSecond line.\nQ2: Next?\nA2: Done.",
			want: []Pair{
				{"Summarize.", "First line.\nSecond line."},
				{"Next?", "Done."},
			},
		},
		{
			name: "question without matching answer is dropped",
			text: "Q1: Orphan question\nQ2: Real question\nA2: Real answer",
			want: []Pair{{"Real question", "Real answer"}},
		},
		{
			name: "answer number must match",
			text: "Q1: Question one\nA2: Wrong number",
			want: nil,
		},
		{
			name: "empty answer dropped",
			text: "Q1: Has no answer\nA1:   \nQ2: Has one\nA2: Yes",
			want: []Pair{{"Has one", "Yes"}},
		},
		{
			name: "preamble ignored",
			text: "Sure! Based on the headlines:\n\nQ1: What?\nA1: That.",
			want: []Pair{{"What?", "That."}},
		},
		{
			name: "label inside word is not a tag",
			text: "Q1: What does FAQ2: mean here?\nA1: Nothing.",
			want: []Pair{{"What does FAQ2: mean here?", "Nothing."}},
		},
		{
			name: "emphasized questions with plain answers",
			text: "**Q1:** What is the forecast?\nA1: Rain all week.\n\n**Q2:** And after that?\nA2: Sun.",
			want: []Pair{
				{"What is the forecast?", "Rain all week."},
				{"And after that?", "Sun."},
			},
		},
		{
			name: "half emphasized labels",
			text: "Q1:** Where was the summit?\nA1:** In Geneva.",
			want: []Pair{{"Where was the summit?", "In Geneva."}},
		},
		{
			name: "no conventions",
			text: "The model declined to answer.",
			want: nil,
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() = %+v, want %+v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("pair %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtract_PlainWinsOverEmphasized(t *testing.T) {
	text := "Q1: Plain question\nA1: Plain answer\n**Q2:** Bold question\n**A2:** Bold answer"
	got := Extract(text)
	if len(got) != 1 {
		t.Fatalf("Extract() = %+v, want only the plain pair", got)
	}
	if got[0].Question != "Plain question" {
		t.Errorf("question = %q", got[0].Question)
	}
	// The emphasized tags are not plain tags, so they stay inside the plain answer.
	if got[0].Answer != "Plain answer\n**Q2:** Bold question\n**A2:** Bold answer" {
		t.Errorf("answer = %q", got[0].Answer)
	}
}

func TestParse(t *testing.T) {
	pairs := Parse("Q1: What?\nA1: This.\nQ2: Why?\nA2: Because.", "storms")
	if len(pairs) != 2 {
		t.Fatalf("len = %d, want 2", len(pairs))
	}
	for i, p := range pairs {
		if p.Topic != "storms" {
			t.Errorf("pair %d topic = %q", i, p.Topic)
		}
		if p.Source != models.SourceLLMGenerated {
			t.Errorf("pair %d source = %q", i, p.Source)
		}
		if p.CreatedAt.IsZero() {
			t.Errorf("pair %d has zero created_at", i)
		}
	}
	if pairs[0].Question != "What?" || pairs[1].Answer != "Because." {
		t.Errorf("pairs out of order: %+v", pairs)
	}
	if got := Parse("nothing here", "x"); len(got) != 0 {
		t.Errorf("Parse(no pairs) = %+v", got)
	}
}
