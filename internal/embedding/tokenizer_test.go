package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: ids=%d attn=%d types=%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("expected CLS %d, got %d", clsTokenID, ids[0])
	}
	if ids[3] != sepTokenID {
		t.Errorf("expected SEP at position 3, got %d", ids[3])
	}
	for i, want := range []int64{1, 1, 1, 1, 0} {
		if attn[i] != want {
			t.Errorf("attention[%d] = %d, want %d", i, attn[i], want)
		}
	}
	if ids[1] < firstWordID || ids[1] >= vocabSize {
		t.Errorf("word id %d outside vocabulary range", ids[1])
	}
}

func TestSimpleTokenizer_TruncatesToMaxTokens(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, _ := tok.Tokenize("one two three four five six", 4)
	if len(ids) != 4 {
		t.Fatalf("len(ids) = %d", len(ids))
	}
	if ids[3] != sepTokenID {
		t.Errorf("last token should be SEP, got %d", ids[3])
	}
	for i := range attn {
		if attn[i] != 1 {
			t.Errorf("attention[%d] = %d, want 1", i, attn[i])
		}
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  Climate-change, NEWS!  2024 ")
	want := []string{"climate", "change", "news", "2024"}
	if len(words) != len(want) {
		t.Fatalf("SplitWords = %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("words[%d] = %q, want %q", i, words[i], want[i])
		}
	}
	if len(SplitWords("")) != 0 {
		t.Error("empty string should return no words")
	}
}
