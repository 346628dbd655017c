package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/newsqa/internal/fileid"
	"github.com/hyperjump/newsqa/internal/models"
	"github.com/hyperjump/newsqa/internal/qaindex"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeXLSX(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	xlsxPath := filepath.Join(dir, "pairs.xlsx")
	writeXLSX(t, xlsxPath, [][]interface{}{
		{"Question", "Answer", "Topic"},
		{"What is the capital of France?", "Paris.", "geography"},
		{"", "", ""},
		{"Who wrote Hamlet?", "Shakespeare.", "literature"},
	})

	tests := []struct {
		name      string
		path      string
		wantCount int
		wantFirst string
	}{
		{"json array", writeFile(t, dir, "a.json", `[{"question":"Q1?","answer":"A1"},{"question":"Q2?","answer":"A2","topic":"t"}]`), 2, "Q1?"},
		{"json items", writeFile(t, dir, "b.json", `{"items":[{"question":"Q1?","answer":"A1"}]}`), 1, "Q1?"},
		{"yaml list", writeFile(t, dir, "c.yaml", "- question: Why?\n  answer: Because.\n  topic: misc\n"), 1, "Why?"},
		{"yaml items", writeFile(t, dir, "d.yml", "items:\n  - question: How?\n    answer: Carefully.\n"), 1, "How?"},
		{"empty json", writeFile(t, dir, "e.json", "  "), 0, ""},
		{"xlsx", xlsxPath, 2, "What is the capital of France?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Load(tt.path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(items) != tt.wantCount {
				t.Fatalf("len(items) = %d, want %d", len(items), tt.wantCount)
			}
			if tt.wantCount > 0 && items[0].Question != tt.wantFirst {
				t.Errorf("first question = %q, want %q", items[0].Question, tt.wantFirst)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	noAnswer := filepath.Join(dir, "bad.xlsx")
	writeXLSX(t, noAnswer, [][]interface{}{{"question"}, {"Q?"}})

	for _, path := range []string{
		writeFile(t, dir, "bad.json", `{"items": [`),
		writeFile(t, dir, "bad.txt", "hello"),
		noAnswer,
		filepath.Join(dir, "missing.json"),
	} {
		if _, err := Load(path); err == nil {
			t.Errorf("Load(%s): expected error", filepath.Base(path))
		}
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{"a.json": true, "b.YAML": true, "c.xlsx": true, "d.pdf": false, "e": false} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}

func newIndex(t *testing.T) *qaindex.BleveIndex {
	t.Helper()
	idx, err := qaindex.NewBleveIndex(filepath.Join(t.TempDir(), "qa.bleve"), qaindex.Options{})
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() {
		_ = idx.Close()
	})
	return idx
}

func docCount(t *testing.T, idx qaindex.Index) uint64 {
	t.Helper()
	st, err := idx.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st.DocumentCount
}

func TestImporter_ImportFileReplacesPrevious(t *testing.T) {
	idx := newIndex(t)
	im := NewImporter(idx, nil)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "pairs.json", `[
		{"question":"What is the tallest mountain?","answer":"Everest."},
		{"question":"What is the longest river?","answer":"The Nile."},
		{"question":"","answer":"orphan"}
	]`)

	res, err := im.ImportFile(ctx, path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Files != 1 || res.Indexed != 2 || res.Errors != 1 {
		t.Errorf("ImportFile = %+v", res)
	}
	if n := docCount(t, idx); n != 2 {
		t.Fatalf("DocumentCount = %d, want 2", n)
	}

	zero := 0.0
	results, err := idx.Search(ctx, "mountain", 10, zero)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != fileid.PairID(path, 1) || results[0].Source != models.SourceManual {
		t.Errorf("unexpected search result: %+v", results)
	}

	writeFile(t, dir, "pairs.json", `[{"question":"What is the deepest ocean?","answer":"The Pacific."}]`)
	if _, err := im.ImportFile(ctx, path); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if n := docCount(t, idx); n != 1 {
		t.Errorf("DocumentCount after re-import = %d, want 1", n)
	}

	removed, err := im.RemoveFile(ctx, path)
	if err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if removed != 1 || docCount(t, idx) != 0 {
		t.Errorf("RemoveFile removed %d, remaining %d", removed, docCount(t, idx))
	}
}

func TestImporter_ImportPath(t *testing.T) {
	idx := newIndex(t)
	im := NewImporter(idx, nil)
	dir := t.TempDir()
	writeFile(t, dir, "top.yaml", "- question: Top?\n  answer: Yes.\n")
	writeFile(t, dir, "nested/deep.json", `[{"question":"Deep?","answer":"Yes."}]`)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "broken.json", "{")

	res, err := im.ImportPath(context.Background(), dir, nil, false)
	if err != nil {
		t.Fatalf("ImportPath: %v", err)
	}
	if res.Indexed != 1 || res.Errors != 1 {
		t.Errorf("non-recursive ImportPath = %+v", res)
	}

	res, err = im.ImportPath(context.Background(), dir, []string{".json", ".yaml"}, true)
	if err != nil {
		t.Fatalf("ImportPath: %v", err)
	}
	if res.Indexed != 2 {
		t.Errorf("recursive ImportPath = %+v", res)
	}
	if n := docCount(t, idx); n != 2 {
		t.Errorf("DocumentCount = %d, want 2", n)
	}
}

func TestImporter_RejectsGeneratedSource(t *testing.T) {
	idx := newIndex(t)
	im := NewImporter(idx, nil)
	path := writeFile(t, t.TempDir(), "p.json", `[{"question":"Q?","answer":"A","source":"llm_generated"}]`)
	res, err := im.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Indexed != 0 || res.Errors != 1 {
		t.Errorf("ImportFile = %+v", res)
	}
	if !strings.HasPrefix(fileid.PairID(path, 1), "seed:") {
		t.Error("unexpected id prefix")
	}
}
