// Package seed imports manually written Q&A pairs from JSON, YAML and XLSX files.
package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/newsqa/internal/models"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// DefaultExtensions are the file types Load understands.
var DefaultExtensions = []string{".json", ".yaml", ".yml", ".xlsx"}

// Supported reports whether Load can read path.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range DefaultExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load reads the pairs in the seed file at path. JSON and YAML files hold either a
// list of pairs or an object with an "items" list. XLSX files are read from the first
// sheet, whose header row names the question, answer, topic, source and id columns.
func Load(path string) ([]models.IndexRequest, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return loadXLSX(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	switch ext {
	case ".json":
		return parseJSON(content)
	case ".yaml", ".yml":
		return parseYAML(content)
	default:
		return nil, fmt.Errorf("unsupported seed file type %q", ext)
	}
}

func parseJSON(content []byte) ([]models.IndexRequest, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []models.IndexRequest
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		return items, nil
	}
	var bulk models.BulkIndexRequest
	if err := json.Unmarshal(trimmed, &bulk); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return bulk.Items, nil
}

func parseYAML(content []byte) ([]models.IndexRequest, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var items []models.IndexRequest
		if err := root.Decode(&items); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		return items, nil
	}
	var bulk models.BulkIndexRequest
	if err := root.Decode(&bulk); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return bulk.Items, nil
}

func loadXLSX(path string) ([]models.IndexRequest, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["question"]; !ok {
		return nil, fmt.Errorf("sheet %q has no question column", sheets[0])
	}
	if _, ok := cols["answer"]; !ok {
		return nil, fmt.Errorf("sheet %q has no answer column", sheets[0])
	}
	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	items := make([]models.IndexRequest, 0, len(rows)-1)
	for _, row := range rows[1:] {
		item := models.IndexRequest{
			ID:       cell(row, "id"),
			Question: cell(row, "question"),
			Answer:   cell(row, "answer"),
			Topic:    cell(row, "topic"),
			Source:   cell(row, "source"),
		}
		if item.Question == "" && item.Answer == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
