package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hyperjump/newsqa/internal/models"
)

type stubPort struct {
	searched  []string
	generated []string
	err       error
}

func (p *stubPort) Search(_ context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	p.searched = append(p.searched, req.Query)
	if p.err != nil {
		return nil, p.err
	}
	score := 7.5
	return &models.SearchResponse{
		Query:   req.Query,
		Results: []models.QAPair{{Question: "Who won the match?", Answer: "The home side.", Topic: "sport", Score: &score}},
		Source:  models.ResultSourceIndex,
		Outcome: models.NewOutcome(models.StatusOK, ""),
	}, nil
}

func (p *stubPort) Generate(_ context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	p.generated = append(p.generated, req.Topic)
	return &models.GenerateResponse{
		Topic:   req.Topic,
		Outcome: models.NewOutcome(models.StatusNoContent, "No news found for 'volcanoes' in the last 7 days."),
	}, nil
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func typeText(m Model, text string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

// submit presses enter and feeds the answer back into the model.
func submit(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("enter should start a request")
	}
	if !m.busy {
		t.Error("model should be busy while a request runs")
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_SearchShowsAnswers(t *testing.T) {
	port := &stubPort{}
	m := sized(t, New(port, time.Second))
	m = typeText(m, "who won")
	m = submit(t, m)

	if len(port.searched) != 1 || port.searched[0] != "who won" {
		t.Fatalf("searched = %v", port.searched)
	}
	if m.busy {
		t.Error("model should be idle after the answer")
	}
	if m.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.input.Value())
	}
	view := m.View()
	if !strings.Contains(view, "Who won the match?") || !strings.Contains(view, "ok in") {
		t.Errorf("view missing answer or status:\n%s", view)
	}
}

func TestModel_GenerateCommand(t *testing.T) {
	port := &stubPort{}
	m := sized(t, New(port, time.Second))
	m = typeText(m, "/generate volcanoes")
	m = submit(t, m)

	if len(port.generated) != 1 || port.generated[0] != "volcanoes" {
		t.Fatalf("generated = %v", port.generated)
	}
	if len(port.searched) != 0 {
		t.Errorf("search should not run for %s", generateCommand)
	}
	if !strings.Contains(m.View(), "No news found") {
		t.Errorf("view should show the outcome message:\n%s", m.View())
	}
}

func TestModel_ErrorIsShown(t *testing.T) {
	m := sized(t, New(&stubPort{err: errors.New("index unavailable")}, time.Second))
	m = typeText(m, "anything")
	m = submit(t, m)
	if !strings.HasPrefix(m.status, "Error: index unavailable") {
		t.Errorf("status = %q", m.status)
	}
}

func TestModel_EmptyInputAndQuit(t *testing.T) {
	m := sized(t, New(&stubPort{}, time.Second))
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("enter on empty input should do nothing")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should return tea.Quit")
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	if got := New(&stubPort{}, 0).View(); got != "Loading..." {
		t.Errorf("View() = %q", got)
	}
}
