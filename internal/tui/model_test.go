package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"perspective/internal/domain"
	"perspective/internal/usecase"
)

type fakeEngine struct {
	queries []string
	err     error
}

func (f *fakeEngine) Answer(_ context.Context, req usecase.AnswerRequest) (*domain.Perspective, error) {
	f.queries = append(f.queries, req.Query)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Perspective{Query: req.Query, Answer: "answer to " + req.Query, Sources: []domain.Source{}}, nil
}

func TestIsQuit(t *testing.T) {
	for _, in := range []string{"quit", "exit", "q", " Q ", "EXIT"} {
		if !IsQuit(in) {
			t.Errorf("%q should quit", in)
		}
	}
	for _, in := range []string{"", "question", "quitting"} {
		if IsQuit(in) {
			t.Errorf("%q should not quit", in)
		}
	}
}

func isQuitCmd(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelQuit(t *testing.T) {
	m := New(context.Background(), &fakeEngine{}, 5, "", "")

	m.input.SetValue("exit")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); !isQuitCmd(cmd) {
		t.Error("exit should quit")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuitCmd(cmd) {
		t.Error("ctrl-c should quit")
	}
}

func TestModelBlankInput(t *testing.T) {
	engine := &fakeEngine{}
	m := New(context.Background(), engine, 5, "", "")
	m.input.SetValue("   ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input should not trigger a command")
	}
	if next.(Model).waiting {
		t.Error("blank input should not start a request")
	}
}

func TestModelAsk(t *testing.T) {
	engine := &fakeEngine{}
	m := New(context.Background(), engine, 3, "", "")
	m.input.SetValue("What matters?")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := next.(Model)
	if !model.waiting || cmd == nil {
		t.Fatal("expected a pending request")
	}
	if model.input.Value() != "" {
		t.Error("input should be cleared")
	}

	// run the request directly rather than through the batch
	msg := answerMsg{}
	p, err := engine.Answer(context.Background(), usecase.AnswerRequest{Query: "What matters?"})
	msg.perspective, msg.err = p, err

	next, _ = model.Update(msg)
	model = next.(Model)
	if model.waiting {
		t.Error("request should be finished")
	}
	if !strings.Contains(model.status, "0 sources") {
		t.Errorf("unexpected status %q", model.status)
	}

	next, _ = model.Update(answerMsg{err: errors.New("boom")})
	if !strings.Contains(next.(Model).status, "boom") {
		t.Error("error should be shown in status")
	}
}

func TestRunLines(t *testing.T) {
	engine := &fakeEngine{}
	in := strings.NewReader("first question\n\n   \nsecond\nquit\nnever asked\n")
	var out bytes.Buffer

	if err := RunLines(context.Background(), engine, in, &out, 5, ""); err != nil {
		t.Fatal(err)
	}
	if len(engine.queries) != 2 || engine.queries[0] != "first question" || engine.queries[1] != "second" {
		t.Errorf("unexpected queries %v", engine.queries)
	}
	if !strings.Contains(out.String(), "answer to second") {
		t.Error("answers should be printed")
	}
}

func TestRunLinesEOFAndErrors(t *testing.T) {
	engine := &fakeEngine{err: domain.ErrStoreNotLoaded}
	var out bytes.Buffer

	if err := RunLines(context.Background(), engine, strings.NewReader("q1"), &out, 5, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Error: "+domain.ErrStoreNotLoaded.Error()) {
		t.Errorf("expected error output, got %q", out.String())
	}
}
