package gateway

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

type echoEngine struct {
	turns []string
}

func (e *echoEngine) Turn(ctx context.Context, sessionID, input string) string {
	e.turns = append(e.turns, input)
	return "echo: " + input
}

func TestConsoleGateway_RepliesAndExits(t *testing.T) {
	engine := &echoEngine{}
	var out bytes.Buffer

	g := NewConsoleGateway(engine, nil)
	g.In = strings.NewReader("list vulnerabilities\n\nexit\n")
	g.Out = &out

	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	if len(engine.turns) != 1 || engine.turns[0] != "list vulnerabilities" {
		t.Errorf("turns = %v, blank lines should be skipped", engine.turns)
	}
	if !strings.Contains(out.String(), "echo: list vulnerabilities") {
		t.Errorf("output = %s", out.String())
	}
	if !strings.Contains(out.String(), "Bye.") {
		t.Errorf("missing exit message: %s", out.String())
	}
}

func TestConsoleGateway_HistoryWithoutStore(t *testing.T) {
	var out bytes.Buffer
	g := NewConsoleGateway(&echoEngine{}, nil)
	g.In = strings.NewReader("history\nquit\n")
	g.Out = &out

	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No history store configured.") {
		t.Errorf("output = %s", out.String())
	}
}
