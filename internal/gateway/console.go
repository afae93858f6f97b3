package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/store"
)

// ConsoleGateway is the default gateway: a line-oriented REPL on the
// terminal. One process run is one session.
type ConsoleGateway struct {
	Engine    Responder
	History   *store.CheckpointStore
	SessionID string

	In  io.Reader
	Out io.Writer

	done chan struct{}
}

func NewConsoleGateway(engine Responder, history *store.CheckpointStore) *ConsoleGateway {
	return &ConsoleGateway{
		Engine:    engine,
		History:   history,
		SessionID: uuid.NewString(),
		In:        os.Stdin,
		Out:       os.Stdout,
		done:      make(chan struct{}),
	}
}

func (g *ConsoleGateway) Start() error {
	fmt.Fprintf(g.Out, "Session %s. Type `help` for capabilities, `exit` to quit.\n\n", g.SessionID)

	scanner := bufio.NewScanner(g.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(g.Out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(g.Out, "Bye.")
			close(g.done)
			return scanner.Err()
		case "history":
			g.printHistory()
			continue
		}

		reply := g.Engine.Turn(context.Background(), g.SessionID, line)
		fmt.Fprintf(g.Out, "\n%s\n\n", reply)

		select {
		case <-g.done:
			return nil
		default:
		}
	}
	return scanner.Err()
}

// printHistory is a console-only builtin, showing the persisted chat
// log for this session.
func (g *ConsoleGateway) printHistory() {
	if g.History == nil {
		fmt.Fprintln(g.Out, "No history store configured.")
		return
	}
	messages, err := g.History.GetHistory(g.SessionID, 50)
	if err != nil {
		fmt.Fprintf(g.Out, "Error reading history: %v\n", err)
		return
	}
	if len(messages) == 0 {
		fmt.Fprintln(g.Out, "No messages yet.")
		return
	}
	for _, m := range messages {
		fmt.Fprintf(g.Out, "[%s] %s\n", m.Role, m.Content)
	}
}

func (g *ConsoleGateway) Send(chatID string, text string) error {
	_, err := fmt.Fprintln(g.Out, text)
	return err
}

func (g *ConsoleGateway) Stop() error {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
	return nil
}
