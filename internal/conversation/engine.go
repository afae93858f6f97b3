package conversation

import (
	"context"
	"fmt"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/intent"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
)

// Checkpointer persists session state and chat history between turns.
type Checkpointer interface {
	LoadState(sessionID string) ([]byte, error)
	SaveState(sessionID string, blob []byte) error
	AddMessage(sessionID, role, content string) error
}

// Classifier maps a free-text message to an intent.
type Classifier interface {
	Classify(ctx context.Context, message string) intent.Result
}

// Engine drives one conversation turn to completion: classify, route,
// run the handler, checkpoint, render. Turns are strictly sequential
// per session.
type Engine struct {
	Classifier Classifier
	Router     *Router
	Store      Checkpointer
	Logger     *observability.Logger
}

func NewEngine(classifier Classifier, router *Router, store Checkpointer, logger *observability.Logger) *Engine {
	return &Engine{
		Classifier: classifier,
		Router:     router,
		Store:      store,
		Logger:     logger,
	}
}

// Turn processes one user message for a session and returns the reply
// text. Handler failures resolve to error text, never to a process
// fault.
func (e *Engine) Turn(ctx context.Context, sessionID, input string) string {
	blob, err := e.Store.LoadState(sessionID)
	if err != nil {
		return fmt.Sprintf("Error loading session state: %v", err)
	}
	st, err := DecodeState(blob)
	if err != nil {
		// A corrupt checkpoint should not brick the session.
		st = &State{}
	}

	st.UserInput = input
	st.Output = ""

	res := e.Classifier.Classify(ctx, input)
	st.Intent = string(res.Intent)
	st.IntentData = res.Data
	e.Logger.LogClassify(sessionID, string(res.Intent), res.Data)

	handler := e.Router.Route(res.Intent)
	e.Logger.LogRoute(sessionID, string(res.Intent), handler.Name())

	output, err := handler.Handle(ctx, st)
	if err != nil {
		output = fmt.Sprintf("Error: %v", err)
	}
	st.Output = output

	if encoded, err := st.Encode(); err == nil {
		if err := e.Store.SaveState(sessionID, encoded); err != nil {
			e.Logger.Log(observability.Event{
				Type:      observability.EventTypeHandler,
				SessionID: sessionID,
				Data:      map[string]string{"checkpoint_error": err.Error()},
			})
		}
	}

	_ = e.Store.AddMessage(sessionID, "human", input)
	_ = e.Store.AddMessage(sessionID, "ai", output)

	return output
}
