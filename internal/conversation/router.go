package conversation

import (
	"context"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/intent"
)

// Handler processes one conversation turn for a single intent. It mutates
// the session state and returns the text rendered to the user.
type Handler interface {
	Name() string
	Handle(ctx context.Context, st *State) (string, error)
}

// Router is a fixed dispatch table from intent to handler. Terminal after
// one handler runs; there is no multi-hop routing.
type Router struct {
	routes   map[intent.Intent]Handler
	fallback Handler
}

// NewRouter builds a router with the given fallback, used for OTHER and
// any label the table does not cover.
func NewRouter(fallback Handler) *Router {
	return &Router{
		routes:   make(map[intent.Intent]Handler),
		fallback: fallback,
	}
}

func (r *Router) Register(in intent.Intent, h Handler) {
	r.routes[in] = h
}

func (r *Router) Route(in intent.Intent) Handler {
	if h, ok := r.routes[in]; ok {
		return h
	}
	return r.fallback
}
