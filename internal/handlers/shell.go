package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/governance"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
)

// ShellRunner is implemented by anything that can run a remote command.
type ShellRunner interface {
	Run(command string) (string, error)
}

// PassThrough is the catch-all handler: unclassified messages run as a
// command on the remediation host, with a policy gate in front.
type PassThrough struct {
	Runner ShellRunner
	Policy governance.PolicyEngine
	Logger *observability.Logger
}

func (h *PassThrough) Name() string { return "ssh" }

func (h *PassThrough) Handle(ctx context.Context, st *conversation.State) (string, error) {
	// A handler that already produced output this turn passes through.
	if st.Output != "" {
		return st.Output, nil
	}

	command := strings.TrimSpace(st.IntentData)
	if command == "" {
		command = strings.TrimSpace(st.UserInput)
	}
	if command == "" {
		return "No command provided.", nil
	}

	if h.Policy != nil {
		res, err := h.Policy.Evaluate(ctx, governance.Request{Command: command})
		if err != nil {
			return "", err
		}
		if h.Logger != nil {
			h.Logger.LogPolicyCheck("", command, string(res.Effect), res.Reason)
		}
		if res.Effect == governance.EffectDeny {
			return fmt.Sprintf("Command blocked by policy: %s", res.Reason), nil
		}
	}

	output, err := h.Runner.Run(command)
	if err != nil {
		return "", err
	}
	if h.Logger != nil {
		h.Logger.LogSSH("", command, len(output))
	}
	return output, nil
}
