package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a remote command to be evaluated.
type Request struct {
	Command   string
	SessionID string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates remote commands against a set of rules before
// they are sent over SSH.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedRegex []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyCommand(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Command) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Command matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// NewPatchPolicyEngine returns an engine preloaded with the destructive
// command patterns a remediation run must never execute.
func NewPatchPolicyEngine() *DefaultPolicyEngine {
	e := NewDefaultPolicyEngine()
	_ = e.DenyCommand(`rm\s+-rf\s+/(\s|$)`)
	_ = e.DenyCommand(`mkfs`)
	_ = e.DenyCommand(`shutdown`)
	_ = e.DenyCommand(`reboot`)
	_ = e.DenyCommand(`dd\s+if=.*of=/dev/`)
	return e
}
