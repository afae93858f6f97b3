package remedy

import (
	"context"
	"fmt"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/observability"
)

// Runner executes a shell command on the remediation target.
type Runner interface {
	Run(command string) (string, error)
}

// Attempt records one command execution inside a step.
type Attempt struct {
	Attempt    int    `json:"attempt"`
	Command    string `json:"command"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	Status     string `json:"status"`
	Analysis   string `json:"analysis,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// StepLog is the append-only record of one plan step's execution.
type StepLog struct {
	Step        string    `json:"step"`
	Command     string    `json:"command"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Output      string    `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	Analysis    string    `json:"analysis,omitempty"`
	Attempts    []Attempt `json:"attempts"`
}

// StepError is a user-facing failure summary for the execution report.
type StepError struct {
	Step       string `json:"step"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
	Reasoning  string `json:"reasoning"`
}

// StepResult is the terminal outcome of one step.
type StepResult struct {
	Success bool
	Log     StepLog
	Output  string
	Error   string
}

// Terminal step statuses.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// DefaultMaxRetries bounds the retry loop: a step gets at most
// DefaultMaxRetries+1 attempts.
const DefaultMaxRetries = 2

// Executor runs one remediation step at a time: execute the command, have
// the model judge the output, retry with a model-corrected command when
// needed.
type Executor struct {
	Runner     Runner
	LLM        llm.Completer
	Logger     *observability.Logger
	MaxRetries int

	// Policy vets every command before it reaches the runner. A non-nil
	// error counts as an execution failure.
	Policy func(command string) error

	SessionID string
}

func NewExecutor(runner Runner, completer llm.Completer, logger *observability.Logger) *Executor {
	return &Executor{
		Runner:     runner,
		LLM:        completer,
		Logger:     logger,
		MaxRetries: DefaultMaxRetries,
	}
}

type analysis struct {
	Success        bool   `json:"success"`
	NeedsRetry     bool   `json:"needs_retry"`
	UpdatedCommand string `json:"updated_command"`
	Reason         string `json:"reason"`
}

type resolution struct {
	UpdatedCommand string `json:"updated_command"`
	Reason         string `json:"reason"`
}

// ExecuteStep runs one plan stage to a terminal status.
func (e *Executor) ExecuteStep(ctx context.Context, stepName string, stage Stage, cveSummary, csafSummary string) StepResult {
	command := stage.Command()
	log := StepLog{
		Step:        stepName,
		Command:     command,
		Description: stage.Description(),
		Status:      "pending",
	}

	maxAttempts := e.MaxRetries + 1
	current := command

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		al := Attempt{Attempt: attempt, Command: current}

		output, runErr := e.run(current)
		if runErr == nil {
			al.Output = output
			al.Status = StatusSuccess
			e.logStep(stepName, current, StatusSuccess, attempt)

			an, anErr := e.analyze(ctx, stepName, current, stage.Expected(), output, cveSummary)
			if anErr != nil {
				// The command ran; an unreadable verdict is not a reason
				// to fail the step.
				log.Attempts = append(log.Attempts, al)
				log.Status = StatusSuccess
				log.Output = output
				return StepResult{Success: true, Log: log, Output: output}
			}
			al.Analysis = an.Reason

			switch {
			case an.Success && !an.NeedsRetry:
				log.Attempts = append(log.Attempts, al)
				log.Status = StatusSuccess
				log.Output = output
				return StepResult{Success: true, Log: log, Output: output}
			case an.NeedsRetry && an.UpdatedCommand != "" && attempt <= e.MaxRetries:
				log.Attempts = append(log.Attempts, al)
				current = an.UpdatedCommand
				continue
			default:
				log.Attempts = append(log.Attempts, al)
				log.Output = output
				log.Analysis = an.Reason
				if an.Success {
					log.Status = StatusPartialSuccess
				} else {
					log.Status = StatusError
				}
				return StepResult{Success: an.Success, Log: log, Output: output}
			}
		}

		// Execution failed.
		al.Error = runErr.Error()
		al.Status = StatusError
		e.logStep(stepName, current, StatusError, attempt)

		if attempt <= e.MaxRetries {
			if res, resErr := e.resolve(ctx, stepName, current, runErr, cveSummary, csafSummary); resErr == nil && res.UpdatedCommand != "" {
				al.Resolution = res.Reason
				current = res.UpdatedCommand
			}
			log.Attempts = append(log.Attempts, al)
			continue
		}

		log.Attempts = append(log.Attempts, al)
		log.Status = StatusError
		log.Error = runErr.Error()
		return StepResult{Success: false, Log: log, Error: runErr.Error()}
	}

	log.Status = StatusError
	return StepResult{Success: false, Log: log, Error: "max retries exceeded"}
}

func (e *Executor) run(command string) (string, error) {
	if e.Policy != nil {
		if err := e.Policy(command); err != nil {
			return "", err
		}
	}
	return e.Runner.Run(command)
}

func (e *Executor) logStep(step, command, status string, attempt int) {
	if e.Logger != nil {
		e.Logger.LogStep(e.SessionID, step, command, status, attempt)
	}
}

func (e *Executor) analyze(ctx context.Context, stepName, command, expected, output, cveSummary string) (analysis, error) {
	if cveSummary == "" {
		cveSummary = "N/A"
	}
	prompt := fmt.Sprintf(
		"Step: %s\nCommand: %s\nExpected: %s\nOutput: %s\nCVE Summary: %s\n\n"+
			"Analyze if the output meets expectations. Reply with ONLY JSON: "+
			`{"success": true/false, "needs_retry": true/false, "updated_command": "<new command or empty>", "reason": "<brief reason>"}`,
		stepName, command, expected, output, truncate(cveSummary, 500))

	resp, err := e.LLM.Complete(ctx, prompt)
	if err != nil {
		return analysis{}, err
	}
	var an analysis
	if err := llm.DecodeJSON(resp, &an); err != nil {
		return analysis{}, err
	}
	return an, nil
}

func (e *Executor) resolve(ctx context.Context, stepName, command string, runErr error, cveSummary, csafSummary string) (resolution, error) {
	if cveSummary == "" {
		cveSummary = "N/A"
	}
	if csafSummary == "" {
		csafSummary = "N/A"
	}
	prompt := fmt.Sprintf(
		"Step: %s\nFailed Command: %s\nError: %s\nCVE Summary: %s\nCSAF Summary: %s\n\n"+
			"Suggest a fixed command. Reply with ONLY JSON: "+
			`{"updated_command": "<new command>", "reason": "<brief reason>"}`,
		stepName, command, runErr.Error(), truncate(cveSummary, 500), truncate(csafSummary, 500))

	resp, err := e.LLM.Complete(ctx, prompt)
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	if err := llm.DecodeJSON(resp, &res); err != nil {
		return resolution{}, err
	}
	return res, nil
}
