package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/remedy"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
)

// Patch runs the remediation plan over SSH through the step executor:
// pre-checks first, then the main stages, collecting an execution report.
type Patch struct {
	Executor *remedy.Executor
	PlanPath string
}

func (h *Patch) Name() string { return "patcher" }

type reportItem struct {
	step     string
	command  string
	output   string
	status   string
	attempts int
}

func (h *Patch) Handle(ctx context.Context, st *conversation.State) (string, error) {
	plan := st.RemediationPlan
	if len(plan) == 0 {
		if loaded, err := remedy.LoadPlan(h.PlanPath); err == nil {
			plan = loaded
			st.RemediationPlan = loaded
		}
	}
	if len(plan) == 0 {
		return "No remediation plan found. Please generate a plan first.\nExample: `Generate plan`", nil
	}

	h.Executor.SessionID = sessionOf(st)

	var report []reportItem
	var errs []remedy.StepError

	// Pre-checks run first, in stable order.
	st.CurrentStep = conversation.StepPreChecks
	if pre, ok := plan[remedy.StagePreChecks]; ok {
		names, subs := pre.SubSteps()
		for _, name := range names {
			check := subs[name]
			result := h.Executor.ExecuteStep(ctx, "pre_check_"+name, check, st.CVESummary, st.CSAFSummary)
			st.PatcherLogs = append(st.PatcherLogs, result.Log)

			finalCommand := check.Command()
			if n := len(result.Log.Attempts); n > 0 {
				finalCommand = result.Log.Attempts[n-1].Command
			}
			report = append(report, reportItem{
				step:     "Pre-check: " + name,
				command:  finalCommand,
				output:   result.Output,
				status:   result.Log.Status,
				attempts: len(result.Log.Attempts),
			})
			if !result.Success {
				errs = append(errs, remedy.StepError{
					Step:       "pre_check_" + name,
					Error:      orDefault(result.Error, "Pre-check failed"),
					Suggestion: "Review system requirements and environment configuration.",
					Reasoning:  "Pre-check validation failed. Ensure system meets requirements.",
				})
			}
		}
	}

	for _, stepName := range remedy.MainStages {
		stage, ok := plan[stepName]
		if !ok || stage.Command() == "" {
			continue
		}
		if stepName == remedy.StageVerifyFix {
			st.CurrentStep = conversation.StepVerify
		} else {
			st.CurrentStep = conversation.StepPatch
		}

		result := h.Executor.ExecuteStep(ctx, stepName, stage, st.CVESummary, st.CSAFSummary)
		st.PatcherLogs = append(st.PatcherLogs, result.Log)

		finalCommand := stage.Command()
		if n := len(result.Log.Attempts); n > 0 {
			finalCommand = result.Log.Attempts[n-1].Command
		}
		report = append(report, reportItem{
			step:     operationTitle(stepName),
			command:  finalCommand,
			output:   result.Output,
			status:   result.Log.Status,
			attempts: len(result.Log.Attempts),
		})
		if !result.Success {
			errs = append(errs, remedy.StepError{
				Step:       stepName,
				Error:      orDefault(result.Error, "Step failed"),
				Suggestion: orDefault(result.Log.Analysis, "Review command and system state."),
				Reasoning:  "Step execution failed after retries.",
			})
		}
	}

	st.PatcherErrors = append(st.PatcherErrors, errs...)

	var b strings.Builder
	b.WriteString("# Vulnerability Patching Execution Report\n\n")
	for i, item := range report {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, item.step)
		fmt.Fprintf(&b, "   - Command: `%s`\n", item.command)
		fmt.Fprintf(&b, "   - Status: %s\n", item.status)
		if item.attempts > 1 {
			fmt.Fprintf(&b, "   - Attempts: %d\n", item.attempts)
		}
		fmt.Fprintf(&b, "   - SSH Output:\n```\n%s\n```\n\n", item.output)
	}
	if len(errs) > 0 {
		b.WriteString("## Errors and Resolutions\n\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "- **%s**: %s\n", e.Step, e.Error)
			fmt.Fprintf(&b, "  - Suggestion: %s\n\n", e.Suggestion)
		}
		st.CurrentStep = conversation.StepReport
	} else {
		st.CurrentStep = conversation.StepDone
	}

	return b.String(), nil
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// sessionOf derives an identifier for step logging. State does not carry
// the session id, so the story key is the closest stable handle.
func sessionOf(st *conversation.State) string {
	if st.StoryKey != "" {
		return st.StoryKey
	}
	return st.VulnData[vulndb.ColVulnID]
}
