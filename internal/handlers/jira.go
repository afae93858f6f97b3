package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/tracker"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/vulndb"
)

// CreateStory finds or creates the per-application epic and creates a
// patch story under it, carrying the vulnerability row as custom fields.
type CreateStory struct {
	Tracker *tracker.Client
	LLM     llm.Completer
}

func (h *CreateStory) Name() string { return "jira_create" }

// findEpicByAppCode returns the key of the epic whose summary mentions
// the app code, or "" when none exists yet.
func (h *CreateStory) findEpicByAppCode(ctx context.Context, appCode string) (string, error) {
	epics, err := h.Tracker.ListEpics(ctx)
	if err != nil {
		return "", err
	}
	needle := strings.ToUpper(appCode)
	for _, epic := range epics {
		if strings.Contains(strings.ToUpper(epic.Summary), needle) {
			return epic.Key, nil
		}
	}
	return "", nil
}

func (h *CreateStory) Handle(ctx context.Context, st *conversation.State) (string, error) {
	if len(st.VulnData) == 0 {
		return "No vulnerability data found. Please analyze the vulnerability first.\nExample: `Analyze Vuln ID 241573`", nil
	}

	appCode := strings.TrimSpace(st.VulnData[vulndb.ColAppCode])
	if appCode == "" {
		return "Warning: App Code not found in vulnerability data, cannot create a story.", nil
	}
	appName := strings.TrimSpace(st.VulnData[vulndb.ColAppName])

	epicKey := st.EpicKey
	if epicKey == "" {
		found, err := h.findEpicByAppCode(ctx, appCode)
		if err != nil {
			return "", err
		}
		epicKey = found
		if epicKey == "" {
			summary := appCode
			if appName != "" {
				summary = fmt.Sprintf("%s - %s", appCode, appName)
			}
			created, err := h.Tracker.CreateEpic(ctx, summary, fmt.Sprintf("Epic for application %s", appCode))
			if err != nil {
				return "", err
			}
			epicKey = created
		}
	}
	st.EpicKey = epicKey

	storyKey := st.StoryKey
	if storyKey == "" {
		vulnID := st.VulnData[vulndb.ColVulnID]
		vulnName := st.VulnData[vulndb.ColVulnName]
		if vulnName == "" {
			vulnName = "Vulnerability"
		}

		meta, err := h.Tracker.CreateMeta(ctx, "Story")
		var custom map[string]any
		if err == nil {
			custom = tracker.PrepareCustomFields(ctx, h.LLM, st.VulnData, meta)
		}

		created, err := h.Tracker.CreateStory(ctx, epicKey, fmt.Sprintf("Patch %s: %s", vulnID, vulnName), custom)
		if err != nil {
			return "", err
		}
		storyKey = created

		if st.RHSAID != "" && meta != nil {
			if fieldID := tracker.RHSAFieldID(meta); fieldID != "" {
				_ = h.Tracker.UpdateFields(ctx, storyKey, map[string]any{fieldID: st.RHSAID})
			}
		}
	}
	st.StoryKey = storyKey
	st.CurrentStep = conversation.StepTracker

	return fmt.Sprintf("JIRA: Epic %s, Story %s ready.", epicKey, storyKey), nil
}

// FetchStory reports the session story's status, progress and sub-tasks.
type FetchStory struct {
	Tracker *tracker.Client
}

func (h *FetchStory) Name() string { return "jira_fetch" }

func (h *FetchStory) Handle(ctx context.Context, st *conversation.State) (string, error) {
	if st.StoryKey == "" {
		return "No JIRA story in this session yet. Create one first.\nExample: `Create JIRA story for this vulnerability.`", nil
	}

	issue, err := h.Tracker.GetIssue(ctx, st.StoryKey)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** — %s\n", issue.Key, issue.Summary)
	fmt.Fprintf(&b, "- Status: %s\n", issue.Status)
	fmt.Fprintf(&b, "- Progress: %d%%\n", issue.Progress.Percent)
	if st.EpicKey != "" {
		fmt.Fprintf(&b, "- Epic: %s\n", st.EpicKey)
	}
	if len(issue.Subtasks) > 0 {
		b.WriteString("\n**Sub-tasks:**\n")
		for _, sub := range issue.Subtasks {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", sub.Key, sub.Summary, sub.Status)
		}
	}
	return b.String(), nil
}

// UpdateStory pushes the current vulnerability fields and RHSA ID onto
// the existing session story.
type UpdateStory struct {
	Tracker *tracker.Client
	LLM     llm.Completer
}

func (h *UpdateStory) Name() string { return "jira_update" }

func (h *UpdateStory) Handle(ctx context.Context, st *conversation.State) (string, error) {
	if st.StoryKey == "" {
		return "No JIRA story in this session yet. Create one first.\nExample: `Create JIRA story for this vulnerability.`", nil
	}
	if len(st.VulnData) == 0 {
		return "No vulnerability data found. Please analyze the vulnerability first.\nExample: `Analyze Vuln ID 241573`", nil
	}

	meta, err := h.Tracker.CreateMeta(ctx, "Story")
	if err != nil {
		return "", err
	}

	fields := tracker.PrepareCustomFields(ctx, h.LLM, st.VulnData, meta)
	if st.RHSAID != "" {
		if fieldID := tracker.RHSAFieldID(meta); fieldID != "" {
			fields[fieldID] = st.RHSAID
		}
	}
	if len(fields) == 0 {
		return fmt.Sprintf("Nothing to update on %s: no vulnerability fields map to tracker fields.", st.StoryKey), nil
	}

	if err := h.Tracker.UpdateFields(ctx, st.StoryKey, fields); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated story %s with %d field(s).", st.StoryKey, len(fields)), nil
}
