package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/graphdb"
	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
)

const graphPromptFmt = `User query: '%s'
Determine the graph operation requested:
- 'analyze_vulnerability_impact': Analyze vulnerability impact by CVE ID
- 'blast_radius_hosts': Calculate blast radius by host IDs
- 'blast_radius_apps': Calculate blast radius by app IDs
- 'blast_radius_cve': Calculate blast radius by CVE ID
- 'responsible_teams_host': Get responsible teams for host ID
- 'responsible_teams_app': Get responsible teams for app ID
- 'comprehensive_analysis': Comprehensive CVE analysis with blast radius and teams
Extract necessary parameters:
- For CVE operations: extract CVE ID (e.g., 'CVE-2022-3602')
- For host/app operations: extract IDs as comma-separated list
- For hops: extract number (default 3 if not specified)
Reply with ONLY valid JSON: {"operation": "<operation>", "cve_id": "<cve_id or empty>", "host_ids": ["<id>"], "app_ids": ["<id>"], "hops": <number>}`

type graphRequest struct {
	Operation string   `json:"operation"`
	CVEID     string   `json:"cve_id"`
	HostIDs   []string `json:"host_ids"`
	AppIDs    []string `json:"app_ids"`
	Hops      int      `json:"hops"`
}

// QueryGraph turns a free-text question into one graph traversal and
// renders the result.
type QueryGraph struct {
	Graph *graphdb.Graph
	LLM   llm.Completer
}

func (h *QueryGraph) Name() string { return "graph_query" }

func (h *QueryGraph) Handle(ctx context.Context, st *conversation.State) (string, error) {
	resp, err := h.LLM.Complete(ctx, fmt.Sprintf(graphPromptFmt, st.UserInput))
	if err != nil {
		return fmt.Sprintf("Error parsing request: %v", err), nil
	}
	var req graphRequest
	if err := llm.DecodeJSON(resp, &req); err != nil {
		return fmt.Sprintf("Error parsing request: %v", err), nil
	}
	req.CVEID = strings.TrimSpace(req.CVEID)
	if req.Hops <= 0 {
		req.Hops = 3
	}

	var result map[string]any
	switch req.Operation {
	case "analyze_vulnerability_impact":
		if req.CVEID == "" {
			return "CVE ID is required for vulnerability impact analysis.", nil
		}
		result, err = h.Graph.AnalyzeVulnerabilityImpact(req.CVEID, req.Hops)

	case "blast_radius_hosts":
		if len(req.HostIDs) == 0 {
			return "Host IDs are required for blast radius calculation.", nil
		}
		result, err = h.Graph.BlastRadiusByHosts(req.HostIDs, req.Hops)

	case "blast_radius_apps":
		if len(req.AppIDs) == 0 {
			return "App IDs are required for blast radius calculation.", nil
		}
		result, err = h.Graph.BlastRadiusByApps(req.AppIDs, req.Hops)

	case "blast_radius_cve":
		if req.CVEID == "" {
			return "CVE ID is required for blast radius calculation.", nil
		}
		result, err = h.Graph.BlastRadiusByCVE(req.CVEID, req.Hops)

	case "responsible_teams_host":
		if len(req.HostIDs) == 0 {
			return "Host ID is required to get responsible teams.", nil
		}
		var teams []string
		if len(req.HostIDs) > 1 {
			teams, err = h.Graph.TeamsForHosts(req.HostIDs)
		} else {
			teams, err = h.Graph.TeamForHost(req.HostIDs[0])
		}
		if err == nil {
			result = map[string]any{"host_ids": req.HostIDs, "teams": teams, "count": len(teams)}
		}

	case "responsible_teams_app":
		if len(req.AppIDs) == 0 {
			return "App ID is required to get responsible teams.", nil
		}
		var teams []string
		if len(req.AppIDs) > 1 {
			teams, err = h.Graph.TeamsForApps(req.AppIDs)
		} else {
			teams, err = h.Graph.TeamForApp(req.AppIDs[0])
		}
		if err == nil {
			result = map[string]any{"app_ids": req.AppIDs, "teams": teams, "count": len(teams)}
		}

	case "comprehensive_analysis":
		if req.CVEID == "" {
			return "CVE ID is required for comprehensive analysis.", nil
		}
		result, err = h.Graph.ComprehensiveCVEAnalysis(req.CVEID, req.Hops)

	default:
		return fmt.Sprintf("Unknown operation: %s", req.Operation), nil
	}
	if err != nil {
		return "", fmt.Errorf("executing graph operation %s: %w", req.Operation, err)
	}

	st.GraphResult = result
	return graphdb.FormatResult(result, operationTitle(req.Operation)), nil
}

func operationTitle(op string) string {
	words := strings.Split(op, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
