package graphdb

import (
	"fmt"
	"strings"
)

var idCategories = []string{"packages", "hosts", "applications", "services", "downstream_services", "systems"}

func title(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// stringList tolerates both fresh results ([]string) and results that
// round-tripped through JSON state ([]any).
func stringList(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		return toIDs(items)
	}
	return nil
}

// FormatResult renders a traversal result as markdown: counts and
// summary first, then the id lists, trimmed to keep chat output usable.
func FormatResult(result map[string]any, operation string) string {
	if errMsg, ok := result["error"]; ok {
		return fmt.Sprintf("Error: %v", errMsg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s Results:**\n", operation)

	if cveID, ok := result["cve_id"].(string); ok && cveID != "" {
		fmt.Fprintf(&b, "CVE ID: %s\n\n", cveID)
	}

	if c, ok := result["counts"].(map[string]any); ok {
		b.WriteString("**Counts:**\n")
		for _, key := range idCategories {
			if v, ok := c[key]; ok {
				fmt.Fprintf(&b, "- %s: %v\n", title(key), v)
			}
		}
		b.WriteString("\n")
	}

	if s, ok := result["summary"].(map[string]any); ok {
		b.WriteString("**Summary:**\n")
		fmt.Fprintf(&b, "- Total Affected Hosts: %v\n", s["total_affected_hosts"])
		fmt.Fprintf(&b, "- Total Affected Apps: %v\n", s["total_affected_apps"])
		fmt.Fprintf(&b, "- Total Responsible Teams: %v\n", s["total_responsible_teams"])
		if teams := stringList(s["unique_teams"]); len(teams) > 0 {
			shown := teams
			if len(shown) > 10 {
				shown = shown[:10]
			}
			fmt.Fprintf(&b, "- Unique Teams: %s", strings.Join(shown, ", "))
			if len(teams) > 10 {
				fmt.Fprintf(&b, " (and %d more)", len(teams)-10)
			}
			b.WriteString("\n")
		}
	}

	if teams := stringList(result["teams"]); len(teams) > 0 {
		fmt.Fprintf(&b, "\n**Teams:**\n%s\n", strings.Join(teams, ", "))
	}

	for _, key := range idCategories {
		ids := stringList(result[key])
		if len(ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n**%s:**\n", title(key))
		shown := ids
		if len(shown) > 20 {
			shown = shown[:20]
		}
		b.WriteString(strings.Join(shown, ", "))
		if len(ids) > 20 {
			fmt.Fprintf(&b, " (and %d more)", len(ids)-20)
		}
		b.WriteString("\n")
	}

	return b.String()
}
