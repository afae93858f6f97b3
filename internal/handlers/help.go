package handlers

import (
	"context"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/conversation"
)

const helpMessage = `This chat app can do the following.

1. list vulnerabilities

2. Analyze vulnerability by ID (example: ` + "`Analyze Vuln ID 241573`" + `)

3. Create JIRA story for resolution progress (example: ` + "`Create JIRA story for this vulnerability.`" + `)

4. fetch jira story, sub-task details and its status/progress (example: ` + "`Fetch JIRA story status`" + `)

5. Update JIRA story with the latest vulnerability details

6. Query GraphDB (Gremlin API) for impact, blast radius and responsible teams

7. Generate Plan for fixing the vulnerability

8. Add details to the session (CVE IDs, system info, plan edits)

9. Patch the vulnerability and verify the fix

10. Generate report of how the patching is done.

Anything else is run as a shell command on the remediation host.`

// Help prints the capability list.
type Help struct{}

func (h *Help) Name() string { return "helper" }

func (h *Help) Handle(ctx context.Context, st *conversation.State) (string, error) {
	return helpMessage, nil
}
