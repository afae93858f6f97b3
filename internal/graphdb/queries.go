package graphdb

import (
	"fmt"
	"log"
	"sort"
)

// Graph runs infrastructure traversals against a dependency graph with
// Vulnerability, Package, Host, Application, Service, System and Team
// vertices. Edges: VULNERABLE_TO, INSTALLED_ON, HOSTS, DEPLOYS,
// DEPENDS_ON, PART_OF, MONITORS, OWNS.
type Graph struct {
	DB Submitter
}

func NewGraph(db Submitter) *Graph {
	return &Graph{DB: db}
}

func toIDs(items []any) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, fmt.Sprint(it))
	}
	return ids
}

// selectIDs pulls an aggregated id list out of a select() result row.
func selectIDs(row map[string]any, key string) []string {
	items, _ := row[key].([]any)
	return toIDs(items)
}

func counts(result map[string]any, keys ...string) map[string]any {
	c := make(map[string]any, len(keys))
	for _, k := range keys {
		ids, _ := result[k].([]string)
		c[k] = len(ids)
	}
	return c
}

// AnalyzeVulnerabilityImpact walks from a CVE through packages, hosts,
// applications and services, then downstream dependencies up to hops.
func (g *Graph) AnalyzeVulnerabilityImpact(cveID string, hops int) (map[string]any, error) {
	q := fmt.Sprintf(`
	g.V().has('Vulnerability','cve_id',cve).as('v').
	  in('VULNERABLE_TO').dedup().aggregate('pkgs').
	  out('INSTALLED_ON').dedup().aggregate('hosts').
	  out('HOSTS').dedup().aggregate('apps').
	  out('DEPLOYS').dedup().aggregate('svcs').
	  repeat(out('DEPENDS_ON')).emit().until(loops().is(%d)).dedup().aggregate('down').
	  select('pkgs','hosts','apps','svcs','down').
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold())
	`, hops)

	rows, err := g.DB.Submit(q, map[string]any{"cve": cveID})
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"cve_id":              cveID,
		"packages":            []string{},
		"hosts":               []string{},
		"applications":        []string{},
		"services":            []string{},
		"downstream_services": []string{},
	}
	if len(rows) > 0 {
		if row, ok := rows[0].(map[string]any); ok {
			result["packages"] = selectIDs(row, "pkgs")
			result["hosts"] = selectIDs(row, "hosts")
			result["applications"] = selectIDs(row, "apps")
			result["services"] = selectIDs(row, "svcs")
			result["downstream_services"] = selectIDs(row, "down")
		}
	}
	result["counts"] = counts(result, "packages", "hosts", "applications", "services", "downstream_services")
	return result, nil
}

// BlastRadiusByHosts expands from hosts to the applications, services,
// downstream services and systems they can reach.
func (g *Graph) BlastRadiusByHosts(hostIDs []string, hops int) (map[string]any, error) {
	q := fmt.Sprintf(`
	g.V().hasId(within(hids)).dedup().aggregate('hosts').
	  select('hosts').unfold().out('HOSTS').dedup().aggregate('apps').
	  select('apps').unfold().out('DEPLOYS').dedup().aggregate('svcs').
	  select('svcs').unfold().
	    repeat(out('DEPENDS_ON')).emit().until(loops().is(%d)).dedup().aggregate('down').
	  select('hosts').unfold().out('PART_OF').dedup().aggregate('systems').
	  select('hosts','apps','svcs','down','systems').
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold())
	`, hops)

	rows, err := g.DB.Submit(q, map[string]any{"hids": hostIDs})
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"hosts":               []string{},
		"applications":        []string{},
		"services":            []string{},
		"downstream_services": []string{},
		"systems":             []string{},
	}
	if len(rows) > 0 {
		if row, ok := rows[0].(map[string]any); ok {
			result["hosts"] = selectIDs(row, "hosts")
			result["applications"] = selectIDs(row, "apps")
			result["services"] = selectIDs(row, "svcs")
			result["downstream_services"] = selectIDs(row, "down")
			result["systems"] = selectIDs(row, "systems")
		}
	}
	result["counts"] = counts(result, "hosts", "applications", "services", "downstream_services", "systems")
	return result, nil
}

// BlastRadiusByApps expands from applications to services and their
// downstream dependencies.
func (g *Graph) BlastRadiusByApps(appIDs []string, hops int) (map[string]any, error) {
	q := fmt.Sprintf(`
	g.V().hasId(within(aids)).dedup().aggregate('apps').
	  select('apps').unfold().out('DEPLOYS').dedup().aggregate('svcs').
	  select('svcs').unfold().
	    repeat(out('DEPENDS_ON')).emit().until(loops().is(%d)).dedup().aggregate('down').
	  select('apps','svcs','down').
	    by(unfold().id().fold()).
	    by(unfold().id().fold()).
	    by(unfold().id().fold())
	`, hops)

	rows, err := g.DB.Submit(q, map[string]any{"aids": appIDs})
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"applications":        []string{},
		"services":            []string{},
		"downstream_services": []string{},
	}
	if len(rows) > 0 {
		if row, ok := rows[0].(map[string]any); ok {
			result["applications"] = selectIDs(row, "apps")
			result["services"] = selectIDs(row, "svcs")
			result["downstream_services"] = selectIDs(row, "down")
		}
	}
	result["counts"] = counts(result, "applications", "services", "downstream_services")
	return result, nil
}

// BlastRadiusByCVE is impact analysis seeded from a CVE.
func (g *Graph) BlastRadiusByCVE(cveID string, hops int) (map[string]any, error) {
	return g.AnalyzeVulnerabilityImpact(cveID, hops)
}

// TeamForHost returns the teams monitoring a host.
func (g *Graph) TeamForHost(hostID string) ([]string, error) {
	rows, err := g.DB.Submit("g.V().hasId(hid).in('MONITORS').dedup().id()", map[string]any{"hid": hostID})
	if err != nil {
		return nil, err
	}
	return toIDs(rows), nil
}

// TeamForApp returns the teams owning an application.
func (g *Graph) TeamForApp(appID string) ([]string, error) {
	rows, err := g.DB.Submit("g.V().hasId(aid).in('OWNS').dedup().id()", map[string]any{"aid": appID})
	if err != nil {
		return nil, err
	}
	return toIDs(rows), nil
}

// TeamsForHosts returns the teams monitoring any of the hosts.
func (g *Graph) TeamsForHosts(hostIDs []string) ([]string, error) {
	rows, err := g.DB.Submit("g.V().hasId(within(hids)).in('MONITORS').dedup().id()", map[string]any{"hids": hostIDs})
	if err != nil {
		return nil, err
	}
	return toIDs(rows), nil
}

// TeamsForApps returns the teams owning any of the applications.
func (g *Graph) TeamsForApps(appIDs []string) ([]string, error) {
	rows, err := g.DB.Submit("g.V().hasId(within(aids)).in('OWNS').dedup().id()", map[string]any{"aids": appIDs})
	if err != nil {
		return nil, err
	}
	return toIDs(rows), nil
}

// ComprehensiveCVEAnalysis runs impact analysis for a CVE and then fans
// out: per-host and per-app blast radius plus team ownership for every
// affected host and application. Per-item failures are recorded in the
// result instead of aborting the whole analysis.
func (g *Graph) ComprehensiveCVEAnalysis(cveID string, hops int) (map[string]any, error) {
	impact, err := g.AnalyzeVulnerabilityImpact(cveID, hops)
	if err != nil {
		return nil, fmt.Errorf("impact analysis for %s: %w", cveID, err)
	}

	hosts, _ := impact["hosts"].([]string)
	apps, _ := impact["applications"].([]string)

	hostBlast := map[string]any{}
	appBlast := map[string]any{}
	hostTeams := map[string]any{}
	appTeams := map[string]any{}
	unique := map[string]bool{}

	for _, hostID := range hosts {
		if radius, err := g.BlastRadiusByHosts([]string{hostID}, hops); err != nil {
			log.Printf("Warning: blast radius for host %s: %v", hostID, err)
			hostBlast[hostID] = map[string]any{"error": err.Error()}
		} else {
			hostBlast[hostID] = radius
		}
		if teams, err := g.TeamForHost(hostID); err != nil {
			log.Printf("Warning: teams for host %s: %v", hostID, err)
			hostTeams[hostID] = map[string]any{"error": err.Error()}
		} else {
			hostTeams[hostID] = teams
			for _, t := range teams {
				unique[t] = true
			}
		}
	}

	for _, appID := range apps {
		if radius, err := g.BlastRadiusByApps([]string{appID}, hops); err != nil {
			log.Printf("Warning: blast radius for app %s: %v", appID, err)
			appBlast[appID] = map[string]any{"error": err.Error()}
		} else {
			appBlast[appID] = radius
		}
		if teams, err := g.TeamForApp(appID); err != nil {
			log.Printf("Warning: teams for app %s: %v", appID, err)
			appTeams[appID] = map[string]any{"error": err.Error()}
		} else {
			appTeams[appID] = teams
			for _, t := range teams {
				unique[t] = true
			}
		}
	}

	uniqueTeams := make([]string, 0, len(unique))
	for t := range unique {
		uniqueTeams = append(uniqueTeams, t)
	}
	sort.Strings(uniqueTeams)

	return map[string]any{
		"cve_id":               cveID,
		"vulnerability_impact": impact,
		"host_blast_radius":    hostBlast,
		"app_blast_radius":     appBlast,
		"host_team_mapping":    hostTeams,
		"app_team_mapping":     appTeams,
		"summary": map[string]any{
			"total_affected_hosts":    len(hosts),
			"total_affected_apps":     len(apps),
			"total_responsible_teams": len(uniqueTeams),
			"unique_teams":            uniqueTeams,
		},
	}, nil
}
