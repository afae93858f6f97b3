package vulndb

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Well-known CSV columns. The table carries arbitrary extra columns which
// flow into tracker custom fields untouched.
const (
	ColVulnID   = "Vuln ID"
	ColVulnName = "Vuln Name"
	ColAppCode  = "App Code"
	ColAppName  = "App Name"
	ColRHSAID   = "RHSA ID"
)

// Table reads the local vulnerability CSV. The file is re-read per call;
// it is small and operators edit it between turns.
type Table struct {
	Path string
}

func NewTable(path string) *Table {
	return &Table{Path: path}
}

func (t *Table) rows() ([]map[string]string, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("opening vulnerability table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading vulnerability table: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	var rows []map[string]string
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Sample returns up to n vulnerabilities as "ID — Name" lines, randomly
// chosen when the table is larger than n.
func (t *Table) Sample(n int) ([]string, error) {
	rows, err := t.rows()
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, row := range rows {
		id := row[ColVulnID]
		name := row[ColVulnName]
		if id != "" && name != "" {
			lines = append(lines, fmt.Sprintf("%s — %s", id, name))
		}
	}

	if len(lines) <= n {
		return lines, nil
	}

	rand.Shuffle(len(lines), func(i, j int) {
		lines[i], lines[j] = lines[j], lines[i]
	})
	return lines[:n], nil
}

// GetByID returns the row for a Vuln ID, or nil when no row matches.
func (t *Table) GetByID(vulnID string) (map[string]string, error) {
	rows, err := t.rows()
	if err != nil {
		return nil, err
	}
	vulnID = strings.TrimSpace(vulnID)
	for _, row := range rows {
		if row[ColVulnID] == vulnID {
			return row, nil
		}
	}
	return nil, nil
}
