package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client fetches CVE and CSAF records from the security data REST API,
// with a local directory of CVE JSON files as an offline fallback.
type Client struct {
	Host    string
	LocalDB string
	HTTP    *http.Client
}

func NewClient(host, localDB string) *Client {
	return &Client{
		Host:    host,
		LocalDB: localDB,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalid request; returned %d for query: %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// CVEByAdvisory fetches every CVE record attached to an advisory. It
// returns the raw records plus the CVE IDs extracted from them. Records
// whose resource URL fails to fetch are skipped.
func (c *Client) CVEByAdvisory(ctx context.Context, advisoryID string) ([]json.RawMessage, []string, error) {
	query := fmt.Sprintf("%s/cve.json?advisory=%s", c.Host, url.QueryEscape(advisoryID))

	var index []struct {
		CVE         string `json:"CVE"`
		ResourceURL string `json:"resource_url"`
	}
	if err := c.getJSON(ctx, query, &index); err != nil {
		return nil, nil, err
	}
	if len(index) == 0 {
		return nil, nil, fmt.Errorf("no data returned for query: %s", query)
	}

	var records []json.RawMessage
	var cveIDs []string
	seen := make(map[string]bool)

	for _, entry := range index {
		if entry.ResourceURL == "" {
			continue
		}
		var record json.RawMessage
		if err := c.getJSON(ctx, entry.ResourceURL, &record); err != nil {
			log.Printf("Warning: failed to fetch CVE record %s: %v", entry.ResourceURL, err)
			continue
		}
		records = append(records, record)

		// CVE JSON carries its identifier in a "name" field.
		var named struct {
			Name string `json:"name"`
		}
		id := entry.CVE
		if err := json.Unmarshal(record, &named); err == nil && named.Name != "" {
			id = named.Name
		}
		if id != "" && !seen[id] {
			seen[id] = true
			cveIDs = append(cveIDs, id)
		}
	}

	return records, cveIDs, nil
}

// CSAFByAdvisory fetches the CSAF document for an advisory.
func (c *Client) CSAFByAdvisory(ctx context.Context, advisoryID string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/csaf/%s.json", c.Host, url.PathEscape(advisoryID))
	var doc json.RawMessage
	if err := c.getJSON(ctx, endpoint, &doc); err != nil {
		return nil, fmt.Errorf("fetching CSAF for %s: %w", advisoryID, err)
	}
	return doc, nil
}

// LocalCVEs reads CVE records from the local database directory. Missing
// or unparseable files are skipped with a warning.
func (c *Client) LocalCVEs(cveIDs []string) ([]json.RawMessage, error) {
	var records []json.RawMessage
	for _, id := range cveIDs {
		path := filepath.Join(c.LocalDB, id+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: CVE file not found: %s", path)
			continue
		}
		if !json.Valid(data) {
			log.Printf("Warning: invalid JSON in CVE file: %s", path)
			continue
		}
		records = append(records, json.RawMessage(data))
	}
	return records, nil
}
