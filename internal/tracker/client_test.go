package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const createMetaBody = `{
	"projects": [{
		"issuetypes": [{
			"fields": {
				"customfield_10001": {"name": "Epic Link", "schema": {"type": "any", "custom": "com.pyxis.greenhopper.jira:gh-epic-link"}},
				"customfield_10002": {"name": "APP_CODE", "schema": {"type": "string", "custom": "com.atlassian.jira.plugin:textfield"}},
				"customfield_10003": {"name": "RHSA_ID", "schema": {"type": "string", "custom": "com.atlassian.jira.plugin:textfield"}},
				"customfield_10004": {"name": "DUE_DATE", "schema": {"type": "date", "custom": "com.atlassian.jira.plugin:datepicker"}},
				"customfield_10005": {"name": "SEVERITY", "schema": {"type": "option", "custom": "com.atlassian.jira.plugin:select"}}
			}
		}]
	}]
}`

func TestCreateStory_LinksEpic(t *testing.T) {
	var updates []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "ops@example.com" {
			t.Error("missing basic auth")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue":
			fmt.Fprint(w, `{"key": "SEC-42", "id": "10042"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/issue/createmeta":
			fmt.Fprint(w, createMetaBody)
		case r.Method == http.MethodPut && r.URL.Path == "/rest/api/2/issue/SEC-42":
			var body map[string]map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			updates = append(updates, body["fields"])
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ops@example.com", "token", "SEC")
	key, err := c.CreateStory(context.Background(), "SEC-1", "Patch 241573: OpenSSL Buffer Overflow", nil)
	if err != nil {
		t.Fatal(err)
	}
	if key != "SEC-42" {
		t.Errorf("key = %q", key)
	}
	if len(updates) != 1 {
		t.Fatalf("expected one epic-link update, got %d", len(updates))
	}
	if updates[0]["customfield_10001"] != "SEC-1" {
		t.Errorf("epic link update = %v", updates[0])
	}
}

func TestGetIssue_Progress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"key": "SEC-42",
			"fields": {
				"summary": "Patch 241573",
				"issuetype": {"name": "Story"},
				"status": {"name": "In Progress"},
				"aggregateprogress": {"progress": 3600, "total": 7200},
				"subtasks": [
					{"key": "SEC-43", "fields": {"summary": "Apply patch", "issuetype": {"name": "Sub-task"}, "status": {"name": "Done"}}}
				]
			}
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ops@example.com", "token", "SEC")
	issue, err := c.GetIssue(context.Background(), "SEC-42")
	if err != nil {
		t.Fatal(err)
	}
	if issue.Status != "In Progress" {
		t.Errorf("status = %q", issue.Status)
	}
	if issue.Progress.Percent != 50 {
		t.Errorf("percent = %d, want 50", issue.Progress.Percent)
	}
	if len(issue.Subtasks) != 1 || issue.Subtasks[0].Status != "Done" {
		t.Errorf("subtasks = %+v", issue.Subtasks)
	}
}

func TestListEpics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"issues": [
			{"key": "SEC-1", "fields": {"summary": "PAY - Payments", "issuetype": {"name": "Epic"}, "status": {"name": "Open"}}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ops@example.com", "token", "SEC")
	epics, err := c.ListEpics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(epics) != 1 || epics[0].Summary != "PAY - Payments" {
		t.Errorf("epics = %+v", epics)
	}
}

func TestEpicLinkFieldID(t *testing.T) {
	meta := map[string]FieldMeta{}
	if err := json.Unmarshal([]byte(`{
		"customfield_10001": {"name": "Epic Link", "schema": {"type": "any", "custom": "com.pyxis.greenhopper.jira:gh-epic-link"}},
		"summary": {"name": "Summary", "schema": {"type": "string", "custom": ""}}
	}`), &meta); err != nil {
		t.Fatal(err)
	}
	if got := EpicLinkFieldID(meta); got != "customfield_10001" {
		t.Errorf("EpicLinkFieldID = %q", got)
	}
}
