package remedy

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStageAccessors(t *testing.T) {
	s := Stage{
		"command":         "rpm -q openssl",
		"description":     "check version",
		"expected_result": "openssl-3.0.7 or later",
	}
	if s.Command() != "rpm -q openssl" {
		t.Errorf("Command() = %q", s.Command())
	}
	if s.Expected() != "openssl-3.0.7 or later" {
		t.Errorf("Expected() = %q", s.Expected())
	}

	// "expected" spelling wins when both are present.
	s["expected"] = "patched"
	if s.Expected() != "patched" {
		t.Errorf("Expected() = %q, want patched", s.Expected())
	}
}

func TestStageSubSteps(t *testing.T) {
	s := Stage{
		"disk_space":   map[string]any{"command": "df -h /"},
		"connectivity": map[string]any{"command": "ping -c1 mirror"},
		"note":         "not a step",
	}
	names, subs := s.SubSteps()
	if !reflect.DeepEqual(names, []string{"connectivity", "disk_space"}) {
		t.Errorf("names = %v, want sorted sub-step names", names)
	}
	if subs["disk_space"].Command() != "df -h /" {
		t.Errorf("sub-step command = %q", subs["disk_space"].Command())
	}
}

func TestPlanStageNames_CanonicalOrder(t *testing.T) {
	p := Plan{
		"verify_fix":        Stage{},
		"custom_cleanup":    Stage{},
		"check_packages":    Stage{},
		"apply_remediation": Stage{},
	}
	got := p.StageNames()
	want := []string{"check_packages", "apply_remediation", "verify_fix", "custom_cleanup"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StageNames() = %v, want %v", got, want)
	}
}

func TestSaveLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	p := Plan{
		"apply_remediation": Stage{"command": "dnf update openssl -y", "type": "update"},
	}
	if err := SavePlan(path, p); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPlan(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded["apply_remediation"].Command() != "dnf update openssl -y" {
		t.Errorf("loaded command = %q", loaded["apply_remediation"].Command())
	}
}

func TestLoadPlan_Missing(t *testing.T) {
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing plan file")
	}
}

func TestMergeMechanical_PreservesUntouchedStages(t *testing.T) {
	existing := Plan{
		"check_packages":    Stage{"command": "rpm -q openssl", "description": "check"},
		"apply_remediation": Stage{"command": "dnf update openssl -y", "type": "update"},
		"verify_fix":        Stage{"command": "rpm -q openssl", "expected_result": "3.0.7"},
	}
	changes := Plan{
		"apply_remediation": Stage{"command": "dnf update openssl-libs -y"},
	}

	merged := MergeMechanical(existing, changes)

	if merged["apply_remediation"].Command() != "dnf update openssl-libs -y" {
		t.Errorf("changed stage not applied: %q", merged["apply_remediation"].Command())
	}
	// Untouched keys inside the changed stage survive.
	if merged["apply_remediation"]["type"] != "update" {
		t.Errorf("sibling key lost in merge: %v", merged["apply_remediation"])
	}
	// Untouched stages survive unchanged.
	if !reflect.DeepEqual(merged["check_packages"], existing["check_packages"]) {
		t.Error("check_packages changed by merge")
	}
	if !reflect.DeepEqual(merged["verify_fix"], existing["verify_fix"]) {
		t.Error("verify_fix changed by merge")
	}
	// Original plan untouched.
	if existing["apply_remediation"].Command() != "dnf update openssl -y" {
		t.Error("merge mutated the existing plan")
	}
}

func TestMergeMechanical_NestedMaps(t *testing.T) {
	existing := Plan{
		"pre_checks": Stage{
			"disk_space":   map[string]any{"command": "df -h /", "description": "space"},
			"connectivity": map[string]any{"command": "ping -c1 mirror"},
		},
	}
	changes := Plan{
		"pre_checks": Stage{
			"disk_space": map[string]any{"command": "df -h /var"},
		},
	}

	merged := MergeMechanical(existing, changes)
	_, subs := merged["pre_checks"].SubSteps()

	if subs["disk_space"].Command() != "df -h /var" {
		t.Errorf("nested change not applied: %q", subs["disk_space"].Command())
	}
	if subs["disk_space"].Description() != "space" {
		t.Error("nested sibling key lost")
	}
	if subs["connectivity"].Command() != "ping -c1 mirror" {
		t.Error("untouched sub-step lost")
	}
}

type erroringLLM struct{}

func (erroringLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestMergePlans_FallsBackToMechanical(t *testing.T) {
	existing := Plan{
		"check_packages": Stage{"command": "rpm -q openssl"},
		"verify_fix":     Stage{"command": "rpm -q openssl"},
	}
	changes := Plan{
		"check_packages": Stage{"command": "rpm -qa | grep openssl"},
	}

	merged := MergePlans(context.Background(), erroringLLM{}, existing, changes, "change the check command")

	if merged["check_packages"].Command() != "rpm -qa | grep openssl" {
		t.Errorf("change not applied: %q", merged["check_packages"].Command())
	}
	if merged["verify_fix"].Command() != "rpm -q openssl" {
		t.Error("untouched stage lost")
	}
}

func TestMergePlans_EmptyExistingAdoptsChanges(t *testing.T) {
	changes := Plan{"apply_remediation": Stage{"command": "dnf update -y"}}
	merged := MergePlans(context.Background(), erroringLLM{}, Plan{}, changes, "")
	if !reflect.DeepEqual(merged, changes) {
		t.Errorf("merged = %v, want changes adopted as plan", merged)
	}
}
