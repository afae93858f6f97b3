package tracker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/NotYeshwanthReddy/agentic-cve-patcher/internal/llm"
)

// MapCSVToFields maps CSV column names to tracker custom field names. The
// model handles naming variations ("App Code" -> "APP_CODE"); on a bad
// reply the uppercase/underscore heuristic takes over. Only mappings to
// fields that actually exist are returned.
func MapCSVToFields(ctx context.Context, completer llm.Completer, csvKeys, fieldNames []string) map[string]string {
	prompt := fmt.Sprintf(
		"Map CSV column names to tracker custom field names.\n\n"+
			"CSV columns: %v\n"+
			"Tracker custom fields: %v\n\n"+
			"Return ONLY valid JSON mapping: {\"CSV_COLUMN_NAME\": \"FIELD_NAME\", ...}\n"+
			"Map each CSV column to its corresponding field. Skip fields that don't match.\n"+
			"Handle variations like 'App Code' -> 'APP_CODE', 'Crown Jewel Indicator' -> 'CROWN_JEWEL_INDICATOR'.",
		csvKeys, fieldNames)

	valid := make(map[string]bool, len(fieldNames))
	for _, name := range fieldNames {
		valid[name] = true
	}

	resp, err := completer.Complete(ctx, prompt)
	if err == nil {
		var mapping map[string]string
		if err := llm.DecodeJSON(resp, &mapping); err == nil {
			for csvKey, fieldName := range mapping {
				if !valid[fieldName] {
					delete(mapping, csvKey)
				}
			}
			if len(mapping) > 0 {
				return mapping
			}
		}
	}

	log.Printf("Warning: model field mapping failed, using fallback mapping")
	return heuristicMapping(csvKeys, valid)
}

// heuristicMapping upper-cases and underscores CSV column names and keeps
// the ones that match an existing field.
func heuristicMapping(csvKeys []string, valid map[string]bool) map[string]string {
	mapping := make(map[string]string)
	replacer := strings.NewReplacer(" ", "_", "(", "_", ")", "", "/", "_")
	for _, csvKey := range csvKeys {
		fieldName := replacer.Replace(strings.ToUpper(csvKey))
		if valid[fieldName] {
			mapping[csvKey] = fieldName
		}
	}
	return mapping
}

// PrepareCustomFields converts a vulnerability row into a field-id keyed
// update payload, honoring field types from create meta.
func PrepareCustomFields(ctx context.Context, completer llm.Completer, vulnData map[string]string, meta map[string]FieldMeta) map[string]any {
	csvKeys := make([]string, 0, len(vulnData))
	for k := range vulnData {
		csvKeys = append(csvKeys, k)
	}
	sort.Strings(csvKeys)

	fieldNames := make([]string, 0, len(meta))
	for _, f := range meta {
		fieldNames = append(fieldNames, f.Name)
	}
	sort.Strings(fieldNames)

	mapping := MapCSVToFields(ctx, completer, csvKeys, fieldNames)

	fields := make(map[string]any)
	for csvKey, fieldName := range mapping {
		value := vulnData[csvKey]
		if value == "" || strings.EqualFold(value, "nan") || strings.EqualFold(value, "none") {
			continue
		}
		for fieldID, f := range meta {
			if f.Name != fieldName {
				continue
			}
			switch {
			case f.Schema.Type == "date" && strings.Contains(value, "/"):
				if ts, err := time.Parse("1/2/2006", value); err == nil {
					fields[fieldID] = ts.Format("2006-01-02")
				} else {
					fields[fieldID] = value
				}
			case f.Schema.Type == "option":
				fields[fieldID] = map[string]any{"value": value}
			default:
				fields[fieldID] = value
			}
			break
		}
	}
	return fields
}
