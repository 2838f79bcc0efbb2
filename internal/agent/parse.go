package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/HarshS99/lostandfound/internal/model"
)

// fragmentPattern locates the first JSON-looking object or array embedded in
// free text, for answers wrapped in prose or code fences.
var fragmentPattern = regexp.MustCompile(`(?s)\{.*\}|\[.*\]`)

// parsePayload applies the fallback chain for unreliable service answers:
// strict JSON first, then a relaxed pass that normalizes Python-style
// literals, then the same two passes over the first bracketed fragment found
// in the text. Returns nil when nothing parses.
func parsePayload(text string) any {
	candidates := []string{text, relaxLiteral(text)}
	if frag := fragmentPattern.FindString(text); frag != "" {
		candidates = append(candidates, frag, relaxLiteral(frag))
	}

	for _, c := range candidates {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(c)), &v); err == nil {
			return v
		}
	}
	return nil
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// relaxLiteral rewrites the Python-literal habits these services fall into:
// single-quoted strings, capitalized booleans, None, trailing commas.
func relaxLiteral(text string) string {
	s := strings.ReplaceAll(text, "'", `"`)
	s = strings.ReplaceAll(s, "True", "true")
	s = strings.ReplaceAll(s, "False", "false")
	s = strings.ReplaceAll(s, "None", "null")
	return trailingComma.ReplaceAllString(s, "$1")
}

// parseFloats shapes a payload into a numeric vector. Non-numeric elements
// void the whole vector: a partially numeric answer is not a usable
// embedding.
func parseFloats(text string) []float64 {
	raw, ok := parsePayload(text).([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		out = append(out, f)
	}
	return out
}

// parseCandidates shapes a payload into match candidates, field by field so
// one malformed entry cannot sink the rest.
func parseCandidates(text string) []model.Candidate {
	raw, ok := parsePayload(text).([]any)
	if !ok {
		return nil
	}
	out := make([]model.Candidate, 0, len(raw))
	for _, v := range raw {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.Candidate{
			ID:           int64(asFloat(entry["id"])),
			Title:        asString(entry["title"]),
			Description:  asString(entry["description"]),
			Score:        asFloat(entry["score"]),
			Reasons:      asStrings(entry["reasons"]),
			OwnerContact: asString(entry["owner_contact"]),
		})
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func asStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
