// Package event builds wire payloads from resolved variable sets by
// interpolating {identifier} placeholders in the tracker's output mappings.
package event

import (
	"regexp"
	"strings"

	"github.com/trlogic/tracker-web/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{.*?\}`)

// Build maps the resolved variables into the tracker's payload. Pure and
// synchronous: undefined references interpolate as "", and a mapping that is
// exactly a variable name with no placeholders passes the raw typed value
// through unchanged. The key is selected from the built output, so a keyed
// mapping with a composed template keys on the interpolated result.
func Build(tracker domain.Tracker, variables map[string]any) *domain.Payload {
	out := make(map[string]any, len(tracker.Event.VariableMappings))
	for key, template := range tracker.Event.VariableMappings {
		out[key] = resolveMapping(template, variables)
	}

	return &domain.Payload{
		Name:      tracker.Event.Name,
		Key:       domain.String(out[tracker.Event.KeyMapping]),
		Variables: out,
	}
}

func resolveMapping(template string, variables map[string]any) any {
	matches := placeholderPattern.FindAllString(template, -1)

	if len(matches) == 0 {
		if value, ok := variables[template]; ok {
			return value
		}
		return template
	}

	resolved := template
	for _, match := range matches {
		name := match[1 : len(match)-1]
		resolved = strings.Replace(resolved, match, domain.String(variables[name]), 1)
	}
	return resolved
}
