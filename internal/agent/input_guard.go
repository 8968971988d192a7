package agent

import (
	"regexp"
)

// InputGuard scans incoming user messages for prompt-injection patterns
// before they reach the model. It never blocks on its own; Loop.Run decides
// what to do with the matches based on injectionAction.
type InputGuard struct {
	patterns []namedPattern
}

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// NewInputGuard builds an InputGuard with the default pattern set: common
// "ignore previous instructions" style jailbreak phrasing, attempts to
// impersonate the system/developer role, and requests to reveal the system
// prompt.
func NewInputGuard() *InputGuard {
	return &InputGuard{
		patterns: []namedPattern{
			{"ignore_instructions", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`)},
			{"disregard_instructions", regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions|rules|prompts)`)},
			{"role_impersonation", regexp.MustCompile(`(?i)\b(system|developer)\s*:\s*you\s+(are|must|will)\b`)},
			{"reveal_system_prompt", regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your\s+)?(system\s+prompt|instructions)`)},
			{"new_persona", regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(a|an)\b`)},
			{"dan_jailbreak", regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b`)},
		},
	}
}

// Scan returns the names of every pattern that matched message. An empty
// slice means no known injection pattern was found.
func (g *InputGuard) Scan(message string) []string {
	if g == nil || message == "" {
		return nil
	}
	var matches []string
	for _, p := range g.patterns {
		if p.re.MatchString(message) {
			matches = append(matches, p.name)
		}
	}
	return matches
}
