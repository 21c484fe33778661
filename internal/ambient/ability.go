package ambient

import (
	"regexp"
	"strings"
)

// abilityAllowlist is the canonical ability-name allowlist spec.md §4.5
// requires: "a suggested ability is accepted only if it canonicalizes to
// a name on a fixed allowlist; anything else is dropped silently."
var abilityAllowlist = map[string]string{
	"blend":        "blend",
	"combine":      "blend",
	"swap dna":     "swap_dna",
	"swap_dna":     "swap_dna",
	"dna swap":     "swap_dna",
	"bridge":       "bridge",
	"argue":        "argue",
	"extract rule": "extract_rule",
	"extract_rule": "extract_rule",
	"odd one out":  "odd_one_out",
	"odd_one_out":  "odd_one_out",
	"triforce":     "triforce",
	"recast":       "recast",
	"diagnose":     "diagnose",
	"recreate":     "recreate",
	"describe":     "describe",
}

var nextActionsRe = regexp.MustCompile(`(?i)NEXT ACTIONS:\s*(.+)`)

// ParseSuggestedAbility extracts and canonicalizes the single ability
// name the engine's canvas_context text names after a "NEXT ACTIONS:"
// marker (spec.md §4.5 step 4). Returns ok=false when ambient is
// disabled, no marker is present, or the named ability is not on the
// allowlist.
func ParseSuggestedAbility(text string, enabled bool) (string, bool) {
	if !enabled {
		return "", false
	}
	m := nextActionsRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	raw := strings.ToLower(strings.TrimSpace(m[1]))
	raw = strings.Trim(raw, ".!")
	// Only the first comma/newline-separated token is the suggestion.
	if i := strings.IndexAny(raw, ",\n"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	canon, ok := abilityAllowlist[raw]
	if !ok {
		return "", false
	}
	return canon, true
}
