// Package intent implements the Intent Engine (spec.md §4.6): a
// round-structured inference loop that asks the engine to guess which
// ability the user is working toward, tolerant of the engine's loose
// JSON formatting.
package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Icon is one candidate ability surfaced by a round of inference,
// schema "brood.intent_icons" (spec.md §6).
type Icon struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// IconState is the parsed result of one intent_icons payload.
type IconState struct {
	Icons     []Icon `json:"icons"`
	Truncated bool   `json:"-"`
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// ParseIconState decodes the engine's intent_icons text, tolerating the
// formatting looseness spec.md §4.6 documents: markdown code fences,
// the payload nested one level under "data"/"result", trailing
// commas, and mid-stream truncation.
func ParseIconState(text string) (IconState, error) {
	raw := extractJSON(text)
	raw = trailingCommaRe.ReplaceAll(raw, []byte("$1"))

	if state, ok := decodeIconState(raw); ok {
		return state, nil
	}

	// Well-formed decode failed: try closing whatever braces/brackets
	// are still open, so a mid-stream cutoff still yields whatever
	// icon entries were fully emitted before the cut.
	closed := closeUnbalanced(trimDanglingComma(raw))
	if state, ok := decodeIconState(closed); ok {
		state.Truncated = true
		return state, nil
	}
	return IconState{}, errUnparseable
}

var errUnparseable = errors.New("intent: could not parse icon state")

// decodeIconState attempts a strict decode of raw, unwrapping one
// optional "result"/"data" nesting level.
func decodeIconState(raw []byte) (IconState, bool) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return IconState{}, false
	}

	payload := generic
	for _, key := range []string{"result", "data"} {
		if nested, ok := generic[key]; ok {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(nested, &inner); err == nil {
				payload = inner
			}
		}
	}

	iconsRaw, ok := payload["icons"]
	if !ok {
		return IconState{}, false
	}
	var icons []Icon
	if err := json.Unmarshal(iconsRaw, &icons); err != nil {
		return IconState{}, false
	}
	return IconState{Icons: icons}, true
}

// extractJSON pulls the JSON object out of text, preferring a fenced
// code block when present, otherwise the outermost {...} span when
// one closes cleanly, and otherwise everything from the first '{' to
// the end of the string (a genuinely truncated payload never closes).
func extractJSON(text string) []byte {
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		return []byte(m[1])
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return []byte(text)
	}
	if end := strings.LastIndexByte(text, '}'); end > start {
		candidate := []byte(text[start : end+1])
		if _, ok := decodeIconState(trailingCommaRe.ReplaceAll(candidate, []byte("$1"))); ok {
			return candidate
		}
	}
	return []byte(text[start:])
}

func trimDanglingComma(raw []byte) []byte {
	return bytes.TrimRight(bytes.TrimSpace(raw), ",")
}

// closeUnbalanced appends whatever closing braces/brackets are needed
// to balance raw, ignoring bracket characters inside string literals.
func closeUnbalanced(raw []byte) []byte {
	var stack []byte
	inString := false
	escaped := false
	for _, c := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out := append([]byte(nil), raw...)
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i])
	}
	return out
}
