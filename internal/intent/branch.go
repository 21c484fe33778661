package intent

import "sort"

// Token is the user's reply to a surfaced branch suggestion
// (spec.md §4.6: "the user answers yes, no, or maybe to a proposed
// branch").
type Token int

const (
	TokenNone Token = iota
	TokenYes
	TokenNo
	TokenMaybe
)

// ParseToken maps loose user text to a Token; anything unrecognized is
// TokenNone (neither accepts nor rejects the suggestion).
func ParseToken(s string) Token {
	switch s {
	case "y", "yes", "yeah", "yep":
		return TokenYes
	case "n", "no", "nope":
		return TokenNo
	case "m", "maybe", "unsure", "?":
		return TokenMaybe
	default:
		return TokenNone
	}
}

// RankedIcons sorts icons by descending confidence, stable on ties so
// repeated rounds don't reorder equally-confident candidates (spec.md
// §4.6 "ranking is stable across rounds").
func RankedIcons(icons []Icon) []Icon {
	out := append([]Icon(nil), icons...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// TopBranch returns the single highest-ranked icon, or false if none
// exist.
func TopBranch(icons []Icon) (Icon, bool) {
	ranked := RankedIcons(icons)
	if len(ranked) == 0 {
		return Icon{}, false
	}
	return ranked[0], true
}

// ApplyToken resolves a user's token against the currently suggested
// branch: Yes locks it, No excludes it from future ranking within the
// round, Maybe leaves it pending for the next round (spec.md §4.6
// "lock/exclude/defer").
func ApplyToken(tok Token, suggested Icon, excluded map[string]bool) (locked string, deferred bool) {
	switch tok {
	case TokenYes:
		return suggested.Key, false
	case TokenNo:
		excluded[suggested.Key] = true
		return "", false
	case TokenMaybe:
		return "", true
	default:
		return "", true
	}
}
