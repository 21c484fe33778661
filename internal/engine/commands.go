package engine

import "fmt"

// Commands builds the fixed set of wire commands spec.md §6 names.
// Paths that may contain whitespace are quoted and backslash-escaped,
// except /describe, which spec.md explicitly calls out as taking a
// plain unquoted argument.
type Commands struct{ s *Session }

func NewCommands(s *Session) Commands { return Commands{s: s} }

func (c Commands) Use(path string) error {
	return c.s.WriteLine(fmt.Sprintf("/use %s", quoteArg(path)))
}

func (c Commands) TextModel(name string) error {
	return c.s.WriteLine(fmt.Sprintf("/text_model %s", quoteArg(name)))
}

func (c Commands) ImageModel(name string) error {
	return c.s.WriteLine(fmt.Sprintf("/image_model %s", quoteArg(name)))
}

func (c Commands) Describe(path string) error {
	return c.s.WriteLine(fmt.Sprintf("/describe %s", path))
}

func (c Commands) Blend(a, b string) error {
	return c.s.WriteLine(fmt.Sprintf("/blend %s %s", quoteArg(a), quoteArg(b)))
}

func (c Commands) SwapDNA(structure, surface string) error {
	return c.s.WriteLine(fmt.Sprintf("/swap_dna %s %s", quoteArg(structure), quoteArg(surface)))
}

func (c Commands) Bridge(a, b string) error {
	return c.s.WriteLine(fmt.Sprintf("/bridge %s %s", quoteArg(a), quoteArg(b)))
}

func (c Commands) Argue(a, b string) error {
	return c.s.WriteLine(fmt.Sprintf("/argue %s %s", quoteArg(a), quoteArg(b)))
}

func (c Commands) ExtractRule(a, b, c2 string) error {
	return c.s.WriteLine(fmt.Sprintf("/extract_rule %s %s %s", quoteArg(a), quoteArg(b), quoteArg(c2)))
}

func (c Commands) OddOneOut(a, b, c2 string) error {
	return c.s.WriteLine(fmt.Sprintf("/odd_one_out %s %s %s", quoteArg(a), quoteArg(b), quoteArg(c2)))
}

func (c Commands) Triforce(a, b, c2 string) error {
	return c.s.WriteLine(fmt.Sprintf("/triforce %s %s %s", quoteArg(a), quoteArg(b), quoteArg(c2)))
}

func (c Commands) Recast(path string) error {
	return c.s.WriteLine(fmt.Sprintf("/recast %s", quoteArg(path)))
}

func (c Commands) Diagnose(path string) error {
	return c.s.WriteLine(fmt.Sprintf("/diagnose %s", quoteArg(path)))
}

func (c Commands) Recreate(path string) error {
	return c.s.WriteLine(fmt.Sprintf("/recreate %s", quoteArg(path)))
}

func (c Commands) CanvasContextRTStart() error { return c.s.WriteLine("/canvas_context_rt_start") }

func (c Commands) CanvasContextRT(snapshotPath string) error {
	return c.s.WriteLine(fmt.Sprintf("/canvas_context_rt %s", quoteArg(snapshotPath)))
}

func (c Commands) CanvasContextRTStop() error { return c.s.WriteLine("/canvas_context_rt_stop") }

func (c Commands) IntentRTStart() error { return c.s.WriteLine("/intent_rt_start") }

func (c Commands) IntentRT(snapshotPath string) error {
	return c.s.WriteLine(fmt.Sprintf("/intent_rt %s", quoteArg(snapshotPath)))
}

func (c Commands) IntentRTStop() error { return c.s.WriteLine("/intent_rt_stop") }

// EditInstruction sends a free-text edit message; the engine's
// edit-detection is lexical on the "edit the image:"/"replace " prefix
// (spec.md §6).
func (c Commands) EditInstruction(text string) error {
	return c.s.WriteLine(text)
}
