package config

// KeyStatus tracks which provider API keys are available (spec.md §3).
type KeyStatus struct {
	OpenAI    bool
	Gemini    bool
	Imagen    bool
	Flux      bool
	Anthropic bool
}

// HasVisionKeys reports whether any provider key needed for
// describe/ambient/intent dispatch is present (spec.md §4.2, §4.5).
func (k KeyStatus) HasVisionKeys() bool {
	return k.OpenAI || k.Gemini || k.Imagen || k.Flux || k.Anthropic
}
