// Package config defines the runtime's settings surface (spec.md §6,
// §9 "Configuration options") and binds it via viper, generalizing the
// teacher's stdlib-flag CLI (cmd/caire/main.go) into a cobra+viper
// command the way the retrieval pack's agent-shaped repos do (see
// SPEC_FULL.md DOMAIN STACK).
package config

import "fmt"

// Settings is the explicit struct spec.md §9 calls for: "an explicit
// struct enumerates {memory, alwaysOnVision, autoAcceptSuggestedAbility,
// textModel, imageModel, portraitsDir} plus compile-time feature flags."
type Settings struct {
	Memory                     bool   `mapstructure:"memory"`
	AlwaysOnVision             bool   `mapstructure:"alwaysOnVision"`
	AutoAcceptSuggestedAbility bool   `mapstructure:"autoAcceptSuggestedAbility"`
	TextModel                  string `mapstructure:"textModel"`
	ImageModel                 string `mapstructure:"imageModel"`
	PortraitsDir               string `mapstructure:"portraitsDir"`

	RunDir      string `mapstructure:"runDir"`
	EventLogPath string `mapstructure:"eventLogPath"`
	EngineCommand string `mapstructure:"engineCommand"`
	CascadePath string `mapstructure:"cascadePath"`
}

// FeatureFlags are the compile-time flags spec.md §6 names. They are
// plain struct fields (rather than Go build tags) so scenario tests can
// flip them per spec.md §9's testability note.
type FeatureFlags struct {
	IntentTimerEnabled    bool
	IntentRoundsEnabled   bool
	EnableDragDropImport  bool
}

// DefaultFeatureFlags matches the teacher-adjacent corpus default of
// "on" for every flag; individual tests override as needed.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{
		IntentTimerEnabled:   true,
		IntentRoundsEnabled:  true,
		EnableDragDropImport: true,
	}
}

// Environ derives the engine process's environment overlay, presently
// just BROOD_MEMORY (spec.md §6: "The engine process is invoked with
// BROOD_MEMORY ∈ {"0","1"} derived from settings").
func (s Settings) Environ() []string {
	v := "0"
	if s.Memory {
		v = "1"
	}
	return []string{fmt.Sprintf("BROOD_MEMORY=%s", v)}
}

// Default returns the settings baseline before flags/config/env are
// layered on top by cmd/canvasd.
func Default() Settings {
	return Settings{
		TextModel:  "gpt-4o",
		ImageModel: "gpt-image-1",
		RunDir:     "./run",
	}
}
