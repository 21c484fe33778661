// Package events defines the engine's append-only JSON-lines protocol
// (spec.md §6) as a tagged sum of variants, per the re-architecture note
// in spec.md §9: "Dynamic event dispatch on type ... a single exhaustive
// handler; unknown variants route to an Ignored sink."
package events

import "encoding/json"

// Type is the wire "type" discriminator.
type Type string

const (
	TypePlanPreview             Type = "plan_preview"
	TypeArtifactCreated         Type = "artifact_created"
	TypeGenerationFailed        Type = "generation_failed"
	TypeCostLatencyUpdate       Type = "cost_latency_update"
	TypeContextWindowUpdate     Type = "context_window_update"
	TypeCanvasContext           Type = "canvas_context"
	TypeCanvasContextFailed     Type = "canvas_context_failed"
	TypeIntentIcons             Type = "intent_icons"
	TypeIntentIconsFailed       Type = "intent_icons_failed"
	TypeImageDescription        Type = "image_description"
	TypeImageDiagnosis          Type = "image_diagnosis"
	TypeImageDiagnosisFailed    Type = "image_diagnosis_failed"
	TypeImageArgument           Type = "image_argument"
	TypeImageArgumentFailed     Type = "image_argument_failed"
	TypeTripletRule             Type = "triplet_rule"
	TypeTripletRuleFailed       Type = "triplet_rule_failed"
	TypeTripletOddOneOut        Type = "triplet_odd_one_out"
	TypeTripletOddOneOutFailed  Type = "triplet_odd_one_out_failed"
	TypeRecreatePromptInferred  Type = "recreate_prompt_inferred"
	TypeRecreateIterationUpdate Type = "recreate_iteration_update"
	TypeRecreateDone            Type = "recreate_done"
	TypeIgnored                 Type = "_ignored"
)

// Event is the exhaustive tagged sum the Event Projector consumes.
// Exactly one of the payload pointer fields is non-nil, selected by Type,
// except for TypeIgnored, which carries no payload.
type Event struct {
	Type Type

	PlanPreview             *PlanPreview
	ArtifactCreated         *ArtifactCreated
	GenerationFailed        *GenerationFailed
	CostLatencyUpdate       *CostLatencyUpdate
	ContextWindowUpdate     *ContextWindowUpdate
	CanvasContext           *CanvasContext
	CanvasContextFailed     *CanvasContextFailed
	IntentIcons             *IntentIcons
	IntentIconsFailed       *IntentIconsFailed
	ImageDescription        *ImageDescription
	ImageDiagnosis          *ImageDiagnosis
	ImageDiagnosisFailed    *ImageDiagnosisFailed
	ImageArgument           *ImageArgument
	ImageArgumentFailed     *ImageArgumentFailed
	TripletRule             *TripletRule
	TripletRuleFailed       *TripletRuleFailed
	TripletOddOneOut        *TripletOddOneOut
	TripletOddOneOutFailed  *TripletOddOneOutFailed
	RecreatePromptInferred  *RecreatePromptInferred
	RecreateIterationUpdate *RecreateIterationUpdate
	RecreateDone            *RecreateDone

	Raw json.RawMessage // preserved for the Ignored sink / diagnostics
}

type PlanPreview struct {
	Plan string `json:"plan"`
}

type ArtifactCreated struct {
	ArtifactID  string `json:"artifact_id"`
	ImagePath   string `json:"image_path"`
	ReceiptPath string `json:"receipt_path"`
	VersionID   string `json:"version_id"`
}

type GenerationFailed struct {
	Error string `json:"error"`
}

type CostLatencyUpdate struct {
	Provider            string  `json:"provider"`
	Model                string  `json:"model"`
	CostTotalUSD         float64 `json:"cost_total_usd"`
	CostPer1kImagesUSD   float64 `json:"cost_per_1k_images_usd"`
	LatencyPerImageS     float64 `json:"latency_per_image_s"`
}

type ContextWindowUpdate struct {
	Pct float64 `json:"pct"`
}

type CanvasContext struct {
	Text      string `json:"text"`
	Partial   bool   `json:"partial"`
	Source    string `json:"source"`
	Model     string `json:"model"`
	ImagePath string `json:"image_path"`
}

type CanvasContextFailed struct {
	Error     string `json:"error"`
	Fatal     bool   `json:"fatal"`
	Source    string `json:"source"`
	ImagePath string `json:"image_path"`
}

type IntentIcons struct {
	Text      string `json:"text"`
	Partial   bool   `json:"partial"`
	ImagePath string `json:"image_path"`
}

type IntentIconsFailed struct {
	Error     string `json:"error"`
	ImagePath string `json:"image_path"`
}

type ImageDescription struct {
	ImagePath   string `json:"image_path"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Model       string `json:"model"`
}

type ImageDiagnosis struct {
	Text      string `json:"text"`
	ImagePath string `json:"image_path"`
	Source    string `json:"source"`
	Model     string `json:"model"`
}

type ImageDiagnosisFailed struct {
	Error     string `json:"error"`
	ImagePath string `json:"image_path"`
}

type ImageArgument struct {
	Text       string   `json:"text"`
	ImagePaths []string `json:"image_paths"`
	Source     string   `json:"source"`
	Model      string   `json:"model"`
}

type ImageArgumentFailed struct {
	Error string `json:"error"`
}

type TripletRule struct {
	Text        string   `json:"text"`
	Principle   string   `json:"principle"`
	Evidence    []string `json:"evidence"`
	Annotations []string `json:"annotations"`
	ImagePaths  []string `json:"image_paths"`
	Source      string   `json:"source"`
	Model       string   `json:"model"`
}

type TripletRuleFailed struct {
	Error string `json:"error"`
}

type TripletOddOneOut struct {
	Text        string   `json:"text"`
	Pattern     string   `json:"pattern"`
	Explanation string   `json:"explanation"`
	OddIndex    int      `json:"odd_index"`
	OddImage    string   `json:"odd_image"`
	ImagePaths  []string `json:"image_paths"`
	Source      string   `json:"source"`
	Model       string   `json:"model"`
}

type TripletOddOneOutFailed struct {
	Error string `json:"error"`
}

type RecreatePromptInferred struct {
	Prompt    string `json:"prompt"`
	Reference string `json:"reference"`
}

type RecreateIterationUpdate struct {
	Iteration  int     `json:"iteration"`
	Similarity float64 `json:"similarity"`
}

type RecreateDone struct{}
