package events

import "encoding/json"

// envelope mirrors the common "type" discriminator every event line
// carries (spec.md §6); the remaining fields are re-decoded per variant.
type envelope struct {
	Type Type `json:"type"`
}

// Decode parses one JSON-lines line into an Event. Unknown types are
// routed to TypeIgnored rather than returned as an error, matching
// spec.md §6 ("unknown types are ignored").
func Decode(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Event{}, err
	}

	ev := Event{Type: env.Type, Raw: json.RawMessage(append([]byte(nil), line...))}

	switch env.Type {
	case TypePlanPreview:
		ev.PlanPreview = &PlanPreview{}
		return ev, json.Unmarshal(line, ev.PlanPreview)
	case TypeArtifactCreated:
		ev.ArtifactCreated = &ArtifactCreated{}
		return ev, json.Unmarshal(line, ev.ArtifactCreated)
	case TypeGenerationFailed:
		ev.GenerationFailed = &GenerationFailed{}
		return ev, json.Unmarshal(line, ev.GenerationFailed)
	case TypeCostLatencyUpdate:
		ev.CostLatencyUpdate = &CostLatencyUpdate{}
		return ev, json.Unmarshal(line, ev.CostLatencyUpdate)
	case TypeContextWindowUpdate:
		ev.ContextWindowUpdate = &ContextWindowUpdate{}
		return ev, json.Unmarshal(line, ev.ContextWindowUpdate)
	case TypeCanvasContext:
		ev.CanvasContext = &CanvasContext{}
		return ev, json.Unmarshal(line, ev.CanvasContext)
	case TypeCanvasContextFailed:
		ev.CanvasContextFailed = &CanvasContextFailed{}
		return ev, json.Unmarshal(line, ev.CanvasContextFailed)
	case TypeIntentIcons:
		ev.IntentIcons = &IntentIcons{}
		return ev, json.Unmarshal(line, ev.IntentIcons)
	case TypeIntentIconsFailed:
		ev.IntentIconsFailed = &IntentIconsFailed{}
		return ev, json.Unmarshal(line, ev.IntentIconsFailed)
	case TypeImageDescription:
		ev.ImageDescription = &ImageDescription{}
		return ev, json.Unmarshal(line, ev.ImageDescription)
	case TypeImageDiagnosis:
		ev.ImageDiagnosis = &ImageDiagnosis{}
		return ev, json.Unmarshal(line, ev.ImageDiagnosis)
	case TypeImageDiagnosisFailed:
		ev.ImageDiagnosisFailed = &ImageDiagnosisFailed{}
		return ev, json.Unmarshal(line, ev.ImageDiagnosisFailed)
	case TypeImageArgument:
		ev.ImageArgument = &ImageArgument{}
		return ev, json.Unmarshal(line, ev.ImageArgument)
	case TypeImageArgumentFailed:
		ev.ImageArgumentFailed = &ImageArgumentFailed{}
		return ev, json.Unmarshal(line, ev.ImageArgumentFailed)
	case TypeTripletRule:
		ev.TripletRule = &TripletRule{}
		return ev, json.Unmarshal(line, ev.TripletRule)
	case TypeTripletRuleFailed:
		ev.TripletRuleFailed = &TripletRuleFailed{}
		return ev, json.Unmarshal(line, ev.TripletRuleFailed)
	case TypeTripletOddOneOut:
		ev.TripletOddOneOut = &TripletOddOneOut{}
		return ev, json.Unmarshal(line, ev.TripletOddOneOut)
	case TypeTripletOddOneOutFailed:
		ev.TripletOddOneOutFailed = &TripletOddOneOutFailed{}
		return ev, json.Unmarshal(line, ev.TripletOddOneOutFailed)
	case TypeRecreatePromptInferred:
		ev.RecreatePromptInferred = &RecreatePromptInferred{}
		return ev, json.Unmarshal(line, ev.RecreatePromptInferred)
	case TypeRecreateIterationUpdate:
		ev.RecreateIterationUpdate = &RecreateIterationUpdate{}
		return ev, json.Unmarshal(line, ev.RecreateIterationUpdate)
	case TypeRecreateDone:
		ev.RecreateDone = &RecreateDone{}
		return ev, nil
	default:
		ev.Type = TypeIgnored
		return ev, nil
	}
}
