// Package projector implements the Event Projector (spec.md §4.4): the
// single handler that turns engine protocol events into Visual Model
// and Timeline Graph mutations.
package projector

// PendingKind names which multi-image ability an artifact_created event
// resolves, since the event itself carries only an artifact id and the
// projector must remember what was asked for (spec.md §4.4: "the
// projector holds one pending-op slot per in-flight ability").
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingCombine
	PendingSwapDNA
	PendingBridge
	PendingArgue
	PendingExtractRule
	PendingOddOneOut
	PendingTriforce
	PendingRecast
	PendingDiagnose
	PendingCanvasDiagnose
	PendingRecreate
	PendingReplace
)

// ReplaceMode distinguishes the two ways an artifact can land back onto
// an existing canvas slot (spec.md §4.4 scenario 2 "annotate box edit").
type ReplaceMode int

const (
	ReplaceWhole ReplaceMode = iota
	ReplaceCrop
)

// PendingOp is the tagged-variant record of one in-flight ability,
// keyed by the image id(s) it was requested against.
type PendingOp struct {
	Kind PendingKind

	// SourceIDs are the canvas image ids that fed the request, in the
	// order passed to the engine command, used to resolve which image
	// receives the resulting artifact and what timeline parents to
	// record.
	SourceIDs []string

	// Replace-only fields (spec.md §4.4 scenario 2).
	TargetID    string
	Mode        ReplaceMode
	Box         *ReplaceBox
	CropPath    string
	Instruction string
}

// ReplaceBox is the image-space rectangle a crop-mode replace was
// issued against, needed to composite the edited crop back into the
// full image (spec.md §4.1 AnnotateBox).
type ReplaceBox struct {
	X0, Y0, X1, Y1 float64
}

// Slots tracks every pending op, keyed by an opaque correlation id.
// The runtime cannot know an artifact's id ahead of the engine minting
// it, so Put is keyed by a throwaway id minted at dispatch time; Take
// still resolves the rare case where a caller (e.g. a test) already
// knows the real id, and TakeSole/TakeKind/PeekKind give the projector a
// lookup that doesn't require foreknowledge of it (spec.md §4.4: "the
// engine-busy gate guarantees at most one pending-op slot is ever
// occupied system-wide").
type Slots struct {
	byID map[string]*PendingOp
}

func NewSlots() *Slots {
	return &Slots{byID: make(map[string]*PendingOp)}
}

// Put registers a pending op under id.
func (s *Slots) Put(id string, op PendingOp) { s.byID[id] = &op }

// Take removes and returns the pending op for id, if any.
func (s *Slots) Take(id string) (PendingOp, bool) {
	op, ok := s.byID[id]
	if !ok {
		return PendingOp{}, false
	}
	delete(s.byID, id)
	return *op, true
}

// TakeSole removes and returns the pending op if exactly one is
// registered, the fallback correlation path for artifact_created events
// whose id the dispatching code never minted (spec.md §4.4).
func (s *Slots) TakeSole() (PendingOp, bool) {
	if len(s.byID) != 1 {
		return PendingOp{}, false
	}
	for id, op := range s.byID {
		delete(s.byID, id)
		return *op, true
	}
	return PendingOp{}, false
}

// PeekKind returns the first pending op of the given kind without
// removing it.
func (s *Slots) PeekKind(kind PendingKind) (PendingOp, bool) {
	for _, op := range s.byID {
		if op.Kind == kind {
			return *op, true
		}
	}
	return PendingOp{}, false
}

// TakeKind removes and returns the first pending op of the given kind,
// used to resolve events that carry no correlation id of their own
// (image_argument, triplet_rule, triplet_odd_one_out: spec.md §4.4).
func (s *Slots) TakeKind(kind PendingKind) (PendingOp, bool) {
	for id, op := range s.byID {
		if op.Kind == kind {
			delete(s.byID, id)
			return *op, true
		}
	}
	return PendingOp{}, false
}

// RemoveKind drops the first pending op of the given kind without
// returning it.
func (s *Slots) RemoveKind(kind PendingKind) {
	for id, op := range s.byID {
		if op.Kind == kind {
			delete(s.byID, id)
			return
		}
	}
}

// Clear drops every pending op, used on generation_failed (spec.md
// §4.4, §5).
func (s *Slots) Clear() { s.byID = make(map[string]*PendingOp) }

// Len reports how many ops are currently in flight.
func (s *Slots) Len() int { return len(s.byID) }
