// Package runtime wires every subsystem into the single cooperative
// loop spec.md §5 describes: one goroutine draining a buffered channel
// of internal messages, so every Visual Model / Timeline / Scheduler
// mutation happens on one logical thread even though the event log
// reader, engine stdout scanner, and timers all run concurrently.
package runtime

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/brood-studio/canvasrt/internal/ambient"
	"github.com/brood-studio/canvasrt/internal/clock"
	"github.com/brood-studio/canvasrt/internal/config"
	"github.com/brood-studio/canvasrt/internal/describe"
	"github.com/brood-studio/canvasrt/internal/engine"
	"github.com/brood-studio/canvasrt/internal/events"
	"github.com/brood-studio/canvasrt/internal/eventlog"
	"github.com/brood-studio/canvasrt/internal/imagecache"
	"github.com/brood-studio/canvasrt/internal/intent"
	"github.com/brood-studio/canvasrt/internal/logx"
	"github.com/brood-studio/canvasrt/internal/projector"
	"github.com/brood-studio/canvasrt/internal/scheduler"
	"github.com/brood-studio/canvasrt/internal/timeline"
	"github.com/brood-studio/canvasrt/internal/visual"
)

// tickInterval drives the periodic checks (timeouts, queue pumps) that
// have no dedicated external wakeup source.
const tickInterval = 100 * time.Millisecond

// messageQueueCapacity is the buffered channel depth backing the
// single-threaded message loop (spec.md §5 "bounded, never blocks the
// producers indefinitely in practice").
const messageQueueCapacity = 256

// Runtime owns every subsystem instance and the message loop that
// serializes access to them (spec.md §5 "Ownership").
type Runtime struct {
	Settings config.Settings
	Flags    config.FeatureFlags
	Keys     config.KeyStatus

	Clock    clock.Clock
	Model    *visual.Model
	Timeline *timeline.Graph
	Scheduler *scheduler.Scheduler
	Describe *describe.Queue
	Cache    *imagecache.Cache
	Engine   *engine.Session
	Commands engine.Commands
	Ambient  *ambient.Machine
	Intent   *intent.Engine
	Reader   *eventlog.Reader
	Projector *projector.Projector
	FaceDetector *imagecache.FaceDetector

	Log zerolog.Logger

	messages chan func()
}

// New constructs a Runtime with every subsystem wired according to
// spec.md §4, but does not start the engine process or the message
// loop; call Run for that.
func New(settings config.Settings, flags config.FeatureFlags, keys config.KeyStatus, logWriter *zerolog.Logger) *Runtime {
	c := clock.System{}
	model := visual.NewModel(visual.CanvasDims{W: 3840, H: 2160, Margin: 24})
	tg := timeline.NewGraph()
	sess := &engine.Session{Command: settings.EngineCommand, Environ: settings.Environ()}
	cache := imagecache.New()

	rt := &Runtime{
		Settings:  settings,
		Flags:     flags,
		Keys:      keys,
		Clock:     c,
		Model:     model,
		Timeline:  tg,
		Scheduler: scheduler.New(),
		Describe:  describe.New(c, nil),
		Cache:     cache,
		Engine:    sess,
		Commands:  engine.NewCommands(sess),
		Ambient:   &ambient.Machine{Clock: c, State: ambient.State{Enabled: settings.AlwaysOnVision}},
		Intent:    &intent.Engine{Clock: c, State: intent.NewState()},
		Projector: &projector.Projector{Model: model, Timeline: tg, Cache: cache, Slots: projector.NewSlots(), Now: c.NowMillis},
		messages:  make(chan func(), messageQueueCapacity),
	}
	if logWriter != nil {
		rt.Log = *logWriter
	} else {
		rt.Log = logx.New(nil)
	}

	tg.ReplaceImageInPlace = func(imageID, path, receiptPath string) error {
		return model.ReplaceImageInPlace(imageID, visual.ReplaceImageInPlaceOpts{Path: path, ReceiptPath: receiptPath})
	}
	tg.SetActiveImage = model.SetActiveImage

	rt.wireScheduler()
	rt.wireDescribe()
	rt.wireAmbient()
	rt.wireIntent()
	rt.wireProjector()
	rt.wireModel()
	rt.wireFaceDetector()

	return rt
}

// wireFaceDetector unpacks the configured pigo cascade, if any, falling
// back to a nil FaceDetector (geometric centering only) when the
// cascade path is unset or unreadable, matching the teacher's graceful
// degradation style rather than failing startup over an optional
// feature (SPEC_FULL.md §4.1 supplement).
func (rt *Runtime) wireFaceDetector() {
	if rt.Settings.CascadePath == "" {
		return
	}
	fd, err := imagecache.NewFaceDetector(rt.Settings.CascadePath)
	if err != nil {
		logx.Status(rt.Log, "facedetect", "cascade unavailable, falling back to geometric centering: "+err.Error())
		return
	}
	rt.FaceDetector = fd
}

// Post enqueues fn to run on the single message-loop goroutine,
// the mechanism spec.md §5 calls "async work re-enters as a message."
// It is safe to call from any goroutine, including the event log
// reader's fsnotify callback and the engine's stdout scanner.
func (rt *Runtime) Post(fn func()) {
	rt.messages <- fn
}

func (rt *Runtime) wireScheduler() {
	rt.Scheduler.Ambient = ambientDispatcherFunc(func() bool {
		allow := ambient.AllowPredicateInputs{
			HasImages:     rt.Model.Count() > 0,
			RunExists:     rt.Settings.RunDir != "",
			HasVisionKeys: rt.Keys.HasVisionKeys(),
			IntentActive:  rt.Intent.State.Phase == intent.PhaseAwaiting,
		}
		_, active := rt.Scheduler.Active()
		return rt.Ambient.TryDispatch(allow, active)
	})
	rt.Scheduler.EngineBusy = func() bool {
		return rt.Projector.Slots.Len() > 0 || rt.Engine.IsSpawning()
	}
	rt.Scheduler.OnEvict = func(a scheduler.QueuedAction, reason string) {
		logx.Status(rt.Log, "scheduler", fmt.Sprintf("dropped %q (%s)", a.Label, reason))
	}
}

func (rt *Runtime) wireDescribe() {
	rt.Describe.Dispatch = func(path string) {
		if err := rt.Commands.Describe(path); err != nil {
			logx.Failure(rt.Log, "describe", err)
		}
	}
	rt.Describe.SchedulerBusy = func() bool {
		return rt.Scheduler.Len() > 0
	}
}

func (rt *Runtime) wireAmbient() {
	rt.Ambient.Signature = func() string {
		return ambient.ComputeSignature(rt.Model.SerializeVisualPrompt())
	}
	rt.Ambient.StartRealtime = rt.Commands.CanvasContextRTStart
	rt.Ambient.Dispatch = rt.Commands.CanvasContextRT
	rt.Ambient.StopRealtime = rt.Commands.CanvasContextRTStop
	rt.Ambient.Snapshot = func() (string, error) {
		return rt.buildAmbientSnapshot()
	}
	rt.Ambient.OnSuggestion = func(ability string) {
		logx.Status(rt.Log, "ambient", "suggested: "+ability)
	}
}

func (rt *Runtime) wireIntent() {
	rt.Intent.Signature = func() string {
		return intent.ComputeSignature(rt.Model.SerializeVisualPrompt())
	}
	rt.Intent.StartRT = rt.Commands.IntentRTStart
	rt.Intent.SendRound = func() error {
		return rt.Commands.IntentRT(rt.Model.ActiveID())
	}
	rt.Intent.StopRT = rt.Commands.IntentRTStop
	if rt.Settings.RunDir != "" {
		tracer := intent.NewTracer(rt.Settings.RunDir)
		rt.Intent.Trace = tracer.Append
		rt.Intent.PersistState = func(s intent.State) {
			if err := intent.SaveState(rt.Settings.RunDir, s); err != nil {
				logx.Failure(rt.Log, "intent", err)
			}
		}
	}
}

func (rt *Runtime) wireProjector() {
	rt.Projector.OnDescribeNeeded = func(imageID string) {
		item, ok := rt.Model.Item(imageID)
		if ok {
			rt.Describe.Enqueue(item.Path)
		}
	}
	rt.Projector.OnReadout = func(kind, text string) {
		logx.Status(rt.Log, "engine:"+kind, text)
	}
	rt.Projector.OnAmbientEvent = rt.handleAmbientEvent
	rt.Projector.OnIntentEvent = rt.handleIntentEvent
	rt.Projector.OnActionComplete = func() {
		// A pending-op slot just cleared, so the engine-busy gate has
		// dropped; let the scheduler advance to whatever's queued next
		// (spec.md §4.3, §4.4: "the scheduler resumes ... when the Event
		// Projector clears that slot").
		rt.Scheduler.CompleteActive()
		rt.Scheduler.Pump()
	}
}

func (rt *Runtime) handleAmbientEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeCanvasContext:
		cc := ev.CanvasContext
		rt.Ambient.OnCanvasContext(cc.Text, cc.Partial, cc.ImagePath)
	case events.TypeCanvasContextFailed:
		cf := ev.CanvasContextFailed
		rt.Ambient.OnCanvasContextFailed(cf.Error, cf.Fatal, cf.Source)
	}
}

func (rt *Runtime) handleIntentEvent(ev events.Event) {
	switch ev.Type {
	case events.TypeIntentIcons:
		ii := ev.IntentIcons
		rt.Intent.OnIntentIcons(ii.Text, ii.Partial)
	case events.TypeIntentIconsFailed:
		rt.Intent.OnIntentIconsFailed(ev.IntentIconsFailed.Error)
	}
}

func (rt *Runtime) wireModel() {
	rt.Model.OnSave = func(snapshot visual.VisualPrompt) {
		rt.Ambient.NoteInteraction()
		rt.Intent.NoteInteraction()
	}
	rt.Model.OnActivate = func(id string) {
		item, ok := rt.Model.Item(id)
		if !ok {
			return
		}
		if err := rt.Commands.Use(item.Path); err != nil {
			logx.Failure(rt.Log, "engine", err)
		}
		rt.Describe.Bump(item.Path)
	}
}

// ambientDispatcherFunc adapts a plain func to scheduler.AmbientDispatcher.
type ambientDispatcherFunc func() bool

func (f ambientDispatcherFunc) TryDispatch() bool { return f() }

// Run starts the engine process and drains the message loop until ctx
// is canceled (spec.md §5: the runtime's top-level entry point).
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Engine.Spawn(ctx); err != nil {
		return fmt.Errorf("runtime: spawn engine: %w", err)
	}
	rt.Engine.OnStdoutLine = func(line string) {
		if _, ok := engine.ParseDescriptionLine(line); ok {
			// The out-of-band line carries no path; since at most one
			// describe is ever in flight, it always completes whichever
			// path currently holds that slot (spec.md §4.2 fallback path).
			rt.Post(func() {
				if path, inFlight := rt.Describe.InFlight(); inFlight {
					rt.Describe.Complete(path)
				}
			})
		}
	}

	if rt.Settings.EventLogPath != "" {
		reader, err := eventlog.New(rt.Settings.EventLogPath)
		if err != nil {
			return fmt.Errorf("runtime: open event log: %w", err)
		}
		rt.Reader = reader
		defer reader.Close()
		go rt.watchEventLog(ctx)
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.Scheduler.Drain()
			_ = rt.Engine.Stop()
			return ctx.Err()
		case fn := <-rt.messages:
			fn()
		case <-ticker.C:
			rt.tick()
		}
	}
}

func (rt *Runtime) watchEventLog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.Reader.Events():
			rt.Post(rt.drainEventLog)
		case <-time.After(2 * time.Second):
			rt.Post(rt.drainEventLog)
		}
	}
}

func (rt *Runtime) drainEventLog() {
	evs, err := rt.Reader.Poll()
	if err != nil {
		logx.Failure(rt.Log, "eventlog", err)
		return
	}
	for _, ev := range evs {
		if err := rt.Projector.Apply(ev); err != nil {
			logx.Failure(rt.Log, "projector", err)
		}
	}
}

func (rt *Runtime) tick() {
	if path, timedOut := rt.Describe.CheckTimeout(); timedOut {
		logx.Status(rt.Log, "describe", "timed out: "+path)
	}
	rt.Ambient.CheckTimeout()
	rt.Intent.CheckTimeout()
	if rt.Flags.IntentRoundsEnabled {
		rt.Intent.TryStartRound()
	}
	rt.Describe.Pump()
	rt.Scheduler.Pump()
}

// buildAmbientSnapshot renders the current canvas into a low-resolution
// grid JPEG on disk, returning its path for the engine's
// /canvas_context_rt command (spec.md §4.5 step 3).
func (rt *Runtime) buildAmbientSnapshot() (string, error) {
	opts := imagecache.DefaultGridSnapshotOpts()
	var tiles []image.Image
	for _, id := range rt.Model.IDs() {
		item, ok := rt.Model.Item(id)
		if !ok {
			continue
		}
		handle, err := rt.Cache.EnsureImageURL(item.Path)
		if err != nil {
			continue
		}
		tiles = append(tiles, handle.Img)
		if len(tiles) >= opts.MaxTiles {
			break
		}
	}
	if len(tiles) == 0 {
		return "", fmt.Errorf("runtime: no images available for ambient snapshot")
	}
	grid := imagecache.BuildGridSnapshot(tiles, opts)

	dst := filepath.Join(rt.Settings.RunDir, "ambient_snapshot.jpg")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("runtime: mkdir for ambient snapshot: %w", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("runtime: create ambient snapshot: %w", err)
	}
	defer f.Close()
	if _, err := imagecache.EncodeSnapshot(f, grid, opts.JPEGQuality); err != nil {
		return "", err
	}
	return dst, nil
}
