package stream

import (
	"context"
	"errors"
	"time"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/core"
	"rag-agent-be/pkg/events"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/expand"
	"rag-agent-be/pkg/rag/filter"
	"rag-agent-be/pkg/rag/hybrid"
	"rag-agent-be/pkg/rag/memory"
	"rag-agent-be/pkg/rag/prompt"
	"rag-agent-be/pkg/rag/response"
	"rag-agent-be/pkg/rag/router"
	"rag-agent-be/pkg/rag/search"
	ragstate "rag-agent-be/pkg/rag/state"

	"github.com/google/uuid"
)

// Phase is the orchestrator's position in one turn. Transitions are
// strictly forward; Stopped and Errored are absorbing.
type Phase string

const (
	PhaseRouting            Phase = "ROUTING"
	PhaseSimpleResponding   Phase = "SIMPLE_RESPONDING"
	PhaseExpanding          Phase = "EXPANDING"
	PhaseRetrieving         Phase = "RETRIEVING"
	PhaseFiltering          Phase = "FILTERING"
	PhaseGroundedResponding Phase = "GROUNDED_RESPONDING"
	PhasePersisting         Phase = "PERSISTING"
	PhaseDone               Phase = "DONE"
	PhaseStopped            Phase = "STOPPED"
	PhaseErrored            Phase = "ERRORED"
)

// errStopRequested aborts the provider stream from inside the chunk
// callback when the session's stop flag appears mid-generation.
var errStopRequested = errors.New("stop requested")

// Emitter is the transport side of a turn. The HTTP layer implements it
// over SSE; tests implement it over a slice.
type Emitter interface {
	Status(message string) error
	Chunk(content string) error
	End(fullText string, docs []hybrid.Document) error
	Stopped() error
	Error(message string) error
}

// TurnInput is one user submission.
type TurnInput struct {
	SessionId     uuid.UUID
	Content       string
	AttachmentIds []int
}

// Config carries the memory knobs the orchestrator applies per turn.
type Config struct {
	WindowSize         int
	SummarizeThreshold int
	KeepSize           int
}

// Orchestrator drives one turn through routing, optional retrieval and
// streamed generation, polling the stop flag at every phase boundary and
// between chunks. The caller holds the generation guard before Run and
// the orchestrator releases it on every exit path.
type Orchestrator struct {
	router      *router.Router
	expander    *expand.Expander
	stage       *search.Stage
	filter      *filter.Filter
	generator   *response.Generator
	memory      *memory.Manager
	checkpoints *ragstate.CheckpointStore
	flags       *ragstate.FlagStore
	core        *core.Client
	events      *events.Publisher
	cfg         Config
	logger      logger.ILogger
}

func NewOrchestrator(
	queryRouter *router.Router,
	expander *expand.Expander,
	stage *search.Stage,
	relevanceFilter *filter.Filter,
	generator *response.Generator,
	memoryManager *memory.Manager,
	checkpoints *ragstate.CheckpointStore,
	flags *ragstate.FlagStore,
	coreClient *core.Client,
	publisher *events.Publisher,
	cfg Config,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		router:      queryRouter,
		expander:    expander,
		stage:       stage,
		filter:      relevanceFilter,
		generator:   generator,
		memory:      memoryManager,
		checkpoints: checkpoints,
		flags:       flags,
		core:        coreClient,
		events:      publisher,
		cfg:         cfg,
		logger:      log,
	}
}

// Run executes one turn and emits its events. It never returns an error:
// every failure is either degraded internally or surfaced to the client
// as an error event.
func (o *Orchestrator) Run(ctx context.Context, input TurnInput, emitter Emitter) {
	session := input.SessionId.String()
	defer func() {
		cleanCtx := context.WithoutCancel(ctx)
		o.flags.ClearStop(cleanCtx, session)
		o.flags.ReleaseGuard(cleanCtx, session)
	}()

	t := &turn{
		o:       o,
		input:   input,
		session: session,
		emitter: emitter,
		phase:   PhaseRouting,
	}
	t.run(ctx)
}

type turn struct {
	o       *Orchestrator
	input   TurnInput
	session string
	emitter Emitter
	phase   Phase
}

func (t *turn) setPhase(p Phase) {
	t.o.logger.Debug("StreamOrchestrator", "Phase transition", map[string]interface{}{
		"session": t.session,
		"from":    string(t.phase),
		"to":      string(p),
	})
	t.phase = p
}

func (t *turn) stopRequested(ctx context.Context) bool {
	return t.o.flags.StopRequested(ctx, t.session)
}

func (t *turn) run(ctx context.Context) {
	o := t.o

	// A stop flag left over from a previous turn must not kill this one.
	o.flags.ClearStop(ctx, t.session)

	conversation, err := o.checkpoints.Load(ctx, t.input.SessionId)
	if err != nil {
		o.logger.Warn("StreamOrchestrator", "Checkpoint load failed, starting fresh state", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
		conversation = ragstate.NewConversationState(t.input.SessionId)
	}

	// Compact before the turn so the window never sees an oversized
	// history. A successful compaction is persisted immediately.
	if o.memory.MaybeCompact(ctx, conversation, o.cfg.SummarizeThreshold, o.cfg.KeepSize) {
		if err := o.checkpoints.Save(ctx, conversation); err != nil {
			o.logger.Warn("StreamOrchestrator", "Failed to persist compacted state", map[string]interface{}{
				"session": t.session,
				"error":   err.Error(),
			})
		}
	}

	attached := ""
	if len(t.input.AttachmentIds) > 0 {
		attached, err = o.core.GetContentFormatted(ctx, t.input.AttachmentIds)
		if err != nil {
			o.logger.Warn("StreamOrchestrator", "Attached content fetch failed, continuing without it", map[string]interface{}{
				"session": t.session,
				"error":   err.Error(),
			})
			attached = ""
		}
	}

	contextHistory := memory.AsLLMMessages(o.memory.ContextWindow(conversation, o.cfg.WindowSize))
	history := append(append([]llm.Message{}, contextHistory...), llm.Message{Role: "user", Content: t.input.Content})

	t.emitStatus(prompt.StatusAnalyzing)
	if t.stopRequested(ctx) {
		t.finishStopped(ctx, conversation, "", nil)
		return
	}

	route := o.router.Classify(ctx, history)

	var fullText string
	var sources []hybrid.Document
	var streamErr error
	var stopped bool

	if route == router.RouteJustRespond {
		t.setPhase(PhaseSimpleResponding)
		t.emitStatus(prompt.StatusGenerating)
		if t.stopRequested(ctx) {
			t.finishStopped(ctx, conversation, "", nil)
			return
		}
		fullText, streamErr = o.generator.StreamSimple(ctx, history, t.onChunk(ctx))
	} else {
		fullText, sources, stopped, streamErr = t.retrieveAndRespond(ctx, contextHistory, history, attached)
		if stopped {
			t.finishStopped(ctx, conversation, "", nil)
			return
		}
	}

	if streamErr != nil {
		if errors.Is(streamErr, errStopRequested) {
			t.finishStopped(ctx, conversation, fullText, sources)
			return
		}
		o.logger.Error("StreamOrchestrator", "Generation failed", map[string]interface{}{
			"session":       t.session,
			"phase":         string(t.phase),
			"emitted_chars": len(fullText),
			"error":         streamErr.Error(),
		})
		t.setPhase(PhaseErrored)
		t.emitError("Something went wrong while generating the answer. Please try again.")
		return
	}

	fullText = response.RewriteCitations(fullText, sources)

	if err := t.emitter.End(fullText, sources); err != nil {
		o.logger.Warn("StreamOrchestrator", "Failed to deliver end event", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
	}

	t.setPhase(PhasePersisting)
	t.persist(ctx, conversation, fullText)
	t.setPhase(PhaseDone)
}

// retrieveAndRespond runs the retrieval branch. A stop detected at a
// phase boundary returns stopped=true before any chunk is produced.
func (t *turn) retrieveAndRespond(ctx context.Context, contextHistory, history []llm.Message, attached string) (string, []hybrid.Document, bool, error) {
	o := t.o

	allowedAuthors, err := o.core.GetAllowedAuthors(ctx)
	if err != nil {
		o.logger.Warn("StreamOrchestrator", "Allowed authors unavailable, searching without author filter", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
		allowedAuthors = nil
	}
	brands := o.core.GetBrandsFormatted(ctx)

	t.setPhase(PhaseExpanding)
	t.emitStatus(prompt.StatusGeneratingQueries)
	if t.stopRequested(ctx) {
		return "", nil, true, nil
	}
	variants := o.expander.Expand(ctx, contextHistory, t.input.Content, attached, brands)

	t.setPhase(PhaseRetrieving)
	t.emitStatus(prompt.StatusRetrieving)
	if t.stopRequested(ctx) {
		return "", nil, true, nil
	}
	candidates := o.stage.Retrieve(ctx, variants, allowedAuthors)

	t.setPhase(PhaseFiltering)
	t.emitStatus(prompt.StatusFiltering)
	if t.stopRequested(ctx) {
		return "", nil, true, nil
	}
	filtered := o.filter.Filter(ctx, history, candidates, attached)

	t.setPhase(PhaseGroundedResponding)
	t.emitStatus(prompt.StatusGenerating)
	if t.stopRequested(ctx) {
		return "", nil, true, nil
	}

	fullText, streamErr := o.generator.StreamGrounded(ctx, history, filtered, attached, t.onChunk(ctx))
	return fullText, filtered, false, streamErr
}

// onChunk forwards one chunk, aborting the provider stream when the stop
// flag appears. The poll runs before the write so a stopped session never
// receives another chunk.
func (t *turn) onChunk(ctx context.Context) llm.StreamFunc {
	return func(content string) error {
		if t.stopRequested(ctx) {
			return errStopRequested
		}
		return t.emitter.Chunk(content)
	}
}

// finishStopped emits the stopped event and persists whatever partial
// text exists. A stopped turn is still part of the conversation.
func (t *turn) finishStopped(ctx context.Context, conversation *ragstate.ConversationState, partialText string, sources []hybrid.Document) {
	t.setPhase(PhaseStopped)
	if err := t.emitter.Stopped(); err != nil {
		t.o.logger.Warn("StreamOrchestrator", "Failed to deliver stopped event", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
	}
	t.persist(ctx, conversation, response.RewriteCitations(partialText, sources))
	t.o.logger.Info("StreamOrchestrator", "Turn stopped by user", map[string]interface{}{
		"session":       t.session,
		"emitted_chars": len(partialText),
	})
}

// persist appends the turn to the checkpoint and hands the archive write
// to the async subscriber. Failures here are soft: the client already has
// the full response.
func (t *turn) persist(ctx context.Context, conversation *ragstate.ConversationState, assistantText string) {
	o := t.o
	cleanCtx := context.WithoutCancel(ctx)

	conversation.Append(
		ragstate.Message{Role: ragstate.RoleUser, Content: t.input.Content, AttachmentIds: t.input.AttachmentIds},
		ragstate.Message{Role: ragstate.RoleAssistant, Content: assistantText},
	)
	if err := o.checkpoints.Save(cleanCtx, conversation); err != nil {
		o.logger.Warn("StreamOrchestrator", "Checkpoint save failed after streaming", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
	}

	event := events.TurnCompletedEvent{
		SessionId: t.session,
		Messages: []core.ChatMessage{
			{Role: "user", Content: t.input.Content, AttachmentIds: t.input.AttachmentIds},
			{Role: "assistant", Content: assistantText},
		},
		OccurredAt: time.Now(),
	}
	if err := o.events.PublishTurnCompleted(cleanCtx, event); err != nil {
		o.logger.Warn("StreamOrchestrator", "Failed to publish turn completed event", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
	}
}

func (t *turn) emitStatus(message string) {
	if err := t.emitter.Status(message); err != nil {
		t.o.logger.Warn("StreamOrchestrator", "Failed to deliver status event", map[string]interface{}{
			"session": t.session,
			"status":  message,
			"error":   err.Error(),
		})
	}
}

func (t *turn) emitError(message string) {
	if err := t.emitter.Error(message); err != nil {
		t.o.logger.Warn("StreamOrchestrator", "Failed to deliver error event", map[string]interface{}{
			"session": t.session,
			"error":   err.Error(),
		})
	}
}
