// Package workflow implements the due-diligence state machine. The
// engine drives a session through document parsing, preference
// checking, parallel team and market analysis, cross-checking, question
// generation, and human review, degrading individual phases rather
// than aborting whenever an agent can fall back.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dengjianbo3/magellan/pkg/agent"
	"github.com/dengjianbo3/magellan/pkg/events"
	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prefs"
	"github.com/dengjianbo3/magellan/pkg/session"
)

// Timeouts are the per-phase budgets. A phase that exhausts its budget
// falls back through the agent's degradation path; only cancellation of
// the whole session reaches the ERROR terminal.
type Timeouts struct {
	DocParse time.Duration
	DD       time.Duration // each of TDD and MDD
	DDQ      time.Duration
	Default  time.Duration
}

// DefaultTimeouts returns the standard phase budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		DocParse: 180 * time.Second,
		DD:       120 * time.Second,
		DDQ:      90 * time.Second,
		Default:  60 * time.Second,
	}
}

// Engine runs due-diligence workflows. One Engine serves all sessions;
// per-session state lives on the Session.
type Engine struct {
	bpParser *agent.BPParser
	team     *agent.TeamAnalyst
	market   *agent.MarketAnalyst
	cross    *agent.CrossCheckAgent
	ddq      *agent.DDQGenerator
	valuer   *agent.ValuationAgent
	exit     *agent.ExitAgent

	// fanoutLimit is the per-session budget for concurrent gather
	// calls; each run gets its own semaphore of this weight.
	fanoutLimit int64

	// Timeouts may be lowered in tests; not mutated after Run starts.
	Timeouts Timeouts
}

// NewEngine wires the analysis agents over shared dependencies.
func NewEngine(deps *agent.Deps) *Engine {
	return &Engine{
		bpParser:    agent.NewBPParser(deps),
		team:        agent.NewTeamAnalyst(deps),
		market:      agent.NewMarketAnalyst(deps),
		cross:       agent.NewCrossCheckAgent(deps),
		ddq:         agent.NewDDQGenerator(deps),
		valuer:      agent.NewValuationAgent(deps),
		exit:        agent.NewExitAgent(deps),
		fanoutLimit: deps.FanoutLimit,
		Timeouts:    DefaultTimeouts(),
	}
}

// run carries the per-session mutable state of one workflow execution.
type run struct {
	engine *Engine
	s      *session.Session
	sc     *models.SessionContext
	sem    *semaphore.Weighted
	steps  int
}

// Run drives the session to a terminal state. It never returns before
// the record holds COMPLETED or ERROR.
func (e *Engine) Run(ctx context.Context, s *session.Session) {
	r := &run{engine: e, s: s, sc: &models.SessionContext{}}
	if e.fanoutLimit > 0 {
		r.sem = semaphore.NewWeighted(e.fanoutLimit)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Workflow panic",
				"session_id", s.ID, "panic", rec, "stack", string(debug.Stack()))
			r.fail(fmt.Sprintf("internal_error: %v", rec))
		}
	}()

	slog.Info("Workflow started", "session_id", s.ID, "company", s.Req.CompanyName)

	if !r.docParse(ctx) {
		return
	}
	proceed, ok := r.preferenceCheck(ctx)
	if !ok {
		return
	}
	if !proceed {
		// Early abort is a success terminal: the IM carries only the
		// preference-check result.
		r.complete(ctx)
		return
	}
	if !r.parallelDD(ctx) {
		return
	}
	if !r.crossCheck(ctx) {
		return
	}
	if !r.ddQuestions(ctx) {
		return
	}
	if !r.humanReview(ctx) {
		return
	}
	r.complete(ctx)
}

// --- phases ---

func (r *run) docParse(ctx context.Context) bool {
	if !r.enter(ctx, models.StateDocParse) {
		return false
	}
	idx := r.startStep(models.StateDocParse, "Parsing business plan")
	r.progress(idx, models.StateDocParse, 10, "extraction")

	phaseCtx, cancel := context.WithTimeout(ctx, r.engine.Timeouts.DocParse)
	res := r.engine.bpParser.Analyze(phaseCtx, &agent.Context{
		CompanyName: r.s.Req.CompanyName,
		BPFile:      r.s.Req.BPFile,
		BPMime:      r.s.Req.BPMimeType,
		Fanout:      r.sem,
	})
	cancel()
	if ctx.Err() != nil {
		return r.canceled(ctx, idx)
	}

	r.sc.BP = res.Output.(*models.BPStructuredData)
	r.completeStep(ctx, idx, models.StateDocParse, res.Output, res.Degraded)
	return true
}

// preferenceCheck returns (proceed, ok). ok=false means the workflow
// already reached a terminal state.
func (r *run) preferenceCheck(ctx context.Context) (bool, bool) {
	if !r.enter(ctx, models.StatePreferenceCheck) {
		return false, false
	}
	idx := r.startStep(models.StatePreferenceCheck, "Checking institution preferences")
	if ctx.Err() != nil {
		return false, r.canceled(ctx, idx)
	}

	p := r.s.Req.Preferences
	if p == nil {
		p = &models.InstitutionPreferences{}
	}
	result := prefs.Match(r.sc.BP, p)
	r.sc.PreferenceCheck = result
	r.completeStep(ctx, idx, models.StatePreferenceCheck, result, false)

	if result.Recommendation == models.RecommendAbort {
		slog.Info("Preference mismatch, ending workflow early",
			"session_id", r.s.ID, "score", result.Score, "reasons", result.MismatchReasons)
	}
	return result.Recommendation == models.RecommendProceed, true
}

// parallelDD runs team and market analysis concurrently. Each phase
// reports as its own step; a failure in one never cancels the other.
func (r *run) parallelDD(ctx context.Context) bool {
	if !r.enter(ctx, models.StateTeamDD) {
		return false
	}
	teamIdx := r.startStep(models.StateTeamDD, "Analyzing founding team")
	marketIdx := r.startStep(models.StateMarketDD, "Analyzing target market")

	in := &agent.Context{CompanyName: r.sc.BP.CompanyName, BP: r.sc.BP, Fanout: r.sem}

	var teamRes, marketRes *agent.Result
	g := &errgroup.Group{}
	g.Go(func() error {
		phaseCtx, cancel := context.WithTimeout(ctx, r.engine.Timeouts.DD)
		defer cancel()
		r.progress(teamIdx, models.StateTeamDD, 10, "research")
		teamRes = r.engine.team.Analyze(phaseCtx, in)
		r.progress(teamIdx, models.StateTeamDD, 90, "scoring")
		return nil
	})
	g.Go(func() error {
		phaseCtx, cancel := context.WithTimeout(ctx, r.engine.Timeouts.DD)
		defer cancel()
		r.progress(marketIdx, models.StateMarketDD, 10, "research")
		marketRes = r.engine.market.Analyze(phaseCtx, in)
		r.progress(marketIdx, models.StateMarketDD, 90, "validation")
		return nil
	})
	_ = g.Wait() // agents never error

	if ctx.Err() != nil {
		return r.canceled(ctx, marketIdx)
	}

	r.sc.TeamSection = teamRes.Output.(*models.TeamAnalysisOutput)
	r.sc.MarketSection = marketRes.Output.(*models.MarketAnalysisOutput)
	r.completeStep(ctx, teamIdx, models.StateTeamDD, teamRes.Output, teamRes.Degraded)
	r.completeStep(ctx, marketIdx, models.StateMarketDD, marketRes.Output, marketRes.Degraded)
	return true
}

func (r *run) crossCheck(ctx context.Context) bool {
	if !r.enter(ctx, models.StateCrossCheck) {
		return false
	}
	idx := r.startStep(models.StateCrossCheck, "Cross-checking analyses")

	phaseCtx, cancel := context.WithTimeout(ctx, r.engine.Timeouts.Default)
	res := r.engine.cross.Analyze(phaseCtx, &agent.Context{
		CompanyName: r.sc.BP.CompanyName,
		BP:          r.sc.BP,
		Team:        r.sc.TeamSection,
		Market:      r.sc.MarketSection,
		Fanout:      r.sem,
	})
	cancel()
	if ctx.Err() != nil {
		return r.canceled(ctx, idx)
	}

	r.sc.CrossCheck = res.Output.(*models.CrossCheckOutput)
	r.completeStep(ctx, idx, models.StateCrossCheck, res.Output, res.Degraded)
	return true
}

// ddQuestions generates the question list; valuation and exit analysis
// run concurrently as sub-steps since they share the phase's inputs.
func (r *run) ddQuestions(ctx context.Context) bool {
	if !r.enter(ctx, models.StateDDQuestions) {
		return false
	}
	idx := r.startStep(models.StateDDQuestions, "Generating due-diligence questions")
	r.progress(idx, models.StateDDQuestions, 10, "valuation")

	in := &agent.Context{
		CompanyName: r.sc.BP.CompanyName,
		BP:          r.sc.BP,
		Team:        r.sc.TeamSection,
		Market:      r.sc.MarketSection,
		Fanout:      r.sem,
	}

	var ddqRes, valRes, exitRes *agent.Result
	g := &errgroup.Group{}
	g.Go(func() error {
		phaseCtx, cancel := context.WithTimeout(ctx, r.engine.Timeouts.DDQ)
		defer cancel()
		ddqRes = r.engine.ddq.Analyze(phaseCtx, in)
		return nil
	})
	g.Go(func() error {
		phaseCtx, cancel := context.WithTimeout(ctx, r.engine.Timeouts.DDQ)
		defer cancel()
		valRes = r.engine.valuer.Analyze(phaseCtx, in)
		r.progress(idx, models.StateDDQuestions, 60, "exit")

		exitIn := *in
		exitIn.Valuation = valRes.Output.(*models.ValuationOutput)
		exitRes = r.engine.exit.Analyze(phaseCtx, &exitIn)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return r.canceled(ctx, idx)
	}

	r.sc.DDQuestions = ddqRes.Output.([]models.DDQuestion)
	r.sc.Valuation = valRes.Output.(*models.ValuationOutput)
	r.sc.ExitAnalysis = exitRes.Output.(*models.ExitOutput)

	degraded := ddqRes.Degraded || valRes.Degraded || exitRes.Degraded
	_ = r.s.Update(ctx, func(rec *models.SessionRecord) {
		rec.Steps[idx].SubSteps = []string{"questions", "valuation", "exit"}
	})
	r.completeStep(ctx, idx, models.StateDDQuestions, ddqRes.Output, degraded)
	return true
}

// humanReview suspends the workflow until a reviewer responds. The
// draft IM rides on the hitl_required event so the reviewer sees what
// they are approving.
func (r *run) humanReview(ctx context.Context) bool {
	if !r.enter(ctx, models.StateHITLReview) {
		return false
	}
	idx := r.startStep(models.StateHITLReview, "Awaiting human review")
	_ = r.s.Update(ctx, func(rec *models.SessionRecord) {
		rec.Steps[idx].Status = models.StepStatusPaused
	})

	draft := r.assembleIM()
	r.s.Publish(events.Event{
		Type:      events.EventTypeHITLRequired,
		State:     string(models.StateHITLReview),
		StepIndex: idx,
		Result:    draft,
	})
	slog.Info("Workflow suspended for human review", "session_id", r.s.ID)

	note, err := r.s.AwaitReview(ctx)
	if err != nil {
		return r.canceled(ctx, idx)
	}

	r.sc.HumanReview = note
	r.completeStep(ctx, idx, models.StateHITLReview, note, false)
	return true
}

// --- terminal states ---

func (r *run) complete(ctx context.Context) {
	im := r.assembleIM()
	r.sc.IM = im
	_ = r.s.Update(ctx, func(rec *models.SessionRecord) {
		rec.State = models.StateCompleted
		rec.Context = r.sc
	})
	r.s.Publish(events.Event{
		Type:   events.EventTypeWorkflowComplete,
		State:  string(models.StateCompleted),
		Result: im,
	})
	slog.Info("Workflow completed", "session_id", r.s.ID, "company", im.CompanyName)
}

// canceled records the ERROR terminal for a canceled session. Every
// step still open is closed as an error so the terminal snapshot never
// shows a running step; parallel phases leave more than one open.
// Always returns false so phase methods can tail-call it.
func (r *run) canceled(ctx context.Context, idx int) bool {
	reason := "canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "phase_timeout"
	}
	bg := context.Background()
	_ = r.s.Update(bg, func(rec *models.SessionRecord) {
		now := time.Now().UTC()
		for i := range rec.Steps {
			if !rec.Steps[i].Status.IsTerminal() {
				rec.Steps[i].Status = models.StepStatusError
				rec.Steps[i].Error = reason
				rec.Steps[i].EndedAt = &now
			}
		}
		rec.State = models.StateError
		rec.ErrorReason = reason
		rec.Context = r.sc
	})
	r.s.Publish(events.Event{
		Type:      events.EventTypeWorkflowError,
		State:     string(models.StateError),
		StepIndex: idx,
		Reason:    reason,
	})
	slog.Info("Workflow ended", "session_id", r.s.ID, "reason", reason)
	return false
}

// fail records the ERROR terminal for an internal failure.
func (r *run) fail(reason string) {
	bg := context.Background()
	_ = r.s.Update(bg, func(rec *models.SessionRecord) {
		rec.State = models.StateError
		rec.ErrorReason = reason
		rec.Context = r.sc
	})
	r.s.Publish(events.Event{
		Type:   events.EventTypeWorkflowError,
		State:  string(models.StateError),
		Reason: reason,
	})
}

// --- step bookkeeping ---

// enter records the state transition; it fails only when the session
// was canceled before the phase began.
func (r *run) enter(ctx context.Context, state models.WorkflowState) bool {
	if ctx.Err() != nil {
		return r.canceled(ctx, -1)
	}
	_ = r.s.Update(ctx, func(rec *models.SessionRecord) {
		rec.State = state
		rec.Context = r.sc
	})
	return true
}

func (r *run) startStep(state models.WorkflowState, title string) int {
	idx := r.steps
	r.steps++
	_ = r.s.Update(context.Background(), func(rec *models.SessionRecord) {
		rec.Steps = append(rec.Steps, models.Step{
			Index:     idx,
			Title:     title,
			Status:    models.StepStatusRunning,
			StartedAt: time.Now().UTC(),
		})
	})
	r.s.Publish(events.Event{
		Type:      events.EventTypeStepStart,
		State:     string(state),
		StepIndex: idx,
		StepTitle: title,
	})
	return idx
}

func (r *run) progress(idx int, state models.WorkflowState, percent int, subStep string) {
	_ = r.s.Update(context.Background(), func(rec *models.SessionRecord) {
		if idx < len(rec.Steps) {
			rec.Steps[idx].Progress = percent
		}
	})
	r.s.Publish(events.Event{
		Type:      events.EventTypeStepProgress,
		State:     string(state),
		StepIndex: idx,
		Percent:   percent,
		SubStep:   subStep,
	})
}

func (r *run) completeStep(ctx context.Context, idx int, state models.WorkflowState, output any, degraded bool) {
	now := time.Now().UTC()
	result := &models.StepResult{Degraded: degraded, Output: output}
	_ = r.s.Update(ctx, func(rec *models.SessionRecord) {
		rec.Steps[idx].Status = models.StepStatusSuccess
		rec.Steps[idx].Result = result
		rec.Steps[idx].Progress = 100
		rec.Steps[idx].EndedAt = &now
		rec.Context = r.sc
	})

	status := string(models.StepStatusSuccess)
	if degraded {
		status = "degraded"
	}
	r.s.Publish(events.Event{
		Type:      events.EventTypeStepComplete,
		State:     string(state),
		StepIndex: idx,
		Status:    status,
		Result:    result,
	})
}

// assembleIM builds the preliminary investment memorandum from whatever
// the phases produced; nil sections simply stay absent.
func (r *run) assembleIM() *models.PreliminaryIM {
	name := r.s.Req.CompanyName
	if r.sc.BP != nil && r.sc.BP.CompanyName != "" {
		name = r.sc.BP.CompanyName
	}
	return &models.PreliminaryIM{
		CompanyName:     name,
		TeamSection:     r.sc.TeamSection,
		MarketSection:   r.sc.MarketSection,
		CrossCheck:      r.sc.CrossCheck,
		DDQuestions:     r.sc.DDQuestions,
		Valuation:       r.sc.Valuation,
		ExitAnalysis:    r.sc.ExitAnalysis,
		PreferenceCheck: r.sc.PreferenceCheck,
		HumanReview:     r.sc.HumanReview,
		GeneratedAt:     time.Now().UTC(),
	}
}
