// Package pipeline drives the roster scan flow: upload, question
// generation, answering, shift filtering, job-name mapping, confirmation,
// and commit to the shift store.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shiftbook/rosterscan/internal/auth"
	"github.com/shiftbook/rosterscan/internal/jobs"
	"github.com/shiftbook/rosterscan/internal/mapping"
	"github.com/shiftbook/rosterscan/internal/model"
	"github.com/shiftbook/rosterscan/internal/quota"
	"github.com/shiftbook/rosterscan/internal/store"
	"github.com/shiftbook/rosterscan/pkg/extractor"
)

// State identifies the current pipeline step.
type State string

const (
	StateUpload       State = "upload"
	StateProcessing   State = "processing"
	StateQuestions    State = "questions"
	StateMapping      State = "mapping"
	StateConfirmation State = "confirmation"
	StateSuccess      State = "success"
)

// ShiftSink receives the finished shift records at commit.
type ShiftSink interface {
	SaveShifts(ctx context.Context, userID string, records []model.ShiftRecord) error
}

const defaultSuccessDisplay = 1500 * time.Millisecond

// Controller is the pipeline state machine. One Controller serves one scan;
// it is driven by a single caller at a time, with a mutex guarding state
// against the success auto-close and against use after disposal.
type Controller struct {
	client     extractor.Client
	gate       *quota.Gate
	registry   *jobs.Registry
	reconciler *mapping.Reconciler
	store      store.Store
	sink       ShiftSink
	userID     string

	successDisplay time.Duration
	onClose        func()
	authGate       *auth.Gate

	mu        sync.Mutex
	disposed  bool
	state     State
	image     string
	ocr       *model.OcrResult
	questions []model.SmartQuestion
	shifts    []model.ParsedShift
	person    *model.IdentifiedPerson
	errKind   model.ErrorKind
	errMsg    string
	lastOp    func(ctx context.Context) error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSuccessDisplay overrides how long the success state is shown before
// the close callback fires.
func WithSuccessDisplay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.successDisplay = d
		}
	}
}

// WithCloseCallback sets the callback invoked after the success display.
func WithCloseCallback(fn func()) ControllerOption {
	return func(c *Controller) {
		c.onClose = fn
	}
}

// WithAuthGate makes the controller queue a retry of the failed step behind
// the gate whenever a step fails with an auth error, so the next sign-in
// resumes the scan where it stopped.
func WithAuthGate(g *auth.Gate) ControllerOption {
	return func(c *Controller) {
		c.authGate = g
	}
}

// NewController wires a Controller for one user.
func NewController(
	client extractor.Client,
	gate *quota.Gate,
	registry *jobs.Registry,
	st store.Store,
	sink ShiftSink,
	userID string,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		client:         client,
		gate:           gate,
		registry:       registry,
		reconciler:     mapping.NewReconciler(st),
		store:          st,
		sink:           sink,
		userID:         userID,
		successDisplay: defaultSuccessDisplay,
		state:          StateUpload,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current step.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error overlay, if any. The underlying state is retained
// while an error is shown.
func (c *Controller) Err() (model.ErrorKind, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errKind, c.errMsg, c.errMsg != ""
}

// Questions returns the clarifying questions from the question phase.
func (c *Controller) Questions() []model.SmartQuestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.questions
}

// Shifts returns the current parsed shifts.
func (c *Controller) Shifts() []model.ParsedShift {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ParsedShift, len(c.shifts))
	copy(out, c.shifts)
	return out
}

// UnmappedNames returns the distinct roster job names still needing a
// mapping, in first-occurrence order.
func (c *Controller) UnmappedNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mapping.CollectUnmapped(c.shifts)
}

// Person returns the advisory roster owner identified by the service.
func (c *Controller) Person() *model.IdentifiedPerson {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.person
}

// Process starts the scan: quota check, then the question phase. When the
// service signals it can skip questions, the filter phase runs immediately
// with an empty answer set.
func (c *Controller) Process(ctx context.Context, imageBase64 string) error {
	c.mu.Lock()
	c.clearErrorLocked()
	c.image = imageBase64
	c.lastOp = func(ctx context.Context) error { return c.Process(ctx, imageBase64) }
	c.mu.Unlock()

	if !c.gate.Allowed() {
		u := c.gate.Usage()
		return c.fail(&extractor.Fault{
			Kind:    model.ErrKindLimitExceeded,
			Message: "Monthly scan limit reached. Your quota resets at the start of next month.",
		}, zap.Int("used", u.Used), zap.Int("limit", u.Limit))
	}

	c.setState(StateProcessing)

	p1, err := c.client.Phase1(ctx, imageBase64)
	if err != nil {
		return c.fail(err)
	}
	if c.isDisposed() {
		return nil
	}

	c.gate.Update(p1.ScansUsed, p1.ScanLimit)
	if p1.ScansUsed != nil || p1.ScanLimit != nil {
		u := c.gate.Usage()
		if err := c.store.SetScanUsage(ctx, c.userID, u.Used, u.Limit); err != nil {
			zap.L().Warn("pipeline: scan usage save failed", zap.Error(err))
		}
	}

	c.mu.Lock()
	c.ocr = p1.OCRData
	c.questions = p1.Questions
	c.mu.Unlock()

	if p1.SkipQuestions() {
		zap.L().Info("pipeline: no questions needed, filtering directly")
		return c.runPhase2(ctx, []model.QuestionAnswer{})
	}

	c.setState(StateQuestions)
	return nil
}

// SubmitAnswers sends the user's answers together with the untouched OCR
// data to the filter phase.
func (c *Controller) SubmitAnswers(ctx context.Context, answers []model.QuestionAnswer) error {
	c.mu.Lock()
	c.clearErrorLocked()
	c.lastOp = func(ctx context.Context) error { return c.SubmitAnswers(ctx, answers) }
	c.mu.Unlock()

	return c.runPhase2(ctx, answers)
}

func (c *Controller) runPhase2(ctx context.Context, answers []model.QuestionAnswer) error {
	c.setState(StateProcessing)

	c.mu.Lock()
	ocr := c.ocr
	c.mu.Unlock()

	aliases, err := c.store.ListAliases(ctx, c.userID)
	if err != nil {
		zap.L().Warn("pipeline: alias lookup failed, filtering without aliases", zap.Error(err))
		aliases = nil
	}

	p2, err := c.client.Phase2(ctx, ocr, answers, c.registry.List(), aliases)
	if err != nil {
		return c.fail(err)
	}
	if c.isDisposed() {
		return nil
	}

	shifts := mapping.Reconcile(p2.Shifts, c.registry.KnownIDs())

	c.mu.Lock()
	c.shifts = shifts
	c.person = p2.IdentifiedPerson
	c.mu.Unlock()

	if len(mapping.CollectUnmapped(shifts)) > 0 {
		c.setState(StateMapping)
	} else {
		c.setState(StateConfirmation)
	}
	return nil
}

// AdoptShifts feeds shifts from the legacy single-phase endpoint into the
// same mapping/confirmation stages the two-phase flow uses.
func (c *Controller) AdoptShifts(ctx context.Context, shifts []model.ParsedShift, person *model.IdentifiedPerson) error {
	if c.isDisposed() {
		return nil
	}
	shifts = mapping.Reconcile(shifts, c.registry.KnownIDs())

	c.mu.Lock()
	c.clearErrorLocked()
	c.shifts = shifts
	c.person = person
	c.mu.Unlock()

	if len(mapping.CollectUnmapped(shifts)) > 0 {
		c.setState(StateMapping)
	} else {
		c.setState(StateConfirmation)
	}
	return nil
}

// ApplyMappings applies the user's chosen job mappings and moves to
// confirmation. Aliases flagged for saving are persisted best-effort; a
// storage failure is logged and surfaced as a warning, never as a pipeline
// error.
func (c *Controller) ApplyMappings(ctx context.Context, mappings []model.JobMapping) (warn error) {
	c.mu.Lock()
	c.clearErrorLocked()
	c.shifts = mapping.ApplyMappings(c.shifts, mappings)
	c.mu.Unlock()

	warn = c.reconciler.PersistAliases(ctx, c.userID, mappings)
	c.setState(StateConfirmation)
	return warn
}

// SetSelected toggles whether a shift is included in the commit.
func (c *Controller) SetSelected(shiftID string, selected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.shifts {
		if c.shifts[i].ID == shiftID {
			c.shifts[i].Selected = selected
			return
		}
	}
}

// Confirm commits the selected, mapped shifts to the shift store, shows the
// success state for the display period, then invokes the close callback.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	c.clearErrorLocked()
	c.lastOp = c.Confirm
	shifts := make([]model.ParsedShift, len(c.shifts))
	copy(shifts, c.shifts)
	c.mu.Unlock()

	records := c.buildRecords(shifts)
	if err := c.sink.SaveShifts(ctx, c.userID, records); err != nil {
		return c.fail(&extractor.Fault{Kind: model.ErrKindUnknown, Message: err.Error()})
	}
	if c.isDisposed() {
		return nil
	}

	c.saveIdentifier(ctx)

	zap.L().Info("pipeline: shifts committed",
		zap.String("user", c.userID), zap.Int("count", len(records)))

	c.setState(StateSuccess)
	go func() {
		time.Sleep(c.successDisplay)
		c.mu.Lock()
		disposed := c.disposed
		onClose := c.onClose
		c.mu.Unlock()
		if !disposed && onClose != nil {
			onClose()
		}
	}()
	return nil
}

// saveIdentifier persists the identified roster owner for future scans.
// Best effort; advisory data only.
func (c *Controller) saveIdentifier(ctx context.Context) {
	c.mu.Lock()
	person := c.person
	c.mu.Unlock()
	if person == nil {
		return
	}
	blob := []byte(person.Identifier)
	if len(blob) == 0 {
		blob = []byte(person.Name)
	}
	if len(blob) == 0 {
		return
	}
	if err := c.store.SaveRosterIdentifier(ctx, c.userID, blob); err != nil {
		zap.L().Warn("pipeline: roster identifier save failed", zap.Error(err))
	}
}

// Retry replays the operation that last failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	op := c.lastOp
	c.mu.Unlock()
	if op == nil {
		return nil
	}
	return op(ctx)
}

// Back returns to the upload step, clearing the error overlay. Pipeline
// data is retained until Reset or disposal.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.clearErrorLocked()
	c.state = StateUpload
}

// BackToQuestions returns from mapping to the question step.
func (c *Controller) BackToQuestions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.clearErrorLocked()
	c.state = StateQuestions
}

// Reset discards all pipeline-scoped state and returns to upload.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.clearErrorLocked()
	c.state = StateUpload
	c.image = ""
	c.ocr = nil
	c.questions = nil
	c.shifts = nil
	c.person = nil
	c.lastOp = nil
}

// Dispose marks the controller closed. In-flight completions are ignored
// from this point on.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
}

func (c *Controller) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.state = s
}

// fail records the error overlay and returns err unchanged. The state is
// retained so the user can retry the step that failed.
func (c *Controller) fail(err error, fields ...zap.Field) error {
	kind := extractor.FaultKind(err)
	msg := extractor.FaultMessage(err)

	c.mu.Lock()
	if !c.disposed {
		c.errKind = kind
		c.errMsg = msg
	}
	gate := c.authGate
	c.mu.Unlock()

	if kind == model.ErrKindAuth && gate != nil {
		gate.Defer(func() {
			if err := c.Retry(context.Background()); err != nil {
				zap.L().Warn("pipeline: resumed step failed after sign-in", zap.Error(err))
			}
		})
	}

	zap.L().Error("pipeline: step failed",
		append(fields, zap.String("kind", string(kind)), zap.String("message", msg))...)
	return err
}

func (c *Controller) clearErrorLocked() {
	c.errKind = ""
	c.errMsg = ""
}
