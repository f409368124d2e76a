// Package correction implements the bounded auto-correction loop that
// turns raw OCR text into a validated candidate record. The controller
// drives up to a fixed number of generate, parse, validate, score
// rounds against an injected generation backend and always terminates
// with a usable result: an accepted record, a best-effort record, or a
// hard failure when the backend is unreachable.
package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitaehq/vitae/internal/ocr"
	"github.com/vitaehq/vitae/internal/record"
)

// GenerationClient is the injected text-generation capability. Generate
// owns transport-level retry and timeout; the controller only ever sees
// final success or one of the two sentinel failure kinds. Implementations
// must be safe for concurrent use across document sessions.
type GenerationClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sentinel failure kinds a GenerationClient reports after its own
// transport retries are exhausted.
var (
	// ErrBackendUnavailable means the backend could not be reached or
	// timed out. It ends the session immediately; no correction retry
	// can help an unreachable backend.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrMalformedResponse means the backend answered but the response
	// envelope was missing its expected structure. It consumes one
	// correction iteration like unparseable output.
	ErrMalformedResponse = errors.New("generation backend returned a malformed response")
)

// Defaults for the correction loop.
const (
	DefaultMaxIterations     = 3
	DefaultCoverageThreshold = 0.9
)

// State names a position in the correction state machine.
type State string

const (
	StateStarted    State = "started"
	StateGenerating State = "generating"
	StateValidating State = "validating"
	StateAccepted   State = "accepted"
	StateRetrying   State = "retrying"
	StateExhausted  State = "exhausted"
	StateHardFailed State = "hard_failed"
)

// Outcome is the terminal result kind of a session.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeExhausted  Outcome = "exhausted"
	OutcomeHardFailed Outcome = "hard_failed"
)

// Iteration is one generate, validate, score round. Candidate is nil
// when the raw output could not be parsed; Validation then carries a
// synthetic unparseable-output error and Coverage is zero.
type Iteration struct {
	Index      int
	RawOutput  string
	Candidate  map[string]any
	Validation *ValidationResult
	Coverage   *CoverageResult
}

// Session is the stateful aggregate for one document's correction loop.
// Iterations are appended in strict generation order and the outcome is
// set exactly once, at the terminal transition.
type Session struct {
	DocumentID string
	Reference  string
	Iterations []Iteration
	Outcome    Outcome

	state State
}

// NewSession starts a session in the Started state.
func NewSession(documentID, reference string) *Session {
	return &Session{DocumentID: documentID, Reference: reference, state: StateStarted}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

func (s *Session) transition(next State) {
	s.state = next
}

// finish moves the session to a terminal state. The first terminal
// transition wins; later calls are ignored.
func (s *Session) finish(state State, outcome Outcome) {
	if s.Outcome != "" {
		return
	}
	s.state = state
	s.Outcome = outcome
}

// CallRecord captures one generation call for audit logging.
type CallRecord struct {
	DocumentID string
	Iteration  int
	Prompt     string
	Output     string
	Duration   time.Duration
	Err        error
}

// Options configures a Controller. Zero values take the package
// defaults, so tests can override a single knob without restating the
// rest.
type Options struct {
	MaxIterations     int
	CoverageThreshold float64
	MinTokenLength    int
	MissingTokenCap   int
	Logger            *slog.Logger

	// OnCall, when set, observes every generation call made by the
	// loop. Used to persist call audit rows; must not block for long.
	OnCall func(CallRecord)
}

// Controller runs the correction loop. It holds no per-document state,
// so one Controller may serve many documents concurrently.
type Controller struct {
	client    GenerationClient
	scorer    *Scorer
	maxIter   int
	threshold float64
	logger    *slog.Logger
	onCall    func(CallRecord)
}

// NewController creates a controller around the given generation client.
func NewController(client GenerationClient, opts Options) *Controller {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.CoverageThreshold <= 0 {
		opts.CoverageThreshold = DefaultCoverageThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		client:    client,
		scorer:    NewScorer(opts.MinTokenLength, opts.MissingTokenCap),
		maxIter:   opts.MaxIterations,
		threshold: opts.CoverageThreshold,
		logger:    opts.Logger,
		onCall:    opts.OnCall,
	}
}

// Run corrects one document and returns the assembled final record.
//
// Only backend-unavailable failures are returned as errors, alongside a
// hard-failed record so callers can still persist the attempt. Every
// other failure mode is absorbed into the record's outcome and history.
// Cancellation is honored between iterations and yields an exhausted
// record built from whatever iterations completed.
func (c *Controller) Run(ctx context.Context, doc *ocr.Document) (*FinalRecord, error) {
	reference := doc.SourceText()
	tokens := c.scorer.ReferenceTokens(reference)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.ID, ErrNoReferenceTokens)
	}

	logger := c.logger.With("document", doc.ID)
	logger.Info("starting correction", "reference_tokens", len(tokens), "max_iterations", c.maxIter, "threshold", c.threshold)

	session := NewSession(doc.ID, reference)
	var feedback *Feedback

	for iter := 1; ; iter++ {
		if ctx.Err() != nil {
			logger.Warn("correction cancelled", "completed_iterations", len(session.Iterations))
			session.finish(StateExhausted, OutcomeExhausted)
			return Assemble(session), nil
		}

		session.transition(StateGenerating)
		prompt := BuildPrompt(reference, feedback)

		start := time.Now()
		raw, genErr := c.client.Generate(ctx, prompt)
		if c.onCall != nil {
			c.onCall(CallRecord{
				DocumentID: doc.ID,
				Iteration:  iter,
				Prompt:     prompt,
				Output:     raw,
				Duration:   time.Since(start),
				Err:        genErr,
			})
		}

		if genErr != nil && errors.Is(genErr, ErrBackendUnavailable) {
			logger.Error("generation backend unavailable", "iteration", iter, "error", genErr)
			session.finish(StateHardFailed, OutcomeHardFailed)
			return Assemble(session), fmt.Errorf("document %s: %w", doc.ID, genErr)
		}

		session.transition(StateValidating)
		it := c.evaluate(iter, reference, raw, genErr)
		session.Iterations = append(session.Iterations, it)

		logger.Info("iteration evaluated",
			"iteration", iter,
			"valid", it.Validation.Valid,
			"coverage", it.Coverage.Ratio,
			"errors", len(it.Validation.Errors))

		switch decide(it.Validation.Valid, it.Coverage.Ratio, iter, c.maxIter, c.threshold) {
		case decideAccept:
			session.finish(StateAccepted, OutcomeAccepted)
			logger.Info("record accepted", "iteration", iter, "coverage", it.Coverage.Ratio)
			return Assemble(session), nil
		case decideExhaust:
			session.finish(StateExhausted, OutcomeExhausted)
			logger.Warn("iterations exhausted, keeping best effort", "iterations", len(session.Iterations))
			return Assemble(session), nil
		case decideRetry:
			session.transition(StateRetrying)
			feedback = feedbackFrom(it)
			logger.Debug("retrying with feedback",
				"missing_tokens", len(feedback.MissingTokens),
				"validation_errors", len(feedback.Errors))
		}
	}
}

// evaluate turns one raw generation result into an iteration triple.
// Unparseable output and envelope-level malformed responses become a
// synthetic validation failure with zero coverage, consuming the
// iteration rather than ending the session.
func (c *Controller) evaluate(index int, reference, raw string, genErr error) Iteration {
	it := Iteration{Index: index, RawOutput: raw}

	if genErr != nil {
		it.Validation = &ValidationResult{Errors: []string{fmt.Sprintf("backend response malformed: %v", genErr)}}
		it.Coverage = &CoverageResult{}
		return it
	}

	candidate, err := record.Parse(raw)
	if err != nil {
		it.Validation = &ValidationResult{}
		it.Validation.addError("", CodeUnparseable, "unparseable output: %v", err)
		it.Coverage = &CoverageResult{}
		return it
	}

	it.Candidate = candidate
	it.Validation = Validate(candidate)

	cov, err := c.scorer.Score(reference, candidate)
	if err != nil {
		// Reference emptiness is checked before the loop; any residual
		// scoring error is reported as a diagnostic on the iteration.
		it.Validation.Valid = false
		it.Validation.addError("", CodeCoverageFailed, "coverage scoring failed: %v", err)
		it.Coverage = &CoverageResult{}
		return it
	}
	it.Coverage = cov
	return it
}

type decision int

const (
	decideAccept decision = iota
	decideRetry
	decideExhaust
)

// decide is the pure accept/retry/exhaust function of the state machine.
// It depends only on its arguments, so scripted histories can drive the
// loop deterministically in tests.
func decide(valid bool, ratio float64, iteration, maxIterations int, threshold float64) decision {
	if valid && ratio >= threshold {
		return decideAccept
	}
	if iteration < maxIterations {
		return decideRetry
	}
	return decideExhaust
}
