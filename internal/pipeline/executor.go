package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"veridoc/internal/domain"
	"veridoc/internal/eventbus"
	"veridoc/internal/lifecycle"
	pipemetrics "veridoc/internal/pipeline/metrics"
	"veridoc/internal/pipeline/stages"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// PolicyResolver supplies the tenant policy a job is pinned to.
type PolicyResolver interface {
	Resolve(ctx context.Context, tenantID id.TenantID) (domain.TenantPolicy, error)
}

// defaultStageTimeout bounds each stage call; the end-to-end online path
// targets under five seconds.
const defaultStageTimeout = 2 * time.Second

// requiredBranches abort the job when they fail; the rest are recorded and
// skipped. Dedup is advisory evidence, so a dedup index outage must not take
// the job down.
var requiredBranches = map[string]bool{
	"classification":   true,
	"authenticity":     true,
	"dedup_behavioral": false,
}

var defaultModelVersions = map[string]string{
	"ocr":        "1.0.0",
	"classifier": "2.0.0",
	"fraud":      "1.0.0",
}

// Executor drives one document job through the fixed stage graph:
// preprocess, ocr, the parallel branch set, the merge barrier, the post-merge
// analysis stages, and the decision. It is the only writer of branch results
// and the only caller of pipeline-internal state transitions.
type Executor struct {
	manager  *lifecycle.Manager
	jobs     stages.DedupCounter
	policies PolicyResolver
	results  ResultStore
	bus      *eventbus.Bus
	logger   *slog.Logger

	metrics      *pipemetrics.Metrics
	stageTimeout time.Duration
	clock        func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

func WithStageTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.stageTimeout = d
		}
	}
}

func WithMetrics(m *pipemetrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

func WithClock(clock func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func NewExecutor(
	manager *lifecycle.Manager,
	jobs stages.DedupCounter,
	policies PolicyResolver,
	results ResultStore,
	bus *eventbus.Bus,
	logger *slog.Logger,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		manager:      manager,
		jobs:         jobs,
		policies:     policies,
		results:      results,
		bus:          bus,
		logger:       logger,
		stageTimeout: defaultStageTimeout,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit registers a new document job. Processing is started separately so
// callers control whether it runs inline or in the background.
func (e *Executor) Submit(ctx context.Context, sub domain.Submission) (domain.DocumentJob, error) {
	job, _, err := e.manager.Create(ctx, sub)
	return job, err
}

// Status returns the current job snapshot.
func (e *Executor) Status(ctx context.Context, documentID id.DocumentID) (domain.DocumentJob, error) {
	return e.manager.Get(ctx, documentID)
}

// Result returns the structured record for a decided document. Undecided
// jobs and provisional results that have not been reconciled report NotReady.
func (e *Executor) Result(ctx context.Context, documentID id.DocumentID) (Record, error) {
	job, err := e.manager.Get(ctx, documentID)
	if err != nil {
		return Record{}, err
	}
	if _, ok := job.ReportableDecision(); !ok {
		return Record{}, dErrors.Newf(dErrors.CodeNotReady, "document %s has no reportable result yet", documentID)
	}
	return e.results.GetRecord(ctx, documentID, job.JobID)
}

// run is the pipeline context threaded through the stages of one execution.
type run struct {
	job    domain.DocumentJob
	policy domain.TenantPolicy
	prev   id.EventID

	pre       stages.PreprocessResult
	ocr       stages.OCRResult
	cls       stages.Classification
	markers   stages.MarkerResult
	forensics stages.ForensicsResult
	dedup     stages.DedupResult
}

// Process executes the full pipeline for a document currently in RECEIVED.
// On an unrecoverable fault the partial branch results already persisted are
// kept and the job transitions to FAILED.
func (e *Executor) Process(ctx context.Context, documentID id.DocumentID) (Record, error) {
	job, err := e.manager.Get(ctx, documentID)
	if err != nil {
		return Record{}, err
	}
	if job.State != domain.StateReceived {
		return Record{}, dErrors.Newf(dErrors.CodeConflict,
			"document %s is in %s; re-ingest before processing again", documentID, job.State)
	}
	policy, err := e.policies.Resolve(ctx, job.TenantID)
	if err != nil {
		return Record{}, err
	}

	r := &run{job: job, policy: policy}
	if log, err := e.bus.DocumentLog(ctx, documentID); err == nil && len(log) > 0 {
		r.prev = log[len(log)-1].EventID
	}

	record, err := e.process(ctx, r)
	if err != nil {
		e.fail(ctx, r, err)
		return Record{}, err
	}
	return record, nil
}

func (e *Executor) process(ctx context.Context, r *run) (Record, error) {
	if err := e.preprocess(ctx, r); err != nil {
		return Record{}, err
	}
	if err := e.recognize(ctx, r); err != nil {
		return Record{}, err
	}
	if err := e.runBranches(ctx, r); err != nil {
		return Record{}, err
	}
	return e.mergeAndDecide(ctx, r)
}

func (e *Executor) preprocess(ctx context.Context, r *run) error {
	err := e.runStage(ctx, "preprocess", func(ctx context.Context) error {
		r.pre = stages.Preprocess(r.job.RawText)
		return nil
	})
	if err != nil {
		return err
	}

	job, event, err := e.transition(ctx, r, lifecycle.TransitionRequest{
		DocumentID: r.job.DocumentID,
		Trigger:    eventbus.TypeDocumentPreprocessed,
		Actor:      domain.SystemActor(),
		Payload: map[string]any{
			"quality_score": r.pre.QualityScore,
			"dedup_hash":    r.pre.DedupHash,
			"steps_applied": r.pre.StepsApplied,
		},
		Mutate: func(j *domain.DocumentJob) {
			j.DedupHash = r.pre.DedupHash
		},
	})
	if err != nil {
		return err
	}
	r.job, r.prev = job, event.EventID
	return nil
}

func (e *Executor) recognize(ctx context.Context, r *run) error {
	err := e.runStage(ctx, "ocr", func(ctx context.Context) error {
		r.ocr = stages.RecognizeText(r.pre)
		return nil
	})
	if err != nil {
		return err
	}

	if r.ocr.Text == "" {
		if _, pubErr := e.bus.Publish(ctx, eventbus.Event{
			DocumentID:    r.job.DocumentID,
			TenantID:      r.job.TenantID,
			Type:          eventbus.TypeRequiresReupload,
			Actor:         domain.SystemActor(),
			Payload:       map[string]any{"message": "document text could not be recognized", "reason_code": "EMPTY_OCR_OUTPUT"},
			CorrelationID: r.job.JobID,
			CausationID:   r.prev,
		}); pubErr != nil {
			e.logger.WarnContext(ctx, "reupload notice publish failed", "error", pubErr)
		}
	}

	job, event, err := e.transition(ctx, r, lifecycle.TransitionRequest{
		DocumentID: r.job.DocumentID,
		Trigger:    eventbus.TypeOCRCompleted,
		Actor:      domain.SystemActor(),
		Payload: map[string]any{
			"ocr_confidence": r.ocr.Confidence,
			"script":         r.ocr.Script,
		},
	})
	if err != nil {
		return err
	}
	r.job, r.prev = job, event.EventID
	return nil
}

// runBranches fans the three analysis branches out, persists each result as
// it lands, and joins at the merge barrier. A required-branch failure cancels
// the remaining branches; completed results are never discarded.
func (e *Executor) runBranches(ctx context.Context, r *run) error {
	job, event, err := e.transition(ctx, r, lifecycle.TransitionRequest{
		DocumentID: r.job.DocumentID,
		Trigger:    eventbus.TypeBranchStarted,
		Actor:      domain.SystemActor(),
		Payload:    map[string]any{"modules": eventbus.BranchModules},
	})
	if err != nil {
		return err
	}
	r.job, r.prev = job, event.EventID

	g, branchCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.runBranch(branchCtx, r, "classification", func(ctx context.Context) (map[string]any, error) {
			r.cls = stages.Classify(r.ocr, r.pre, "")
			return map[string]any{
				"document_type": r.cls.DocumentType,
				"confidence":    r.cls.Confidence,
				"reasons":       r.cls.Reasons,
			}, nil
		})
	})
	g.Go(func() error {
		return e.runBranch(branchCtx, r, "authenticity", func(ctx context.Context) (map[string]any, error) {
			r.markers = stages.DetectMarkers(r.ocr.Text)
			r.forensics = stages.InspectForensics(r.ocr.Text)
			return map[string]any{
				"authenticity_score": r.markers.AuthenticityScore,
				"tamper_risk":        r.forensics.TamperRisk,
				"tamper_indicators":  r.forensics.TamperIndicators,
			}, nil
		})
	})
	g.Go(func() error {
		return e.runBranch(branchCtx, r, "dedup_behavioral", func(ctx context.Context) (map[string]any, error) {
			var err error
			r.dedup, err = stages.CheckDuplicates(ctx, e.jobs, r.job.TenantID, r.job.DocumentID, r.pre.DedupHash, r.policy.CrossTenantDedup)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"duplicate_count":     r.dedup.DuplicateCount,
				"suspected_duplicate": r.dedup.SuspectedDuplicate,
				"dedup_scope":         r.dedup.Scope,
			}, nil
		})
	})

	return g.Wait()
}

// runBranch executes one branch under the stage timeout and records its
// BranchResult. Optional branch failures are swallowed after being recorded.
func (e *Executor) runBranch(ctx context.Context, r *run, module string, fn func(context.Context) (map[string]any, error)) error {
	started := e.clock()
	var output map[string]any
	err := e.runStage(ctx, module, func(ctx context.Context) error {
		var stageErr error
		output, stageErr = fn(ctx)
		return stageErr
	})

	result := BranchResult{
		DocumentID: r.job.DocumentID,
		JobID:      r.job.JobID,
		Module:     module,
		Status:     BranchDone,
		Output:     output,
		StartedAt:  started,
		FinishedAt: e.clock(),
	}
	status := "DONE"
	if err != nil {
		result.Error = err.Error()
		status = "FAILED"
		if requiredBranches[module] {
			result.Status = BranchFailed
		} else {
			result.Status = BranchSkipped
		}
	}
	if saveErr := e.results.SaveBranch(ctx, result); saveErr != nil {
		e.logger.ErrorContext(ctx, "branch result save failed",
			"module", module, "document_id", r.job.DocumentID.String(), "error", saveErr)
	}

	if _, pubErr := e.bus.Publish(ctx, eventbus.Event{
		DocumentID:    r.job.DocumentID,
		TenantID:      r.job.TenantID,
		Type:          eventbus.BranchCompleted(module),
		Actor:         domain.SystemActor(),
		Payload:       map[string]any{"module": module, "status": status},
		CorrelationID: r.job.JobID,
		CausationID:   r.prev,
	}); pubErr != nil {
		e.logger.WarnContext(ctx, "branch event publish failed", "module", module, "error", pubErr)
	}

	if err != nil && requiredBranches[module] {
		return fmt.Errorf("required branch %s failed: %w", module, err)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "optional branch skipped",
			"module", module, "document_id", r.job.DocumentID.String(), "error", err)
	}
	return nil
}

func (e *Executor) mergeAndDecide(ctx context.Context, r *run) (Record, error) {
	var (
		extraction stages.Extraction
		registry   stages.RegistryResult
		validation stages.Validation
		fraud      stages.FraudResult
	)
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"extract", func(context.Context) error {
			extraction = stages.ExtractFields(r.ocr.Text, r.cls.DocumentType)
			return nil
		}},
		{"issuer_verify", func(context.Context) error {
			registry = stages.VerifyIssuer(r.cls, extraction.Fields)
			return nil
		}},
		{"validate", func(context.Context) error {
			validation = stages.Validate(extraction, registry, r.policy)
			return nil
		}},
		{"fraud", func(context.Context) error {
			fraud = stages.ScoreFraud(r.dedup, r.forensics, r.pre.QualityScore, registry)
			return nil
		}},
	}
	for _, step := range steps {
		if err := e.runStage(ctx, step.name, step.fn); err != nil {
			return Record{}, err
		}
	}

	merged := merge(validation, fraud, registry, r.markers, r.forensics)

	job, event, err := e.transition(ctx, r, lifecycle.TransitionRequest{
		DocumentID: r.job.DocumentID,
		Trigger:    eventbus.TypeDocumentMerged,
		Actor:      domain.SystemActor(),
		Payload: map[string]any{
			"confidence": merged.Confidence,
			"risk_score": merged.RiskScore,
			"risk_level": merged.RiskLevel,
		},
		Mutate: func(j *domain.DocumentJob) {
			j.Confidence = merged.Confidence
			j.RiskScore = merged.RiskScore
		},
	})
	if err != nil {
		return Record{}, err
	}
	r.job, r.prev = job, event.EventID

	if fraud.RiskLevel == "HIGH" || fraud.RiskLevel == "CRITICAL" {
		if _, pubErr := e.bus.Publish(ctx, eventbus.Event{
			DocumentID:    r.job.DocumentID,
			TenantID:      r.job.TenantID,
			Type:          eventbus.TypeFraudFlagged,
			Actor:         domain.SystemActor(),
			Payload:       map[string]any{"risk_level": fraud.RiskLevel, "aggregate_fraud_risk_score": fraud.Score},
			CorrelationID: r.job.JobID,
			CausationID:   r.prev,
		}); pubErr != nil {
			e.logger.WarnContext(ctx, "fraud flag publish failed", "error", pubErr)
		}
	}

	decision := decide(merged, r.policy)
	e.metrics.IncrementDecision(string(decision.Decision))

	if err := e.applyDecision(ctx, r, decision); err != nil {
		return Record{}, err
	}

	record := Record{
		DocumentID:     r.job.DocumentID,
		JobID:          r.job.JobID,
		TenantID:       r.job.TenantID,
		Decision:       string(decision.Decision),
		Confidence:     decision.Confidence,
		RiskScore:      decision.RiskScore,
		RiskLevel:      merged.RiskLevel,
		ReasonCodes:    decision.ReasonCodes,
		Fields:         extraction.Fields,
		MissingFields:  extraction.RequiredMissing,
		RegistryStatus: registry.Status,
		DedupHash:      r.pre.DedupHash,
		DuplicateCount: r.dedup.DuplicateCount,
		Script:         r.ocr.Script,
		DocumentType:   r.cls.DocumentType,
		QualityScore:   r.pre.QualityScore,
		TamperRisk:     r.forensics.TamperRisk,
		PolicyVersion:  r.policy.Version,
		ModelVersions:  defaultModelVersions,
		CreatedAt:      e.clock(),
	}
	if err := e.results.SaveRecord(ctx, record); err != nil {
		return Record{}, err
	}

	e.logger.InfoContext(ctx, "pipeline complete",
		"document_id", r.job.DocumentID.String(),
		"decision", decision.Decision,
		"confidence", decision.Confidence,
		"risk_score", decision.RiskScore,
	)
	return record, nil
}

// applyDecision drives the outgoing edge from MERGED. Only final outcomes are
// stamped on the job; a review referral leaves the decision unset so the
// document stays unreportable until an officer resolves it. Offline-origin
// jobs keep provisional standing until reconciliation lands SYNCED.
func (e *Executor) applyDecision(ctx context.Context, r *run, decision DecisionOutput) error {
	req := lifecycle.TransitionRequest{
		DocumentID: r.job.DocumentID,
		Actor:      domain.SystemActor(),
		Decision:   decision.Decision,
	}
	switch decision.Decision {
	case domain.DecisionApprove:
		req.Trigger = eventbus.TypeDocumentApproved
		req.Payload = map[string]any{"decision": string(decision.Decision), "confidence": decision.Confidence}
	case domain.DecisionReject:
		req.Trigger = eventbus.TypeDocumentRejected
		req.Payload = map[string]any{"decision": string(decision.Decision), "reason_codes": decision.ReasonCodes}
	default:
		req.Trigger = eventbus.TypeFlaggedForReview
		req.Payload = map[string]any{"reason_codes": decision.ReasonCodes, "risk_score": decision.RiskScore}
	}
	if decision.Decision == domain.DecisionApprove || decision.Decision == domain.DecisionReject {
		req.Mutate = func(j *domain.DocumentJob) {
			j.Decision = decision.Decision
			if j.Provisional {
				j.LegalStanding = domain.StandingProvisional
			} else {
				j.LegalStanding = domain.StandingAuthoritative
			}
		}
	}

	job, event, err := e.transition(ctx, r, req)
	if err != nil {
		return err
	}
	r.job, r.prev = job, event.EventID
	return nil
}

// transition stamps the shared correlation metadata onto a request before
// handing it to the lifecycle manager.
func (e *Executor) transition(ctx context.Context, r *run, req lifecycle.TransitionRequest) (domain.DocumentJob, eventbus.Event, error) {
	req.PolicyVersion = r.policy.Version
	req.ModelVersions = defaultModelVersions
	req.CorrelationID = r.job.JobID
	if req.CausationID.IsZero() {
		req.CausationID = r.prev
	}
	return e.manager.Apply(ctx, req)
}

// runStage bounds one stage call with the per-stage timeout and records its
// duration. A timed-out stage is indistinguishable from a failed one.
func (e *Executor) runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	e.metrics.ObserveStage(name, time.Since(start))
	if err == nil {
		err = stageCtx.Err()
	}
	if err != nil {
		e.metrics.IncrementStageFailure(name)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

// fail drives the job to FAILED. Branch results persisted before the fault
// remain on record.
func (e *Executor) fail(ctx context.Context, r *run, cause error) {
	e.metrics.IncrementJobFailed()
	_, _, err := e.manager.Apply(ctx, lifecycle.TransitionRequest{
		DocumentID:    r.job.DocumentID,
		Trigger:       eventbus.TypeDocumentFailed,
		Actor:         domain.SystemActor(),
		Payload:       map[string]any{"error": cause.Error()},
		Reason:        cause.Error(),
		PolicyVersion: r.policy.Version,
		CorrelationID: r.job.JobID,
		CausationID:   r.prev,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failure transition rejected",
			"document_id", r.job.DocumentID.String(), "cause", cause, "error", err)
		return
	}
	e.logger.ErrorContext(ctx, "pipeline failed",
		"document_id", r.job.DocumentID.String(), "error", cause)
}
