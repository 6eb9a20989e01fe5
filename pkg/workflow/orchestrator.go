package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/andriantochan/signbench/pkg/checkpoint"
	"github.com/andriantochan/signbench/pkg/models"
	"github.com/andriantochan/signbench/pkg/retry"
	"github.com/andriantochan/signbench/pkg/signing"
	"github.com/andriantochan/signbench/pkg/timing"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Step names double as checkpoint keys, so they must stay stable across
// versions or old checkpoints stop resuming.
const (
	StepGetAccessToken = "Token Access"
	StepUploadFiles    = "Upload Files"
	StepRequestSign    = "RequestSign Submit"
	StepGetUserToken   = "Token User"
	StepAuthOTP        = "OTP Auth"
	StepExecuteSign    = "ExecuteSign Trigger"
	StepCheckStatus    = "CheckStatus Poll"
)

// ErrInterrupted is returned when the run stopped because the context was
// cancelled (operator interrupt). The checkpoint has already been saved.
var ErrInterrupted = errors.New("workflow interrupted")

// ErrPollTimeout is returned when the status poll hit its check limit
// without observing the terminal message.
var ErrPollTimeout = errors.New("status polling timed out")

// Logger defines the logging interface for the Orchestrator.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Tracef(format string, args ...interface{})
}

// Options are the tunables of one run. Defaults mirror the original k6
// scenario against the Tilaka staging environment.
type Options struct {
	PDFPath        string
	NumUploads     int
	SignPerDoc     int
	UserIdentifier string
	SignatureImage string

	CoordX     int
	CoordY     int
	Width      int
	Height     int
	PageNumber int

	MaxRetries    int
	BackoffFactor float64 // seconds

	TokenPause      time.Duration // pause after token acquisition
	UploadPause     time.Duration // pause between artifact uploads
	PollInterval    time.Duration
	MaxStatusChecks int
	CheckpointEvery int // uploads between incremental checkpoints
}

// Orchestrator drives the fixed step sequence of one signing run. It owns
// the WorkflowState for the run's duration, saves a checkpoint after every
// completed step, and resumes from a loaded checkpoint when asked.
type Orchestrator struct {
	opts     Options
	client   signing.Client
	store    checkpoint.Store
	recorder *timing.Recorder
	engine   *retry.Engine
	logger   Logger

	runID     string
	state     models.WorkflowState
	completed []string
	done      map[string]bool

	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(opts Options, client signing.Client, store checkpoint.Store, recorder *timing.Recorder, logger Logger) *Orchestrator {
	o := &Orchestrator{
		opts:     opts,
		client:   client,
		store:    store,
		recorder: recorder,
		logger:   logger,
		done:     make(map[string]bool),
		sleep:    sleepCtx,
	}
	o.engine = retry.NewEngine(opts.MaxRetries, opts.BackoffFactor, o.refreshAccessToken, logger)
	return o
}

// SetSleep replaces the pause primitive for both step pauses and retry
// backoff. Tests use this to observe waits without real delays.
func (o *Orchestrator) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	o.sleep = fn
	o.engine.SetSleep(fn)
}

// State returns the workflow state as it currently stands.
func (o *Orchestrator) State() models.WorkflowState {
	return o.state.Clone()
}

// RunID returns the identifier of the current run ("" before Run).
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run executes the full step sequence. With resume set, a previously saved
// checkpoint restores token-independent progress; token steps always
// re-execute because their results expire between runs. On cancellation the
// checkpoint is saved and ErrInterrupted returned; on failure the failing
// step and the last checkpointed step are logged before the error
// propagates. A fully successful run clears the checkpoint.
func (o *Orchestrator) Run(ctx context.Context, resume bool) error {
	if err := o.prepare(resume); err != nil {
		return err
	}
	o.logger.Infof("Starting run %s with request_id %s (%d uploads)", o.runID, o.state.RequestID, o.opts.NumUploads)

	for _, step := range o.steps() {
		if ctx.Err() != nil {
			return o.interrupt(step.Name)
		}
		if step.Resumable && o.done[step.Name] {
			o.logger.Infof("Skipping step %q: already completed in checkpoint", step.Name)
			continue
		}

		err := step.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return o.interrupt(step.Name)
			}
			o.logger.Errorf("Step %q failed: %v (last checkpointed step: %q)", step.Name, err, o.lastCompleted())
			o.persist()
			return errors.Wrapf(err, "step %q", step.Name)
		}

		o.markCompleted(step.Name)
	}

	if err := o.store.Clear(); err != nil {
		o.logger.Warnf("Failed to clear checkpoint after successful run: %v", err)
	}
	o.logger.Infof("Run %s completed, %d files signed", o.runID, len(o.state.UploadedFiles))
	return nil
}

func (o *Orchestrator) steps() []models.StepDefinition {
	record := func(name string, fn models.StepFunc) models.StepFunc {
		return func(ctx context.Context) error {
			return o.recorder.Record(name, func() error { return fn(ctx) })
		}
	}
	return []models.StepDefinition{
		// Token steps are never skipped on resume: tokens expire.
		{Name: StepGetAccessToken, Run: record(StepGetAccessToken, o.stepGetAccessToken), Resumable: false},
		// Upload timing is recorded per artifact inside the step.
		{Name: StepUploadFiles, Run: o.stepUploadFiles, Resumable: true},
		{Name: StepRequestSign, Run: record(StepRequestSign, o.stepRequestSign), Resumable: true},
		{Name: StepGetUserToken, Run: record(StepGetUserToken, o.stepGetUserToken), Resumable: false},
		{Name: StepAuthOTP, Run: record(StepAuthOTP, o.stepAuthOTP), Resumable: true},
		{Name: StepExecuteSign, Run: record(StepExecuteSign, o.stepExecuteSign), Resumable: true},
		{Name: StepCheckStatus, Run: record(StepCheckStatus, o.stepCheckStatus), Resumable: true},
	}
}

func (o *Orchestrator) prepare(resume bool) error {
	if resume {
		cp, err := o.store.Load()
		if err != nil {
			return errors.Wrap(err, "load checkpoint")
		}
		if cp != nil {
			o.runID = cp.RunID
			o.state = cp.State.Clone()
			o.completed = append([]string(nil), cp.CompletedSteps...)
			for _, name := range cp.CompletedSteps {
				o.done[name] = true
			}
			o.logger.Infof("Resuming run %s from step %q (%d files already uploaded)",
				o.runID, cp.LastStep(), len(o.state.UploadedFiles))
			return nil
		}
		o.logger.Infof("No usable checkpoint found, starting fresh")
	}

	o.runID = uuid.NewString()
	o.state = models.WorkflowState{
		RequestID:      randomID(6),
		UserIdentifier: o.opts.UserIdentifier,
	}
	return nil
}

func (o *Orchestrator) stepGetAccessToken(ctx context.Context) error {
	err := o.engine.Do(ctx, StepGetAccessToken, func(ctx context.Context) error {
		token, err := o.client.GetAccessToken(ctx)
		if err != nil {
			return err
		}
		o.state.AccessToken = token
		return nil
	})
	if err != nil {
		return err
	}
	return o.sleep(ctx, o.opts.TokenPause)
}

func (o *Orchestrator) stepUploadFiles(ctx context.Context) error {
	// Per-artifact resume: indices already in UploadedFiles were durably
	// observed by an earlier run and are not repeated.
	start := len(o.state.UploadedFiles)
	if start > 0 {
		o.logger.Infof("Resuming uploads at file %d of %d", start+1, o.opts.NumUploads)
	}

	for i := start; i < o.opts.NumUploads; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		op := fmt.Sprintf("Upload File %d", i+1)
		var filename string
		details := map[string]string{}
		err := o.recorder.RecordDetailed(op, details, func() error {
			return o.engine.Do(ctx, op, func(ctx context.Context) error {
				var uploadErr error
				filename, uploadErr = o.client.UploadFile(ctx, o.state.AccessToken, o.opts.PDFPath)
				return uploadErr
			})
		})
		if err != nil {
			return err
		}
		details["filename"] = filename
		o.state.UploadedFiles = append(o.state.UploadedFiles, filename)
		o.logger.Infof("Uploaded file %d/%d as %s", i+1, o.opts.NumUploads, filename)

		// Incremental checkpoints bound data loss to CheckpointEvery
		// uploads on a crash.
		if o.opts.CheckpointEvery > 0 && (i+1)%o.opts.CheckpointEvery == 0 {
			o.persist()
		}

		if i+1 < o.opts.NumUploads {
			if err := o.sleep(ctx, o.opts.UploadPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) stepRequestSign(ctx context.Context) error {
	if o.state.SignerSessionID != "" {
		// Re-submitting would create a duplicate signing request
		// server-side; the captured session identifier is reused.
		o.logger.Infof("Signer session %s already captured, not re-submitting", o.state.SignerSessionID)
		return nil
	}

	req := o.buildSignRequest()
	return o.engine.Do(ctx, StepRequestSign, func(ctx context.Context) error {
		sessionID, err := o.client.RequestSign(ctx, o.state.AccessToken, req)
		if err != nil {
			return err
		}
		o.state.SignerSessionID = sessionID
		return nil
	})
}

func (o *Orchestrator) buildSignRequest() signing.SignRequest {
	req := signing.SignRequest{
		RequestID: o.state.RequestID,
		Signatures: []signing.SignerInfo{{
			UserIdentifier: o.state.UserIdentifier,
			SignatureImage: o.opts.SignatureImage,
			Sequence:       1,
		}},
	}
	for _, filename := range o.state.UploadedFiles {
		entry := signing.PDFEntry{Filename: filename, Signatures: []signing.SignaturePlacement{}}
		for j := 0; j < o.opts.SignPerDoc; j++ {
			entry.Signatures = append(entry.Signatures, signing.SignaturePlacement{
				UserIdentifier: o.state.UserIdentifier,
				Width:          o.opts.Width,
				Height:         o.opts.Height,
				CoordinateX:    o.opts.CoordX,
				CoordinateY:    o.opts.CoordY,
				PageNumber:     o.opts.PageNumber,
			})
		}
		req.ListPDF = append(req.ListPDF, entry)
	}
	return req
}

func (o *Orchestrator) stepGetUserToken(ctx context.Context) error {
	err := o.engine.Do(ctx, StepGetUserToken, func(ctx context.Context) error {
		token, err := o.client.GetUserToken(ctx)
		if err != nil {
			return err
		}
		o.state.UserToken = token
		return nil
	})
	if err != nil {
		return err
	}
	return o.sleep(ctx, o.opts.TokenPause)
}

func (o *Orchestrator) stepAuthOTP(ctx context.Context) error {
	return o.engine.Do(ctx, StepAuthOTP, func(ctx context.Context) error {
		return o.client.AuthOTP(ctx, o.state.UserToken, o.state.UserIdentifier, o.state.SignerSessionID)
	})
}

func (o *Orchestrator) stepExecuteSign(ctx context.Context) error {
	return o.engine.Do(ctx, StepExecuteSign, func(ctx context.Context) error {
		return o.client.ExecuteSign(ctx, o.state.AccessToken, o.state.RequestID, o.state.UserIdentifier)
	})
}

func (o *Orchestrator) stepCheckStatus(ctx context.Context) error {
	for check := 1; check <= o.opts.MaxStatusChecks; check++ {
		var message string
		err := o.engine.Do(ctx, StepCheckStatus, func(ctx context.Context) error {
			var pollErr error
			// Only the first poll response goes to the response log.
			message, pollErr = o.client.CheckStatus(ctx, o.state.AccessToken, o.state.RequestID, check == 1)
			return pollErr
		})
		if err != nil {
			return err
		}

		o.logger.Tracef("Status check %d: %s", check, message)
		if message == signing.StatusDone {
			o.logger.Infof("Signing completed after %d status checks", check)
			return nil
		}

		if check < o.opts.MaxStatusChecks {
			if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
				return err
			}
		}
	}
	o.logger.Warnf("Status polling gave up after %d checks", o.opts.MaxStatusChecks)
	return ErrPollTimeout
}

// refreshAccessToken is the retry engine's recovery hook for unauthorized
// responses. It replaces the shared access token in place.
func (o *Orchestrator) refreshAccessToken(ctx context.Context) error {
	token, err := o.client.GetAccessToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh access token")
	}
	o.state.AccessToken = token
	return nil
}

func (o *Orchestrator) markCompleted(name string) {
	if !o.done[name] {
		o.completed = append(o.completed, name)
		o.done[name] = true
	}
	o.persist()
}

func (o *Orchestrator) interrupt(stepName string) error {
	o.logger.Warnf("Interrupted during step %q, saving checkpoint", stepName)
	o.persist()
	return ErrInterrupted
}

func (o *Orchestrator) persist() {
	cp := &models.Checkpoint{
		RunID:          o.runID,
		State:          o.state.Clone(),
		CompletedSteps: append([]string(nil), o.completed...),
	}
	if err := o.store.Save(cp); err != nil {
		o.logger.Errorf("Failed to save checkpoint: %v", err)
	}
}

func (o *Orchestrator) lastCompleted() string {
	if len(o.completed) == 0 {
		return "<none>"
	}
	return o.completed[len(o.completed)-1]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
