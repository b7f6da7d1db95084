// Package batch drives the runner across a set of QA datasets under one
// shared build identity. Per-dataset failures are isolated: a failing
// case is recorded and the batch proceeds. Only a failure to compute the
// build identity aborts the whole batch, since without it no case can be
// named safely.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lazyqa/lazyqa/model"
	"github.com/lazyqa/lazyqa/runner"
	"github.com/lazyqa/lazyqa/store"
)

// CaseRunner executes one dataset. *runner.Runner implements it.
type CaseRunner interface {
	Run(ctx context.Context, ds runner.Dataset, bc runner.BuildContext, opts runner.Options) (*store.Case, error)
}

// IdentitySource computes the shared build identity for a batch.
// *version.Identifier implements it.
type IdentitySource interface {
	ComputeIdentity(outputRoot string) (model.BuildIdentity, []byte, error)
	ChangesNotOnMainBranch() []byte
}

// Result is the outcome of one dataset in a suite. Err is set when no
// case could be opened for the dataset; otherwise the case's status
// carries the verdict.
type Result struct {
	Dataset runner.Dataset
	Case    *store.Case
	Err     error
}

// Failed reports whether the dataset's run did not succeed.
func (r Result) Failed() bool {
	return r.Err != nil || r.Case == nil || r.Case.Status() != model.StatusSucceeded
}

// Suite is the record of one batch run: all cases share one build
// identity, in dataset order. A suite is never extended once started.
type Suite struct {
	ID       uuid.UUID
	Identity model.BuildIdentity
	Results  []Result
	Started  time.Time
	Duration time.Duration
}

// Succeeded counts the successful cases.
func (s *Suite) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if !r.Failed() {
			n++
		}
	}
	return n
}

// Failed counts the failed cases.
func (s *Suite) Failed() int { return len(s.Results) - s.Succeeded() }

// OutputDirs returns the case directories created by the suite, in
// dataset order.
func (s *Suite) OutputDirs() []string {
	var dirs []string
	for _, r := range s.Results {
		if r.Case != nil {
			dirs = append(dirs, r.Case.Dir())
		}
	}
	return dirs
}

// Coordinator runs batches.
type Coordinator struct {
	logger     zerolog.Logger
	runner     CaseRunner
	identity   IdentitySource
	outputRoot string
}

// New returns a Coordinator writing under outputRoot.
func New(logger zerolog.Logger, r CaseRunner, identity IdentitySource, outputRoot string) *Coordinator {
	return &Coordinator{logger: logger, runner: r, identity: identity, outputRoot: outputRoot}
}

// RunBatch computes one build identity and processes the datasets in
// order. The returned error is non-nil only when the identity itself
// could not be computed; every per-dataset failure is recorded in the
// suite and the remaining datasets still run.
func (c *Coordinator) RunBatch(ctx context.Context, datasets []runner.Dataset, opts runner.Options) (*Suite, error) {
	started := time.Now()

	identity, patch, err := c.identity.ComputeIdentity(c.outputRoot)
	if err != nil {
		return nil, err
	}

	bc := runner.BuildContext{
		Identity:    identity,
		Patch:       patch,
		BranchPatch: c.identity.ChangesNotOnMainBranch(),
	}

	suite := &Suite{
		ID:       uuid.New(),
		Identity: identity,
		Started:  started,
	}

	c.logger.Info().
		Str("suite", suite.ID.String()).
		Str("commit", identity.CommitHash).
		Int("dirty_index", identity.DirtyIndex).
		Int("datasets", len(datasets)).
		Msg("Starting batch")

	for _, ds := range datasets {
		caseResult, err := c.runner.Run(ctx, ds, bc, opts)
		if err != nil {
			c.logger.Error().Err(err).Str("dataset", ds.Name).Msg("Dataset failed before invocation")
		}
		suite.Results = append(suite.Results, Result{Dataset: ds, Case: caseResult, Err: err})
	}

	suite.Duration = time.Since(started)
	c.summarize(suite)
	return suite, nil
}

func (c *Coordinator) summarize(suite *Suite) {
	c.logger.Info().
		Str("suite", suite.ID.String()).
		Int("succeeded", suite.Succeeded()).
		Int("failed", suite.Failed()).
		Dur("duration", suite.Duration).
		Msg("Batch finished")

	for _, r := range suite.Results {
		if !r.Failed() {
			continue
		}
		event := c.logger.Warn().Str("dataset", r.Dataset.Name)
		switch {
		case r.Err != nil:
			event.Err(r.Err)
		case r.Case != nil:
			event.Int("exit_code", r.Case.ExitCode()).Str("dir", r.Case.Dir())
		}
		event.Msg("Dataset failed")
	}
}
