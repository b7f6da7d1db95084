// Package runner orchestrates single QA invocations: it checks the
// binary for staleness, derives the case name, opens the case directory,
// invokes the external binary with its log stream captured, and closes
// the case with the outcome. Binary failures are recorded on the case,
// never raised past Run; the batch coordinator decides whether to
// continue.
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/lazyqa/lazyqa/model"
	"github.com/lazyqa/lazyqa/naming"
	"github.com/lazyqa/lazyqa/store"
)

// StalenessChecker is the advisory staleness probe the runner consults
// before invoking the binary. *version.Identifier implements it.
type StalenessChecker interface {
	CheckStaleness(binaryPath string, identity model.BuildIdentity) model.StalenessReport
}

// BuildContext carries the per-suite inputs shared by every case: the
// build identity and the patches that document the source state.
type BuildContext struct {
	Identity model.BuildIdentity
	// Uncommitted changes the identity was computed from; empty when clean
	Patch []byte
	// Commits on HEAD that are not on the main branch; may be empty
	BranchPatch []byte
}

// Options configures one runner invocation.
type Options struct {
	// Free-text suffix appended to the case name after sanitization
	Description string
	// Rebuild the binary when the staleness check reports stale
	AutoRebuild bool
	// Skip the staleness check entirely
	Force bool
	// Kill the external binary after this long; 0 means no timeout
	Timeout time.Duration
	// Tee the captured log stream to stdout
	LiveOutput bool
}

// Runner runs one external binary against one dataset at a time.
type Runner struct {
	logger    zerolog.Logger
	binary    string
	tool      Tool
	store     *store.Store
	staleness StalenessChecker
	rebuilder Rebuilder
}

// New returns a Runner for the given binary and tool. staleness and
// rebuilder may be nil, disabling the respective step.
func New(logger zerolog.Logger, binary string, tool Tool, st *store.Store, staleness StalenessChecker, rebuilder Rebuilder) *Runner {
	return &Runner{
		logger:    logger.With().Str("tool", tool.Name()).Logger(),
		binary:    binary,
		tool:      tool,
		store:     st,
		staleness: staleness,
		rebuilder: rebuilder,
	}
}

// Run executes the binary against one dataset. The returned case carries
// the outcome; a non-nil error means no case could be opened (bad name,
// duplicate directory, broken config) and nothing was invoked. A failing
// or timed-out binary is reported as a failed case with a nil error.
func (r *Runner) Run(ctx context.Context, ds Dataset, bc BuildContext, opts Options) (c *store.Case, err error) {
	r.checkBinary(ctx, bc.Identity, opts)

	name, err := naming.Build(bc.Identity, ds.Name, opts.Description)
	if err != nil {
		return nil, err
	}

	c, err = r.store.OpenCase(name)
	if err != nil {
		return nil, err
	}
	// The case must reach a terminal status on every path, also on
	// panics and early returns; partial artifacts are kept.
	defer func() {
		if !c.Status().Terminal() {
			if closeErr := c.Close(model.StatusFailed); closeErr != nil {
				r.logger.Warn().Err(closeErr).Msg("Failed to close case")
			}
		}
	}()

	config, err := r.tool.BuildConfig(ds, c.Dir())
	if err != nil {
		return c, err
	}
	configPath, err := c.StoreConfig(config)
	if err != nil {
		return c, err
	}
	if err := c.StorePatch(bc.Patch); err != nil {
		return c, err
	}
	if err := c.StoreBranchPatch(bc.BranchPatch); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to store branch patch")
	}

	status := r.invoke(ctx, ds, c, configPath, opts)

	if err := c.RenameOutputs(r.tool.OutputRenames(name)); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to rename binary outputs")
	}

	if err := c.Close(status); err != nil {
		return c, err
	}

	r.logger.Info().
		Str("case", name.String()).
		Str("status", string(status)).
		Str("dir", c.Dir()).
		Msg("Test case finished")
	return c, nil
}

// checkBinary runs the advisory staleness check and the optional
// rebuild. Persistent staleness is a warning, never an abort.
func (r *Runner) checkBinary(ctx context.Context, identity model.BuildIdentity, opts Options) {
	if opts.Force || r.staleness == nil {
		return
	}

	report := r.staleness.CheckStaleness(r.binary, identity)
	if !report.Stale {
		return
	}

	if opts.AutoRebuild && r.rebuilder != nil {
		r.logger.Info().Str("reason", report.Reason).Msg("Binary is stale, re-compiling")
		if err := r.rebuilder.Rebuild(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Rebuild failed, continuing with the existing binary")
			return
		}
		if report = r.staleness.CheckStaleness(r.binary, identity); !report.Stale {
			return
		}
	}

	r.logger.Warn().
		Str("binary", r.binary).
		Str("reason", report.Reason).
		Msg("Binary may not reflect the current source tree")
}

// invoke runs the external binary with its interleaved stdout+stderr
// streamed into the case's log file.
func (r *Runner) invoke(ctx context.Context, ds Dataset, c *store.Case, configPath string, opts Options) model.Status {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append([]string{"--config", configPath, "--output", c.Dir()}, r.tool.Args(configPath, c.Dir(), ds)...)
	cmd := exec.CommandContext(ctx, r.binary, args...)

	r.logger.Info().
		Str("dataset", ds.Name).
		Str("command", shellescape.QuoteCommand(append([]string{r.binary}, args...))).
		Msg("Invoking binary")

	pr, pw := io.Pipe()
	var sink io.Writer = pw
	if opts.LiveOutput {
		sink = io.MultiWriter(pw, os.Stdout)
	}
	cmd.Stdout = sink
	cmd.Stderr = sink

	copied := make(chan error, 1)
	go func() {
		_, err := c.StoreLog(pr)
		copied <- err
	}()

	c.SetRunning()
	runErr := cmd.Run()
	pw.Close()
	if err := <-copied; err != nil {
		r.logger.Warn().Err(err).Msg("Failed to capture log stream")
	}

	if runErr == nil {
		c.SetExitCode(0)
		return model.StatusSucceeded
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.SetExitCode(-1)
		r.logger.Error().
			Dur("timeout", opts.Timeout).
			Str("dataset", ds.Name).
			Msg("Binary timed out and was killed")
	case errors.As(runErr, &exitErr):
		c.SetExitCode(exitErr.ExitCode())
		r.logger.Error().
			Int("exit_code", exitErr.ExitCode()).
			Str("dataset", ds.Name).
			Msg("Binary exited with failure")
	default:
		c.SetExitCode(-1)
		r.logger.Error().Err(runErr).Str("dataset", ds.Name).Msg("Failed to invoke binary")
	}
	return model.StatusFailed
}
