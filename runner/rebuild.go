package runner

// This file contains the build collaborator used to refresh a stale
// binary before a run.

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/lazyqa/lazyqa/version"
)

// Rebuilder recompiles the external binary.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// CommandRebuilder rebuilds by running a configured command line, e.g.
// "cmake --build ../build -t test_ortho". On success it stamps a
// provenance file next to the binary with the commit the build was
// taken from.
type CommandRebuilder struct {
	Logger zerolog.Logger
	// Command line to execute, first element is the executable
	Command []string
	// Path to the binary the command produces
	Binary string
	// Head returns the current commit hash for the provenance stamp;
	// may be nil, in which case no stamp is written
	Head func() (string, error)
}

func (r *CommandRebuilder) Rebuild(ctx context.Context) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("no rebuild command configured")
	}

	r.Logger.Info().
		Str("command", shellescape.QuoteCommand(r.Command)).
		Msg("Re-compiling binary")

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	var stderr bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rebuild failed: %w (stderr: %s)", err, stderr.String())
	}

	if _, err := os.Stat(r.Binary); err != nil {
		return fmt.Errorf("binary not found after rebuild: %w", err)
	}

	if r.Head != nil {
		commit, err := r.Head()
		if err != nil {
			r.Logger.Warn().Err(err).Msg("Could not stamp build provenance")
			return nil
		}
		stamp := r.Binary + version.ProvenanceSuffix
		if err := os.WriteFile(stamp, []byte(commit+"\n"), 0644); err != nil {
			r.Logger.Warn().Err(err).Str("file", stamp).Msg("Could not write build provenance")
		}
	}
	return nil
}
