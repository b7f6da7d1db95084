package cli

// This file contains the run and batch command actions: wiring the
// version identifier, artifact store, runner, and batch coordinator
// together from the command line flags.

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lazyqa/lazyqa/batch"
	"github.com/lazyqa/lazyqa/gitrepo"
	"github.com/lazyqa/lazyqa/runner"
	"github.com/lazyqa/lazyqa/store"
	"github.com/lazyqa/lazyqa/version"
)

func (a *App) runSingle(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.Exit("exactly one dataset path is required", exitSetupFailed)
	}
	return a.runBatch(ctx)
}

func (a *App) runBatch(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return cli.Exit("at least one dataset path is required", exitSetupFailed)
	}

	binary := ctx.String("binary")
	outputRoot := ctx.String("output")

	if err := checkBinary(binary); err != nil {
		return cli.Exit(err.Error(), exitSetupFailed)
	}

	// The binary must live inside its source repo; that repo is what
	// the build identity is computed from.
	repo, err := gitrepo.Open(binary)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupFailed)
	}

	tool, err := selectTool(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitSetupFailed)
	}

	datasets := make([]runner.Dataset, 0, ctx.NArg())
	for _, path := range ctx.Args().Slice() {
		ds, err := runner.LoadDataset(path, ctx.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), exitSetupFailed)
		}
		datasets = append(datasets, ds)
	}

	identifier := version.New(a.logger, repo)

	var rebuilder runner.Rebuilder
	if rebuildCmd := ctx.String("rebuild-cmd"); rebuildCmd != "" {
		rebuilder = &runner.CommandRebuilder{
			Logger:  a.logger,
			Command: strings.Fields(rebuildCmd),
			Binary:  binary,
			Head:    func() (string, error) { return repo.Head(true) },
		}
	}

	run := runner.New(a.logger, binary, tool, store.New(a.logger, outputRoot), identifier, rebuilder)
	coordinator := batch.New(a.logger, run, identifier, outputRoot)

	opts := runner.Options{
		Description: ctx.String("description"),
		AutoRebuild: !ctx.Bool("no-rebuild"),
		Force:       ctx.Bool("force"),
		Timeout:     ctx.Duration("timeout"),
		LiveOutput:  ctx.Bool("live-output"),
	}

	suite, err := coordinator.RunBatch(ctx.Context, datasets, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("batch setup failed: %v", err), exitSetupFailed)
	}

	printSuite(suite)

	if failed := suite.Failed(); failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d cases failed", failed, len(suite.Results)), exitSomeFailed)
	}
	return nil
}

func selectTool(ctx *cli.Context) (runner.Tool, error) {
	switch name := ctx.String("tool"); name {
	case "pipeline":
		return runner.PipelineTool{}, nil
	case "ortho":
		return runner.OrthoTool{DebugTiles: ctx.Bool("debug-tiles")}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q: expected pipeline or ortho", name)
	}
}

// checkBinary runs the preflight checks on the binary path.
func checkBinary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("binary %q not found", path)
	}
	if info.IsDir() {
		return fmt.Errorf("binary %q is actually a directory", path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("binary %q is not executable", path)
	}
	return nil
}

func printSuite(suite *batch.Suite) {
	fmt.Printf("\n=== Suite %s: %d succeeded, %d failed ===\n\n", suite.ID, suite.Succeeded(), suite.Failed())
	for _, result := range suite.Results {
		status := "failed"
		location := ""
		switch {
		case result.Err != nil:
			location = result.Err.Error()
		case result.Case != nil:
			status = string(result.Case.Status())
			location = result.Case.Dir()
		}
		fmt.Printf("  %-10s %-30s %s\n", status, result.Dataset.Name, location)
	}
	fmt.Println()
}
