package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lazyqa/lazyqa/model"
	"github.com/lazyqa/lazyqa/store"
)

// writeDataset lays out a minimal QA dataset and returns it.
func writeDataset(t *testing.T, name string) Dataset {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ImagesDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ImagesDirName, "img-001.tiff"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ImagesDirName, "img-002.tiff"), []byte("img"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultConfigName), []byte("[pipeline]\nstep_size = 7\n"), 0644))

	ds, err := LoadDataset(root, "")
	require.NoError(t, err)
	return ds
}

// writeStubBinary writes a shell script standing in for the external
// processing binary.
func writeStubBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binaries require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "test_pipeline")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

// stubThatSucceeds echoes, honors --output, and produces stitched.tiff.
const stubThatSucceeds = `out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
echo "processing dataset"
echo "stitching" >&2
touch "$out/stitched.tiff"
exit 0
`

func buildContext() BuildContext {
	return BuildContext{
		Identity: model.BuildIdentity{CommitHash: "abc123", DirtyIndex: 0},
		Patch:    []byte(""),
	}
}

func newTestRunner(t *testing.T, script string) (*Runner, string) {
	t.Helper()
	binary := writeStubBinary(t, script)
	outputRoot := t.TempDir()
	st := store.New(zerolog.Nop(), outputRoot)
	r := New(zerolog.Nop(), binary, PipelineTool{}, st, nil, nil)
	return r, outputRoot
}

func TestRunSucceeds(t *testing.T) {
	r, outputRoot := newTestRunner(t, stubThatSucceeds)
	ds := writeDataset(t, "snowy hillside")

	c, err := r.Run(context.Background(), ds, buildContext(), Options{Description: "someChange"})
	require.NoError(t, err)
	require.Equal(t, model.StatusSucceeded, c.Status())
	require.Equal(t, 0, c.ExitCode())

	dir := filepath.Join(outputRoot, "abc123_0_snowyHillside_someChange")
	require.Equal(t, dir, c.Dir())

	// Log captured both streams.
	log, err := os.ReadFile(filepath.Join(dir, store.LogFileName))
	require.NoError(t, err)
	require.Contains(t, string(log), "processing dataset")
	require.Contains(t, string(log), "stitching")

	// Config snapshot carries the enrichment.
	config, err := os.ReadFile(filepath.Join(dir, store.ConfigFileName))
	require.NoError(t, err)
	require.Contains(t, string(config), "[metric]")
	require.Contains(t, string(config), "img-001.tiff,img-002.tiff")

	// Patch and record written, output renamed into the convention.
	require.FileExists(t, filepath.Join(dir, store.PatchFileName))
	require.FileExists(t, filepath.Join(dir, store.RecordFileName))
	require.FileExists(t, filepath.Join(dir, "snowyHillside_someChange_stitched.tiff"))
}

func TestRunRecordsBinaryFailure(t *testing.T) {
	r, _ := newTestRunner(t, "exit 3\n")
	ds := writeDataset(t, "snowyHillside")

	// A failing binary is reported on the case, not as an error.
	c, err := r.Run(context.Background(), ds, buildContext(), Options{})
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, c.Status())
	require.Equal(t, 3, c.ExitCode())
	require.FileExists(t, filepath.Join(c.Dir(), store.RecordFileName))
}

func TestRunTimeoutKillsBinary(t *testing.T) {
	r, _ := newTestRunner(t, "sleep 30\n")
	ds := writeDataset(t, "snowyHillside")

	start := time.Now()
	c, err := r.Run(context.Background(), ds, buildContext(), Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, c.Status())
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestRunDuplicateCaseFailsBeforeInvocation(t *testing.T) {
	r, _ := newTestRunner(t, stubThatSucceeds)
	ds := writeDataset(t, "snowyHillside")

	_, err := r.Run(context.Background(), ds, buildContext(), Options{})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), ds, buildContext(), Options{})
	var dup *store.DuplicateOutputError
	require.ErrorAs(t, err, &dup)
}

func TestRunStoresDirtyPatch(t *testing.T) {
	r, _ := newTestRunner(t, stubThatSucceeds)
	ds := writeDataset(t, "snowyHillside")

	bc := buildContext()
	bc.Identity.DirtyIndex = 1
	bc.Identity.Dirty = true
	bc.Patch = []byte("--- a/main.cpp\n+++ b/main.cpp\n")

	c, err := r.Run(context.Background(), ds, bc, Options{})
	require.NoError(t, err)

	patch, err := os.ReadFile(filepath.Join(c.Dir(), store.PatchFileName))
	require.NoError(t, err)
	require.Equal(t, bc.Patch, patch)
}

type stubChecker struct {
	report model.StalenessReport
	calls  int
}

func (s *stubChecker) CheckStaleness(binaryPath string, identity model.BuildIdentity) model.StalenessReport {
	s.calls++
	return s.report
}

type stubRebuilder struct {
	calls int
}

func (s *stubRebuilder) Rebuild(ctx context.Context) error {
	s.calls++
	return nil
}

func TestRunRebuildsStaleBinary(t *testing.T) {
	binary := writeStubBinary(t, stubThatSucceeds)
	checker := &stubChecker{report: model.StalenessReport{Stale: true, Reason: "main.cpp newer"}}
	rebuilder := &stubRebuilder{}
	r := New(zerolog.Nop(), binary, PipelineTool{}, store.New(zerolog.Nop(), t.TempDir()), checker, rebuilder)
	ds := writeDataset(t, "snowyHillside")

	c, err := r.Run(context.Background(), ds, buildContext(), Options{AutoRebuild: true})
	require.NoError(t, err)
	require.Equal(t, 1, rebuilder.calls)
	require.Equal(t, 2, checker.calls) // re-checked after the rebuild
	require.Equal(t, model.StatusSucceeded, c.Status())
}

func TestRunForceSkipsStalenessCheck(t *testing.T) {
	binary := writeStubBinary(t, stubThatSucceeds)
	checker := &stubChecker{report: model.StalenessReport{Stale: true}}
	r := New(zerolog.Nop(), binary, PipelineTool{}, store.New(zerolog.Nop(), t.TempDir()), checker, nil)
	ds := writeDataset(t, "snowyHillside")

	_, err := r.Run(context.Background(), ds, buildContext(), Options{Force: true})
	require.NoError(t, err)
	require.Equal(t, 0, checker.calls)
}

func TestLoadDatasetLayout(t *testing.T) {
	var layoutErr *LayoutError

	// Missing directory.
	_, err := LoadDataset(filepath.Join(t.TempDir(), "nope"), "")
	require.ErrorAs(t, err, &layoutErr)

	// Missing images folder.
	empty := t.TempDir()
	_, err = LoadDataset(empty, "")
	require.ErrorAs(t, err, &layoutErr)

	// Images folder without images.
	noImages := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(noImages, ImagesDirName), 0755))
	_, err = LoadDataset(noImages, "")
	require.ErrorAs(t, err, &layoutErr)

	// Valid layout.
	ds := writeDataset(t, "valid")
	require.Equal(t, "valid", ds.Name)
	images, err := ds.Images()
	require.NoError(t, err)
	require.Equal(t, []string{"img-001.tiff", "img-002.tiff"}, images)
}
