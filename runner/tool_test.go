package runner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lazyqa/lazyqa/model"
)

func TestPipelineToolBuildConfig(t *testing.T) {
	ds := writeDataset(t, "snowyHillside")

	config, err := PipelineTool{}.BuildConfig(ds, t.TempDir())
	require.NoError(t, err)

	text := string(config)
	require.Contains(t, text, "[pipeline]")
	require.Contains(t, text, "step_size")
	require.Contains(t, text, "[metric]")
	require.Contains(t, text, ds.ImagesDir)
	require.Contains(t, text, "img-001.tiff,img-002.tiff")
}

func TestOrthoToolBuildConfig(t *testing.T) {
	ds := writeDataset(t, "snowyHillside")
	outputDir := filepath.Join(t.TempDir(), "abc123_0_snowyHillside")

	config, err := OrthoTool{}.BuildConfig(ds, outputDir)
	require.NoError(t, err)
	require.Contains(t, string(config), "[output]")
	require.Contains(t, string(config), "abc123_0_snowyHillside.tif")

	withDebug, err := OrthoTool{DebugTiles: true}.BuildConfig(ds, outputDir)
	require.NoError(t, err)
	require.Contains(t, string(withDebug), "debug_tiles_path")
}

func TestOutputRenames(t *testing.T) {
	name := model.TestCaseName{
		Identity:    model.BuildIdentity{CommitHash: "abc123", DirtyIndex: 1, Dirty: true},
		Dataset:     "snowyHillside",
		Description: "moreBlending",
	}

	// The derived names carry dataset and description but not the
	// commit hash, so suites stay comparable by artifact name.
	renames := PipelineTool{}.OutputRenames(name)
	require.Equal(t, "snowyHillside_moreBlending_stitched.tiff", renames["stitched.tiff"])

	name.Description = ""
	renames = OrthoTool{}.OutputRenames(name)
	require.Equal(t, "snowyHillside_ortho.tif", renames["ortho.tif"])
}
