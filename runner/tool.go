package runner

// This file contains the Tool abstraction over the two external
// processing binaries. A Tool knows how to enrich the user's config for
// one invocation, which extra arguments the binary takes, and how its
// generically-named outputs map into the case naming convention.

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/lazyqa/lazyqa/model"
)

// Tool adapts one external processing binary to the runner.
type Tool interface {
	// Name identifies the tool, e.g. "pipeline" or "ortho".
	Name() string
	// BuildConfig produces the enriched config snapshot for one run.
	BuildConfig(ds Dataset, outputDir string) ([]byte, error)
	// Args returns tool-specific arguments appended after the common
	// --config/--output pair.
	Args(configPath, outputDir string, ds Dataset) []string
	// OutputRenames maps generically-named binary outputs to names that
	// carry the dataset and description, so two suites can be compared
	// by artifact name alone.
	OutputRenames(name model.TestCaseName) map[string]string
}

// PipelineTool drives the test_pipeline binary. The image list is
// written into the config, since some operating systems limit the
// command line length.
type PipelineTool struct{}

func (PipelineTool) Name() string { return "pipeline" }

func (PipelineTool) BuildConfig(ds Dataset, outputDir string) ([]byte, error) {
	cfg, err := loadConfig(ds.ConfigPath)
	if err != nil {
		return nil, err
	}

	images, err := ds.Images()
	if err != nil {
		return nil, err
	}
	metric := cfg.Section("metric")
	metric.Key("path").SetValue(ds.ImagesDir)
	metric.Key("inputs").SetValue(strings.Join(images, ","))

	return serializeConfig(cfg)
}

func (PipelineTool) Args(configPath, outputDir string, ds Dataset) []string {
	return nil
}

// OutputRenames renames the too generic 'stitched.tiff' so that runs of
// the same dataset remain comparable by name across suites: the commit
// hash and index stay out of the derived name on purpose.
func (PipelineTool) OutputRenames(name model.TestCaseName) map[string]string {
	return map[string]string{"stitched.tiff": derivedOutputName(name, "stitched.tiff")}
}

// OrthoTool drives the test_ortho binary. The result filename is
// dictated through the config's [output] section.
type OrthoTool struct {
	// DebugTiles enables debug tile generation into the case directory
	DebugTiles bool
}

func (OrthoTool) Name() string { return "ortho" }

func (t OrthoTool) BuildConfig(ds Dataset, outputDir string) ([]byte, error) {
	cfg, err := loadConfig(ds.ConfigPath)
	if err != nil {
		return nil, err
	}

	orthoPath := filepath.Join(outputDir, filepath.Base(outputDir)+".tif")
	cfg.Section("output").Key("filename").SetValue(orthoPath)

	if t.DebugTiles {
		cfg.Section("color_balance").Key("debug_tiles_path").SetValue(filepath.Join(outputDir, "debug"))
	}

	return serializeConfig(cfg)
}

func (OrthoTool) Args(configPath, outputDir string, ds Dataset) []string {
	return nil
}

func (OrthoTool) OutputRenames(name model.TestCaseName) map[string]string {
	return map[string]string{"ortho.tif": derivedOutputName(name, "ortho.tif")}
}

// derivedOutputName prefixes a generic output name with dataset and
// description, e.g. 'snowyHillside_moreBlending_stitched.tiff'.
func derivedOutputName(name model.TestCaseName, generic string) string {
	components := []string{name.Dataset}
	if name.Description != "" {
		components = append(components, name.Description)
	}
	components = append(components, generic)
	return strings.Join(components, model.Separator)
}

func loadConfig(path string) (*ini.File, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", path, err)
	}
	return cfg, nil
}

func serializeConfig(cfg *ini.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	return buf.Bytes(), nil
}
