package runner

// This file contains QA dataset handling. A dataset is a folder with an
// 'images' subfolder holding the input images:
//
//	SnowyHillside/
//	  images/
//	    img-001.tiff
//	    img-002.tiff
//	    ...
//
// The folder name names the dataset.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ImagesDirName is the subfolder of a dataset root holding the images.
const ImagesDirName = "images"

// DefaultConfigName is the config file looked up when none is given,
// first in the dataset root, then in the working directory.
const DefaultConfigName = "config.ini"

var imageExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
	".jpg":  true,
	".jpeg": true,
}

// LayoutError reports a directory that does not satisfy the dataset
// layout requirements.
type LayoutError struct {
	Path   string
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("not a QA dataset %q: %s", e.Path, e.Reason)
}

// Dataset is one QA input dataset.
type Dataset struct {
	// Dataset identifier, the root folder's name
	Name string
	// Root folder of the dataset
	Root string
	// Folder containing the input images
	ImagesDir string
	// Config file the binary will be invoked with
	ConfigPath string
}

// LoadDataset validates the layout of the folder at path and returns the
// dataset. configPath may be empty, in which case config.ini is looked
// up next to the dataset and then in the working directory.
func LoadDataset(path, configPath string) (Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Dataset{}, &LayoutError{Path: path, Reason: "directory not found"}
	}
	if !info.IsDir() {
		return Dataset{}, &LayoutError{Path: path, Reason: "not a directory"}
	}

	imagesDir := filepath.Join(path, ImagesDirName)
	if info, err := os.Stat(imagesDir); err != nil || !info.IsDir() {
		return Dataset{}, &LayoutError{Path: path, Reason: fmt.Sprintf("missing folder %q", ImagesDirName)}
	}

	ds := Dataset{
		Name:      filepath.Base(filepath.Clean(path)),
		Root:      path,
		ImagesDir: imagesDir,
	}

	images, err := ds.Images()
	if err != nil {
		return Dataset{}, err
	}
	if len(images) == 0 {
		return Dataset{}, &LayoutError{Path: path, Reason: fmt.Sprintf("no images found in %q", ImagesDirName)}
	}

	ds.ConfigPath, err = resolveConfig(path, configPath)
	if err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// Images returns the image file names in the dataset, sorted.
func (d Dataset) Images() ([]string, error) {
	entries, err := os.ReadDir(d.ImagesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images folder: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			images = append(images, entry.Name())
		}
	}
	sort.Strings(images)
	return images, nil
}

func resolveConfig(datasetRoot, configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("config expected at %q but not found", configPath)
		}
		return configPath, nil
	}

	for _, candidate := range []string{filepath.Join(datasetRoot, DefaultConfigName), DefaultConfigName} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file given and no %s found for dataset %q", DefaultConfigName, datasetRoot)
}
