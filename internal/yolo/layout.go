// Package yolo writes datasets in the Ultralytics YOLO directory layout:
//
//	<out>/images/{train,val,test}/<image>
//	<out>/labels/{train,val,test}/<stem>.txt
//	<out>/data.yaml
//
// Every label file holds a single full-image placeholder box.
package yolo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mschirtzinger/yoloprep/internal/index"
)

// Split names a partition of the output layout.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// Splits lists every split in processing order.
var Splits = []Split{SplitTrain, SplitVal, SplitTest}

// IndexFile returns the index CSV that feeds the split.
func (s Split) IndexFile() string {
	switch s {
	case SplitTrain:
		return index.TrainFile
	case SplitVal:
		return index.ValidationFile
	case SplitTest:
		return index.TestFile
	}
	return ""
}

// SourceDir is the per-split directory name datasets use for their images
// ("Train", "Val", "Test").
func (s Split) SourceDir() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ImagesDir returns <outputDir>/images/<split>.
func ImagesDir(outputDir string, s Split) string {
	return filepath.Join(outputDir, "images", string(s))
}

// LabelsDir returns <outputDir>/labels/<split>.
func LabelsDir(outputDir string, s Split) string {
	return filepath.Join(outputDir, "labels", string(s))
}

// CreateLayout creates the images and labels directories for every split.
// Existing directories are kept.
func CreateLayout(outputDir string) error {
	for _, s := range Splits {
		for _, dir := range []string{ImagesDir(outputDir, s), LabelsDir(outputDir, s)} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}
	return nil
}

// LabelLine is the annotation written for each image: the class id followed
// by a box centred on the image and covering all of it.
func LabelLine(classID int) string {
	return fmt.Sprintf("%d 0.5 0.5 1.0 1.0\n", classID)
}

// LabelPath returns the label file for an image name.
func LabelPath(outputDir string, s Split, imageName string) string {
	stem := strings.TrimSuffix(imageName, filepath.Ext(imageName))
	return filepath.Join(LabelsDir(outputDir, s), stem+".txt")
}
