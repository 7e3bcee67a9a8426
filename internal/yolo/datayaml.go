package yolo

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DataYAML is the dataset descriptor Ultralytics trainers read.
type DataYAML struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

// NewDataYAML describes the layout rooted at outputDir.
func NewDataYAML(outputDir string, names []string) DataYAML {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		abs = outputDir
	}
	m := make(map[int]string, len(names))
	for i, n := range names {
		m[i] = n
	}
	return DataYAML{
		Path:  abs,
		Train: filepath.ToSlash(filepath.Join("images", string(SplitTrain))),
		Val:   filepath.ToSlash(filepath.Join("images", string(SplitVal))),
		Test:  filepath.ToSlash(filepath.Join("images", string(SplitTest))),
		NC:    len(names),
		Names: m,
	}
}

// WriteDataYAML writes <outputDir>/data.yaml and returns its path.
func WriteDataYAML(outputDir string, names []string) (string, error) {
	data, err := yaml.Marshal(NewDataYAML(outputDir, names))
	if err != nil {
		return "", fmt.Errorf("failed to encode data.yaml: %w", err)
	}
	path := filepath.Join(outputDir, "data.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write data.yaml: %w", err)
	}
	return path, nil
}
