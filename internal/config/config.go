// Package config loads yoloprep settings from defaults, a TOML file and
// YOLOPREP_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// YOLOPREP_OUTPUT_DIR.
const EnvPrefix = "YOLOPREP"

// Config holds application configuration.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset" toml:"dataset"`
	Output   OutputConfig   `mapstructure:"output" toml:"output"`
	Index    IndexConfig    `mapstructure:"index" toml:"index"`
	Split    SplitConfig    `mapstructure:"split" toml:"split"`
	Classes  ClassesConfig  `mapstructure:"classes" toml:"classes"`
	Organize OrganizeConfig `mapstructure:"organize" toml:"organize"`
	Catalog  CatalogConfig  `mapstructure:"catalog" toml:"catalog"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
	Kaggle   KaggleConfig   `mapstructure:"kaggle" toml:"kaggle"`
}

// DatasetConfig locates the downloaded dataset.
type DatasetConfig struct {
	Slug         string `mapstructure:"slug" toml:"slug"`
	BaseDir      string `mapstructure:"base_dir" toml:"base_dir"`
	ImagesSubdir string `mapstructure:"images_subdir" toml:"images_subdir"`
	IndexSubdir  string `mapstructure:"index_subdir" toml:"index_subdir"`
}

// ImagesDir returns base_dir/images_subdir.
func (d DatasetConfig) ImagesDir() string {
	return filepath.Join(d.BaseDir, filepath.FromSlash(d.ImagesSubdir))
}

// IndexDir returns base_dir/index_subdir.
func (d DatasetConfig) IndexDir() string {
	return filepath.Join(d.BaseDir, filepath.FromSlash(d.IndexSubdir))
}

// OutputConfig locates the YOLO layout.
type OutputConfig struct {
	Dir string `mapstructure:"dir" toml:"dir"`
}

// IndexConfig controls label inference from file names.
type IndexConfig struct {
	LabelColumn string `mapstructure:"label_column" toml:"label_column"`
	LabelField  int    `mapstructure:"label_field" toml:"label_field"`
	Binarize    bool   `mapstructure:"binarize" toml:"binarize"`
}

// SplitConfig controls the train/val/test partition.
type SplitConfig struct {
	Train float64 `mapstructure:"train" toml:"train"`
	Val   float64 `mapstructure:"val" toml:"val"`
	Seed  int64   `mapstructure:"seed" toml:"seed"`
}

// ClassesConfig maps raw labels to YOLO class ids.
type ClassesConfig struct {
	Map   map[string]int `mapstructure:"map" toml:"map"`
	Names []string       `mapstructure:"names" toml:"names"`
}

// OrganizeConfig tunes the copy phase.
type OrganizeConfig struct {
	Workers int `mapstructure:"workers" toml:"workers"`
}

// CatalogConfig locates the run ledger. An empty path means
// <output.dir>/catalog.db.
type CatalogConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// LogConfig controls file logging.
type LogConfig struct {
	File       string `mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
}

// KaggleConfig points at kaggle.json. Empty means $KAGGLE_CONFIG_DIR or ~/.kaggle.
type KaggleConfig struct {
	ConfigDir string `mapstructure:"config_dir" toml:"config_dir"`
}

// CatalogPath resolves the catalog location.
func (c *Config) CatalogPath() string {
	if c.Catalog.Path != "" {
		return c.Catalog.Path
	}
	return filepath.Join(c.Output.Dir, "catalog.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Slug:         "chiragsaipanuganti/utkface",
			BaseDir:      "datasets",
			ImagesSubdir: "Dataset/Images",
			IndexSubdir:  "Dataset/Index",
		},
		Output: OutputConfig{Dir: "output_yolo"},
		Index: IndexConfig{
			LabelColumn: "gender",
			LabelField:  1,
			Binarize:    true,
		},
		Split: SplitConfig{Train: 0.8, Val: 0.5, Seed: 42},
		Classes: ClassesConfig{
			Map:   map[string]int{"0": 0, "1": 1},
			Names: []string{"male", "female"},
		},
		Organize: OrganizeConfig{Workers: 4},
		Log:      LogConfig{MaxSizeMB: 10, MaxBackups: 3},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("dataset.slug", d.Dataset.Slug)
	v.SetDefault("dataset.base_dir", d.Dataset.BaseDir)
	v.SetDefault("dataset.images_subdir", d.Dataset.ImagesSubdir)
	v.SetDefault("dataset.index_subdir", d.Dataset.IndexSubdir)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("index.label_column", d.Index.LabelColumn)
	v.SetDefault("index.label_field", d.Index.LabelField)
	v.SetDefault("index.binarize", d.Index.Binarize)
	v.SetDefault("split.train", d.Split.Train)
	v.SetDefault("split.val", d.Split.Val)
	v.SetDefault("split.seed", d.Split.Seed)
	v.SetDefault("classes.map", d.Classes.Map)
	v.SetDefault("classes.names", d.Classes.Names)
	v.SetDefault("organize.workers", d.Organize.Workers)
	v.SetDefault("catalog.path", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("kaggle.config_dir", "")
}

// Load reads configuration and returns it with the file it came from.
//
// path may be empty; then $YOLOPREP_CONFIG, ./yoloprep.toml and
// ~/.config/yoloprep/config.toml are tried in turn. A named file that cannot
// be read is an error; finding no file at all is not.
func Load(path string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		path = findDefault()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, "", fmt.Errorf("failed to decode config: %w", err)
	}
	if path != "" {
		m, ok, err := fileClassMap(path)
		if err != nil {
			return nil, "", err
		}
		if ok {
			c.Classes.Map = m
		}
	}
	if err := c.Validate(); err != nil {
		return nil, "", err
	}
	return &c, path, nil
}

// fileClassMap reads [classes.map] straight from the TOML file. Viper folds
// keys to lower case, and class labels are case sensitive.
func fileClassMap(path string) (map[string]int, bool, error) {
	var raw struct {
		Classes struct {
			Map map[string]int `toml:"map"`
		} `toml:"classes"`
	}
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read classes.map from %s: %w", path, err)
	}
	return raw.Classes.Map, md.IsDefined("classes", "map"), nil
}

// DefaultPath is where `yp config init` writes when no path is given.
func DefaultPath() string {
	return "yoloprep.toml"
}

func findDefault() string {
	candidates := []string{DefaultPath()}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "yoloprep", "config.toml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	var problems []string
	if c.Dataset.BaseDir == "" {
		problems = append(problems, "dataset.base_dir is empty")
	}
	if c.Output.Dir == "" {
		problems = append(problems, "output.dir is empty")
	}
	if c.Index.LabelColumn == "" {
		problems = append(problems, "index.label_column is empty")
	}
	if c.Index.LabelField < 0 {
		problems = append(problems, "index.label_field must be >= 0")
	}
	if c.Split.Train < 0 || c.Split.Train > 1 {
		problems = append(problems, "split.train must be within [0,1]")
	}
	if c.Split.Val < 0 || c.Split.Val > 1 {
		problems = append(problems, "split.val must be within [0,1]")
	}
	if len(c.Classes.Map) == 0 {
		problems = append(problems, "classes.map is empty")
	}
	for label, id := range c.Classes.Map {
		if id < 0 {
			problems = append(problems, fmt.Sprintf("classes.map[%q] is negative", label))
		}
	}
	if c.Organize.Workers < 1 {
		problems = append(problems, "organize.workers must be >= 1")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

// Save writes c as TOML to path, creating parent directories.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// #nosec G304 - controlled path from CLI
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(f, c); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Encode writes c as TOML.
func Encode(w io.Writer, c *Config) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
