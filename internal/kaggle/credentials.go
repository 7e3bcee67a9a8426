package kaggle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credentials authenticate against the Kaggle API.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Key != ""
}

// DefaultConfigDir returns $KAGGLE_CONFIG_DIR, falling back to ~/.kaggle.
func DefaultConfigDir() string {
	if dir := os.Getenv("KAGGLE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kaggle"
	}
	return filepath.Join(home, ".kaggle")
}

// LoadCredentials resolves credentials the way the official client does:
// KAGGLE_USERNAME and KAGGLE_KEY win, then <configDir>/kaggle.json.
// An empty configDir means DefaultConfigDir().
func LoadCredentials(configDir string) (Credentials, error) {
	env := Credentials{
		Username: strings.TrimSpace(os.Getenv("KAGGLE_USERNAME")),
		Key:      strings.TrimSpace(os.Getenv("KAGGLE_KEY")),
	}
	if env.Valid() {
		return env, nil
	}

	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	path := filepath.Join(configDir, "kaggle.json")

	// #nosec G304 - well-known credentials location
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Credentials{}, fmt.Errorf("%w: set KAGGLE_USERNAME/KAGGLE_KEY or create %s", ErrNoCredentials, path)
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !creds.Valid() {
		return Credentials{}, fmt.Errorf("%w: %s is missing username or key", ErrNoCredentials, path)
	}
	return creds, nil
}
