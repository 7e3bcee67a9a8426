package kaggle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCredentials_Env(t *testing.T) {
	t.Setenv("KAGGLE_USERNAME", "alice")
	t.Setenv("KAGGLE_KEY", "secret")

	creds, err := LoadCredentials(t.TempDir())
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.Username != "alice" || creds.Key != "secret" {
		t.Errorf("unexpected credentials %+v", creds)
	}
}

func TestLoadCredentials_File(t *testing.T) {
	t.Setenv("KAGGLE_USERNAME", "")
	t.Setenv("KAGGLE_KEY", "")

	dir := t.TempDir()
	data := []byte(`{"username":"bob","key":"k3y"}`)
	if err := os.WriteFile(filepath.Join(dir, "kaggle.json"), data, 0600); err != nil {
		t.Fatalf("failed to write kaggle.json: %v", err)
	}

	creds, err := LoadCredentials(dir)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.Username != "bob" || creds.Key != "k3y" {
		t.Errorf("unexpected credentials %+v", creds)
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	t.Setenv("KAGGLE_USERNAME", "")
	t.Setenv("KAGGLE_KEY", "")

	_, err := LoadCredentials(t.TempDir())
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestLoadCredentials_Incomplete(t *testing.T) {
	t.Setenv("KAGGLE_USERNAME", "")
	t.Setenv("KAGGLE_KEY", "")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kaggle.json"), []byte(`{"username":"bob"}`), 0600); err != nil {
		t.Fatalf("failed to write kaggle.json: %v", err)
	}

	_, err := LoadCredentials(dir)
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestDefaultConfigDir(t *testing.T) {
	t.Setenv("KAGGLE_CONFIG_DIR", "/opt/kaggle")
	if got := DefaultConfigDir(); got != "/opt/kaggle" {
		t.Errorf("expected /opt/kaggle, got %s", got)
	}
}
