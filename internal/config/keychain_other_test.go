//go:build !darwin

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileKeychain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secrets.json")
	t.Setenv("STAGELOG_SECRETS_FILE", path)

	if _, err := keychainGet("stagelog", "api_token"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("get before set: err = %v, want ErrNotExist", err)
	}

	if err := keychainSet("stagelog", "api_token", "tok-1"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	if err := keychainSet("stagelog", "summary_api_key", "gem"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}

	got, err := keychainGet("stagelog", "api_token")
	if err != nil {
		t.Fatalf("keychainGet: %v", err)
	}
	if string(got) != "tok-1" {
		t.Errorf("api_token = %q, want tok-1", got)
	}
	if _, err := keychainGet("stagelog", "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing account: err = %v, want ErrNotExist", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}
