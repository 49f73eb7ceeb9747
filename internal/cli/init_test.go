package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/glprotect/internal/policy"
)

func TestRunInitWritesLoadablePolicy(t *testing.T) {
	initOutput = filepath.Join(t.TempDir(), "protection.yaml")
	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, err := os.ReadFile(initOutput)
	if err != nil {
		t.Fatalf("policy not created: %v", err)
	}
	for _, section := range []string{"branches:", "tags:"} {
		if !strings.Contains(string(data), section) {
			t.Errorf("missing section %q", section)
		}
	}

	// The generated starter must survive its own validator.
	if _, err := policy.Load(initOutput); err != nil {
		t.Errorf("generated policy does not validate: %v", err)
	}
}

func TestRunInitRefusesOverwrite(t *testing.T) {
	initOutput = filepath.Join(t.TempDir(), "protection.yaml")
	initForce = false

	sentinel := "# sentinel content\n"
	if err := os.WriteFile(initOutput, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runInit(nil, nil); err == nil {
		t.Fatal("expected error for existing file")
	}

	data, _ := os.ReadFile(initOutput)
	if string(data) != sentinel {
		t.Error("existing file was overwritten without --force")
	}
}

func TestWriteIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")

	// First write should succeed.
	initForce = false
	wrote, err := writeIfMissing(path, "hello")
	if err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if !wrote {
		t.Error("first write should report true")
	}

	// Second write without force should skip.
	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if wrote {
		t.Error("second write should report false without force")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello" {
		t.Errorf("content changed without force: %q", string(data))
	}

	// With force, should overwrite.
	initForce = true
	wrote, err = writeIfMissing(path, "world")
	if err != nil {
		t.Fatalf("force write failed: %v", err)
	}
	if !wrote {
		t.Error("force write should report true")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "world" {
		t.Errorf("force write did not overwrite: %q", string(data))
	}
}
