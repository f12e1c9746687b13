package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveCreateInput_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(`{"n": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	payload, attachment, err := resolveCreateInput(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"n": 1}` {
		t.Errorf("payload = %s", payload)
	}
	if attachment != "" {
		t.Errorf("attachment = %q, want empty", attachment)
	}
}

func TestResolveCreateInput_JSONFileKeepsAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, attachment, err := resolveCreateInput(path, "/tmp/blob.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attachment != "/tmp/blob.bin" {
		t.Errorf("attachment = %q", attachment)
	}
}

func TestResolveCreateInput_NonJSONFileBecomesAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	payload, attachment, err := resolveCreateInput(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != "{}" {
		t.Errorf("payload = %s, want {}", payload)
	}
	if attachment != path {
		t.Errorf("attachment = %q, want %q", attachment, path)
	}
}

func TestResolveCreateInput_JSONLiteral(t *testing.T) {
	payload, attachment, err := resolveCreateInput(`{"n": 2}`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"n": 2}` {
		t.Errorf("payload = %s", payload)
	}
	if attachment != "" {
		t.Errorf("attachment = %q", attachment)
	}
}

func TestResolveCreateInput_Invalid(t *testing.T) {
	if _, _, err := resolveCreateInput("not json and not a file", ""); err == nil {
		t.Error("expected an error")
	}
}

func TestResolveCreateInput_MalformedJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := resolveCreateInput(path, ""); err == nil {
		t.Error("expected an error for malformed JSON file")
	}
}
