package tool

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), "nonesuch", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("err = %v, want unknown tool error", err)
	}
}

func TestRegistryCancelledContext(t *testing.T) {
	r := DefaultRegistry(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Invoke(ctx, "shell", map[string]string{"target": "true"}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestDefaultRegistryNames(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	names := r.Names()
	sort.Strings(names)
	want := []string{"file_read", "file_write", "search", "shell"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}

func TestShellTool(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	out, err := r.Invoke(context.Background(), "shell", map[string]string{"target": "echo hello"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
}

func TestShellToolFailureIncludesOutput(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	_, err := r.Invoke(context.Background(), "shell", map[string]string{"target": "echo boom >&2; exit 3"})
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want stderr included", err)
	}
}

func TestShellToolMissingCommand(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	_, err := r.Invoke(context.Background(), "shell", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Errorf("err = %v, want missing command error", err)
	}
}

func TestFileWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	r := DefaultRegistry(dir)

	out, err := r.Invoke(context.Background(), "file_write", map[string]string{
		"target":  "notes/today.txt",
		"content": "remember the milk",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "notes/today.txt") {
		t.Errorf("write output = %q", out)
	}

	got, err := r.Invoke(context.Background(), "file_read", map[string]string{"target": "notes/today.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "remember the milk" {
		t.Errorf("read back %q", got)
	}
}

func TestFileWriteEmptyContent(t *testing.T) {
	dir := t.TempDir()
	r := DefaultRegistry(dir)

	if _, err := r.Invoke(context.Background(), "file_write", map[string]string{"target": "empty.txt"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, "empty.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want empty placeholder", info.Size())
	}
}

func TestFileReadMissing(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	_, err := r.Invoke(context.Background(), "file_read", map[string]string{"target": "absent.txt"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	// The error text is what the missing-resource recovery matches on.
	if !strings.Contains(err.Error(), "no such file") {
		t.Errorf("err = %v, want no-such-file text", err)
	}
}

func TestFileToolsRejectEscape(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	for _, target := range []string{"../outside.txt", "../../etc/passwd"} {
		if _, err := r.Invoke(context.Background(), "file_read", map[string]string{"target": target}); err == nil {
			t.Errorf("file_read accepted escaping target %q", target)
		}
		if _, err := r.Invoke(context.Background(), "file_write", map[string]string{"target": target}); err == nil {
			t.Errorf("file_write accepted escaping target %q", target)
		}
	}
}

func TestFileToolsMissingTarget(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	if _, err := r.Invoke(context.Background(), "file_read", nil); err == nil {
		t.Error("file_read accepted missing target")
	}
	if _, err := r.Invoke(context.Background(), "file_write", nil); err == nil {
		t.Error("file_write accepted missing target")
	}
}

func TestSearchTool(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "first line\nthe NEEDLE is here\nlast line")
	writeTestFile(t, dir, "sub/b.txt", "another needle sighting")
	writeTestFile(t, dir, ".hidden/c.txt", "needle hidden away")

	r := DefaultRegistry(dir)
	out, err := r.Invoke(context.Background(), "search", map[string]string{"target": "needle"})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out, "a.txt:2:") {
		t.Errorf("missing case-insensitive match with line number:\n%s", out)
	}
	if !strings.Contains(out, filepath.Join("sub", "b.txt")) {
		t.Errorf("missing match in subdirectory:\n%s", out)
	}
	if strings.Contains(out, "c.txt") {
		t.Errorf("hidden directory was searched:\n%s", out)
	}
}

func TestSearchToolNoMatches(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "nothing of interest")

	r := DefaultRegistry(dir)
	out, err := r.Invoke(context.Background(), "search", map[string]string{"target": "unobtainium"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no matches") {
		t.Errorf("output = %q, want a no-matches report", out)
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
