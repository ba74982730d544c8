package cpre_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"occ.dev/compiler/pkg/cpre"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %s", path, err)
	}
	return path
}

func TestPreprocessIncludeConcatenates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.h", "int helper() { return 1; }\n")
	main := writeFile(t, dir, "main.c", "#include \"util.h\"\nint main() { return helper(); }\n")

	pre := cpre.New(nil, nil)
	out, err := pre.Preprocess(main)
	if err != nil {
		t.Fatalf("Preprocess: %s", err)
	}
	if !strings.Contains(out, "int helper()") || !strings.Contains(out, "int main()") {
		t.Errorf("expected both the included and the including file's text, got %q", out)
	}
}

func TestPreprocessObjectMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", "#define SIZE 10\nint buf[SIZE];\n")

	pre := cpre.New(nil, nil)
	out, err := pre.Preprocess(main)
	if err != nil {
		t.Fatalf("Preprocess: %s", err)
	}
	if !strings.Contains(out, "int buf[10];") {
		t.Errorf("expected SIZE to expand to 10, got %q", out)
	}
}

func TestPreprocessIfdefSuppressesUndefinedBlock(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", "#ifdef NOT_DEFINED\nint should_vanish;\n#endif\nint main() { return 0; }\n")

	pre := cpre.New(nil, nil)
	out, err := pre.Preprocess(main)
	if err != nil {
		t.Fatalf("Preprocess: %s", err)
	}
	if strings.Contains(out, "should_vanish") {
		t.Errorf("expected the #ifdef block to be suppressed, got %q", out)
	}
}

func TestPreprocessIfdefKeepsDefinedBlock(t *testing.T) {
	pre := cpre.New(nil, map[string]string{"FEATURE": ""})
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", "#ifdef FEATURE\nint enabled;\n#endif\n")

	out, err := pre.Preprocess(main)
	if err != nil {
		t.Fatalf("Preprocess: %s", err)
	}
	if !strings.Contains(out, "int enabled;") {
		t.Errorf("expected the #ifdef block to survive, got %q", out)
	}
}

func TestPreprocessUnmatchedEndifFails(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", "#endif\n")

	pre := cpre.New(nil, nil)
	if _, err := pre.Preprocess(main); err == nil {
		t.Fatal("expected an error for an unmatched #endif")
	}
}

func TestPreprocessMissingIncludeFails(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", "#include \"missing.h\"\n")

	pre := cpre.New(nil, nil)
	if _, err := pre.Preprocess(main); err == nil {
		t.Fatal("expected an error for a missing include")
	}
}
