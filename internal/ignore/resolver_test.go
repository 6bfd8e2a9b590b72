package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoIgnoreFile_UsesDefaults(t *testing.T) {
	dir := t.TempDir()

	r := Load(dir)
	if r.Source() != SourceDefaults {
		t.Errorf("Source() = %q, want %q", r.Source(), SourceDefaults)
	}

	tests := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{"node_modules", true, true},
		{"node_modules/react/index.js", false, true},
		{"dist", true, true},
		{"dist/bundle.js", false, true},
		{".git", true, true},
		{"src/app.js", false, false},
		{"src", true, false},
		{"lib/jquery.min.js", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := r.Ignored(tt.path, tt.isDir); got != tt.ignored {
				t.Errorf("Ignored(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.ignored)
			}
		})
	}
}

func TestLoad_WithIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	content := "# generated\nsecret.js\ntmp/\n\n"
	if err := os.WriteFile(filepath.Join(dir, IgnoreFilename), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	r := Load(dir)
	if r.Source() != SourceGitignore {
		t.Errorf("Source() = %q, want %q", r.Source(), SourceGitignore)
	}

	if !r.Ignored("secret.js", false) {
		t.Error("Expected secret.js to be ignored")
	}
	if !r.Ignored("tmp", true) {
		t.Error("Expected tmp/ to be ignored")
	}
	if !r.Ignored("tmp/a.js", false) {
		t.Error("Expected tmp/a.js to be ignored")
	}
	if r.Ignored("src/index.js", false) {
		t.Error("Expected src/index.js to be included")
	}
	// Defaults are replaced by the project rules
	if r.Ignored("dist/bundle.js", false) {
		t.Error("Expected dist/bundle.js to be included when the ignore file does not list it")
	}
}

func TestLoad_CommentOnlyIgnoreFile_UsesDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFilename), []byte("# nothing\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	r := Load(dir)
	if r.Source() != SourceDefaults {
		t.Errorf("Source() = %q, want %q", r.Source(), SourceDefaults)
	}
}

func TestResolver_AlwaysExcluded(t *testing.T) {
	r := NewResolver([]string{"*.log"})

	tests := []string{
		".git",
		".git/HEAD",
		DataDirName,
		DataDirName + "/memory/abc.json",
	}
	for _, p := range tests {
		if !r.Ignored(p, false) {
			t.Errorf("Expected %q to be ignored", p)
		}
	}

	if r.Ignored(".", true) {
		t.Error("Project root must never be ignored")
	}
}

func TestIsBinary(t *testing.T) {
	if IsBinary([]byte("const a = 1;\n")) {
		t.Error("Expected text content to not be binary")
	}
	if !IsBinary([]byte{0x7f, 'E', 'L', 'F', 0x00, 0x01}) {
		t.Error("Expected content with null byte to be binary")
	}
	if IsBinary(nil) {
		t.Error("Expected empty content to not be binary")
	}
}

func TestGetFileExtension(t *testing.T) {
	tests := map[string]string{
		"src/app.js":      "js",
		"Button.tsx":      "tsx",
		"types.d.ts":      "ts",
		"Makefile":        "",
		"dir.name/readme": "",
	}
	for path, want := range tests {
		if got := GetFileExtension(path); got != want {
			t.Errorf("GetFileExtension(%q) = %q, want %q", path, got, want)
		}
	}
}
