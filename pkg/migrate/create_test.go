package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Connection  Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	base := filepath.Base(path)
	if !sqlFileRe.MatchString(base) {
		t.Fatalf("unexpected filename %s", base)
	}
	if !strings.HasSuffix(base, "_add_connection_index.sql") {
		t.Fatalf("name not sanitized: %s", base)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(body), "-- +goose Down") {
		t.Fatal("template missing down section")
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestSanitizeNameCollapsesSeparators(t *testing.T) {
	cases := map[string]string{
		"Add Connection  Index!":   "add_connection_index",
		"  people__mirror  ":       "people_mirror",
		"drop-post/likes (v2)":     "drop_post_likes_v2",
		"notifications_event_user": "notifications_event_user",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q want %q", in, got, want)
		}
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "!!!"); err == nil {
		t.Fatal("expected sanitized empty name to fail")
	}
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_bad.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section to fail")
	}
}
