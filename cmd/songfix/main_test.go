package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smkaiser/songfix/internal/correction"
	"github.com/smkaiser/songfix/internal/maintenance"
)

func fixEnv(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/artist") {
			_, _ = w.Write([]byte(`{"artists": [{"id": "a1", "name": "Björk", "score": 97}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"recordings": []}`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")
	t.Setenv("SONGFIX_CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("SONGFIX_DB", dbPath)
	t.Setenv("SONGFIX_DB_DRIVER", "sqlite")
	t.Setenv("SONGFIX_MB_BASE_URL", srv.URL)
	t.Setenv("SONGFIX_LOG_LEVEL", "error")
	t.Setenv("OPENAI_API_KEY", "")
	return dbPath
}

func TestFixCommand(t *testing.T) {
	fixEnv(t)

	var out bytes.Buffer
	if err := fix([]string{"-type", "artist", "Bj\uFFFDrk"}, &out); err != nil {
		t.Fatalf("fix: %v", err)
	}

	var got correction.Result
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	want := correction.Result{Input: "Bj\uFFFDrk", Corrected: "Björk", Source: correction.SourceMusicBrainz, Confidence: 0.97}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// The second run is served from the on-disk cache.
	out.Reset()
	if err := fix([]string{"-type", "artist", "Bj\uFFFDrk"}, &out); err != nil {
		t.Fatalf("second fix: %v", err)
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Corrected != "Björk" {
		t.Errorf("cached correction = %q", got.Corrected)
	}
}

func TestFixCommandJoinsArgs(t *testing.T) {
	fixEnv(t)

	var out bytes.Buffer
	if err := fix([]string{"-type", "song", "Hello", "World"}, &out); err != nil {
		t.Fatalf("fix: %v", err)
	}
	var got correction.Result
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Input != "Hello World" || got.Corrected != "Hello World" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestFixCommandRejectsBadInput(t *testing.T) {
	fixEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no name", nil},
		{"bad type", []string{"-type", "album", "x"}},
		{"unknown flag", []string{"-kind", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := fix(tt.args, &out); err == nil {
				t.Error("expected an error")
			}
			if out.Len() != 0 {
				t.Errorf("nothing should be printed, got %q", out.String())
			}
		})
	}
}

func TestMaintainCommand(t *testing.T) {
	fixEnv(t)

	var out bytes.Buffer
	if err := fix([]string{"-type", "artist", "Bj\uFFFDrk"}, &out); err != nil {
		t.Fatalf("fix: %v", err)
	}

	out.Reset()
	if err := maintain([]string{"-vacuum"}, &out); err != nil {
		t.Fatalf("maintain: %v", err)
	}
	var st maintenance.Status
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	if st.Entries != 1 {
		t.Errorf("Entries = %d, want 1", st.Entries)
	}
	if st.LastOptimizeAt.IsZero() {
		t.Error("expected optimize to have run")
	}
}

func TestMaintainRejectsPostgres(t *testing.T) {
	fixEnv(t)
	t.Setenv("SONGFIX_DB_DRIVER", "postgres")
	t.Setenv("SONGFIX_DB_DSN", "postgres://unused")

	if err := maintain(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for the postgres driver")
	}
}
