package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/TobiSchelling/facthistory/internal/config"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate kept %q", got)
	}
	if got := truncate("Überraschung im Bundestag", 10); got != "Überrasch…" {
		t.Errorf("unexpected truncation %q", got)
	}
}

func TestLoginURL(t *testing.T) {
	cfg = &config.Config{Backend: config.Backend{BaseURL: "http://localhost:5000/", LoginURL: "/login"}}
	t.Cleanup(func() { cfg = nil })

	if got := loginURL(); got != "http://localhost:5000/login" {
		t.Errorf("relative login url resolved to %q", got)
	}
	cfg.Backend.LoginURL = "https://auth.example.com/login"
	if got := loginURL(); got != "https://auth.example.com/login" {
		t.Errorf("absolute login url changed to %q", got)
	}
}

func TestGradeColor(t *testing.T) {
	color.NoColor = true
	if got := gradeColor("A+"); got != "A+" {
		t.Errorf("expected plain grade without colour, got %q", got)
	}
	if gradeColor("") != "" {
		t.Error("expected empty grade to stay empty")
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	err := renderTable(&buf, []string{"Domain", "Articles"}, [][]string{
		{"news.example.com", "4"},
		{"blog.example.org", "1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"news.example.com", "blog.example.org"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
