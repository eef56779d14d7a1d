package main

import (
	"testing"

	"gestrec/internal/testsupport"
)

func TestStatusCommandReportsSections(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.NewClip(t, env.store, "clip-alpha", "fp-alpha")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Environment ==")
	requireContains(t, out, "== External tools ==")
	requireContains(t, out, "== Queue ==")
	requireContains(t, out, "ffmpeg")
	requireContains(t, out, "Pending")
}

func TestStatusCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"preflight"`)
	requireContains(t, out, `"dependencies"`)
	requireContains(t, out, `"queue"`)
}
