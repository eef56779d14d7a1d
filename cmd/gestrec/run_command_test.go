package main

import "testing"

func TestRunCommandExposesDrainFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	out, errOut, err := runCLI(t, []string{"run", "--help"}, env.configPath)
	if err != nil {
		t.Fatalf("run help: %v", err)
	}
	combined := out + errOut
	requireContains(t, combined, "--drain")
	requireContains(t, combined, "exits once the queue is empty")
}
