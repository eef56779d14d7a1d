package mediainfo_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gestrec/internal/services/mediainfo"
)

type fakeExecutor struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeExecutor) Output(_ context.Context, binary string, args []string) (string, error) {
	f.calls = append(f.calls, binary)
	if err, ok := f.errs[binary]; ok {
		return "", err
	}
	return f.outputs[binary], nil
}

func TestProbeUsesMediainfoDuration(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"mediainfo": "2400\n"}}
	client, err := mediainfo.New("mediainfo", "ffprobe", time.Minute, mediainfo.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := client.Probe(context.Background(), "/videos/clip.avi")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.DurationSeconds != 2.4 {
		t.Fatalf("expected 2.4s, got %f", result.DurationSeconds)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "mediainfo" {
		t.Fatalf("expected single mediainfo call, got %v", exec.calls)
	}
}

func TestProbeFallsBackToFFprobe(t *testing.T) {
	exec := &fakeExecutor{
		errs:    map[string]error{"mediainfo": errors.New("not found")},
		outputs: map[string]string{"ffprobe": `{"format": {"duration": "3.500000"}}`},
	}
	client, err := mediainfo.New("mediainfo", "ffprobe", time.Minute, mediainfo.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := client.Probe(context.Background(), "/videos/clip.avi")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.DurationSeconds != 3.5 {
		t.Fatalf("expected 3.5s, got %f", result.DurationSeconds)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("expected fallback call, got %v", exec.calls)
	}
}

func TestProbeReportsBothFailures(t *testing.T) {
	exec := &fakeExecutor{
		errs: map[string]error{
			"mediainfo": errors.New("mediainfo broken"),
			"ffprobe":   errors.New("ffprobe broken"),
		},
	}
	client, err := mediainfo.New("mediainfo", "ffprobe", time.Minute, mediainfo.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Probe(context.Background(), "/videos/clip.avi")
	if err == nil {
		t.Fatal("expected probe failure")
	}
	if !strings.Contains(err.Error(), "mediainfo") || !strings.Contains(err.Error(), "ffprobe") {
		t.Fatalf("expected both tool failures in error, got %v", err)
	}
}

func TestProbeRejectsNonPositiveDuration(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{"mediainfo": "0"}}
	client, err := mediainfo.New("mediainfo", "", time.Minute, mediainfo.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.Probe(context.Background(), "/videos/clip.avi"); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestNewRequiresABinary(t *testing.T) {
	if _, err := mediainfo.New("", "", time.Minute); err == nil {
		t.Fatal("expected error when no probe binary configured")
	}
}

func TestProbeRequiresPath(t *testing.T) {
	client, err := mediainfo.New("mediainfo", "", time.Minute, mediainfo.WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Probe(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
