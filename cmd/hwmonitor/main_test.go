package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	observer "github.com/jeremyforan/hwmonitor"
)

const (
	faultLine = "Fault Reporter got update from Publisher"
	perfLine  = "Performance monitor got update from Publisher"
	fdrLine   = "Fdr logger got update from Publisher"

	createdLine = "Created a PowerMonitorController"
	powerLine   = "Power Monitored"
)

func TestRun(t *testing.T) {
	t.Setenv("HWMONITOR_CONFIG", "")

	t.Run("DefaultObserversForTwoTicks", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), []string{"--ticks", "2"}, &stdout, &stderr)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			want := strings.Repeat(faultLine+"\n"+perfLine+"\n"+fdrLine+"\n", 2)
			if stdout.String() != want {
				t.Errorf("Unexpected output:\n%s\nwant:\n%s", stdout.String(), want)
			}
		})
	})

	t.Run("DeregisterRemovesObserver", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), []string{"--ticks", "1", "--deregister", "performance"}, &stdout, &stderr)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			want := faultLine + "\n" + fdrLine + "\n"
			if stdout.String() != want {
				t.Errorf("Unexpected output:\n%s\nwant:\n%s", stdout.String(), want)
			}
		})
	})

	t.Run("ObserverFlagSetsOrder", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), []string{"--ticks=1", "--observer=fdr,fault"}, &stdout, &stderr)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			want := fdrLine + "\n" + faultLine + "\n"
			if stdout.String() != want {
				t.Errorf("Unexpected output:\n%s\nwant:\n%s", stdout.String(), want)
			}
		})
	})

	t.Run("StopsOnCancellation", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
			defer cancel()

			var stdout, stderr bytes.Buffer
			if err := run(ctx, []string{"--observer", "fault"}, &stdout, &stderr); err != nil {
				t.Fatalf("Expected clean exit on cancellation, got %v", err)
			}
			if n := strings.Count(stdout.String(), faultLine); n != 2 {
				t.Errorf("Expected 2 ticks before cancellation, got %d", n)
			}
		})
	})

	t.Run("PowerControllerAfterObservers", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), []string{"--ticks=1", "--observer=fault", "--power-controller"}, &stdout, &stderr)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			// The controller is process-wide; only the first test to use it sees the creation line.
			got := strings.TrimPrefix(stdout.String(), createdLine+"\n")
			if want := faultLine + "\n" + powerLine + "\n"; got != want {
				t.Errorf("Unexpected output:\n%s\nwant:\n%s", stdout.String(), want)
			}
		})
	})

	t.Run("PowerControllerAlone", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hwmonitor.yaml")
			content := "observers: []\npower_controller: true\nmax_ticks: 2\n"
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			var stdout, stderr bytes.Buffer
			if err := run(context.Background(), []string{"--config", path}, &stdout, &stderr); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			got := strings.TrimPrefix(stdout.String(), createdLine+"\n")
			if want := strings.Repeat(powerLine+"\n", 2); got != want {
				t.Errorf("Unexpected output:\n%s\nwant:\n%s", stdout.String(), want)
			}
		})
	})

	t.Run("StrictUnknownDeregister", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), []string{"--strict", "--observer", "fault", "--deregister", "fdr"}, &stdout, &stderr)
		if !errors.Is(err, observer.ErrUnknownObserverOnDeregister) {
			t.Errorf("Expected ErrUnknownObserverOnDeregister, got %v", err)
		}
	})

	t.Run("ConfigFileWithFlagOverride", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hwmonitor.yaml")
			content := "max_ticks: 5\nobservers: [performance]\nlog:\n  format: json\n  level: debug\n"
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			var stdout, stderr bytes.Buffer
			err := run(context.Background(), []string{"--config", path, "--ticks", "1"}, &stdout, &stderr)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if stdout.String() != perfLine+"\n" {
				t.Errorf("Expected one performance line, got %q", stdout.String())
			}
			if !strings.Contains(stderr.String(), `"msg":"registered observer"`) {
				t.Errorf("Expected JSON logs on stderr, got %q", stderr.String())
			}
		})
	})

	t.Run("Help", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if err := run(context.Background(), []string{"--help"}, &stdout, &stderr); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !strings.Contains(stdout.String(), "--interval") {
			t.Errorf("Expected flag usage, got %q", stdout.String())
		}
	})
}

func TestRunUsageErrors(t *testing.T) {
	t.Setenv("HWMONITOR_CONFIG", "")

	cases := map[string][]string{
		"UnknownFlag":     {"--bogus"},
		"UnknownObserver": {"--observer", "thermal"},
		"BadLogLevel":     {"--log-level", "loud"},
		"StrayArgument":   {"extra"},
		"MissingConfig":   {"--config", "/does/not/exist.yaml"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), args, &stdout, &stderr)

			var usage usageError
			if !errors.As(err, &usage) {
				t.Fatalf("Expected usage error, got %v", err)
			}
			if usage.ExitCode() != 2 {
				t.Errorf("Expected exit code 2, got %d", usage.ExitCode())
			}
		})
	}
}

func TestSingletonDemo(t *testing.T) {
	var stdout bytes.Buffer
	singletonDemo(&stdout)

	out := stdout.String()
	for _, line := range []string{"Power Monitored", "Manage Fault", "Adjust Power"} {
		if !strings.Contains(out, line) {
			t.Errorf("Expected %q in output, got %q", line, out)
		}
	}
	if n := strings.Count(out, "Created a PowerMonitorController"); n > 1 {
		t.Errorf("Controller created %d times", n)
	}
}
