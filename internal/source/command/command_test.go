package command

import (
	"bytes"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/lockin/internal/lockin"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func shell(t *testing.T, script string) *Source {
	t.Helper()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return newSource(sh, []string{"-c", script}, lockin.DefaultFormat(48_000))
}

func waitDone(t *testing.T, s *Source) error {
	t.Helper()

	select {
	case err := <-s.Done():
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Recorder did not exit")
		return nil
	}
}

func TestSource_CopiesStdout(t *testing.T) {
	s := shell(t, "printf 'abcdefgh'; echo 'overrun!!!' >&2")

	var out safeBuffer
	if err := s.Start(&out); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := waitDone(t, s); err != nil {
		t.Fatalf("Unexpected exit error: %v", err)
	}

	if out.String() != "abcdefgh" {
		t.Errorf("Expected stdout copied verbatim, got %q", out.String())
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop after exit failed: %v", err)
	}
}

func TestSource_ExitError(t *testing.T) {
	s := shell(t, "exit 3")

	if err := s.Start(&safeBuffer{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var exitErr *exec.ExitError
	if err := waitDone(t, s); !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Errorf("Expected exit code 3, got %v", err)
	}
}

func TestSource_Stop(t *testing.T) {
	s := shell(t, "exec sleep 30")

	if err := s.Start(&safeBuffer{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(&safeBuffer{}); err == nil {
		t.Error("Second start should fail")
	}

	stopped := make(chan error)
	go func() { stopped <- s.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Killing the recorder should not be reported: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	if err := s.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
}

func TestNew_RuntimeNotFound(t *testing.T) {
	if _, err := New(&Config{Runtime: "no-such-recorder-binary"}); err == nil {
		t.Error("Expected an error for a missing runtime")
	}
}
