package e2e

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestMiner_E2E builds the zkminer binary, feeds it one candidate on
// stdin and expects a proof line on stdout.
func TestMiner_E2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end to end test in short mode")
	}

	tmpDir := t.TempDir()
	binName := "zkminer"
	if runtime.GOOS == "windows" {
		binName = "zkminer.exe"
	}
	binPath := filepath.Join(tmpDir, binName)

	build := exec.Command("go", "build", "-o", binPath, "./cmd/zkminer")
	build.Dir = "../.."
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}

	miner := exec.Command(binPath)
	miner.Env = append(os.Environ(),
		"MINING_THREADS=2",
		"ZKMINER_METRICS_ADDR=", // no listener in tests
		"ZKMINER_TRACE_LOG=5",
		"ZKMINER_LOG_LEVEL=error",
	)
	stdin, err := miner.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := miner.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := miner.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() {
		miner.Process.Signal(syscall.SIGTERM)
		miner.Wait()
	}()

	if _, err := stdin.Write([]byte("deadbeef0badc0de\n")); err != nil {
		t.Fatalf("write candidate: %v", err)
	}

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		if scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	select {
	case line, ok := <-lines:
		if !ok {
			t.Fatal("miner exited without producing a proof")
		}
		// Expect "<seq> <nonce> <digest>".
		parts := strings.Fields(line)
		if len(parts) != 3 {
			t.Fatalf("malformed proof line: %q", line)
		}
		if parts[0] != "1" {
			t.Errorf("sequence = %s, want 1", parts[0])
		}
		if len(parts[2]) != 64 {
			t.Errorf("digest hex length = %d, want 64", len(parts[2]))
		}
	case <-time.After(60 * time.Second):
		t.Fatal("timed out waiting for a proof line")
	}
}
