package algorithm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// successLine is printed by every generator after the data file is written.
const successLine = "Successfully wrote filtered earthquake data"

// ExecRunner runs prebuilt generator executables named Earthquake<Name>.
type ExecRunner struct {
	dir     string
	timeout time.Duration
	goos    string
	logger  *slog.Logger
}

// NewExecRunner creates a runner for executables in dir, each killed after timeout.
func NewExecRunner(dir string, timeout time.Duration, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{dir: dir, timeout: timeout, goos: runtime.GOOS, logger: logger}
}

// ExecutablePath returns the path of the executable for name.
func (r *ExecRunner) ExecutablePath(name string) string {
	return filepath.Join(r.dir, ExecutableName(name, r.goos))
}

// ExecutableName is the generator file name for an algorithm on goos:
// "ordered" becomes EarthquakeOrdered, with .exe on windows.
func ExecutableName(name, goos string) string {
	file := "Earthquake" + DisplayName(name)
	if goos == "windows" {
		file += ".exe"
	}
	return file
}

func (r *ExecRunner) Run(ctx context.Context, name string) (Result, error) {
	if err := ValidateName(name); err != nil {
		return Result{}, err
	}

	path := r.ExecutablePath(name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = r.dir
	cmd.WaitDelay = time.Second
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("executing algorithm", "algorithm", name, "path", path)
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("execute %s: %w (stderr: %s)", name, err, strings.TrimSpace(stderr.String()))
	}

	return Result{
		Message: SuccessMessage(name),
		Runtime: ParseRuntime(stdout.String()),
	}, nil
}

// ParseRuntime extracts the runtime line from generator output: the last
// non-empty line once the success line is dropped.
func ParseRuntime(stdout string) string {
	var last string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, successLine) {
			continue
		}
		last = line
	}
	return last
}
