// Package tools wraps the external CLIs dragon orchestrates: the cloud
// CLI for registry tag queries, the container engine for image pull and
// filesystem export, and wsl.exe for distribution import, listing, and
// removal.
//
// Every call is synchronous with a bounded timeout. The adapter never
// retries; retry policy lives in the reconciliation engine, which has
// the context to decide whether a retry is safe.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf16"

	"github.com/sirupsen/logrus"
)

// runner abstracts subprocess execution so adapters can be tested
// without the external binaries installed.
type runner interface {
	run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	logrus.Debugf("exec: %s %s", bin, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), fmt.Errorf("%s timed out: %w", bin, ctx.Err())
		}
		return stdout.Bytes(), &commandError{
			bin:    bin,
			args:   args,
			stderr: strings.TrimSpace(decodeConsoleOutput(stderr.Bytes())),
			err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// commandError carries the failed command and its stderr so callers
// can classify the failure without re-running anything.
type commandError struct {
	bin    string
	args   []string
	stderr string
	err    error
}

func (e *commandError) Error() string {
	if e.stderr == "" {
		return fmt.Sprintf("%s %s: %v", e.bin, strings.Join(e.args, " "), e.err)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.bin, strings.Join(e.args, " "), e.err, e.stderr)
}

func (e *commandError) Unwrap() error {
	return e.err
}

// stderrOf extracts captured stderr from a command failure, for
// substring classification of CLI error messages.
func stderrOf(err error) string {
	if ce, ok := err.(*commandError); ok {
		return ce.stderr
	}
	return ""
}

// decodeConsoleOutput normalizes command output to UTF-8. wsl.exe
// writes UTF-16LE to pipes; everything else is passed through as-is.
func decodeConsoleOutput(data []byte) string {
	if !bytes.ContainsRune(data, 0) {
		return string(data)
	}

	// Strip a UTF-16LE BOM if present.
	if len(data) >= 2 && data[0] == 0xff && data[1] == 0xfe {
		data = data[2:]
	}
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}

	u16 := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		u16 = append(u16, uint16(data[i])|uint16(data[i+1])<<8)
	}
	return string(utf16.Decode(u16))
}

// splitLines splits console output into trimmed, non-empty lines.
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
