package tools

import (
	"context"
	"errors"
	"strings"
)

// fakeRunner is a runner for tests. Each invocation is recorded, and
// behavior is chosen by the first matching rule.
type fakeRunner struct {
	rules []fakeRule
	calls []string
}

type fakeRule struct {
	// match is a substring of the full command line.
	match  string
	stdout []byte
	err    error
}

func (f *fakeRunner) run(_ context.Context, bin string, args ...string) ([]byte, error) {
	cmdline := bin + " " + strings.Join(args, " ")
	f.calls = append(f.calls, cmdline)
	for _, rule := range f.rules {
		if strings.Contains(cmdline, rule.match) {
			return rule.stdout, rule.err
		}
	}
	return nil, nil
}

// calledWith reports whether any recorded command line contains s.
func (f *fakeRunner) calledWith(s string) bool {
	for _, c := range f.calls {
		if strings.Contains(c, s) {
			return true
		}
	}
	return false
}

// cliFailure builds a commandError with the given stderr, as the real
// runner produces when an external CLI exits non-zero.
func cliFailure(bin, stderr string) error {
	return &commandError{bin: bin, stderr: stderr, err: errors.New("exit status 1")}
}
