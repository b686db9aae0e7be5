// Package deps checks the external pieces a transcription run needs:
// engine binaries on PATH, model files on disk, and writable output
// directories.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// Kind selects how a requirement is probed.
type Kind string

const (
	KindBinary Kind = "binary"
	KindFile   Kind = "file"
	KindDir    Kind = "dir"
)

// Requirement defines one external dependency.
type Requirement struct {
	Name        string
	Kind        Kind
	Target      string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Check evaluates the requirements in order and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Target = strings.TrimSpace(req.Target)
		status := Status{Requirement: req}
		if req.Target == "" {
			status.Detail = "not configured"
			results = append(results, status)
			continue
		}
		if err := probe(req.Kind, req.Target); err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Probe checks a single target and returns a descriptive error when it is
// unusable.
func Probe(kind Kind, target string) error {
	return probe(kind, strings.TrimSpace(target))
}

func probe(kind Kind, target string) error {
	switch kind {
	case KindBinary:
		if _, err := exec.LookPath(target); err != nil {
			return fmt.Errorf("binary %q not found", target)
		}
	case KindFile:
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("file %q not found", target)
		}
		if info.IsDir() {
			return fmt.Errorf("%q is a directory, expected a file", target)
		}
	case KindDir:
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("directory %q not found", target)
		}
		if !info.IsDir() {
			return fmt.Errorf("%q is not a directory", target)
		}
		if err := unix.Access(target, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			return fmt.Errorf("directory %q is not fully accessible: %v", target, err)
		}
	default:
		return fmt.Errorf("unknown requirement kind %q", kind)
	}
	return nil
}
