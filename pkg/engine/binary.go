package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// fatalKeywords mark a failed check even when the binary exits cleanly;
// some engine builds report parse failures only on stderr.
var fatalKeywords = []string{"FATA", "fatal", "Parse config error", "level=fatal"}

// BinaryChecker validates a rendered configuration by running the engine
// binary's own check mode against it.
type BinaryChecker struct {
	binary string
	dir    string
}

// NewBinaryChecker constructs a checker running binary with dir as the
// engine home directory.
func NewBinaryChecker(binary, dir string) *BinaryChecker {
	return &BinaryChecker{binary: binary, dir: dir}
}

// Check runs the engine's test mode on the file at path. The error carries
// the engine's own diagnostics.
func (c *BinaryChecker) Check(ctx context.Context, path string) error {
	if c == nil || c.binary == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, c.binary, "-t", "-d", c.dir, "-f", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil && !containsFatal(stderr.String()) {
		return nil
	}

	detail := strings.TrimSpace(stdout.String())
	if detail == "" {
		detail = strings.TrimSpace(stderr.String())
	}
	if detail == "" && runErr != nil {
		detail = runErr.Error()
	}
	return fmt.Errorf("engine: config check failed: %s", detail)
}

func containsFatal(output string) bool {
	for _, keyword := range fatalKeywords {
		if strings.Contains(output, keyword) {
			return true
		}
	}
	return false
}
