package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// SurfacePlaceholder is replaced with the surface identifier in capture commands.
const SurfacePlaceholder = "{surface}"

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
}

// waitDelay bounds how long a cancelled command may keep its output pipes open.
const waitDelay = 500 * time.Millisecond

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", binary, ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return stdout.Bytes(), nil
}

// splitCommand breaks a configured command line into binary and arguments,
// substituting the surface placeholder in every field.
func splitCommand(line string, surface string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, errors.New("command not configured")
	}
	for i, field := range fields {
		fields[i] = strings.ReplaceAll(field, SurfacePlaceholder, surface)
	}
	return fields[0], fields[1:], nil
}
