package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandBackend runs an external program per region. The invocation is
// written to its stdin as JSON and its stdout becomes the region output.
type CommandBackend struct {
	argv    []string
	timeout time.Duration
	dir     string
}

func NewCommandBackend(argv []string, timeout time.Duration, dir string) (*CommandBackend, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("command backend requires a command")
	}
	return &CommandBackend{argv: argv, timeout: timeout, dir: dir}, nil
}

func (c *CommandBackend) Name() string {
	return "command"
}

func (c *CommandBackend) Expand(ctx context.Context, inv Invocation) (string, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(),
		"DEN_NAME="+inv.Name,
		"DEN_PATH="+inv.Path,
		fmt.Sprintf("DEN_LINE=%d", inv.Line),
	)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("command %s for %s: %w", c.argv[0], inv.Name, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("command %s for %s: %w: %s", c.argv[0], inv.Name, err, msg)
		}
		return "", fmt.Errorf("command %s for %s: %w", c.argv[0], inv.Name, err)
	}

	return strings.TrimRight(stdout.String(), " \t\r\n"), nil
}
