package route

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/satriadi/bellhop/pkg/resilience"
)

// ExecController drives a command-line audio device utility. The tool is
// expected to support these subcommands:
//
//	<tool> default-output
//	<tool> set-default-output <device>
//	<tool> create-aggregate <name> <subdevice>...   (prints the new id)
//	<tool> destroy-aggregate <id>
type ExecController struct {
	Tool    string
	Timeout time.Duration
	retry   resilience.RetryPolicy
}

func NewExecController(tool string) *ExecController {
	return &ExecController{
		Tool:    tool,
		Timeout: 10 * time.Second,
		retry:   resilience.NewRetryPolicy(1, 250*time.Millisecond),
	}
}

func (c *ExecController) DefaultOutput(ctx context.Context) (string, error) {
	return c.run(ctx, "default-output")
}

func (c *ExecController) SetDefaultOutput(ctx context.Context, device string) error {
	_, err := c.run(ctx, "set-default-output", device)
	return err
}

func (c *ExecController) CreateAggregate(ctx context.Context, name string, subdevices []string) (string, error) {
	args := append([]string{"create-aggregate", name}, subdevices...)
	return c.run(ctx, args...)
}

func (c *ExecController) DestroyAggregate(ctx context.Context, id string) error {
	_, err := c.run(ctx, "destroy-aggregate", id)
	return err
}

func (c *ExecController) run(ctx context.Context, args ...string) (string, error) {
	if strings.TrimSpace(c.Tool) == "" {
		return "", fmt.Errorf("device tool not configured")
	}
	var out string
	err := c.retry.Do(func() error {
		runCtx := ctx
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}
		cmd := exec.CommandContext(runCtx, c.Tool, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return fmt.Errorf("%s %s: %s", c.Tool, args[0], msg)
		}
		out = strings.TrimSpace(stdout.String())
		return nil
	})
	return out, err
}

var _ DeviceController = (*ExecController)(nil)
