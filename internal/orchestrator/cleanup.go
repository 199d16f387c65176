package orchestrator

import "log/slog"

// cleanupStack releases run resources in reverse acquisition order.
type cleanupStack struct {
	logger *slog.Logger
	steps  []cleanupStep
}

type cleanupStep struct {
	name string
	fn   func() error
}

func (c *cleanupStack) push(name string, fn func() error) {
	c.steps = append(c.steps, cleanupStep{name: name, fn: fn})
}

// run executes every step even if earlier ones fail, and empties the stack.
func (c *cleanupStack) run() {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.fn(); err != nil {
			c.logger.Error("cleanup failed", "step", step.name, "error", err)
			continue
		}
		c.logger.Debug("cleanup done", "step", step.name)
	}
	c.steps = nil
}
