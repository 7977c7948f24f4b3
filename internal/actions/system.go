package actions

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/rendis/intentd/pkg/schema"
)

// CPUPercentFunc reports aggregate CPU utilization as a percentage.
type CPUPercentFunc func(ctx context.Context) (float64, error)

// RAMPercentFunc reports used physical memory as a percentage.
type RAMPercentFunc func(ctx context.Context) (float64, error)

// SystemConfig configures the system monitoring actions. Zero-value defaults
// read live host metrics via gopsutil.
type SystemConfig struct {
	CPUPercent CPUPercentFunc
	RAMPercent RAMPercentFunc
}

// SystemActions returns the system monitoring actions.
func SystemActions(cfg SystemConfig) []Action {
	if cfg.CPUPercent == nil {
		cfg.CPUPercent = hostCPUPercent
	}
	if cfg.RAMPercent == nil {
		cfg.RAMPercent = hostRAMPercent
	}
	return []Action{
		&cpuUsageAction{cfg: cfg},
		&ramUsageAction{cfg: cfg},
	}
}

func hostCPUPercent(ctx context.Context) (float64, error) {
	// Interval 0 compares against the previous sampling, same semantics as
	// a repeated instantaneous reading.
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu samples")
	}
	return percents[0], nil
}

func hostRAMPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// --- system.cpu_usage ---

type cpuUsageAction struct {
	cfg SystemConfig
}

func (a *cpuUsageAction) Name() string { return "system.cpu_usage" }

func (a *cpuUsageAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Report the current CPU usage of the machine",
	}
}

func (a *cpuUsageAction) Validate(_ map[string]any) error { return nil }

func (a *cpuUsageAction) Execute(ctx context.Context, _ ActionInput) (*ActionOutput, error) {
	pct, err := a.cfg.CPUPercent(ctx)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "read cpu usage: %v", err).WithCause(err)
	}
	return TextOutput(fmt.Sprintf("CPU Usage: %.1f%%", pct))
}

// --- system.ram_usage ---

type ramUsageAction struct {
	cfg SystemConfig
}

func (a *ramUsageAction) Name() string { return "system.ram_usage" }

func (a *ramUsageAction) Schema() ActionSchema {
	return ActionSchema{
		Description: "Report the current RAM usage of the machine",
	}
}

func (a *ramUsageAction) Validate(_ map[string]any) error { return nil }

func (a *ramUsageAction) Execute(ctx context.Context, _ ActionInput) (*ActionOutput, error) {
	pct, err := a.cfg.RAMPercent(ctx)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeHandler, "read ram usage: %v", err).WithCause(err)
	}
	return TextOutput(fmt.Sprintf("RAM Usage: %.1f%%", pct))
}
