package dashboard

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostProvider reports edge-infrastructure statistics for the machine the
// process runs on.
type HostProvider struct{}

func (HostProvider) Name() string { return "edge-infrastructure" }

func (HostProvider) Fetch(ctx context.Context) (map[string]any, error) {
	values := map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"cpus":       runtime.NumCPU(),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		values["memory_used_percent"] = vm.UsedPercent
		values["memory_total_bytes"] = vm.Total
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		values["cpu_used_percent"] = percents[0]
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		values["uptime_seconds"] = uptime
	}
	values["status"] = "ok"
	return values, nil
}
