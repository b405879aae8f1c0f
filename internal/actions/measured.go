package actions

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/suspectuso/green-coin/internal/greencoin"
)

var browserKeywords = []string{
	"chrome", "chromium", "brave", "firefox", "msedge", "opera", "safari",
}

// Measured derives metadata from the host: browser processes stand in for
// open tabs and idle CPU share for saved kWh. Other action types use the
// fallback source.
type Measured struct {
	fallback     Source
	processNames func(ctx context.Context) ([]string, error)
	cpuPercent   func(ctx context.Context) (float64, error)
}

// NewMeasured returns a Measured source reading the local host
func NewMeasured(fallback Source) *Measured {
	return &Measured{
		fallback:     fallback,
		processNames: hostProcessNames,
		cpuPercent:   hostCPUPercent,
	}
}

func (m *Measured) Metadata(ctx context.Context, actionType string) (map[string]any, error) {
	switch actionType {
	case greencoin.ActionCloseTabs:
		names, err := m.processNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("list processes: %w", err)
		}
		tabs := countBrowsers(names)
		if tabs == 0 {
			tabs = 1
		}
		return map[string]any{"tabs": tabs}, nil

	case greencoin.ActionServerOptimize:
		busy, err := m.cpuPercent(ctx)
		if err != nil {
			return nil, fmt.Errorf("read cpu: %w", err)
		}
		// one kWh per 20% of idle CPU, at least one
		kwh := int(math.Floor((100 - busy) / 20))
		if kwh < 1 {
			kwh = 1
		}
		return map[string]any{"kwh_saved": kwh}, nil
	}

	return m.fallback.Metadata(ctx, actionType)
}

func countBrowsers(names []string) int {
	n := 0
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, kw := range browserKeywords {
			if strings.Contains(lower, kw) {
				n++
				break
			}
		}
	}
	return n
}

func hostProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// process exited or access denied
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func hostCPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("no cpu sample")
	}
	return pct[0], nil
}
