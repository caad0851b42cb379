package design

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/san-kum/drivegain/internal/config"
	"github.com/san-kum/drivegain/internal/sim"
)

// Outcome is one named run of a sweep. Err is set when either the design or
// its simulation failed; the other runs are unaffected.
type Outcome struct {
	Name   string
	Design *Design
	Result *sim.Result
	Err    error
}

// Sweep designs and simulates every configuration concurrently. Outcomes are
// sorted by name.
func Sweep(ctx context.Context, cfgs map[string]*config.Config, log *slog.Logger) []Outcome {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Outcome, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(idx int, name string) {
			defer wg.Done()
			out[idx].Name = name

			cfgCopy := *cfgs[name]
			d, err := New(&cfgCopy, log)
			if err != nil {
				out[idx].Err = err
				return
			}
			out[idx].Design = d
			out[idx].Result, out[idx].Err = d.Simulate(ctx)
		}(i, name)
	}
	wg.Wait()
	return out
}
