package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// unavailableMarker is placed in the gathered context when a service
// call fails; the LLM prompt simply sees the data as missing.
const unavailableMarker = "(unavailable)"

// gatherCallTimeout bounds each individual service call during gather.
const gatherCallTimeout = 20 * time.Second

// gatherTask is one named service call executed during the gather step.
type gatherTask struct {
	key string
	run func(ctx context.Context) (string, error)
}

// gather executes tasks in parallel under the session's fanout budget
// and returns key → result text. A failed call yields the unavailable
// marker instead of aborting the agent; the caller can count markers to
// decide whether it is degraded.
func (d *Deps) gather(ctx context.Context, sem *semaphore.Weighted, agentName string, tasks []gatherTask) map[string]string {
	results := make(map[string]string, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(t gatherTask) {
			defer wg.Done()

			text := unavailableMarker
			if sem == nil || sem.Acquire(ctx, 1) == nil {
				if sem != nil {
					defer sem.Release(1)
				}
				callCtx, cancel := context.WithTimeout(ctx, gatherCallTimeout)
				out, err := t.run(callCtx)
				cancel()
				if err != nil {
					slog.Warn("Gather call failed",
						"agent", agentName, "task", t.key, "error", err)
				} else {
					text = out
				}
			}

			mu.Lock()
			results[t.key] = text
			mu.Unlock()
		}(task)
	}

	wg.Wait()
	return results
}

// degradedCount returns how many gathered values are unavailable.
func degradedCount(results map[string]string) int {
	n := 0
	for _, v := range results {
		if v == unavailableMarker {
			n++
		}
	}
	return n
}
