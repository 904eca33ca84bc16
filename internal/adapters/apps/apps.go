// Package apps lists running applications so rule editing can suggest
// names. It never inspects or controls what the backend blocks.
package apps

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/xvierd/focus-cli/internal/ports"
)

// Lister implements ports.AppLister using gopsutil.
type Lister struct {
	processes func(ctx context.Context) ([]string, error)
}

// NewLister creates a lister backed by the OS process table.
func NewLister() *Lister {
	return &Lister{processes: processNames}
}

// Ensure Lister implements ports.AppLister.
var _ ports.AppLister = (*Lister)(nil)

// RunningApps returns the distinct process names, sorted case-insensitively.
func (l *Lister) RunningApps(ctx context.Context) ([]string, error) {
	names, err := l.processes(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(names), nil
}

// Suggest returns running apps matching query, best match first. An empty
// query returns every app.
func (l *Lister) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	names, err := l.RunningApps(ctx)
	if err != nil {
		return nil, err
	}
	return Match(query, names, limit), nil
}

// Match ranks candidates against query with fuzzy matching.
func Match(query string, candidates []string, limit int) []string {
	query = strings.TrimSpace(query)
	var out []string
	if query == "" {
		out = append(out, candidates...)
	} else {
		for _, m := range fuzzy.Find(query, candidates) {
			out = append(out, m.Str)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func processNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // process exited
		}
		names = append(names, name)
	}
	return names, nil
}

func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
