package skills

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds all registered skills and their enabled/disabled state
// and tick bookkeeping.
type Registry struct {
	mu          sync.Mutex
	order       []string
	skills      map[string]Skill
	enabled     map[string]bool
	lastTickUTC map[string]int64
	log         *slog.Logger
	now         func() int64
}

// NewRegistry builds an empty Registry. log may be nil, in which case
// slog.Default() is used.
func NewRegistry(log *slog.Logger, now func() int64) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		skills:      make(map[string]Skill),
		enabled:     make(map[string]bool),
		lastTickUTC: make(map[string]int64),
		log:         log,
		now:         now,
	}
}

// Register adds skill to the registry, enabled by default.
func (r *Registry) Register(skill Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := skill.Name()
	if _, exists := r.skills[name]; !exists {
		r.order = append(r.order, name)
	}
	r.skills[name] = skill
	r.enabled[name] = true
}

// InitAll initializes every registered skill. A skill whose Init fails
// is disabled rather than aborting the remaining skills.
func (r *Registry) InitAll(ctx context.Context) {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()

	for _, name := range names {
		r.mu.Lock()
		skill := r.skills[name]
		r.mu.Unlock()

		if err := skill.Init(ctx); err != nil {
			r.log.Error("skill init failed, disabling", "skill", name, "error", err)
			r.mu.Lock()
			r.enabled[name] = false
			r.mu.Unlock()
			continue
		}
		r.log.Info("skill initialized", "skill", name)
	}
}

// SetEnabled enables or disables a registered skill. No-op if name is
// not registered.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[name]; !ok {
		return
	}
	r.enabled[name] = enabled
}

// IsEnabled reports whether name is registered and enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled[name]
}

// HandleCommand routes a command to the named skill, erroring if the
// skill is missing or disabled.
func (r *Registry) HandleCommand(ctx context.Context, skillName, command string, payload []byte) ([]byte, error) {
	r.mu.Lock()
	skill, ok := r.skills[skillName]
	enabled := r.enabled[skillName]
	r.mu.Unlock()

	if !ok || !enabled {
		return nil, fmt.Errorf("skills: skill %q not found or not enabled", skillName)
	}
	return skill.Handle(ctx, command, payload)
}

// TickAll ticks every enabled skill that has never been ticked or whose
// interval has elapsed, returning the reports produced this cycle.
func (r *Registry) TickAll(ctx context.Context) []*Report {
	now := r.now()

	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()

	var reports []*Report
	for _, name := range names {
		r.mu.Lock()
		skill, ok := r.skills[name]
		enabled := r.enabled[name]
		last, ticked := r.lastTickUTC[name]
		r.mu.Unlock()
		if !ok || !enabled {
			continue
		}

		interval := int64(skill.TickIntervalSecs())
		if interval <= 0 {
			continue
		}
		if ticked && now-last < interval {
			continue
		}

		tickReports, err := skill.Tick(ctx)
		if err != nil {
			r.log.Warn("skill tick failed", "skill", name, "error", err)
		}
		r.mu.Lock()
		r.lastTickUTC[name] = now
		r.mu.Unlock()
		for _, report := range tickReports {
			if report != nil {
				reports = append(reports, report)
			}
		}
	}
	return reports
}

// ListSkills returns Info for every registered skill.
func (r *Registry) ListSkills() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		skill := r.skills[name]
		out = append(out, Info{
			Name:             name,
			Enabled:          r.enabled[name],
			Capabilities:     skill.Capabilities(),
			TickIntervalSecs: skill.TickIntervalSecs(),
			LastTickUnix:     r.lastTickUTC[name],
		})
	}
	return out
}

// SkillCount returns the number of registered skills.
func (r *Registry) SkillCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.skills)
}

// EnabledCount returns the number of currently enabled skills.
func (r *Registry) EnabledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.enabled {
		if v {
			n++
		}
	}
	return n
}

// ShutdownAll shuts down every registered skill, in reverse registration
// order, so a skill's dependencies (registered before it) are still
// live while it tears down.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		r.mu.Lock()
		skill := r.skills[names[i]]
		r.mu.Unlock()
		skill.Shutdown(ctx)
	}
}
