package summary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the heuristic constants behind health scoring and the
// activity-sensitive cache TTL. The defaults are the shipped behavior;
// an optional YAML overlay can adjust individual knobs without a
// rebuild.
type Tuning struct {
	// Health score weights. Score = base + progress weight × progress
	// + completion weight × (completed/total project tasks), minus the
	// due-date and overdue penalties, clamped to [0,100].
	HealthBase             float64 `yaml:"health_base"`
	HealthProgressWeight   float64 `yaml:"health_progress_weight"`
	HealthCompletionWeight float64 `yaml:"health_completion_weight"`
	HealthPastDuePenalty   float64 `yaml:"health_past_due_penalty"`
	HealthDueSoonPenalty   float64 `yaml:"health_due_soon_penalty"`
	HealthDueSoonDays      int     `yaml:"health_due_soon_days"`
	HealthOverduePenalty   float64 `yaml:"health_overdue_penalty"`

	// Cache TTL policy: recent-message count over the last 24h picks a
	// multiplier applied to the base TTL. Busy workspaces get shorter
	// entries, quiet ones longer.
	TTLBusyThreshold int     `yaml:"ttl_busy_threshold"`
	TTLWarmThreshold int     `yaml:"ttl_warm_threshold"`
	TTLBusyFactor    float64 `yaml:"ttl_busy_factor"`
	TTLWarmFactor    float64 `yaml:"ttl_warm_factor"`
	TTLQuietFactor   float64 `yaml:"ttl_quiet_factor"`
}

// DefaultTuning returns the shipped heuristic constants.
func DefaultTuning() Tuning {
	return Tuning{
		HealthBase:             50,
		HealthProgressWeight:   0.3,
		HealthCompletionWeight: 30,
		HealthPastDuePenalty:   20,
		HealthDueSoonPenalty:   10,
		HealthDueSoonDays:      7,
		HealthOverduePenalty:   5,

		TTLBusyThreshold: 10,
		TTLWarmThreshold: 5,
		TTLBusyFactor:    0.5,
		TTLWarmFactor:    0.75,
		TTLQuietFactor:   1.5,
	}
}

// LoadTuning reads a YAML overlay on top of the defaults. A missing
// path returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	tn := DefaultTuning()
	if path == "" {
		return tn, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return tn, fmt.Errorf("reading tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &tn); err != nil {
		return tn, fmt.Errorf("parsing tuning file %s: %w", path, err)
	}
	return tn, nil
}
