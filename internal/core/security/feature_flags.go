package security

import (
	"context"
	"strings"
)

// FeatureFlagProvider provides feature flag evaluation.
type FeatureFlagProvider interface {
	// IsEnabled checks if feature is enabled for context
	IsEnabled(ctx context.Context, flag string) bool
}

// Feature flag names (constants for type safety)
const (
	FlagFileUploads = "file_uploads"
	FlagAIAnalysis  = "ai_analysis"
	FlagEventRelay  = "event_relay"
)

// StaticFlags is resolved once from configuration at startup and never mutated,
// so it needs no locking.
type StaticFlags struct {
	flags map[string]bool
}

// NewStaticFlags creates a flag provider from a name -> enabled map.
// Names are matched case-insensitively.
func NewStaticFlags(flags map[string]bool) *StaticFlags {
	normalized := make(map[string]bool, len(flags))
	for k, v := range flags {
		normalized[strings.ToLower(k)] = v
	}
	return &StaticFlags{flags: normalized}
}

func (f *StaticFlags) IsEnabled(_ context.Context, flag string) bool {
	return f.flags[strings.ToLower(flag)]
}

// Enabled lists the names of enabled flags, for startup logging.
func (f *StaticFlags) Enabled() []string {
	out := make([]string, 0, len(f.flags))
	for k, v := range f.flags {
		if v {
			out = append(out, k)
		}
	}
	return out
}

var _ FeatureFlagProvider = (*StaticFlags)(nil)
