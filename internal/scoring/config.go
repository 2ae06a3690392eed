package scoring

// Subscription tier names with engine-level presets.
const (
	TierStarter      = "starter"
	TierProfessional = "professional"
	TierEnterprise   = "enterprise"
)

// EngineConfig is the fully-resolved scoring configuration handed to the
// orchestrator at call time. It is an explicit immutable value: there is no
// module-level mutable default.
type EngineConfig struct {
	Weights SignalWeights `json:"weights"`

	// EnableAthleticTransfer gates the athletic-transfer contribution inside
	// skills alignment.
	EnableAthleticTransfer bool `json:"enable_athletic_transfer"`

	// EnableScheduleSignals gates the schedule-aware temporal fit signal.
	// When disabled the composite substitutes the neutral default for it.
	EnableScheduleSignals bool `json:"enable_schedule_signals"`

	// MaxResults caps how many matches a batch query returns. Zero means no
	// tier-imposed cap.
	MaxResults int `json:"max_results"`
}

// TenantOverrides carries a tenant's partial configuration. Zero-valued
// fields transparently default to the layer beneath.
type TenantOverrides struct {
	Weights    SignalWeights `json:"weights"`
	MaxResults int           `json:"max_results"`
}

// DefaultConfig returns the platform default engine configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Weights:                DefaultWeights(),
		EnableAthleticTransfer: true,
		EnableScheduleSignals:  true,
	}
}

// ResolveConfig layers default weights, subscription-tier presets, and
// tenant-specific overrides into one engine configuration. Weight sets merge
// key by key rather than being replaced wholesale, so each layer only states
// what it changes.
//
// An unknown tier name resolves to the default configuration. When the merged
// weights fail validation the tenant override layer is discarded and the
// tier-level weights are kept: the engine never runs with an unbalanced set
// and never silently renormalizes one.
func ResolveConfig(tier string, overrides *TenantOverrides) EngineConfig {
	config := DefaultConfig()

	switch tier {
	case TierStarter:
		// The starter tier runs without the athletic-transfer and
		// schedule-aware signals and caps result lists.
		config.EnableAthleticTransfer = false
		config.EnableScheduleSignals = false
		config.MaxResults = 10
	case TierProfessional:
		config.MaxResults = 50
	case TierEnterprise, "":
		// Full feature set, no cap.
	default:
		// Unknown tier: keep defaults.
	}

	if overrides == nil {
		return config
	}

	merged := MergeWeights(config.Weights, overrides.Weights)
	if ValidateWeights(merged) {
		config.Weights = merged
	}
	if overrides.MaxResults > 0 {
		config.MaxResults = overrides.MaxResults
	}
	return config
}
