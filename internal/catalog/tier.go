package catalog

// Tier is the coarse scheduling priority class of an entity, derived from its
// composite coverage score. It is recomputable at any time and is never
// persisted as authoritative state.
type Tier string

const (
	TierCore     Tier = "core"
	TierExtended Tier = "extended"
	TierLongTail Tier = "long_tail"
)

// NeutralScore is assumed when the coverage provider has no score for an
// entity.
const NeutralScore = 0.5

// Thresholds holds the score cutoffs for tier classification.
type Thresholds struct {
	CoreMin     float64
	ExtendedMin float64
}

// DefaultThresholds classifies scores >= 0.75 as core and >= 0.40 as extended.
var DefaultThresholds = Thresholds{CoreMin: 0.75, ExtendedMin: 0.40}

// ClassifyScore maps a composite coverage score in [0,1] to a tier.
func ClassifyScore(score float64, t Thresholds) Tier {
	switch {
	case score >= t.CoreMin:
		return TierCore
	case score >= t.ExtendedMin:
		return TierExtended
	default:
		return TierLongTail
	}
}

// Rank orders tiers for scheduling: core before extended before long_tail.
func (t Tier) Rank() int {
	switch t {
	case TierCore:
		return 0
	case TierExtended:
		return 1
	default:
		return 2
	}
}
