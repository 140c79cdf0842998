package engine

// TierBand maps a minimum final score to a tier name. Bands are evaluated
// highest first; the first band the score meets wins.
type TierBand struct {
	MinScore int    `yaml:"minScore" json:"minScore"`
	Tier     string `yaml:"tier" json:"tier"`
}

// Scoring is a named, swappable scoring scheme for quiz sessions. Award is
// granted per correct answer; TimeBonus adds extra points per second left on
// the question timer at the moment of answering. Tier thresholds depend on
// the maximum achievable score under the scheme, so the two always travel
// together.
type Scoring struct {
	Name       string     `yaml:"name" json:"name"`
	Award      int        `yaml:"award" json:"award"`
	TimeBonus  int        `yaml:"timeBonus" json:"timeBonus"`
	Bands      []TierBand `yaml:"bands" json:"bands"`
	LowestTier string     `yaml:"lowestTier" json:"lowestTier"`
}

// FlatScoring is the production scheme: a flat 10 points per correct answer.
// Tier names are stored verbatim in result records, so they stay in the
// product's original Korean.
func FlatScoring() Scoring {
	return Scoring{
		Name:  "flat",
		Award: 10,
		Bands: []TierBand{
			{MinScore: 100, Tier: "멘사"},
			{MinScore: 90, Tier: "수재"},
			{MinScore: 60, Tier: "우등생"},
			{MinScore: 40, Tier: "모범생"},
			{MinScore: 20, Tier: "평범"},
		},
		LowestTier: "노력필요",
	}
}

// TimeBonusScoring awards 10 points plus 2 per remaining second, with bands
// widened to match the higher score ceiling.
func TimeBonusScoring() Scoring {
	return Scoring{
		Name:      "time-bonus",
		Award:     10,
		TimeBonus: 2,
		Bands: []TierBand{
			{MinScore: 180, Tier: "멘사"},
			{MinScore: 140, Tier: "수재"},
			{MinScore: 100, Tier: "우등생"},
			{MinScore: 60, Tier: "모범생"},
			{MinScore: 30, Tier: "평범"},
		},
		LowestTier: "노력필요",
	}
}

// AwardFor computes the points for a correct answer given the seconds left on
// the question timer.
func (s Scoring) AwardFor(remaining int) int {
	return s.Award + s.TimeBonus*remaining
}

// TierFor maps a final score to its tier. A score below every band maps to
// the lowest tier.
func (s Scoring) TierFor(score int) string {
	for _, band := range s.Bands {
		if score >= band.MinScore {
			return band.Tier
		}
	}
	return s.LowestTier
}
