// Package corpus implements the Knowledge Store (C1): a vector-corpus
// wrapper exposing semantic search plus metadata filtering, and the
// Chunk data model shared by the rest of the engine.
package corpus

import "time"

// ConfidenceTier enumerates a chunk's sourcing confidence.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// EmotionalTone enumerates the mood a chunk carries.
type EmotionalTone string

const (
	ToneHopeful   EmotionalTone = "hopeful"
	ToneTragic    EmotionalTone = "tragic"
	ToneMysterious EmotionalTone = "mysterious"
	ToneComedic   EmotionalTone = "comedic"
	ToneTense     EmotionalTone = "tense"
	ToneNeutral   EmotionalTone = "neutral"
)

// ComplexityTier enumerates a chunk's narrative complexity.
type ComplexityTier string

const (
	ComplexitySimple   ComplexityTier = "simple"
	ComplexityModerate ComplexityTier = "moderate"
	ComplexityComplex  ComplexityTier = "complex"
)

// ControversyLevel enumerates a chunk's sensitivity.
type ControversyLevel string

const (
	ControversyNeutral      ControversyLevel = "neutral"
	ControversySensitive    ControversyLevel = "sensitive"
	ControversyControversial ControversyLevel = "controversial"
)

// Metadata is the flat per-chunk metadata mapping from spec §3. List-typed
// semantic fields (PrimarySubjects, Themes) are flattened to indexed keys
// (subject_0..subject_4, theme_0..theme_2) only at the storage boundary
// (see qdrant.go); in-process code uses the slice fields directly.
type Metadata struct {
	Year              int
	Region            string
	ContentType       string
	ConfidenceTier    ConfidenceTier
	EmotionalTone     EmotionalTone
	ComplexityTier    ComplexityTier
	PrimarySubjects   []string // <= 5
	Themes            []string // <= 3
	ControversyLevel  ControversyLevel
	LastBroadcastTime *time.Time
	BroadcastCount    int
	FreshnessScore    float64 // [0,1]
}

// Chunk is the unit of retrieved lore.
type Chunk struct {
	ID       string
	Text     string
	Metadata Metadata
}

// freshnessWindow is the recovery horizon from spec §3/§4.2: a chunk
// unused for this long is fully fresh again.
const freshnessWindow = 168 * time.Hour

// FreshScore implements spec §4.2's contract:
// fresh_score(last_used, now) = min(1, max(0, (now-last_used)/168h));
// a chunk that was never used scores 1.
func FreshScore(lastUsed *time.Time, now time.Time) float64 {
	if lastUsed == nil {
		return 1
	}
	delta := now.Sub(*lastUsed)
	score := float64(delta) / float64(freshnessWindow)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
