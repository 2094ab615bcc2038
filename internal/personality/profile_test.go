package personality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/corpus"
)

func TestBaseFilterAlwaysBoundsYear(t *testing.T) {
	p := Personality{YearDJ: 2102}
	and := p.BaseFilter().(corpus.And)
	require.Len(t, and.Of, 1)
	require.Equal(t, corpus.Lte{Field: "year", Value: 2102}, and.Of[0])
}

func TestBaseFilterAddsOptionalPredicatesWhenConfigured(t *testing.T) {
	p := Personality{
		YearDJ:                2102,
		RegionAllow:           []string{"appalachia"},
		ForbiddenContentTypes: []string{"propaganda"},
		ForbiddenFactions:     []string{"enclave"},
	}
	and := p.BaseFilter().(corpus.And)
	require.Len(t, and.Of, 4)
	require.Contains(t, and.Of, corpus.In{Field: "region", Values: []string{"appalachia"}})
	require.Contains(t, and.Of, corpus.NotIn{Field: "content_type", Values: []string{"propaganda"}})
	require.Contains(t, and.Of, corpus.NotIn{Field: "primary_subjects", Values: []string{"enclave"}})
}

func TestToneForContextSunnyMorning(t *testing.T) {
	p := Personality{}
	tones := p.ToneForContext(WeatherSunny, 8)
	require.ElementsMatch(t, []corpus.EmotionalTone{corpus.ToneHopeful, corpus.ToneNeutral}, tones)
}

func TestToneForContextRadStormNight(t *testing.T) {
	p := Personality{}
	tones := p.ToneForContext(WeatherRadStorm, 23)
	require.ElementsMatch(t, []corpus.EmotionalTone{corpus.ToneTense, corpus.ToneTragic, corpus.ToneMysterious}, tones)
}

func TestToneForContextFog(t *testing.T) {
	p := Personality{}
	tones := p.ToneForContext(WeatherFog, 14)
	require.ElementsMatch(t, []corpus.EmotionalTone{corpus.ToneMysterious, corpus.ToneNeutral}, tones)
}

func TestToneForContextDefaultsToNeutralWithoutPersonalityOverride(t *testing.T) {
	p := Personality{}
	tones := p.ToneForContext(WeatherClear, 14)
	require.Equal(t, []corpus.EmotionalTone{corpus.ToneNeutral}, tones)
}

func TestToneForContextHonorsPersonalityDefaultMood(t *testing.T) {
	p := Personality{DefaultMood: []corpus.EmotionalTone{corpus.ToneTragic}}
	tones := p.ToneForContext(WeatherClear, 14)
	require.Equal(t, []corpus.EmotionalTone{corpus.ToneTragic}, tones)
}

func TestToneFilterBuildsInPredicate(t *testing.T) {
	pred := ToneFilter([]corpus.EmotionalTone{corpus.ToneHopeful, corpus.ToneNeutral})
	in, ok := pred.(corpus.In)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"hopeful", "neutral"}, in.Values)
}
