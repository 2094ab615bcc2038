// Package personality implements the Personality Profile (C3): pure,
// read-only-for-the-run character data plus the retrieval filter and mood
// map derived from it.
package personality

import (
	"broadcastengine/internal/corpus"
)

// Personality is read-only within a run (spec §3/§5). Unknown YAML/JSON
// fields are rejected by the loader (see Load), and defaults are
// centralized here rather than scattered across call sites (spec §9).
type Personality struct {
	Name   string `yaml:"name" json:"name"`
	YearDJ int    `yaml:"year_dj" json:"year_dj"`
	Region string `yaml:"region" json:"region"`

	ForbiddenFactions    []string `yaml:"forbidden_factions" json:"forbidden_factions"`
	ForbiddenContentTypes []string `yaml:"forbidden_content_types" json:"forbidden_content_types"`
	RegionAllow          []string `yaml:"region_allow" json:"region_allow"`

	Catchphrases []string `yaml:"catchphrases" json:"catchphrases"`
	FillerWords  []string `yaml:"filler_words" json:"filler_words"`
	Taboo        []string `yaml:"taboo" json:"taboo"`

	// AnachronismTerms is the categorised blacklist the rule validator's
	// anachronism check runs against (spec §4.11 mode 1): terms grouped
	// under "technology_critical", "technology_minor",
	// "cultural_references", and "modern_slang". Category name decides
	// severity (see validator.CategorySeverity); an unrecognised category
	// name defaults to a warning.
	AnachronismTerms map[string][]string `yaml:"anachronism_terms" json:"anachronism_terms"`

	// DefaultMood is the fallback tone set used when no weather/hour rule
	// in ToneForContext matches.
	DefaultMood []corpus.EmotionalTone `yaml:"default_mood" json:"default_mood"`
}

// BaseFilter builds the temporal/spatial retrieval filter described in
// spec §4.3: year <= Y_dj, region within RegionAllow (when set), and the
// forbidden factions/content types excluded.
func (p Personality) BaseFilter() corpus.Predicate {
	and := []corpus.Predicate{
		corpus.Lte{Field: "year", Value: float64(p.YearDJ)},
	}
	if len(p.RegionAllow) > 0 {
		and = append(and, corpus.In{Field: "region", Values: p.RegionAllow})
	}
	if len(p.ForbiddenContentTypes) > 0 {
		and = append(and, corpus.NotIn{Field: "content_type", Values: p.ForbiddenContentTypes})
	}
	if len(p.ForbiddenFactions) > 0 {
		and = append(and, corpus.NotIn{Field: "primary_subjects", Values: p.ForbiddenFactions})
	}
	return corpus.And{Of: and}
}

// WeatherKind enumerates the coarse weather buckets ToneForContext keys
// its mood map on.
type WeatherKind string

const (
	WeatherSunny   WeatherKind = "sunny"
	WeatherRadStorm WeatherKind = "rad_storm"
	WeatherFog     WeatherKind = "fog"
	WeatherRainy   WeatherKind = "rainy"
	WeatherClear   WeatherKind = "clear"
)

// ToneForContext returns the acceptable emotional_tone values for the
// given weather/hour combination, per the enumerated mood map in spec
// §4.3: sunny-morning -> {hopeful, neutral}; rad-storm-night ->
// {tense, tragic, mysterious}; fog -> {mysterious, neutral};
// default -> {neutral} (or the personality's DefaultMood, if set).
func (p Personality) ToneForContext(weather WeatherKind, hour int) []corpus.EmotionalTone {
	isMorning := hour >= 5 && hour < 12
	isNight := hour >= 20 || hour < 5

	switch {
	case weather == WeatherSunny && isMorning:
		return []corpus.EmotionalTone{corpus.ToneHopeful, corpus.ToneNeutral}
	case weather == WeatherRadStorm && isNight:
		return []corpus.EmotionalTone{corpus.ToneTense, corpus.ToneTragic, corpus.ToneMysterious}
	case weather == WeatherFog:
		return []corpus.EmotionalTone{corpus.ToneMysterious, corpus.ToneNeutral}
	default:
		if len(p.DefaultMood) > 0 {
			return p.DefaultMood
		}
		return []corpus.EmotionalTone{corpus.ToneNeutral}
	}
}

// ToneFilter converts ToneForContext's result into a Predicate for
// Store.Search's where-clause.
func ToneFilter(tones []corpus.EmotionalTone) corpus.Predicate {
	vals := make([]string, len(tones))
	for i, t := range tones {
		vals[i] = string(t)
	}
	return corpus.In{Field: "emotional_tone", Values: vals}
}
