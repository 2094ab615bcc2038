// Package contextasm implements the Context Assembler (C9): for a chosen
// segment type, builds the retrieval query, retrieval where-clause, and
// template variables handed to the Generator.
package contextasm

import (
	"fmt"

	"broadcastengine/internal/corpus"
	"broadcastengine/internal/memory"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/scheduler"
	"broadcastengine/internal/story"
	"broadcastengine/internal/worldstate"
)

// Complexity is one step of the simple->moderate->complex->simple
// rotation (spec §4.9).
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

var complexityRotation = []Complexity{ComplexitySimple, ComplexityModerate, ComplexityComplex}

// NextComplexity advances the rotation by one step.
func NextComplexity(current Complexity) Complexity {
	for i, c := range complexityRotation {
		if c == current {
			return complexityRotation[(i+1)%len(complexityRotation)]
		}
	}
	return ComplexitySimple
}

// TemplateVars carries the per-segment data the Generator renders into
// its prompt template (spec §4.9).
type TemplateVars struct {
	DJName           string
	Hour             int
	Weather          worldstate.Weather
	ContinuityPhrase string
	RecentWeather    []worldstate.WeatherEvent
	StoryBeat        *story.Act
	StoryTitle       string
	RecentSummaries  []string
	SegmentType      scheduler.SegmentType
	Complexity       Complexity
}

// Assembled is the Assembler's output: a retrieval query, a where
// predicate, and template variables (spec §4.9).
type Assembled struct {
	RetrievalQuery string
	RetrievalWhere corpus.Predicate
	Vars           TemplateVars
}

// Assembler builds retrieval/prompt context for one segment.
type Assembler struct {
	RecentSubjectsWindow int
	FreshnessThreshold   float64
	ConfidenceFloor      corpus.ConfidenceTier
}

// New builds an Assembler with the configured thresholds.
func New(recentSubjectsWindow int, freshnessThreshold float64, confidenceFloor corpus.ConfidenceTier) *Assembler {
	return &Assembler{
		RecentSubjectsWindow: recentSubjectsWindow,
		FreshnessThreshold:   freshnessThreshold,
		ConfidenceFloor:      confidenceFloor,
	}
}

// Assemble implements spec §4.9 in full: it conjuncts the personality's
// base filter with freshness, tone, complexity, recent-subject exclusion,
// and an optional confidence floor, and fills in the template variables
// appropriate to segType.
func (a *Assembler) Assemble(
	segType scheduler.SegmentType,
	pers personality.Personality,
	hour int,
	ws worldstate.Snapshot,
	mem *memory.Ring,
	beat *story.Act,
	storyTitle string,
	complexity Complexity,
	weather personality.WeatherKind,
) Assembled {
	and := []corpus.Predicate{pers.BaseFilter()}
	and = append(and, corpus.Gte{Field: "freshness_score", Value: a.FreshnessThreshold})

	tones := pers.ToneForContext(weather, hour)
	and = append(and, personality.ToneFilter(tones))

	and = append(and, corpus.Eq{Field: "complexity_tier", Value: string(complexity)})

	if recent := recentSubjects(mem, a.RecentSubjectsWindow); len(recent) > 0 {
		and = append(and, corpus.NotIn{Field: "primary_subjects", Values: recent})
	}

	if a.ConfidenceFloor != "" {
		and = append(and, confidenceFloorPredicate(a.ConfidenceFloor))
	}

	continuity := mem.ContinuityForWeather(pers.Region, string(ws.Weather.Type))
	recentWeather := ws.HistoricalWeather
	if len(recentWeather) > 5 {
		recentWeather = recentWeather[len(recentWeather)-5:]
	}

	vars := TemplateVars{
		DJName:           pers.Name,
		Hour:             hour,
		Weather:          ws.Weather,
		ContinuityPhrase: continuity.TransitionPhrase,
		RecentWeather:    recentWeather,
		StoryBeat:        beat,
		StoryTitle:       storyTitle,
		RecentSummaries:  recentSummaries(mem, 3),
		SegmentType:      segType,
		Complexity:       complexity,
	}

	return Assembled{
		RetrievalQuery: queryFor(segType, beat, storyTitle),
		RetrievalWhere: corpus.And{Of: and},
		Vars:           vars,
	}
}

// Relax drops the final predicate of a where-clause, implementing the
// "any may be relaxed on an empty-result retry" rule of spec §4.9. It
// relaxes in reverse-priority order: confidence floor, then recent
// subjects, then complexity, then tone, then freshness, leaving the
// personality base filter untouched.
func Relax(where corpus.Predicate) (corpus.Predicate, bool) {
	and, ok := where.(corpus.And)
	if !ok || len(and.Of) <= 1 {
		return where, false
	}
	return corpus.And{Of: and.Of[:len(and.Of)-1]}, true
}

func recentSubjects(mem *memory.Ring, window int) []string {
	if window <= 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, seg := range mem.LastK(window) {
		for _, subj := range seg.SubjectsUsed {
			if !seen[subj] {
				seen[subj] = true
				out = append(out, subj)
			}
		}
	}
	return out
}

func recentSummaries(mem *memory.Ring, k int) []string {
	var out []string
	for _, seg := range mem.LastK(k) {
		out = append(out, seg.ScriptText)
	}
	return out
}

func confidenceFloorPredicate(floor corpus.ConfidenceTier) corpus.Predicate {
	order := map[corpus.ConfidenceTier]float64{
		corpus.ConfidenceLow: 0, corpus.ConfidenceMedium: 1, corpus.ConfidenceHigh: 2,
	}
	allowed := make([]string, 0, 3)
	for tier, rank := range order {
		if rank >= order[floor] {
			allowed = append(allowed, string(tier))
		}
	}
	return corpus.In{Field: "confidence_tier", Values: allowed}
}

func queryFor(segType scheduler.SegmentType, beat *story.Act, storyTitle string) string {
	switch segType {
	case scheduler.SegmentWeather:
		return "a weather report fitting the region's current conditions"
	case scheduler.SegmentNews:
		return "a notable recent event worth reporting as news"
	case scheduler.SegmentStory:
		if beat != nil {
			return fmt.Sprintf("the next development in %q: %s", storyTitle, beat.Summary)
		}
		return fmt.Sprintf("the next development in %q", storyTitle)
	case scheduler.SegmentTimeCheck:
		return "a brief time-check filler remark"
	default:
		return "local gossip or color commentary"
	}
}
