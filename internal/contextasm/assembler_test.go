package contextasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"broadcastengine/internal/corpus"
	"broadcastengine/internal/memory"
	"broadcastengine/internal/personality"
	"broadcastengine/internal/scheduler"
	"broadcastengine/internal/worldstate"
)

func TestNextComplexityRotates(t *testing.T) {
	require.Equal(t, ComplexityModerate, NextComplexity(ComplexitySimple))
	require.Equal(t, ComplexityComplex, NextComplexity(ComplexityModerate))
	require.Equal(t, ComplexitySimple, NextComplexity(ComplexityComplex))
	require.Equal(t, ComplexitySimple, NextComplexity(Complexity("unknown")))
}

func TestAssembleBuildsConjunctiveFilter(t *testing.T) {
	a := New(5, 0.3, corpus.ConfidenceMedium)
	pers := personality.Personality{Name: "Deejay", YearDJ: 2102, Region: "appalachia"}
	mem := memory.New(10)
	ws := worldstate.Snapshot{Weather: worldstate.Weather{Type: "clear"}}

	out := a.Assemble(scheduler.SegmentGossip, pers, 14, ws, mem, nil, "", ComplexitySimple, personality.WeatherClear)

	and, ok := out.RetrievalWhere.(corpus.And)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(and.Of), 4, "base filter + freshness + tone + complexity at minimum")
	require.Equal(t, out.Vars.DJName, "Deejay")
	require.Equal(t, ComplexitySimple, out.Vars.Complexity)
}

func TestRelaxDropsLastPredicate(t *testing.T) {
	where := corpus.And{Of: []corpus.Predicate{
		corpus.Eq{Field: "a", Value: "1"},
		corpus.Eq{Field: "b", Value: "2"},
	}}
	relaxed, ok := Relax(where)
	require.True(t, ok)
	and := relaxed.(corpus.And)
	require.Len(t, and.Of, 1)

	_, ok = Relax(and)
	require.False(t, ok, "a single-predicate And cannot relax further")
}

func TestRecentSubjectsExcludesPriorSubjects(t *testing.T) {
	mem := memory.New(10)
	mem.Record(memory.RecentSegment{SubjectsUsed: []string{"brotherhood"}})

	a := New(5, 0, "")
	pers := personality.Personality{YearDJ: 2102}
	ws := worldstate.Snapshot{}

	out := a.Assemble(scheduler.SegmentGossip, pers, 9, ws, mem, nil, "", ComplexitySimple, personality.WeatherClear)
	and := out.RetrievalWhere.(corpus.And)

	found := false
	for _, p := range and.Of {
		if notIn, ok := p.(corpus.NotIn); ok && notIn.Field == "primary_subjects" {
			require.Contains(t, notIn.Values, "brotherhood")
			found = true
		}
	}
	require.True(t, found, "expected a primary_subjects NotIn predicate")
}
