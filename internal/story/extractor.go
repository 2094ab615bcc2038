package story

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"broadcastengine/internal/corpus"
	"broadcastengine/internal/engineerr"
	"broadcastengine/internal/observability"
)

// eventQueries are the semantic queries C7 issues against the corpus to
// surface event/quest-like content (spec §4.7 step 1). Quest-typed
// metadata may be absent entirely (spec §9's open question); extraction
// therefore always falls back to semantic match plus title pattern
// rather than depending on content_type=quest.
var eventQueries = []string{
	"a conflict or dispute between factions",
	"a quest, mission, or expedition",
	"a disaster, attack, or catastrophe",
	"a discovery, negotiation, or turning point",
}

// conflictCues are lower-cased substrings that raise narrative_weight
// when present in a chunk's body text (spec §4.7 step 3: "conflict cues").
var conflictCues = []string{"attack", "war", "betray", "raid", "ambush", "siege", "feud", "revolt", "battle"}

// scopeCues raise weight for wide-reaching stakes.
var scopeCues = []string{"settlement", "region", "territory", "nation", "commonwealth", "everyone", "entire"}

// Extractor implements C7: clusters retrieved chunks into candidate
// Story objects with a weighted, adaptively-sized act structure.
type Extractor struct {
	store     corpus.Store
	thresholds struct{ weeklyMin, monthlyMin, yearlyMin float64 }
}

// NewExtractor builds an Extractor against store using the configured
// timeline weight thresholds (spec §4.7's tunable cutoffs).
func NewExtractor(store corpus.Store, weeklyMin, monthlyMin, yearlyMin float64) *Extractor {
	e := &Extractor{store: store}
	e.thresholds.weeklyMin = weeklyMin
	e.thresholds.monthlyMin = monthlyMin
	e.thresholds.yearlyMin = yearlyMin
	return e
}

// Extract runs the §4.7 pipeline: retrieve candidate chunks under the
// personality's base filter, cluster them by entity/title, score
// narrative weight, assign a timeline, and build an adaptively-sized act
// list. Filter relaxation: if the first pass (baseFilter) yields nothing,
// the caller should retry with a relaxed filter; Extract itself performs
// one internal relaxation (dropping baseFilter entirely) before
// returning zero stories, matching §7's PoolSeedingFailure path.
func (e *Extractor) Extract(ctx context.Context, baseFilter corpus.Predicate, maxPerQuery int) ([]*Story, error) {
	chunks, err := e.retrieveCandidates(ctx, baseFilter, maxPerQuery)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		chunks, err = e.retrieveCandidates(ctx, nil, maxPerQuery)
		if err != nil {
			return nil, err
		}
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	clusters := clusterByEntity(chunks)
	stories := make([]*Story, 0, len(clusters))
	for title, members := range clusters {
		weight := narrativeWeight(members)
		timeline := TimelineForWeight(weight, e.thresholds.weeklyMin, e.thresholds.monthlyMin, e.thresholds.yearlyMin)
		acts := buildActs(members)
		stories = append(stories, &Story{
			StoryID:         uuid.NewString(),
			Title:           title,
			Timeline:        timeline,
			NarrativeWeight: weight,
			Acts:            acts,
			Status:          StatusPool,
		})
	}
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].NarrativeWeight > stories[j].NarrativeWeight
	})
	return stories, nil
}

func (e *Extractor) retrieveCandidates(ctx context.Context, where corpus.Predicate, maxPerQuery int) ([]corpus.Chunk, error) {
	seen := map[string]bool{}
	var out []corpus.Chunk
	for _, q := range eventQueries {
		hits, err := e.store.Search(ctx, q, where, maxPerQuery)
		if err != nil {
			if _, ok := engineerr.KindOf(err); ok {
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("query", q).Msg("extractor_retrieval_failed_soft")
				continue // soft failure per spec §4.1: log and continue
			}
			return nil, err
		}
		for _, h := range hits {
			if seen[h.Chunk.ID] {
				continue
			}
			seen[h.Chunk.ID] = true
			if h.Chunk.Metadata.ContentType == "quest" {
				observability.LoggerFromContext(ctx).Debug().Str("chunk_id", h.Chunk.ID).Msg("extractor_quest_metadata_present")
			}
			out = append(out, h.Chunk)
		}
	}
	return out, nil
}

// clusterByEntity groups chunks sharing a primary subject, falling back
// to a title derived from the first few words of the body when a chunk
// carries no subjects (the "title pattern" fallback of spec §4.7 step 1).
func clusterByEntity(chunks []corpus.Chunk) map[string][]corpus.Chunk {
	clusters := map[string][]corpus.Chunk{}
	for _, c := range chunks {
		key := ""
		if len(c.Metadata.PrimarySubjects) > 0 {
			key = c.Metadata.PrimarySubjects[0]
		} else {
			key = titleFromText(c.Text)
		}
		if key == "" {
			key = "untitled-" + c.ID
		}
		clusters[key] = append(clusters[key], c)
	}
	return clusters
}

func titleFromText(text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

// narrativeWeight scores a cluster 0-10 by combining conflict cues,
// scope/stakes cues, and emotional tone (spec §4.7 step 3).
func narrativeWeight(members []corpus.Chunk) float64 {
	var score float64
	for _, c := range members {
		lower := strings.ToLower(c.Text)
		for _, cue := range conflictCues {
			if strings.Contains(lower, cue) {
				score += 1.2
			}
		}
		for _, cue := range scopeCues {
			if strings.Contains(lower, cue) {
				score += 0.8
			}
		}
		switch c.Metadata.EmotionalTone {
		case corpus.ToneTragic, corpus.ToneTense:
			score += 1.0
		case corpus.ToneMysterious:
			score += 0.6
		}
	}
	// Larger clusters read as more consequential; cap contribution.
	clusterBonus := float64(len(members))
	if clusterBonus > 3 {
		clusterBonus = 3
	}
	score += clusterBonus
	if score > 10 {
		score = 10
	}
	return score
}

// buildActs adapts act count to cluster size per spec §3 and distributes
// act types across a canonical dramatic arc, truncated/expanded to fit.
func buildActs(members []corpus.Chunk) []Act {
	n := ActCountForChunks(len(members))
	archetype := []ActType{ActSetup, ActRising, ActClimax, ActFalling, ActResolution}
	acts := make([]Act, 0, n)
	for i := 0; i < n; i++ {
		var at ActType
		switch {
		case n == 1:
			at = ActClimax
		case i < len(archetype):
			at = archetype[i*len(archetype)/n]
		default:
			at = ActResolution
		}
		chunkIDs, summary, tone := "", "", ""
		if i < len(members) {
			chunkIDs = members[i].ID
			summary = titleFromText(members[i].Text)
			tone = string(members[i].Metadata.EmotionalTone)
		} else if len(members) > 0 {
			m := members[len(members)-1]
			chunkIDs, summary, tone = m.ID, titleFromText(m.Text), string(m.Metadata.EmotionalTone)
		}
		var ids []string
		if chunkIDs != "" {
			ids = []string{chunkIDs}
		}
		acts = append(acts, Act{
			ActNumber:      i + 1,
			ActType:        at,
			Summary:        summary,
			SourceChunkIDs: ids,
			ConflictLevel:  narrativeWeight(members) / 10,
			Tone:           tone,
		})
	}
	return acts
}
