package story

import (
	"sort"
	"time"
)

// BeatRecord is one emitted beat, kept in the per-beat history.
type BeatRecord struct {
	StoryID   string
	ActNumber int
	Timeline  Timeline
	EmittedAt time.Time
}

// State is the persisted StoryState (spec §3): an arena of Story values
// keyed by story_id, four ordered pools of ids (one per timeline), a
// small active set of ids, and a beat history. Holding ids rather than
// Story pointers is the arena pattern called for in spec §9.
type State struct {
	SchemaVersion int `json:"schema_version"`

	Arena map[string]*Story `json:"arena"`

	// Pools holds pool-status story ids ordered by narrative weight,
	// highest first, one slice per timeline.
	Pools map[Timeline][]string `json:"pools"`

	// Active holds the id of the currently-progressing story per
	// timeline, at most one each (spec §4.6: "typically <= one per
	// timeline").
	Active map[Timeline]string `json:"active"`

	History []BeatRecord `json:"history"`
}

const currentSchemaVersion = 1

// New builds an empty StoryState.
func New() *State {
	return &State{
		SchemaVersion: currentSchemaVersion,
		Arena:         map[string]*Story{},
		Pools: map[Timeline][]string{
			TimelineDaily: nil, TimelineWeekly: nil,
			TimelineMonthly: nil, TimelineYearly: nil,
		},
		Active: map[Timeline]string{},
	}
}

// TotalPoolSize sums pool-status stories across every timeline. Pool
// seeding checks this, not the presence of active stories (spec §4.6:
// "the check is strictly pool size > 0").
func (s *State) TotalPoolSize() int {
	n := 0
	for _, ids := range s.Pools {
		n += len(ids)
	}
	return n
}

// Seed inserts freshly extracted candidate stories into their pools,
// sorted by descending narrative weight. Seeding is idempotent: calling
// Seed when TotalPoolSize() > 0 is a no-op regardless of active-story
// count (spec §4.6, testable property 5).
func (s *State) Seed(candidates []*Story) {
	if s.TotalPoolSize() > 0 {
		return
	}
	for _, c := range candidates {
		c.Status = StatusPool
		s.Arena[c.StoryID] = c
		s.Pools[c.Timeline] = append(s.Pools[c.Timeline], c.StoryID)
	}
	for tl := range s.Pools {
		ids := s.Pools[tl]
		sort.SliceStable(ids, func(i, j int) bool {
			return s.Arena[ids[i]].NarrativeWeight > s.Arena[ids[j]].NarrativeWeight
		})
		s.Pools[tl] = ids
	}
}

// Activate promotes the highest-weight pool story for a timeline to
// active, when that timeline has no active story and a quota still
// permits it (spec §4.6: "policy = highest narrative weight in the pool
// that has not reached its per-timeline quota"). beatsEmittedThisWindow
// is the caller-tracked count of beats already emitted for timeline
// within the current quota window. If the timeline already has an active
// story, that story is returned with true and nothing is promoted.
// Otherwise returns false if nothing could be activated.
func (s *State) Activate(timeline Timeline, beatsEmittedThisWindow, quota int) (*Story, bool) {
	if _, ok := s.Active[timeline]; ok {
		return s.Arena[s.Active[timeline]], true
	}
	if quota > 0 && beatsEmittedThisWindow >= quota {
		return nil, false
	}
	ids := s.Pools[timeline]
	if len(ids) == 0 {
		return nil, false
	}
	id := ids[0]
	s.Pools[timeline] = ids[1:]
	story := s.Arena[id]
	story.Status = StatusActive
	s.Active[timeline] = id
	return story, true
}

// ActiveStory returns the currently active story for a timeline, if any.
func (s *State) ActiveStory(timeline Timeline) (*Story, bool) {
	id, ok := s.Active[timeline]
	if !ok {
		return nil, false
	}
	return s.Arena[id], true
}

// AdvanceBeat emits the next beat of the timeline's active story,
// recording it to history and, once the story completes, clearing the
// active slot so a subsequent Activate call can promote another story
// (spec §4.6: no backward transition; a completed story is never
// revisited).
func (s *State) AdvanceBeat(timeline Timeline, now time.Time) (*Story, Act, bool) {
	id, ok := s.Active[timeline]
	if !ok {
		return nil, Act{}, false
	}
	story := s.Arena[id]
	act, ok := story.CurrentAct()
	if !ok {
		return nil, Act{}, false
	}
	story.Advance(now)
	s.History = append(s.History, BeatRecord{
		StoryID: story.StoryID, ActNumber: act.ActNumber,
		Timeline: timeline, EmittedAt: now,
	})
	if story.Status == StatusCompleted {
		delete(s.Active, timeline)
	}
	return story, act, true
}
