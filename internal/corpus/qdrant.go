package corpus

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"broadcastengine/internal/engineerr"
)

// payloadOriginalID mirrors the teacher's PAYLOAD_ID_FIELD convention:
// Qdrant only accepts UUID/uint64 point IDs, so the chunk's real ID is
// carried in the payload and recovered on read.
const payloadOriginalID = "_original_id"

// QdrantStore is the Knowledge Store (C1) backed by Qdrant's vector search,
// grounded on internal/persistence/databases/qdrant_vector.go from the
// teacher, generalized from a flat map[string]string filter to the
// Predicate tree spec §4.1 requires.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
	embedder   Embedder
}

// NewQdrantStore connects to Qdrant and ensures the configured collection
// exists, creating it with the requested vector size/metric if absent.
func NewQdrantStore(dsn, collection string, dimensions int, metric string, embedder Embedder) (*QdrantStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("corpus: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("corpus: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("corpus: invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("corpus: create qdrant client: %w", err)
	}
	s := &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
		embedder:   embedder,
	}
	if err := s.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("corpus: ensure collection: %w", err)
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch s.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if s.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: distance,
		}),
	})
}

// pointID computes Qdrant's required UUID point identity for a chunk ID.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert indexes a chunk's vector and flattened metadata payload.
func (s *QdrantStore) Upsert(ctx context.Context, c Chunk, vector []float32) error {
	uid := pointID(c.ID)
	payload := flattenMetadata(c.Metadata)
	if uid != c.ID {
		payload[payloadOriginalID] = c.ID
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(uid),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payload),
	}}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: s.collection, Points: points})
	return err
}

// Search implements corpus.Store. When an Embedder is configured the query
// text is embedded and a vector similarity search runs with the compiled
// predicate as a server-side filter; without an embedder, Search returns
// engineerr.RetrievalError so the Context Assembler's soft-failure path
// (§4.1: empty result set, warn, continue) takes over.
func (s *QdrantStore) Search(ctx context.Context, queryText string, where Predicate, nResults int) ([]Scored, error) {
	if s.embedder == nil {
		return nil, engineerr.RetrievalError(fmt.Errorf("corpus: no embedder configured"))
	}
	if nResults <= 0 {
		nResults = 10
	}
	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, engineerr.RetrievalError(err)
	}
	filter := compileFilter(where)
	limit := uint64(nResults)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, engineerr.RetrievalError(err)
	}
	out := make([]Scored, 0, len(hits))
	for _, h := range hits {
		chunk, ok := unflattenHit(h)
		if !ok {
			continue
		}
		out = append(out, Scored{Chunk: chunk, Score: float64(h.Score)})
	}
	return out, nil
}

// BatchUpdateMetadata is used exclusively by the Freshness Tracker's
// batched mark-used/decay operations (spec §4.2).
func (s *QdrantStore) BatchUpdateMetadata(ctx context.Context, updates map[string]Metadata) error {
	for id, md := range updates {
		uid := pointID(id)
		payload := flattenMetadata(md)
		if uid != id {
			payload[payloadOriginalID] = id
		}
		if _, err := s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: s.collection,
			Payload:        qdrant.NewValueMap(payload),
			PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDUUID(uid)),
		}); err != nil {
			return fmt.Errorf("corpus: batch update metadata for %s: %w", id, err)
		}
	}
	return nil
}

func (s *QdrantStore) Close() error { return s.client.Close() }

// compileFilter translates a Predicate tree into Qdrant's native filter
// representation, generalizing the teacher's flat qdrant.NewMatch usage to
// the $gte/$lte/$in/$and/$or operators spec §4.1 enumerates.
func compileFilter(p Predicate) *qdrant.Filter {
	if p == nil {
		return nil
	}
	cond := compileCondition(p)
	if cond == nil {
		return nil
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{cond}}
}

func compileCondition(p Predicate) *qdrant.Condition {
	switch v := p.(type) {
	case Eq:
		return qdrant.NewMatch(v.Field, v.Value)
	case Gte:
		val := v.Value
		return qdrant.NewRange(v.Field, &qdrant.Range{Gte: &val})
	case Lte:
		val := v.Value
		return qdrant.NewRange(v.Field, &qdrant.Range{Lte: &val})
	case In:
		return qdrant.NewMatchKeywords(v.Field, v.Values...)
	case NotIn:
		inner := qdrant.NewMatchKeywords(v.Field, v.Values...)
		return qdrant.NewFilterAsCondition(&qdrant.Filter{MustNot: []*qdrant.Condition{inner}})
	case And:
		conds := make([]*qdrant.Condition, 0, len(v.Of))
		for _, c := range v.Of {
			if cc := compileCondition(c); cc != nil {
				conds = append(conds, cc)
			}
		}
		return qdrant.NewFilterAsCondition(&qdrant.Filter{Must: conds})
	case Or:
		conds := make([]*qdrant.Condition, 0, len(v.Of))
		for _, c := range v.Of {
			if cc := compileCondition(c); cc != nil {
				conds = append(conds, cc)
			}
		}
		return qdrant.NewFilterAsCondition(&qdrant.Filter{Should: conds})
	default:
		return nil
	}
}

const maxSubjects = 5
const maxThemes = 3

func flattenMetadata(m Metadata) map[string]any {
	out := map[string]any{
		"year":              m.Year,
		"region":            m.Region,
		"content_type":      m.ContentType,
		"confidence_tier":   string(m.ConfidenceTier),
		"emotional_tone":    string(m.EmotionalTone),
		"complexity_tier":   string(m.ComplexityTier),
		"controversy_level": string(m.ControversyLevel),
		"broadcast_count":   m.BroadcastCount,
		"freshness_score":   m.FreshnessScore,
	}
	if m.LastBroadcastTime != nil {
		out["last_broadcast_time"] = m.LastBroadcastTime.Format(time.RFC3339)
	}
	for i := 0; i < maxSubjects; i++ {
		key := fmt.Sprintf("subject_%d", i)
		if i < len(m.PrimarySubjects) {
			out[key] = m.PrimarySubjects[i]
		}
	}
	for i := 0; i < maxThemes; i++ {
		key := fmt.Sprintf("theme_%d", i)
		if i < len(m.Themes) {
			out[key] = m.Themes[i]
		}
	}
	return out
}

func unflattenHit(h *qdrant.ScoredPoint) (Chunk, bool) {
	if h.Payload == nil {
		return Chunk{}, false
	}
	id := h.Id.GetUuid()
	md := Metadata{}
	for k, v := range h.Payload {
		switch k {
		case payloadOriginalID:
			id = v.GetStringValue()
		case "year":
			md.Year = int(v.GetIntegerValue())
		case "region":
			md.Region = v.GetStringValue()
		case "content_type":
			md.ContentType = v.GetStringValue()
		case "confidence_tier":
			md.ConfidenceTier = ConfidenceTier(v.GetStringValue())
		case "emotional_tone":
			md.EmotionalTone = EmotionalTone(v.GetStringValue())
		case "complexity_tier":
			md.ComplexityTier = ComplexityTier(v.GetStringValue())
		case "controversy_level":
			md.ControversyLevel = ControversyLevel(v.GetStringValue())
		case "broadcast_count":
			md.BroadcastCount = int(v.GetIntegerValue())
		case "freshness_score":
			md.FreshnessScore = v.GetDoubleValue()
		case "last_broadcast_time":
			if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
				md.LastBroadcastTime = &t
			}
		default:
			if strings.HasPrefix(k, "subject_") {
				md.PrimarySubjects = append(md.PrimarySubjects, v.GetStringValue())
			} else if strings.HasPrefix(k, "theme_") {
				md.Themes = append(md.Themes, v.GetStringValue())
			}
		}
	}
	text := ""
	if tv, ok := h.Payload["text"]; ok {
		text = tv.GetStringValue()
	}
	return Chunk{ID: id, Text: text, Metadata: md}, true
}
