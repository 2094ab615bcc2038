package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"broadcastengine/internal/config"
)

// SegmentRecord is the output-stream shape produced for each accepted
// segment (spec §6).
type SegmentRecord struct {
	SegmentIndex   int64           `json:"segment_index"`
	Hour           int             `json:"hour"`
	Type           string          `json:"type"`
	ScriptText     string          `json:"script_text"`
	ChunkIDsUsed   []string        `json:"chunk_ids_used"`
	Validation     ValidationRecord `json:"validation"`
	StoryRef       string          `json:"story_ref,omitempty"`
	TimingMS       int64           `json:"timing_ms"`
}

// ValidationRecord is the validation summary embedded in SegmentRecord.
type ValidationRecord struct {
	Mode   string   `json:"mode"`
	Score  float64  `json:"score,omitempty"`
	Issues []string `json:"issues"`
	Flags  []string `json:"flags"`
}

// SegmentPublisher publishes accepted segments to the output stream
// (spec §6), grounded on the teacher's KafkaCommitPublisher wiring.
type SegmentPublisher struct {
	writer *kafka.Writer
}

// NewSegmentPublisher builds a publisher when Kafka is enabled; it
// returns (nil, nil) when disabled so callers can treat a nil publisher
// as a no-op (mirrors the teacher's nil-receiver Publish/Close guards).
func NewSegmentPublisher(cfg config.KafkaConfig) (*SegmentPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.SegmentTopic,
		Balancer: &kafka.LeastBytes{},
	}
	return &SegmentPublisher{writer: writer}, nil
}

// Publish writes rec to the segment topic.
func (p *SegmentPublisher) Publish(ctx context.Context, rec SegmentRecord) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	msg := kafka.Message{Value: payload, Time: time.Now()}
	return p.writer.WriteMessages(ctx, msg)
}

// Close shuts down the writer.
func (p *SegmentPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
