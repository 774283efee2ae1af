package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/buoy-data-etl/internal/config"
	"github.com/couchcryptid/buoy-data-etl/internal/domain"
)

// Writer produces observation messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes every observation of a decoded file in a single
// WriteMessages call. Messages are keyed by observation ID and hashed to
// partitions: a re-published row lands on the same partition as its earlier
// copy, but rows of one station are spread across partitions and carry no
// ordering guarantee. Consumers order by obs_time.
func (w *Writer) LoadBatch(ctx context.Context, fb domain.FileBatch) error {
	if len(fb.Batch.Values) == 0 {
		return nil
	}
	msgs, err := serializeBatch(fb)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d observations from %s: %w", len(msgs), fb.SourceFile, err)
	}
	w.logger.Debug("published observations",
		"station", fb.StationID,
		"file", fb.SourceFile,
		"batch_id", fb.BatchID,
		"count", len(msgs),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// observationMessage is the JSON value written for each row.
type observationMessage struct {
	ID          string             `json:"id"`
	StationID   string             `json:"station_id"`
	SourceFile  string             `json:"source_file"`
	Observation domain.Observation `json:"observation"`
}

func serializeBatch(fb domain.FileBatch) ([]kafkago.Message, error) {
	headers := []kafkago.Header{
		{Key: "station_id", Value: []byte(fb.StationID)},
		{Key: "source_file", Value: []byte(fb.SourceFile)},
		{Key: "batch_id", Value: []byte(fb.BatchID)},
		{Key: "decoder", Value: []byte(domain.DecoderType)},
		{Key: "decoded_at", Value: []byte(fb.DecodedAt.UTC().Format(time.RFC3339))},
	}

	msgs := make([]kafkago.Message, len(fb.Batch.Values))
	for i, obs := range fb.Batch.Values {
		id := domain.ObservationID(fb.StationID, obs.ObsTime)
		data, err := json.Marshal(observationMessage{
			ID:          id,
			StationID:   fb.StationID,
			SourceFile:  fb.SourceFile,
			Observation: obs,
		})
		if err != nil {
			return nil, fmt.Errorf("serialize observation %d of %s: %w", i, fb.SourceFile, err)
		}
		msgs[i] = kafkago.Message{
			Key:     []byte(id),
			Value:   data,
			Headers: headers,
			Time:    obs.ObsTime,
		}
	}
	return msgs, nil
}
