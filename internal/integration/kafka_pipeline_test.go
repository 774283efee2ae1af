//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/buoy-data-etl/internal/adapter/inbox"
	"github.com/couchcryptid/buoy-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/buoy-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/buoy-data-etl/internal/config"
	"github.com/couchcryptid/buoy-data-etl/internal/domain"
	"github.com/couchcryptid/buoy-data-etl/internal/observability"
	"github.com/couchcryptid/buoy-data-etl/internal/pipeline"

	_ "time/tzdata"
)

const (
	testSinkTopic = "test-buoy-observations"
	stationID     = "seychelles-01"

	augustHis = "2025-08-01T07:01:59.999Z,15.10,190.2,36.1,7.101,270.0,11.02,8.20,3.84,9.15,11.00,14.90,0.581,0.838,1.55,3.402E-2,25.00,25.70,0\n" +
		"2025-08-01T07:31:59.999Z,15.38,191.3,37.7,7.143,274.0,11.09,8.23,3.86,9.19,11.05,14.94,0.584,0.840,1.59,3.441E-2,25.00,25.80,0\n"
	julyHis = "2025-07-31T23:31:59.999Z,14.90,188.0,35.0,7.050,260.0,10.90,8.10,3.80,9.00,10.90,14.70,0.580,0.830,1.50,3.300E-2,25.00,25.60,0\n"
)

type sinkMessage struct {
	ID          string             `json:"id"`
	StationID   string             `json:"station_id"`
	SourceFile  string             `json:"source_file"`
	Observation domain.Observation `json:"observation"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("buoy-etl-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func lastOffset(ctx context.Context, t *testing.T, broker, topic string) int64 {
	t.Helper()
	conn, err := kafkago.DialLeader(ctx, "tcp", broker, topic, 0)
	require.NoError(t, err)
	defer conn.Close()
	off, err := conn.ReadLastOffset()
	require.NoError(t, err)
	return off
}

func readSink(ctx context.Context, t *testing.T, broker string, n int) []kafkago.Message {
	t.Helper()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSinkTopic,
		Partition: 0,
		MaxWait:   500 * time.Millisecond,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msgs := make([]kafkago.Message, 0, n)
	for len(msgs) < n {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err, "read from sink topic")
		msgs = append(msgs, msg)
	}
	return msgs
}

func writeInbox(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, stationID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

// TestPipelinePublishesCurrentMonth drives the whole service stack: inbox on
// disk, sqlite ledger, Kafka writer and a real broker.
func TestPipelinePublishesCurrentMonth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	root := t.TempDir()
	inboxDir := filepath.Join(root, "inbox")
	writeInbox(t, inboxDir, "Seychelles}2025-08.his", augustHis)
	writeInbox(t, inboxDir, "Seychelles}2025-07.his", julyHis)

	clock := clockwork.NewFakeClockAt(time.Date(2025, time.August, 15, 6, 0, 0, 0, time.UTC))
	stations := []domain.StationLink{{ID: stationID, FilePattern: "Seychelles}*.his", Timezone: "Indian/Mahe"}}
	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	ledgerPath := filepath.Join(root, "ledger.db")

	newPipeline := func(t *testing.T) *pipeline.Pipeline {
		t.Helper()
		ledger, err := sqlite.Open(ctx, ledgerPath, clock)
		require.NoError(t, err)
		t.Cleanup(func() { _ = ledger.Close() })

		writer := kafka.NewWriter(cfg, discardLogger())
		t.Cleanup(func() { _ = writer.Close() })

		transformer := pipeline.NewTransformer(domain.NewBuoyDecoder(nil, clock), clock)
		return pipeline.New(stations, inbox.NewDir(inboxDir), transformer, ledger, writer,
			discardLogger(), observability.NewMetricsForTesting(), pipeline.Options{Clock: clock})
	}

	require.True(t, newPipeline(t).RunCycle(ctx))

	msgs := readSink(ctx, t, broker, 2)
	for i, msg := range msgs {
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, stationID, headers["station_id"])
		assert.Equal(t, "Seychelles}2025-08.his", headers["source_file"])
		assert.Equal(t, domain.DecoderType, headers["decoder"])
		assert.NotEmpty(t, headers["batch_id"])

		var body sinkMessage
		require.NoError(t, json.Unmarshal(msg.Value, &body), "message %d", i)
		assert.Equal(t, string(msg.Key), body.ID)
		assert.Equal(t, domain.ObservationID(stationID, body.Observation.ObsTime), body.ID)
		assert.Equal(t, "Seychelles}2025-08.his", body.SourceFile)
	}

	var first sinkMessage
	require.NoError(t, json.Unmarshal(msgs[0].Value, &first))
	assert.True(t, first.Observation.ObsTime.Equal(time.Date(2025, time.August, 1, 7, 1, 59, 999_000_000, time.UTC)))

	// A restarted service with the same ledger does not republish.
	before := lastOffset(ctx, t, broker, testSinkTopic)
	require.True(t, newPipeline(t).RunCycle(ctx))
	assert.Equal(t, before, lastOffset(ctx, t, broker, testSinkTopic))
}
