//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/feels-like-service/internal/adapter/kafka"
	"github.com/couchcryptid/feels-like-service/internal/config"
	"github.com/couchcryptid/feels-like-service/internal/domain"
	"github.com/couchcryptid/feels-like-service/internal/observability"
	"github.com/couchcryptid/feels-like-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

// enrichedMessage holds a deserialized message read from the sink topic.
type enrichedMessage struct {
	Event   domain.ReadingEvent
	Key     string
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("feels-like-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
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

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func readingPayload(t *testing.T, station string, temp, rh, wind float64) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.RawReading{
		StationID:          station,
		ObservedAt:         "2024-01-15T05:00:00Z",
		DryBulbTemperature: &temp,
		RelativeHumidity:   &rh,
		WindSpeed:          &wind,
	})
	require.NoError(t, err)
	return payload
}

// readEnriched reads a single message from the sink consumer and deserializes it.
func readEnriched(ctx context.Context, t *testing.T, consumer *kafkago.Reader) enrichedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.ReadingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal sink message")

	return enrichedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies that kafka.Reader and kafka.Writer round-trip
// a reading through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-reader")
	payload := readingPayload(t, "YSSY", 30, 50, 0)

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte("test-key"), Value: payload}))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	// Retry because the consumer group may need time to rebalance.
	var batch []domain.RawEvent
	for len(batch) == 0 {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("test-key"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit)
	require.NoError(t, raw.Commit(ctx))

	transformer := pipeline.NewTransformer(discardLogger(), nil)
	event, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.ReadingEvent{event}))

	em := readEnriched(ctx, t, newSinkConsumer(t, broker))
	assert.Equal(t, event.ID, em.Key)
	assert.Equal(t, "YSSY", em.Headers["station_id"])
	_, err = time.Parse(time.RFC3339, em.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")
	assert.InDelta(t, 32.94, em.Event.ApparentTemperature, 0.1)
}

// TestPipelineSkipsInvalidReadings runs the full pipeline and verifies that
// malformed and out-of-range readings are skipped while valid ones flow through.
func TestPipelineSkipsInvalidReadings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad-json"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("bad-range"), Value: readingPayload(t, "YBBN", 25, 120, 1)},
		kafkago.Message{Key: []byte("good-1"), Value: readingPayload(t, "YMML", 10, 80, 10)},
		kafkago.Message{Key: []byte("good-2"), Value: readingPayload(t, "YPPH", 20, 0, 0)},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger(), metrics), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := newSinkConsumer(t, broker)
	received := map[string]domain.ReadingEvent{}
	for range 2 {
		em := readEnriched(ctx, t, consumer)
		received[em.Event.StationID] = em.Event
	}

	require.Contains(t, received, "YMML")
	assert.Less(t, received["YMML"].ApparentTemperature, 10.0)
	require.Contains(t, received, "YPPH")
	assert.InDelta(t, 16.0, received["YPPH"].ApparentTemperature, 0)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no third message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SkippedReadings.WithLabelValues(pipeline.SkipMalformed)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SkippedReadings.WithLabelValues(pipeline.SkipInvalidInput)), 0)
}
