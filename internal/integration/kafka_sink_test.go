//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/dustcast-service/internal/adapter/earthengine"
	kafkaadapter "github.com/couchcryptid/dustcast-service/internal/adapter/kafka"
	"github.com/couchcryptid/dustcast-service/internal/cache"
	"github.com/couchcryptid/dustcast-service/internal/config"
	"github.com/couchcryptid/dustcast-service/internal/domain"
	"github.com/couchcryptid/dustcast-service/internal/observability"
	"github.com/couchcryptid/dustcast-service/internal/pipeline"
)

const testSinkTopic = "test-dust-risk-assessments"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-broker Kafka container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// mockImagery serves one fixed composite response in the provider wire format.
func mockImagery(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"scene_count": 9,
			"bands": {"lst_day_mean": 41.5, "ndvi_mean": 0.08, "ndmi_mean": 0.02, "nddi_mean": 0.52}
		}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type sinkMessage struct {
	Assessment domain.RiskAssessment
	Key        string
	Headers    map[string]string
}

// readAssessment reads a single message from the sink consumer and deserializes it.
func readAssessment(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var a domain.RiskAssessment
	require.NoError(t, json.Unmarshal(msg.Value, &a), "unmarshal sink message")

	return sinkMessage{Assessment: a, Key: string(msg.Key), Headers: headers}
}

// TestRefreshPublishesToKafka runs a real refresh cycle — provider fetch,
// evaluation, cache write, Kafka publish — and verifies the message that lands
// on the sink topic.
func TestRefreshPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	imagery := mockImagery(t)

	provider := earthengine.NewClient(config.ProviderConfig{
		BaseURL:       imagery.URL,
		Project:       "test-project",
		Token:         "test-token",
		Timeout:       10 * time.Second,
		WindowDays:    60,
		MaxCloudCover: 20,
	}, discardLogger())

	writer := kafkaadapter.NewWriter(config.KafkaConfig{
		Brokers: []string{broker},
		Topic:   testSinkTopic,
	}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	clk := clockwork.NewRealClock()
	p := pipeline.New(pipeline.Config{
		Provider:     provider,
		Store:        cache.New(30*time.Minute, 2*time.Hour, clk),
		Params:       domain.DefaultRiskParams(),
		Region:       domain.Region{Lat: 41.2995, Lon: 69.2401, RadiusMeters: 50000},
		ForecastDays: 7,
		FetchTimeout: 10 * time.Second,
		Publisher:    writer,
		Logger:       discardLogger(),
		Metrics:      observability.NewMetricsForTesting(),
		Clock:        clk,
	})

	require.NoError(t, p.Refresh(ctx, cache.KindCurrent))
	require.NoError(t, p.Refresh(ctx, cache.KindForecast))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byKind := map[string]sinkMessage{}
	for i := 0; i < 2; i++ {
		m := readAssessment(ctx, t, consumer)
		byKind[m.Key] = m
	}

	current, ok := byKind["current"]
	require.True(t, ok, "expected a current-kind message")
	assert.Equal(t, domain.RiskHigh, current.Assessment.RiskLevel)
	assert.InDelta(t, 41.5, current.Assessment.RawIndices.SurfaceTemperature, 1e-9)
	assert.Equal(t, 9, current.Assessment.RawIndices.SceneCount)
	assert.Contains(t, current.Assessment.TriggeredFactors, domain.FactorTemperature)
	assert.Empty(t, current.Assessment.Outlook)

	assert.Equal(t, "high", current.Headers["risk_level"])
	_, err := time.Parse(time.RFC3339, current.Headers["observed_at"])
	assert.NoError(t, err, "observed_at should be valid RFC3339")

	forecast, ok := byKind["forecast"]
	require.True(t, ok, "expected a forecast-kind message")
	assert.Len(t, forecast.Assessment.Outlook, 7)
	assert.Equal(t, "Today", forecast.Assessment.Outlook[0].DayName)
}
