// Package worker_test tests the NATS worker for the TTS service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/worker"
)

const (
	testSubject  = "test_subject"
	testAPIKey   = "sk-abc123"
	testAudioURL = "https://tts.example.test/audio/1234-speech.mp3"
)

var (
	errMockDownload   = errors.New("mock download error")
	errMockSynthesize = errors.New("mock synthesize error")
)

// mockObjectStore is a mock implementation of the ObjectStore interface.
type mockObjectStore struct {
	downloadShouldFail bool
	downloadedKey      string
	text               string
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.downloadedKey = key

	if m.text != "" {
		return []byte(m.text), nil
	}

	return []byte("sample\ntext [1]"), nil
}

func (m *mockObjectStore) Upload(_ context.Context, _ string, _ []byte) error {
	return nil
}

// mockSynthesizer is a mock implementation of the SpeechSynthesizer interface.
type mockSynthesizer struct {
	shouldFail bool
	apiKey     string
	request    core.SpeechRequest
}

func (m *mockSynthesizer) Synthesize(
	_ context.Context,
	apiKey string,
	req core.SpeechRequest,
) (*core.SpeechResult, error) {
	if m.shouldFail {
		return nil, errMockSynthesize
	}

	m.apiKey = apiKey
	m.request = req
	req = req.WithDefaults()

	return &core.SpeechResult{
		AudioURL:     testAudioURL,
		Text:         req.Text,
		Voice:        req.Voice,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
	}, nil
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

// startWorker runs a worker until the test ends and returns the connection
// used to send requests.
func startWorker(t *testing.T, store *mockObjectStore, synthesizer *mockSynthesizer) *nats.Conn {
	t.Helper()

	natsConnection := createTestNatsClient(t)

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, testSubject, store, synthesizer, testAPIKey, createTestLogger(t),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	// Wait for the subscription to be registered.
	require.Eventually(t, func() bool {
		return natsConnection.NumSubscriptions() > 0
	}, 2*time.Second, 10*time.Millisecond)

	return natsConnection
}

func newTestEvent(t *testing.T, textKey, voice string) []byte {
	t.Helper()

	testEvent := &events.TextProcessedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		TextKey:           textKey,
		PNGKey:            "",
		PageNumber:        3,
		TotalPages:        10,
		Voice:             voice,
		Seed:              0,
		NGL:               0,
		TopP:              0,
		RepetitionPenalty: 0,
		Temperature:       0,
	}

	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	return eventData
}

func TestNewNatsWorker_Validation(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, "", &mockObjectStore{}, &mockSynthesizer{}, testAPIKey, nil)
	require.ErrorIs(t, err, worker.ErrSubjectEmpty)

	_, err = worker.NewNatsWorker(nil, testSubject, &mockObjectStore{}, &mockSynthesizer{}, "", nil)
	require.ErrorIs(t, err, worker.ErrAPIKeyEmpty)
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	mockStore := &mockObjectStore{}
	synthesizer := &mockSynthesizer{}
	natsConnection := startWorker(t, mockStore, synthesizer)

	eventData := newTestEvent(t, "test-text-key", "cove")

	var sent events.TextProcessedEvent
	require.NoError(t, json.Unmarshal(eventData, &sent))

	replyMsg, err := natsConnection.Request(testSubject, eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var replyEvent events.AudioChunkCreatedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, "test-text-key", mockStore.downloadedKey)
	assert.Equal(t, testAPIKey, synthesizer.apiKey)
	assert.Equal(t, core.SpeechRequest{Text: "sample text.", Voice: "cove"}, synthesizer.request)

	assert.Equal(t, testAudioURL, replyEvent.AudioKey)
	assert.Equal(t, sent.Header.WorkflowID, replyEvent.Header.WorkflowID)
	assert.NotEqual(t, sent.Header.EventID, replyEvent.Header.EventID)
	assert.Equal(t, 3, replyEvent.PageNumber)
	assert.Equal(t, 10, replyEvent.TotalPages)
}

func TestMessageHandler_NoReplyOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		store       *mockObjectStore
		synthesizer *mockSynthesizer
		payload     func(t *testing.T) []byte
	}{
		{
			name:        "download fails",
			store:       &mockObjectStore{downloadShouldFail: true},
			synthesizer: &mockSynthesizer{},
			payload:     func(t *testing.T) []byte { t.Helper(); return newTestEvent(t, "key", "") },
		},
		{
			name:        "blank page",
			store:       &mockObjectStore{text: " [2] \n "},
			synthesizer: &mockSynthesizer{},
			payload:     func(t *testing.T) []byte { t.Helper(); return newTestEvent(t, "key", "") },
		},
		{
			name:        "synthesis fails",
			store:       &mockObjectStore{},
			synthesizer: &mockSynthesizer{shouldFail: true},
			payload:     func(t *testing.T) []byte { t.Helper(); return newTestEvent(t, "key", "") },
		},
		{
			name:        "missing text key",
			store:       &mockObjectStore{},
			synthesizer: &mockSynthesizer{},
			payload:     func(t *testing.T) []byte { t.Helper(); return newTestEvent(t, "", "") },
		},
		{
			name:        "malformed event",
			store:       &mockObjectStore{},
			synthesizer: &mockSynthesizer{},
			payload:     func(*testing.T) []byte { return []byte("{not json") },
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			natsConnection := startWorker(t, testCase.store, testCase.synthesizer)

			_, err := natsConnection.Request(testSubject, testCase.payload(t), 500*time.Millisecond)
			require.ErrorIs(t, err, nats.ErrTimeout)
		})
	}
}
