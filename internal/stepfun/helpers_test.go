package stepfun_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/stepfun-tts/internal/metrics"
	"github.com/book-expert/stepfun-tts/internal/stepfun"
)

const (
	testAPIKey    = "sk-abc123"
	testBlobURL   = "https://blobs.example.test/audio/1234-speech.mp3"
	testUserAgent = "StepfunZapierIntegration/1.0.0"
	testSource    = "zapier"
)

// fakeBlobStore records what it was asked to store.
type fakeBlobStore struct {
	url         string
	err         error
	calls       int
	data        []byte
	sizeHint    int64
	filename    string
	contentType string
}

func (f *fakeBlobStore) Store(
	_ context.Context,
	body io.Reader,
	sizeHint int64,
	filename, contentType string,
) (string, error) {
	f.calls++

	if f.err != nil {
		return "", f.err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	f.data = data
	f.sizeHint = sizeHint
	f.filename = filename
	f.contentType = contentType

	return f.url, nil
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "stepfun-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

// newTestClient starts handler as the upstream API and returns a client
// pointed at it.
func newTestClient(
	t *testing.T,
	handler http.HandlerFunc,
	opts ...stepfun.Option,
) (*stepfun.Client, *metrics.Recorder) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	recorder := metrics.NewWithRegistry(prometheus.NewRegistry())

	allOpts := append([]stepfun.Option{
		stepfun.WithBaseURL(server.URL),
		stepfun.WithMetrics(recorder),
	}, opts...)

	return stepfun.NewClient(createTestLogger(t), allOpts...), recorder
}

func writeJSON(t *testing.T, responseWriter http.ResponseWriter, status int, body string) {
	t.Helper()

	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(status)

	_, err := io.WriteString(responseWriter, body)
	if err != nil {
		t.Errorf("failed to write response: %v", err)
	}
}
