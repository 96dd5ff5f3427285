// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/stepfun-tts/internal/metrics"
	"github.com/book-expert/stepfun-tts/internal/objectstore"
)

const testPublicURL = "https://tts.example.test/audio"

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newTestStore(t *testing.T, opts ...objectstore.Option) *objectstore.NatsObjectStore {
	t.Helper()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "test-bucket", opts...)
	require.NoError(t, err)

	return store
}

func keyFromURL(t *testing.T, audioURL string) string {
	t.Helper()

	require.True(t, strings.HasPrefix(audioURL, testPublicURL+"/"), audioURL)

	return strings.TrimPrefix(audioURL, testPublicURL+"/")
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	ctx := context.Background()
	key := "my-test-object"
	uploadData := []byte("hello world, this is a test")

	err := store.Upload(ctx, key, uploadData)
	require.NoError(t, err)

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)

	require.Equal(t, uploadData, downloadData)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(jetstreamContext, "shared-bucket")
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "kept", []byte("data")))

	second, err := objectstore.New(jetstreamContext, "shared-bucket")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "kept")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestNatsObjectStore_Store(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewWithRegistry(prometheus.NewRegistry())
	store := newTestStore(t, objectstore.WithPublicURL(testPublicURL), objectstore.WithMetrics(recorder))

	audio := "fake-mp3-bytes"

	audioURL, err := store.Store(context.Background(), strings.NewReader(audio), -1, "speech.mp3", "audio/mpeg")
	require.NoError(t, err)

	key := keyFromURL(t, audioURL)
	assert.True(t, strings.HasSuffix(key, "-speech.mp3"), key)

	data, err := store.Download(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, audio, string(data))

	reader, info, err := store.Open(key)
	require.NoError(t, err)

	defer reader.Close()

	assert.Equal(t, "audio/mpeg", info.Headers.Get("Content-Type"))
	assert.Equal(t, uint64(len(audio)), info.Size)

	assert.InDelta(t, float64(len(audio)), testutil.ToFloat64(recorder.StoredAudioBytes()), 0)
}

func TestNatsObjectStore_StoreUniqueKeys(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, objectstore.WithPublicURL(testPublicURL+"/"))

	first, err := store.Store(context.Background(), strings.NewReader("a"), 1, "speech.mp3", "audio/mpeg")
	require.NoError(t, err)

	second, err := store.Store(context.Background(), strings.NewReader("b"), 1, "speech.mp3", "audio/mpeg")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNatsObjectStore_StoreValidation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Store(context.Background(), strings.NewReader("a"), 1, "", "audio/mpeg")
	require.ErrorIs(t, err, objectstore.ErrEmptyFilename)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Store(ctx, strings.NewReader("a"), 1, "speech.mp3", "audio/mpeg")
	require.ErrorIs(t, err, context.Canceled)
}

func TestGateway(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, objectstore.WithPublicURL(testPublicURL))

	testLogger, err := logger.New(t.TempDir(), "gateway-test.log")
	require.NoError(t, err)

	defer testLogger.Close()

	mux := http.NewServeMux()
	objectstore.NewGateway(store, testLogger).Register(mux)

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	audioURL, err := store.Store(context.Background(), strings.NewReader("opus-frames"), -1, "speech.opus", "audio/opus")
	require.NoError(t, err)

	resp, err := http.Get(httpServer.URL + objectstore.AudioRoute + keyFromURL(t, audioURL))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/opus", resp.Header.Get("Content-Type"))
	assert.Equal(t, "opus-frames", string(body))

	missing, err := http.Get(httpServer.URL + objectstore.AudioRoute + "does-not-exist.mp3")
	require.NoError(t, err)
	require.NoError(t, missing.Body.Close())

	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
