package objectstore

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/stepfun-tts/internal/audiofile"
)

// AudioRoute is the path prefix under which stored audio is served.
const AudioRoute = "/audio/"

const (
	pathKey             = "key"
	headerContentLength = "Content-Length"
)

// Gateway serves objects written by Store so the URLs it returns resolve.
type Gateway struct {
	store *NatsObjectStore
	log   *logger.Logger
}

// NewGateway creates a Gateway over store.
func NewGateway(store *NatsObjectStore, log *logger.Logger) *Gateway {
	return &Gateway{store: store, log: log}
}

// Register mounts the gateway at GET /audio/{key}.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.Handle("GET "+AudioRoute+"{"+pathKey+"}", g)
}

// ServeHTTP streams one object with its stored content type.
func (g *Gateway) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	key := request.PathValue(pathKey)

	obj, info, err := g.store.Open(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			http.NotFound(responseWriter, request)

			return
		}

		g.log.Error("Failed to open audio object %s: %v", key, err)
		http.Error(responseWriter, "failed to read audio", http.StatusInternalServerError)

		return
	}

	defer func() {
		closeErr := obj.Close()
		if closeErr != nil {
			g.log.Warn("Failed to close audio object %s: %v", key, closeErr)
		}
	}()

	contentType := info.Headers.Get(headerContentType)
	if contentType == "" {
		contentType = audiofile.ContentTypeOctetStream
	}

	responseWriter.Header().Set(headerContentType, contentType)
	responseWriter.Header().Set(headerContentLength, strconv.FormatUint(info.Size, 10))
	responseWriter.WriteHeader(http.StatusOK)

	written, err := io.Copy(responseWriter, obj)
	if err != nil {
		g.log.Warn("Failed to stream audio object %s after %s: %v", key, audiofile.FormatFileSize(written), err)

		return
	}

	g.log.Info("Served audio object %s (%s)", key, audiofile.FormatFileSize(written))
}
