// Package objectstore provides a NATS JetStream object store that backs both
// the byte-oriented ObjectStore and the streaming BlobStore used for
// synthesized audio.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/stepfun-tts/internal/audiofile"
	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/metrics"
)

const (
	headerContentType = "Content-Type"
	metaFilename      = "filename"
	keySeparator      = "-"
)

// DefaultPublicURL is the prefix of returned audio URLs when none is configured.
const DefaultPublicURL = "http://localhost:8080" + AudioRoute

// ErrEmptyFilename is returned when Store is called without a filename.
var ErrEmptyFilename = errors.New("filename cannot be empty")

// NatsObjectStore implements core.ObjectStore and core.BlobStore using NATS JetStream.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	bucket           string
	store            nats.ObjectStore
	publicURL        string
	metrics          *metrics.Recorder
}

// Option configures a NatsObjectStore.
type Option func(*NatsObjectStore)

// WithPublicURL sets the prefix joined with the object key to form the URL
// returned by Store. It should point at a Gateway.
func WithPublicURL(prefix string) Option {
	return func(n *NatsObjectStore) {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}

		n.publicURL = prefix
	}
}

// WithMetrics counts stored bytes on recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(n *NatsObjectStore) {
		n.metrics = recorder
	}
}

// New creates and initializes a new NatsObjectStore.
func New(jetstreamContext nats.JetStreamContext, bucketName string, opts ...Option) (*NatsObjectStore, error) {
	// Use a "create-first" approach.
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Synthesized audio for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})

	// If the bucket already exists, bind to it.
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	objectStore := &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		bucket:           bucketName,
		store:            store,
		publicURL:        DefaultPublicURL,
		metrics:          nil,
	}

	for _, opt := range opts {
		opt(objectStore)
	}

	return objectStore, nil
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload saves an object to the NATS object store.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	_, err := n.put(ctx, key, "", "", bytes.NewReader(data))
	if err != nil {
		return err
	}

	return nil
}

// Store streams body into the bucket under a fresh key derived from filename
// and returns the public URL of the object. The content type is kept as an
// object header so the Gateway can serve it back. sizeHint is informational;
// the stream is read to EOF either way.
func (n *NatsObjectStore) Store(
	ctx context.Context,
	body io.Reader,
	_ int64,
	filename, contentType string,
) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}

	key := uuid.NewString() + keySeparator + audiofile.SanitizeFilename(filename)

	info, err := n.put(ctx, key, filename, contentType, body)
	if err != nil {
		return "", err
	}

	n.metrics.StoredBytes(int64(info.Size))

	return n.publicURL + url.PathEscape(key), nil
}

func (n *NatsObjectStore) put(
	ctx context.Context,
	key, filename, contentType string,
	reader io.Reader,
) (*nats.ObjectInfo, error) {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, fmt.Errorf("put of object '%s' abandoned: %w", key, ctxErr)
	}

	var headers nats.Header
	if contentType != "" {
		headers = nats.Header{}
		headers.Set(headerContentType, contentType)
	}

	var metadata map[string]string
	if filename != "" {
		metadata = map[string]string{metaFilename: filename}
	}

	info, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     headers,
		Metadata:    metadata,
		Opts:        nil,
	}, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return info, nil
}

// Open returns a reader for the object together with its stored info.
func (n *NatsObjectStore) Open(key string) (io.ReadCloser, *nats.ObjectInfo, error) {
	obj, err := n.store.Get(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	info, err := obj.Info()
	if err != nil {
		_ = obj.Close()

		return nil, nil, fmt.Errorf("failed to read info of object '%s': %w", key, err)
	}

	return obj, info, nil
}

var (
	_ core.ObjectStore = (*NatsObjectStore)(nil)
	_ core.BlobStore   = (*NatsObjectStore)(nil)
)
