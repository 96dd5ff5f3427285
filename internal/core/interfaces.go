// Package core defines the records and collaborator interfaces shared by the
// Stepfun text-to-speech integration.
package core

import (
	"context"
	"io"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// BlobStore accepts an audio stream and returns a durable, dereferenceable URL.
// sizeHint is -1 when the length is unknown.
type BlobStore interface {
	Store(ctx context.Context, body io.Reader, sizeHint int64, filename, contentType string) (string, error)
}

// SpeechSynthesizer turns a SpeechRequest into a SpeechResult using an
// already-normalized API key.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, apiKey string, req SpeechRequest) (*SpeechResult, error)
}

// Default values applied to optional SpeechRequest fields.
const (
	DefaultVoice        = "lively-girl"
	DefaultModel        = "step-tts-2"
	DefaultOutputFormat = "mp3"
)

// Voice is one entry of the upstream voice catalog. ID and Name carry the same
// upstream voice identifier.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpeechRequest holds the input of a single conversion.
type SpeechRequest struct {
	// Text is required and must be non-empty.
	Text string `json:"text"`

	// Voice, Model and OutputFormat fall back to the package defaults when empty.
	Voice        string `json:"voice,omitempty"`
	Model        string `json:"model,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
}

// WithDefaults returns a copy of the request with every omitted optional
// field replaced by its default.
func (r SpeechRequest) WithDefaults() SpeechRequest {
	if r.Voice == "" {
		r.Voice = DefaultVoice
	}

	if r.Model == "" {
		r.Model = DefaultModel
	}

	if r.OutputFormat == "" {
		r.OutputFormat = DefaultOutputFormat
	}

	return r
}

// SpeechResult echoes the request together with the produced audio reference.
// AudioURL is always a URL, never raw audio.
type SpeechResult struct {
	AudioURL     string `json:"audioUrl"`
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	Model        string `json:"model"`
	OutputFormat string `json:"outputFormat"`
}
