package stepfun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/book-expert/stepfun-tts/internal/audiofile"
	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/credential"
	"github.com/book-expert/stepfun-tts/internal/metrics"
)

// speechRequestBody is the JSON payload of POST /v1/audio/speech.
type speechRequestBody struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize converts req.Text to speech. Omitted optional fields take their
// defaults and are echoed in the result.
//
// The upstream answers either with the audio itself or with a JSON envelope.
// Binary audio is written to the blob store and its URL returned; an envelope
// contributes its audio_url (or url) field. A successful response with
// neither is an ApiError carrying the response status.
func (c *Client) Synthesize(ctx context.Context, apiKey string, req core.SpeechRequest) (*core.SpeechResult, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	req = req.WithDefaults()

	if !audiofile.IsSupportedFormat(req.OutputFormat) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.OutputFormat)
	}

	requestBody, err := json.Marshal(speechRequestBody{
		Model:          req.Model,
		Input:          req.Text,
		Voice:          req.Voice,
		ResponseFormat: req.OutputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(
		ctx, http.MethodPost, apiSpeech, nil, credential.Normalize(apiKey), bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(httpReq)
	if err != nil {
		c.recordFailure(opSynthesize, err)
		c.metrics.Conversion(metrics.OutcomeError)

		return nil, err
	}
	defer c.closeBody(resp)

	payload := classifySpeechResponse(resp)

	audioURL, err := c.resolveAudioURL(ctx, payload, req, resp.StatusCode)
	if err != nil {
		c.recordFailure(opSynthesize, err)
		c.metrics.Conversion(failureOutcome(payload))

		return nil, err
	}

	c.metrics.Conversion(payload.outcome())
	c.log.Info("Synthesized speech (voice=%s, model=%s, format=%s) via %s response",
		req.Voice, req.Model, req.OutputFormat, payload.outcome())

	return &core.SpeechResult{
		AudioURL:     audioURL,
		Text:         req.Text,
		Voice:        req.Voice,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
	}, nil
}

func (c *Client) resolveAudioURL(
	ctx context.Context,
	payload speechPayload,
	req core.SpeechRequest,
	status int,
) (string, error) {
	switch resolved := payload.(type) {
	case binaryAudio:
		return c.storeAudio(ctx, resolved, req.OutputFormat)
	case jsonWithURL:
		return resolved.url, nil
	default:
		return "", NewAPIError(errNoAudioInResponse, status)
	}
}

// failureOutcome keeps the no_audio label for a successful response that
// carried nothing; every other failure after the request is an error.
func failureOutcome(payload speechPayload) string {
	if _, ok := payload.(jsonWithoutURL); ok {
		return payload.outcome()
	}

	return metrics.OutcomeError
}

func (c *Client) storeAudio(ctx context.Context, audio binaryAudio, format string) (string, error) {
	if c.store == nil {
		return "", ErrNoBlobStore
	}

	filename := audiofile.Filename(format)
	contentType := audiofile.ResolveContentType(audio.contentType, format)

	audioURL, err := c.store.Store(ctx, audio.body, audio.size, filename, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store synthesized audio: %w", err)
	}

	if audioURL == "" {
		return "", ErrEmptyAudioURL
	}

	return audioURL, nil
}

var _ core.SpeechSynthesizer = (*Client)(nil)
