package stepfun

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/book-expert/stepfun-tts/internal/audiofile"
	"github.com/book-expert/stepfun-tts/internal/metrics"
)

// JSON fields that may carry the audio location, in lookup order.
const (
	fieldAudioURL = "audio_url"
	fieldURL      = "url"
)

// speechPayload is the resolved shape of a synthesis response: binaryAudio,
// jsonWithURL or jsonWithoutURL.
type speechPayload interface {
	outcome() string
}

// binaryAudio is a response whose body is the synthesized audio.
type binaryAudio struct {
	body        io.Reader
	contentType string
	size        int64
}

// jsonWithURL is a JSON envelope pointing at the audio.
type jsonWithURL struct {
	url string
}

// jsonWithoutURL is any other response: no audio, no usable URL.
type jsonWithoutURL struct{}

func (binaryAudio) outcome() string    { return metrics.OutcomeBinary }
func (jsonWithURL) outcome() string    { return metrics.OutcomeJSONURL }
func (jsonWithoutURL) outcome() string { return metrics.OutcomeNoAudio }

// classifySpeechResponse resolves the response shape. The content type is
// checked first; only non-binary bodies are parsed, and a body that is not a
// JSON object counts as an empty one.
func classifySpeechResponse(resp *http.Response) speechPayload {
	contentType := resp.Header.Get(headerContentType)
	if audiofile.IsBinaryAudio(contentType) {
		return binaryAudio{
			body:        resp.Body,
			contentType: contentType,
			size:        resp.ContentLength,
		}
	}

	fields := readJSONObject(resp.Body)

	audioURL, ok := audioURLField(fields)
	if !ok {
		return jsonWithoutURL{}
	}

	return jsonWithURL{url: audioURL}
}

func readJSONObject(body io.Reader) map[string]any {
	fields := map[string]any{}

	data, err := io.ReadAll(io.LimitReader(body, maxJSONBodyBytes))
	if err != nil {
		return fields
	}

	err = json.Unmarshal(data, &fields)
	if err != nil || fields == nil {
		return map[string]any{}
	}

	return fields
}

func audioURLField(fields map[string]any) (string, bool) {
	for _, key := range []string{fieldAudioURL, fieldURL} {
		value, ok := fields[key].(string)
		if ok && value != "" {
			return value, true
		}
	}

	return "", false
}
