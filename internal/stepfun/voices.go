package stepfun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/credential"
)

const (
	maxJSONBodyBytes = 1 << 20
	jsonNull         = "null"
)

type systemVoicesResponse struct {
	Voices json.RawMessage `json:"voices"`
}

// ListVoices fetches the system voice catalog and maps each voice identifier
// to a Voice with identical ID and Name. A missing, null or unparsable list
// yields an empty catalog. A list of another JSON type, or an entry that is
// not a string, fails the call with an ApiError instead of being dropped.
//
// The catalog is fetched fresh on every call.
func (c *Client) ListVoices(ctx context.Context, apiKey string) ([]core.Voice, error) {
	resp, err := c.getSystemVoices(ctx, credential.Normalize(apiKey))
	if err != nil {
		c.recordFailure(opListVoices, err)

		return nil, err
	}
	defer c.closeBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read voice catalog: %w", err)
	}

	var payload systemVoicesResponse

	parseErr := json.Unmarshal(body, &payload)
	if parseErr != nil {
		c.log.Warn("Voice catalog is not valid JSON, returning no voices: %v", parseErr)

		return []core.Voice{}, nil
	}

	if len(payload.Voices) == 0 || string(payload.Voices) == jsonNull {
		return []core.Voice{}, nil
	}

	var entries []json.RawMessage

	listErr := json.Unmarshal(payload.Voices, &entries)
	if listErr != nil {
		apiErr := NewAPIError(fmt.Sprintf(errFmtVoiceList, string(payload.Voices)), resp.StatusCode)
		c.recordFailure(opListVoices, apiErr)

		return nil, apiErr
	}

	voices := make([]core.Voice, 0, len(entries))

	for index, raw := range entries {
		var voiceID string

		entryErr := json.Unmarshal(raw, &voiceID)
		if entryErr != nil {
			apiErr := NewAPIError(fmt.Sprintf(errFmtVoiceEntry, index, string(raw)), resp.StatusCode)
			c.recordFailure(opListVoices, apiErr)

			return nil, apiErr
		}

		voices = append(voices, core.Voice{ID: voiceID, Name: voiceID})
	}

	c.log.Info("Loaded %d system voices", len(voices))

	return voices, nil
}
