package stepfun

import (
	"context"
	"errors"
	"net/http"

	"github.com/book-expert/stepfun-tts/internal/credential"
)

// Authenticate normalizes rawAPIKey and checks it against the voice catalog
// endpoint, which is cheap and has no side effects. It returns the normalized
// key, which is the form that should be persisted.
//
// A 401 is reported as an AuthenticationError; any other failure keeps the
// ApiError produced by ValidateStatus.
func (c *Client) Authenticate(ctx context.Context, rawAPIKey string) (string, error) {
	apiKey := credential.Normalize(rawAPIKey)

	resp, err := c.getSystemVoices(ctx, apiKey)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			err = NewAuthenticationError(apiErr.Status)
		}

		c.recordFailure(opAuthenticate, err)
		c.log.Warn("API key validation failed: %v", err)

		return "", err
	}

	c.closeBody(resp)
	c.log.Info("API key validated against %s", apiSystemVoices)

	return apiKey, nil
}
