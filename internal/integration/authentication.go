package integration

import (
	"context"

	"github.com/book-expert/stepfun-tts/internal/credential"
)

// FieldAPIKey is the single authentication field.
const FieldAPIKey = "apiKey"

const (
	authTypeCustom      = "custom"
	apiKeyLabel         = "Stepfun.ai API Key"
	apiKeyHelpText      = "Your Stepfun.ai API Key. You can find your API Key at [https://platform.stepfun.ai/interface-key](https://platform.stepfun.ai/interface-key)"
	connectionLabelTmpl = "Stepfun.ai ({{apiKey}})"
)

func newAuthentication(backend Backend) Authentication {
	return Authentication{
		Type: authTypeCustom,
		Fields: []Field{
			{
				Key:      FieldAPIKey,
				Label:    apiKeyLabel,
				Type:     FieldTypePassword,
				Required: true,
				Computed: false,
				HelpText: apiKeyHelpText,
			},
		},
		ConnectionLabel: connectionLabelTmpl,
		Test: func(ctx context.Context, bundle Bundle) (Record, error) {
			apiKey, err := backend.Authenticate(ctx, credential.Normalize(bundle.AuthData[FieldAPIKey]))
			if err != nil {
				return nil, err
			}

			return Record{FieldAPIKey: apiKey}, nil
		},
	}
}

// apiKeyFrom normalizes the stored credential at use time.
func apiKeyFrom(bundle Bundle) string {
	return credential.Normalize(bundle.AuthData[FieldAPIKey])
}
