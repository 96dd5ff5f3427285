package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/integration"
	"github.com/book-expert/stepfun-tts/internal/stepfun"
)

// fakeBackend answers every operation without a network.
type fakeBackend struct {
	lastKey     string
	lastRequest core.SpeechRequest
}

func (f *fakeBackend) Authenticate(_ context.Context, rawAPIKey string) (string, error) {
	if rawAPIKey != "sk-valid" {
		return "", stepfun.NewAuthenticationError(401)
	}

	return rawAPIKey, nil
}

func (f *fakeBackend) ListVoices(_ context.Context, apiKey string) ([]core.Voice, error) {
	f.lastKey = apiKey

	return []core.Voice{{ID: "cove", Name: "cove"}}, nil
}

func (f *fakeBackend) Synthesize(_ context.Context, apiKey string, req core.SpeechRequest) (*core.SpeechResult, error) {
	f.lastKey = apiKey
	f.lastRequest = req
	req = req.WithDefaults()

	return &core.SpeechResult{
		AudioURL:     "https://cdn.example.test/a.mp3",
		Text:         req.Text,
		Voice:        req.Voice,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
	}, nil
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{
		"--text", "Hello, world!", "--voice", "cove", "--format", "wav", "--key", "Bearer sk-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world!", flags.text)
	assert.Equal(t, "cove", flags.voice)
	assert.Equal(t, "wav", flags.format)
	assert.Equal(t, "Bearer sk-1", flags.key)
	assert.False(t, flags.probe)

	_, err = parseFlags([]string{"--unknown"})
	require.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   appFlags
		wantErr bool
	}{
		{name: "no action", flags: appFlags{}, wantErr: true},
		{name: "probe", flags: appFlags{probe: true}, wantErr: false},
		{name: "voices", flags: appFlags{voices: true}, wantErr: false},
		{name: "text", flags: appFlags{text: "hi"}, wantErr: false},
		{name: "probe and text", flags: appFlags{probe: true, text: "hi"}, wantErr: true},
		{name: "probe and voices", flags: appFlags{probe: true, voices: true}, wantErr: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := validateFlags(testCase.flags)
			if testCase.wantErr {
				require.ErrorIs(t, err, errExactlyOne)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRun_RejectsMissingAction(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	err := run([]string{}, &out)
	require.ErrorIs(t, err, errExactlyOne)
	assert.Empty(t, out.String())
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("probe prints normalized key", func(t *testing.T) {
		t.Parallel()

		app := integration.New(&fakeBackend{})

		var out bytes.Buffer

		err := dispatch(context.Background(), app, appFlags{probe: true}, "Bearer sk-valid", &out)
		require.NoError(t, err)

		var record map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &record))
		assert.Equal(t, "sk-valid", record["apiKey"])
	})

	t.Run("probe with invalid key", func(t *testing.T) {
		t.Parallel()

		app := integration.New(&fakeBackend{})

		var out bytes.Buffer

		err := dispatch(context.Background(), app, appFlags{probe: true}, "sk-wrong", &out)
		require.ErrorIs(t, err, stepfun.ErrAuthentication)
		assert.Empty(t, out.String())
	})

	t.Run("voices", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		app := integration.New(backend)

		var out bytes.Buffer

		err := dispatch(context.Background(), app, appFlags{voices: true}, "sk-valid", &out)
		require.NoError(t, err)

		var records []map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &records))
		assert.Equal(t, []map[string]string{{"id": "cove", "name": "cove"}}, records)
		assert.Equal(t, "sk-valid", backend.lastKey)
	})

	t.Run("convert", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		app := integration.New(backend)

		var out bytes.Buffer

		err := dispatch(context.Background(), app, appFlags{text: "Hello", format: "wav"}, "sk-valid", &out)
		require.NoError(t, err)

		var record map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &record))
		assert.Equal(t, "https://cdn.example.test/a.mp3", record["audioUrl"])
		assert.Equal(t, "wav", record["outputFormat"])
		assert.Equal(t, "lively-girl", record["voice"])
		assert.Equal(t, "Hello", backend.lastRequest.Text)
	})
}
