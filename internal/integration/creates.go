package integration

import (
	"context"
	"fmt"

	"github.com/book-expert/stepfun-tts/internal/audiofile"
	"github.com/book-expert/stepfun-tts/internal/core"
)

// Input and output field keys of the convert action.
const (
	FieldText         = "text"
	FieldVoice        = "voice"
	FieldModel        = "model"
	FieldOutputFormat = "outputFormat"
	FieldAudioURL     = "audioUrl"
)

var outputFormatChoices = map[string]string{
	audiofile.FormatMP3:  "MP3",
	audiofile.FormatAAC:  "AAC",
	audiofile.FormatFLAC: "FLAC",
	audiofile.FormatWAV:  "WAV",
	audiofile.FormatPCM:  "PCM",
	audiofile.FormatOpus: "Opus",
}

func newConvertTextToSpeech(backend Backend) Create {
	return Create{
		Key:  CreateConvertTextToSpeech,
		Noun: "Speech",
		Display: Display{
			Label:       "Convert Text Into Speech",
			Description: "Convert Text Into Speech using Stepfun.ai's Model (TTS)",
			Important:   true,
			Hidden:      false,
		},
		Perform: func(ctx context.Context, bundle Bundle) (Record, error) {
			result, err := backend.Synthesize(ctx, apiKeyFrom(bundle), speechRequestFrom(bundle.InputData))
			if err != nil {
				return nil, err
			}

			return speechResultRecord(result), nil
		},
		InputFields: []Field{
			{
				Key:      FieldText,
				Label:    "Text",
				Type:     FieldTypeText,
				Required: true,
				HelpText: "The text you want to convert to speech.",
			},
			{
				Key:      FieldVoice,
				Label:    "Voice",
				Type:     FieldTypeString,
				Default:  core.DefaultVoice,
				Dynamic:  TriggerSystemVoices + "." + voiceFieldID + "." + voiceFieldName,
				HelpText: "Select the voice for speech generation.",
			},
			{
				Key:      FieldModel,
				Label:    "Model",
				Type:     FieldTypeString,
				Default:  core.DefaultModel,
				Choices:  map[string]string{core.DefaultModel: "Step TTS 2"},
				HelpText: "Select the TTS model. Currently only step-tts-2 is supported.",
			},
			{
				Key:      FieldOutputFormat,
				Label:    "Output Format",
				Type:     FieldTypeString,
				Default:  core.DefaultOutputFormat,
				Choices:  outputFormatChoices,
				HelpText: "Select the output audio format.",
			},
		},
		OutputFields: []Field{
			{Key: FieldAudioURL, Label: "Audio URL", Type: FieldTypeFile},
			{Key: FieldText, Label: "Text", Type: FieldTypeString},
			{Key: FieldVoice, Label: "Voice", Type: FieldTypeString},
			{Key: FieldModel, Label: "Model", Type: FieldTypeString},
			{Key: FieldOutputFormat, Label: "Output Format", Type: FieldTypeString},
		},
		Sample: Record{
			FieldAudioURL:     "https://api.stepfun.com/v1/audio/files/example.mp3",
			FieldText:         "Hello World",
			FieldVoice:        core.DefaultVoice,
			FieldModel:        core.DefaultModel,
			FieldOutputFormat: core.DefaultOutputFormat,
		},
	}
}

func speechRequestFrom(input Record) core.SpeechRequest {
	return core.SpeechRequest{
		Text:         inputString(input, FieldText),
		Voice:        inputString(input, FieldVoice),
		Model:        inputString(input, FieldModel),
		OutputFormat: inputString(input, FieldOutputFormat),
	}
}

func speechResultRecord(result *core.SpeechResult) Record {
	return Record{
		FieldAudioURL:     result.AudioURL,
		FieldText:         result.Text,
		FieldVoice:        result.Voice,
		FieldModel:        result.Model,
		FieldOutputFormat: result.OutputFormat,
	}
}

// inputString reads an input value as a string; absent values are "".
func inputString(input Record, key string) string {
	value, ok := input[key]
	if !ok || value == nil {
		return ""
	}

	text, ok := value.(string)
	if ok {
		return text
	}

	return fmt.Sprint(value)
}
