package integration

import "context"

const (
	voiceFieldID   = "id"
	voiceFieldName = "name"
)

func newSystemVoicesTrigger(backend Backend) Trigger {
	return Trigger{
		Key:  TriggerSystemVoices,
		Noun: "Voice",
		Display: Display{
			Label:       "List System Voices",
			Description: "Internal trigger for loading voice options.",
			Important:   false,
			Hidden:      true,
		},
		Perform: func(ctx context.Context, bundle Bundle) ([]Record, error) {
			voices, err := backend.ListVoices(ctx, apiKeyFrom(bundle))
			if err != nil {
				return nil, err
			}

			records := make([]Record, 0, len(voices))
			for _, voice := range voices {
				records = append(records, Record{voiceFieldID: voice.ID, voiceFieldName: voice.Name})
			}

			return records, nil
		},
		OutputFields: []Field{
			{Key: voiceFieldID, Label: "Voice ID"},
			{Key: voiceFieldName, Label: "Voice Name"},
		},
		Sample: Record{voiceFieldID: "lively-girl", voiceFieldName: "lively-girl"},
	}
}
