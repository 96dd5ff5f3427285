// Package integration describes the Stepfun text-to-speech integration to the
// host automation platform: the authentication scheme, the hidden voice
// lookup that feeds the voice dropdown, and the convert action.
package integration

import (
	"context"

	"github.com/book-expert/stepfun-tts/internal/core"
)

// Version is the integration version reported to the host platform.
const Version = "1.0.0"

// Keys of the operations exposed to the host platform.
const (
	TriggerSystemVoices       = "systemVoices"
	CreateConvertTextToSpeech = "convertTextToSpeech"
)

// Field types understood by the host platform.
const (
	FieldTypeString   = "string"
	FieldTypeText     = "text"
	FieldTypePassword = "password"
	FieldTypeFile     = "file"
)

// Record is a flat key/value object exchanged with the host platform.
type Record map[string]any

// Bundle carries the stored credential and the user's input for one call.
type Bundle struct {
	AuthData  Record
	InputData Record
}

// Field describes one input or output field.
type Field struct {
	Key      string
	Label    string
	Type     string
	Required bool
	Computed bool
	Default  string
	Choices  map[string]string
	// Dynamic names the trigger that populates the choices, as
	// "<trigger>.<value field>.<label field>".
	Dynamic  string
	HelpText string
}

// Display holds the human-facing texts of an operation.
type Display struct {
	Label       string
	Description string
	Important   bool
	Hidden      bool
}

// Authentication describes how a credential is collected and validated.
type Authentication struct {
	Type            string
	Fields          []Field
	ConnectionLabel string
	Test            func(ctx context.Context, bundle Bundle) (Record, error)
}

// Trigger is a read operation returning a list of records.
type Trigger struct {
	Key          string
	Noun         string
	Display      Display
	Perform      func(ctx context.Context, bundle Bundle) ([]Record, error)
	OutputFields []Field
	Sample       Record
}

// Create is a write operation returning one record.
type Create struct {
	Key          string
	Noun         string
	Display      Display
	Perform      func(ctx context.Context, bundle Bundle) (Record, error)
	InputFields  []Field
	OutputFields []Field
	Sample       Record
}

// Backend performs the upstream calls behind the operations.
type Backend interface {
	Authenticate(ctx context.Context, rawAPIKey string) (string, error)
	ListVoices(ctx context.Context, apiKey string) ([]core.Voice, error)
	core.SpeechSynthesizer
}

// App is the full integration definition.
type App struct {
	Version        string
	Authentication Authentication
	Triggers       map[string]Trigger
	Creates        map[string]Create
}

// New assembles the integration around backend.
func New(backend Backend) *App {
	voices := newSystemVoicesTrigger(backend)
	convert := newConvertTextToSpeech(backend)

	return &App{
		Version:        Version,
		Authentication: newAuthentication(backend),
		Triggers:       map[string]Trigger{voices.Key: voices},
		Creates:        map[string]Create{convert.Key: convert},
	}
}
