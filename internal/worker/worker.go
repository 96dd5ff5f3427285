// Package worker provides a NATS worker that converts stored text to speech.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/stepfun-tts/internal/core"
	"github.com/book-expert/stepfun-tts/internal/pagetext"
)

const handleMessageTimeout = 120 * time.Second

var (
	// ErrSubjectEmpty indicates that no subject was given to subscribe to.
	ErrSubjectEmpty = errors.New("subject cannot be empty")
	// ErrAPIKeyEmpty indicates that the worker has no API key to call the upstream with.
	ErrAPIKeyEmpty = errors.New("api key cannot be empty")
	// ErrTextKeyEmpty indicates that an event did not reference any stored text.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrNothingToSpeak indicates a page with no speakable text after cleanup.
	ErrNothingToSpeak = errors.New("page has no speakable text")
)

// NatsWorker listens for TextProcessedEvents on a NATS subject, synthesizes
// the referenced text and replies with an AudioChunkCreatedEvent whose
// AudioKey is the audio URL.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	synthesizer    core.SpeechSynthesizer
	apiKey         string
	cleaner        *pagetext.Cleaner
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. apiKey must already
// be normalized and validated.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	synthesizer core.SpeechSynthesizer,
	apiKey string,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	if apiKey == "" {
		return nil, ErrAPIKeyEmpty
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		synthesizer:    synthesizer,
		apiKey:         apiKey,
		cleaner:        pagetext.NewCleaner(),
		log:            log,
	}, nil
}

// Run starts the worker and blocks until ctx is done, then drains the
// subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.System("Listening for speech jobs on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	result, processErr := w.processSpeechJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process speech job for workflow %s: %v", event.Header.WorkflowID, processErr)

		return
	}

	header := event.Header
	header.EventID = uuid.NewString()
	header.Timestamp = time.Now()

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     header,
		AudioKey:   result.AudioURL,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	w.log.Info("Speech for workflow %s page %d/%d stored at %s",
		event.Header.WorkflowID, event.PageNumber, event.TotalPages, result.AudioURL)
}

// processSpeechJob downloads the page text, cleans it and converts it.
func (w *NatsWorker) processSpeechJob(
	ctx context.Context,
	event *events.TextProcessedEvent,
) (*core.SpeechResult, error) {
	textData, err := w.store.Download(ctx, event.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	text := w.cleaner.Clean(string(textData))
	if text == "" {
		return nil, fmt.Errorf("%w: key '%s'", ErrNothingToSpeak, event.TextKey)
	}

	result, err := w.synthesizer.Synthesize(ctx, w.apiKey, core.SpeechRequest{
		Text:         text,
		Voice:        event.Voice,
		Model:        "",
		OutputFormat: "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert text to speech: %w", err)
	}

	return result, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
