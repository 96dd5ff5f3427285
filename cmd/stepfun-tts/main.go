// Command stepfun-tts runs the Stepfun integration operations from the shell:
// validate an API key, list the system voices or convert text to speech.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/stepfun-tts/internal/config"
	"github.com/book-expert/stepfun-tts/internal/integration"
	"github.com/book-expert/stepfun-tts/internal/objectstore"
	"github.com/book-expert/stepfun-tts/internal/stepfun"
)

// Flag names.
const (
	flagProbe   = "probe"
	flagVoices  = "voices"
	flagText    = "text"
	flagVoice   = "voice"
	flagModel   = "model"
	flagFormat  = "format"
	flagKey     = "key"
	flagVerbose = "verbose"
)

// Flag descriptions.
const (
	flagProbeDesc   = "Validate the API key and exit"
	flagVoicesDesc  = "List the system voices and exit"
	flagTextDesc    = "Text to convert to speech"
	flagVoiceDesc   = "Voice id (defaults to lively-girl)"
	flagModelDesc   = "Model id (defaults to step-tts-2)"
	flagFormatDesc  = "Output format: mp3, opus, aac, flac, wav or pcm"
	flagKeyDesc     = "Stepfun API key (overrides STEPFUN_API_KEY)"
	flagVerboseDesc = "Enable verbose logging"
)

// Error and log messages.
const (
	errExactlyOneAction   = "exactly one of --probe, --voices or --text must be provided"
	errFailedToInitLogger = "failed to initialize logger: %w"
	logConfigFallback     = "Configuration file not loaded, using environment and defaults: %v"
	logActionFailed       = "%s failed: %v"
)

// File names.
const (
	logFileNameDefault = "stepfun-tts.log"
	logFileNameVerbose = "stepfun-tts-verbose.log"
)

const commandTimeout = 2 * time.Minute

var errExactlyOne = errors.New(errExactlyOneAction)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text    string
	voice   string
	model   string
	format  string
	key     string
	probe   bool
	voices  bool
	verbose bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run(args []string, out io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validateFlags(flags)
	if err != nil {
		return err
	}

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	cliLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf(errFailedToInitLogger, err)
	}
	defer cliLog.Close()

	cfg := loadConfig(cliLog)
	if flags.key != "" {
		cfg.Stepfun.APIKey = flags.key
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	opts := []stepfun.Option{
		stepfun.WithBaseURL(cfg.Stepfun.BaseURL),
		stepfun.WithTimeout(cfg.Timeout()),
		stepfun.WithProductHeaders(cfg.Stepfun.UserAgent, cfg.Stepfun.SourceTag),
	}

	// Only conversion needs somewhere to put binary audio.
	if flags.text != "" {
		natsConnection, store, storeErr := connectStore(cfg)
		if storeErr != nil {
			return storeErr
		}
		defer natsConnection.Close()

		opts = append(opts, stepfun.WithBlobStore(store))
	}

	app := integration.New(stepfun.NewClient(cliLog, opts...))

	err = dispatch(ctx, app, flags, cfg.Stepfun.APIKey, out)
	if err != nil {
		cliLog.Error(logActionFailed, actionName(flags), err)

		return err
	}

	return nil
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("stepfun-tts", flag.ContinueOnError)
	flagSet.BoolVar(&flags.probe, flagProbe, false, flagProbeDesc)
	flagSet.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.StringVar(&flags.model, flagModel, "", flagModelDesc)
	flagSet.StringVar(&flags.format, flagFormat, "", flagFormatDesc)
	flagSet.StringVar(&flags.key, flagKey, "", flagKeyDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// validateFlags requires exactly one action.
func validateFlags(flags appFlags) error {
	actions := 0

	for _, set := range []bool{flags.probe, flags.voices, flags.text != ""} {
		if set {
			actions++
		}
	}

	if actions != 1 {
		return errExactlyOne
	}

	return nil
}

// loadConfig prefers project.toml and falls back to the environment alone.
func loadConfig(cliLog *logger.Logger) *config.Config {
	cfg, err := config.Load(cliLog)
	if err == nil {
		return cfg
	}

	cliLog.Warn(logConfigFallback, err)

	cfg = &config.Config{}

	envErr := config.ApplyEnv(cfg)
	if envErr != nil {
		cliLog.Warn(logConfigFallback, envErr)
	}

	cfg.ApplyDefaults()

	return cfg
}

func connectStore(cfg *config.Config) (*nats.Conn, *objectstore.NatsObjectStore, error) {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(
		jetstreamContext,
		cfg.NATS.AudioObjectStoreBucket,
		objectstore.WithPublicURL(cfg.Gateway.PublicURL),
	)
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to open audio bucket: %w", err)
	}

	return natsConnection, store, nil
}

// dispatch runs the selected integration operation and prints its result as
// JSON.
func dispatch(ctx context.Context, app *integration.App, flags appFlags, apiKey string, out io.Writer) error {
	bundle := integration.Bundle{
		AuthData:  integration.Record{integration.FieldAPIKey: apiKey},
		InputData: integration.Record{},
	}

	var (
		result any
		err    error
	)

	switch {
	case flags.probe:
		result, err = app.Authentication.Test(ctx, bundle)
	case flags.voices:
		result, err = app.Triggers[integration.TriggerSystemVoices].Perform(ctx, bundle)
	default:
		bundle.InputData = integration.Record{
			integration.FieldText:         flags.text,
			integration.FieldVoice:        flags.voice,
			integration.FieldModel:        flags.model,
			integration.FieldOutputFormat: flags.format,
		}
		result, err = app.Creates[integration.CreateConvertTextToSpeech].Perform(ctx, bundle)
	}

	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	err = encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	return nil
}

func actionName(flags appFlags) string {
	switch {
	case flags.probe:
		return "Authentication test"
	case flags.voices:
		return integration.TriggerSystemVoices
	default:
		return integration.CreateConvertTextToSpeech
	}
}
