package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanavoice/hana/pkg/audio"
	"github.com/hanavoice/hana/pkg/bridge"
	"github.com/hanavoice/hana/pkg/config"
	"github.com/hanavoice/hana/pkg/configutil"
	"github.com/hanavoice/hana/pkg/events"
	"github.com/hanavoice/hana/pkg/extraction"
	"github.com/hanavoice/hana/pkg/logging"
	"github.com/hanavoice/hana/pkg/prompt"
	"github.com/hanavoice/hana/pkg/realtime"
	"github.com/hanavoice/hana/pkg/runner"
	"github.com/hanavoice/hana/pkg/telephony"
	"github.com/hanavoice/hana/pkg/transcript"
)

type realtimeSettings struct {
	APIKey             string   `mapstructure:"api_key"`
	URL                string   `mapstructure:"url"`
	Voice              string   `mapstructure:"voice"`
	InputSampleRate    *int     `mapstructure:"input_sample_rate"`
	OutputSampleRate   *int     `mapstructure:"output_sample_rate"`
	TranscriptionModel string   `mapstructure:"transcription_model"`
	VADThreshold       *float64 `mapstructure:"vad_threshold"`
	PrefixPaddingMS    *int     `mapstructure:"prefix_padding_ms"`
	SilenceDurationMS  *int     `mapstructure:"silence_duration_ms"`
}

type extractionSettings struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float64 `mapstructure:"temperature"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	callTo := flag.String("call-to", "", "place an outbound call to this number at startup")
	callFrom := flag.String("call-from", "", "caller number for the outbound call")
	flag.Parse()

	if err := run(*configPath, *callTo, *callFrom); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, callTo, callFrom string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logging.SetDefault(cfg.LogLevel, cfg.LogFormat)

	var telCfg telephony.Config
	if err := configutil.DecodeSettings(cfg.Transport.Settings, &telCfg); err != nil {
		return fmt.Errorf("transport settings: %w", err)
	}
	var rtCfg realtimeSettings
	if err := configutil.DecodeSettings(cfg.Realtime.Settings, &rtCfg); err != nil {
		return fmt.Errorf("realtime settings: %w", err)
	}
	var exCfg extractionSettings
	if err := configutil.DecodeSettings(cfg.Extraction.Settings, &exCfg); err != nil {
		return fmt.Errorf("extraction settings: %w", err)
	}

	store := extraction.NewStore(cfg.Storage.CallLogsDir)
	var completer extraction.Completer
	if exCfg.APIKey != "" {
		client := extraction.NewOpenAIClient(exCfg.APIKey, valueOr(exCfg.Model, "gpt-4o-mini"))
		if exCfg.BaseURL != "" {
			client.BaseURL = exCfg.BaseURL
		}
		client.Temperature = configutil.FloatValue(exCfg.Temperature, 0.3)
		completer = client
	} else {
		slog.Warn("extraction_disabled", "reason", "no api key configured")
	}
	pipe := extraction.NewPipeline(store, completer)
	promptBuilder := prompt.NewBuilder(cfg.BasePrompt, cfg.MemoryDir)

	modelInput := audio.Format{Encoding: audio.EncodingPCM16, SampleRate: configutil.IntValue(rtCfg.InputSampleRate, 16000)}
	modelOutput := audio.Format{Encoding: audio.EncodingPCM16, SampleRate: configutil.IntValue(rtCfg.OutputSampleRate, 24000)}

	noticeDialer := telephony.NewDialer(telCfg)
	handler := func(ctx context.Context, leg *telephony.StreamLeg, traceID string) {
		sess := bridge.New(bridge.Config{
			TraceID:           traceID,
			TelephonyFormat:   audio.MuLaw8k,
			ModelInputFormat:  modelInput,
			ModelOutputFormat: modelOutput,
			FallbackNotice: func(ctx context.Context, callID string) {
				if err := noticeDialer.RedirectSay(ctx, callID, telCfg.FallbackNotice); err != nil {
					slog.Error("fallback_notice_failed", "trace_id", traceID, "call_sid", callID, "error", err.Error())
				}
			},
			Hooks: bridge.Hooks{
				OnCallEnd: func(ctx context.Context, conversation []transcript.Turn) {
					result, err := pipe.ProcessCallEnd(ctx, conversation)
					if err != nil {
						slog.Error("post_call_processing_failed", "trace_id", traceID, "error", err.Error())
						return
					}
					slog.Info("post_call_processed",
						"trace_id", traceID,
						"log_ref", result.LogRef,
						"requests", len(result.Requests),
					)
				},
			},
		})
		dial := func(ctx context.Context) (bridge.Leg, error) {
			client, err := realtime.Dial(ctx, realtime.Config{
				URL:    rtCfg.URL,
				APIKey: rtCfg.APIKey,
				Session: events.SessionConfig{
					Instructions:       promptBuilder.Build(),
					Voice:              valueOr(rtCfg.Voice, "shimmer"),
					InputAudioFormat:   "pcm16",
					OutputAudioFormat:  "pcm16",
					TranscriptionModel: rtCfg.TranscriptionModel,
					TurnDetection: events.TurnDetection{
						Type:              "server_vad",
						Threshold:         configutil.FloatValue(rtCfg.VADThreshold, 0.5),
						PrefixPaddingMS:   configutil.IntValue(rtCfg.PrefixPaddingMS, 300),
						SilenceDurationMS: configutil.IntValue(rtCfg.SilenceDurationMS, 500),
					},
				},
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		}
		_ = sess.Run(ctx, leg, dial)
	}

	transport := telephony.New(telCfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lr := runner.NewLifecycleRunner(transport, runner.Hooks{
		OnStart: func() {
			if err := transport.Start(ctx); err != nil {
				slog.Error("transport_start_failed", "error", err.Error())
				stop()
				return
			}
			if callTo != "" {
				go placeCall(ctx, telCfg, callTo, callFrom)
			}
		},
	}, 10*time.Second)

	slog.Info("hana_starting", "environment", cfg.Environment, "addr", telCfg.ServerAddr)
	return lr.Run(ctx)
}

func placeCall(ctx context.Context, cfg telephony.Config, to, from string) {
	dialer := telephony.NewDialer(cfg)
	sid, err := dialer.Dial(ctx, to, from)
	if err != nil {
		slog.Error("outbound_call_failed", "to", to, "error", err.Error())
		return
	}
	slog.Info("outbound_call_placed", "to", to, "call_sid", sid)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
