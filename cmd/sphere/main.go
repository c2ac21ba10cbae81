// Command sphere is a terminal front end for a voice conversation with the
// ema agent. Press space to talk, space again (or stay quiet) to send.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/ema-sphere/core"
	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/audio"
	"github.com/koscakluka/ema-sphere/core/conversations"
	"github.com/koscakluka/ema-sphere/core/events"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
	"github.com/koscakluka/ema-sphere/internal/config"
)

func main() {
	_ = godotenv.Load()

	if err := run(config.Load()); err != nil {
		fmt.Fprintln(os.Stderr, "sphere:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownLogging, err := setupLogging(cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownLogging(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "sphere: failed to flush logs:", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr)
	}

	store, err := newCredentialStore(cfg)
	if err != nil {
		return err
	}

	devices, err := newAudioDevices(cfg)
	if err != nil {
		return err
	}
	defer devices.Close()

	provider, err := newSpeechToTextProvider(cfg)
	if err != nil {
		return err
	}
	stt := speechtotext.NewSession(
		speechtotext.NewTokenClient(cfg.API.BaseURL, store),
		provider,
		speechtotext.WithConnectTimeout(cfg.STT.ConnectTimeout),
		speechtotext.WithTokenReuse(cfg.STT.ReuseToken),
	)

	updates := make(chan struct{}, 1)
	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithAudioInput(devices.input),
		orchestration.WithAudioOutput(devices.output),
		orchestration.WithSpeechToTextClient(stt),
		orchestration.WithAgentClient(agent.NewSession(cfg.API.WSBaseURL, store)),
		orchestration.WithSilenceDelay(cfg.Conversation.SilenceDelay),
		orchestration.WithSilenceThreshold(cfg.Audio.SilenceThreshold),
		orchestration.WithSecureContext(audio.AllSecureEndpoints(cfg.API.BaseURL, cfg.API.WSBaseURL)),
		orchestration.WithEventHandlerV0(orchestration.EventHandlerFuncV0(
			func(events.Event, conversations.ActiveContextV0) {
				select {
				case updates <- struct{}{}:
				default:
				}
			},
		)),
	)

	program := tea.NewProgram(newModel(orchestrator, store), tea.WithAltScreen())

	runErr := make(chan error, 1)
	go func() {
		runErr <- orchestrator.Run(ctx, orchestration.WithCredentialRejectedCallback(func() {
			go program.Send(credentialRejectedMsg{})
		}))
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				program.Quit()
				return
			case <-updates:
				program.Send(refreshMsg{})
			}
		}
	}()

	_, uiErr := program.Run()
	stop()
	orchestrator.Close()

	err = <-runErr
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(uiErr, err)
}
