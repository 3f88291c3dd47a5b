package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"navi/internal/audio"
	"navi/internal/automate"
	"navi/internal/command"
	"navi/internal/config"
	"navi/internal/convo"
	"navi/internal/ipc"
	"navi/internal/notify"
	"navi/internal/proxy"
	"navi/internal/session"
	"navi/internal/stt"
	"navi/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "navi.yaml", "Config file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address (empty for direct)")
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "path", *cfgFile, "err", err)
		os.Exit(1)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if *proxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}
	client := openai.NewClient(opts...)

	if err := audio.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer audio.Terminate()

	deps, cleanup, err := buildDeps(cfg, client)
	if err != nil {
		log.Error("Failed to build pipeline", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	frameDur := time.Duration(cfg.Listen.FrameSize) * time.Second / audio.SampleRate
	sess := session.New(session.Config{
		Threshold:    cfg.Listen.AmplitudeThreshold,
		Silence:      cfg.SilenceDuration(),
		FrameDur:     frameDur,
		MaxUtterance: time.Duration(cfg.Listen.MaxUtteranceSec) * time.Second,
		Script:       cfg.STT.Script,
		ScreenWords:  cfg.Chat.ScreenWords,
	}, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	srv, err := ipc.StartServer(*socket, func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case "listen":
			if err := sess.Start(); err != nil {
				return ipc.Reply{Error: err.Error(), State: sess.StateName()}
			}
			return ipc.Reply{OK: true, State: sess.StateName()}
		case "stop":
			sess.Stop()
			return ipc.Reply{OK: true, State: sess.StateName()}
		case "status":
			return ipc.Reply{OK: true, State: sess.StateName()}
		case "say":
			if err := sess.Say(msg.Text); err != nil {
				return ipc.Reply{Error: err.Error(), State: sess.StateName()}
			}
			return ipc.Reply{OK: true, State: sess.StateName()}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{Error: "unknown command: " + msg.Cmd}
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", *socket)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("Shutting down", "signal", s.String())
}

// buildDeps assembles the session's collaborators from the config. The
// microphone is opened per listening session, not here.
func buildDeps(cfg *config.Config, client openai.Client) (session.Deps, func(), error) {
	deps := session.Deps{
		OpenMic: func() (session.Mic, error) {
			m, err := audio.OpenMic(cfg.Listen.FrameSize)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	}
	cleanup := func() {}

	switch cfg.STT.Backend {
	case "stream":
		sc := stt.NewStreamClient(stt.StreamConfig{
			URL:             cfg.STT.StreamURL,
			MaxReconnects:   cfg.STT.MaxReconnects,
			ReconnectDelay:  time.Duration(cfg.STT.ReconnectDelayMs) * time.Millisecond,
			ConnectTimeout:  time.Duration(cfg.STT.ConnectTimeoutMs) * time.Millisecond,
			MinConnInterval: time.Duration(cfg.STT.MinConnIntervalMs) * time.Millisecond,
		})
		deps.Stream = sc
		cleanup = sc.Close
	case "batch":
		deps.Batch = stt.NewBatch(client, cfg.STT.Language)
	case "local":
		local, err := stt.NewLocal(cfg.STT.WhisperModel, cfg.STT.Language)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Batch = local
		cleanup = func() { local.Close() }
	}

	history := convo.NewHistory(convo.SystemPrompt, cfg.Chat.HistoryCap)
	deps.Brain = convo.NewManager(client, history, convo.Config{
		Model:           cfg.Chat.Model,
		VisionModel:     cfg.Chat.VisionModel,
		MaxTokens:       cfg.Chat.MaxTokens,
		VisionMaxTokens: cfg.Chat.VisionMaxTokens,
		Temperature:     cfg.Chat.Temperature,
	})

	robot := automate.NewRobot(cfg.Exec.SearchURL)
	fx, fy := robot.ScreenCenter()
	deps.Exec = command.NewExecutor(robot, command.ExecConfig{
		SettleOpenType: time.Duration(cfg.Exec.SettleOpenTypeMs) * time.Millisecond,
		SettleOpen:     time.Duration(cfg.Exec.SettleOpenMs) * time.Millisecond,
		FocusX:         fx,
		FocusY:         fy,
	})
	deps.Screen = robot

	if cfg.TTS.Backend != "off" {
		var synth, fallback tts.Synthesizer
		if cfg.TTS.Backend == "espeak" {
			synth = tts.NewESpeakSynth(cfg.STT.Language)
		} else {
			synth = tts.NewOpenAISynth(client, cfg.TTS.Voice, cfg.TTS.Format)
			fallback = tts.NewESpeakSynth(cfg.STT.Language)
		}
		speaker, err := tts.NewSpeaker(synth, fallback, log.Default())
		if err != nil {
			return deps, cleanup, err
		}
		deps.Voice = speaker
		deps.Earcons = notify.NewEarcons(true)
	}

	if cfg.Ducking.Enabled {
		deps.Ducker = audio.NewDucker("navi",
			cfg.Ducking.MinVolume,
			time.Duration(cfg.Ducking.FadeMs)*time.Millisecond)
	}

	return deps, cleanup, nil
}
