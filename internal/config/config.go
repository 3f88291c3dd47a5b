// Package config handles reading navi.yaml and its defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for navi.yaml.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	STT     STTConfig     `yaml:"stt"`
	Chat    ChatConfig    `yaml:"chat"`
	TTS     TTSConfig     `yaml:"tts"`
	Exec    ExecConfig    `yaml:"exec"`
	Ducking DuckingConfig `yaml:"ducking"`
}

// ListenConfig tunes voice-activity detection and capture.
type ListenConfig struct {
	AmplitudeThreshold float64 `yaml:"amplitude_threshold"` // RMS, fraction of full scale
	SilenceMs          int     `yaml:"silence_ms"`          // debounce before end-capture
	MaxUtteranceSec    int     `yaml:"max_utterance_sec"`
	FrameSize          int     `yaml:"frame_size"` // samples per VAD frame
}

// STTConfig selects and tunes the transcription backend.
type STTConfig struct {
	Backend           string `yaml:"backend"` // "stream" | "batch" | "local"
	StreamURL         string `yaml:"stream_url"`
	WhisperModel      string `yaml:"whisper_model"` // path to ggml model, local backend
	Language          string `yaml:"language"`
	Script            string `yaml:"script"` // "latin" | "cyrillic" | "" (no filter)
	MaxReconnects     int    `yaml:"max_reconnects"`
	ReconnectDelayMs  int    `yaml:"reconnect_delay_ms"`
	ConnectTimeoutMs  int    `yaml:"connect_timeout_ms"`
	MinConnIntervalMs int    `yaml:"min_conn_interval_ms"`
}

// ChatConfig tunes the language-model conversation.
type ChatConfig struct {
	Model           string   `yaml:"model"`
	VisionModel     string   `yaml:"vision_model"`
	MaxTokens       int      `yaml:"max_tokens"`
	VisionMaxTokens int      `yaml:"vision_max_tokens"`
	Temperature     float64  `yaml:"temperature"`
	HistoryCap      int      `yaml:"history_cap"` // system message included
	ScreenWords     []string `yaml:"screen_words"`
}

// TTSConfig selects the speech-output backend.
type TTSConfig struct {
	Backend string `yaml:"backend"` // "openai" | "espeak" | "off"
	Voice   string `yaml:"voice"`
	Format  string `yaml:"format"` // "mp3" | "opus"
}

// ExecConfig tunes automation command execution.
type ExecConfig struct {
	SettleOpenTypeMs int    `yaml:"settle_open_type_ms"` // OPEN followed by TYPE
	SettleOpenMs     int    `yaml:"settle_open_ms"`      // OPEN followed by anything else
	SearchURL        string `yaml:"search_url"`
}

// DuckingConfig controls fading other audio streams while speaking.
type DuckingConfig struct {
	Enabled   bool `yaml:"enabled"`
	MinVolume int  `yaml:"min_volume"` // percent
	FadeMs    int  `yaml:"fade_ms"`
}

// Default returns a Config populated with the shipped defaults.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			AmplitudeThreshold: 0.05,
			SilenceMs:          2500,
			MaxUtteranceSec:    30,
			FrameSize:          320, // 20ms @ 16kHz
		},
		STT: STTConfig{
			Backend:           "stream",
			StreamURL:         "ws://localhost:8766",
			Language:          "en",
			Script:            "latin",
			MaxReconnects:     5,
			ReconnectDelayMs:  2000,
			ConnectTimeoutMs:  3000,
			MinConnIntervalMs: 2000,
		},
		Chat: ChatConfig{
			Model:           "gpt-4",
			VisionModel:     "gpt-4o",
			MaxTokens:       500,
			VisionMaxTokens: 1000,
			Temperature:     0.7,
			HistoryCap:      21,
			ScreenWords:     []string{"screen", "screenshot", "what do you see", "look at"},
		},
		TTS: TTSConfig{
			Backend: "openai",
			Voice:   "alloy",
			Format:  "mp3",
		},
		Exec: ExecConfig{
			SettleOpenTypeMs: 3000,
			SettleOpenMs:     2000,
			SearchURL:        "https://www.google.com/search?q=",
		},
		Ducking: DuckingConfig{
			Enabled:   false,
			MinVolume: 20,
			FadeMs:    200,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Listen.AmplitudeThreshold <= 0 || c.Listen.AmplitudeThreshold >= 1 {
		return fmt.Errorf("listen.amplitude_threshold must be in (0, 1), got %v", c.Listen.AmplitudeThreshold)
	}
	if c.Listen.SilenceMs <= 0 {
		return fmt.Errorf("listen.silence_ms must be positive, got %d", c.Listen.SilenceMs)
	}
	if c.Listen.FrameSize <= 0 {
		return fmt.Errorf("listen.frame_size must be positive, got %d", c.Listen.FrameSize)
	}
	switch c.STT.Backend {
	case "stream", "batch", "local":
	default:
		return fmt.Errorf("stt.backend must be stream, batch or local, got %q", c.STT.Backend)
	}
	if c.Chat.HistoryCap < 3 {
		return fmt.Errorf("chat.history_cap must be at least 3, got %d", c.Chat.HistoryCap)
	}
	return nil
}

// SilenceDuration is the VAD debounce window as a time.Duration.
func (c *Config) SilenceDuration() time.Duration {
	return time.Duration(c.Listen.SilenceMs) * time.Millisecond
}
