package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	WebPort  int            `yaml:"web_port"`
	Web      WebConfig      `yaml:"web"`
	Google   GoogleConfig   `yaml:"google"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Sources  []SourceConfig `yaml:"sources"`
}

type WebConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt hash; auth disabled when empty
}

type GoogleConfig struct {
	Credentials string `yaml:"credentials"` // path to service account JSON
	Language    string `yaml:"language"`    // transcription language
}

type GeminiConfig struct {
	APIKey        string `yaml:"api_key"` // highlight generation disabled when empty
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model"`
}

type PipelineConfig struct {
	ChunkDuration float64 `yaml:"chunk_duration"` // seconds per chunk
	AmplitudeRate int     `yaml:"amplitude_rate"` // loudness samples per second
	FetchTimeout  int     `yaml:"fetch_timeout"`  // seconds; cap on external fetch work
	ProbeTimeout  int     `yaml:"probe_timeout"`  // seconds; cap on ffprobe
	ChunksDir     string  `yaml:"chunks_dir"`
	AudioDir      string  `yaml:"audio_dir"`
	IndexDB       string  `yaml:"index_db"` // sqlite artifact index
	ScoreLogDir   string  `yaml:"scorelog_dir"`
}

type ScoringConfig struct {
	WindowSize    int                 `yaml:"window_size"`    // trailing observations considered
	KeywordWeight float64             `yaml:"keyword_weight"` // base weight for the newest chunk
	DecayFactor   float64             `yaml:"decay_factor"`   // per-step attenuation, 0 < f < 1
	Events        map[string][]string `yaml:"events"`         // event type → keyword set
	Thresholds    map[string]float64  `yaml:"thresholds"`     // event type → trigger score
	CooldownSec   int                 `yaml:"cooldown"`       // seconds between triggers per event
}

type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config with the stock pipeline and scoring parameters.
// The scoring constants match the original tuning; the decayed terms are
// sensitive to the window/factor pairing.
func Defaults() *Config {
	return &Config{
		WebPort: 8899,
		Gemini: GeminiConfig{
			Model:         "gemini-3-flash-preview",
			FallbackModel: "gemini-2.0-flash",
		},
		Google: GoogleConfig{
			Language: "en-US",
		},
		Pipeline: PipelineConfig{
			ChunkDuration: 5,
			AmplitudeRate: 100,
			FetchTimeout:  30,
			ProbeTimeout:  10,
			ChunksDir:     "chunks",
			AudioDir:      "audio",
			IndexDB:       "streamscout.db",
			ScoreLogDir:   "scorelogs",
		},
		Scoring: ScoringConfig{
			WindowSize:    5,
			KeywordWeight: 1000,
			DecayFactor:   0.2,
			Events: map[string][]string{
				"touchdown": {"touchdown", "watchdown", "countdown"},
			},
			CooldownSec: 30,
		},
	}
}

func (c *Config) Validate() error {
	if c.Pipeline.ChunkDuration <= 0 {
		return fmt.Errorf("pipeline.chunk_duration must be > 0, got %v", c.Pipeline.ChunkDuration)
	}
	if c.Pipeline.AmplitudeRate <= 0 {
		return fmt.Errorf("pipeline.amplitude_rate must be > 0, got %d", c.Pipeline.AmplitudeRate)
	}
	if c.Scoring.WindowSize <= 0 {
		return fmt.Errorf("scoring.window_size must be > 0, got %d", c.Scoring.WindowSize)
	}
	if c.Scoring.DecayFactor <= 0 || c.Scoring.DecayFactor >= 1 {
		return fmt.Errorf("scoring.decay_factor must be in (0,1), got %v", c.Scoring.DecayFactor)
	}
	return nil
}
