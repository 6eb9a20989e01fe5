package config

import (
	"os"
	"time"

	"github.com/andriantochan/signbench/pkg/signing"
	"github.com/andriantochan/signbench/pkg/workflow"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// 1x1 transparent PNG used as the signature image placeholder.
const defaultSignatureImage = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

// TestParams are the load-test tunables.
type TestParams struct {
	NumberOfUploads int    `yaml:"number_of_uploads"`
	SignPerDoc      int    `yaml:"sign_per_doc"`
	PDFFilePath     string `yaml:"pdf_file_path"`

	CoordX         int    `yaml:"coord_x"`
	CoordY         int    `yaml:"coord_y"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	PageNumber     int    `yaml:"page_number"`
	SignatureImage string `yaml:"signature_image"`

	MaxRetries         int     `yaml:"max_retries"`
	RetryBackoffFactor float64 `yaml:"retry_backoff_factor"`
	RequestTimeoutSecs int     `yaml:"request_timeout"`

	TokenPauseSecs      int `yaml:"token_pause"`
	UploadPauseSecs     int `yaml:"upload_pause"`
	StatusCheckInterval int `yaml:"status_check_interval"`
	MaxStatusChecks     int `yaml:"max_status_checks"`
	CheckpointEvery     int `yaml:"checkpoint_every"`
}

// CheckpointConfig selects and parameterizes the checkpoint backend.
type CheckpointConfig struct {
	Backend string `yaml:"backend"` // "file" (default) or "postgres"
	Path    string `yaml:"path"`    // file backend
	DB      string `yaml:"db"`      // postgres backend connection string
}

// OutputConfig names the artifacts a run leaves behind.
type OutputConfig struct {
	TimingJSON    string `yaml:"timing_json"`
	TimingCSV     string `yaml:"timing_csv"`
	ResponsesJSON string `yaml:"responses_json"`
	ExecutionLog  string `yaml:"execution_log"`
}

// Config is the full signbench configuration: remote endpoints, credentials,
// test parameters and output locations.
type Config struct {
	Endpoints   signing.Endpoints   `yaml:"endpoints"`
	Credentials signing.Credentials `yaml:"credentials"`
	Test        TestParams          `yaml:"test"`
	Checkpoint  CheckpointConfig    `yaml:"checkpoint"`
	Output      OutputConfig        `yaml:"output"`
}

// Default returns the staging-environment configuration the original
// scenario ran against. Credentials are left empty and come from the
// environment.
func Default() *Config {
	return &Config{
		Endpoints: signing.Endpoints{
			AccessToken:     "https://stg-api.tilaka.id/auth",
			Upload:          "https://stg-api.tilaka.id/plus-upload",
			RequestSign:     "https://stg-api.tilaka.id/plus-requestsign",
			AuthHashSign:    "https://stg-api.tilaka.id/signing-authhashsign",
			ExecuteSign:     "https://stg-api.tilaka.id/plus-executesign",
			CheckSignStatus: "https://stg-api.tilaka.id/plus-checksignstatus",
		},
		Test: TestParams{
			NumberOfUploads:     15,
			SignPerDoc:          1,
			PDFFilePath:         "./10-pg-blank.pdf",
			Width:               200,
			Height:              100,
			PageNumber:          1,
			SignatureImage:      defaultSignatureImage,
			MaxRetries:          3,
			RetryBackoffFactor:  1.0,
			RequestTimeoutSecs:  30,
			TokenPauseSecs:      1,
			UploadPauseSecs:     1,
			StatusCheckInterval: 1,
			MaxStatusChecks:     300, // 5 minutes at 1s interval
			CheckpointEvery:     5,
		},
		Checkpoint: CheckpointConfig{
			Backend: "file",
			Path:    "signbench-checkpoint.json",
		},
		Output: OutputConfig{
			TimingJSON:    "timing_results.json",
			TimingCSV:     "timing_results.csv",
			ResponsesJSON: "response_bodies.json",
			ExecutionLog:  "execution.log",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides for credentials (.env is honored when present).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	// Credentials never live in the YAML checked into a repo; .env or the
	// process environment supplies them.
	_ = godotenv.Load()
	applyEnv(&cfg.Credentials.ClientID, "TILAKA_CLIENT_ID")
	applyEnv(&cfg.Credentials.ClientSecret, "TILAKA_CLIENT_SECRET")
	applyEnv(&cfg.Credentials.Username, "TILAKA_USERNAME")
	applyEnv(&cfg.Credentials.Password, "TILAKA_PASSWORD")
	applyEnv(&cfg.Credentials.OTPPin, "TILAKA_OTP_PIN")
	applyEnv(&cfg.Checkpoint.DB, "CHECKPOINT_DB")

	return cfg, nil
}

// Validate catches the misconfigurations that would otherwise surface as
// confusing mid-run API failures.
func (c *Config) Validate() error {
	if c.Credentials.ClientID == "" || c.Credentials.ClientSecret == "" {
		return errors.New("missing client credentials (TILAKA_CLIENT_ID / TILAKA_CLIENT_SECRET)")
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return errors.New("missing signer credentials (TILAKA_USERNAME / TILAKA_PASSWORD)")
	}
	if c.Test.NumberOfUploads <= 0 {
		return errors.New("number_of_uploads must be positive")
	}
	if c.Checkpoint.Backend != "file" && c.Checkpoint.Backend != "postgres" {
		return errors.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend)
	}
	if c.Checkpoint.Backend == "postgres" && c.Checkpoint.DB == "" {
		return errors.New("postgres checkpoint backend requires a connection string (CHECKPOINT_DB)")
	}
	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Test.RequestTimeoutSecs) * time.Second
}

// WorkflowOptions maps the configuration onto orchestrator options.
func (c *Config) WorkflowOptions() workflow.Options {
	return workflow.Options{
		PDFPath:         c.Test.PDFFilePath,
		NumUploads:      c.Test.NumberOfUploads,
		SignPerDoc:      c.Test.SignPerDoc,
		UserIdentifier:  c.Credentials.Username,
		SignatureImage:  c.Test.SignatureImage,
		CoordX:          c.Test.CoordX,
		CoordY:          c.Test.CoordY,
		Width:           c.Test.Width,
		Height:          c.Test.Height,
		PageNumber:      c.Test.PageNumber,
		MaxRetries:      c.Test.MaxRetries,
		BackoffFactor:   c.Test.RetryBackoffFactor,
		TokenPause:      time.Duration(c.Test.TokenPauseSecs) * time.Second,
		UploadPause:     time.Duration(c.Test.UploadPauseSecs) * time.Second,
		PollInterval:    time.Duration(c.Test.StatusCheckInterval) * time.Second,
		MaxStatusChecks: c.Test.MaxStatusChecks,
		CheckpointEvery: c.Test.CheckpointEvery,
	}
}

func applyEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
