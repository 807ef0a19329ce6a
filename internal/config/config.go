package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/grading"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`
	PublicURL string `yaml:"public_url" validate:"omitempty,url"`
	Quiz      struct {
		Source         string `yaml:"source" validate:"omitempty,oneof=file postgres"`
		CatalogPath    string `yaml:"catalog_path"`
		CatalogName    string `yaml:"catalog_name"`
		SubmissionOpen *bool  `yaml:"submission_open"`
	} `yaml:"quiz"`
	Grading struct {
		OnePointCutoff *float64 `yaml:"one_point_cutoff" validate:"omitempty,gte=0"`
		TwoPointCutoff *float64 `yaml:"two_point_cutoff" validate:"omitempty,gte=0"`
	} `yaml:"grading"`
	Teams []Team `yaml:"teams" validate:"min=1,dive"`
	Admin struct {
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"admin"`
	Storage struct {
		Backend      string `yaml:"backend" validate:"omitempty,oneof=file redis postgres memory"`
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		Key      string `yaml:"key"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
		Format string `yaml:"format" validate:"omitempty,oneof=json text"`
	} `yaml:"log"`
}

// Team accepts either a bare name or a {name, token} mapping.
type Team struct {
	Name  string `yaml:"name" validate:"required"`
	Token string `yaml:"token"`
}

func (t *Team) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Name = node.Value
		return nil
	}
	type plain Team
	return node.Decode((*plain)(t))
}

// Load reads YAML config from path, fills defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML config document.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Quiz.Source == "" {
		c.Quiz.Source = "file"
	}
	if c.Quiz.CatalogPath == "" {
		c.Quiz.CatalogPath = "quiz.yaml"
	}
	if c.Quiz.CatalogName == "" {
		c.Quiz.CatalogName = "default"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.SnapshotPath == "" {
		c.Storage.SnapshotPath = "answers.yaml"
	}
}

var validate = validator.New()

// Validate checks field constraints and the rules that span fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	seen := make(map[string]struct{}, len(c.Teams))
	for _, t := range c.Teams {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate team %q", domain.ErrInvalidConfig, t.Name)
		}
		seen[t.Name] = struct{}{}
	}

	if err := c.Tolerance().Validate(); err != nil {
		return err
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("%w: admin.password or admin.password_hash is required", domain.ErrInvalidConfig)
	}
	if c.Storage.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("%w: storage backend redis needs redis.addr", domain.ErrInvalidConfig)
	}
	if (c.Storage.Backend == "postgres" || c.Quiz.Source == "postgres") && c.Postgres.URL == "" {
		return fmt.Errorf("%w: postgres backend needs postgres.url", domain.ErrInvalidConfig)
	}
	return nil
}

// Tolerance returns the grading cutoffs, falling back to the defaults.
func (c Config) Tolerance() grading.Tolerance {
	tol := grading.DefaultTolerance
	if c.Grading.OnePointCutoff != nil {
		tol.OnePoint = *c.Grading.OnePointCutoff
	}
	if c.Grading.TwoPointCutoff != nil {
		tol.TwoPoint = *c.Grading.TwoPointCutoff
	}
	return tol
}

// TeamList returns the configured teams in order.
func (c Config) TeamList() []domain.Team {
	teams := make([]domain.Team, 0, len(c.Teams))
	for _, t := range c.Teams {
		teams = append(teams, domain.Team{Name: t.Name, Token: t.Token})
	}
	return teams
}

// SubmissionOpen is the initial state of the submission gate (default open).
func (c Config) SubmissionOpen() bool {
	if c.Quiz.SubmissionOpen == nil {
		return true
	}
	return *c.Quiz.SubmissionOpen
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
