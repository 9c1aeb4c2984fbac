package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"kvksnapshot/lib/configutil"
)

const (
	apiKeyEnv      = "OVIO_API_KEY"
	githubTokenEnv = "GITHUB_TOKEN"
)

type TranslateConfig struct {
	Enabled  bool   `json:"enabled"`
	BaseUrl  string `json:"base_url"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	MaxChars int    `json:"max_chars"`
	Timeout  string `json:"timeout"`
}

type PublishConfig struct {
	Enabled bool   `json:"enabled"`
	ApiBase string `json:"api_base"`
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch"`
	// directory inside the repository the snapshots are written to
	Dir string `json:"dir"`
}

type Config struct {
	Cities         []string `json:"cities"`
	PageSize       int      `json:"page_size"`
	MaxRecords     int      `json:"max_records"`
	ItemDelay      string   `json:"item_delay"`
	ProfileTimeout string   `json:"profile_timeout"`
	LedgerPath     string   `json:"ledger_path"`
	OutDir         string   `json:"out_dir"`
	FilePrefix     string   `json:"file_prefix"`
	MapsLinks      bool     `json:"maps_links"`
	RecentDays     int      `json:"recent_days"`
	ApiBase        string   `json:"api_base"`
	// directory for registry request transcripts, empty disables them
	DumpHttp  string          `json:"dump_http"`
	Translate TranslateConfig `json:"translate"`
	Publish   PublishConfig   `json:"publish"`

	// read from the environment, never from the config file
	ApiKey      string `json:"-"`
	GithubToken string `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Cities: []string{
			"Amsterdam", "Rotterdam", "Den Haag", "Utrecht",
			"Eindhoven", "Groningen", "Tilburg", "Almere",
		},
		PageSize:       100,
		ItemDelay:      "200ms",
		ProfileTimeout: "10s",
		LedgerPath:     "seen_kvk.txt",
		OutDir:         ".",
		FilePrefix:     "kvk_snapshot",
		Translate: TranslateConfig{
			Source:   "nl",
			Target:   "en",
			MaxChars: 500,
			Timeout:  "5s",
		},
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return d, nil
}

type durations struct {
	itemDelay        time.Duration
	profileTimeout   time.Duration
	translateTimeout time.Duration
}

func (c Config) durations() (durations, error) {
	var out durations
	var err error
	out.itemDelay, err = parseDuration("item_delay", c.ItemDelay)
	if err != nil {
		return durations{}, err
	}
	out.profileTimeout, err = parseDuration("profile_timeout", c.ProfileTimeout)
	if err != nil {
		return durations{}, err
	}
	out.translateTimeout, err = parseDuration("translate.timeout", c.Translate.Timeout)
	if err != nil {
		return durations{}, err
	}
	return out, nil
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Cities) == 0 {
		errs = append(errs, errors.New("config: cities must not be empty"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("config: page_size must be positive"))
	}
	if c.MaxRecords < 0 {
		errs = append(errs, errors.New("config: max_records must not be negative"))
	}
	if c.LedgerPath == "" {
		errs = append(errs, errors.New("config: ledger_path must not be empty"))
	}
	if c.FilePrefix == "" {
		errs = append(errs, errors.New("config: file_prefix must not be empty"))
	}
	if c.Translate.Enabled && (c.Translate.Source == "" || c.Translate.Target == "") {
		errs = append(errs, errors.New("config: translate needs source and target"))
	}
	if c.Publish.Enabled && (c.Publish.Owner == "" || c.Publish.Repo == "") {
		errs = append(errs, errors.New("config: publish needs owner and repo"))
	}
	if _, err := c.durations(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig reads `path` (plus its .local override) over the defaults and
// pulls secrets from the environment, loading .env first if present.
func LoadConfig(path string) (Config, error) {
	err := configutil.LoadDotenv(".env")
	if err != nil {
		return Config{}, err
	}
	cfg, err := configutil.ReadConfigOr(path, DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg.ApiKey = os.Getenv(apiKeyEnv)
	cfg.GithubToken = os.Getenv(githubTokenEnv)
	return cfg, nil
}
