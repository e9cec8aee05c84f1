package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mjf789/spam-news/internal/domain"
)

const (
	configPathEnv     = "FRAMECOUNT_CONFIG"
	logLevelEnv       = "FRAMECOUNT_LOG_LEVEL"
	databaseDSNEnv    = "FRAMECOUNT_DATABASE_DSN"
	oracleAPIKeyEnv   = "FRAMECOUNT_ORACLE_API_KEY"
	oracleEndpointEnv = "FRAMECOUNT_ORACLE_ENDPOINT"
	inputAPIKeyEnv    = "FRAMECOUNT_INPUT_API_KEY"
	telegramTokenEnv  = "FRAMECOUNT_TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "FRAMECOUNT_TELEGRAM_CHAT_ID"
)

// Config holds every setting of a counting run.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Input         InputConfig        `yaml:"input"`
	Segmentation  SegmentationConfig `yaml:"segmentation"`
	Demographics  DemographicsConfig `yaml:"demographics"`
	Frames        FrameLexicons      `yaml:"frames"`
	Lexical       LexicalConfig      `yaml:"lexical"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Oracle        OracleConfig       `yaml:"oracle"`
	Counting      CountingConfig     `yaml:"counting"`
	Agreement     AgreementConfig    `yaml:"agreement"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Database      DatabaseConfig     `yaml:"database"`
	Output        OutputConfig       `yaml:"output"`
	Server        ServerConfig       `yaml:"server"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// InputConfig lists article files or directories, or an article API URL.
type InputConfig struct {
	Paths  []string `yaml:"paths"`
	URL    string   `yaml:"url"`
	APIKey string   `yaml:"apiKey"`
}

// SegmentationConfig controls windowing. Lengths are in characters.
// Mode "keyword" centres units on LeadershipTerms and keeps KeywordContext
// sentences on each side; nil KeywordContext keeps the default.
type SegmentationConfig struct {
	Mode             string   `yaml:"mode"`
	WindowSize       int      `yaml:"windowSize"`
	Overlap          int      `yaml:"overlap"`
	MinUnitLength    int      `yaml:"minUnitLength"`
	MinContentLength int      `yaml:"minContentLength"`
	LeadershipTerms  []string `yaml:"leadershipTerms"`
	KeywordContext   *int     `yaml:"keywordContext"`
}

// DemographicsConfig holds the keyword tables of the resolver.
type DemographicsConfig struct {
	CombineScope   string              `yaml:"combineScope"`
	Gender         map[string][]string `yaml:"gender"`
	Race           map[string][]string `yaml:"race"`
	Intersectional []PhraseConfig      `yaml:"intersectional"`
}

// PhraseConfig maps explicit phrases onto a composite target.
type PhraseConfig struct {
	Target   string   `yaml:"target"`
	Subgroup string   `yaml:"subgroup"`
	Terms    []string `yaml:"terms"`
}

// FrameLexicons is frame → tier → terms.
type FrameLexicons map[string]map[string][]string

// LexicalConfig tunes the keyword classifier.
type LexicalConfig struct {
	Weights    map[string]float64 `yaml:"weights"`
	Saturation float64            `yaml:"saturation"`
	Density    bool               `yaml:"density"`
}

// ClassifierConfig selects the detection strategy.
type ClassifierConfig struct {
	Strategy   string             `yaml:"strategy"`
	Thresholds map[string]float64 `yaml:"thresholds"`
	Ensemble   EnsembleConfig     `yaml:"ensemble"`
}

// EnsembleConfig lists weighted member strategies.
type EnsembleConfig struct {
	Policy  string         `yaml:"policy"`
	Members []MemberConfig `yaml:"members"`
}

// MemberConfig is one ensemble member.
type MemberConfig struct {
	Strategy string  `yaml:"strategy"`
	Weight   float64 `yaml:"weight"`
}

// OracleConfig describes the remote scoring service behind the model
// strategy. Kind is "http" for a plain classification endpoint or "chat"
// for an OpenAI-compatible chat completions API.
type OracleConfig struct {
	Kind              string        `yaml:"kind"`
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"apiKey"`
	Model             string        `yaml:"model"`
	SystemPrompt      string        `yaml:"systemPrompt"`
	BatchSize         int           `yaml:"batchSize"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"maxAttempts"`
	InitialBackoff    time.Duration `yaml:"initialBackoff"`
	MaxBackoff        time.Duration `yaml:"maxBackoff"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// CountingConfig selects the overlap deduplication policy. LeadershipOnly
// counts only units that name a leadership role.
type CountingConfig struct {
	Dedup          string `yaml:"dedup"`
	LeadershipOnly bool   `yaml:"leadershipOnly"`
}

// AgreementConfig sets the ICC confidence level.
type AgreementConfig struct {
	ConfidenceLevel float64 `yaml:"confidenceLevel"`
}

// PipelineConfig controls concurrency and the serve-mode interval.
type PipelineConfig struct {
	Workers  int           `yaml:"workers"`
	Interval time.Duration `yaml:"interval"`
}

// DatabaseConfig points at the result store. An empty DSN disables
// persistence; postgres:// DSNs use Postgres, anything else SQLite.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// OutputConfig selects where and how reports are written. An empty Dir
// disables file export.
type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

// ServerConfig configures the read-only results API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML from path (or FRAMECOUNT_CONFIG when path is empty),
// merges it over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		fileCfg, err := Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML without applying defaults. Unknown keys are errors.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(oracleAPIKeyEnv); v != "" {
		c.Oracle.APIKey = v
	}

	if v := os.Getenv(oracleEndpointEnv); v != "" {
		c.Oracle.Endpoint = v
	}

	if v := os.Getenv(inputAPIKeyEnv); v != "" {
		c.Input.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if len(override.Input.Paths) > 0 {
		base.Input.Paths = override.Input.Paths
	}
	if override.Input.URL != "" {
		base.Input.URL = override.Input.URL
	}
	if override.Input.APIKey != "" {
		base.Input.APIKey = override.Input.APIKey
	}

	if override.Segmentation.Mode != "" {
		base.Segmentation.Mode = override.Segmentation.Mode
	}
	if override.Segmentation.WindowSize != 0 {
		base.Segmentation.WindowSize = override.Segmentation.WindowSize
	}
	if override.Segmentation.Overlap != 0 {
		base.Segmentation.Overlap = override.Segmentation.Overlap
	}
	if override.Segmentation.MinUnitLength != 0 {
		base.Segmentation.MinUnitLength = override.Segmentation.MinUnitLength
	}
	if override.Segmentation.MinContentLength != 0 {
		base.Segmentation.MinContentLength = override.Segmentation.MinContentLength
	}
	if len(override.Segmentation.LeadershipTerms) > 0 {
		base.Segmentation.LeadershipTerms = override.Segmentation.LeadershipTerms
	}
	if override.Segmentation.KeywordContext != nil {
		base.Segmentation.KeywordContext = override.Segmentation.KeywordContext
	}

	if override.Demographics.CombineScope != "" {
		base.Demographics.CombineScope = override.Demographics.CombineScope
	}
	if len(override.Demographics.Gender) > 0 {
		base.Demographics.Gender = override.Demographics.Gender
	}
	if len(override.Demographics.Race) > 0 {
		base.Demographics.Race = override.Demographics.Race
	}
	if len(override.Demographics.Intersectional) > 0 {
		base.Demographics.Intersectional = override.Demographics.Intersectional
	}

	// Frame lexicons are replaced per frame so a file can tune one frame.
	if len(override.Frames) > 0 {
		merged := make(FrameLexicons, len(base.Frames))
		for frame, tiers := range base.Frames {
			merged[frame] = tiers
		}
		for frame, tiers := range override.Frames {
			merged[frame] = tiers
		}
		base.Frames = merged
	}

	if len(override.Lexical.Weights) > 0 {
		base.Lexical.Weights = override.Lexical.Weights
	}
	if override.Lexical.Saturation != 0 {
		base.Lexical.Saturation = override.Lexical.Saturation
	}
	if override.Lexical.Density {
		base.Lexical.Density = true
	}

	if override.Classifier.Strategy != "" {
		base.Classifier.Strategy = override.Classifier.Strategy
	}
	if len(override.Classifier.Thresholds) > 0 {
		merged := make(map[string]float64, len(base.Classifier.Thresholds))
		for frame, th := range base.Classifier.Thresholds {
			merged[frame] = th
		}
		for frame, th := range override.Classifier.Thresholds {
			merged[frame] = th
		}
		base.Classifier.Thresholds = merged
	}
	if override.Classifier.Ensemble.Policy != "" {
		base.Classifier.Ensemble.Policy = override.Classifier.Ensemble.Policy
	}
	if len(override.Classifier.Ensemble.Members) > 0 {
		base.Classifier.Ensemble.Members = override.Classifier.Ensemble.Members
	}

	base.Oracle = mergeOracle(base.Oracle, override.Oracle)

	if override.Counting.Dedup != "" {
		base.Counting.Dedup = override.Counting.Dedup
	}
	if override.Counting.LeadershipOnly {
		base.Counting.LeadershipOnly = true
	}

	if override.Agreement.ConfidenceLevel != 0 {
		base.Agreement.ConfidenceLevel = override.Agreement.ConfidenceLevel
	}

	if override.Pipeline.Workers != 0 {
		base.Pipeline.Workers = override.Pipeline.Workers
	}
	if override.Pipeline.Interval != 0 {
		base.Pipeline.Interval = override.Pipeline.Interval
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if len(override.Output.Formats) > 0 {
		base.Output.Formats = override.Output.Formats
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.BaseURL != "" {
		base.Notifications.Telegram.BaseURL = override.Notifications.Telegram.BaseURL
	}

	return base
}

func mergeOracle(base, override OracleConfig) OracleConfig {
	if override.Kind != "" {
		base.Kind = override.Kind
	}
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.SystemPrompt != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	if override.BatchSize != 0 {
		base.BatchSize = override.BatchSize
	}
	if override.Timeout != 0 {
		base.Timeout = override.Timeout
	}
	if override.MaxAttempts != 0 {
		base.MaxAttempts = override.MaxAttempts
	}
	if override.InitialBackoff != 0 {
		base.InitialBackoff = override.InitialBackoff
	}
	if override.MaxBackoff != 0 {
		base.MaxBackoff = override.MaxBackoff
	}
	if override.RequestsPerSecond != 0 {
		base.RequestsPerSecond = override.RequestsPerSecond
	}
	if override.Burst != 0 {
		base.Burst = override.Burst
	}
	return base
}

// Validate checks values that do not depend on a constructed component.
// Component constructors validate the rest.
func (c Config) Validate() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return &domain.ConfigurationError{Field: "logging.format", Reason: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}

	for frame, th := range c.Classifier.Thresholds {
		if _, err := domain.ParseFrame(frame); err != nil {
			return &domain.ConfigurationError{Field: "classifier.thresholds", Reason: err.Error()}
		}
		if th < 0 || th > 1 {
			return &domain.ConfigurationError{Field: "classifier.thresholds." + frame, Reason: "must be within [0, 1]"}
		}
	}

	switch c.Classifier.Strategy {
	case "ensemble":
		if len(c.Classifier.Ensemble.Members) == 0 {
			return &domain.ConfigurationError{Field: "classifier.ensemble.members", Reason: "ensemble needs at least one member"}
		}
		for _, m := range c.Classifier.Ensemble.Members {
			if m.Strategy == "ensemble" {
				return &domain.ConfigurationError{Field: "classifier.ensemble.members", Reason: "ensembles cannot nest"}
			}
			if m.Strategy == "model" {
				if err := c.Oracle.validate(); err != nil {
					return err
				}
			}
		}
	case "model":
		if err := c.Oracle.validate(); err != nil {
			return err
		}
	case "":
		return &domain.ConfigurationError{Field: "classifier.strategy", Reason: "must be set"}
	}

	for _, p := range c.Demographics.Intersectional {
		target, err := domain.ParseTarget(p.Target)
		if err != nil {
			return &domain.ConfigurationError{Field: "demographics.intersectional", Reason: err.Error()}
		}
		if !target.IsComposite() {
			return &domain.ConfigurationError{Field: "demographics.intersectional", Reason: fmt.Sprintf("%s is not a composite target", target)}
		}
		if _, err := domain.ParseSubgroup(p.Subgroup); err != nil {
			return &domain.ConfigurationError{Field: "demographics.intersectional", Reason: err.Error()}
		}
	}
	for key := range c.Demographics.Gender {
		if _, ok := genderKeys[key]; !ok {
			return &domain.ConfigurationError{Field: "demographics.gender", Reason: fmt.Sprintf("unknown gender %q", key)}
		}
	}
	for key := range c.Demographics.Race {
		if _, ok := raceKeys[key]; !ok {
			return &domain.ConfigurationError{Field: "demographics.race", Reason: fmt.Sprintf("unknown race group %q", key)}
		}
	}

	if c.Counting.LeadershipOnly && len(c.Segmentation.LeadershipTerms) == 0 {
		return &domain.ConfigurationError{Field: "counting.leadershipOnly", Reason: "needs segmentation.leadershipTerms"}
	}

	if c.Pipeline.Workers < 0 {
		return &domain.ConfigurationError{Field: "pipeline.workers", Reason: "must not be negative"}
	}
	if c.Pipeline.Interval < 0 {
		return &domain.ConfigurationError{Field: "pipeline.interval", Reason: "must not be negative"}
	}
	if lvl := c.Agreement.ConfidenceLevel; lvl <= 0 || lvl >= 1 {
		return &domain.ConfigurationError{Field: "agreement.confidenceLevel", Reason: "must be within (0, 1)"}
	}
	if t := c.Notifications.Telegram; (t.BotToken == "") != (t.ChatID == "") {
		return &domain.ConfigurationError{Field: "notifications.telegram", Reason: "botToken and chatId must be set together"}
	}
	return nil
}

func (o OracleConfig) validate() error {
	switch o.Kind {
	case "http", "chat":
	default:
		return &domain.ConfigurationError{Field: "oracle.kind", Reason: fmt.Sprintf("unknown oracle kind %q", o.Kind)}
	}
	if o.Endpoint == "" {
		return &domain.ConfigurationError{Field: "oracle.endpoint", Reason: "required by the model strategy"}
	}
	if o.Kind == "chat" && (o.APIKey == "" || o.Model == "") {
		return &domain.ConfigurationError{Field: "oracle", Reason: "chat oracle needs apiKey and model"}
	}
	return nil
}

// GenderAxis maps a gender table key onto the lattice axis.
func GenderAxis(key string) (domain.Gender, bool) {
	g, ok := genderKeys[key]
	return g, ok
}

// RaceAxis maps a race table key onto the lattice axis and subgroup.
func RaceAxis(key string) (domain.Race, domain.Subgroup, bool) {
	r, ok := raceKeys[key]
	return r.race, r.subgroup, ok
}

var genderKeys = map[string]domain.Gender{
	"women": domain.GenderWomen,
	"men":   domain.GenderMen,
}

type raceKey struct {
	race     domain.Race
	subgroup domain.Subgroup
}

var raceKeys = map[string]raceKey{
	"white":           {race: domain.RaceWhite},
	"people_of_color": {race: domain.RacePeopleOfColor},
	"black":           {race: domain.RacePeopleOfColor, subgroup: domain.SubgroupBlack},
	"hispanic":        {race: domain.RacePeopleOfColor, subgroup: domain.SubgroupHispanic},
	"asian":           {race: domain.RacePeopleOfColor, subgroup: domain.SubgroupAsian},
	"indigenous":      {race: domain.RacePeopleOfColor, subgroup: domain.SubgroupIndigenous},
}
