// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml), layered over the built-in defaults
//  2. Environment variables (fallback), optionally seeded from a .env file
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	engineCfg := cfg.EngineConfig()
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Matching      MatchingConfig      `yaml:"matching"`
	Learning      LearningConfig      `yaml:"learning"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MatchingConfig holds every matching threshold and weight
type MatchingConfig struct {
	ExactAmountTolerance float64 `yaml:"exact_amount_tolerance"`
	ExactDateWindow      int     `yaml:"exact_date_window"`

	FuzzyAmountTolerance     float64 `yaml:"fuzzy_amount_tolerance"`
	FuzzyAmountPercent       float64 `yaml:"fuzzy_amount_percent"`
	FuzzyDateWindow          int     `yaml:"fuzzy_date_window"`
	FuzzySimilarityThreshold float64 `yaml:"fuzzy_similarity_threshold"`

	HighValueMinAmount     float64 `yaml:"high_value_min_amount"`
	HighValueAmountPercent float64 `yaml:"high_value_amount_percent"`
	HighValueDateWindow    int     `yaml:"high_value_date_window"`
	HighValueScoreWindow   int     `yaml:"high_value_score_window"`
	HighValueMerchantScore float64 `yaml:"high_value_merchant_score"`

	LearnedDateWindow      int     `yaml:"learned_date_window"`
	LearnedAmountTolerance float64 `yaml:"learned_amount_tolerance"`

	ForceDateWindow int     `yaml:"force_date_window"`
	ForceScoreCap   float64 `yaml:"force_score_cap"`

	TimeOfDayWindow time.Duration `yaml:"time_of_day_window"`

	RequireDirection bool `yaml:"require_direction"`

	Weights WeightsConfig `yaml:"weights"`

	AutoAcceptThreshold float64 `yaml:"auto_accept_threshold"`
	ReviewThreshold     float64 `yaml:"review_threshold"`
}

// WeightsConfig holds the score component weights
type WeightsConfig struct {
	Amount    float64 `yaml:"amount"`
	Date      float64 `yaml:"date"`
	Merchant  float64 `yaml:"merchant"`
	TimeOfDay float64 `yaml:"time_of_day"`
	Category  float64 `yaml:"category"`
}

// LearningConfig holds alias learning and normalization settings
type LearningConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	SmoothingK               float64 `yaml:"smoothing_k"`
	AliasSimilarityThreshold float64 `yaml:"alias_similarity_threshold"`
	ProvisionalConfidence    float64 `yaml:"provisional_confidence"`
}

// ClassifierConfig holds category rule settings
type ClassifierConfig struct {
	RulesPath            string                      `yaml:"rules_path"` // Empty uses the built-in rules
	FullConfidenceWeight float64                     `yaml:"full_confidence_weight"`
	ContextWeight        float64                     `yaml:"context_weight"`
	CacheSize            int                         `yaml:"cache_size"` // Cached classifications; <= 0 is unbounded
	BusinessEvents       []categorizer.BusinessEvent `yaml:"business_events"`
}

// EngineConfig holds batch execution settings
type EngineConfig struct {
	Workers int `yaml:"workers"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	m := matcher.DefaultConfig()
	mc := merchant.DefaultConfig()
	cc := categorizer.DefaultConfig()

	return &Config{
		Matching: MatchingConfig{
			ExactAmountTolerance:     m.ExactAmountTolerance,
			ExactDateWindow:          m.ExactDateWindow,
			FuzzyAmountTolerance:     m.FuzzyAmountTolerance,
			FuzzyAmountPercent:       m.FuzzyAmountPercent,
			FuzzyDateWindow:          m.FuzzyDateWindow,
			FuzzySimilarityThreshold: m.FuzzySimilarityThreshold,
			HighValueMinAmount:       m.HighValueMinAmount,
			HighValueAmountPercent:   m.HighValueAmountPercent,
			HighValueDateWindow:      m.HighValueDateWindow,
			HighValueScoreWindow:     m.HighValueScoreWindow,
			HighValueMerchantScore:   m.HighValueMerchantScore,
			LearnedDateWindow:        m.LearnedDateWindow,
			LearnedAmountTolerance:   m.LearnedAmountTolerance,
			ForceDateWindow:          m.ForceDateWindow,
			ForceScoreCap:            m.ForceScoreCap,
			TimeOfDayWindow:          m.TimeOfDayWindow,
			RequireDirection:         m.RequireDirection,
			Weights: WeightsConfig{
				Amount:    m.AmountWeight,
				Date:      m.DateWeight,
				Merchant:  m.MerchantWeight,
				TimeOfDay: m.TimeOfDayWeight,
				Category:  m.CategoryWeight,
			},
			AutoAcceptThreshold: m.AutoAcceptThreshold,
			ReviewThreshold:     m.ReviewThreshold,
		},
		Learning: LearningConfig{
			Enabled:                  true,
			SmoothingK:               mc.SmoothingK,
			AliasSimilarityThreshold: mc.AliasSimilarityThreshold,
			ProvisionalConfidence:    mc.ProvisionalConfidence,
		},
		Classifier: ClassifierConfig{
			FullConfidenceWeight: cc.FullConfidenceWeight,
			ContextWeight:        cc.ContextWeight,
			CacheSize:            10000,
		},
		Storage: StorageConfig{
			DatabasePath: "reconciler.db",
		},
		API: APIConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECONCILER_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.Storage.DatabasePath = getEnv("RECONCILER_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Classifier.RulesPath = getEnv("RECONCILER_RULES_PATH", "")
	cfg.Engine.Workers = getEnvInt("RECONCILER_WORKERS", 0)
	cfg.Learning.Enabled = getEnvBool("RECONCILER_LEARNING", true)
	cfg.API.Port = getEnvInt("API_PORT", cfg.API.Port)
	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", "text")
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables.
// A .env file in the working directory is loaded first if present; it never
// overrides variables that are already set.
func LoadOrEnv_WithPath(path string) *Config {
	_ = godotenv.Load()

	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate checks the parts of the config that would make a run meaningless
func (c *Config) Validate() error {
	if err := c.MatcherConfig().Validate(); err != nil {
		return err
	}
	if c.Learning.SmoothingK <= 0 {
		return fmt.Errorf("learning.smoothing_k must be positive, got %v", c.Learning.SmoothingK)
	}
	if c.Learning.AliasSimilarityThreshold <= 0 || c.Learning.AliasSimilarityThreshold > 1 {
		return fmt.Errorf("learning.alias_similarity_threshold must be in (0,1], got %v", c.Learning.AliasSimilarityThreshold)
	}
	return nil
}

// MatcherConfig converts the matching section
func (c *Config) MatcherConfig() matcher.Config {
	m := c.Matching
	return matcher.Config{
		ExactAmountTolerance:     m.ExactAmountTolerance,
		ExactDateWindow:          m.ExactDateWindow,
		FuzzyAmountTolerance:     m.FuzzyAmountTolerance,
		FuzzyAmountPercent:       m.FuzzyAmountPercent,
		FuzzyDateWindow:          m.FuzzyDateWindow,
		FuzzySimilarityThreshold: m.FuzzySimilarityThreshold,
		HighValueMinAmount:       m.HighValueMinAmount,
		HighValueAmountPercent:   m.HighValueAmountPercent,
		HighValueDateWindow:      m.HighValueDateWindow,
		HighValueScoreWindow:     m.HighValueScoreWindow,
		HighValueMerchantScore:   m.HighValueMerchantScore,
		LearnedDateWindow:        m.LearnedDateWindow,
		LearnedAmountTolerance:   m.LearnedAmountTolerance,
		ForceDateWindow:          m.ForceDateWindow,
		ForceScoreCap:            m.ForceScoreCap,
		TimeOfDayWindow:          m.TimeOfDayWindow,
		RequireDirection:         m.RequireDirection,
		AmountWeight:             m.Weights.Amount,
		DateWeight:               m.Weights.Date,
		MerchantWeight:           m.Weights.Merchant,
		TimeOfDayWeight:          m.Weights.TimeOfDay,
		CategoryWeight:           m.Weights.Category,
		AutoAcceptThreshold:      m.AutoAcceptThreshold,
		ReviewThreshold:          m.ReviewThreshold,
	}
}

// MerchantConfig converts the learning section
func (c *Config) MerchantConfig() merchant.Config {
	return merchant.Config{
		AliasSimilarityThreshold: c.Learning.AliasSimilarityThreshold,
		ProvisionalConfidence:    c.Learning.ProvisionalConfidence,
		SmoothingK:               c.Learning.SmoothingK,
	}
}

// CategorizerConfig converts the classifier section
func (c *Config) CategorizerConfig() categorizer.Config {
	return categorizer.Config{
		FullConfidenceWeight: c.Classifier.FullConfidenceWeight,
		ContextWeight:        c.Classifier.ContextWeight,
	}
}

// EngineConfig builds the reconcile engine configuration
func (c *Config) EngineConfig() reconcile.Config {
	return reconcile.Config{
		Matcher:  c.MatcherConfig(),
		Merchant: c.MerchantConfig(),
		Learning: c.Learning.Enabled,
		Workers:  c.Engine.Workers,
	}
}

// Rules loads the configured rule table, or the built-in one
func (c *Config) Rules() (categorizer.RuleTable, error) {
	if c.Classifier.RulesPath == "" {
		return categorizer.DefaultRules(), nil
	}
	return categorizer.LoadRules(c.Classifier.RulesPath)
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(val); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable with a fallback default
func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(val); err == nil {
			return result
		}
	}
	return fallback
}
