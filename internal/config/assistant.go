package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AssistantConfig holds the tunable parameters of the conversation pipeline.
// It is reloadable at runtime; always read it through the holder.
type AssistantConfig struct {
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
	MaxTokens    int32   `mapstructure:"maxTokens"`
	HistoryDepth int     `mapstructure:"historyDepth"`

	CacheTTL         time.Duration `mapstructure:"cacheTTL"`
	DisambigTTL      time.Duration `mapstructure:"disambigTTL"`
	RetrievalTimeout time.Duration `mapstructure:"retrievalTimeout"`
	FeeEngineTimeout time.Duration `mapstructure:"feeEngineTimeout"`
	ModelTimeout     time.Duration `mapstructure:"modelTimeout"`
	FirstTokenWait   time.Duration `mapstructure:"firstTokenWait"`

	DirectoryMaxResults int `mapstructure:"directoryMaxResults"`

	// DirectoryIsolation forbids retrieval calls on directory-routed turns.
	// Must stay on outside of tests.
	DirectoryIsolation bool `mapstructure:"directoryIsolation"`

	Classifier ClassifierFlags `mapstructure:"classifier"`
}

// ClassifierFlags gates individual classification stages.
type ClassifierFlags struct {
	SmallTalk bool `mapstructure:"smallTalk"`
	Directory bool `mapstructure:"directory"`
	CardFees  bool `mapstructure:"cardFees"`
	Retrieval bool `mapstructure:"retrieval"`
}

func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{
		Model:        "gemini-2.0-flash",
		Temperature:  0.2,
		MaxTokens:    1024,
		HistoryDepth: 10,

		CacheTTL:         time.Hour,
		DisambigTTL:      15 * time.Minute,
		RetrievalTimeout: 10 * time.Second,
		FeeEngineTimeout: 5 * time.Second,
		ModelTimeout:     120 * time.Second,
		FirstTokenWait:   20 * time.Second,

		DirectoryMaxResults: 5,
		DirectoryIsolation:  true,

		Classifier: ClassifierFlags{
			SmallTalk: true,
			Directory: true,
			CardFees:  true,
			Retrieval: true,
		},
	}
}

// AssistantConfigHolder serves the current assistant config and hot-reloads
// it when the backing file changes.
type AssistantConfigHolder struct {
	current atomic.Value // holds AssistantConfig
}

func NewAssistantConfigHolder() (*AssistantConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("assistant")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/assist/config")
	v.AddConfigPath("/etc/assist")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAssistantConfig()
	setAssistantDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AssistantConfig
	if err := v.UnmarshalKey("assistant", &cfg); err != nil {
		return nil, err
	}
	if err := validateAssistantConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AssistantConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AssistantConfig
		if err := v.UnmarshalKey("assistant", &updated); err != nil {
			log.Printf("[assistant-config] reload failed: %v", err)
			return
		}
		if err := validateAssistantConfig(updated); err != nil {
			log.Printf("[assistant-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[assistant-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *AssistantConfigHolder) Get() AssistantConfig {
	return h.current.Load().(AssistantConfig)
}

// NewStaticAssistantConfigHolder wraps a fixed config. Test helper.
func NewStaticAssistantConfigHolder(cfg AssistantConfig) *AssistantConfigHolder {
	holder := &AssistantConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func setAssistantDefaults(v *viper.Viper, cfg AssistantConfig) {
	v.SetDefault("assistant.model", cfg.Model)
	v.SetDefault("assistant.temperature", cfg.Temperature)
	v.SetDefault("assistant.maxTokens", cfg.MaxTokens)
	v.SetDefault("assistant.historyDepth", cfg.HistoryDepth)
	v.SetDefault("assistant.cacheTTL", cfg.CacheTTL)
	v.SetDefault("assistant.disambigTTL", cfg.DisambigTTL)
	v.SetDefault("assistant.retrievalTimeout", cfg.RetrievalTimeout)
	v.SetDefault("assistant.feeEngineTimeout", cfg.FeeEngineTimeout)
	v.SetDefault("assistant.modelTimeout", cfg.ModelTimeout)
	v.SetDefault("assistant.firstTokenWait", cfg.FirstTokenWait)
	v.SetDefault("assistant.directoryMaxResults", cfg.DirectoryMaxResults)
	v.SetDefault("assistant.directoryIsolation", cfg.DirectoryIsolation)
	v.SetDefault("assistant.classifier.smallTalk", cfg.Classifier.SmallTalk)
	v.SetDefault("assistant.classifier.directory", cfg.Classifier.Directory)
	v.SetDefault("assistant.classifier.cardFees", cfg.Classifier.CardFees)
	v.SetDefault("assistant.classifier.retrieval", cfg.Classifier.Retrieval)
}

func validateAssistantConfig(cfg AssistantConfig) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return errors.New("assistant.model cannot be empty")
	}
	if cfg.HistoryDepth <= 0 {
		return errors.New("assistant.historyDepth must be positive")
	}
	if cfg.DirectoryMaxResults <= 0 {
		return errors.New("assistant.directoryMaxResults must be positive")
	}
	if cfg.CacheTTL <= 0 || cfg.DisambigTTL <= 0 {
		return errors.New("assistant TTLs must be positive")
	}
	return nil
}
