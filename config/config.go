package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServerAddr      = ":8000"
	DefaultGraphBaseURL    = "https://graph.facebook.com/v18.0"
	DefaultLinkedInBaseURL = "https://api.linkedin.com/v2"
	DefaultImageUploadURL  = "https://freeimage.host/api/1/upload"
)

// Config is the backend configuration. Secrets are usually left out of the
// file and supplied through the environment (see ApplyEnv).
type Config struct {
	ServerAddr      string          `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	LLM             LLMConfig       `json:"llm" yaml:"llm"`
	Store           StoreConfig     `json:"store" yaml:"store"`
	Platforms       PlatformsConfig `json:"platforms" yaml:"platforms"`
	ImageHost       ImageHostConfig `json:"image_host" yaml:"image_host"`
	GraphBaseURL    string          `json:"graph_base_url,omitempty" yaml:"graph_base_url,omitempty"`
	LinkedInBaseURL string          `json:"linkedin_base_url,omitempty" yaml:"linkedin_base_url,omitempty"`
	// DryRun checks credentials but reports "(Simulated)" instead of calling
	// the platform APIs.
	DryRun bool `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

type LLMConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// StoreConfig selects the session store backend. Driver is one of memory,
// sqlite, postgres, redis or mongo.
type StoreConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

type PlatformsConfig struct {
	Instagram InstagramConfig `json:"instagram" yaml:"instagram"`
	Facebook  FacebookConfig  `json:"facebook" yaml:"facebook"`
	LinkedIn  LinkedInConfig  `json:"linkedin" yaml:"linkedin"`
}

type InstagramConfig struct {
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	AccountID   string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
}

type FacebookConfig struct {
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	PageID      string `json:"page_id,omitempty" yaml:"page_id,omitempty"`
}

type LinkedInConfig struct {
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	AuthorURN   string `json:"author_urn,omitempty" yaml:"author_urn,omitempty"`
}

type ImageHostConfig struct {
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	UploadURL string `json:"upload_url,omitempty" yaml:"upload_url,omitempty"`
}

var (
	knownProviders = map[string]bool{"openai": true, "deepseek": true, "gemini": true, "mock": true}
	knownDrivers   = map[string]bool{"memory": true, "sqlite": true, "postgres": true, "redis": true, "mongo": true}
)

// Default returns a configuration that runs without any external service:
// mock LLM, in-memory store.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a JSON or YAML file (by extension), applies the
// environment overrides and defaults, then validates. An empty path yields
// the defaults plus environment.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and the store DSN from the environment.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	switch c.LLM.Provider {
	case "gemini":
		set(&c.LLM.APIKey, "GEMINI_API_KEY")
	case "openai", "deepseek":
		set(&c.LLM.APIKey, "OPENAI_API_KEY")
	case "":
		// provider chosen by whichever key is present
		if v, ok := lookup("GEMINI_API_KEY"); ok && v != "" {
			c.LLM.Provider, c.LLM.APIKey = "gemini", v
		} else if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
			c.LLM.Provider, c.LLM.APIKey = "openai", v
		}
	}
	set(&c.Platforms.Instagram.AccessToken, "INSTAGRAM_ACCESS_TOKEN")
	set(&c.Platforms.Instagram.AccountID, "INSTAGRAM_ACCOUNT_ID")
	set(&c.Platforms.Facebook.AccessToken, "FACEBOOK_ACCESS_TOKEN")
	set(&c.Platforms.Facebook.PageID, "FACEBOOK_PAGE_ID")
	set(&c.Platforms.LinkedIn.AccessToken, "LINKEDIN_ACCESS_TOKEN")
	set(&c.Platforms.LinkedIn.AuthorURN, "LINKEDIN_AUTHOR_URN")
	set(&c.ImageHost.APIKey, "FREEIMAGE_API_KEY")
	set(&c.Store.DSN, "AUTOPOST_STORE_DSN")
	if v, ok := lookup("AUTOPOST_DRY_RUN"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DryRun = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "mock"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = "autopost"
	}
	if c.GraphBaseURL == "" {
		c.GraphBaseURL = DefaultGraphBaseURL
	}
	if c.LinkedInBaseURL == "" {
		c.LinkedInBaseURL = DefaultLinkedInBaseURL
	}
	if c.ImageHost.UploadURL == "" {
		c.ImageHost.UploadURL = DefaultImageUploadURL
	}
}

// Validate checks provider and store settings.
func (c Config) Validate() error {
	if !knownProviders[c.LLM.Provider] {
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	if !knownDrivers[c.Store.Driver] {
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return errors.New("store.dsn is required for driver " + c.Store.Driver)
	}
	if c.LLM.Provider == "deepseek" && c.LLM.BaseURL == "" {
		return errors.New("deepseek requires llm.base_url")
	}
	return nil
}
