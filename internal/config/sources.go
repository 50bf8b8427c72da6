package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one content source from the sources file.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"` // "rss" or "hackernews"
	URL     string `yaml:"url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// SourcesConfig is the YAML document listing feeds and search queries.
type SourcesConfig struct {
	Sources       []SourceConfig `yaml:"sources"`
	SearchQueries []string       `yaml:"search_queries,omitempty"`
	Keywords      []string       `yaml:"keywords,omitempty"` // keyword match for non-feed sources
}

// LoadSources reads and validates the sources YAML file.
func LoadSources(path string) (*SourcesConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var cfg SourcesConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}

	enabled := 0
	for _, src := range cfg.Sources {
		if src.Type == "rss" && src.URL == "" {
			return nil, fmt.Errorf("rss source %q is missing a url", src.Name)
		}
		if src.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, fmt.Errorf("sources file %s enables no sources", path)
	}

	return &cfg, nil
}
