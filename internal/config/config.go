package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"fgoplanner.app/internal/gamedata"
	"fgoplanner.app/internal/itemstats"
)

type Config struct {
	CatalogDir       string `yaml:"catalog_dir"`
	DataDir          string `yaml:"data_dir"`
	ValidateCatalogs bool   `yaml:"validate_catalogs"`

	Server        Server `yaml:"server"`
	DefaultFilter Filter `yaml:"default_filter"`

	// ItemOrder is the row order of the stats table. Items missing from the
	// list are not shown; an empty list shows every item by id.
	ItemOrder []int `yaml:"item_order"`
}

type Server struct {
	Addr           string  `yaml:"addr"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	EnableMetrics  bool    `yaml:"enable_metrics"`
}

type Filter struct {
	IncludeUnownedServants bool `yaml:"include_unowned_servants"`
	IncludeAppendSkills    bool `yaml:"include_append_skills"`
	IncludeCostumes        bool `yaml:"include_costumes"`
	IncludeSoundtracks     bool `yaml:"include_soundtracks"`
}

func (f Filter) Stats() itemstats.Filter {
	return itemstats.Filter{
		IncludeUnownedServants: f.IncludeUnownedServants,
		IncludeAppendSkills:    f.IncludeAppendSkills,
		IncludeCostumes:        f.IncludeCostumes,
		IncludeSoundtracks:     f.IncludeSoundtracks,
	}
}

func Defaults() Config {
	return Config{
		CatalogDir:       "./configs/gamedata",
		DataDir:          "./data",
		ValidateCatalogs: true,
		Server: Server{
			Addr:           ":8080",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			EnableMetrics:  true,
		},
		DefaultFilter: Filter{IncludeCostumes: true},
	}
}

// Load reads planner.yaml on top of Defaults. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("planner.yaml: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return c, fmt.Errorf("planner.yaml: %w", err)
	}
	return c, nil
}

// Normalize fills zero values from Defaults and rejects settings that cannot
// work.
func (c *Config) Normalize() error {
	d := Defaults()
	if c.CatalogDir == "" {
		c.CatalogDir = d.CatalogDir
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must be >= 0, got %v", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = int(c.Server.RateLimitRPS)
		if c.Server.RateLimitBurst < 1 {
			c.Server.RateLimitBurst = 1
		}
	}
	seen := make(map[int]struct{}, len(c.ItemOrder))
	for _, id := range c.ItemOrder {
		if id <= 0 {
			return fmt.Errorf("item_order: bad item id %d", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("item_order: duplicate item id %d", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// RowOrder returns ItemOrder with QP appended when the list leaves it out.
func (c Config) RowOrder() []int {
	if len(c.ItemOrder) == 0 {
		return nil
	}
	for _, id := range c.ItemOrder {
		if id == gamedata.QPItemID {
			return c.ItemOrder
		}
	}
	out := make([]int, 0, len(c.ItemOrder)+1)
	out = append(out, c.ItemOrder...)
	return append(out, gamedata.QPItemID)
}
