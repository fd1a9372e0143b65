// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Upstream tunes the outbound HTTP client shared by every server.
type Upstream struct {
	Timeout   time.Duration `env:"MCP_UPSTREAM_TIMEOUT" envDefault:"30s"`
	MaxTries  uint          `env:"MCP_UPSTREAM_MAX_TRIES" envDefault:"3"`
	UserAgent string        `env:"MCP_USER_AGENT" envDefault:"biochem-mcp/1.0"`
}

// Auth protects the HTTP and SSE transports. No keys means no auth.
type Auth struct {
	APIKeys    []string `env:"MCP_API_KEYS" envSeparator:","`
	HeaderType string   `env:"MCP_AUTH_HEADER" envDefault:"bearer"`
}

type PubChem struct {
	Upstream Upstream
	Auth     Auth
	BaseURL  string `env:"PUBCHEM_BASE_URL" envDefault:"https://pubchem.ncbi.nlm.nih.gov/rest/pug"`
}

type ChEMBL struct {
	Upstream Upstream
	Auth     Auth
	BaseURL  string `env:"CHEMBL_BASE_URL" envDefault:"https://www.ebi.ac.uk/chembl/api/data"`
	UtilsURL string `env:"CHEMBL_UTILS_URL" envDefault:"https://www.ebi.ac.uk/chembl/api/utils"`
}

type DrugBank struct {
	Upstream Upstream
	Auth     Auth
	BaseURL  string `env:"DRUGBANK_BASE_URL" envDefault:"https://api.drugbank.com/v1"`
	APIKey   string `env:"DRUGBANK_API_KEY"`
}

type SureChEMBL struct {
	Upstream Upstream
	Auth     Auth
	BaseURL  string `env:"SURECHEMBL_BASE_URL" envDefault:"https://www.surechembl.org/api"`
}

type PDB struct {
	Upstream  Upstream
	Auth      Auth
	DataURL   string `env:"PDB_DATA_URL" envDefault:"https://data.rcsb.org/rest/v1"`
	SearchURL string `env:"PDB_SEARCH_URL" envDefault:"https://search.rcsb.org/rcsbsearch/v2/query"`
	FilesURL  string `env:"PDB_FILES_URL" envDefault:"https://files.rcsb.org/download"`
}

type OpenTargets struct {
	Upstream   Upstream
	Auth       Auth
	GraphQLURL string `env:"OPENTARGETS_GRAPHQL_URL" envDefault:"https://api.platform.opentargets.org/api/v4/graphql"`
}

// Load parses T from the process environment.
func Load[T any]() (T, error) {
	cfg, err := env.ParseAs[T]()
	if err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, validate(&cfg)
}

// LoadFrom parses T from the given variables only.
func LoadFrom[T any](environ map[string]string) (T, error) {
	cfg, err := env.ParseAsWithOptions[T](env.Options{Environment: environ})
	if err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, validate(&cfg)
}

type validator interface {
	validate() error
}

func validate(cfg any) error {
	if v, ok := cfg.(validator); ok {
		return v.validate()
	}
	return nil
}

func (u Upstream) validate() error {
	if u.Timeout <= 0 {
		return fmt.Errorf("MCP_UPSTREAM_TIMEOUT must be positive, got %s", u.Timeout)
	}
	if u.MaxTries == 0 {
		return fmt.Errorf("MCP_UPSTREAM_MAX_TRIES must be at least 1")
	}
	return nil
}

func (a Auth) validate() error {
	switch strings.ToLower(a.HeaderType) {
	case "bearer", "api-key":
		return nil
	}
	return fmt.Errorf("MCP_AUTH_HEADER must be bearer or api-key, got %q", a.HeaderType)
}

func (c *PubChem) validate() error     { return common(c.Upstream, c.Auth) }
func (c *ChEMBL) validate() error      { return common(c.Upstream, c.Auth) }
func (c *DrugBank) validate() error    { return common(c.Upstream, c.Auth) }
func (c *SureChEMBL) validate() error  { return common(c.Upstream, c.Auth) }
func (c *PDB) validate() error         { return common(c.Upstream, c.Auth) }
func (c *OpenTargets) validate() error { return common(c.Upstream, c.Auth) }

func common(u Upstream, a Auth) error {
	if err := u.validate(); err != nil {
		return err
	}
	return a.validate()
}
