// Package drugbank serves the DrugBank Clinical API over MCP. Every request
// needs an API key; without one the tools fail before contacting DrugBank.
package drugbank

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/upstream"
)

// ErrNoAPIKey is returned by every call when DRUGBANK_API_KEY is unset.
var ErrNoAPIKey = errors.New("DrugBank API key not configured, set DRUGBANK_API_KEY")

// Drug is the summary returned by searches.
type Drug struct {
	DrugID    string   `json:"drug_id"`
	Name      string   `json:"name"`
	CASNumber *string  `json:"cas_number"`
	Synonyms  []string `json:"synonyms"`
	Groups    []string `json:"groups"`
}

// DrugDetails extends Drug with the pharmacology sections.
type DrugDetails struct {
	DrugID            string   `json:"drug_id"`
	Name              string   `json:"name"`
	Description       *string  `json:"description"`
	CASNumber         *string  `json:"cas_number"`
	Groups            []string `json:"groups"`
	Indication        *string  `json:"indication"`
	MechanismOfAction *string  `json:"mechanism_of_action"`
	Pharmacodynamics  *string  `json:"pharmacodynamics"`
	Synonyms          []string `json:"synonyms"`
}

type Interaction struct {
	InteractingDrugName string `json:"interacting_drug_name"`
	InteractingDrugID   string `json:"interacting_drug_id"`
	Description         string `json:"description"`
}

type Client struct {
	api        *upstream.Client
	configured bool
	logger     *slog.Logger
}

func NewClient(cfg config.DrugBank, logger *slog.Logger) (*Client, error) {
	opts := []upstream.Option{
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger),
	}
	if cfg.APIKey != "" {
		opts = append(opts, upstream.WithBearerToken(cfg.APIKey))
	} else {
		logger.Warn("DRUGBANK_API_KEY is not set, DrugBank tools will return errors")
	}

	api, err := upstream.New("DrugBank", cfg.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, configured: cfg.APIKey != "", logger: logger}, nil
}

// Search runs a DrugBank drug query. The query syntax supports field
// prefixes such as indication: and category:.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Drug, error) {
	res, err := c.get(ctx, "drugs", url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}

	drugs := []Drug{}
	records(res).ForEach(func(_, d gjson.Result) bool {
		drugs = append(drugs, Drug{
			DrugID:    drugID(d),
			Name:      nameOf(d),
			CASNumber: upstream.OptString(d.Get("cas_number")),
			Synonyms:  upstream.Strings(d.Get("synonyms")),
			Groups:    upstream.Strings(d.Get("groups")),
		})
		return len(drugs) < limit
	})
	return drugs, nil
}

// Drug fetches the full record of one drug. A nil result means DrugBank
// returned an empty body.
func (c *Client) Drug(ctx context.Context, id string) (*DrugDetails, error) {
	res, err := c.get(ctx, upstream.Path("drugs/%s", id), nil)
	if err != nil {
		return nil, err
	}

	d := res
	if data := res.Get("data"); data.IsObject() {
		d = data
	}
	if !d.IsObject() || len(d.Map()) == 0 {
		return nil, nil
	}
	return &DrugDetails{
		DrugID:            id,
		Name:              nameOf(d),
		Description:       upstream.OptString(d.Get("description")),
		CASNumber:         upstream.OptString(d.Get("cas_number")),
		Groups:            upstream.Strings(d.Get("groups")),
		Indication:        upstream.OptString(d.Get("indication")),
		MechanismOfAction: upstream.OptString(d.Get("mechanism_of_action")),
		Pharmacodynamics:  upstream.OptString(d.Get("pharmacodynamics")),
		Synonyms:          upstream.Strings(d.Get("synonyms")),
	}, nil
}

// Interactions lists up to limit drug-drug interactions of id.
func (c *Client) Interactions(ctx context.Context, id string, limit int) ([]Interaction, error) {
	res, err := c.get(ctx, upstream.Path("drugs/%s/interactions", id), nil)
	if err != nil {
		return nil, err
	}

	out := []Interaction{}
	records(res).ForEach(func(_, i gjson.Result) bool {
		other := i.Get("interacting_drug")
		out = append(out, Interaction{
			InteractingDrugName: orDefault(other.Get("name").String(), "Unknown drug"),
			InteractingDrugID:   orDefault(drugID(other), "Unknown ID"),
			Description:         orDefault(i.Get("description").String(), "No description available"),
		})
		return len(out) < limit
	})
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	if !c.configured {
		return gjson.Result{}, ErrNoAPIKey
	}
	return c.api.GetJSON(ctx, path, query)
}

// records accepts both a bare array and the {"data": [...]} envelope.
func records(res gjson.Result) gjson.Result {
	if res.IsArray() {
		return res
	}
	return res.Get("data")
}

func drugID(d gjson.Result) string {
	if id := d.Get("drugbank_id").String(); id != "" {
		return id
	}
	return d.Get("id").String()
}

func nameOf(d gjson.Result) string {
	return orDefault(d.Get("name").String(), "No name")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
