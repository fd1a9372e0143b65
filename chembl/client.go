// Package chembl serves the ChEMBL web services over MCP: molecule, target,
// activity and assay searches against the data API, and structure utilities
// from the Beaker utils API.
package chembl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/upstream"
)

const (
	defaultLimit = 20
	maxLimit     = 1000
)

type Client struct {
	data   *upstream.Client
	utils  *upstream.Client
	logger *slog.Logger
}

func NewClient(cfg config.ChEMBL, logger *slog.Logger) (*Client, error) {
	data, err := upstream.New("ChEMBL", cfg.BaseURL,
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	utils, err := upstream.New("ChEMBL utils", cfg.UtilsURL,
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Client{data: data, utils: utils, logger: logger}, nil
}

// Query is a filtered request against one ChEMBL resource, e.g. molecule or
// activity. Filters use the Django style lookups the API understands, such as
// pref_name__icontains.
type Query struct {
	Resource string
	Filters  url.Values
	Only     []string
	OrderBy  string
	Limit    int
}

// Filter runs q and returns the records of the first page.
func (c *Client) Filter(ctx context.Context, q Query) ([]map[string]any, error) {
	return c.list(ctx, q.Resource+".json", q)
}

// Search runs the free text search endpoint of a resource.
func (c *Client) Search(ctx context.Context, resource, text string, q Query) ([]map[string]any, error) {
	if q.Filters == nil {
		q.Filters = url.Values{}
	}
	q.Filters.Set("q", text)
	return c.list(ctx, resource+"/search.json", q)
}

// Similarity finds molecules whose Tanimoto similarity to query, a SMILES or
// ChEMBL ID, is at least threshold percent.
func (c *Client) Similarity(ctx context.Context, query string, threshold, limit int) ([]map[string]any, error) {
	return c.list(ctx, upstream.Path("similarity/%s/%s.json", query, threshold), Query{
		Only:  []string{"molecule_chembl_id", "pref_name", "similarity"},
		Limit: limit,
	})
}

// Substructure finds molecules containing the SMILES fragment.
func (c *Client) Substructure(ctx context.Context, smiles string, limit int) ([]map[string]any, error) {
	return c.list(ctx, upstream.Path("substructure/%s.json", smiles), Query{
		Only:  []string{"molecule_chembl_id", "pref_name", "molecule_structures"},
		Limit: limit,
	})
}

// Record fetches one object by its identifier, e.g. molecule CHEMBL25.
func (c *Client) Record(ctx context.Context, resource, id string) (map[string]any, error) {
	res, err := c.data.GetJSON(ctx, upstream.Path("%s/%s.json", resource, id), nil)
	if err != nil {
		return nil, err
	}
	m, ok := res.Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ChEMBL returned no %s record for %s", resource, id)
	}
	return m, nil
}

// Status reports the database version and service state.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	res, err := c.data.GetJSON(ctx, "status.json", nil)
	if err != nil {
		return nil, err
	}
	m, _ := res.Value().(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func (c *Client) list(ctx context.Context, path string, q Query) ([]map[string]any, error) {
	params := url.Values{}
	for k, vs := range q.Filters {
		params[k] = vs
	}
	if len(q.Only) > 0 {
		params.Set("only", strings.Join(q.Only, ","))
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	params.Set("limit", strconv.Itoa(clampLimit(q.Limit)))

	res, err := c.data.GetJSON(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return collection(res), nil
}

// collection picks the record array out of a ChEMBL page. Pages hold a single
// array named after the resource next to page_meta.
func collection(res gjson.Result) []map[string]any {
	if res.IsArray() {
		return upstream.Objects(res)
	}
	var records gjson.Result
	res.ForEach(func(key, value gjson.Result) bool {
		if key.String() != "page_meta" && value.IsArray() {
			records = value
			return false
		}
		return true
	})
	return upstream.Objects(records)
}

// Beaker posts body to a utils endpoint and returns the raw reply.
func (c *Client) Beaker(ctx context.Context, endpoint, body string) ([]byte, error) {
	resp, err := c.utils.PostText(ctx, endpoint, body, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// HighlightFragment renders smiles as SVG with the atoms matching fragment
// highlighted.
func (c *Client) HighlightFragment(ctx context.Context, smiles, fragment string) ([]byte, error) {
	resp, err := c.utils.Do(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        "highlightSmilesFragmentSvg",
		Query:       url.Values{"fragment": {fragment}},
		Body:        []byte(smiles),
		ContentType: "text/plain",
		Accept:      "*/*",
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// SMILESToMolfile converts SMILES to a molfile, which most Beaker endpoints
// require as input.
func (c *Client) SMILESToMolfile(ctx context.Context, smiles string) (string, error) {
	body, err := c.Beaker(ctx, "smiles2ctab", smiles)
	if err != nil {
		return "", err
	}
	molfile := string(body)
	if strings.TrimSpace(molfile) == "" {
		return "", fmt.Errorf("ChEMBL utils could not convert SMILES %q to a molfile", smiles)
	}
	return molfile, nil
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}
