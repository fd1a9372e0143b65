// Package surechembl serves the SureChEMBL patent chemistry API over MCP:
// patent search, document contents with chemical annotations, chemical
// lookups, structure images and bulk exports.
package surechembl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/upstream"
)

// DefaultOffices is the patent office filter applied to searches.
const DefaultOffices = "US OR EP OR WO OR JP OR CN"

type Client struct {
	api    *upstream.Client
	logger *slog.Logger
}

func NewClient(cfg config.SureChEMBL, logger *slog.Logger) (*Client, error) {
	api, err := upstream.New("SureChEMBL", cfg.BaseURL,
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: logger}, nil
}

// SearchResult is one page of a patent text search.
type SearchResult struct {
	Status       string           `json:"status"`
	Query        string           `json:"query"`
	FullQuery    string           `json:"full_query"`
	TotalHits    int              `json:"total_hits"`
	Page         int              `json:"page"`
	ItemsPerPage int              `json:"items_per_page"`
	Documents    []map[string]any `json:"documents"`
	Message      string           `json:"message"`
}

// SearchPatents runs a content search limited to the given patent offices.
// SureChEMBL pages by number, so offset is rounded down to a page boundary.
func (c *Client) SearchPatents(ctx context.Context, query string, limit, offset int, offices string) (*SearchResult, error) {
	page := offset/limit + 1
	full := fmt.Sprintf("%s AND ((pnctry:(%s)))", query, offices)

	res, err := c.api.GetJSON(ctx, "search/content", url.Values{
		"query":        {full},
		"page":         {strconv.Itoa(page)},
		"itemsPerPage": {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	if status := res.Get("status").String(); status != "OK" {
		msg := res.Get("error_message").String()
		if msg == "" {
			msg = res.Get("message").String()
		}
		return nil, fmt.Errorf("SureChEMBL search failed with status %q: %s", status, msg)
	}

	hits := int(res.Get("data.results.total_hits").Int())
	return &SearchResult{
		Status:       "OK",
		Query:        query,
		FullQuery:    full,
		TotalHits:    hits,
		Page:         page,
		ItemsPerPage: limit,
		Documents:    upstream.Objects(res.Get("data.results.documents")),
		Message:      fmt.Sprintf("Found %d patents matching '%s'", hits, query),
	}, nil
}

// Document returns the full response for a patent document's contents.
func (c *Client) Document(ctx context.Context, documentID string) (gjson.Result, error) {
	return c.api.GetJSON(ctx, upstream.Path("document/%s/contents", documentID), nil)
}

func (c *Client) Family(ctx context.Context, patentID string) (gjson.Result, error) {
	return c.api.GetJSON(ctx, upstream.Path("document/%s/family/members", patentID), nil)
}

func (c *Client) ChemicalsByName(ctx context.Context, name string) (gjson.Result, error) {
	return c.api.GetJSON(ctx, upstream.Path("chemical/name/%s", name), nil)
}

func (c *Client) ChemicalByID(ctx context.Context, chemicalID string) (gjson.Result, error) {
	return c.api.GetJSON(ctx, upstream.Path("chemical/id/%s", chemicalID), nil)
}

// Chemical returns the first record of a chemical lookup, or a Result that
// does not exist when SureChEMBL knows no such chemical.
func (c *Client) Chemical(ctx context.Context, chemicalID string) (gjson.Result, error) {
	res, err := c.ChemicalByID(ctx, chemicalID)
	if err != nil {
		if upstream.IsNotFound(err) {
			return gjson.Result{}, nil
		}
		return gjson.Result{}, err
	}
	chem := res.Get("data.0")
	if !chem.IsObject() {
		return gjson.Result{}, nil
	}
	return chem, nil
}

// Image renders a structure as PNG.
func (c *Client) Image(ctx context.Context, structure string, height, width int) ([]byte, error) {
	resp, err := c.api.GetRaw(ctx, "service/chemical/image", url.Values{
		"structure": {structure},
		"height":    {strconv.Itoa(height)},
		"width":     {strconv.Itoa(width)},
	}, "image/png")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Export downloads the zipped export of up to 100 chemicals.
func (c *Client) Export(ctx context.Context, chemicalIDs []string, outputType, kind string) ([]byte, error) {
	resp, err := c.api.GetRaw(ctx, "export/chemistry", url.Values{
		"chemIDs":     {strings.Join(chemicalIDs, ",")},
		"output_type": {outputType},
		"kind":        {kind},
	}, "application/zip")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// object converts a response into a plain map, wrapping non-object bodies.
func object(res gjson.Result) map[string]any {
	if m, ok := upstream.Value(res).(map[string]any); ok {
		return m
	}
	return map[string]any{"data": upstream.Value(res)}
}
