// Package pdb serves the RCSB Protein Data Bank over MCP using the Search,
// Data and Files APIs.
package pdb

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/upstream"
)

// sequenceTimeout bounds each sequence search attempt. Sequence alignment
// runs far longer than attribute searches on the RCSB side.
const sequenceTimeout = 60 * time.Second

type Client struct {
	data     *upstream.Client
	search   *upstream.Client
	sequence *upstream.Client
	files    *upstream.Client
	logger   *slog.Logger
}

func NewClient(cfg config.PDB, logger *slog.Logger) (*Client, error) {
	opts := []upstream.Option{
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger),
	}
	data, err := upstream.New("RCSB PDB", cfg.DataURL, opts...)
	if err != nil {
		return nil, err
	}
	search, err := upstream.New("RCSB PDB search", cfg.SearchURL, opts...)
	if err != nil {
		return nil, err
	}
	sequence, err := upstream.New("RCSB PDB search", cfg.SearchURL,
		append(opts, upstream.WithTimeout(max(cfg.Upstream.Timeout, sequenceTimeout)))...)
	if err != nil {
		return nil, err
	}
	files, err := upstream.New("RCSB PDB files", cfg.FilesURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{data: data, search: search, sequence: sequence, files: files, logger: logger}, nil
}

// Hit is one entry matched by a search.
type Hit struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
}

type SearchResults struct {
	TotalCount int   `json:"total_count"`
	ResultSet  []Hit `json:"result_set"`
}

// Search posts a search request. The search service answers 204 when
// nothing matches, which is returned as an empty result set.
func (c *Client) Search(ctx context.Context, req *searchRequest) (*SearchResults, error) {
	return c.post(ctx, c.search, req)
}

// SearchSequence is Search with the longer per-attempt timeout sequence
// queries need.
func (c *Client) SearchSequence(ctx context.Context, req *searchRequest) (*SearchResults, error) {
	return c.post(ctx, c.sequence, req)
}

func (c *Client) post(ctx context.Context, api *upstream.Client, req *searchRequest) (*SearchResults, error) {
	resp, err := api.PostJSON(ctx, "", req)
	if err != nil {
		return nil, err
	}
	out := &SearchResults{ResultSet: []Hit{}}
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		return out, nil
	}

	res := resp.JSON()
	out.TotalCount = int(res.Get("total_count").Int())
	res.Get("result_set").ForEach(func(_, h gjson.Result) bool {
		out.ResultSet = append(out.ResultSet, Hit{
			Identifier: h.Get("identifier").String(),
			Score:      h.Get("score").Float(),
		})
		return true
	})
	return out, nil
}

// Entry fetches the core entry record.
func (c *Client) Entry(ctx context.Context, id string) (gjson.Result, error) {
	return c.data.GetJSON(ctx, upstream.Path("core/entry/%s", id), nil)
}

func (c *Client) Validation(ctx context.Context, id string) (gjson.Result, error) {
	return c.data.GetJSON(ctx, upstream.Path("validation/residual_summary/%s", id), nil)
}

func (c *Client) NonpolymerEntity(ctx context.Context, id, entityID string) (gjson.Result, error) {
	return c.data.GetJSON(ctx, upstream.Path("core/nonpolymer_entity/%s/%s", id, entityID), nil)
}

// File downloads a file from the archive, e.g. 4hhb.cif.
func (c *Client) File(ctx context.Context, name string) (*upstream.Response, error) {
	return c.files.GetRaw(ctx, upstream.Path("%s", name), nil, "*/*")
}
