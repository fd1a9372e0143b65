// Package opentargets serves the Open Targets Platform GraphQL API over MCP:
// target, disease and drug search plus target-disease associations.
package opentargets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/upstream"
)

// GraphQLError is returned when the response carries an errors array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "Open Targets GraphQL errors: " + strings.Join(e.Messages, "; ")
}

type Client struct {
	api    *upstream.Client
	logger *slog.Logger
}

func NewClient(cfg config.OpenTargets, logger *slog.Logger) (*Client, error) {
	api, err := upstream.New("Open Targets", cfg.GraphQLURL,
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: logger}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Query runs a GraphQL query and returns its data object.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	resp, err := c.api.PostJSON(ctx, "", graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return gjson.Result{}, err
	}
	res := resp.JSON()
	if !res.IsObject() {
		return gjson.Result{}, fmt.Errorf("Open Targets returned invalid JSON")
	}

	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		gqlErr := &GraphQLError{}
		errs.ForEach(func(_, e gjson.Result) bool {
			msg := e.Get("message").String()
			if msg == "" {
				msg = e.Raw
			}
			gqlErr.Messages = append(gqlErr.Messages, msg)
			return true
		})
		c.logger.Error("Open Targets GraphQL errors", "errors", gqlErr.Messages)
		return gjson.Result{}, gqlErr
	}
	return res.Get("data"), nil
}

// Search runs the platform's full-text search restricted to one entity
// type: target, disease or drug.
func (c *Client) Search(ctx context.Context, entity, queryString string, size int) (gjson.Result, error) {
	data, err := c.Query(ctx, searchQuery, map[string]any{
		"queryString": queryString,
		"entityNames": []string{entity},
		"size":        size,
		"index":       0,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return data.Get("search.hits"), nil
}

// Target returns the target record, or a Result that does not exist.
func (c *Client) Target(ctx context.Context, ensemblID string) (gjson.Result, error) {
	data, err := c.Query(ctx, targetQuery, map[string]any{"ensemblId": ensemblID})
	if err != nil {
		return gjson.Result{}, err
	}
	return object(data.Get("target")), nil
}

func (c *Client) TargetDiseases(ctx context.Context, ensemblID string, size int) (gjson.Result, error) {
	data, err := c.Query(ctx, targetDiseasesQuery, map[string]any{
		"ensemblId": ensemblID,
		"size":      size,
		"index":     0,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return object(data.Get("target")), nil
}

func (c *Client) DiseaseTargets(ctx context.Context, efoID string, size int) (gjson.Result, error) {
	data, err := c.Query(ctx, diseaseTargetsQuery, map[string]any{
		"efoId": efoID,
		"size":  size,
		"index": 0,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return object(data.Get("disease")), nil
}

func (c *Client) Drug(ctx context.Context, chemblID string) (gjson.Result, error) {
	data, err := c.Query(ctx, drugQuery, map[string]any{"chemblId": chemblID})
	if err != nil {
		return gjson.Result{}, err
	}
	return object(data.Get("drug")), nil
}

// object maps a null GraphQL field to a missing Result.
func object(r gjson.Result) gjson.Result {
	if !r.IsObject() {
		return gjson.Result{}
	}
	return r
}
