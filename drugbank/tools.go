package drugbank

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mhpenta/biochem-mcp/tools"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 100
)

var drugIDPattern = regexp.MustCompile(`^DB\d{5}$`)

type searchQuery struct {
	Query      string `json:"query" jsonschema:"Search text for drug names"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of drugs to return (default 10, max 100)"`
}

type indicationQuery struct {
	Indication string `json:"indication" jsonschema:"Medical condition or disease"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of drugs to return (default 10, max 100)"`
}

type categoryQuery struct {
	Category   string `json:"category" jsonschema:"Drug category, e.g. antibiotic or antidepressant"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of drugs to return (default 10, max 100)"`
}

type drugQuery struct {
	DrugID string `json:"drug_id" jsonschema:"DrugBank ID, e.g. DB00001"`
}

type interactionQuery struct {
	DrugID     string `json:"drug_id" jsonschema:"DrugBank ID, e.g. DB00001"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of interactions to return (default 10, max 100)"`
}

// DrugList is returned by the search tools. Message explains an empty list.
type DrugList struct {
	Drugs   []Drug `json:"drugs"`
	Message string `json:"message,omitempty"`
}

type InteractionList struct {
	DrugID       string        `json:"drug_id"`
	Interactions []Interaction `json:"interactions"`
	Message      string        `json:"message,omitempty"`
}

// Tools returns the DrugBank tool set backed by client.
func Tools(client *Client, logger *slog.Logger) []tools.Tool {
	h := &handlers{client: client, logger: logger}
	opts := []tools.ToolOption{
		tools.WithVerb("Searching DrugBank"),
		tools.WithTimeout(30 * time.Second),
	}
	return []tools.Tool{
		tools.NewTool("search_drugs",
			"Search DrugBank for drugs matching the query.",
			h.search, opts...),
		tools.NewTool("get_drug_details",
			"Get detailed information about a drug by its DrugBank ID, including indication, mechanism of action and pharmacodynamics.",
			h.details, opts...),
		tools.NewTool("find_drugs_by_indication",
			"Find drugs used to treat a medical condition.",
			h.byIndication, opts...),
		tools.NewTool("find_drugs_by_category",
			"Find drugs in a drug category.",
			h.byCategory, opts...),
		tools.NewTool("get_drug_interactions",
			"Get drug-drug interactions for a drug by its DrugBank ID.",
			h.interactions, opts...),
	}
}

type handlers struct {
	client *Client
	logger *slog.Logger
}

func (h *handlers) search(ctx context.Context, q searchQuery) (*DrugList, error) {
	query, err := tools.Required("query", q.Query)
	if err != nil {
		return nil, err
	}
	return h.list(ctx, query, q.MaxResults, "No drugs found for your query")
}

func (h *handlers) byIndication(ctx context.Context, q indicationQuery) (*DrugList, error) {
	indication, err := tools.Required("indication", q.Indication)
	if err != nil {
		return nil, err
	}
	return h.list(ctx, "indication:"+indication, q.MaxResults, "No drugs found for indication: "+indication)
}

func (h *handlers) byCategory(ctx context.Context, q categoryQuery) (*DrugList, error) {
	category, err := tools.Required("category", q.Category)
	if err != nil {
		return nil, err
	}
	return h.list(ctx, "category:"+category, q.MaxResults, "No drugs found for category: "+category)
}

func (h *handlers) list(ctx context.Context, query string, maxResults int, empty string) (*DrugList, error) {
	limit := tools.Clamp(maxResults, defaultMaxResults, 1, maxMaxResults)
	h.logger.Info("searching DrugBank", "query", query, "max_results", limit)

	drugs, err := h.client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := &DrugList{Drugs: drugs}
	if len(drugs) == 0 {
		out.Message = empty
	}
	return out, nil
}

func (h *handlers) details(ctx context.Context, q drugQuery) (*DrugDetails, error) {
	id, err := normalizeDrugID(q.DrugID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching DrugBank drug", "drug_id", id)

	drug, err := h.client.Drug(ctx, id)
	if err != nil {
		return nil, err
	}
	if drug == nil {
		return nil, fmt.Errorf("no drug found with ID: %s", id)
	}
	return drug, nil
}

func (h *handlers) interactions(ctx context.Context, q interactionQuery) (*InteractionList, error) {
	id, err := normalizeDrugID(q.DrugID)
	if err != nil {
		return nil, err
	}
	limit := tools.Clamp(q.MaxResults, defaultMaxResults, 1, maxMaxResults)
	h.logger.Info("fetching DrugBank interactions", "drug_id", id, "max_results", limit)

	interactions, err := h.client.Interactions(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	out := &InteractionList{DrugID: id, Interactions: interactions}
	if len(interactions) == 0 {
		out.Message = "No interactions found for drug with ID: " + id
	}
	return out, nil
}

// normalizeDrugID accepts db00001 and returns DB00001.
func normalizeDrugID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !drugIDPattern.MatchString(id) {
		return "", tools.InvalidParamsf("drug_id must be DB followed by 5 digits, e.g. DB00001, got %q", raw)
	}
	return id, nil
}
