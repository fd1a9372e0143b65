package pubchem

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mhpenta/biochem-mcp/tools"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 100
)

type nameQuery struct {
	Name       string `json:"name" jsonschema:"Name of the chemical compound, e.g. aspirin"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of compounds to return (default 5, max 100)"`
}

type smilesQuery struct {
	SMILES     string `json:"smiles" jsonschema:"SMILES notation of the chemical compound"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of compounds to return (default 5, max 100)"`
}

type cidQuery struct {
	CID int `json:"cid" jsonschema:"PubChem Compound ID (CID)"`
}

type advancedQuery struct {
	Name       string `json:"name,omitempty" jsonschema:"Name of the chemical compound"`
	SMILES     string `json:"smiles,omitempty" jsonschema:"SMILES notation of the chemical compound"`
	Formula    string `json:"formula,omitempty" jsonschema:"Molecular formula, e.g. C9H8O4"`
	CID        int    `json:"cid,omitempty" jsonschema:"PubChem Compound ID (CID)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of compounds to return (default 5, max 100)"`
}

type structureQuery struct {
	CID        int    `json:"cid" jsonschema:"PubChem Compound ID (CID)"`
	RecordType string `json:"record_type,omitempty" jsonschema:"Coordinate set to download: 2d or 3d (default 2d)"`
}

// Tools returns the PubChem tool set backed by client.
func Tools(client *Client, logger *slog.Logger) []tools.Tool {
	h := &handlers{client: client, logger: logger}
	return []tools.Tool{
		tools.NewTool(
			"search_pubchem_by_name",
			"Search for chemical compounds on PubChem using a compound name. Returns compound records with identifiers, computed properties and synonyms.",
			h.searchByName,
			tools.WithVerb("Searching PubChem"),
			tools.WithTimeout(60*time.Second),
		),
		tools.NewTool(
			"search_pubchem_by_smiles",
			"Search for chemical compounds on PubChem using a SMILES string.",
			h.searchBySMILES,
			tools.WithVerb("Searching PubChem"),
			tools.WithTimeout(60*time.Second),
		),
		tools.NewTool(
			"get_pubchem_compound_by_cid",
			"Fetch detailed information about a chemical compound using its PubChem CID.",
			h.compoundByCID,
			tools.WithVerb("Fetching PubChem compound"),
			tools.WithTimeout(30*time.Second),
		),
		tools.NewTool(
			"search_pubchem_advanced",
			"Perform an advanced search for compounds on PubChem. Provide one of cid, smiles, name or formula; when several are given they are tried in that order.",
			h.advanced,
			tools.WithVerb("Searching PubChem"),
			tools.WithTimeout(60*time.Second),
		),
		tools.NewTool(
			"download_pubchem_structure",
			"Download the SDF structure file of a PubChem compound with 2D or 3D coordinates.",
			h.structure,
			tools.WithVerb("Downloading PubChem structure"),
			tools.WithTimeout(60*time.Second),
		),
	}
}

type handlers struct {
	client *Client
	logger *slog.Logger
}

func (h *handlers) searchByName(ctx context.Context, q nameQuery) ([]Compound, error) {
	name, err := tools.Required("name", q.Name)
	if err != nil {
		return nil, err
	}
	limit := tools.Clamp(q.MaxResults, defaultMaxResults, 1, maxMaxResults)
	h.logger.Info("searching PubChem by name", "name", name, "max_results", limit)
	return h.client.SearchByName(ctx, name, limit)
}

func (h *handlers) searchBySMILES(ctx context.Context, q smilesQuery) ([]Compound, error) {
	smiles, err := tools.Required("smiles", q.SMILES)
	if err != nil {
		return nil, err
	}
	limit := tools.Clamp(q.MaxResults, defaultMaxResults, 1, maxMaxResults)
	h.logger.Info("searching PubChem by SMILES", "smiles", smiles, "max_results", limit)
	return h.client.SearchBySMILES(ctx, smiles, limit)
}

func (h *handlers) compoundByCID(ctx context.Context, q cidQuery) (*Compound, error) {
	if q.CID <= 0 {
		return nil, tools.InvalidParamsf("cid must be a positive integer, got %d", q.CID)
	}
	h.logger.Info("fetching PubChem compound", "cid", q.CID)
	return h.client.CompoundByCID(ctx, q.CID)
}

func (h *handlers) advanced(ctx context.Context, q advancedQuery) ([]Compound, error) {
	limit := tools.Clamp(q.MaxResults, defaultMaxResults, 1, maxMaxResults)
	h.logger.Info("advanced PubChem search",
		"cid", q.CID, "smiles", q.SMILES, "name", q.Name, "formula", q.Formula, "max_results", limit)

	switch {
	case q.CID > 0:
		cmp, err := h.client.CompoundByCID(ctx, q.CID)
		if err != nil {
			return nil, err
		}
		return []Compound{*cmp}, nil
	case strings.TrimSpace(q.SMILES) != "":
		return h.client.SearchBySMILES(ctx, strings.TrimSpace(q.SMILES), limit)
	case strings.TrimSpace(q.Name) != "":
		return h.client.SearchByName(ctx, strings.TrimSpace(q.Name), limit)
	case strings.TrimSpace(q.Formula) != "":
		return h.client.SearchByFormula(ctx, strings.TrimSpace(q.Formula), limit)
	}
	return nil, tools.NewInvalidParamsError("at least one search parameter (name, smiles, formula, or cid) must be provided")
}

func (h *handlers) structure(ctx context.Context, q structureQuery) (*Structure, error) {
	if q.CID <= 0 {
		return nil, tools.InvalidParamsf("cid must be a positive integer, got %d", q.CID)
	}
	recordType := strings.ToLower(strings.TrimSpace(q.RecordType))
	switch recordType {
	case "":
		recordType = "2d"
	case "2d", "3d":
	default:
		return nil, tools.InvalidParamsf("record_type must be 2d or 3d, got %q", q.RecordType)
	}
	h.logger.Info("downloading PubChem structure", "cid", q.CID, "record_type", recordType)
	return h.client.Structure(ctx, q.CID, recordType)
}
