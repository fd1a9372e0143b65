package opentargets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/tools"
	"github.com/mhpenta/biochem-mcp/upstream"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 100
)

var (
	ensemblPattern = regexp.MustCompile(`^ENSG\d{11}$`)
	diseasePattern = regexp.MustCompile(`^[A-Za-z]+_[A-Za-z0-9]+$`)
	chemblPattern  = regexp.MustCompile(`^CHEMBL\d+$`)
)

// Inputs accept both snake_case and camelCase argument names, since clients
// send either.

type searchInput struct {
	Query         string `json:"query" jsonschema:"Search text"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (default 10, max 100)"`
	MaxResultsAlt int    `json:"maxResults,omitempty" jsonschema:"Alias of max_results"`
}

type targetInput struct {
	TargetID    string `json:"target_id,omitempty" jsonschema:"Ensembl gene ID, e.g. ENSG00000157764"`
	TargetIDAlt string `json:"targetId,omitempty" jsonschema:"Alias of target_id"`
}

type targetAssociationsInput struct {
	TargetID      string `json:"target_id,omitempty" jsonschema:"Ensembl gene ID, e.g. ENSG00000112164"`
	TargetIDAlt   string `json:"targetId,omitempty" jsonschema:"Alias of target_id"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (default 10, max 100)"`
	MaxResultsAlt int    `json:"maxResults,omitempty" jsonschema:"Alias of max_results"`
}

type diseaseAssociationsInput struct {
	DiseaseID     string `json:"disease_id,omitempty" jsonschema:"Disease ID, e.g. MONDO_0005148 or EFO_0000311"`
	DiseaseIDAlt  string `json:"diseaseId,omitempty" jsonschema:"Alias of disease_id"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (default 10, max 100)"`
	MaxResultsAlt int    `json:"maxResults,omitempty" jsonschema:"Alias of max_results"`
}

type drugInput struct {
	DrugID    string `json:"drug_id,omitempty" jsonschema:"ChEMBL ID of the drug, e.g. CHEMBL25"`
	DrugIDAlt string `json:"drugId,omitempty" jsonschema:"Alias of drug_id"`
}

type TargetHit struct {
	TargetID string `json:"target_id"`
	Name     string `json:"name"`
	Entity   string `json:"entity"`
}

type TargetSearch struct {
	Targets []TargetHit `json:"targets"`
	Message string      `json:"message,omitempty"`
}

type DiseaseHit struct {
	DiseaseID   string  `json:"disease_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type DiseaseSearch struct {
	Diseases []DiseaseHit `json:"diseases"`
	Message  string       `json:"message,omitempty"`
}

type DrugHit struct {
	DrugID string `json:"drug_id"`
	Name   string `json:"name"`
}

type DrugSearch struct {
	Drugs   []DrugHit `json:"drugs"`
	Message string    `json:"message,omitempty"`
}

type TargetDetails struct {
	TargetID      string   `json:"target_id"`
	Name          string   `json:"name"`
	Symbol        string   `json:"symbol"`
	Biotype       *string  `json:"biotype"`
	Chromosome    *string  `json:"chromosome"`
	Start         *int     `json:"start"`
	End           *int     `json:"end"`
	GeneFunctions []string `json:"gene_functions"`
}

type DiseaseAssociation struct {
	DiseaseID        string  `json:"disease_id"`
	DiseaseName      string  `json:"disease_name"`
	AssociationScore float64 `json:"association_score"`
}

type TargetDiseases struct {
	TargetID     string               `json:"target_id"`
	Symbol       string               `json:"symbol"`
	Associations []DiseaseAssociation `json:"associations"`
	Message      string               `json:"message,omitempty"`
}

type TargetAssociation struct {
	TargetID         string  `json:"target_id"`
	TargetSymbol     string  `json:"target_symbol"`
	TargetName       string  `json:"target_name"`
	AssociationScore float64 `json:"association_score"`
}

type DiseaseTargets struct {
	DiseaseID    string              `json:"disease_id"`
	DiseaseName  string              `json:"disease_name"`
	Associations []TargetAssociation `json:"associations"`
	Message      string              `json:"message,omitempty"`
}

type Mechanism struct {
	MechanismOfAction string   `json:"mechanism_of_action"`
	ActionType        *string  `json:"action_type"`
	Targets           []string `json:"targets"`
}

type DrugDetails struct {
	DrugID             string      `json:"drug_id"`
	Name               string      `json:"name"`
	DrugType           *string     `json:"drug_type"`
	Description        *string     `json:"description"`
	MaxClinicalPhase   *float64    `json:"max_clinical_phase"`
	IsApproved         bool        `json:"is_approved"`
	HasBeenWithdrawn   bool        `json:"has_been_withdrawn"`
	Synonyms           []string    `json:"synonyms"`
	TradeNames         []string    `json:"trade_names"`
	MechanismsOfAction []Mechanism `json:"mechanisms_of_action"`
}

// Tools returns the Open Targets tool set backed by client.
func Tools(client *Client, logger *slog.Logger) []tools.Tool {
	h := &handlers{client: client, logger: logger}
	opts := []tools.ToolOption{
		tools.WithVerb("Querying Open Targets"),
		tools.WithTimeout(30 * time.Second),
	}
	return []tools.Tool{
		tools.NewTool("search_targets",
			"Search Open Targets for gene targets by name or symbol.",
			h.searchTargets, opts...),
		tools.NewTool("get_target_details",
			"Get details of a target by Ensembl gene ID: symbol, biotype, genomic location and functions.",
			h.targetDetails, opts...),
		tools.NewTool("search_diseases",
			"Search Open Targets for diseases by name.",
			h.searchDiseases, opts...),
		tools.NewTool("get_target_associated_diseases",
			"Get the diseases most strongly associated with a target.",
			h.targetDiseases, opts...),
		tools.NewTool("get_disease_associated_targets",
			"Get the targets most strongly associated with a disease.",
			h.diseaseTargets, opts...),
		tools.NewTool("search_drugs",
			"Search Open Targets for drugs by name.",
			h.searchDrugs, opts...),
		tools.NewTool("get_drug_details",
			"Get details of a drug by ChEMBL ID: type, clinical phase and mechanisms of action.",
			h.drugDetails, opts...),
	}
}

type handlers struct {
	client *Client
	logger *slog.Logger
}

func (h *handlers) search(ctx context.Context, entity string, in searchInput) (gjson.Result, error) {
	query, err := tools.Required("query", in.Query)
	if err != nil {
		return gjson.Result{}, err
	}
	size := maxResults(in.MaxResults, in.MaxResultsAlt)
	h.logger.Info("searching Open Targets", "entity", entity, "query", query, "max_results", size)
	return h.client.Search(ctx, entity, query, size)
}

func (h *handlers) searchTargets(ctx context.Context, in searchInput) (*TargetSearch, error) {
	hits, err := h.search(ctx, "target", in)
	if err != nil {
		return nil, err
	}
	out := &TargetSearch{Targets: []TargetHit{}}
	hits.ForEach(func(_, hit gjson.Result) bool {
		out.Targets = append(out.Targets, TargetHit{
			TargetID: or(hit.Get("id").String(), "Unknown ID"),
			Name:     or(hit.Get("name").String(), "No name"),
			Entity:   or(hit.Get("entity").String(), "Unknown entity"),
		})
		return true
	})
	if len(out.Targets) == 0 {
		out.Message = "No targets found for your query"
	}
	return out, nil
}

func (h *handlers) searchDiseases(ctx context.Context, in searchInput) (*DiseaseSearch, error) {
	hits, err := h.search(ctx, "disease", in)
	if err != nil {
		return nil, err
	}
	out := &DiseaseSearch{Diseases: []DiseaseHit{}}
	hits.ForEach(func(_, hit gjson.Result) bool {
		out.Diseases = append(out.Diseases, DiseaseHit{
			DiseaseID:   or(hit.Get("id").String(), "Unknown ID"),
			Name:        or(hit.Get("name").String(), "No name"),
			Description: upstream.OptString(hit.Get("description")),
		})
		return true
	})
	if len(out.Diseases) == 0 {
		out.Message = "No diseases found for your query"
	}
	return out, nil
}

func (h *handlers) searchDrugs(ctx context.Context, in searchInput) (*DrugSearch, error) {
	hits, err := h.search(ctx, "drug", in)
	if err != nil {
		return nil, err
	}
	out := &DrugSearch{Drugs: []DrugHit{}}
	hits.ForEach(func(_, hit gjson.Result) bool {
		out.Drugs = append(out.Drugs, DrugHit{
			DrugID: or(hit.Get("id").String(), "Unknown ID"),
			Name:   or(hit.Get("name").String(), "No name"),
		})
		return true
	})
	if len(out.Drugs) == 0 {
		out.Message = "No drugs found for your query"
	}
	return out, nil
}

func (h *handlers) targetDetails(ctx context.Context, in targetInput) (*TargetDetails, error) {
	id, err := normalizeTargetID(in.TargetID, in.TargetIDAlt)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching Open Targets target", "target_id", id)

	t, err := h.client.Target(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Exists() {
		return nil, fmt.Errorf("no target found with ID: %s", id)
	}

	loc := t.Get("genomicLocation")
	return &TargetDetails{
		TargetID:      id,
		Name:          or(t.Get("approvedName").String(), "No name"),
		Symbol:        or(t.Get("approvedSymbol").String(), "Unknown symbol"),
		Biotype:       upstream.OptString(t.Get("biotype")),
		Chromosome:    upstream.OptString(loc.Get("chromosome")),
		Start:         upstream.OptInt(loc.Get("start")),
		End:           upstream.OptInt(loc.Get("end")),
		GeneFunctions: functions(t.Get("functionDescriptions")),
	}, nil
}

func (h *handlers) targetDiseases(ctx context.Context, in targetAssociationsInput) (*TargetDiseases, error) {
	id, err := normalizeTargetID(in.TargetID, in.TargetIDAlt)
	if err != nil {
		return nil, err
	}
	size := maxResults(in.MaxResults, in.MaxResultsAlt)
	h.logger.Info("fetching diseases associated with target", "target_id", id, "max_results", size)

	t, err := h.client.TargetDiseases(ctx, id, size)
	if err != nil {
		return nil, err
	}
	if !t.Exists() {
		return nil, fmt.Errorf("no target found with ID: %s", id)
	}

	out := &TargetDiseases{
		TargetID:     id,
		Symbol:       t.Get("approvedSymbol").String(),
		Associations: []DiseaseAssociation{},
	}
	t.Get("associatedDiseases.rows").ForEach(func(_, row gjson.Result) bool {
		out.Associations = append(out.Associations, DiseaseAssociation{
			DiseaseID:        or(row.Get("disease.id").String(), "Unknown ID"),
			DiseaseName:      or(row.Get("disease.name").String(), "No name"),
			AssociationScore: row.Get("score").Float(),
		})
		return true
	})
	if len(out.Associations) == 0 {
		out.Message = "No diseases associated with target ID: " + id
	}
	return out, nil
}

func (h *handlers) diseaseTargets(ctx context.Context, in diseaseAssociationsInput) (*DiseaseTargets, error) {
	id, err := normalizeDiseaseID(in.DiseaseID, in.DiseaseIDAlt)
	if err != nil {
		return nil, err
	}
	size := maxResults(in.MaxResults, in.MaxResultsAlt)
	h.logger.Info("fetching targets associated with disease", "disease_id", id, "max_results", size)

	d, err := h.client.DiseaseTargets(ctx, id, size)
	if err != nil {
		return nil, err
	}
	if !d.Exists() {
		return nil, fmt.Errorf("no disease found with ID: %s", id)
	}

	out := &DiseaseTargets{
		DiseaseID:    id,
		DiseaseName:  d.Get("name").String(),
		Associations: []TargetAssociation{},
	}
	d.Get("associatedTargets.rows").ForEach(func(_, row gjson.Result) bool {
		out.Associations = append(out.Associations, TargetAssociation{
			TargetID:         or(row.Get("target.id").String(), "Unknown ID"),
			TargetSymbol:     or(row.Get("target.approvedSymbol").String(), "Unknown symbol"),
			TargetName:       or(row.Get("target.approvedName").String(), "No name"),
			AssociationScore: row.Get("score").Float(),
		})
		return true
	})
	if len(out.Associations) == 0 {
		out.Message = "No targets associated with disease ID: " + id
	}
	return out, nil
}

func (h *handlers) drugDetails(ctx context.Context, in drugInput) (*DrugDetails, error) {
	id := strings.ToUpper(strings.TrimSpace(tools.FirstNonEmpty(in.DrugIDAlt, in.DrugID)))
	if !chemblPattern.MatchString(id) {
		return nil, tools.InvalidParamsf("drug_id must be a ChEMBL ID such as CHEMBL25, got %q", id)
	}
	h.logger.Info("fetching Open Targets drug", "drug_id", id)

	d, err := h.client.Drug(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Exists() {
		return nil, fmt.Errorf("no drug found with ID: %s", id)
	}

	out := &DrugDetails{
		DrugID:             id,
		Name:               or(d.Get("name").String(), "No name"),
		DrugType:           upstream.OptString(d.Get("drugType")),
		Description:        upstream.OptString(d.Get("description")),
		MaxClinicalPhase:   upstream.OptFloat(d.Get("maximumClinicalTrialPhase")),
		IsApproved:         d.Get("isApproved").Bool(),
		HasBeenWithdrawn:   d.Get("hasBeenWithdrawn").Bool(),
		Synonyms:           upstream.Strings(d.Get("synonyms")),
		TradeNames:         upstream.Strings(d.Get("tradeNames")),
		MechanismsOfAction: []Mechanism{},
	}
	d.Get("mechanismsOfAction.rows").ForEach(func(_, m gjson.Result) bool {
		out.MechanismsOfAction = append(out.MechanismsOfAction, Mechanism{
			MechanismOfAction: m.Get("mechanismOfAction").String(),
			ActionType:        upstream.OptString(m.Get("actionType")),
			Targets:           upstream.Strings(m.Get("targets.#.approvedSymbol")),
		})
		return true
	})
	return out, nil
}

// maxResults prefers the camelCase alias when both spellings are sent.
func maxResults(snake, camel int) int {
	n := camel
	if n == 0 {
		n = snake
	}
	return tools.Clamp(n, defaultMaxResults, 1, maxMaxResults)
}

func normalizeTargetID(snake, camel string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(tools.FirstNonEmpty(camel, snake)))
	if id == "" {
		return "", tools.InvalidParamsf("target_id is required")
	}
	if !ensemblPattern.MatchString(id) {
		return "", tools.InvalidParamsf("target_id must be an Ensembl gene ID such as ENSG00000157764, got %q", id)
	}
	return id, nil
}

// normalizeDiseaseID accepts EFO:0000311 as well as EFO_0000311.
func normalizeDiseaseID(snake, camel string) (string, error) {
	id := strings.TrimSpace(tools.FirstNonEmpty(camel, snake))
	if id == "" {
		return "", tools.InvalidParamsf("disease_id is required")
	}
	id = strings.Replace(id, ":", "_", 1)
	if !diseasePattern.MatchString(id) {
		return "", tools.InvalidParamsf("disease_id must look like MONDO_0005148 or EFO_0000311, got %q", id)
	}
	return id, nil
}

// functions reads functionDescriptions, which older API versions return as
// objects with a label.
func functions(r gjson.Result) []string {
	out := []string{}
	r.ForEach(func(_, f gjson.Result) bool {
		s := f.String()
		if f.IsObject() {
			s = f.Get("label").String()
		}
		if s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
