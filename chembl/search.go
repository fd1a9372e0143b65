package chembl

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mhpenta/biochem-mcp/tools"
)

var chemblIDPattern = regexp.MustCompile(`^CHEMBL\d+$`)

// normalizeID upper-cases a ChEMBL identifier and checks its shape.
func normalizeID(field, id string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(id))
	if v == "" {
		return "", tools.InvalidParamsf("%s is required", field)
	}
	if !chemblIDPattern.MatchString(v) {
		return "", tools.InvalidParamsf("%s must look like CHEMBL25, got %q", field, id)
	}
	return v, nil
}

var moleculeSummary = []string{"molecule_chembl_id", "pref_name", "molecule_structures"}

type nameSearch struct {
	Name       string `json:"name" jsonschema:"Molecule name to search for"`
	ExactMatch bool   `json:"exact_match,omitempty" jsonschema:"Require an exact case-insensitive match instead of a partial match"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum records per query (default 20, max 1000)"`
}

type similaritySearch struct {
	SMILES     string `json:"smiles,omitempty" jsonschema:"SMILES of the query molecule (smiles or chembl_id is required)"`
	ChEMBLID   string `json:"chembl_id,omitempty" jsonschema:"ChEMBL ID of the query molecule (smiles or chembl_id is required)"`
	Similarity int    `json:"similarity,omitempty" jsonschema:"Tanimoto similarity threshold in percent, 40 to 100 (default 70)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type smilesSearch struct {
	SMILES string `json:"smiles" jsonschema:"SMILES of the substructure query"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type inchiKeySearch struct {
	InChIKey string `json:"inchi_key" jsonschema:"Standard InChI Key"`
}

type approvedDrugSearch struct {
	SortByWeight bool   `json:"sort_by_weight,omitempty" jsonschema:"Sort results by molecular weight"`
	Indication   string `json:"indication,omitempty" jsonschema:"Disease or indication filter, e.g. lung cancer"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type propertySearch struct {
	MaxWeight    *float64 `json:"max_weight,omitempty" jsonschema:"Maximum molecular weight of the free base"`
	MinWeight    *float64 `json:"min_weight,omitempty" jsonschema:"Minimum molecular weight of the free base"`
	MaxLogP      *float64 `json:"max_logp,omitempty" jsonschema:"Maximum calculated LogP"`
	MinLogP      *float64 `json:"min_logp,omitempty" jsonschema:"Minimum calculated LogP"`
	RO5Compliant bool     `json:"ro5_compliant,omitempty" jsonschema:"Only molecules without Rule of Five violations"`
	NamePattern  string   `json:"name_pattern,omitempty" jsonschema:"Text the preferred name must contain, e.g. nib"`
	Limit        int      `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type geneSearch struct {
	GeneName string `json:"gene_name" jsonschema:"Gene name or synonym, e.g. EGFR"`
	Organism string `json:"organism,omitempty" jsonschema:"Organism filter, e.g. Homo sapiens"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type targetActivitySearch struct {
	TargetChEMBLID string   `json:"target_chembl_id" jsonschema:"Target ChEMBL ID, e.g. CHEMBL203"`
	AssayType      string   `json:"assay_type,omitempty" jsonschema:"Assay type: B binding, F functional, A ADMET"`
	StandardType   string   `json:"standard_type,omitempty" jsonschema:"Activity type, e.g. IC50, Ki or EC50"`
	MinPChEMBL     *float64 `json:"min_pchembl,omitempty" jsonschema:"Minimum pChEMBL value; higher is more potent"`
	Limit          int      `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type moleculeActivitySearch struct {
	MoleculeChEMBLID string `json:"molecule_chembl_id" jsonschema:"Molecule ChEMBL ID, e.g. CHEMBL25 for aspirin"`
	RequirePChEMBL   bool   `json:"require_pchembl,omitempty" jsonschema:"Only return activities that have a pChEMBL value"`
	Limit            int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type assaySearch struct {
	DescriptionContains string `json:"description_contains,omitempty" jsonschema:"Text to look for in the assay description"`
	AssayType           string `json:"assay_type,omitempty" jsonschema:"Assay type: B binding, F functional, A ADMET"`
	Organism            string `json:"organism,omitempty" jsonschema:"Assay organism, e.g. Homo sapiens"`
	Limit               int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type pubmedSearch struct {
	PubMedIDs []int `json:"pubmed_ids" jsonschema:"PubMed IDs to look up"`
}

type idLookup struct {
	ChEMBLID string `json:"chembl_id" jsonschema:"ChEMBL identifier, e.g. CHEMBL25"`
}

type idSearch struct {
	Query      string `json:"query" jsonschema:"Free text to resolve to ChEMBL identifiers"`
	EntityType string `json:"entity_type,omitempty" jsonschema:"Restrict to one entity type: COMPOUND, TARGET, ASSAY, DOCUMENT or CELL"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20, max 1000)"`
}

type noArgs struct{}

type handlers struct {
	client *Client
	logger *slog.Logger
}

func (h *handlers) searchByName(ctx context.Context, q nameSearch) ([]map[string]any, error) {
	name, err := tools.Required("name", q.Name)
	if err != nil {
		return nil, err
	}
	h.logger.Info("searching ChEMBL molecules by name", "name", name, "exact", q.ExactMatch)

	if q.ExactMatch {
		byName, err := h.client.Filter(ctx, Query{
			Resource: "molecule",
			Filters:  url.Values{"pref_name__iexact": {name}},
			Only:     moleculeSummary,
			Limit:    q.Limit,
		})
		if err != nil || len(byName) > 0 {
			return byName, err
		}
		return h.client.Filter(ctx, Query{
			Resource: "molecule",
			Filters:  url.Values{"molecule_synonyms__molecule_synonym__iexact": {name}},
			Only:     moleculeSummary,
			Limit:    q.Limit,
		})
	}

	var byName, bySynonym []map[string]any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byName, err = h.client.Filter(gctx, Query{
			Resource: "molecule",
			Filters:  url.Values{"pref_name__icontains": {name}},
			Only:     moleculeSummary,
			Limit:    q.Limit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		bySynonym, err = h.client.Filter(gctx, Query{
			Resource: "molecule",
			Filters:  url.Values{"molecule_synonyms__molecule_synonym__icontains": {name}},
			Only:     moleculeSummary,
			Limit:    q.Limit,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeByID(byName, bySynonym, "molecule_chembl_id"), nil
}

// mergeByID concatenates record lists, dropping repeats of the same id.
func mergeByID(a, b []map[string]any, key string) []map[string]any {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]map[string]any, 0, len(a)+len(b))
	for _, list := range [][]map[string]any{a, b} {
		for _, rec := range list {
			if id, ok := rec[key].(string); ok {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			out = append(out, rec)
		}
	}
	return out
}

func (h *handlers) searchBySimilarity(ctx context.Context, q similaritySearch) ([]map[string]any, error) {
	threshold := q.Similarity
	if threshold == 0 {
		threshold = 70
	}
	if threshold < 40 || threshold > 100 {
		return nil, tools.InvalidParamsf("similarity must be between 40 and 100, got %d", threshold)
	}

	query := strings.TrimSpace(q.SMILES)
	if query == "" {
		if strings.TrimSpace(q.ChEMBLID) == "" {
			return nil, tools.NewInvalidParamsError("either smiles or chembl_id must be provided")
		}
		id, err := normalizeID("chembl_id", q.ChEMBLID)
		if err != nil {
			return nil, err
		}
		query = id
	}
	h.logger.Info("searching ChEMBL by similarity", "query", query, "similarity", threshold)
	return h.client.Similarity(ctx, query, threshold, q.Limit)
}

func (h *handlers) searchBySubstructure(ctx context.Context, q smilesSearch) ([]map[string]any, error) {
	smiles, err := tools.Required("smiles", q.SMILES)
	if err != nil {
		return nil, err
	}
	h.logger.Info("searching ChEMBL by substructure", "smiles", smiles)
	return h.client.Substructure(ctx, smiles, q.Limit)
}

func (h *handlers) searchByInChIKey(ctx context.Context, q inchiKeySearch) ([]map[string]any, error) {
	key, err := tools.Required("inchi_key", q.InChIKey)
	if err != nil {
		return nil, err
	}
	h.logger.Info("searching ChEMBL by InChI key", "inchi_key", key)
	return h.client.Filter(ctx, Query{
		Resource: "molecule",
		Filters:  url.Values{"molecule_structures__standard_inchi_key": {strings.ToUpper(key)}},
		Only:     moleculeSummary,
	})
}

func (h *handlers) searchApprovedDrugs(ctx context.Context, q approvedDrugSearch) ([]map[string]any, error) {
	h.logger.Info("searching ChEMBL approved drugs", "indication", q.Indication, "sort_by_weight", q.SortByWeight)

	mq := Query{Resource: "molecule", Filters: url.Values{}, Limit: q.Limit}
	if q.SortByWeight {
		mq.OrderBy = "molecule_properties__mw_freebase"
	}

	indication := strings.TrimSpace(q.Indication)
	if indication == "" {
		mq.Filters.Set("max_phase", "4")
		return h.client.Filter(ctx, mq)
	}

	indications, err := h.client.Filter(ctx, Query{
		Resource: "drug_indication",
		Filters:  url.Values{"efo_term__icontains": {indication}},
		Only:     []string{"molecule_chembl_id"},
		Limit:    maxLimit,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, rec := range indications {
		if id, ok := rec["molecule_chembl_id"].(string); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []map[string]any{}, nil
	}
	mq.Filters.Set("molecule_chembl_id__in", strings.Join(ids, ","))
	return h.client.Filter(ctx, mq)
}

func (h *handlers) searchByProperties(ctx context.Context, q propertySearch) ([]map[string]any, error) {
	filters := url.Values{}
	setFloat := func(key string, v *float64) {
		if v != nil {
			filters.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	setFloat("molecule_properties__mw_freebase__lte", q.MaxWeight)
	setFloat("molecule_properties__mw_freebase__gte", q.MinWeight)
	setFloat("molecule_properties__alogp__lte", q.MaxLogP)
	setFloat("molecule_properties__alogp__gte", q.MinLogP)
	if q.RO5Compliant {
		filters.Set("molecule_properties__num_ro5_violations", "0")
	}
	if p := strings.TrimSpace(q.NamePattern); p != "" {
		filters.Set("pref_name__icontains", p)
	}

	if len(filters) == 0 {
		return []map[string]any{}, nil
	}
	h.logger.Info("searching ChEMBL molecules by properties", "filters", filters.Encode())
	return h.client.Filter(ctx, Query{
		Resource: "molecule",
		Filters:  filters,
		Only:     []string{"molecule_chembl_id", "pref_name", "molecule_properties"},
		Limit:    q.Limit,
	})
}

func (h *handlers) searchTargetByGene(ctx context.Context, q geneSearch) ([]map[string]any, error) {
	gene, err := tools.Required("gene_name", q.GeneName)
	if err != nil {
		return nil, err
	}
	filters := url.Values{"target_synonym__icontains": {gene}}
	if org := strings.TrimSpace(q.Organism); org != "" {
		filters.Set("organism__icontains", org)
	}
	h.logger.Info("searching ChEMBL targets by gene", "gene_name", gene, "organism", q.Organism)
	return h.client.Filter(ctx, Query{
		Resource: "target",
		Filters:  filters,
		Only:     []string{"target_chembl_id", "organism", "pref_name", "target_type"},
		Limit:    q.Limit,
	})
}

func (h *handlers) activitiesByTarget(ctx context.Context, q targetActivitySearch) ([]map[string]any, error) {
	id, err := normalizeID("target_chembl_id", q.TargetChEMBLID)
	if err != nil {
		return nil, err
	}
	filters := url.Values{"target_chembl_id": {id}}
	if v := strings.TrimSpace(q.AssayType); v != "" {
		filters.Set("assay_type", strings.ToUpper(v))
	}
	if v := strings.TrimSpace(q.StandardType); v != "" {
		filters.Set("standard_type", v)
	}
	if q.MinPChEMBL != nil {
		filters.Set("pchembl_value__gte", strconv.FormatFloat(*q.MinPChEMBL, 'f', -1, 64))
	}
	h.logger.Info("searching ChEMBL activities by target", "target", id, "filters", filters.Encode())
	return h.client.Filter(ctx, Query{Resource: "activity", Filters: filters, Limit: q.Limit})
}

func (h *handlers) activitiesByMolecule(ctx context.Context, q moleculeActivitySearch) ([]map[string]any, error) {
	id, err := normalizeID("molecule_chembl_id", q.MoleculeChEMBLID)
	if err != nil {
		return nil, err
	}
	filters := url.Values{"molecule_chembl_id": {id}}
	if q.RequirePChEMBL {
		filters.Set("pchembl_value__isnull", "false")
	}
	h.logger.Info("searching ChEMBL activities by molecule", "molecule", id, "require_pchembl", q.RequirePChEMBL)
	return h.client.Filter(ctx, Query{Resource: "activity", Filters: filters, Limit: q.Limit})
}

func (h *handlers) searchAssays(ctx context.Context, q assaySearch) ([]map[string]any, error) {
	filters := url.Values{}
	if v := strings.TrimSpace(q.DescriptionContains); v != "" {
		filters.Set("description__icontains", v)
	}
	if v := strings.TrimSpace(q.AssayType); v != "" {
		filters.Set("assay_type", strings.ToUpper(v))
	}
	if v := strings.TrimSpace(q.Organism); v != "" {
		filters.Set("assay_organism__icontains", v)
	}
	if len(filters) == 0 {
		return []map[string]any{}, nil
	}
	h.logger.Info("searching ChEMBL assays", "filters", filters.Encode())
	return h.client.Filter(ctx, Query{Resource: "assay", Filters: filters, Limit: q.Limit})
}

func (h *handlers) documentsByPubMed(ctx context.Context, q pubmedSearch) ([]map[string]any, error) {
	if len(q.PubMedIDs) == 0 {
		return nil, tools.NewInvalidParamsError("pubmed_ids must contain at least one id")
	}
	ids := make([]string, len(q.PubMedIDs))
	for i, id := range q.PubMedIDs {
		ids[i] = strconv.Itoa(id)
	}
	h.logger.Info("searching ChEMBL documents by PubMed id", "pubmed_ids", ids)
	return h.client.Filter(ctx, Query{
		Resource: "document",
		Filters:  url.Values{"pubmed_id__in": {strings.Join(ids, ",")}},
		Only:     []string{"doc_chembl_id", "pubmed_id", "title", "journal", "year"},
		Limit:    len(ids),
	})
}

func (h *handlers) record(resource string) func(context.Context, idLookup) (map[string]any, error) {
	return func(ctx context.Context, q idLookup) (map[string]any, error) {
		id, err := normalizeID("chembl_id", q.ChEMBLID)
		if err != nil {
			return nil, err
		}
		h.logger.Info("fetching ChEMBL record", "resource", resource, "chembl_id", id)
		return h.client.Record(ctx, resource, id)
	}
}

func (h *handlers) lookupIDs(ctx context.Context, q idSearch) ([]map[string]any, error) {
	text, err := tools.Required("query", q.Query)
	if err != nil {
		return nil, err
	}
	query := Query{Limit: q.Limit}
	if t := strings.TrimSpace(q.EntityType); t != "" {
		query.Filters = url.Values{"entity_type": {strings.ToUpper(t)}}
	}
	h.logger.Info("looking up ChEMBL ids", "query", text, "entity_type", q.EntityType)
	return h.client.Search(ctx, "chembl_id_lookup", text, query)
}

func (h *handlers) releases(ctx context.Context, _ noArgs) ([]map[string]any, error) {
	return h.client.Filter(ctx, Query{Resource: "chembl_release", Limit: maxLimit})
}

func (h *handlers) status(ctx context.Context, _ noArgs) (map[string]any, error) {
	return h.client.Status(ctx)
}
