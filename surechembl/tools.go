package surechembl

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/tools"
	"github.com/mhpenta/biochem-mcp/upstream"
)

const (
	defaultLimit     = 25
	maxSearchLimit   = 1000
	maxSimilarLimit  = 100
	maxExportIDs     = 100
	defaultImageSize = 200
	defaultThreshold = 0.7
)

type patentSearch struct {
	Query         string `json:"query" jsonschema:"Search terms, e.g. kinase inhibitor"`
	Limit         int    `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
	Offset        int    `json:"offset,omitempty" jsonschema:"Number of results to skip (default 0)"`
	PatentOffices string `json:"patent_offices,omitempty" jsonschema:"Patent offices to include (default: US OR EP OR WO OR JP OR CN)"`
}

type documentQuery struct {
	DocumentID string `json:"document_id" jsonschema:"SureChEMBL document ID, e.g. WO-2020096695-A1"`
}

type familyQuery struct {
	PatentID string `json:"patent_id" jsonschema:"Patent ID, e.g. WO-2020096695-A1"`
}

type patentNumberQuery struct {
	PatentNumber string `json:"patent_number" jsonschema:"Patent or publication number"`
}

type chemicalNameQuery struct {
	Name  string `json:"name" jsonschema:"Chemical name or synonym"`
	Limit int    `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
}

type chemicalQuery struct {
	ChemicalID string `json:"chemical_id" jsonschema:"SureChEMBL chemical ID (numeric)"`
}

type smilesQuery struct {
	SMILES string `json:"smiles" jsonschema:"SMILES string of the structure"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
}

type inchiQuery struct {
	InChI string `json:"inchi" jsonschema:"InChI string or InChIKey"`
	Limit int    `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
}

type imageQuery struct {
	Structure string `json:"structure" jsonschema:"SMILES or other structure notation"`
	Height    int    `json:"height,omitempty" jsonschema:"Image height in pixels (default 200)"`
	Width     int    `json:"width,omitempty" jsonschema:"Image width in pixels (default 200)"`
}

type exportQuery struct {
	ChemicalIDs []string `json:"chemical_ids" jsonschema:"SureChEMBL chemical IDs to export (1-100)"`
	OutputType  string   `json:"output_type,omitempty" jsonschema:"Export format: csv or xml (default csv)"`
	Kind        string   `json:"kind,omitempty" jsonschema:"ID type of chemical_ids (default cid)"`
}

type similarityQuery struct {
	ReferenceID string   `json:"reference_id" jsonschema:"Reference SureChEMBL chemical ID"`
	Threshold   *float64 `json:"threshold,omitempty" jsonschema:"Similarity threshold between 0 and 1 (default 0.7)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Number of results (1-100, default 25)"`
}

type statisticsQuery struct {
	DocumentID         string `json:"document_id" jsonschema:"SureChEMBL document ID"`
	IncludeAnnotations *bool  `json:"include_annotations,omitempty" jsonschema:"Include the detailed annotation list (default true)"`
}

type PatentDocument struct {
	PatentNumber string         `json:"patent_number"`
	Document     map[string]any `json:"document"`
}

// UnsupportedSearch answers searches SureChEMBL cannot run.
type UnsupportedSearch struct {
	Message    string `json:"message"`
	Query      string `json:"query"`
	Suggestion string `json:"suggestion"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ChemicalImage struct {
	Structure  string     `json:"structure"`
	ImageData  string     `json:"image_data"`
	Dimensions Dimensions `json:"dimensions"`
	Message    string     `json:"message"`
}

type ChemicalExport struct {
	ChemicalIDs []string `json:"chemical_ids"`
	OutputType  string   `json:"output_type"`
	Kind        string   `json:"kind"`
	ExportData  string   `json:"export_data"`
	Message     string   `json:"message"`
}

type FrequencyAnalysis struct {
	TotalOccurrences  int     `json:"total_occurrences"`
	FrequencyCategory string  `json:"frequency_category"`
	RarityScore       float64 `json:"rarity_score"`
}

type ChemicalSummary struct {
	SMILES          *string  `json:"smiles"`
	MolecularWeight *float64 `json:"molecular_weight"`
	InChIKey        *string  `json:"inchi_key"`
}

type ChemicalFrequency struct {
	ChemicalID        string            `json:"chemical_id"`
	Name              *string           `json:"name"`
	GlobalFrequency   int               `json:"global_frequency"`
	FrequencyAnalysis FrequencyAnalysis `json:"frequency_analysis"`
	ChemicalInfo      ChemicalSummary   `json:"chemical_info"`
}

type ReferenceChemical struct {
	ID              string   `json:"id"`
	Name            *string  `json:"name"`
	SMILES          *string  `json:"smiles"`
	MolecularWeight *float64 `json:"molecular_weight"`
}

type SimilarityParameters struct {
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

type SimilarityGuidance struct {
	ReferenceChemical   ReferenceChemical    `json:"reference_chemical"`
	SearchParameters    SimilarityParameters `json:"search_parameters"`
	Message             string               `json:"message"`
	Suggestions         []string             `json:"suggestions"`
	AlternativeSearches map[string]string    `json:"alternative_searches"`
}

// Tools returns the SureChEMBL tool set backed by client.
func Tools(client *Client, logger *slog.Logger) []tools.Tool {
	h := &handlers{client: client, logger: logger}
	search := []tools.ToolOption{tools.WithVerb("Searching SureChEMBL"), tools.WithTimeout(30 * time.Second)}
	fetch := []tools.ToolOption{tools.WithVerb("Fetching from SureChEMBL"), tools.WithTimeout(30 * time.Second)}
	analyze := []tools.ToolOption{tools.WithVerb("Analyzing patent"), tools.WithTimeout(60 * time.Second)}

	return []tools.Tool{
		tools.NewTool("search_patents",
			"Search SureChEMBL patents by text, keywords or identifiers, filtered by patent office.",
			h.searchPatents, search...),
		tools.NewTool("get_document_content",
			"Get the complete content of a patent document, including chemical annotations.",
			h.documentContent, fetch...),
		tools.NewTool("get_patent_family",
			"Get the family members of a patent.",
			h.family, fetch...),
		tools.NewTool("search_by_patent_number",
			"Look up a patent by its patent or publication number.",
			h.byPatentNumber, fetch...),
		tools.NewTool("search_chemicals_by_name",
			"Search SureChEMBL chemicals by name, synonym or common name.",
			h.chemicalsByName, search...),
		tools.NewTool("get_chemical_by_id",
			"Get a SureChEMBL chemical record by its numeric chemical ID.",
			h.chemicalByID, fetch...),
		tools.NewTool("search_by_smiles",
			"Search chemicals by SMILES. SureChEMBL has no structure search, so this explains the alternatives.",
			h.bySMILES, search...),
		tools.NewTool("search_by_inchi",
			"Search chemicals by InChI or InChIKey. SureChEMBL has no InChI search, so this explains the alternatives.",
			h.byInChI, search...),
		tools.NewTool("get_chemical_image",
			"Render a chemical structure as a PNG image, returned as a base64 data URI.",
			h.image, fetch...),
		tools.NewTool("get_chemical_properties",
			"Get the molecular properties of a SureChEMBL chemical.",
			h.properties, fetch...),
		tools.NewTool("export_chemicals",
			"Bulk export up to 100 chemicals as CSV or XML, returned as a base64 zip data URI.",
			h.export, append(fetch, tools.WithLongRunning(true))...),
		tools.NewTool("analyze_patent_chemistry",
			"Summarize the chemical annotations of a patent document.",
			h.analyzeChemistry, analyze...),
		tools.NewTool("get_chemical_frequency",
			"Get how often a chemical appears across the patent corpus, with a frequency category and rarity score.",
			h.frequency, fetch...),
		tools.NewTool("search_similar_structures",
			"Look up a reference chemical and suggest ways to find similar structures.",
			h.similar, search...),
		tools.NewTool("get_patent_statistics",
			"Get section, language and chemical annotation statistics for a patent document.",
			h.statistics, analyze...),
	}
}

type handlers struct {
	client *Client
	logger *slog.Logger
}

func (h *handlers) searchPatents(ctx context.Context, q patentSearch) (*SearchResult, error) {
	query, err := tools.Required("query", q.Query)
	if err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, tools.InvalidParamsf("offset must not be negative")
	}
	limit := tools.Clamp(q.Limit, defaultLimit, 1, maxSearchLimit)
	offices := strings.TrimSpace(q.PatentOffices)
	if offices == "" {
		offices = DefaultOffices
	}
	h.logger.Info("searching SureChEMBL patents", "query", query, "limit", limit, "offset", q.Offset)

	return h.client.SearchPatents(ctx, query, limit, q.Offset, offices)
}

func (h *handlers) documentContent(ctx context.Context, q documentQuery) (map[string]any, error) {
	id, err := tools.Required("document_id", q.DocumentID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching SureChEMBL document", "document_id", id)

	res, err := h.client.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	return object(res), nil
}

func (h *handlers) family(ctx context.Context, q familyQuery) (map[string]any, error) {
	id, err := tools.Required("patent_id", q.PatentID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching SureChEMBL patent family", "patent_id", id)

	res, err := h.client.Family(ctx, id)
	if err != nil {
		return nil, err
	}
	return object(res), nil
}

func (h *handlers) byPatentNumber(ctx context.Context, q patentNumberQuery) (*PatentDocument, error) {
	number, err := tools.Required("patent_number", q.PatentNumber)
	if err != nil {
		return nil, err
	}
	h.logger.Info("searching SureChEMBL by patent number", "patent_number", number)

	res, err := h.client.Document(ctx, number)
	if err != nil {
		return nil, err
	}
	return &PatentDocument{PatentNumber: number, Document: object(res)}, nil
}

func (h *handlers) chemicalsByName(ctx context.Context, q chemicalNameQuery) (map[string]any, error) {
	name, err := tools.Required("name", q.Name)
	if err != nil {
		return nil, err
	}
	limit := tools.Clamp(q.Limit, defaultLimit, 1, maxSearchLimit)
	h.logger.Info("searching SureChEMBL chemicals", "name", name, "limit", limit)

	res, err := h.client.ChemicalsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	out := object(res)
	if data, ok := out["data"].([]any); ok && len(data) > limit {
		out["data"] = data[:limit]
	}
	return out, nil
}

func (h *handlers) chemicalByID(ctx context.Context, q chemicalQuery) (map[string]any, error) {
	id, err := tools.Required("chemical_id", q.ChemicalID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching SureChEMBL chemical", "chemical_id", id)

	res, err := h.client.ChemicalByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return object(res), nil
}

func (h *handlers) bySMILES(_ context.Context, q smilesQuery) (*UnsupportedSearch, error) {
	smiles, err := tools.Required("smiles", q.SMILES)
	if err != nil {
		return nil, err
	}
	return &UnsupportedSearch{
		Message:    "SMILES search not directly supported by SureChEMBL API",
		Query:      smiles,
		Suggestion: "Try converting SMILES to chemical name or use structure-based search tools",
	}, nil
}

func (h *handlers) byInChI(_ context.Context, q inchiQuery) (*UnsupportedSearch, error) {
	inchi, err := tools.Required("inchi", q.InChI)
	if err != nil {
		return nil, err
	}
	return &UnsupportedSearch{
		Message:    "InChI search not directly supported by SureChEMBL API",
		Query:      inchi,
		Suggestion: "Try converting InChI to chemical name or use chemical ID lookup",
	}, nil
}

func (h *handlers) image(ctx context.Context, q imageQuery) (*ChemicalImage, error) {
	structure, err := tools.Required("structure", q.Structure)
	if err != nil {
		return nil, err
	}
	height := tools.Clamp(q.Height, defaultImageSize, 16, 2000)
	width := tools.Clamp(q.Width, defaultImageSize, 16, 2000)
	h.logger.Info("rendering SureChEMBL structure", "structure", structure, "height", height, "width", width)

	png, err := h.client.Image(ctx, structure, height, width)
	if err != nil {
		return nil, err
	}
	return &ChemicalImage{
		Structure:  structure,
		ImageData:  dataURI("image/png", png),
		Dimensions: Dimensions{Width: width, Height: height},
		Message:    "Chemical structure image generated successfully",
	}, nil
}

func (h *handlers) properties(ctx context.Context, q chemicalQuery) (*ChemicalProperties, error) {
	id, chem, err := h.chemical(ctx, q.ChemicalID, "chemical_id")
	if err != nil {
		return nil, err
	}
	return chemicalProperties(id, chem), nil
}

func (h *handlers) export(ctx context.Context, q exportQuery) (*ChemicalExport, error) {
	ids := make([]string, 0, len(q.ChemicalIDs))
	for _, id := range q.ChemicalIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	switch {
	case len(ids) == 0:
		return nil, tools.InvalidParamsf("chemical_ids must contain at least one ID")
	case len(ids) > maxExportIDs:
		return nil, tools.InvalidParamsf("maximum %d chemical IDs allowed per export, got %d", maxExportIDs, len(ids))
	}

	outputType := strings.ToLower(strings.TrimSpace(q.OutputType))
	if outputType == "" {
		outputType = "csv"
	}
	if outputType != "csv" && outputType != "xml" {
		return nil, tools.InvalidParamsf("output_type must be csv or xml, got %q", q.OutputType)
	}
	kind := strings.TrimSpace(q.Kind)
	if kind == "" {
		kind = "cid"
	}
	h.logger.Info("exporting SureChEMBL chemicals", "count", len(ids), "output_type", outputType, "kind", kind)

	zip, err := h.client.Export(ctx, ids, outputType, kind)
	if err != nil {
		return nil, err
	}
	return &ChemicalExport{
		ChemicalIDs: ids,
		OutputType:  outputType,
		Kind:        kind,
		ExportData:  dataURI("application/zip", zip),
		Message:     fmt.Sprintf("Successfully exported %d chemicals in %s format", len(ids), outputType),
	}, nil
}

func (h *handlers) analyzeChemistry(ctx context.Context, q documentQuery) (*ChemistryAnalysis, error) {
	id, err := tools.Required("document_id", q.DocumentID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("analyzing SureChEMBL patent chemistry", "document_id", id)

	doc, err := h.client.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	return analyzeChemistry(id, doc), nil
}

func (h *handlers) frequency(ctx context.Context, q chemicalQuery) (*ChemicalFrequency, error) {
	id, chem, err := h.chemical(ctx, q.ChemicalID, "chemical_id")
	if err != nil {
		return nil, err
	}
	freq := int(chem.Get("global_frequency").Int())
	return &ChemicalFrequency{
		ChemicalID:      id,
		Name:            upstream.OptString(chem.Get("name")),
		GlobalFrequency: freq,
		FrequencyAnalysis: FrequencyAnalysis{
			TotalOccurrences:  freq,
			FrequencyCategory: frequencyCategory(freq),
			RarityScore:       rarityScore(freq),
		},
		ChemicalInfo: ChemicalSummary{
			SMILES:          upstream.OptString(chem.Get("smiles")),
			MolecularWeight: upstream.OptFloat(chem.Get("mol_weight")),
			InChIKey:        upstream.OptString(chem.Get("inchi_key")),
		},
	}, nil
}

func (h *handlers) similar(ctx context.Context, q similarityQuery) (*SimilarityGuidance, error) {
	threshold := defaultThreshold
	if q.Threshold != nil {
		threshold = *q.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, tools.InvalidParamsf("threshold must be between 0 and 1, got %g", threshold)
	}
	limit := tools.Clamp(q.Limit, defaultLimit, 1, maxSimilarLimit)

	id, chem, err := h.chemical(ctx, q.ReferenceID, "reference_id")
	if err != nil {
		return nil, err
	}
	name := chem.Get("name").String()
	weight := chem.Get("mol_weight").String()

	return &SimilarityGuidance{
		ReferenceChemical: ReferenceChemical{
			ID:              id,
			Name:            upstream.OptString(chem.Get("name")),
			SMILES:          upstream.OptString(chem.Get("smiles")),
			MolecularWeight: upstream.OptFloat(chem.Get("mol_weight")),
		},
		SearchParameters: SimilarityParameters{Threshold: threshold, Limit: limit},
		Message:          "Direct similarity search not available in SureChEMBL API",
		Suggestions: []string{
			"Use chemical name variations to find related compounds",
			"Search by molecular weight ranges",
			"Use external cheminformatics tools for similarity search",
			"Try searching by chemical class or functional groups",
		},
		AlternativeSearches: map[string]string{
			"by_name_fragments":   fmt.Sprintf("Try searching for fragments of %q", name),
			"by_molecular_weight": "Search for compounds with molecular weight around " + weight,
			"by_chemical_class":   "Search for compounds in the same chemical class",
		},
	}, nil
}

func (h *handlers) statistics(ctx context.Context, q statisticsQuery) (*PatentStatistics, error) {
	id, err := tools.Required("document_id", q.DocumentID)
	if err != nil {
		return nil, err
	}
	detailed := q.IncludeAnnotations == nil || *q.IncludeAnnotations
	h.logger.Info("computing SureChEMBL patent statistics", "document_id", id, "include_annotations", detailed)

	doc, err := h.client.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	return patentStatistics(id, doc, detailed), nil
}

// chemical validates a chemical ID argument and fetches its record.
func (h *handlers) chemical(ctx context.Context, raw, field string) (string, gjson.Result, error) {
	id, err := tools.Required(field, raw)
	if err != nil {
		return "", gjson.Result{}, err
	}
	h.logger.Info("fetching SureChEMBL chemical", field, id)

	chem, err := h.client.Chemical(ctx, id)
	if err != nil {
		return "", gjson.Result{}, err
	}
	if !chem.Exists() {
		return "", gjson.Result{}, fmt.Errorf("chemical %s not found in SureChEMBL", id)
	}
	return id, chem, nil
}

func dataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
