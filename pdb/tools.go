package pdb

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/mhpenta/biochem-mcp/tools"
	"github.com/mhpenta/biochem-mcp/upstream"
)

const (
	defaultLimit     = 25
	maxLimit         = 1000
	defaultIdentity  = 0.9
	maxLigandFetches = 4
)

var (
	pdbIDPattern      = regexp.MustCompile(`^[0-9][a-z0-9]{3}$`)
	assemblyIDPattern = regexp.MustCompile(`^[0-9]+$`)
	sequencePattern   = regexp.MustCompile(`^[A-Z*-]+$`)
)

// extensions maps the accepted formats to archive file extensions.
var extensions = map[string]string{
	"pdb":   "pdb",
	"mmcif": "cif",
	"cif":   "cif",
	"xml":   "xml",
	"bcif":  "bcif",
}

type structureSearch struct {
	Query              string `json:"query" jsonschema:"Protein name, keyword or PDB ID"`
	Limit              int    `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
	SortBy             string `json:"sort_by,omitempty" jsonschema:"Sort field, e.g. score or rcsb_accession_info.initial_release_date (default score)"`
	ExperimentalMethod string `json:"experimental_method,omitempty" jsonschema:"Filter by method: X-RAY DIFFRACTION, SOLUTION NMR or ELECTRON MICROSCOPY"`
	ResolutionRange    string `json:"resolution_range,omitempty" jsonschema:"Resolution range in Ångström, e.g. 1.0-2.0"`
}

type structureInfoQuery struct {
	PDBID  string `json:"pdb_id" jsonschema:"4-character PDB ID, e.g. 4HHB"`
	Format string `json:"format,omitempty" jsonschema:"json, pdb, mmcif or xml (default json)"`
}

type downloadQuery struct {
	PDBID      string `json:"pdb_id" jsonschema:"4-character PDB ID"`
	Format     string `json:"format,omitempty" jsonschema:"pdb, mmcif, cif, xml or bcif (default pdb)"`
	AssemblyID string `json:"assembly_id,omitempty" jsonschema:"Biological assembly number"`
}

type uniprotQuery struct {
	UniProtID string `json:"uniprot_id" jsonschema:"UniProt accession, e.g. P69905"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
}

type pdbIDQuery struct {
	PDBID string `json:"pdb_id" jsonschema:"4-character PDB ID"`
}

type sequenceQuery struct {
	Sequence       string   `json:"sequence" jsonschema:"Protein sequence, plain or FASTA"`
	Limit          int      `json:"limit,omitempty" jsonschema:"Number of results (1-1000, default 25)"`
	IdentityCutoff *float64 `json:"identity_cutoff,omitempty" jsonschema:"Minimum sequence identity between 0 and 1 (default 0.9)"`
}

// StructureInfo holds either the parsed entry record or a coordinate file.
type StructureInfo struct {
	PDBID  string         `json:"pdb_id"`
	Format string         `json:"format"`
	Entry  map[string]any `json:"entry,omitempty"`
	Data   string         `json:"data,omitempty"`
}

// StructureFile is a downloaded coordinate file. Encoding is "text" or
// "base64".
type StructureFile struct {
	PDBID      string  `json:"pdb_id"`
	Format     string  `json:"format"`
	AssemblyID *string `json:"assembly_id"`
	Encoding   string  `json:"encoding"`
	Data       string  `json:"data"`
}

type StructureQuality struct {
	PDBID               string         `json:"pdb_id"`
	Resolution          *float64       `json:"resolution"`
	RWork               *float64       `json:"r_work"`
	RFree               *float64       `json:"r_free"`
	ExperimentalMethod  *string        `json:"experimental_method"`
	ValidationAvailable bool           `json:"validation_available"`
	ValidationData      map[string]any `json:"validation_data,omitempty"`
}

type Ligand struct {
	EntityID      string   `json:"entity_id"`
	CompID        *string  `json:"comp_id"`
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Formula       *string  `json:"formula"`
	FormulaWeight *float64 `json:"formula_weight"`
	Chains        []string `json:"chains"`
}

type LigandList struct {
	PDBID   string   `json:"pdb_id"`
	Count   int      `json:"count"`
	Ligands []Ligand `json:"ligands"`
}

// Tools returns the RCSB PDB tool set backed by client.
func Tools(client *Client, logger *slog.Logger) []tools.Tool {
	h := &handlers{client: client, logger: logger}
	search := []tools.ToolOption{tools.WithVerb("Searching the PDB"), tools.WithTimeout(30 * time.Second)}
	fetch := []tools.ToolOption{tools.WithVerb("Fetching from the PDB"), tools.WithTimeout(30 * time.Second)}

	return []tools.Tool{
		tools.NewTool("search_pdb_structures",
			"Search the PDB for structures by keyword, protein name or PDB ID, optionally filtered by experimental method and resolution.",
			h.searchStructures, search...),
		tools.NewTool("get_pdb_structure_info",
			"Get the entry record of a PDB structure, or its coordinates as PDB, mmCIF or XML text.",
			h.structureInfo, fetch...),
		tools.NewTool("download_pdb_structure",
			"Download structure coordinates, optionally for a biological assembly. Binary formats are base64 encoded.",
			h.download, fetch...),
		tools.NewTool("search_pdb_by_uniprot",
			"Find PDB structures of a UniProt accession.",
			h.byUniProt, search...),
		tools.NewTool("get_pdb_structure_quality",
			"Get resolution, R factors and validation data of a PDB structure.",
			h.quality, fetch...),
		tools.NewTool("get_pdb_ligands",
			"List the ligands (non-polymer entities) of a PDB structure.",
			h.ligands, fetch...),
		tools.NewTool("search_pdb_by_sequence",
			"Search the PDB for structures with a similar protein sequence.",
			h.bySequence,
			tools.WithVerb("Searching the PDB by sequence"),
			tools.WithTimeout(sequenceTimeout+5*time.Second),
			tools.WithLongRunning(true)),
	}
}

type handlers struct {
	client *Client
	logger *slog.Logger
}

func (h *handlers) searchStructures(ctx context.Context, q structureSearch) (*SearchResults, error) {
	query, err := tools.Required("query", q.Query)
	if err != nil {
		return nil, err
	}
	limit := tools.Clamp(q.Limit, defaultLimit, 1, maxLimit)
	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		sortBy = "score"
	}

	var filters []node
	if method := strings.TrimSpace(q.ExperimentalMethod); method != "" {
		filters = append(filters, attribute("exptl.method", "exact_match", strings.ToUpper(method)))
	}
	if q.ResolutionRange != "" {
		if from, to, ok := parseResolutionRange(q.ResolutionRange); ok {
			filters = append(filters, resolutionFilter(from, to))
		} else {
			h.logger.Warn("ignoring invalid resolution range", "resolution_range", q.ResolutionRange)
		}
	}
	h.logger.Info("searching PDB structures", "query", query, "limit", limit, "sort_by", sortBy, "filters", len(filters))

	req := newSearch(and(terminal("full_text", map[string]any{"value": query}), filters...), limit)
	req.RequestOptions.Sort = []sortOption{{SortBy: sortBy, Direction: "desc"}}
	return h.client.Search(ctx, req)
}

func (h *handlers) structureInfo(ctx context.Context, q structureInfoQuery) (*StructureInfo, error) {
	id, err := normalizePDBID(q.PDBID)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(q.Format))
	if format == "" {
		format = "json"
	}
	h.logger.Info("fetching PDB structure info", "pdb_id", id, "format", format)

	if format == "json" {
		entry, err := h.client.Entry(ctx, id)
		if err != nil {
			return nil, err
		}
		m, _ := upstream.Value(entry).(map[string]any)
		return &StructureInfo{PDBID: id, Format: format, Entry: m}, nil
	}

	if format != "pdb" && format != "mmcif" && format != "xml" {
		return nil, tools.InvalidParamsf("format must be json, pdb, mmcif or xml, got %q", q.Format)
	}
	resp, err := h.client.File(ctx, id+"."+extensions[format])
	if err != nil {
		return nil, err
	}
	return &StructureInfo{PDBID: id, Format: format, Data: string(resp.Body)}, nil
}

func (h *handlers) download(ctx context.Context, q downloadQuery) (*StructureFile, error) {
	id, err := normalizePDBID(q.PDBID)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(q.Format))
	if format == "" {
		format = "pdb"
	}
	ext, ok := extensions[format]
	if !ok {
		return nil, tools.InvalidParamsf("format must be pdb, mmcif, cif, xml or bcif, got %q", q.Format)
	}

	name := id + "." + ext
	var assembly *string
	if a := strings.TrimSpace(q.AssemblyID); a != "" {
		if !assemblyIDPattern.MatchString(a) {
			return nil, tools.InvalidParamsf("assembly_id must be a number, got %q", q.AssemblyID)
		}
		assembly = &a
		switch ext {
		case "pdb":
			name = id + ".pdb" + a
		case "cif":
			name = id + "-assembly" + a + ".cif"
		default:
			return nil, tools.InvalidParamsf("assemblies are only available as pdb or mmcif")
		}
	}
	h.logger.Info("downloading PDB structure", "pdb_id", id, "file", name)

	resp, err := h.client.File(ctx, name)
	if err != nil {
		return nil, err
	}
	out := &StructureFile{
		PDBID:      id,
		Format:     strings.ToUpper(format),
		AssemblyID: assembly,
		Encoding:   "text",
	}
	if ext == "bcif" || !utf8.Valid(resp.Body) {
		out.Encoding = "base64"
		out.Data = base64.StdEncoding.EncodeToString(resp.Body)
	} else {
		out.Data = string(resp.Body)
	}
	return out, nil
}

func (h *handlers) byUniProt(ctx context.Context, q uniprotQuery) (*SearchResults, error) {
	accession, err := tools.Required("uniprot_id", q.UniProtID)
	if err != nil {
		return nil, err
	}
	accession = strings.ToUpper(accession)
	limit := tools.Clamp(q.Limit, defaultLimit, 1, maxLimit)
	h.logger.Info("searching PDB by UniProt accession", "uniprot_id", accession, "limit", limit)

	return h.client.Search(ctx, newSearch(attribute(uniprotAttr, "exact_match", accession), limit))
}

func (h *handlers) bySequence(ctx context.Context, q sequenceQuery) (*SearchResults, error) {
	seq := cleanSequence(q.Sequence)
	if seq == "" {
		return nil, tools.InvalidParamsf("sequence is required")
	}
	if !sequencePattern.MatchString(seq) {
		return nil, tools.InvalidParamsf("sequence must contain only amino acid letters")
	}
	identity := defaultIdentity
	if q.IdentityCutoff != nil {
		identity = *q.IdentityCutoff
	}
	if identity < 0 || identity > 1 {
		return nil, tools.InvalidParamsf("identity_cutoff must be between 0 and 1, got %g", identity)
	}
	limit := tools.Clamp(q.Limit, defaultLimit, 1, maxLimit)
	h.logger.Info("searching PDB by sequence", "length", len(seq), "identity_cutoff", identity, "limit", limit)

	return h.client.SearchSequence(ctx, newSearch(terminal("sequence", map[string]any{
		"evalue_cutoff":   sequenceEValue,
		"identity_cutoff": identity,
		"target":          "pdb_protein_sequence",
		"value":           seq,
	}), limit))
}

// quality fetches the entry and its validation summary concurrently. A
// missing validation report only clears ValidationAvailable.
func (h *handlers) quality(ctx context.Context, q pdbIDQuery) (*StructureQuality, error) {
	id, err := normalizePDBID(q.PDBID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching PDB structure quality", "pdb_id", id)

	var entry, validation gjson.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entry, err = h.client.Entry(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		validation, err = h.client.Validation(gctx, id)
		if err != nil {
			if !upstream.IsNotFound(err) && gctx.Err() == nil {
				h.logger.Warn("PDB validation report unavailable", "pdb_id", id, "error", err)
			}
			validation = gjson.Result{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &StructureQuality{
		PDBID:              id,
		Resolution:         upstream.OptFloat(entry.Get("rcsb_entry_info.resolution_combined.0")),
		RWork:              upstream.OptFloat(entry.Get("refine.0.ls_R_factor_R_work")),
		RFree:              upstream.OptFloat(entry.Get("refine.0.ls_R_factor_R_free")),
		ExperimentalMethod: upstream.OptString(entry.Get("exptl.0.method")),
	}
	if m, ok := upstream.Value(validation).(map[string]any); ok {
		out.ValidationAvailable = true
		out.ValidationData = m
	}
	return out, nil
}

// ligands resolves the entry's non-polymer entity IDs, then fetches the
// entities with bounded concurrency.
func (h *handlers) ligands(ctx context.Context, q pdbIDQuery) (*LigandList, error) {
	id, err := normalizePDBID(q.PDBID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("fetching PDB ligands", "pdb_id", id)

	entry, err := h.client.Entry(ctx, id)
	if err != nil {
		return nil, err
	}
	entityIDs := upstream.Strings(entry.Get("rcsb_entry_container_identifiers.non_polymer_entity_ids"))

	ligands := make([]Ligand, len(entityIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLigandFetches)
	for i, entityID := range entityIDs {
		g.Go(func() error {
			e, err := h.client.NonpolymerEntity(gctx, id, entityID)
			if err != nil {
				return fmt.Errorf("ligand entity %s: %w", entityID, err)
			}
			ligands[i] = Ligand{
				EntityID:      entityID,
				CompID:        upstream.OptString(e.Get("pdbx_entity_nonpoly.comp_id")),
				Name:          upstream.OptString(e.Get("pdbx_entity_nonpoly.name")),
				Description:   upstream.OptString(e.Get("rcsb_nonpolymer_entity.pdbx_description")),
				Formula:       upstream.OptString(e.Get("nonpolymer_comp.chem_comp.formula")),
				FormulaWeight: upstream.OptFloat(e.Get("rcsb_nonpolymer_entity.formula_weight")),
				Chains:        upstream.Strings(e.Get("rcsb_nonpolymer_entity_container_identifiers.auth_asym_ids")),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &LigandList{PDBID: id, Count: len(ligands), Ligands: ligands}, nil
}

// normalizePDBID accepts 4HHB and returns 4hhb.
func normalizePDBID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !pdbIDPattern.MatchString(id) {
		return "", tools.InvalidParamsf("invalid PDB ID %q, must be 4 characters (digit + 3 alphanumeric)", raw)
	}
	return id, nil
}
