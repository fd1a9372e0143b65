package chembl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mhpenta/biochem-mcp/infer"
	"github.com/mhpenta/biochem-mcp/safeunmarshal"
	"github.com/mhpenta/biochem-mcp/tools"
)

// resourceFilter is a tool that filters one ChEMBL resource on one field.
// arg is the tool argument name and lookup the ChEMBL filter it feeds.
type resourceFilter struct {
	name        string
	description string
	resource    string
	arg         string
	lookup      string
	argDesc     string
	integer     bool
}

var resourceFilters = []resourceFilter{
	{"get_activities_by_assay", "Get bioactivity records measured in an assay", "activity", "assay_chembl_id", "assay_chembl_id", "Assay ChEMBL ID, e.g. CHEMBL1217643", false},
	{"get_activity_supplementary_data", "Get supplementary data recorded for an activity", "activity_supplementary_data_by_activity", "activity_chembl_id", "activity_chembl_id", "Activity ChEMBL ID", false},
	{"get_assays_by_type", "Get assays of a type", "assay", "assay_type", "assay_type", "Assay type: B binding, F functional, A ADMET, T toxicity, P physicochemical, U unclassified", false},
	{"get_assay_classes", "Get assay classifications of a class type", "assay_class", "assay_class_type", "assay_class_type", "Assay class type, e.g. In vivo efficacy", false},
	{"get_atc_classes", "Get ATC classifications under a level 1 code", "atc_class", "level1", "level1", "ATC level 1 code, e.g. A", false},
	{"get_binding_sites", "Get binding sites by name", "binding_site", "site_name", "site_name", "Binding site name", false},
	{"get_biotherapeutics", "Get biotherapeutic molecules matching a description", "biotherapeutic", "description", "description__icontains", "Text the biotherapeutic description must contain", false},
	{"get_cell_lines", "Get cell lines by name", "cell_line", "cell_line_name", "cell_name", "Cell line name, e.g. MCF7", false},
	{"get_compound_records", "Get compound records by the name used in the source document", "compound_record", "compound_name", "compound_name", "Compound name as recorded in the source", false},
	{"get_compound_structural_alerts", "Get compounds flagged by a structural alert", "compound_structural_alert", "alert_name", "alert__alert_name", "Structural alert name", false},
	{"get_descriptions", "Get ChEMBL descriptions of a type", "description", "description_type", "description_type", "Description type", false},
	{"get_documents_by_journal", "Get documents published in a journal", "document", "journal", "journal", "Journal abbreviation, e.g. J Med Chem", false},
	{"get_drugs_by_type", "Get drugs of a drug type", "drug", "drug_type", "drug_type", "Drug type code", false},
	{"get_drug_indications", "Get drug indications for a MeSH heading", "drug_indication", "mesh_heading", "mesh_heading", "MeSH heading, e.g. Hypertension", false},
	{"get_drug_warnings", "Get drug warnings for a MedDRA term", "drug_warning", "meddra_term", "meddra_term", "MedDRA term", false},
	{"get_go_slims", "Get GO slim terms by term name", "go_slim", "go_slim_term", "go_slim_term", "GO slim term, e.g. kinase activity", false},
	{"get_mechanisms", "Get drug mechanisms with a mechanism of action", "mechanism", "mechanism_of_action", "mechanism_of_action", "Mechanism of action, e.g. Cyclooxygenase inhibitor", false},
	{"get_molecules_by_type", "Get molecules of a molecule type", "molecule", "molecule_type", "molecule_type", "Molecule type, e.g. Small molecule, Antibody", false},
	{"get_molecule_forms", "Get parent and salt forms of a molecule", "molecule_form", "molecule_chembl_id", "molecule_chembl_id", "Molecule ChEMBL ID", false},
	{"get_organisms", "Get organism classifications for an NCBI taxonomy id", "organism", "tax_id", "tax_id", "NCBI taxonomy id, e.g. 9606", true},
	{"get_protein_classifications", "Get protein classifications by name", "protein_classification", "protein_class_name", "pref_name", "Protein class name, e.g. Kinase", false},
	{"get_sources", "Get data sources by description", "source", "source_description", "src_description", "Source description", false},
	{"get_targets_by_type", "Get targets of a target type", "target", "target_type", "target_type", "Target type, e.g. SINGLE PROTEIN", false},
	{"get_target_components", "Get target components of a component type", "target_component", "component_type", "component_type", "Component type, e.g. PROTEIN", false},
	{"get_target_relations", "Get target relations of a relationship type", "target_relation", "relationship", "relationship", "Relationship, e.g. SUBSET OF", false},
	{"get_tissues", "Get tissues by name", "tissue", "tissue_name", "pref_name", "Tissue name, e.g. Liver", false},
	{"get_xref_sources", "Get cross reference sources by database name", "xref_source", "xref_name", "xref_src_db", "Cross reference database name", false},
}

var listOutput = infer.MustMap[[]map[string]any]()

// filterTools builds one tool per entry of resourceFilters.
func filterTools(client *Client, logger *slog.Logger) []tools.Tool {
	out := make([]tools.Tool, 0, len(resourceFilters))
	for _, f := range resourceFilters {
		out = append(out, newFilterTool(f, client, logger))
	}
	return out
}

type filterTool struct {
	def    resourceFilter
	spec   *tools.ToolSpec
	client *Client
	logger *slog.Logger
}

func newFilterTool(def resourceFilter, client *Client, logger *slog.Logger) *filterTool {
	argType := "string"
	if def.integer {
		argType = "integer"
	}
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			def.arg: {Type: argType, Description: def.argDesc},
			"limit": {Type: "integer", Description: "Maximum records to return (default 20, max 1000)"},
		},
		Required: []string{def.arg},
	}
	params, err := infer.ToMap(schema)
	if err != nil {
		panic(fmt.Sprintf("schema for %s: %v", def.name, err))
	}

	return &filterTool{
		def: def,
		spec: &tools.ToolSpec{
			Name:        def.name,
			Type:        def.name + "_v1",
			Description: def.description + " from ChEMBL.",
			Parameters:  params,
			Output:      listOutput,
			Timeout:     30 * time.Second,
			UI:          tools.UI{Verb: "Querying ChEMBL"},
		},
		client: client,
		logger: logger,
	}
}

func (t *filterTool) Spec() *tools.ToolSpec {
	return t.spec
}

func (t *filterTool) Execute(ctx context.Context, params json.RawMessage) (*tools.ToolResult, error) {
	args, err := safeunmarshal.To[map[string]any](params)
	if err != nil {
		return nil, tools.InvalidParamsf("failed to parse parameters: %v", err)
	}

	value := scalarString(args[t.def.arg])
	if value == "" {
		return nil, tools.InvalidParamsf("%s is required", t.def.arg)
	}
	if t.def.integer {
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return nil, tools.InvalidParamsf("%s must be an integer, got %q", t.def.arg, value)
		}
	}
	var limit int
	if raw, ok := args["limit"]; ok && raw != nil {
		limit, err = strconv.Atoi(scalarString(raw))
		if err != nil {
			return nil, tools.InvalidParamsf("limit must be an integer, got %v", raw)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.spec.Timeout)
	defer cancel()

	t.logger.Info("filtering ChEMBL resource", "tool", t.def.name, "resource", t.def.resource, t.def.arg, value)
	records, err := t.client.Filter(ctx, Query{
		Resource: t.def.resource,
		Filters:  url.Values{t.def.lookup: {value}},
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	return &tools.ToolResult{Output: records}, nil
}

// scalarString renders a decoded JSON scalar as a query value.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
