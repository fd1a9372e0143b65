package chembl

import (
	"log/slog"
	"time"

	"github.com/mhpenta/biochem-mcp/tools"
)

// Tools returns the ChEMBL tool set: searches, record lookups, single field
// resource filters and the structure utilities.
func Tools(client *Client, logger *slog.Logger) []tools.Tool {
	h := &handlers{client: client, logger: logger}

	search := func(opts ...tools.ToolOption) []tools.ToolOption {
		return append([]tools.ToolOption{
			tools.WithVerb("Searching ChEMBL"),
			tools.WithTimeout(30 * time.Second),
		}, opts...)
	}

	ts := []tools.Tool{
		tools.NewTool("search_molecule_by_name",
			"Search ChEMBL molecules by preferred name or synonym. Partial, case-insensitive matching unless exact_match is set.",
			h.searchByName, search()...),
		tools.NewTool("search_molecule_by_similarity",
			"Find molecules similar to a structure using Tanimoto similarity. Give either a SMILES or a ChEMBL ID.",
			h.searchBySimilarity, search()...),
		tools.NewTool("search_molecule_by_substructure",
			"Find molecules that contain a substructure given as SMILES.",
			h.searchBySubstructure, search(tools.WithLongRunning(true))...),
		tools.NewTool("search_molecule_by_inchi_key",
			"Find molecules by standard InChI Key.",
			h.searchByInChIKey, search(tools.WithTimeout(20*time.Second))...),
		tools.NewTool("search_approved_drugs",
			"List approved drugs (max phase 4), optionally restricted to an indication and sorted by molecular weight.",
			h.searchApprovedDrugs, search()...),
		tools.NewTool("search_molecules_by_properties",
			"Find molecules by molecular weight, LogP, Rule of Five compliance and name pattern. Returns an empty list when no filter is given.",
			h.searchByProperties, search()...),
		tools.NewTool("search_target_by_gene_name",
			"Find targets by gene name or synonym, optionally restricted to an organism.",
			h.searchTargetByGene, search()...),
		tools.NewTool("search_activities_by_target",
			"Get bioactivity data measured against a target.",
			h.activitiesByTarget, search()...),
		tools.NewTool("search_activities_by_molecule",
			"Get bioactivity data recorded for a molecule.",
			h.activitiesByMolecule, search()...),
		tools.NewTool("search_assays",
			"Find assays by description text, assay type and organism. Returns an empty list when no filter is given.",
			h.searchAssays, search(tools.WithTimeout(20*time.Second))...),
		tools.NewTool("search_documents_by_pubmed",
			"Find ChEMBL documents by PubMed ID.",
			h.documentsByPubMed, search(tools.WithTimeout(20*time.Second))...),
		tools.NewTool("lookup_chembl_ids",
			"Resolve free text to ChEMBL identifiers of compounds, targets, assays, documents or cells.",
			h.lookupIDs, search(tools.WithTimeout(20*time.Second))...),
		tools.NewTool("get_molecule",
			"Get the full ChEMBL record of a molecule.",
			h.record("molecule"), tools.WithVerb("Fetching ChEMBL molecule"), tools.WithTimeout(20*time.Second)),
		tools.NewTool("get_target",
			"Get the full ChEMBL record of a target.",
			h.record("target"), tools.WithVerb("Fetching ChEMBL target"), tools.WithTimeout(20*time.Second)),
		tools.NewTool("get_chembl_releases",
			"List ChEMBL database releases.",
			h.releases, tools.WithVerb("Fetching ChEMBL releases"), tools.WithTimeout(10*time.Second)),
		tools.NewTool("get_chembl_status",
			"Report the ChEMBL service status and database version.",
			h.status, tools.WithVerb("Checking ChEMBL status"), tools.WithTimeout(10*time.Second)),
	}

	ts = append(ts, filterTools(client, logger)...)
	ts = append(ts, utilityTools(client, logger)...)
	return ts
}
