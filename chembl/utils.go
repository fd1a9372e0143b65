package chembl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/tools"
	"github.com/mhpenta/biochem-mcp/upstream"
)

type smilesInput struct {
	SMILES string `json:"smiles" jsonschema:"SMILES of the molecule"`
}

type inchiInput struct {
	InChI string `json:"inchi" jsonschema:"Standard InChI of the molecule, starting with InChI="`
}

type highlightInput struct {
	SMILES   string `json:"smiles" jsonschema:"SMILES of the molecule"`
	Fragment string `json:"fragment" jsonschema:"SMILES or SMARTS of the fragment to highlight"`
}

// UtilityResult echoes the input next to what the utils API returned.
type UtilityResult struct {
	Input  string `json:"input"`
	Result any    `json:"result"`
}

// beakerOp describes one utils endpoint. Endpoints that take a molfile get
// the SMILES converted through smiles2ctab first. JSON replies are decoded,
// everything else is returned as trimmed text.
type beakerOp struct {
	name        string
	description string
	endpoint    string
	molfile     bool
	json        bool
}

var smilesOps = []beakerOp{
	{"canonicalize_smiles", "Convert a SMILES string to its canonical form", "canonicalizeSmiles", false, false},
	{"smiles_to_inchi", "Convert a SMILES string to a standard InChI", "smiles2inchi", false, false},
	{"smiles_to_inchi_key", "Convert a SMILES string to a standard InChI Key", "smiles2inchiKey", false, false},
	{"smiles_to_svg", "Render a SMILES string as an SVG depiction", "smiles2svg", false, false},
	{"standardize_molecule", "Standardize a molecule with the ChEMBL structure pipeline and return the molfile", "standardize", true, false},
	{"get_parent_molecule", "Strip salts and solvents to get the parent molecule as a molfile", "getParent", true, false},
	{"calculate_descriptors", "Calculate RDKit descriptors for a molecule", "descriptors", true, true},
	{"calculate_chembl_descriptors", "Calculate ChEMBL descriptors such as QED and Rule of Five properties", "chemblDescriptors", true, true},
	{"get_structural_alerts", "List the ChEMBL structural alerts a molecule matches", "structuralAlerts", true, true},
	{"remove_hydrogens", "Remove explicit hydrogens and return the molfile", "removeHs", true, false},
	{"is_3d", "Check whether the molecule has 3D coordinates", "is3D", true, true},
}

var inchiOps = []beakerOp{
	{"inchi_to_inchi_key", "Convert a standard InChI to an InChI Key", "inchi2inchiKey", false, false},
	{"inchi_to_svg", "Render a standard InChI as an SVG depiction", "inchi2svg", false, false},
}

func utilityTools(client *Client, logger *slog.Logger) []tools.Tool {
	out := make([]tools.Tool, 0, len(smilesOps)+len(inchiOps)+1)
	for _, op := range smilesOps {
		out = append(out, tools.NewTool(op.name, op.description+" using the ChEMBL utils API.",
			func(ctx context.Context, in smilesInput) (*UtilityResult, error) {
				smiles, err := tools.Required("smiles", in.SMILES)
				if err != nil {
					return nil, err
				}
				return runBeaker(ctx, client, logger, op, smiles)
			},
			tools.WithVerb("Running ChEMBL utils"),
			tools.WithTimeout(30*time.Second),
		))
	}
	for _, op := range inchiOps {
		out = append(out, tools.NewTool(op.name, op.description+" using the ChEMBL utils API.",
			func(ctx context.Context, in inchiInput) (*UtilityResult, error) {
				inchi, err := tools.Required("inchi", in.InChI)
				if err != nil {
					return nil, err
				}
				if !strings.HasPrefix(inchi, "InChI=") {
					return nil, tools.InvalidParamsf("inchi must start with InChI=, got %q", inchi)
				}
				return runBeaker(ctx, client, logger, op, inchi)
			},
			tools.WithVerb("Running ChEMBL utils"),
			tools.WithTimeout(30*time.Second),
		))
	}
	out = append(out, tools.NewTool("highlight_smiles_fragment_svg",
		"Render a SMILES string as SVG with a fragment highlighted using the ChEMBL utils API.",
		func(ctx context.Context, in highlightInput) (*UtilityResult, error) {
			smiles, err := tools.Required("smiles", in.SMILES)
			if err != nil {
				return nil, err
			}
			fragment, err := tools.Required("fragment", in.Fragment)
			if err != nil {
				return nil, err
			}
			logger.Info("calling ChEMBL utils", "endpoint", "highlightSmilesFragmentSvg", "input", smiles, "fragment", fragment)
			svg, err := client.HighlightFragment(ctx, smiles, fragment)
			if err != nil {
				return nil, err
			}
			return &UtilityResult{Input: smiles, Result: strings.TrimSpace(string(svg))}, nil
		},
		tools.WithVerb("Running ChEMBL utils"),
		tools.WithTimeout(30*time.Second),
	))
	return out
}

func runBeaker(ctx context.Context, client *Client, logger *slog.Logger, op beakerOp, input string) (*UtilityResult, error) {
	logger.Info("calling ChEMBL utils", "endpoint", op.endpoint, "input", input)

	body := input
	if op.molfile {
		molfile, err := client.SMILESToMolfile(ctx, input)
		if err != nil {
			return nil, err
		}
		body = molfile
	}

	reply, err := client.Beaker(ctx, op.endpoint, body)
	if err != nil {
		return nil, err
	}

	result := &UtilityResult{Input: input, Result: strings.TrimSpace(string(reply))}
	if op.json && gjson.ValidBytes(reply) {
		result.Result = upstream.Value(gjson.ParseBytes(reply))
	}
	return result, nil
}
