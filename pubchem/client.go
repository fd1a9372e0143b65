// Package pubchem serves PubChem compound lookups over MCP using the PUG REST
// API.
package pubchem

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/upstream"
)

const (
	serviceName = "PubChem"

	// maxSynonyms caps the synonym list attached to each compound.
	maxSynonyms = 20
)

// properties requested for every compound, in PUG REST naming.
var properties = strings.Join([]string{
	"IUPACName",
	"MolecularFormula",
	"MolecularWeight",
	"CanonicalSMILES",
	"IsomericSMILES",
	"ConnectivitySMILES",
	"SMILES",
	"InChI",
	"InChIKey",
	"XLogP",
	"ExactMass",
	"MonoisotopicMass",
	"TPSA",
	"Complexity",
	"Charge",
	"HBondDonorCount",
	"HBondAcceptorCount",
	"RotatableBondCount",
	"HeavyAtomCount",
	"AtomStereoCount",
	"DefinedAtomStereoCount",
	"UndefinedAtomStereoCount",
	"BondStereoCount",
	"DefinedBondStereoCount",
	"UndefinedBondStereoCount",
	"CovalentUnitCount",
}, ",")

// Compound is the flattened property record returned by every tool.
type Compound struct {
	CID                      int      `json:"cid"`
	IUPACName                *string  `json:"iupac_name"`
	MolecularFormula         *string  `json:"molecular_formula"`
	MolecularWeight          *float64 `json:"molecular_weight"`
	CanonicalSMILES          *string  `json:"canonical_smiles"`
	IsomericSMILES           *string  `json:"isomeric_smiles"`
	InChI                    *string  `json:"inchi"`
	InChIKey                 *string  `json:"inchikey"`
	XLogP                    *float64 `json:"xlogp"`
	ExactMass                *float64 `json:"exact_mass"`
	MonoisotopicMass         *float64 `json:"monoisotopic_mass"`
	TPSA                     *float64 `json:"tpsa"`
	Complexity               *float64 `json:"complexity"`
	Charge                   *int     `json:"charge"`
	HBondDonorCount          *int     `json:"h_bond_donor_count"`
	HBondAcceptorCount       *int     `json:"h_bond_acceptor_count"`
	RotatableBondCount       *int     `json:"rotatable_bond_count"`
	HeavyAtomCount           *int     `json:"heavy_atom_count"`
	AtomStereoCount          *int     `json:"atom_stereo_count"`
	DefinedAtomStereoCount   *int     `json:"defined_atom_stereo_count"`
	UndefinedAtomStereoCount *int     `json:"undefined_atom_stereo_count"`
	BondStereoCount          *int     `json:"bond_stereo_count"`
	DefinedBondStereoCount   *int     `json:"defined_bond_stereo_count"`
	UndefinedBondStereoCount *int     `json:"undefined_bond_stereo_count"`
	CovalentUnitCount        *int     `json:"covalent_unit_count"`
	Synonyms                 []string `json:"synonyms,omitempty"`
}

// Structure is a downloaded SDF record.
type Structure struct {
	CID        int    `json:"cid"`
	RecordType string `json:"record_type"`
	Format     string `json:"format"`
	Data       string `json:"data"`
}

type Client struct {
	api    *upstream.Client
	logger *slog.Logger
}

func NewClient(cfg config.PubChem, logger *slog.Logger) (*Client, error) {
	api, err := upstream.New(serviceName, cfg.BaseURL,
		upstream.WithSettings(cfg.Upstream),
		upstream.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: logger}, nil
}

// SearchByName resolves a compound name to at most limit compounds.
func (c *Client) SearchByName(ctx context.Context, name string, limit int) ([]Compound, error) {
	res, err := c.api.GetJSON(ctx, upstream.Path("compound/name/%s/cids/JSON", name), nil)
	return c.resolve(ctx, res, err, limit)
}

// SearchBySMILES posts the SMILES as a form field so slashes and other
// reserved characters survive.
func (c *Client) SearchBySMILES(ctx context.Context, smiles string, limit int) ([]Compound, error) {
	res, err := c.api.PostForm(ctx, "compound/smiles/cids/JSON", url.Values{"smiles": {smiles}})
	return c.resolve(ctx, res, err, limit)
}

func (c *Client) SearchByFormula(ctx context.Context, formula string, limit int) ([]Compound, error) {
	res, err := c.api.GetJSON(ctx,
		upstream.Path("compound/fastformula/%s/cids/JSON", formula),
		url.Values{"MaxRecords": {strconv.Itoa(limit)}})
	return c.resolve(ctx, res, err, limit)
}

// CompoundByCID returns a single compound. Unlike the searches, a CID that
// PubChem does not know is an error.
func (c *Client) CompoundByCID(ctx context.Context, cid int) (*Compound, error) {
	compounds, err := c.Compounds(ctx, []int{cid})
	if err != nil {
		return nil, err
	}
	if len(compounds) == 0 {
		return nil, fmt.Errorf("PubChem has no compound with CID %d", cid)
	}
	return &compounds[0], nil
}

// Compounds fetches the property table and synonyms for cids concurrently.
func (c *Client) Compounds(ctx context.Context, cids []int) ([]Compound, error) {
	if len(cids) == 0 {
		return []Compound{}, nil
	}
	// Digits and commas only, so the list needs no escaping.
	list := joinCIDs(cids)

	var (
		table    gjson.Result
		synonyms map[int][]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		table, err = c.api.GetJSON(gctx, "compound/cid/"+list+"/property/"+properties+"/JSON", nil)
		return err
	})
	g.Go(func() error {
		synonyms = c.synonyms(gctx, list)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []Compound{}
	table.Get("PropertyTable.Properties").ForEach(func(_, row gjson.Result) bool {
		cmp := compoundFrom(row)
		cmp.Synonyms = synonyms[cmp.CID]
		out = append(out, cmp)
		return true
	})
	return out, nil
}

// synonyms is best effort: a compound without synonyms is still a result.
func (c *Client) synonyms(ctx context.Context, list string) map[int][]string {
	res, err := c.api.GetJSON(ctx, "compound/cid/"+list+"/synonyms/JSON", nil)
	if err != nil {
		if !upstream.IsNotFound(err) {
			c.logger.Warn("failed to fetch PubChem synonyms", "cids", list, "error", err)
		}
		return nil
	}

	out := make(map[int][]string)
	res.Get("InformationList.Information").ForEach(func(_, info gjson.Result) bool {
		names := upstream.Strings(info.Get("Synonym"))
		if len(names) > maxSynonyms {
			names = names[:maxSynonyms]
		}
		out[int(info.Get("CID").Int())] = names
		return true
	})
	return out
}

// Structure downloads the SDF record of a compound. recordType is 2d or 3d.
func (c *Client) Structure(ctx context.Context, cid int, recordType string) (*Structure, error) {
	resp, err := c.api.GetRaw(ctx,
		upstream.Path("compound/cid/%s/SDF", cid),
		url.Values{"record_type": {recordType}},
		"chemical/x-mdl-sdfile")
	if err != nil {
		if upstream.IsNotFound(err) && recordType == "3d" {
			return nil, fmt.Errorf("PubChem has no 3D conformer for CID %d, try record_type 2d", cid)
		}
		return nil, err
	}
	return &Structure{
		CID:        cid,
		RecordType: recordType,
		Format:     "sdf",
		Data:       string(resp.Body),
	}, nil
}

// resolve turns an IdentifierList response into compounds. A 404 from a
// search means nothing matched.
func (c *Client) resolve(ctx context.Context, res gjson.Result, err error, limit int) ([]Compound, error) {
	if err != nil {
		if upstream.IsNotFound(err) {
			return []Compound{}, nil
		}
		return nil, err
	}

	var cids []int
	res.Get("IdentifierList.CID").ForEach(func(_, v gjson.Result) bool {
		if id := int(v.Int()); id > 0 {
			cids = append(cids, id)
		}
		return len(cids) < limit
	})
	return c.Compounds(ctx, cids)
}

func compoundFrom(row gjson.Result) Compound {
	return Compound{
		CID:                      int(row.Get("CID").Int()),
		IUPACName:                upstream.OptString(row.Get("IUPACName")),
		MolecularFormula:         upstream.OptString(row.Get("MolecularFormula")),
		MolecularWeight:          upstream.OptFloat(row.Get("MolecularWeight")),
		CanonicalSMILES:          upstream.OptString(firstOf(row, "CanonicalSMILES", "ConnectivitySMILES")),
		IsomericSMILES:           upstream.OptString(firstOf(row, "IsomericSMILES", "SMILES")),
		InChI:                    upstream.OptString(row.Get("InChI")),
		InChIKey:                 upstream.OptString(row.Get("InChIKey")),
		XLogP:                    upstream.OptFloat(row.Get("XLogP")),
		ExactMass:                upstream.OptFloat(row.Get("ExactMass")),
		MonoisotopicMass:         upstream.OptFloat(row.Get("MonoisotopicMass")),
		TPSA:                     upstream.OptFloat(row.Get("TPSA")),
		Complexity:               upstream.OptFloat(row.Get("Complexity")),
		Charge:                   upstream.OptInt(row.Get("Charge")),
		HBondDonorCount:          upstream.OptInt(row.Get("HBondDonorCount")),
		HBondAcceptorCount:       upstream.OptInt(row.Get("HBondAcceptorCount")),
		RotatableBondCount:       upstream.OptInt(row.Get("RotatableBondCount")),
		HeavyAtomCount:           upstream.OptInt(row.Get("HeavyAtomCount")),
		AtomStereoCount:          upstream.OptInt(row.Get("AtomStereoCount")),
		DefinedAtomStereoCount:   upstream.OptInt(row.Get("DefinedAtomStereoCount")),
		UndefinedAtomStereoCount: upstream.OptInt(row.Get("UndefinedAtomStereoCount")),
		BondStereoCount:          upstream.OptInt(row.Get("BondStereoCount")),
		DefinedBondStereoCount:   upstream.OptInt(row.Get("DefinedBondStereoCount")),
		UndefinedBondStereoCount: upstream.OptInt(row.Get("UndefinedBondStereoCount")),
		CovalentUnitCount:        upstream.OptInt(row.Get("CovalentUnitCount")),
	}
}

// firstOf returns the first of paths present in r. PubChem renamed its SMILES
// properties, and older mirrors still serve the previous names.
func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func joinCIDs(cids []int) string {
	parts := make([]string, len(cids))
	for i, id := range cids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
