package chembl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/tools"
)

const molfile = "\n     RDKit          2D\n\n  3  2  0  0  0  0  0  0  0  0999 V2000\nM  END\n"

func fakeChEMBL(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /data/molecule.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("pref_name__icontains") == "aspirin":
			assert.Equal(t, "molecule_chembl_id,pref_name,molecule_structures", q.Get("only"))
			assert.Equal(t, "20", q.Get("limit"))
			io.WriteString(w, `{"molecules":[{"molecule_chembl_id":"CHEMBL25","pref_name":"ASPIRIN"}],"page_meta":{"total_count":1}}`)
		case q.Get("molecule_synonyms__molecule_synonym__icontains") == "aspirin":
			io.WriteString(w, `{"molecules":[{"molecule_chembl_id":"CHEMBL25","pref_name":"ASPIRIN"},{"molecule_chembl_id":"CHEMBL2260549","pref_name":"ASPIRIN DL-LYSINE"}],"page_meta":{}}`)
		case q.Get("max_phase") == "4":
			assert.Equal(t, "molecule_properties__mw_freebase", q.Get("order_by"))
			io.WriteString(w, `{"page_meta":{},"molecules":[{"molecule_chembl_id":"CHEMBL1"}]}`)
		case q.Get("molecule_chembl_id__in") != "":
			assert.Equal(t, "CHEMBL941,CHEMBL1201583", q.Get("molecule_chembl_id__in"))
			io.WriteString(w, `{"molecules":[{"molecule_chembl_id":"CHEMBL941"},{"molecule_chembl_id":"CHEMBL1201583"}]}`)
		case q.Get("molecule_properties__mw_freebase__lte") != "":
			assert.Equal(t, "500", q.Get("molecule_properties__mw_freebase__lte"))
			assert.Equal(t, "0", q.Get("molecule_properties__num_ro5_violations"))
			io.WriteString(w, `{"molecules":[]}`)
		default:
			io.WriteString(w, `{"molecules":[]}`)
		}
	})
	mux.HandleFunc("GET /data/drug_indication.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "leukemia", r.URL.Query().Get("efo_term__icontains"))
		io.WriteString(w, `{"drug_indications":[{"molecule_chembl_id":"CHEMBL941"},{"molecule_chembl_id":"CHEMBL941"},{"molecule_chembl_id":"CHEMBL1201583"}]}`)
	})
	mux.HandleFunc("GET /data/similarity/{query}/{threshold}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CC(=O)Oc1ccccc1C(=O)O", r.PathValue("query"))
		assert.Equal(t, "85.json", r.PathValue("threshold"))
		io.WriteString(w, `{"molecules":[{"molecule_chembl_id":"CHEMBL25","similarity":"100"}]}`)
	})
	mux.HandleFunc("GET /data/molecule/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "CHEMBL25.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"molecule_chembl_id":"CHEMBL25","pref_name":"ASPIRIN","max_phase":"4.0"}`)
	})
	mux.HandleFunc("GET /data/organism.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9606", r.URL.Query().Get("tax_id"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"organisms":[{"tax_id":9606,"l3":"Homo sapiens"}],"page_meta":{}}`)
	})
	mux.HandleFunc("GET /data/status.json", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"chembl_db_version":"ChEMBL_35","status":"UP"}`)
	})
	mux.HandleFunc("POST /utils/smiles2ctab", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "CCO", string(body))
		io.WriteString(w, molfile)
	})
	mux.HandleFunc("POST /utils/chemblDescriptors", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, molfile, string(body))
		io.WriteString(w, `[{"qed_weighted":0.41,"num_ro5_violations":0}]`)
	})
	mux.HandleFunc("POST /utils/highlightSmilesFragmentSvg", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "c1ccccc1O", string(body))
		assert.Equal(t, "c1ccccc1", r.URL.Query().Get("fragment"))
		io.WriteString(w, "<svg>highlighted</svg>\n")
	})
	mux.HandleFunc("POST /utils/canonicalizeSmiles", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "OCC", string(body))
		io.WriteString(w, "CCO\n")
	})
	return mux
}

func setup(t *testing.T) map[string]tools.Tool {
	t.Helper()
	srv := httptest.NewServer(fakeChEMBL(t))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(config.ChEMBL{
		BaseURL:  srv.URL + "/data",
		UtilsURL: srv.URL + "/utils",
		Upstream: config.Upstream{Timeout: 5 * time.Second, MaxTries: 1, UserAgent: "test"},
	}, logger)
	require.NoError(t, err)

	byName, err := tools.Index(Tools(client, logger))
	require.NoError(t, err)
	return byName
}

func call(t *testing.T, ts map[string]tools.Tool, name, args string) (*tools.ToolResult, error) {
	t.Helper()
	tool, ok := ts[name]
	require.True(t, ok, "tool %s not registered", name)
	return tool.Execute(context.Background(), json.RawMessage(args))
}

func records(t *testing.T, res *tools.ToolResult) []map[string]any {
	t.Helper()
	out, ok := res.Output.([]map[string]any)
	require.True(t, ok, "unexpected output type %T", res.Output)
	return out
}

func TestTools_Catalogue(t *testing.T) {
	ts := setup(t)
	assert.Len(t, ts, 16+len(resourceFilters)+len(smilesOps)+len(inchiOps)+1)

	organisms := ts["get_organisms"].Spec()
	props := organisms.Parameters["properties"].(map[string]any)
	assert.Equal(t, "integer", props["tax_id"].(map[string]any)["type"])
	assert.Equal(t, []any{"tax_id"}, organisms.Parameters["required"])
}

func TestSearchByName_MergesSynonyms(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "search_molecule_by_name", `{"name":"aspirin"}`)
	require.NoError(t, err)

	recs := records(t, res)
	require.Len(t, recs, 2)
	assert.Equal(t, "CHEMBL25", recs[0]["molecule_chembl_id"])
	assert.Equal(t, "CHEMBL2260549", recs[1]["molecule_chembl_id"])
}

func TestSearchBySimilarity(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "search_molecule_by_similarity", `{"smiles":"CC(=O)Oc1ccccc1C(=O)O","similarity":"85"}`)
	require.NoError(t, err)
	assert.Len(t, records(t, res), 1)

	_, err = call(t, ts, "search_molecule_by_similarity", `{"smiles":"CCO","similarity":20}`)
	assertInvalidParams(t, err)

	_, err = call(t, ts, "search_molecule_by_similarity", `{}`)
	assertInvalidParams(t, err)
}

func TestSearchApprovedDrugs(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "search_approved_drugs", `{"sort_by_weight":true}`)
	require.NoError(t, err)
	assert.Len(t, records(t, res), 1)

	res, err = call(t, ts, "search_approved_drugs", `{"indication":"leukemia"}`)
	require.NoError(t, err)
	assert.Len(t, records(t, res), 2)
}

func TestSearchByProperties(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "search_molecules_by_properties", `{}`)
	require.NoError(t, err)
	assert.Empty(t, records(t, res))

	res, err = call(t, ts, "search_molecules_by_properties", `{"max_weight":500,"ro5_compliant":true}`)
	require.NoError(t, err)
	assert.Empty(t, records(t, res))
}

func TestGetMolecule(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "get_molecule", `{"chembl_id":"chembl25"}`)
	require.NoError(t, err)
	rec := res.Output.(map[string]any)
	assert.Equal(t, "ASPIRIN", rec["pref_name"])

	_, err = call(t, ts, "get_molecule", `{"chembl_id":"aspirin"}`)
	assertInvalidParams(t, err)

	_, err = call(t, ts, "get_molecule", `{"chembl_id":"CHEMBL999999999"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChEMBL has no matching record")
}

func TestFilterTool(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "get_organisms", `{"tax_id":9606,"limit":"5"}`)
	require.NoError(t, err)
	recs := records(t, res)
	require.Len(t, recs, 1)
	assert.Equal(t, "Homo sapiens", recs[0]["l3"])

	_, err = call(t, ts, "get_organisms", `{"tax_id":"human"}`)
	assertInvalidParams(t, err)

	_, err = call(t, ts, "get_organisms", `{}`)
	assertInvalidParams(t, err)

	for _, limit := range []string{`"ten"`, `2.5`, `true`} {
		_, err = call(t, ts, "get_organisms", `{"tax_id":9606,"limit":`+limit+`}`)
		assertInvalidParams(t, err)
	}
}

func TestStatus(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "get_chembl_status", ``)
	require.NoError(t, err)
	assert.Equal(t, "UP", res.Output.(map[string]any)["status"])
}

func TestUtilities(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "calculate_chembl_descriptors", `{"smiles":"CCO"}`)
	require.NoError(t, err)
	out := res.Output.(*UtilityResult)
	assert.Equal(t, "CCO", out.Input)
	desc := out.Result.([]any)
	assert.Equal(t, 0.41, desc[0].(map[string]any)["qed_weighted"])

	res, err = call(t, ts, "canonicalize_smiles", `{"smiles":"OCC"}`)
	require.NoError(t, err)
	assert.Equal(t, "CCO", res.Output.(*UtilityResult).Result)

	_, err = call(t, ts, "inchi_to_inchi_key", `{"inchi":"CCO"}`)
	assertInvalidParams(t, err)
}

func TestHighlightFragmentSVG(t *testing.T) {
	ts := setup(t)

	res, err := call(t, ts, "highlight_smiles_fragment_svg", `{"smiles":"c1ccccc1O","fragment":"c1ccccc1"}`)
	require.NoError(t, err)
	out := res.Output.(*UtilityResult)
	assert.Equal(t, "c1ccccc1O", out.Input)
	assert.Equal(t, "<svg>highlighted</svg>", out.Result)

	_, err = call(t, ts, "highlight_smiles_fragment_svg", `{"smiles":"c1ccccc1O"}`)
	assertInvalidParams(t, err)
}

func TestCollection(t *testing.T) {
	assert.Empty(t, collection(gjson.Parse(`{"page_meta":{"limit":20}}`)))
	assert.Len(t, collection(gjson.Parse(`[{"a":1},{"b":2}]`)), 2)
	assert.Len(t, collection(gjson.Parse(`{"page_meta":{},"activities":[{"a":1}]}`)), 1)
}

func TestMergeByID(t *testing.T) {
	a := []map[string]any{{"id": "A"}, {"id": "B"}}
	b := []map[string]any{{"id": "B"}, {"id": "C"}, {"other": 1}}
	merged := mergeByID(a, b, "id")
	assert.Len(t, merged, 4)
}

func assertInvalidParams(t *testing.T, err error) {
	t.Helper()
	var toolErr *tools.Error
	require.True(t, errors.As(err, &toolErr), "expected tools.Error, got %v", err)
	assert.Equal(t, tools.CodeInvalidParams, toolErr.Code)
}
