package opentargets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/tools"
)

// fakeGraphQL answers by operation name and checks the variables.
func fakeGraphQL(t *testing.T, hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/graphql", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		req := gjson.ParseBytes(body)
		query := req.Get("query").String()
		vars := req.Get("variables")

		switch {
		case strings.Contains(query, "query Search("):
			assert.Equal(t, int64(0), vars.Get("index").Int())
			switch vars.Get("queryString").String() {
			case "BRAF":
				assert.Equal(t, "target", vars.Get("entityNames.0").String())
				assert.Equal(t, int64(3), vars.Get("size").Int())
				io.WriteString(w, `{"data":{"search":{"hits":[
					{"id":"ENSG00000157764","entity":"target","name":"BRAF"},
					{"id":"ENSG00000000001","entity":"target","name":""}]}}}`)
			case "asthma":
				assert.Equal(t, "disease", vars.Get("entityNames.0").String())
				io.WriteString(w, `{"data":{"search":{"hits":[{"id":"MONDO_0004979","entity":"disease","name":"asthma","description":"A chronic disease"}]}}}`)
			case "broken":
				io.WriteString(w, `{"data":null,"errors":[{"message":"Syntax Error"},{"message":"Second"}]}`)
			default:
				io.WriteString(w, `{"data":{"search":{"hits":[]}}}`)
			}
		case strings.Contains(query, "query TargetDetails"):
			if vars.Get("ensemblId").String() != "ENSG00000157764" {
				io.WriteString(w, `{"data":{"target":null}}`)
				return
			}
			io.WriteString(w, `{"data":{"target":{"id":"ENSG00000157764","approvedSymbol":"BRAF",
				"approvedName":"B-Raf proto-oncogene","biotype":"protein_coding",
				"genomicLocation":{"chromosome":"7","start":140719327,"end":140924929},
				"functionDescriptions":["Protein kinase involved in MAPK signaling",{"label":"legacy"}]}}}`)
		case strings.Contains(query, "query TargetAssociatedDiseases"):
			assert.Equal(t, int64(2), vars.Get("size").Int())
			assert.Equal(t, "ENSG00000112164", vars.Get("ensemblId").String())
			io.WriteString(w, `{"data":{"target":{"id":"ENSG00000112164","approvedSymbol":"GLP1R",
				"associatedDiseases":{"count":2,"rows":[
					{"disease":{"id":"MONDO_0005148","name":"type 2 diabetes mellitus"},"score":0.81},
					{"disease":{},"score":0.2}]}}}}`)
		case strings.Contains(query, "query DiseaseAssociatedTargets"):
			assert.Equal(t, "EFO_0000311", vars.Get("efoId").String())
			io.WriteString(w, `{"data":{"disease":{"id":"EFO_0000311","name":"cancer","associatedTargets":{"count":0,"rows":[]}}}}`)
		case strings.Contains(query, "query DrugDetails"):
			assert.Equal(t, "CHEMBL25", vars.Get("chemblId").String())
			io.WriteString(w, `{"data":{"drug":{"id":"CHEMBL25","name":"ASPIRIN","drugType":"Small molecule",
				"maximumClinicalTrialPhase":4,"isApproved":true,"hasBeenWithdrawn":false,
				"synonyms":["Acetylsalicylic acid"],"tradeNames":["Aspirin"],
				"mechanismsOfAction":{"rows":[{"mechanismOfAction":"Cyclooxygenase inhibitor","actionType":"INHIBITOR",
					"targets":[{"id":"ENSG00000095303","approvedSymbol":"PTGS1"},{"id":"ENSG00000073756","approvedSymbol":"PTGS2"}]}]}}}}`)
		default:
			t.Errorf("unexpected query: %s", query)
		}
	})
}

func setup(t *testing.T) (map[string]tools.Tool, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	srv := httptest.NewServer(fakeGraphQL(t, hits))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(config.OpenTargets{
		GraphQLURL: srv.URL + "/api/v4/graphql",
		Upstream:   config.Upstream{Timeout: 5 * time.Second, MaxTries: 1, UserAgent: "test"},
	}, logger)
	require.NoError(t, err)

	byName, err := tools.Index(Tools(client, logger))
	require.NoError(t, err)
	return byName, hits
}

func call(t *testing.T, ts map[string]tools.Tool, name, args string) (*tools.ToolResult, error) {
	t.Helper()
	tool, ok := ts[name]
	require.True(t, ok, "tool %s not registered", name)
	return tool.Execute(context.Background(), json.RawMessage(args))
}

func assertInvalidParams(t *testing.T, err error) {
	t.Helper()
	var toolErr *tools.Error
	require.True(t, errors.As(err, &toolErr), "expected tools.Error, got %v", err)
	assert.Equal(t, tools.CodeInvalidParams, toolErr.Code)
}

func TestTools_Catalogue(t *testing.T) {
	ts, _ := setup(t)
	assert.Len(t, ts, 7)

	props := ts["get_target_associated_diseases"].Spec().Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "target_id")
	assert.Contains(t, props, "targetId")
	assert.Contains(t, props, "maxResults")
}

func TestSearchTargets_CamelCaseAlias(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "search_targets", `{"query":"BRAF","maxResults":3}`)
	require.NoError(t, err)
	out := res.Output.(*TargetSearch)
	require.Len(t, out.Targets, 2)
	assert.Equal(t, TargetHit{TargetID: "ENSG00000157764", Name: "BRAF", Entity: "target"}, out.Targets[0])
	assert.Equal(t, "No name", out.Targets[1].Name)
	assert.Empty(t, out.Message)
}

func TestSearch_EmptyCarriesMessage(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "search_drugs", `{"query":"zzz"}`)
	require.NoError(t, err)
	out := res.Output.(*DrugSearch)
	assert.Empty(t, out.Drugs)
	assert.Equal(t, "No drugs found for your query", out.Message)
}

func TestSearchDiseases(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "search_diseases", `{"query":"asthma"}`)
	require.NoError(t, err)
	out := res.Output.(*DiseaseSearch)
	require.Len(t, out.Diseases, 1)
	assert.Equal(t, "MONDO_0004979", out.Diseases[0].DiseaseID)
	assert.Equal(t, "A chronic disease", *out.Diseases[0].Description)
}

func TestGraphQLErrors(t *testing.T) {
	ts, _ := setup(t)

	_, err := call(t, ts, "search_targets", `{"query":"broken"}`)
	var gqlErr *GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Equal(t, []string{"Syntax Error", "Second"}, gqlErr.Messages)
	assert.Equal(t, "Open Targets GraphQL errors: Syntax Error; Second", err.Error())
}

func TestTargetDetails(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "get_target_details", `{"targetId":"ensg00000157764"}`)
	require.NoError(t, err)
	d := res.Output.(*TargetDetails)
	assert.Equal(t, "BRAF", d.Symbol)
	assert.Equal(t, "7", *d.Chromosome)
	assert.Equal(t, 140719327, *d.Start)
	assert.Equal(t, []string{"Protein kinase involved in MAPK signaling", "legacy"}, d.GeneFunctions)

	_, err = call(t, ts, "get_target_details", `{"target_id":"ENSG00000000002"}`)
	require.Error(t, err)
	assert.Equal(t, "no target found with ID: ENSG00000000002", err.Error())
}

func TestIDValidation_NoRequests(t *testing.T) {
	ts, hits := setup(t)

	cases := []struct{ tool, args string }{
		{"get_target_details", `{}`},
		{"get_target_details", `{"target_id":"BRAF"}`},
		{"get_disease_associated_targets", `{"disease_id":"diabetes"}`},
		{"get_drug_details", `{"drug_id":"aspirin"}`},
		{"search_targets", `{"query":"  "}`},
	}
	for _, c := range cases {
		_, err := call(t, ts, c.tool, c.args)
		assertInvalidParams(t, err)
	}
	assert.Zero(t, hits.Load())
}

func TestTargetAssociatedDiseases(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "get_target_associated_diseases", `{"target_id":"ENSG00000000002","targetId":"ENSG00000112164","max_results":50,"maxResults":2}`)
	require.NoError(t, err)
	out := res.Output.(*TargetDiseases)
	assert.Equal(t, "GLP1R", out.Symbol)
	require.Len(t, out.Associations, 2)
	assert.Equal(t, 0.81, out.Associations[0].AssociationScore)
	assert.Equal(t, DiseaseAssociation{DiseaseID: "Unknown ID", DiseaseName: "No name", AssociationScore: 0.2}, out.Associations[1])
}

func TestDiseaseAssociatedTargets_ColonIDAndEmpty(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "get_disease_associated_targets", `{"diseaseId":"EFO:0000311"}`)
	require.NoError(t, err)
	out := res.Output.(*DiseaseTargets)
	assert.Equal(t, "cancer", out.DiseaseName)
	assert.Empty(t, out.Associations)
	assert.Equal(t, "No targets associated with disease ID: EFO_0000311", out.Message)
}

func TestDrugDetails(t *testing.T) {
	ts, _ := setup(t)

	res, err := call(t, ts, "get_drug_details", `{"drug_id":"chembl25"}`)
	require.NoError(t, err)
	d := res.Output.(*DrugDetails)
	assert.Equal(t, "ASPIRIN", d.Name)
	assert.Equal(t, 4.0, *d.MaxClinicalPhase)
	assert.True(t, d.IsApproved)
	require.Len(t, d.MechanismsOfAction, 1)
	assert.Equal(t, []string{"PTGS1", "PTGS2"}, d.MechanismsOfAction[0].Targets)
	assert.Equal(t, "INHIBITOR", *d.MechanismsOfAction[0].ActionType)
}

func TestMaxResults(t *testing.T) {
	assert.Equal(t, 10, maxResults(0, 0))
	assert.Equal(t, 7, maxResults(0, 7))
	assert.Equal(t, 7, maxResults(3, 7))
	assert.Equal(t, 3, maxResults(3, 0))
	assert.Equal(t, 100, maxResults(500, 0))
}
