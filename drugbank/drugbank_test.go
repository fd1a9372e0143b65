package drugbank

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/tools"
)

func fakeDrugBank(t *testing.T, hits *atomic.Int32) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/drugs", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("q") {
		case "aspirin":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			io.WriteString(w, `{"data":[
				{"drugbank_id":"DB00945","name":"Acetylsalicylic acid","cas_number":"50-78-2","synonyms":["Aspirin","ASA"],"groups":["approved"]},
				{"drugbank_id":"DB01399","name":"Salsalate","groups":["approved"]},
				{"drugbank_id":"DB00000","name":"Extra"}
			]}`)
		case "category:antibiotic":
			io.WriteString(w, `[{"id":"DB00254","name":"Doxycycline"}]`)
		default:
			io.WriteString(w, `{"data":[]}`)
		}
	})
	mux.HandleFunc("GET /v1/drugs/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.PathValue("id") != "DB00945" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"Drug not found"}`)
			return
		}
		io.WriteString(w, `{"data":{"name":"Acetylsalicylic acid","indication":"Pain and fever","mechanism_of_action":"COX inhibitor","groups":["approved","vet_approved"]}}`)
	})
	mux.HandleFunc("GET /v1/drugs/{id}/interactions", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"data":[
			{"interacting_drug":{"drugbank_id":"DB00682","name":"Warfarin"},"description":"Increased bleeding risk"},
			{"interacting_drug":{}}
		]}`)
	})
	return mux
}

func setup(t *testing.T, apiKey string) (map[string]tools.Tool, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	srv := httptest.NewServer(fakeDrugBank(t, hits))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(config.DrugBank{
		BaseURL:  srv.URL + "/v1",
		APIKey:   apiKey,
		Upstream: config.Upstream{Timeout: 5 * time.Second, MaxTries: 1, UserAgent: "test"},
	}, logger)
	require.NoError(t, err)

	byName, err := tools.Index(Tools(client, logger))
	require.NoError(t, err)
	return byName, hits
}

func call(t *testing.T, ts map[string]tools.Tool, name, args string) (*tools.ToolResult, error) {
	t.Helper()
	return ts[name].Execute(context.Background(), json.RawMessage(args))
}

func TestSearchDrugs(t *testing.T) {
	ts, _ := setup(t, "secret")

	res, err := call(t, ts, "search_drugs", `{"query":"aspirin","max_results":2}`)
	require.NoError(t, err)

	list := res.Output.(*DrugList)
	require.Len(t, list.Drugs, 2)
	assert.Empty(t, list.Message)
	assert.Equal(t, "DB00945", list.Drugs[0].DrugID)
	assert.Equal(t, "50-78-2", *list.Drugs[0].CASNumber)
	assert.Equal(t, []string{"Aspirin", "ASA"}, list.Drugs[0].Synonyms)
	assert.Nil(t, list.Drugs[1].CASNumber)
	assert.Equal(t, []string{}, list.Drugs[1].Synonyms)
}

func TestSearchDrugs_EmptyCarriesMessage(t *testing.T) {
	ts, _ := setup(t, "secret")

	res, err := call(t, ts, "find_drugs_by_indication", `{"indication":"nothing"}`)
	require.NoError(t, err)
	list := res.Output.(*DrugList)
	assert.Empty(t, list.Drugs)
	assert.Equal(t, "No drugs found for indication: nothing", list.Message)
}

func TestFindByCategory_BareArray(t *testing.T) {
	ts, _ := setup(t, "secret")

	res, err := call(t, ts, "find_drugs_by_category", `{"category":"antibiotic"}`)
	require.NoError(t, err)
	list := res.Output.(*DrugList)
	require.Len(t, list.Drugs, 1)
	assert.Equal(t, "DB00254", list.Drugs[0].DrugID)
}

func TestGetDrugDetails(t *testing.T) {
	ts, _ := setup(t, "secret")

	res, err := call(t, ts, "get_drug_details", `{"drug_id":" db00945 "}`)
	require.NoError(t, err)
	d := res.Output.(*DrugDetails)
	assert.Equal(t, "DB00945", d.DrugID)
	assert.Equal(t, "COX inhibitor", *d.MechanismOfAction)
	assert.Nil(t, d.Pharmacodynamics)

	_, err = call(t, ts, "get_drug_details", `{"drug_id":"DB99999"}`)
	require.Error(t, err)
	assert.Equal(t, "DrugBank has no matching record (HTTP 404): Drug not found", err.Error())
}

func TestDrugIDValidation(t *testing.T) {
	ts, hits := setup(t, "secret")

	for _, id := range []string{"", "aspirin", "DB123", "DB0000123"} {
		_, err := call(t, ts, "get_drug_interactions", `{"drug_id":"`+id+`"}`)
		var toolErr *tools.Error
		require.True(t, errors.As(err, &toolErr), "id %q", id)
		assert.Equal(t, tools.CodeInvalidParams, toolErr.Code)
	}
	assert.Zero(t, hits.Load())
}

func TestGetDrugInteractions(t *testing.T) {
	ts, _ := setup(t, "secret")

	res, err := call(t, ts, "get_drug_interactions", `{"drug_id":"DB00945"}`)
	require.NoError(t, err)
	list := res.Output.(*InteractionList)
	require.Len(t, list.Interactions, 2)
	assert.Equal(t, "Warfarin", list.Interactions[0].InteractingDrugName)
	assert.Equal(t, "DB00682", list.Interactions[0].InteractingDrugID)
	assert.Equal(t, Interaction{
		InteractingDrugName: "Unknown drug",
		InteractingDrugID:   "Unknown ID",
		Description:         "No description available",
	}, list.Interactions[1])
}

func TestMissingAPIKey(t *testing.T) {
	ts, hits := setup(t, "")

	_, err := call(t, ts, "search_drugs", `{"query":"aspirin"}`)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Zero(t, hits.Load())
}
