package safeunmarshal

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type searchArgs struct {
	Query      string   `json:"query"`
	Limit      int      `json:"limit,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
	ExactMatch bool     `json:"exact_match,omitempty"`
	CID        string   `json:"cid,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	PubMedIDs  []int    `json:"pubmed_ids,omitempty"`
}

func TestTo_WellTyped(t *testing.T) {
	got, err := To[searchArgs]([]byte(`{"query":"aspirin","limit":5,"exact_match":true}`))
	if err != nil {
		t.Fatalf("To() error = %v", err)
	}
	want := searchArgs{Query: "aspirin", Limit: 5, ExactMatch: true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("To() = %+v, want %+v", got, want)
	}
}

func TestTo_CoercesScalars(t *testing.T) {
	sim := 80.0

	tests := []struct {
		name  string
		input string
		want  searchArgs
	}{
		{
			name:  "quoted integer",
			input: `{"query":"x","limit":"10"}`,
			want:  searchArgs{Query: "x", Limit: 10},
		},
		{
			name:  "integral float into int",
			input: `{"query":"x","limit":25.0}`,
			want:  searchArgs{Query: "x", Limit: 25},
		},
		{
			name:  "quoted float into pointer",
			input: `{"query":"x","similarity":"80"}`,
			want:  searchArgs{Query: "x", Similarity: &sim},
		},
		{
			name:  "quoted boolean",
			input: `{"query":"x","exact_match":"true"}`,
			want:  searchArgs{Query: "x", ExactMatch: true},
		},
		{
			name:  "number into string",
			input: `{"query":"x","cid":2244}`,
			want:  searchArgs{Query: "x", CID: "2244"},
		},
		{
			name:  "comma separated list",
			input: `{"query":"x","ids":"SCHEMBL1, SCHEMBL2"}`,
			want:  searchArgs{Query: "x", IDs: []string{"SCHEMBL1", "SCHEMBL2"}},
		},
		{
			name:  "quoted integers in list",
			input: `{"query":"x","pubmed_ids":["123","456"]}`,
			want:  searchArgs{Query: "x", PubMedIDs: []int{123, 456}},
		},
		{
			name:  "single number for list",
			input: `{"query":"x","pubmed_ids":789}`,
			want:  searchArgs{Query: "x", PubMedIDs: []int{789}},
		},
		{
			name:  "case insensitive key",
			input: `{"Query":"x","LIMIT":"3"}`,
			want:  searchArgs{Query: "x", Limit: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := To[searchArgs]([]byte(tt.input))
			if err != nil {
				t.Fatalf("To() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("To() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTo_RejectsUncoercible(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"word for integer", `{"query":"x","limit":"ten"}`},
		{"fractional integer", `{"query":"x","limit":2.5}`},
		{"object for string", `{"query":{"name":"x"}}`},
		{"syntax error", `{"query":"x",}`},
		{"text wrapped", `here you go {"query":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := To[searchArgs]([]byte(tt.input)); err == nil {
				t.Errorf("To(%s) expected error", tt.input)
			}
		})
	}
}

func TestToStrict_NoCoercion(t *testing.T) {
	if _, err := ToStrict[searchArgs]([]byte(`{"query":"x","limit":"10"}`)); err == nil {
		t.Error("ToStrict() expected error for quoted integer")
	}
	if _, err := ToStrict[searchArgs]([]byte(`"{\"query\":\"x\"}"`)); err == nil {
		t.Error("ToStrict() expected error for string encoded object")
	}
}

func TestTo_StringEncodedObject(t *testing.T) {
	got, err := To[searchArgs]([]byte(`"{\"query\":\"imatinib\",\"limit\":\"2\"}"`))
	if err != nil {
		t.Fatalf("To() error = %v", err)
	}
	if got.Query != "imatinib" || got.Limit != 2 {
		t.Errorf("To() = %+v", got)
	}
}

func TestTo_Slices(t *testing.T) {
	got, err := To[[]int]([]byte(`[1, "2", 3.0]`))
	if err != nil {
		t.Fatalf("To() error = %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("To() = %v", got)
	}

	_, err = To[[]int]([]byte(`{"a":1}`))
	if !errors.Is(err, ErrExpectedJSONArray) {
		t.Errorf("expected ErrExpectedJSONArray, got %v", err)
	}
}

func TestTo_Maps(t *testing.T) {
	got, err := To[map[string]float64]([]byte(`{"mw":"180.16","logp":1.2}`))
	if err != nil {
		t.Fatalf("To() error = %v", err)
	}
	if got["mw"] != 180.16 || got["logp"] != 1.2 {
		t.Errorf("To() = %v", got)
	}
}

func TestTo_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := To[searchArgs]([]byte(input))
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("To(%q) error = %v, want ErrEmptyInput", input, err)
		}
	}
}

func TestToWithOptions_MaxInputSize(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxInputSize = 16

	input := []byte(`{"query":"` + strings.Repeat("C", 32) + `"}`)
	_, err := ToWithOptions[searchArgs](input, opts)
	if !errors.Is(err, ErrInputTooLarge) {
		t.Errorf("expected ErrInputTooLarge, got %v", err)
	}

	opts.MaxInputSize = 0
	if _, err := ToWithOptions[searchArgs](input, opts); err != nil {
		t.Errorf("unlimited size returned error: %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		input string
		want  jsonKind
	}{
		{`"x"`, jsonString},
		{` [1]`, jsonArray},
		{`{}`, jsonObject},
		{`true`, jsonBool},
		{`false`, jsonBool},
		{`null`, jsonNull},
		{`-1.5`, jsonNumber},
		{``, jsonInvalid},
		{`abc`, jsonInvalid},
	}

	for _, tt := range tests {
		if got := kindOf([]byte(tt.input)); got != tt.want {
			t.Errorf("kindOf(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
