package pdb

import (
	"strconv"
	"strings"
)

const (
	sequenceEValue = 0.1
	uniprotAttr    = "rcsb_polymer_entity_container_identifiers.reference_sequence_identifiers.database_accession"
)

// node is a terminal or group node of the RCSB search query language.
type node struct {
	Type            string         `json:"type"`
	Service         string         `json:"service,omitempty"`
	LogicalOperator string         `json:"logical_operator,omitempty"`
	Nodes           []node         `json:"nodes,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

type paginate struct {
	Start int `json:"start"`
	Rows  int `json:"rows"`
}

type sortOption struct {
	SortBy    string `json:"sort_by"`
	Direction string `json:"direction"`
}

type requestOptions struct {
	Paginate           paginate     `json:"paginate"`
	ResultsContentType []string     `json:"results_content_type"`
	Sort               []sortOption `json:"sort,omitempty"`
}

type searchRequest struct {
	Query          node           `json:"query"`
	ReturnType     string         `json:"return_type"`
	RequestOptions requestOptions `json:"request_options"`
}

func newSearch(query node, rows int) *searchRequest {
	return &searchRequest{
		Query:      query,
		ReturnType: "entry",
		RequestOptions: requestOptions{
			Paginate:           paginate{Start: 0, Rows: rows},
			ResultsContentType: []string{"experimental"},
		},
	}
}

func terminal(service string, params map[string]any) node {
	return node{Type: "terminal", Service: service, Parameters: params}
}

func attribute(attr, operator string, value any) node {
	return terminal("text", map[string]any{
		"attribute": attr,
		"operator":  operator,
		"value":     value,
	})
}

// and groups the base query with filters. Without filters the base query
// is returned unchanged.
func and(base node, filters ...node) node {
	if len(filters) == 0 {
		return base
	}
	return node{
		Type:            "group",
		LogicalOperator: "and",
		Nodes:           append([]node{base}, filters...),
	}
}

func resolutionFilter(from, to float64) node {
	return attribute("rcsb_entry_info.resolution_combined", "range", map[string]any{
		"from":          from,
		"to":            to,
		"include_lower": true,
		"include_upper": true,
	})
}

// parseResolutionRange parses "min-max" in Ångström.
func parseResolutionRange(s string) (from, to float64, ok bool) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		return 0, 0, false
	}
	from, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return 0, 0, false
	}
	to, err = strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil || from > to {
		return 0, 0, false
	}
	return from, to, true
}

// cleanSequence drops FASTA header lines and whitespace.
func cleanSequence(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ">") {
			continue
		}
		for _, r := range line {
			if r != ' ' && r != '\t' && r != '\r' {
				b.WriteRune(r)
			}
		}
	}
	return strings.ToUpper(b.String())
}
