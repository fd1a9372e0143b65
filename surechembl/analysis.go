package surechembl

import (
	"cmp"
	"math"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/upstream"
)

const topChemicals = 10

// annotation is one chemical annotation found in a document section.
type annotation struct {
	source   string
	language string
	fields   gjson.Result
}

// collectAnnotations walks the abstract and description sections of a
// document contents response.
func collectAnnotations(doc gjson.Result) (annotations []annotation, abstracts, descriptions int, languages []string) {
	patent := doc.Get("data.contents.patentDocument")
	seen := map[string]bool{}

	walk := func(source string, sections gjson.Result) int {
		n := 0
		sections.ForEach(func(_, s gjson.Result) bool {
			n++
			lang := s.Get("lang").String()
			if lang != "" && !seen[lang] {
				seen[lang] = true
				languages = append(languages, lang)
			}
			s.Get("section.annotations").ForEach(func(_, a gjson.Result) bool {
				annotations = append(annotations, annotation{source: source, language: lang, fields: a})
				return true
			})
			return true
		})
		return n
	}
	abstracts = walk("abstract", patent.Get("abstracts"))
	descriptions = walk("description", patent.Get("descriptions"))
	slices.Sort(languages)
	return annotations, abstracts, descriptions, languages
}

type AnnotationRef struct {
	Source     string         `json:"source"`
	Language   string         `json:"language"`
	Annotation map[string]any `json:"annotation"`
}

type ChemistrySummary struct {
	HasChemicalContent bool     `json:"has_chemical_content"`
	Languages          []string `json:"languages"`
	Sources            []string `json:"sources"`
}

type ChemistryAnalysis struct {
	DocumentID               string           `json:"document_id"`
	TotalChemicalAnnotations int              `json:"total_chemical_annotations"`
	UniqueChemicals          []string         `json:"unique_chemicals"`
	AnnotationCategories     []string         `json:"annotation_categories"`
	ChemicalAnnotations      []AnnotationRef  `json:"chemical_annotations"`
	Summary                  ChemistrySummary `json:"summary"`
}

// analyzeChemistry summarizes every annotation of a document.
func analyzeChemistry(documentID string, doc gjson.Result) *ChemistryAnalysis {
	annotations, _, _, _ := collectAnnotations(doc)

	names := set{}
	languages := set{}
	categories := set{}
	sources := set{}
	refs := make([]AnnotationRef, 0, len(annotations))
	for _, a := range annotations {
		names.add(a.fields.Get("name").String())
		categories.add(a.fields.Get("category").String())
		sources.add(a.source)
		languages.add(a.language)
		refs = append(refs, AnnotationRef{
			Source:     a.source,
			Language:   a.language,
			Annotation: object(a.fields),
		})
	}

	return &ChemistryAnalysis{
		DocumentID:               documentID,
		TotalChemicalAnnotations: len(annotations),
		UniqueChemicals:          names.sorted(),
		AnnotationCategories:     categories.sorted(),
		ChemicalAnnotations:      refs,
		Summary: ChemistrySummary{
			HasChemicalContent: len(annotations) > 0,
			Languages:          languages.sorted(),
			Sources:            sources.sorted(),
		},
	}
}

type DocumentInfo struct {
	Title             string `json:"title"`
	PublicationNumber string `json:"publication_number"`
	PublicationDate   string `json:"publication_date"`
}

type ContentStatistics struct {
	TotalSections       int      `json:"total_sections"`
	AbstractSections    int      `json:"abstract_sections"`
	DescriptionSections int      `json:"description_sections"`
	Languages           []string `json:"languages"`
}

type ChemicalCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ChemicalStatistics struct {
	TotalChemicalAnnotations int             `json:"total_chemical_annotations"`
	UniqueChemicalsCount     int             `json:"unique_chemicals_count"`
	MostFrequentChemicals    []ChemicalCount `json:"most_frequent_chemicals"`
	AnnotationSources        map[string]int  `json:"annotation_sources"`
}

type CategoryCounts struct {
	Chemical int `json:"chemical"`
	Other    int `json:"other"`
	Total    int `json:"total"`
}

type DetailedAnnotations struct {
	ChemicalAnnotations []map[string]any `json:"chemical_annotations"`
	UniqueChemicals     []string         `json:"unique_chemicals"`
	ChemicalFrequencies map[string]int   `json:"chemical_frequencies"`
}

type PatentStatistics struct {
	DocumentID           string               `json:"document_id"`
	DocumentInfo         DocumentInfo         `json:"document_info"`
	ContentStatistics    ContentStatistics    `json:"content_statistics"`
	ChemicalStatistics   ChemicalStatistics   `json:"chemical_statistics"`
	AnnotationCategories CategoryCounts       `json:"annotation_categories"`
	DetailedAnnotations  *DetailedAnnotations `json:"detailed_annotations,omitempty"`
}

// patentStatistics counts the chemical annotations of a document. Only
// annotations in the "chemical" category count toward chemical statistics.
func patentStatistics(documentID string, doc gjson.Result, detailed bool) *PatentStatistics {
	annotations, abstracts, descriptions, languages := collectAnnotations(doc)

	freq := map[string]int{}
	sources := map[string]int{"abstract": 0, "description": 0}
	var chemical []annotation
	for _, a := range annotations {
		if a.fields.Get("category").String() != "chemical" {
			continue
		}
		chemical = append(chemical, a)
		sources[a.source]++
		if name := a.fields.Get("name").String(); name != "" {
			freq[name]++
		}
	}

	top := make([]ChemicalCount, 0, len(freq))
	for name, n := range freq {
		top = append(top, ChemicalCount{Name: name, Count: n})
	}
	slices.SortFunc(top, func(a, b ChemicalCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(top) > topChemicals {
		top = top[:topChemicals]
	}

	stats := &PatentStatistics{
		DocumentID:   documentID,
		DocumentInfo: documentInfo(doc.Get("data.contents.patentDocument.bibliographicData")),
		ContentStatistics: ContentStatistics{
			TotalSections:       abstracts + descriptions,
			AbstractSections:    abstracts,
			DescriptionSections: descriptions,
			Languages:           nonNil(languages),
		},
		ChemicalStatistics: ChemicalStatistics{
			TotalChemicalAnnotations: len(chemical),
			UniqueChemicalsCount:     len(freq),
			MostFrequentChemicals:    top,
			AnnotationSources:        sources,
		},
		AnnotationCategories: CategoryCounts{
			Chemical: len(chemical),
			Other:    len(annotations) - len(chemical),
			Total:    len(annotations),
		},
	}

	if detailed {
		details := &DetailedAnnotations{
			ChemicalAnnotations: make([]map[string]any, 0, len(chemical)),
			ChemicalFrequencies: freq,
		}
		for _, a := range chemical {
			m := object(a.fields)
			m["source"] = a.source
			m["language"] = a.language
			details.ChemicalAnnotations = append(details.ChemicalAnnotations, m)
		}
		names := make([]string, 0, len(freq))
		for name := range freq {
			names = append(names, name)
		}
		slices.Sort(names)
		details.UniqueChemicals = names
		stats.DetailedAnnotations = details
	}
	return stats
}

func documentInfo(biblio gjson.Result) DocumentInfo {
	info := DocumentInfo{Title: "N/A"}
	biblio.Get("inventionTitles").ForEach(func(_, t gjson.Result) bool {
		if t.Get("lang").String() == "EN" {
			info.Title = t.Get("title").String()
			return false
		}
		return true
	})
	info.PublicationNumber = orNA(biblio.Get("publicationReference.0.ucid").String())
	info.PublicationDate = orNA(biblio.Get("publicationReference.0.documentId.0.date").String())
	return info
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

type ChemicalProperties struct {
	ChemicalID       string   `json:"chemical_id"`
	Name             *string  `json:"name"`
	MolecularWeight  *float64 `json:"molecular_weight"`
	SMILES           *string  `json:"smiles"`
	InChI            *string  `json:"inchi"`
	InChIKey         *string  `json:"inchi_key"`
	IsElement        bool     `json:"is_element"`
	GlobalFrequency  *int     `json:"global_frequency"`
	StructuralAlerts bool     `json:"structural_alerts"`
	LogP             *float64 `json:"log_p"`
	DonorCount       *int     `json:"donor_count"`
	AcceptorCount    *int     `json:"acceptor_count"`
	RingCount        *int     `json:"ring_count"`
	RotatableBonds   *int     `json:"rotatable_bonds"`
}

func chemicalProperties(id string, chem gjson.Result) *ChemicalProperties {
	return &ChemicalProperties{
		ChemicalID:       id,
		Name:             upstream.OptString(chem.Get("name")),
		MolecularWeight:  upstream.OptFloat(chem.Get("mol_weight")),
		SMILES:           upstream.OptString(chem.Get("smiles")),
		InChI:            upstream.OptString(chem.Get("inchi")),
		InChIKey:         upstream.OptString(chem.Get("inchi_key")),
		IsElement:        chem.Get("is_element").String() == "1",
		GlobalFrequency:  upstream.OptInt(chem.Get("global_frequency")),
		StructuralAlerts: chem.Get("mchem_struct_alert").String() == "1",
		LogP:             upstream.OptFloat(chem.Get("log_p")),
		DonorCount:       upstream.OptInt(chem.Get("donor_count")),
		AcceptorCount:    upstream.OptInt(chem.Get("accept_count")),
		RingCount:        upstream.OptInt(chem.Get("ring_count")),
		RotatableBonds:   upstream.OptInt(chem.Get("rotatable_bond_count")),
	}
}

// frequencyCategory buckets how many patent documents mention a chemical.
func frequencyCategory(freq int) string {
	switch {
	case freq <= 0:
		return "Not found"
	case freq == 1:
		return "Unique"
	case freq <= 10:
		return "Very rare"
	case freq <= 100:
		return "Rare"
	case freq <= 1000:
		return "Uncommon"
	case freq <= 10000:
		return "Common"
	default:
		return "Very common"
	}
}

// rarityScore maps a frequency onto [0, 1], where 1 is a single mention and
// a million mentions or more is 0.
func rarityScore(freq int) float64 {
	switch {
	case freq <= 0:
		return 0
	case freq == 1:
		return 1
	}
	return math.Max(0, 1-math.Log10(float64(freq))/6)
}

type set map[string]struct{}

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
