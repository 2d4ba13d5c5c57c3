// Package manifest builds drop-box XML documents and CLI submitter manifests.
package manifest

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Attribute is a sample attribute tag/value pair.
type Attribute struct {
	Tag   string
	Value string
	Units string
}

// Sample is one entry of a sample set.
type Sample struct {
	Alias          string
	Title          string
	TaxID          string
	ScientificName string
	Attributes     []Attribute
}

type xmlSampleSet struct {
	XMLName xml.Name    `xml:"SAMPLE_SET"`
	Samples []xmlSample `xml:"SAMPLE"`
}

type xmlSample struct {
	Alias      string        `xml:"alias,attr"`
	Title      string        `xml:"TITLE"`
	Name       xmlSampleName `xml:"SAMPLE_NAME"`
	Attributes []xmlAttr     `xml:"SAMPLE_ATTRIBUTES>SAMPLE_ATTRIBUTE"`
}

type xmlSampleName struct {
	TaxonID        string `xml:"TAXON_ID"`
	ScientificName string `xml:"SCIENTIFIC_NAME"`
}

type xmlAttr struct {
	Tag   string `xml:"TAG"`
	Value string `xml:"VALUE"`
	Units string `xml:"UNITS,omitempty"`
}

// SampleSetXML renders samples as a SAMPLE_SET document. Attributes with an
// empty value are omitted.
func SampleSetXML(samples []Sample) ([]byte, error) {
	set := xmlSampleSet{Samples: make([]xmlSample, 0, len(samples))}
	for _, s := range samples {
		if s.Alias == "" {
			return nil, fmt.Errorf("sample %q has no alias", s.Title)
		}
		xs := xmlSample{
			Alias: s.Alias,
			Title: s.Title,
			Name:  xmlSampleName{TaxonID: s.TaxID, ScientificName: s.ScientificName},
		}
		for _, a := range s.Attributes {
			if strings.TrimSpace(a.Value) == "" || strings.TrimSpace(a.Tag) == "" {
				continue
			}
			xs.Attributes = append(xs.Attributes, xmlAttr{Tag: a.Tag, Value: a.Value, Units: a.Units})
		}
		set.Samples = append(set.Samples, xs)
	}
	return marshal(set)
}

type xmlSubmission struct {
	XMLName xml.Name    `xml:"SUBMISSION"`
	Alias   string      `xml:"alias,attr,omitempty"`
	Actions []xmlAction `xml:"ACTIONS>ACTION"`
}

type xmlAction struct {
	Add     *struct{} `xml:"ADD"`
	Release *struct{} `xml:"RELEASE"`
	Hold    *xmlHold  `xml:"HOLD"`
}

type xmlHold struct {
	HoldUntilDate string `xml:"HoldUntilDate,attr"`
}

// SubmissionXML renders a submission with an ADD action followed by RELEASE,
// or by HOLD when holdUntil is a non-empty ISO date.
func SubmissionXML(alias, holdUntil string) ([]byte, error) {
	sub := xmlSubmission{
		Alias:   alias,
		Actions: []xmlAction{{Add: &struct{}{}}},
	}
	if holdUntil != "" {
		sub.Actions = append(sub.Actions, xmlAction{Hold: &xmlHold{HoldUntilDate: holdUntil}})
	} else {
		sub.Actions = append(sub.Actions, xmlAction{Release: &struct{}{}})
	}
	return marshal(sub)
}

func marshal(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding xml: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
