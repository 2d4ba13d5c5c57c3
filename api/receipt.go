package api

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/synum-dev/synum/internal/errors"
)

// ReceiptObject is one accessioned object in a receipt.
type ReceiptObject struct {
	Accession string `xml:"accession,attr"`
	Alias     string `xml:"alias,attr"`
	Status    string `xml:"status,attr"`
	ExtID     *struct {
		Accession string `xml:"accession,attr"`
		Type      string `xml:"type,attr"`
	} `xml:"EXT_ID"`
}

// ExternalAccession returns the EXT_ID accession, if any.
func (o ReceiptObject) ExternalAccession() string {
	if o.ExtID == nil {
		return ""
	}
	return o.ExtID.Accession
}

// Receipt is the archive's response to a drop-box or CLI submission.
type Receipt struct {
	XMLName     xml.Name        `xml:"RECEIPT"`
	Success     string          `xml:"success,attr"`
	ReceiptDate string          `xml:"receiptDate,attr"`
	Samples     []ReceiptObject `xml:"SAMPLE"`
	Analyses    []ReceiptObject `xml:"ANALYSIS"`
	Runs        []ReceiptObject `xml:"RUN"`
	Experiments []ReceiptObject `xml:"EXPERIMENT"`
	Submission  *ReceiptObject  `xml:"SUBMISSION"`
	Messages    struct {
		Errors []string `xml:"ERROR"`
		Infos  []string `xml:"INFO"`
	} `xml:"MESSAGES"`
}

// ParseReceipt decodes a receipt. A receipt with success other than "true"
// or any object lacking alias or accession is a submission error.
func ParseReceipt(data []byte) (*Receipt, error) {
	var r Receipt
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, errors.New(fmt.Errorf("decoding receipt: %w", err)).
			Category(errors.CategorySubmission).
			Build()
	}
	if r.Success != "true" {
		b := errors.Newf("submission rejected: %s", r.errorSummary()).
			Category(errors.CategorySubmission).
			Context("success", r.Success)
		return &r, b.Build()
	}

	check := func(kind string, objs []ReceiptObject, needExt bool) error {
		for i, o := range objs {
			if o.Alias == "" || o.Accession == "" {
				return errors.Submission("receipt %s #%d lacks alias or accession", kind, i+1)
			}
			if needExt && o.ExternalAccession() == "" {
				return errors.Submission("receipt %s %s lacks EXT_ID accession", kind, o.Alias)
			}
		}
		return nil
	}
	if err := check("SAMPLE", r.Samples, true); err != nil {
		return &r, err
	}
	if err := check("ANALYSIS", r.Analyses, false); err != nil {
		return &r, err
	}
	if err := check("RUN", r.Runs, false); err != nil {
		return &r, err
	}
	return &r, nil
}

// ReadReceipt parses the receipt file at path.
func ReadReceipt(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(fmt.Errorf("reading receipt: %w", err), path)
	}
	r, err := ParseReceipt(data)
	if err != nil {
		return r, errors.New(fmt.Errorf("%s: %w", path, err)).
			Category(errors.CategoryOf(err)).
			Context("receipt", path).
			Build()
	}
	return r, nil
}

func (r *Receipt) errorSummary() string {
	if len(r.Messages.Errors) == 0 {
		return "no error message in receipt"
	}
	return strings.Join(r.Messages.Errors, "; ")
}

// SampleAccessions maps sample alias to accession.
func (r *Receipt) SampleAccessions() map[string]string {
	return aliasMap(r.Samples)
}

// First returns the accession of the first object of the given element
// name (SAMPLE, ANALYSIS, RUN, EXPERIMENT).
func (r *Receipt) First(kind string) (string, bool) {
	var objs []ReceiptObject
	switch kind {
	case "SAMPLE":
		objs = r.Samples
	case "ANALYSIS":
		objs = r.Analyses
	case "RUN":
		objs = r.Runs
	case "EXPERIMENT":
		objs = r.Experiments
	}
	if len(objs) == 0 {
		return "", false
	}
	return objs[0].Accession, true
}

func aliasMap(objs []ReceiptObject) map[string]string {
	out := make(map[string]string, len(objs))
	for _, o := range objs {
		out[o.Alias] = o.Accession
	}
	return out
}
