package taxonomy

import (
	"slices"
	"strings"

	"github.com/synum-dev/synum/internal/bins"
	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/errors"
)

// Taxon is an archive-accepted organism.
type Taxon struct {
	TaxID          string
	ScientificName string
}

// Table columns.
const (
	ColBinID          = "Bin_id"
	ColScientificName = "Scientific_name"
	ColTaxID          = "Tax_id"
	ColNCBITaxonomy   = "NCBI_taxonomy"

	ColGTDBGenome   = "Genome ID"
	ColGTDBClass    = "GTDB classification"
	ColGTDBMajority = "Majority vote NCBI classification"
)

// ReadManual reads a manual override table (Bin_id, Scientific_name, Tax_id).
func ReadManual(path string) (map[string]Taxon, error) {
	recs, headers, err := cli.ReadTable(path)
	if err != nil {
		return nil, errors.IO(err, path)
	}
	for _, col := range []string{ColBinID, ColScientificName, ColTaxID} {
		if !slices.Contains(headers, col) {
			return nil, errors.Config("manual taxonomy %s is missing column %s", path, col)
		}
	}
	out := make(map[string]Taxon, len(recs))
	for i, rec := range recs {
		bin := bins.Name(rec[ColBinID])
		t := Taxon{TaxID: rec[ColTaxID], ScientificName: rec[ColScientificName]}
		if bin == "" || t.TaxID == "" || t.ScientificName == "" {
			return nil, errors.Config("manual taxonomy %s row %d is incomplete", path, i+2)
		}
		out[bin] = t
	}
	return out, nil
}

// ReadNCBI reads a classification table in either the two-column form
// (Bin_id, NCBI_taxonomy) or the GTDB majority-vote export.
func ReadNCBI(path string) (map[string]Classification, error) {
	recs, headers, err := cli.ReadTable(path)
	if err != nil {
		return nil, errors.IO(err, path)
	}

	var idCol, classCol string
	switch {
	case slices.Contains(headers, ColBinID) && slices.Contains(headers, ColNCBITaxonomy):
		idCol, classCol = ColBinID, ColNCBITaxonomy
	case slices.Contains(headers, ColGTDBGenome) && slices.Contains(headers, ColGTDBMajority):
		idCol, classCol = ColGTDBGenome, ColGTDBMajority
	default:
		return nil, errors.Config("taxonomy file %s: expected columns %s/%s or %s",
			path, ColBinID, ColNCBITaxonomy, strings.Join([]string{ColGTDBGenome, ColGTDBClass, ColGTDBMajority}, ";"))
	}

	out := make(map[string]Classification, len(recs))
	for _, rec := range recs {
		bin := bins.Name(rec[idCol])
		if bin == "" {
			continue
		}
		out[bin] = ParseClassification(rec[classCol])
	}
	return out, nil
}
