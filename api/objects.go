package api

// Portal result types.
const (
	ResultSample   = "sample"
	ResultAnalysis = "analysis"
)

// Objects maps user-friendly object names to portal result types.
var Objects = map[string]string{
	"sample":   ResultSample,
	"analysis": ResultAnalysis,
	"assembly": ResultAnalysis,
}

// idColumns maps result types to their accession field.
var idColumns = map[string]string{
	ResultSample:   "sample_accession",
	ResultAnalysis: "analysis_accession",
}

// DefaultFields maps result types to their default field lists.
var DefaultFields = map[string][]string{
	ResultSample:   {"sample_accession", "secondary_sample_accession", "scientific_name", "tax_id"},
	ResultAnalysis: {"analysis_accession", "sample_accession", "study_accession", "analysis_type"},
}

// GetObjectType returns the result type for a given alias.
// If no alias is found, returns the input unchanged.
func GetObjectType(name string) string {
	if mapped, ok := Objects[name]; ok {
		return mapped
	}
	return name
}

// GetIDColumn returns the accession field for a result type.
// Returns empty string if the result type is unknown.
func GetIDColumn(resultType string) string {
	return idColumns[resultType]
}

// GetDefaultFields returns the default fields for a result type.
func GetDefaultFields(resultType string) []string {
	return DefaultFields[resultType]
}
