package bins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synum-dev/synum/internal/errors"
	"github.com/synum-dev/synum/internal/vocab"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func binDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		writeFile(t, filepath.Join(dir, n), ">c1\nACGT\n")
	}
	return dir
}

func TestName(t *testing.T) {
	tests := map[string]string{
		"bin.1.fa":           "bin.1",
		"/x/bin.2.fasta.gz":  "bin.2",
		"metabat.bin_3.fna":  "metabat.bin_3",
		"bin.4":              "bin.4",
		"sample_bin_5.fa.gz": "sample_bin_5",
		"notes.txt":          "notes.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, Name(in), in)
	}
}

func TestScan(t *testing.T) {
	dir := binDir(t, "bin.2.fa", "bin.1.fa.gz", "README.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.fa"), 0o755))

	set, err := Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"bin.1", "bin.2"}, set.Names())

	b, ok := set.Get("bin.1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "bin.1.fa.gz"), b.Path)

	_, err = Scan(binDir(t, "README.txt"))
	assert.True(t, errors.IsCategory(err, errors.CategoryCoherence))

	_, err = Scan(binDir(t, "bin.1.fa", "bin.1.fasta"))
	assert.True(t, errors.IsCategory(err, errors.CategoryCoherence))

	_, err = Scan(filepath.Join(dir, "absent"))
	assert.True(t, errors.IsCategory(err, errors.CategoryIO))
}

func TestReadQuality(t *testing.T) {
	dir := t.TempDir()

	checkm := filepath.Join(dir, "checkm.tsv")
	writeFile(t, checkm, "Bin Id\tMarker lineage\tCompleteness\tContamination\nbin.1\tk__Bacteria\t98.5\t1.2\nbin.2\tk__Bacteria\t60\t4\n")
	q, err := ReadQuality(checkm)
	require.NoError(t, err)
	assert.Equal(t, Quality{Completeness: 98.5, Contamination: 1.2}, q["bin.1"])
	assert.Len(t, q, 2)

	checkm2 := filepath.Join(dir, "checkm2.tsv")
	writeFile(t, checkm2, "Name\tCompleteness\tContamination\nbin.3.fa\t70.1\t2.0\n")
	q, err = ReadQuality(checkm2)
	require.NoError(t, err)
	assert.InDelta(t, 70.1, q["bin.3"].Completeness, 1e-9)

	bad := filepath.Join(dir, "bad.tsv")
	writeFile(t, bad, "Genome\tCompleteness\n")
	_, err = ReadQuality(bad)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))

	nan := filepath.Join(dir, "nan.tsv")
	writeFile(t, nan, "Name\tCompleteness\tContamination\nbin.1\thigh\t1\n")
	_, err = ReadQuality(nan)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestSet_Check(t *testing.T) {
	set, err := Scan(binDir(t, "bin.1.fa", "bin.2.fa", "bin.3.fa"))
	require.NoError(t, err)
	quality := map[string]Quality{
		"bin.1": {90, 1}, "bin.2": {80, 2}, "bin.3": {70, 4.9},
	}

	require.NoError(t, set.Check(quality, []string{"bin.1", "bin.2", "bin.3"}))
	b, _ := set.Get("bin.3")
	assert.Equal(t, 4.9, b.Contamination)

	tests := []struct {
		name     string
		quality  map[string]Quality
		taxonomy []string
		want     string
	}{
		{
			name:     "contamination above limit",
			quality:  map[string]Quality{"bin.1": {90, 101.2}, "bin.2": {80, 2}, "bin.3": {70, 1}},
			taxonomy: []string{"bin.1", "bin.2", "bin.3"},
			want:     "bin bin.1 has contamination 101.20",
		},
		{
			name:     "missing quality",
			quality:  map[string]Quality{"bin.1": {90, 1}, "bin.2": {80, 2}},
			taxonomy: []string{"bin.1", "bin.2", "bin.3"},
			want:     "bin bin.3 has no quality record",
		},
		{
			name:     "quality without bin",
			quality:  map[string]Quality{"bin.1": {90, 1}, "bin.2": {80, 2}, "bin.3": {1, 1}, "bin.9": {1, 1}},
			taxonomy: []string{"bin.1", "bin.2", "bin.3"},
			want:     "quality record bin.9 has no bin file",
		},
		{
			name:     "taxonomy without bin",
			quality:  quality,
			taxonomy: []string{"bin.1", "bin.2", "bin.3", "bin.7"},
			want:     "taxonomy entry bin.7 has no bin file",
		},
		{
			name:     "bin without taxonomy",
			quality:  quality,
			taxonomy: []string{"bin.1", "bin.3"},
			want:     "bin bin.2 has no taxonomy entry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := set.Check(tt.quality, tt.taxonomy)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryCoherence))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadMAGs(t *testing.T) {
	dir := t.TempDir()
	flat := filepath.Join(dir, "bin.2.embl")
	writeFile(t, flat, "ID   x\n")

	path := filepath.Join(dir, "mags.tsv")
	writeFile(t, path, "Bin_id\tQuality_category\tFlatfile_path\tChromosomes_path\tUnlocalised_path\n"+
		"bin.1\thigh\t\t\t\n"+
		"bin.2.fa\tMedium\t"+flat+"\t\t\n")

	mags, err := ReadMAGs(path)
	require.NoError(t, err)
	require.Len(t, mags, 2)
	assert.Equal(t, MAG{Bin: "bin.1", Quality: vocab.QualityHigh}, mags[0])
	assert.Equal(t, vocab.QualityMedium, mags[1].Quality)
	assert.Equal(t, flat, mags[1].Flatfile)

	set, err := Scan(binDir(t, "bin.1.fa", "bin.2.fa"))
	require.NoError(t, err)
	require.NoError(t, set.CheckMAGs(mags))

	err = set.CheckMAGs([]MAG{{Bin: "bin.5", Quality: vocab.QualityHigh}})
	assert.True(t, errors.IsCategory(err, errors.CategoryCoherence))

	err = set.CheckMAGs([]MAG{{Bin: "bin.1", Quality: vocab.QualityHigh, Flatfile: filepath.Join(dir, "absent")}})
	assert.True(t, errors.IsCategory(err, errors.CategoryPreflight))

	badQ := filepath.Join(dir, "badq.tsv")
	writeFile(t, badQ, "Bin_id\tQuality_category\nbin.1\tlow\n")
	_, err = ReadMAGs(badQ)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))

	dup := filepath.Join(dir, "dup.tsv")
	writeFile(t, dup, "Bin_id\tQuality_category\nbin.1\thigh\nbin.1.fa\tmedium\n")
	_, err = ReadMAGs(dup)
	assert.True(t, errors.IsCategory(err, errors.CategoryCoherence))
}
