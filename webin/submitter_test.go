package webin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/synum-dev/synum/auth"
	"github.com/synum-dev/synum/internal/errors"
)

// fakeJava emulates the submitter: it records its arguments and writes a
// receipt under -outputdir for the manifest's NAME or ASSEMBLYNAME.
const fakeJava = `#!/bin/sh
echo "$@" > "$(dirname "$0")/args.txt"
while [ $# -gt 0 ]; do
  case "$1" in
    -outputdir) out="$2"; shift ;;
    -context) ctx="$2"; shift ;;
    -manifest) man="$2"; shift ;;
    -validate) mode=validate ;;
  esac
  shift
done
[ -n "$FAKE_EXIT" ] && { echo "ERROR: invalid manifest" >&2; exit "$FAKE_EXIT"; }
[ "$mode" = validate ] && exit 0
name=$(awk -F'\t' '$1=="ASSEMBLYNAME"||$1=="NAME"{print $2}' "$man" | tr ' ' '_')
dir="$out/$ctx/$name/submit"
mkdir -p "$dir"
if [ "$ctx" = reads ]; then
  printf '<RECEIPT success="true"><RUN accession="ERR999" alias="webin-reads-%s"/></RECEIPT>' "$name" > "$dir/receipt.xml"
else
  printf '<RECEIPT success="true"><ANALYSIS accession="ERZ999" alias="webin-genome-%s"/></RECEIPT>' "$name" > "$dir/receipt.xml"
fi
`

func setup(t *testing.T, manifest string) (*JavaSubmitter, Request, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake submitter is a shell script")
	}
	bin := t.TempDir()
	java := filepath.Join(bin, "java")
	if err := os.WriteFile(java, []byte(fakeJava), 0o755); err != nil {
		t.Fatal(err)
	}
	jar := filepath.Join(bin, "webin-cli.jar")
	if err := os.WriteFile(jar, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	in := t.TempDir()
	man := filepath.Join(in, "MANIFEST")
	if err := os.WriteFile(man, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(jar, auth.Credentials{Username: "Webin-1", Password: "secret"}, WithJava(java), WithTest(true))
	req := Request{
		Context:   ContextGenome,
		Name:      "soil asm",
		InputDir:  in,
		OutputDir: filepath.Join(in, "out"),
		Manifest:  man,
	}
	return s, req, bin
}

func TestReceiptPath(t *testing.T) {
	got := ReceiptPath("/out", ContextGenome, "soil co assembly")
	want := filepath.Join("/out", "genome", "soil_co_assembly", "submit", "receipt.xml")
	if got != want {
		t.Errorf("ReceiptPath() = %q, want %q", got, want)
	}
}

func TestJavaSubmitter_Submit(t *testing.T) {
	s, req, bin := setup(t, "STUDY\tPRJEB1\nASSEMBLYNAME\tsoil asm\n")

	res, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Accession != "ERZ999" {
		t.Errorf("Accession = %q, want ERZ999", res.Accession)
	}
	if res.ReceiptPath != ReceiptPath(req.OutputDir, ContextGenome, "soil asm") {
		t.Errorf("ReceiptPath = %q", res.ReceiptPath)
	}

	args, err := os.ReadFile(filepath.Join(bin, "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"-submit", "-username Webin-1", "-password secret", "-context genome", "-test"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestJavaSubmitter_SubmitReads(t *testing.T) {
	s, req, _ := setup(t, "STUDY\tPRJEB1\nNAME\treads A\n")
	req.Context = ContextReads
	req.Name = "reads A"

	res, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Accession != "ERR999" {
		t.Errorf("Accession = %q, want ERR999", res.Accession)
	}
}

func TestJavaSubmitter_Validate(t *testing.T) {
	s, req, bin := setup(t, "ASSEMBLYNAME\tsoil asm\n")
	s.Test = false

	if err := s.Validate(context.Background(), req); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	args, _ := os.ReadFile(filepath.Join(bin, "args.txt"))
	if !strings.Contains(string(args), "-validate") || strings.Contains(string(args), "-test") {
		t.Errorf("args = %q", args)
	}
	if _, err := os.Stat(ReceiptPath(req.OutputDir, ContextGenome, req.Name)); !os.IsNotExist(err) {
		t.Error("validate should not produce a receipt")
	}
}

func TestJavaSubmitter_NonZeroExit(t *testing.T) {
	s, req, _ := setup(t, "ASSEMBLYNAME\tsoil asm\n")
	t.Setenv("FAKE_EXIT", "3")

	_, err := s.Submit(context.Background(), req)
	if err == nil {
		t.Fatal("Submit() should fail")
	}
	if !errors.IsCategory(err, errors.CategorySubmission) {
		t.Errorf("category = %q, want submission", errors.CategoryOf(err))
	}
	if !strings.Contains(err.Error(), "soil asm") || !strings.Contains(err.Error(), "invalid manifest") {
		t.Errorf("error = %v", err)
	}
}

func TestJavaSubmitter_Check(t *testing.T) {
	s, _, _ := setup(t, "")
	if err := s.Check(); err != nil {
		t.Errorf("Check() error = %v", err)
	}

	s.Jar = filepath.Join(t.TempDir(), "absent.jar")
	if err := s.Check(); !errors.IsCategory(err, errors.CategoryPreflight) {
		t.Errorf("Check() error = %v, want preflight", err)
	}
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "PK-jar-bytes")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "lib", "webin-cli.jar")
	if err := Download(context.Background(), server.Client(), server.URL+"/webin-cli.jar", dest, io.Discard); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "PK-jar-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDownload_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "webin-cli.jar")
	if err := Download(context.Background(), nil, server.URL, dest, nil); err == nil {
		t.Fatal("Download() should fail on 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("failed download should not leave a file")
	}
}

func TestReleaseURL(t *testing.T) {
	want := "https://github.com/enasequence/webin-cli/releases/download/9.0.1/webin-cli-9.0.1.jar"
	if got := ReleaseURL(DefaultVersion); got != want {
		t.Errorf("ReleaseURL() = %q", got)
	}
}
