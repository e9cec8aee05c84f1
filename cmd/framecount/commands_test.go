package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusJSONL = `{"article_id":"glass","source":"wire","date":"2021-03-08","title":"Ceilings","content":"White women are up against a glass ceiling, but women of color are up against a concrete ceiling. The report was released on Tuesday by a research group based in Chicago. Its authors reviewed public filings from several hundred companies and interviewed dozens of executives.","human_coding":{"obstacles":{"white_women":1,"women_of_color":1}}}
{"article_id":"ceo","source":"wire","date":"2021-03-09","title":"CEOs","content":"Only 1% of Fortune 500 CEOs are Black women. The report was released on Tuesday by a research group based in Chicago. Its authors reviewed public filings from several hundred companies and interviewed dozens of executives."}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "corpus.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(corpusJSONL), 0o600))
	outDir := filepath.Join(dir, "out")
	t.Setenv("FRAMECOUNT_CONFIG", "")

	out, err := execute(t, "run", "--log-level", "error", "-o", outDir, "--format", "csv", input)
	require.NoError(t, err, out)

	assert.Contains(t, out, "Articles: 2 tallied, 0 skipped")
	assert.Contains(t, out, "wrote "+filepath.Join(outDir, "tallies.csv"))
	_, err = os.Stat(filepath.Join(outDir, "report.json"))
	assert.True(t, os.IsNotExist(err), "json output was not requested")
}

func TestValidateConfigCommand(t *testing.T) {
	t.Setenv("FRAMECOUNT_CONFIG", "")

	out, err := execute(t, "validate-config")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "configuration ok: strategy lexical"), out)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("segmentation:\n  windowSize: 2\n  overlap: 2\n"), 0o600))
	_, err = execute(t, "validate-config", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segmentation.overlap")
}
