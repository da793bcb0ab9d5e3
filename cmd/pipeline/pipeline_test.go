package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/commercebi/pkg/attribution"
	"github.com/jordanlanch/commercebi/pkg/ingest"
	"github.com/jordanlanch/commercebi/pkg/kpi"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type dirs struct {
	raw, cleaned, published, db string
}

func newDirs(t *testing.T) dirs {
	root := t.TempDir()
	return dirs{
		raw:       filepath.Join(root, "raw"),
		cleaned:   filepath.Join(root, "cleaned"),
		published: filepath.Join(root, "published"),
		db:        "file:" + filepath.Join(root, "store.db"),
	}
}

func (d dirs) flags(args ...string) []string {
	return append(args,
		"--raw-dir", d.raw,
		"--cleaned-dir", d.cleaned,
		"--storage-type", "local",
		"--storage-path", d.published,
		"--db-driver", "sqlite3",
		"--database-url", d.db,
		"--log-level", "error",
	)
}

func TestGenerateCleanAttribute(t *testing.T) {
	d := newDirs(t)

	out, err := execute(t, d.flags("generate", "--orders", "50", "--customers", "40", "--campaigns", "6")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Raw extracts written")
	for _, name := range ingest.RawFiles {
		assert.FileExists(t, filepath.Join(d.raw, name))
	}

	out, err = execute(t, d.flags("clean")...)
	require.NoError(t, err)
	assert.Contains(t, out, "cleaned")
	assert.NotContains(t, out, "skipped")
	for _, name := range ingest.CleanedFiles {
		assert.FileExists(t, filepath.Join(d.cleaned, name))
	}

	out, err = execute(t, d.flags("attribute")...)
	require.NoError(t, err)
	assert.Contains(t, out, "attribution records written")

	data, err := os.ReadFile(filepath.Join(d.published, attribution.TableName))
	require.NoError(t, err)
	records, err := attribution.ReadTable(bytes.NewReader(data))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 50)
}

func TestCleanSkipsMissingExtracts(t *testing.T) {
	d := newDirs(t)
	require.NoError(t, os.MkdirAll(d.raw, 0o755))

	out, err := execute(t, d.flags("clean")...)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
}

func TestAttributeRequiresCleanedOrders(t *testing.T) {
	d := newDirs(t)

	_, err := execute(t, d.flags("attribute")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleaned orders")
}

func TestRunThenListRunsAndKPIs(t *testing.T) {
	d := newDirs(t)

	_, err := execute(t, d.flags("generate")...)
	require.NoError(t, err)

	out, err := execute(t, d.flags("run", "--no-cache")...)
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.FileExists(t, filepath.Join(d.published, attribution.TableName))

	out, err = execute(t, d.flags("runs")...)
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	out, err = execute(t, d.flags("kpis", "--cac-cutoff", "2024-01-01", "--growth-year", "2024")...)
	require.NoError(t, err)
	assert.Contains(t, out, "CAC cutoff 2024-01-01, growth year 2024")
	assert.Contains(t, out, kpi.KeyAOV)
}

func TestKPIsRejectsBadCutoff(t *testing.T) {
	d := newDirs(t)

	_, err := execute(t, d.flags("kpis", "--cac-cutoff", "not-a-date")...)
	require.Error(t, err)
}

func TestConfigFileOverridesEnvironment(t *testing.T) {
	d := newDirs(t)
	cfgFile := filepath.Join(t.TempDir(), "commercebi.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("raw_dir: "+d.raw+"\n"), 0o644))

	_, err := execute(t, "generate", "--config", cfgFile, "--orders", "5", "--customers", "5", "--campaigns", "2")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(d.raw, ingest.RawFiles[ingest.TableOrders]))
}

func TestMissingConfigFileFails(t *testing.T) {
	_, err := execute(t, "generate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
