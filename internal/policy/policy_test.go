package policy

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/apicheck/internal/diff"
	"github.com/jward/apicheck/internal/logging"
)

func additive() *diff.Report {
	return &diff.Report{
		ItemsAdded:     1,
		ModulesChanged: 1,
		Changes: []diff.Change{
			{Kind: diff.ItemAdded, Module: "lib.rs", Item: "new_fn"},
			{Kind: diff.ModuleChanged, Module: "lib.rs"},
		},
	}
}

func TestDefault_FailsOnAnyChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fail, err := Default().Evaluate(ctx, &diff.Report{})
	require.NoError(t, err)
	assert.False(t, fail)

	fail, err = Default().Evaluate(ctx, additive())
	require.NoError(t, err)
	assert.True(t, fail)
}

func TestEvaluate_CountersAsGlobals(t *testing.T) {
	t.Parallel()
	p := New("items_removed > 0 || items_changed > 0 || modules_removed > 0")

	fail, err := p.Evaluate(context.Background(), additive())
	require.NoError(t, err)
	assert.False(t, fail, "additions alone should pass")

	fail, err = p.Evaluate(context.Background(), &diff.Report{ItemsRemoved: 1})
	require.NoError(t, err)
	assert.True(t, fail)
}

func TestEvaluate_ChangeList(t *testing.T) {
	t.Parallel()
	p := New(`
fail := false
for _, c := range changes {
	if c["kind"] == "item-added" && c["item"] == "new_fn" {
		fail = true
	}
}
fail
`)
	fail, err := p.Evaluate(context.Background(), additive())
	require.NoError(t, err)
	assert.True(t, fail)
}

func TestEvaluate_ScriptError(t *testing.T) {
	t.Parallel()
	_, err := New("this is not risor (").Evaluate(context.Background(), &diff.Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy: script <inline>")
}

func TestEvaluate_LogGoesToLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := New(`log.Warn("checking")
false`, WithLogger(logging.New(&buf, "policy", logging.LevelWarn)))

	fail, err := p.Evaluate(context.Background(), &diff.Report{})
	require.NoError(t, err)
	assert.False(t, fail)
	assert.Equal(t, "[policy] WARN: checking\n", buf.String())
}

func TestLoad_ImportsResolveNextToFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.risor"), []byte(`
func breaking(removed, changed) {
	return removed + changed > 0
}
`), 0o644))
	path := filepath.Join(dir, "gate.risor")
	require.NoError(t, os.WriteFile(path, []byte(`
import rules
rules.breaking(items_removed, items_changed)
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	fail, err := p.Evaluate(context.Background(), &diff.Report{ItemsChanged: 2})
	require.NoError(t, err)
	assert.True(t, fail)
}

func TestWithFS_Imports(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"limits.risor": &fstest.MapFile{Data: []byte("max_added := 3\n")},
	}
	p := New("import limits\nitems_added > limits.max_added", WithFS(fsys))

	fail, err := p.Evaluate(context.Background(), &diff.Report{ItemsAdded: 2})
	require.NoError(t, err)
	assert.False(t, fail)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.risor"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy: loading")
}

func TestGlobals(t *testing.T) {
	t.Parallel()
	r := &diff.Report{ItemsChanged: 1, Changes: []diff.Change{
		{Kind: diff.ItemChanged, Module: "lib.rs", Item: "f", Key: "unsafe", Before: false, After: true},
	}}
	g := Globals(r)

	assert.Equal(t, 1, g["items_changed"])
	assert.Equal(t, true, g["has_changes"])
	changes := g["changes"].([]any)
	require.Len(t, changes, 1)
	c := changes[0].(map[string]any)
	assert.Equal(t, "item-changed", c["kind"])
	assert.Equal(t, "false", c["before"])
	assert.Equal(t, "true", c["after"])
}

func TestLoadFS(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"gate.risor":   &fstest.MapFile{Data: []byte("import limits\nitems_added > limits.max_added\n")},
		"limits.risor": &fstest.MapFile{Data: []byte("max_added := 1\n")},
	}
	p, err := LoadFS(fsys, "gate")
	require.NoError(t, err)

	fail, err := p.Evaluate(context.Background(), &diff.Report{ItemsAdded: 2})
	require.NoError(t, err)
	assert.True(t, fail)

	_, err = LoadFS(fsys, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy: loading missing")
}
