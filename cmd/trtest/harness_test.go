package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("examples", ".fib.tr.json"), goldenPath(filepath.Join("examples", "fib.tr"), ""))
	assert.Equal(t, filepath.Join("golden", ".fib.tr.json"), goldenPath(filepath.Join("examples", "fib.tr"), "golden"))
}

func TestFilterOutput(t *testing.T) {
	out := "a\nbuild took 3ms\nb"
	assert.Equal(t, "a\nb", filterOutput(out, []string{"took"}))
	assert.Equal(t, out, filterOutput(out, nil))
	assert.Equal(t, out, filterOutput(out, []string{""}))
}

func stage(name, stdout string, code int) StageRun {
	return StageRun{Name: name, Result: Execution{Stdout: stdout, ExitCode: code}}
}

func TestCompareStages(t *testing.T) {
	golden := &TargetResult{Stages: []StageRun{stage("lex", "ok\n", 0), stage("ast", "{}", 0)}}

	t.Run("match", func(t *testing.T) {
		produced := &TargetResult{Stages: []StageRun{stage("lex", "ok\n", 0), stage("ast", "{}", 0)}}
		res := compareStages("f.tr", golden, produced, nil)
		assert.Equal(t, StatusPass, res.Status)
		assert.Empty(t, res.Diff)
	})

	t.Run("exit code", func(t *testing.T) {
		produced := &TargetResult{Stages: []StageRun{stage("lex", "ok\n", 1), stage("ast", "{}", 0)}}
		res := compareStages("f.tr", golden, produced, nil)
		assert.Equal(t, StatusFail, res.Status)
		assert.Contains(t, res.Diff, "Stage 'lex' exit code mismatch")
	})

	t.Run("stdout", func(t *testing.T) {
		produced := &TargetResult{Stages: []StageRun{stage("lex", "ok\n", 0), stage("ast", "[]", 0)}}
		res := compareStages("f.tr", golden, produced, nil)
		assert.Equal(t, StatusFail, res.Status)
		assert.Contains(t, res.Diff, "Stage 'ast' STDOUT mismatch")
	})

	t.Run("missing stage", func(t *testing.T) {
		produced := &TargetResult{Stages: []StageRun{stage("lex", "ok\n", 0)}}
		res := compareStages("f.tr", golden, produced, nil)
		assert.Equal(t, StatusFail, res.Status)
		assert.Contains(t, res.Diff, "Stage 'ast' missing")
	})

	t.Run("ignored lines", func(t *testing.T) {
		produced := &TargetResult{Stages: []StageRun{stage("lex", "ok\ntime 5\n", 0), stage("ast", "{}", 0)}}
		res := compareStages("f.tr", golden, produced, []string{"time"})
		assert.Equal(t, StatusPass, res.Status)
	})
}

func TestGoldenFiles(t *testing.T) {
	dir := t.TempDir()
	path := goldenPath(filepath.Join(dir, "a.tr"), "")

	_, err := readGolden(path)
	assert.True(t, os.IsNotExist(err))

	want := &TargetResult{SourceHash: "abc", Stages: []StageRun{stage("lex", "x", 0)}}
	require.NoError(t, writeGolden(path, want))
	got, err := readGolden(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = readGolden(path)
	assert.Error(t, err)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a, b, c := filepath.Join(dir, "a"), filepath.Join(dir, "b"), filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(a, []byte("print(1)"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("print(1)"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("print(2)"), 0o644))

	ha, err := hashFile(a)
	require.NoError(t, err)
	hb, _ := hashFile(b)
	hc, _ := hashFile(c)
	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)

	_, err = hashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExpandGlobPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.tr", "b.tr", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.tr"), 0o755))

	files, err := expandGlobPatterns(filepath.Join(dir, "*.tr") + " " + filepath.Join(dir, "a.*"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = expandGlobPatterns("[")
	assert.Error(t, err)
}

func TestReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	assert.Empty(t, loadReport(path))

	results := []*FileTestResult{
		{File: "a.tr", Status: StatusPass, SourceHash: "1"},
		{File: "b.tr", Status: StatusSkip},
	}
	m := writeReport(path, results)
	assert.False(t, hasFailures(m))

	loaded := loadReport(path)
	require.Len(t, loaded, 2)
	assert.Equal(t, "1", loaded["a.tr"].SourceHash)

	m["c.tr"] = &FileTestResult{File: "c.tr", Status: StatusError}
	assert.True(t, hasFailures(m))
}
