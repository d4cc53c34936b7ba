package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/truffle-lang/truffle/pkg/util"
)

const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusSkip  = "SKIP"
	StatusError = "ERROR"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type StageRun struct {
	Name   string    `json:"name"`
	Args   []string  `json:"args"`
	Result Execution `json:"result"`
}

type TargetResult struct {
	SourceHash string     `json:"source_hash"`
	Stages     []StageRun `json:"stages"`
}

type FileTestResult struct {
	File       string        `json:"file"`
	SourceHash string        `json:"source_hash,omitempty"`
	Status     string        `json:"status"`
	Message    string        `json:"message,omitempty"`
	Diff       string        `json:"diff,omitempty"`
	Reference  *TargetResult `json:"reference,omitempty"`
	Target     *TargetResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

// stages are the compiler invocations recorded for every source file.
var stages = []struct {
	name string
	args []string
}{
	{"lex", []string{"lex", "--plain"}},
	{"ast", []string{"ast", "-o", "-"}},
	{"trace", []string{"build", "--backend", "trace", "-o", "-"}},
	{"llvm", []string{"build", "--backend", "llvm", "-o", "-"}},
	{"qbe", []string{"build", "--backend", "qbe", "-o", "-"}},
}

func goldenPath(sourceFile, dir string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if dir != "" {
		return filepath.Join(dir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func readGolden(path string) (*TargetResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var golden TargetResult
	if err := json.Unmarshal(data, &golden); err != nil {
		return nil, fmt.Errorf("could not parse golden file %s: %w", path, err)
	}
	return &golden, nil
}

func writeGolden(path string, result *TargetResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func runStages(compiler string, extraArgs []string, sourceFile string, timeout time.Duration) *TargetResult {
	result := &TargetResult{}
	for _, st := range stages {
		args := append(append(append([]string{}, st.args...), extraArgs...), sourceFile)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		res := executeCommand(ctx, compiler, args...)
		cancel()

		result.Stages = append(result.Stages, StageRun{Name: st.name, Args: st.args, Result: res})
	}
	return result
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -2
			result.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return result
}

func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 {
		return output
	}
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// compareStages diffs every stage the golden result records against what the
// compiler produced now.
func compareStages(file string, golden, produced *TargetResult, ignored []string) *FileTestResult {
	var diffs strings.Builder
	failed := false

	producedStages := make(map[string]StageRun, len(produced.Stages))
	for _, st := range produced.Stages {
		producedStages[st.Name] = st
	}

	for _, want := range golden.Stages {
		got, ok := producedStages[want.Name]
		if !ok {
			failed = true
			fmt.Fprintf(&diffs, "Stage '%s' missing in target results.\n", want.Name)
			continue
		}
		if want.Result.ExitCode != got.Result.ExitCode {
			failed = true
			fmt.Fprintf(&diffs, "Stage '%s' exit code mismatch:\n  - Golden: %d\n  - Target: %d\n", want.Name, want.Result.ExitCode, got.Result.ExitCode)
		}
		if filterOutput(want.Result.Stdout, ignored) != filterOutput(got.Result.Stdout, ignored) {
			failed = true
			fmt.Fprintf(&diffs, "Stage '%s' STDOUT mismatch:\n%s", want.Name, cmp.Diff(want.Result.Stdout, got.Result.Stdout))
		}
		if filterOutput(want.Result.Stderr, ignored) != filterOutput(got.Result.Stderr, ignored) {
			failed = true
			fmt.Fprintf(&diffs, "Stage '%s' STDERR mismatch:\n%s", want.Name, cmp.Diff(want.Result.Stderr, got.Result.Stderr))
		}
	}

	if failed {
		return &FileTestResult{File: file, Status: StatusFail, Message: "Output or exit code mismatch", Diff: diffs.String(), Reference: golden, Target: produced}
	}
	return &FileTestResult{File: file, Status: StatusPass, Message: fmt.Sprintf("All %d stages match", len(golden.Stages)), Reference: golden, Target: produced}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult, verbose bool) {
	var passed, failed, skipped, errored int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s...\n", util.InfoColorFG.Sprint(result.File))

		switch result.Status {
		case StatusPass:
			passed++
			fmt.Printf("  [%s] %s\n", util.InfoColorFG.Sprint(StatusPass), result.Message)
		case StatusFail:
			failed++
			fmt.Printf("  [%s] %s\n", util.ErrorColorFG.Sprint(StatusFail), result.Message)
			fmt.Println(formatDiff(result.Diff))
		case StatusSkip:
			skipped++
			fmt.Printf("  [%s] %s\n", util.WarnColorFG.Sprint(StatusSkip), result.Message)
		case StatusError:
			errored++
			fmt.Printf("  [%s] %s\n", util.ErrorColorFG.Sprint(StatusError), result.Message)
		}

		if verbose && result.Target != nil {
			for _, st := range result.Target.Stages {
				fmt.Printf("    %-6s exit %d in %s\n", st.Name, st.Result.ExitCode, formatDuration(st.Result.Duration))
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("Test Summary: %s, %s, %s, %s, %d Total\n",
		util.InfoColorFG.Sprintf("%d Passed", passed), util.ErrorColorFG.Sprintf("%d Failed", failed),
		util.WarnColorFG.Sprintf("%d Skipped", skipped), util.ErrorColorFG.Sprintf("%d Errored", errored), len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		lineWithIndent := "    " + line
		trimmedLine := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmedLine, "-"):
			lineWithIndent = util.ErrorColorFG.Sprint(lineWithIndent)
		case strings.HasPrefix(trimmedLine, "+"):
			lineWithIndent = util.InfoColorFG.Sprint(lineWithIndent)
		}
		builder.WriteString(lineWithIndent)
		builder.WriteString("\n")
	}
	return builder.String()
}

func loadReport(path string) TestSuiteResults {
	results := make(TestSuiteResults)
	data, err := os.ReadFile(path)
	if err != nil {
		return results
	}
	if json.Unmarshal(data, &results) != nil {
		log.Printf("%s Could not parse previous results file %s. Cache will not be used.\n", util.WarnColorFG.Sprint("[WARN]"), path)
		return make(TestSuiteResults)
	}
	return results
}

func writeReport(path string, results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s Failed to marshal results to JSON: %v\n", util.ErrorColorFG.Sprint("[ERROR]"), err)
		return resultsMap
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("%s Failed to create dir %s: %v\n", util.ErrorColorFG.Sprint("[ERROR]"), dir, err)
		}
	}
	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		log.Printf("%s Failed to write JSON report to %s: %v\n", util.ErrorColorFG.Sprint("[ERROR]"), path, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", path)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == StatusFail || result.Status == StatusError {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
