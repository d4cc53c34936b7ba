// trtest runs the truffle compiler over a set of sources and compares every
// stage of its output against golden files.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/truffle-lang/truffle/pkg/cli"
	"github.com/truffle-lang/truffle/pkg/util"
)

type settings struct {
	compiler    string
	compileArgs string
	testFiles   string
	skipFiles   string
	outputJSON  string
	jsonDir     string
	ignoreLines string
	timeout     time.Duration
	jobs        int
	update      bool
	useCache    bool
	verbose     bool
}

func main() {
	log.SetFlags(0)
	util.SetupColor(os.Stdout)

	s := &settings{}
	var timeout, jobs string

	app := cli.NewApp("trtest")
	app.Synopsis = "[options]"
	app.Description = "Golden file harness: lexes, parses and builds every test source with the target compiler and diffs each stage against its stored result."
	app.Authors = []string{"The truffle authors"}
	app.Since = 2025

	fs := app.FlagSet
	fs.String(&s.compiler, "target-compiler", "c", "./truffle", "Path to the compiler under test.", "path")
	fs.String(&s.compileArgs, "target-args", "a", "", "Extra arguments for every compiler invocation (space-separated).", "args")
	fs.String(&s.testFiles, "test-files", "f", "examples/*.tr", "Glob pattern(s) for files to test (space-separated).", "glob")
	fs.String(&s.skipFiles, "skip-files", "", "", "Files to skip (space-separated).", "files")
	fs.String(&s.outputJSON, "output", "o", ".test_results.json", "Output file for the JSON test report.", "file")
	fs.String(&s.jsonDir, "dir", "d", "", "Directory to store/read golden files, defaults to the source file's directory.", "dir")
	fs.String(&s.ignoreLines, "ignore-lines", "", "", "Comma-separated substrings to ignore during output comparison.", "list")
	fs.String(&timeout, "timeout", "t", "5s", "Timeout for each compiler invocation.", "duration")
	fs.String(&jobs, "jobs", "j", "4", "Number of parallel test jobs.", "n")
	fs.Bool(&s.update, "update", "u", false, "Write golden files from the current compiler output instead of comparing.")
	fs.Bool(&s.useCache, "cached", "", false, "Skip files whose source hash matches a passing entry of the previous report.")
	fs.Bool(&s.verbose, "verbose", "v", false, "Enable verbose logging.")

	app.Action = func(args []string) error {
		var err error
		if s.timeout, err = time.ParseDuration(timeout); err != nil {
			err = fmt.Errorf("invalid --timeout: %w", err)
			log.Println(err)
			return err
		}
		if _, err = fmt.Sscan(jobs, &s.jobs); err != nil || s.jobs < 1 {
			err = fmt.Errorf("invalid --jobs value '%s'", jobs)
			log.Println(err)
			return err
		}
		if len(args) > 0 {
			s.testFiles = strings.Join(args, " ")
		}

		setupInterruptHandler()
		if !s.run() {
			os.Exit(1)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(2)
	}
}

// setupInterruptHandler reports a cancelled run on CTRL+C
func setupInterruptHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Printf("\n%s Test run cancelled.\n", util.WarnColorFG.Sprint("[INTERRUPT]"))
		os.Exit(1)
	}()
}

func (s *settings) reportPath() string {
	if s.jsonDir != "" {
		return filepath.Join(s.jsonDir, s.outputJSON)
	}
	return s.outputJSON
}

// run tests every file and reports whether all of them passed.
func (s *settings) run() bool {
	files, err := expandGlobPatterns(s.testFiles)
	if err != nil {
		log.Fatalf("%s Invalid glob pattern(s): %v\n", util.ErrorColorFG.Sprint("[ERROR]"), err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	previous := loadReport(s.reportPath())
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(s.skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	type task struct{ file, hash string }
	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < s.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- s.testFile(t.file, t.hash, previous)
			}
		}()
	}

	// identical sources only run once
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: StatusSkip, Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: StatusError, Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: StatusSkip, Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- task{file, fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].File < allResults[j].File })

	printSummary(allResults, s.verbose)
	resultsMap := writeReport(s.reportPath(), allResults)
	return !hasFailures(resultsMap)
}

func (s *settings) testFile(file, fileHash string, previous TestSuiteResults) *FileTestResult {
	if prev, ok := previous[file]; ok && s.useCache && !s.update && prev.Status == StatusPass && prev.SourceHash == fileHash {
		return &FileTestResult{File: file, SourceHash: fileHash, Status: StatusPass, Message: "Unchanged since the previous passing run (cached)"}
	}

	produced := runStages(s.compiler, strings.Fields(s.compileArgs), file, s.timeout)
	produced.SourceHash = fileHash

	goldenFile := goldenPath(file, s.jsonDir)
	if s.update {
		if err := writeGolden(goldenFile, produced); err != nil {
			return &FileTestResult{File: file, SourceHash: fileHash, Status: StatusError, Message: err.Error()}
		}
		return &FileTestResult{File: file, SourceHash: fileHash, Status: StatusPass, Message: "Golden file written to " + goldenFile, Target: produced}
	}

	golden, err := readGolden(goldenFile)
	if os.IsNotExist(err) {
		return &FileTestResult{File: file, SourceHash: fileHash, Status: StatusSkip, Message: "No golden file, run with --update to create " + goldenFile}
	}
	if err != nil {
		return &FileTestResult{File: file, SourceHash: fileHash, Status: StatusError, Message: err.Error()}
	}

	var ignored []string
	if s.ignoreLines != "" {
		ignored = strings.Split(s.ignoreLines, ",")
	}
	result := compareStages(file, golden, produced, ignored)
	result.SourceHash = fileHash
	if golden.SourceHash != fileHash && result.Status == StatusPass {
		result.Message += " (source changed since the golden file was written)"
	}
	return result
}
