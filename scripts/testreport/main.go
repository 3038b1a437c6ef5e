// Command testreport merges `go test -json` output with the annotation
// headers on test functions and writes JSON and Markdown reports.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TestMetadata holds info parsed from Go source comments
type TestMetadata struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
}

// GoTestEvent represents a single event from 'go test -json'
type GoTestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// FinalTestResult is the merged result for a single test
type FinalTestResult struct {
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Elapsed     float64      `json:"elapsed_seconds"`
	Package     string       `json:"package"`
	Failure     string       `json:"failure_reason,omitempty"`
	Annotations TestMetadata `json:"annotations"`
}

// ReportSummary holds top-level stats
type ReportSummary struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Total       int               `json:"total"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Results     []FinalTestResult `json:"results"`
}

// categoryOrder fixes the section order of the Markdown report.
var categoryOrder = []string{
	"Identity", "Projects", "Revisions", "Billing", "Organizations",
	"HTTP API", "Persistence", "Platform", "Other",
}

func main() {
	inputPath := flag.String("input", "", "Path to go test -json output file")
	outputJSON := flag.String("out-json", "", "Path for output JSON report")
	outputMD := flag.String("out-md", "", "Path for output Markdown report")
	title := flag.String("title", "Test Report", "Report title")
	root := flag.String("root", ".", "Module root to scan for annotations")
	flag.Parse()

	if *inputPath == "" || *outputJSON == "" || *outputMD == "" {
		fmt.Println("Usage: testreport -input <json_file> -out-json <out_json> -out-md <out_md>")
		os.Exit(1)
	}

	modulePath, err := readModulePath(filepath.Join(*root, "go.mod"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read go.mod: %v\n", err)
		os.Exit(1)
	}

	in, err := os.Open(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open test output: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	meta := scanMetadata(os.DirFS(*root), modulePath)
	summary := summarize(mergeResults(in, meta))

	if err := writeFile(*outputJSON, mustJSON(summary)); err != nil {
		fmt.Fprintf(os.Stderr, "write json: %v\n", err)
		os.Exit(1)
	}
	if err := writeFile(*outputMD, []byte(renderMarkdown(summary, *title))); err != nil {
		fmt.Fprintf(os.Stderr, "write markdown: %v\n", err)
		os.Exit(1)
	}

	// Non-zero exit keeps CI gates honest.
	if summary.Failed > 0 {
		fmt.Printf("\n❌ Test Reporting: %d tests failed. Exiting with error.\n", summary.Failed)
		os.Exit(1)
	}
}

func readModulePath(goMod string) (string, error) {
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if mod, ok := strings.CutPrefix(strings.TrimSpace(line), "module "); ok {
			return strings.TrimSpace(mod), nil
		}
	}
	return "", fmt.Errorf("no module directive")
}

// scanMetadata parses every _test.go file under fsys and collects the
// annotation block of each top-level Test function.
func scanMetadata(fsys fs.FS, modulePath string) map[string]TestMetadata {
	out := make(map[string]TestMetadata)
	fset := token.NewFileSet()

	fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" || d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil
		}
		node, err := parser.ParseFile(fset, path, src, parser.ParseComments)
		if err != nil {
			return nil
		}

		pkgPath := modulePath
		if dir := filepath.ToSlash(filepath.Dir(path)); dir != "." {
			pkgPath += "/" + dir
		}

		for _, decl := range node.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			meta := TestMetadata{
				Name:     fn.Name.Name,
				Package:  pkgPath,
				Category: categoryFor(pkgPath),
			}
			if fn.Doc != nil {
				parseAnnotations(fn.Doc, &meta)
			}
			out[pkgPath+"."+fn.Name.Name] = meta
		}
		return nil
	})

	return out
}

func parseAnnotations(doc *ast.CommentGroup, meta *TestMetadata) {
	fields := map[string]*string{
		"TestPurpose:":  &meta.Purpose,
		"Scope:":        &meta.Scope,
		"Security:":     &meta.Security,
		"Expected:":     &meta.Expected,
		"Test Case ID:": &meta.TestCaseID,
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if v, ok := strings.CutPrefix(text, prefix); ok {
				*dst = strings.TrimSpace(v)
			}
		}
	}
}

func categoryFor(pkgPath string) string {
	switch {
	case strings.Contains(pkgPath, "/identity"), strings.Contains(pkgPath, "/session"):
		return "Identity"
	case strings.Contains(pkgPath, "/revision"):
		return "Revisions"
	case strings.Contains(pkgPath, "/project"), strings.Contains(pkgPath, "/catalog"):
		return "Projects"
	case strings.Contains(pkgPath, "/billing"):
		return "Billing"
	case strings.Contains(pkgPath, "/organization"):
		return "Organizations"
	case strings.Contains(pkgPath, "/transport/http"):
		return "HTTP API"
	case strings.Contains(pkgPath, "/store/"):
		return "Persistence"
	case strings.Contains(pkgPath, "/config"), strings.Contains(pkgPath, "/observability"),
		strings.Contains(pkgPath, "/apperr"), strings.Contains(pkgPath, "/audit"):
		return "Platform"
	}
	return "Other"
}

// mergeResults folds a go test -json stream into per-test results. Annotated
// tests that never ran are reported as "not run"; subtests inherit their
// parent's annotations.
func mergeResults(r io.Reader, meta map[string]TestMetadata) []FinalTestResult {
	states := make(map[string]*FinalTestResult)
	for key, m := range meta {
		states[key] = &FinalTestResult{Name: m.Name, Package: m.Package, Status: "not run", Annotations: m}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev GoTestEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			annotations := TestMetadata{Name: ev.Test, Package: ev.Package, Category: categoryFor(ev.Package)}
			if parent, _, isSub := strings.Cut(ev.Test, "/"); isSub {
				if pm, found := meta[ev.Package+"."+parent]; found {
					annotations = pm
					annotations.Name = ev.Test
				}
			}
			res = &FinalTestResult{Name: ev.Test, Package: ev.Package, Annotations: annotations}
			states[key] = res
		}

		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "fail" || res.Status == "" {
				res.Failure += ev.Output
			}
		}
	}

	list := make([]FinalTestResult, 0, len(states))
	for _, v := range states {
		list = append(list, *v)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func summarize(results []FinalTestResult) ReportSummary {
	summary := ReportSummary{GeneratedAt: time.Now(), Results: results}
	for _, r := range results {
		summary.Total++
		switch r.Status {
		case "pass":
			summary.Passed++
		case "fail":
			summary.Failed++
		case "skip":
			summary.Skipped++
		}
	}
	return summary
}

func renderMarkdown(summary ReportSummary, title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Atelier %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	status := "✅ PASSED"
	if summary.Failed > 0 {
		status = "❌ FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	rate := 0.0
	if summary.Total > 0 {
		rate = float64(summary.Passed) / float64(summary.Total) * 100
	}
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", summary.Total, summary.Passed, summary.Failed, summary.Skipped, rate)

	byCategory := make(map[string][]FinalTestResult)
	for _, r := range summary.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}

	sb.WriteString("## Test Results by Category\n\n")
	for _, cat := range categoryOrder {
		tests := byCategory[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test Name | Status | Purpose | Security |\n")
		sb.WriteString("|----|-----------|--------|---------|----------|\n")
		for _, t := range tests {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, statusIcon(t.Status), t.Annotations.Purpose, security)
		}
		sb.WriteString("\n")
	}

	if summary.Failed > 0 {
		sb.WriteString("## Failure Details\n\n")
		for _, t := range summary.Results {
			if t.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n```\n%s\n```\n\n", t.Name, t.Package, t.Failure)
			}
		}
	}

	return sb.String()
}

func statusIcon(status string) string {
	switch status {
	case "pass":
		return "✅"
	case "fail":
		return "❌"
	case "skip":
		return "⏭️"
	}
	return "⚪"
}

func mustJSON(v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
