// Command coverage-check reads a Go coverage profile and fails when a
// component of scopeq is below its coverage threshold.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const modulePath = "github.com/oxhq/scopeq/"

// Component groups packages that share a coverage threshold
type Component struct {
	Name      string
	Prefixes  []string
	Threshold float64
}

// DefaultComponents are checked in order; the first matching prefix wins.
var DefaultComponents = []Component{
	{Name: "Query Engine", Prefixes: []string{"query"}, Threshold: 85.0},
	{Name: "Highlight", Prefixes: []string{"highlight"}, Threshold: 85.0},
	{Name: "Providers", Prefixes: []string{"providers"}, Threshold: 75.0},
	{Name: "Pipeline", Prefixes: []string{"core"}, Threshold: 80.0},
	{Name: "Persistence", Prefixes: []string{"db", "models"}, Threshold: 70.0},
	{Name: "CLI", Prefixes: []string{"cmd", "render"}, Threshold: 60.0},
	{Name: "Support", Prefixes: []string{"config", "internal"}, Threshold: 65.0},
}

// StrictBonus is added to every threshold in strict mode
const StrictBonus = 5.0

// PackageCoverage counts statements per package
type PackageCoverage struct {
	Package    string
	Statements int
	Covered    int
}

// Coverage returns the covered share of statements in percent
func (p PackageCoverage) Coverage() float64 {
	if p.Statements == 0 {
		return 0
	}
	return float64(p.Covered) / float64(p.Statements) * 100.0
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <coverage.out> [--strict]\n", os.Args[0])
		os.Exit(1)
	}
	strict := len(os.Args) > 2 && os.Args[2] == "--strict"

	file, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading coverage file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	packages, err := parseProfile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing coverage file: %v\n", err)
		os.Exit(1)
	}

	if failures := report(os.Stdout, packages, DefaultComponents, strict); failures > 0 {
		fmt.Printf("\nCoverage check FAILED: %d threshold(s) not met\n", failures)
		os.Exit(1)
	}
	fmt.Println("\nAll coverage thresholds met")
}

// parseProfile aggregates a coverage profile per package. Lines look like
// "path/file.go:1.2,3.4 numStatements count".
func parseProfile(r io.Reader) (map[string]*PackageCoverage, error) {
	packages := make(map[string]*PackageCoverage)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "mode:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 3 {
			continue
		}
		file, _, ok := strings.Cut(parts[0], ":")
		if !ok || !strings.HasSuffix(file, ".go") {
			continue
		}
		statements, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		count, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}

		pkg := file
		if idx := strings.LastIndex(pkg, "/"); idx != -1 {
			pkg = pkg[:idx]
		}
		pc, ok := packages[pkg]
		if !ok {
			pc = &PackageCoverage{Package: pkg}
			packages[pkg] = pc
		}
		pc.Statements += statements
		if count > 0 {
			pc.Covered += statements
		}
	}
	return packages, scanner.Err()
}

// componentOf returns the index of the component pkg belongs to, or -1.
func componentOf(pkg string, components []Component) int {
	rel := strings.TrimPrefix(pkg, modulePath)
	for i, c := range components {
		for _, prefix := range c.Prefixes {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return i
			}
		}
	}
	return -1
}

// report prints per-component coverage and returns the number of
// components below their threshold.
func report(w io.Writer, packages map[string]*PackageCoverage, components []Component, strict bool) int {
	totals := make([]PackageCoverage, len(components))
	var overall PackageCoverage

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pkg := packages[name]
		overall.Statements += pkg.Statements
		overall.Covered += pkg.Covered
		if i := componentOf(name, components); i >= 0 {
			totals[i].Statements += pkg.Statements
			totals[i].Covered += pkg.Covered
		}
	}

	fmt.Fprintf(w, "Overall: %.1f%%\n\n", overall.Coverage())
	failures := 0
	for i, c := range components {
		if totals[i].Statements == 0 {
			fmt.Fprintf(w, "-  %-14s: no statements\n", c.Name)
			continue
		}
		threshold := c.Threshold
		if strict {
			threshold += StrictBonus
		}
		status := "ok"
		if totals[i].Coverage() < threshold {
			status = "!!"
			failures++
		}
		fmt.Fprintf(w, "%s %-14s: %5.1f%% (target: %.1f%%)\n", status, c.Name, totals[i].Coverage(), threshold)
	}
	return failures
}
