// calyx-debug pokes at the pipeline stages the language server is built
// from, one stage per subcommand. When a definition or completion comes
// back wrong, work forward from the grammar: tree, then table, then
// imports, then def.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/commonlog"
	tree_sitter_calyx "github.com/tree-sitter/tree-sitter-calyx"

	"github.com/calyxir/calyx-lsp/internal/config"
	"github.com/calyxir/calyx-lsp/internal/definition"
	"github.com/calyxir/calyx-lsp/internal/document"
	"github.com/calyxir/calyx-lsp/internal/imports"
	"github.com/calyxir/calyx-lsp/internal/treequery"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	commonlog.Configure(0, nil)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "tree":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		runTree(os.Args[2])
	case "table":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		runTable(os.Args[2])
	case "imports":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		runImports(os.Args[2])
	case "def":
		if len(os.Args) < 5 {
			printUsage()
			os.Exit(1)
		}
		runDef(os.Args[2], os.Args[3], os.Args[4])
	case "library":
		runLibrary()
	case "-h", "--help", "help":
		printUsage()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: calyx-debug <command> [args]

Commands:
  init                    Create a calyx-lsp.json configuration file
  tree <file>             Print the parse tree with node kinds and positions
  table <file>            Print the file's component table as JSON
  imports <file>          Print each import and the files it resolves to
  def <file> <row> <col>  Resolve the definition under row:col (zero-based)
  library                 List Calyx files under the configured library paths

Configuration:
  calyx-debug honors the same calyx-lsp.json lookup as the server:
    1. ./calyx-lsp.json
    2. ./.calyx-lsp.json
    3. ~/.config/calyx-lsp/config.json`)
}

func runInit() {
	configPath := "calyx-lsp.json"

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Library paths imports resolve against")
	fmt.Println("  - The calyx compiler command for on-save diagnostics")
	fmt.Println("  - Whether the lint pass runs")
}

// loadDocument parses one file from disk along with the config that governs
// its directory.
func loadDocument(path string) (*document.Document, *config.Config, *treequery.Engine) {
	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	text, err := os.ReadFile(abs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(filepath.Dir(abs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	engine := treequery.New(sitter.NewLanguage(tree_sitter_calyx.Language()))
	doc, err := document.NewFromText(abs, text, engine, commonlog.GetLogger("calyx-debug"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return doc, cfg, engine
}

func runTree(path string) {
	doc, _, _ := loadDocument(path)
	defer doc.Close()

	var walk func(node *sitter.Node, depth int)
	walk = func(node *sitter.Node, depth int) {
		for i := 0; i < depth; i++ {
			fmt.Print("  ")
		}
		start, end := node.StartPoint(), node.EndPoint()
		fmt.Printf("%s [%d:%d-%d:%d]", node.Type(), start.Row, start.Column, end.Row, end.Column)
		if node.NamedChildCount() == 0 {
			fmt.Printf(" %q", doc.NodeText(node))
		}
		fmt.Println()
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i), depth+1)
		}
	}
	walk(doc.Root(), 0)
}

func runTable(path string) {
	doc, _, _ := loadDocument(path)
	defer doc.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc.Table()); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding table: %v\n", err)
		os.Exit(1)
	}
}

func runImports(path string) {
	doc, cfg, _ := loadDocument(path)
	defer doc.Close()

	fromDir := filepath.Dir(doc.Path())
	for _, raw := range doc.RawImports() {
		resolved := imports.Resolve(fromDir, cfg.LibraryPaths, []string{raw})
		if len(resolved) == 0 {
			fmt.Printf("%s -> (unresolved)\n", raw)
			continue
		}
		for _, target := range resolved {
			fmt.Printf("%s -> %s\n", raw, target)
		}
	}
}

func runDef(path, rowArg, colArg string) {
	row, err := strconv.ParseUint(rowArg, 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad row %q: %v\n", rowArg, err)
		os.Exit(1)
	}
	col, err := strconv.ParseUint(colArg, 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad column %q: %v\n", colArg, err)
		os.Exit(1)
	}

	doc, cfg, engine := loadDocument(path)
	defer doc.Close()

	var opened []*document.Document
	defer func() {
		for _, d := range opened {
			d.Close()
		}
	}()
	load := func(p string) (*document.Document, error) {
		text, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		d, err := document.NewFromText(p, text, engine, commonlog.GetLogger("calyx-debug"))
		if err != nil {
			return nil, err
		}
		opened = append(opened, d)
		return d, nil
	}

	point := sitter.Point{Row: uint32(row), Column: uint32(col)}
	loc, ok := definition.Find(doc, point, cfg.LibraryPaths, load)
	if !ok {
		fmt.Println("no definition found")
		os.Exit(1)
	}
	fmt.Printf("%s %d:%d-%d:%d\n", loc.URI,
		loc.Range.Start.Line, loc.Range.Start.Character,
		loc.Range.End.Line, loc.Range.End.Character)
}

func runLibrary() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	files := cfg.LibraryFiles()
	if len(files) == 0 {
		fmt.Println("no library files found")
		return
	}
	for _, f := range files {
		fmt.Printf("%s (root %s)\n", f.Path, f.Root)
	}
}
