// =============================================================================
// Calyx Language Server - Main Entry Point
// =============================================================================
//
// Speaks LSP over stdio. The pipeline behind every request:
//   1. Tree-sitter parses Calyx into a syntax tree (grammar.js)
//   2. The document layer derives a component table per file
//   3. Definition and completion classify the node under the cursor and
//      search the import graph breadth-first across files
//   4. On save, compiler errors and OPA lint findings are published as
//      diagnostics
//
// =============================================================================

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/calyxir/calyx-lsp/internal/lspserver"

	// commonlog needs a concrete backend registered.
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("verbose", 0, "log verbosity: 0 warnings, 1 info, 2 debug")
	flag.IntVar(verbosity, "v", 0, "log verbosity (shorthand)")
	logFile := flag.String("log-file", "", "write logs to file instead of stderr")
	debug := flag.Bool("debug", false, "log every LSP message")
	flag.Parse()

	// stdout carries the protocol, so logs must never land there.
	var logPath *string
	if *logFile != "" {
		logPath = logFile
	}
	commonlog.Configure(*verbosity, logPath)

	srv, err := lspserver.New(commonlog.GetLogger(lspserver.ServerName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Run(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
