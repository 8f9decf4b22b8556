// Command svdoc generates documentation for SystemVerilog sources.
//
// The pipeline:
//  1. Sources are resolved from the project configuration (svdoc.json)
//  2. Every file is parsed and its documentation comments are extracted
//  3. The per-file documentation is merged into one library in path order
//  4. The library is rendered as an HTML site, nested JSON, or fact tables
//
// Files that fail to parse are reported with a caret-underlined excerpt and
// make the command exit non-zero; the remaining files are still documented.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/robert-at-pretension-io/svdoc/internal/printer"
)

// version is set at link time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			printer.New(os.Stderr).Error(err)
		}
		stop()
		os.Exit(1)
	}
}
