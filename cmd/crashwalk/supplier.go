package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grafana/crashproc/pkg/breakpad"
)

// dirSupplier resolves symbol files laid out the way breakpad's own
// symupload/minidump_stackwalk tools expect:
// <root>/<debug_file>/<debug_identifier>/<debug_file>.sym.
type dirSupplier struct {
	root string
}

func (s dirSupplier) Locate(ctx context.Context, debugFile, debugIdentifier string) (breakpad.LookupOutcome, error) {
	if err := ctx.Err(); err != nil {
		return breakpad.LookupOutcome{Result: breakpad.Interrupt}, nil
	}
	path := filepath.Join(s.root, debugFile, debugIdentifier, debugFile+".sym")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return breakpad.LookupOutcome{Result: breakpad.NotFound}, nil
		}
		return breakpad.LookupOutcome{}, err
	}
	return breakpad.LookupOutcome{Result: breakpad.Found, Data: data}, nil
}
