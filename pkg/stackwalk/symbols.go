package stackwalk

import (
	"context"

	"github.com/grafana/crashproc/pkg/breakpad"
)

// SymbolSource is the subset of *breakpad.Resolver the walker needs. Its
// methods are satisfied structurally by *breakpad.Resolver; a walker test
// can supply a hand-built fake instead (it still uses breakpad's record
// types, as walk_test.go's fakeSymbols does).
type SymbolSource interface {
	ResolveLine(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (function, sourceFile string, sourceLine uint32, found bool, err error)
	FindCfiRules(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (breakpad.CfiRuleSet, bool, error)
	FindWinRecord(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (breakpad.WinStackRecord, bool, error)
	InlineFrames(ctx context.Context, debugFile, debugIdentifier string, addr uint64, maxDepth int) ([]breakpad.InlineRecord, error)
}
