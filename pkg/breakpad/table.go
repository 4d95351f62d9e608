package breakpad

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Table is one module's parsed symbol file (spec.md §4.3): functions,
// lines, inline records, public symbols, and the two Windows/CFI unwind
// record kinds, each kept sorted by address for binary-search lookup.
type Table struct {
	OS              string
	Arch            string
	DebugID         string
	DebugFile       string
	Files           map[int]string
	InlineOrigins   map[int]string
	Functions       []Func // sorted by Address
	Publics         []Public // sorted by Address
	WinRecords      []WinStackRecord // sorted by RVA
	CfiInits        []CfiInit // sorted by Address
	CfiDeltas       []CfiDelta // sorted by Address

	// Corrupt is set when the MODULE header was missing or a mandatory
	// field failed to parse. The table is kept (spec.md §4.3: "marked
	// corrupt", not discarded) and its CFI and STACK WIN records stay
	// usable, but Resolver.ResolveLine returns KindCorruptSymbols for it.
	Corrupt bool
	// Warnings carries one entry per skipped malformed line, for callers
	// that want to surface parse diagnostics without treating them as
	// fatal.
	Warnings []string
}

// Diagnostics aggregates every skipped malformed line into a single
// *multierror.Error, or nil if the parse was clean — the same
// independent-non-fatal-problem batching the corpus's validation paths use
// (go-multierror), rather than forcing a caller to walk Warnings itself.
func (t *Table) Diagnostics() error {
	if len(t.Warnings) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, w := range t.Warnings {
		result = multierror.Append(result, fmt.Errorf("%s", w))
	}
	return result.ErrorOrNil()
}

func newTable() *Table {
	return &Table{
		Files:         make(map[int]string),
		InlineOrigins: make(map[int]string),
	}
}

func (t *Table) finalize() {
	sort.Slice(t.Functions, func(i, j int) bool { return t.Functions[i].Address < t.Functions[j].Address })
	sort.Slice(t.Publics, func(i, j int) bool { return t.Publics[i].Address < t.Publics[j].Address })
	sort.Slice(t.WinRecords, func(i, j int) bool { return t.WinRecords[i].RVA < t.WinRecords[j].RVA })
	sort.Slice(t.CfiInits, func(i, j int) bool { return t.CfiInits[i].Address < t.CfiInits[j].Address })
	sort.Slice(t.CfiDeltas, func(i, j int) bool { return t.CfiDeltas[i].Address < t.CfiDeltas[j].Address })
	for i := range t.Functions {
		sort.Slice(t.Functions[i].Lines, func(a, b int) bool {
			return t.Functions[i].Lines[a].Address < t.Functions[i].Lines[b].Address
		})
	}
}

// FunctionAt returns the function whose [Address, Address+Size) range
// contains addr, via binary search.
func (t *Table) FunctionAt(addr uint64) (*Func, bool) {
	i := sort.Search(len(t.Functions), func(i int) bool { return t.Functions[i].Address > addr }) - 1
	if i < 0 || i >= len(t.Functions) {
		return nil, false
	}
	f := &t.Functions[i]
	if addr < f.Address || addr >= f.Address+f.Size {
		return nil, false
	}
	return f, true
}

// PublicAt returns the public symbol with the greatest Address not
// exceeding addr — breakpad's PUBLIC records have no Size, so the match
// is "last public at or before addr" rather than an interval test.
func (t *Table) PublicAt(addr uint64) (*Public, bool) {
	i := sort.Search(len(t.Publics), func(i int) bool { return t.Publics[i].Address > addr }) - 1
	if i < 0 || i >= len(t.Publics) {
		return nil, false
	}
	return &t.Publics[i], true
}

// lineAt returns the LINE record covering addr within f, via binary
// search.
func lineAt(f *Func, addr uint64) (*LineRecord, bool) {
	i := sort.Search(len(f.Lines), func(i int) bool { return f.Lines[i].Address > addr }) - 1
	if i < 0 || i >= len(f.Lines) {
		return nil, false
	}
	l := &f.Lines[i]
	if addr < l.Address || (l.Size > 0 && addr >= l.Address+l.Size) {
		return nil, false
	}
	return l, true
}

// WinRecordAt returns the STACK WIN record covering addr.
func (t *Table) WinRecordAt(addr uint64) (*WinStackRecord, bool) {
	i := sort.Search(len(t.WinRecords), func(i int) bool { return t.WinRecords[i].RVA > addr }) - 1
	if i < 0 || i >= len(t.WinRecords) {
		return nil, false
	}
	r := &t.WinRecords[i]
	if addr < r.RVA || addr >= r.RVA+r.CodeSize {
		return nil, false
	}
	return r, true
}

// CfiRulesAt implements find_cfi_rules: the INIT region covering addr,
// with every delta at or before addr merged in address order so later
// deltas override earlier ones for the same register (spec.md §4.3).
func (t *Table) CfiRulesAt(addr uint64) (CfiRuleSet, bool) {
	i := sort.Search(len(t.CfiInits), func(i int) bool { return t.CfiInits[i].Address > addr }) - 1
	if i < 0 || i >= len(t.CfiInits) {
		return CfiRuleSet{}, false
	}
	init := t.CfiInits[i]
	if addr < init.Address || (init.Size > 0 && addr >= init.Address+init.Size) {
		return CfiRuleSet{}, false
	}

	merged := make(map[string]string, len(init.Rules))
	for k, v := range init.Rules {
		merged[k] = v
	}
	for _, d := range t.CfiDeltas {
		if d.Address < init.Address || d.Address > addr {
			continue
		}
		for k, v := range d.Rules {
			merged[k] = v
		}
	}
	return CfiRuleSet{Rules: merged}, true
}

// InlineAt returns every InlineRecord (innermost last) covering addr
// inside f, ordered by Depth ascending and capped at maxDepth entries —
// the resolver's half of spec.md §9's hard cap on inline expansion.
func InlineAt(f *Func, addr uint64, maxDepth int) []InlineRecord {
	var matches []InlineRecord
	for _, inl := range f.Inlines {
		for _, rng := range inl.Ranges {
			if addr >= rng.Address && addr < rng.Address+rng.Size {
				matches = append(matches, inl)
				break
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Depth < matches[j].Depth })
	if len(matches) > maxDepth {
		matches = matches[:maxDepth]
	}
	return matches
}
