// Package modreg indexes a minidump's loaded modules for address lookup
// (spec.md §4.2). It keeps the modules in load order — the sequence the
// dump's ModuleList presents them in — alongside an rangemap-backed
// interval index for O(log n) address lookup, following the "ordered
// sequence plus auxiliary interval tree" design the spec names directly.
package modreg

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/grafana/crashproc/pkg/minidump"
	"github.com/grafana/crashproc/pkg/rangemap"
)

// Overlap records that module Rejected's address range collided with
// Kept's; Kept remains the one module_at_address resolves to for any
// contested address (spec.md §9's "keep first, diagnose" open-question
// decision, also used by pkg/minidump's memory index).
type Overlap struct {
	Kept     minidump.Module
	Rejected minidump.Module
}

// Registry is the Module Registry component: an ordered module sequence
// plus an address index built over it.
type Registry struct {
	modules  []minidump.Module
	byAddr   *rangemap.Map[minidump.Module]
	overlaps []Overlap
}

// New builds a Registry from a minidump's ModuleList, in the order the
// list presented them. Modules whose [base, base+size) range collides
// with an earlier module are still kept in the sequence — overlap only
// affects module_at_address, never module_count or module_at_sequence.
func New(modules []minidump.Module) *Registry {
	ranges := make([]rangemap.Range[minidump.Module], 0, len(modules))
	for _, m := range modules {
		if m.Size == 0 {
			continue
		}
		ranges = append(ranges, rangemap.Range[minidump.Module]{Start: m.BaseAddress, Size: uint64(m.Size), Value: m})
	}
	byAddr, rawOverlaps := rangemap.Build(ranges)

	overlaps := make([]Overlap, 0, len(rawOverlaps))
	for _, o := range rawOverlaps {
		overlaps = append(overlaps, Overlap{Kept: o.Kept.Value, Rejected: o.Rejected.Value})
	}

	return &Registry{
		modules:  append([]minidump.Module(nil), modules...),
		byAddr:   byAddr,
		overlaps: overlaps,
	}
}

// MainModule returns the first module by load order, if any.
func (r *Registry) MainModule() (minidump.Module, bool) {
	if len(r.modules) == 0 {
		return minidump.Module{}, false
	}
	return r.modules[0], true
}

// ModuleAtAddress returns the module whose [base, base+size) range
// contains addr, with O(log n) lookup. When addr falls inside an
// overlapping region, the first-loaded module (the one Overlap.Kept
// names) is returned.
func (r *Registry) ModuleAtAddress(addr uint64) (minidump.Module, bool) {
	rng, ok := r.byAddr.At(addr)
	if !ok {
		return minidump.Module{}, false
	}
	return rng.Value, true
}

// ModuleAtSequence returns the i-th module in load order, O(1).
func (r *Registry) ModuleAtSequence(i int) (minidump.Module, bool) {
	if i < 0 || i >= len(r.modules) {
		return minidump.Module{}, false
	}
	return r.modules[i], true
}

// ModuleCount returns the number of modules in the registry, regardless
// of overlap status.
func (r *Registry) ModuleCount() int {
	return len(r.modules)
}

// Overlaps returns every detected address-range collision, in the order
// rangemap.Build discovered them.
func (r *Registry) Overlaps() []Overlap {
	return r.overlaps
}

// OverlapsErr aggregates every detected overlap into a single
// *multierror.Error, or nil if none occurred — the same go-multierror
// accumulation the corpus uses for batches of independent, non-fatal
// validation problems (pkg/model/user.go, pkg/api/error.go).
func (r *Registry) OverlapsErr() error {
	if len(r.overlaps) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, o := range r.overlaps {
		result = multierror.Append(result, fmt.Errorf("module %q [%#x, %#x) overlaps already-loaded module %q",
			o.Rejected.Name, o.Rejected.BaseAddress, o.Rejected.BaseAddress+uint64(o.Rejected.Size), o.Kept.Name))
	}
	return result.ErrorOrNil()
}

// All returns every module in load order. The returned slice must not be
// mutated.
func (r *Registry) All() []minidump.Module {
	return r.modules
}
