package breakpad

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Resolver is the Symbol Supplier & Resolver component (spec.md §4.3): it
// turns a Supplier's raw bytes into parsed per-module Tables, with an
// LRU cache keyed by (debug_file, debug_identifier) and singleflight
// request deduplication — the same pairing the teacher's
// DebuginfodHTTPClient uses for its own cache-miss fetch path, adapted
// from network fetches to Supplier lookups.
type Resolver struct {
	supplier Supplier
	cache    *lru.Cache[string, *Table]
	group    singleflight.Group
	logger   log.Logger
	metrics  *Metrics
}

// defaultCacheSize bounds the number of parsed symbol tables kept
// in-memory at once; a walk typically touches far fewer modules than
// this, so eviction under normal use is rare.
const defaultCacheSize = 256

// NewResolver builds a Resolver around supplier. A nil logger defaults
// to a no-op logger (the teacher's util.Logger convention) and a nil
// metrics defaults to an unregistered NewNullMetrics().
func NewResolver(supplier Supplier, logger log.Logger, metrics *Metrics) (*Resolver, error) {
	if supplier == nil {
		supplier = NullSupplier{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewNullMetrics()
	}
	cache, err := lru.New[string, *Table](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("breakpad: build symbol table cache: %w", err)
	}
	return &Resolver{supplier: supplier, cache: cache, logger: logger, metrics: metrics}, nil
}

func cacheKey(debugFile, debugIdentifier string) string {
	return debugFile + "\x00" + debugIdentifier
}

// Load returns the parsed Table for (debugFile, debugIdentifier),
// fetching it through the Supplier on a cache miss. Concurrent Loads for
// the same key share one Supplier call via singleflight. A KindNotFound
// or KindInterrupted error is never cached — a later Load may retry.
func (r *Resolver) Load(ctx context.Context, debugFile, debugIdentifier string) (*Table, error) {
	key := cacheKey(debugFile, debugIdentifier)
	if t, ok := r.cache.Get(key); ok {
		r.metrics.cacheOperations.WithLabelValues("hit").Inc()
		return t, nil
	}
	r.metrics.cacheOperations.WithLabelValues("miss").Inc()

	v, err, _ := r.group.Do(key, func() (any, error) {
		outcome, err := r.supplier.Locate(ctx, debugFile, debugIdentifier)
		if err != nil {
			return nil, err
		}
		switch outcome.Result {
		case NotFound:
			r.metrics.lookupTotal.WithLabelValues("not_found").Inc()
			return nil, newError(KindNotFound, "no symbols for %s %s", debugFile, debugIdentifier)
		case Interrupt, InterruptAndRetry:
			r.metrics.lookupTotal.WithLabelValues("interrupted").Inc()
			return nil, newError(KindInterrupted, "supplier interrupted lookup for %s %s", debugFile, debugIdentifier)
		case Found:
			r.metrics.lookupTotal.WithLabelValues("found").Inc()
			t := ParseTable(outcome.Data)
			if t.Corrupt {
				r.metrics.parseErrors.Inc()
				level.Warn(r.logger).Log("msg", "symbol file marked corrupt", "debug_file", debugFile, "debug_identifier", debugIdentifier)
			}
			for _, w := range t.Warnings {
				level.Debug(r.logger).Log("msg", "skipped malformed symbol line", "debug_file", debugFile, "warning", w)
			}
			r.cache.Add(key, t)
			return t, nil
		default:
			return nil, newError(KindNotFound, "unrecognized lookup result %d", outcome.Result)
		}
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// ResolveLine implements fill_source_line (spec.md §4.3): the
// function/source-file/source-line for addr within the module identified
// by (debugFile, debugIdentifier). A module whose symbol file is marked
// corrupt yields a KindCorruptSymbols error instead of function data.
func (r *Resolver) ResolveLine(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (function, sourceFile string, sourceLine uint32, found bool, err error) {
	t, err := r.Load(ctx, debugFile, debugIdentifier)
	if err != nil {
		return "", "", 0, false, err
	}
	if t.Corrupt {
		return "", "", 0, false, newError(KindCorruptSymbols, "corrupt symbols for %s %s", debugFile, debugIdentifier)
	}
	if f, ok := t.FunctionAt(addr); ok {
		function = f.Name
		if l, ok := lineAt(f, addr); ok {
			sourceFile = t.Files[l.FileID]
			sourceLine = l.Line
		}
		return function, sourceFile, sourceLine, true, nil
	}
	if p, ok := t.PublicAt(addr); ok {
		return p.Name, "", 0, true, nil
	}
	return "", "", 0, false, nil
}

// FindCfiRules implements find_cfi_rules.
func (r *Resolver) FindCfiRules(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (CfiRuleSet, bool, error) {
	t, err := r.Load(ctx, debugFile, debugIdentifier)
	if err != nil {
		return CfiRuleSet{}, false, err
	}
	rules, ok := t.CfiRulesAt(addr)
	return rules, ok, nil
}

// FindWinRecord implements find_win_record.
func (r *Resolver) FindWinRecord(ctx context.Context, debugFile, debugIdentifier string, addr uint64) (WinStackRecord, bool, error) {
	t, err := r.Load(ctx, debugFile, debugIdentifier)
	if err != nil {
		return WinStackRecord{}, false, err
	}
	rec, ok := t.WinRecordAt(addr)
	if !ok {
		return WinStackRecord{}, false, nil
	}
	return *rec, true, nil
}

// InlineFrames returns the inline records (innermost last, capped at
// maxDepth) covering addr within the module's enclosing function.
func (r *Resolver) InlineFrames(ctx context.Context, debugFile, debugIdentifier string, addr uint64, maxDepth int) ([]InlineRecord, error) {
	t, err := r.Load(ctx, debugFile, debugIdentifier)
	if err != nil {
		return nil, err
	}
	f, ok := t.FunctionAt(addr)
	if !ok {
		return nil, nil
	}
	return InlineAt(f, addr, maxDepth), nil
}
