// Package minidump parses a minidump container (spec.md §3, §4.1, §6):
// the fixed header, the stream directory, and each well-known stream,
// exposing typed accessors over the mapped/buffered file bytes. Parsing
// never reinterpret-casts raw bytes to a host struct (pkg/minidump/cursor.go)
// so behavior is identical on a big-endian host.
package minidump

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/grafana/crashproc/pkg/rangemap"
)

// Reader owns the minidump's bytes for the lifetime of a processing run;
// every value it returns — MemoryRegion slices, Module/Thread structs that
// reference strings read from the buffer — borrows from that buffer and
// must not outlive the Reader (spec.md §5).
type Reader struct {
	buf     []byte
	header  Header
	entries []directoryEntry

	systemInfo   *SystemInfo
	threads      []rawThread
	modules      []Module
	unloaded     []UnloadedModule
	exception    *Exception
	miscInfo     *MiscInfo
	handleData   *HandleDataStreamResult
	threadNames  []ThreadNameEntry
	breakpadInfo *BreakpadInfo
	assertion    *AssertionInfo
	crashpadInfo *CrashpadInfo
	linuxMaps    LinuxMaps

	memDescriptors []MemoryDescriptor
	memIndex       *rangemap.Map[MemoryDescriptor]
	memOverlaps    []rangemap.Overlap[MemoryDescriptor]

	// Overlaps among raw stream byte ranges are not modeled; the
	// directory format gives no reason to expect them and spec.md §8's
	// overlap invariant is scoped to modules and memory regions.
}

// New parses buf as a complete minidump file. It returns an error when the
// header or directory cannot be established, or when any stream it decodes
// (system info, thread and module lists, exception, memory lists and the
// other typed streams) is malformed. A stream that is simply absent is not
// an error: its accessor reports ok=false.
func New(buf []byte) (*Reader, error) {
	header, err := parseHeader(buf)
	if err != nil {
		return nil, errors.Wrap(err, "parse minidump header")
	}
	entries, err := parseDirectory(buf, header.DirectoryRVA, header.StreamCount)
	if err != nil {
		return nil, errors.Wrap(err, "parse minidump directory")
	}
	r := &Reader{buf: buf, header: header, entries: entries}
	if err := r.loadStreams(); err != nil {
		return nil, errors.Wrap(err, "load minidump streams")
	}
	return r, nil
}

func (r *Reader) loadStreams() error {
	for _, e := range r.entries {
		slice, err := streamSlice(r.buf, e)
		if err != nil {
			return fmt.Errorf("stream %#x: %w", uint32(e.StreamType), err)
		}
		switch e.StreamType {
		case StreamSystemInfo:
			si, err := parseSystemInfo(slice)
			if err != nil {
				return fmt.Errorf("system info: %w", err)
			}
			r.systemInfo = &si
		case StreamThreadList:
			threads, err := parseThreadList(slice)
			if err != nil {
				return fmt.Errorf("thread list: %w", err)
			}
			r.threads = threads
		case StreamModuleList:
			modules, err := parseModuleList(slice, r.buf)
			if err != nil {
				return fmt.Errorf("module list: %w", err)
			}
			r.modules = modules
		case StreamUnloadedModuleList:
			modules, err := parseUnloadedModuleList(slice, r.buf)
			if err != nil {
				return fmt.Errorf("unloaded module list: %w", err)
			}
			r.unloaded = modules
		case StreamException:
			ex, err := parseExceptionHeader(slice)
			if err != nil {
				return fmt.Errorf("exception: %w", err)
			}
			r.exception = &ex
		case StreamMiscInfo:
			mi, err := parseMiscInfo(slice)
			if err != nil {
				return fmt.Errorf("misc info: %w", err)
			}
			r.miscInfo = &mi
		case StreamMemoryList:
			descs, err := parseMemoryList(slice)
			if err != nil {
				return fmt.Errorf("memory list: %w", err)
			}
			r.memDescriptors = append(r.memDescriptors, descs...)
		case StreamMemory64List:
			descs, err := parseMemory64List(slice)
			if err != nil {
				return fmt.Errorf("memory64 list: %w", err)
			}
			r.memDescriptors = append(r.memDescriptors, descs...)
		case StreamHandleData:
			hd, err := parseHandleDataStream(slice)
			if err != nil {
				return fmt.Errorf("handle data: %w", err)
			}
			r.handleData = &hd
		case StreamThreadNames:
			names, err := parseThreadNames(slice, r.buf)
			if err != nil {
				return fmt.Errorf("thread names: %w", err)
			}
			r.threadNames = names
		case StreamBreakpadInfo:
			bi, err := parseBreakpadInfo(slice)
			if err != nil {
				return fmt.Errorf("breakpad info: %w", err)
			}
			r.breakpadInfo = &bi
		case StreamAssertionInfo:
			ai, err := parseAssertionInfo(slice)
			if err != nil {
				return fmt.Errorf("assertion info: %w", err)
			}
			r.assertion = &ai
		case StreamCrashpadInfo:
			ci, err := parseCrashpadInfo(slice)
			if err != nil {
				return fmt.Errorf("crashpad info: %w", err)
			}
			r.crashpadInfo = &ci
		case StreamLinuxMaps:
			r.linuxMaps = append(LinuxMaps(nil), slice...)
		default:
			// Unknown or unconsumed well-known stream types are preserved
			// in the directory but otherwise unused, per spec.md §3.
		}
	}

	if len(r.memDescriptors) > 0 {
		r.memIndex, r.memOverlaps = buildMemoryIndex(r.buf, r.memDescriptors)
	}
	return nil
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// SystemInfo returns the SystemInfo stream, if present.
func (r *Reader) SystemInfo() (SystemInfo, bool) {
	if r.systemInfo == nil {
		return SystemInfo{}, false
	}
	return *r.systemInfo, true
}

// Arch returns the architecture SystemInfo declares, or ArchUnknown if
// there is no SystemInfo stream.
func (r *Reader) Arch() Arch {
	if r.systemInfo == nil {
		return ArchUnknown
	}
	return r.systemInfo.Arch
}

// Modules returns the ModuleList stream's modules in load order, if
// present.
func (r *Reader) Modules() ([]Module, bool) {
	if r.modules == nil {
		return nil, false
	}
	return r.modules, true
}

// UnloadedModules returns the UnloadedModuleList stream, if present.
func (r *Reader) UnloadedModules() ([]UnloadedModule, bool) {
	if r.unloaded == nil {
		return nil, false
	}
	return r.unloaded, true
}

// Threads returns every thread's {id, stack range, and decoded context},
// decoding each context now that Arch() is known. A thread whose context
// record cannot be decoded for Arch() (for example a size mismatch, which
// DecodeContext reports as KindUnknownArchitecture) is still returned, with
// an empty Context; the decode error is not surfaced, and other threads are
// unaffected.
func (r *Reader) Threads() ([]Thread, bool) {
	if r.threads == nil {
		return nil, false
	}
	arch := r.Arch()
	out := make([]Thread, len(r.threads))
	for i, rt := range r.threads {
		t := Thread{
			ThreadID:     rt.ThreadID,
			SuspendCount: rt.SuspendCount,
			Priority:     rt.Priority,
			TEB:          rt.TEB,
			StackRange:   rt.StackRange,
		}
		if ctxBuf, err := r.sliceAt(rt.ContextRVA, rt.ContextSize); err == nil {
			if ctx, err := DecodeContext(arch, ctxBuf); err == nil {
				t.Context = ctx
				t.contextLoaded = true
			}
		}
		out[i] = t
	}
	return out, true
}

// Exception returns the Exception stream, decoding its embedded context
// against Arch().
func (r *Reader) Exception() (Exception, bool) {
	if r.exception == nil {
		return Exception{}, false
	}
	ex := *r.exception
	if ctxBuf, err := r.sliceAt(ex.contextRVA, ex.contextSize); err == nil {
		if ctx, err := DecodeContext(r.Arch(), ctxBuf); err == nil {
			ex.ThreadContext = ctx
		}
	}
	return ex, true
}

// MiscInfo returns the MiscInfo stream, if present.
func (r *Reader) MiscInfo() (MiscInfo, bool) {
	if r.miscInfo == nil {
		return MiscInfo{}, false
	}
	return *r.miscInfo, true
}

// HandleData returns the HandleData stream, if present.
func (r *Reader) HandleData() (HandleDataStreamResult, bool) {
	if r.handleData == nil {
		return HandleDataStreamResult{}, false
	}
	return *r.handleData, true
}

// ThreadNames returns the ThreadNames stream, if present.
func (r *Reader) ThreadNames() ([]ThreadNameEntry, bool) {
	if r.threadNames == nil {
		return nil, false
	}
	return r.threadNames, true
}

// BreakpadInfo returns the BreakpadInfo stream, if present.
func (r *Reader) BreakpadInfo() (BreakpadInfo, bool) {
	if r.breakpadInfo == nil {
		return BreakpadInfo{}, false
	}
	return *r.breakpadInfo, true
}

// Assertion returns the AssertionInfo stream, if present.
func (r *Reader) Assertion() (AssertionInfo, bool) {
	if r.assertion == nil {
		return AssertionInfo{}, false
	}
	return *r.assertion, true
}

// CrashpadInfo returns the CrashpadInfo stream, if present.
func (r *Reader) CrashpadInfo() (CrashpadInfo, bool) {
	if r.crashpadInfo == nil {
		return CrashpadInfo{}, false
	}
	return *r.crashpadInfo, true
}

// LinuxMaps returns the LinuxMaps stream, if present.
func (r *Reader) LinuxMaps() (LinuxMaps, bool) {
	if r.linuxMaps == nil {
		return nil, false
	}
	return r.linuxMaps, true
}

// MemoryOverlaps reports memory descriptors whose range collided with one
// admitted earlier; the collided descriptor is simply absent from
// GetMemory's index (spec.md §8's overlap invariant, applied to memory
// regions as well as modules).
func (r *Reader) MemoryOverlaps() []rangemap.Overlap[MemoryDescriptor] {
	return r.memOverlaps
}

// GetMemory searches both memory lists (MemoryList and Memory64List) for
// the region containing address, with O(log n) lookup (spec.md §4.1).
func (r *Reader) GetMemory(address uint64) (MemoryRegion, error) {
	if r.memIndex == nil {
		return MemoryRegion{}, nil
	}
	rng, ok := r.memIndex.At(address)
	if !ok {
		return MemoryRegion{}, nil
	}
	data, err := sliceForDescriptor(r.buf, rng.Value)
	if err != nil {
		return MemoryRegion{}, newError(KindStreamOverrun, "memory region at %#x: %v", rng.Value.StartAddress, err)
	}
	return MemoryRegion{StartAddress: rng.Value.StartAddress, Data: data}, nil
}

// ReadMemoryAt reads exactly len(dst) bytes starting at address from
// whichever memory region covers it, or returns a KindStreamOverrun error
// if address is not covered or the read would run past the region's end.
func (r *Reader) ReadMemoryAt(address uint64, dst []byte) error {
	region, err := r.GetMemory(address)
	if err != nil {
		return err
	}
	if region.Data == nil {
		return newError(KindStreamOverrun, "no memory region covers address %#x", address)
	}
	offset := address - region.StartAddress
	if offset+uint64(len(dst)) > uint64(len(region.Data)) {
		return newError(KindStreamOverrun, "read of %d bytes at %#x runs past region end", len(dst), address)
	}
	copy(dst, region.Data[offset:offset+uint64(len(dst))])
	return nil
}

// ReadWordAt reads one word (wordSize 4 or 8 bytes) at address,
// little-endian.
func (r *Reader) ReadWordAt(address uint64, wordSize int) (uint64, error) {
	buf := make([]byte, wordSize)
	if err := r.ReadMemoryAt(address, buf); err != nil {
		return 0, err
	}
	c := newCursor(buf)
	if wordSize == 4 {
		return uint64(c.u32()), nil
	}
	return c.u64(), nil
}

func (r *Reader) sliceAt(rva, size uint32) ([]byte, error) {
	start := uint64(rva)
	end := start + uint64(size)
	if end > uint64(len(r.buf)) || end < start {
		return nil, newError(KindStreamOverrun, "slice at %#x size %d overruns file", rva, size)
	}
	return r.buf[start:end], nil
}
