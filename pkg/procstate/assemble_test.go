package procstate

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/crashproc/pkg/breakpad"
	"github.com/grafana/crashproc/pkg/minidump"
	"github.com/grafana/crashproc/pkg/stackwalk"
)

// The fixtures below assemble byte-exact minidump files directly against
// the wire layout pkg/minidump's parsers expect, the same approach
// pkg/minidump/reader_test.go's fixtureBuilder takes, duplicated here
// because that builder is unexported. Each module/thread entry is built
// to exactly its declared entry size, matching what the parsers consume.
const (
	fixHeaderSize         = 32
	fixDirectoryEntrySize = 12
	fixModuleEntrySize    = 108
	fixThreadEntrySize    = 48
)

type fixtureStream struct {
	streamType minidump.StreamType
	data       []byte
}

func buildMinidump(streams []fixtureStream) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	directoryRVA := uint32(fixHeaderSize)
	directorySize := uint32(len(streams) * fixDirectoryEntrySize)
	offset := directoryRVA + directorySize
	rvas := make([]uint32, len(streams))
	for i, s := range streams {
		rvas[i] = offset
		offset += uint32(len(s.data))
	}

	buf.WriteString("MDMP")
	binary.Write(&buf, le, uint32(0xA793))
	binary.Write(&buf, le, uint32(len(streams)))
	binary.Write(&buf, le, directoryRVA)
	binary.Write(&buf, le, uint32(0))
	binary.Write(&buf, le, uint32(0))
	binary.Write(&buf, le, uint64(0))

	for i, s := range streams {
		binary.Write(&buf, le, uint32(s.streamType))
		binary.Write(&buf, le, uint32(len(s.data)))
		binary.Write(&buf, le, rvas[i])
	}
	for _, s := range streams {
		buf.Write(s.data)
	}
	return buf.Bytes()
}

// rvaOf mirrors buildMinidump's placement pass for a stream not yet
// appended to the final layout, so content built earlier (a thread's
// encoded context) can embed a forward reference to its own position.
func rvaOf(streams []fixtureStream, index int) uint32 {
	offset := uint32(fixHeaderSize) + uint32(len(streams)*fixDirectoryEntrySize)
	for i := 0; i < index; i++ {
		offset += uint32(len(streams[i].data))
	}
	return offset
}

func mdString(s string) []byte {
	var buf bytes.Buffer
	var units []byte
	for _, r := range s {
		lo := uint16(r)
		units = append(units, byte(lo), byte(lo>>8))
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(units)))
	buf.Write(units)
	return buf.Bytes()
}

func buildSystemInfo(archWire uint16, platform minidump.PlatformID) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, archWire)
	binary.Write(&buf, le, uint16(0)) // processor_level
	binary.Write(&buf, le, uint16(0)) // processor_revision
	buf.WriteByte(0)                  // number_of_processors
	buf.WriteByte(0)                  // product_type
	binary.Write(&buf, le, uint32(0)) // major_version
	binary.Write(&buf, le, uint32(0)) // minor_version
	binary.Write(&buf, le, uint32(0)) // build_number
	binary.Write(&buf, le, uint32(platform))
	return buf.Bytes()
}

func buildModuleEntry(base uint64, size uint32, nameRVA uint32) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, base)
	binary.Write(&buf, le, size)
	binary.Write(&buf, le, uint32(0)) // checksum
	binary.Write(&buf, le, uint32(0)) // timestamp
	binary.Write(&buf, le, nameRVA)
	buf.Write(make([]byte, 8))        // signature/struct_version
	binary.Write(&buf, le, uint32(0)) // file version MS
	binary.Write(&buf, le, uint32(0)) // file version LS
	buf.Write(make([]byte, 4*9))      // remaining VS_FIXEDFILEINFO fields
	binary.Write(&buf, le, uint32(0)) // CV size: no CodeView record, debug_file falls back to Name
	binary.Write(&buf, le, uint32(0)) // CV RVA
	buf.Write(make([]byte, 8))        // MISC location descriptor
	buf.Write(make([]byte, 8))        // reserved0
	buf.Write(make([]byte, 8))        // reserved1
	return buf.Bytes()
}

func buildModuleList(entries ...[]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		buf.Write(e)
		if pad := fixModuleEntrySize - len(e); pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}
	return buf.Bytes()
}

func buildThreadEntry(threadID uint32, stackStart uint64, stackSize, contextSize, contextRVA uint32) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, threadID)
	binary.Write(&buf, le, uint32(0)) // suspend count
	binary.Write(&buf, le, uint32(0)) // priority class
	binary.Write(&buf, le, uint32(0)) // priority
	binary.Write(&buf, le, uint64(0)) // TEB
	binary.Write(&buf, le, stackStart)
	binary.Write(&buf, le, stackSize)
	binary.Write(&buf, le, uint32(0)) // stack RVA, unused by these tests
	binary.Write(&buf, le, contextSize)
	binary.Write(&buf, le, contextRVA)
	return buf.Bytes()
}

func buildThreadList(entries ...[]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	for _, e := range entries {
		buf.Write(e)
		if pad := fixThreadEntrySize - len(e); pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}
	return buf.Bytes()
}

func buildException(threadID, code, flags uint32, addr uint64, contextSize, contextRVA uint32) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, threadID)
	binary.Write(&buf, le, uint32(0)) // alignment
	binary.Write(&buf, le, code)
	binary.Write(&buf, le, flags)
	buf.Write(make([]byte, 8)) // exception_record, reserved
	binary.Write(&buf, le, addr)
	binary.Write(&buf, le, uint32(0)) // parameter count
	binary.Write(&buf, le, uint32(0)) // alignment
	for i := 0; i < 15; i++ {
		binary.Write(&buf, le, uint64(0))
	}
	binary.Write(&buf, le, contextSize)
	binary.Write(&buf, le, contextRVA)
	return buf.Bytes()
}

func buildBreakpadInfo(dumpThreadID uint32) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, uint32(1)) // validity: dump_thread_id present
	binary.Write(&buf, le, dumpThreadID)
	binary.Write(&buf, le, uint32(0)) // requesting_thread_id absent
	return buf.Bytes()
}

func x86Context(pc, sp uint64) minidump.CpuContext {
	ctx := minidump.NewCpuContext(minidump.ArchX86)
	ctx.Set("eip", pc)
	ctx.Set("esp", sp)
	ctx.Set("ebp", sp)
	return ctx
}

const scratchStream = minidump.StreamType(0xFFFF0001)

// newSupplierFixed answers every Locate call with the given result,
// regardless of which module is asked for.
func newSupplierFixed(result breakpad.LookupResult, data []byte) breakpad.Supplier {
	return breakpad.SupplierFunc(func(ctx context.Context, debugFile, debugIdentifier string) (breakpad.LookupOutcome, error) {
		return breakpad.LookupOutcome{Result: result, Data: data}, nil
	})
}

func mustResolver(t *testing.T, supplier breakpad.Supplier) *breakpad.Resolver {
	t.Helper()
	r, err := breakpad.NewResolver(supplier, nil, nil)
	require.NoError(t, err)
	return r
}

func TestAssembleCrashedThreadKnownReasonAndMissingSymbols(t *testing.T) {
	nameBlob := mdString("app")
	ctx := x86Context(0x400100, 0x7000)
	ctxBytes, err := minidump.EncodeContext(ctx)
	require.NoError(t, err)

	streams := []fixtureStream{
		{minidump.StreamSystemInfo, buildSystemInfo(0 /* x86 */, minidump.PlatformLinux)},
		{scratchStream, nameBlob},
		{}, // placeholder for ModuleList, filled below once nameRVA is known
		{scratchStream, ctxBytes},
		{}, // placeholder for ThreadList
		{}, // placeholder for Exception
	}
	nameRVA := rvaOf(streams, 1)
	streams[2] = fixtureStream{minidump.StreamModuleList, buildModuleList(buildModuleEntry(0x400000, 0x2000, nameRVA))}
	ctxRVA := rvaOf(streams, 3)
	streams[4] = fixtureStream{minidump.StreamThreadList, buildThreadList(buildThreadEntry(100, 0x6000, 0x1000, uint32(len(ctxBytes)), ctxRVA))}
	streams[5] = fixtureStream{minidump.StreamException, buildException(100, 11, 1, 0x0, uint32(len(ctxBytes)), ctxRVA)}

	reader, err := minidump.New(buildMinidump(streams))
	require.NoError(t, err)

	resolver := mustResolver(t, breakpad.NullSupplier{})
	state, err := Assemble(context.Background(), reader, resolver, stackwalk.Options{})
	require.NoError(t, err)

	require.Equal(t, "Linux", state.OS)
	require.Equal(t, "x86", state.CPU)
	require.True(t, state.Crashed)
	require.Equal(t, StatusCrashed, state.Status)
	require.Equal(t, "SIGSEGV /MAPERR", state.CrashReason)
	require.Equal(t, uint64(0x0), state.CrashAddress)
	require.Equal(t, 0, state.RequestingThreadIndex)

	require.Len(t, state.Threads, 1)
	require.Len(t, state.Threads[0].Stack, 1)
	require.Equal(t, stackwalk.TrustContext, state.Threads[0].Stack[0].Trust)

	require.Len(t, state.ModulesWithoutSymbols, 1)
	require.Equal(t, "app", state.ModulesWithoutSymbols[0].Name)
	require.Empty(t, state.ModulesWithCorruptSymbols)
}

func TestAssembleCorruptSymbolsClassification(t *testing.T) {
	nameBlob := mdString("app")
	ctx := x86Context(0x400100, 0x7000)
	ctxBytes, err := minidump.EncodeContext(ctx)
	require.NoError(t, err)

	streams := []fixtureStream{
		{minidump.StreamSystemInfo, buildSystemInfo(0, minidump.PlatformLinux)},
		{scratchStream, nameBlob},
		{},
		{scratchStream, ctxBytes},
		{},
	}
	nameRVA := rvaOf(streams, 1)
	streams[2] = fixtureStream{minidump.StreamModuleList, buildModuleList(buildModuleEntry(0x400000, 0x2000, nameRVA))}
	ctxRVA := rvaOf(streams, 3)
	streams[4] = fixtureStream{minidump.StreamThreadList, buildThreadList(buildThreadEntry(100, 0x6000, 0x1000, uint32(len(ctxBytes)), ctxRVA))}

	reader, err := minidump.New(buildMinidump(streams))
	require.NoError(t, err)

	// No MODULE header: ParseTable marks the table Corrupt rather than
	// erroring the Supplier lookup itself.
	resolver := mustResolver(t, newSupplierFixed(breakpad.Found, []byte("FUNC 100 10 0 main\n")))
	state, err := Assemble(context.Background(), reader, resolver, stackwalk.Options{})
	require.NoError(t, err)

	require.False(t, state.Crashed)
	require.Len(t, state.ModulesWithCorruptSymbols, 1)
	require.Equal(t, "app", state.ModulesWithCorruptSymbols[0].Name)
	require.Empty(t, state.ModulesWithoutSymbols)
}

func TestAssembleFallsBackToBreakpadInfoDumpThread(t *testing.T) {
	nameBlob := mdString("app")
	ctxA := x86Context(0x400100, 0x7000)
	ctxABytes, err := minidump.EncodeContext(ctxA)
	require.NoError(t, err)
	ctxB := x86Context(0x400200, 0x7100)
	ctxBBytes, err := minidump.EncodeContext(ctxB)
	require.NoError(t, err)

	streams := []fixtureStream{
		{minidump.StreamSystemInfo, buildSystemInfo(0, minidump.PlatformLinux)},
		{scratchStream, nameBlob},
		{},
		{scratchStream, ctxABytes},
		{scratchStream, ctxBBytes},
		{},
		{},
	}
	nameRVA := rvaOf(streams, 1)
	streams[2] = fixtureStream{minidump.StreamModuleList, buildModuleList(buildModuleEntry(0x400000, 0x2000, nameRVA))}
	ctxARVA := rvaOf(streams, 3)
	ctxBRVA := rvaOf(streams, 4)
	streams[5] = fixtureStream{minidump.StreamThreadList, buildThreadList(
		buildThreadEntry(100, 0x6000, 0x1000, uint32(len(ctxABytes)), ctxARVA),
		buildThreadEntry(200, 0x6100, 0x1000, uint32(len(ctxBBytes)), ctxBRVA),
	)}
	streams[6] = fixtureStream{minidump.StreamBreakpadInfo, buildBreakpadInfo(200)}

	reader, err := minidump.New(buildMinidump(streams))
	require.NoError(t, err)

	resolver := mustResolver(t, breakpad.NullSupplier{})
	state, err := Assemble(context.Background(), reader, resolver, stackwalk.Options{})
	require.NoError(t, err)

	require.False(t, state.Crashed)
	require.NotEqual(t, StatusNoCrashContext, state.Status)
	require.Equal(t, 1, state.RequestingThreadIndex)
	require.Len(t, state.Threads, 2)
}

func TestAssembleNoThreadsYieldsNoCrashContextStatus(t *testing.T) {
	streams := []fixtureStream{
		{minidump.StreamSystemInfo, buildSystemInfo(0, minidump.PlatformLinux)},
		{minidump.StreamThreadList, buildThreadList()},
	}
	reader, err := minidump.New(buildMinidump(streams))
	require.NoError(t, err)

	resolver := mustResolver(t, breakpad.NullSupplier{})
	state, err := Assemble(context.Background(), reader, resolver, stackwalk.Options{})
	require.NoError(t, err)

	require.Equal(t, StatusNoCrashContext, state.Status)
	require.Equal(t, -1, state.RequestingThreadIndex)
	require.Empty(t, state.Threads)
}

func TestAssembleInterruptedThreadTruncatesLaterThreads(t *testing.T) {
	nameBlob := mdString("app")
	ctxA := x86Context(0x400100, 0x7000)
	ctxABytes, err := minidump.EncodeContext(ctxA)
	require.NoError(t, err)
	ctxB := x86Context(0x400200, 0x7100)
	ctxBBytes, err := minidump.EncodeContext(ctxB)
	require.NoError(t, err)

	streams := []fixtureStream{
		{minidump.StreamSystemInfo, buildSystemInfo(0, minidump.PlatformLinux)},
		{scratchStream, nameBlob},
		{},
		{scratchStream, ctxABytes},
		{scratchStream, ctxBBytes},
		{},
	}
	nameRVA := rvaOf(streams, 1)
	streams[2] = fixtureStream{minidump.StreamModuleList, buildModuleList(buildModuleEntry(0x400000, 0x2000, nameRVA))}
	ctxARVA := rvaOf(streams, 3)
	ctxBRVA := rvaOf(streams, 4)
	streams[5] = fixtureStream{minidump.StreamThreadList, buildThreadList(
		buildThreadEntry(100, 0x6000, 0x1000, uint32(len(ctxABytes)), ctxARVA),
		buildThreadEntry(200, 0x6100, 0x1000, uint32(len(ctxBBytes)), ctxBRVA),
	)}

	reader, err := minidump.New(buildMinidump(streams))
	require.NoError(t, err)

	resolver := mustResolver(t, newSupplierFixed(breakpad.Interrupt, nil))
	state, err := Assemble(context.Background(), reader, resolver, stackwalk.Options{})
	require.NoError(t, err)

	require.Equal(t, StatusInterrupted, state.Status)
	require.Len(t, state.Threads, 1)
	require.Equal(t, uint32(100), state.Threads[0].ThreadID)
	require.Empty(t, state.Threads[0].Stack)
}
