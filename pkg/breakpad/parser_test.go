package breakpad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleSymbolFile = `MODULE Linux x86 000000000000000000000000000000000 libfoo.so
FILE 0 foo.c
FUNC 400 40 0 main
400 10 10 0
410 10 11 0
STACK CFI INIT 400 40 .cfa: esp 4 + .ra: .cfa 4 - ^
STACK CFI 420 .cfa: esp 8 +
PUBLIC 500 0 _start
`

func TestParseTableBasics(t *testing.T) {
	table := ParseTable([]byte(sampleSymbolFile))
	require.False(t, table.Corrupt)
	require.Equal(t, "x86", table.Arch)
	require.Equal(t, "libfoo.so", table.DebugFile)
	require.Len(t, table.Functions, 1)
	require.Equal(t, "main", table.Functions[0].Name)
	require.Len(t, table.Functions[0].Lines, 2)

	f, ok := table.FunctionAt(0x405)
	require.True(t, ok)
	require.Equal(t, "main", f.Name)

	p, ok := table.PublicAt(0x510)
	require.True(t, ok)
	require.Equal(t, "_start", p.Name)
}

func TestParseTableMissingModuleIsCorrupt(t *testing.T) {
	table := ParseTable([]byte("FUNC 400 10 0 main\n"))
	require.True(t, table.Corrupt)
}

func TestParseTableMalformedLineIsSkippedNotFatal(t *testing.T) {
	data := "MODULE Linux x86 0 libfoo.so\nFUNC not_hex 10 0 main\nPUBLIC 500 0 ok\n"
	table := ParseTable([]byte(data))
	require.False(t, table.Corrupt)
	require.Empty(t, table.Functions)
	require.Len(t, table.Publics, 1)
	require.NotEmpty(t, table.Warnings)
	require.Error(t, table.Diagnostics())
}

func TestCfiRulesAtMergesInitAndDeltas(t *testing.T) {
	table := ParseTable([]byte(sampleSymbolFile))
	rules, ok := table.CfiRulesAt(0x410)
	require.True(t, ok)
	require.Equal(t, "esp 4 +", rules.Rules[".cfa"])

	rules, ok = table.CfiRulesAt(0x425)
	require.True(t, ok)
	require.Equal(t, "esp 8 +", rules.Rules[".cfa"])
}

func TestInlineRecordParsing(t *testing.T) {
	data := "MODULE Linux x86 0 libfoo.so\n" +
		"INLINE_ORIGIN 0 inlined_fn\n" +
		"FUNC 400 40 0 main\n" +
		"INLINE 1 12 0 0 410 10\n"
	table := ParseTable([]byte(data))
	require.False(t, table.Corrupt)
	require.Len(t, table.Functions[0].Inlines, 1)
	inl := table.Functions[0].Inlines[0]
	require.Equal(t, 1, inl.Depth)
	require.Equal(t, uint32(12), inl.CallSiteLine)
	require.Len(t, inl.Ranges, 1)
	require.Equal(t, uint64(0x410), inl.Ranges[0].Address)

	matches := InlineAt(&table.Functions[0], 0x415, 16)
	require.Len(t, matches, 1)
}
