package breakpad

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedSupplier(data []byte, result LookupResult) Supplier {
	return SupplierFunc(func(ctx context.Context, debugFile, debugIdentifier string) (LookupOutcome, error) {
		return LookupOutcome{Result: result, Data: data}, nil
	})
}

func TestResolverLoadAndCache(t *testing.T) {
	calls := 0
	supplier := SupplierFunc(func(ctx context.Context, debugFile, debugIdentifier string) (LookupOutcome, error) {
		calls++
		return LookupOutcome{Result: Found, Data: []byte(sampleSymbolFile)}, nil
	})
	r, err := NewResolver(supplier, nil, nil)
	require.NoError(t, err)

	_, err = r.Load(context.Background(), "libfoo.so", "abc123")
	require.NoError(t, err)
	_, err = r.Load(context.Background(), "libfoo.so", "abc123")
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second Load should hit the cache, not call the supplier again")
}

func TestResolverNotFound(t *testing.T) {
	r, err := NewResolver(NullSupplier{}, nil, nil)
	require.NoError(t, err)
	_, err = r.Load(context.Background(), "libbar.so", "deadbeef")
	require.Error(t, err)
	require.True(t, IsKind(err, KindNotFound))
}

func TestResolverResolveLine(t *testing.T) {
	r, err := NewResolver(fixedSupplier([]byte(sampleSymbolFile), Found), nil, nil)
	require.NoError(t, err)
	fn, file, line, found, err := r.ResolveLine(context.Background(), "libfoo.so", "x", 0x405)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "main", fn)
	require.Equal(t, "foo.c", file)
	require.Equal(t, uint32(10), line)
}
