package breakpad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateSimpleArithmetic(t *testing.T) {
	rules := CfiRuleSet{Rules: map[string]string{".cfa": "esp 16 +"}}
	out, err := Evaluate(rules, map[string]uint64{"esp": 0x1000}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0x1010), out[".cfa"])
}

func TestEvaluateDereference(t *testing.T) {
	mem := map[uint64]uint64{0x1010: 0xDEADBEEF}
	readWord := func(addr uint64) (uint64, error) {
		v, ok := mem[addr]
		if !ok {
			return 0, newError(KindEvaluationFailed, "unmapped %#x", addr)
		}
		return v, nil
	}
	rules := CfiRuleSet{Rules: map[string]string{
		".cfa": "esp 16 +",
		".ra":  ".cfa 0 + ^",
	}}
	out, err := Evaluate(rules, map[string]uint64{"esp": 0x1000}, readWord)
	require.NoError(t, err)
	require.Equal(t, uint64(0xDEADBEEF), out[".ra"])
}

func TestEvaluateDivisionByZero(t *testing.T) {
	rules := CfiRuleSet{Rules: map[string]string{"x": "1 0 /"}}
	_, err := Evaluate(rules, nil, nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindEvaluationFailed))
}

func TestEvaluateUnknownIdentifier(t *testing.T) {
	rules := CfiRuleSet{Rules: map[string]string{"x": "nosuchreg"}}
	_, err := Evaluate(rules, nil, nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindEvaluationFailed))
}

func TestEvaluateCyclicDependencyFails(t *testing.T) {
	rules := CfiRuleSet{Rules: map[string]string{
		"a": "b 1 +",
		"b": "a 1 +",
	}}
	_, err := Evaluate(rules, nil, nil)
	require.Error(t, err)
}

func TestEvaluateOperandStackOverflow(t *testing.T) {
	expr := ""
	for i := 0; i < maxOperandStackDepth+1; i++ {
		expr += "1 "
	}
	rules := CfiRuleSet{Rules: map[string]string{"x": expr}}
	_, err := Evaluate(rules, nil, nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindExpressionStackOverflow))
}
