package llhd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptimizeWriteEndToEnd(t *testing.T) {
	src := `func @sum () i32 {
    %0 = const_int i32 4
    %1 = const_int i32 5
    %2 = add i32 %0, %1
    ret_value %2
}
`
	m, err := Parse("sum.llhd", src)
	require.NoError(t, err)

	require.NoError(t, Optimize(context.Background(), m))

	out := Write(m)
	assert.Contains(t, out, "const_int i32 9", "4+5 must fold to an interned constant 9")
	assert.NotContains(t, out, "add", "the folded add must be eliminated as dead")

	_, err = Parse("sum.llhd", out)
	require.NoError(t, err, "optimized output must re-parse:\n%s", out)
}

func TestParseRejectsSignatureMismatchAtLink(t *testing.T) {
	src := `func @top () i32 {
    %0 = const_int i32 1
    %1 = call i64 @sub(%0)
    %2 = const_int i32 0
    ret_value %2
}
func @sub (i32 %x) i32 {
    ret_value %x
}
`
	_, err := Parse("t.llhd", src)
	require.Error(t, err, "call signature i64 vs defined i32 must fail the link")
	assert.Contains(t, err.Error(), "signature")
}

func TestSimulateWritesVCD(t *testing.T) {
	src := `entity @blink (i1$ %clk) -> () {
    %1 = const_int i1 1
    drv %clk, %1, 1ns
}
`
	m, err := Parse("blink.llhd", src)
	require.NoError(t, err)

	var vcd strings.Builder
	require.NoError(t, Simulate(m, "blink", 16, &vcd))
	out := vcd.String()
	assert.Contains(t, out, "$timescale 1ps $end")
	assert.Contains(t, out, "#1000", "the 1ns drive must land at picosecond 1000")
}
