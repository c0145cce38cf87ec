package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEmptyFunctionDeclaration(t *testing.T) {
	src := `func @identity (i32) i32`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)
	require.Len(t, m.Units(), 1)

	u := m.Unit(0)
	assert.Equal(t, "identity", u.Name)
	assert.True(t, u.IsDeclaration())
}

func TestRoundTripSimpleFunction(t *testing.T) {
	src := `func @add (i32 %a, i32 %b) i32 {
    %2 = add i32 %a, %b
    ret_value %2
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)

	out := WriteModule(m)
	m2, err := ReadModule("t.llhd", out)
	require.NoError(t, err, "re-parsing the printed output must succeed:\n%s", out)

	u2 := m2.Unit(0)
	assert.Equal(t, "add", u2.Name)
	assert.Equal(t, 3, u2.DFG.NumValues(), "2 args + 1 add result")
	assert.Equal(t, 2, u2.DFG.NumInsts(), "add and ret_value")
}

func TestRoundTripBranchingFunction(t *testing.T) {
	src := `func @max (i32 %a, i32 %b) i32 {
entry:
    %2 = ugt i32 %a, %b
    br_cond %2, take_a, take_b
take_a:
    ret_value %a
take_b:
    ret_value %b
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)

	out := WriteModule(m)
	_, err = ReadModule("t.llhd", out)
	require.NoError(t, err, "re-parsing the printed output must succeed:\n%s", out)
}

func TestRoundTripPhiAcrossLoopBackEdge(t *testing.T) {
	src := `func @count (i32 %n) i32 {
entry:
    %1 = const_int i32 0
    br header
header:
    %3 = phi i32 [%1, entry], [%5, body]
    %4 = eq i32 %3, %n
    br_cond %4, exit, body
body:
    %c1 = const_int i32 1
    %5 = add i32 %3, %c1
    br header
exit:
    ret_value %3
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)

	out := WriteModule(m)
	m2, err := ReadModule("t.llhd", out)
	require.NoError(t, err, "re-parsing the printed output must succeed:\n%s", out)

	u2 := m2.Unit(0)
	assert.Equal(t, 4, len(u2.CFG.Blocks()), "entry, header, body, exit")
}

func TestRoundTripEntityWithSignalsAndTime(t *testing.T) {
	src := `entity @buffer (i1$ %clk, i32$ %d) -> (i32$ %q) {
    %2 = prb i32 %clk
    %3 = prb i32 %d
    %4 = reg i32$ %3, %2, rise
    con %4, %q
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)

	out := WriteModule(m)
	_, err = ReadModule("t.llhd", out)
	require.NoError(t, err, "re-parsing the printed output must succeed:\n%s", out)
}

func TestRoundTripDriveWithTimeLiteral(t *testing.T) {
	src := `entity @driver (i32$ %out) -> () {
    %1 = const_int i32 1
    drv %out, %1, 1ns
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)

	out := WriteModule(m)
	assert.Contains(t, out, "1ns", "a 1ns delay must survive the exact-decimal reconstruction")

	_, err = ReadModule("t.llhd", out)
	require.NoError(t, err, "re-parsing the printed output must succeed:\n%s", out)
}

func TestRoundTripProcessWait(t *testing.T) {
	src := `proc @watcher (i32$ %sig) -> () {
entry:
    %1 = prb i32 %sig
    wait %sig, resume entry
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)

	out := WriteModule(m)
	_, err = ReadModule("t.llhd", out)
	require.NoError(t, err, "re-parsing the printed output must succeed:\n%s", out)
}

func TestModuleLinkResolvesCallExtern(t *testing.T) {
	src := `func @helper (i32 %x) i32 {
    ret_value %x
}
func @caller (i32 %x) i32 {
    %2 = call i32 @helper(%x)
    ret_value %2
}
`
	m, err := ReadModule("t.llhd", src)
	require.NoError(t, err)
	require.NoError(t, m.Link())

	id, ok := m.Lookup("helper")
	require.True(t, ok)
	assert.Equal(t, m.Unit(id).Name, "helper")
}
