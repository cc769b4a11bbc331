package leb128_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcore/wasmcore/errs"
	"github.com/wasmcore/wasmcore/leb128"
	"github.com/wasmcore/wasmcore/util"
)

func asErr(t *testing.T, err error) *errs.Error {
	t.Helper()
	e, ok := err.(*errs.Error)
	require.True(t, ok, "expected *errs.Error, got %T (%v)", err, err)
	return e
}

func TestReadU32RoundTripsMinimalEncoding(t *testing.T) {
	var buf bytes.Buffer
	leb128.PutU32(&buf, 624485)
	v, err := leb128.ReadU32(util.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uint32(624485), v)
}

func TestReadS32RoundTripsNegative(t *testing.T) {
	var buf bytes.Buffer
	leb128.PutS32(&buf, -123456)
	v, err := leb128.ReadS32(util.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, int32(-123456), v)
}

// spec.md §8 S3: an overlong encoding — more continuation bytes than
// the value needs — must be rejected, not silently accepted as a
// slow-path encoding of the same integer. Five continuation bytes
// encoding zero is one byte more than ReadU32's 5-byte limit allows.
func TestReadU32RejectsOverlongEncoding(t *testing.T) {
	overlong := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
	_, err := leb128.ReadU32(util.NewCursor(overlong))
	require.Error(t, err)
	require.Equal(t, errs.IntegerTooLong, asErr(t, err).Kind)
}

func TestReadS32RejectsOverlongEncoding(t *testing.T) {
	overlong := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
	_, err := leb128.ReadS32(util.NewCursor(overlong))
	require.Error(t, err)
	require.Equal(t, errs.IntegerTooLong, asErr(t, err).Kind)
}

// The final allowed byte of a 32-bit unsigned read carries only 4
// significant bits (32 - 4*7 = 4); any high bit set in that byte is a
// non-sign-extended overflow, not a longer value.
func TestReadU32RejectsOverflowInFinalByte(t *testing.T) {
	tooBig := []byte{0xff, 0xff, 0xff, 0xff, 0x7f} // final byte 0x7f has bits above the 4 allowed set
	_, err := leb128.ReadU32(util.NewCursor(tooBig))
	require.Error(t, err)
	require.Equal(t, errs.IntegerOverflow, asErr(t, err).Kind)
}

func TestReadU32RejectsEOF(t *testing.T) {
	_, err := leb128.ReadU32(util.NewCursor([]byte{0x80}))
	require.Error(t, err)
	require.Equal(t, errs.UnexpectedEOF, asErr(t, err).Kind)
}

func TestReadS64RoundTripsMinimalEncoding(t *testing.T) {
	var buf bytes.Buffer
	leb128.PutS64(&buf, -9000000000)
	v, err := leb128.ReadS64(util.NewCursor(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, int64(-9000000000), v)
}
