package arm

import (
	"testing"

	"github.com/cortexm3/armv7m/internal/armtest"
)

func TestShiftsBasic(t *testing.T) {
	armtest.Equal(t, lsl(0x1, 4), uint32(0x10), "lsl")
	armtest.Equal(t, lsl(0x1, 0), uint32(0x1), "lsl by 0 is identity")
	armtest.Equal(t, lsl(0x1, 32), uint32(0), "lsl by 32 is zero")

	armtest.Equal(t, lsr(0x10, 4), uint32(0x1), "lsr")
	armtest.Equal(t, asr(0x80000000, 4), uint32(0xf8000000), "asr sign-extends")
	armtest.Equal(t, asr(0x80000000, 32), uint32(0xffffffff), "asr by 32 of a negative saturates to all-ones")

	armtest.Equal(t, ror(0x1, 0), uint32(0x1), "ror by 0 is identity")
	armtest.Equal(t, ror(0x1, 1), uint32(0x80000000), "ror by 1")
	armtest.Equal(t, ror(0x1, 33), ror(0x1, 1), "ror treats shift amount modulo bit-width")
}

func TestShiftsWithCarry(t *testing.T) {
	v, c := lslWithCarry(0x80000000, 1)
	armtest.Equal(t, v, uint32(0), "lslWithCarry value")
	armtest.True(t, c, "lslWithCarry carry is the bit shifted out of bit 31")

	v, c = lsrWithCarry(0x1, 1)
	armtest.Equal(t, v, uint32(0), "lsrWithCarry value")
	armtest.True(t, c, "lsrWithCarry carry is the bit shifted out of bit 0")

	v, c = asrWithCarry(0x80000001, 1)
	armtest.Equal(t, v, uint32(0xc0000000), "asrWithCarry value")
	armtest.True(t, c, "asrWithCarry carry")

	v, c = rorWithCarry(0x1, 1)
	armtest.Equal(t, v, uint32(0x80000000), "rorWithCarry value")
	armtest.True(t, c, "rorWithCarry carry is the new top bit")
}

func TestRRX(t *testing.T) {
	v, c := rrxWithCarry(0x1, true)
	armtest.Equal(t, v, uint32(0x80000000), "rrx shifts right by one, injecting carry into bit 31")
	armtest.True(t, c, "rrx carry-out is the former bit 0")

	v, c = rrxWithCarry(0x2, false)
	armtest.Equal(t, v, uint32(0x1), "rrx with carryIn=false and no carry-out")
	armtest.True(t, !c, "rrx carry-out false when former bit 0 was 0")
}

func TestDecodeImmShift(t *testing.T) {
	typ, amount := decodeImmShift(0b00, 5)
	armtest.Equal(t, typ, shiftLSL, "type2=00 is LSL")
	armtest.Equal(t, amount, uint(5), "LSL imm5 amount")

	typ, amount = decodeImmShift(0b01, 0)
	armtest.Equal(t, typ, shiftLSR, "type2=01,imm5=0 is LSR #32")
	armtest.Equal(t, amount, uint(32), "LSR #32 amount")

	typ, amount = decodeImmShift(0b10, 0)
	armtest.Equal(t, typ, shiftASR, "type2=10,imm5=0 is ASR #32")
	armtest.Equal(t, amount, uint(32), "ASR #32 amount")

	typ, amount = decodeImmShift(0b11, 0)
	armtest.Equal(t, typ, shiftRRX, "type2=11,imm5=0 is RRX #1")
	armtest.Equal(t, amount, uint(1), "RRX amount is always 1")

	typ, amount = decodeImmShift(0b11, 7)
	armtest.Equal(t, typ, shiftROR, "type2=11,imm5!=0 is ROR imm5")
	armtest.Equal(t, amount, uint(7), "ROR amount")
}

// AddWithCarry is the basis of every flag-setting arithmetic instruction;
// subtraction is defined in terms of it as AddWithCarry(x, ~y, 1).
func TestAddWithCarry(t *testing.T) {
	sum, carry, overflow := addWithCarry(1, 2, false)
	armtest.Equal(t, sum, uint32(3), "1+2")
	armtest.True(t, !carry, "no carry out of 1+2")
	armtest.True(t, !overflow, "no signed overflow from 1+2")

	sum, carry, overflow = addWithCarry(0xffffffff, 1, false)
	armtest.Equal(t, sum, uint32(0), "0xffffffff+1 wraps to 0")
	armtest.True(t, carry, "carry out of 0xffffffff+1")
	armtest.True(t, !overflow, "no signed overflow: operands have differing signs")

	sum, carry, overflow = addWithCarry(0x7fffffff, 1, false)
	armtest.Equal(t, sum, uint32(0x80000000), "INT32_MAX+1")
	armtest.True(t, !carry, "no unsigned carry")
	armtest.True(t, overflow, "signed overflow: positive+positive=negative")
}

func TestAddWithCarryAsSubtraction(t *testing.T) {
	// x - y via AddWithCarry(x, ~y, 1): carry_out == (x >= y) unsigned.
	tests := []struct{ x, y uint32 }{
		{10, 3}, {3, 10}, {0, 0}, {0, 1}, {0x80000000, 1},
	}
	for _, tc := range tests {
		sum, carry, _ := addWithCarry(tc.x, ^tc.y, true)
		armtest.Equal(t, sum, tc.x-tc.y, "subtract via add-with-carry")
		armtest.Equal(t, carry, tc.x >= tc.y, "subtract carry-out reflects x>=y")
	}

	// signed-subtract overflow: INT32_MIN - 1 overflows.
	sum, _, overflow := addWithCarry(0x80000000, ^uint32(1), true)
	armtest.Equal(t, sum, uint32(0x7fffffff), "INT32_MIN-1 wraps to INT32_MAX")
	armtest.True(t, overflow, "INT32_MIN-1 signed-overflows")
}

func TestThumbExpandImmWithCarry(t *testing.T) {
	value, carry, unpredictable := thumbExpandImmWithCarry(0x47F, false)
	armtest.Equal(t, value, uint32(0xFF000000), "thumbExpandImmWithCarry(0x47F)")
	armtest.True(t, carry, "thumbExpandImmWithCarry(0x47F) carry-out")
	armtest.True(t, !unpredictable, "thumbExpandImmWithCarry(0x47F) is not UNPREDICTABLE")

	// the four byte-replication patterns, low byte 0xAB.
	cases := []struct {
		imm12 uint16
		want  uint32
	}{
		{0x0AB, 0x000000AB},
		{0x1AB, 0x00AB00AB},
		{0x2AB, 0xAB00AB00},
		{0x3AB, 0xABABABAB},
	}
	for _, tc := range cases {
		value, carry, unpredictable = thumbExpandImmWithCarry(tc.imm12, true)
		armtest.Equal(t, value, tc.want, "replication pattern")
		armtest.True(t, carry, "replication patterns leave carry unchanged")
		armtest.True(t, !unpredictable, "well-formed replication pattern is not UNPREDICTABLE")
	}

	// any pattern other than 0x000000AB with a zero low byte is UNPREDICTABLE.
	_, _, unpredictable = thumbExpandImmWithCarry(0x200, true)
	armtest.True(t, unpredictable, "zero low byte with a non-0b00 replication pattern is UNPREDICTABLE")

	// the rotated form (imm12[11:10] != 0): an 8-bit value with an implicit
	// leading 1 (0xFF, since imm12[6:0]=0x7F here) rotated right by
	// imm12[11:7]=9, giving 0x7F800000 with carry-out from the result's
	// (now-clear) top bit.
	value, carry, unpredictable = thumbExpandImmWithCarry(0x4FF, false)
	armtest.True(t, !unpredictable, "rotated form is never UNPREDICTABLE")
	armtest.Equal(t, value, uint32(0x7F800000), "rotated form: ROR(0xFF, 9)")
	armtest.True(t, !carry, "rotated form carry-out is the result's top bit, here clear")
}

func TestSignExtend(t *testing.T) {
	armtest.Equal(t, signExtend(0xff, 8), uint32(0xffffffff), "sign-extend a negative byte")
	armtest.Equal(t, signExtend(0x7f, 8), uint32(0x7f), "sign-extend a positive byte")
	armtest.Equal(t, signExtend(0xffff, 16), uint32(0xffffffff), "sign-extend a negative halfword")
}
