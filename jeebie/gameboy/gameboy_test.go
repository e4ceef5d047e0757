package gameboy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dmgcore/jeebie/addr"
)

// newTestROM builds a minimal 32KB RomOnly cartridge (2 banks, no RAM) with
// program placed at the post-boot entry point 0x0100. The header checksum
// byte is left nonzero so New never takes the alternate-AF boot path.
func newTestROM(program []byte) []byte {
	rom := make([]byte, 2*0x4000)
	rom[0x0147] = 0x00 // RomOnly
	rom[0x0148] = 0x00 // 2 ROM banks
	rom[0x0149] = 0x00 // no RAM
	rom[0x014D] = 0x01 // header checksum, only its zero-ness matters to New
	copy(rom[0x0100:], program)
	return rom
}

// dtForCycles returns the Δt that makes Core.Tick's fixed-point budget land
// on exactly n T-cycles: the +0.5 keeps the float multiplication clear of n
// itself in either rounding direction, so the truncated budget is always n.
func dtForCycles(n int) float64 {
	return (float64(n) + 0.5) / cpuFrequencyHz
}

// TestTick_ArithmeticAndFlags reproduces the arithmetic/flag half of seed
// scenario S1/S2: LD A,n / LD B,n / ADD A,B leaves A and the flag register
// exactly as the ALU table specifies. The scenario's RET is not exercised
// here since, without a prior CALL, it would pop whatever poisoned bytes
// happen to sit on the stack; popStack/pushStack/RET are covered directly
// in the cpu package instead. A trailing JR -2 spins in place so the budget
// can safely overshoot the three instructions under test.
func TestTick_ArithmeticAndFlags(t *testing.T) {
	t.Run("S1: ADD A,B with no overflow", func(t *testing.T) {
		rom := newTestROM([]byte{
			0x3E, 0x42, // LD A,0x42
			0x06, 0x08, // LD B,0x08
			0x80,       // ADD A,B
			0x18, 0xFE, // JR -2 (spin)
		})
		core, err := New(rom)
		assert.NoError(t, err)

		fault := core.Tick(dtForCycles(8 + 8 + 4))
		assert.Nil(t, fault)

		s := core.State()
		assert.Equal(t, uint8(0x4A), uint8(s.AF>>8), "A")
		assert.Equal(t, uint8(0x00), uint8(s.AF&0xFF), "flags")
	})

	t.Run("S2: ADD A,B overflows to zero with half-carry and carry", func(t *testing.T) {
		rom := newTestROM([]byte{
			0x3E, 0xFF, // LD A,0xFF
			0x06, 0x01, // LD B,0x01
			0x80,       // ADD A,B
			0x18, 0xFE, // JR -2 (spin)
		})
		core, err := New(rom)
		assert.NoError(t, err)

		fault := core.Tick(dtForCycles(8 + 8 + 4))
		assert.Nil(t, fault)

		s := core.State()
		assert.Equal(t, uint8(0x00), uint8(s.AF>>8), "A")
		flags := uint8(s.AF & 0xFF)
		assert.NotZero(t, flags&0x80, "Z")
		assert.Zero(t, flags&0x40, "N")
		assert.NotZero(t, flags&0x20, "H")
		assert.NotZero(t, flags&0x10, "C")
	})
}

// TestTick_IncAfterAddOverflow reproduces seed scenario S3: ADD A,0xFF from
// A=0 sets A to 0xFF with every flag clear, and the following INC A wraps it
// to 0x00, setting Z and H while leaving the carry flag exactly as ADD left
// it (INC never touches C).
func TestTick_IncAfterAddOverflow(t *testing.T) {
	program := []byte{
		0x3E, 0x00, // LD A,0x00
		0xC6, 0xFF, // ADD A,0xFF
		0x3C,       // INC A
		0x18, 0xFE, // JR -2 (spin)
	}

	t.Run("after ADD", func(t *testing.T) {
		core, err := New(newTestROM(program))
		assert.NoError(t, err)

		fault := core.Tick(dtForCycles(8 + 8))
		assert.Nil(t, fault)

		s := core.State()
		assert.Equal(t, uint8(0xFF), uint8(s.AF>>8), "A")
		assert.Equal(t, uint8(0x00), uint8(s.AF&0xFF), "flags")
	})

	t.Run("after INC", func(t *testing.T) {
		core, err := New(newTestROM(program))
		assert.NoError(t, err)

		fault := core.Tick(dtForCycles(8 + 8 + 4))
		assert.Nil(t, fault)

		s := core.State()
		assert.Equal(t, uint8(0x00), uint8(s.AF>>8), "A")
		flags := uint8(s.AF & 0xFF)
		assert.NotZero(t, flags&0x80, "Z")
		assert.Zero(t, flags&0x40, "N")
		assert.NotZero(t, flags&0x20, "H")
		assert.Zero(t, flags&0x10, "C preserved from ADD")
	})
}

// TestTick_InterruptDispatch is an integration-level equivalent of seed
// scenario S6, reached through the public Core API rather than direct
// register injection: the ROM enables the VBlank
// interrupt in IE (the boot default already leaves its IF bit set, a known
// DMG quirk), issues EI, then two NOPs. By the second NOP, IME has taken
// effect and the pending interrupt dispatches: PC jumps to the VBlank
// vector, IME and the IF bit both clear, and the return address is pushed
// low-byte-first immediately below the boot SP.
func TestTick_InterruptDispatch(t *testing.T) {
	rom := newTestROM([]byte{
		0x3E, 0x01, // LD A,0x01
		0xE0, 0xFF, // LDH (0xFF),A -- writes IE (0xFF00+0xFF == 0xFFFF)
		0xFB, // EI
		0x00, // NOP -- EI's one-instruction delay
		0x00, // NOP -- interrupt dispatches before this opcode's own fetch
	})
	core, err := New(rom)
	assert.NoError(t, err)

	// LD A,n(8) + LDH(12) + EI(4) + NOP(4) + [dispatch(20)+vector NOP(4)](24) = 52
	fault := core.Tick(dtForCycles(8 + 12 + 4 + 4 + 24))
	assert.Nil(t, fault)

	s := core.State()
	assert.Equal(t, uint16(0x0041), s.PC, "PC landed one past the vector's own NOP")
	assert.False(t, s.IME, "IME cleared on dispatch")
	assert.Zero(t, core.Read(addr.IF)&0x01, "VBlank IF bit cleared on dispatch")
	assert.Equal(t, uint16(0xFFFC), s.SP)
	assert.Equal(t, byte(0x06), core.Read(0xFFFC), "pushed return address low byte")
	assert.Equal(t, byte(0x01), core.Read(0xFFFD), "pushed return address high byte")
}

// TestNew_RejectsTruncatedROM exercises the InvalidCartridge boot-time error
// path: a ROM image shorter than its declared bank count must fail to load
// rather than let the MBC read garbage past the slice.
func TestNew_RejectsTruncatedROM(t *testing.T) {
	rom := newTestROM(nil)
	rom = rom[:0x4000] // declares 2 banks but is only 1 bank long

	_, err := New(rom)
	assert.Error(t, err)
}

// TestNew_RejectsUnsupportedCartType exercises the UnsupportedMBC boot-time
// error path surfaced straight from cartridge.Parse.
func TestNew_RejectsUnsupportedCartType(t *testing.T) {
	rom := newTestROM(nil)
	rom[0x0147] = 0x20 // MBC6, deliberately unsupported

	_, err := New(rom)
	assert.Error(t, err)
}
