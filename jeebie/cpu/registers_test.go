package cpu

import (
	"testing"

	"dmgcore/jeebie/memory"
)

func TestCPU_flags(t *testing.T) {
	mmu := memory.New()
	cpu := New(mmu)

	cpu.setFlag(zeroFlag)
	cpu.setFlag(carryFlag)

	if !cpu.isSetFlag(zeroFlag) || !cpu.isSetFlag(carryFlag) {
		t.Fatal("expected zero and carry flags set")
	}
	if cpu.isSetFlag(subFlag) || cpu.isSetFlag(halfCarryFlag) {
		t.Fatal("expected sub and half-carry flags clear")
	}

	cpu.resetFlag(zeroFlag)
	if cpu.isSetFlag(zeroFlag) {
		t.Fatal("expected zero flag cleared")
	}

	cpu.setFlagToCondition(halfCarryFlag, true)
	if !cpu.isSetFlag(halfCarryFlag) {
		t.Fatal("expected half-carry flag set via setFlagToCondition")
	}

	if cpu.flagToBit(halfCarryFlag) != 1 {
		t.Fatal("expected flagToBit to report 1 for a set flag")
	}
}

func TestCPU_flagLowNibbleAlwaysZero(t *testing.T) {
	mmu := memory.New()
	cpu := New(mmu)

	cpu.setAF(0xFFFF)
	if cpu.getAF()&0x0F != 0 {
		t.Fatalf("AF low nibble = %#x, want 0", cpu.getAF()&0x0F)
	}
	if cpu.f&0x0F != 0 {
		t.Fatalf("F low nibble = %#x, want 0", cpu.f&0x0F)
	}
}

func TestCPU_pairAccess(t *testing.T) {
	mmu := memory.New()
	cpu := New(mmu)

	cpu.setBC(0x1234)
	if cpu.b != 0x12 || cpu.c != 0x34 {
		t.Fatalf("b/c = %#x/%#x, want 0x12/0x34", cpu.b, cpu.c)
	}
	if cpu.getBC() != 0x1234 {
		t.Fatalf("getBC() = %#x, want 0x1234", cpu.getBC())
	}

	cpu.setHL(0xABCD)
	if cpu.getHL() != 0xABCD {
		t.Fatalf("getHL() = %#x, want 0xABCD", cpu.getHL())
	}

	cpu.setDE(0x0102)
	if cpu.getDE() != 0x0102 {
		t.Fatalf("getDE() = %#x, want 0x0102", cpu.getDE())
	}
}
