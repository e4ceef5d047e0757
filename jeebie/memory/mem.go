package memory

import (
	"fmt"
	"log/slog"
	"math/rand"

	"dmgcore/jeebie/addr"
	"dmgcore/jeebie/bit"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionUnused
	regionIO
	regionHRAM
)

// MMU is the DMG address bus: it routes every CPU-visible read/write to the
// cartridge (via its MBC), internal RAM, or the flat I/O register block, and
// owns the DIV/TIMA divider chain that advances in real time rather than in
// lockstep with CPU instructions.
//
// The PPU, APU, serial port, joypad and RTC wall clock are external
// collaborators this bus does not implement: their registers are plain
// storage bytes here, exercised only insofar as the spec's read/write tables
// require.
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	regionMap [256]memRegion

	timer Timer
}

// New creates a new memory unit with default data, i.e. nothing cartridge loaded.
// Equivalent to turning on a Gameboy without a cartridge in.
func New() *MMU {
	mmu := &MMU{
		memory: make([]byte, 0x10000),
		cart:   NewCartridge(),
	}
	mmu.timer.TimerInterruptHandler = func() { mmu.RequestInterrupt(addr.TimerInterrupt) }
	initRegionMap(mmu)
	mmu.poisonRAM()
	mmu.resetIO()
	return mmu
}

// poisonRAM fills every non-cartridge byte from 0x8000 up (VRAM, WRAM, OAM,
// the I/O block and HRAM) with pseudo-random bytes, as real hardware leaves
// them in an indeterminate state at power-on; resetIO then overwrites the I/O
// registers it has defaults for. The cartridge
// ROM/RAM, fetched separately through the MBC, is never touched here.
func (m *MMU) poisonRAM() {
	for i := 0x8000; i < len(m.memory); i++ {
		switch m.regionMap[i>>8] {
		case regionROM, regionExtRAM:
			continue
		default:
			m.memory[i] = byte(rand.Intn(256))
		}
	}
}

// resetIO installs the DMG power-on values for the I/O register block (§6
// of the memory map), bypassing the write-side traps on DIV/TAC/LY since
// this runs before any instruction executes.
func (m *MMU) resetIO() {
	defaults := map[uint16]byte{
		addr.P1: 0xCF, addr.SC: 0x7E, addr.DIV: 0xAB, addr.TAC: 0xF8, addr.IF: 0xE1,
		addr.NR10: 0x80, addr.NR11: 0xBF, addr.NR12: 0xF3, addr.NR14: 0xBF,
		addr.NR21: 0x3F, addr.NR23: 0xFF, addr.NR24: 0xBF,
		addr.NR30: 0x7F, addr.NR31: 0xFF, addr.NR32: 0x9F, addr.NR33: 0xFF, addr.NR34: 0xBF,
		addr.NR41: 0xFF, addr.NR44: 0xBF,
		addr.NR50: 0x77, addr.NR51: 0xF3, addr.NR52: 0xF1,
		addr.LCDC: 0x91, addr.STAT: 0x85, addr.DMA: 0xFF,
		addr.BGP: 0xFC, addr.OBP0: 0xFF, addr.OBP1: 0xFF,
		addr.IE: 0x00,
	}
	for a, v := range defaults {
		m.memory[a] = v
	}
	m.timer.SetSeed()
}

// Tick is a reserved instrumentation hook: opcode execution calls it with the
// number of elapsed cycles for a sub-step, for future fine-grained PPU/APU
// synchronization. It intentionally does nothing to the timer divider chain
// today — that advances once per frame-driving Δt via AdvanceTimer, not once
// per instruction, to avoid double counting.
func (m *MMU) Tick(cycles int) {}

// AdvanceTimer advances the DIV/TIMA divider chain by dt seconds of wall
// time, carrying fractional ticks between calls so that many small calls
// accumulate the same result as one large one.
func (m *MMU) AdvanceTimer(dt float64) {
	m.timer.divAccum += dt * divFrequencyHz
	if n := int(m.timer.divAccum); n > 0 {
		m.memory[addr.DIV] += uint8(n)
		m.timer.divAccum -= float64(n)
	}

	tac := m.memory[addr.TAC]
	if tac&0x04 == 0 {
		return
	}

	m.timer.timaAccum += dt * timaFrequencyHz[tac&0x03]
	ticks := int(m.timer.timaAccum)
	m.timer.timaAccum -= float64(ticks)
	for i := 0; i < ticks; i++ {
		if m.memory[addr.TIMA] == 0xFF {
			m.memory[addr.TIMA] = m.memory[addr.TMA]
			if m.timer.TimerInterruptHandler != nil {
				m.timer.TimerInterruptHandler()
			}
		} else {
			m.memory[addr.TIMA]++
		}
	}
}

// Cartridge returns the loaded cartridge.
func (m *MMU) Cartridge() *Cartridge {
	return m.cart
}

// AdvanceRTC ticks the cartridge's real-time clock by dt seconds, if the
// loaded cartridge has one (MBC3 only). It is a no-op otherwise.
func (m *MMU) AdvanceRTC(dt float64) {
	if mbc3, ok := m.mbc.(*MBC3); ok {
		mbc3.AdvanceRTC(dt)
	}
}

// SetTimerSeed initializes the DIV register and clears the divider accumulators.
func (m *MMU) SetTimerSeed(seed uint8) {
	m.memory[addr.DIV] = seed
	m.timer.SetSeed()
}

// NewWithCartridge creates a new memory unit with the provided cartridge data loaded.
// Equivalent to turning on a Gameboy with a cartridge in.
func NewWithCartridge(cart *Cartridge) *MMU {
	mmu := New()
	mmu.cart = cart

	switch cart.mbcType {
	case NoMBCType:
		mmu.mbc = NewNoMBC(cart.data, cart.ramBankCount)
	case MBC1Type, MBC1MultiType:
		mmu.mbc = NewMBC1(cart.data, cart.hasBattery, cart.ramBankCount)
	case MBC2Type:
		mmu.mbc = NewMBC2(cart.data)
	case MBC3Type:
		mmu.mbc = NewMBC3(cart.data, cart.hasRTC, cart.ramBankCount)
	case MBC5Type:
		mmu.mbc = NewMBC5(cart.data, cart.hasRumble, cart.ramBankCount)
	case MBCUnknownType:
		panic("unsupported MBC type: unknown")
	default:
		panic(fmt.Sprintf("unsupported MBC type: %d", cart.mbcType))
	}

	return mmu
}

func initRegionMap(m *MMU) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	// OAM: 0xFE00-0xFE9F, Unused: 0xFEA0-0xFEFF. Both share page 0xFE, so
	// regionMap (page granularity) can't tell them apart; Read/Write use
	// oamPageRegion for the finer-grained split within that page.
	m.regionMap[0xFE] = regionOAM
	// IO + HRAM: 0xFF00-0xFFFF
	m.regionMap[0xFF] = regionIO
}

// oamPageRegion refines a page-0xFE address into regionOAM or regionUnused:
// 0xFEA0-0xFEFF is unusable on real hardware and must neither read live
// memory nor accept writes.
func oamPageRegion(address uint16) memRegion {
	if address >= 0xFEA0 {
		return regionUnused
	}
	return regionOAM
}

// RequestInterrupt sets the interrupt flag (IF register) of the chosen interrupt to 1.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	interruptFlags := m.Read(addr.IF)

	var bitPos uint8
	switch interrupt {
	case addr.VBlankInterrupt:
		bitPos = 0
	case addr.LCDSTATInterrupt:
		bitPos = 1
	case addr.TimerInterrupt:
		bitPos = 2
	case addr.SerialInterrupt:
		bitPos = 3
	case addr.JoypadInterrupt:
		bitPos = 4
	default:
		panic(fmt.Sprintf("Unknown interrupt: 0x%02X", uint8(interrupt)))
	}

	m.Write(addr.IF, bit.Set(bitPos, interruptFlags))
}

func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

func (m *MMU) SetBit(index uint8, address uint16, set bool) {
	value := m.Read(address)
	if set {
		value = bit.Set(index, value)
	} else {
		value = bit.Reset(index, value)
	}
	m.Write(address, value)
}

// Read returns the byte visible to the CPU at address. The cartridge-backed
// regions (ROM, external RAM), the echo-RAM mirror, and the unusable slice
// of the OAM page (0xFEA0-0xFEFF) are special-cased; every other address,
// including every I/O register, is a plain lookup into the flat memory array.
func (m *MMU) Read(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("reading cartridge region with no cartridge loaded", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if oamPageRegion(address) == regionUnused {
			return 0x00
		}
		return m.memory[address]
	default:
		return m.memory[address]
	}
}

// Write stores value at address. Three registers carry a side effect beyond
// plain storage: writing DIV always resets it to zero, writing LY always
// resets it to zero, and writing TAC resets TIMA to zero if the clock-select
// bits change. Every other address, including the cartridge and echo-RAM
// mirror, follows the same dispatch as Read.
func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("writing cartridge region with no cartridge loaded", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		if oamPageRegion(address) == regionUnused {
			return // unusable range silently discards writes
		}
		m.memory[address] = value
	default:
		switch address {
		case addr.DIV:
			m.memory[addr.DIV] = 0
			m.timer.divAccum = 0
		case addr.LY:
			m.memory[addr.LY] = 0
		case addr.TAC:
			if value&0x03 != m.memory[addr.TAC]&0x03 {
				m.memory[addr.TIMA] = 0
				m.timer.timaAccum = 0
			}
			m.memory[addr.TAC] = value
		default:
			m.memory[address] = value
		}
	}
}
