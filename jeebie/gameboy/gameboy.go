// Package gameboy wires the CPU, memory bus and cartridge into the single
// host-facing Core: it owns the tick orchestrator that converts a wall-clock
// Δt into a T-cycle budget, steps the CPU through it, advances the timer and
// RTC, and turns an internal panic into a tagged Fault at the tick boundary.
package gameboy

import (
	"fmt"

	"dmgcore/jeebie/addr"
	"dmgcore/jeebie/cartridge"
	"dmgcore/jeebie/cpu"
	"dmgcore/jeebie/memory"
)

// cpuFrequencyHz is the DMG's T-cycle clock rate.
const cpuFrequencyHz = 4194304.0

// Fault is a tagged runtime error returned by Tick; it carries the PC at the
// point of failure. Boot errors (InvalidCartridge, UnsupportedMBC) are not
// Faults: New returns them as *cartridge.Error values.
type Fault struct {
	Kind    string
	Message string
	PC      uint16
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s at PC=0x%04X: %s", f.Kind, f.PC, f.Message)
}

// Core is the root emulation object: the CPU, the memory bus, and the
// fixed-point cycle budget that ties Tick's Δt argument to T-cycles.
type Core struct {
	cpu *cpu.CPU
	mem *memory.MMU

	cycleAccum float64
}

// New loads romBytes, parses its header, and returns a Core reset to the
// DMG post-boot state. It returns an error (never panics) for any boot-time
// fault: a malformed header, an unsupported MBC, or a ROM image whose
// length doesn't match its declared bank count.
func New(romBytes []byte) (*Core, error) {
	header, err := cartridge.Parse(romBytes)
	if err != nil {
		return nil, err
	}

	wantLen := header.ROMBanks * 0x4000
	if len(romBytes) != wantLen {
		return nil, &cartridge.Error{
			Kind:    "InvalidCartridge",
			Message: fmt.Sprintf("rom image is %d bytes, expected %d for %d declared banks", len(romBytes), wantLen, header.ROMBanks),
		}
	}

	cart, err := memory.NewCartridgeWithData(romBytes)
	if err != nil {
		return nil, err
	}

	mem := memory.NewWithCartridge(cart)
	c := cpu.New(mem)
	if header.HeaderChecksum == 0 {
		c.SetAF(0x0180)
	}

	return &Core{cpu: c, mem: mem}, nil
}

// CartridgeHeader returns the parsed header of the loaded cartridge.
func (c *Core) CartridgeHeader() *cartridge.Header {
	return c.mem.Cartridge().Header()
}

// State returns a snapshot of the CPU register file, for status views.
func (c *Core) State() cpu.State {
	return c.cpu.State()
}

// RaiseInterrupt unconditionally ORs the given interrupt's bit into IF,
// independent of IME; delivery happens at the next Tick boundary.
func (c *Core) RaiseInterrupt(kind addr.Interrupt) {
	c.mem.RequestInterrupt(kind)
}

// Read returns the byte the CPU would see at addr.
func (c *Core) Read(address uint16) byte {
	return c.mem.Read(address)
}

// Write stores value at addr as the CPU would.
func (c *Core) Write(address uint16, value byte) {
	c.mem.Write(address, value)
}

// Tick advances the machine by dt seconds of wall-clock time: it computes a
// T-cycle budget, runs whole instructions until the budget is met or
// exceeded, then advances DIV/TIMA and the cartridge RTC by dt. Tick itself
// does not dispatch interrupts: the CPU services pending ones at the start of
// each Step, so one raised by the timer advance is dispatched at the start of
// the next Tick. A non-nil Fault means the
// slice aborted partway through and no further Tick calls should be made
// without resetting the Core.
func (c *Core) Tick(dt float64) *Fault {
	c.cycleAccum += dt * cpuFrequencyHz
	budget := int(c.cycleAccum)
	c.cycleAccum -= float64(budget)

	if fault := c.runSlice(budget); fault != nil {
		return fault
	}

	c.mem.AdvanceTimer(dt)
	c.mem.AdvanceRTC(dt)

	return nil
}

func (c *Core) runSlice(budget int) (fault *Fault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &Fault{
				Kind:    "UnimplementedOpcode",
				Message: fmt.Sprint(r),
				PC:      c.cpu.PC(),
			}
		}
	}()

	total := 0
	for total < budget {
		total += c.cpu.Step()
	}
	return nil
}
