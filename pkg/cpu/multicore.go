package cpu

import (
	"github.com/sirupsen/logrus"

	"gocpu8/pkg/isa"
)

// Multi-core and multi-CPU control. The target index is always register A
// and INIT takes the new PC from C (low) and D (high). A unit that starts or
// halts itself keeps its PC; every other outcome advances by one byte.

var coreOps = map[isa.Kind]handler{
	isa.KindCoreID: func(c *Core, pc uint16) (uint16, error) {
		c.A = byte(c.index)
		return pc + 1, nil
	},
	isa.KindCoreCount: func(c *Core, pc uint16) (uint16, error) {
		c.A = byte(len(c.cpu.cores))
		return pc + 1, nil
	},
	isa.KindCoreStatus: func(c *Core, pc uint16) (uint16, error) {
		if t := c.targetCore(); t != nil {
			c.A = status(t.halted)
		}
		return pc + 1, nil
	},
	isa.KindCoreStart: func(c *Core, pc uint16) (uint16, error) {
		t := c.targetCore()
		if t == nil {
			return pc + 1, nil
		}
		t.halted = false
		if t == c {
			return pc, nil
		}
		return pc + 1, nil
	},
	isa.KindCoreHalt: func(c *Core, pc uint16) (uint16, error) {
		t := c.targetCore()
		if t == nil {
			return pc + 1, nil
		}
		t.halted = true
		if t == c {
			return pc, nil
		}
		return pc + 1, nil
	},
	isa.KindCoreInit: func(c *Core, pc uint16) (uint16, error) {
		t := c.targetCore()
		if t == nil {
			return pc + 1, nil
		}
		if !t.halted {
			c.log.WithField("target", t.index).Warn("CORE_INIT on a running core ignored")
			return pc + 1, nil
		}
		t.PC = c.CD()
		return pc + 1, nil
	},
}

var cpuOps = map[isa.Kind]handler{
	isa.KindCPUID: func(c *Core, pc uint16) (uint16, error) {
		c.A = byte(c.cpu.index)
		return pc + 1, nil
	},
	isa.KindCPUCount: func(c *Core, pc uint16) (uint16, error) {
		c.A = byte(c.cpu.peerCount())
		return pc + 1, nil
	},
	isa.KindCPUStatus: func(c *Core, pc uint16) (uint16, error) {
		if t := c.targetCPU(); t != nil {
			c.A = status(t.halted)
		}
		return pc + 1, nil
	},
	isa.KindCPUStart: func(c *Core, pc uint16) (uint16, error) {
		t := c.targetCPU()
		if t == nil {
			return pc + 1, nil
		}
		t.halted = false
		if t == c.cpu {
			return pc, nil
		}
		return pc + 1, nil
	},
	isa.KindCPUHalt: func(c *Core, pc uint16) (uint16, error) {
		t := c.targetCPU()
		if t == nil {
			return pc + 1, nil
		}
		t.halted = true
		if t == c.cpu {
			return pc, nil
		}
		return pc + 1, nil
	},
	isa.KindCPUInit: func(c *Core, pc uint16) (uint16, error) {
		t := c.targetCPU()
		if t == nil {
			return pc + 1, nil
		}
		if !t.SetPC(c.CD()) {
			c.log.WithField("target", t.index).Warn("CPU_INIT on a running CPU ignored")
		}
		return pc + 1, nil
	},
}

func status(halted bool) byte {
	if halted {
		return 1
	}
	return 0
}

// targetCore resolves register A to a sibling core, logging a warning and
// returning nil when it is out of range.
func (c *Core) targetCore() *Core {
	t := c.cpu.Core(int(c.A))
	if t == nil {
		c.log.WithFields(logrus.Fields{
			"target": c.A,
			"cores":  len(c.cpu.cores),
		}).Warn("core target out of range")
	}
	return t
}

// targetCPU resolves register A to a CPU on the same board.
func (c *Core) targetCPU() *CPU {
	t := c.cpu.peer(int(c.A))
	if t == nil {
		c.log.WithFields(logrus.Fields{
			"target": c.A,
			"cpus":   c.cpu.peerCount(),
		}).Warn("CPU target out of range")
	}
	return t
}

// peer returns the CPU with the given index. Without a board a CPU can only
// see itself.
func (c *CPU) peer(index int) *CPU {
	if c.board != nil {
		return c.board.CPU(index)
	}
	if index == c.index {
		return c
	}
	return nil
}

func (c *CPU) peerCount() int {
	if c.board != nil {
		return c.board.CPUCount()
	}
	return 1
}
