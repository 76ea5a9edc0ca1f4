package ivt

import (
	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

// HandlerChain is the {tracer entry -> previous handler} link for one slot.
// Its owner installs it before issuing traced calls and restores it after
// the last one returns; the value carries the saved previous handler, so
// nothing about the chain lives in package state.
//
// Install and Restore must be bracketed. Installing the same chain twice
// would save the tracer's own entry as "previous" and make the gate loop
// forever, so the second Install is refused. Restoring a chain that was
// never installed would write a garbage vector, so that is refused too.
// Two different chains on one slot nest like any other pair of handlers,
// provided they are restored in reverse order.
type HandlerChain struct {
	vectors   Vectors
	slot      uint8
	entry     rm.FarPtr
	prev      rm.FarPtr
	installed bool
	log       common.Logger
}

// NewChain prepares a chain that will put entry into slot.
func NewChain(vectors Vectors, slot uint8, entry rm.FarPtr, log common.Logger) *HandlerChain {
	return &HandlerChain{
		vectors: vectors,
		slot:    slot,
		entry:   entry,
		log:     common.OrNoOp(log),
	}
}

// Install saves the handler currently at the slot and replaces it with the
// chain's entry.
func (c *HandlerChain) Install() {
	if c.installed {
		c.log.Logf(common.SeverityWarning, "int %02xh: chain already installed, previous handler %s kept", c.slot, c.prev)
		return
	}
	c.prev = c.vectors.Get(c.slot)
	c.vectors.Set(c.slot, c.entry)
	c.installed = true
	c.log.Logf(common.SeverityDebug, "int %02xh: installed %s, previous %s", c.slot, c.entry, c.prev)
}

// Restore writes the saved handler back into the slot.
func (c *HandlerChain) Restore() {
	if !c.installed {
		c.log.Logf(common.SeverityWarning, "int %02xh: restore without install ignored", c.slot)
		return
	}
	if cur := c.vectors.Get(c.slot); cur != c.entry {
		// someone hooked the slot after us; DOS would still blindly write
		// the saved vector and so do we, unhooking them as well
		c.log.Logf(common.SeverityWarning, "int %02xh: slot holds %s, not our entry %s; restoring %s anyway",
			c.slot, cur, c.entry, c.prev)
	}
	c.vectors.Set(c.slot, c.prev)
	c.installed = false
	c.log.Logf(common.SeverityDebug, "int %02xh: restored %s", c.slot, c.prev)
}

// Previous is the handler calls are chained to. It is only meaningful while
// the chain is installed.
func (c *HandlerChain) Previous() rm.FarPtr { return c.prev }

// Entry is the tracer entry point this chain installs.
func (c *HandlerChain) Entry() rm.FarPtr { return c.entry }

// Slot is the vector number the chain owns.
func (c *HandlerChain) Slot() uint8 { return c.slot }

// Installed reports whether Install has run without a matching Restore.
func (c *HandlerChain) Installed() bool { return c.installed }
