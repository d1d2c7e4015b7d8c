package asm

const (
	opIf        byte = 0x04
	opEnd       byte = 0x0B
	opReturn    byte = 0x0F
	opCall      byte = 0x10
	opDrop      byte = 0x1A
	opLocalGet  byte = 0x20
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24
	opI32Const  byte = 0x41
	opI32Eqz    byte = 0x45
	opI32Add    byte = 0x6A

	blockEmpty byte = 0x40
)

// Code builds a function body. Each method appends one instruction and
// returns the receiver so bodies read top to bottom.
type Code struct {
	w Writer
}

// NewCode starts an empty function body.
func NewCode() *Code { return &Code{} }

func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(opI32Const)
	c.w.WriteS32(v)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code {
	c.w.Byte(opLocalGet)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) GlobalGet(idx uint32) *Code {
	c.w.Byte(opGlobalGet)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) GlobalSet(idx uint32) *Code {
	c.w.Byte(opGlobalSet)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) Call(fn uint32) *Code {
	c.w.Byte(opCall)
	c.w.WriteU32(fn)
	return c
}

func (c *Code) I32Eqz() *Code {
	c.w.Byte(opI32Eqz)
	return c
}

func (c *Code) I32Add() *Code {
	c.w.Byte(opI32Add)
	return c
}

func (c *Code) Drop() *Code {
	c.w.Byte(opDrop)
	return c
}

func (c *Code) Return() *Code {
	c.w.Byte(opReturn)
	return c
}

// If opens a block with no result, taken when the i32 on the stack is non-zero.
func (c *Code) If() *Code {
	c.w.Byte(opIf)
	c.w.Byte(blockEmpty)
	return c
}

// End closes the innermost block, or the function body.
func (c *Code) End() *Code {
	c.w.Byte(opEnd)
	return c
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte { return c.w.Bytes() }
