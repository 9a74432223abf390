package types

import (
	"encoding/binary"
	"fmt"
)

// Fat (universal) container records. Unlike Mach headers, whose byte
// order follows the slice they describe, fat records are written in
// the container's own byte order; the loader only accepts big-endian.

const (
	FatHeaderSize = 2 * 4
	FatArchSize   = 5 * 4
)

// A FatHeader is the fixed header of a fat Mach-O container.
type FatHeader struct {
	Magic Magic
	NArch uint32
}

func (h *FatHeader) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0:], uint32(h.Magic))
	o.PutUint32(b[4:], h.NArch)
	return FatHeaderSize
}

func (h *FatHeader) Get(b []byte, o binary.ByteOrder) {
	h.Magic = Magic(o.Uint32(b[0:]))
	h.NArch = o.Uint32(b[4:])
}

// A FatArch is one architecture descriptor in a fat container's table.
type FatArch struct {
	CPU    CPU
	SubCPU CPUSubtype
	Offset uint32 // file offset of this slice
	Size   uint32 // size of this slice in bytes
	Align  uint32 // alignment exponent: Offset must be a multiple of 1<<Align
}

func (a *FatArch) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0:], uint32(a.CPU))
	o.PutUint32(b[4:], uint32(a.SubCPU))
	o.PutUint32(b[8:], a.Offset)
	o.PutUint32(b[12:], a.Size)
	o.PutUint32(b[16:], a.Align)
	return FatArchSize
}

func (a *FatArch) Get(b []byte, o binary.ByteOrder) {
	a.CPU = CPU(o.Uint32(b[0:]))
	a.SubCPU = CPUSubtype(o.Uint32(b[4:]))
	a.Offset = o.Uint32(b[8:])
	a.Size = o.Uint32(b[12:])
	a.Align = o.Uint32(b[16:])
}

func (a FatArch) String() string {
	return fmt.Sprintf("%s (%s): offset=%#x size=%#x align=2^%d",
		a.CPU, a.SubCPU.String(a.CPU), a.Offset, a.Size, a.Align)
}
