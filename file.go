// Package machoedit edits Mach-O executable containers in place: it
// parses thin and fat (universal) binaries and mutates their structure
// (architecture slices, load-command tables, trailing code signatures)
// directly in the underlying file, keeping every on-disk offset, size
// and header count consistent after each operation.
package machoedit

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/appsworld/macho-edit/types"
)

const pageAlign = 12 // 4096 = 1 << 12

// A File represents an open Mach-O container and mediates every
// mutation of it. The caller must guarantee exclusive access to the
// underlying path for the File's lifetime.
type File struct {
	// Archs is the ordered architecture slice table. The order is the
	// on-disk table order; a thin container has exactly one entry with
	// a synthesized, in-memory-only descriptor.
	Archs []*Arch

	f        *os.File
	size     uint32
	fat      bool
	fatOrder binary.ByteOrder // byte order of the fat header/descriptor fields
}

// FormatError is returned when the file does not have the correct
// format for a Mach-O container.
type FormatError struct {
	off int64
	msg string
	val any
}

func (e *FormatError) Error() string {
	msg := e.msg
	if e.val != nil {
		msg += fmt.Sprintf(" '%v'", e.val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.off)
	return msg
}

// An Option configures a File during Open.
type Option func(f *File)

// WithFatByteOrder sets the byte order MakeFat uses for a newly written
// fat header and descriptor table. The default is big-endian, which is
// the only order dyld accepts; the option exists for producing test
// vectors in the opposite order.
func WithFatByteOrder(o binary.ByteOrder) Option {
	return func(f *File) {
		f.fatOrder = o
	}
}

// Open opens the named file read-write and parses it as a thin or fat
// Mach-O container. Parsing failure is fatal for the whole open: no
// partially parsed File is ever returned.
func Open(name string, opts ...Option) (*File, error) {
	osf, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	f, err := newFile(osf, opts...)
	if err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

func newFile(osf *os.File, opts ...Option) (*File, error) {
	fi, err := osf.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat: %w", err)
	}
	if fi.Size() > math.MaxUint32 {
		return nil, &FormatError{0, "file size exceeds the 32-bit fat offset ceiling", fi.Size()}
	}

	f := &File{
		f:        osf,
		size:     uint32(fi.Size()),
		fatOrder: binary.BigEndian,
	}
	for _, opt := range opts {
		opt(f)
	}

	var ident [4]byte
	if _, err := osf.ReadAt(ident[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	be := binary.BigEndian.Uint32(ident[:])
	le := binary.LittleEndian.Uint32(ident[:])

	switch {
	case be == types.MagicFat.Int():
		f.fat = true
		f.fatOrder = binary.BigEndian
	case le == types.MagicFat.Int():
		f.fat = true
		f.fatOrder = binary.LittleEndian
	case be&^1 == types.Magic32.Int()&^1 || le&^1 == types.Magic32.Int()&^1:
		f.fat = false
	default:
		return nil, &FormatError{0, "invalid magic number", fmt.Sprintf("%#x", be)}
	}

	if f.fat {
		if err := f.parseFat(); err != nil {
			return nil, err
		}
	} else {
		if err := f.parseThin(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// parseFat reads the fat header and one descriptor per slice, then
// parses each slice.
func (f *File) parseFat() error {
	buf := make([]byte, types.FatHeaderSize)
	if _, err := f.f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("failed to read fat header: %w", err)
	}
	var hdr types.FatHeader
	hdr.Get(buf, f.fatOrder)

	tab := make([]byte, int(hdr.NArch)*types.FatArchSize)
	if _, err := f.f.ReadAt(tab, types.FatHeaderSize); err != nil {
		return fmt.Errorf("failed to read fat arch table: %w", err)
	}
	for i := uint32(0); i < hdr.NArch; i++ {
		var desc types.FatArch
		desc.Get(tab[int(i)*types.FatArchSize:], f.fatOrder)
		arch, err := f.parseArch(desc)
		if err != nil {
			return err
		}
		f.Archs = append(f.Archs, arch)
	}
	return nil
}

// parseThin synthesizes a single descriptor from the Mach header at
// offset 0; the descriptor never exists on disk.
func (f *File) parseThin() error {
	hdr, _, err := f.readMachHeader(0)
	if err != nil {
		return err
	}
	desc := types.FatArch{
		CPU:    hdr.CPU,
		SubCPU: hdr.SubCPU,
		Offset: 0,
		Size:   f.size,
		Align:  hdr.CPU.PageAlign(),
	}
	arch, err := f.parseArch(desc)
	if err != nil {
		return err
	}
	f.Archs = []*Arch{arch}
	return nil
}

// readMachHeader decodes the Mach header at the given absolute offset,
// deriving the slice's byte order from its magic. Magic32 and Magic64
// differ only in the bottom bit.
func (f *File) readMachHeader(off int64) (types.FileHeader, binary.ByteOrder, error) {
	var ident [4]byte
	if _, err := f.f.ReadAt(ident[:], off); err != nil {
		return types.FileHeader{}, nil, fmt.Errorf("failed to read mach header magic: %w", err)
	}
	be := binary.BigEndian.Uint32(ident[:])
	le := binary.LittleEndian.Uint32(ident[:])

	var order binary.ByteOrder
	var magic types.Magic
	switch types.Magic32.Int() &^ 1 {
	case be &^ 1:
		order = binary.BigEndian
		magic = types.Magic(be)
	case le &^ 1:
		order = binary.LittleEndian
		magic = types.Magic(le)
	default:
		return types.FileHeader{}, nil, &FormatError{off, "invalid mach header magic number", fmt.Sprintf("%#x", be)}
	}

	var hdr types.FileHeader
	hdr.Magic = magic
	buf := make([]byte, hdr.Size())
	if _, err := f.f.ReadAt(buf, off); err != nil {
		return types.FileHeader{}, nil, fmt.Errorf("failed to read mach header: %w", err)
	}
	hdr.Get(buf, order)
	return hdr, order, nil
}

// parseArch reads the slice's Mach header and its load-command table.
func (f *File) parseArch(desc types.FatArch) (*Arch, error) {
	if uint64(desc.Offset)+uint64(desc.Size) > uint64(f.size) {
		return nil, &FormatError{int64(desc.Offset), "arch slice extends past end of file", desc.Size}
	}
	hdr, order, err := f.readMachHeader(int64(desc.Offset))
	if err != nil {
		return nil, err
	}
	if hdr.SizeCommands > desc.Size {
		return nil, &FormatError{int64(desc.Offset), "load command table larger than slice", hdr.SizeCommands}
	}

	arch := &Arch{
		Desc:  desc,
		Hdr:   hdr,
		Order: order,
	}

	offset := int64(desc.Offset) + int64(hdr.Size())
	dat := make([]byte, hdr.SizeCommands)
	if _, err := f.f.ReadAt(dat, offset); err != nil {
		return nil, fmt.Errorf("failed to read load commands: %w", err)
	}
	arch.Loads = make([]*LoadCommand, hdr.NCommands)
	for i := range arch.Loads {
		// Each load command begins with uint32 command and length.
		if len(dat) < 8 {
			return nil, &FormatError{offset, "command block too small", nil}
		}
		cmd, siz := types.LoadCmd(order.Uint32(dat[0:4])), order.Uint32(dat[4:8])
		if siz < 8 || siz > uint32(len(dat)) {
			return nil, &FormatError{offset, "invalid command block size", siz}
		}
		arch.Loads[i] = &LoadCommand{
			Cmd:    cmd,
			Siz:    siz,
			Raw:    dat[0:siz:siz],
			Offset: offset,
		}
		dat = dat[siz:]
		offset += int64(siz)
	}
	return arch, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// IsFat reports whether the container has a fat header and descriptor
// table on disk.
func (f *File) IsFat() bool { return f.fat }

// FileSize returns the container's current total length in bytes.
func (f *File) FileSize() uint32 { return f.size }

func (f *File) String() string {
	var s string
	if f.fat {
		s = fmt.Sprintf("Fat mach-o binary with %d archs:\n", len(f.Archs))
	} else {
		s = "Thin mach-o binary:\n"
	}
	for _, arch := range f.Archs {
		s += "\t" + arch.String() + "\n"
	}
	return s
}

/*
 * Header/table persistence. writeFatArchs is the single point where
 * "table says X bytes, file is X bytes" is enforced; every operation
 * that changes a slice's offset or size ends with it.
 */

// writeFatHeader rewrites the fat header at offset 0. No-op for thin
// containers.
func (f *File) writeFatHeader() error {
	if !f.fat {
		return nil
	}
	hdr := types.FatHeader{Magic: types.MagicFat, NArch: uint32(len(f.Archs))}
	buf := make([]byte, types.FatHeaderSize)
	hdr.Put(buf, f.fatOrder)
	if _, err := f.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("failed to write fat header: %w", err)
	}
	return nil
}

// writeFatArchs rewrites the descriptor table and truncates or extends
// the file so its length matches the table. For a thin container it
// only reconciles the file length with the single slice's size.
func (f *File) writeFatArchs() error {
	if !f.fat {
		archSize := f.Archs[0].Desc.Size
		if f.size != archSize {
			if err := f.f.Truncate(int64(archSize)); err != nil {
				return fmt.Errorf("failed to truncate to %#x: %w", archSize, err)
			}
			f.size = archSize
		}
		return nil
	}

	buf := make([]byte, len(f.Archs)*types.FatArchSize)
	for i, arch := range f.Archs {
		arch.Desc.Put(buf[i*types.FatArchSize:], f.fatOrder)
	}
	if _, err := f.f.WriteAt(buf, types.FatHeaderSize); err != nil {
		return fmt.Errorf("failed to write fat arch table: %w", err)
	}

	if len(f.Archs) > 0 {
		last := f.Archs[len(f.Archs)-1].Desc
		newSize := last.Offset + last.Size
		if newSize != f.size {
			if err := f.f.Truncate(int64(newSize)); err != nil {
				return fmt.Errorf("failed to truncate to %#x: %w", newSize, err)
			}
			f.size = newSize
		}
	}
	return nil
}

// writeMachHeader rewrites the slice's Mach header at the slice's
// current offset.
func (f *File) writeMachHeader(arch *Arch) error {
	buf := make([]byte, arch.Hdr.Size())
	arch.Hdr.Put(buf, arch.Order)
	if _, err := f.f.WriteAt(buf, int64(arch.Desc.Offset)); err != nil {
		return fmt.Errorf("failed to write mach header: %w", err)
	}
	return nil
}

// writeLoadCommand rewrites one load command's raw record at its
// current file offset.
func (f *File) writeLoadCommand(lc *LoadCommand) error {
	if _, err := f.f.WriteAt(lc.Raw, lc.Offset); err != nil {
		return fmt.Errorf("failed to write load command at %#x: %w", lc.Offset, err)
	}
	return nil
}

// arch returns the i'th slice; an out-of-range index is a caller bug.
func (f *File) arch(i int) *Arch {
	if i < 0 || i >= len(f.Archs) {
		panic(fmt.Sprintf("macho-edit: arch index %d out of range [0:%d]", i, len(f.Archs)))
	}
	return f.Archs[i]
}
