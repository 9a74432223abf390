package machoedit

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/macho-edit/internal/fio"
	"github.com/appsworld/macho-edit/types"
)

// An Arch is one architecture's executable image inside a container:
// its descriptor, its Mach header and its ordered load-command table.
// An Arch exists only as a child of exactly one File.
type Arch struct {
	// Desc locates the slice in the container. All fields are held in
	// native order regardless of the container's fat byte order; for a
	// thin container the descriptor is synthesized and never written.
	Desc types.FatArch

	// Hdr is the slice's Mach header, decoded from the slice's own
	// byte order, which may differ from the fat byte order.
	Hdr types.FileHeader

	// Order is the byte order of the slice's header and load commands.
	Order binary.ByteOrder

	// Loads is the load-command table in on-disk order, contiguous
	// from the end of the Mach header.
	Loads []*LoadCommand
}

func (a *Arch) String() string {
	return fmt.Sprintf("%s, %s, %d load commands", a.Desc, a.Hdr.Type, len(a.Loads))
}

// A LoadCommand is one variable-length loader directive record at a
// known absolute offset in the container's file. Raw holds the full
// record byte-for-byte as it exists on disk; typed reads and writes go
// through decode/encode helpers in the types package, so writing Raw
// back is always sufficient to persist the record.
type LoadCommand struct {
	Cmd    types.LoadCmd
	Siz    uint32
	Raw    []byte
	Offset int64
}

func (lc *LoadCommand) String() string {
	return fmt.Sprintf("%s (%d bytes at %#x)", lc.Cmd, lc.Siz, lc.Offset)
}

// fileRange decodes a segment record's file offset and file size,
// picking the 32- or 64-bit layout from the command tag.
func (lc *LoadCommand) fileRange(o binary.ByteOrder) (fileoff, filesz uint64, err error) {
	switch lc.Cmd {
	case types.LC_SEGMENT:
		seg, err := types.ReadSegment32(lc.Raw, o)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read LC_SEGMENT: %w", err)
		}
		return uint64(seg.Offset), uint64(seg.Filesz), nil
	case types.LC_SEGMENT_64:
		seg, err := types.ReadSegment64(lc.Raw, o)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read LC_SEGMENT_64: %w", err)
		}
		return seg.Offset, seg.Filesz, nil
	}
	return 0, 0, fmt.Errorf("%s is not a segment command", lc.Cmd)
}

// setFileSize re-encodes a segment record's file size and mapped size
// in place within Raw.
func (lc *LoadCommand) setFileSize(o binary.ByteOrder, filesz, vmsize uint64) {
	switch lc.Cmd {
	case types.LC_SEGMENT:
		seg := types.Segment32{Memsz: uint32(vmsize), Filesz: uint32(filesz)}
		seg.PutFileRange(lc.Raw, o)
	case types.LC_SEGMENT_64:
		seg := types.Segment64{Memsz: vmsize, Filesz: filesz}
		seg.PutFileRange(lc.Raw, o)
	}
}

/*
 * Raw record builders for the insert operation. Layout and padding
 * follow what ld64 emits: the path string is NUL padded out to the
 * slice's pointer-width alignment.
 */

// NewRPathCommand builds a raw LC_RPATH record carrying path, encoded
// with byte order o and padded to the load-command alignment align.
func NewRPathCommand(path string, o binary.ByteOrder, align uint32) []byte {
	const fixed = 12 // cmd, cmdsize, path offset
	size := fio.RoundUp(uint64(fixed+len(path)+1), uint64(align))
	buf := make([]byte, size)
	o.PutUint32(buf[0:], uint32(types.LC_RPATH))
	o.PutUint32(buf[4:], uint32(size))
	o.PutUint32(buf[8:], fixed)
	copy(buf[fixed:], path)
	return buf
}

// NewLoadDylibCommand builds a raw LC_LOAD_DYLIB (or, when weak is
// set, LC_LOAD_WEAK_DYLIB) record carrying path.
func NewLoadDylibCommand(path string, weak bool, o binary.ByteOrder, align uint32) []byte {
	const fixed = 24 // cmd, cmdsize, name offset, timestamp, two versions
	cmd := types.LC_LOAD_DYLIB
	if weak {
		cmd = types.LC_LOAD_WEAK_DYLIB
	}
	size := fio.RoundUp(uint64(fixed+len(path)+1), uint64(align))
	buf := make([]byte, size)
	o.PutUint32(buf[0:], uint32(cmd))
	o.PutUint32(buf[4:], uint32(size))
	o.PutUint32(buf[8:], fixed)
	copy(buf[fixed:], path)
	return buf
}
