package machoedit

import (
	"fmt"

	"github.com/appsworld/macho-edit/internal/fio"
	"github.com/appsworld/macho-edit/types"
)

// InsertLoadCommand appends a raw load-command record to the slice's
// table: the record is written immediately after the current last
// command (or immediately after the Mach header when the table is
// empty) and the header counts updated and persisted. The record must
// be encoded in the slice's own byte order.
//
// The append is not checked against the slice's payload: callers must
// ensure the slice has header room left, or shift the payload first.
func (f *File) InsertLoadCommand(archIndex int, raw []byte) error {
	arch := f.arch(archIndex)

	if len(raw) < 8 {
		return &FormatError{0, "command block too small", nil}
	}
	cmd := types.LoadCmd(arch.Order.Uint32(raw[0:4]))
	siz := arch.Order.Uint32(raw[4:8])
	if siz < 8 || int(siz) != len(raw) {
		return &FormatError{0, "invalid command block size", siz}
	}

	var offset int64
	if len(arch.Loads) == 0 {
		offset = int64(arch.Desc.Offset) + int64(arch.Hdr.Size())
	} else {
		last := arch.Loads[len(arch.Loads)-1]
		offset = last.Offset + int64(last.Siz)
	}

	if _, err := f.f.WriteAt(raw, offset); err != nil {
		return fmt.Errorf("failed to write load command at %#x: %w", offset, err)
	}

	arch.Loads = append(arch.Loads, &LoadCommand{
		Cmd:    cmd,
		Siz:    siz,
		Raw:    append([]byte(nil), raw...),
		Offset: offset,
	})
	arch.Hdr.NCommands++
	arch.Hdr.SizeCommands += siz

	return f.writeMachHeader(arch)
}

// MoveLoadCommand reorders the slice's load-command table by rotating
// the records between the two positions: the record at the lower index
// moves to the higher one and the records between them shift one slot
// toward the front, each rewritten at its new file offset. The two
// indices are interchangeable. A no-op when from == to.
func (f *File) MoveLoadCommand(archIndex, from, to int) error {
	arch := f.arch(archIndex)
	if from < 0 || from >= len(arch.Loads) || to < 0 || to >= len(arch.Loads) {
		panic(fmt.Sprintf("macho-edit: load command index out of range [0:%d]", len(arch.Loads)))
	}
	if from == to {
		return nil
	}
	if from > to {
		return f.MoveLoadCommand(archIndex, to, from)
	}

	moved := arch.Loads[from]
	newOffset := moved.Offset

	for i := from + 1; i <= to; i++ {
		lc := arch.Loads[i]
		lc.Offset = newOffset
		if err := f.writeLoadCommand(lc); err != nil {
			return err
		}
		newOffset += int64(lc.Siz)
	}

	moved.Offset = newOffset
	if err := f.writeLoadCommand(moved); err != nil {
		return err
	}

	copy(arch.Loads[from:to], arch.Loads[from+1:to+1])
	arch.Loads[to] = moved
	return nil
}

// RemoveLoadCommand removes one load command: the target is first
// moved to the last table position so removal is always a pop from the
// end on disk, then its bytes are zeroed and the header counts updated
// and persisted.
func (f *File) RemoveLoadCommand(archIndex, index int) error {
	arch := f.arch(archIndex)
	if index < 0 || index >= len(arch.Loads) {
		panic(fmt.Sprintf("macho-edit: load command index %d out of range [0:%d]", index, len(arch.Loads)))
	}

	if len(arch.Loads) > 1 {
		if err := f.MoveLoadCommand(archIndex, index, len(arch.Loads)-1); err != nil {
			return err
		}
	}

	lc := arch.Loads[len(arch.Loads)-1]
	arch.Hdr.NCommands--
	arch.Hdr.SizeCommands -= lc.Siz

	if err := f.writeMachHeader(arch); err != nil {
		return err
	}
	if err := fio.Zero(f.f, lc.Offset, int64(lc.Siz)); err != nil {
		return err
	}

	arch.Loads = arch.Loads[:len(arch.Loads)-1]
	return nil
}

// ChangeFileType sets the slice's Mach header file type and persists
// the header. The new value is not validated against the command
// table.
func (f *File) ChangeFileType(archIndex int, fileType types.HeaderFileType) error {
	arch := f.arch(archIndex)
	arch.Hdr.Type = fileType
	return f.writeMachHeader(arch)
}
