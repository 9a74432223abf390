package machoedit

import (
	"fmt"
	"math"
	"os"

	"github.com/appsworld/macho-edit/internal/fio"
	"github.com/appsworld/macho-edit/types"
)

// MakeFat converts a thin container into a fat container with a single
// slice: room for the fat header and descriptor table is reserved at
// the front of the file (rounded up to the slice's alignment), the
// whole image is moved forward by that amount and the gap zeroed.
// Calling MakeFat on a container that is already fat is a caller bug.
func (f *File) MakeFat() error {
	if f.fat {
		panic("macho-edit: MakeFat called on a fat container")
	}

	arch := f.Archs[0]
	offset := uint32(fio.RoundUp(types.FatHeaderSize, 1<<arch.Desc.Align))

	if err := f.f.Truncate(int64(f.size) + int64(offset)); err != nil {
		return fmt.Errorf("failed to extend file: %w", err)
	}
	if err := fio.Move(f.f, int64(offset), 0, int64(f.size)); err != nil {
		return err
	}
	if err := fio.Zero(f.f, 0, int64(offset)); err != nil {
		return err
	}

	// The header goes out in fatOrder, big-endian unless overridden:
	// dyld rejects a fat header written in little-endian order.
	f.fat = true
	arch.Desc.Offset = offset
	for _, lc := range arch.Loads {
		lc.Offset += int64(offset)
	}

	if err := f.writeFatHeader(); err != nil {
		return err
	}
	return f.writeFatArchs()
}

// MakeThin converts a fat container into a thin one by keeping only
// the chosen slice: its bytes move to offset 0 and the file is
// truncated to its size. Calling MakeThin on a thin container is a
// caller bug.
//
// After MakeThin the retained slice's descriptor and load-command
// offsets still describe the slice's old position; they are valid for
// size bookkeeping only. Close and reopen the file before performing
// further edits.
func (f *File) MakeThin(archIndex int) error {
	if !f.fat {
		panic("macho-edit: MakeThin called on a thin container")
	}

	arch := f.arch(archIndex)
	f.Archs = []*Arch{arch}

	size := arch.Desc.Size
	if err := fio.Move(f.f, 0, int64(arch.Desc.Offset), int64(size)); err != nil {
		return err
	}
	if err := f.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to truncate to %#x: %w", size, err)
	}
	f.size = size
	f.fat = false
	return nil
}

// SaveArch copies the chosen slice's exact byte range into a new file
// at path and makes it executable for the owner. The source container
// is never mutated.
func (f *File) SaveArch(archIndex int, path string) error {
	arch := f.arch(archIndex)

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fio.Copy(out, 0, f.f, int64(arch.Desc.Offset), int64(arch.Desc.Size)); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}

// RemoveArch removes the chosen slice and compacts the remaining
// slices in place: each subsequent slice's offset is recomputed by
// walking forward from the end of its new predecessor (or from the end
// of the fat header when slice 0 is removed), re-aligned to the
// slice's own alignment, and its bytes moved toward lower offsets. The
// file is truncated to the new total length.
func (f *File) RemoveArch(archIndex int) error {
	if !f.fat {
		panic("macho-edit: RemoveArch called on a thin container")
	}

	arch := f.arch(archIndex)
	if err := fio.Zero(f.f, int64(arch.Desc.Offset), int64(arch.Desc.Size)); err != nil {
		return err
	}

	var newOffset uint32
	if archIndex == 0 {
		newOffset = types.FatHeaderSize
	} else {
		prev := f.Archs[archIndex-1].Desc
		newOffset = prev.Offset + prev.Size
	}

	f.Archs = append(f.Archs[:archIndex], f.Archs[archIndex+1:]...)

	for _, a := range f.Archs[archIndex:] {
		oldOffset := a.Desc.Offset
		size := a.Desc.Size

		newOffset = uint32(fio.RoundUp(uint64(newOffset), 1<<a.Desc.Align))
		a.Desc.Offset = newOffset
		for _, lc := range a.Loads {
			lc.Offset -= int64(oldOffset) - int64(newOffset)
		}

		if err := fio.Move(f.f, int64(newOffset), int64(oldOffset), int64(size)); err != nil {
			return err
		}
		if err := fio.Zero(f.f, int64(newOffset)+int64(size), int64(oldOffset)-int64(newOffset)); err != nil {
			return err
		}

		newOffset += size
	}

	if err := f.writeFatHeader(); err != nil {
		return err
	}
	if err := f.writeFatArchs(); err != nil {
		return err
	}

	if f.size != newOffset {
		if err := f.f.Truncate(int64(newOffset)); err != nil {
			return fmt.Errorf("failed to truncate to %#x: %w", newOffset, err)
		}
		f.size = newOffset
	}
	return nil
}

// InsertArchFromFile appends one slice from a different open container
// to the end of this container's slice order: the new offset is the
// current end of file rounded up to the slice's alignment, the gap is
// zero-padded and the payload bytes copied across. Load-command tables
// are not merged between architectures; the source container is not
// mutated.
func (f *File) InsertArchFromFile(src *File, archIndex int) error {
	if !f.fat {
		panic("macho-edit: InsertArchFromFile called on a thin container")
	}

	srcArch := src.arch(archIndex)
	desc := srcArch.Desc

	offset := fio.RoundUp(uint64(f.size), 1<<desc.Align)
	if offset+uint64(desc.Size) > math.MaxUint32 {
		return &FormatError{int64(f.size), "fat container would exceed the 32-bit offset ceiling", desc.Size}
	}
	gap := int64(offset) - int64(f.size)

	if err := f.f.Truncate(int64(offset) + int64(desc.Size)); err != nil {
		return fmt.Errorf("failed to extend file: %w", err)
	}
	if err := fio.Zero(f.f, int64(f.size), gap); err != nil {
		return err
	}
	if err := fio.Copy(f.f, int64(offset), src.f, int64(srcArch.Desc.Offset), int64(desc.Size)); err != nil {
		return err
	}

	delta := int64(offset) - int64(srcArch.Desc.Offset)
	desc.Offset = uint32(offset)
	arch := &Arch{
		Desc:  desc,
		Hdr:   srcArch.Hdr,
		Order: srcArch.Order,
		Loads: make([]*LoadCommand, len(srcArch.Loads)),
	}
	for i, lc := range srcArch.Loads {
		arch.Loads[i] = &LoadCommand{
			Cmd:    lc.Cmd,
			Siz:    lc.Siz,
			Raw:    append([]byte(nil), lc.Raw...),
			Offset: lc.Offset + delta,
		}
	}
	f.Archs = append(f.Archs, arch)

	if err := f.writeFatHeader(); err != nil {
		return err
	}
	return f.writeFatArchs()
}
