package machoedit

import (
	"fmt"

	"github.com/appsworld/macho-edit/internal/fio"
	"github.com/appsworld/macho-edit/types"
)

// RemoveCodeSignature strips the slice's trailing code signature: the
// signature load command is removed, the slice's recorded size and the
// final segment's file/mapped sizes are shrunk by the signature's
// length (plus up to 16 bytes of string-table alignment padding when a
// symbol table is present). It reports whether a signature was
// removed; a missing signature, or one that does not sit exactly at
// the end of the slice, is a negative result, not an error, and leaves
// the file untouched.
//
// The excluded signature bytes are not zeroed beyond what load-command
// removal zeroes; they stay allocated in the file until a later
// compaction reclaims them.
func (f *File) RemoveCodeSignature(archIndex int) (bool, error) {
	arch := f.arch(archIndex)

	var codesig, seg, symtab *LoadCommand
	codesigIndex := -1

	for i, lc := range arch.Loads {
		switch {
		case lc.Cmd == types.LC_CODE_SIGNATURE:
			codesig = lc
			codesigIndex = i
		case lc.Cmd.IsSegment():
			// Last segment command wins: __LINKEDIT is conventionally
			// the final segment, and it is the one whose tail the
			// signature occupies.
			seg = lc
		case lc.Cmd == types.LC_SYMTAB:
			symtab = lc
		}
	}

	if codesig == nil || seg == nil {
		return false, nil
	}

	cs, err := types.ReadLinkEditDataCmd(codesig.Raw, arch.Order)
	if err != nil {
		return false, fmt.Errorf("failed to read LC_CODE_SIGNATURE: %w", err)
	}
	// A signature that is not trailing cannot be truncated away.
	if uint64(cs.Offset)+uint64(cs.Size) != uint64(arch.Desc.Size) {
		return false, nil
	}

	fileoff, filesz, err := seg.fileRange(arch.Order)
	if err != nil {
		return false, err
	}
	if fileoff+filesz != uint64(arch.Desc.Size) {
		return false, nil
	}

	sizeReduction := uint64(cs.Size)
	if symtab != nil {
		st, err := types.ReadSymtabCmd(symtab.Raw, arch.Order)
		if err != nil {
			return false, fmt.Errorf("failed to read LC_SYMTAB: %w", err)
		}
		// Up to 16 bytes between the end of the string table and the
		// start of the signature is alignment padding; fold it in.
		diff := int64(arch.Desc.Size) - int64(sizeReduction) - int64(uint64(st.Stroff)+uint64(st.Strsize))
		if 0 <= diff && diff <= 0x10 {
			sizeReduction += uint64(diff)
		}
	}

	arch.Desc.Size -= uint32(sizeReduction)
	filesz -= sizeReduction
	vmsize := fio.RoundUp(filesz, 1<<pageAlign)
	seg.setFileSize(arch.Order, filesz, vmsize)

	if err := f.writeFatArchs(); err != nil {
		return false, err
	}
	if err := f.writeLoadCommand(seg); err != nil {
		return false, err
	}
	if err := f.RemoveLoadCommand(archIndex, codesigIndex); err != nil {
		return false, err
	}
	return true, nil
}
