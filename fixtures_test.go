package machoedit

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/appsworld/macho-edit/internal/fio"
	"github.com/appsworld/macho-edit/types"
)

// Builders for synthetic container images. The images are minimal but
// structurally valid: a Mach header, a contiguous load-command table
// and an opaque payload.

type thinImage struct {
	magic   types.Magic
	order   binary.ByteOrder
	cpu     types.CPU
	sub     types.CPUSubtype
	typ     types.HeaderFileType
	cmds    [][]byte
	pad     int // zero bytes between command table and payload
	payload []byte
}

func (ti thinImage) bytes() []byte {
	hdr := types.FileHeader{
		Magic: ti.magic,
		CPU:   ti.cpu,
		Type:  ti.typ,
		Flags: types.NoUndefs,
	}
	hdr.SubCPU = ti.sub
	for _, c := range ti.cmds {
		hdr.NCommands++
		hdr.SizeCommands += uint32(len(c))
	}

	buf := make([]byte, hdr.Size())
	hdr.Put(buf, ti.order)
	for _, c := range ti.cmds {
		buf = append(buf, c...)
	}
	buf = append(buf, make([]byte, ti.pad)...)
	return append(buf, ti.payload...)
}

type fatSlice struct {
	data  []byte
	cpu   types.CPU
	sub   types.CPUSubtype
	align uint32
}

type fatImage struct {
	order  binary.ByteOrder
	slices []fatSlice
}

func (fi fatImage) bytes() []byte {
	order := fi.order
	if order == nil {
		order = binary.BigEndian
	}

	descs := make([]types.FatArch, len(fi.slices))
	end := uint64(types.FatHeaderSize + len(fi.slices)*types.FatArchSize)
	for i, s := range fi.slices {
		off := fio.RoundUp(end, 1<<s.align)
		descs[i] = types.FatArch{
			CPU:    s.cpu,
			SubCPU: s.sub,
			Offset: uint32(off),
			Size:   uint32(len(s.data)),
			Align:  s.align,
		}
		end = off + uint64(len(s.data))
	}

	buf := make([]byte, end)
	hdr := types.FatHeader{Magic: types.MagicFat, NArch: uint32(len(fi.slices))}
	hdr.Put(buf, order)
	for i, d := range descs {
		d.Put(buf[types.FatHeaderSize+i*types.FatArchSize:], order)
	}
	for i, s := range fi.slices {
		copy(buf[descs[i].Offset:], s.data)
	}
	return buf
}

// rpathCmds returns n distinguishable fixed-size load commands; the
// record size is 16 bytes for paths up to three characters.
func rpathCmds(o binary.ByteOrder, paths ...string) [][]byte {
	cmds := make([][]byte, len(paths))
	for i, p := range paths {
		cmds[i] = NewRPathCommand(p, o, 8)
	}
	return cmds
}

func seg64Cmd(o binary.ByteOrder, name string, addr, vmsize, fileoff, filesz uint64) []byte {
	buf := make([]byte, 72)
	o.PutUint32(buf[0:], uint32(types.LC_SEGMENT_64))
	o.PutUint32(buf[4:], 72)
	copy(buf[8:24], name)
	o.PutUint64(buf[24:], addr)
	o.PutUint64(buf[32:], vmsize)
	o.PutUint64(buf[40:], fileoff)
	o.PutUint64(buf[48:], filesz)
	o.PutUint32(buf[56:], 7) // maxprot
	o.PutUint32(buf[60:], 1) // initprot
	return buf
}

func seg32Cmd(o binary.ByteOrder, name string, addr, vmsize, fileoff, filesz uint32) []byte {
	buf := make([]byte, 56)
	o.PutUint32(buf[0:], uint32(types.LC_SEGMENT))
	o.PutUint32(buf[4:], 56)
	copy(buf[8:24], name)
	o.PutUint32(buf[24:], addr)
	o.PutUint32(buf[28:], vmsize)
	o.PutUint32(buf[32:], fileoff)
	o.PutUint32(buf[36:], filesz)
	o.PutUint32(buf[40:], 7)
	o.PutUint32(buf[44:], 1)
	return buf
}

func symtabCmd(o binary.ByteOrder, symoff, nsyms, stroff, strsize uint32) []byte {
	buf := make([]byte, 24)
	o.PutUint32(buf[0:], uint32(types.LC_SYMTAB))
	o.PutUint32(buf[4:], 24)
	o.PutUint32(buf[8:], symoff)
	o.PutUint32(buf[12:], nsyms)
	o.PutUint32(buf[16:], stroff)
	o.PutUint32(buf[20:], strsize)
	return buf
}

func linkEditCmd(o binary.ByteOrder, cmd types.LoadCmd, dataoff, datasize uint32) []byte {
	buf := make([]byte, 16)
	o.PutUint32(buf[0:], uint32(cmd))
	o.PutUint32(buf[4:], 16)
	o.PutUint32(buf[8:], dataoff)
	o.PutUint32(buf[12:], datasize)
	return buf
}

// writeFixture writes data into a fresh temp file and returns its path.
func writeFixture(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.bin")
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

// openFixture writes data into a temp file and opens it for editing.
func openFixture(t *testing.T, data []byte, opts ...Option) (*File, string) {
	t.Helper()
	path := writeFixture(t, data)
	f, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("failed to open fixture: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f, path
}

func readBack(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back %s: %v", path, err)
	}
	return data
}

// checkLoads verifies the slice's bookkeeping invariants: the header
// counts match the table and the records are contiguous after the
// Mach header.
func checkLoads(t *testing.T, f *File, archIndex int) {
	t.Helper()
	a := f.Archs[archIndex]
	if int(a.Hdr.NCommands) != len(a.Loads) {
		t.Errorf("NCommands = %d, want %d", a.Hdr.NCommands, len(a.Loads))
	}
	var sum uint32
	off := int64(a.Desc.Offset) + int64(a.Hdr.Size())
	for i, lc := range a.Loads {
		if lc.Offset != off {
			t.Errorf("load %d: offset = %#x, want %#x", i, lc.Offset, off)
		}
		if uint32(len(lc.Raw)) != lc.Siz {
			t.Errorf("load %d: len(Raw) = %d, want %d", i, len(lc.Raw), lc.Siz)
		}
		sum += lc.Siz
		off += int64(lc.Siz)
	}
	if sum != a.Hdr.SizeCommands {
		t.Errorf("SizeCommands = %d, want %d", a.Hdr.SizeCommands, sum)
	}
}

// testThin is the default thin fixture: a little-endian 64-bit
// executable with three 16-byte load commands, slack after the table
// and an opaque payload.
func testThin(o binary.ByteOrder) thinImage {
	return thinImage{
		magic:   types.Magic64,
		order:   o,
		cpu:     types.CPUAmd64,
		sub:     types.CPUSubtypeX86All,
		typ:     types.MH_EXECUTE,
		cmds:    rpathCmds(o, "a", "bb", "ccc"),
		pad:     64,
		payload: []byte("payload bytes of the text segment"),
	}
}
