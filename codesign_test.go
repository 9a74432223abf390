package machoedit

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/appsworld/macho-edit/types"
)

// signedThin64 builds a little-endian 64-bit image of 1520 bytes whose
// last 512 bytes are a trailing code signature: __LINKEDIT runs from
// 512 to the end of the image, the string table ends 8 bytes before
// the signature starts.
func signedThin64(o binary.ByteOrder) thinImage {
	cmds := [][]byte{
		seg64Cmd(o, "__TEXT", 0x100000000, 0x1000, 0, 512),
		seg64Cmd(o, "__LINKEDIT", 0x100001000, 0x1000, 512, 1008),
		symtabCmd(o, 512, 10, 800, 200),
		linkEditCmd(o, types.LC_CODE_SIGNATURE, 1008, 512),
	}
	img := thinImage{
		magic: types.Magic64,
		order: o,
		cpu:   types.CPUAmd64,
		sub:   types.CPUSubtypeX86All,
		typ:   types.MH_EXECUTE,
		cmds:  cmds,
	}
	// Pad the image out to 1520 bytes with a nonzero pattern.
	base := 32 + 184
	img.payload = bytes.Repeat([]byte{0xaa}, 1520-base)
	return img
}

func TestRemoveCodeSignature(t *testing.T) {
	o := binary.LittleEndian
	f, path := openFixture(t, signedThin64(o).bytes())

	removed, err := f.RemoveCodeSignature(0)
	if err != nil {
		t.Fatalf("RemoveCodeSignature() error = %v", err)
	}
	if !removed {
		t.Fatal("RemoveCodeSignature() = false, want true")
	}

	// 512 bytes of signature plus 8 bytes of string table padding.
	if f.FileSize() != 1000 {
		t.Errorf("FileSize() = %d, want 1000", f.FileSize())
	}
	if got := f.Archs[0].Desc.Size; got != 1000 {
		t.Errorf("Desc.Size = %d, want 1000", got)
	}
	a := f.Archs[0]
	if a.Hdr.NCommands != 3 || a.Hdr.SizeCommands != 168 {
		t.Errorf("header = %d/%d, want 3/168", a.Hdr.NCommands, a.Hdr.SizeCommands)
	}
	checkLoads(t, f, 0)
	f.Close()

	data := readBack(t, path)
	if len(data) != 1000 {
		t.Fatalf("file length = %d, want 1000", len(data))
	}
	// The signature command's record slot is zeroed.
	for _, b := range data[200:216] {
		if b != 0 {
			t.Error("removed command record is not zeroed")
			break
		}
	}

	f2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after strip: %v", err)
	}
	defer f2.Close()
	var linkedit *LoadCommand
	for _, lc := range f2.Archs[0].Loads {
		if lc.Cmd == types.LC_CODE_SIGNATURE {
			t.Error("LC_CODE_SIGNATURE still present after strip")
		}
		if lc.Cmd == types.LC_SEGMENT_64 {
			linkedit = lc
		}
	}
	if linkedit == nil {
		t.Fatal("no segment command after strip")
	}
	seg, err := types.ReadSegment64(linkedit.Raw, o)
	if err != nil {
		t.Fatal(err)
	}
	if seg.SegName() != "__LINKEDIT" {
		t.Fatalf("last segment = %q, want __LINKEDIT", seg.SegName())
	}
	if seg.Filesz != 488 {
		t.Errorf("__LINKEDIT filesz = %d, want 488", seg.Filesz)
	}
	if seg.Offset+seg.Filesz != 1000 {
		t.Errorf("__LINKEDIT no longer ends at the image end: %d", seg.Offset+seg.Filesz)
	}
	if seg.Memsz != 0x1000 {
		t.Errorf("__LINKEDIT vmsize = %#x, want page-rounded 0x1000", seg.Memsz)
	}
}

func TestRemoveCodeSignature32(t *testing.T) {
	o := binary.LittleEndian
	cmds := [][]byte{
		seg32Cmd(o, "__TEXT", 0x1000, 0x1000, 0, 256),
		seg32Cmd(o, "__LINKEDIT", 0x2000, 0x1000, 256, 768),
		symtabCmd(o, 256, 4, 600, 168),
		linkEditCmd(o, types.LC_CODE_SIGNATURE, 768, 256),
	}
	img := thinImage{
		magic: types.Magic32,
		order: o,
		cpu:   types.CPU386,
		sub:   types.CPUSubtypeX86All,
		typ:   types.MH_EXECUTE,
		cmds:  cmds,
	}
	base := 28 + 152
	img.payload = bytes.Repeat([]byte{0xbb}, 1024-base)

	f, path := openFixture(t, img.bytes())
	removed, err := f.RemoveCodeSignature(0)
	if err != nil {
		t.Fatalf("RemoveCodeSignature() error = %v", err)
	}
	if !removed {
		t.Fatal("RemoveCodeSignature() = false, want true")
	}
	// The string table ends exactly where the signature starts, so the
	// reduction is the signature size alone.
	if f.FileSize() != 768 {
		t.Errorf("FileSize() = %d, want 768", f.FileSize())
	}
	f.Close()

	f2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after strip: %v", err)
	}
	defer f2.Close()
	var linkedit *LoadCommand
	for _, lc := range f2.Archs[0].Loads {
		if lc.Cmd == types.LC_SEGMENT {
			linkedit = lc
		}
	}
	seg, err := types.ReadSegment32(linkedit.Raw, o)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Filesz != 512 {
		t.Errorf("__LINKEDIT filesz = %d, want 512", seg.Filesz)
	}
	if seg.Memsz != 0x1000 {
		t.Errorf("__LINKEDIT vmsize = %#x, want 0x1000", seg.Memsz)
	}
}

func TestRemoveCodeSignatureDeclined(t *testing.T) {
	o := binary.LittleEndian

	tests := []struct {
		name   string
		mutate func(img *thinImage)
	}{
		{
			"no signature command",
			func(img *thinImage) {
				img.cmds = img.cmds[:3]
				img.payload = append(img.payload, make([]byte, 16)...)
			},
		},
		{
			"signature not trailing",
			func(img *thinImage) {
				img.cmds[3] = linkEditCmd(o, types.LC_CODE_SIGNATURE, 1008, 500)
			},
		},
		{
			"segment does not reach the image end",
			func(img *thinImage) {
				img.cmds[1] = seg64Cmd(o, "__LINKEDIT", 0x100001000, 0x1000, 512, 1000)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := signedThin64(o)
			tt.mutate(&img)
			data := img.bytes()
			f, path := openFixture(t, data)

			removed, err := f.RemoveCodeSignature(0)
			if err != nil {
				t.Fatalf("RemoveCodeSignature() error = %v", err)
			}
			if removed {
				t.Error("RemoveCodeSignature() = true, want declined")
			}
			f.Close()
			if !bytes.Equal(readBack(t, path), data) {
				t.Error("declined strip still mutated the file")
			}
		})
	}
}

func TestRemoveCodeSignatureFat(t *testing.T) {
	o := binary.LittleEndian
	signed := signedThin64(o).bytes()
	other := testThin(o).bytes()
	f, path := openFixture(t, fatImage{slices: []fatSlice{
		{data: signed, cpu: types.CPUAmd64, sub: types.CPUSubtypeX86All, align: 12},
		{data: other, cpu: types.CPUAmd64, sub: types.CPUSubtypeX86All, align: 12},
	}}.bytes())

	removed, err := f.RemoveCodeSignature(0)
	if err != nil {
		t.Fatalf("RemoveCodeSignature() error = %v", err)
	}
	if !removed {
		t.Fatal("RemoveCodeSignature() = false, want true")
	}
	if got := f.Archs[0].Desc.Size; got != 1000 {
		t.Errorf("stripped slice size = %d, want 1000", got)
	}
	f.Close()

	data := readBack(t, path)
	var desc types.FatArch
	desc.Get(data[types.FatHeaderSize:], binary.BigEndian)
	if desc.Size != 1000 {
		t.Errorf("descriptor size on disk = %d, want 1000", desc.Size)
	}
	// The second slice is untouched; the excluded signature bytes stay
	// in the file until a compaction reclaims them.
	var desc2 types.FatArch
	desc2.Get(data[types.FatHeaderSize+types.FatArchSize:], binary.BigEndian)
	if !bytes.Equal(data[desc2.Offset:int(desc2.Offset)+len(other)], other) {
		t.Error("second slice bytes changed")
	}
	if len(data) != int(desc2.Offset)+len(other) {
		t.Errorf("file length = %d, want %d", len(data), int(desc2.Offset)+len(other))
	}
}
