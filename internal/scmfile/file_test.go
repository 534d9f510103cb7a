package scmfile

import (
	"encoding/binary"
	"testing"

	"github.com/rkooima/scm/internal/scmidx"
)

// writeCatalogFixture builds a minimal BigTIFF-style buffer with one real
// catalog page (index/offset/min/max all inline, no external value
// blocks), exercising the sparse page-tag decode path in parseCatalog
// that writeTestPyramid-style fixtures (zero pages) never reach.
func writeCatalogFixture(bo binary.ByteOrder) []byte {
	const (
		ifdOffset = 16
		entries   = 8
		ifdSize   = 8 + entries*20 + 8
	)

	buf := make([]byte, ifdOffset+ifdSize)

	buf[0], buf[1] = 'I', 'I'
	if bo == binary.BigEndian {
		buf[0], buf[1] = 'M', 'M'
	}
	bo.PutUint16(buf[2:], 43)
	bo.PutUint64(buf[8:], ifdOffset)

	bo.PutUint64(buf[ifdOffset:], entries)

	putEntry := func(i int, tag, dt uint16, count uint64, inline [8]byte) {
		off := ifdOffset + 8 + i*20
		bo.PutUint16(buf[off:], tag)
		bo.PutUint16(buf[off+2:], dt)
		bo.PutUint64(buf[off+4:], count)
		copy(buf[off+12:off+20], inline[:])
	}

	var v [8]byte
	bo.PutUint32(v[:], 4)
	putEntry(0, tagImageWidth, dtLong, 1, v)

	v = [8]byte{}
	bo.PutUint32(v[:], 4)
	putEntry(1, tagImageLength, dtLong, 1, v)

	v = [8]byte{}
	bo.PutUint16(v[:], 8)
	putEntry(2, tagBitsPerSample, dtShort, 1, v)

	v = [8]byte{}
	bo.PutUint16(v[:], 1)
	putEntry(3, tagSamplesPerPixel, dtShort, 1, v)

	v = [8]byte{}
	bo.PutUint64(v[:], 5) // page id 5 resident
	putEntry(4, tagPageIndex, dtLong8, 1, v)

	v = [8]byte{}
	bo.PutUint64(v[:], 1024) // byte offset of page 5's sub-image
	putEntry(5, tagPageOffset, dtLong8, 1, v)

	v = [8]byte{}
	v[0] = 10 // per-channel minimum, 1 channel at 8 bits
	putEntry(6, tagPageMin, dtByte, 1, v)

	v = [8]byte{}
	v[0] = 200 // per-channel maximum
	putEntry(7, tagPageMax, dtByte, 1, v)

	bo.PutUint64(buf[ifdOffset+8+entries*20:], 0) // next IFD = 0
	return buf
}

func TestParseCatalogDecodesRealPage(t *testing.T) {
	buf := writeCatalogFixture(binary.LittleEndian)

	cat, bo, err := parseCatalog(buf)
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}
	if bo != binary.LittleEndian {
		t.Fatalf("parseCatalog byte order = %v, want LittleEndian", bo)
	}
	if cat.w != 4 || cat.h != 4 {
		t.Fatalf("catalog dims = (%d, %d), want (4, 4)", cat.w, cat.h)
	}
	if cat.b != 8 || cat.c != 1 {
		t.Fatalf("catalog (bits, channels) = (%d, %d), want (8, 1)", cat.b, cat.c)
	}
	if len(cat.index) != 1 || cat.index[0] != 5 {
		t.Fatalf("catalog.index = %v, want [5]", cat.index)
	}
	if len(cat.offset) != 1 || cat.offset[0] != 1024 {
		t.Fatalf("catalog.offset = %v, want [1024]", cat.offset)
	}
	if len(cat.min) != 1 || cat.min[0] != 10 {
		t.Fatalf("catalog.min = %v, want [10]", cat.min)
	}
	if len(cat.max) != 1 || cat.max[0] != 200 {
		t.Fatalf("catalog.max = %v, want [200]", cat.max)
	}
}

func TestParseCatalogBigEndian(t *testing.T) {
	buf := writeCatalogFixture(binary.BigEndian)

	cat, bo, err := parseCatalog(buf)
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}
	if bo != binary.BigEndian {
		t.Fatalf("parseCatalog byte order = %v, want BigEndian", bo)
	}
	if len(cat.index) != 1 || cat.index[0] != 5 || cat.offset[0] != 1024 {
		t.Fatalf("catalog page decoded wrong: index=%v offset=%v", cat.index, cat.offset)
	}
}

func testFile() *File {
	cat := &catalog{
		w: 4, h: 4, c: 1, b: 8,
		index:  []uint64{0, 2, 8},
		offset: []uint64{100, 200, 300},
		min:    []byte{10, 20, 30},
		max:    []byte{200, 210, 220},
	}
	return &File{Name: "test", bo: binary.LittleEndian, cat: cat}
}

func TestToIndex(t *testing.T) {
	f := testFile()
	if j := f.toindex(0); j != 0 {
		t.Fatalf("toindex(0) = %d, want 0", j)
	}
	if j := f.toindex(2); j != 1 {
		t.Fatalf("toindex(2) = %d, want 1", j)
	}
	if j := f.toindex(1); j != -1 {
		t.Fatalf("toindex(1) = %d, want -1", j)
	}
}

func TestPageOffsetAbsent(t *testing.T) {
	f := testFile()
	if got := f.PageOffset(999); got != 0 {
		t.Fatalf("PageOffset(absent) = %d, want 0", got)
	}
	if got := f.PageOffset(2); got != 200 {
		t.Fatalf("PageOffset(2) = %d, want 200", got)
	}
}

func TestPageBoundsDirect(t *testing.T) {
	f := testFile()
	r0, r1 := f.PageBounds(2)
	if r0 != 20.0/255 || r1 != 210.0/255 {
		t.Fatalf("PageBounds(2) = (%v, %v)", r0, r1)
	}
}

func TestPageBoundsAncestorFallback(t *testing.T) {
	f := testFile()
	// page 14 is child 0 of root page 2 (face 2, level 1, row 0, col 0);
	// construct an id whose parent is present in the catalog but which
	// itself is not.
	parent := scmidx.PageId(2)
	child := scmidx.Child(parent, 0)
	r0, r1 := f.PageBounds(child)
	wantR0, wantR1 := float32(20.0/255), float32(210.0/255)
	if r0 != wantR0 || r1 != wantR1 {
		t.Fatalf("PageBounds(child of 2) = (%v, %v), want (%v, %v)", r0, r1, wantR0, wantR1)
	}
}

func TestPageBoundsDefaultsWhenNoAncestor(t *testing.T) {
	f := testFile()
	r0, r1 := f.PageBounds(5) // root page, absent, no ancestor to climb to
	if r0 != 1 || r1 != 1 {
		t.Fatalf("PageBounds(absent root) = (%v, %v), want (1, 1)", r0, r1)
	}
}

func TestPageByteLengthPadsTripleChannel(t *testing.T) {
	f := testFile()
	f.cat.c, f.cat.b = 3, 8
	if got := f.pageByteLength(); got != 4*4*4 {
		t.Fatalf("pageByteLength() = %d, want %d", got, 4*4*4)
	}
}
