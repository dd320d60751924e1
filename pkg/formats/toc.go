package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Tile TOC format errors.
var (
	ErrTruncatedTOC = errors.New("truncated tile TOC data")
)

// tocMagic identifies a versioned tile TOC file.
const tocMagic = "PLTS"

// tocRecordSize is the on-disk size of one tile record: the u16 flag
// field is padded to 4-byte alignment between midx and subidx.
const tocRecordSize = 28

// TileRecord describes one catalogued tile: surface and mask texture
// positions in the tile archive (byte offsets in version 0 files, dense
// indices after ConvertToIndices), a flag field and four child record
// indices (0 = child absent).
type TileRecord struct {
	SIdx   uint32
	MIdx   uint32
	Flags  uint16
	SubIdx [4]uint32
}

// TileTOC is a parsed <planet>_tile.bin table of contents.
type TileTOC struct {
	Version uint32
	Records []TileRecord
}

// ParseTileTOC parses a tile TOC file from raw bytes. Files starting with
// the "PLTS" magic carry a u32 version; anything else is treated as a
// version 0 file with no header.
func ParseTileTOC(data []byte) (*TileTOC, error) {
	toc := &TileTOC{}
	if len(data) >= 8 && string(data[:4]) == tocMagic {
		toc.Version = binary.LittleEndian.Uint32(data[4:8])
		data = data[8:]
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: reading record count", ErrTruncatedTOC)
	}
	n := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if n < 0 || len(data) < n*tocRecordSize {
		return nil, fmt.Errorf("%w: %d records declared, %d bytes present", ErrTruncatedTOC, n, len(data))
	}
	toc.Records = make([]TileRecord, n)
	for i := range toc.Records {
		rec := data[i*tocRecordSize:]
		r := &toc.Records[i]
		r.SIdx = binary.LittleEndian.Uint32(rec[0:])
		r.MIdx = binary.LittleEndian.Uint32(rec[4:])
		r.Flags = binary.LittleEndian.Uint16(rec[8:])
		for j := 0; j < 4; j++ {
			r.SubIdx[j] = binary.LittleEndian.Uint32(rec[12+4*j:])
		}
	}
	return toc, nil
}

// ParseTileTOCFile parses a tile TOC file from disk.
func ParseTileTOCFile(path string) (*TileTOC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tile TOC file: %w", err)
	}
	return ParseTileTOC(data)
}

// ConvertToIndices rewrites the SIdx and MIdx fields of a versioned TOC
// from archive byte offsets to dense indices 0..k-1 in offset order,
// leaving NoTile entries untouched. After conversion the TOC reads like a
// version 0 file and Version is reset accordingly.
func (t *TileTOC) ConvertToIndices() {
	if t.Version == 0 {
		return
	}
	convertField(t.Records, func(r *TileRecord) *uint32 { return &r.SIdx })
	convertField(t.Records, func(r *TileRecord) *uint32 { return &r.MIdx })
	t.Version = 0
}

func convertField(recs []TileRecord, field func(*TileRecord) *uint32) {
	order := make([]int, len(recs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return *field(&recs[order[a]]) < *field(&recs[order[b]])
	})
	for rank, i := range order {
		p := field(&recs[i])
		if *p == NoTile {
			break // NoTile sorts last; everything after is NoTile too
		}
		*p = uint32(rank)
	}
}
