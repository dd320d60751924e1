package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DDS format errors.
var (
	ErrInvalidDDSMagic     = errors.New("invalid DDS magic: expected 'DDS '")
	ErrTruncatedDDS        = errors.New("truncated DDS data")
	ErrUnsupportedDDSPixel = errors.New("unsupported DDS pixel format")
	ErrNoLinearSize        = errors.New("DDS surface without linear size")
)

// DDS compressed pixel formats.
type DDSFormat int

const (
	DXT1 DDSFormat = iota
	DXT3
	DXT5
)

// String returns the FourCC name of the format.
func (f DDSFormat) String() string {
	switch f {
	case DXT1:
		return "DXT1"
	case DXT3:
		return "DXT3"
	case DXT5:
		return "DXT5"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// BlockSize returns the compressed block size in bytes (one 4x4 texel block).
func (f DDSFormat) BlockSize() int {
	if f == DXT1 {
		return 8
	}
	return 16
}

const (
	ddsMagic       = "DDS "
	ddsHeaderSize  = 124
	ddsdLinearSize = 0x00080000
)

// DDSHeader holds the fields of a DDS surface descriptor that the tile
// loader needs: dimensions, compression format and top-mip payload size.
type DDSHeader struct {
	Width      uint32
	Height     uint32
	Format     DDSFormat
	LinearSize uint32
}

// ParseDDSHeader parses the 4-byte magic and 124-byte surface descriptor
// from the start of data. Only the block-compressed DXT1/DXT3/DXT5
// formats with a linear-size field are accepted.
func ParseDDSHeader(data []byte) (*DDSHeader, error) {
	if len(data) < 4+ddsHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedDDS, len(data))
	}
	if string(data[:4]) != ddsMagic {
		return nil, ErrInvalidDDSMagic
	}
	hdr := data[4:]
	flags := binary.LittleEndian.Uint32(hdr[4:])
	h := &DDSHeader{
		Height:     binary.LittleEndian.Uint32(hdr[8:]),
		Width:      binary.LittleEndian.Uint32(hdr[12:]),
		LinearSize: binary.LittleEndian.Uint32(hdr[16:]),
	}
	fourCC := string(hdr[80:84])
	switch fourCC {
	case "DXT1":
		h.Format = DXT1
	case "DXT3":
		h.Format = DXT3
	case "DXT5":
		h.Format = DXT5
	default:
		return nil, fmt.Errorf("%w: fourCC %q", ErrUnsupportedDDSPixel, fourCC)
	}
	if flags&ddsdLinearSize == 0 {
		return nil, ErrNoLinearSize
	}
	return h, nil
}

// ReadDDS reads one DDS surface (header plus top-mip payload) from the
// current position of r. It returns the header, the compressed texel
// payload and the total number of bytes consumed.
func ReadDDS(r io.Reader) (*DDSHeader, []byte, int64, error) {
	raw := make([]byte, 4+ddsHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: reading header", ErrTruncatedDDS)
	}
	h, err := ParseDDSHeader(raw)
	if err != nil {
		return nil, nil, 0, err
	}
	payload := make([]byte, h.LinearSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: reading %d payload bytes", ErrTruncatedDDS, h.LinearSize)
	}
	return h, payload, int64(len(raw)) + int64(len(payload)), nil
}
