package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Light mask format errors.
var (
	ErrTruncatedLightMask = errors.New("truncated light mask data")
	ErrInvalidLightMask   = errors.New("invalid light mask resolution range")
)

// lightMaskMagic identifies the v1.00 file framing.
const lightMaskMagic = "PLTA0100"

// LightMask holds the specular/city-light flags for the base patches of a
// planet, parsed from a <planet>_lmask.bin file.
//
// Flags[i] covers base patch PatchIdx[MinRes-1]+i. Bit 0: specular opaque,
// bit 1: specular reflection active, bit 2: city-lights mask present.
type LightMask struct {
	MinRes uint8
	MaxRes uint8
	Flags  []uint16
}

// ParseLightMask parses a light mask file from raw bytes. Both the v1.00
// framing (8-byte "PLTA0100" id, {minres u8, maxres u8, npatch u16} header,
// npatch little-endian u16 flags) and the pre-v1.00 framing (no id,
// {minres u8, maxres u8}, PatchIdx[maxres]-PatchIdx[minres-1] u8 flags)
// are accepted.
func ParseLightMask(data []byte) (*LightMask, error) {
	if len(data) >= len(lightMaskMagic) && string(data[:len(lightMaskMagic)]) == lightMaskMagic {
		return parseLightMaskV1(data[len(lightMaskMagic):])
	}
	return parseLightMaskV0(data)
}

func parseLightMaskV1(data []byte) (*LightMask, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedLightMask)
	}
	lm := &LightMask{
		MinRes: data[0],
		MaxRes: data[1],
	}
	npatch := int(binary.LittleEndian.Uint16(data[2:4]))
	if err := validateResRange(lm.MinRes, lm.MaxRes); err != nil {
		return nil, err
	}
	data = data[4:]
	if len(data) < 2*npatch {
		return nil, fmt.Errorf("%w: %d flags declared, %d bytes present", ErrTruncatedLightMask, npatch, len(data))
	}
	lm.Flags = make([]uint16, npatch)
	for i := range lm.Flags {
		lm.Flags[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return lm, nil
}

func parseLightMaskV0(data []byte) (*LightMask, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedLightMask)
	}
	lm := &LightMask{
		MinRes: data[0],
		MaxRes: data[1],
	}
	if err := validateResRange(lm.MinRes, lm.MaxRes); err != nil {
		return nil, err
	}
	npatch := PatchIdx[lm.MaxRes] - PatchIdx[lm.MinRes-1]
	data = data[2:]
	if len(data) < npatch {
		return nil, fmt.Errorf("%w: %d flags declared, %d bytes present", ErrTruncatedLightMask, npatch, len(data))
	}
	lm.Flags = make([]uint16, npatch)
	for i := range lm.Flags {
		lm.Flags[i] = uint16(data[i])
	}
	return lm, nil
}

func validateResRange(minres, maxres uint8) error {
	if minres < 1 || maxres > 8 || minres > maxres {
		return fmt.Errorf("%w: minres=%d maxres=%d", ErrInvalidLightMask, minres, maxres)
	}
	return nil
}

// ParseLightMaskFile parses a light mask file from disk.
func ParseLightMaskFile(path string) (*LightMask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading light mask file: %w", err)
	}
	return ParseLightMask(data)
}
