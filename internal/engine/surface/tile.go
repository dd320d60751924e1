// Package surface manages the planetary surface tile quadtree: patch
// template meshes, the tile catalogue, the asynchronous tile loader and
// the per-frame level-of-detail traversal.
package surface

import (
	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/pkg/formats"
)

// Tile flag bits.
const (
	FlagOpaque    = 0x01 // specular opaque (land)
	FlagSpecular  = 0x02 // specular reflection active (water)
	FlagLights    = 0x04 // city-lights mask present
	FlagOldIdx    = 0x40 // texture position is an old-style tile index
	FlagNotLoaded = 0x80 // texture not loaded yet
)

// NoTile marks a tile without its own texture.
const NoTile = formats.NoTile

// TexRef is the state of a tile's texture slot. It is exactly one of:
// unresolved (a numeric position in the tile archive, not yet loaded),
// absent (the tile inherits from its ancestors indefinitely), or loaded
// (a live GPU texture).
type TexRef struct {
	tex device.Texture
	idx uint32
	set bool // true once the slot holds an index or a texture
}

// UnresolvedTex returns a reference to an archive position. An index of
// NoTile yields the absent reference.
func UnresolvedTex(idx uint32) TexRef {
	if idx == NoTile {
		return TexRef{}
	}
	return TexRef{idx: idx, set: true}
}

// LoadedTex wraps a live texture. A nil texture yields the absent
// reference.
func LoadedTex(t device.Texture) TexRef {
	if t == nil {
		return TexRef{}
	}
	return TexRef{tex: t, set: true}
}

// NoTex is the absent reference.
func NoTex() TexRef {
	return TexRef{}
}

// IsNone reports whether the slot holds neither an index nor a texture.
func (r TexRef) IsNone() bool {
	return !r.set
}

// IsLoaded reports whether the slot holds a live texture.
func (r TexRef) IsLoaded() bool {
	return r.set && r.tex != nil
}

// Texture returns the live texture, or nil.
func (r TexRef) Texture() device.Texture {
	return r.tex
}

// Index returns the unresolved archive position, or NoTile if the slot
// is absent or already loaded.
func (r TexRef) Index() uint32 {
	if !r.set || r.tex != nil {
		return NoTile
	}
	return r.idx
}

// Release frees the underlying texture, if any, and empties the slot.
func (r *TexRef) Release() {
	if r.tex != nil {
		r.tex.Release()
	}
	*r = TexRef{}
}

// TileDesc is one node of the surface quadtree. Base tiles (levels 1-8)
// live in the manager's fixed descriptor array; subtiles are allocated
// from the TileBuffer pool and referenced by slot index through Ofs.
type TileDesc struct {
	Flag byte
	Tex  TexRef // surface texture
	LTex TexRef // specular/lights mask texture

	// Children in quadtree order {NW, NE, SW, SE} relative to the
	// parent's UV rectangle. Nil where the catalogue declares no child.
	Sub [4]*TileDesc

	// Slot index in the TileBuffer pool.
	Ofs uint32
}

// Loaded reports whether the tile's textures have been resolved; only
// then are the TexRef slots valid for rendering.
func (t *TileDesc) Loaded() bool {
	return t.Flag&FlagNotLoaded == 0
}

// TexRange is a UV sub-rectangle of a texture.
type TexRange struct {
	UMin, UMax float32
	VMin, VMax float32
}

// FullRange covers the whole texture.
var FullRange = TexRange{0, 1, 0, 1}
