// Package formats provides parsers for the planetary surface catalogue
// and texture container formats.
package formats

// NoTile marks a tile without its own texture at a given level.
const NoTile = 0xFFFFFFFF

// PatchIdx gives the cumulative number of base patches up to and
// including each resolution level 1..8. PatchIdx[0] is the empty prefix.
var PatchIdx = [9]int{0, 1, 2, 3, 5, 13, 37, 137, 501}
