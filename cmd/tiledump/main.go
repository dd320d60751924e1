// tiledump is a CLI utility for inspecting planetary surface tile
// catalogues.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/planetview/pkg/formats"
)

func main() {
	root := flag.String("root", "Textures", "texture root directory")
	planet := flag.String("planet", "", "planet name (required)")
	convert := flag.Bool("convert", false, "show TOC after offset-to-index conversion")
	flag.Parse()

	if *planet == "" {
		fmt.Fprintln(os.Stderr, "tiledump: -planet is required")
		flag.Usage()
		os.Exit(1)
	}

	dumpLightMask(filepath.Join(*root, *planet+"_lmask.bin"))
	fmt.Println()
	dumpTOC(filepath.Join(*root, *planet+"_tile.bin"), *convert)
}

func dumpLightMask(path string) {
	fmt.Printf("Light mask: %s\n", path)
	lm, err := formats.ParseLightMaskFile(path)
	if err != nil {
		fmt.Printf("  not available: %v\n", err)
		return
	}
	fmt.Printf("  resolution range: %d..%d\n", lm.MinRes, lm.MaxRes)
	fmt.Printf("  patches covered:  %d\n", len(lm.Flags))

	var specular, lights int
	for _, f := range lm.Flags {
		if f&3 == 3 {
			specular++
		}
		if f&4 != 0 {
			lights++
		}
	}
	fmt.Printf("  specular patches: %d\n", specular)
	fmt.Printf("  lit patches:      %d\n", lights)
}

func dumpTOC(path string, convert bool) {
	fmt.Printf("Tile TOC: %s\n", path)
	toc, err := formats.ParseTileTOCFile(path)
	if err != nil {
		fmt.Printf("  not available: %v\n", err)
		return
	}
	fmt.Printf("  version: %d\n", toc.Version)
	fmt.Printf("  records: %d\n", len(toc.Records))

	if convert {
		toc.ConvertToIndices()
		fmt.Println("  (offsets converted to dense indices)")
	}

	var surfaces, masks, withChildren int
	for _, r := range toc.Records {
		if r.SIdx != formats.NoTile {
			surfaces++
		}
		if r.MIdx != formats.NoTile {
			masks++
		}
		for _, s := range r.SubIdx {
			if s != 0 {
				withChildren++
				break
			}
		}
	}
	fmt.Printf("  surface textures: %d\n", surfaces)
	fmt.Printf("  mask textures:    %d\n", masks)
	fmt.Printf("  parent records:   %d\n", withChildren)

	// Depth of the quadtree below the level-8 base set.
	nbase := formats.PatchIdx[8] - formats.PatchIdx[7]
	if len(toc.Records) < nbase {
		fmt.Printf("  WARNING: fewer records than level-8 tiles (%d < %d)\n", len(toc.Records), nbase)
		return
	}
	maxDepth := 0
	for i := 0; i < nbase; i++ {
		if d := recordDepth(toc, i, 0); d > maxDepth {
			maxDepth = d
		}
	}
	fmt.Printf("  max level:        %d\n", 8+maxDepth)
}

func recordDepth(toc *formats.TileTOC, idx, depth int) int {
	if depth > surfaceMaxDepth {
		return depth // defensive: cyclic TOC
	}
	max := depth
	for _, s := range toc.Records[idx].SubIdx {
		if s != 0 && int(s) < len(toc.Records) {
			if d := recordDepth(toc, int(s), depth+1); d > max {
				max = d
			}
		}
	}
	return max
}

// surfaceMaxDepth bounds the tree walk against malformed files.
const surfaceMaxDepth = 8
