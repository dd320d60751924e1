package surface

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/internal/logger"
	"github.com/Faultbox/planetview/pkg/formats"
)

const (
	// MaxQueue bounds the tile load request ring.
	MaxQueue = 16

	// TileSize is the byte stride of one texture in old-style tile
	// archives, where the catalogue stores tile indices instead of
	// byte offsets.
	TileSize = 32896

	// poolGrowth is the descriptor pool growth step.
	poolGrowth = 16
)

// queueEntry is one pending load request. The texture positions and
// flags are captured under the queue mutex so the loader never touches
// descriptor fields outside it.
type queueEntry struct {
	name string
	td   *TileDesc
}

// TileBuffer owns the subtile descriptor pool and the asynchronous
// texture loader.
//
// A single mutex guards the request queue and every descriptor mutation
// after the descriptor becomes visible to the loader. The render thread
// holds it for the whole per-frame traversal; the loader takes it only
// to pick up a request and to publish a finished one, which is the
// happens-before edge making loaded textures visible to the traversal.
type TileBuffer struct {
	dev     device.Device
	texRoot string
	managed bool

	mu   sync.Mutex
	buf  []*TileDesc
	used int
	last int

	queue [MaxQueue]queueEntry
	nq    int
	qin   int
	qout  int

	run  atomic.Bool
	hold atomic.Bool
	done chan struct{}
	idle time.Duration
}

// NewTileBuffer creates the pool and starts the loader, waking freq
// times per second.
func NewTileBuffer(dev device.Device, texRoot string, managed bool, freq int) *TileBuffer {
	if freq < 1 {
		freq = 1
	}
	b := &TileBuffer{
		dev:     dev,
		texRoot: texRoot,
		managed: managed,
		done:    make(chan struct{}),
		idle:    time.Second / time.Duration(freq),
	}
	b.run.Store(true)
	go b.loadLoop()
	return b
}

// Mutex exposes the queue mutex. The traversal locks it for the
// duration of a frame; every read of subtile texture state happens
// under it.
func (b *TileBuffer) Mutex() *sync.Mutex {
	return &b.mu
}

// ShutDown stops the loader and waits for it to exit.
func (b *TileBuffer) ShutDown() {
	if b.run.CompareAndSwap(true, false) {
		<-b.done
	}
}

// HoldThread pauses or resumes the loader without draining the queue.
func (b *TileBuffer) HoldThread(hold bool) {
	b.hold.Store(hold)
}

// Release shuts the loader down and frees every pooled descriptor that
// still holds textures. Descriptors are weakly owned by the pool, so the
// scan is linear regardless of tree shape.
func (b *TileBuffer) Release() {
	b.ShutDown()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, td := range b.buf {
		if td == nil {
			continue
		}
		if td.Loaded() {
			td.Tex.Release()
			td.LTex.Release()
		}
		b.buf[i] = nil
	}
	b.used = 0
}

// AddTile allocates a zeroed descriptor from the pool and records its
// slot index. Pool growth is append-based and cannot fail short of OOM.
// Caller must hold the queue mutex if the tree is live.
func (b *TileBuffer) AddTile() *TileDesc {
	td := &TileDesc{}
	if b.used == len(b.buf) {
		b.last = len(b.buf)
		b.buf = append(b.buf, make([]*TileDesc, poolGrowth)...)
	} else {
		for i := 0; i < len(b.buf); i++ {
			j := (i + b.last) % len(b.buf)
			if b.buf[j] == nil {
				b.last = j
				break
			}
		}
	}
	b.buf[b.last] = td
	td.Ofs = uint32(b.last)
	b.used++
	return td
}

// DeleteSubTiles recursively deletes the children of a tile where
// possible, keeping subtrees that still hold loaded textures.
func (b *TileBuffer) DeleteSubTiles(tile *TileDesc) {
	for i := range tile.Sub {
		if tile.Sub[i] != nil && b.DeleteTile(tile.Sub[i]) {
			tile.Sub[i] = nil
		}
	}
}

// DeleteTile removes a descriptor subtree from the pool. It refuses, and
// reports false, if the tile or any descendant still holds a loaded
// texture; deletion succeeds in the parts of the subtree that can go.
func (b *TileBuffer) DeleteTile(tile *TileDesc) bool {
	del := true
	for i := range tile.Sub {
		if tile.Sub[i] != nil {
			if b.DeleteTile(tile.Sub[i]) {
				tile.Sub[i] = nil
			} else {
				del = false
			}
		}
	}
	if tile.Tex.IsLoaded() || !del {
		return false
	}
	tile.LTex.Release()
	b.buf[tile.Ofs] = nil
	b.used--
	return true
}

// LoadTileAsync queues a texture load for a subtile. Duplicate requests
// for a descriptor already queued and requests against a full queue are
// silently rejected; the traversal retries next frame. Caller must hold
// the queue mutex.
func (b *TileBuffer) LoadTileAsync(name string, tile *TileDesc) bool {
	if b.nq == MaxQueue {
		return false
	}
	for i := 0; i < b.nq; i++ {
		if b.queue[(i+b.qout)%MaxQueue].td == tile {
			return false
		}
	}
	b.queue[b.qin] = queueEntry{name: name, td: tile}
	b.nq++
	b.qin = (b.qin + 1) % MaxQueue
	return true
}

// loadLoop is the loader goroutine: sleep, pick up the queue head, read
// the DDS payloads outside the lock, publish under it.
func (b *TileBuffer) loadLoop() {
	defer close(b.done)

	for b.run.Load() {
		time.Sleep(b.idle)

		if !b.run.Load() {
			return
		}
		if b.hold.Load() {
			continue
		}

		b.mu.Lock()
		var entry queueEntry
		var sidx, midx uint32 = NoTile, NoTile
		var flag byte
		load := b.nq > 0
		if load {
			entry = b.queue[b.qout]
			sidx = entry.td.Tex.Index()
			midx = entry.td.LTex.Index()
			flag = entry.td.Flag
		}
		b.mu.Unlock()

		if !load {
			continue
		}

		var tex, mask device.Texture
		if sidx != NoTile {
			ofs := texOffset(sidx, flag)
			path := filepath.Join(b.texRoot, "Textures2", entry.name+"_tile.tex")
			t, err := b.readDDSTile(path, ofs)
			if err != nil {
				logger.Error("failed to load surface tile",
					zap.String("archive", path),
					zap.Int64("offset", ofs),
					zap.Error(err),
				)
			} else {
				tex = t
			}
		}
		if (flag&(FlagOpaque|FlagSpecular)) == (FlagOpaque|FlagSpecular) || flag&FlagLights != 0 {
			if midx != NoTile {
				ofs := texOffset(midx, flag)
				path := filepath.Join(b.texRoot, "Textures2", entry.name+"_tile_lmask.tex")
				if t, err := b.readDDSTile(path, ofs); err == nil {
					mask = t
				}
			}
		}

		b.mu.Lock()
		entry.td.Tex = LoadedTex(tex)
		entry.td.LTex = LoadedTex(mask)
		entry.td.Flag &^= FlagNotLoaded | FlagOldIdx
		b.nq--
		b.qout = (b.qout + 1) % MaxQueue
		b.mu.Unlock()
	}
}

// texOffset converts a catalogue texture position into an archive byte
// offset: old-style positions are tile indices with a fixed stride.
func texOffset(idx uint32, flag byte) int64 {
	if flag&FlagOldIdx != 0 {
		return int64(idx) * TileSize
	}
	return int64(idx)
}

// readDDSTile reads one DDS surface from an archive at a byte offset and
// uploads it as a compressed texture.
func (b *TileBuffer) readDDSTile(path string, ofs int64) (device.Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(ofs, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to %d: %w", ofs, err)
	}
	hdr, payload, _, err := formats.ReadDDS(f)
	if err != nil {
		return nil, err
	}
	if hdr.Width > 4096 || hdr.Height > 4096 {
		return nil, errors.New("surface tile exceeds 4096 pixels")
	}
	return b.dev.CreateCompressedTexture(hdr.Width, hdr.Height, hdr.Format, payload, b.managed)
}

// QueueLen returns the number of pending requests. Caller must hold the
// queue mutex.
func (b *TileBuffer) QueueLen() int {
	return b.nq
}
