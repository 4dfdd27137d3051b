// Package board stores each batch's grid of ciphertext handles. Slots are
// addressed by linearized coordinates and scoped per batch id, so the boards
// of past batches remain readable after a new batch opens.
package board

import (
	"fmt"
	"sync"

	"github.com/rhuffman-92808/Game-Of-Life-Fhe/crypto"
	"github.com/rhuffman-92808/Game-Of-Life-Fhe/protocol"
)

// Board is the fixed-size grid of cell slots, keyed by batch id and slot
// index. A slot holds the opaque handle most recently submitted for it;
// resubmission overwrites, nothing is ever deleted.
type Board struct {
	width  int
	height int

	mu    sync.RWMutex
	cells map[uint64]map[int]crypto.Handle
}

// New creates a board with the given dimensions.
func New(width, height int) *Board {
	return &Board{
		width:  width,
		height: height,
		cells:  make(map[uint64]map[int]crypto.Handle),
	}
}

// Width returns the board width.
func (b *Board) Width() int { return b.width }

// Height returns the board height.
func (b *Board) Height() int { return b.height }

// NumCells returns the number of slots per batch.
func (b *Board) NumCells() int { return b.width * b.height }

// CheckBounds fails with ErrInvalidCoordinates unless 0 <= x < width and
// 0 <= y < height.
func (b *Board) CheckBounds(x, y int) error {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return fmt.Errorf("%w: (%d,%d) outside %dx%d", protocol.ErrInvalidCoordinates, x, y, b.width, b.height)
	}
	return nil
}

// Index linearizes coordinates to the canonical slot index x + y*width.
func (b *Board) Index(x, y int) int {
	return x + y*b.width
}

// Set writes (overwrites) the slot at (batchID, x, y).
func (b *Board) Set(batchID uint64, x, y int, handle crypto.Handle) error {
	if err := b.CheckBounds(x, y); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	slots, ok := b.cells[batchID]
	if !ok {
		slots = make(map[int]crypto.Handle)
		b.cells[batchID] = slots
	}
	slots[b.Index(x, y)] = handle
	return nil
}

// Get reads the slot at (batchID, x, y). Never-submitted slots read as the
// zero handle.
func (b *Board) Get(batchID uint64, x, y int) (crypto.Handle, error) {
	if err := b.CheckBounds(x, y); err != nil {
		return crypto.ZeroHandle, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cells[batchID][b.Index(x, y)], nil
}

// Snapshot returns the batch's full ordered handle sequence: one entry per
// slot in index order, the zero handle where nothing was submitted. This is
// the exact sequence hashed into the batch commitment and the order in which
// the oracle returns plaintexts.
func (b *Board) Snapshot(batchID uint64) []crypto.Handle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handles := make([]crypto.Handle, b.NumCells())
	for index, handle := range b.cells[batchID] {
		handles[index] = handle
	}
	return handles
}
