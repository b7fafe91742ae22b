package diesel

import (
	"sort"

	"github.com/andewx/diesel/hal"
)

// Optional holds a value that may be absent. The zero Optional is absent,
// which keeps "not found" apart from index 0.
type Optional[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

func (o Optional[T]) IsSet() bool { return o.ok }

// Value returns the value, or the zero value when absent.
func (o Optional[T]) Value() T { return o.value }

// QueueFamilyIndices are the queue families a RenderDevice submits to.
type QueueFamilyIndices struct {
	Graphics Optional[uint32]
	Present  Optional[uint32]
	Transfer Optional[uint32]
}

// Complete reports whether the families required for the device are
// known. The present family is only required when presenting.
func (q QueueFamilyIndices) Complete(presenting bool) bool {
	if !q.Graphics.IsSet() || !q.Transfer.IsSet() {
		return false
	}
	return !presenting || q.Present.IsSet()
}

// Distinct returns the set family indices without duplicates, in ascending
// order.
func (q QueueFamilyIndices) Distinct() []uint32 {
	seen := make(map[uint32]bool, 3)
	var out []uint32
	for _, o := range []Optional[uint32]{q.Graphics, q.Present, q.Transfer} {
		if v, ok := o.Get(); ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FindQueueFamilies scans the queue families of a once. The first graphics
// family and the first family able to present to surface are recorded; one
// family may be both. The transfer family is the first dedicated transfer
// family and falls back to the graphics family. A nil surface skips present
// discovery.
func FindQueueFamilies(a hal.Adapter, surface hal.Surface) (QueueFamilyIndices, error) {
	var idx QueueFamilyIndices
	var dedicatedTransfer Optional[uint32]
	for i, family := range a.QueueFamilies() {
		n := uint32(i)
		if family.Count == 0 {
			continue
		}
		if !idx.Graphics.IsSet() && family.Flags.Has(hal.QueueGraphics) {
			idx.Graphics = Some(n)
		}
		if !dedicatedTransfer.IsSet() && family.Flags.Has(hal.QueueTransfer) && !family.Flags.Has(hal.QueueGraphics) {
			dedicatedTransfer = Some(n)
		}
		if surface != nil && !idx.Present.IsSet() {
			ok, err := a.SurfaceSupport(n, surface)
			if err != nil {
				return idx, backendError("queue family discovery", err)
			}
			if ok {
				idx.Present = Some(n)
			}
		}
	}
	idx.Transfer = dedicatedTransfer
	if !idx.Transfer.IsSet() {
		idx.Transfer = idx.Graphics
	}
	return idx, nil
}
