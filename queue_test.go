package diesel

import (
	"reflect"
	"testing"

	"github.com/andewx/diesel/backend/headless"
	"github.com/andewx/diesel/hal"
)

// adapterWithSurface returns the first adapter of a system built from cfg
// and a surface for a small window.
func adapterWithSurface(t *testing.T, cfg headless.AdapterConfig) (hal.Adapter, hal.Surface) {
	t.Helper()
	inst := headless.NewSystem(cfg).Instance()
	t.Cleanup(inst.Destroy)
	adapters, err := inst.Adapters()
	if err != nil {
		t.Fatal(err)
	}
	surface, err := inst.CreateSurface(headless.NewWindow(64, 64))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(surface.Destroy)
	return adapters[0], surface
}

func TestFindQueueFamilies(t *testing.T) {
	g, c, x := hal.QueueGraphics, hal.QueueCompute, hal.QueueTransfer
	tests := []struct {
		name     string
		families []hal.QueueFamily
		present  []uint32
		want     [3]int // graphics, present, transfer; -1 is absent
	}{
		{"single family", []hal.QueueFamily{{Flags: g | c | x, Count: 1}}, []uint32{0}, [3]int{0, 0, 0}},
		{"dedicated transfer", []hal.QueueFamily{{Flags: g | c | x, Count: 1}, {Flags: c, Count: 1}, {Flags: x, Count: 2}}, []uint32{0}, [3]int{0, 0, 2}},
		{"separate present", []hal.QueueFamily{{Flags: g, Count: 1}, {Flags: c, Count: 1}}, []uint32{1}, [3]int{0, 1, 0}},
		{"empty family skipped", []hal.QueueFamily{{Flags: g | x, Count: 0}, {Flags: g | x, Count: 4}}, []uint32{0, 1}, [3]int{1, 1, 1}},
		{"no present", []hal.QueueFamily{{Flags: g, Count: 1}}, nil, [3]int{0, -1, 0}},
		{"no graphics", []hal.QueueFamily{{Flags: x, Count: 1}}, []uint32{0}, [3]int{-1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := headless.DefaultAdapter()
			cfg.QueueFamilies = tt.families
			cfg.PresentFamilies = tt.present
			a, surface := adapterWithSurface(t, cfg)
			idx, err := FindQueueFamilies(a, surface)
			if err != nil {
				t.Fatal(err)
			}
			got := [3]int{}
			for i, o := range []Optional[uint32]{idx.Graphics, idx.Present, idx.Transfer} {
				got[i] = -1
				if v, ok := o.Get(); ok {
					got[i] = int(v)
				}
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindQueueFamiliesWithoutSurface(t *testing.T) {
	a, _ := adapterWithSurface(t, headless.DefaultAdapter())
	idx, err := FindQueueFamilies(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Present.IsSet() {
		t.Error("present family found without a surface")
	}
	if !idx.Complete(false) || idx.Complete(true) {
		t.Errorf("completeness wrong for %+v", idx)
	}
}

func TestQueueFamilyIndicesDistinct(t *testing.T) {
	idx := QueueFamilyIndices{Graphics: Some[uint32](2), Present: Some[uint32](0), Transfer: Some[uint32](2)}
	if got := idx.Distinct(); !reflect.DeepEqual(got, []uint32{0, 2}) {
		t.Errorf("Distinct = %v", got)
	}
	if got := (QueueFamilyIndices{}).Distinct(); len(got) != 0 {
		t.Errorf("empty Distinct = %v", got)
	}
}

func TestOptionalZeroIsAbsent(t *testing.T) {
	var o Optional[uint32]
	if _, ok := o.Get(); ok {
		t.Error("zero optional is set")
	}
	if v, ok := Some[uint32](0).Get(); !ok || v != 0 {
		t.Error("Some(0) lost its value")
	}
}
