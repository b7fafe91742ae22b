package diesel

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Property keys read by diesel.
const (
	// UsageVSync requests a vertically synced present mode.
	UsageVSync = "VSync"
	// UsageValidation enables the backend validation layers.
	UsageValidation = "Validation"
	// UsageFenceTimeout is the bounded fence wait of the frame loop, in
	// milliseconds.
	UsageFenceTimeout = "FenceTimeoutMs"
	// UsageDisplay is "Window" for presenting contexts and "None" for
	// offscreen ones.
	UsageDisplay = "Display"
	// UsageDeviceGroup asks for a multi GPU device group. It is read by
	// applications; diesel always opens a single device.
	UsageDeviceGroup = "DeviceGroup"
)

const defaultFenceTimeout = time.Second

//Usage is a named set of typed properties, the configuration object of a
//Context. It maps onto a JSON object and can link to a further usage, which
//is how grouped settings (for example a compute usage after the display
//usage) are chained.
type Usage struct {
	Name        string             `json:"name"`
	StringProps map[string]string  `json:"strings,omitempty"`
	IntProps    map[string]int     `json:"ints,omitempty"`
	BoolProps   map[string]bool    `json:"bools,omitempty"`
	FloatProps  map[string]float32 `json:"floats,omitempty"`
	Linked      *Usage             `json:"linked,omitempty"`
}

// NewUsage returns an empty usage whose maps are sized for size entries.
func NewUsage(name string, size int) *Usage {
	return &Usage{
		Name:        name,
		StringProps: make(map[string]string, size),
		IntProps:    make(map[string]int, size),
		BoolProps:   make(map[string]bool, size),
		FloatProps:  make(map[string]float32, size),
	}
}

// DefaultUsage returns the configuration used when a Context is built
// without WithConfig.
func DefaultUsage() *Usage {
	u := NewUsage("Config", 4)
	u.BoolProps[UsageVSync] = true
	u.BoolProps[UsageValidation] = false
	u.IntProps[UsageFenceTimeout] = int(defaultFenceTimeout / time.Millisecond)
	u.StringProps[UsageDisplay] = "Window"
	return u
}

// LoadUsage decodes a usage from JSON. Keys the document leaves out keep
// their DefaultUsage values.
func LoadUsage(r io.Reader) (*Usage, error) {
	var doc Usage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, newError("load usage", KindFatal, err)
	}
	u := DefaultUsage()
	if doc.Name != "" {
		u.Name = doc.Name
	}
	for k, v := range doc.StringProps {
		u.StringProps[k] = v
	}
	for k, v := range doc.IntProps {
		u.IntProps[k] = v
	}
	for k, v := range doc.BoolProps {
		u.BoolProps[k] = v
	}
	for k, v := range doc.FloatProps {
		u.FloatProps[k] = v
	}
	u.Linked = doc.Linked
	if v := u.IntProps[UsageFenceTimeout]; v <= 0 {
		return nil, errorf("load usage", KindContract, "%s must be positive, got %d", UsageFenceTimeout, v)
	}
	return u, nil
}

func (u *Usage) HasNext() bool {
	return u.Linked != nil
}

func (u *Usage) GetLinkedUsage() (*Usage, error) {
	if !u.HasNext() {
		return nil, errorf("usage", KindContract, "properties %s have no linked usage", u.Name)
	}
	return u.Linked, nil
}

func (u *Usage) GetString(key, def string) string {
	if v, ok := u.StringProps[key]; ok {
		return v
	}
	return def
}

func (u *Usage) GetInt(key string, def int) int {
	if v, ok := u.IntProps[key]; ok {
		return v
	}
	return def
}

func (u *Usage) GetBool(key string, def bool) bool {
	if v, ok := u.BoolProps[key]; ok {
		return v
	}
	return def
}

func (u *Usage) GetFloat(key string, def float32) float32 {
	if v, ok := u.FloatProps[key]; ok {
		return v
	}
	return def
}

func (u *Usage) SetString(key, v string) *Usage {
	if u.StringProps == nil {
		u.StringProps = make(map[string]string)
	}
	u.StringProps[key] = v
	return u
}

func (u *Usage) SetInt(key string, v int) *Usage {
	if u.IntProps == nil {
		u.IntProps = make(map[string]int)
	}
	u.IntProps[key] = v
	return u
}

func (u *Usage) SetBool(key string, v bool) *Usage {
	if u.BoolProps == nil {
		u.BoolProps = make(map[string]bool)
	}
	u.BoolProps[key] = v
	return u
}

func (u *Usage) SetFloat(key string, v float32) *Usage {
	if u.FloatProps == nil {
		u.FloatProps = make(map[string]float32)
	}
	u.FloatProps[key] = v
	return u
}

// FenceTimeout returns the configured bounded fence wait.
func (u *Usage) FenceTimeout() time.Duration {
	ms := u.GetInt(UsageFenceTimeout, 0)
	if ms <= 0 {
		return defaultFenceTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// Print writes the usage chain to w.
func (u *Usage) Print(w io.Writer) {
	for cur := u; cur != nil; cur = cur.Linked {
		fmt.Fprintf(w, "%s: strings=%v ints=%v bools=%v floats=%v\n",
			cur.Name, cur.StringProps, cur.IntProps, cur.BoolProps, cur.FloatProps)
	}
}
