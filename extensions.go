package diesel

import (
	"strings"

	"github.com/andewx/diesel/hal"
)

// Device extensions enabled when the device offers them.
var wantedDeviceExtensions = []string{
	// Must be enabled on portability implementations such as MoltenVK.
	"VK_KHR_portability_subset",
}

// deviceExtensions sorts the extensions a device is opened with into those
// it must have and those it may have.
type deviceExtensions struct {
	wanted   []string
	required []string
	actual   []string
}

func newDeviceExtensions(a hal.Adapter, presenting bool) (deviceExtensions, error) {
	actual, err := a.Extensions()
	if err != nil {
		return deviceExtensions{}, err
	}
	e := deviceExtensions{wanted: wantedDeviceExtensions, actual: actual}
	if presenting {
		e.required = []string{hal.DeviceExtensionSwapchain}
	}
	return e, nil
}

func (e deviceExtensions) HasRequired() (bool, []string) {
	missing := missingExtensions(e.actual, e.required)
	return len(missing) == 0, missing
}

func (e deviceExtensions) HasWanted() (bool, []string) {
	missing := missingExtensions(e.actual, e.wanted)
	return len(missing) == 0, missing
}

// Enabled returns the required extensions followed by the wanted ones the
// device offers.
func (e deviceExtensions) Enabled() []string {
	out := append([]string(nil), e.required...)
	_, missing := e.HasWanted()
	for _, w := range e.wanted {
		if !containsName(missing, w) {
			out = append(out, w)
		}
	}
	return out
}

// missingExtensions returns the names in wanted that actual lacks.
func missingExtensions(actual, wanted []string) []string {
	var missing []string
	for _, w := range wanted {
		if !containsName(actual, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

func containsName(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
