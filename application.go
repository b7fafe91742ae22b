package diesel

import (
	"fmt"

	"github.com/andewx/diesel/hal"
)

// API selects the graphics backend of a Context.
type API uint8

const (
	APINone API = iota
	APIVulkan
	// APIOpenGL is the legacy path. It is recognised but not supported.
	APIOpenGL
	// APIHeadless runs on the simulated GPU of backend/headless.
	APIHeadless
)

func (a API) String() string {
	switch a {
	case APINone:
		return "none"
	case APIVulkan:
		return "vulkan"
	case APIOpenGL:
		return "opengl"
	case APIHeadless:
		return "headless"
	}
	return fmt.Sprintf("API(%d)", uint8(a))
}

type Version struct {
	Major, Minor, Patch uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ClientInfo describes the application bringing up a Context.
type ClientInfo struct {
	Name    string
	Version Version
	// Window is presented to when set. A nil Window gives an offscreen
	// context.
	Window hal.Window
}

// EngineInfo describes the engine built on diesel.
type EngineInfo struct {
	Name    string
	Version Version
}

var DefaultEngineInfo = EngineInfo{Name: "diesel", Version: Version{Major: 0, Minor: 3}}
