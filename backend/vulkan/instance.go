// Package vulkan implements the hal contract on top of vulkan-go.
//
// The Vulkan loader must be initialised before NewInstance is called, see
// window.InitVulkanLoader.
package vulkan

import (
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Config selects the instance layers and extensions.
type Config struct {
	AppName    string
	EngineName string
	// Validation enables the Khronos validation layer when it is installed
	// and routes its reports to Logger.
	Validation bool
	// Extensions are required instance extensions, usually the ones the
	// window asks for.
	Extensions []string
	Logger     *slog.Logger
}

var validationLayers = []string{
	"VK_LAYER_KHRONOS_validation",
}

type instance struct {
	handle        vk.Instance
	logger        *slog.Logger
	layers        []string
	debugCallback vk.DebugReportCallback
}

// NewInstance creates a Vulkan instance. Missing validation layers are
// logged and skipped; missing required extensions fail.
func NewInstance(cfg Config) (hal.Instance, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	available, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	required := append([]string(nil), cfg.Extensions...)
	if runtime.GOOS == "darwin" {
		required = append(required, "VK_KHR_portability_enumeration")
	}
	if cfg.Validation {
		required = append(required, "VK_EXT_debug_report")
	}
	extensions, missing := checkExisting(available, required)
	if len(missing) > 0 {
		return nil, errors.Wrapf(hal.ErrUnsupported, "vulkan: missing instance extensions %v", missing)
	}

	var layers []string
	if cfg.Validation {
		actual, err := ValidationLayers()
		if err != nil {
			return nil, err
		}
		var absent []string
		layers, absent = checkExisting(actual, validationLayers)
		if len(absent) > 0 {
			logger.Warn("validation layers not installed", "layers", absent)
		}
	}

	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		flags = vk.InstanceCreateFlags(0x00000001) // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT
	}

	var handle vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        safeString(cfg.EngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
		Flags:                   flags,
	}, nil, &handle)
	if err := newError(ret, "create instance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(handle); err != nil {
		vk.DestroyInstance(handle, nil)
		return nil, errors.Wrap(hal.ErrInitFailed, err.Error())
	}

	inst := &instance{handle: handle, logger: logger, layers: layers}
	if len(layers) > 0 {
		ret := vk.CreateDebugReportCallback(handle, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: inst.debugReport,
		}, nil, &inst.debugCallback)
		if err := newError(ret, "create debug report callback"); err != nil {
			logger.Warn("debug report callback unavailable", "err", err)
		}
	}
	logger.Info("vulkan instance created", "extensions", len(extensions), "layers", len(layers))
	return inst, nil
}

func (i *instance) Adapters() ([]hal.Adapter, error) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(i.handle, &count, nil)
	if err := newError(ret, "enumerate physical devices"); err != nil {
		return nil, err
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(i.handle, &count, gpus)
	if err := newError(ret, "enumerate physical devices"); err != nil {
		return nil, err
	}
	adapters := make([]hal.Adapter, 0, count)
	for _, gpu := range gpus[:count] {
		adapters = append(adapters, newAdapter(i, gpu))
	}
	return adapters, nil
}

func (i *instance) CreateSurface(w hal.Window) (hal.Surface, error) {
	ptr, err := w.CreateWindowSurface(i.handle, nil)
	if err != nil {
		return nil, errors.Wrap(hal.ErrSurfaceLost, err.Error())
	}
	return &surface{instance: i, handle: vk.SurfaceFromPointer(ptr)}, nil
}

func (i *instance) Destroy() {
	if i.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.handle, i.debugCallback, nil)
		i.debugCallback = vk.NullDebugReportCallback
	}
	if i.handle != nil {
		vk.DestroyInstance(i.handle, nil)
		i.handle = nil
	}
}

// debugReport routes validation layer reports to the logger.
func (i *instance) debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	attrs := []any{"layer", pLayerPrefix, "code", messageCode}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		i.logger.Error(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0,
		flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		i.logger.Warn(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		i.logger.Debug(pMessage, attrs...)
	default:
		i.logger.Info(pMessage, attrs...)
	}
	return vk.Bool32(vk.False)
}

type surface struct {
	instance *instance
	handle   vk.Surface
}

func (s *surface) Destroy() {
	if s.handle != vk.NullSurface {
		vk.DestroySurface(s.instance.handle, s.handle, nil)
		s.handle = vk.NullSurface
	}
}

// InstanceExtensions lists the instance extensions available on the platform.
func InstanceExtensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if err := newError(ret, "enumerate instance extensions"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	if err := newError(ret, "enumerate instance extensions"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// ValidationLayers lists the layers installed on the platform.
func ValidationLayers() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if err := newError(ret, "enumerate layers"); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	if err := newError(ret, "enumerate layers"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// checkExisting splits wanted into the names present in actual and the ones
// missing from it.
func checkExisting(actual, wanted []string) (existing, missing []string) {
	have := make(map[string]struct{}, len(actual))
	for _, name := range actual {
		have[name] = struct{}{}
	}
	for _, name := range wanted {
		if _, ok := have[name]; ok {
			existing = append(existing, name)
		} else {
			missing = append(missing, name)
		}
	}
	return existing, missing
}

// safeString returns s terminated with a NUL byte, as vulkan-go expects.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
