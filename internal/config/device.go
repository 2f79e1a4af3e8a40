package config

import (
	"os"
	"strings"

	"imaged/internal/common/fsutil"
)

// nvidiaMarkers are paths present when the NVIDIA driver is loaded.
var nvidiaMarkers = []string{"/dev/nvidiactl", "/proc/driver/nvidia/version"}

// AcceleratorAvailable reports whether a CUDA device appears usable.
func AcceleratorAvailable() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	for _, p := range nvidiaMarkers {
		if fsutil.PathExists(p) {
			return true
		}
	}
	return false
}

// ResolveDevice turns the configured preference into a concrete device.
// force_cpu wins; auto and cuda fall back to cpu when no accelerator is found.
func (c *Config) ResolveDevice(accel func() bool) string {
	if c.ForceCPU {
		return DeviceCPU
	}
	if accel == nil {
		accel = AcceleratorAvailable
	}
	switch strings.ToLower(c.Device) {
	case DeviceCPU:
		return DeviceCPU
	default:
		if accel() {
			return DeviceCUDA
		}
		return DeviceCPU
	}
}
