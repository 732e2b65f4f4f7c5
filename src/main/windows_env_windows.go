//go:build windows

package main

import (
	"log"

	"golang.org/x/sys/windows"
)

var (
	shcore = windows.NewLazySystemDLL("Shcore.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")
)

// enableDPIAwareness sets per-monitor DPI awareness so captured pixels and robotgo
// clicks share one coordinate space.
func enableDPIAwareness() {
	setProcessDpiAwareness := shcore.NewProc("SetProcessDpiAwareness")
	const processPerMonitorDPIAware = 2
	if err := setProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := setProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			log.Printf("DPI: Successfully set per-monitor DPI awareness")
		} else {
			log.Printf("DPI: Failed to set per-monitor DPI awareness, error code: %d", ret)
		}
		return
	}

	log.Printf("DPI: Shcore.SetProcessDpiAwareness not available, trying fallback")
	setProcessDPIAware := user32.NewProc("SetProcessDPIAware")
	if err := setProcessDPIAware.Find(); err != nil {
		log.Printf("DPI: SetProcessDPIAware not available, no DPI awareness set")
		return
	}
	if ret, _, _ := setProcessDPIAware.Call(); ret != 0 {
		log.Printf("DPI: Successfully set system DPI awareness (fallback)")
	} else {
		log.Printf("DPI: Failed to set system DPI awareness (fallback)")
	}
}

const (
	smCXScreen        = 0
	smCYScreen        = 1
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	smCMonitors       = 80
)

func logMonitorConfiguration() {
	getSystemMetrics := user32.NewProc("GetSystemMetrics")
	metric := func(index int) int {
		ret, _, _ := getSystemMetrics.Call(uintptr(index))
		return int(int32(ret))
	}

	log.Printf("MONITOR: Detected %d monitors", metric(smCMonitors))
	log.Printf("MONITOR: Virtual screen - x:%d y:%d w:%d h:%d",
		metric(smXVirtualScreen), metric(smYVirtualScreen), metric(smCXVirtualScreen), metric(smCYVirtualScreen))
	log.Printf("MONITOR: Primary screen - w:%d h:%d", metric(smCXScreen), metric(smCYScreen))
}
