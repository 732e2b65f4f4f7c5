//go:build !windows

package main

import (
	"log"

	"asteroid-miner/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	b, err := screenshot.VirtualBounds()
	if err != nil {
		log.Printf("MONITOR: could not query displays: %v", err)
		return
	}
	log.Printf("MONITOR: Virtual screen - x:%d y:%d w:%d h:%d", b.Min.X, b.Min.Y, b.Dx(), b.Dy())
}
