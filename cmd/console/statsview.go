package main

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	statsAddress = "localhost:12600"
	statsURL     = "/debug/statsview"
)

// launchStats serves runtime charts for the emulator process in the
// background.
func launchStats(output io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(statsAddress))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s%s\n", statsAddress, statsURL)
}
