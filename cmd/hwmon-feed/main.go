// Host side feeder: collects PC metrics and writes them to the panel over BLE.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hwmon-panel/internal/gatt"
	"github.com/temoto/hwmon-panel/internal/hostmetrics"
	"github.com/temoto/hwmon-panel/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

var log = log2.NewStderr(log2.LInfo)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagName := cmdline.String("name", gatt.DefaultDeviceName, "panel advertised name")
	flagInterval := cmdline.Duration("interval", hostmetrics.DefaultInterval, "")
	flagScan := cmdline.Duration("scan-timeout", 30*time.Second, "")
	flagGPU := cmdline.Int("gpu", 0, "NVML device index, -1 to disable")
	flagDebug := cmdline.Bool("debug", false, "")
	_ = cmdline.Parse(os.Args[1:])

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		log.SetFlags(log2.LServiceFlags)
	}
	if *flagDebug {
		log.SetLevel(log2.LDebug)
	}
	log.Infof("hwmon-feed version=%s", BuildVersion)

	var gpu hostmetrics.GPU
	if *flagGPU >= 0 {
		g, err := hostmetrics.OpenNvml(*flagGPU)
		if err != nil {
			log.Errorf("GPU metrics disabled: %v", err)
		} else {
			gpu = g
			defer g.Close()
		}
	}
	collector := hostmetrics.NewCollector(nil, gpu, log)

	central, err := gatt.Dial(nil, *flagName, *flagScan, log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer central.Close()
	log.Infof("connected to %q, sending every %v", *flagName, *flagInterval)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	a := alive.NewAlive()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		a.Stop()
	}()

	a.Add(1)
	if err := hostmetrics.Feed(a, collector, central, *flagInterval); err != nil {
		log.Error(errors.ErrorStack(err))
		central.Close()
		os.Exit(1)
	}
}
