// Main, user facing mode of operation: BLE peripheral plus panel tick loop.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/temoto/hwmon-panel/cmd/hwmon-panel/subcmd"
	"github.com/temoto/hwmon-panel/internal/state"
)

var Mod = subcmd.Mod{Name: "run", Usage: "advertise telemetry service and drive display (default)", Main: Main}

const stopTimeout = 5 * time.Second

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		g.Log.Infof("signal=%s stopping", sig)
		g.Stop()
	}()

	g.Run()
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("panel init complete tick=%v", g.Config.Tick())

	<-g.Alive.StopChan()
	subcmd.SdNotify(daemon.SdNotifyStopping)
	if !g.StopWait(stopTimeout) {
		g.Log.Errorf("stop timeout=%v", stopTimeout)
	}
	return nil
}
