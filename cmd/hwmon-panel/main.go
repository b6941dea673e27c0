package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/hwmon-panel/cmd/hwmon-panel/bench"
	"github.com/temoto/hwmon-panel/cmd/hwmon-panel/run"
	"github.com/temoto/hwmon-panel/cmd/hwmon-panel/subcmd"
	"github.com/temoto/hwmon-panel/internal/state"
	"github.com/temoto/hwmon-panel/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	run.Mod,
	bench.Mod,
}

func main() {
	flagset := flag.NewFlagSet("hwmon-panel", flag.ExitOnError)
	flagConfig := flagset.String("config", "hwmon-panel.hcl", "")
	flagset.Usage = func() {
		fmt.Fprintf(flagset.Output(), "Usage: %s [option] command\n\nCommands:\n", flagset.Name())
		for _, m := range modules {
			fmt.Fprintf(flagset.Output(), "  %-8s %s\n", m.Name, m.Usage)
		}
		fmt.Fprintf(flagset.Output(), "\nOptions:\n")
		flagset.PrintDefaults()
	}
	if err := flagset.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	command := run.Mod.Name
	if flagset.NArg() > 0 {
		command = flagset.Arg(0)
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		flagset.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") {
		// under systemd assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	g := state.NewGlobal(log, BuildVersion)
	ctx := g.Context(context.Background())

	config := state.MustReadConfigFile(log, *flagConfig)
	log.Debugf("config=%+v", config)

	if err := mod.Main(ctx, config); err != nil {
		g.Fatal(errors.Annotatef(err, "command=%s", mod.Name))
	}
}
