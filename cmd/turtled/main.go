// Command turtled executes a compiled turtle program on the simulated robot.
// It mirrors the firmware's behavior: the program runs cooperatively, every
// movement settles before the next instruction, and status changes are
// broadcast to an optional UDP listener. The pen trace can be written out as
// a PNG when the program finishes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"microturtle/internal/logger"
	"microturtle/pkg/config"
	"microturtle/pkg/motion"
	"microturtle/pkg/store"
	"microturtle/pkg/turtlegfx"
	"microturtle/pkg/utils"
	"microturtle/pkg/vm"
	"microturtle/pkg/wire"
)

func main() {
	var (
		configPath = flag.String("config", "turtle.toml", "robot configuration file")
		loadName   = flag.String("load", "", "run a saved program instead of a payload file")
		dbPath     = flag.String("db", "turtle.db", "program library used with -load")
		tracePath  = flag.String("trace", "", "write the pen trace to this PNG file")
		notifyAddr = flag.String("notify", "", "UDP address for status notifications")
		debug      = flag.Bool("debug", false, "enable debug logging")
		noColor    = flag.Bool("no-color", false, "disable colored log output")
	)
	flag.Parse()
	logger.Init(*debug, *noColor)

	payload, err := readPayload(*loadName, *dbPath)
	if err != nil {
		log.Fatal("loading program", "err", err)
	}

	prog, err := wire.DecodeProgram(payload)
	if err != nil {
		log.Fatal("decoding program", "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("loading configuration", "path", *configPath, "err", err)
	}

	left, _ := cfg.StraightSteps()
	turnLeft, _ := cfg.TurnSteps()
	sim := motion.NewSimulator(left, turnLeft)

	machine := vm.New(sim, cfg)
	runner := vm.NewRunner(machine, cfg.MovePause())

	var notifier *wire.Notifier
	if *notifyAddr != "" {
		notifier, err = wire.NewNotifier(*notifyAddr)
		if err != nil {
			log.Fatal("connecting notifier", "addr", *notifyAddr, "err", err)
		}
		defer notifier.Close()
	}

	done := make(chan vm.Status, 4)
	runner.OnStatus = func(st vm.Status) {
		log.Info("program status", "state", st.State, "function", st.Function, "index", st.Index)
		if notifier != nil {
			notifier.Send(wire.EncodeStatus(st))
		}
		if st.State != vm.StateRunning {
			select {
			case done <- st:
			default:
			}
		}
	}

	runner.Start()
	defer runner.Close()

	if err := runner.LoadAndRun(prog); err != nil {
		log.Fatal("program rejected", "err", err)
	}

	final := <-done
	if final.State == vm.StateError {
		log.Error("program failed", "err", machine.Err())
	}
	x, y, heading := sim.Pose()
	log.Info("run finished",
		"state", final.State, "x", fmt.Sprintf("%.1f", x), "y", fmt.Sprintf("%.1f", y),
		"heading", fmt.Sprintf("%.1f", heading), "moves", sim.DriveCount())

	if *tracePath != "" {
		if err := turtlegfx.WritePNG(*tracePath, sim.Trace(), turtlegfx.Options{}); err != nil {
			log.Fatal("writing trace", "path", *tracePath, "err", err)
		}
		log.Info("trace written", "path", *tracePath, "segments", len(sim.Trace()))
	}

	if final.State == vm.StateError {
		os.Exit(1)
	}
}

// readPayload fetches the program payload either from the library or from
// the payload file named on the command line.
func readPayload(loadName, dbPath string) ([]byte, error) {
	if loadName != "" {
		lib, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer lib.Close()
		entry, err := lib.Load(loadName)
		if err != nil {
			return nil, err
		}
		return entry.Payload, nil
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: turtled [flags] program.json")
		flag.PrintDefaults()
		os.Exit(2)
	}
	fullPath, _, err := utils.ResolvePath(flag.Arg(0))
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}
