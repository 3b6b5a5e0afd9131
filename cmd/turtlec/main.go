// Command turtlec assembles a turtle assembly listing into the JSON payload
// the robot accepts, and can file the result in the program library.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"microturtle/internal/logger"
	"microturtle/pkg/asm"
	"microturtle/pkg/store"
	"microturtle/pkg/utils"
	"microturtle/pkg/wire"
)

func main() {
	var (
		outPath  = flag.String("o", "", "write the payload to this file instead of stdout")
		saveName = flag.String("save", "", "also save the program under this name")
		dbPath   = flag.String("db", "turtle.db", "program library used with -save")
		debug    = flag.Bool("debug", false, "enable debug logging")
		noColor  = flag.Bool("no-color", false, "disable colored log output")
	)
	flag.Parse()
	logger.Init(*debug, *noColor)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: turtlec [flags] program.tasm")
		flag.PrintDefaults()
		os.Exit(2)
	}

	fullPath, _, err := utils.ResolvePath(flag.Arg(0))
	if err != nil {
		log.Fatal("resolving source path", "err", err)
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatal("reading source", "err", err)
	}

	prog, errs := asm.Assemble(string(source))
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", fullPath, e)
		}
		os.Exit(1)
	}

	payload, err := wire.EncodeProgram(prog)
	if err != nil {
		log.Fatal("encoding program", "err", err)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, payload, 0o644); err != nil {
			log.Fatal("writing payload", "err", err)
		}
		log.Info("payload written", "path", *outPath, "bytes", len(payload))
	} else {
		fmt.Println(string(payload))
	}

	if *saveName != "" {
		lib, err := store.Open(*dbPath)
		if err != nil {
			log.Fatal("opening program library", "err", err)
		}
		defer lib.Close()
		if err := lib.Save(*saveName, string(source), payload); err != nil {
			log.Fatal("saving program", "name", *saveName, "err", err)
		}
		log.Info("program saved", "name", *saveName, "db", *dbPath)
	}
}
