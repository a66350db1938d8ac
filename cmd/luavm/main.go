package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/uganh16/lua51vm/internal/config"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-config file] [-v n] run <chunk> [args...]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s list <chunk>...\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	configFile := flag.String("config", "", "configuration file (.toml or .yaml)")
	verbosity := flag.Int("v", -1, "log verbosity, overrides the configuration")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	var logFile *string
	if cfg.Log.File != "" {
		logFile = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logFile)

	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "run":
		os.Exit(run(cfg, args[0], args[1:]))
	case "list":
		status := 0
		for _, file := range args {
			if err := listFile(os.Stdout, file); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
				status = 1
			}
		}
		os.Exit(status)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

/* colour for error output, when stderr is a terminal */
func errorColour() (string, string) {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "\x1b[31m", "\x1b[0m"
	}
	return "", ""
}
