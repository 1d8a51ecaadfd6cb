// travelstore is an interactive shell over a travel package data file.
//
// Usage:
//
//	travelstore [-config travelstore.yaml] [-data path.dat] [-verbose] [command args...]
//
// With a command in arguments it runs that command and exits, otherwise
// it reads commands from stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/kjk/travelstore/config"
	"github.com/kjk/travelstore/log"
)

var (
	flgConfig  string
	flgData    string
	flgIndex   string
	flgVerbose bool
)

func parseFlags() {
	flag.StringVar(&flgConfig, "config", "", "path to config file (default: "+config.DefaultName+" if exists)")
	flag.StringVar(&flgData, "data", "", "path to data file, overrides config")
	flag.StringVar(&flgIndex, "index", "", "index kind: sorted or btree, overrides config")
	flag.BoolVar(&flgVerbose, "verbose", false, "verbose logging")
	flag.Parse()
}

func main() {
	parseFlags()

	cfg, err := config.Load(flgConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}
	if flgData != "" {
		cfg.Store.Path = flgData
	}
	if flgIndex != "" {
		cfg.Store.Index = flgIndex
	}
	log.Verbose = cfg.Log.Verbose || flgVerbose
	if cfg.Log.Dir != "" {
		log.Init(&log.Config{Dir: cfg.Log.Dir})
		defer log.Close()
	}

	s, err := cfg.Store.NewStore()
	if err != nil {
		log.Errorf("failed to open store: %s", err)
		log.Close()
		os.Exit(1)
	}
	log.Verbosef("opened '%s', %d records, index: %s\n", s.Path(), s.Len(), s.Index)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sh := NewShell(s, cfg, os.Stdout)
	if flag.NArg() > 0 {
		_, err = sh.Exec(ctx, flag.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			log.Close()
			os.Exit(1)
		}
		return
	}
	fmt.Printf("travelstore: '%s', %d records. Type 'help' for commands.\n", s.Path(), s.Len())
	err = sh.Run(ctx, os.Stdin)
	if err != nil {
		log.Errorf("%s", err)
	}
}
