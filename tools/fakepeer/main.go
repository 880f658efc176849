// Package main implements fakepeer, a websocket peer that answers the
// connection, session and link lifecycle of amqp-client-go for integration
// testing. It can offer or withhold the anonymous relay and refuse addresses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Thejuampi/amqp-client-go/internal/logging"
)

type cliFlags struct {
	config string
	addr   string
	relay  bool
	reject string
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *cliFlags) {
	flags := &cliFlags{}
	flagSet := flag.NewFlagSet("fakepeer", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&flags.config, "config", "", "TOML configuration file")
	flagSet.StringVar(&flags.addr, "addr", "", "listen address, overrides the config file")
	flagSet.BoolVar(&flags.relay, "anonymous-relay", false, "offer the ANONYMOUS-RELAY capability")
	flagSet.StringVar(&flags.reject, "reject", "", "comma-separated addresses refused with amqp:not-found")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "fakepeer - websocket AMQP lifecycle peer for integration testing\n\n")
		fmt.Fprintf(stderr, "Usage: %s [flags]\n\n", filepath.Base(os.Args[0]))
		flagSet.PrintDefaults()
	}
	return flagSet, flags
}

func flagSetByUser(flagSet *flag.FlagSet, name string) bool {
	var found bool
	flagSet.Visit(func(current *flag.Flag) {
		if current.Name == name {
			found = true
		}
	})
	return found
}

func resolveConfig(flagSet *flag.FlagSet, flags *cliFlags) (Config, error) {
	config := DefaultConfig()
	if flags.config != "" {
		loaded, err := loadConfig(flags.config)
		if err != nil {
			return Config{}, err
		}
		config = loaded
	}
	if flags.addr != "" {
		config.Addr = flags.addr
	}
	if flagSetByUser(flagSet, "anonymous-relay") {
		config.AnonymousRelay = flags.relay
	}
	if flags.reject != "" {
		for _, address := range strings.Split(flags.reject, ",") {
			if address = strings.TrimSpace(address); address != "" {
				config.RejectAddresses = append(config.RejectAddresses, address)
			}
		}
	}
	config.Log = logging.ApplyEnv(config.Log)
	return config, config.Validate()
}

// run returns the process exit code. Deferred cleanup has run by the time it
// returns.
func run(args []string, stderr io.Writer) int {
	flagSet, flags := newFlagSet(stderr)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	config, err := resolveConfig(flagSet, flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, closer, err := logging.New("fakepeer", config.Log)
	if err != nil {
		fmt.Fprintf(stderr, "fakepeer: logging: %v\n", err)
		return 2
	}
	defer closer.Close()

	listener, err := net.Listen("tcp", config.Addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", config.Addr).Msg("listen failed")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, listener, config, logger); err != nil {
		logger.Error().Err(err).Msg("fakepeer failed")
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}
