package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

const usage = `Usage:
  topreduce [run] -path <dir> -workers <n> -out <name> [flags]
  topreduce [run] <input-dir> <workers> <output-name> [flags]
  topreduce history [-history <db>] [-limit <n>]
  topreduce show [-history <db>] [-id <run-id>]
  topreduce delete [-history <db>] -id <run-id>

Run "topreduce <command> -h" for the flags of a command.
`

var commands = map[string]func(ctx context.Context, log *logrus.Logger, args []string) error{
	"run":     runCommand,
	"history": historyCommand,
	"show":    showCommand,
	"delete":  deleteCommand,
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, args := "run", os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "help", "-h", "-help", "--help":
			fmt.Fprint(os.Stderr, usage)
			return
		}
		if _, ok := commands[args[0]]; ok {
			name, args = args[0], args[1:]
		}
	}

	if err := commands[name](ctx, log, args); err != nil {
		stop()
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("[CLI] %s failed: %v", name, err)
	}
}
