package main

import (
	"context"
	"flag"
	"os"
	"path"

	"Pasture/internal/cli"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range cli.Commands {
		commander.Register(c, "jobs")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
