package main

import (
	"github.com/urfave/cli/v3"
)

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a config file",
		Value:   "config.toml",
	}
}

func verboseFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "enable debug logging",
	}
}

// register builds the CLI command tree.
func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		r.statusCommand(),
		r.loadCommand(),
		r.searchCommand(),
		r.cacheCommand(),
		r.setupCommand(),
	}
}

func (r *Runner) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show pending changes between the master list and stored data",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "full",
				Usage: "resolve ids and list every change instead of counts",
			},
		},
		Action: r.Status,
	}
}

func (r *Runner) loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Apply master list changes to the stored collection",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "dry",
				Usage: "report changes without fetching or saving",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "ignore cached responses and re-fetch from the API",
			},
		},
		Action: r.Load,
	}
}

func (r *Runner) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Fuzzy search the stored collection",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			configFlag(),
			verboseFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print full records as JSON",
			},
		},
		Action: r.Search,
	}
}

func (r *Runner) cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or prune the lookup caches",
		Commands: []*cli.Command{
			{
				Name:   "ids",
				Usage:  "List cached name to id resolutions",
				Flags:  []cli.Flag{configFlag(), verboseFlag()},
				Action: r.CacheIDs,
			},
			{
				Name:  "forget",
				Usage: "Drop a cached name resolution",
				Flags: []cli.Flag{
					configFlag(),
					verboseFlag(),
					&cli.StringFlag{
						Name:     "name",
						Usage:    "exact name whose resolution to drop",
						Required: true,
					},
				},
				Action: r.CacheForget,
			},
		},
	}
}

func (r *Runner) setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a starter config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "where to write the config file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}
