package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/moffa90/go-dcboot/board"
	"github.com/moffa90/go-dcboot/bootloader"
	"github.com/moffa90/go-dcboot/flash"
	"github.com/moffa90/go-dcboot/image"
	"github.com/moffa90/go-dcboot/metrics"
	"github.com/moffa90/go-dcboot/partition"
	"github.com/moffa90/go-dcboot/sim"
	"github.com/moffa90/go-dcboot/watchdog"
)

var simCmd = &cli.Command{
	Name:  "sim",
	Usage: "Drive a simulated device whose flash is kept in DCBOOT_STORE",
	Subcommands: []*cli.Command{
		simBootCmd,
		simWriteCmd("flash-active", "Factory-program an image into the active partition", partition.RoleActive),
		simWriteCmd("write-staging", "Write an image into the staging partition", partition.RoleStaging),
		simRequestUpdateCmd,
		simConfirmCmd,
		simFailCmd,
		simStatusCmd,
	},
}

var simBootCmd = &cli.Command{
	Name:  "boot",
	Usage: "Reset the device and run the boot manager",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "reason",
			Value: watchdog.ReasonPowerOn.String(),
			Usage: "Reset reason: power-on, watchdog, debugger, pin, software, unknown",
		},
	},
	Action: func(ctx *cli.Context) error {
		reason, err := watchdog.ParseResetReason(ctx.String("reason"))
		if err != nil {
			return err
		}

		boot, err := getBootConfig()
		if err != nil {
			return err
		}

		return withDevice(ctx, boot, func(env *simEnv) error {
			env.dev.Reset(reason)
			d, err := env.dev.Boot(ctx.Context)
			if d != nil {
				fmt.Fprintf(ctx.App.Writer, "boot %s: %s in state %s", env.dev.BootID(), d.Action, d.State)
				if d.Action == bootloader.ActionJump {
					fmt.Fprintf(ctx.App.Writer, ", running %s", d.Active)
				}
				fmt.Fprintln(ctx.App.Writer)
			}
			return err
		})
	},
}

func simWriteCmd(name, usage string, role partition.Role) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<image>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected one image path")
			}
			img, err := os.ReadFile(ctx.Args().First())
			if err != nil {
				return err
			}

			return withDevice(ctx, nil, func(env *simEnv) error {
				if role == partition.RoleActive {
					return env.dev.WriteActive(img)
				}
				return env.dev.WriteStaging(img)
			})
		},
	}
}

var simRequestUpdateCmd = &cli.Command{
	Name:      "request-update",
	Usage:     "Announce the image in staging for installation on the next boot",
	ArgsUsage: "<image>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected the image written to staging")
		}
		data, err := os.ReadFile(ctx.Args().First())
		if err != nil {
			return err
		}
		hdr, _, err := image.Decode(data)
		if err != nil {
			return err
		}

		return withUpdater(ctx, func(u *bootloader.Updater) error {
			return u.RequestUpdate(bootloader.StagingDescriptor{
				Version:  hdr.Version,
				Length:   hdr.Length,
				Checksum: hdr.Checksum,
			})
		})
	},
}

var simConfirmCmd = &cli.Command{
	Name:  "confirm",
	Usage: "Confirm the running image",
	Action: func(ctx *cli.Context) error {
		return withUpdater(ctx, func(u *bootloader.Updater) error {
			return u.Confirm()
		})
	},
}

var simFailCmd = &cli.Command{
	Name:  "fail",
	Usage: "Report the unconfirmed image as broken; the next boot reverts",
	Action: func(ctx *cli.Context) error {
		return withUpdater(ctx, func(u *bootloader.Updater) error {
			return u.ReportFailure()
		})
	},
}

var simStatusCmd = &cli.Command{
	Name:  "status",
	Usage: "Print the boot record and the images in active and staging",
	Action: func(ctx *cli.Context) error {
		return withDevice(ctx, nil, func(env *simEnv) error {
			w := ctx.App.Writer
			rec, err := env.dev.Record()
			if err != nil {
				fmt.Fprintf(w, "record:  %v\n", err)
			} else {
				fmt.Fprintf(w, "record:  %s\n", rec)
			}

			for _, role := range []partition.Role{partition.RoleActive, partition.RoleStaging} {
				r, err := env.dev.Region(role)
				if err != nil {
					return err
				}
				hdr, err := image.Verify(r)
				if err != nil {
					fmt.Fprintf(w, "%-8s %v\n", role.String()+":", err)
					continue
				}
				fmt.Fprintf(w, "%-8s %s\n", role.String()+":", hdr)
			}
			return nil
		})
	},
}

// simEnv is an open simulated device backed by LevelDB.
type simEnv struct {
	cfg     *Config
	dev     *sim.Device
	metrics *metrics.Collector
}

// withDevice opens the persistent device, runs fn and closes the store.
// boot may be nil for commands that do not run the boot manager.
func withDevice(ctx *cli.Context, boot *BootConfig, fn func(*simEnv) error) (err error) {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	zl, logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	tbl := board.PartitionTable()
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(cfg.Store)), 0o755); err != nil {
		return err
	}
	store, err := flash.OpenLevelDB(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	internal, err := flash.NewDatastoreFlash(store, "internal", tbl.Internal.Capacity, tbl.Internal.SectorSize)
	if err != nil {
		return err
	}
	external, err := flash.NewDatastoreFlash(store, "external", tbl.External.Capacity, tbl.External.SectorSize)
	if err != nil {
		return err
	}

	col, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}

	opts := []sim.Option{
		sim.WithTable(tbl),
		sim.WithFlash(internal, external),
		sim.WithLogger(logger),
		sim.WithEventCallback(col.Observe),
	}
	if boot != nil {
		opts = append(opts,
			sim.WithAttemptBudget(boot.AttemptBudget),
			sim.WithWatchdogTimeout(boot.WatchdogTimeout),
		)
	}
	dev, err := sim.New(opts...)
	if err != nil {
		return err
	}

	env := &simEnv{cfg: cfg, dev: dev, metrics: col}
	if err := fn(env); err != nil {
		return err
	}
	if cfg.MetricsFile != "" {
		return col.WriteFile(cfg.MetricsFile)
	}
	return nil
}

// withUpdater runs fn with an Updater opened as the running application.
func withUpdater(ctx *cli.Context, fn func(*bootloader.Updater) error) error {
	return withDevice(ctx, nil, func(env *simEnv) error {
		u, err := env.dev.OpenUpdater()
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "state: %s\n", u.State())
		return nil
	})
}
