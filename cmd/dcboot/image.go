package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-dcboot/image"
)

var imageCmd = &cli.Command{
	Name:  "image",
	Usage: "Pack and inspect firmware images",
	Subcommands: []*cli.Command{
		imagePackCmd,
		imageInspectCmd,
	},
}

var imagePackCmd = &cli.Command{
	Name:  "pack",
	Usage: "Prepend an image header to a raw firmware binary",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:     "version",
			Required: true,
			Usage:    "Firmware version; higher versions replace lower ones",
		},
		&cli.StringFlag{
			Name:     "in",
			Required: true,
			Usage:    "Raw firmware binary",
		},
		&cli.StringFlag{
			Name:     "out",
			Required: true,
			Usage:    "Output image path",
		},
	},
	Action: func(ctx *cli.Context) error {
		payload, err := os.ReadFile(ctx.String("in"))
		if err != nil {
			return err
		}

		img := image.Build(uint32(ctx.Uint("version")), payload)
		if err := os.WriteFile(ctx.String("out"), img, 0o644); err != nil {
			return err
		}

		hdr, _, err := image.Decode(img)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "%s: %s (%s)\n",
			ctx.String("out"), hdr, humanize.IBytes(uint64(len(img))))
		return nil
	},
}

var imageInspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "Print and verify the header of an image",
	ArgsUsage: "<image>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("expected one image path")
		}

		data, err := os.ReadFile(ctx.Args().First())
		if err != nil {
			return err
		}

		hdr, _, err := image.Decode(data)
		if err != nil {
			return err
		}

		w := ctx.App.Writer
		fmt.Fprintf(w, "magic:    %s\n", hdr.Magic[:])
		fmt.Fprintf(w, "version:  %d\n", hdr.Version)
		fmt.Fprintf(w, "length:   %d (%s)\n", hdr.Length, humanize.IBytes(uint64(hdr.Length)))
		fmt.Fprintf(w, "checksum: 0x%08X (valid)\n", hdr.Checksum)
		return nil
	},
}
