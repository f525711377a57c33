package main

import (
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/moffa90/go-dcboot/board"
	"github.com/moffa90/go-dcboot/partition"
)

var partitionsCmd = &cli.Command{
	Name:  "partitions",
	Usage: "Print the compiled-in partition table",
	Action: func(ctx *cli.Context) error {
		tbl := board.PartitionTable()
		if err := tbl.Validate(); err != nil {
			return err
		}
		renderTable(ctx, tbl)
		return nil
	},
}

func renderTable(ctx *cli.Context, tbl partition.Table) {
	t := table.NewWriter()
	t.SetOutputMirror(ctx.App.Writer)
	t.SetTitle("revision %s", tbl.Revision)
	t.AppendHeader(table.Row{"Name", "Role", "Device", "Start", "End", "Size"})

	for _, p := range tbl.Partitions {
		t.AppendRow(table.Row{
			p.Name,
			p.Role.String(),
			p.Device.String(),
			hex(p.Base),
			hex(p.End()),
			humanize.IBytes(uint64(p.Length)),
		})
	}

	t.AppendFooter(table.Row{
		"", "", "block size", "", "",
		humanize.IBytes(uint64(tbl.BlockSize())),
	})
	t.Render()
}
