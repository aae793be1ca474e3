package main

import (
	"fmt"

	"github.com/carbocation/genfile/bgen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) indexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file.bgen>",
		Short: "Write a .bgi index for an uncompressed local BGEN file",
		Example: `  genfile index data.bgen
  genfile index --bgi /tmp/data.bgi --show 30 data.bgen`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := expandHome(args[0])
			idxPath := a.v.GetString("bgi")
			if idxPath == "" {
				idxPath = path + ".bgi"
			}
			idxPath = expandHome(idxPath)

			opts, err := a.openOptions()
			if err != nil {
				return err
			}
			n, err := bgen.IndexFile(cmd.Context(), path, idxPath, opts)
			if err != nil {
				return err
			}
			a.logger.Info("indexed bgen",
				zap.String("path", path),
				zap.String("index", idxPath),
				zap.Int("variants", n),
				zap.String("driver", bgen.WhichSQLiteDriver()),
			)

			show := a.v.GetInt("show")
			if show <= 0 {
				return nil
			}
			bgi, err := bgen.OpenBGI(idxPath)
			if err != nil {
				return err
			}
			defer bgi.Close()
			variants, err := bgi.Variants()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, v := range variants {
				if i >= show {
					break
				}
				fmt.Fprintf(out, "%d) %s %d %s %s %s offset=%d size=%d\n",
					i, v.Chromosome, v.Position, v.RSID, v.Allele1, v.Allele2, v.FileStartPosition, v.SizeInBytes)
			}
			return nil
		},
	}
	cmd.Flags().String("bgi", "", "Index file to write (default: <file.bgen>.bgi)")
	cmd.Flags().Int("show", 0, "Print the first N index entries")
	return cmd
}
