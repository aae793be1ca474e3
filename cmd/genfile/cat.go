package main

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/carbocation/genfile"
	"github.com/carbocation/pfx"
	"github.com/spf13/cobra"
)

func (a *app) catCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <input>...",
		Short: "Print variants as GEN text",
		Long: `Print the selected variants of the inputs as GEN lines:

  chromosome SNPID rsid position allele1 allele2 p11 p12 p22 ...`,
		Example: `  genfile cat data.bgen
  genfile cat --range 01:1000-2000 --no-probabilities chr1.bgen chr2.bgen
  genfile cat --join cohortA.bgen cohortB.gen.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.openSelection(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer src.Close()

			path := a.v.GetString("output")
			if path == "" || path == "-" {
				return writeGEN(cmd.OutOrStdout(), src, a.v.GetBool("no-probabilities"))
			}
			f, err := os.Create(expandHome(path))
			if err != nil {
				return &genfile.ResourceError{Path: path, Err: err}
			}
			if err := writeGEN(f, src, a.v.GetBool("no-probabilities")); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return &genfile.ResourceError{Path: path, Err: err}
			}
			return nil
		},
	}
	addSelectionFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Bool("no-probabilities", false, "Print only the identifying columns")
	return cmd
}

// writeGEN prints every remaining variant of src as one GEN line.
func writeGEN(w io.Writer, src genfile.VariantDataSource, identifiersOnly bool) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	var (
		probs []genfile.GenotypeProbabilities
		line  []byte
	)
	err := genfile.EachVariant(src, func(id *genfile.VariantIdentifyingData) error {
		line = line[:0]
		line = append(line, id.Position().Chromosome.String()...)
		line = append(line, ' ')
		line = append(line, id.SNPID().String()...)
		line = append(line, ' ')
		line = append(line, id.RSID().String()...)
		line = append(line, ' ')
		line = strconv.AppendUint(line, uint64(id.Position().Position), 10)
		for _, allele := range id.Alleles() {
			line = append(line, ' ')
			line = append(line, allele.String()...)
		}

		if identifiersOnly {
			if err := src.IgnoreProbabilityData(); err != nil {
				return err
			}
		} else {
			var err error
			if probs, err = genfile.ReadGenotypes(src, probs); err != nil {
				return err
			}
			for _, p := range probs {
				for _, v := range [3]float64{p.AA, p.AB, p.BB} {
					line = append(line, ' ')
					line = strconv.AppendFloat(line, v, 'g', 6, 64)
				}
			}
		}
		line = append(line, '\n')
		_, err := bw.Write(line)
		return err
	})
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}
	return nil
}
