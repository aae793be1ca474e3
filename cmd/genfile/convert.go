package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/carbocation/genfile"
	"github.com/carbocation/genfile/bgen"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <input>... -o <output.bgen>",
		Short: "Write the selected variants of the inputs to a BGEN file",
		Example: `  genfile convert -o all.bgen chr1.gen.gz chr2.gen.gz
  genfile convert --sort --index -o sorted.bgen unsorted.bgen
  genfile convert --join --layout v1.0 -o joined.bgen a.bgen b.bgen`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := a.v.GetString("output")
			if output == "" {
				return fmt.Errorf("an output file is required (-o)")
			}
			output = expandHome(output)

			src, err := a.openSelection(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer src.Close()

			opts, err := a.sinkOptions(src.NumberOfSamples(), output)
			if err != nil {
				return err
			}
			var sink bgen.VariantWriter
			if a.v.GetBool("sort") {
				sink, err = bgen.NewSortingSink(output, opts)
			} else {
				sink, err = bgen.NewSink(output, opts)
			}
			if err != nil {
				return err
			}

			n, err := bgen.WriteFromSource(sink, src)
			if err != nil {
				sink.Close()
				return err
			}
			if err := sink.Close(); err != nil {
				return err
			}
			a.logger.Info("wrote bgen",
				zap.String("path", output),
				zap.Int("variants", n),
				zap.Uint32("samples", src.NumberOfSamples()),
				zap.String("source", src.Spec()),
			)
			return nil
		},
	}
	addSelectionFlags(cmd)
	flags := cmd.Flags()
	flags.StringP("output", "o", "", "Output BGEN file")
	flags.String("layout", "v1.1", "BGEN layout: v1.0 or v1.1")
	flags.Bool("uncompressed", false, "Store probabilities without zlib compression")
	flags.Bool("multi-character-alleles", true, "Allow alleles longer than one base in layout v1.0")
	flags.Bool("sort", false, "Sort variants by position, rsid and alleles")
	flags.Bool("index", false, "Also write a .bgi index next to the output")
	flags.Bool("strict", false, "Fail on probabilities outside [0, 1] instead of clamping them")
	flags.String("free-data", "", "Free data to store in the header")
	flags.String("sample-ids", "", "File with one sample identifier per line")
	return cmd
}

func (a *app) sinkOptions(nSamples uint32, output string) (bgen.SinkOptions, error) {
	opts := bgen.SinkOptions{
		NumberOfSamples: nSamples,
		FreeData:        a.v.GetString("free-data"),
		Strict:          a.v.GetBool("strict"),
		Logger:          a.logger,
	}

	switch layout := a.v.GetString("layout"); layout {
	case "v1.1", "1.1":
		opts.Flags = opts.Flags.WithLayout(bgen.LayoutV11)
	case "v1.0", "1.0":
		opts.Flags = opts.Flags.WithLayout(bgen.LayoutV10)
		if a.v.GetBool("multi-character-alleles") {
			opts.Flags |= bgen.FlagMultiCharacterAlleles
		}
	default:
		return opts, fmt.Errorf("unknown layout %q", layout)
	}
	if !a.v.GetBool("uncompressed") {
		opts.Flags |= bgen.FlagCompressed
	}
	if a.v.GetBool("index") {
		opts.IndexPath = output + ".bgi"
	}

	if path := a.v.GetString("sample-ids"); path != "" {
		ids, err := readLines(expandHome(path))
		if err != nil {
			return opts, err
		}
		opts.SampleIDs = ids
	}
	return opts, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &genfile.ResourceError{Path: path, Err: err}
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
