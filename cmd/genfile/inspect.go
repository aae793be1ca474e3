package main

import (
	"context"
	"fmt"

	"github.com/carbocation/genfile"
	"github.com/carbocation/genfile/bgen"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// report describes one input for the inspect command.
type report struct {
	Path     string   `yaml:"path"`
	Source   string   `yaml:"source"`
	Samples  uint32   `yaml:"samples"`
	Variants *int     `yaml:"variants,omitempty"`
	BGEN     *header  `yaml:"bgen,omitempty"`
	First    []string `yaml:"first_variants,omitempty"`
}

type header struct {
	Layout     string   `yaml:"layout"`
	Compressed bool     `yaml:"compressed"`
	Magic      string   `yaml:"magic"`
	FreeData   string   `yaml:"free_data,omitempty"`
	SampleIDs  []string `yaml:"sample_ids,omitempty"`
	MoreIDs    int      `yaml:"more_sample_ids,omitempty"`
}

func (a *app) inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <input>...",
		Short: "Describe inputs as YAML",
		Example: `  genfile inspect data.bgen
  genfile inspect --variants 10 --samples 20 gs://bucket/data.bgen`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reports []report
			for _, path := range args {
				r, err := a.inspect(cmd.Context(), expandHome(path))
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}
			out, err := yaml.Marshal(reports)
			if err != nil {
				return fmt.Errorf("marshaling report: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().Int("variants", 0, "List the first N variants")
	cmd.Flags().Int("samples", 10, "List at most N sample identifiers")
	return cmd
}

func (a *app) inspect(ctx context.Context, path string) (report, error) {
	opts, err := a.openOptions()
	if err != nil {
		return report{}, err
	}
	src, err := genfile.Open(ctx, path, opts)
	if err != nil {
		return report{}, err
	}
	defer src.Close()

	r := report{Path: path, Source: src.Spec(), Samples: src.NumberOfSamples()}
	if n, ok := src.TotalNumberOfSNPs(); ok {
		r.Variants = &n
	}
	if cached, ok := src.(*genfile.CachingSource); ok {
		if b, ok := cached.Unwrap().(*bgen.Source); ok {
			r.BGEN = describeBGEN(b, a.v.GetInt("samples"))
		}
	}

	limit := a.v.GetInt("variants")
	for len(r.First) < limit {
		id, err := src.GetIdentifyingData()
		if err == genfile.ErrExhausted {
			break
		}
		if err != nil {
			return r, err
		}
		r.First = append(r.First, id.String())
		if err := src.IgnoreProbabilityData(); err != nil {
			return r, err
		}
	}
	return r, nil
}

func describeBGEN(b *bgen.Source, maxSamples int) *header {
	h := b.Header()
	d := &header{
		Layout:     h.Layout().String(),
		Compressed: h.Flags.Compressed(),
		Magic:      fmt.Sprintf("%q", h.Magic[:]),
		FreeData:   h.FreeData,
	}
	ids := bgen.SampleIDs(b.Samples())
	if maxSamples >= 0 && len(ids) > maxSamples {
		d.MoreIDs = len(ids) - maxSamples
		ids = ids[:maxSamples]
	}
	d.SampleIDs = ids
	return d
}
