package main

import (
	"context"

	"github.com/carbocation/genfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func addSelectionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Bool("join", false, "Join the inputs on shared variants (a rack) instead of concatenating them")
	flags.String("compare-fields", genfile.DefaultCompareFields, "Fields that must agree for joined variants to match")
	flags.StringSlice("range", nil, "Keep variants in chr:lo-hi (repeatable)")
	flags.StringSlice("rsid", nil, "Keep variants with these rsids (repeatable)")
	flags.StringSlice("id", nil, "Keep variants with any of these identifiers (repeatable)")
	flags.StringSlice("exclude-rsid", nil, "Drop variants with these rsids (repeatable)")
}

// selection builds the predicate described by the selection flags, or nil
// when no flag restricts the variants.
func (a *app) selection() (genfile.Predicate, error) {
	var keep []genfile.Predicate
	if ranges := a.v.GetStringSlice("range"); len(ranges) > 0 {
		var spans []genfile.Predicate
		for _, r := range ranges {
			p, err := genfile.ParseRange(r)
			if err != nil {
				return nil, err
			}
			spans = append(spans, p)
		}
		keep = append(keep, genfile.Or(spans...))
	}
	if ids := a.v.GetStringSlice("rsid"); len(ids) > 0 {
		keep = append(keep, genfile.RSIDIn(ids...))
	}
	if ids := a.v.GetStringSlice("id"); len(ids) > 0 {
		keep = append(keep, genfile.IdentifierIn(ids...))
	}
	if ids := a.v.GetStringSlice("exclude-rsid"); len(ids) > 0 {
		keep = append(keep, genfile.Not(genfile.RSIDIn(ids...)))
	}
	switch len(keep) {
	case 0:
		return nil, nil
	case 1:
		return keep[0], nil
	}
	return genfile.And(keep...), nil
}

// openSelection opens paths and applies the selection flags.
func (a *app) openSelection(ctx context.Context, paths []string) (genfile.VariantDataSource, error) {
	src, err := a.openInputs(ctx, paths, a.v.GetBool("join"), a.v.GetString("compare-fields"))
	if err != nil {
		return nil, err
	}
	predicate, err := a.selection()
	if err != nil {
		src.Close()
		return nil, err
	}
	if predicate == nil {
		return src, nil
	}
	filter, err := genfile.NewFilter(src, predicate)
	if err != nil {
		src.Close()
		return nil, err
	}
	filter.SetLogger(a.logger)
	a.logger.Info("filtered input", zap.String("summary", filter.Summary()))
	return filter, nil
}
