package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/merkez"
)

// facetFlags collects repeated `-facet key=value` flags, in order.
type facetFlags []struct{ key, value string }

func (f *facetFlags) String() string {
	parts := make([]string, 0, len(*f))
	for _, opt := range *f {
		parts = append(parts, opt.key+"="+opt.value)
	}
	return strings.Join(parts, " ")
}

func (f *facetFlags) Set(s string) error {
	i := strings.IndexByte(s, '=')
	if i <= 0 {
		return errors.Errorf("%q: expected KEY=VALUE", s)
	}
	*f = append(*f, struct{ key, value string }{strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])})
	return nil
}

func (cli *commandLine) listFacets() {
	for _, sec := range cli.catalog.Sections {
		cli.printf("%s (%s)\n", sec.Title, sec.ID)
		for _, opt := range sec.Options {
			cli.printf("  %s=%s\t%s\n", opt.Key, opt.Value, opt.Label)
		}
	}
}

func (cli *commandLine) browse(ctx context.Context, selection facetFlags) error {
	b := cli.listingSvc.NewBrowser(ctx, core.Anonymous)
	defer b.Close()

	for _, opt := range selection {
		if _, ok := cli.catalog.Section(opt.key); !ok {
			cli.warnf("%s: unknown facet", opt.key)
		} else if !cli.catalog.Knows(opt.key, opt.value) {
			if sug, ok := cli.catalog.Suggest(opt.key, opt.value); ok {
				cli.warnf("%s=%s: unknown option, did you mean %q?", opt.key, opt.value, sug.Value)
			} else {
				cli.warnf("%s=%s: unknown option", opt.key, opt.value)
			}
		}
		b.Toggle(opt.key, opt.value)
	}
	if len(selection) == 0 {
		b.Refresh()
	}
	b.Wait()

	res := b.Latest()
	if res.Err != nil {
		return res.Err
	}
	if len(res.Page.Rejected) > 0 {
		cli.warnf("%d invalid record(s) left out", len(res.Page.Rejected))
	}
	cli.printf("%d merkez\n", len(res.Page.Merkez))

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, m := range res.Page.Merkez {
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Kind, joinSubjects(m.Subjects), priceRange(m))
	}
	return w.Flush()
}

func (cli *commandLine) show(ctx context.Context, id int) error {
	m, err := cli.listingSvc.Get(ctx, core.Anonymous, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "#%d\t%s\n", m.ID, m.Name)
	fmt.Fprintf(w, "type\t%s\n", m.Kind)
	for _, sec := range cli.catalog.Sections {
		if values := m.Options()[sec.ID]; len(values) > 0 && sec.ID != merkez.FacetKind {
			fmt.Fprintf(w, "%s\t%s\n", sec.Title, strings.Join(values, ", "))
		}
	}
	fmt.Fprintf(w, "prix\t%s\n", priceRange(m))
	if m.Verified {
		fmt.Fprintf(w, "verifie\toui\n")
	}
	return w.Flush()
}

func joinSubjects(subjects []merkez.Subject) string {
	names := make([]string, 0, len(subjects))
	for _, s := range subjects {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func priceRange(m merkez.Merkez) string {
	switch {
	case !m.PriceMin.Valid && !m.PriceMax.Valid:
		return "-"
	case !m.PriceMax.Valid || m.PriceMin.Int == m.PriceMax.Int:
		return fmt.Sprintf("%d €", m.PriceMin.Int)
	case !m.PriceMin.Valid:
		return fmt.Sprintf("%d €", m.PriceMax.Int)
	default:
		return fmt.Sprintf("%d-%d €", m.PriceMin.Int, m.PriceMax.Int)
	}
}
