package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-stencil-odf/pkg/stencil"
)

// renderOptions are the flags of render and watch.
type renderOptions struct {
	template        string
	data            string
	output          string
	images          []string
	ignoreUndefined bool
	escapeFalse     bool
	keepSoftBreaks  bool
}

func (o *renderOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.template, "template", "t", "", "template document (odt, ods)")
	f.StringVarP(&o.data, "data", "d", "", "data file (json, yaml, toml; - for JSON on stdin)")
	f.StringVarP(&o.output, "output", "o", "", "output document")
	f.StringArrayVar(&o.images, "image", nil, "static image as name=path (repeatable)")
	f.BoolVar(&o.ignoreUndefined, "ignore-undefined", false, "render undefined names as empty text")
	f.BoolVar(&o.escapeFalse, "escape-false", false, "render false values as \"false\"")
	f.BoolVar(&o.keepSoftBreaks, "keep-soft-breaks", false, "keep soft page breaks")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("output")
}

// templateOptions turns explicitly set flags into template options; unset
// flags leave the configuration values alone.
func (o *renderOptions) templateOptions(cmd *cobra.Command) []stencil.Option {
	var opts []stencil.Option
	if cmd.Flags().Changed("ignore-undefined") {
		opts = append(opts, stencil.WithIgnoreUndefined(o.ignoreUndefined))
	}
	if cmd.Flags().Changed("escape-false") {
		opts = append(opts, stencil.WithEscapeFalse(o.escapeFalse))
	}
	if cmd.Flags().Changed("keep-soft-breaks") {
		opts = append(opts, stencil.WithSoftBreakRemoval(!o.keepSoftBreaks))
	}
	return opts
}

// renderOnce opens the template, binds static images and renders data to
// the output file.
func renderOnce(engine *stencil.Engine, o *renderOptions, opts []stencil.Option, data stencil.TemplateData) error {
	images, err := parseImageFlags(o.images)
	if err != nil {
		return err
	}

	tmpl, err := engine.Open(o.template, o.output, opts...)
	if err != nil {
		return err
	}
	defer tmpl.Close()

	for name, path := range images {
		if err := tmpl.SetImageFile(name, path); err != nil {
			return err
		}
	}
	return tmpl.Render(data)
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	o := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template with data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := o.templateOptions(cmd)
			data, err := loadDataFile(o.data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			engine := g.engine()
			defer engine.Close()

			if err := renderOnce(engine, o, opts, data); err != nil {
				return err
			}
			stencil.GetLogger().Info().Str("template", o.template).Str("output", o.output).Msg("rendered")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", o.output)
			return err
		},
	}
	o.bind(cmd)
	return cmd
}
