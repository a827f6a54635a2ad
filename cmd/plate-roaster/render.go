package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	plateroaster "github.com/menta2k/plate-roaster"
	"github.com/menta2k/plate-roaster/internal/utils"
	"github.com/menta2k/plate-roaster/pkg/composite"
	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/processing"
	"github.com/menta2k/plate-roaster/pkg/roast"
	"github.com/menta2k/plate-roaster/pkg/types"
)

var renderOpts struct {
	plate     string
	out       string
	rating    float64
	roast     string
	severity  string
	watermark bool
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw a share image from a plate photo and a given verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		sev, ok := types.ParseSeverity(renderOpts.severity)
		if !ok {
			return fmt.Errorf("unknown severity %q, want LOW, MEDIUM or HIGH", renderOpts.severity)
		}

		processor := processing.NewProcessorWithConfig(plateroaster.ProcessingConfig(cfg))
		renderer, err := composite.NewRenderer(plateroaster.CompositeConfig(cfg),
			composite.NewAssetLoader(handle.NewStore(), processor), processor)
		if err != nil {
			return err
		}

		data, err := renderer.Render(cmd.Context(), composite.Spec{
			Severity:         sev,
			Rating:           roast.Clamp(renderOpts.rating, cfg.Roast.RatingMax),
			Roast:            renderOpts.roast,
			Plate:            renderOpts.plate,
			IncludeWatermark: renderOpts.watermark,
		})
		if err != nil {
			return err
		}

		out := renderOpts.out
		if out == "" {
			out = composite.ShareFileName
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("%s (%s)\n", out, utils.ByteSize(len(data)))
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOpts.plate, "plate", "p", "", "plate photo path or URL")
	renderCmd.Flags().StringVarP(&renderOpts.out, "out", "o", "", "output file (default "+composite.ShareFileName+")")
	renderCmd.Flags().Float64VarP(&renderOpts.rating, "rating", "r", roast.FallbackRating, "rating to draw")
	renderCmd.Flags().StringVar(&renderOpts.roast, "roast", roast.FallbackRoast, "roast line to draw")
	renderCmd.Flags().StringVarP(&renderOpts.severity, "severity", "s", string(roast.FallbackSeverity), "LOW|MEDIUM|HIGH, picks the background")
	renderCmd.Flags().BoolVar(&renderOpts.watermark, "watermark", true, "draw the watermark")
	renderCmd.MarkFlagRequired("plate")
	rootCmd.AddCommand(renderCmd)
}
