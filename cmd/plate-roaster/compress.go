package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	plateroaster "github.com/menta2k/plate-roaster"
	"github.com/menta2k/plate-roaster/internal/utils"
	"github.com/menta2k/plate-roaster/pkg/handle"
	"github.com/menta2k/plate-roaster/pkg/intake"
	"github.com/menta2k/plate-roaster/pkg/processing"
)

var compressOpts struct {
	input  string
	outDir string
}

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Shrink a photo the way it is shrunk before upload",
	RunE: func(cmd *cobra.Command, args []string) error {
		processor := processing.NewProcessorWithConfig(plateroaster.ProcessingConfig(cfg))
		photo, err := intake.New(processor, handle.NewStore()).FromFile(cmd.Context(), compressOpts.input)
		if err != nil {
			return fmt.Errorf("%s: %w", intake.UserMessage(err), err)
		}

		compressed, err := processor.Compress(cmd.Context(), photo.Data, photo.Name)
		if err != nil {
			return err
		}

		if err := utils.PrepareOutputDir(compressOpts.outDir); err != nil {
			return err
		}
		out := utils.OutputPath(compressOpts.input, compressOpts.outDir, "_compressed", "jpg")
		if err := os.WriteFile(out, compressed.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		fmt.Printf("%s: %dx%d %s -> %dx%d %s\n", out,
			photo.Width, photo.Height, utils.ByteSize(len(photo.Data)),
			compressed.Width, compressed.Height, utils.ByteSize(len(compressed.Data)))
		return nil
	},
}

func init() {
	compressCmd.Flags().StringVarP(&compressOpts.input, "input", "i", "", "photo to compress")
	compressCmd.Flags().StringVarP(&compressOpts.outDir, "out", "o", "out", "output directory")
	compressCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(compressCmd)
}
