package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	plateroaster "github.com/menta2k/plate-roaster"
	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/internal/utils"
	"github.com/menta2k/plate-roaster/pkg/capture"
	"github.com/menta2k/plate-roaster/pkg/geometry"
	"github.com/menta2k/plate-roaster/pkg/processing"
)

var captureOpts struct {
	input   string
	display string
	outDir  string
	ext     string
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Cut the circular plate still out of a camera frame",
	Long: "Treats the input image as the live camera frame shown cover-fit in a display " +
		"box, and captures what lies inside the circular guide.",
	RunE: func(cmd *cobra.Command, args []string) error {
		display, err := parseSize(captureOpts.display)
		if err != nil {
			return err
		}

		processor := processing.NewProcessorWithConfig(plateroaster.ProcessingConfig(cfg))
		frame, err := processor.LoadImageSmart(cmd.Context(), captureOpts.input)
		if err != nil {
			return err
		}

		app, err := plateroaster.New(cfg, plateroaster.Options{
			Devices: &capture.StillDevices{Frame: frame},
			Roaster: noRoaster{},
		})
		if err != nil {
			return err
		}

		modal := app.NewCamera(capture.Callbacks{})
		if err := modal.Open(cmd.Context()); err != nil {
			return fmt.Errorf("%s: %w", modal.ErrorMessage(), err)
		}
		defer modal.Close()

		photo, err := modal.Capture(cmd.Context(), display)
		if err != nil {
			return err
		}

		if err := utils.PrepareOutputDir(captureOpts.outDir); err != nil {
			return err
		}
		out := utils.OutputPath(captureOpts.input, captureOpts.outDir, "_plate", captureOpts.ext)

		if ext := strings.ToLower(captureOpts.ext); ext == "jpg" || ext == "jpeg" {
			err = os.WriteFile(out, photo.Data, 0644)
		} else {
			img, derr := processor.Decode(photo.Data)
			if derr != nil {
				return derr
			}
			err = processor.SaveImage(img, out, ext, cfg.Capture.Quality)
		}
		if err != nil {
			return fmt.Errorf("failed to save capture: %w", err)
		}

		log.Printf("[capture] Saved %dx%d still to %s", photo.Width, photo.Height, out)
		fmt.Println(out)
		return nil
	},
}

func init() {
	captureCmd.Flags().StringVarP(&captureOpts.input, "input", "i", "", "camera frame image path or URL")
	captureCmd.Flags().StringVar(&captureOpts.display, "display", "390x844", "display box the frame is shown in, WIDTHxHEIGHT")
	captureCmd.Flags().StringVarP(&captureOpts.outDir, "out", "o", "out", "output directory")
	captureCmd.Flags().StringVar(&captureOpts.ext, "ext", "jpg", "output format: jpg|png|webp")
	captureCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(captureCmd)
}

// parseSize parses WIDTHxHEIGHT
func parseSize(s string) (geometry.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return geometry.Size{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return geometry.Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return geometry.Size{Width: width, Height: height}, nil
}
