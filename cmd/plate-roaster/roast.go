package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	plateroaster "github.com/menta2k/plate-roaster"
	"github.com/menta2k/plate-roaster/internal/log"
	"github.com/menta2k/plate-roaster/internal/utils"
	"github.com/menta2k/plate-roaster/pkg/composite"
	"github.com/menta2k/plate-roaster/pkg/share"
	"github.com/menta2k/plate-roaster/pkg/types"
)

var roastOpts struct {
	input     string
	outDir    string
	asJSON    bool
	render    bool
	share     bool
	watermark bool
}

var roastCmd = &cobra.Command{
	Use:   "roast",
	Short: "Roast a plate photo, or every photo in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := []string{roastOpts.input}
		if utils.IsDir(roastOpts.input) {
			files, err := utils.CollectPhotos(roastOpts.input)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no images found in %s", roastOpts.input)
			}
			inputs = files
		}

		app, err := plateroaster.New(cfg, plateroaster.Options{Share: share.Local(roastOpts.outDir)})
		if err != nil {
			return err
		}

		failed := 0
		for _, in := range inputs {
			if err := roastOne(cmd.Context(), app, in); err != nil {
				if ctxErr := cmd.Context().Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("[roast] %s: %v", in, err)
				failed++
			}
			app.Reset()
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d photos could not be roasted", failed, len(inputs))
		}
		return nil
	},
}

func init() {
	roastCmd.Flags().StringVarP(&roastOpts.input, "input", "i", "", "photo or directory of photos")
	roastCmd.Flags().StringVarP(&roastOpts.outDir, "out", "o", "out", "output directory for share images")
	roastCmd.Flags().BoolVar(&roastOpts.asJSON, "json", false, "print the verdict as JSON")
	roastCmd.Flags().BoolVar(&roastOpts.render, "render", false, "write the share image next to the verdict")
	roastCmd.Flags().BoolVar(&roastOpts.share, "share", false, "hand the share image off to the system (open Instagram, else save)")
	roastCmd.Flags().BoolVar(&roastOpts.watermark, "watermark", true, "draw the watermark on rendered images")
	roastCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(roastCmd)
}

func roastOne(ctx context.Context, app *plateroaster.App, in string) error {
	if _, err := app.SelectFile(ctx, in); err != nil {
		return err
	}

	done := spin("The chef is inspecting your plate...")
	verdict, err := app.Roast(ctx)
	done()
	if err != nil {
		if msg := app.Session().Snapshot().Error; msg != "" {
			return fmt.Errorf("%s: %w", msg, err)
		}
		return err
	}

	if err := printVerdict(in, verdict); err != nil {
		return err
	}

	if roastOpts.render {
		data, err := app.RenderShareImage(ctx, roastOpts.watermark)
		if err != nil {
			return err
		}
		if err := utils.PrepareOutputDir(roastOpts.outDir); err != nil {
			return err
		}
		out := utils.OutputPath(in, roastOpts.outDir, "_roast", "jpg")
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(os.Stderr, "Share image: %s (%s)\n", out, utils.ByteSize(len(data)))
	}

	if roastOpts.share {
		res, err := app.Share(ctx)
		if err != nil {
			if errors.Is(err, share.ErrUnavailable) {
				return fmt.Errorf("nowhere to share %s: %w", composite.ShareFileName, err)
			}
			return err
		}
		fmt.Fprintf(os.Stderr, "Shared: %s %s\n", res.Outcome, res.Location)
	}
	return nil
}

func printVerdict(in string, v types.Roast) error {
	if roastOpts.asJSON {
		out, err := json.Marshal(struct {
			File string `json:"file"`
			types.Roast
		}{in, v})
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if v.Headline != "" {
		fmt.Println(v.Headline)
	}
	fmt.Printf("%s  %s [%s]\n", composite.FormatRating(v.Rating, cfg.Roast.RatingScale), v.Target, v.Severity)
	fmt.Println(v.Roast)
	return nil
}

// noRoaster stands in for the backend in commands that never roast
type noRoaster struct{}

func (noRoaster) DescribeAndRoast(ctx context.Context, data []byte, mimeType string) (types.Roast, error) {
	return types.Roast{}, errors.New("roasting is not available in this command")
}
