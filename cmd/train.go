package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facecam/internal/dataset"
	"github.com/andresmejia3/facecam/internal/utils"
	"github.com/andresmejia3/facecam/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	trainAssets string
	trainPrefix string
	trainOutput string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the LBPH recognizer on a training folder and save the model",
	Long: `Searches the assets folder for the first directory whose name starts with the
training prefix (e.g. "TrainFace Alice"), trains on every jpg it holds and
saves the model so 'watch --model' can skip training at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg := *Cfg
		if cmd.Flags().Changed("assets") {
			cfg.AssetsDir = trainAssets
		}
		if cmd.Flags().Changed("prefix") {
			cfg.TrainPrefix = trainPrefix
		}
		output := trainOutput
		if output == "" {
			output = defaultModelPath(cfg.AssetsDir)
		}

		folder, label, err := dataset.FindTrainingFolder(cfg.AssetsDir, cfg.TrainPrefix, cfg.DefaultLabel)
		if err != nil {
			utils.ShowError("Training folder not found", err, nil)
			return err
		}
		files, err := dataset.ListImages(folder)
		if err != nil {
			utils.ShowError("Failed to list training images", err, nil)
			return err
		}

		fmt.Fprintf(os.Stderr, "🏋️  Training %q on %d images from %s\n", label, len(files), folder)
		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("🧠 Training"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		model, err := vision.TrainFolder(folder, label, bar)
		bar.Finish()
		if err != nil {
			utils.ShowError("Training failed", err, nil)
			return err
		}

		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			utils.ShowError("Failed to create model folder", err, nil)
			return err
		}
		if err := model.Save(output); err != nil {
			utils.ShowError("Failed to save model", err, nil)
			return err
		}

		if skipped := len(files) - model.Info.Images; skipped > 0 {
			utils.Warn("Skipped %d unreadable images", skipped)
		}
		fmt.Fprintf(os.Stderr, "\n✅ Model for %q saved to %s (%d images)\n", model.Label(), output, model.Info.Images)
		return nil
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainAssets, "assets", "a", "assets", "Folder to search for the training folder")
	trainCmd.Flags().StringVar(&trainPrefix, "prefix", "TrainFace", "Name prefix of the training folder")
	trainCmd.Flags().StringVarP(&trainOutput, "output", "o", "", "Model output path (default: <assets>/lbph_model.yml)")
	rootCmd.AddCommand(trainCmd)
}

func defaultModelPath(assets string) string {
	return filepath.Join(assets, "lbph_model.yml")
}
