package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/andresmejia3/facecam/internal/config"
	"github.com/andresmejia3/facecam/internal/dataset"
	"github.com/andresmejia3/facecam/internal/pipeline"
	"github.com/andresmejia3/facecam/internal/types"
	"github.com/andresmejia3/facecam/internal/utils"
	"github.com/andresmejia3/facecam/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

// watchOptions holds the flags of the watch command
type watchOptions struct {
	InputPath      string
	Camera         int
	AssetsDir      string
	CascadeFile    string
	ModelFile      string
	MaxConfidence  float64
	Recording      bool
	RecordOnlyFace bool
	Headless       bool
	Verbose        bool
	MaxFrames      int
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Detect and recognize faces on a live camera (or video file) feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg := applyWatchFlags(cmd, *Cfg, watchOpts)
		if err := validateWatchOptions(cfg, watchOpts); err != nil {
			utils.ShowError("Configuration Error", err, nil)
			return err
		}
		return runWatch(cmd.Context(), cfg, watchOpts)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.InputPath, "input", "i", "", "Read frames from a video file instead of the camera")
	watchCmd.Flags().IntVarP(&watchOpts.Camera, "camera", "c", 0, "Capture device index")
	watchCmd.Flags().StringVarP(&watchOpts.AssetsDir, "assets", "a", "assets", "Folder holding the cascade, training folders and exported sessions")
	watchCmd.Flags().StringVar(&watchOpts.CascadeFile, "cascade", "haarcascade_frontalface_default.xml", "Haar cascade XML (relative to --assets)")
	watchCmd.Flags().StringVarP(&watchOpts.ModelFile, "model", "m", "", "Load a model saved by 'train' instead of training on first face")
	watchCmd.Flags().Float64VarP(&watchOpts.MaxConfidence, "max-confidence", "t", 80, "Recognition threshold: faces only get a name below this LBPH distance")
	watchCmd.Flags().BoolVarP(&watchOpts.Recording, "record", "r", false, "Export frames as JPEGs into a new session folder")
	watchCmd.Flags().BoolVarP(&watchOpts.RecordOnlyFace, "face-only", "f", false, "When recording, export only the face rectangle (for building training datasets)")
	watchCmd.Flags().BoolVar(&watchOpts.Headless, "headless", false, "Do not open a preview window")
	watchCmd.Flags().BoolVarP(&watchOpts.Verbose, "verbose", "v", false, "Log every prediction")
	watchCmd.Flags().IntVar(&watchOpts.MaxFrames, "max-frames", 0, "Stop after this many frames (0 = unlimited)")
	rootCmd.AddCommand(watchCmd)
}

// applyWatchFlags overlays flags the user actually set on top of the loaded configuration.
func applyWatchFlags(cmd *cobra.Command, cfg config.Config, opts watchOptions) config.Config {
	flags := cmd.Flags()
	if flags.Changed("camera") {
		cfg.Camera = opts.Camera
	}
	if flags.Changed("assets") {
		cfg.AssetsDir = opts.AssetsDir
	}
	if flags.Changed("cascade") {
		cfg.CascadeFile = opts.CascadeFile
	}
	if flags.Changed("model") {
		cfg.ModelFile = opts.ModelFile
	}
	if flags.Changed("max-confidence") {
		cfg.MaxConfidence = opts.MaxConfidence
	}
	if flags.Changed("record") {
		cfg.Recording = opts.Recording
	}
	if flags.Changed("face-only") {
		cfg.RecordOnlyFace = opts.RecordOnlyFace
	}
	return cfg
}

// validateWatchOptions ensures the capture loop can start before any device is opened.
func validateWatchOptions(cfg config.Config, opts watchOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.CascadePath()); err != nil {
		return fmt.Errorf("cascade file: %w", err)
	}
	if opts.InputPath != "" {
		info, err := os.Stat(opts.InputPath)
		if err != nil {
			return fmt.Errorf("input file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("input path %s is a directory, expected a video file", opts.InputPath)
		}
	}
	if cfg.ModelFile != "" {
		if _, err := os.Stat(cfg.ModelFile); err != nil {
			return fmt.Errorf("model file: %w", err)
		}
	}
	if opts.MaxFrames < 0 {
		return fmt.Errorf("max-frames must be >= 0, got %d", opts.MaxFrames)
	}
	return nil
}

// newRecognizerLoader returns the lazy initializer for the recognizer: a
// saved model when one is configured, otherwise training on the first
// folder matching the training prefix.
func newRecognizerLoader(cfg config.Config) pipeline.RecognizerLoader {
	return func() (pipeline.Recognizer, error) {
		if cfg.ModelFile != "" {
			fmt.Fprintf(os.Stderr, "📂 Loading model %s...\n", cfg.ModelFile)
			model, err := vision.LoadModel(cfg.ModelFile, cfg.DefaultLabel)
			if err != nil {
				return nil, err
			}
			return model, nil
		}

		folder, label, err := dataset.FindTrainingFolder(cfg.AssetsDir, cfg.TrainPrefix, cfg.DefaultLabel)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "🏋️  Training recognizer on %s...\n", folder)
		model, err := vision.TrainFolder(folder, label, nil)
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}

func runWatch(ctx context.Context, cfg config.Config, opts watchOptions) error {
	detector, err := vision.NewCascadeDetector(cfg.CascadePath())
	if err != nil {
		utils.ShowError("Failed to load face detector", err, nil)
		return err
	}
	defer detector.Close()

	var src vision.Source
	var bar *progressbar.ProgressBar
	source := "camera:" + strconv.Itoa(cfg.Camera)
	if opts.InputPath != "" {
		video, err := vision.OpenVideoFile(ctx, opts.InputPath)
		if err != nil {
			utils.ShowError("Failed to open video", err, nil)
			return err
		}
		src = video
		source = opts.InputPath

		total := utils.GetTotalFrames(ctx, opts.InputPath)
		if total <= 0 {
			total = -1 // spinner
		}
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("🔍 Watching"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	} else {
		camera, err := vision.OpenCamera(cfg.Camera)
		if err != nil {
			utils.ShowError("Failed to open camera", err, nil)
			return err
		}
		src = camera
	}
	defer src.Close()

	var window *vision.Window
	if !opts.Headless {
		window = vision.NewWindow(cfg.WindowTitle, cfg.QuitKey)
		defer window.Close()
	}

	// A nil *store.Store must not become a non-nil interface
	var recorder pipeline.Recorder
	if DB != nil {
		recorder = DB
	}

	session := dataset.NewSession(cfg.AssetsDir, time.Now())
	comp := pipeline.New(pipeline.Options{
		Recording:      cfg.Recording,
		RecordOnlyFace: cfg.RecordOnlyFace,
		MaxConfidence:  cfg.MaxConfidence,
		Source:         source,
		Verbose:        opts.Verbose,
	}, pipeline.Deps{
		Detector: detector,
		Loader:   newRecognizerLoader(cfg),
		Session:  session,
		Recorder: recorder,
	})

	if err := comp.Start(ctx); err != nil {
		utils.ShowError("Failed to start session", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "🎥 Session %s started on %s\n", session.ID, source)

	frame := gocv.NewMat()
	defer frame.Close()

	var faces, named, exports int
	loopErr := func() error {
		for ctx.Err() == nil {
			if err := src.Read(&frame); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}

			res, err := comp.Update(ctx, &frame)
			if err != nil {
				return err
			}
			if res.HasFace() {
				faces++
				if res.Recognized != nil && res.Label != types.UnknownFace {
					named++
				}
			}
			if res.ExportPath != "" {
				exports++
			}
			if bar != nil {
				bar.Add(1)
			}

			if window != nil && !frame.Empty() && window.Show(frame) {
				return nil
			}
			if opts.MaxFrames > 0 && comp.Frames() >= opts.MaxFrames {
				return nil
			}
		}
		return nil
	}()

	if bar != nil {
		bar.Finish()
	}

	// Background: ctx may already be cancelled by Ctrl+C
	if err := comp.Stop(context.Background()); err != nil {
		utils.Warn("Failed to close session: %v", err)
	}

	if loopErr != nil {
		if errors.Is(loopErr, dataset.ErrNoTrainingFolder) {
			utils.ShowError("Recognizer training failed", loopErr, nil)
		} else if v, ok := src.(*vision.VideoFile); ok {
			utils.ShowError("Capture loop failed", loopErr, v.Command())
		} else {
			utils.ShowError("Capture loop failed", loopErr, nil)
		}
		return loopErr
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Session %s complete. %d frames, %d with a face, %d recognized, %d exported.\n",
		session.ID, comp.Frames(), faces, named, exports)
	return nil
}
