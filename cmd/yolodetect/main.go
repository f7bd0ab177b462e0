package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Cubiaa/yolo-detect/yolo"
	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:          "yolodetect",
		Short:        "Image/Video Object Detection using YOLOv8",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changed = cmd.Flags().Changed
			err := run(cmd.Context(), opts)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.image, "image", "", "Path to a single image")
	flags.StringVar(&opts.folder, "folder", "", "Path to a folder containing images")
	flags.StringVar(&opts.video, "video", "", "Path to a video file")
	flags.StringVar(&opts.model, "model", yolo.DefaultModel, fmt.Sprintf("YOLOv8 model to use %v", yolo.ModelChoices))
	flags.StringVar(&opts.config, "config", "config.yaml", "YAML config file (defaults are used when missing)")
	flags.StringVar(&opts.output, "output", yolo.DefaultOutputBase, "Base directory for run_<timestamp> folders")
	flags.Float32Var(&opts.conf, "conf", 0.25, "Confidence threshold")
	flags.Float32Var(&opts.iou, "iou", 0.7, "IoU threshold")
	flags.StringVar(&opts.device, "device", "auto", "Device: auto, cuda, coreml, directml, cpu")
	flags.IntVar(&opts.gpuID, "gpu-id", 0, "GPU device index for cuda and directml")
	flags.BoolVar(&opts.allDetections, "all-detections", false, "Draw every detection instead of the best one per class")
	flags.BoolVar(&opts.keepAudio, "keep-audio", false, "Copy the source audio track into the output video")
	flags.StringVar(&opts.ortLib, "ort-lib", "", "Path to the ONNX Runtime shared library")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file (rotated)")

	cmd.MarkFlagsMutuallyExclusive("image", "folder", "video")
	cmd.MarkFlagsOneRequired("image", "folder", "video")

	return cmd
}

func run(parent context.Context, opts *cliOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	configManager := yolo.NewConfigManager(opts.config)
	if err := configManager.LoadOrDefault(false); err != nil {
		return err
	}
	if err := opts.apply(configManager); err != nil {
		return err
	}
	yolo.InitLogger(configManager.GetLogConfig())

	inputPath, kind, err := opts.input()
	if err != nil {
		return err
	}

	outputDir, err := yolo.CreateOutputDir(configManager.GetOutputOptions().BaseDir)
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Loading model: " + opts.model)
	detector, err := yolo.NewYOLOFromConfig(opts.model, configManager)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return err
	}
	defer yolo.DestroyEnvironment()
	defer detector.Close()

	pterm.Info.Printfln("Output will be saved to: %s", outputDir)

	processor := yolo.NewProcessor(detector, configManager.GetDetectionOptions(), configManager.GetOutputOptions())
	start := time.Now()
	summary := yolo.RunSummary{
		Device:    detector.DeviceDetails(),
		Model:     opts.model,
		OutputDir: outputDir,
	}

	switch kind {
	case yolo.InputImage:
		_, err = processor.ProcessImage(ctx, inputPath, outputDir)
		if err == nil {
			summary.Processed = 1
		}
	case yolo.InputFolder:
		err = processFolder(ctx, processor, inputPath, outputDir, &summary)
	case yolo.InputVideo:
		var result *yolo.VideoResult
		result, err = processor.ProcessVideo(ctx, inputPath, outputDir, printVideoProgress)
		if result != nil {
			summary.Processed, summary.Failed = result.Frames, result.FailedFrames
		}
	}

	summary.TotalTime = time.Since(start)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		pterm.Warning.Println("Processing cancelled")
	}

	pterm.Println()
	pterm.Success.Println(summary.String())
	return err
}

// processFolder 带进度条处理文件夹
func processFolder(ctx context.Context, processor *yolo.Processor, folder, outputDir string, summary *yolo.RunSummary) error {
	files, err := yolo.GetImageFiles(folder)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		pterm.Warning.Printfln("No images found in %s", folder)
		return nil
	}

	pterm.Info.Printfln("Processing %d images...", len(files))
	bar, err := pterm.DefaultProgressbar.WithTotal(len(files)).WithTitle("Processing images").Start()
	if err != nil {
		log.Debugf("无法启动进度条: %v", err)
	}

	result, err := processor.ProcessFolder(ctx, folder, outputDir, func(p yolo.FolderProgress) {
		if bar != nil {
			bar.Increment()
		}
	})
	if bar != nil {
		_, _ = bar.Stop()
	}
	if result != nil {
		summary.Processed, summary.Failed = len(result.Images), len(result.Failed)
	}
	return err
}

func printVideoProgress(p yolo.VideoProgress) {
	pterm.Info.Printfln("Progress: %.1f%% (%.1fs / %.1fs)", p.Percent, p.ProcessedSeconds, p.TotalSeconds)
	pterm.Printfln("  - Elapsed time: %.1fs", p.Elapsed.Seconds())
	pterm.Printfln("  - Estimated time remaining: %.1fs", p.Remaining.Seconds())
	pterm.Printfln("  - Current FPS: %.1f", p.FPS)
}
