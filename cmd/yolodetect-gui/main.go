package main

import (
	"os"

	"fyne.io/fyne/v2/app"
	"github.com/Cubiaa/yolo-detect/gui"
	"github.com/Cubiaa/yolo-detect/yolo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var configPath, ortLib string

	cmd := &cobra.Command{
		Use:          "yolodetect-gui",
		Short:        "Desktop interface for YOLOv8 object detection",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configManager := yolo.NewConfigManager(configPath)
			if err := configManager.LoadOrDefault(false); err != nil {
				return err
			}
			if ortLib != "" {
				configManager.Config().YOLO.LibraryPath = ortLib
			}
			yolo.InitLogger(configManager.GetLogConfig())
			defer yolo.DestroyEnvironment()

			log.Info("🚀 启动图形界面")
			gui.NewApp(app.NewWithID("io.github.cubiaa.yolodetect"), configManager).Run()
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "YAML config file (defaults are used when missing)")
	cmd.Flags().StringVar(&ortLib, "ort-lib", "", "Path to the ONNX Runtime shared library")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
