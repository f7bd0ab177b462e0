// 示例：直接使用 yolo 包检测一张图片，打印每个类别置信度最高的结果并保存标注图
package main

import (
	"fmt"
	"os"

	"github.com/Cubiaa/yolo-detect/yolo"
	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("用法: example <model.onnx> <image>")
		os.Exit(2)
	}
	modelPath, imagePath := os.Args[1], os.Args[2]

	detector, err := yolo.NewYOLO(modelPath, "",
		yolo.DefaultConfig().WithDevice(yolo.DeviceAuto).WithInputSize(640))
	if err != nil {
		log.Fatalf("创建检测器失败: %v", err)
	}
	defer yolo.DestroyEnvironment()
	defer detector.Close()

	options := yolo.DefaultDetectionOptions().
		WithConfThreshold(0.4).
		WithBoxColor("red").
		WithLabelColor("white").
		WithLineWidth(3)
	detector.SetRuntimeConfig(options)

	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("读取图片失败: %v", err)
	}
	detections, err := detector.DetectImage(img)
	if err != nil {
		log.Fatalf("检测失败: %v", err)
	}

	best := yolo.Reduce(detections, options)
	fmt.Printf("✅ 检测到 %d 个对象，保留 %d 个:\n", len(detections), len(best))
	for i, det := range best {
		fmt.Printf("  %d. %s (%.2f%%) [%.1f, %.1f, %.1f, %.1f]\n",
			i+1, det.Class, det.Score*100, det.Box[0], det.Box[1], det.Box[2], det.Box[3])
	}

	output := yolo.OutputName(imagePath, yolo.NameSuffixed)
	result := yolo.DrawDetections(img, best, yolo.StyleFromOptions(options))
	if err := imaging.Save(result, output); err != nil {
		log.Fatalf("保存失败: %v", err)
	}
	fmt.Printf("💾 结果已保存: %s\n", output)
}
