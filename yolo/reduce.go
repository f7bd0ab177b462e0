package yolo

// BestPerClass 每个类别只保留置信度最高的检测结果
// 只有严格更高的分数才会替换已保留的结果；输出按类别首次出现的顺序排列，不修改输入。
func BestPerClass(detections []Detection) []Detection {
	best := make([]Detection, 0, len(detections))
	index := make(map[string]int, len(detections))

	for _, det := range detections {
		i, seen := index[det.Class]
		if !seen {
			index[det.Class] = len(best)
			best = append(best, det)
			continue
		}
		if det.Score > best[i].Score {
			best[i] = det
		}
	}
	return best
}

// Reduce 根据检测选项决定是否执行每类别最优筛选
func Reduce(detections []Detection, options *DetectionOptions) []Detection {
	if options != nil && !options.BestPerClass {
		return detections
	}
	return BestPerClass(detections)
}
