package app

import (
	"log/slog"

	"inspection-brain/internal/domain/entity"
)

// Причины повторной детекции.
const (
	FallbackNoDetections  = "weight_indicates_fruit_but_no_detections"
	FallbackLowConfidence = "all_detections_below_confidence_guard"
	FallbackExpectedMore  = "expected_more_fruits_by_weight"
)

// DetectionPolicy фильтрует боксы детектора и решает, нужна ли повторная детекция.
type DetectionPolicy struct {
	MinFruitWeight         float64
	PrimaryImgsz           int
	FallbackImgsz          int
	ConfidenceGuard        float64
	MinBBoxAreaRatio       float64
	ExpectedWeightPerFruit float64
	ClassThresholds        map[string]float64
	LogDiscarded           bool
}

// Filter отбрасывает слишком мелкие боксы и боксы ниже порога класса. Порядок сохраняется.
func (p DetectionPolicy) Filter(boxes []entity.BoundingBox, frameWidth, frameHeight int, logger *slog.Logger) []entity.BoundingBox {
	frameArea := float64(frameWidth * frameHeight)
	minArea := frameArea * p.MinBBoxAreaRatio

	kept := make([]entity.BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		// Вырожденный бокс не отбрасываем молча: он упадёт на вырезке как ошибка одного объекта.
		if !b.Degenerate() && b.Area() < minArea {
			if p.LogDiscarded {
				logger.Info("box dropped: small area",
					"fruit_id", b.ID, "class", b.Label, "area", b.Area(), "min_area", minArea)
			}
			continue
		}
		threshold := p.threshold(b.Label)
		if b.Confidence < threshold {
			if p.LogDiscarded {
				logger.Info("box dropped: low class confidence",
					"fruit_id", b.ID, "class", b.Label, "confidence", b.Confidence, "threshold", threshold)
			}
			continue
		}
		kept = append(kept, b)
	}

	logger.Debug("detections filtered", "kept", len(kept), "total", len(boxes))
	return kept
}

func (p DetectionPolicy) threshold(label string) float64 {
	if th, ok := p.ClassThresholds[label]; ok {
		return th
	}
	return p.ConfidenceGuard
}

// FallbackReason возвращает причину повторной детекции или пустую строку.
func (p DetectionPolicy) FallbackReason(kept, raw []entity.BoundingBox, weight float64) string {
	if weight >= p.MinFruitWeight && len(kept) == 0 {
		return FallbackNoDetections
	}

	if len(raw) > 0 {
		allLow := true
		for _, b := range raw {
			if b.Confidence >= p.ConfidenceGuard {
				allLow = false
				break
			}
		}
		if allLow {
			return FallbackLowConfidence
		}
	}

	if weight >= p.MinFruitWeight && p.ExpectedWeightPerFruit > 0 {
		expected := int(weight / p.ExpectedWeightPerFruit)
		if expected >= 2 && len(kept) < expected-1 {
			return FallbackExpectedMore
		}
	}

	return ""
}
