package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

// Этапы конвейера, на которых скан может оборваться.
const (
	StageCapture   = "capture"
	StageDecode    = "decode"
	StageDetection = "detection"
)

// ScanError скан прерван на одном из этапов.
type ScanError struct {
	ScanID string
	Stage  string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s failed at %s: %v", e.ScanID, e.Stage, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// OrchestratorDeps внешние зависимости конвейера
type OrchestratorDeps struct {
	Camera         port.Camera
	FruitDetector  port.FruitDetector
	DefectDetector port.DefectDetector
	Cropper        port.Cropper
	Publishers     []port.ResultPublisher
	Status         port.StatusRepository
	Events         port.EventSink
	Logger         *slog.Logger
}

// Orchestrator проводит скан: снимок, детекция объектов, параллельная проверка дефектов,
// сборка результата и публикация. Одновременно идёт не больше одного скана.
type Orchestrator struct {
	deps   OrchestratorDeps
	policy DetectionPolicy
	guard  *admissionGuard
	logger *slog.Logger

	now   func() time.Time
	newID func() string

	wg sync.WaitGroup
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(deps OrchestratorDeps, policy DetectionPolicy, minScanInterval time.Duration) *Orchestrator {
	if deps.Events == nil {
		deps.Events = noopSink{}
	}
	if deps.Status == nil {
		deps.Status = noopStatus{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:   deps,
		policy: policy,
		guard:  newAdmissionGuard(minScanInterval),
		logger: logger.With("component", "orchestrator"),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Busy сообщает, идёт ли сейчас скан.
func (o *Orchestrator) Busy() bool {
	return o.guard.busy()
}

// Submit проверяет допуск и запускает конвейер в отдельной горутине.
// Возвращает ErrCooldown или ErrScanInFlight, если запрос отброшен.
func (o *Orchestrator) Submit(ctx context.Context, req entity.ScanRequest) error {
	if err := o.admit(ctx, req); err != nil {
		return err
	}

	// Скан нельзя отменить снаружи: отвязываемся от отмены вызывающего.
	scanCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.guard.release()
		_, _ = o.execute(scanCtx, req)
	}()
	return nil
}

// Handle проверяет допуск и проводит скан синхронно.
func (o *Orchestrator) Handle(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
	if err := o.admit(ctx, req); err != nil {
		return nil, err
	}
	defer o.guard.release()

	return o.execute(context.WithoutCancel(ctx), req)
}

// Shutdown ждёт завершения текущего скана или отмены ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) admit(ctx context.Context, req entity.ScanRequest) error {
	if err := o.guard.acquire(o.now()); err != nil {
		reason := RejectReason(err)
		o.logger.Debug("scan request dropped",
			"reason", reason, "source", req.Source, "weight", req.WeightGrams)
		_ = o.deps.Status.RecordRejected(ctx, reason)
		o.deps.Events.Emit(entity.NewEvent(entity.EventScanRejected, map[string]any{
			"reason": reason,
			"source": string(req.Source),
			"weight": req.WeightGrams,
		}))
		return err
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, req entity.ScanRequest) (*entity.ScanResult, error) {
	scanID := o.newID()
	logger := o.logger.With("scan_id", scanID)
	logger.Info("scan started", "weight", req.WeightGrams, "source", req.Source)

	_ = o.deps.Status.RecordStarted(ctx, scanID, req)
	o.deps.Events.Emit(entity.NewEvent(entity.EventScanStarted, map[string]any{
		"scan_id": scanID,
		"weight":  req.WeightGrams,
		"source":  string(req.Source),
	}))

	result, err := o.run(ctx, scanID, req, logger)
	if err != nil {
		logger.Error("scan failed", "error", err)
		_ = o.deps.Status.RecordFinished(ctx, scanID, entity.OutcomeFailed)
		o.deps.Events.Emit(entity.NewEvent(entity.EventScanFailed, map[string]any{
			"scan_id": scanID,
			"error":   err.Error(),
		}))
		return nil, err
	}

	o.publish(ctx, result, logger)

	logger.Info("scan finished",
		"boxes", len(result.Boxes), "defects", result.DefectCount(), "failed_boxes", result.FailedBoxes())
	_ = o.deps.Status.RecordFinished(ctx, scanID, entity.OutcomeCompleted)
	o.deps.Events.Emit(entity.NewEvent(entity.EventScanCompleted, map[string]any{
		"scan_id":      scanID,
		"boxes":        len(result.Boxes),
		"defects":      result.DefectCount(),
		"failed_boxes": result.FailedBoxes(),
	}))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, scanID string, req entity.ScanRequest, logger *slog.Logger) (*entity.ScanResult, error) {
	resolution := fmt.Sprintf("%dx%d", o.policy.PrimaryImgsz, o.policy.PrimaryImgsz)
	img, err := o.deps.Camera.Capture(ctx, resolution)
	if err != nil {
		return nil, &ScanError{ScanID: scanID, Stage: StageCapture, Err: err}
	}
	imageID := img.ImageID
	if imageID == "" {
		imageID = scanID
	}

	frame, err := o.deps.Cropper.Load(img.Data)
	if err != nil {
		return nil, &ScanError{ScanID: scanID, Stage: StageDecode, Err: err}
	}
	defer frame.Close()

	boxes, err := o.detect(ctx, imageID, img.Data, frame, req.WeightGrams, logger)
	if err != nil {
		return nil, &ScanError{ScanID: scanID, Stage: StageDetection, Err: err}
	}

	result := &entity.ScanResult{
		ScanID:      scanID,
		ImageID:     imageID,
		Timestamp:   o.now().UTC(),
		WeightGrams: req.WeightGrams,
		Source:      req.Source,
		Boxes:       o.inspectBoxes(ctx, imageID, frame, boxes, logger),
	}
	return result, nil
}

// detect запускает детектор объектов и, при необходимости, повторную детекцию
// на большем размере входа. Ошибка повторной детекции не фатальна.
func (o *Orchestrator) detect(ctx context.Context, imageID string, data []byte, frame port.Frame, weight float64, logger *slog.Logger) ([]entity.BoundingBox, error) {
	width, height := frame.Size()

	raw, err := o.deps.FruitDetector.Detect(ctx, imageID, data, o.policy.PrimaryImgsz)
	if err != nil {
		return nil, err
	}
	kept := o.policy.Filter(raw, width, height, logger)

	reason := o.policy.FallbackReason(kept, raw, weight)
	if reason == "" {
		return kept, nil
	}

	logger.Info("fallback detection", "reason", reason, "imgsz", o.policy.FallbackImgsz)
	fallback, err := o.deps.FruitDetector.Detect(ctx, imageID, data, o.policy.FallbackImgsz)
	if err != nil {
		logger.Warn("fallback detection failed, keeping primary result", "error", err)
		return kept, nil
	}
	kept = o.policy.Filter(fallback, width, height, logger)
	if len(kept) == 0 {
		logger.Warn("no objects detected after fallback", "weight", weight)
	}
	return kept, nil
}

// inspectBoxes проверяет все боксы параллельно и ждёт каждый вызов.
// Ошибка одного бокса записывается в его результат и не трогает соседей.
func (o *Orchestrator) inspectBoxes(ctx context.Context, imageID string, frame port.Frame, boxes []entity.BoundingBox, logger *slog.Logger) []entity.BoxResult {
	results := make([]entity.BoxResult, len(boxes))

	var wg sync.WaitGroup
	for i, box := range boxes {
		i, box := i, box
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = entity.BoxResult{Box: box, Defect: o.inspectBox(ctx, imageID, frame, box, logger)}
		}()
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) inspectBox(ctx context.Context, imageID string, frame port.Frame, box entity.BoundingBox, logger *slog.Logger) (res entity.DefectResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("defect analysis panicked", "fruit_id", box.ID, "panic", r)
			res = entity.DefectResult{Findings: []entity.DefectFinding{}, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	crop, err := frame.Crop(box)
	if err != nil {
		logger.Warn("crop failed", "fruit_id", box.ID, "error", err)
		return entity.DefectResult{Findings: []entity.DefectFinding{}, Error: "crop: " + err.Error()}
	}

	findings, err := o.deps.DefectDetector.DetectDefects(ctx, imageID, box, crop)
	if err != nil {
		logger.Warn("defect analysis failed", "fruit_id", box.ID, "error", err)
		return entity.DefectResult{Findings: []entity.DefectFinding{}, Error: err.Error()}
	}
	if findings == nil {
		findings = []entity.DefectFinding{}
	}
	return entity.DefectResult{Findings: findings}
}

// publish отправляет результат всем получателям независимо, без повторов.
func (o *Orchestrator) publish(ctx context.Context, result *entity.ScanResult, logger *slog.Logger) {
	var wg sync.WaitGroup
	for _, p := range o.deps.Publishers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Publish(ctx, result); err != nil {
				logger.Warn("publish failed", "target", p.Name(), "error", err)
				return
			}
			logger.Debug("result published", "target", p.Name())
		}()
	}
	wg.Wait()
}

// IsRejected сообщает, что запрос отброшен контролем допуска.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCooldown) || errors.Is(err, ErrScanInFlight)
}

type noopSink struct{}

func (noopSink) Emit(entity.Event) {}

type noopStatus struct{}

func (noopStatus) RecordStarted(context.Context, string, entity.ScanRequest) error { return nil }

func (noopStatus) RecordFinished(context.Context, string, entity.ScanOutcome) error { return nil }

func (noopStatus) RecordRejected(context.Context, string) error { return nil }

func (noopStatus) Stats(context.Context) (entity.ScanStats, error) { return entity.ScanStats{}, nil }
