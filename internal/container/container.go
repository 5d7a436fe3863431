package container

import (
	"log/slog"

	"inspection-brain/config"
	app "inspection-brain/internal/application"
	"inspection-brain/internal/domain/port"
	"inspection-brain/internal/infrastructure/events"
	"inspection-brain/internal/infrastructure/httpclient"
	"inspection-brain/internal/infrastructure/storage"
	"inspection-brain/internal/infrastructure/vision"
)

type Container struct {
	Orchestrator *app.Orchestrator
	Poller       *app.Poller
	Trigger      *app.TriggerMachine
	Status       port.StatusRepository
	Publishers   []port.ResultPublisher

	Hub    *events.Hub
	MQTT   *events.MQTTEmitter // nil, если брокер не задан
	Events port.EventSink
}

// New собирает приложение из конфигурации. Сетевых подключений не открывает.
func New(cfg *config.Config, logger *slog.Logger) *Container {
	timeout := cfg.HTTPTimeout()

	hub := events.NewHub(logger)
	sinks := events.Multi{hub}

	var emitter *events.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		emitter = events.NewMQTTEmitter(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix, logger)
		sinks = append(sinks, emitter)
	}

	publishers := []port.ResultPublisher{
		httpclient.NewUIClient(cfg.Services.UIURL, timeout, logger),
	}
	if cfg.Services.EnableMainServerPublish {
		publishers = append(publishers, httpclient.NewMainServerClient(cfg.Services.MainServerURL, timeout, logger))
	}

	status := storage.NewMemoryStatusRepository()

	orchestrator := app.NewOrchestrator(app.OrchestratorDeps{
		Camera:         httpclient.NewCameraClient(cfg.Services.CameraURL, timeout, logger),
		FruitDetector:  httpclient.NewFruitDetectorClient(cfg.Services.FruitDetectorURL, timeout, logger),
		DefectDetector: httpclient.NewDefectDetectorClient(cfg.Services.DefectDetectorURL, timeout, logger),
		Cropper:        vision.NewCropper(vision.DefaultJPEGQuality),
		Publishers:     publishers,
		Status:         status,
		Events:         sinks,
		Logger:         logger,
	}, policyFromConfig(cfg.Detection, cfg.MinFruitWeight), cfg.MinScanInterval())

	trigger := app.NewTriggerMachine(cfg.MinFruitWeight, cfg.SignificantDelta)
	poller := app.NewPoller(
		httpclient.NewWeightClient(cfg.Services.WeightURL, timeout, logger),
		app.NewStabilityFilter(cfg.StableWindow(), cfg.WeightNoiseEpsilon),
		trigger,
		orchestrator,
		sinks,
		cfg.WeightPollInterval(),
		logger,
	)

	return &Container{
		Orchestrator: orchestrator,
		Poller:       poller,
		Trigger:      trigger,
		Status:       status,
		Publishers:   publishers,
		Hub:          hub,
		MQTT:         emitter,
		Events:       sinks,
	}
}

func policyFromConfig(d config.Detection, minWeight float64) app.DetectionPolicy {
	return app.DetectionPolicy{
		MinFruitWeight:         minWeight,
		PrimaryImgsz:           d.PrimaryImgsz,
		FallbackImgsz:          d.FallbackImgsz,
		ConfidenceGuard:        d.ConfidenceGuard,
		MinBBoxAreaRatio:       d.MinBBoxAreaRatio,
		ExpectedWeightPerFruit: d.ExpectedWeightPerFruit,
		ClassThresholds:        d.ClassThresholds,
		LogDiscarded:           d.LogDiscardedDetections,
	}
}
