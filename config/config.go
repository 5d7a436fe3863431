package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config параметры процесса. Веса в граммах, времена в миллисекундах.
type Config struct {
	AppEnv    string `yaml:"app_env"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
	HTTPAddr  string `yaml:"http_addr"`

	Services Services `yaml:"services"`

	MinFruitWeight       float64 `yaml:"min_fruit_weight"`
	SignificantDelta     float64 `yaml:"significant_delta"`
	WeightNoiseEpsilon   float64 `yaml:"weight_noise_epsilon"`
	StableWindowMs       int     `yaml:"stable_window_ms"`
	MinScanIntervalMs    int     `yaml:"min_scan_interval_ms"`
	WeightPollIntervalMs int     `yaml:"weight_poll_interval_ms"`
	EnableWeightPolling  bool    `yaml:"enable_weight_polling"`

	Detection Detection `yaml:"detection"`

	TelegramToken        string  `yaml:"telegram_token"`
	TelegramAllowedChats []int64 `yaml:"telegram_allowed_chats"`

	MQTT MQTT `yaml:"mqtt"`
}

// Services адреса внешних сервисов
type Services struct {
	WeightURL               string `yaml:"weight_url"`
	CameraURL               string `yaml:"camera_url"`
	FruitDetectorURL        string `yaml:"fruit_detector_url"`
	DefectDetectorURL       string `yaml:"defect_detector_url"`
	UIURL                   string `yaml:"ui_url"`
	MainServerURL           string `yaml:"main_server_url"`
	EnableMainServerPublish bool   `yaml:"enable_main_server_publish"`
	TimeoutMs               int    `yaml:"timeout_ms"`
}

// Detection фильтрация боксов и повторная детекция
type Detection struct {
	PrimaryImgsz           int                `yaml:"primary_imgsz"`
	FallbackImgsz          int                `yaml:"fallback_imgsz"`
	ConfidenceGuard        float64            `yaml:"confidence_guard"`
	MinBBoxAreaRatio       float64            `yaml:"min_bbox_area_ratio"`
	ExpectedWeightPerFruit float64            `yaml:"expected_weight_per_fruit"`
	ClassThresholds        map[string]float64 `yaml:"class_thresholds"`
	LogDiscardedDetections bool               `yaml:"log_discarded_detections_detail"`
}

// MQTT брокер для событий; пустой Broker выключает отправку
type MQTT struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		AppEnv:   "dev",
		LogLevel: "INFO",
		HTTPAddr: ":8000",
		Services: Services{
			WeightURL:               "http://localhost:8100",
			CameraURL:               "http://localhost:8200",
			FruitDetectorURL:        "http://localhost:8300",
			DefectDetectorURL:       "http://localhost:8400",
			UIURL:                   "http://localhost:8500",
			MainServerURL:           "http://localhost:8600",
			EnableMainServerPublish: true,
			TimeoutMs:               10_000,
		},
		MinFruitWeight:       30,
		SignificantDelta:     20,
		WeightNoiseEpsilon:   5,
		StableWindowMs:       400,
		MinScanIntervalMs:    2_000,
		WeightPollIntervalMs: 150,
		EnableWeightPolling:  true,
		Detection: Detection{
			PrimaryImgsz:           320,
			FallbackImgsz:          416,
			ConfidenceGuard:        0.30,
			MinBBoxAreaRatio:       0.001,
			ExpectedWeightPerFruit: 100,
			ClassThresholds: map[string]float64{
				"apple":  0.55,
				"banana": 0.40,
				"tomato": 0.60,
			},
		},
		MQTT: MQTT{
			TopicPrefix: "brain",
			ClientID:    "inspection-brain",
		},
	}
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.AppEnv == "prod" {
			cfg.LogFormat = "json"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// envReader собирает первую ошибку разбора, чтобы не проверять каждую переменную отдельно.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func (r *envReader) float(key string, dst *float64) {
	v, ok := r.lookup(key)
	if !ok || r.err != nil {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		r.err = fmt.Errorf("%s: invalid number %q", key, v)
		return
	}
	*dst = f
}

func (r *envReader) int(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok || r.err != nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.err = fmt.Errorf("%s: invalid integer %q", key, v)
		return
	}
	*dst = n
}

func (r *envReader) bool(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.err = fmt.Errorf("%s: invalid boolean %q", key, v)
		return
	}
	*dst = b
}

func (c *Config) applyEnv(lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	r.str("APP_ENV", &c.AppEnv)
	r.str("LOG_LEVEL", &c.LogLevel)
	r.str("LOG_FORMAT", &c.LogFormat)
	r.str("LOG_FILE", &c.LogFile)
	r.str("HTTP_ADDR", &c.HTTPAddr)

	r.str("WEIGHT_SERVICE_URL", &c.Services.WeightURL)
	r.str("CAMERA_SERVICE_URL", &c.Services.CameraURL)
	r.str("FRUIT_DETECTOR_URL", &c.Services.FruitDetectorURL)
	r.str("DEFECT_DETECTOR_URL", &c.Services.DefectDetectorURL)
	r.str("UI_SERVICE_URL", &c.Services.UIURL)
	r.str("MAIN_SERVER_URL", &c.Services.MainServerURL)
	r.bool("ENABLE_MAIN_SERVER_PUBLISH", &c.Services.EnableMainServerPublish)
	r.int("HTTP_TIMEOUT_MS", &c.Services.TimeoutMs)

	r.float("MIN_FRUIT_WEIGHT", &c.MinFruitWeight)
	r.float("SIGNIFICANT_DELTA", &c.SignificantDelta)
	r.float("WEIGHT_NOISE_EPSILON", &c.WeightNoiseEpsilon)
	r.int("STABLE_WINDOW_MS", &c.StableWindowMs)
	r.int("MIN_SCAN_INTERVAL_MS", &c.MinScanIntervalMs)
	r.int("WEIGHT_POLL_INTERVAL_MS", &c.WeightPollIntervalMs)
	r.bool("ENABLE_WEIGHT_POLLING", &c.EnableWeightPolling)

	r.int("FRUIT_DETECTOR_PRIMARY_IMGSZ", &c.Detection.PrimaryImgsz)
	r.int("FRUIT_DETECTOR_FALLBACK_IMGSZ", &c.Detection.FallbackImgsz)
	r.float("FRUIT_DETECTOR_CONFIDENCE_GUARD", &c.Detection.ConfidenceGuard)
	r.float("FRUIT_DETECTOR_MIN_BBOX_AREA_RATIO", &c.Detection.MinBBoxAreaRatio)
	r.float("FRUIT_EXPECTED_WEIGHT_PER_FRUIT", &c.Detection.ExpectedWeightPerFruit)
	r.bool("LOG_DISCARDED_DETECTIONS_DETAIL", &c.Detection.LogDiscardedDetections)

	r.str("TELEGRAM_TOKEN", &c.TelegramToken)
	r.str("MQTT_BROKER", &c.MQTT.Broker)
	r.str("MQTT_TOPIC_PREFIX", &c.MQTT.TopicPrefix)
	r.str("MQTT_CLIENT_ID", &c.MQTT.ClientID)

	if r.err != nil {
		return r.err
	}

	// JSON тоже валидный YAML, поэтому принимаем оба формата.
	if v, ok := lookup("FRUIT_CLASS_THRESHOLDS"); ok && strings.TrimSpace(v) != "" {
		thresholds := map[string]float64{}
		if err := yaml.Unmarshal([]byte(v), &thresholds); err != nil {
			return fmt.Errorf("FRUIT_CLASS_THRESHOLDS: %w", err)
		}
		c.Detection.ClassThresholds = thresholds
	}

	if v, ok := lookup("TELEGRAM_ALLOWED_CHATS"); ok {
		chats, err := parseChatIDs(v)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ALLOWED_CHATS: %w", err)
		}
		c.TelegramAllowedChats = chats
	}

	return nil
}

func parseChatIDs(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"WEIGHT_SERVICE_URL":  c.Services.WeightURL,
		"CAMERA_SERVICE_URL":  c.Services.CameraURL,
		"FRUIT_DETECTOR_URL":  c.Services.FruitDetectorURL,
		"DEFECT_DETECTOR_URL": c.Services.DefectDetectorURL,
		"UI_SERVICE_URL":      c.Services.UIURL,
		"MAIN_SERVER_URL":     c.Services.MainServerURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: invalid url %q", name, raw))
		}
	}

	for name, v := range map[string]float64{
		"MIN_FRUIT_WEIGHT":                   c.MinFruitWeight,
		"SIGNIFICANT_DELTA":                  c.SignificantDelta,
		"WEIGHT_NOISE_EPSILON":               c.WeightNoiseEpsilon,
		"FRUIT_DETECTOR_CONFIDENCE_GUARD":    c.Detection.ConfidenceGuard,
		"FRUIT_DETECTOR_MIN_BBOX_AREA_RATIO": c.Detection.MinBBoxAreaRatio,
		"FRUIT_EXPECTED_WEIGHT_PER_FRUIT":    c.Detection.ExpectedWeightPerFruit,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a finite number", name))
		}
	}
	for class, th := range c.Detection.ClassThresholds {
		if math.IsNaN(th) {
			errs = append(errs, fmt.Errorf("class threshold for %q must be a number", class))
		}
	}

	if c.MinFruitWeight < 0 {
		errs = append(errs, errors.New("MIN_FRUIT_WEIGHT must not be negative"))
	}
	if c.SignificantDelta <= 0 {
		errs = append(errs, errors.New("SIGNIFICANT_DELTA must be positive"))
	}
	if c.WeightNoiseEpsilon < 0 {
		errs = append(errs, errors.New("WEIGHT_NOISE_EPSILON must not be negative"))
	}
	if c.StableWindowMs <= 0 {
		errs = append(errs, errors.New("STABLE_WINDOW_MS must be positive"))
	}
	if c.MinScanIntervalMs < 0 {
		errs = append(errs, errors.New("MIN_SCAN_INTERVAL_MS must not be negative"))
	}
	if c.WeightPollIntervalMs <= 0 {
		errs = append(errs, errors.New("WEIGHT_POLL_INTERVAL_MS must be positive"))
	}
	if c.Services.TimeoutMs <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT_MS must be positive"))
	}

	d := c.Detection
	if d.PrimaryImgsz <= 0 || d.FallbackImgsz <= 0 {
		errs = append(errs, errors.New("detector image sizes must be positive"))
	}
	if d.ConfidenceGuard < 0 || d.ConfidenceGuard > 1 {
		errs = append(errs, errors.New("FRUIT_DETECTOR_CONFIDENCE_GUARD must be within [0,1]"))
	}
	if d.MinBBoxAreaRatio < 0 || d.MinBBoxAreaRatio > 1 {
		errs = append(errs, errors.New("FRUIT_DETECTOR_MIN_BBOX_AREA_RATIO must be within [0,1]"))
	}
	if d.ExpectedWeightPerFruit <= 0 {
		errs = append(errs, errors.New("FRUIT_EXPECTED_WEIGHT_PER_FRUIT must be positive"))
	}
	for class, th := range d.ClassThresholds {
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("class threshold for %q must be within [0,1]", class))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) StableWindow() time.Duration {
	return time.Duration(c.StableWindowMs) * time.Millisecond
}

func (c *Config) MinScanInterval() time.Duration {
	return time.Duration(c.MinScanIntervalMs) * time.Millisecond
}

func (c *Config) WeightPollInterval() time.Duration {
	return time.Duration(c.WeightPollIntervalMs) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Services.TimeoutMs) * time.Millisecond
}
