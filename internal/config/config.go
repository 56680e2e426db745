package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ModelPath       string
	LabelsPath      string
	FaceCascadePath string

	TargetLanguage       string
	TranslateTimeout     time.Duration
	TranslationCache     string // memory, redis albo none
	TranslationCacheSize int
	RedisAddr            string

	CameraIndex         int
	SessionTimeout      time.Duration // Czas bez wykrytego liścia po którym sesja się kończy
	ResultHold          time.Duration // Jak długo wynik zostaje na ekranie
	ConfidenceThreshold float64
	Headless            bool

	PreviewAddr     string
	PreviewPassword string

	HistoryDB             string
	SnapshotDirectory     string
	SnapshotBufferLimit   int
	SnapshotFlushInterval int // w sekundach

	LogDirectory string
	Debug        bool

	Detection Detection
}

// Detection holds the leaf acceptance thresholds. Defaults match the values the
// classifier was tuned with; a YAML file can override any of them.
type Detection struct {
	MinArea         float64 `yaml:"min_area"`
	MinAreaFraction float64 `yaml:"min_area_fraction"`
	MaxAreaFraction float64 `yaml:"max_area_fraction"`
	MinGreenRatio   float64 `yaml:"min_green_ratio"`
	MinSolidity     float64 `yaml:"min_solidity"`
	MaxSolidity     float64 `yaml:"max_solidity"`
	MinAspectRatio  float64 `yaml:"min_aspect_ratio"`
	MaxAspectRatio  float64 `yaml:"max_aspect_ratio"`
	MaxCircularity  float64 `yaml:"max_circularity"`
	KernelSize      int     `yaml:"kernel_size"`
}

// DefaultDetection returns the stock leaf acceptance thresholds.
func DefaultDetection() Detection {
	return Detection{
		MinArea:         12000,
		MaxAreaFraction: 0.8,
		MinGreenRatio:   0.25,
		MinSolidity:     0.5,
		MaxSolidity:     1.0,
		MinAspectRatio:  0.3,
		MaxAspectRatio:  3.0,
		MaxCircularity:  0.8,
		KernelSize:      5,
	}
}

// Load reads .env (if present) and the environment, then applies the optional
// detection threshold file named by DETECTION_CONFIG.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(".", "models", "plant_disease_model.onnx")),
		LabelsPath:      getEnv("LABELS_PATH", filepath.Join(".", "models", "labels.txt")),
		FaceCascadePath: getEnv("FACE_CASCADE_PATH", filepath.Join(".", "data", "haarcascade_frontalface_default.xml")),

		TargetLanguage:       getEnv("TARGET_LANG", "ta"),
		TranslateTimeout:     time.Duration(getEnvAsInt("TRANSLATE_TIMEOUT_MS", 5000)) * time.Millisecond,
		TranslationCache:     getEnv("TRANSLATION_CACHE", "memory"),
		TranslationCacheSize: getEnvAsInt("TRANSLATION_CACHE_SIZE", 256),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),

		CameraIndex:         getEnvAsInt("CAMERA_INDEX", 0),
		SessionTimeout:      getEnvAsDuration("SESSION_TIMEOUT", 15*time.Second),
		ResultHold:          getEnvAsDuration("RESULT_HOLD", 3*time.Second),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7),
		Headless:            getEnvAsBool("HEADLESS", false),

		PreviewAddr:     getEnv("PREVIEW_ADDR", ""),
		PreviewPassword: getEnv("PREVIEW_PASSWORD", ""),

		HistoryDB:             getEnv("HISTORY_DB", ""),
		SnapshotDirectory:     getEnv("SNAPSHOT_DIR", filepath.Join(".", "snapshots")),
		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 7),
		SnapshotFlushInterval: getEnvAsInt("SNAPSHOT_FLUSH_INTERVAL", 30),

		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		Debug:        getEnvAsBool("DEBUG", false),

		Detection: DefaultDetection(),
	}

	if path := os.Getenv("DETECTION_CONFIG"); path != "" {
		det, err := LoadDetection(path, cfg.Detection)
		if err != nil {
			return nil, err
		}
		cfg.Detection = det
	}

	return cfg, nil
}

// LoadDetection overlays the YAML file at path on base. Keys missing from the
// file keep their base value.
func LoadDetection(path string, base Detection) (Detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read detection config: %w", err)
	}

	det := base
	if err := yaml.Unmarshal(data, &det); err != nil {
		return base, fmt.Errorf("failed to parse detection config %s: %w", path, err)
	}
	if det.KernelSize <= 0 {
		det.KernelSize = base.KernelSize
	}
	return det, nil
}

// HistoryEnabled reports whether predictions should be persisted.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDB != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
