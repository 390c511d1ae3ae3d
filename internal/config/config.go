package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed emotions.yaml
var emotionsYAML []byte

type Config struct {
	Database DatabaseConfig
	Tracker  TrackerConfig
	Web      WebConfig
	Emotions EmotionsConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL; empty runs the tracker in-memory only
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the HNSW candidate index (optional, if empty index is rebuilt on startup)
}

type TrackerConfig struct {
	EmbeddingDim      int     // fixed embedding dimensionality (default 128, face_recognition encoding size)
	DistanceThreshold float64 // cosine distance below which two embeddings are the same identity (default 0.6)
	CandidateK        int     // candidates requested from the vector store per match (default 5)
	MaxHistory        int     // per-identity history cap, 0 keeps full session history
}

type WebConfig struct {
	Host      string
	Port      int
	ExportDir string // directory for timestamped session exports (default ".")
}

type EmotionsConfig struct {
	Labels []string `yaml:"labels"`
}

// Contains reports whether label is part of the configured label set.
func (c *EmotionsConfig) Contains(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var emotions EmotionsConfig
	if err := yaml.Unmarshal(emotionsYAML, &emotions); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded emotions.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Tracker: TrackerConfig{
			EmbeddingDim:      envInt("FACETRACK_EMBEDDING_DIM", 128),
			DistanceThreshold: envFloat("FACETRACK_DISTANCE_THRESHOLD", 0.6),
			CandidateK:        envInt("FACETRACK_CANDIDATE_K", 5),
			MaxHistory:        envInt("FACETRACK_MAX_HISTORY", 0),
		},
		Web: WebConfig{
			Host:      envString("WEB_HOST", "0.0.0.0"),
			Port:      envInt("WEB_PORT", 8080),
			ExportDir: envString("FACETRACK_EXPORT_DIR", "."),
		},
		Emotions: emotions,
	}
}
