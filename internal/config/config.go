package config

import (
	"os"
	"time"
)

type Config struct {
	ListenAddr       string
	StorageBackend   string
	DBPath           string
	DataPath         string
	LookupBaseURL    string
	ScannerDevices   string
	ScanRepeatWindow time.Duration
	LogLevel         string
	LogFile          string
	TestMode         bool
}

func Load() *Config {
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		StorageBackend:   getEnv("STORAGE_BACKEND", "sqlite"),
		DBPath:           getEnv("DB_PATH", "/data/fridgescan.db"),
		DataPath:         getEnv("DATA_PATH", "/data/lists"),
		LookupBaseURL:    getEnv("LOOKUP_BASE_URL", "https://world.openfoodfacts.org"),
		ScannerDevices:   getEnv("SCANNER_DEVICES", "/dev/ttyACM*"),
		ScanRepeatWindow: getDuration("SCAN_REPEAT_WINDOW", 2*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		TestMode:         os.Getenv("FRIDGESCAN_TEST_MODE") == "1",
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// getDuration falls back to defaultVal when the variable is unset or unparsable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
