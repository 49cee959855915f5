package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogQueries      bool

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	// ScaleName is the BLE local name the scanner filters on; it also names
	// the MQTT topic the server subscribes to (scale/<name>/packets).
	ScaleName string
	// ScaleCompanyID is the manufacturer/company identifier the scale
	// advertises under. On this firmware revision it carries no weight data.
	ScaleCompanyID uint16
	BLEAdapter     string

	SessionGap      time.Duration
	ReconcileWindow time.Duration
	IngestInterval  time.Duration
}

func LoadFromEnv() (Config, error) {
	// Local development convenience; an absent .env is fine.
	_ = godotenv.Load()

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if path == "" {
		path = "data/scalibur.db"
	}

	maxOpenConns, err := intEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logQueries := strings.TrimSpace(os.Getenv("DB_LOG_QUERIES")) == "true"

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}
	mqttPort, err := intEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "scalibur"
	}

	scaleName := strings.TrimSpace(os.Getenv("SCALE_NAME"))
	if scaleName == "" {
		scaleName = "tzc"
	}

	companyIDStr := strings.TrimSpace(os.Getenv("SCALE_COMPANY_ID"))
	if companyIDStr == "" {
		companyIDStr = "0xa6c0"
	}
	companyID, err := strconv.ParseUint(companyIDStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SCALE_COMPANY_ID %q: %w", companyIDStr, err)
	}

	bleAdapter := strings.TrimSpace(os.Getenv("BLE_ADAPTER"))
	if bleAdapter == "" {
		bleAdapter = "hci0"
	}

	sessionGap, err := positiveDurationEnv("SESSION_GAP", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	reconcileWindow, err := positiveDurationEnv("RECONCILE_WINDOW", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	ingestInterval, err := positiveDurationEnv("INGEST_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogQueries:      logQueries,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		ScaleName:             scaleName,
		ScaleCompanyID:        uint16(companyID),
		BLEAdapter:            bleAdapter,
		SessionGap:            sessionGap,
		ReconcileWindow:       reconcileWindow,
		IngestInterval:        ingestInterval,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func positiveDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v, err := durationEnv(key, def)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
