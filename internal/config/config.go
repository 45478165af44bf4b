package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	WorkbookRewrite = "rewrite"
	WorkbookInPlace = "inplace"
)

type Config struct {
	APIURL         string
	Currency       string
	Limit          int
	TopK           int
	DominanceAsset string

	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	MinRequestGap   time.Duration

	WorkbookPath     string
	WorkbookMode     string
	TextReportPath   string
	HTMLReportPath   string
	HTMLReportInLoop bool
	PDFReportPath    string
	ChromePath       string
	ParquetPath      string

	RedisURL      string
	RedisPassword string
	DatabaseURL   string

	// Port enables the HTTP API when set.
	Port           string
	FrontendOrigin string
	LogLevel       string
}

// Load builds the configuration from, lowest precedence first: defaults, a
// .env file, the YAML file named by TRACKER_CONFIG, the environment, and
// Infisical for secrets still unset.
func Load() (Config, error) {
	l := &loader{}
	envFile := envOr("TRACKER_ENV_FILE", ".env")
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	l.dotenv = dotenv

	if path := os.Getenv("TRACKER_CONFIG"); path != "" {
		file, err := readYAML(path)
		if err != nil {
			return Config{}, err
		}
		l.file = file
	}

	cfg := Config{
		APIURL:         l.str("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"),
		Currency:       strings.ToLower(l.str("VS_CURRENCY", "usd")),
		Limit:          l.integer("ASSET_LIMIT", 50),
		TopK:           l.integer("TOP_K", 5),
		DominanceAsset: l.str("DOMINANCE_ASSET", "Bitcoin"),

		RefreshInterval: l.dur("REFRESH_INTERVAL", 300*time.Second),
		RequestTimeout:  l.dur("REQUEST_TIMEOUT", 15*time.Second),
		MinRequestGap:   l.dur("MIN_REQUEST_GAP", 2*time.Second),

		WorkbookPath:     l.str("WORKBOOK_PATH", "crypto_data_live.xlsx"),
		WorkbookMode:     strings.ToLower(l.str("WORKBOOK_MODE", WorkbookRewrite)),
		TextReportPath:   l.str("TEXT_REPORT_PATH", "crypto_analysis_report.txt"),
		HTMLReportPath:   l.str("HTML_REPORT_PATH", "Crypto_Analysis_Report.html"),
		HTMLReportInLoop: l.boolean("HTML_REPORT_IN_LOOP", false),
		PDFReportPath:    l.str("PDF_REPORT_PATH", ""),
		ChromePath:       l.str("CHROME_PATH", ""),
		ParquetPath:      l.str("PARQUET_PATH", ""),

		RedisURL:      l.str("REDIS_URL", ""),
		RedisPassword: l.str("REDIS_PASSWORD", ""),
		DatabaseURL:   l.str("DATABASE_URL", ""),

		Port:           l.str("PORT", ""),
		FrontendOrigin: l.str("FRONTEND_ORIGIN", "*"),
		LogLevel:       l.str("LOG_LEVEL", "info"),
	}
	if l.err != nil {
		return Config{}, l.err
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg, cfg.Validate()
}

// Validate checks ranges the rest of the program relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Limit < 1 || c.Limit > 250 {
		errs = append(errs, fmt.Errorf("ASSET_LIMIT must be in 1..250, got %d", c.Limit))
	}
	if c.TopK < 1 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.MinRequestGap < 0 {
		errs = append(errs, fmt.Errorf("MIN_REQUEST_GAP must not be negative, got %s", c.MinRequestGap))
	}
	if c.WorkbookMode != WorkbookRewrite && c.WorkbookMode != WorkbookInPlace {
		errs = append(errs, fmt.Errorf("WORKBOOK_MODE must be %q or %q, got %q", WorkbookRewrite, WorkbookInPlace, c.WorkbookMode))
	}
	if c.Currency == "" {
		errs = append(errs, errors.New("VS_CURRENCY must not be empty"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog level; unknown values give info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loader reads a key from the environment, then the YAML file, then the
// .env file. Empty values count as unset in every layer. The first parse
// error is kept.
type loader struct {
	file   map[string]string
	dotenv map[string]string
	err    error
}

func (l *loader) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	if v := l.file[key]; v != "" {
		return v, true
	}
	if v := l.dotenv[key]; v != "" {
		return v, true
	}
	return "", false
}

func (l *loader) str(key, fallback string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return fallback
}

func (l *loader) integer(key string, fallback int) int {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.fail(fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

// dur accepts Go durations ("5m", "1m30s") or a bare number of seconds.
func (l *loader) dur(key string, fallback time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func (l *loader) boolean(key string, fallback bool) bool {
	v, ok := l.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		l.fail(fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func (l *loader) fail(err error) {
	if l.err == nil {
		l.err = err
	}
}

// readYAML loads a flat mapping. Keys match the environment variable names
// case-insensitively, so "refresh_interval: 5m" sets REFRESH_INTERVAL.
func readYAML(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	secrets := map[string]*string{
		"DATABASE_URL":   &cfg.DatabaseURL,
		"REDIS_PASSWORD": &cfg.RedisPassword,
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
