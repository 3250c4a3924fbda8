package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ProjectDir string `json:"project_dir" mapstructure:"project_dir"`
	ResultsDir string `json:"results_dir" mapstructure:"results_dir"`
	DataDir    string `json:"data_dir" mapstructure:"data_dir"`
	HistoryDB  string `json:"history_db" mapstructure:"history_db"`

	// Cache file kept in the remote repository
	CacheFile string `json:"cache_file" mapstructure:"cache_file"`
	RepoDir   string `json:"repo_dir" mapstructure:"repo_dir"`

	// Git remote
	GitUserName  string `json:"git_user_name" mapstructure:"git_user_name"`
	GitUserEmail string `json:"git_user_email" mapstructure:"git_user_email"`
	GitPAT       string `json:"-" mapstructure:"git_pat"`
	GitBranch    string `json:"git_branch" mapstructure:"git_branch"`
	GitRepoName  string `json:"git_repo_name" mapstructure:"git_repo_name"`
	GitRemoteURL string `json:"git_remote_url" mapstructure:"git_remote_url"`
	SyncEnabled  bool   `json:"sync_enabled" mapstructure:"sync_enabled"`

	// Data providers
	TWSEBaseURL       string        `json:"twse_base_url" mapstructure:"twse_base_url"`
	TWSEFormat        string        `json:"twse_format" mapstructure:"twse_format"`
	YahooChartBaseURL string        `json:"yahoo_chart_base_url" mapstructure:"yahoo_chart_base_url"`
	PriceSource       string        `json:"price_source" mapstructure:"price_source"`
	HTTPTimeout       time.Duration `json:"http_timeout" mapstructure:"http_timeout"`
	BatchInterval     time.Duration `json:"batch_interval" mapstructure:"batch_interval"`
	MonthlyInterval   time.Duration `json:"monthly_interval" mapstructure:"monthly_interval"`
	ProbeDays         int           `json:"probe_days" mapstructure:"probe_days"`

	// Indicator
	BollingerLength int     `json:"bollinger_length" mapstructure:"bollinger_length"`
	BandWidth       float64 `json:"band_width" mapstructure:"band_width"`

	// Display numbering anchor: AnchorDate is printed with AnchorIndex
	AnchorDate  string `json:"anchor_date" mapstructure:"anchor_date"`
	AnchorIndex int    `json:"anchor_index" mapstructure:"anchor_index"`

	Debug bool `json:"debug" mapstructure:"debug"`
}

const (
	PriceSourceYahoo      = "yahoo"
	PriceSourceYahooChart = "yahoo-chart"

	FormatCSV  = "csv"
	FormatHTML = "html"
)

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir: currentDir,
		ResultsDir: filepath.Join(currentDir, "results"),
		DataDir:    filepath.Join(currentDir, "data"),
		HistoryDB:  filepath.Join(currentDir, "data", "history.db"),

		CacheFile: "json_data.json",
		RepoDir:   "repo",

		GitBranch:   "main",
		GitRepoName: "TSE_PBR_Data",
		SyncEnabled: true,

		TWSEBaseURL:       "https://www.twse.com.tw",
		TWSEFormat:        FormatCSV,
		YahooChartBaseURL: "https://query1.finance.yahoo.com",
		PriceSource:       PriceSourceYahoo,
		HTTPTimeout:       30 * time.Second,
		BatchInterval:     500 * time.Millisecond,
		MonthlyInterval:   time.Second,
		ProbeDays:         15,

		BollingerLength: 20,
		BandWidth:       2,

		AnchorDate:  "20251201",
		AnchorIndex: 949,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("TWPBR_PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("TWPBR_RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("TWPBR_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("TWPBR_HISTORY_DB"); val != "" {
		c.HistoryDB = val
	}
	if val := os.Getenv("TWPBR_CACHE_FILE"); val != "" {
		c.CacheFile = val
	}
	if val := os.Getenv("TWPBR_REPO_DIR"); val != "" {
		c.RepoDir = val
	}

	if val := os.Getenv("GIT_USER_NAME"); val != "" {
		c.GitUserName = val
	}
	if val := os.Getenv("GIT_USER_EMAIL"); val != "" {
		c.GitUserEmail = val
	}
	if val := os.Getenv("GIT_PAT"); val != "" {
		c.GitPAT = val
	}
	if val := os.Getenv("TWPBR_GIT_BRANCH"); val != "" {
		c.GitBranch = val
	}
	if val := os.Getenv("TWPBR_GIT_REPO"); val != "" {
		c.GitRepoName = val
	}
	if val := os.Getenv("TWPBR_GIT_REMOTE_URL"); val != "" {
		c.GitRemoteURL = val
	}
	if val := os.Getenv("TWPBR_SYNC"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.SyncEnabled = enabled
		}
	}

	if val := os.Getenv("TWPBR_TWSE_BASE_URL"); val != "" {
		c.TWSEBaseURL = val
	}
	if val := os.Getenv("TWPBR_TWSE_FORMAT"); val != "" {
		c.TWSEFormat = strings.ToLower(val)
	}
	if val := os.Getenv("TWPBR_YAHOO_CHART_BASE_URL"); val != "" {
		c.YahooChartBaseURL = val
	}
	if val := os.Getenv("TWPBR_PRICE_SOURCE"); val != "" {
		c.PriceSource = strings.ToLower(val)
	}
	if val := os.Getenv("TWPBR_HTTP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.HTTPTimeout = d
		}
	}
	if val := os.Getenv("TWPBR_BATCH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.BatchInterval = d
		}
	}
	if val := os.Getenv("TWPBR_MONTHLY_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.MonthlyInterval = d
		}
	}
	if val := os.Getenv("TWPBR_PROBE_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.ProbeDays = v
		}
	}

	if val := os.Getenv("TWPBR_BOLLINGER_LENGTH"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.BollingerLength = v
		}
	}
	if val := os.Getenv("TWPBR_BAND_WIDTH"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.BandWidth = v
		}
	}
	if val := os.Getenv("TWPBR_ANCHOR_DATE"); val != "" {
		c.AnchorDate = val
	}
	if val := os.Getenv("TWPBR_ANCHOR_INDEX"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AnchorIndex = v
		}
	}

	if val := os.Getenv("TWPBR_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

// LoadFile merges a config file (toml, yaml or json) over c. Keys absent from
// the file keep their current values.
func (c *Config) LoadFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// Validate checks every setting, including the git credentials when sync is on.
func (c *Config) Validate() error {
	if err := c.ValidateValues(); err != nil {
		return err
	}
	return c.ValidateSync()
}

// ValidateValues checks the settings that do not involve git.
func (c *Config) ValidateValues() error {
	if strings.TrimSpace(c.CacheFile) == "" {
		return errors.New("cache file name is required")
	}
	if c.BollingerLength < 2 {
		return fmt.Errorf("bollinger length must be at least 2, got %d", c.BollingerLength)
	}
	if c.BandWidth <= 0 {
		return fmt.Errorf("band width must be positive, got %v", c.BandWidth)
	}
	if c.ProbeDays < 1 || c.ProbeDays > 31 {
		return fmt.Errorf("probe days must be between 1 and 31, got %d", c.ProbeDays)
	}
	switch c.PriceSource {
	case PriceSourceYahoo, PriceSourceYahooChart:
	default:
		return fmt.Errorf("unknown price source %q", c.PriceSource)
	}
	switch c.TWSEFormat {
	case FormatCSV, FormatHTML:
	default:
		return fmt.Errorf("unknown twse format %q", c.TWSEFormat)
	}
	return nil
}

// ValidateSync checks that a remote can be reached when git sync is on.
func (c *Config) ValidateSync() error {
	if c.SyncEnabled && c.GitRemoteURL == "" && (c.GitUserName == "" || c.GitPAT == "") {
		return errors.New("git sync needs GIT_USER_NAME and GIT_PAT, or an explicit remote url")
	}
	return nil
}

// RemoteURL returns the remote the cache repository is cloned from. The
// credentials are embedded in the URL.
func (c *Config) RemoteURL() string {
	if c.GitRemoteURL != "" {
		return c.GitRemoteURL
	}
	return fmt.Sprintf("https://%s:%s@github.com/%s/%s.git", c.GitUserName, c.GitPAT, c.GitUserName, c.GitRepoName)
}

// RedactedRemoteURL is RemoteURL with the password masked, safe for logs.
func (c *Config) RedactedRemoteURL() string {
	raw := c.RemoteURL()
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
