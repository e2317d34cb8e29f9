package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON config file looked up in the config directory.
const ConfigFileName = "roverwatch.cfg.json"

// Locator strategies understood by the browser session.
const (
	ByCSS   = "css"
	ByXPath = "xpath"
	ByID    = "id"
)

// Locator identifies one element of the mission map.
type Locator struct {
	By    string `json:"by" mapstructure:"by"`
	Value string `json:"value" mapstructure:"value"`
}

func (l Locator) String() string {
	return l.By + "=" + l.Value
}

// Locators is the set of element locators the collector depends on.
// It is read once and passed by value.
type Locators struct {
	Frame           Locator `json:"frame" mapstructure:"frame"`
	Waypoint        Locator `json:"waypoint" mapstructure:"waypoint"`
	ReadoutHost     Locator `json:"readoutHost" mapstructure:"readoutHost"`
	ReadoutText     Locator `json:"readoutText" mapstructure:"readoutText"`
	SolLabel        Locator `json:"solLabel" mapstructure:"solLabel"`
	Title           Locator `json:"title" mapstructure:"title"`
	Info            Locator `json:"info" mapstructure:"info"`
	CurrentPosition Locator `json:"currentPosition" mapstructure:"currentPosition"`
}

// Timeouts bounds every wait-then-act step against the map.
type Timeouts struct {
	Frame    time.Duration
	Click    time.Duration
	Presence time.Duration
}

// MissionConfig holds the page the collector drives.
type MissionConfig struct {
	URL string
}

// BrowserConfig holds Chrome launch settings.
type BrowserConfig struct {
	ControlURL        string
	Bin               string
	Headless          bool
	NoSandbox         bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// WebSocketConfig holds streaming storage backend settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// PostgresConfig holds the db.* connection settings
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	WebSocket WebSocketConfig
	Postgres  PostgresConfig
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ServerConfig holds query API settings
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// InfluxConfig holds run metrics settings
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// APIConfig holds downstream ingest settings
type APIConfig struct {
	Enabled   bool
	ServerURL string
	APIKey    string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("ROVERWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./roverlogs")

	viper.SetDefault("mission.url", "https://mars.nasa.gov/msl/mission/where-is-the-rover/")

	viper.SetDefault("locators.frame.by", ByXPath)
	viper.SetDefault("locators.frame.value", `//iframe[@src="https://mars.nasa.gov/maps/location/?mission=MSL&site=NOW"]`)
	viper.SetDefault("locators.waypoint.by", ByCSS)
	viper.SetDefault("locators.waypoint.value", "path.waypoints.leaflet-interactive")
	viper.SetDefault("locators.readoutHost.by", ByCSS)
	viper.SetDefault("locators.readoutHost.value", "div.mouseLngLat")
	viper.SetDefault("locators.readoutText.by", ByCSS)
	viper.SetDefault("locators.readoutText.value", "p#mouseLngLat")
	viper.SetDefault("locators.solLabel.by", ByID)
	viper.SetDefault("locators.solLabel.value", "mainDescPointInner")
	viper.SetDefault("locators.title.by", ByID)
	viper.SetDefault("locators.title.value", "topBarTitle")
	viper.SetDefault("locators.info.by", ByCSS)
	viper.SetDefault("locators.info.value", "div.mainInfo")
	viper.SetDefault("locators.currentPosition.by", ByCSS)
	viper.SetDefault("locators.currentPosition.value", "img.leaflet-marker-icon.leaflet-zoom-animated.leaflet-interactive")

	viper.SetDefault("timeouts.frame", "15s")
	viper.SetDefault("timeouts.click", "15s")
	viper.SetDefault("timeouts.presence", "10s")

	viper.SetDefault("browser.controlUrl", "")
	viper.SetDefault("browser.bin", "")
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.noSandbox", false)
	viper.SetDefault("browser.viewportWidth", 1920)
	viper.SetDefault("browser.viewportHeight", 1080)
	viper.SetDefault("browser.navigationTimeout", "60s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./fixtures")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "./roverwatch.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "roverwatch")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdownTimeout", "10s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "roverwatch")
	viper.SetDefault("influx.bucket", "collection_runs")
	viper.SetDefault("influx.backupPath", "./roverlogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "roverwatch")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// UseDefaults installs the default values without reading a config file.
func UseDefaults() {
	setDefaults()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetMissionConfig returns the mission page settings.
func GetMissionConfig() MissionConfig {
	return MissionConfig{URL: viper.GetString("mission.url")}
}

// GetLocators returns the configured element locators.
func GetLocators() (Locators, error) {
	l := Locators{
		Frame:           getLocator("frame"),
		Waypoint:        getLocator("waypoint"),
		ReadoutHost:     getLocator("readoutHost"),
		ReadoutText:     getLocator("readoutText"),
		SolLabel:        getLocator("solLabel"),
		Title:           getLocator("title"),
		Info:            getLocator("info"),
		CurrentPosition: getLocator("currentPosition"),
	}
	if err := l.Validate(); err != nil {
		return Locators{}, err
	}
	return l, nil
}

func getLocator(name string) Locator {
	return Locator{
		By:    viper.GetString("locators." + name + ".by"),
		Value: viper.GetString("locators." + name + ".value"),
	}
}

// Validate checks that every locator has a known strategy and a value.
func (l Locators) Validate() error {
	named := []struct {
		name string
		loc  Locator
	}{
		{"frame", l.Frame},
		{"waypoint", l.Waypoint},
		{"readoutHost", l.ReadoutHost},
		{"readoutText", l.ReadoutText},
		{"solLabel", l.SolLabel},
		{"title", l.Title},
		{"info", l.Info},
		{"currentPosition", l.CurrentPosition},
	}
	for _, n := range named {
		switch n.loc.By {
		case ByCSS, ByXPath, ByID:
		default:
			return fmt.Errorf("locator %s: unknown strategy %q", n.name, n.loc.By)
		}
		if n.loc.Value == "" {
			return fmt.Errorf("locator %s: empty value", n.name)
		}
	}
	return nil
}

// GetTimeouts returns the interaction timeouts.
func GetTimeouts() Timeouts {
	return Timeouts{
		Frame:    viper.GetDuration("timeouts.frame"),
		Click:    viper.GetDuration("timeouts.click"),
		Presence: viper.GetDuration("timeouts.presence"),
	}
}

// GetBrowserConfig returns the Chrome launch settings.
func GetBrowserConfig() BrowserConfig {
	return BrowserConfig{
		ControlURL:        viper.GetString("browser.controlUrl"),
		Bin:               viper.GetString("browser.bin"),
		Headless:          viper.GetBool("browser.headless"),
		NoSandbox:         viper.GetBool("browser.noSandbox"),
		ViewportWidth:     viper.GetInt("browser.viewportWidth"),
		ViewportHeight:    viper.GetInt("browser.viewportHeight"),
		NavigationTimeout: viper.GetDuration("browser.navigationTimeout"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetServerConfig returns the query API settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            viper.GetString("server.addr"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
	}
}

// GetInfluxConfig returns the run metrics settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetAPIConfig returns the downstream ingest settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
