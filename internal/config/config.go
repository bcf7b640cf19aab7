package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Sheets    SheetsConfig    `yaml:"sheets"`
	Cache     CacheConfig     `yaml:"cache"`
	Quote     QuoteConfig     `yaml:"quote"`
	Distance  DistanceConfig  `yaml:"distance"`
	Alert     AlertConfig     `yaml:"alert"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	AdminToken string `yaml:"admin_token"` // bearer token for /admin routes; empty disables the check
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// StoreConfig selects the catalog store backend
type StoreConfig struct {
	Type string `yaml:"type"` // "postgres" or "firestore"
}

// FirestoreConfig contains Firestore settings, used when store.type is firestore
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// SheetsConfig locates the pricing spreadsheet
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	ProductsTab     string `yaml:"products_tab"`
	GeneratorsTab   string `yaml:"generators_tab"`
	BranchesTab     string `yaml:"branches_tab"`
	StatesTab       string `yaml:"states_tab"`
	ConfigTab       string `yaml:"config_tab"`
	SeasonalTab     string `yaml:"seasonal_tab"`
}

// CacheConfig contains cache TTLs
type CacheConfig struct {
	CatalogTTLMinutes  int `yaml:"catalog_ttl_minutes"`  // 0 keeps the catalog until replaced
	LocationTTLMinutes int `yaml:"location_ttl_minutes"`
}

// QuoteConfig contains quote engine settings
type QuoteConfig struct {
	ValidityDays     int    `yaml:"validity_days"`
	DefaultEventTier string `yaml:"default_event_tier"` // used when an event request names no tier
}

// DistanceConfig points at the external distance resolver
type DistanceConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AlertConfig contains operator alert email settings. Alerts are off when
// the API key is empty.
type AlertConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	From           string `yaml:"from"`
	To             string `yaml:"to"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SyncCatalog string `yaml:"sync_catalog"`
	CacheStats  string `yaml:"cache_stats"`
	SyncOnStart bool   `yaml:"sync_on_start"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applies environment
// overrides and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Store
	if val := os.Getenv("STORE_TYPE"); val != "" {
		c.Store.Type = val
	}
	if val := os.Getenv("FIRESTORE_PROJECT_ID"); val != "" {
		c.Firestore.ProjectID = val
	}
	if val := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); val != "" {
		if c.Firestore.CredentialsFile == "" {
			c.Firestore.CredentialsFile = val
		}
		if c.Sheets.CredentialsFile == "" {
			c.Sheets.CredentialsFile = val
		}
	}

	// Sheets
	if val := os.Getenv("SHEETS_SPREADSHEET_ID"); val != "" {
		c.Sheets.SpreadsheetID = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("ADMIN_TOKEN"); val != "" {
		c.Server.AdminToken = val
	}

	// Distance
	if val := os.Getenv("DISTANCE_BASE_URL"); val != "" {
		c.Distance.BaseURL = val
	}

	// Alert
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Alert.SendGridAPIKey = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Store validation
	if c.Store.Type == "" {
		c.Store.Type = "postgres"
	}
	switch c.Store.Type {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "firestore":
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore project id is required")
		}
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}

	// Sheets validation
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets spreadsheet id is required")
	}
	if c.Sheets.ProductsTab == "" {
		c.Sheets.ProductsTab = "Products"
	}
	if c.Sheets.GeneratorsTab == "" {
		c.Sheets.GeneratorsTab = "Generators"
	}
	if c.Sheets.BranchesTab == "" {
		c.Sheets.BranchesTab = "Branches"
	}
	if c.Sheets.StatesTab == "" {
		c.Sheets.StatesTab = "States"
	}
	if c.Sheets.ConfigTab == "" {
		c.Sheets.ConfigTab = "Config"
	}
	if c.Sheets.SeasonalTab == "" {
		c.Sheets.SeasonalTab = "Seasonal"
	}

	// Alert validation
	if c.Alert.SendGridAPIKey != "" && (c.Alert.From == "" || c.Alert.To == "") {
		return fmt.Errorf("alert from and to addresses are required when sendgrid is configured")
	}

	// Cache defaults
	if c.Cache.CatalogTTLMinutes < 0 {
		return fmt.Errorf("invalid catalog ttl: %d", c.Cache.CatalogTTLMinutes)
	}
	if c.Cache.LocationTTLMinutes <= 0 {
		c.Cache.LocationTTLMinutes = 24 * 60 // one day
	}

	// Quote defaults
	if c.Quote.ValidityDays <= 0 {
		c.Quote.ValidityDays = 30
	}
	if c.Quote.DefaultEventTier == "" {
		c.Quote.DefaultEventTier = "standard"
	}

	// Distance defaults
	if c.Distance.TimeoutSeconds <= 0 {
		c.Distance.TimeoutSeconds = 10
	}

	// Scheduler defaults
	if c.Scheduler.SyncCatalog == "" {
		c.Scheduler.SyncCatalog = "0 */15 * * * *" // every 15 minutes
	}
	if c.Scheduler.CacheStats == "" {
		c.Scheduler.CacheStats = "0 0 * * * *" // hourly
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CatalogTTL returns the catalog cache TTL; zero means no expiry
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Cache.CatalogTTLMinutes) * time.Minute
}

// LocationTTL returns the location cache TTL
func (c *Config) LocationTTL() time.Duration {
	return time.Duration(c.Cache.LocationTTLMinutes) * time.Minute
}

// DistanceTimeout returns the distance resolver request timeout
func (c *Config) DistanceTimeout() time.Duration {
	return time.Duration(c.Distance.TimeoutSeconds) * time.Second
}

// QuoteValidity returns how long a generated quote stays valid
func (c *Config) QuoteValidity() time.Duration {
	return time.Duration(c.Quote.ValidityDays) * 24 * time.Hour
}
