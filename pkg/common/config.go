package common

import (
	"io/fs"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ServiceConfig configures the configuration service binary.
type ServiceConfig struct {
	Port          string        `koanf:"port"`
	APIKey        string        `koanf:"api_key"`
	SigningSecret string        `koanf:"signature_secret"`
	ReplayWindow  time.Duration `koanf:"replay_window"`
	// AllowedOrigin is the main app's origin, allowed by CORS.
	AllowedOrigin string `koanf:"main_app_url"`
	Store         string `koanf:"store"` // "sqlite" or "etcd"
	DBPath        string `koanf:"db_path"`
	EtcdEndpoints string `koanf:"etcd_endpoints"` // comma separated
	JournalPath   string `koanf:"journal_path"`   // empty disables the journal
	LogLevel      string `koanf:"log_level"`
}

func (c ServiceConfig) Addr() string { return ":" + c.Port }

func (c ServiceConfig) Etcd() []string { return splitList(c.EtcdEndpoints) }

func (c ServiceConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("SERVICE_API_KEY is required")
	}
	if c.SigningSecret == "" {
		return errors.New("SIGNATURE_SECRET is required")
	}
	switch c.Store {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite store")
		}
	case "etcd":
		if len(c.Etcd()) == 0 {
			return errors.New("ETCD_ENDPOINTS is required for the etcd store")
		}
	default:
		return errors.Newf("unknown store %q", c.Store)
	}
	return nil
}

// ClientConfig configures callers of the configuration service.
type ClientConfig struct {
	ServiceURLs   string `koanf:"service_url"` // comma separated replicas
	APIKey        string `koanf:"api_key"`
	SigningSecret string `koanf:"signature_secret"`
	UserID        string `koanf:"user_id"`
}

func (c ClientConfig) Endpoints() []string { return splitList(c.ServiceURLs) }

func (c ClientConfig) Validate() error {
	if len(c.Endpoints()) == 0 {
		return errors.New("CONFIG_SERVICE_URL is required")
	}
	if c.APIKey == "" {
		return errors.New("CONFIG_SERVICE_API_KEY is required")
	}
	if c.SigningSecret == "" {
		return errors.New("SIGNATURE_SECRET is required")
	}
	return nil
}

var serviceEnv = map[string]string{
	"PORT":             "port",
	"SERVICE_API_KEY":  "api_key",
	"SIGNATURE_SECRET": "signature_secret",
	"REPLAY_WINDOW":    "replay_window",
	"MAIN_APP_URL":     "main_app_url",
	"STORE":            "store",
	"DB_PATH":          "db_path",
	"ETCD_ENDPOINTS":   "etcd_endpoints",
	"JOURNAL_PATH":     "journal_path",
	"LOG_LEVEL":        "log_level",
}

var clientEnv = map[string]string{
	"CONFIG_SERVICE_URL":     "service_url",
	"CONFIG_SERVICE_API_KEY": "api_key",
	"SIGNATURE_SECRET":       "signature_secret",
	"CONFIG_USER_ID":         "user_id",
}

// LoadService reads the optional TOML file at path, then the environment.
// Environment variables win.
func LoadService(path string) (ServiceConfig, error) {
	cfg := ServiceConfig{
		Port:          "3001",
		ReplayWindow:  5 * time.Minute,
		AllowedOrigin: "http://localhost:3000",
		Store:         "sqlite",
		DBPath:        "data/configurations.db",
		LogLevel:      "info",
	}
	if err := load(path, serviceEnv, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadClient is LoadService for ClientConfig. It does not validate, so
// commands that need no service (such as signing) can still run.
func LoadClient(path string) (ClientConfig, error) {
	var cfg ClientConfig
	err := load(path, clientEnv, &cfg)
	return cfg, err
}

var tomlParser = toml.Parser()

func load(path string, envKeys map[string]string, out any) error {
	k := koanf.New(".")
	if path != "" {
		err := k.Load(file.Provider(path), tomlParser)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, "unable to parse config file")
		}
	}
	// Unknown and empty variables are skipped so they do not mask
	// defaults or file values.
	err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil)
	if err != nil {
		return errors.Wrap(err, "unable to read environment")
	}
	err = k.UnmarshalWithConf("", out, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true})
	return errors.Wrap(err, "unable to unmarshal config")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
