package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/mapforms/internal/paths"
	"github.com/mesh-intelligence/mapforms/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "MAPFORMS"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyDSN       = "dsn"
	cfgKeyLogLevel  = "log_level"
	cfgKeyTeamspace = "teamspace"

	defaultTeamspace = "default"
	defaultLogLevel  = "warn"
)

// dotEnvFiles are loaded in order; a variable set by an earlier file or by
// the environment is not overwritten.
var dotEnvFiles = []string{".env.local", ".env"}

// configFile is the shape written to a fresh config.yaml.
type configFile struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
	LogLevel  string `yaml:"log_level"`
	Teamspace string `yaml:"teamspace"`
}

// loadConfig resolves the config directory, creates it with a default
// config.yaml on first run and reads it through viper. MAPFORMS_* variables
// override file values.
func (a *app) loadConfig() (types.Config, error) {
	if err := loadDotEnv("."); err != nil {
		return types.Config{}, err
	}

	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir
	if err := writeConfigIfMissing(configDir); err != nil {
		return types.Config{}, err
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyTeamspace, defaultTeamspace)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(a.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	a.dataDir = dataDir
	if a.teamspace == "" {
		a.teamspace = v.GetString(cfgKeyTeamspace)
	}

	cfg := types.Config{
		Backend:  v.GetString(cfgKeyBackend),
		DataDir:  dataDir,
		DSN:      v.GetString(cfgKeyDSN),
		LogLevel: v.GetString(cfgKeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", filepath.Join(configDir, configFileExt), err)
	}
	return cfg, nil
}

// loadDotEnv loads the dotenv files present in dir. A file that exists but
// does not parse is an error.
func loadDotEnv(dir string) error {
	for _, name := range dotEnvFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// writeConfigIfMissing creates configDir and a default config.yaml inside
// it. An existing file is left alone.
func writeConfigIfMissing(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&configFile{
		Backend:   types.BackendSQLite,
		LogLevel:  defaultLogLevel,
		Teamspace: defaultTeamspace,
	})
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
