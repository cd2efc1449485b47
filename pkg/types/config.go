package types

import "errors"

// Config holds backend selection and parameters for Engine.Attach.
type Config struct {
	Backend  string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir  string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	DSN      string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNRequired    = errors.New("backend requires a dsn")
)

// knownBackends lists the backends that Validate accepts, and whether each
// one needs a DSN.
var knownBackends = map[string]bool{
	BackendSQLite:   false,
	BackendPostgres: true,
	BackendMySQL:    true,
}

// Validate checks that the Config is well-formed. SQLite may run from DataDir
// alone; server backends need a DSN.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	needsDSN, ok := knownBackends[c.Backend]
	if !ok {
		return ErrBackendUnknown
	}
	if needsDSN && c.DSN == "" {
		return ErrDSNRequired
	}
	return nil
}
