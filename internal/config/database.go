package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// tlsConfigName is the name custom TLS settings are registered under with the MySQL driver.
const tlsConfigName = "ordergraph-custom"

// DriverName returns the database/sql driver name for the configured store.
func (d *DatabaseConfig) DriverName() string {
	if strings.EqualFold(strings.TrimSpace(d.Driver), DriverSQLite) {
		return DriverSQLite
	}
	return DriverMySQL
}

// DSN returns the data source name for the configured driver. MySQL DSNs
// always carry parseTime=true and loc=UTC so order dates scan as time.Time.
func (d *DatabaseConfig) DSN() string {
	if d.DriverName() == DriverSQLite {
		return d.sqliteDSN()
	}

	var dsn string
	if d.ConnectionString != "" {
		dsn = d.ConnectionString
		if !strings.Contains(dsn, "parseTime") {
			dsn = appendParam(dsn, "parseTime=true")
		}
		if !strings.Contains(dsn, "loc=") {
			dsn = appendParam(dsn, "loc=UTC")
		}
	} else {
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
		cfg.DBName = d.Database
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	}

	if tlsParam := d.effectiveTLSParam(); tlsParam != "" && !strings.Contains(dsn, "tls=") {
		dsn = appendParam(dsn, "tls="+tlsParam)
	}
	return dsn
}

func (d *DatabaseConfig) sqliteDSN() string {
	path := strings.TrimSpace(d.Path)
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	// Foreign keys are off per connection by default in SQLite.
	return "file:" + path + "?_pragma=foreign_keys(1)"
}

func appendParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// DatabaseName returns the schema the service reads from, preferring an
// explicit DSN database over the discrete field.
func (d *DatabaseConfig) DatabaseName() (string, error) {
	if d.DriverName() == DriverSQLite {
		return d.Path, nil
	}
	dsn := strings.TrimSpace(d.ConnectionString)
	if dsn == "" {
		return d.Database, nil
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database.dsn is invalid: %w", err)
	}
	if parsed.DBName == "" {
		return d.Database, nil
	}
	return parsed.DBName, nil
}

func (d *DatabaseConfig) effectiveTLSParam() string {
	switch d.TLS.Mode {
	case "":
		return ""
	case "off":
		return "false"
	case "skip-verify":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return tlsConfigName
	default:
		return d.TLS.Mode
	}
}

// RegisterTLS registers custom TLS settings with the MySQL driver. It must run
// before the connection is opened and is a no-op for modes the driver handles itself.
func (d *DatabaseConfig) RegisterTLS() error {
	if d.DriverName() != DriverMySQL || (d.TLS.Mode != "verify-ca" && d.TLS.Mode != "verify-full") {
		return nil
	}

	tlsCfg, err := d.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}
	if err := mysql.RegisterTLSConfig(tlsConfigName, tlsCfg); err != nil {
		return fmt.Errorf("failed to register TLS config: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) buildTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if d.TLS.CAFile != "" {
		caCert, err := os.ReadFile(d.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %q: %w", d.TLS.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %q", d.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	switch {
	case d.TLS.CertFile != "" && d.TLS.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(d.TLS.CertFile, d.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	case d.TLS.CertFile != "" || d.TLS.KeyFile != "":
		return nil, fmt.Errorf("both cert_file and key_file must be specified for client certificate authentication")
	}

	if d.TLS.Mode == "verify-full" && d.TLS.ServerName != "" {
		tlsCfg.ServerName = d.TLS.ServerName
	}
	return tlsCfg, nil
}
