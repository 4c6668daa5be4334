package database

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// Descriptor holds a parsed connection target.
type Descriptor struct {
	Dialect  domain.SQLDialect
	Host     string
	Port     int
	Database string
	User     string
	Password string
	// Schema restricts introspection to one schema. Consumed, never forwarded to the driver.
	Schema string
	// Timeout bounds connection and introspection. Zero means unbounded. Consumed, never forwarded.
	Timeout time.Duration
	// SSLMode is the explicit postgres sslmode, empty when the descriptor did not set one.
	SSLMode string
	// DSN is the driver ready data source name.
	DSN string
}

// String returns the descriptor without credentials, suitable for logs and errors.
func (d Descriptor) String() string {
	switch d.Dialect {
	case domain.SQLite:
		return "sqlite:" + d.Database
	default:
		host := d.Host
		if d.Port != 0 {
			host = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		}
		return string(d.Dialect) + "://" + host + "/" + d.Database
	}
}

// ParseDescriptor parses postgres://, postgresql://, mysql://, native MySQL DSN, sqlite://, file:
// and bare .db/.sqlite/.sqlite3 path descriptors.
func ParseDescriptor(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, fmt.Errorf("database url is empty")
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return parsePostgres(raw)
	case strings.HasPrefix(lower, "mysql://"):
		return parseMySQLURL(raw)
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "sqlite3://"):
		return parseSQLite(raw[strings.Index(raw, "://")+3:], "")
	case strings.HasPrefix(lower, "file:"):
		return parseSQLite(raw[len("file:"):], "file:")
	case hasSQLiteExtension(raw):
		return parseSQLite(raw, "")
	case !strings.Contains(raw, "://") && strings.Contains(raw, "@") && strings.Contains(raw, "("):
		return parseMySQLDSN(raw)
	}
	return Descriptor{}, fmt.Errorf("%w: cannot infer dialect from %q", domain.ErrUnsupportedDialect, redact(raw))
}

func hasSQLiteExtension(raw string) bool {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// redact hides a password in URL style descriptors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

func parseTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", value, err)
	}
	return d, nil
}

func parsePostgres(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	desc := Descriptor{
		Dialect:  domain.PostgreSQL,
		Host:     u.Hostname(),
		Port:     5432,
		Database: strings.TrimPrefix(u.Path, "/"),
	}
	if p := u.Port(); p != "" {
		if desc.Port, err = strconv.Atoi(p); err != nil {
			return Descriptor{}, fmt.Errorf("invalid port %q", p)
		}
	}
	if u.User != nil {
		desc.User = u.User.Username()
		desc.Password, _ = u.User.Password()
	}

	q := u.Query()
	desc.Schema = q.Get("schema")
	if desc.Timeout, err = parseTimeout(q.Get("timeout")); err != nil {
		return Descriptor{}, err
	}
	desc.SSLMode = q.Get("sslmode")
	q.Del("schema")
	q.Del("timeout")
	u.RawQuery = q.Encode()
	desc.DSN = u.String()
	return desc, nil
}

func parseMySQLURL(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	port := u.Port()
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(u.Hostname(), port)
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	desc := Descriptor{Dialect: domain.MySQL}
	q := u.Query()
	desc.Schema = q.Get("schema")
	if desc.Timeout, err = parseTimeout(q.Get("timeout")); err != nil {
		return Descriptor{}, err
	}
	q.Del("schema")
	q.Del("timeout")
	for key := range q {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = q.Get(key)
	}
	return finishMySQL(desc, cfg)
}

func parseMySQLDSN(raw string) (Descriptor, error) {
	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	desc := Descriptor{Dialect: domain.MySQL, Timeout: cfg.Timeout}
	cfg.Timeout = 0
	if schema, ok := cfg.Params["schema"]; ok {
		desc.Schema = schema
		delete(cfg.Params, "schema")
	}
	return finishMySQL(desc, cfg)
}

func finishMySQL(desc Descriptor, cfg *mysql.Config) (Descriptor, error) {
	cfg.ParseTime = true
	cfg.MultiStatements = false
	desc.Database = cfg.DBName
	desc.User = cfg.User
	desc.Password = cfg.Passwd
	if host, port, err := net.SplitHostPort(cfg.Addr); err == nil {
		desc.Host = host
		desc.Port, _ = strconv.Atoi(port)
	} else {
		desc.Host = cfg.Addr
	}
	desc.DSN = cfg.FormatDSN()
	return desc, nil
}

func parseSQLite(rest, prefix string) (Descriptor, error) {
	path, rawQuery, _ := strings.Cut(rest, "?")
	if path == "" {
		return Descriptor{}, fmt.Errorf("sqlite url has no path")
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse sqlite parameters: %w", err)
	}
	desc := Descriptor{Dialect: domain.SQLite, Database: path, Schema: q.Get("schema")}
	if desc.Timeout, err = parseTimeout(q.Get("timeout")); err != nil {
		return Descriptor{}, err
	}
	q.Del("schema")
	q.Del("timeout")
	if q.Get("_foreign_keys") == "" && q.Get("_fk") == "" {
		q.Set("_foreign_keys", "on")
	}
	desc.DSN = prefix + path + "?" + q.Encode()
	return desc, nil
}
