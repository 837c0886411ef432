// Loads the service configuration from config.json or config.yaml.

// Package config holds the imladris service configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultStartingRow = 2
	DefaultCacheTTL    = 30 * time.Second
	DefaultRatePerMin  = 60
)

// EnvPrefix prefixes the environment variables overriding the file.
const EnvPrefix = "IMLADRIS_"

// Config is the service configuration.
//
// Key names are shared by the JSON and YAML forms.
type Config struct {
	// ImgurClientID is the Imgur application client ID. Image uploads are
	// disabled when empty.
	ImgurClientID string `json:"imgurAPI_ClientID" yaml:"imgurAPI_ClientID"`
	// GoogleSecret is the Google service account key.
	GoogleSecret Secret `json:"googleAPI_Secret" yaml:"googleAPI_Secret"`
	// SpreadsheetID identifies the spreadsheet holding the items.
	SpreadsheetID string `json:"googleAPI_SpreadsheetId" yaml:"googleAPI_SpreadsheetId"`
	// SheetID is the numeric ID of the sheet inside the spreadsheet.
	SheetID int64 `json:"googleAPI_SheetId" yaml:"googleAPI_SheetId"`
	// SheetName is the title of the sheet. Empty means the first sheet.
	SheetName string `json:"sheetName" yaml:"sheetName"`
	// StartingRow is the first data row; rows above it are headers.
	StartingRow int `json:"startingRow" yaml:"startingRow"`
	// CacheTTL is how long a snapshot of the sheet is served.
	CacheTTL Duration `json:"cacheTTL" yaml:"cacheTTL"`
	// SheetsRatePerMin limits Sheets API requests.
	SheetsRatePerMin int `json:"sheetsRatePerMin" yaml:"sheetsRatePerMin"`
}

// Default returns a configuration with defaults set and no credentials.
func Default() *Config {
	return &Config{
		StartingRow:      DefaultStartingRow,
		CacheTTL:         Duration(DefaultCacheTTL),
		SheetsRatePerMin: DefaultRatePerMin,
	}
}

// Load reads the configuration file at path. The format is selected by the
// extension: .yaml or .yml for YAML, anything else for JSON.
//
// A Secret given as a file path is resolved relative to the directory of
// path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, cfg)
	default:
		d := json.NewDecoder(bytes.NewReader(raw))
		d.DisallowUnknownFields()
		err = d.Decode(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.GoogleSecret.resolve(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads the variables of the given .env files into the process
// environment without overriding existing variables. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields with the IMLADRIS_* variables returned by
// getenv. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	get := func(name string) string { return getenv(EnvPrefix + name) }
	if v := get("IMGUR_CLIENT_ID"); v != "" {
		c.ImgurClientID = v
	}
	if v := get("GOOGLE_SECRET"); v != "" {
		s := Secret(v)
		if err := s.resolve("."); err != nil {
			return err
		}
		c.GoogleSecret = s
	}
	if v := get("SPREADSHEET_ID"); v != "" {
		c.SpreadsheetID = v
	}
	if v := get("SHEET_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSHEET_ID: %w", EnvPrefix, err)
		}
		c.SheetID = id
	}
	if v := get("SHEET_NAME"); v != "" {
		c.SheetName = v
	}
	if v := get("STARTING_ROW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSTARTING_ROW: %w", EnvPrefix, err)
		}
		c.StartingRow = n
	}
	if v := get("CACHE_TTL"); v != "" {
		if err := c.CacheTTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid %sCACHE_TTL: %w", EnvPrefix, err)
		}
	}
	if v := get("SHEETS_RATE_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSHEETS_RATE_PER_MIN: %w", EnvPrefix, err)
		}
		c.SheetsRatePerMin = n
	}
	return nil
}

// Validate checks that the configuration can reach a spreadsheet.
func (c *Config) Validate() error {
	var errs []error
	if c.SpreadsheetID == "" {
		errs = append(errs, errors.New("googleAPI_SpreadsheetId is required"))
	}
	if len(c.GoogleSecret) == 0 {
		errs = append(errs, errors.New("googleAPI_Secret is required"))
	}
	if c.SheetID < 0 {
		errs = append(errs, errors.New("googleAPI_SheetId must be non-negative"))
	}
	if c.StartingRow < 1 {
		errs = append(errs, errors.New("startingRow must be at least 1"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cacheTTL must be non-negative"))
	}
	if c.SheetsRatePerMin < 0 {
		errs = append(errs, errors.New("sheetsRatePerMin must be non-negative"))
	}
	return errors.Join(errs...)
}

// Duration is a time.Duration written as a string like "30s".
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Secret is a Google service account JSON key.
//
// In a config file it is either the key object itself, a string holding the
// JSON text or a string holding the path to the key file.
type Secret []byte

// UnmarshalJSON implements json.Unmarshaler.
func (s *Secret) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Secret(str)
		return nil
	}
	if !json.Valid(b) {
		return errors.New("invalid googleAPI_Secret")
	}
	*s = bytes.Clone(b)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Secret) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*s = Secret(n.Value)
		return nil
	}
	var v map[string]any
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("invalid googleAPI_Secret: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("invalid googleAPI_Secret: %w", err)
	}
	*s = b
	return nil
}

// resolve replaces a file path with the content of the file.
func (s *Secret) resolve(dir string) error {
	v := bytes.TrimSpace(*s)
	if len(v) == 0 || v[0] == '{' {
		return nil
	}
	p := string(v)
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("failed to read googleAPI_Secret: %w", err)
	}
	*s = b
	return nil
}
