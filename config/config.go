package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TFMV/mongoload/pkg/core"
)

// EnvPrefix prefixes every environment override, e.g. MONGOLOAD_MONGO_URI.
const EnvPrefix = "MONGOLOAD"

// --- Configuration Structs ---

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

type CollectionConfig struct {
	AutoIndexID bool        `mapstructure:"auto_index_id"`
	Capped      bool        `mapstructure:"capped"`
	SizeBytes   int64       `mapstructure:"size_bytes"`
	MaxDocs     int64       `mapstructure:"max_documents"`
	Clear       bool        `mapstructure:"clear"`
	IDMode      core.IDMode `mapstructure:"id_mode"`
}

type WorkloadConfig struct {
	SamplePath  string         `mapstructure:"sample_path"`
	Reader      string         `mapstructure:"reader"`
	RowPolicy   core.RowPolicy `mapstructure:"row_policy"`
	TargetCount int            `mapstructure:"target_count"`
	Seed        int64          `mapstructure:"seed"`
	UniqueIDs   bool           `mapstructure:"unique_ids"`
}

type InsertConfig struct {
	Mode        core.InsertMode `mapstructure:"mode"`
	BatchSize   int             `mapstructure:"batch_size"`
	Concurrency int             `mapstructure:"concurrency"`
	Delay       time.Duration   `mapstructure:"delay"`
	Timeout     time.Duration   `mapstructure:"timeout"`
}

type OutputConfig struct {
	ReportJSON  string `mapstructure:"report_json"`
	ReportHTML  string `mapstructure:"report_html"`
	HistoryPath string `mapstructure:"history_path"`
	DumpPath    string `mapstructure:"dump_path"`
	DumpFormat  string `mapstructure:"dump_format"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Prefork bool   `mapstructure:"prefork"`
}

type Config struct {
	Backend    string           `mapstructure:"backend"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Collection CollectionConfig `mapstructure:"collection"`
	Workload   WorkloadConfig   `mapstructure:"workload"`
	Insert     InsertConfig     `mapstructure:"insert"`
	Output     OutputConfig     `mapstructure:"output"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

// --- Load Configuration ---

var defaults = map[string]any{
	"backend":                  "mongo",
	"mongo.uri":                "mongodb://localhost:27017",
	"mongo.database":           "test",
	"mongo.collection":         "records",
	"mongo.connect_timeout":    "10s",
	"mongo.max_pool_size":      15,
	"collection.auto_index_id": true,
	"collection.capped":        false,
	"collection.size_bytes":    0,
	"collection.max_documents": 0,
	"collection.clear":         true,
	"collection.id_mode":       string(core.IDAuto),
	"workload.sample_path":     "",
	"workload.reader":          "csv",
	"workload.row_policy":      string(core.Lenient),
	"workload.target_count":    1000,
	"workload.seed":            0,
	"workload.unique_ids":      false,
	"insert.mode":              string(core.Batch),
	"insert.batch_size":        0,
	"insert.concurrency":       1,
	"insert.delay":             "0s",
	"insert.timeout":           "10m",
	"output.report_json":       "",
	"output.report_html":       "",
	"output.history_path":      "",
	"output.dump_path":         "",
	"output.dump_format":       "json",
	"log.file":                 "mongoload.log",
	"log.level":                "info",
	"server.port":              "5555",
	"server.prefork":           false,
}

// New returns a viper instance carrying defaults and environment bindings.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// MONGO_URI is the variable most deployments already export.
	_ = v.BindEnv("mongo.uri", EnvPrefix+"_MONGO_URI", "MONGO_URI")

	return v
}

// Load reads configPath (if non-empty) into v and decodes the merged result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// LoadConfig loads configPath on top of defaults and the environment.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

// Default returns the configuration with no file and no environment applied.
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// LoadDotEnv loads environment files into the process environment without
// overriding variables that are already set. With no paths, a missing .env
// in the working directory is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// --- Validation Functions ---

// validate is a helper function to reduce repetition.
func validate(condition bool, format string, a ...any) error {
	if !condition {
		return fmt.Errorf(format, a...)
	}
	return nil
}

func oneOf[T ~string](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if err := validate(oneOf(c.Backend, "mongo", "memory"), "unsupported backend: %q", c.Backend); err != nil {
		return err
	}
	if err := c.Mongo.Validate(); err != nil {
		return fmt.Errorf("mongo validation failed: %w", err)
	}
	if err := c.Collection.Validate(); err != nil {
		return fmt.Errorf("collection validation failed: %w", err)
	}
	if err := c.Workload.Validate(); err != nil {
		return fmt.Errorf("workload validation failed: %w", err)
	}
	if err := c.Insert.Validate(); err != nil {
		return fmt.Errorf("insert validation failed: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}

func (mc *MongoConfig) Validate() error {
	if err := validate(mc.URI != "", "uri is required"); err != nil {
		return err
	}
	if err := validate(mc.Database != "", "database is required"); err != nil {
		return err
	}
	if err := validate(mc.Collection != "", "collection is required"); err != nil {
		return err
	}
	return validate(mc.ConnectTimeout > 0, "connect timeout must be positive")
}

func (cc *CollectionConfig) Validate() error {
	if err := validate(oneOf(cc.IDMode, core.IDAuto, core.IDRecord), "unsupported id mode: %q", cc.IDMode); err != nil {
		return err
	}
	if cc.Capped {
		if err := validate(cc.SizeBytes > 0, "capped collection requires size_bytes > 0"); err != nil {
			return err
		}
	}
	return validate(cc.MaxDocs >= 0, "max_documents must not be negative")
}

func (wc *WorkloadConfig) Validate() error {
	if err := validate(wc.SamplePath != "", "sample path is required"); err != nil {
		return err
	}
	if err := validate(oneOf(wc.Reader, "csv", "arrow", "parquet"), "unsupported reader: %q", wc.Reader); err != nil {
		return err
	}
	if err := validate(oneOf(wc.RowPolicy, core.Lenient, core.Strict), "unsupported row policy: %q", wc.RowPolicy); err != nil {
		return err
	}
	return validate(wc.TargetCount >= 0, "target count must not be negative")
}

func (ic *InsertConfig) Validate() error {
	if err := validate(oneOf(ic.Mode, core.Batch, core.Sequential), "unsupported insert mode: %q", ic.Mode); err != nil {
		return err
	}
	if err := validate(ic.BatchSize >= 0, "batch size must not be negative"); err != nil {
		return err
	}
	if err := validate(ic.Concurrency >= 1, "concurrency must be at least 1"); err != nil {
		return err
	}
	if err := validate(ic.Delay >= 0, "delay must not be negative"); err != nil {
		return err
	}
	return validate(ic.Timeout > 0, "timeout must be positive")
}

func (oc *OutputConfig) Validate() error {
	if oc.DumpPath == "" {
		return nil
	}
	return validate(oneOf(oc.DumpFormat, "json", "arrow", "parquet"), "unsupported dump format: %q", oc.DumpFormat)
}
