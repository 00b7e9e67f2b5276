// Package config resolves settings for the indexer and query tools.
// Priority: CLI flags > WEBINDEX_* environment variables > config file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"
	"webindex/pkg/utils/sys"
	"webindex/pkg/utils/units"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "WEBINDEX"

type CorpusSettings struct {
	Dir string `mapstructure:"dir"`
}

type IndexSettings struct {
	Dir            string `mapstructure:"dir"`
	ScratchDir     string `mapstructure:"scratch_dir"`
	FlushBytes     int64  `mapstructure:"flush_bytes"`
	Batch          int    `mapstructure:"batch"`
	Workers        int    `mapstructure:"workers"`
	Stemmer        string `mapstructure:"stemmer"`
	NearDuplicates bool   `mapstructure:"near_duplicates"`
}

// QuerySettings holds the ranking knobs. IDFFloor, ScanLimit and MinRawTF are
// the early termination thresholds of the scorer.
type QuerySettings struct {
	TopK      int           `mapstructure:"top_k"`
	CacheSize int           `mapstructure:"cache_size"`
	Workers   int           `mapstructure:"workers"`
	IDFFloor  float64       `mapstructure:"idf_floor"`
	ScanLimit int           `mapstructure:"scan_limit"`
	MinRawTF  float64       `mapstructure:"min_raw_tf"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

type Settings struct {
	Corpus  CorpusSettings  `mapstructure:"corpus"`
	Index   IndexSettings   `mapstructure:"index"`
	Query   QuerySettings   `mapstructure:"query"`
	Logging LoggingSettings `mapstructure:"logging"`
	Metrics MetricsSettings `mapstructure:"metrics"`
}

// flagKeys maps flag names to setting keys.
var flagKeys = map[string]string{
	"corpus":          "corpus.dir",
	"index-dir":       "index.dir",
	"scratch-dir":     "index.scratch_dir",
	"flush-bytes":     "index.flush_bytes",
	"batch":           "index.batch",
	"workers":         "index.workers",
	"stemmer":         "index.stemmer",
	"near-duplicates": "index.near_duplicates",
	"top-k":           "query.top_k",
	"cache-size":      "query.cache_size",
	"query-workers":   "query.workers",
	"idf-floor":       "query.idf_floor",
	"scan-limit":      "query.scan_limit",
	"min-raw-tf":      "query.min_raw_tf",
	"timeout":         "query.timeout",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"metrics-addr":    "metrics.addr",
}

func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file %s: %w", f.Value.String(), err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("corpus.dir", "DEV")
	v.SetDefault("index.dir", ".index")
	v.SetDefault("index.scratch_dir", "")
	v.SetDefault("index.flush_bytes", int64(14*units.MiB))
	v.SetDefault("index.batch", 100)
	v.SetDefault("index.workers", 4)
	v.SetDefault("index.stemmer", "porter")
	v.SetDefault("index.near_duplicates", false)

	v.SetDefault("query.top_k", 20)
	v.SetDefault("query.cache_size", 256)
	v.SetDefault("query.workers", 4)
	v.SetDefault("query.idf_floor", 1.0)
	v.SetDefault("query.scan_limit", 2500)
	v.SetDefault("query.min_raw_tf", 2.0)
	v.SetDefault("query.timeout", time.Duration(0))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.addr", "")
}

func (s *Settings) Validate() error {
	if s.Index.FlushBytes <= 0 {
		return fmt.Errorf("index.flush_bytes must be positive, got %d", s.Index.FlushBytes)
	}
	if s.Index.Batch <= 0 {
		return fmt.Errorf("index.batch must be positive, got %d", s.Index.Batch)
	}
	nested, err := sys.Nested(s.Index.Dir, s.Index.ScratchPath())
	if err != nil {
		return fmt.Errorf("index.scratch_dir: %w", err)
	}
	if nested {
		return fmt.Errorf("index.scratch_dir %q must not overlap index.dir %q", s.Index.ScratchPath(), s.Index.Dir)
	}
	if s.Query.CacheSize <= 0 {
		return fmt.Errorf("query.cache_size must be positive, got %d", s.Query.CacheSize)
	}
	if s.Query.ScanLimit < 0 {
		return fmt.Errorf("query.scan_limit must not be negative, got %d", s.Query.ScanLimit)
	}
	return nil
}

// ScratchPath returns the directory for partial segments, defaulting to a
// sibling of the index directory.
func (s IndexSettings) ScratchPath() string {
	if s.ScratchDir != "" {
		return s.ScratchDir
	}
	return strings.TrimRight(s.Dir, "/") + ".partial"
}
