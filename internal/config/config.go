package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/sdg-cli/internal/table"
)

// Directory names created under the root directory when none are configured.
const (
	DefaultDataDirName   = "sdg_9_1_1_data"
	DefaultOutputDirName = "sdg_9_1_1_output"
)

// Config holds the full application configuration.
type Config struct {
	SDG     SDGConfig     `yaml:"sdg" mapstructure:"sdg"`
	Run     RunConfig     `yaml:"run" mapstructure:"run"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SDGConfig holds the indicator run parameters.
type SDGConfig struct {
	RootDir   string `yaml:"root_dir" mapstructure:"root_dir"`
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`

	// YearStart is the only year run when SingleYearTest is set.
	YearStart      int  `yaml:"year_start" mapstructure:"year_start"`
	YearEnd        int  `yaml:"year_end" mapstructure:"year_end"`
	SingleYearTest bool `yaml:"single_year_test" mapstructure:"single_year_test"`

	// Input files. Relative paths resolve against DataDir; "{year}" is
	// replaced by the run year.
	RasterFilePath string `yaml:"raster_file_path" mapstructure:"raster_file_path"`
	RUCFilePath    string `yaml:"ruc_file_path" mapstructure:"ruc_file_path"`
	RUCSheet       string `yaml:"ruc_sheet" mapstructure:"ruc_sheet"`
	RUCHeaderRow   int    `yaml:"ruc_header_row" mapstructure:"ruc_header_row"`
	LADFilePath    string `yaml:"lad_file_path" mapstructure:"lad_file_path"`
	RoadsFilePath  string `yaml:"roads_file_path" mapstructure:"roads_file_path"`

	RuralClassCol   string   `yaml:"rural_class_col" mapstructure:"rural_class_col"`
	RoadClassCol    string   `yaml:"road_class_col" mapstructure:"road_class_col"`
	RoadClassifList []string `yaml:"road_classif_list" mapstructure:"road_classif_list"`
	DissolveCol     string   `yaml:"dissolve_col" mapstructure:"dissolve_col"`
	RuralKeyword    string   `yaml:"rural_keyword" mapstructure:"rural_keyword"`

	BufferDistance float64 `yaml:"buffer_distance" mapstructure:"buffer_distance"`
	MergeThreshold float64 `yaml:"merge_threshold" mapstructure:"merge_threshold"`
	TargetCRS      string  `yaml:"target_crs" mapstructure:"target_crs"`
	SaveCSVFile    bool    `yaml:"save_csv_file" mapstructure:"save_csv_file"`
}

// RunConfig configures multi-year execution.
type RunConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// StoreConfig configures the result store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MetricsConfig configures pushing run metrics. An empty PushgatewayURL
// disables the push.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, the optional sdg.yaml file and the
// environment, then resolves directories.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("sdg")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SDG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("sdg.root_dir", "SDG_SDG_ROOT_DIR", "ROOT_DIR"); err != nil {
		return nil, eris.Wrap(err, "config: bind root dir")
	}

	// Defaults
	v.SetDefault("sdg.root_dir", ".")
	v.SetDefault("sdg.data_dir", "")
	v.SetDefault("sdg.output_dir", "")
	v.SetDefault("sdg.year_start", 2011)
	v.SetDefault("sdg.year_end", 2022)
	v.SetDefault("sdg.single_year_test", true)
	v.SetDefault("sdg.raster_file_path", "")
	v.SetDefault("sdg.ruc_file_path", "")
	v.SetDefault("sdg.ruc_sheet", "LAD11_LAD13")
	v.SetDefault("sdg.ruc_header_row", 2)
	v.SetDefault("sdg.lad_file_path", "")
	v.SetDefault("sdg.roads_file_path", "")
	v.SetDefault("sdg.rural_class_col", "Rural Urban Classification 2011 (6 fold)")
	v.SetDefault("sdg.road_class_col", "road_class")
	v.SetDefault("sdg.road_classif_list", []string{"Unknown", "Not Classified"})
	v.SetDefault("sdg.dissolve_col", "Local Authority District Area 2011 Code")
	v.SetDefault("sdg.rural_keyword", "rural")
	v.SetDefault("sdg.buffer_distance", 2000.0)
	v.SetDefault("sdg.merge_threshold", 1.0)
	v.SetDefault("sdg.target_crs", "EPSG:27700")
	v.SetDefault("sdg.save_csv_file", true)
	v.SetDefault("run.workers", 1)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sdg.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "sdg_cli")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.SDG.resolveDirs()

	return &cfg, nil
}

// resolveDirs fills the data and output directories from the root.
func (c *SDGConfig) resolveDirs() {
	if c.RootDir == "" {
		c.RootDir = "."
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.RootDir, DefaultDataDirName)
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.RootDir, DefaultOutputDirName)
	}
}

// DataPath resolves an input path against the data directory. Empty and
// absolute paths are returned unchanged.
func (c SDGConfig) DataPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// Validate checks the run parameters. Every failure wraps
// table.ErrConfiguration.
func (c SDGConfig) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"raster_file_path", c.RasterFilePath},
		{"ruc_file_path", c.RUCFilePath},
		{"lad_file_path", c.LADFilePath},
		{"roads_file_path", c.RoadsFilePath},
		{"rural_class_col", c.RuralClassCol},
		{"road_class_col", c.RoadClassCol},
		{"dissolve_col", c.DissolveCol},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	switch {
	case len(missing) > 0:
		return eris.Wrapf(table.ErrConfiguration, "config: missing %s", strings.Join(missing, ", "))
	case c.YearStart <= 0:
		return eris.Wrapf(table.ErrConfiguration, "config: invalid year_start %d", c.YearStart)
	case !c.SingleYearTest && c.YearEnd < c.YearStart:
		return eris.Wrapf(table.ErrConfiguration, "config: year_end %d before year_start %d", c.YearEnd, c.YearStart)
	case c.BufferDistance < 0:
		return eris.Wrapf(table.ErrConfiguration, "config: negative buffer_distance %g", c.BufferDistance)
	case c.RUCHeaderRow < 0:
		return eris.Wrapf(table.ErrConfiguration, "config: negative ruc_header_row %d", c.RUCHeaderRow)
	}
	return nil
}

// Validate checks the settings outside the indicator parameters.
func (c *Config) Validate() error {
	if err := c.SDG.Validate(); err != nil {
		return err
	}
	if c.Run.Workers < 1 {
		return eris.Wrapf(table.ErrConfiguration, "config: run.workers must be positive, got %d", c.Run.Workers)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Wrapf(table.ErrConfiguration, "config: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
