package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// TemporalConfig locates the workflow engine.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// ObservabilityConfig carries the metrics and logging knobs.
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing struct {
		Enabled  bool   `mapstructure:"enabled"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"tracing"`
}

// AnatomicalConfig controls anatomical graph assembly.
type AnatomicalConfig struct {
	// InputType names the preprocessing pipeline that produced the inputs:
	// qsiprep, ukb, or hcpya.
	InputType     string `mapstructure:"input_type"`
	FreeSurferDir string `mapstructure:"freesurfer_dir"`
	// Extras lists additional anatomical products to build, e.g.
	// mrtrix_5tt_hsvs.
	Extras            []string `mapstructure:"extras"`
	Atlases           []string `mapstructure:"atlases"`
	AtlasDir          string   `mapstructure:"atlas_dir"`
	PreferDWIMask     bool     `mapstructure:"prefer_dwi_mask"`
	NeedsT1wTransform bool     `mapstructure:"needs_t1w_transform"`
	// Infant selects the infant template for the output grid.
	Infant           bool    `mapstructure:"infant"`
	TemplateDir      string  `mapstructure:"template_dir"`
	CrossingROIsPath string  `mapstructure:"crossing_rois_path"`
	OutputResolution float64 `mapstructure:"output_resolution"`
}

// SDCConfig controls susceptibility distortion correction.
type SDCConfig struct {
	B0Threshold int  `mapstructure:"b0_threshold"`
	RawImageSDC bool `mapstructure:"raw_image_sdc"`
	Sloppy      bool `mapstructure:"sloppy"`
}

// Config is the full service configuration.
type Config struct {
	InputDir  string   `mapstructure:"input_dir"`
	OutputDir string   `mapstructure:"output_dir"`
	WorkDir   string   `mapstructure:"work_dir"`
	Subjects  []string `mapstructure:"subjects"`
	NThreads  int      `mapstructure:"nthreads"`
	// PresetDir holds hot-reloadable tool presets (registration stages and
	// the like).
	PresetDir string `mapstructure:"preset_dir"`

	Anatomical    AnatomicalConfig    `mapstructure:"anatomical"`
	SDC           SDCConfig           `mapstructure:"sdc"`
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// Load reads the configuration file at path (or $DMRIFLOW_CONFIG, or the
// built-in defaults when neither exists). Environment variables prefixed
// DMRIFLOW_ override file values, with dots mapped to underscores.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DMRIFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("DMRIFLOW_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("work_dir", "work")
	v.SetDefault("output_dir", "derivatives")
	v.SetDefault("nthreads", 1)

	v.SetDefault("anatomical.input_type", "qsiprep")
	v.SetDefault("anatomical.output_resolution", 0.0)

	v.SetDefault("sdc.b0_threshold", 100)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "dmriflow")

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 2112)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
}

// Validate rejects configurations that cannot produce a runnable worker.
func (c *Config) Validate() error {
	switch c.Anatomical.InputType {
	case "qsiprep", "ukb", "hcpya":
	default:
		return fmt.Errorf("anatomical.input_type must be qsiprep, ukb, or hcpya, got %q", c.Anatomical.InputType)
	}
	if c.Anatomical.OutputResolution < 0 {
		return fmt.Errorf("anatomical.output_resolution must be non-negative, got %g", c.Anatomical.OutputResolution)
	}
	if c.SDC.B0Threshold < 0 {
		return fmt.Errorf("sdc.b0_threshold must be non-negative, got %d", c.SDC.B0Threshold)
	}
	if len(c.Anatomical.Atlases) > 0 && c.Anatomical.AtlasDir == "" {
		return fmt.Errorf("anatomical.atlas_dir is required when atlases are requested")
	}
	// Any graph assembled with template transforms emits an ODF ROI ingress
	// node; catching a missing ROI image here beats failing hours later
	// inside antsApplyTransforms.
	if c.Anatomical.NeedsT1wTransform && c.Anatomical.CrossingROIsPath == "" {
		return fmt.Errorf("anatomical.crossing_rois_path is required when needs_t1w_transform is set")
	}
	return nil
}
