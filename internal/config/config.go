package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	TrainPath string `mapstructure:"train_path" yaml:"train_path"`
	TestPath  string `mapstructure:"test_path" yaml:"test_path"`
	Target    string `mapstructure:"target" yaml:"target"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// Search
	CVFolds   int     `mapstructure:"cv_folds" yaml:"cv_folds"`
	NIter     int     `mapstructure:"n_iter" yaml:"n_iter"`
	NJobs     int     `mapstructure:"n_jobs" yaml:"n_jobs"`
	Seed      int64   `mapstructure:"seed" yaml:"seed"`
	TopN      int     `mapstructure:"top_n" yaml:"top_n"`
	AlphaLow  float64 `mapstructure:"alpha_low" yaml:"alpha_low"`
	AlphaHigh float64 `mapstructure:"alpha_high" yaml:"alpha_high"`
	Refit     string  `mapstructure:"refit" yaml:"refit"`

	// Features
	Features       []string `mapstructure:"features" yaml:"features"`
	DropFeatures   []string `mapstructure:"drop_features" yaml:"drop_features"`
	ZeroFill       []string `mapstructure:"zero_fill" yaml:"zero_fill"`
	QuestionPrefix string   `mapstructure:"question_prefix" yaml:"question_prefix"`

	// EDA
	HistBins int `mapstructure:"hist_bins" yaml:"hist_bins"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultFeatures are the numeric and binary survey answers the models use.
var DefaultFeatures = []string{
	"age", "Eng_start", "Eng_country_yrs", "Lived_Eng_per",
	"psychiatric", "house_Eng", "nat_Eng", "prime_Eng",
}

// DefaultZeroFill are the binary answers whose missing cells mean "no".
var DefaultZeroFill = []string{"house_Eng", "nat_Eng", "prime_Eng"}

// DefaultDropFeatures are identifiers and free-text columns left out of EDA.
var DefaultDropFeatures = []string{
	"id", "date", "time", "Unnamed: 0", "tests", "elogit", "dyslexia",
	"dictionary", "already_participated", "natlangs", "primelangs",
	"Can_region", "Ir_region", "US_region", "UK_region", "UK_constituency",
	"gender", "type", "currcountry", "countries",
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.scoretune/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Command flags are applied on top
// by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SCORETUNE")
	v.AutomaticEnv()

	v.SetDefault("train_path", "data/raw/train_data.csv")
	v.SetDefault("test_path", "data/raw/test_data.csv")
	v.SetDefault("target", "correct")
	v.SetDefault("output_dir", "results")
	v.SetDefault("cv_folds", 10)
	v.SetDefault("n_iter", 30)
	v.SetDefault("n_jobs", 0)
	v.SetDefault("seed", 123)
	v.SetDefault("top_n", 5)
	v.SetDefault("alpha_low", 1e-3)
	v.SetDefault("alpha_high", 1e3)
	v.SetDefault("refit", "RMSE")
	v.SetDefault("features", DefaultFeatures)
	v.SetDefault("drop_features", DefaultDropFeatures)
	v.SetDefault("zero_fill", DefaultZeroFill)
	v.SetDefault("question_prefix", "q")
	v.SetDefault("hist_bins", 50)
	v.SetDefault("log_level", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	if c.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be at least 2, got %d", c.CVFolds)
	}
	if c.NIter < 1 {
		return fmt.Errorf("n_iter must be positive, got %d", c.NIter)
	}
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be positive, got %d", c.TopN)
	}
	if c.AlphaLow <= 0 || c.AlphaHigh <= c.AlphaLow {
		return fmt.Errorf("alpha range must satisfy 0 < alpha_low < alpha_high, got [%g, %g]", c.AlphaLow, c.AlphaHigh)
	}
	if c.HistBins < 1 {
		return fmt.Errorf("hist_bins must be positive, got %d", c.HistBins)
	}
	return nil
}

// Set assigns a key from its string form, as typed on the command line.
// List keys take comma separated values.
func (c *Global) Set(key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	atof := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid float for %s: %w", key, err)
		}
		return f, nil
	}
	var err error
	switch key {
	case "train_path":
		c.TrainPath = val
	case "test_path":
		c.TestPath = val
	case "target":
		c.Target = val
	case "output_dir":
		c.OutputDir = val
	case "cv_folds":
		c.CVFolds, err = atoi()
	case "n_iter":
		c.NIter, err = atoi()
	case "n_jobs":
		c.NJobs, err = atoi()
	case "top_n":
		c.TopN, err = atoi()
	case "hist_bins":
		c.HistBins, err = atoi()
	case "seed":
		var i int
		i, err = atoi()
		c.Seed = int64(i)
	case "alpha_low":
		c.AlphaLow, err = atof()
	case "alpha_high":
		c.AlphaHigh, err = atof()
	case "refit":
		c.Refit = val
	case "features":
		c.Features = splitList(val)
	case "drop_features":
		c.DropFeatures = splitList(val)
	case "zero_fill":
		c.ZeroFill = splitList(val)
	case "question_prefix":
		c.QuestionPrefix = val
	case "log_level":
		c.LogLevel = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return err
	}
	return c.Validate()
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

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".scoretune"), nil
}
