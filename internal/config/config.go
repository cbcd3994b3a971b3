package config

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mmtconf/internal/logging"
	"mmtconf/internal/pyliteral"
)

//go:embed sample_experiment.conf
var sampleExperiment string

// Train holds the [train] section: optimization, evaluation cadence and
// checkpoint policy.
type Train struct {
	ModelType     string
	SavePath      string
	Seed          int
	Patience      int
	MaxEpochs     int
	MaxIterations int

	EvalMetrics     []Metric
	EvalFilters     []string
	EvalBeam        int
	EvalBatchSize   int
	EvalMaxLen      int
	EvalFreq        int
	EvalStart       int
	EvalZero        bool
	SaveBestMetrics bool

	CheckpointFreq int
	NCheckpoints   int
	L2Reg          float64

	Optimizer   string
	LR          float64
	Momentum    float64
	Nesterov    bool
	WeightDecay float64
	GClip       float64

	LRDecay         string
	LRDecayRevert   bool
	LRDecayFactor   float64
	LRDecayPatience int
	LRDecayMin      float64
	LRDecayMode     string

	DispFreq       int
	BatchSize      int
	TensorboardDir string
	DeviceID       DeviceSpec
	SaveOptimState bool
}

// Option is one model-specific knob from [model].
type Option struct {
	Name  string
	Value pyliteral.Value
}

// Model holds the [model] section.
type Model struct {
	Direction Topology
	TiedEmb   string
	Options   []Option
}

// Option returns the knob called name.
func (m Model) Option(name string) (pyliteral.Value, bool) {
	for _, o := range m.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return pyliteral.Value{}, false
}

// Modality binds a stream id to a file path.
type Modality struct {
	Key  string
	Path string
}

// DatasetSpec is one data split, e.g. train_set, with a path per modality
// in document order.
type DatasetSpec struct {
	Split string
	Files []Modality
}

// Path returns the file of modality key.
func (d DatasetSpec) Path(key string) (string, bool) {
	for _, m := range d.Files {
		if m.Key == key {
			return m.Path, true
		}
	}
	return "", false
}

// Var is a plain [data] value, typically an interpolation source.
type Var struct {
	Name  string
	Value string
}

// Data holds the [data] section.
type Data struct {
	Vars   []Var
	Splits []DatasetSpec
}

// Split returns the dataset called name, e.g. "val_set".
func (d Data) Split(name string) (DatasetSpec, bool) {
	for _, s := range d.Splits {
		if s.Split == name {
			return s, true
		}
	}
	return DatasetSpec{}, false
}

// Config is a fully resolved experiment. Values are read-only after Load.
type Config struct {
	// Source is the file the config was loaded from, if any.
	Source     string
	Train      Train
	Model      Model
	Data       Data
	Vocabulary []Modality

	explicit map[string]struct{}
}

// LoadOptions adjusts how an experiment file is read.
type LoadOptions struct {
	// Overrides are "section.key:value" (or "section.key=value") strings
	// applied to the raw document before variable resolution.
	Overrides []string
	// Logger receives debug details and unknown-key warnings. Nil discards.
	Logger *slog.Logger
}

// Load reads, resolves and validates the experiment file at path.
func Load(path string, opts LoadOptions) (*Config, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg, err := Parse(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	cfg.Source = expanded
	return cfg, nil
}

// Parse is Load for an already opened document.
func Parse(r io.Reader, opts LoadOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(opts.Overrides) > 0 {
		logger.Debug("applying overrides", logging.Any("overrides", opts.Overrides))
	}

	doc, err := readDocument(r, opts.Overrides)
	if err != nil {
		return nil, err
	}
	resolved, err := resolveDocument(doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("variables resolved", logging.Int("values", len(resolved)))

	d := &decoder{doc: doc, values: resolved, logger: logger}
	cfg, err := d.decode()
	if err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Explicit reports whether section.key was written in the document (or an
// override) rather than filled from the schema default.
func (c *Config) Explicit(section, key string) bool {
	_, ok := c.explicit[section+"."+key]
	return ok
}

// EarlyStopMetric is the first evaluation metric.
func (c *Config) EarlyStopMetric() Metric {
	if len(c.Train.EvalMetrics) == 0 {
		return MetricLoss
	}
	return c.Train.EvalMetrics[0]
}

// TextualStreams lists the direction streams that need a vocabulary.
func (c *Config) TextualStreams() []Stream {
	var out []Stream
	for _, s := range c.Model.Direction.Streams() {
		if s.Textual() {
			out = append(out, s)
		}
	}
	return out
}

// VocabularyPath returns the vocabulary file of modality key.
func (c *Config) VocabularyPath(key string) (string, bool) {
	for _, m := range c.Vocabulary {
		if m.Key == key {
			return m.Path, true
		}
	}
	return "", false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}

// ExpandPath applies the home-directory expansion used for every path
// setting. Relative paths stay relative to the trainer's working directory.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleExperiment returns the embedded example experiment file.
func SampleExperiment() string {
	return sampleExperiment
}

// CreateSample writes the example experiment file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(SampleExperiment()), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
