package config

import (
	"fmt"
	"math"
	"strings"

	"mmtconf/internal/pyliteral"
)

// Section names.
const (
	SectionTrain      = "train"
	SectionModel      = "model"
	SectionData       = "data"
	SectionVocabulary = "vocabulary"
)

// Kind is the value type of a Setting.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindEnum
	KindPath
	KindList
	KindMapping
	KindDevice
	KindTopology
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindPath:
		return "path"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	case KindDevice:
		return "device"
	case KindTopology:
		return "topology"
	default:
		return "unknown"
	}
}

// Setting describes one typed key. Default is written in document syntax and
// goes through the same coercion as file values.
type Setting struct {
	Section  string
	Name     string
	Kind     Kind
	Default  string
	Required bool
	Doc      string

	choices func() []string
	field   func(*Config) any
}

// Choices lists the accepted values of enum and list settings.
func (s Setting) Choices() []string {
	if s.choices == nil {
		return nil
	}
	return s.choices()
}

func fixed(values ...string) func() []string {
	return func() []string { return values }
}

// Schema returns the typed settings of every section in document order.
func Schema() []Setting {
	out := make([]Setting, 0, len(trainSchema)+len(modelSchema))
	out = append(out, trainSchema...)
	return append(out, modelSchema...)
}

// Lookup finds a typed setting.
func Lookup(section, name string) (Setting, bool) {
	for _, s := range Schema() {
		if s.Section == section && s.Name == name {
			return s, true
		}
	}
	return Setting{}, false
}

var trainSchema = []Setting{
	{Section: SectionTrain, Name: "model_type", Kind: KindEnum, Required: true, choices: ModelTypes,
		Doc: "model class selected from the trainer registry", field: func(c *Config) any { return &c.Train.ModelType }},
	{Section: SectionTrain, Name: "save_path", Kind: KindPath, Required: true,
		Doc: "directory for checkpoints and logs", field: func(c *Config) any { return &c.Train.SavePath }},
	{Section: SectionTrain, Name: "seed", Kind: KindInt, Default: "0",
		field: func(c *Config) any { return &c.Train.Seed }},
	{Section: SectionTrain, Name: "patience", Kind: KindInt, Default: "20",
		Doc: "evaluations without improvement before early stopping", field: func(c *Config) any { return &c.Train.Patience }},
	{Section: SectionTrain, Name: "max_epochs", Kind: KindInt, Default: "100",
		field: func(c *Config) any { return &c.Train.MaxEpochs }},
	{Section: SectionTrain, Name: "max_iterations", Kind: KindInt, Default: "1000000",
		field: func(c *Config) any { return &c.Train.MaxIterations }},
	{Section: SectionTrain, Name: "eval_metrics", Kind: KindList, Default: "loss", choices: metricNames,
		Doc: "first entry is the early-stopping criterion", field: func(c *Config) any { return &c.Train.EvalMetrics }},
	{Section: SectionTrain, Name: "eval_filters", Kind: KindList, choices: EvalFilters,
		Doc: "post-processing applied to hypotheses", field: func(c *Config) any { return &c.Train.EvalFilters }},
	{Section: SectionTrain, Name: "eval_beam", Kind: KindInt, Default: "6",
		field: func(c *Config) any { return &c.Train.EvalBeam }},
	{Section: SectionTrain, Name: "eval_batch_size", Kind: KindInt, Default: "16",
		field: func(c *Config) any { return &c.Train.EvalBatchSize }},
	{Section: SectionTrain, Name: "eval_max_len", Kind: KindInt, Default: "200",
		field: func(c *Config) any { return &c.Train.EvalMaxLen }},
	{Section: SectionTrain, Name: "eval_freq", Kind: KindInt, Default: "0",
		Doc: "0 evaluates at the end of every epoch", field: func(c *Config) any { return &c.Train.EvalFreq }},
	{Section: SectionTrain, Name: "eval_start", Kind: KindInt, Default: "1",
		field: func(c *Config) any { return &c.Train.EvalStart }},
	{Section: SectionTrain, Name: "eval_zero", Kind: KindBool, Default: "False",
		field: func(c *Config) any { return &c.Train.EvalZero }},
	{Section: SectionTrain, Name: "save_best_metrics", Kind: KindBool, Default: "True",
		field: func(c *Config) any { return &c.Train.SaveBestMetrics }},
	{Section: SectionTrain, Name: "checkpoint_freq", Kind: KindInt, Default: "0",
		field: func(c *Config) any { return &c.Train.CheckpointFreq }},
	{Section: SectionTrain, Name: "n_checkpoints", Kind: KindInt, Default: "0",
		field: func(c *Config) any { return &c.Train.NCheckpoints }},
	{Section: SectionTrain, Name: "l2_reg", Kind: KindFloat, Default: "0.0",
		field: func(c *Config) any { return &c.Train.L2Reg }},
	{Section: SectionTrain, Name: "optimizer", Kind: KindEnum, Default: "adam", choices: Optimizers,
		field: func(c *Config) any { return &c.Train.Optimizer }},
	{Section: SectionTrain, Name: "lr", Kind: KindFloat, Default: "0.0004",
		field: func(c *Config) any { return &c.Train.LR }},
	{Section: SectionTrain, Name: "momentum", Kind: KindFloat, Default: "0.0",
		field: func(c *Config) any { return &c.Train.Momentum }},
	{Section: SectionTrain, Name: "nesterov", Kind: KindBool, Default: "False",
		field: func(c *Config) any { return &c.Train.Nesterov }},
	{Section: SectionTrain, Name: "weight_decay", Kind: KindFloat, Default: "0.0",
		field: func(c *Config) any { return &c.Train.WeightDecay }},
	{Section: SectionTrain, Name: "gclip", Kind: KindFloat, Default: "5.0",
		Doc: "gradient norm clipping, 0 disables", field: func(c *Config) any { return &c.Train.GClip }},
	{Section: SectionTrain, Name: "lr_decay", Kind: KindEnum, Default: "False", choices: fixed(LRDecayOff, LRDecayPlateau),
		field: func(c *Config) any { return &c.Train.LRDecay }},
	{Section: SectionTrain, Name: "lr_decay_revert", Kind: KindBool, Default: "False",
		field: func(c *Config) any { return &c.Train.LRDecayRevert }},
	{Section: SectionTrain, Name: "lr_decay_factor", Kind: KindFloat, Default: "0.1",
		field: func(c *Config) any { return &c.Train.LRDecayFactor }},
	{Section: SectionTrain, Name: "lr_decay_patience", Kind: KindInt, Default: "10",
		field: func(c *Config) any { return &c.Train.LRDecayPatience }},
	{Section: SectionTrain, Name: "lr_decay_min", Kind: KindFloat, Default: "1e-06",
		field: func(c *Config) any { return &c.Train.LRDecayMin }},
	{Section: SectionTrain, Name: "lr_decay_mode", Kind: KindEnum, choices: fixed("min", "max"),
		Doc: "derived from the early-stopping metric when empty", field: func(c *Config) any { return &c.Train.LRDecayMode }},
	{Section: SectionTrain, Name: "disp_freq", Kind: KindInt, Default: "30",
		field: func(c *Config) any { return &c.Train.DispFreq }},
	{Section: SectionTrain, Name: "batch_size", Kind: KindInt, Default: "32",
		field: func(c *Config) any { return &c.Train.BatchSize }},
	{Section: SectionTrain, Name: "tensorboard_dir", Kind: KindPath,
		Doc: "empty disables TensorBoard logging", field: func(c *Config) any { return &c.Train.TensorboardDir }},
	{Section: SectionTrain, Name: "device_id", Kind: KindDevice, Default: "auto_1",
		Doc: "auto_N or a comma-separated device list", field: func(c *Config) any { return &c.Train.DeviceID }},
	{Section: SectionTrain, Name: "save_optim_state", Kind: KindBool, Default: "False",
		field: func(c *Config) any { return &c.Train.SaveOptimState }},
}

var modelSchema = []Setting{
	{Section: SectionModel, Name: "direction", Kind: KindTopology, Required: true,
		Doc: "source and target streams, e.g. en:Text, image:Numpy -> de:Text", field: func(c *Config) any { return &c.Model.Direction }},
	{Section: SectionModel, Name: "tied_emb", Kind: KindEnum, Default: TiedEmbOff, choices: fixed(TiedEmb2Way, TiedEmb3Way, TiedEmbOff),
		field: func(c *Config) any { return &c.Model.TiedEmb }},
}

// assign coerces raw into the field bound to s.
func (s Setting) assign(cfg *Config, raw string) error {
	raw = strings.TrimSpace(raw)
	switch p := s.field(cfg).(type) {
	case *int:
		n, err := parseInt(raw)
		if err != nil {
			return newError(ErrTypeCoercion, s.Section, s.Name, "expected an integer, got %q", raw)
		}
		*p = n
	case *float64:
		f, err := parseFloat(raw)
		if err != nil {
			return newError(ErrTypeCoercion, s.Section, s.Name, "expected a number, got %q", raw)
		}
		*p = f
	case *bool:
		b, err := parseBool(raw)
		if err != nil {
			return newError(ErrTypeCoercion, s.Section, s.Name, "expected a boolean, got %q", raw)
		}
		*p = b
	case *string:
		value := unquote(raw)
		if s.Kind == KindEnum && value != "" {
			canonical, ok := matchChoice(s.Choices(), value)
			if !ok {
				return unknownChoice(s.Section, s.Name, value, s.Choices())
			}
			value = canonical
		}
		*p = value
	case *[]Metric:
		metrics, err := ParseMetrics(raw)
		if err != nil {
			return &Error{Kind: ErrTypeCoercion, Section: s.Section, Key: s.Name, Msg: err.Error(), Err: err}
		}
		for _, m := range metrics {
			if !m.Known() {
				return unknownChoice(s.Section, s.Name, string(m), s.Choices())
			}
		}
		*p = metrics
	case *[]string:
		items, err := splitList(raw)
		if err != nil {
			return &Error{Kind: ErrTypeCoercion, Section: s.Section, Key: s.Name, Msg: err.Error(), Err: err}
		}
		for i, item := range items {
			canonical, ok := matchChoice(s.Choices(), item)
			if !ok {
				return unknownChoice(s.Section, s.Name, item, s.Choices())
			}
			items[i] = canonical
		}
		*p = items
	case *DeviceSpec:
		spec, err := ParseDeviceSpec(raw)
		if err != nil {
			return &Error{Kind: ErrTypeCoercion, Section: s.Section, Key: s.Name, Msg: err.Error(), Err: err}
		}
		*p = spec
	case *Topology:
		topo, err := ParseTopology(raw)
		if err != nil {
			return &Error{Kind: ErrTypeCoercion, Section: s.Section, Key: s.Name, Msg: err.Error(), Err: err}
		}
		*p = topo
	default:
		return fmt.Errorf("setting %s.%s: unsupported field type %T", s.Section, s.Name, p)
	}
	return nil
}

// format renders the current value of s in document syntax.
func (s Setting) format(cfg *Config) string {
	switch p := s.field(cfg).(type) {
	case *int:
		return fmt.Sprintf("%d", *p)
	case *float64:
		return pyliteral.FormatFloat(*p)
	case *bool:
		return formatBool(*p)
	case *string:
		return *p
	case *[]Metric:
		return formatMetrics(*p)
	case *[]string:
		return strings.Join(*p, ",")
	case *DeviceSpec:
		return p.String()
	case *Topology:
		if p.IsZero() {
			return ""
		}
		return p.String()
	default:
		return ""
	}
}

func parseInt(raw string) (int, error) {
	v, err := pyliteral.Parse(raw)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case pyliteral.KindInt:
		return int(v.Int), nil
	case pyliteral.KindFloat:
		// 1e6 style integers.
		if v.Float == math.Trunc(v.Float) && math.Abs(v.Float) < math.MaxInt {
			return int(v.Float), nil
		}
	}
	return 0, fmt.Errorf("not an integer")
}

func parseFloat(raw string) (float64, error) {
	v, err := pyliteral.Parse(raw)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case pyliteral.KindInt:
		return float64(v.Int), nil
	case pyliteral.KindFloat:
		return v.Float, nil
	}
	return 0, fmt.Errorf("not a number")
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// unquote strips Python string quotes from a value written as a literal.
func unquote(raw string) string {
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') {
		if v, err := pyliteral.Parse(raw); err == nil && v.Kind == pyliteral.KindString {
			return v.Str
		}
	}
	return raw
}
