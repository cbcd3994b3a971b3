package config_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"mmtconf/internal/config"
	"mmtconf/internal/pyliteral"
)

const baseExperiment = `# root keys belong to [train]
model_type: NMT
save_path: /runs/en-de
tensorboard_dir: ${save_path}/tb_dir
eval_metrics: meteor,bleu,loss
device_id: auto_2

[model]
direction: en:Text -> de:Text
tied_emb: 2way
enc_dim: 256
dropout: 0.3
att_type: mlp
pattern: 'cost$$'

[data]
root: /data/multi30k
train_set: {'en': '${root}/train.en', 'de': '${root}/train.de'}
val_set: {'en': '${root}/val.en',
          'de': '${root}/val.de'}

[vocabulary]
en: ${data:root}/vocab.en
de: ${data:root}/vocab.de
`

var configCmpOpts = []cmp.Option{
	cmpopts.IgnoreUnexported(config.Config{}),
	cmpopts.EquateEmpty(),
}

func parse(t *testing.T, doc string, overrides ...string) (*config.Config, error) {
	t.Helper()
	return config.Parse(strings.NewReader(doc), config.LoadOptions{Overrides: overrides})
}

func mustParse(t *testing.T, doc string, overrides ...string) *config.Config {
	t.Helper()
	cfg, err := parse(t, doc, overrides...)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return cfg
}

func TestParseResolvesExperiment(t *testing.T) {
	cfg := mustParse(t, baseExperiment)

	if cfg.Train.ModelType != "NMT" {
		t.Fatalf("unexpected model type: %q", cfg.Train.ModelType)
	}
	if cfg.Train.TensorboardDir != cfg.Train.SavePath+"/tb_dir" {
		t.Fatalf("tensorboard_dir = %q, want %q", cfg.Train.TensorboardDir, cfg.Train.SavePath+"/tb_dir")
	}
	if diff := cmp.Diff([]config.Metric{config.MetricMETEOR, config.MetricBLEU, config.MetricLoss}, cfg.Train.EvalMetrics); diff != "" {
		t.Fatalf("eval_metrics mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.EarlyStopMetric(); got != config.MetricMETEOR {
		t.Fatalf("early-stop metric = %q, want meteor", got)
	}
	if cfg.Train.LRDecayMode != config.LRDecayModeMax {
		t.Fatalf("lr_decay_mode = %q, want max for meteor", cfg.Train.LRDecayMode)
	}
	if diff := cmp.Diff(config.DeviceSpec{Auto: 2}, cfg.Train.DeviceID); diff != "" {
		t.Fatalf("device_id mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Train.DeviceID.IsAuto() || cfg.Train.DeviceID.Count() != 2 {
		t.Fatalf("expected auto allocation of 2 devices, got %+v", cfg.Train.DeviceID)
	}

	val, ok := cfg.Data.Split("val_set")
	if !ok {
		t.Fatal("expected val_set")
	}
	wantVal := config.DatasetSpec{Split: "val_set", Files: []config.Modality{
		{Key: "en", Path: "/data/multi30k/val.en"},
		{Key: "de", Path: "/data/multi30k/val.de"},
	}}
	if diff := cmp.Diff(wantVal, val); diff != "" {
		t.Fatalf("val_set mismatch (-want +got):\n%s", diff)
	}
	if path, _ := cfg.VocabularyPath("de"); path != "/data/multi30k/vocab.de" {
		t.Fatalf("unexpected de vocabulary: %q", path)
	}

	if v, _ := cfg.Model.Option("enc_dim"); v.Kind != pyliteral.KindInt || v.Int != 256 {
		t.Fatalf("enc_dim = %v", v)
	}
	if v, _ := cfg.Model.Option("att_type"); v.Kind != pyliteral.KindString || v.Str != "mlp" {
		t.Fatalf("att_type = %v", v)
	}
	if v, _ := cfg.Model.Option("pattern"); v.Str != "cost$" {
		t.Fatalf("pattern = %q, want literal dollar", v.Str)
	}
	if cfg.Model.TiedEmb != config.TiedEmb2Way {
		t.Fatalf("tied_emb = %q", cfg.Model.TiedEmb)
	}
}

func TestParseFillsDefaults(t *testing.T) {
	cfg := mustParse(t, baseExperiment)
	defaults := config.Default()

	if cfg.Train.Patience != 20 || cfg.Train.Patience != defaults.Train.Patience {
		t.Fatalf("patience = %d", cfg.Train.Patience)
	}
	if cfg.Train.BatchSize != 32 || cfg.Train.EvalBeam != 6 || cfg.Train.EvalBatchSize != 16 {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Train)
	}
	if cfg.Train.Optimizer != "adam" || cfg.Train.LR != 0.0004 || cfg.Train.GClip != 5 {
		t.Fatalf("unexpected optimizer defaults: %s lr=%v gclip=%v", cfg.Train.Optimizer, cfg.Train.LR, cfg.Train.GClip)
	}
	if cfg.Train.LRDecay != config.LRDecayOff || cfg.Train.LRDecayFactor != 0.1 {
		t.Fatalf("unexpected lr decay defaults: %q %v", cfg.Train.LRDecay, cfg.Train.LRDecayFactor)
	}
	if !cfg.Train.SaveBestMetrics || cfg.Train.EvalZero {
		t.Fatal("unexpected boolean defaults")
	}
	if cfg.Explicit(config.SectionTrain, "patience") {
		t.Fatal("patience should come from the default")
	}
	if !cfg.Explicit(config.SectionTrain, "model_type") {
		t.Fatal("model_type should be explicit")
	}
	if diff := cmp.Diff(config.AutoDevices(1), defaults.Train.DeviceID); diff != "" {
		t.Fatalf("default device mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]config.Metric{config.MetricLoss}, defaults.Train.EvalMetrics); diff != "" {
		t.Fatalf("default metrics mismatch (-want +got):\n%s", diff)
	}
	if defaults.Model.TiedEmb != config.TiedEmbOff {
		t.Fatalf("default tied_emb = %q", defaults.Model.TiedEmb)
	}
}

func TestParseExplicitDeviceList(t *testing.T) {
	cfg := mustParse(t, baseExperiment, "train.device_id:0,1,3")
	if diff := cmp.Diff(config.DeviceSpec{IDs: []int{0, 1, 3}}, cfg.Train.DeviceID); diff != "" {
		t.Fatalf("device_id mismatch (-want +got):\n%s", diff)
	}
	if cfg.Train.DeviceID.IsAuto() {
		t.Fatal("explicit device list reported as auto")
	}
}

func TestParseFloatStyleIntegers(t *testing.T) {
	cfg := mustParse(t, baseExperiment, "train.max_iterations:1e10", "train.disp_freq:1e3")
	if cfg.Train.MaxIterations != 10_000_000_000 {
		t.Fatalf("max_iterations = %d", cfg.Train.MaxIterations)
	}
	if cfg.Train.DispFreq != 1000 {
		t.Fatalf("disp_freq = %d", cfg.Train.DispFreq)
	}

	for _, raw := range []string{"1e20", "2.5"} {
		_, err := parse(t, baseExperiment, "train.max_iterations:"+raw)
		if !errors.Is(err, config.ErrTypeCoercion) {
			t.Fatalf("max_iterations %s: expected ErrTypeCoercion, got %v", raw, err)
		}
	}
}

func TestParseDictWithBlankLine(t *testing.T) {
	doc := strings.Replace(baseExperiment, "val.en',\n", "val.en',\n\n", 1)
	if doc == baseExperiment {
		t.Fatal("fixture did not change")
	}
	cfg := mustParse(t, doc)
	val, ok := cfg.Data.Split("val_set")
	if !ok {
		t.Fatal("val_set missing")
	}
	if p, _ := val.Path("de"); p != "/data/multi30k/val.de" {
		t.Fatalf("val_set de = %q", p)
	}
}

func TestOverridesApplyBeforeResolution(t *testing.T) {
	cfg := mustParse(t, baseExperiment, "train.save_path=/scratch/run1", "model.enc_dim:512", "train.model_type:attentivemnmt")
	if cfg.Train.TensorboardDir != "/scratch/run1/tb_dir" {
		t.Fatalf("tensorboard_dir = %q", cfg.Train.TensorboardDir)
	}
	if v, _ := cfg.Model.Option("enc_dim"); v.Int != 512 {
		t.Fatalf("enc_dim = %v", v)
	}
	if cfg.Train.ModelType != "AttentiveMNMT" {
		t.Fatalf("model_type not canonicalized: %q", cfg.Train.ModelType)
	}
}

func TestWriteINIRoundTrip(t *testing.T) {
	first := mustParse(t, baseExperiment, "train.lr_decay:plateau", "train.eval_filters:de-bpe,lower")

	var out bytes.Buffer
	if err := first.WriteINI(&out); err != nil {
		t.Fatalf("WriteINI returned error: %v", err)
	}
	second := mustParse(t, out.String())
	if diff := cmp.Diff(first, second, configCmpOpts...); diff != "" {
		t.Fatalf("round trip changed config (-first +second):\n%s\n%s", diff, out.String())
	}

	var again bytes.Buffer
	if err := second.WriteINI(&again); err != nil {
		t.Fatalf("second WriteINI returned error: %v", err)
	}
	if out.String() != again.String() {
		t.Fatalf("canonical form not stable:\n%s\n---\n%s", out.String(), again.String())
	}
	if !strings.Contains(out.String(), "pattern: 'cost$$'") {
		t.Fatalf("expected escaped dollar in output:\n%s", out.String())
	}
}

func TestSampleExperimentLoads(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "sample", "experiment.conf")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, err := config.Load(path, config.LoadOptions{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Source != path {
		t.Fatalf("Source = %q, want %q", cfg.Source, path)
	}
	wantSave := filepath.Join(home, "mmt", "models", "en-de")
	if cfg.Train.SavePath != wantSave {
		t.Fatalf("save_path = %q, want %q", cfg.Train.SavePath, wantSave)
	}
	if cfg.Train.TensorboardDir != filepath.Join(wantSave, "tb_dir") {
		t.Fatalf("tensorboard_dir = %q", cfg.Train.TensorboardDir)
	}
	if got := len(cfg.Data.Splits); got != 3 {
		t.Fatalf("expected 3 splits, got %d", got)
	}
	if len(cfg.TextualStreams()) != 2 {
		t.Fatalf("expected en and de to be textual, got %v", cfg.TextualStreams())
	}

	var out bytes.Buffer
	if err := cfg.WriteINI(&out); err != nil {
		t.Fatalf("WriteINI returned error: %v", err)
	}
	reloaded := mustParse(t, out.String())
	if diff := cmp.Diff(cfg, reloaded, append(configCmpOpts, cmpopts.IgnoreFields(config.Config{}, "Source"))...); diff != "" {
		t.Fatalf("sample round trip changed config (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.conf"), config.LoadOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestParseErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		overrides []string
		want      error
		key       string
		contains  string
	}{
		{
			name: "missing model_type",
			doc:  strings.Replace(baseExperiment, "model_type: NMT\n", "", 1),
			want: config.ErrMissingKey,
			key:  "model_type",
		},
		{
			name: "missing direction",
			doc:  strings.Replace(baseExperiment, "direction: en:Text -> de:Text\n", "", 1),
			want: config.ErrMissingKey,
			key:  "direction",
		},
		{
			name: "missing val_set",
			doc:  strings.Replace(baseExperiment, "val_set: {'en': '${root}/val.en',\n          'de': '${root}/val.de'}\n", "", 1),
			want: config.ErrMissingKey,
			key:  "val_set",
		},
		{
			name:      "missing vocabulary",
			overrides: []string{"model.direction:en:Text -> de:Text, fr:Text", "data.train_set:{'en': 'a', 'de': 'b', 'fr': 'c'}", "data.val_set:{'en': 'a', 'de': 'b', 'fr': 'c'}"},
			want:      config.ErrMissingKey,
			key:       "fr",
		},
		{
			name:      "3way with different vocabularies",
			overrides: []string{"model.tied_emb:3way"},
			want:      config.ErrConstraint,
			key:       "tied_emb",
		},
		{
			name:      "bad integer",
			overrides: []string{"train.patience:ten"},
			want:      config.ErrTypeCoercion,
			key:       "patience",
		},
		{
			name:      "bad device",
			overrides: []string{"train.device_id:auto_0"},
			want:      config.ErrTypeCoercion,
			key:       "device_id",
		},
		{
			name:      "bad direction",
			overrides: []string{"model.direction:en:Text de:Text"},
			want:      config.ErrTypeCoercion,
			key:       "direction",
		},
		{
			name:      "unknown optimizer",
			overrides: []string{"train.optimizer:adamm"},
			want:      config.ErrUnknownEnum,
			key:       "optimizer",
			contains:  `did you mean "adam"`,
		},
		{
			name:      "unknown model type",
			overrides: []string{"train.model_type:AttentiveNMT"},
			want:      config.ErrUnknownEnum,
			key:       "model_type",
		},
		{
			name:      "unknown metric",
			overrides: []string{"train.eval_metrics:blue,loss"},
			want:      config.ErrUnknownEnum,
			key:       "eval_metrics",
			contains:  `did you mean "bleu"`,
		},
		{
			name:      "duplicate metric",
			overrides: []string{"train.eval_metrics:bleu,loss,bleu"},
			want:      config.ErrConstraint,
			key:       "eval_metrics",
		},
		{
			name:      "unknown filter",
			overrides: []string{"train.eval_filters:de-bep"},
			want:      config.ErrUnknownEnum,
			key:       "eval_filters",
		},
		{
			name:      "nesterov without sgd",
			overrides: []string{"train.nesterov:True"},
			want:      config.ErrConstraint,
			key:       "nesterov",
		},
		{
			name:      "lr decay factor out of range",
			overrides: []string{"train.lr_decay:plateau", "train.lr_decay_factor:1.5"},
			want:      config.ErrConstraint,
			key:       "lr_decay_factor",
		},
		{
			name:      "non-positive beam",
			overrides: []string{"train.eval_beam:0"},
			want:      config.ErrConstraint,
			key:       "eval_beam",
		},
		{
			name:      "split missing a modality",
			overrides: []string{"data.val_set:{'en': '${root}/val.en'}"},
			want:      config.ErrConstraint,
			key:       "val_set",
		},
		{
			name:      "dataset is not a dict",
			overrides: []string{"data.val_set:['a', 'b']"},
			want:      config.ErrTypeCoercion,
			key:       "val_set",
		},
		{
			name:      "unresolved reference",
			overrides: []string{"train.tensorboard_dir:${nope}/tb"},
			want:      config.ErrUnresolvedReference,
			key:       "tensorboard_dir",
			contains:  "${train:nope}",
		},
		{
			name:      "reference cycle",
			overrides: []string{"data.a:${b}", "data.b:${a}"},
			want:      config.ErrUnresolvedReference,
			contains:  "cycle",
		},
		{
			name:      "stray dollar",
			overrides: []string{"train.save_path:/runs/$HOME"},
			want:      config.ErrSyntax,
			key:       "save_path",
		},
		{
			name: "duplicate key",
			doc:  baseExperiment + "en: /elsewhere/vocab.en\n",
			want: config.ErrSyntax,
		},
		{
			name:      "malformed override",
			overrides: []string{"patience:5"},
			want:      config.ErrSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc
			if doc == "" {
				doc = baseExperiment
			}
			cfg, err := parse(t, doc, tt.overrides...)
			if err == nil {
				t.Fatalf("expected error, got config %+v", cfg)
			}
			if cfg != nil {
				t.Fatal("expected no config alongside an error")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var ce *config.Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *config.Error, got %T", err)
			}
			if tt.key != "" && ce.Key != tt.key {
				t.Fatalf("error key = %q, want %q (%v)", ce.Key, tt.key, err)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestThreeWayTyingWithSharedVocabulary(t *testing.T) {
	cfg := mustParse(t, baseExperiment, "model.tied_emb:3way", "vocabulary.de:${data:root}/vocab.en")
	if cfg.Model.TiedEmb != config.TiedEmb3Way {
		t.Fatalf("tied_emb = %q", cfg.Model.TiedEmb)
	}
}

func TestErrorsCarryLineNumbers(t *testing.T) {
	doc := strings.Replace(baseExperiment, "tensorboard_dir: ${save_path}/tb_dir", "tensorboard_dir: ${missing}/tb_dir", 1)
	_, err := parse(t, doc)
	var ce *config.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
	if ce.Line != 4 {
		t.Fatalf("line = %d, want 4", ce.Line)
	}
	if !strings.Contains(err.Error(), "(line 4)") {
		t.Fatalf("message does not show the line: %q", err)
	}
}

func TestUnknownTrainKeyIsReported(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := config.Parse(strings.NewReader(baseExperiment), config.LoadOptions{
		Overrides: []string{"train.patince:5"},
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "key=patince") || !strings.Contains(out, "suggestion=patience") {
		t.Fatalf("expected unknown-key warning with suggestion, got:\n%s", out)
	}
	if !strings.Contains(out, "applying overrides") {
		t.Fatalf("expected overrides to be logged, got:\n%s", out)
	}
	if !strings.Contains(out, "default filled") {
		t.Fatalf("expected debug output for defaults, got:\n%s", out)
	}
}

func TestExportFormats(t *testing.T) {
	cfg := mustParse(t, baseExperiment, "model.max_len:None")

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := cfg.Export(&buf, config.FormatJSON); err != nil {
			t.Fatalf("Export returned error: %v", err)
		}
		var doc map[string]map[string]any
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid json: %v\n%s", err, buf.String())
		}
		if doc["train"]["model_type"] != "NMT" {
			t.Fatalf("unexpected model_type: %v", doc["train"]["model_type"])
		}
		if doc["train"]["patience"] != float64(20) {
			t.Fatalf("unexpected patience: %v", doc["train"]["patience"])
		}
		if doc["model"]["max_len"] != nil {
			t.Fatalf("expected null max_len, got %v", doc["model"]["max_len"])
		}
		val, _ := doc["data"]["val_set"].(map[string]any)
		if val["de"] != "/data/multi30k/val.de" {
			t.Fatalf("unexpected val_set: %v", doc["data"]["val_set"])
		}
		if idx := strings.Index(buf.String(), `"train"`); idx < 0 || idx > strings.Index(buf.String(), `"model"`) {
			t.Fatalf("sections out of order:\n%s", buf.String())
		}
	})

	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := cfg.Export(&buf, config.FormatTOML); err != nil {
			t.Fatalf("Export returned error: %v", err)
		}
		var doc map[string]map[string]any
		if err := toml.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid toml: %v\n%s", err, buf.String())
		}
		if doc["train"]["device_id"] != "auto_2" {
			t.Fatalf("unexpected device_id: %v", doc["train"]["device_id"])
		}
		if doc["model"]["max_len"] != "None" {
			t.Fatalf("expected None spelled out, got %v", doc["model"]["max_len"])
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := cfg.Export(&buf, "YAML"); err != nil {
			t.Fatalf("Export returned error: %v", err)
		}
		var doc map[string]map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid yaml: %v\n%s", err, buf.String())
		}
		if doc["model"]["direction"] != "en:Text -> de:Text" {
			t.Fatalf("unexpected direction: %v", doc["model"]["direction"])
		}
		metrics, _ := doc["train"]["eval_metrics"].([]any)
		if diff := cmp.Diff([]any{"meteor", "bleu", "loss"}, metrics); diff != "" {
			t.Fatalf("eval_metrics mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := cfg.Export(&bytes.Buffer{}, "xml"); err == nil {
			t.Fatal("expected error for unsupported format")
		}
	})
}

func TestEntriesReportOrigin(t *testing.T) {
	cfg := mustParse(t, baseExperiment)
	var sawDefault, sawExplicit bool
	for _, e := range cfg.Entries() {
		if e.Section == config.SectionTrain && e.Key == "batch_size" {
			sawDefault = !e.Explicit && e.Value == "32"
		}
		if e.Section == config.SectionData && e.Key == "root" {
			sawExplicit = e.Explicit && e.Value == "/data/multi30k"
		}
	}
	if !sawDefault || !sawExplicit {
		t.Fatalf("unexpected entries: default=%v explicit=%v", sawDefault, sawExplicit)
	}
}
