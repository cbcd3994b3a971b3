package config

import (
	"strings"

	"mmtconf/internal/pyliteral"
)

// Validate ensures the configuration is usable by the trainer. It is run by
// Load and may be called again on configs built in code.
func (c *Config) Validate() error {
	if err := c.validateTrain(); err != nil {
		return err
	}
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	if err := c.validateOptimizer(); err != nil {
		return err
	}
	if err := c.validateLRDecay(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateData(); err != nil {
		return err
	}
	if err := c.validateVocabulary(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTrain() error {
	if strings.TrimSpace(c.Train.ModelType) == "" {
		return missingKey(SectionTrain, "model_type")
	}
	if !contains(ModelTypes(), c.Train.ModelType) {
		return unknownChoice(SectionTrain, "model_type", c.Train.ModelType, ModelTypes())
	}
	if strings.TrimSpace(c.Train.SavePath) == "" {
		return missingKey(SectionTrain, "save_path")
	}
	positive := []struct {
		key   string
		value int
	}{
		{"max_epochs", c.Train.MaxEpochs},
		{"max_iterations", c.Train.MaxIterations},
		{"batch_size", c.Train.BatchSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return constraint(SectionTrain, p.key, "must be positive, got %d", p.value)
		}
	}
	nonNegative := []struct {
		key   string
		value int
	}{
		{"seed", c.Train.Seed},
		{"patience", c.Train.Patience},
		{"checkpoint_freq", c.Train.CheckpointFreq},
		{"n_checkpoints", c.Train.NCheckpoints},
		{"disp_freq", c.Train.DispFreq},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			return constraint(SectionTrain, p.key, "must not be negative, got %d", p.value)
		}
	}
	return nil
}

func (c *Config) validateEvaluation() error {
	if len(c.Train.EvalMetrics) == 0 {
		return constraint(SectionTrain, "eval_metrics", "at least one metric is required")
	}
	seen := make(map[Metric]struct{}, len(c.Train.EvalMetrics))
	for _, m := range c.Train.EvalMetrics {
		if !m.Known() {
			return unknownChoice(SectionTrain, "eval_metrics", string(m), metricNames())
		}
		if _, dup := seen[m]; dup {
			return constraint(SectionTrain, "eval_metrics", "metric %q listed twice", m)
		}
		seen[m] = struct{}{}
	}
	for _, f := range c.Train.EvalFilters {
		if !contains(EvalFilters(), f) {
			return unknownChoice(SectionTrain, "eval_filters", f, EvalFilters())
		}
	}
	positive := []struct {
		key   string
		value int
	}{
		{"eval_beam", c.Train.EvalBeam},
		{"eval_batch_size", c.Train.EvalBatchSize},
		{"eval_max_len", c.Train.EvalMaxLen},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return constraint(SectionTrain, p.key, "must be positive, got %d", p.value)
		}
	}
	if c.Train.EvalFreq < 0 {
		return constraint(SectionTrain, "eval_freq", "must not be negative, got %d", c.Train.EvalFreq)
	}
	if c.Train.EvalStart < 0 {
		return constraint(SectionTrain, "eval_start", "must not be negative, got %d", c.Train.EvalStart)
	}
	return nil
}

func (c *Config) validateOptimizer() error {
	if !contains(Optimizers(), c.Train.Optimizer) {
		return unknownChoice(SectionTrain, "optimizer", c.Train.Optimizer, Optimizers())
	}
	if c.Train.LR <= 0 {
		return constraint(SectionTrain, "lr", "must be positive, got %s", pyliteral.FormatFloat(c.Train.LR))
	}
	nonNegative := []struct {
		key   string
		value float64
	}{
		{"momentum", c.Train.Momentum},
		{"weight_decay", c.Train.WeightDecay},
		{"gclip", c.Train.GClip},
		{"l2_reg", c.Train.L2Reg},
	}
	for _, p := range nonNegative {
		if p.value < 0 {
			return constraint(SectionTrain, p.key, "must not be negative, got %s", pyliteral.FormatFloat(p.value))
		}
	}
	if c.Train.Nesterov {
		if c.Train.Optimizer != "sgd" {
			return constraint(SectionTrain, "nesterov", "requires optimizer sgd, got %s", c.Train.Optimizer)
		}
		if c.Train.Momentum <= 0 {
			return constraint(SectionTrain, "nesterov", "requires momentum > 0")
		}
	}
	return nil
}

func (c *Config) validateLRDecay() error {
	switch c.Train.LRDecay {
	case LRDecayOff:
		return nil
	case LRDecayPlateau:
	default:
		return unknownChoice(SectionTrain, "lr_decay", c.Train.LRDecay, []string{LRDecayOff, LRDecayPlateau})
	}
	if c.Train.LRDecayFactor <= 0 || c.Train.LRDecayFactor >= 1 {
		return constraint(SectionTrain, "lr_decay_factor", "must be between 0 and 1 (exclusive), got %s", pyliteral.FormatFloat(c.Train.LRDecayFactor))
	}
	if c.Train.LRDecayPatience < 0 {
		return constraint(SectionTrain, "lr_decay_patience", "must not be negative, got %d", c.Train.LRDecayPatience)
	}
	if c.Train.LRDecayMin < 0 {
		return constraint(SectionTrain, "lr_decay_min", "must not be negative, got %s", pyliteral.FormatFloat(c.Train.LRDecayMin))
	}
	switch c.Train.LRDecayMode {
	case LRDecayModeMin, LRDecayModeMax:
	default:
		return unknownChoice(SectionTrain, "lr_decay_mode", c.Train.LRDecayMode, []string{LRDecayModeMin, LRDecayModeMax})
	}
	return nil
}

func (c *Config) validateDevice() error {
	if err := c.Train.DeviceID.Validate(); err != nil {
		return &Error{Kind: ErrTypeCoercion, Section: SectionTrain, Key: "device_id", Msg: err.Error(), Err: err}
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.Direction.IsZero() {
		return missingKey(SectionModel, "direction")
	}
	if len(c.Model.Direction.Sources) == 0 || len(c.Model.Direction.Targets) == 0 {
		return constraint(SectionModel, "direction", "needs at least one source and one target")
	}
	switch c.Model.TiedEmb {
	case TiedEmbOff, TiedEmb2Way, TiedEmb3Way:
	default:
		return unknownChoice(SectionModel, "tied_emb", c.Model.TiedEmb, []string{TiedEmb2Way, TiedEmb3Way, TiedEmbOff})
	}
	return nil
}

func (c *Config) validateData() error {
	for _, required := range []string{"train_set", "val_set"} {
		if _, ok := c.Data.Split(required); !ok {
			return missingKey(SectionData, required)
		}
	}
	for _, split := range c.Data.Splits {
		for _, stream := range c.Model.Direction.Streams() {
			path, ok := split.Path(stream.ID)
			if !ok {
				return constraint(SectionData, split.Split, "no path for modality %q of direction %s", stream.ID, c.Model.Direction)
			}
			if strings.TrimSpace(path) == "" {
				return constraint(SectionData, split.Split, "empty path for modality %q", stream.ID)
			}
		}
	}
	return nil
}

func (c *Config) validateVocabulary() error {
	for _, stream := range c.TextualStreams() {
		path, ok := c.VocabularyPath(stream.ID)
		if !ok || strings.TrimSpace(path) == "" {
			return &Error{Kind: ErrMissingKey, Section: SectionVocabulary, Key: stream.ID,
				Msg: "textual stream " + stream.String() + " needs a vocabulary"}
		}
	}
	if c.Model.TiedEmb != TiedEmb3Way {
		return nil
	}

	src, trg := false, false
	for _, s := range c.Model.Direction.Sources {
		src = src || s.Textual()
	}
	for _, s := range c.Model.Direction.Targets {
		trg = trg || s.Textual()
	}
	if !src || !trg {
		return constraint(SectionModel, "tied_emb", "3way needs a textual source and a textual target")
	}

	// One embedding matrix for every textual stream.
	var first Stream
	var firstPath string
	for _, stream := range c.TextualStreams() {
		path, _ := c.VocabularyPath(stream.ID)
		if firstPath == "" {
			first, firstPath = stream, path
			continue
		}
		if path != firstPath {
			return constraint(SectionModel, "tied_emb", "3way requires a shared vocabulary, but %s uses %s and %s uses %s",
				first.ID, firstPath, stream.ID, path)
		}
	}
	return nil
}
