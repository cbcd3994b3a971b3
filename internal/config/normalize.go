package config

import "fmt"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLRDecay()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Train.SavePath, err = expandPath(c.Train.SavePath); err != nil {
		return fmt.Errorf("train.save_path: %w", err)
	}
	if c.Train.TensorboardDir, err = expandPath(c.Train.TensorboardDir); err != nil {
		return fmt.Errorf("train.tensorboard_dir: %w", err)
	}
	for i := range c.Data.Splits {
		split := &c.Data.Splits[i]
		for j := range split.Files {
			if split.Files[j].Path, err = expandPath(split.Files[j].Path); err != nil {
				return fmt.Errorf("data.%s[%s]: %w", split.Split, split.Files[j].Key, err)
			}
		}
	}
	for i := range c.Vocabulary {
		if c.Vocabulary[i].Path, err = expandPath(c.Vocabulary[i].Path); err != nil {
			return fmt.Errorf("vocabulary.%s: %w", c.Vocabulary[i].Key, err)
		}
	}
	return nil
}

// normalizeLRDecay derives the scheduler mode from the early-stopping
// metric when it was not given.
func (c *Config) normalizeLRDecay() {
	if c.Train.LRDecayMode != "" || len(c.Train.EvalMetrics) == 0 {
		return
	}
	if c.EarlyStopMetric().LowerIsBetter() {
		c.Train.LRDecayMode = LRDecayModeMin
	} else {
		c.Train.LRDecayMode = LRDecayModeMax
	}
}
