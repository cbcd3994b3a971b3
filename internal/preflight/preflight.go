package preflight

import (
	"context"
	"fmt"

	"mmtconf/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every filesystem check for cfg. It stops early only when
// ctx is cancelled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	add := func(r Result) bool {
		results = append(results, r)
		return ctx.Err() == nil
	}

	for _, split := range cfg.Data.Splits {
		for _, m := range split.Files {
			name := fmt.Sprintf("%s %s", split.Split, m.Key)
			if !add(CheckReadable(name, m.Path)) {
				return results
			}
		}
	}

	// Vocabularies of streams outside the direction are still listed.
	for _, m := range cfg.Vocabulary {
		if !add(CheckReadable("vocabulary "+m.Key, m.Path)) {
			return results
		}
	}

	if !add(CheckOutputDirectory("save_path", cfg.Train.SavePath)) {
		return results
	}
	if cfg.Train.TensorboardDir != "" {
		add(CheckOutputDirectory("tensorboard_dir", cfg.Train.TensorboardDir))
	}
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
