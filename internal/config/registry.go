package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Model classes exposed by the training framework's model registry. The
// trainer selects the class named by train.model_type.
var modelTypes = []string{
	"NMT",
	"AttentiveMNMT",
	"MNMTDecinit",
	"MultiSourceNMT",
	"ShowAttendAndTell",
	"SwitchingMNMT",
	"VectorNMT",
	"AdversarialMMT",
	"ASR",
	"MultimodalASR",
	"MultitaskAtt",
}

// Post-processing filters applied to hypotheses before scoring.
var evalFilters = []string{
	"de-bpe",
	"de-spm",
	"de-segment",
	"de-compound",
	"de-hyphen",
	"lower",
}

// Optimizers understood by the trainer.
var optimizers = []string{"adadelta", "adagrad", "adam", "sgd", "asgd", "rprop", "rmsprop"}

// ModelTypes returns the known model class names.
func ModelTypes() []string {
	return append([]string(nil), modelTypes...)
}

// EvalFilters returns the known post-processing filter names.
func EvalFilters() []string {
	return append([]string(nil), evalFilters...)
}

// Optimizers returns the known optimizer names.
func Optimizers() []string {
	return append([]string(nil), optimizers...)
}

func contains(choices []string, value string) bool {
	for _, c := range choices {
		if c == value {
			return true
		}
	}
	return false
}

// matchChoice returns the canonical spelling of value among choices,
// comparing case-insensitively.
func matchChoice(choices []string, value string) (string, bool) {
	for _, c := range choices {
		if strings.EqualFold(c, value) {
			return c, true
		}
	}
	return "", false
}

// suggest returns the closest choice when it is plausibly a typo.
func suggest(choices []string, value string) string {
	value = strings.ToLower(value)
	best, bestScore := "", -1
	for _, c := range choices {
		score := levenshtein.ComputeDistance(value, strings.ToLower(c))
		if bestScore < 0 || score < bestScore {
			best, bestScore = c, score
		}
	}
	limit := len(value) / 3
	if limit < 2 {
		limit = 2
	}
	if bestScore < 0 || bestScore > limit {
		return ""
	}
	return best
}

func unknownChoice(section, key, value string, choices []string) *Error {
	msg := fmt.Sprintf("%q is not one of %s", value, strings.Join(sortedCopy(choices), ", "))
	if s := suggest(choices, value); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return newError(ErrUnknownEnum, section, key, "%s", msg)
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
