package config

// Enum spellings written back to experiment files.
const (
	TiedEmbOff  = "False"
	TiedEmb2Way = "2way"
	TiedEmb3Way = "3way"

	LRDecayOff     = "False"
	LRDecayPlateau = "plateau"

	LRDecayModeMin = "min"
	LRDecayModeMax = "max"
)

const (
	defaultRegistryPath = "~/.local/share/mmtconf/runs.db"
	defaultSamplePath   = "experiment.conf"
)

// Default returns a Config with every optional setting at its documented
// default. Required settings are left empty, so the result does not pass
// Validate until they are filled in.
func Default() Config {
	cfg := Config{explicit: map[string]struct{}{}}
	for _, s := range Schema() {
		if s.Required {
			continue
		}
		if err := s.assign(&cfg, s.Default); err != nil {
			panic("config: invalid default for " + s.Section + "." + s.Name + ": " + err.Error())
		}
	}
	return cfg
}

// DefaultRegistryPath is where prepared runs are recorded.
func DefaultRegistryPath() (string, error) {
	return expandPath(defaultRegistryPath)
}

// DefaultSamplePath is where init writes the example experiment.
func DefaultSamplePath() string {
	return defaultSamplePath
}
