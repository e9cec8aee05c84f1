package config

import (
	"time"

	"github.com/mjf789/spam-news/internal/segment"
)

// Default returns a configuration that runs the keyword classifier over
// files, without persistence or notifications.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Segmentation: SegmentationConfig{
			Mode:             "sentence",
			WindowSize:       3,
			Overlap:          1,
			MinUnitLength:    10,
			MinContentLength: 200,
			LeadershipTerms:  segment.DefaultLeadershipTerms(),
			KeywordContext:   ptr(1),
		},
		Demographics: DemographicsConfig{
			CombineScope: "span",
			Gender: map[string][]string{
				"women": {"women", "woman", "female", "females", "girl"},
				"men":   {"men", "man", "male", "males", "boy"},
			},
			Race: map[string][]string{
				"white":           {"white", "caucasian"},
				"people_of_color": {"people of color", "person of color", "minority", "minorities", "nonwhite"},
				"black":           {"black", "african american"},
				"hispanic":        {"hispanic", "latino", "latinx"},
				"asian":           {"asian", "asian american"},
				"indigenous":      {"indigenous", "native american"},
			},
			Intersectional: []PhraseConfig{
				{Target: "women_of_color", Terms: []string{"women of color", "woman of color"}},
				{Target: "women_of_color", Subgroup: "black", Terms: []string{"black women", "black woman"}},
				{Target: "women_of_color", Subgroup: "hispanic", Terms: []string{"latina women", "latina"}},
				{Target: "women_of_color", Subgroup: "asian", Terms: []string{"asian women", "asian woman"}},
				{Target: "men_of_color", Terms: []string{"men of color", "man of color"}},
				{Target: "men_of_color", Subgroup: "black", Terms: []string{"black men", "black man"}},
				{Target: "men_of_color", Subgroup: "hispanic", Terms: []string{"latino men"}},
				{Target: "men_of_color", Subgroup: "asian", Terms: []string{"asian men"}},
				{Target: "white_women", Terms: []string{"white women", "white woman", "caucasian women"}},
				{Target: "white_men", Terms: []string{"white men", "white man", "caucasian men"}},
			},
		},
		Frames: defaultFrames(),
		Lexical: LexicalConfig{
			Weights: map[string]float64{
				"strong":      2,
				"moderate":    1,
				"comparative": 1,
				"statistical": 0.5,
			},
			Saturation: 2,
		},
		Classifier: ClassifierConfig{
			Strategy: "lexical",
			Thresholds: map[string]float64{
				"underrepresentation": 0.5,
				"overrepresentation":  0.5,
				"obstacles":           0.5,
				"successes":           0.5,
			},
			Ensemble: EnsembleConfig{Policy: "propagate"},
		},
		Oracle: OracleConfig{
			Kind:           "http",
			BatchSize:      16,
			Timeout:        30 * time.Second,
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     8 * time.Second,
			Burst:          1,
		},
		Counting:  CountingConfig{Dedup: "span"},
		Agreement: AgreementConfig{ConfidenceLevel: 0.95},
		Pipeline:  PipelineConfig{Interval: 24 * time.Hour},
		Output:    OutputConfig{Formats: []string{"csv", "json"}},
		Server:    ServerConfig{Addr: ":8080"},
	}
}

// defaultFrames keeps each frame's vocabulary disjoint from the others so
// a single keyword never votes for two frames.
func defaultFrames() FrameLexicons {
	return FrameLexicons{
		"underrepresentation": {
			"strong":      {"underrepresented", "underrepresentation", "lacking", "absence", "scarcity", "dearth"},
			"moderate":    {"few", "only", "merely", "small number", "handful"},
			"comparative": {"less than", "fewer than", "below", "{times_less}"},
			"statistical": {"{percentage}", "{ratio}", "percentage", "fraction"},
		},
		"overrepresentation": {
			"strong":      {"overrepresented", "overrepresentation", "dominate", "dominated", "monopolize"},
			"moderate":    {"majority", "predominant", "predominantly", "prevailing"},
			"comparative": {"more than", "exceed", "surpass", "outnumber", "{times_more}"},
			"statistical": {"lion's share"},
		},
		"obstacles": {
			"strong":   {"barrier", "glass ceiling", "ceiling", "discrimination", "bias", "prejudice", "impediment"},
			"moderate": {"struggle", "challenge", "difficulty", "hardship", "stereotype", "systemic", "entrenched"},
		},
		"successes": {
			"strong":   {"breakthrough", "milestone", "landmark", "triumph", "trailblazer"},
			"moderate": {"achievement", "accomplishment", "promoted", "appointed", "elevated", "award", "celebrated"},
		},
	}
}

func ptr[T any](v T) *T { return &v }
