package research

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SourceEntry names a configured source, e.g. a site or internal corpus,
// that resolve_tools_for_config (an external collaborator, §4.2) maps to a
// concrete Tool.
type SourceEntry struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
}

// TrustedPublisher pairs a domain with its trust tier.
type TrustedPublisher struct {
	Domain string `yaml:"domain"`
	Trust  string `yaml:"trust"` // "primary" | "secondary"
}

// SearchBudget bounds total work across iterations.
type SearchBudget struct {
	MaxSources      int `yaml:"max_sources"`
	MaxSearchRounds int `yaml:"max_search_rounds"`
}

// SourcesConfig shapes which Tools are resolved and biases scoring.
type SourcesConfig struct {
	Primary           []SourceEntry      `yaml:"primary"`
	Supplementary     []SourceEntry      `yaml:"supplementary"`
	TrustedPublishers []TrustedPublisher `yaml:"trusted_publishers"`
	ExcludedDomains   []string           `yaml:"excluded_domains"`
}

// SearchConfig controls Plan/Search's fan-out and iteration ceiling.
type SearchConfig struct {
	Decomposition   string       `yaml:"decomposition"`
	ParallelBranches int         `yaml:"parallel_branches"`
	MaxIterations   int          `yaml:"max_iterations"`
	Budget          SearchBudget `yaml:"budget"`
	FollowCitations bool         `yaml:"follow_citations"`
	CitationDepth   int          `yaml:"citation_depth"`
}

// ExtractionField declares one field Extract must populate per finding.
type ExtractionField struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"` // text|number|boolean|date|enum
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// ExtractConfig shapes the extract prompt's expected output.
type ExtractConfig struct {
	Fields        []ExtractionField `yaml:"fields"`
	Relationships []string          `yaml:"relationships"`
}

// EvaluationCriterion is one rubric line item.
type EvaluationCriterion struct {
	Name       string `yaml:"name"`
	Importance string `yaml:"importance"` // critical|high|medium|low
	Guidance   string `yaml:"guidance"`
}

// EvaluateConfig shapes the scoring rubric.
type EvaluateConfig struct {
	Mode          string                `yaml:"mode"` // corroborative|hierarchical|comparative
	QualityRubric string                `yaml:"quality_rubric"`
	Criteria      []EvaluationCriterion `yaml:"criteria"`
}

// EffectiveRubric returns the literal rubric if set, else one built from
// Criteria, else the package default, per spec.md §4.1.
func (e EvaluateConfig) EffectiveRubric() string {
	if e.QualityRubric != "" {
		return e.QualityRubric
	}
	if len(e.Criteria) > 0 {
		rubric := "Score findings against the following criteria:\n"
		for _, c := range e.Criteria {
			rubric += fmt.Sprintf("- %s (importance: %s): %s\n", c.Name, c.Importance, c.Guidance)
		}
		return rubric
	}
	return "Score each finding's relevance to the question and the quality of its sourcing."
}

// CompletenessConfig bounds the Completeness phase's ceiling checks and
// prompt framing.
type CompletenessConfig struct {
	MinSources             int    `yaml:"min_sources"`
	MaxSources             int    `yaml:"max_sources"`
	RequireContraryCheck   bool   `yaml:"require_contrary_check"`
	RequireSourceDiversity bool   `yaml:"require_source_diversity"`
	DoneWhen               string `yaml:"done_when"`
}

// OutputConfig shapes Synthesize.
type OutputConfig struct {
	Format        string   `yaml:"format"` // report|memo|brief|summary
	Sections      []string `yaml:"sections"`
	CitationStyle string   `yaml:"citation_style"` // bluebook|apa|mla|chicago|inline
	TargetLength  string   `yaml:"target_length"`  // brief|standard|detailed
}

// Config is the declarative, validated surface controlling Loop behavior.
type Config struct {
	Sources      SourcesConfig       `yaml:"sources"`
	Search       SearchConfig        `yaml:"search"`
	Extract      ExtractConfig       `yaml:"extract"`
	Evaluate     EvaluateConfig      `yaml:"evaluate"`
	Completeness CompletenessConfig  `yaml:"completeness"`
	Output       OutputConfig        `yaml:"output"`
}

// Default returns a Config with documented defaults; it is always valid.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Decomposition:    "simple",
			ParallelBranches: 3,
			MaxIterations:    5,
			Budget: SearchBudget{
				MaxSources:      40,
				MaxSearchRounds: 5,
			},
			CitationDepth: 0,
		},
		Extract: ExtractConfig{
			Fields: []ExtractionField{
				{Name: "key_claim", Type: "text", Required: true, Description: "The single most load-bearing claim in this source relevant to the question."},
			},
		},
		Evaluate: EvaluateConfig{
			Mode: "corroborative",
		},
		Completeness: CompletenessConfig{
			MinSources: 3,
			MaxSources: 30,
		},
		Output: OutputConfig{
			Format:        "report",
			CitationStyle: "inline",
			TargetLength:  "standard",
		},
	}
}

// FromDict merges a loosely-typed map (e.g. decoded JSON/YAML) over the
// defaults; missing keys take the default. Unknown keys are ignored (they
// round-trip at the Checkpoint layer, not here).
func FromDict(dict map[string]any) (Config, error) {
	cfg := Default()

	raw, err := yaml.Marshal(dict)
	if err != nil {
		return cfg, fmt.Errorf("research: marshal config dict: %w", err)
	}

	// Unmarshal onto the defaulted struct so absent keys keep their default
	// value instead of being zeroed.
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("research: unmarshal config dict: %w", err)
	}
	return cfg, nil
}

// ToDict serializes Config to a plain map, the Checkpoint wire form's
// config_dict field (spec.md §6).
func (c Config) ToDict() (map[string]any, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("research: marshal config: %w", err)
	}
	var dict map[string]any
	if err := yaml.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("research: unmarshal config to dict: %w", err)
	}
	return dict, nil
}

var validTrust = map[string]bool{"primary": true, "secondary": true}
var validFieldType = map[string]bool{"text": true, "number": true, "boolean": true, "date": true, "enum": true}
var validDecomposition = map[string]bool{
	"simple": true, "issue_spotting": true, "hypothesis_driven": true,
	"chronological": true, "comparative": true, "multi_jurisdictional": true,
}
var validEvaluateMode = map[string]bool{"corroborative": true, "hierarchical": true, "comparative": true}
var validImportance = map[string]bool{"critical": true, "high": true, "medium": true, "low": true}
var validOutputFormat = map[string]bool{"report": true, "memo": true, "brief": true, "summary": true}
var validCitationStyle = map[string]bool{"bluebook": true, "apa": true, "mla": true, "chicago": true, "inline": true}
var validTargetLength = map[string]bool{"brief": true, "standard": true, "detailed": true}

// Validate enumerates all errors, not just the first, per spec.md §4.1.
func (c Config) Validate() (bool, []error) {
	var errs []error

	for _, tp := range c.Sources.TrustedPublishers {
		if tp.Domain == "" {
			errs = append(errs, fmt.Errorf("sources.trusted_publishers: empty domain"))
		}
		if !validTrust[tp.Trust] {
			errs = append(errs, fmt.Errorf("sources.trusted_publishers: invalid trust %q for domain %q", tp.Trust, tp.Domain))
		}
	}

	if !validDecomposition[c.Search.Decomposition] {
		errs = append(errs, fmt.Errorf("search.decomposition: invalid value %q", c.Search.Decomposition))
	}
	if c.Search.ParallelBranches < 1 || c.Search.ParallelBranches > 10 {
		errs = append(errs, fmt.Errorf("search.parallel_branches: %d out of range [1,10]", c.Search.ParallelBranches))
	}
	if c.Search.MaxIterations < 1 || c.Search.MaxIterations > 20 {
		errs = append(errs, fmt.Errorf("search.max_iterations: %d out of range [1,20]", c.Search.MaxIterations))
	}
	if c.Search.CitationDepth < 0 || c.Search.CitationDepth > 5 {
		errs = append(errs, fmt.Errorf("search.citation_depth: %d out of range [0,5]", c.Search.CitationDepth))
	}

	for _, f := range c.Extract.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("extract.fields: empty field name"))
		}
		if !validFieldType[f.Type] {
			errs = append(errs, fmt.Errorf("extract.fields: invalid type %q for field %q", f.Type, f.Name))
		}
	}

	if !validEvaluateMode[c.Evaluate.Mode] {
		errs = append(errs, fmt.Errorf("evaluate.mode: invalid value %q", c.Evaluate.Mode))
	}
	for _, crit := range c.Evaluate.Criteria {
		if !validImportance[crit.Importance] {
			errs = append(errs, fmt.Errorf("evaluate.criteria: invalid importance %q for %q", crit.Importance, crit.Name))
		}
	}

	if c.Completeness.MinSources > c.Completeness.MaxSources {
		errs = append(errs, fmt.Errorf("completeness: min_sources (%d) > max_sources (%d)", c.Completeness.MinSources, c.Completeness.MaxSources))
	}
	if c.Search.Budget.MaxSources < c.Completeness.MinSources {
		errs = append(errs, fmt.Errorf("search.budget.max_sources (%d) < completeness.min_sources (%d)", c.Search.Budget.MaxSources, c.Completeness.MinSources))
	}

	if !validOutputFormat[c.Output.Format] {
		errs = append(errs, fmt.Errorf("output.format: invalid value %q", c.Output.Format))
	}
	if !validCitationStyle[c.Output.CitationStyle] {
		errs = append(errs, fmt.Errorf("output.citation_style: invalid value %q", c.Output.CitationStyle))
	}
	if c.Output.TargetLength != "" && !validTargetLength[c.Output.TargetLength] {
		errs = append(errs, fmt.Errorf("output.target_length: invalid value %q", c.Output.TargetLength))
	}

	return len(errs) == 0, errs
}

// TargetLengthToTokens maps output.target_length to a synthesis token
// ceiling. Exact table confirmed against the original implementation's
// TargetLengthToTokensTest: brief=1500, standard=4000, detailed=8000,
// unknown falls back to standard.
func TargetLengthToTokens(targetLength string) int {
	switch targetLength {
	case "brief":
		return 1500
	case "standard":
		return 4000
	case "detailed":
		return 8000
	default:
		return 4000
	}
}
