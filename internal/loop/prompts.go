package loop

import (
	"fmt"
	"strings"

	"github.com/aperturelabs/deepquery/internal/research"
)

// systemPromptFor appends the Loop's prompt_extension to a phase's base
// system prompt, the integration point for skill injection (spec.md §4.6).
func (l *Loop) systemPromptFor(base string) string {
	if l.extension == "" {
		return base
	}
	return base + "\n\n" + l.extension
}

func planPrompt(question string, rc research.ResearchContext, decomposition string) string {
	var ctxInfo strings.Builder
	if rc.Title != "" {
		ctxInfo.WriteString(fmt.Sprintf("Title: %s\n", rc.Title))
	}
	if rc.Position != "" {
		ctxInfo.WriteString(fmt.Sprintf("Position: %s\n", rc.Position))
	}
	if rc.Signals != "" {
		ctxInfo.WriteString(fmt.Sprintf("Signals: %s\n", rc.Signals))
	}
	if rc.Evidence != "" {
		ctxInfo.WriteString(fmt.Sprintf("Evidence: %s\n", rc.Evidence))
	}
	if rc.GraphContext != "" {
		ctxInfo.WriteString(fmt.Sprintf("Graph context: %s\n", rc.GraphContext))
	}
	if ctxInfo.Len() == 0 {
		ctxInfo.WriteString("(no additional context)\n")
	}

	return fmt.Sprintf(`Plan a research investigation into the following question, using a %q decomposition strategy.

Question: %s

Context:
%s
Break the question into a small number of focused sub-queries. For each, optionally name a source_target (a tool name) if one kind of source is clearly most relevant, and a one-line rationale.

Return JSON:
{
  "sub_queries": [{"query": "...", "source_target": "...", "rationale": "..."}],
  "strategy_notes": "a couple sentences on the overall approach"
}`, decomposition, question, ctxInfo.String())
}

func extractPrompt(question string, results []research.SearchResult, cfg research.ExtractConfig) string {
	var sb strings.Builder
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("[%d] %s (%s)\n%s\n\n", i, r.Title, r.URL, r.Snippet))
	}

	var fieldsDesc strings.Builder
	for _, f := range cfg.Fields {
		req := ""
		if f.Required {
			req = ", required"
		}
		fieldsDesc.WriteString(fmt.Sprintf("- %s (%s%s): %s\n", f.Name, f.Type, req, f.Description))
	}
	if fieldsDesc.Len() == 0 {
		fieldsDesc.WriteString("- key_claim (text): the single most load-bearing claim in this source\n")
	}

	relDesc := "none"
	if len(cfg.Relationships) > 0 {
		relDesc = strings.Join(cfg.Relationships, ", ")
	}

	return fmt.Sprintf(`Extract structured findings relevant to: %s

Sources:
%s
For each source that contains relevant information, extract one finding with these fields:
%s
Allowed relationship types between findings: %s

Return JSON:
{"findings": [{"source_index": 0, "raw_quote": "...", "extracted_fields": {"field_name": {"kind": "text|number|boolean|date|enum", "text": "...", "num": 0, "bool": false, "enum": "..."}}, "relationships": [{"type": "...", "target": 0, "comment": "..."}]}]}

Omit sources that contain nothing relevant. source_index must reference the bracketed source number above.`, question, sb.String(), fieldsDesc.String(), relDesc)
}

func evaluatePrompt(question, rubric string, findings []research.Finding) string {
	var sb strings.Builder
	for i, f := range findings {
		sb.WriteString(fmt.Sprintf("[%d] source=%s\nquote: %s\n\n", i, f.Source.URL, f.RawQuote))
	}

	return fmt.Sprintf(`Evaluate the following findings gathered while researching: %s

%s

%s

For each finding, score relevance and quality in [0,1] and note anything relevant about the source's reliability.

Return JSON:
{"evaluations": [{"finding_index": 0, "relevance_score": 0.0, "quality_score": 0.0, "evaluation_notes": "..."}]}`, question, sb.String(), rubric)
}

func compactionDigestPrompt(dropped []research.ScoredFinding) string {
	var sb strings.Builder
	for _, f := range dropped {
		sb.WriteString(fmt.Sprintf("- %s (source: %s)\n", f.Finding.RawQuote, f.Finding.Source.URL))
	}
	return fmt.Sprintf(`Summarize the following lower-priority findings into a short digest (a few sentences) that preserves anything a later report section might still need:

%s`, sb.String())
}

func completenessPrompt(question string, findingsCount int, cfg research.CompletenessConfig) string {
	doneWhen := cfg.DoneWhen
	if doneWhen == "" {
		doneWhen = "the question can be answered with reasonable confidence from the gathered findings"
	}
	return fmt.Sprintf(`Research question: %s

Findings gathered so far: %d (min required: %d, ceiling: %d)
Completion criterion: %s
Require a contrary-evidence check: %v
Require source diversity: %v

Decide whether research is complete. If not, suggest 1-3 concrete followup sub-queries (with optional source_target) that would close the most important gap.

Return JSON:
{"complete": true|false, "reasoning": "...", "followup_queries": [{"query": "...", "source_target": "...", "rationale": "..."}]}`,
		question, findingsCount, cfg.MinSources, cfg.MaxSources, doneWhen, cfg.RequireContraryCheck, cfg.RequireSourceDiversity)
}

func synthesizePrompt(question string, findings []research.ScoredFinding, rubric string, out research.OutputConfig) string {
	var sb strings.Builder
	for i, f := range findings {
		sb.WriteString(fmt.Sprintf("[%d] (relevance=%.2f quality=%.2f) %s — %s\n", i, f.RelevanceScore, f.QualityScore, f.Finding.RawQuote, f.Finding.Source.URL))
	}

	sections := "whatever structure best serves the material"
	if len(out.Sections) > 0 {
		sections = strings.Join(out.Sections, ", ")
	}

	return fmt.Sprintf(`Write a %s on the following research question, citing sources inline in %s style.

Question: %s

Evaluation rubric applied to the findings below: %s

Sections to cover: %s

Findings:
%s
Produce markdown. Use headings for structure. Cite sources by URL inline.`,
		out.Format, out.CitationStyle, question, rubric, sections, sb.String())
}
