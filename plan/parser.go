package plan

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// PLAN PARSER - TOTAL PARSE OF RAW LLM OUTPUT
// ============================================================================

// ParseResult is the decoded plan response before typed-plan construction.
type ParseResult struct {
	Kind       Kind
	Solution   string
	Confidence float64
	Reasoning  string
	Details    Details
	RawDetails map[string]any
}

type planDocument struct {
	Plan       string         `mapstructure:"plan"`
	Solution   string         `mapstructure:"solution"`
	Confidence float64        `mapstructure:"confidence"`
	Reasoning  string         `mapstructure:"reasoning"`
	Details    map[string]any `mapstructure:"details"`
}

// Parse decodes raw LLM output into a ParseResult. Parsing is total: every
// input yields a result. Unparseable text falls back to the plan field so
// the default Direct kind applies.
func Parse(text string) *ParseResult {
	body := ExtractYAML(text)

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(body), &raw); err != nil || raw == nil {
		return &ParseResult{Kind: NormalizeKind(strings.TrimSpace(text))}
	}

	doc := planDocument{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
	})
	if err == nil {
		_ = decoder.Decode(raw)
	}

	result := &ParseResult{
		Kind:       NormalizeKind(doc.Plan),
		Solution:   doc.Solution,
		Confidence: doc.Confidence,
		Reasoning:  doc.Reasoning,
		RawDetails: doc.Details,
	}
	if doc.Details != nil {
		details := Details{}
		dd, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &details,
			WeaklyTypedInput: true,
		})
		if err == nil && dd.Decode(doc.Details) == nil {
			details.Complexity = Complexity(strings.ToUpper(string(details.Complexity)))
			result.Details = details
		}
	}
	if result.Kind == KindCode {
		result.Solution = CleanCodeFences(result.Solution)
	}
	return result
}

// ExtractYAML pulls the YAML body out of raw LLM text. A ```yaml fence wins
// over a generic fence; the body runs to the last closing fence so nested
// fenced workflow definitions survive. Without fences the trimmed text is
// used as-is.
func ExtractYAML(text string) string {
	if start := strings.Index(text, "```yaml"); start >= 0 {
		body := text[start+len("```yaml"):]
		if end := strings.LastIndex(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}
	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		if nl := strings.Index(body, "\n"); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.LastIndex(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// NormalizeKind maps a raw plan label to a Kind. Case-insensitive, accepts
// legacy TYPE_ prefixes and historical synonyms. Anything unrecognized is
// Direct.
func NormalizeKind(raw string) Kind {
	label := strings.ToUpper(strings.TrimSpace(raw))
	label = strings.TrimPrefix(label, "TYPE_")

	switch label {
	case "DIRECT":
		return KindDirect
	case "CODE", "PYTHON":
		return KindCode
	case "WORKFLOW":
		return KindWorkflow
	case "DELEGATE", "SPECIALIST":
		return KindDelegate
	case "ESCALATE", "HUMAN":
		return KindEscalate
	case "INPUT", "USER":
		return KindInput
	case "MANUAL":
		return KindManual
	default:
		return KindDirect
	}
}

// CleanCodeFences strips surrounding triple-backtick markers (with an
// optional language tag) from a code solution.
func CleanCodeFences(source string) string {
	cleaned := strings.TrimSpace(source)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = cleaned[3:]
	if nl := strings.Index(cleaned, "\n"); nl >= 0 {
		cleaned = cleaned[nl+1:]
	} else {
		cleaned = strings.TrimSpace(cleaned)
		cleaned = strings.TrimPrefix(cleaned, "python")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
