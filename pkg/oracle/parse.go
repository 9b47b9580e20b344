package oracle

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

var (
	salienceSchema = mustSchema(`{
		"type": "object",
		"required": ["isSalient"],
		"properties": {
			"isSalient": {"type": "boolean"},
			"summary": {"type": "string"}
		}
	}`)

	mergeSchema = mustSchema(`{
		"type": "object",
		"required": ["update"],
		"properties": {
			"update": {"type": "boolean"},
			"updatedSummary": {"type": "string"}
		}
	}`)

	importanceSchema = mustSchema(`{
		"type": "object",
		"required": ["importance"],
		"properties": {
			"importance": {"type": "number"}
		}
	}`)

	numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// extractObject returns the outermost JSON object embedded in raw model
// output, tolerating code fences and surrounding prose.
func extractObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	doc := raw[start : end+1]
	if !gjson.Valid(doc) {
		return "", false
	}
	return doc, true
}

// conforms reports whether raw holds a JSON object valid against schema and
// returns that object.
func conforms(raw string, schema *gojsonschema.Schema) (string, bool) {
	doc, ok := extractObject(raw)
	if !ok {
		return "", false
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil || !result.Valid() {
		return "", false
	}
	return doc, true
}

// parseSalience never fails: anything unexpected becomes the non-salient
// decision.
func parseSalience(raw string) (SalienceDecision, bool) {
	doc, ok := conforms(raw, salienceSchema)
	if !ok {
		return SalienceDecision{}, false
	}

	d := SalienceDecision{
		Salient: gjson.Get(doc, "isSalient").Bool(),
		Summary: strings.TrimSpace(gjson.Get(doc, "summary").String()),
	}
	if !d.Salient {
		return SalienceDecision{}, true
	}
	if d.Summary == "" {
		// A salient fact without a summary cannot be stored.
		return SalienceDecision{}, false
	}
	return d, true
}

// parseMerge falls back to the discard decision.
func parseMerge(raw string) (MergeDecision, bool) {
	doc, ok := conforms(raw, mergeSchema)
	if !ok {
		return MergeDecision{}, false
	}

	d := MergeDecision{
		Update:  gjson.Get(doc, "update").Bool(),
		Summary: strings.TrimSpace(gjson.Get(doc, "updatedSummary").String()),
	}
	if !d.Update {
		return MergeDecision{}, true
	}
	if d.Summary == "" {
		return MergeDecision{}, false
	}
	return d, true
}

// parseImportance accepts the JSON form or a bare number and clamps to [0,1].
func parseImportance(raw string) (float64, bool) {
	if doc, ok := conforms(raw, importanceSchema); ok {
		return clamp01(gjson.Get(doc, "importance").Float()), true
	}

	match := numberPattern.FindString(raw)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return clamp01(v), true
}

// cleanText strips whitespace and wrapping quotes from free-text output.
func cleanText(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
