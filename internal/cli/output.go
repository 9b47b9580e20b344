package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/harun/recall/pkg/memory"
	"github.com/harun/recall/pkg/vectorstore"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// view drops the embedding, which is noise on a terminal
func view(mem *memory.Memory) *memory.Memory {
	if mem == nil {
		return nil
	}
	out := *mem
	out.Embedding = nil
	return &out
}

func views(mems []memory.Memory) []memory.Memory {
	out := make([]memory.Memory, len(mems))
	for i := range mems {
		out[i] = *view(&mems[i])
	}
	return out
}

// parseWhere turns key=value pairs into a metadata filter. Values are
// stored as JSON, so booleans and numbers are converted.
func parseWhere(pairs []string) (vectorstore.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(vectorstore.Filter, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want key=value)", pair)
		}
		filter[key] = parseValue(raw)
	}
	return filter, nil
}

func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", raw)
	}
	return t, nil
}
