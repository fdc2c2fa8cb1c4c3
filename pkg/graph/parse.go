package graph

import (
	"math"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// UnknownEntityType is assigned to entity records without a type.
const UnknownEntityType = "UNKNOWN"

// Delimiters describe the record format the extraction prompt asks for.
type Delimiters struct {
	Tuple      string
	Record     string
	Completion string
}

// DefaultDelimiters returns the delimiters used by ai.ExtractTuplePrompt.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Tuple:      "<|>",
		Record:     "##",
		Completion: "<|COMPLETE|>",
	}
}

func (d Delimiters) withDefaults() Delimiters {
	def := DefaultDelimiters()
	if d.Tuple == "" {
		d.Tuple = def.Tuple
	}
	if d.Record == "" {
		d.Record = def.Record
	}
	if d.Completion == "" {
		d.Completion = def.Completion
	}
	return d
}

// ParseCompletion turns a delimited extraction completion into an
// Extraction. Every node and edge references chunkID as its source.
// Malformed records are skipped. It returns nil when the completion holds
// neither entities nor relationships.
func ParseCompletion(text, chunkID string, d Delimiters) *common.Extraction {
	d = d.withDefaults()
	x := common.NewExtraction()

	for _, record := range splitRecords(text, d) {
		attrs := recordAttributes(record, d.Tuple)
		if len(attrs) == 0 {
			continue
		}
		switch strings.ToLower(cleanValue(attrs[0])) {
		case "entity":
			if n, ok := parseEntity(attrs, chunkID); ok {
				x.AddNode(n)
			}
		case "relationship":
			if e, ok := parseRelationship(attrs, chunkID); ok {
				x.AddEdge(e)
			}
		case "content_keywords":
			if len(attrs) > 1 {
				x.Keywords = common.UnionStrings(x.Keywords, splitKeywords(attrs[1]))
			}
		default:
			logger.Debug("[Extract] Skipping unknown record", "record", record)
		}
	}

	if x.IsEmpty() {
		return nil
	}
	return x
}

// splitRecords cuts the completion at the completion delimiter and splits it
// into records. Models sometimes put records on separate lines without the
// record delimiter, so a line opening with "(" starts a new record as well.
func splitRecords(text string, d Delimiters) []string {
	if i := strings.Index(text, d.Completion); i >= 0 {
		text = text[:i]
	}

	var out []string
	for _, part := range strings.Split(text, d.Record) {
		start := len(out)
		for _, line := range strings.Split(part, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "(") || len(out) == start {
				out = append(out, line)
				continue
			}
			out[len(out)-1] += " " + line
		}
	}
	return out
}

func recordAttributes(record, tuple string) []string {
	open := strings.Index(record, "(")
	if open < 0 {
		return nil
	}
	body := record[open+1:]
	if end := strings.LastIndex(body, ")"); end >= 0 {
		body = body[:end]
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}
	return strings.Split(body, tuple)
}

func parseEntity(attrs []string, chunkID string) (common.Node, bool) {
	if len(attrs) < 4 {
		return common.Node{}, false
	}
	name := cleanValue(attrs[1])
	if name == "" {
		return common.Node{}, false
	}
	typ := strings.ToUpper(cleanValue(attrs[2]))
	if typ == "" {
		typ = UnknownEntityType
	}
	return common.NewNode(name, typ, cleanValue(attrs[3]), chunkIDs(chunkID)...), true
}

func parseRelationship(attrs []string, chunkID string) (common.Edge, bool) {
	if len(attrs) < 5 {
		return common.Edge{}, false
	}
	source := cleanValue(attrs[1])
	target := cleanValue(attrs[2])
	if source == "" || target == "" || strings.EqualFold(source, target) {
		return common.Edge{}, false
	}

	weight := 1.0
	if len(attrs) > 5 {
		if w, err := strconv.ParseFloat(cleanValue(attrs[5]), 64); err == nil && !math.IsNaN(w) && !math.IsInf(w, 0) {
			weight = w
		}
	}
	typ := common.DefaultEdgeType
	if len(attrs) > 6 {
		if t := strings.ToUpper(cleanValue(attrs[6])); t != "" {
			typ = t
		}
	}

	return common.NewEdge(
		source,
		target,
		typ,
		cleanValue(attrs[3]),
		splitKeywords(attrs[4]),
		weight,
		chunkIDs(chunkID)...,
	), true
}

func splitKeywords(value string) []string {
	var out []string
	for _, k := range strings.Split(value, ",") {
		if k = cleanValue(k); k != "" {
			out = append(out, k)
		}
	}
	return common.UnionStrings(out)
}

// cleanValue strips quotes and surrounding whitespace and collapses inner
// whitespace.
func cleanValue(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "\"'` \t")
	return strings.Join(strings.Fields(value), " ")
}

func chunkIDs(chunkID string) []string {
	if chunkID == "" {
		return nil
	}
	return []string{chunkID}
}
