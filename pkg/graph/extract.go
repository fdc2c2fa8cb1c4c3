package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// DefaultEntityTypes are extracted when the caller names no types.
var DefaultEntityTypes = []string{
	"ORGANIZATION", "PERSON", "LOCATION", "CONCEPT", "CREATIVE_WORK", "DATE", "PRODUCT", "EVENT",
}

// JSONEntity is an entity as returned by the JSON extraction mode.
type JSONEntity struct {
	Name        string `json:"entity_name" jsonschema_description:"Name of the entity, capitalized as in the text"`
	Type        string `json:"entity_type" jsonschema_description:"One of the provided entity types"`
	Description string `json:"entity_description" jsonschema_description:"Comprehensive description of the entity's attributes, activities and information provided by the source"`
}

// JSONRelationship is a relationship as returned by the JSON extraction mode.
type JSONRelationship struct {
	Source      string   `json:"source_entity" jsonschema_description:"Name of the source entity, as used for the entities"`
	Target      string   `json:"target_entity" jsonschema_description:"Name of the target entity, as used for the entities"`
	Description string   `json:"relationship_description" jsonschema_description:"Explanation as to why the source entity and the target entity are related to each other"`
	Keywords    []string `json:"relationship_keywords" jsonschema_description:"High level keywords summarizing the nature of the relationship"`
	Strength    float64  `json:"relationship_strength" jsonschema_description:"Numeric score between 0 and 10 indicating the strength of the relationship"`
}

// JSONExtraction is the structured output of ExtractJSON.
type JSONExtraction struct {
	Entities      []JSONEntity       `json:"entities" jsonschema_description:"Entities identified in the text"`
	Relationships []JSONRelationship `json:"relationships" jsonschema_description:"Relationships identified in the text"`
	Keywords      []string           `json:"keywords" jsonschema_description:"High level keywords summarizing the main concepts of the text"`
}

// UnmarshalJSON also accepts the keywords under "content_keywords", the name
// the tuple format uses.
func (j *JSONExtraction) UnmarshalJSON(data []byte) error {
	type plain JSONExtraction
	var aux struct {
		plain
		ContentKeywords []string `json:"content_keywords"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*j = JSONExtraction(aux.plain)
	if len(j.Keywords) == 0 {
		j.Keywords = aux.ContentKeywords
	}
	return nil
}

// IsEmpty reports whether neither entities nor relationships were found.
func (j *JSONExtraction) IsEmpty() bool {
	return j == nil || (len(j.Entities) == 0 && len(j.Relationships) == 0)
}

func (j *JSONExtraction) merge(other *JSONExtraction) {
	if other == nil {
		return
	}
	j.Entities = append(j.Entities, other.Entities...)
	j.Relationships = append(j.Relationships, other.Relationships...)
	j.Keywords = common.UnionStrings(j.Keywords, other.Keywords)
}

// ToExtraction converts the structured output into an Extraction with the
// same normalization as ParseCompletion. Relationships without an entity on
// both ends are kept; Prune drops them.
func (j *JSONExtraction) ToExtraction(chunkID string) *common.Extraction {
	if j.IsEmpty() {
		return nil
	}
	x := common.NewExtraction()
	for _, e := range j.Entities {
		name := cleanValue(e.Name)
		if name == "" {
			continue
		}
		typ := strings.ToUpper(cleanValue(e.Type))
		if typ == "" {
			typ = UnknownEntityType
		}
		x.AddNode(common.NewNode(name, typ, cleanValue(e.Description), chunkIDs(chunkID)...))
	}
	for _, r := range j.Relationships {
		source := cleanValue(r.Source)
		target := cleanValue(r.Target)
		if source == "" || target == "" || strings.EqualFold(source, target) {
			continue
		}
		weight := r.Strength
		if weight <= 0 {
			weight = 1.0
		}
		var keywords []string
		for _, k := range r.Keywords {
			keywords = append(keywords, splitKeywords(k)...)
		}
		x.AddEdge(common.NewEdge(
			source,
			target,
			common.DefaultEdgeType,
			cleanValue(r.Description),
			common.UnionStrings(keywords),
			weight,
			chunkIDs(chunkID)...,
		))
	}
	x.Keywords = common.UnionStrings(j.Keywords)
	if x.IsEmpty() {
		return nil
	}
	return x
}

// Extractor asks the model for the entities and relationships of a single
// chunk.
//
// An Extractor should be created using NewExtractor.
type Extractor struct {
	client      ai.GraphAIClient
	entityTypes []string
	delimiters  Delimiters
	maxGleaning int
	maxRetries  int
}

// NewExtractorParams configures an Extractor.
//
// MaxGleaning is the number of follow-up passes that ask the model for
// records it missed; 0 disables gleaning. MaxRetries bounds the attempts per
// completion and defaults to 3.
type NewExtractorParams struct {
	AIClient    ai.GraphAIClient
	EntityTypes []string
	Delimiters  Delimiters
	MaxGleaning int
	MaxRetries  int
}

// NewExtractor returns an extractor.
func NewExtractor(params NewExtractorParams) *Extractor {
	if len(params.EntityTypes) == 0 {
		params.EntityTypes = DefaultEntityTypes
	}
	if params.MaxRetries <= 0 {
		params.MaxRetries = 3
	}
	if params.MaxGleaning < 0 {
		params.MaxGleaning = 0
	}
	return &Extractor{
		client:      params.AIClient,
		entityTypes: params.EntityTypes,
		delimiters:  params.Delimiters.withDefaults(),
		maxGleaning: params.MaxGleaning,
		maxRetries:  params.MaxRetries,
	}
}

func (e *Extractor) types(entityTypes []string) string {
	if len(entityTypes) == 0 {
		entityTypes = e.entityTypes
	}
	upper := make([]string, 0, len(entityTypes))
	for _, t := range entityTypes {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			upper = append(upper, t)
		}
	}
	return strings.Join(upper, ", ")
}

func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	return util.RetryWithContext(ctx, e.maxRetries, func(ctx context.Context) (string, error) {
		return e.client.GenerateCompletion(ctx, prompt)
	})
}

// ExtractChunk runs tuple extraction on one chunk, followed by up to
// MaxGleaning gleaning passes. It returns nil when nothing was extracted.
func (e *Extractor) ExtractChunk(ctx context.Context, chunk common.Chunk, entityTypes []string) (*common.Extraction, error) {
	d := e.delimiters
	prompt := fmt.Sprintf(ai.ExtractTuplePrompt, e.types(entityTypes), d.Tuple, d.Record, d.Completion, chunk.Content)

	completion, err := e.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract chunk %s: %w", chunk.ID, err)
	}
	x := common.NewExtraction()
	x.Merge(ParseCompletion(completion, chunk.ID, d))

	history := completion
	for i := range e.maxGleaning {
		gleaned, err := e.complete(ctx, fmt.Sprintf(ai.GleaningPrompt, prompt, history, d.Tuple, d.Record, d.Completion))
		if err != nil {
			logger.Warn("[Extract] Gleaning failed, keeping previous records", "chunk", chunk.ID, "pass", i+1, "err", err)
			break
		}
		more := ParseCompletion(gleaned, chunk.ID, d)
		if more.IsEmpty() {
			break
		}
		x.Merge(more)
		history += "\n" + gleaned

		if i == e.maxGleaning-1 {
			break
		}
		answer, err := e.complete(ctx, fmt.Sprintf(ai.GleaningCheckPrompt, prompt, history))
		if err != nil || !isYes(answer) {
			break
		}
	}

	if x.IsEmpty() {
		return nil, nil
	}
	return x, nil
}

// ExtractChunkJSON runs the structured JSON extraction on one chunk.
func (e *Extractor) ExtractChunkJSON(ctx context.Context, chunk common.Chunk, entityTypes []string) (*JSONExtraction, error) {
	prompt := fmt.Sprintf(ai.ExtractJSONPrompt, e.types(entityTypes), chunk.Content)

	var res JSONExtraction
	err := util.RetryErrWithContext(ctx, e.maxRetries, func(ctx context.Context) error {
		res = JSONExtraction{}
		return e.client.GenerateCompletionWithFormat(
			ctx,
			"extract_entities_and_relationships",
			"Extract entities, relationships and keywords from a provided text.",
			prompt,
			&res,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("extract chunk %s as json: %w", chunk.ID, err)
	}
	return &res, nil
}

func isYes(answer string) bool {
	answer = strings.ToUpper(strings.Trim(strings.TrimSpace(answer), ".!\"'"))
	return strings.HasPrefix(answer, "YES")
}
