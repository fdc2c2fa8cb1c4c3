package ai

// ExtractTuplePrompt asks for delimited entity and relationship records.
// Arguments: entity types, tuple delimiter, record delimiter, completion
// delimiter, input text.
const ExtractTuplePrompt = `
# Task Context
You are tasked with extracting **structured entity and relationship information** from the provided text. Capture every detail explicitly present in the text, without omission.

# Background Data
- **Entity_types:** [%[1]s]

# Detailed Task Description & Rules
## Entity Extraction
1. Identify all entities of the specified types [%[1]s].
2. For each entity, extract:
    - **entity_name:** the name of the entity, capitalized as in the text.
    - **entity_type:** one of the provided types.
    - **entity_description:** a comprehensive description of the entity's attributes and activities.
3. Format each entity as ("entity"%[2]s<entity_name>%[2]s<entity_type>%[2]s<entity_description>)

## Relationship Extraction
1. From the identified entities, determine all pairs (source_entity, target_entity) that are *clearly related* to each other.
2. For each pair, extract:
    - **source_entity:** name of the source entity, as identified above.
    - **target_entity:** name of the target entity, as identified above.
    - **relationship_description:** explanation of why the entities are related.
    - **relationship_keywords:** one or more high-level keywords summarizing the nature of the relationship, separated by commas.
    - **relationship_strength:** a numeric score between 0 and 10 indicating the strength of the relationship.
3. Format each relationship as ("relationship"%[2]s<source_entity>%[2]s<target_entity>%[2]s<relationship_description>%[2]s<relationship_keywords>%[2]s<relationship_strength>)

## Content Keywords
Identify high-level keywords that summarize the main concepts or themes of the whole text.
Format them as ("content_keywords"%[2]s<high_level_keywords>)

# Output Formatting
Return all entities and relationships as a single list. Use **%[3]s** as the list delimiter.
When finished, output %[4]s

# Examples
Entity_types: [PERSON, LOCATION, EVENT]
Text: Alex moved to Berlin in 2019 to join the orchestra.

("entity"%[2]sAlex%[2]sPERSON%[2]sAlex is a musician who moved to Berlin in 2019 to join the orchestra.)%[3]s
("entity"%[2]sBerlin%[2]sLOCATION%[2]sBerlin is the city Alex moved to in 2019.)%[3]s
("relationship"%[2]sAlex%[2]sBerlin%[2]sAlex moved to Berlin in 2019.%[2]srelocation, career%[2]s8)%[3]s
("content_keywords"%[2]srelocation, music, career)%[4]s

# Immediate Task Description or Request
Entity_types: [%[1]s]
Text:
%[5]s

Output:
`

// GleaningPrompt continues an extraction. Arguments: the original prompt,
// the previous output, the tuple delimiter, record delimiter and completion
// delimiter.
const GleaningPrompt = `
%[1]s
%[2]s

# Follow-up
MANY entities and relationships were missed in the last extraction. Add them below using the same format with %[3]s between fields and %[4]s between records. Do not repeat records you already emitted.
When finished, output %[5]s
`

// GleaningCheckPrompt asks whether another gleaning pass is worthwhile.
// Arguments: the original prompt and everything extracted so far.
const GleaningCheckPrompt = `
%[1]s
%[2]s

# Follow-up
It appears some entities may have still been missed. Answer YES if there are still entities or relationships that need to be added, otherwise answer NO.
Answer with a single word: YES or NO.
`

// ExtractJSONPrompt asks for entities, relationships and keywords as JSON.
// Arguments: entity types, input text.
const ExtractJSONPrompt = `
# Task Context
You are tasked with extracting **structured entity and relationship information** from the provided text.

# Background Data
- **Entity_types:** [%[1]s]

# Detailed Task Description & Rules
- Identify all entities of the specified types. For each entity give its name, its type and a comprehensive description.
- Identify all pairs of clearly related entities. For each relationship give source and target entity names exactly as used for the entities, a description, comma free keywords and a strength between 0 and 10.
- Identify high-level keywords summarizing the main concepts of the whole text.
- Only use information present in the text.

# Immediate Task Description or Request
Text:
%[2]s

# Output Formatting
Return a single JSON object:
{
  "entities": [
    {"entity_name": "string", "entity_type": "string", "entity_description": "string"}
  ],
  "relationships": [
    {"source_entity": "string", "target_entity": "string", "relationship_description": "string", "relationship_keywords": ["string"], "relationship_strength": 1.0}
  ],
  "keywords": ["string"]
}
Always return valid JSON, even if nothing is found (use empty arrays in that case).
`

// SummarizePrompt merges several descriptions of one entity or relationship.
// Arguments: the descriptions, one per line.
const SummarizePrompt = `
# Task Context
You are a highly detail-oriented assistant responsible for creating a complete and comprehensive summary based only on the information provided below.

# Background Data
-- Data --
descriptions:
%s

# Detailed Task Description & Rules
- The input consists of multiple descriptive segments about the same entity or relationship.
- Merge them into one unified description that keeps every relevant detail.
- If there are contradictions, include both versions clearly.
- Use third person at all times and explicitly include entity names to preserve full context.
- The description must be compact: at most %d words.
- Only use the information given. Do not infer, assume, or add external knowledge.

# Output Formatting
- Return plain text only. Do not use markdown, lists, or meta-comments.
- Output only the final description.
`

// KeywordsPrompt derives retrieval keywords from a query. Arguments: query.
const KeywordsPrompt = `
# Task Context
You identify keywords for knowledge graph retrieval.

# Detailed Task Description & Rules
- high_level_keywords: overarching concepts or themes of the query, used to match relationships.
- low_level_keywords: specific entities, names, places or details, used to match entities.
- Use words or short phrases from the query where possible.

# Examples
Query: "How does international trade influence global economic stability?"
{
  "high_level_keywords": ["International trade", "Global economic stability", "Economic impact"],
  "low_level_keywords": ["Trade agreements", "Tariffs", "Currency exchange", "Imports", "Exports"]
}

# Immediate Task Description or Request
Query: "%s"

# Output Formatting
Return a single JSON object with the keys "high_level_keywords" and "low_level_keywords", both arrays of strings.
`
