package ai

import (
	"reflect"
	"testing"
)

type entityRecord struct {
	Name string `json:"entity_name"`
	Type string `json:"entity_type,omitempty"`
}

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  entityRecord
	}{
		{
			name:  "valid json object",
			input: `{"entity_name":"HAWAII"}`,
			want:  entityRecord{Name: "HAWAII"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{entity_name: 'HAWAII'}`,
			want:  entityRecord{Name: "HAWAII"},
		},
		{
			name:  "trailing comma",
			input: `{"entity_name":"HAWAII","entity_type":"LOCATION",}`,
			want:  entityRecord{Name: "HAWAII", Type: "LOCATION"},
		},
		{
			name:  "missing endbracket",
			input: `{"entity_name":"HAWAII`,
			want:  entityRecord{Name: "HAWAII"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{entity_name: 'HAWAII'}"`,
			want:  entityRecord{Name: "HAWAII"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"entity_name\": \"HAWAII\"\n}\n",
			want:  entityRecord{Name: "HAWAII"},
		},
		{
			name:  "markdown code fence",
			input: "```json\n{\"entity_name\": \"HAWAII\", \"entity_type\": \"LOCATION\"}\n```",
			want:  entityRecord{Name: "HAWAII", Type: "LOCATION"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got entityRecord
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	input := `[{entity_name:'A'},{entity_name:'B',}]`
	var got []entityRecord
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	want := []entityRecord{{Name: "A"}, {Name: "B"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got entityRecord
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestUnmarshalFlexible_Keywords(t *testing.T) {
	type keywords struct {
		HighLevel []string `json:"high_level_keywords"`
		LowLevel  []string `json:"low_level_keywords"`
	}

	input := `"{\n  \"high_level_keywords\": [\"Elections\"],\n  \"low_level_keywords\": [\"Barack Obama\", \"2008\"]\n}\n"`
	var got keywords
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	want := keywords{HighLevel: []string{"Elections"}, LowLevel: []string{"Barack Obama", "2008"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, want)
	}
}

func TestGenerateSchemaDisallowsAdditionalProperties(t *testing.T) {
	schema := GenerateSchema(&entityRecord{})
	if schema == nil {
		t.Fatalf("GenerateSchema() returned nil")
	}
}
