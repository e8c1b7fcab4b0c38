package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// jsonSchema is the on-disk JSON form of a schema.
type jsonSchema struct {
	RuleID     string   `json:"rule-id"`
	PktName    string   `json:"pkt-name"`
	AllOf      []string `json:"all-of"`
	AtLeastNum int      `json:"at-least-num"`
	AtLeast    []string `json:"at-least"`
}

// FromJSON decodes a schema from its JSON representation.
func FromJSON(data []byte) (MultipartySchema, error) {
	raw := jsonSchema{}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return MultipartySchema{}, xerrors.Errorf("couldn't parse json: %v", err)
	}

	return buildSchema(raw)
}

// FromJSONFile decodes a schema from a JSON file.
func FromJSONFile(path string) (MultipartySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MultipartySchema{}, xerrors.Errorf("couldn't read file: %v", err)
	}

	return FromJSON(data)
}

// FromINFO decodes a schema from its INFO representation:
//
//	rule-id "rule"
//	pkt-name "/a/b/_"
//	all-of
//	{
//	  _ "2x/A/_"
//	}
//	at-least-num 1
//	at-least
//	{
//	  _ "/B/_"
//	}
func FromINFO(text string) (MultipartySchema, error) {
	raw := jsonSchema{}

	lines := strings.Split(text, "\n")
	section := ""
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		switch {
		case line == "{" || line == "}":
			if line == "}" {
				section = ""
			}
		case section != "":
			value := infoValue(strings.TrimPrefix(line, "_"))
			if section == "all-of" {
				raw.AllOf = append(raw.AllOf, value)
			} else {
				raw.AtLeast = append(raw.AtLeast, value)
			}
		case line == "all-of" || line == "at-least":
			section = line
		default:
			key, value, ok := strings.Cut(line, " ")
			if !ok {
				return MultipartySchema{}, xerrors.Errorf("malformed line '%s'", line)
			}

			switch key {
			case "rule-id":
				raw.RuleID = infoValue(value)
			case "pkt-name":
				raw.PktName = infoValue(value)
			case "at-least-num":
				num, err := strconv.Atoi(infoValue(value))
				if err != nil {
					return MultipartySchema{}, xerrors.Errorf("invalid at-least-num: %v", err)
				}
				raw.AtLeastNum = num
			default:
				return MultipartySchema{}, xerrors.Errorf("unknown key '%s'", key)
			}
		}
	}

	return buildSchema(raw)
}

// FromINFOFile decodes a schema from an INFO file.
func FromINFOFile(path string) (MultipartySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MultipartySchema{}, xerrors.Errorf("couldn't read file: %v", err)
	}

	return FromINFO(string(data))
}

// ToINFO serializes the schema to its INFO representation. Parsing the
// result yields a schema equivalent under PassSchema.
func (s MultipartySchema) ToINFO() string {
	sb := strings.Builder{}

	fmt.Fprintf(&sb, "rule-id \"%s\"\n", s.RuleID)
	fmt.Fprintf(&sb, "pkt-name \"%s\"\n", s.PktName)
	sb.WriteString("all-of\n{\n")
	for _, pattern := range s.Signers {
		fmt.Fprintf(&sb, "  _ \"%s\"\n", pattern)
	}
	sb.WriteString("}\n")
	fmt.Fprintf(&sb, "at-least-num %d\n", s.MinOptionalSigners)
	sb.WriteString("at-least\n{\n")
	for _, pattern := range s.OptionalSigners {
		fmt.Fprintf(&sb, "  _ \"%s\"\n", pattern)
	}
	sb.WriteString("}\n")

	return sb.String()
}

func infoValue(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), "\"")
}

func buildSchema(raw jsonSchema) (MultipartySchema, error) {
	out := MultipartySchema{
		RuleID:             raw.RuleID,
		MinOptionalSigners: raw.AtLeastNum,
	}

	pkt, err := ParsePattern(raw.PktName)
	if err != nil {
		return MultipartySchema{}, xerrors.Errorf("couldn't parse pkt-name: %v", err)
	}
	out.PktName = pkt

	for _, str := range raw.AllOf {
		pattern, err := ParsePattern(str)
		if err != nil {
			return MultipartySchema{}, xerrors.Errorf("couldn't parse required pattern: %v", err)
		}

		out.Signers = append(out.Signers, pattern)
	}

	for _, str := range raw.AtLeast {
		pattern, err := ParsePattern(str)
		if err != nil {
			return MultipartySchema{}, xerrors.Errorf("couldn't parse optional pattern: %v", err)
		}

		out.OptionalSigners = append(out.OptionalSigners, pattern)
	}

	if out.MinOptionalSigners < 0 {
		return MultipartySchema{}, xerrors.New("at-least-num must not be negative")
	}

	return out, nil
}
