// Package domain provides core business rules for the qualification bounded
// context: questionnaire scoring, tier classification and outreach cadence.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerValue is a single questionnaire answer. It is either one string
// (a choice or free text) or a list of selected choices.
type AnswerValue struct {
	text     string
	selected []string
	isList   bool
}

// Text builds a single-value answer.
func Text(value string) AnswerValue {
	return AnswerValue{text: value}
}

// Choices builds a multi-select answer.
func Choices(values ...string) AnswerValue {
	return AnswerValue{selected: append([]string(nil), values...), isList: true}
}

// IsList reports whether the answer was given as a list.
func (a AnswerValue) IsList() bool { return a.isList }

// String returns the scalar value; empty for list answers.
func (a AnswerValue) String() string { return a.text }

// Values returns the answer as a list. A scalar answer becomes a one-element list.
func (a AnswerValue) Values() []string {
	if a.isList {
		return append([]string(nil), a.selected...)
	}
	return []string{a.text}
}

// IsBlank reports whether the answer carries no usable content.
func (a AnswerValue) IsBlank() bool {
	if !a.isList {
		return strings.TrimSpace(a.text) == ""
	}
	for _, v := range a.selected {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.isList {
		if a.selected == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.selected)
	}
	return json.Marshal(a.text)
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty answer")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = Text(s)
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("multi-select answers must be a list of strings: %w", err)
		}
		*a = Choices(list...)
		return nil
	default:
		return fmt.Errorf("answer must be a string or a list of strings")
	}
}

// Answers maps question IDs to answers. Once submitted it is stored verbatim.
type Answers map[string]AnswerValue
