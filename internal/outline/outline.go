// Package outline models the generated technical-proposal structure: an
// ordered tree of sections, each with a suggested length and a short
// requirement description.
package outline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Section is one node of the proposal outline.
type Section struct {
	Title       string    `json:"title"`
	WordCount   int       `json:"word_count,omitempty"`
	Description string    `json:"description,omitempty"`
	Children    []Section `json:"children,omitempty"`
}

// Outline is the full proposal structure. When the model response could not
// be parsed as JSON, Raw holds the original text and Unstructured is set;
// such outlines cannot drive per-section generation.
type Outline struct {
	Sections     []Section `json:"outline,omitempty"`
	Raw          string    `json:"raw,omitempty"`
	Unstructured bool      `json:"unstructured,omitempty"`
}

// Parse decodes a model response into an Outline. The response may wrap the
// JSON in a markdown code fence; that fence is stripped first. A response
// that is not valid JSON is kept verbatim as an unstructured outline.
func Parse(response string) Outline {
	text := stripFence(response)

	var parsed struct {
		Outline []Section `json:"outline"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil && len(parsed.Outline) > 0 {
		return Outline{Sections: parsed.Outline}
	}

	// Some models return the bare array.
	var sections []Section
	if err := json.Unmarshal([]byte(text), &sections); err == nil && len(sections) > 0 {
		return Outline{Sections: sections}
	}

	return Outline{Raw: response, Unstructured: true}
}

func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// FlatSection is a generation-eligible section with its parent-qualified
// title, in document order.
type FlatSection struct {
	Title       string
	WordCount   int
	Description string
}

// Flatten walks the tree in order and returns every section carrying a word
// count, with titles qualified by their ancestors.
func (o Outline) Flatten() []FlatSection {
	if o.Unstructured {
		return nil
	}
	var flat []FlatSection
	for _, s := range o.Sections {
		flattenInto(s, "", &flat)
	}
	return flat
}

func flattenInto(s Section, parent string, flat *[]FlatSection) {
	full := s.Title
	if parent != "" {
		full = parent + " " + s.Title
	}
	if s.WordCount > 0 {
		*flat = append(*flat, FlatSection{
			Title:       full,
			WordCount:   s.WordCount,
			Description: s.Description,
		})
	}
	for _, child := range s.Children {
		flattenInto(child, full, flat)
	}
}

// Find returns the flattened section with the given qualified title.
func (o Outline) Find(title string) (FlatSection, error) {
	for _, s := range o.Flatten() {
		if s.Title == title {
			return s, nil
		}
	}
	return FlatSection{}, fmt.Errorf("outline has no section %q", title)
}
