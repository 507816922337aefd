package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/outline"
	"github.com/24kchengYe/Intelligent-Engineering-Bid-Review-and-Generation/internal/textproc"
)

// Sampling temperatures per operation. Extraction runs cold so repeated
// analyses of the same file stay close; prose generation runs warmer.
const (
	analysisTemperature = 0.2
	criteriaTemperature = 0.4
	outlineTemperature  = 0.3
	sectionTemperature  = 0.6
)

const maxOutputTokens = 8000

// Service orchestrates the analysis and generation calls on top of a Client.
type Service struct {
	client       Client
	tokenCeiling int
}

func NewService(client Client, tokenCeiling int) *Service {
	return &Service{client: client, tokenCeiling: tokenCeiling}
}

// AnalyzeDocuments produces the seven-category structured report from the
// per-category extracted contents. Input beyond the token ceiling is split
// into per-category batches; each batch is analyzed separately and the
// partial reports are consolidated in a final call. The report is returned
// whole or not at all: any failed batch fails the whole analysis.
func (s *Service) AnalyzeDocuments(ctx context.Context, categories []string, contents map[string]string) (string, error) {
	batches := []map[string]string{contents}
	if s.tokenCeiling > 0 {
		if split := textproc.SplitBatches(categories, contents, s.tokenCeiling); len(split) > 0 {
			batches = split
		}
	}

	if len(batches) == 1 {
		return s.analyzeBatch(ctx, categories, batches[0])
	}

	reports := make([]string, 0, len(batches))
	for i, batch := range batches {
		report, err := s.analyzeBatch(ctx, categories, batch)
		if err != nil {
			return "", fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
		}
		reports = append(reports, report)
	}
	return s.mergeReports(ctx, reports)
}

func (s *Service) analyzeBatch(ctx context.Context, categories []string, contents map[string]string) (string, error) {
	var b strings.Builder
	b.WriteString(analysisPromptHeader)
	for _, category := range categories {
		content := contents[category]
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n【%s】\n%s\n", category, content)
	}

	prompt := b.String()
	if s.tokenCeiling > 0 && textproc.EstimateTokens(prompt) > s.tokenCeiling {
		prompt = textproc.Compress(prompt, s.tokenCeiling)
	}

	report, err := s.client.Generate(ctx, Request{
		System:      analysisSystemPrompt,
		Prompt:      prompt,
		Temperature: analysisTemperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("structured analysis: %w", err)
	}
	return report, nil
}

// mergeReports consolidates per-batch partial reports into one report in the
// same seven-category shape.
func (s *Service) mergeReports(ctx context.Context, reports []string) (string, error) {
	var b strings.Builder
	b.WriteString(mergePromptHeader)
	for i, report := range reports {
		fmt.Fprintf(&b, "\n=== 部分报告 %d ===\n%s\n", i+1, report)
	}

	merged, err := s.client.Generate(ctx, Request{
		System:      analysisSystemPrompt,
		Prompt:      b.String(),
		Temperature: analysisTemperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("report consolidation: %w", err)
	}
	return merged, nil
}

// ExtractCriteria derives the evaluation-criteria document from a structured
// analysis report.
func (s *Service) ExtractCriteria(ctx context.Context, analysisReport string) (string, error) {
	criteria, err := s.client.Generate(ctx, Request{
		System:      criteriaSystemPrompt,
		Prompt:      criteriaPromptHeader + analysisReport,
		Temperature: criteriaTemperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("criteria extraction: %w", err)
	}
	return criteria, nil
}

// How much of the analysis report feeds outline and section prompts.
const (
	outlineContextChars = 5000
	sectionContextChars = 3000
)

// GenerateOutline asks for the technical-proposal outline as strict JSON.
// A response that fails to parse is preserved verbatim as an unstructured
// outline rather than discarded.
func (s *Service) GenerateOutline(ctx context.Context, analysisReport, criteria string) (outline.Outline, error) {
	requirements := truncateRunes(analysisReport, outlineContextChars)
	response, err := s.client.Generate(ctx, Request{
		System:      outlineSystemPrompt,
		Prompt:      fmt.Sprintf(outlinePromptTemplate, requirements, criteria),
		Temperature: outlineTemperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return outline.Outline{}, fmt.Errorf("outline generation: %w", err)
	}
	return outline.Parse(response), nil
}

// GenerateSection writes the prose for one outline section.
func (s *Service) GenerateSection(ctx context.Context, section outline.FlatSection, analysisReport, criteria string) (string, error) {
	projectInfo := truncateRunes(analysisReport, sectionContextChars)
	text, err := s.client.Generate(ctx, Request{
		System: sectionSystemPrompt,
		Prompt: fmt.Sprintf(sectionPromptTemplate,
			section.Title, section.WordCount, section.Description, section.Title,
			projectInfo, criteria),
		Temperature: sectionTemperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("section %q: %w", section.Title, err)
	}
	return text, nil
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
