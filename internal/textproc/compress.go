package textproc

import (
	"regexp"
	"strings"
)

const elision = "...(omitted)..."

// Line priority tiers. Lower is kept first.
const (
	tierHeading = iota
	tierMandatory
	tierProse
)

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#{1,6}\s+`),
	regexp.MustCompile(`^第[一二三四五六七八九十百\d]+[章节条]`),
	regexp.MustCompile(`^\d+\.\d+`),
	regexp.MustCompile(`^【.*】`),
	regexp.MustCompile(`^==`),
}

var mandatoryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`不得|必须|应当|禁止|要求|否决|废标`),
	regexp.MustCompile(`[≥≤><]`),
	regexp.MustCompile(`(?i)\b(GB|JGJ|CJJ|JTG|DB)[/T]?\s*\d+`),
	regexp.MustCompile(`\d+%|\d+元|\d+万元|\d+天|\d+日|\d+年|\d+个月`),
}

func lineTier(line string) int {
	for _, p := range headingPatterns {
		if p.MatchString(line) {
			return tierHeading
		}
	}
	for _, p := range mandatoryPatterns {
		if p.MatchString(line) {
			return tierMandatory
		}
	}
	return tierProse
}

// Compress reduces text to fit maxTokens while preserving headings,
// mandatory-requirement sentences, numeric constraints and standard-code
// references ahead of descriptive prose. Kept lines stay in document order.
// The same input and ceiling always produce byte-identical output.
func Compress(text string, maxTokens int) string {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}

	lines := strings.Split(text, "\n")
	type scored struct {
		index  int
		tier   int
		tokens int
	}

	candidates := make([]scored, 0, len(lines))
	seen := make(map[string]bool)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		tier := lineTier(trimmed)
		// Near-duplicate prose collapses to its first occurrence.
		key := trimmed
		if len([]rune(key)) > 50 {
			key = string([]rune(key)[:50])
		}
		if tier == tierProse && seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, scored{index: i, tier: tier, tokens: EstimateTokens(line)})
	}

	budget := maxTokens - EstimateTokens(elision)
	keep := make(map[int]bool, len(candidates))
	used := 0
	for tier := tierHeading; tier <= tierProse; tier++ {
		for _, c := range candidates {
			if c.tier != tier {
				continue
			}
			// +1 covers the joining newline.
			if used+c.tokens+1 > budget {
				continue
			}
			keep[c.index] = true
			used += c.tokens + 1
		}
	}

	var out []string
	dropped := false
	for i, line := range lines {
		if keep[i] {
			out = append(out, line)
		} else if strings.TrimSpace(line) != "" {
			dropped = true
		}
	}
	if dropped {
		out = append(out, elision)
	}
	return strings.Join(out, "\n")
}

// SplitBatches groups per-category contents into batches no larger than
// maxTokens each, compressing any single oversized entry first. Categories
// are processed in the order given, so batching is deterministic.
func SplitBatches(categories []string, contents map[string]string, maxTokens int) []map[string]string {
	var batches []map[string]string
	current := map[string]string{}
	currentTokens := 0

	for _, category := range categories {
		content, ok := contents[category]
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}

		tokens := EstimateTokens(content)
		if limit := maxTokens * 4 / 5; tokens > limit {
			content = Compress(content, limit)
			tokens = EstimateTokens(content)
		}

		if currentTokens+tokens > maxTokens && len(current) > 0 {
			batches = append(batches, current)
			current = map[string]string{}
			currentTokens = 0
		}

		current[category] = content
		currentTokens += tokens
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
