package standards

import "regexp"

// Regulatory tiers for Chinese engineering standards.
const (
	CategoryNational = "国家标准"
	CategoryIndustry = "行业标准"
	CategoryLocal    = "地方标准"
	CategoryOther    = "其他"
)

// Code patterns in priority order. GB/T must match before bare GB so the
// recommended-standard prefix is not truncated.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`GB/T\s*\d+(?:\.\d+)?(?:-\d{4})?`),
	regexp.MustCompile(`GB\s*\d+(?:\.\d+)?(?:-\d{4})?`),
	regexp.MustCompile(`JGJ(?:/T)?\s*\d+(?:\.\d+)?(?:-\d{4})?`),
	regexp.MustCompile(`CJJ(?:/T)?\s*\d+(?:\.\d+)?(?:-\d{4})?`),
	regexp.MustCompile(`JTG\s*[A-Z]?\d+(?:\.\d+)?(?:-\d{4})?`),
	regexp.MustCompile(`DB\d{2}(?:/T)?\s*\d+(?:\.\d+)?(?:-\d{4})?`),
}

var spacePattern = regexp.MustCompile(`\s+`)

// ExtractCode finds the first standard code in text, checking the file
// name or leading content of a standard document. Returns "" when no
// recognizable code is present.
func ExtractCode(text string) string {
	for _, p := range codePatterns {
		if match := p.FindString(text); match != "" {
			return spacePattern.ReplaceAllString(match, " ")
		}
	}
	return ""
}

var (
	nationalPattern = regexp.MustCompile(`^GB(/T)?\s*\d`)
	industryPattern = regexp.MustCompile(`^(JGJ|CJJ|JTG)`)
	localPattern    = regexp.MustCompile(`^DB\d{2}`)
)

// Categorize maps a standard code to its regulatory tier.
func Categorize(code string) string {
	switch {
	case code == "":
		return CategoryOther
	case nationalPattern.MatchString(code):
		return CategoryNational
	case industryPattern.MatchString(code):
		return CategoryIndustry
	case localPattern.MatchString(code):
		return CategoryLocal
	default:
		return CategoryOther
	}
}
