package media

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TextObservation is one recognized line of label text.
type TextObservation struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TextRecognizer reads text lines from a label photo.
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) ([]TextObservation, error)
}

// LabelAttributes are the fields extracted from a clothing label.
type LabelAttributes struct {
	Brand      string  `json:"brand,omitempty"`
	Size       string  `json:"size,omitempty"`
	Material   string  `json:"material,omitempty"`
	Confidence float64 `json:"confidence"`
}

var sizePattern = regexp.MustCompile(`^(UK|US|EU)?\s?([0-9]{1,2}|[XSML]{1,3})(/([0-9]{1,2}))?$`)

var materialKeywords = []string{"COTTON", "POLYESTER", "LEATHER", "WOOL", "DENIM", "SILK", "LINEN"}

// ExtractAttributes picks brand, size and material out of recognized lines.
// Each field is the first line that qualifies for it, so one line may fill
// several fields. The brand is an all-letter line of at least three letters,
// the size a line shaped like a clothing size and the material a line naming
// a fabric. Confidence is the mean of the observation confidences.
func ExtractAttributes(observations []TextObservation) LabelAttributes {
	var sum float64
	lines := make([]string, 0, len(observations))
	for _, o := range observations {
		sum += o.Confidence
		if line := strings.ToUpper(strings.TrimSpace(o.Text)); line != "" {
			lines = append(lines, line)
		}
	}

	caser := cases.Title(language.English)
	attrs := LabelAttributes{
		Confidence: sum / float64(max(len(observations), 1)),
	}
	if line, ok := firstLine(lines, isBrandLine); ok {
		attrs.Brand = caser.String(line)
	}
	if line, ok := firstLine(lines, sizePattern.MatchString); ok {
		attrs.Size = line
	}
	if line, ok := firstLine(lines, hasMaterialKeyword); ok {
		attrs.Material = caser.String(line)
	}
	return attrs
}

func firstLine(lines []string, match func(string) bool) (string, bool) {
	for _, line := range lines {
		if match(line) {
			return line, true
		}
	}
	return "", false
}

func hasMaterialKeyword(line string) bool {
	for _, kw := range materialKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

func isBrandLine(line string) bool {
	n := 0
	for _, r := range line {
		if !unicode.IsLetter(r) {
			return false
		}
		n++
	}
	return n >= 3
}
