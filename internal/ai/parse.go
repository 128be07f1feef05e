package ai

import (
	"encoding/json"
	"strings"

	"resumeboost/internal/errors"
	"resumeboost/internal/types"
)

// rawAnalysis mirrors the response schema with lenient field types so a
// model that returns the score as a float or string still parses.
type rawAnalysis struct {
	ATSScore            json.Number `json:"ats_score"`
	Summary             string      `json:"summary"`
	MissingKeywords     []string    `json:"missing_keywords"`
	Recommendations     []string    `json:"recommendations"`
	OptimizedResumeText string      `json:"optimized_resume_text"`
	CoverLetter         string      `json:"cover_letter"`
}

// parseAnalysis decodes and validates the model's JSON output. When the
// whole payload is not valid JSON it retries on the substring between the
// first '{' and the last '}', which strips markdown fences and prose the
// model sometimes wraps around the object.
func parseAnalysis(text string) (types.ResumeAnalysis, error) {
	var raw rawAnalysis
	if err := unmarshalStrict(text, &raw); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return types.ResumeAnalysis{}, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
				"AI response is not valid JSON", err)
		}
		if err := unmarshalStrict(text[start:end+1], &raw); err != nil {
			return types.ResumeAnalysis{}, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
				"AI response is not valid JSON", err)
		}
	}
	return validateAnalysis(raw)
}

func unmarshalStrict(text string, out *rawAnalysis) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	return dec.Decode(out)
}

func validateAnalysis(raw rawAnalysis) (types.ResumeAnalysis, error) {
	if strings.TrimSpace(raw.OptimizedResumeText) == "" {
		return types.ResumeAnalysis{}, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
			"AI response is missing optimized_resume_text", nil)
	}
	if strings.TrimSpace(raw.CoverLetter) == "" {
		return types.ResumeAnalysis{}, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
			"AI response is missing cover_letter", nil)
	}

	score, err := coerceScore(raw.ATSScore)
	if err != nil {
		return types.ResumeAnalysis{}, err
	}

	analysis := types.ResumeAnalysis{
		ATSScore:            score,
		Summary:             raw.Summary,
		MissingKeywords:     raw.MissingKeywords,
		Recommendations:     raw.Recommendations,
		OptimizedResumeText: raw.OptimizedResumeText,
		CoverLetter:         raw.CoverLetter,
	}
	if analysis.MissingKeywords == nil {
		analysis.MissingKeywords = []string{}
	}
	if analysis.Recommendations == nil {
		analysis.Recommendations = []string{}
	}
	return analysis, nil
}

// coerceScore accepts integer and float renditions of the score and
// rejects anything outside [0, 100].
func coerceScore(n json.Number) (int, error) {
	if n.String() == "" {
		return 0, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
			"AI response is missing ats_score", nil)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
			"AI response ats_score is not numeric", err)
	}
	if f < 0 || f > 100 {
		return 0, errors.NewAIError(errors.ErrCodeAIResponseInvalid,
			"AI response ats_score is outside the 0-100 range", nil)
	}
	return int(f), nil
}
