package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"resumeboost/internal/ai"
	"resumeboost/internal/extract"
	"resumeboost/internal/textutil"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file] [job-description-file]",
	Short: "Analyze a resume against a job description offline",
	Long: `Run the AI analysis once from the command line, without the HTTP
server, database, or object storage. The resume file may be PDF or DOCX;
the job description file is plain text. The analysis result is printed
as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

var analyzeOutputFile string

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutputFile, "output", "o", "", "Output file path (default: stdout)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	resumeData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read resume file: %w", err)
	}

	jobData, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read job description file: %w", err)
	}

	resumeText, err := extract.Text(resumeData, "", args[0])
	if err != nil {
		return fmt.Errorf("failed to extract resume text: %w", err)
	}

	resumeText = textutil.Normalize(resumeText, cfg.App.MaxResumeChars)
	jobDescription := textutil.Normalize(string(jobData), cfg.App.MaxJobDescriptionChars)

	if len(resumeText) < cfg.App.MinExtractableChars {
		return fmt.Errorf("resume yielded only %d extractable characters (minimum %d)",
			len(resumeText), cfg.App.MinExtractableChars)
	}

	logger.Info("Starting resume analysis",
		"resume_chars", len(resumeText),
		"job_chars", len(jobDescription))

	aiService, err := ai.NewService(cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	result, usage, err := aiService.AnalyzeResume(cmd.Context(), ai.AnalyzeInput{
		ResumeText:     textutil.BoundToTokens(resumeText, cfg.App.MaxResumeTokens),
		JobDescription: textutil.BoundToTokens(jobDescription, cfg.App.MaxJobTokens),
	})
	if err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}

	if usage != nil {
		logger.Info("Resume analysis completed",
			"ats_score", result.ATSScore,
			"prompt_tokens", usage.InputTokens,
			"completion_tokens", usage.OutputTokens)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis result: %w", err)
	}

	if analyzeOutputFile != "" {
		if err := os.WriteFile(analyzeOutputFile, append(encoded, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Info("Analysis written", "path", analyzeOutputFile)
		return nil
	}

	fmt.Println(string(encoded))
	return nil
}
