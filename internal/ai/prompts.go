package ai

import "fmt"

// DefaultSystemPrompt is the system instruction for resume analysis.
const DefaultSystemPrompt = `You are an expert resume writer, career coach and ATS (Applicant Tracking System) analyst with a strict commitment to honesty and accuracy. Your core principles are:

- NEVER invent, exaggerate, or misattribute any skills or experiences
- Every piece of information in the optimized resume must be directly traceable to the original
- Maintain professional integrity while optimizing for relevance to the target role
- Provide honest, data-driven scoring and recommendations

Your expertise includes:
- Resume optimization and keyword alignment
- ATS compatibility analysis and scoring
- Cover letter writing in a professional and engaging tone
- HR best practices and industry standards`

// DefaultUserPromptTemplate carries the documents. Placeholders are the
// resume text and the job description, in that order.
const DefaultUserPromptTemplate = `Analyze the following resume against the job description.

Return a JSON object with:
- "ats_score": an integer from 0 to 100 rating how well the resume matches the job description for automated screening
- "summary": a short assessment of the match
- "missing_keywords": keywords and skills from the job description absent from the resume
- "recommendations": concrete improvements the candidate should make
- "optimized_resume_text": the full resume rewritten to best match the job description without inventing anything
- "cover_letter": a tailored cover letter for this application

RESUME:
%s

JOB DESCRIPTION:
%s`

// buildUserPrompt formats the user prompt with the candidate documents.
func buildUserPrompt(resumeText, jobDescription string) string {
	return fmt.Sprintf(DefaultUserPromptTemplate, resumeText, jobDescription)
}
