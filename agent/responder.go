package agent

import (
	"context"
	"fmt"
	"strings"
)

// Responder turns the accumulated pipeline results into a short natural
// language answer. It never fails: when the model is unreachable it falls
// back to a canned summary so the user always gets text.
type Responder struct {
	models         ModelBuilder
	wordLimit      int
	maxPreviewRows int
	log            func(string)
}

// NewResponder creates a responder.
func NewResponder(models ModelBuilder, wordLimit, maxPreviewRows int, log func(string)) *Responder {
	return &Responder{models: models, wordLimit: wordLimit, maxPreviewRows: maxPreviewRows, log: log}
}

// Respond composes the final answer from whatever the pipeline produced.
func (r *Responder) Respond(ctx context.Context, st *PipelineState) string {
	cm, err := r.models.Build(ctx, false)
	if err != nil {
		r.log(fmt.Sprintf("[responder] failed to build chat model: %v", err))
		return fallbackAnswer(st)
	}

	system := fmt.Sprintf(responderSystemPrompt, r.wordLimit)
	resp, err := generate(ctx, cm, system, r.buildContext(st))
	if err != nil {
		r.log(fmt.Sprintf("[responder] model call failed: %v", err))
		return fallbackAnswer(st)
	}
	answer := strings.TrimSpace(resp)
	if answer == "" {
		return fallbackAnswer(st)
	}
	return answer
}

// buildContext assembles the model's view of the run: the question, every
// result table rendered as text, the chart description, and any errors.
func (r *Responder) buildContext(st *PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Question: %s\n", st.Question)

	if st.AnalysisResult != nil {
		b.WriteString("\nAnalysis result:\n")
		b.WriteString(st.AnalysisResult.Render(r.maxPreviewRows))
		b.WriteString("\n")
	}
	if st.SQLResult != nil {
		b.WriteString("\nSQL query:\n")
		b.WriteString(st.SQLQuery)
		b.WriteString("\nSQL result:\n")
		b.WriteString(st.SQLResult.Render(r.maxPreviewRows))
		b.WriteString("\n")
	}
	if st.Chart != nil {
		fmt.Fprintf(&b, "\nA %s chart titled %q was generated for the user.\n", st.Chart.Type, st.Chart.Title)
	}
	if len(st.Errors) > 0 {
		b.WriteString("\nProblems encountered during processing:\n")
		for _, e := range st.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

// fallbackAnswer is used when the responder model itself is unavailable.
func fallbackAnswer(st *PipelineState) string {
	if len(st.Errors) > 0 {
		return fmt.Sprintf("I was unable to fully answer the question. Issues: %s",
			strings.Join(st.Errors, "; "))
	}
	if st.AnalysisResult != nil || st.SQLResult != nil {
		return "The analysis completed. Results are shown in the attached table."
	}
	return "I could not produce an answer for this question."
}
