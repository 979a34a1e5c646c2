package nipr

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentspace/models"

	"github.com/google/generative-ai-go/genai"
)

// DocumentReviewer extracts carrier appointments from an uploaded license
// report when the agent cannot use the automated NIPR path.
type DocumentReviewer interface {
	ExtractCarriers(ctx context.Context, documentPath string) (*models.VerificationResult, error)
}

// GeminiReviewer reads the uploaded report with Gemini, the same extraction
// backend the commission statement recognizer uses.
type GeminiReviewer struct {
	Model *genai.GenerativeModel
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func (r *GeminiReviewer) ExtractCarriers(ctx context.Context, documentPath string) (*models.VerificationResult, error) {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, fmt.Errorf("reading license report: %w", err)
	}

	prompt := []genai.Part{
		genai.Text("You are an insurance licensing specialist. The attached file is a producer's " +
			"NIPR PDB report or carrier appointment letter. Extract the producer's NPN and the list of " +
			"carrier names the producer is appointed with. Respond with JSON only, using this exact structure:\n" +
			`{"npn": "", "carriers": []}`),
		&genai.Blob{MIMEType: mimeTypeFor(documentPath), Data: data},
	}

	resp, err := r.Model.GenerateContent(ctx, prompt...)
	if err != nil {
		return nil, fmt.Errorf("document extraction failed: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("document extraction returned no result")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("document extraction returned a non-text part")
	}

	var result models.VerificationResult
	cleanJSON := strings.Trim(string(text), "```json \n")
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		return nil, fmt.Errorf("document extraction returned malformed JSON: %w", err)
	}
	return &result, nil
}
