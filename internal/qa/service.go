package qa

import (
	"context"
	"fmt"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/muyusufspa/spgpt/internal/ollama"
	"go.uber.org/zap"
)

const generalSystemPrompt = "You are a helpful AI assistant. Format your responses using Markdown for readability. Use headings, lists, bold text, etc., where appropriate."

const docQATemplate = `You are a specialized AI assistant for answering questions based on a provided document. Your task is to be precise and stick strictly to the text given to you.

**Instructions:**
1.  Read the 'DOCUMENT CONTENT' carefully.
2.  Analyze the 'USER'S QUESTION'.
3.  Formulate your answer based **ONLY** on the information found within the document. Do not infer, guess, or use any external knowledge.
4.  If the document does not contain the information needed to answer the question, you **must** respond with the exact phrase: "The information to answer this question is not available in the provided document."
5.  Format your answer using Markdown (e.g., lists, bold text) for clarity, but only if it helps in presenting the information from the document.

---
**DOCUMENT CONTENT:**
%s
---

**USER'S QUESTION:**
%s
---

**YOUR ANSWER:**
`

// ChatClient issues conversational completions.
type ChatClient interface {
	Chat(ctx context.Context, messages []ollama.Message) (string, error)
}

// TextReader converts an uploaded document into plain text.
type TextReader interface {
	ExtractText(file *entity.UploadedFile) (string, error)
}

// Service answers free-form questions, optionally grounded on an uploaded
// document.
type Service struct {
	client ChatClient
	reader TextReader
	logger *zap.Logger
}

// NewService creates a Q&A service.
func NewService(client ChatClient, reader TextReader, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		reader: reader,
		logger: logger,
	}
}

// Answer responds to a general question with no document context.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	content, err := s.client.Chat(ctx, []ollama.Message{
		{Role: "system", Content: generalSystemPrompt},
		{Role: "user", Content: question},
	})
	if err != nil {
		return "", fmt.Errorf("AI processing failed: %w", err)
	}
	if content == "" {
		return "Sorry, I couldn't get a response.", nil
	}
	return content, nil
}

// AnswerFromDocument responds to a question using only the document's text.
// The model is instructed to refuse when the document lacks the answer.
func (s *Service) AnswerFromDocument(ctx context.Context, question string, file *entity.UploadedFile) (string, error) {
	text, err := s.reader.ExtractText(file)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(docQATemplate, text, question)
	content, err := s.client.Chat(ctx, []ollama.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("AI processing failed: %w", err)
	}
	if content == "" {
		return "Sorry, I couldn't get a response based on the document.", nil
	}
	return content, nil
}
