package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/muyusufspa/spgpt/internal/ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChat struct {
	content  string
	err      error
	messages []ollama.Message
}

func (f *fakeChat) Chat(ctx context.Context, messages []ollama.Message) (string, error) {
	f.messages = messages
	return f.content, f.err
}

type fakeReader struct {
	text string
	err  error
}

func (f *fakeReader) ExtractText(file *entity.UploadedFile) (string, error) {
	return f.text, f.err
}

func TestService_AnswerUsesSystemPrompt(t *testing.T) {
	chat := &fakeChat{content: "**VAT** is 15% in Saudi Arabia."}
	svc := NewService(chat, &fakeReader{}, zap.NewNop())

	answer, err := svc.Answer(context.Background(), "What is the VAT rate?")
	require.NoError(t, err)
	assert.Equal(t, "**VAT** is 15% in Saudi Arabia.", answer)

	require.Len(t, chat.messages, 2)
	assert.Equal(t, "system", chat.messages[0].Role)
	assert.Contains(t, chat.messages[0].Content, "Markdown")
	assert.Equal(t, "What is the VAT rate?", chat.messages[1].Content)
}

func TestService_AnswerEmptyContent(t *testing.T) {
	svc := NewService(&fakeChat{content: ""}, &fakeReader{}, zap.NewNop())

	answer, err := svc.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I couldn't get a response.", answer)
}

func TestService_AnswerTransportError(t *testing.T) {
	svc := NewService(&fakeChat{err: errors.New("down")}, &fakeReader{}, zap.NewNop())

	_, err := svc.Answer(context.Background(), "q")
	assert.ErrorContains(t, err, "AI processing failed")
}

func TestService_AnswerFromDocumentEmbedsText(t *testing.T) {
	chat := &fakeChat{content: "The invoice total is 500 SAR."}
	reader := &fakeReader{text: "Invoice 42\nTotal: 500 SAR"}
	svc := NewService(chat, reader, zap.NewNop())

	file := &entity.UploadedFile{Filename: "invoice.pdf", Mimetype: "application/pdf"}
	answer, err := svc.AnswerFromDocument(context.Background(), "What is the total?", file)
	require.NoError(t, err)
	assert.Equal(t, "The invoice total is 500 SAR.", answer)

	require.Len(t, chat.messages, 1)
	prompt := chat.messages[0].Content
	assert.Contains(t, prompt, "Invoice 42")
	assert.Contains(t, prompt, "What is the total?")
	assert.Contains(t, prompt, "not available in the provided document")
}

func TestService_AnswerFromDocumentReaderError(t *testing.T) {
	readerErr := errors.New("unsupported file type")
	svc := NewService(&fakeChat{}, &fakeReader{err: readerErr}, zap.NewNop())

	_, err := svc.AnswerFromDocument(context.Background(), "q", &entity.UploadedFile{})
	assert.ErrorIs(t, err, readerErr)
}
