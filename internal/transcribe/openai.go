package transcribe

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures the Whisper transcription endpoint.
type OpenAIOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

// OpenAIService transcribes through the OpenAI audio transcription API or any
// server implementing the same wire format.
type OpenAIService struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIService builds a Whisper client. Empty BaseURL targets OpenAI.
func NewOpenAIService(opts OpenAIOptions) *OpenAIService {
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIService{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: strings.TrimSpace(opts.Language),
	}
}

// Transcribe uploads the file and returns the recognized text untouched.
func (s *OpenAIService) Transcribe(ctx context.Context, path string) (string, error) {
	response, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.model,
		FilePath: path,
		Language: s.language,
	})
	if err != nil {
		return "", err
	}
	return response.Text, nil
}
