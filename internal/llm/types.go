// Package llm is a client for OpenAI-compatible chat, vision and embedding services.
package llm

import (
	"encoding/base64"
	"encoding/json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is an inline image attached to a user message.
type Image struct {
	MIME string // e.g. image/png
	Data []byte
}

// DataURI returns the base64 data URI form of the image.
func (i Image) DataURI() string {
	mime := i.MIME
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Message is one chat turn. Messages with images are sent as content parts.
type Message struct {
	Role   string
	Text   string
	Images []Image
}

// System returns a system message.
func System(text string) Message { return Message{Role: RoleSystem, Text: text} }

// User returns a user message.
func User(text string, images ...Image) Message {
	return Message{Role: RoleUser, Text: text, Images: images}
}

// Assistant returns an assistant message.
func Assistant(text string) Message { return Message{Role: RoleAssistant, Text: text} }

// Request is a single chat completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	JSONMode    bool // ask the service for a JSON object response
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// MarshalJSON encodes text-only messages with string content and
// image messages with an array of content parts.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Images) == 0 {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Text})
	}

	parts := make([]contentPart, 0, len(m.Images)+1)
	for _, img := range m.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img.DataURI()}})
	}
	if m.Text != "" {
		parts = append(parts, contentPart{Type: "text", Text: m.Text})
	}
	return json.Marshal(struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}{m.Role, parts})
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiErrorBody `json:"error,omitempty"`
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiErrorBody `json:"error,omitempty"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
