// Package llmsvc talks to OpenAI compatible chat completion APIs.
package llmsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/schedule"
)

const systemPrompt = "You are a helpful assistant that only answers with valid JSON."

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	responseFormat struct {
		Type string `json:"type"`
	}

	chatRequest struct {
		Model          string          `json:"model"`
		Messages       []chatMessage   `json:"messages"`
		Temperature    float64         `json:"temperature"`
		ResponseFormat *responseFormat `json:"response_format,omitempty"`
	}

	chatResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
)

type openAIModel struct {
	endpoint string
	apiKey   string
	model    string
	client   *rest.Client
}

var _ schedule.Model = (*openAIModel)(nil)

func NewOpenAIModel(conf *core.Config) schedule.Model {
	return &openAIModel{
		endpoint: conf.LLM.BaseURL + "/chat/completions",
		apiKey:   conf.LLM.APIKey,
		model:    conf.LLM.Model,
		client:   &rest.Client{HTTPClient: &http.Client{Timeout: conf.LLM.Timeout}},
	}
}

func (m *openAIModel) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: m.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding chat request")
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if m.apiKey != "" {
		headers["Authorization"] = "Bearer " + m.apiKey
	}
	req, err := rest.BuildRequestObject(rest.Request{
		Method:  rest.Post,
		BaseURL: m.endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return "", errors.Wrap(err, "building chat request")
	}
	httpRes, err := m.client.MakeRequest(req.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "sending chat request")
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return "", errors.Wrap(err, "reading chat response")
	}

	var chatRes chatResponse
	if err = json.Unmarshal([]byte(res.Body), &chatRes); err != nil && res.StatusCode < http.StatusBadRequest {
		return "", errors.Wrap(err, "decoding chat response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		msg := res.Body
		if chatRes.Error != nil {
			msg = chatRes.Error.Message
		}
		return "", fmt.Errorf("chat completion failed - status: %d - %s", res.StatusCode, msg)
	}
	if len(chatRes.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return chatRes.Choices[0].Message.Content, nil
}
