package detection

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Classifier decides whether a frame contains a cat.
//
// The implementation is swappable (local model service, cloud vision
// API); the contract is fixed: a classification error is a diagnostic,
// never a hard failure of the detection endpoint.
type Classifier interface {
	// Classify returns whether the image contains a cat. On error the
	// boolean is false and the error text becomes part of the record
	// message.
	Classify(ctx context.Context, imageBytes []byte) (bool, error)
}

// catKeywords are the label substrings treated as a cat match. The list
// covers the ImageNet-style labels the vision model emits for felines.
var catKeywords = []string{
	"cat", "kitten", "tomcat", "tabby", "tiger cat", "siamese", "persian",
	"egyptian cat", "lynx", "wildcat", "feline", "domestic cat", "house cat",
	"maine coon", "british shorthair", "ragdoll", "munchkin", "scottish fold",
	"bengal cat", "russian blue", "abyssinian", "birman", "oriental shorthair",
}

// HasCatLabel reports whether any label matches a cat keyword,
// case-insensitively.
func HasCatLabel(labels []string) bool {
	for _, label := range labels {
		lowered := strings.ToLower(label)
		for _, keyword := range catKeywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}

// HTTPClassifier posts frames to an external vision inference service
// and matches the returned labels against the cat keyword list.
type HTTPClassifier struct {
	client *resty.Client
	model  string
}

// classifyRequest is the inference service request body.
type classifyRequest struct {
	Image string `json:"image"`
	Model string `json:"model,omitempty"`
	TopK  int    `json:"topk"`
}

// classifyResponse is the inference service response body.
type classifyResponse struct {
	Labels []string `json:"label_names"`
	Error  string   `json:"error,omitempty"`
}

// NewHTTPClassifier creates a classifier adapter for the inference
// service at url. The model name is forwarded as-is; timeout bounds
// each classification call.
func NewHTTPClassifier(url, model string, timeout time.Duration) *HTTPClassifier {
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPClassifier{
		client: client,
		model:  model,
	}
}

// Classify implements Classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, imageBytes []byte) (bool, error) {
	if len(imageBytes) == 0 {
		return false, fmt.Errorf("empty image")
	}

	request := classifyRequest{
		Image: base64.StdEncoding.EncodeToString(imageBytes),
		Model: c.model,
		TopK:  5,
	}

	var response classifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("")
	if err != nil {
		return false, fmt.Errorf("classifier request: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}
	if response.Error != "" {
		return false, fmt.Errorf("classifier error: %s", response.Error)
	}

	return HasCatLabel(response.Labels), nil
}

// NopClassifier is used when no inference endpoint is configured: every
// frame classifies as no cat, with a diagnostic explaining why.
type NopClassifier struct{}

// Classify implements Classifier.
func (NopClassifier) Classify(context.Context, []byte) (bool, error) {
	return false, fmt.Errorf("no classifier configured")
}
