package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockComposer generates outreach copy with AWS Bedrock (Claude).
// All generation stays within AWS; no external API calls.
type BedrockComposer struct {
	client  *bedrockruntime.Client
	modelID string
}

// bedrockMessage is a message in the Anthropic messages format.
type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewBedrockComposer creates a Bedrock-backed composer.
func NewBedrockComposer(ctx context.Context, region, modelID string) (*BedrockComposer, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	return &BedrockComposer{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

const composerSystem = "You write short, natural LinkedIn outreach copy. " +
	"Respond with the message text only: no quotes, no preamble, no sign-off placeholders. " +
	"Keep connection requests under 280 characters and comments to one or two sentences."

// Compose generates copy for the given lead context.
func (b *BedrockComposer) Compose(ctx context.Context, req Request) (string, error) {
	prompt := buildPrompt(req)

	payload := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        300,
		System:           composerSystem,
		Temperature:      0.7,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: prompt}}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal bedrock request: %w", err)
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("parse bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("bedrock returned empty content")
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	switch req.Kind {
	case KindComment:
		sb.WriteString("Write a brief, genuine comment on this LinkedIn post")
		if req.FirstName != "" {
			fmt.Fprintf(&sb, " by %s", req.FirstName)
		}
		sb.WriteString(":\n\n")
		sb.WriteString(req.PostText)
	case KindFollowupMessage:
		sb.WriteString("Write a friendly follow-up message to a new LinkedIn connection.")
		describeLead(&sb, req)
	default:
		sb.WriteString("Write a LinkedIn connection request message.")
		describeLead(&sb, req)
	}
	return sb.String()
}

func describeLead(sb *strings.Builder, req Request) {
	if req.FirstName != "" {
		fmt.Fprintf(sb, " Their name is %s %s.", req.FirstName, req.LastName)
	}
	if req.Title != "" {
		fmt.Fprintf(sb, " They are a %s", req.Title)
		if req.Company != "" {
			fmt.Fprintf(sb, " at %s", req.Company)
		}
		sb.WriteString(".")
	} else if req.Company != "" {
		fmt.Fprintf(sb, " They work at %s.", req.Company)
	}
}
