package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/advisor"
)

var _ advisor.AlertSource = (*AlertSource)(nil)

const systemPrompt = `You are a real-time security and health monitor for a livestock farm.
Analyse the tracking snapshot and return only the alerts that apply right now.
Focus on emergencies: animals leaving their fences, sudden running, long inactivity.

Return a JSON object {"alerts": [...]} where each alert has:
- title (string)
- description (string)
- severity (enum) - "low" | "medium" | "high" | "critical"
- type (enum) - "security" | "health" | "admin"`

// categories maps the advisor's alert type onto policy categories.
var categories = map[string]domain.Category{
	"security": domain.CategoryGPS,
	"أمني":     domain.CategoryGPS,
	"health":   domain.CategoryHealth,
	"صحي":      domain.CategoryHealth,
	"admin":    domain.CategoryAdmin,
	"إداري":    domain.CategoryAdmin,
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type AlertSource struct {
	client chatCompleter
	model  string
}

func NewAlertSource(apiKey, model string) *AlertSource {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &AlertSource{client: openai.NewClient(apiKey), model: model}
}

type alertRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Type        string `json:"type"`
}

type alertsResponse struct {
	Alerts []alertRecord `json:"alerts"`
}

func (s *AlertSource) GenerateAlerts(ctx context.Context, snap domain.Snapshot) ([]domain.AlertCandidate, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices")
	}
	return parseAlerts(resp.Choices[0].Message.Content)
}

func parseAlerts(content string) ([]domain.AlertCandidate, error) {
	var parsed alertsResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}

	out := make([]domain.AlertCandidate, 0, len(parsed.Alerts))
	for _, a := range parsed.Alerts {
		cat, ok := categories[strings.ToLower(strings.TrimSpace(a.Type))]
		if !ok {
			cat = domain.Category(a.Type)
		}
		out = append(out, domain.AlertCandidate{
			Severity:      domain.ParseSeverity(a.Severity),
			Category:      cat,
			SourceContext: a.Title,
		})
	}
	return out, nil
}
