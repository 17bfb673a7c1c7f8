package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"seatdesk/pkg/intake"
	"seatdesk/pkg/llmerrors"
	"seatdesk/pkg/logx"
)

// AssistantSystemPrompt grounds every assistant reply.
const AssistantSystemPrompt = "You are an assistant inside an arbitration seat-change workspace. " +
	"Do not invent legal rules or citations. If the user asks for a legal conclusion, " +
	"ask for the missing inputs. Keep answers short and practical."

const extractionSystemPrompt = "You are extracting facts from an arbitration case conversation. " +
	"Return ONLY valid JSON. No markdown. No commentary. Never guess values that were not stated."

const reportSystemPrompt = "You are an arbitration decision-support assistant drafting a seat-of-arbitration " +
	"selection report. Use ONLY the case facts and conversation provided. Do not claim legal certainty; " +
	"this is a decision-support draft, not legal advice."

// extractionTemperature keeps structured extraction near-deterministic.
const extractionTemperature = 0.1

// Service provides the three collaborator operations over a raw Client.
type Service struct {
	client      Client
	logger      *logx.Logger
	maxTokens   int
	temperature float32
}

// NewService creates a completion service.
func NewService(client Client, maxTokens int, temperature float32) *Service {
	return &Service{
		client:      client,
		logger:      logx.NewLogger("completion"),
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// ModelName returns the underlying model name.
func (s *Service) ModelName() string {
	return s.client.ModelName()
}

// Reply generates an assistant reply from the grounding context and the
// conversation history. The last history entry must be the new user message.
func (s *Service) Reply(ctx context.Context, grounding string, history []Message) (string, error) {
	system := AssistantSystemPrompt
	if grounding != "" {
		system += "\n\n" + grounding
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, NewSystemMessage(system))
	messages = append(messages, history...)

	resp, err := s.client.Complete(ctx, Request{
		Messages:    messages,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("assistant reply failed: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "assistant reply was empty")
	}
	return reply, nil
}

// ExtractIntake asks the model for a structured intake delta based on the
// latest exchange. Fields not stated in the conversation come back absent.
func (s *Service) ExtractIntake(ctx context.Context, current intake.Intake, missing []intake.Field, exchange []Message) (map[string]any, error) {
	conversation := make([]map[string]string, 0, len(exchange))
	for _, m := range exchange {
		conversation = append(conversation, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	missingNames := make([]string, 0, len(missing))
	for _, f := range missing {
		missingNames = append(missingNames, string(f))
	}

	prompt := map[string]any{
		"task": "Extract arbitration intake fields explicitly stated in the conversation excerpt.",
		"rules": []string{
			"Only use information explicitly present in the conversation.",
			"If a field is not stated, omit it or return null. Do NOT guess.",
			"proposed_seats must contain the full current list the user wants, not additions.",
		},
		"fields": map[string]string{
			"current_seat":               "string|null",
			"proposed_seats":             "string[] (empty if none)",
			"arbitration_agreement_text": "string|null (quote/excerpt if provided)",
			"institution_rules":          "string|null",
			"governing_law":              "string|null",
			"additional_details":         "string|null (other case context worth keeping)",
		},
		"currently_missing": missingNames,
		"known_intake":      current,
		"conversation":      conversation,
	}

	payload, err := json.Marshal(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction prompt: %w", err)
	}

	resp, err := s.client.Complete(ctx, Request{
		Messages: []Message{
			NewSystemMessage(extractionSystemPrompt),
			NewUserMessage(string(payload)),
		},
		MaxTokens:   s.maxTokens,
		Temperature: extractionTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("intake extraction failed: %w", err)
	}

	delta, err := DecodeLooseJSON(resp.Content)
	if err != nil {
		return nil, llmerrors.WrapError(llmerrors.ErrorTypeEmptyResponse, err, "intake extraction returned no JSON object")
	}
	return delta, nil
}

// ProduceReport generates the seat-selection report content. Callers must
// check intake completeness before invoking this; the report step is the
// expensive one.
func (s *Service) ProduceReport(ctx context.Context, title string, in intake.Intake, history []Message, documents []string) (string, error) {
	transcript := make([]map[string]string, 0, len(history))
	for _, m := range history {
		transcript = append(transcript, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	prompt := map[string]any{
		"task": "Draft a seat-of-arbitration selection report for the case below.",
		"strict_rules": []string{
			"Use ONLY the provided case facts, documents list, and conversation.",
			"If evidence is insufficient for a factor, say so explicitly.",
			"Do NOT claim legal certainty. This is a decision-support draft, not legal advice.",
		},
		"report_sections": []string{
			"Case Snapshot",
			"Current Seat Assessment",
			"Proposed Seats Comparison",
			"Conclusion and Recommended Seat",
			"Open Points and Caveats",
		},
		"case_title":         title,
		"intake":             in,
		"uploaded_documents": documents,
		"conversation":       transcript,
	}

	payload, err := json.Marshal(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to build report prompt: %w", err)
	}

	resp, err := s.client.Complete(ctx, Request{
		Messages: []Message{
			NewSystemMessage(reportSystemPrompt),
			NewUserMessage(string(payload)),
		},
		MaxTokens:   s.maxTokens * 4, // reports run long
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("report production failed: %w", err)
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "report production returned no content")
	}

	s.logger.Debug("Produced report draft (%d chars) with model %s", len(content), s.client.ModelName())
	return content, nil
}
