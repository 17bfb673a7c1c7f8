package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"seatdesk/pkg/completion"
	"seatdesk/pkg/intake"
	"seatdesk/pkg/llmerrors"
	"seatdesk/pkg/logx"
	"seatdesk/pkg/metrics"
	"seatdesk/pkg/persistence"
	"seatdesk/pkg/status"
	"seatdesk/pkg/utils"
)

const (
	// MaxMessageChars is the maximum persisted length of a chat message.
	MaxMessageChars = 4096

	// TruncationSuffix is appended to messages that exceed the max length.
	TruncationSuffix = " … [truncated]"
)

// ErrEmptyMessage rejects messages that are empty after trimming.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Generator starts report generation for a project. Implemented by the
// report orchestrator; triggering is fire-and-forget from the chat path.
type Generator interface {
	Trigger(projectID string)
}

// Result is the outcome of one submitted chat message.
type Result struct {
	Reply             string         `json:"reply"`
	Status            status.Status  `json:"status"`
	MissingFields     []intake.Field `json:"missing_fields,omitempty"`
	IntakeUpdated     bool           `json:"intake_updated"`
	GenerationStarted bool           `json:"generation_started"`
	Degraded          bool           `json:"degraded"`
}

// Service is the conversation engine. Every submitted message is persisted,
// answered, mined for intake facts, and, once the intake is complete, used to
// kick off report generation.
type Service struct {
	ops         *persistence.DatabaseOperations
	completions *completion.Service
	generator   Generator
	counter     *utils.TokenCounter
	recorder    metrics.Recorder
	logger      *logx.Logger
	maxHistory  int
	maxTokens   int
}

// NewService creates a chat service. generator may be nil in tests that do
// not exercise report triggering.
func NewService(ops *persistence.DatabaseOperations, completions *completion.Service, generator Generator, counter *utils.TokenCounter, recorder metrics.Recorder, maxHistory, maxContextTokens int) *Service {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &Service{
		ops:         ops,
		completions: completions,
		generator:   generator,
		counter:     counter,
		recorder:    recorder,
		logger:      logx.NewLogger("chat"),
		maxHistory:  maxHistory,
		maxTokens:   maxContextTokens,
	}
}

// normalizeMessage trims, redacts, and truncates an incoming message.
// Truncation backs up to a rune boundary so the stored text stays valid UTF-8.
func normalizeMessage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = RedactSecrets(text)
	if len(text) > MaxMessageChars {
		cut := MaxMessageChars - len(TruncationSuffix)
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + TruncationSuffix
	}
	return text
}

// SubmitMessage runs one full conversation turn: persist the user message,
// produce and persist the assistant reply, extract intake facts, and trigger
// report generation when the intake has become complete.
//
// Completion failures degrade rather than fail: both turns are still
// persisted, the reply is a deterministic fallback, and the intake is left
// untouched.
func (s *Service) SubmitMessage(ctx context.Context, projectID, text string) (*Result, error) {
	text = normalizeMessage(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	project, err := s.ops.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	userMsg := &persistence.Message{
		ID:        persistence.GenerateMessageID(),
		ProjectID: projectID,
		Role:      persistence.RoleUser,
		Content:   text,
	}
	if err := s.ops.AppendMessage(userMsg); err != nil {
		return nil, err
	}
	s.recorder.IncChatMessage(persistence.RoleUser)

	history, err := s.buildHistory(projectID)
	if err != nil {
		return nil, err
	}
	grounding, err := s.buildGrounding(project)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := s.completions.Reply(ctx, grounding, history)
	s.recorder.ObserveCompletion(s.completions.ModelName(), "reply", projectID, err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("Completion failed for project %s, degrading: %v", projectID, err)
		return s.degradedTurn(project, err)
	}

	assistantMsg := &persistence.Message{
		ID:        persistence.GenerateMessageID(),
		ProjectID: projectID,
		Role:      persistence.RoleAssistant,
		Content:   reply,
	}
	if err := s.ops.AppendMessage(assistantMsg); err != nil {
		return nil, err
	}
	s.recorder.IncChatMessage(persistence.RoleAssistant)

	missingBefore := intake.MissingFields(project.Intake)
	updated, err := s.updateIntake(ctx, project, text, reply)
	if err != nil {
		// Extraction problems never lose the reply.
		s.logger.Warn("Intake update failed for project %s: %v", projectID, err)
	}

	if updated {
		switch project.Status {
		case status.Complete:
			// Changed facts make the stored report stale.
			if err := s.ops.UpdateStatus(projectID, status.Working, "", nil, ""); err != nil {
				s.logger.Warn("Failed to mark project %s report stale: %v", projectID, err)
			} else {
				project.Status = status.Working
			}
		case status.Intervention:
			// New facts that move the missing-fields set put the project
			// back to work and retire the recorded error.
			if !sameFields(missingBefore, intake.MissingFields(project.Intake)) {
				if err := s.ops.UpdateStatus(projectID, status.Working, "", nil, ""); err != nil {
					s.logger.Warn("Failed to clear intervention for project %s: %v", projectID, err)
				} else {
					project.Status = status.Working
				}
			}
		}
	}

	generationStarted := s.maybeTriggerGeneration(project, updated)

	return &Result{
		Reply:             reply,
		Status:            project.Status,
		MissingFields:     intake.MissingFields(project.Intake),
		IntakeUpdated:     updated,
		GenerationStarted: generationStarted,
	}, nil
}

// degradedTurn persists a deterministic fallback reply after a completion
// failure. The intake is not touched and generation is not triggered.
func (s *Service) degradedTurn(project *persistence.Project, cause error) (*Result, error) {
	missing := intake.MissingFields(project.Intake)
	reply := fallbackReply(missing, cause)

	assistantMsg := &persistence.Message{
		ID:        persistence.GenerateMessageID(),
		ProjectID: project.ID,
		Role:      persistence.RoleAssistant,
		Content:   reply,
	}
	if err := s.ops.AppendMessage(assistantMsg); err != nil {
		return nil, err
	}
	s.recorder.IncChatMessage(persistence.RoleAssistant)

	return &Result{
		Reply:         reply,
		Status:        project.Status,
		MissingFields: missing,
		Degraded:      true,
	}, nil
}

// fallbackReply is the deterministic reply used when the completion service
// is unavailable. It stays useful by restating what the case still needs.
func fallbackReply(missing []intake.Field, cause error) string {
	var b strings.Builder
	if llmerrors.IsTransient(cause) {
		b.WriteString("The assistant is temporarily unavailable; your message has been saved.")
	} else {
		b.WriteString("The assistant could not process this message; your message has been saved.")
	}
	if len(missing) > 0 {
		b.WriteString(" To prepare the seat-change report, the case still needs: ")
		b.WriteString(strings.Join(fieldNames(missing), ", "))
		b.WriteString(".")
	} else {
		b.WriteString(" All required case facts are on file; the report can be generated once the service recovers.")
	}
	return b.String()
}

func fieldNames(fields []intake.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ReplaceAll(string(f), "_", " ")
	}
	return names
}

// buildHistory loads the recent conversation and trims oldest-first until it
// fits the context token budget. The newest message is always kept.
func (s *Service) buildHistory(projectID string) ([]completion.Message, error) {
	recent, err := s.ops.ListRecentMessages(projectID, s.maxHistory)
	if err != nil {
		return nil, err
	}

	messages := make([]completion.Message, 0, len(recent))
	for _, m := range recent {
		messages = append(messages, completion.Message{
			Role:    completion.Role(m.Role),
			Content: m.Content,
		})
	}

	for len(messages) > 1 {
		total := 0
		for _, m := range messages {
			total += s.counter.CountTokens(m.Content)
		}
		if total <= s.maxTokens {
			break
		}
		messages = messages[1:]
	}
	return messages, nil
}

// buildGrounding renders the case facts block appended to the system prompt.
func (s *Service) buildGrounding(project *persistence.Project) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n", project.Title)
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}
	fmt.Fprintf(&b, "Case status: %s\n", project.Status)

	b.WriteString("Known case facts:\n")
	for _, field := range intake.RequiredFields() {
		if field == intake.FieldProposedSeats {
			if seats := project.Intake.Strings(field); len(seats) > 0 {
				fmt.Fprintf(&b, "- proposed seats: %s\n", strings.Join(seats, "; "))
			}
			continue
		}
		if v := strings.TrimSpace(project.Intake.Text(field)); v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(string(field), "_", " "), v)
		}
	}
	if details := strings.TrimSpace(project.Intake.Text(intake.FieldAdditionalDetails)); details != "" {
		fmt.Fprintf(&b, "- additional details: %s\n", details)
	}

	if missing := intake.MissingFields(project.Intake); len(missing) > 0 {
		fmt.Fprintf(&b, "Still needed before the report can be generated: %s\n", strings.Join(fieldNames(missing), ", "))
		b.WriteString("When natural, ask for one of the missing facts.")
	} else {
		b.WriteString("All required case facts are on file.")
	}

	docs, err := s.ops.ListDocuments(project.ID)
	if err != nil {
		return "", err
	}
	if len(docs) > 0 {
		names := make([]string, len(docs))
		for i, d := range docs {
			names[i] = d.Filename
		}
		fmt.Fprintf(&b, "\nUploaded documents: %s", strings.Join(names, ", "))
	}

	return b.String(), nil
}

// updateIntake mines the latest exchange for intake facts and persists any
// change. Heuristic hits only fill fields that are still empty; structured
// extraction merges with full precedence.
func (s *Service) updateIntake(ctx context.Context, project *persistence.Project, userText, reply string) (bool, error) {
	delta := make(map[string]any)
	for key, value := range HeuristicExtract(userText) {
		if _, present := project.Intake[key]; !present {
			delta[key] = value
		}
	}

	exchange := []completion.Message{
		completion.NewUserMessage(userText),
		completion.NewAssistantMessage(reply),
	}
	start := time.Now()
	extracted, err := s.completions.ExtractIntake(ctx, project.Intake, intake.MissingFields(project.Intake), exchange)
	s.recorder.ObserveCompletion(s.completions.ModelName(), "extract", project.ID, err == nil, time.Since(start))
	if err != nil {
		s.logger.Debug("Structured extraction unavailable for project %s: %v", project.ID, err)
	} else {
		for key, value := range extracted {
			delta[key] = value
		}
	}

	if !project.Intake.Merge(delta) {
		return false, nil
	}
	if err := s.ops.UpdateIntake(project.ID, project.Intake); err != nil {
		return false, err
	}
	return true, nil
}

// maybeTriggerGeneration starts report generation when the intake is
// complete. A project holding a current report or a recorded failure is
// re-attempted only when this turn actually changed the intake; without a
// change, regeneration is an explicit client action.
func (s *Service) maybeTriggerGeneration(project *persistence.Project, intakeChanged bool) bool {
	if s.generator == nil {
		return false
	}
	if !intake.IsComplete(project.Intake) {
		return false
	}
	switch project.Status {
	case status.Complete, status.Intervention:
		if !intakeChanged {
			return false
		}
	}
	s.logger.Info("Intake complete for project %s, triggering report generation", project.ID)
	s.generator.Trigger(project.ID)
	return true
}

func sameFields(a, b []intake.Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
