package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatdesk/pkg/completion"
	"seatdesk/pkg/intake"
	"seatdesk/pkg/llmerrors"
	"seatdesk/pkg/metrics"
	"seatdesk/pkg/persistence"
	"seatdesk/pkg/status"
	"seatdesk/pkg/testkit"
	"seatdesk/pkg/utils"
)

type fakeGenerator struct {
	mu       sync.Mutex
	triggers []string
}

func (f *fakeGenerator) Trigger(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, projectID)
}

func (f *fakeGenerator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

func newTestService(t *testing.T, client *testkit.ScriptedClient, gen Generator) (*Service, *persistence.DatabaseOperations) {
	t.Helper()
	ops := testkit.OpenDatabase(t)
	counter, err := utils.NewTokenCounter()
	require.NoError(t, err)
	svc := NewService(ops, completion.NewService(client, 512, 0.2), gen, counter, metrics.NopRecorder{}, 20, 8000)
	return svc, ops
}

func createProject(t *testing.T, ops *persistence.DatabaseOperations, in intake.Intake) *persistence.Project {
	t.Helper()
	p := persistence.NewProject("Acme v Widget", "", in)
	require.NoError(t, ops.CreateProject(p))
	return p
}

func TestSubmitMessageRejectsEmpty(t *testing.T) {
	svc, ops := newTestService(t, testkit.NewScriptedClient(), nil)
	p := createProject(t, ops, nil)

	_, err := svc.SubmitMessage(context.Background(), p.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	msgs, err := ops.ListMessages(p.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSubmitMessageUnknownProject(t *testing.T) {
	svc, _ := newTestService(t, testkit.NewScriptedClient(), nil)
	_, err := svc.SubmitMessage(context.Background(), "no-such-id", "hello")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSubmitMessagePersistsBothTurns(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("What is the current seat?").
		QueueResponse(`{}`)
	svc, ops := newTestService(t, client, nil)
	p := createProject(t, ops, nil)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "hello, I need help moving our arbitration")
	require.NoError(t, err)
	assert.Equal(t, "What is the current seat?", res.Reply)
	assert.False(t, res.Degraded)
	assert.Len(t, res.MissingFields, 5)

	msgs, err := ops.ListMessages(p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, persistence.RoleUser, msgs[0].Role)
	assert.Equal(t, persistence.RoleAssistant, msgs[1].Role)
}

func TestSubmitMessageUpdatesIntakeFromExtraction(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Noted, the seat is London.").
		QueueResponse(`{"current_seat": "London", "proposed_seats": ["Paris", "Geneva"]}`)
	svc, ops := newTestService(t, client, nil)
	p := createProject(t, ops, nil)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "the current seat is London, we want Paris or Geneva")
	require.NoError(t, err)
	assert.True(t, res.IntakeUpdated)
	assert.NotContains(t, res.MissingFields, intake.FieldCurrentSeat)
	assert.NotContains(t, res.MissingFields, intake.FieldProposedSeats)

	stored, err := ops.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "London", stored.Intake.Text(intake.FieldCurrentSeat))
	assert.Equal(t, []string{"Paris", "Geneva"}, stored.Intake.Strings(intake.FieldProposedSeats))
}

func TestSubmitMessageDegradesOnCompletionFailure(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueError(llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "rate limited"))
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)

	in := intake.New()
	in[string(intake.FieldCurrentSeat)] = "London"
	p := createProject(t, ops, in)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "what about Stockholm as the seat of arbitration going forward?")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reply, "temporarily unavailable")
	assert.Contains(t, res.Reply, "proposed seats")
	assert.False(t, res.GenerationStarted)
	assert.Zero(t, gen.count())

	// Both turns persisted, intake untouched, only one completion attempt.
	msgs, err := ops.ListMessages(p.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	stored, err := ops.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, in, stored.Intake)
	assert.Equal(t, 1, client.CallCount())
}

func TestSubmitMessageHeuristicFillsWhenExtractionFails(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Understood.").
		QueueError(llmerrors.NewError(llmerrors.ErrorTypeTransient, "extraction down"))
	svc, ops := newTestService(t, client, nil)
	p := createProject(t, ops, nil)

	res, err := svc.SubmitMessage(context.Background(), p.ID,
		"per clause 14 the seat of arbitration shall be London, under ICC rules")
	require.NoError(t, err)
	assert.True(t, res.IntakeUpdated)

	stored, err := ops.GetProject(p.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.Intake.Text(intake.FieldCurrentSeat), "London")
	assert.Equal(t, "ICC", stored.Intake.Text(intake.FieldInstitutionRules))
}

func TestSubmitMessageTriggersGenerationWhenComplete(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("That covers everything, generating the report now.").
		QueueResponse(`{"current_seat": "London", "proposed_seats": ["Paris"], "arbitration_agreement_text": "disputes shall be settled by arbitration seated in London", "institution_rules": "ICC", "governing_law": "English law"}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := createProject(t, ops, nil)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "here are all the remaining details ...")
	require.NoError(t, err)
	assert.True(t, res.GenerationStarted)
	assert.Empty(t, res.MissingFields)
	assert.Equal(t, 1, gen.count())
}

func completedProject(t *testing.T, ops *persistence.DatabaseOperations) *persistence.Project {
	t.Helper()
	in := intake.Intake{
		string(intake.FieldCurrentSeat):      "London",
		string(intake.FieldProposedSeats):    []string{"Paris"},
		string(intake.FieldAgreementText):    "disputes shall be settled by arbitration seated in London",
		string(intake.FieldInstitutionRules): "ICC",
		string(intake.FieldGoverningLaw):     "English law",
	}
	p := createProject(t, ops, in)
	now := time.Now().UTC()
	require.NoError(t, ops.UpdateStatus(p.ID, status.Complete, "/tmp/report.md", &now, ""))
	return p
}

func TestSubmitMessageIntakeEditMakesReportStale(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Noted, switching the governing law.").
		QueueResponse(`{"governing_law": "French law"}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := completedProject(t, ops)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "actually the contract is governed by French law")
	require.NoError(t, err)
	assert.True(t, res.IntakeUpdated)
	assert.Equal(t, status.Working, res.Status)
	assert.True(t, res.GenerationStarted)
	assert.Equal(t, 1, gen.count())

	stored, err := ops.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Working, stored.Status)
	assert.Equal(t, "French law", stored.Intake.Text(intake.FieldGoverningLaw))
}

func TestSubmitMessageNoRetriggerWhenReportCurrent(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Happy to help.").
		QueueResponse(`{}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := completedProject(t, ops)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "thanks, looks good")
	require.NoError(t, err)
	assert.False(t, res.IntakeUpdated)
	assert.Equal(t, status.Complete, res.Status)
	assert.False(t, res.GenerationStarted)
	assert.Zero(t, gen.count())
}

func TestSubmitMessageNoRetriggerWhenIncomplete(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Thanks.").
		QueueResponse(`{"governing_law": "Swiss law"}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := createProject(t, ops, nil)

	res, err := svc.SubmitMessage(context.Background(), p.ID, "governing law is Swiss law")
	require.NoError(t, err)
	assert.False(t, res.GenerationStarted)
	assert.Zero(t, gen.count())
}

func interventionProject(t *testing.T, ops *persistence.DatabaseOperations, in intake.Intake) *persistence.Project {
	t.Helper()
	p := createProject(t, ops, in)
	require.NoError(t, ops.UpdateStatus(p.ID, status.Intervention, "", nil, "report generation failed"))
	p.Status = status.Intervention
	return p
}

func TestSubmitMessageNoRetriggerOnInterventionWithoutChange(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("The last attempt failed; the facts on file are unchanged.").
		QueueResponse(`{}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := interventionProject(t, ops, intake.Intake{
		string(intake.FieldCurrentSeat):      "London",
		string(intake.FieldProposedSeats):    []string{"Paris"},
		string(intake.FieldAgreementText):    "disputes shall be settled by arbitration seated in London",
		string(intake.FieldInstitutionRules): "ICC",
		string(intake.FieldGoverningLaw):     "English law",
	})

	res, err := svc.SubmitMessage(context.Background(), p.ID, "what happened?")
	require.NoError(t, err)
	assert.False(t, res.GenerationStarted)
	assert.Zero(t, gen.count())

	stored, err := ops.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Intervention, stored.Status)
	assert.Equal(t, "report generation failed", stored.ReportError)
}

func TestSubmitMessageRetriggersOnInterventionWhenIntakeChanges(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Updated, trying the report again.").
		QueueResponse(`{"governing_law": "French law"}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := interventionProject(t, ops, intake.Intake{
		string(intake.FieldCurrentSeat):      "London",
		string(intake.FieldProposedSeats):    []string{"Paris"},
		string(intake.FieldAgreementText):    "disputes shall be settled by arbitration seated in London",
		string(intake.FieldInstitutionRules): "ICC",
		string(intake.FieldGoverningLaw):     "English law",
	})

	res, err := svc.SubmitMessage(context.Background(), p.ID, "correction: the contract is under French law")
	require.NoError(t, err)
	assert.True(t, res.IntakeUpdated)
	assert.True(t, res.GenerationStarted)
	assert.Equal(t, 1, gen.count())
}

func TestSubmitMessageNewFactClearsIntervention(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Noted the governing law.").
		QueueResponse(`{"governing_law": "English law"}`)
	gen := &fakeGenerator{}
	svc, ops := newTestService(t, client, gen)
	p := interventionProject(t, ops, intake.Intake{
		string(intake.FieldCurrentSeat):   "London",
		string(intake.FieldProposedSeats): []string{"Paris"},
		string(intake.FieldAgreementText): "disputes shall be settled by arbitration seated in London",
	})

	res, err := svc.SubmitMessage(context.Background(), p.ID, "the contract says English law governs")
	require.NoError(t, err)
	assert.True(t, res.IntakeUpdated)
	assert.Equal(t, status.Working, res.Status)
	assert.False(t, res.GenerationStarted)
	assert.Zero(t, gen.count())

	stored, err := ops.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, status.Working, stored.Status)
	assert.Empty(t, stored.ReportError)
}

func TestNormalizeMessageTruncatesOnRuneBoundary(t *testing.T) {
	client := testkit.NewScriptedClient().
		QueueResponse("Noted.").
		QueueResponse(`{}`)
	svc, ops := newTestService(t, client, nil)
	p := createProject(t, ops, nil)

	// The cut point lands mid-rune without boundary handling.
	long := "a" + strings.Repeat("漢", MaxMessageChars)
	_, err := svc.SubmitMessage(context.Background(), p.ID, long)
	require.NoError(t, err)

	msgs, err := ops.ListMessages(p.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	stored := msgs[0].Content
	assert.True(t, utf8.ValidString(stored))
	assert.LessOrEqual(t, len(stored), MaxMessageChars)
	assert.True(t, strings.HasSuffix(stored, TruncationSuffix))
}
