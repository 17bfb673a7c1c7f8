package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seatdesk/pkg/intake"
	"seatdesk/pkg/status"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DatabaseOperations provides methods for database operations.
type DatabaseOperations struct {
	db *sql.DB
}

// NewDatabaseOperations creates a new DatabaseOperations instance.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db}
}

// CreateProject inserts a new project record.
func (ops *DatabaseOperations) CreateProject(p *Project) error {
	intakeJSON, err := p.Intake.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize intake for project %s: %w", p.ID, err)
	}

	query := `
		INSERT INTO projects (
			id, title, description, status, intake,
			report_location, report_generated_at, report_error,
			generation_attempt, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ops.db.Exec(query,
		p.ID, p.Title, p.Description, string(p.Status), string(intakeJSON),
		nullString(p.ReportLocation), nullTime(p.ReportGeneratedAt), nullString(p.ReportError),
		p.GenerationAttempt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project %s: %w", p.ID, err)
	}
	return nil
}

const projectColumns = `
	id, title, description, status, intake,
	report_location, report_generated_at, report_error,
	generation_attempt, created_at, updated_at
`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var (
		p           Project
		statusStr   string
		intakeJSON  string
		location    sql.NullString
		generatedAt sql.NullTime
		reportError sql.NullString
	)

	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &statusStr, &intakeJSON,
		&location, &generatedAt, &reportError,
		&p.GenerationAttempt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.Status = status.Status(statusStr)
	p.Intake, err = intake.FromJSON([]byte(intakeJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse intake for project %s: %w", p.ID, err)
	}
	if location.Valid {
		p.ReportLocation = location.String
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		p.ReportGeneratedAt = &t
	}
	if reportError.Valid {
		p.ReportError = reportError.String
	}
	return &p, nil
}

// GetProject fetches a project by ID.
func (ops *DatabaseOperations) GetProject(id string) (*Project, error) {
	row := ops.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjects returns all projects, newest first.
func (ops *DatabaseOperations) ListProjects() ([]*Project, error) {
	rows, err := ops.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// UpdateProjectMeta updates title and/or description. Nil pointers leave the
// field unchanged.
func (ops *DatabaseOperations) UpdateProjectMeta(id string, title, description *string) error {
	if title == nil && description == nil {
		return nil
	}

	setClause := "updated_at = ?"
	args := []any{time.Now().UTC()}
	if title != nil {
		setClause += ", title = ?"
		args = append(args, *title)
	}
	if description != nil {
		setClause += ", description = ?"
		args = append(args, *description)
	}
	args = append(args, id)

	result, err := ops.db.Exec(`UPDATE projects SET `+setClause+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// UpdateIntake replaces the stored intake for a project.
func (ops *DatabaseOperations) UpdateIntake(id string, in intake.Intake) error {
	intakeJSON, err := in.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize intake for project %s: %w", id, err)
	}

	result, err := ops.db.Exec(
		`UPDATE projects SET intake = ?, updated_at = ? WHERE id = ?`,
		string(intakeJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update intake for project %s: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// UpdateStatus writes a status transition after validating it against the
// stored status. Report metadata side effects follow the target state:
//   - complete: sets report_location and report_generated_at, clears report_error;
//   - intervention: sets report_error, clears report_location and report_generated_at;
//   - working: clears report_error, keeps the last successful report pointer.
func (ops *DatabaseOperations) UpdateStatus(id string, to status.Status, reportLocation string, generatedAt *time.Time, reportError string) error {
	tx, err := ops.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var fromStr string
	err = tx.QueryRow(`SELECT status FROM projects WHERE id = ?`, id).Scan(&fromStr)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read status for project %s: %w", id, err)
	}

	if err := status.Validate(status.Status(fromStr), to); err != nil {
		return fmt.Errorf("project %s: %w", id, err)
	}

	now := time.Now().UTC()
	switch to {
	case status.Complete:
		if reportLocation == "" || generatedAt == nil {
			return fmt.Errorf("project %s: complete transition requires report location and timestamp", id)
		}
		_, err = tx.Exec(
			`UPDATE projects SET status = ?, report_location = ?, report_generated_at = ?, report_error = NULL, updated_at = ? WHERE id = ?`,
			string(to), reportLocation, *generatedAt, now, id,
		)
	case status.Intervention:
		if reportError == "" {
			return fmt.Errorf("project %s: intervention transition requires an error description", id)
		}
		_, err = tx.Exec(
			`UPDATE projects SET status = ?, report_error = ?, report_location = NULL, report_generated_at = NULL, updated_at = ? WHERE id = ?`,
			string(to), reportError, now, id,
		)
	case status.Working:
		_, err = tx.Exec(
			`UPDATE projects SET status = ?, report_error = NULL, updated_at = ? WHERE id = ?`,
			string(to), now, id,
		)
	default:
		return fmt.Errorf("project %s: invalid target status %q", id, to)
	}
	if err != nil {
		return fmt.Errorf("failed to update status for project %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update for project %s: %w", id, err)
	}
	return nil
}

// IncrementAttempt bumps the monotonic generation attempt counter and returns
// the new value.
func (ops *DatabaseOperations) IncrementAttempt(id string) (int64, error) {
	tx, err := ops.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(
		`UPDATE projects SET generation_attempt = generation_attempt + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempt for project %s: %w", id, err)
	}
	if err := requireRowAffected(result, id); err != nil {
		return 0, err
	}

	var attempt int64
	if err := tx.QueryRow(`SELECT generation_attempt FROM projects WHERE id = ?`, id).Scan(&attempt); err != nil {
		return 0, fmt.Errorf("failed to read attempt for project %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit attempt increment for project %s: %w", id, err)
	}
	return attempt, nil
}

// AppendMessage inserts a message and assigns its sequence number.
func (ops *DatabaseOperations) AppendMessage(m *Message) error {
	if !IsValidRole(m.Role) {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	result, err := ops.db.Exec(
		`INSERT INTO messages (id, project_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append message for project %s: %w", m.ProjectID, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message sequence: %w", err)
	}
	m.Seq = seq
	return nil
}

// ListMessages returns all messages for a project in creation order.
func (ops *DatabaseOperations) ListMessages(projectID string) ([]*Message, error) {
	rows, err := ops.db.Query(
		`SELECT seq, id, project_id, role, content, created_at FROM messages WHERE project_id = ? ORDER BY seq ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for project %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// ListRecentMessages returns the last limit messages in creation order.
func (ops *DatabaseOperations) ListRecentMessages(projectID string, limit int) ([]*Message, error) {
	rows, err := ops.db.Query(
		`SELECT seq, id, project_id, role, content, created_at FROM messages WHERE project_id = ? ORDER BY seq DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages for project %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse back to ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.ProjectID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// InsertDocument records document metadata for a project.
func (ops *DatabaseOperations) InsertDocument(d *Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := ops.db.Exec(
		`INSERT INTO documents (id, project_id, filename, mime_type, byte_size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Filename, d.MimeType, d.ByteSize, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document for project %s: %w", d.ProjectID, err)
	}
	return nil
}

// ListDocuments returns document metadata for a project in upload order.
func (ops *DatabaseOperations) ListDocuments(projectID string) ([]*Document, error) {
	rows, err := ops.db.Query(
		`SELECT id, project_id, filename, mime_type, byte_size, created_at FROM documents WHERE project_id = ? ORDER BY created_at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for project %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Filename, &d.MimeType, &d.ByteSize, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document metadata record.
func (ops *DatabaseOperations) DeleteDocument(id string) error {
	result, err := ops.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// DeleteProject removes a project and, via cascade, its messages and documents.
func (ops *DatabaseOperations) DeleteProject(id string) error {
	result, err := ops.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return requireRowAffected(result, id)
}

func requireRowAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
