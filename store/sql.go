package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"task-lifecycle-api/database"
	"task-lifecycle-api/models"
)

// SQLStore persists tasks through database/sql. Queries are written with "?" and rebound per driver.
type SQLStore struct {
	db     *sql.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open connection whose schema has been migrated.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const taskColumns = `id, title, description, status, priority, due_date, assignee, version, created_at, updated_at`

func (s *SQLStore) q(query string) string {
	return database.Rebind(s.driver, query)
}

// Create inserts a new task
func (s *SQLStore) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	stored := task.Clone()
	stored.Version = 0
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.UpdatedAt = stored.UpdatedAt.UTC()

	query := s.q(`
	INSERT INTO tasks (title, description, status, priority, due_date, assignee,
		title_folded, description_folded, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`)
	err := s.db.QueryRowContext(ctx, query,
		stored.Title, stored.Description, string(stored.Status), string(stored.Priority),
		dueDateValue(stored.DueDate), stored.Assignee,
		strings.ToLower(stored.Title), strings.ToLower(stored.Description), stored.Version,
		stored.CreatedAt, stored.UpdatedAt,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	return stored, nil
}

// Get retrieves one task by id
func (s *SQLStore) Get(ctx context.Context, id int64) (*models.Task, bool, error) {
	query := s.q(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, true, nil
}

// Put updates a task only if its version still matches the stored row
func (s *SQLStore) Put(ctx context.Context, task *models.Task) (*models.Task, bool, error) {
	query := s.q(`
	UPDATE tasks
	SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, assignee = ?,
		title_folded = ?, description_folded = ?, version = version + 1, updated_at = ?
	WHERE id = ? AND version = ?
	`)
	result, err := s.db.ExecContext(ctx, query,
		task.Title, task.Description, string(task.Status), string(task.Priority),
		dueDateValue(task.DueDate), task.Assignee,
		strings.ToLower(task.Title), strings.ToLower(task.Description), task.UpdatedAt.UTC(),
		task.ID, task.Version,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	if affected == 0 {
		exists, err := s.exists(ctx, task.ID)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			return nil, false, nil
		}
		return nil, true, ErrVersionConflict
	}

	stored, found, err := s.Get(ctx, task.ID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		// deleted between the update and the read-back
		return nil, false, nil
	}
	return stored, true, nil
}

// Delete deletes a task by ID
func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return affected > 0, nil
}

// List retrieves all tasks sorted by id
func (s *SQLStore) List(ctx context.Context) ([]*models.Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id ASC`)
}

func (s *SQLStore) CountByStatus(ctx context.Context, status models.Status) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM tasks WHERE status = ?`), string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

func (s *SQLStore) ListOverdue(ctx context.Context, asOf models.Date) ([]*models.Task, error) {
	where, args := whereClause(models.TaskFilter{OverdueAsOf: &asOf})
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY id ASC`, args...)
}

// Search retrieves one page of matching tasks and the total count
func (s *SQLStore) Search(ctx context.Context, filter models.TaskFilter, page models.PageRequest) (models.Page[*models.Task], error) {
	where, args := whereClause(filter)

	var total int64
	countQuery := s.q(`SELECT COUNT(*) FROM tasks` + where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return models.Page[*models.Task]{}, fmt.Errorf("failed to count tasks: %w", err)
	}

	if int64(page.Offset()) >= total {
		return models.NewPage[*models.Task](nil, page, total), nil
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		` ORDER BY ` + orderBy(page.Sort, page.Direction) + ` LIMIT ? OFFSET ?`
	tasks, err := s.query(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return models.Page[*models.Task]{}, err
	}
	return models.NewPage(tasks, page, total), nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) exists(ctx context.Context, id int64) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM tasks WHERE id = ?`), id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check task %d: %w", id, err)
	}
	return count > 0, nil
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task     models.Task
		status   string
		priority string
		due      sql.NullString
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &status, &priority,
		&due, &task.Assignee, &task.Version, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Status = models.Status(status)
	task.Priority = models.Priority(priority)
	if due.Valid && due.String != "" {
		d, err := models.ParseDate(due.String)
		if err != nil {
			return nil, err
		}
		task.DueDate = &d
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

func dueDateValue(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// whereClause translates a filter into SQL. Dates are stored as YYYY-MM-DD text so they compare lexically.
func whereClause(f models.TaskFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if len(f.Priorities) > 0 {
		marks := make([]string, len(f.Priorities))
		for i, p := range f.Priorities {
			marks[i] = "?"
			args = append(args, string(p))
		}
		conds = append(conds, "priority IN ("+strings.Join(marks, ", ")+")")
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		pattern := "%" + escapeLike(kw) + "%"
		conds = append(conds, `(title_folded LIKE ? ESCAPE '\' OR description_folded LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if a := strings.TrimSpace(f.Assignee); a != "" {
		conds = append(conds, "assignee = ?")
		args = append(args, a)
	}
	if f.DueFrom != nil {
		conds = append(conds, "due_date >= ?")
		args = append(args, f.DueFrom.String())
	}
	if f.DueTo != nil {
		conds = append(conds, "due_date <= ?")
		args = append(args, f.DueTo.String())
	}
	if f.OverdueAsOf != nil {
		conds = append(conds, "due_date < ? AND status NOT IN (?, ?)")
		args = append(args, f.OverdueAsOf.String(), string(models.StatusCompleted), string(models.StatusCancelled))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy mirrors models.CompareTasks: ties fall back to id and missing due dates sort last when ascending.
func orderBy(field string, dir models.SortDirection) string {
	d := "ASC"
	if dir == models.SortDesc {
		d = "DESC"
	}
	var expr []string
	switch field {
	case "title":
		expr = []string{"title_folded"}
	case "status":
		expr = []string{rankCase("status", statusNames())}
	case "priority":
		expr = []string{rankCase("priority", priorityNames())}
	case "dueDate":
		expr = []string{"(due_date IS NULL)", "due_date"}
	case "createdAt":
		expr = []string{"created_at"}
	case "updatedAt":
		expr = []string{"updated_at"}
	}
	expr = append(expr, "id")
	for i := range expr {
		expr[i] += " " + d
	}
	return strings.Join(expr, ", ")
}

// rankCase renders a CASE expression ranking a column by the position of its value in names.
// The names are fixed enum constants, never user input.
func rankCase(column string, names []string) string {
	var b strings.Builder
	b.WriteString("CASE " + column)
	for i, n := range names {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", n, i)
	}
	b.WriteString(" ELSE -1 END")
	return b.String()
}

func statusNames() []string {
	out := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		out[i] = string(s)
	}
	return out
}

func priorityNames() []string {
	out := make([]string, len(models.Priorities))
	for i, p := range models.Priorities {
		out[i] = string(p)
	}
	return out
}
