package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/execution"
	"github.com/zero-day-ai/taskforge/notify"
	"github.com/zero-day-ai/taskforge/tool"
)

//go:embed schema.sql
var schema string

// DBPool abstracts *pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	pool   DBPool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps a pool and verifies the connection.
func NewPostgres(ctx context.Context, pool DBPool, logger *slog.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger.With("component", "store")}, nil
}

// Connect opens a pool for dsn and wraps it.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	pg, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool, nil
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", what, id, err)
}

const sqlTarget = `SELECT id, project_id, address, type FROM targets WHERE id = $1`

func (p *Postgres) Target(ctx context.Context, id string) (*entity.Target, error) {
	var t entity.Target
	err := p.pool.QueryRow(ctx, sqlTarget, id).Scan(&t.ID, &t.ProjectID, &t.Address, &t.Type)
	if err != nil {
		return nil, notFound(err, "target", id)
	}
	return &t, nil
}

const sqlTargetPorts = `SELECT id, target_id, port FROM target_ports WHERE target_id = $1 ORDER BY port`

func (p *Postgres) TargetPorts(ctx context.Context, targetID string) ([]*entity.TargetPort, error) {
	rows, err := p.pool.Query(ctx, sqlTargetPorts, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query target ports: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.TargetPort, error) {
		var tp entity.TargetPort
		err := row.Scan(&tp.ID, &tp.TargetID, &tp.Port)
		return &tp, err
	})
}

const sqlTargetEndpoints = `
	SELECT e.id, e.target_port_id, e.endpoint
	FROM target_endpoints e
	JOIN target_ports p ON p.id = e.target_port_id
	WHERE p.target_id = $1
	ORDER BY e.seq`

func (p *Postgres) TargetEndpoints(ctx context.Context, targetID string) ([]*entity.TargetEndpoint, error) {
	rows, err := p.pool.Query(ctx, sqlTargetEndpoints, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query target endpoints: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.TargetEndpoint, error) {
		var te entity.TargetEndpoint
		err := row.Scan(&te.ID, &te.TargetPortID, &te.Endpoint)
		return &te, err
	})
}

const sqlWordlists = `SELECT id, name, type, path FROM wordlists WHERE id = ANY($1)`

func (p *Postgres) Wordlists(ctx context.Context, ids []string) ([]*entity.Wordlist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, sqlWordlists, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query wordlists: %w", err)
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Wordlist, error) {
		var w entity.Wordlist
		err := row.Scan(&w.ID, &w.Name, &w.Type, &w.Path)
		return &w, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan wordlists: %w", err)
	}

	byID := make(map[string]*entity.Wordlist, len(found))
	for _, w := range found {
		byID[w.ID] = w
	}
	out := make([]*entity.Wordlist, 0, len(ids))
	for _, id := range ids {
		w, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("wordlist %s: %w", id, ErrNotFound)
		}
		out = append(out, w)
	}
	return out, nil
}

const (
	sqlParameters = `SELECT id, key, value FROM parameters WHERE target_id = $1 ORDER BY seq`

	sqlTargetFindings = `
	SELECT f.kind, f.data
	FROM findings f
	JOIN executions e ON e.id = f.execution_id
	JOIN tasks t ON t.id = e.task_id
	WHERE t.target_id = $1
	ORDER BY f.seq`
)

func (p *Postgres) TargetInputs(ctx context.Context, targetID string) ([]entity.Entity, error) {
	rows, err := p.pool.Query(ctx, sqlParameters, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	params, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Entity, error) {
		var param entity.Parameter
		err := row.Scan(&param.ID, &param.Key, &param.Value)
		return &param, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan parameters: %w", err)
	}

	rows, err = p.pool.Query(ctx, sqlTargetFindings, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query target findings: %w", err)
	}
	findings, err := collectFindings(rows)
	if err != nil {
		return nil, err
	}
	return append(params, findings...), nil
}

const (
	sqlInsertTask = `
	INSERT INTO tasks (id, project_id, target_id, tool, intensity, wordlist_ids, executor_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	sqlInsertExecution = `
	INSERT INTO executions (id, task_id, tool, arguments, entities, status)
	VALUES ($1, $2, $3, $4, $5, $6)`
)

func (p *Postgres) CreateTask(ctx context.Context, task *execution.Task, execs []*execution.Execution) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer p.rollback(ctx, tx)

	wordlists := task.WordlistIDs
	if wordlists == nil {
		wordlists = []string{}
	}
	if _, err := tx.Exec(ctx, sqlInsertTask,
		task.ID, task.ProjectID, task.TargetID, task.Tool, int(task.Intensity),
		wordlists, task.ExecutorID, task.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}

	for _, e := range execs {
		entities, err := json.Marshal(e.Entities)
		if err != nil {
			return fmt.Errorf("failed to encode entities of execution %s: %w", e.ID, err)
		}
		if _, err := tx.Exec(ctx, sqlInsertExecution,
			e.ID, task.ID, e.Tool, e.Arguments, entities, string(e.Status),
		); err != nil {
			return fmt.Errorf("failed to insert execution %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
	}
}

const sqlTask = `
	SELECT id, project_id, target_id, tool, intensity, wordlist_ids, executor_id, created_at
	FROM tasks WHERE id = $1`

func (p *Postgres) Task(ctx context.Context, id string) (*execution.Task, error) {
	var (
		t         execution.Task
		intensity int
	)
	err := p.pool.QueryRow(ctx, sqlTask, id).Scan(
		&t.ID, &t.ProjectID, &t.TargetID, &t.Tool, &intensity, &t.WordlistIDs, &t.ExecutorID, &t.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	t.Intensity = tool.Intensity(intensity)
	return &t, nil
}

const sqlExecution = `
	SELECT id, task_id, tool, arguments, entities, status, start_at, end_at,
	       output_file, output_plain, output_error
	FROM executions WHERE id = $1`

func (p *Postgres) Execution(ctx context.Context, id string) (*execution.Execution, error) {
	var (
		e          execution.Execution
		entities   []byte
		status     string
		start, end *time.Time
	)
	err := p.pool.QueryRow(ctx, sqlExecution, id).Scan(
		&e.ID, &e.TaskID, &e.Tool, &e.Arguments, &entities, &status, &start, &end,
		&e.OutputFile, &e.OutputPlain, &e.OutputError,
	)
	if err != nil {
		return nil, notFound(err, "execution", id)
	}
	if err := json.Unmarshal(entities, &e.Entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities of execution %s: %w", id, err)
	}
	e.Status = execution.Status(status)
	if start != nil {
		e.Start = *start
	}
	if end != nil {
		e.End = *end
	}
	return &e, nil
}

const sqlUpdateExecution = `
	UPDATE executions
	SET status = $2, start_at = $3, end_at = $4, output_file = $5, output_plain = $6, output_error = $7
	WHERE id = $1 AND status = $8`

func (p *Postgres) UpdateExecution(ctx context.Context, e *execution.Execution, expected execution.Status) error {
	tag, err := p.pool.Exec(ctx, sqlUpdateExecution,
		e.ID, string(e.Status), nullTime(e.Start), nullTime(e.End),
		e.OutputFile, e.OutputPlain, e.OutputError, string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("execution %s is not %s: %w", e.ID, expected, ErrConflict)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

const sqlUpsertFinding = `
	INSERT INTO findings (id, execution_id, kind, data)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		execution_id = EXCLUDED.execution_id,
		kind = EXCLUDED.kind,
		data = EXCLUDED.data`

func (p *Postgres) SaveFindings(ctx context.Context, executionID string, findings []entity.Entity) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer p.rollback(ctx, tx)

	for _, f := range findings {
		if f.Identity() == "" {
			return fmt.Errorf("%s finding has no ID", f.Kind())
		}
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to encode %s finding: %w", f.Kind(), err)
		}
		if _, err := tx.Exec(ctx, sqlUpsertFinding, f.Identity(), executionID, string(f.Kind()), data); err != nil {
			return fmt.Errorf("failed to upsert finding %s: %w", f.Identity(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const sqlFindings = `SELECT kind, data FROM findings WHERE execution_id = $1 ORDER BY seq`

func (p *Postgres) Findings(ctx context.Context, executionID string) ([]entity.Entity, error) {
	rows, err := p.pool.Query(ctx, sqlFindings, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	return collectFindings(rows)
}

func collectFindings(rows pgx.Rows) ([]entity.Entity, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Entity, error) {
		var (
			kind string
			data []byte
		)
		if err := row.Scan(&kind, &data); err != nil {
			return nil, err
		}
		e, err := entity.New(entity.Kind(kind))
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, e); err != nil {
			return nil, fmt.Errorf("failed to decode %s finding: %w", kind, err)
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan findings: %w", err)
	}
	return out, nil
}

const userColumns = `u.id, u.username, u.email, u.notification_scope, u.email_notification,
	u.telegram_notification, u.telegram_chat_id`

const (
	sqlUser           = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	sqlProjectMembers = `SELECT ` + userColumns + `
	FROM users u
	JOIN project_members m ON m.user_id = u.id
	WHERE m.project_id = $1
	ORDER BY u.id`
)

func scanUser(row pgx.Row) (notify.User, error) {
	var (
		u     notify.User
		scope string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &scope, &u.EmailNotification,
		&u.TelegramNotification, &u.TelegramChatID)
	u.Scope = notify.Scope(scope)
	return u, err
}

func (p *Postgres) User(ctx context.Context, id string) (notify.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, sqlUser, id))
	if err != nil {
		return notify.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (p *Postgres) ProjectMembers(ctx context.Context, projectID string) ([]notify.User, error) {
	rows, err := p.pool.Query(ctx, sqlProjectMembers, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project members: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notify.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan project members: %w", err)
	}
	return users, nil
}
