package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const taskColumns = "id, creator_id, title, content, is_done, task_image, created_at, updated_at"

func scanTask(row rowScanner) (*Task, error) {
	var (
		t     Task
		image sql.NullString
	)
	if err := row.Scan(&t.ID, &t.CreatorID, &t.Title, &t.Content, &t.IsDone, &image, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.TaskImage = stringPtr(image)
	return &t, nil
}

// CreateTask inserts a task and publishes an EventCreated.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO tasks (creator_id, title, content, is_done, task_image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		t.CreatorID, t.Title, t.Content, t.IsDone, nullString(t.TaskImage), t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return errors.Wrap(err, "inserting task")
	}

	s.publish(TaskEvent{Type: EventCreated, Task: copyTask(t), TaskID: t.ID})
	return nil
}

// GetTask returns the task with the given ID.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, s.rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, errors.Wrap(err, "querying task")
}

// CountTasks returns the number of tasks matching f.
func (s *Store) CountTasks(ctx context.Context, f TaskFilter) (int, error) {
	return s.count(ctx, s.db, "tasks", f.predicates())
}

// ListTasks returns tasks matching f ordered by ID.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter, page Page) ([]*Task, error) {
	return s.listTasks(ctx, f.predicates(), page)
}

// TasksByIDs returns the tasks with the given IDs, keyed by ID.
func (s *Store) TasksByIDs(ctx context.Context, ids []int64) (map[int64]*Task, error) {
	tasks, err := s.listTasks(ctx, []Predicate{In("id", ids)}, Page{})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Task, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out, nil
}

func (s *Store) listTasks(ctx context.Context, preds []Predicate, page Page) ([]*Task, error) {
	clause, args := where(preds)
	limit, limitArgs := page.clause()
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT "+taskColumns+" FROM tasks"+clause+" ORDER BY id"+limit), append(args, limitArgs...)...)
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning task")
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.Wrap(rows.Err(), "iterating tasks")
}

// UpdateTask writes every mutable column of t and publishes an EventUpdated.
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	t.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE tasks SET title = ?, content = ?, is_done = ?, task_image = ?, updated_at = ?
		WHERE id = ?`),
		t.Title, t.Content, t.IsDone, nullString(t.TaskImage), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	s.publish(TaskEvent{Type: EventUpdated, Task: copyTask(t), TaskID: t.ID})
	return nil
}

// DeleteTask removes a task and returns its last stored state.
func (s *Store) DeleteTask(ctx context.Context, id int64) (*Task, error) {
	var deleted *Task
	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx, s.rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "querying task")
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM tasks WHERE id = ?"), id); err != nil {
			return errors.Wrap(err, "deleting task")
		}
		deleted = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TaskEvent{Type: EventDeleted, Task: copyTask(deleted), TaskID: id})
	return deleted, nil
}

func copyTask(t *Task) *Task {
	c := *t
	return &c
}
