package tracing

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/simplehal/simplehal/sim"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB

	mu            sync.Mutex
	taskStatement *sql.Stmt
	stepStatement *sql.Stmt

	dbName           string
	tasksToWriteToDB []Task
	batchSize        int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The database is
// stored in path with a .sqlite3 suffix. An empty path picks a unique name.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 10000,
	}

	atexit.Register(func() { _ = w.Flush() })

	return w
}

// FileName returns the file the trace is written to.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init creates the database and its tables. It fails if the file already
// exists.
func (t *SQLiteTraceWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "simplehal_trace_" + xid.New().String()
	}

	if err := t.createDatabase(); err != nil {
		return err
	}

	if err := t.createTables(); err != nil {
		return err
	}

	return t.prepareStatements()
}

// Write buffers a task. The buffer is flushed when it is full.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.mu.Lock()
	t.tasksToWriteToDB = append(t.tasksToWriteToDB, task)
	full := len(t.tasksToWriteToDB) >= t.batchSize
	t.mu.Unlock()

	if full {
		if err := t.Flush(); err != nil {
			log.Printf("flushing trace to %s: %v", t.FileName(), err)
		}
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTraceWriter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.tasksToWriteToDB) == 0 || t.DB == nil {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	taskStmt := tx.Stmt(t.taskStatement)
	stepStmt := tx.Stmt(t.stepStatement)

	for _, task := range t.tasksToWriteToDB {
		_, err := taskStmt.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			float64(task.StartTime),
			float64(task.EndTime),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("writing task %s: %w", task.ID, err)
		}

		for _, step := range task.Steps {
			_, err := stepStmt.Exec(task.ID, float64(step.Time), step.What)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("writing step of task %s: %w", task.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	t.tasksToWriteToDB = nil

	return nil
}

// Close flushes the buffered tasks and closes the database.
func (t *SQLiteTraceWriter) Close() error {
	flushErr := t.Flush()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.DB == nil {
		return flushErr
	}

	err := t.DB.Close()
	t.DB = nil

	return errors.Join(flushErr, err)
}

func (t *SQLiteTraceWriter) createDatabase() error {
	filename := t.FileName()

	_, err := os.Stat(filename)
	if err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}

	t.DB = db

	return nil
}

func (t *SQLiteTraceWriter) createTables() error {
	stmts := []string{
		`create table trace
		(
			task_id    varchar(200) not null,
			parent_id  varchar(200),
			kind       varchar(100),
			what       varchar(100),
			location   varchar(100),
			start_time float not null,
			end_time   float default 0
		);`,
		`create unique index trace_task_id_uindex on trace (task_id);`,
		`create index trace_kind_index on trace (kind);`,
		`create index trace_location_index on trace (location);`,
		`create index trace_parent_id_index on trace (parent_id);`,
		`create index trace_start_time_index on trace (start_time);`,
		`create index trace_end_time_index on trace (end_time);`,
		`create table trace_step
		(
			task_id varchar(200) not null,
			time    float not null,
			what    varchar(100)
		);`,
		`create index trace_step_task_id_index on trace_step (task_id);`,
	}

	for _, s := range stmts {
		if _, err := t.Exec(s); err != nil {
			return fmt.Errorf("creating trace tables: %w", err)
		}
	}

	return nil
}

func (t *SQLiteTraceWriter) prepareStatements() error {
	stmt, err := t.Prepare(`INSERT INTO trace VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	t.taskStatement = stmt

	stmt, err = t.Prepare(`INSERT INTO trace_step VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}

	t.stepStatement = stmt

	return nil
}

// SQLiteTraceReader is a reader that reads trace data from a SQLite database.
type SQLiteTraceReader struct {
	*sql.DB

	filename string
}

// NewSQLiteTraceReader creates a new SQLiteTraceReader.
func NewSQLiteTraceReader(filename string) *SQLiteTraceReader {
	r := &SQLiteTraceReader{
		filename: filename,
	}

	return r
}

// Init establishes a connection to the database.
func (r *SQLiteTraceReader) Init() error {
	db, err := sql.Open("sqlite3", r.filename)
	if err != nil {
		return err
	}

	r.DB = db

	return nil
}

// ListComponents returns the locations that appear in the trace.
func (r *SQLiteTraceReader) ListComponents() ([]string, error) {
	rows, err := r.Query("SELECT DISTINCT location FROM trace ORDER BY location")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []string

	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			return nil, err
		}

		components = append(components, component)
	}

	return components, rows.Err()
}

// ListTasks returns the tasks in the trace that match the query, in the order
// they started.
func (r *SQLiteTraceReader) ListTasks(query TaskQuery) ([]Task, error) {
	sqlStr, args := r.prepareTaskQueryStr(query)

	rows, err := r.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []Task{}

	for rows.Next() {
		var (
			t          Task
			start, end float64
		)

		err := rows.Scan(
			&t.ID,
			&t.ParentID,
			&t.Kind,
			&t.What,
			&t.Where,
			&start,
			&end,
		)
		if err != nil {
			return nil, err
		}

		t.StartTime = sim.VTimeInSec(start)
		t.EndTime = sim.VTimeInSec(end)
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if query.EnableSteps {
		for i := range tasks {
			steps, err := r.listSteps(tasks[i].ID)
			if err != nil {
				return nil, err
			}

			tasks[i].Steps = steps
		}
	}

	return tasks, nil
}

func (r *SQLiteTraceReader) listSteps(taskID string) ([]TaskStep, error) {
	rows, err := r.Query(
		"SELECT time, what FROM trace_step WHERE task_id = ? ORDER BY rowid",
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []TaskStep

	for rows.Next() {
		var (
			step TaskStep
			time float64
		)

		if err := rows.Scan(&time, &step.What); err != nil {
			return nil, err
		}

		step.Time = sim.VTimeInSec(time)
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func (*SQLiteTraceReader) prepareTaskQueryStr(
	query TaskQuery,
) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	if query.ID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, query.ID)
	}

	if query.ParentID != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, query.ParentID)
	}

	if query.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, query.Kind)
	}

	if query.Where != "" {
		conds = append(conds, "location = ?")
		args = append(args, query.Where)
	}

	if query.EnableTimeRange {
		conds = append(conds, "end_time > ? AND start_time < ?")
		args = append(args, query.StartTime, query.EndTime)
	}

	sqlStr := `SELECT task_id, parent_id, kind, what, location,
		start_time, end_time FROM trace`

	if len(conds) > 0 {
		sqlStr += " WHERE " + strings.Join(conds, " AND ")
	}

	sqlStr += " ORDER BY start_time, rowid"

	return sqlStr, args
}
