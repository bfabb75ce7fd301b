package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/jsonify/vox/pkg/models"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS transcription_jobs (
	job_id       TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	file_path    TEXT,
	status       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	language     TEXT,
	formats      JSONB,
	result_text  TEXT,
	output_paths JSONB,
	engine       TEXT,
	duration     DOUBLE PRECISION,
	confidence   DOUBLE PRECISION,
	error        TEXT,
	error_kind   TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
)`

// PostgresJobStore is the durable job archive.
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore connects, verifies reachability and ensures the
// schema exists.
func NewPostgresJobStore(connStr string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(jobsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring jobs schema: %w", err)
	}
	return &PostgresJobStore{db: db}, nil
}

// Save upserts the full job record.
func (s *PostgresJobStore) Save(job *models.TranscriptionJob) error {
	formatsJSON, err := json.Marshal(job.Formats)
	if err != nil {
		return fmt.Errorf("encoding formats: %w", err)
	}
	outputsJSON, err := json.Marshal(job.OutputPaths)
	if err != nil {
		return fmt.Errorf("encoding output paths: %w", err)
	}

	query := `
	INSERT INTO transcription_jobs (
		job_id, filename, file_path, status, progress, language, formats,
		result_text, output_paths, engine, duration, confidence,
		error, error_kind, created_at, completed_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	ON CONFLICT (job_id) DO UPDATE SET
		status       = EXCLUDED.status,
		progress     = EXCLUDED.progress,
		language     = EXCLUDED.language,
		formats      = EXCLUDED.formats,
		result_text  = EXCLUDED.result_text,
		output_paths = EXCLUDED.output_paths,
		engine       = EXCLUDED.engine,
		duration     = EXCLUDED.duration,
		confidence   = EXCLUDED.confidence,
		error        = EXCLUDED.error,
		error_kind   = EXCLUDED.error_kind,
		completed_at = EXCLUDED.completed_at`

	var completedAt sql.NullTime
	if !job.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: job.CompletedAt, Valid: true}
	}

	_, err = s.db.Exec(query,
		job.JobID, job.Filename, job.FilePath, job.Status, job.Progress,
		job.Language, formatsJSON, job.ResultText, outputsJSON,
		string(job.Engine), job.Duration, job.Confidence,
		job.Error, job.ErrorKind, job.CreatedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("saving job %s: %w", job.JobID, err)
	}
	return nil
}

const jobColumns = `
	job_id, filename, file_path, status, progress, language, formats,
	result_text, output_paths, engine, duration, confidence,
	error, error_kind, created_at, completed_at`

// Get returns one job by ID.
func (s *PostgresJobStore) Get(jobID string) (*models.TranscriptionJob, error) {
	row := s.db.QueryRow(
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying job %s: %w", jobID, err)
	}
	return job, nil
}

// Update is read-modify-write; job records have a single writer.
func (s *PostgresJobStore) Update(jobID string, fn func(*models.TranscriptionJob)) error {
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}
	fn(job)
	return s.Save(job)
}

// List returns the 100 most recent jobs.
func (s *PostgresJobStore) List() ([]*models.TranscriptionJob, error) {
	rows, err := s.db.Query(
		`SELECT ` + jobColumns + ` FROM transcription_jobs ORDER BY created_at DESC LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.TranscriptionJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes the record.
func (s *PostgresJobStore) Delete(jobID string) error {
	result, err := s.db.Exec(`DELETE FROM transcription_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("deleting job %s: %w", jobID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.TranscriptionJob, error) {
	var (
		job                            models.TranscriptionJob
		filePath, language, resultText sql.NullString
		engine, errMsg, errKind        sql.NullString
		duration, confidence           sql.NullFloat64
		completedAt                    sql.NullTime
		formatsJSON, outputsJSON       []byte
	)

	err := row.Scan(
		&job.JobID, &job.Filename, &filePath, &job.Status, &job.Progress,
		&language, &formatsJSON, &resultText, &outputsJSON,
		&engine, &duration, &confidence,
		&errMsg, &errKind, &job.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.FilePath = filePath.String
	job.Language = language.String
	job.ResultText = resultText.String
	job.Engine = models.Engine(engine.String)
	job.Duration = duration.Float64
	job.Confidence = confidence.Float64
	job.Error = errMsg.String
	job.ErrorKind = errKind.String
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	if len(formatsJSON) > 0 {
		json.Unmarshal(formatsJSON, &job.Formats)
	}
	if len(outputsJSON) > 0 {
		json.Unmarshal(outputsJSON, &job.OutputPaths)
	}
	return &job, nil
}
