package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

const versionColumns = `
	v.id, v.name, v.version, v.type, v.description, v.file_name,
	v.object_key, v.digest, v.size, v.metadata, v.created_at,
	COALESCE((SELECT array_agg(a.alias ORDER BY a.alias)
	          FROM artifact_aliases a WHERE a.version_id = v.id), '{}')`

// PostgresRegistry stores artifact versions and run lineage for one project.
type PostgresRegistry struct {
	db      *sql.DB
	project string
}

// NewPostgresRegistry opens a connection to PostgreSQL, retrying the initial
// ping with retry, runs schema migrations, and returns a ready registry.
func NewPostgresRegistry(ctx context.Context, dsn, project string, retry *utils.RetryConfig) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	r := &PostgresRegistry{db: db, project: project}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return r, nil
}

func (r *PostgresRegistry) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id          BIGSERIAL    PRIMARY KEY,
			project     TEXT         NOT NULL,
			job_type    TEXT         NOT NULL,
			config      JSONB        NOT NULL DEFAULT '{}',
			status      TEXT         NOT NULL,
			started_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS artifact_versions (
			id          BIGSERIAL    PRIMARY KEY,
			project     TEXT         NOT NULL,
			name        TEXT         NOT NULL,
			version     INTEGER      NOT NULL,
			type        TEXT         NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			file_name   TEXT         NOT NULL,
			object_key  TEXT         NOT NULL,
			digest      TEXT         NOT NULL,
			size        BIGINT       NOT NULL DEFAULT 0,
			metadata    JSONB        NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (project, name, version)
		);

		CREATE TABLE IF NOT EXISTS artifact_aliases (
			project    TEXT   NOT NULL,
			name       TEXT   NOT NULL,
			alias      TEXT   NOT NULL,
			version_id BIGINT NOT NULL REFERENCES artifact_versions(id),
			PRIMARY KEY (project, name, alias)
		);

		CREATE TABLE IF NOT EXISTS artifact_usage (
			run_id     BIGINT NOT NULL REFERENCES runs(id),
			version_id BIGINT NOT NULL REFERENCES artifact_versions(id),
			direction  TEXT   NOT NULL,
			PRIMARY KEY (run_id, version_id, direction)
		);

		CREATE INDEX IF NOT EXISTS idx_artifact_versions_digest ON artifact_versions(project, name, digest);
	`)
	return err
}

// StartRun records a new running run with its parameters.
func (r *PostgresRegistry) StartRun(ctx context.Context, jobType string, config map[string]any) (*models.Run, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode run config: %w", err)
	}

	run := &models.Run{Project: r.project, JobType: jobType, Config: config, Status: models.RunRunning}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO runs (project, job_type, config, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, started_at
	`, r.project, jobType, raw, string(models.RunRunning)).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: start run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with its final status.
func (r *PostgresRegistry) FinishRun(ctx context.Context, runID int64, status models.RunStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = $1, finished_at = NOW() WHERE id = $2`,
		string(status), runID)
	if err != nil {
		return fmt.Errorf("postgres: finish run %d: %w", runID, err)
	}
	return nil
}

// Resolve looks a reference up by explicit version or by alias. A reference
// qualified with a project is looked up in that project instead of the
// registry's own.
func (r *PostgresRegistry) Resolve(ctx context.Context, ref models.ArtifactRef) (*models.ArtifactVersion, error) {
	project := r.project
	if ref.Project != "" {
		project = ref.Project
	}

	var row *sql.Row
	if ref.ByVersion() {
		row = r.db.QueryRowContext(ctx, `SELECT `+versionColumns+`
			FROM artifact_versions v
			WHERE v.project = $1 AND v.name = $2 AND v.version = $3
		`, project, ref.Name, ref.Version)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT `+versionColumns+`
			FROM artifact_versions v
			JOIN artifact_aliases al ON al.version_id = v.id
			WHERE al.project = $1 AND al.name = $2 AND al.alias = $3
		`, project, ref.Name, ref.Alias)
	}

	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: resolve %s: %w", ref, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: resolve %s: %w", ref, err)
	}
	return v, nil
}

// Insert registers v as the next version of its name and points the latest
// alias at it. The version number, ID and creation time are assigned here.
func (r *PostgresRegistry) Insert(ctx context.Context, v *models.ArtifactVersion) (*models.ArtifactVersion, error) {
	meta, err := json.Marshal(v.Metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	// Serialises concurrent writers of the same artifact name.
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::text || '/' || $2::text))`, r.project, v.Name); err != nil {
		return nil, fmt.Errorf("postgres: lock %s: %w", v.Name, err)
	}

	next := 0
	var existingType string
	var latest int
	err = tx.QueryRowContext(ctx, `
		SELECT type, version FROM artifact_versions
		WHERE project = $1 AND name = $2
		ORDER BY version DESC
		LIMIT 1
	`, r.project, v.Name).Scan(&existingType, &latest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("postgres: latest version of %s: %w", v.Name, err)
	case existingType != v.Type:
		return nil, fmt.Errorf("postgres: %s is %q, not %q: %w", v.Name, existingType, v.Type, ErrTypeMismatch)
	default:
		next = latest + 1
	}

	out := *v
	out.Version = next
	out.Aliases = []string{models.AliasLatest}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO artifact_versions
			(project, name, version, type, description, file_name, object_key, digest, size, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, r.project, v.Name, next, v.Type, v.Description, v.FileName, v.ObjectKey, v.Digest, v.Size, meta,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: insert %s:v%d: %w", v.Name, next, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifact_aliases (project, name, alias, version_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project, name, alias) DO UPDATE SET version_id = EXCLUDED.version_id
	`, r.project, v.Name, models.AliasLatest, out.ID); err != nil {
		return nil, fmt.Errorf("postgres: move latest alias: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}
	return &out, nil
}

// RecordUsage links a run to an artifact version it read or wrote.
func (r *PostgresRegistry) RecordUsage(ctx context.Context, runID, versionID int64, dir UsageDirection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO artifact_usage (run_id, version_id, direction)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, runID, versionID, string(dir))
	if err != nil {
		return fmt.Errorf("postgres: record %s usage: %w", dir, err)
	}
	return nil
}

func (r *PostgresRegistry) Close() error {
	return r.db.Close()
}

func scanVersion(row *sql.Row) (*models.ArtifactVersion, error) {
	v := &models.ArtifactVersion{}
	var meta []byte
	if err := row.Scan(
		&v.ID, &v.Name, &v.Version, &v.Type, &v.Description, &v.FileName,
		&v.ObjectKey, &v.Digest, &v.Size, &meta, &v.CreatedAt,
		pq.Array(&v.Aliases),
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &v.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return v, nil
}
