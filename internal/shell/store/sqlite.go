package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/hostprov/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProvision(ctx context.Context, rec *domain.ProvisionRecord) error {
	return createProvision(ctx, s.db, rec)
}

func (s *SQLiteStore) GetProvision(ctx context.Context, id string) (*domain.ProvisionRecord, error) {
	return getProvision(ctx, s.db, "GetProvision", "id", id)
}

func (s *SQLiteStore) GetProvisionByOrderRef(ctx context.Context, orderRef string) (*domain.ProvisionRecord, error) {
	return getProvision(ctx, s.db, "GetProvisionByOrderRef", "order_ref", orderRef)
}

func (s *SQLiteStore) UpdateProvision(ctx context.Context, rec *domain.ProvisionRecord) error {
	return updateProvision(ctx, s.db, rec)
}

func (s *SQLiteStore) ListProvisions(ctx context.Context, opts ListOptions) ([]domain.ProvisionRecord, error) {
	return listProvisions(ctx, s.db, opts)
}

func (s *SQLiteStore) ListSSLPending(ctx context.Context, limit int) ([]domain.ProvisionRecord, error) {
	return listSSLPending(ctx, s.db, limit)
}

func (s *SQLiteStore) MarkSSLActive(ctx context.Context, id string, at time.Time) error {
	return markSSLActive(ctx, s.db, id, at)
}

func (s *SQLiteStore) HasWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	return hasWebhookEvent(ctx, s.db, eventID)
}

func (s *SQLiteStore) RecordWebhookEvent(ctx context.Context, eventID, orderRef string) (bool, error) {
	return recordWebhookEvent(ctx, s.db, eventID, orderRef)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateProvision(ctx context.Context, rec *domain.ProvisionRecord) error {
	return createProvision(ctx, s.tx, rec)
}

func (s *txSQLiteStore) GetProvision(ctx context.Context, id string) (*domain.ProvisionRecord, error) {
	return getProvision(ctx, s.tx, "GetProvision", "id", id)
}

func (s *txSQLiteStore) GetProvisionByOrderRef(ctx context.Context, orderRef string) (*domain.ProvisionRecord, error) {
	return getProvision(ctx, s.tx, "GetProvisionByOrderRef", "order_ref", orderRef)
}

func (s *txSQLiteStore) UpdateProvision(ctx context.Context, rec *domain.ProvisionRecord) error {
	return updateProvision(ctx, s.tx, rec)
}

func (s *txSQLiteStore) ListProvisions(ctx context.Context, opts ListOptions) ([]domain.ProvisionRecord, error) {
	return listProvisions(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ListSSLPending(ctx context.Context, limit int) ([]domain.ProvisionRecord, error) {
	return listSSLPending(ctx, s.tx, limit)
}

func (s *txSQLiteStore) MarkSSLActive(ctx context.Context, id string, at time.Time) error {
	return markSSLActive(ctx, s.tx, id, at)
}

func (s *txSQLiteStore) HasWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	return hasWebhookEvent(ctx, s.tx, eventID)
}

func (s *txSQLiteStore) RecordWebhookEvent(ctx context.Context, eventID, orderRef string) (bool, error) {
	return recordWebhookEvent(ctx, s.tx, eventID, orderRef)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(context.Context) error {
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Provision Rows
// =============================================================================

// provisionRow represents a provision row in the database.
type provisionRow struct {
	ID                    string `db:"id"`
	OrderRef              string `db:"order_ref"`
	ClientEmail           string `db:"client_email"`
	DomainStrategy        string `db:"domain_strategy"`
	PlanID                string `db:"plan_id"`
	BillingCycle          string `db:"billing_cycle"`
	Username              string `db:"username"`
	Domain                string `db:"domain"`
	PasswordEncrypted     []byte `db:"password_encrypted"`
	Success               bool   `db:"success"`
	SSLActive             bool   `db:"ssl_active"`
	WelcomePageDeployed   bool   `db:"welcome_page_deployed"`
	WelcomeEmailSent      bool   `db:"welcome_email_sent"`
	DomainConfigEmailSent bool   `db:"domain_config_email_sent"`
	Warnings              string `db:"warnings"`
	Errors                string `db:"errors"`
	Attempts              int    `db:"attempts"`
	CreatedAt             string `db:"created_at"`
	UpdatedAt             string `db:"updated_at"`
}

func provisionParams(op string, rec *domain.ProvisionRecord) (map[string]any, error) {
	warnings, err := json.Marshal(nonNil(rec.Warnings))
	if err != nil {
		return nil, NewStoreError(op, "provision", rec.ID, "failed to serialize warnings", ErrInvalidData)
	}
	errs, err := json.Marshal(nonNil(rec.Errors))
	if err != nil {
		return nil, NewStoreError(op, "provision", rec.ID, "failed to serialize errors", ErrInvalidData)
	}

	return map[string]any{
		"id":                       rec.ID,
		"order_ref":                rec.OrderRef,
		"client_email":             rec.ClientEmail,
		"domain_strategy":          string(rec.Strategy),
		"plan_id":                  rec.PlanID,
		"billing_cycle":            string(rec.BillingCycle),
		"username":                 rec.Username,
		"domain":                   rec.Domain,
		"password_encrypted":       rec.PasswordEncrypted,
		"success":                  rec.Success,
		"ssl_active":               rec.SSLActive,
		"welcome_page_deployed":    rec.WelcomePageDeployed,
		"welcome_email_sent":       rec.WelcomeEmailSent,
		"domain_config_email_sent": rec.DomainConfigEmailSent,
		"warnings":                 string(warnings),
		"errors":                   string(errs),
		"attempts":                 rec.Attempts,
		"created_at":               rec.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":               rec.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func rowToProvision(row *provisionRow) (*domain.ProvisionRecord, error) {
	rec := &domain.ProvisionRecord{
		ID:                    row.ID,
		OrderRef:              row.OrderRef,
		ClientEmail:           row.ClientEmail,
		Strategy:              domain.DomainStrategy(row.DomainStrategy),
		PlanID:                row.PlanID,
		BillingCycle:          domain.BillingCycle(row.BillingCycle),
		Username:              row.Username,
		Domain:                row.Domain,
		PasswordEncrypted:     row.PasswordEncrypted,
		Success:               row.Success,
		SSLActive:             row.SSLActive,
		WelcomePageDeployed:   row.WelcomePageDeployed,
		WelcomeEmailSent:      row.WelcomeEmailSent,
		DomainConfigEmailSent: row.DomainConfigEmailSent,
		Attempts:              row.Attempts,
	}

	if err := json.Unmarshal([]byte(row.Warnings), &rec.Warnings); err != nil {
		return nil, NewStoreError("rowToProvision", "provision", row.ID, "failed to parse warnings", ErrInvalidData)
	}
	if err := json.Unmarshal([]byte(row.Errors), &rec.Errors); err != nil {
		return nil, NewStoreError("rowToProvision", "provision", row.ID, "failed to parse errors", ErrInvalidData)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339, row.CreatedAt); err != nil {
		return nil, NewStoreError("rowToProvision", "provision", row.ID, "failed to parse created_at", ErrInvalidData)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339, row.UpdatedAt); err != nil {
		return nil, NewStoreError("rowToProvision", "provision", row.ID, "failed to parse updated_at", ErrInvalidData)
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createProvision(ctx context.Context, exec executor, rec *domain.ProvisionRecord) error {
	row, err := provisionParams("CreateProvision", rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO provisions (
			id, order_ref, client_email, domain_strategy, plan_id, billing_cycle,
			username, domain, password_encrypted, success, ssl_active,
			welcome_page_deployed, welcome_email_sent, domain_config_email_sent,
			warnings, errors, attempts, created_at, updated_at
		) VALUES (
			:id, :order_ref, :client_email, :domain_strategy, :plan_id, :billing_cycle,
			:username, :domain, :password_encrypted, :success, :ssl_active,
			:welcome_page_deployed, :welcome_email_sent, :domain_config_email_sent,
			:warnings, :errors, :attempts, :created_at, :updated_at
		)`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: provisions.id") {
			return NewStoreError("CreateProvision", "provision", rec.ID, "provision with this ID already exists", ErrDuplicateID)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: provisions.order_ref") {
			return NewStoreError("CreateProvision", "provision", rec.ID, "provision for this order already exists", ErrDuplicateOrderRef)
		}
		return NewStoreError("CreateProvision", "provision", rec.ID, err.Error(), err)
	}
	return nil
}

func getProvision(ctx context.Context, exec executor, op, column, value string) (*domain.ProvisionRecord, error) {
	query := `SELECT * FROM provisions WHERE ` + column + ` = ?`

	var row provisionRow
	if err := exec.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError(op, "provision", value, "provision not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "provision", value, err.Error(), err)
	}
	return rowToProvision(&row)
}

func updateProvision(ctx context.Context, exec executor, rec *domain.ProvisionRecord) error {
	row, err := provisionParams("UpdateProvision", rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE provisions SET
			username = :username,
			domain = :domain,
			password_encrypted = :password_encrypted,
			success = :success,
			ssl_active = :ssl_active,
			welcome_page_deployed = :welcome_page_deployed,
			welcome_email_sent = :welcome_email_sent,
			domain_config_email_sent = :domain_config_email_sent,
			warnings = :warnings,
			errors = :errors,
			attempts = :attempts,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateProvision", "provision", rec.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateProvision", "provision", rec.ID, "provision not found", ErrNotFound)
	}
	return nil
}

func listProvisions(ctx context.Context, exec executor, opts ListOptions) ([]domain.ProvisionRecord, error) {
	opts = opts.Normalize()

	var (
		rows []provisionRow
		err  error
	)
	if opts.ClientEmail != "" {
		query := `SELECT * FROM provisions WHERE client_email = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, opts.ClientEmail, opts.Limit, opts.Offset)
	} else {
		query := `SELECT * FROM provisions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListProvisions", "provision", "", err.Error(), err)
	}
	return rowsToProvisions(rows)
}

func listSSLPending(ctx context.Context, exec executor, limit int) ([]domain.ProvisionRecord, error) {
	limit = ListOptions{Limit: limit}.Normalize().Limit
	query := `SELECT * FROM provisions WHERE success = 1 AND ssl_active = 0 ORDER BY updated_at LIMIT ?`

	var rows []provisionRow
	if err := exec.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, NewStoreError("ListSSLPending", "provision", "", err.Error(), err)
	}
	return rowsToProvisions(rows)
}

func rowsToProvisions(rows []provisionRow) ([]domain.ProvisionRecord, error) {
	recs := make([]domain.ProvisionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rowToProvision(&rows[i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

func markSSLActive(ctx context.Context, exec executor, id string, at time.Time) error {
	query := `UPDATE provisions SET ssl_active = 1, updated_at = ? WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("MarkSSLActive", "provision", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("MarkSSLActive", "provision", id, "provision not found", ErrNotFound)
	}
	return nil
}

func hasWebhookEvent(ctx context.Context, exec executor, eventID string) (bool, error) {
	var n int
	if err := exec.GetContext(ctx, &n, `SELECT COUNT(1) FROM webhook_events WHERE event_id = ?`, eventID); err != nil {
		return false, NewStoreError("HasWebhookEvent", "webhook_event", eventID, err.Error(), err)
	}
	return n > 0, nil
}

// recordWebhookEvent stores an event ID and reports whether it was new.
func recordWebhookEvent(ctx context.Context, exec executor, eventID, orderRef string) (bool, error) {
	query := `INSERT OR IGNORE INTO webhook_events (event_id, order_ref, received_at) VALUES (?, ?, ?)`

	result, err := exec.ExecContext(ctx, query, eventID, orderRef, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, NewStoreError("RecordWebhookEvent", "webhook_event", eventID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}
