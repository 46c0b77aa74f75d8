package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	// Drivers register with database/sql; all three are pure Go.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type sqlStore struct {
	db          *sql.DB
	d           dialect
	log         *zap.Logger
	mu          sync.Mutex
	deviceCache map[string]int64 // name → id
}

func openSQL(ctx context.Context, driver, dsn string, d dialect, log *zap.Logger) (Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if d == dialectSQLite {
		// One writer; also keeps ":memory:" a single database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}

	s := &sqlStore{db: db, d: d, log: log.Named("store"), deviceCache: make(map[string]int64)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema_migrations tracker table, then applies any
// pending migrations in version order. Each migration runs in its own
// transaction so a failure leaves previous migrations intact.
func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaMigrationsDDL(s.d)); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("store: query schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations(s.d) {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("store: migration v%d %q: %w", m.version, m.description, err)
		}
		s.log.Info("applied migration", zap.Int("version", m.version), zap.String("description", m.description))
	}
	return nil
}

func (s *sqlStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range m.up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w\nSQL: %s", err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`),
		m.version, m.description,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// rebind rewrites ? placeholders into PostgreSQL's $1, $2, … form.
func (s *sqlStore) rebind(q string) string {
	if s.d != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ensureDevice upserts a device row and returns its id. Ids are cached for
// the lifetime of the store.
func (s *sqlStore) ensureDevice(ctx context.Context, dev Device) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.deviceCache[dev.Name]; ok {
		return id, nil
	}

	var upsertQ string
	switch s.d {
	case dialectPostgres:
		upsertQ = `INSERT INTO devices (name, mode, host)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE
			SET mode=EXCLUDED.mode, host=EXCLUDED.host, last_seen=NOW()`
	case dialectMySQL:
		upsertQ = "INSERT INTO devices (name, mode, host, first_seen, last_seen) " +
			"VALUES (?, ?, ?, NOW(), NOW()) " +
			"ON DUPLICATE KEY UPDATE mode=VALUES(mode), host=VALUES(host), last_seen=NOW()"
	default: // SQLite
		upsertQ = `INSERT INTO devices (name, mode, host)
			VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE
			SET mode=excluded.mode, host=excluded.host, last_seen=CURRENT_TIMESTAMP`
	}

	if _, err := s.db.ExecContext(ctx, upsertQ, dev.Name, dev.Mode, dev.Host); err != nil {
		return 0, fmt.Errorf("store: upsert device %q: %w", dev.Name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id FROM devices WHERE name = ?`), dev.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: query device id %q: %w", dev.Name, err)
	}

	s.deviceCache[dev.Name] = id
	return id, nil
}

// WriteBatch persists one device's samples in a single transaction.
func (s *sqlStore) WriteBatch(ctx context.Context, dev Device, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	deviceID, err := s.ensureDevice(ctx, dev)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.rebind("INSERT INTO samples "+
		"(device_id, variable_id, value_num, value_text, error, collected_ms) "+
		"VALUES (?, ?, ?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range samples {
		var num any
		if r.ValueNum != nil {
			num = *r.ValueNum
		}
		if _, err := stmt.ExecContext(ctx,
			deviceID, r.VariableID, num, r.Text, r.ErrorKind, r.CollectedAt.UnixMilli(),
		); err != nil {
			s.log.Warn("insert sample failed",
				zap.String("device", dev.Name), zap.String("variable", r.VariableID), zap.Error(err))
		}
	}

	return tx.Commit()
}

// LatestSamples returns the newest sample of every variable of a device,
// ordered by variable id.
func (s *sqlStore) LatestSamples(ctx context.Context, device string) ([]Sample, error) {
	q := s.rebind(`SELECT s.variable_id, s.value_num, s.value_text, s.error, s.collected_ms
		FROM samples s
		JOIN devices d ON d.id = s.device_id
		WHERE d.name = ?
		  AND s.id IN (SELECT MAX(id) FROM samples GROUP BY device_id, variable_id)
		ORDER BY s.variable_id`)

	rows, err := s.db.QueryContext(ctx, q, device)
	if err != nil {
		return nil, fmt.Errorf("store: latest samples %q: %w", device, err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			r   Sample
			num sql.NullFloat64
			ms  int64
		)
		if err := rows.Scan(&r.VariableID, &num, &r.Text, &r.ErrorKind, &ms); err != nil {
			return nil, fmt.Errorf("store: scan sample: %w", err)
		}
		if num.Valid {
			v := num.Float64
			r.ValueNum = &v
		}
		r.CollectedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// EnsureDictionary inserts the dictionary row guarded by its unique name; only
// the call that actually created the row inserts the entries, all in one
// transaction. Concurrent or repeated calls leave a single copy.
func (s *sqlStore) EnsureDictionary(ctx context.Context, name string, entries []DictionaryEntry) (bool, error) {
	var guardQ string
	switch s.d {
	case dialectMySQL:
		guardQ = "INSERT IGNORE INTO dictionaries (name) VALUES (?)"
	default:
		guardQ = s.rebind(`INSERT INTO dictionaries (name) VALUES (?) ON CONFLICT(name) DO NOTHING`)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin tx (dictionary): %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, guardQ, name)
	if err != nil {
		return false, fmt.Errorf("store: create dictionary %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: create dictionary %q: %w", name, err)
	}
	if n == 0 {
		return false, nil
	}

	var id int64
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM dictionaries WHERE name = ?`), name).Scan(&id); err != nil {
		return false, fmt.Errorf("store: query dictionary id %q: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO dictionary_entries (dictionary_id, code, label) VALUES (?, ?, ?)`))
	if err != nil {
		return false, fmt.Errorf("store: prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, id, e.Code, e.Label); err != nil {
			return false, fmt.Errorf("store: insert %s[%d]: %w", name, e.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Dictionary returns the entries of a code table ordered by code. An unknown
// name yields an empty slice.
func (s *sqlStore) Dictionary(ctx context.Context, name string) ([]DictionaryEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT e.code, e.label
		FROM dictionary_entries e
		JOIN dictionaries d ON d.id = e.dictionary_id
		WHERE d.name = ?
		ORDER BY e.code`), name)
	if err != nil {
		return nil, fmt.Errorf("store: query dictionary %q: %w", name, err)
	}
	defer rows.Close()

	var out []DictionaryEntry
	for rows.Next() {
		var e DictionaryEntry
		if err := rows.Scan(&e.Code, &e.Label); err != nil {
			return nil, fmt.Errorf("store: scan dictionary entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertVariables writes variable metadata keyed by id.
func (s *sqlStore) UpsertVariables(ctx context.Context, vars []Variable) error {
	if len(vars) == 0 {
		return nil
	}

	var upsertQ string
	switch s.d {
	case dialectPostgres:
		upsertQ = `INSERT INTO variables (id, device, metric, parameter, path)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				device=EXCLUDED.device, metric=EXCLUDED.metric,
				parameter=EXCLUDED.parameter, path=EXCLUDED.path`
	case dialectMySQL:
		upsertQ = "INSERT INTO variables (id, device, metric, parameter, path) " +
			"VALUES (?, ?, ?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE device=VALUES(device), metric=VALUES(metric), " +
			"parameter=VALUES(parameter), path=VALUES(path)"
	default: // SQLite
		upsertQ = `INSERT INTO variables (id, device, metric, parameter, path)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				device=excluded.device, metric=excluded.metric,
				parameter=excluded.parameter, path=excluded.path`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx (variables): %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertQ)
	if err != nil {
		return fmt.Errorf("store: prepare variable upsert: %w", err)
	}
	defer stmt.Close()

	for _, v := range vars {
		if _, err := stmt.ExecContext(ctx, v.ID, v.Device, v.Metric, v.Parameter, v.Path); err != nil {
			return fmt.Errorf("store: upsert variable %q: %w", v.ID, err)
		}
	}
	return tx.Commit()
}

// LookupVariable returns the stored variable with the given id.
func (s *sqlStore) LookupVariable(ctx context.Context, id string) (Variable, bool, error) {
	var v Variable
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, device, metric, parameter, path FROM variables WHERE id = ?`), id,
	).Scan(&v.ID, &v.Device, &v.Metric, &v.Parameter, &v.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return Variable{}, false, nil
	}
	if err != nil {
		return Variable{}, false, fmt.Errorf("store: lookup variable %q: %w", id, err)
	}
	return v, true, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
