package store

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
	dialectMySQL
)

// migration is a single, ordered schema change, applied exactly once and
// recorded in schema_migrations.
type migration struct {
	version     int
	description string
	up          []string // run in a single transaction
}

// migrations returns all migrations in ascending version order for the given
// dialect. New migrations are appended, never inserted or renumbered.
func migrations(d dialect) []migration {
	return []migration{
		{
			version:     1,
			description: "initial schema: devices and samples tables",
			up:          v1Schema(d),
		},
		{
			version:     2,
			description: "code tables: dictionaries and dictionary_entries",
			up:          v2Schema(d),
		},
		{
			version:     3,
			description: "variable metadata table",
			up:          v3Schema(d),
		},
	}
}

// schemaMigrationsDDL returns the CREATE TABLE for the migrations tracker.
// The tracker is created before any migration runs and is not itself versioned.
func schemaMigrationsDDL(d dialect) string {
	switch d {
	case dialectPostgres:
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT    NOT NULL DEFAULT '',
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	case dialectMySQL:
		// MySQL does not allow DEFAULT values on TEXT/BLOB columns.
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description VARCHAR(255) NOT NULL DEFAULT '',
			applied_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	default: // SQLite
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT    NOT NULL DEFAULT '',
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}
}

// v1Schema creates devices and samples. collected_ms holds unix milliseconds
// so no driver has to agree on a time type.
// CREATE INDEX omits IF NOT EXISTS: MySQL <8.0.12 doesn't support it.
func v1Schema(d dialect) []string {
	switch d {
	case dialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS devices (
				id         BIGSERIAL PRIMARY KEY,
				name       TEXT UNIQUE NOT NULL,
				mode       TEXT NOT NULL DEFAULT '',
				host       TEXT NOT NULL DEFAULT '',
				first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_seen  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS samples (
				id           BIGSERIAL PRIMARY KEY,
				device_id    BIGINT NOT NULL REFERENCES devices(id),
				variable_id  TEXT NOT NULL,
				value_num    DOUBLE PRECISION,
				value_text   TEXT NOT NULL DEFAULT '',
				error        TEXT NOT NULL DEFAULT '',
				collected_ms BIGINT NOT NULL
			)`,
			`CREATE INDEX idx_samples_device_var ON samples (device_id, variable_id, collected_ms DESC)`,
		}

	case dialectMySQL:
		// Index prefix lengths are required for long VARCHAR columns.
		return []string{
			"CREATE TABLE IF NOT EXISTS devices (" +
				"  id         BIGINT AUTO_INCREMENT PRIMARY KEY," +
				"  name       VARCHAR(255) UNIQUE NOT NULL," +
				"  mode       VARCHAR(20)  NOT NULL DEFAULT ''," +
				"  host       VARCHAR(255) NOT NULL DEFAULT ''," +
				"  first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP," +
				"  last_seen  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
			"CREATE TABLE IF NOT EXISTS samples (" +
				"  id           BIGINT AUTO_INCREMENT PRIMARY KEY," +
				"  device_id    BIGINT NOT NULL," +
				"  variable_id  VARCHAR(255) NOT NULL," +
				"  value_num    DOUBLE," +
				"  value_text   TEXT NOT NULL," +
				"  error        VARCHAR(50) NOT NULL DEFAULT ''," +
				"  collected_ms BIGINT NOT NULL," +
				"  CONSTRAINT fk_samples_device FOREIGN KEY (device_id) REFERENCES devices(id)" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
			"CREATE INDEX idx_samples_device_var ON samples (device_id, variable_id(100), collected_ms)",
		}

	default: // SQLite
		return []string{
			`CREATE TABLE IF NOT EXISTS devices (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT UNIQUE NOT NULL,
				mode       TEXT NOT NULL DEFAULT '',
				host       TEXT NOT NULL DEFAULT '',
				first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_seen  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS samples (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				device_id    INTEGER NOT NULL REFERENCES devices(id),
				variable_id  TEXT NOT NULL,
				value_num    REAL,
				value_text   TEXT NOT NULL DEFAULT '',
				error        TEXT NOT NULL DEFAULT '',
				collected_ms INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_samples_device_var ON samples (device_id, variable_id, collected_ms DESC)`,
		}
	}
}

// v2Schema adds the code tables. dictionaries.name is unique so provisioning
// can be a single guarded insert.
func v2Schema(d dialect) []string {
	switch d {
	case dialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS dictionaries (
				id         BIGSERIAL PRIMARY KEY,
				name       TEXT UNIQUE NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS dictionary_entries (
				dictionary_id BIGINT NOT NULL REFERENCES dictionaries(id),
				code          INTEGER NOT NULL,
				label         TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (dictionary_id, code)
			)`,
		}
	case dialectMySQL:
		return []string{
			"CREATE TABLE IF NOT EXISTS dictionaries (" +
				"  id         BIGINT AUTO_INCREMENT PRIMARY KEY," +
				"  name       VARCHAR(100) UNIQUE NOT NULL," +
				"  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
			"CREATE TABLE IF NOT EXISTS dictionary_entries (" +
				"  dictionary_id BIGINT NOT NULL," +
				"  code          INT NOT NULL," +
				"  label         VARCHAR(100) NOT NULL DEFAULT ''," +
				"  PRIMARY KEY (dictionary_id, code)," +
				"  CONSTRAINT fk_entries_dictionary FOREIGN KEY (dictionary_id) REFERENCES dictionaries(id)" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		}
	default: // SQLite
		return []string{
			`CREATE TABLE IF NOT EXISTS dictionaries (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT UNIQUE NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS dictionary_entries (
				dictionary_id INTEGER NOT NULL REFERENCES dictionaries(id),
				code          INTEGER NOT NULL,
				label         TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (dictionary_id, code)
			)`,
		}
	}
}

// v3Schema adds the variables table behind LookupVariable.
func v3Schema(d dialect) []string {
	switch d {
	case dialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS variables (
				id        TEXT PRIMARY KEY,
				device    TEXT NOT NULL DEFAULT '',
				metric    INTEGER NOT NULL,
				parameter TEXT NOT NULL DEFAULT '',
				path      TEXT NOT NULL DEFAULT ''
			)`,
		}
	case dialectMySQL:
		return []string{
			"CREATE TABLE IF NOT EXISTS variables (" +
				"  id        VARCHAR(255) PRIMARY KEY," +
				"  device    VARCHAR(255) NOT NULL DEFAULT ''," +
				"  metric    INT NOT NULL," +
				"  parameter VARCHAR(1024) NOT NULL DEFAULT ''," +
				"  path      VARCHAR(1024) NOT NULL DEFAULT ''" +
				") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		}
	default: // SQLite
		return []string{
			`CREATE TABLE IF NOT EXISTS variables (
				id        TEXT PRIMARY KEY,
				device    TEXT NOT NULL DEFAULT '',
				metric    INTEGER NOT NULL,
				parameter TEXT NOT NULL DEFAULT '',
				path      TEXT NOT NULL DEFAULT ''
			)`,
		}
	}
}
