package storage

// Migration represents a database migration
type Migration struct {
	Version     string `db:"version"`
	Description string `db:"description"`
	SQL         string `db:"sql"`
}

const (
	sqliteLogTable = `
		CREATE TABLE IF NOT EXISTS log (
			id TEXT PRIMARY KEY NOT NULL,
			image TEXT,
			is_open BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_log_created_at ON log(created_at);
	`

	postgresLogTable = `
		CREATE TABLE IF NOT EXISTS "log" (
			"id" uuid PRIMARY KEY DEFAULT gen_random_uuid() NOT NULL,
			"image" text,
			"is_open" boolean DEFAULT false NOT NULL,
			"created_at" timestamp DEFAULT now() NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_log_created_at ON "log"(created_at);
	`
)

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create log table",
			SQL:         sqliteLogTable,
		},
		{
			Version:     "002",
			Description: "Create config table",
			SQL: `
				CREATE TABLE IF NOT EXISTS config (
					id TEXT PRIMARY KEY NOT NULL,
					singleton_key TEXT NOT NULL DEFAULT 'default',
					webhook_url TEXT
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_config_singleton ON config(singleton_key);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts.
// Databases created by the earlier deployment have a keyless config table;
// migration 003 collapses it to one keyed row.
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create log table",
			SQL:         postgresLogTable,
		},
		{
			Version:     "002",
			Description: "Create config table",
			SQL: `
				CREATE TABLE IF NOT EXISTS "config" (
					"id" uuid PRIMARY KEY DEFAULT gen_random_uuid() NOT NULL,
					"webhook_url" text
				);

				ALTER TABLE "config" ADD COLUMN IF NOT EXISTS singleton_key text;
			`,
		},
		{
			Version:     "003",
			Description: "Key config by a fixed singleton key",
			SQL: `
				DELETE FROM "config" c USING "config" keep
				WHERE c.singleton_key IS NULL AND keep.singleton_key IS NULL AND c.id > keep.id;

				UPDATE "config" SET singleton_key = 'default'
				WHERE singleton_key IS NULL
				  AND NOT EXISTS (SELECT 1 FROM "config" WHERE singleton_key = 'default');

				DELETE FROM "config" WHERE singleton_key IS NULL;

				ALTER TABLE "config" ALTER COLUMN singleton_key SET DEFAULT 'default';
				ALTER TABLE "config" ALTER COLUMN singleton_key SET NOT NULL;

				CREATE UNIQUE INDEX IF NOT EXISTS idx_config_singleton ON "config"(singleton_key);
			`,
		},
	}
}
