package infra

// migration é um passo de schema com sua versão.
type migration struct {
	version int
	sql     string
}

// migrations precisam ser sequenciais a partir de 1.
//
// created_at é unix nano (UTC): a ordenação não depende do formato texto
// que o driver usa para DATETIME.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_preferences (
	user_id        TEXT PRIMARY KEY,
	report_updates INTEGER NOT NULL DEFAULT 1,
	comments       INTEGER NOT NULL DEFAULT 1,
	email          INTEGER NOT NULL DEFAULT 1,
	updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	type       TEXT NOT NULL,
	related_id TEXT,
	read       INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
-- tabela da aplicação; criada aqui para o serviço subir sozinho.
CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT ''
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
