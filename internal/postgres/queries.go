package postgres

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS messages (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			sender_id    TEXT NOT NULL,
			content      TEXT NOT NULL CHECK (length(btrim(content)) > 0),
			group_id     TEXT,
			recipient_id TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT messages_target_xor CHECK ((group_id IS NULL) <> (recipient_id IS NULL))
		);
		CREATE INDEX IF NOT EXISTS messages_group_idx
			ON messages (group_id, created_at DESC, id DESC) WHERE group_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS messages_sender_direct_idx
			ON messages (sender_id, recipient_id, created_at DESC, id DESC) WHERE recipient_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS messages_recipient_idx
			ON messages (recipient_id, created_at DESC, id DESC) WHERE recipient_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL,
			user_id  TEXT NOT NULL,
			PRIMARY KEY (group_id, user_id)
		);
	`

	queryInsertMessage = `
		INSERT INTO messages (sender_id, content, group_id, recipient_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, sender_id, content, group_id, recipient_id, created_at;
	`

	// $1/$2: курсор (created_at, id); оба NULL для первой страницы
	cursorCond = `
		($1::timestamptz IS NULL
		 OR created_at < $1
		 OR (created_at = $1 AND id < $2::uuid))
	`

	queryGroupHistory = `
		SELECT id::text, sender_id, content, group_id, recipient_id, created_at
		FROM messages
		WHERE group_id = $3 AND ` + cursorCond + `
		ORDER BY created_at DESC, id DESC
		LIMIT $4;
	`

	queryConversation = `
		SELECT id::text, sender_id, content, group_id, recipient_id, created_at
		FROM messages
		WHERE recipient_id IS NOT NULL
		  AND ((sender_id = $3 AND recipient_id = $4) OR (sender_id = $4 AND recipient_id = $3))
		  AND ` + cursorCond + `
		ORDER BY created_at DESC, id DESC
		LIMIT $5;
	`

	queryDirectForUser = `
		SELECT id::text, sender_id, content, group_id, recipient_id, created_at
		FROM messages
		WHERE recipient_id IS NOT NULL
		  AND (sender_id = $3 OR recipient_id = $3)
		  AND ` + cursorCond + `
		ORDER BY created_at DESC, id DESC
		LIMIT $4;
	`

	queryIsGroupMember = `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2);`
)
