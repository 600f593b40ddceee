package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS mails (
    id                      TEXT PRIMARY KEY,
    title                   TEXT NOT NULL,
    sender                  TEXT NOT NULL,
    sender_email            TEXT NOT NULL,
    summary                 TEXT,
    received_at_unix_millis INTEGER NOT NULL,
    is_read                 BOOLEAN NOT NULL DEFAULT FALSE,
    raw                     BLOB,
    created_at              DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_cursor (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    history_id  INTEGER NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mails_received ON mails(received_at_unix_millis DESC);
CREATE INDEX IF NOT EXISTS idx_mails_unread ON mails(is_read);
`
