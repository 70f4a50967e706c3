package store

const schema = `
CREATE TABLE IF NOT EXISTS suspended_tabs (
    tab_id TEXT PRIMARY KEY,
    original_url TEXT NOT NULL,
    title TEXT,
    fav_icon_url TEXT,
    suspended_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS session_tabs (
    session_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    title TEXT,
    fav_icon_url TEXT,
    PRIMARY KEY (session_id, position),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_suspended_url ON suspended_tabs(original_url);
CREATE INDEX IF NOT EXISTS idx_session_tabs ON session_tabs(session_id);
`
