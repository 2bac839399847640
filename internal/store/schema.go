package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS devices (
    device_id            TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    mac_address          TEXT NOT NULL,
    location             TEXT,
    first_seen           TEXT NOT NULL,
    last_seen            TEXT NOT NULL,
    total_connections    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS turns (
    id                   TEXT PRIMARY KEY,
    device_id            TEXT NOT NULL REFERENCES devices(device_id) ON DELETE CASCADE,
    user_message         TEXT NOT NULL,
    bot_response         TEXT NOT NULL,
    timestamp            TEXT NOT NULL,
    location             TEXT
);

CREATE TABLE IF NOT EXISTS device_stats (
    device_id            TEXT PRIMARY KEY REFERENCES devices(device_id) ON DELETE CASCADE,
    computed_at          TEXT NOT NULL,
    source_turn_count    INTEGER NOT NULL,
    payload              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_device_time ON turns(device_id, timestamp);
`
