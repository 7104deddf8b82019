package sqlite

// schema is applied once at open time. Schema changes after the initial
// release go through migrations/ instead, the way the teacher separates
// its base schema.go from its migrations package.
const schema = `
CREATE TABLE IF NOT EXISTS block_sequence (
    sequence_name TEXT PRIMARY KEY,
    next_value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS blocks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    block_number INTEGER NOT NULL UNIQUE,
    previous_hash TEXT NOT NULL,
    data TEXT,
    timestamp DATETIME NOT NULL,
    hash TEXT NOT NULL,
    signature TEXT NOT NULL,
    signer_public_key TEXT NOT NULL,
    is_encrypted INTEGER NOT NULL DEFAULT 0,
    category TEXT DEFAULT '',
    keywords TEXT DEFAULT '',
    custom_metadata TEXT DEFAULT '{}',
    off_chain_data_hash TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_hash ON blocks(hash);
CREATE INDEX IF NOT EXISTS idx_blocks_signer ON blocks(signer_public_key);
CREATE INDEX IF NOT EXISTS idx_blocks_timestamp ON blocks(timestamp);

CREATE TABLE IF NOT EXISTS authorized_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    public_key TEXT NOT NULL,
    owner_name TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'operator',
    created_at DATETIME NOT NULL,
    revoked_at DATETIME,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_authorized_keys_pubkey ON authorized_keys(public_key);
CREATE INDEX IF NOT EXISTS idx_authorized_keys_active ON authorized_keys(public_key, is_active);

CREATE TABLE IF NOT EXISTS off_chain_data (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    data_hash TEXT NOT NULL UNIQUE,
    signature TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_size INTEGER NOT NULL,
    content_type TEXT NOT NULL DEFAULT '' CHECK(length(content_type) <= 100),
    encryption_iv TEXT DEFAULT '',
    encryption_salt TEXT DEFAULT '',
    signer_public_key TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS configuration (
    config_key TEXT NOT NULL,
    config_type TEXT NOT NULL DEFAULT 'string',
    config_value TEXT NOT NULL,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (config_key, config_type)
);

CREATE TABLE IF NOT EXISTS configuration_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    config_key TEXT NOT NULL,
    config_type TEXT NOT NULL,
    old_value TEXT,
    new_value TEXT NOT NULL,
    changed_at DATETIME NOT NULL
);
`
