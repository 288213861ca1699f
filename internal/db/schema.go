package db

const schema = `
CREATE TABLE IF NOT EXISTS stories (
    story_id    TEXT PRIMARY KEY,
    platform_id TEXT NOT NULL,
    title       TEXT NOT NULL,
    state       TEXT NOT NULL DEFAULT 'draft' CHECK(state IN ('draft','review','published')),
    created_at  DATETIME DEFAULT (datetime('now')),
    updated_at  DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_stories_platform ON stories(platform_id);
CREATE INDEX IF NOT EXISTS idx_stories_state ON stories(state);
CREATE INDEX IF NOT EXISTS idx_stories_updated ON stories(updated_at);

CREATE TABLE IF NOT EXISTS story_versions (
    story_version_id TEXT PRIMARY KEY,
    story_id         TEXT NOT NULL REFERENCES stories(story_id),
    body             TEXT NOT NULL,
    created_at       DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_versions_story ON story_versions(story_id, created_at);

CREATE TABLE IF NOT EXISTS claims (
    claim_id         TEXT PRIMARY KEY,
    story_id         TEXT NOT NULL REFERENCES stories(story_id),
    story_version_id TEXT NOT NULL REFERENCES story_versions(story_version_id),
    claim_type       TEXT NOT NULL CHECK(claim_type IN ('factual','statistical','attribution','interpretation')),
    text             TEXT NOT NULL,
    entities         TEXT DEFAULT '[]',
    support_status   TEXT NOT NULL DEFAULT 'unsupported' CHECK(support_status IN ('unsupported','partially_supported','supported','contradicted')),
    created_at       DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_claims_story ON claims(story_id);
CREATE INDEX IF NOT EXISTS idx_claims_version ON claims(story_version_id);

CREATE TABLE IF NOT EXISTS evidence_objects (
    evidence_id_hash TEXT PRIMARY KEY,
    blob_uri         TEXT NOT NULL,
    media_type       TEXT NOT NULL DEFAULT 'application/octet-stream',
    provenance       TEXT NOT NULL DEFAULT '{}',
    created_at       DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS claim_evidence_edges (
    claim_id         TEXT NOT NULL REFERENCES claims(claim_id),
    evidence_id_hash TEXT NOT NULL REFERENCES evidence_objects(evidence_id_hash),
    relation         TEXT NOT NULL CHECK(relation IN ('supports','contradicts','context')),
    strength         REAL NOT NULL DEFAULT 0.5,
    created_at       DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (claim_id, evidence_id_hash)
);

CREATE INDEX IF NOT EXISTS idx_edges_evidence ON claim_evidence_edges(evidence_id_hash);

CREATE TABLE IF NOT EXISTS corrections (
    correction_id TEXT PRIMARY KEY,
    platform_id   TEXT NOT NULL,
    claim_id      TEXT NOT NULL REFERENCES claims(claim_id),
    reason        TEXT NOT NULL,
    created_at    DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_corrections_claim ON corrections(claim_id);

CREATE TABLE IF NOT EXISTS verification_tasks (
    task_id    TEXT PRIMARY KEY,
    claim_id   TEXT NOT NULL REFERENCES claims(claim_id),
    status     TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open','in_review','done')),
    assignee   TEXT,
    note       TEXT,
    created_at DATETIME DEFAULT (datetime('now')),
    updated_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_claim ON verification_tasks(claim_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON verification_tasks(status);

CREATE TABLE IF NOT EXISTS extraction_jobs (
    job_id           TEXT PRIMARY KEY,
    platform_id      TEXT NOT NULL,
    story_id         TEXT NOT NULL REFERENCES stories(story_id),
    story_version_id TEXT NOT NULL REFERENCES story_versions(story_version_id),
    status           TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','completed','failed')),
    created_at       DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS event_outbox (
    event_id      TEXT PRIMARY KEY,
    platform_id   TEXT NOT NULL,
    story_id      TEXT NOT NULL,
    event_type    TEXT NOT NULL,
    event_version TEXT NOT NULL DEFAULT 'v1',
    payload       TEXT NOT NULL DEFAULT '{}',
    created_at    DATETIME DEFAULT (datetime('now'))
);

-- Idempotency key: one published event per story, ever.
CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_story_type ON event_outbox(story_id, event_type);

CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    handle        TEXT UNIQUE NOT NULL,
    email         TEXT UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'reporter' CHECK(role IN ('reporter','editor','admin')),
    created_at    DATETIME DEFAULT (datetime('now'))
);
`
