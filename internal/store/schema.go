package store

// Money columns are TEXT holding decimal strings; sums are done in Go.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS plans (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    member_id            TEXT NOT NULL,
    member_name          TEXT NOT NULL DEFAULT '',
    daily_amount         TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'active',
    classification       TEXT NOT NULL DEFAULT 'regular',
    schedule             TEXT NOT NULL DEFAULT '',
    start_date           TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    week                 INTEGER NOT NULL,
    day                  INTEGER NOT NULL,
    date                 TEXT NOT NULL,
    amount               TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trust_deposits (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    week                 INTEGER NOT NULL,
    date                 TEXT NOT NULL,
    amount               TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outflows (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    week                 INTEGER NOT NULL,
    date                 TEXT NOT NULL,
    amount               TEXT NOT NULL,
    category             TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_shortfalls (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    week                 INTEGER NOT NULL,
    day                  INTEGER NOT NULL,
    date                 TEXT NOT NULL,
    due                  TEXT NOT NULL,
    paid                 TEXT NOT NULL,
    remaining            TEXT NOT NULL,
    is_paid              INTEGER NOT NULL DEFAULT 0,
    paid_date            TEXT,
    created_at           TEXT NOT NULL,
    UNIQUE (plan_id, week, day)
);

CREATE TABLE IF NOT EXISTS shortfall_payments (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    shortfall_id         INTEGER NOT NULL REFERENCES daily_shortfalls(id),
    week                 INTEGER NOT NULL,
    day                  INTEGER NOT NULL,
    amount               TEXT NOT NULL,
    paid_date            TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS weekly_shortfalls (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    week                 INTEGER NOT NULL,
    total                TEXT NOT NULL,
    paid                 TEXT NOT NULL,
    remaining            TEXT NOT NULL,
    is_paid              INTEGER NOT NULL DEFAULT 0,
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL,
    UNIQUE (plan_id, week)
);

CREATE TABLE IF NOT EXISTS accumulated_balances (
    plan_id                 INTEGER PRIMARY KEY REFERENCES plans(id),
    total_arrears           TEXT NOT NULL,
    paid_amount             TEXT NOT NULL,
    remaining_amount        TEXT NOT NULL,
    last_week_number        INTEGER NOT NULL,
    is_paid                 INTEGER NOT NULL DEFAULT 0,
    last_applied_payment_id INTEGER NOT NULL DEFAULT 0,
    created_at              TEXT NOT NULL,
    updated_at              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accumulated_payments (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    week                 INTEGER NOT NULL,
    day                  INTEGER NOT NULL,
    amount               TEXT NOT NULL,
    date                 TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balance_history (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_id              INTEGER NOT NULL REFERENCES plans(id),
    week                 INTEGER NOT NULL,
    amount_paid          TEXT NOT NULL,
    remaining_before     TEXT NOT NULL,
    remaining_after      TEXT NOT NULL,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS weekly_reconciliations (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    week                 INTEGER NOT NULL UNIQUE,
    week_start           TEXT NOT NULL UNIQUE,
    expected             TEXT NOT NULL,
    actual               TEXT NOT NULL,
    difference           TEXT NOT NULL,
    previous_actual      TEXT NOT NULL,
    collections          TEXT NOT NULL,
    shortfall_paid       TEXT NOT NULL,
    balance_paid         TEXT NOT NULL,
    trust_deposits       TEXT NOT NULL,
    outflows             TEXT NOT NULL,
    notes                TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL,
    performed_by         TEXT NOT NULL,
    performed_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vault_transactions (
    id                   TEXT PRIMARY KEY,
    kind                 TEXT NOT NULL,
    amount               TEXT NOT NULL,
    date                 TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    reconciliation_id    INTEGER,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trigger_runs (
    name                 TEXT PRIMARY KEY,
    last_date            TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_plan_week_day ON payments(plan_id, week, day);
CREATE INDEX IF NOT EXISTS idx_payments_week ON payments(week);
CREATE INDEX IF NOT EXISTS idx_daily_shortfalls_week ON daily_shortfalls(week, is_paid);
CREATE INDEX IF NOT EXISTS idx_shortfall_payments_date ON shortfall_payments(paid_date);
CREATE INDEX IF NOT EXISTS idx_accumulated_payments_plan ON accumulated_payments(plan_id, id);
CREATE INDEX IF NOT EXISTS idx_accumulated_payments_week ON accumulated_payments(week);
CREATE UNIQUE INDEX IF NOT EXISTS idx_vault_reconciliation ON vault_transactions(reconciliation_id)
    WHERE reconciliation_id IS NOT NULL;
`
