// Package postgres provides the reference CredentialStore backed by
// PostgreSQL via pgx.
//
// Expected schema:
//
//	CREATE TABLE users (
//	    id            TEXT PRIMARY KEY,
//	    email         TEXT NOT NULL UNIQUE,
//	    password_hash TEXT NOT NULL,
//	    verified      BOOLEAN NOT NULL DEFAULT FALSE,
//	    first_name    TEXT NOT NULL DEFAULT '',
//	    last_name     TEXT NOT NULL DEFAULT '',
//	    company       TEXT NOT NULL DEFAULT '',
//	    phone         TEXT NOT NULL DEFAULT '',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    last_login_at TIMESTAMPTZ
//	);
//
// Emails arrive already normalized to lowercase; the UNIQUE constraint
// is the last line of defense against duplicate registration races and
// surfaces as authcore.ErrEmailTaken.
package postgres
