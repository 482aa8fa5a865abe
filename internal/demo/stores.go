package demo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nestful/nestful/pkg/store"
)

// Stores holds the backing store for each demo resource.
type Stores struct {
	Users    store.Store
	Entries  store.Store
	Infos    store.Store
	Comments store.Store
}

// MemoryStores returns seeded in-memory stores: three users (one
// suspended), published and draft entries, stats for the published
// entry, and a short comment thread.
func MemoryStores() Stores {
	return Stores{
		Users: store.NewMemory("id").Seed(
			store.Object{"id": "3", "username": "ada", "email": "ada@example.com"},
			store.Object{"id": "7", "username": "grace", "email": "grace@example.com"},
			store.Object{"id": "9", "username": "mallory", "suspended": true},
		),
		Entries: store.NewMemory("id").Seed(
			store.Object{"id": "1", "user_id": "3", "title": "Going public", "body": "We shipped.", "draft": false},
			store.Object{"id": "2", "user_id": "3", "title": "Half-written thoughts", "body": "", "draft": true},
			store.Object{"id": "5", "user_id": "7", "title": "Compilers considered fun", "body": "Parsing!", "draft": false},
		),
		Infos: store.NewMemory("id").Seed(
			store.Object{"id": "i1", "entry_id": "1", "views": 42},
		),
		Comments: store.NewMemory("id").Seed(
			store.Object{"id": "c1", "entry_id": "1", "user_id": "7", "message": "Congrats!"},
			store.Object{"id": "c2", "entry_id": "1", "user_id": "3", "message": "Thanks!"},
		),
	}
}

// SQLStores returns stores over the demo tables of db. Run EnsureSchema
// first on a fresh database.
func SQLStores(db *sql.DB) Stores {
	return Stores{
		Users:    store.NewSQL(db, "users", "id", []string{"id", "username", "email", "suspended"}),
		Entries:  store.NewSQL(db, "entries", "id", []string{"id", "user_id", "title", "body", "draft"}),
		Infos:    store.NewSQL(db, "infos", "id", []string{"id", "entry_id", "views"}),
		Comments: store.NewSQL(db, "comments", "id", []string{"id", "entry_id", "user_id", "message"}),
	}
}

// schemaStatements is portable DDL; it runs unchanged on SQLite and
// PostgreSQL.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT,
		email TEXT,
		suspended BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		title TEXT,
		body TEXT,
		draft BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS infos (
		id TEXT PRIMARY KEY,
		entry_id TEXT,
		views INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		entry_id TEXT,
		user_id TEXT,
		message TEXT
	)`,
}

// EnsureSchema creates the demo tables when they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create demo schema: %w", err)
		}
	}
	return nil
}

// SeedSQL loads the demo fixture rows into SQL-backed stores.
func SeedSQL(ctx context.Context, stores Stores) error {
	seeds := []struct {
		target store.Store
		rows   []store.Object
	}{
		{stores.Users, []store.Object{
			{"id": "3", "username": "ada", "email": "ada@example.com", "suspended": false},
			{"id": "7", "username": "grace", "email": "grace@example.com", "suspended": false},
			{"id": "9", "username": "mallory", "email": "", "suspended": true},
		}},
		{stores.Entries, []store.Object{
			{"id": "1", "user_id": "3", "title": "Going public", "body": "We shipped.", "draft": false},
			{"id": "2", "user_id": "3", "title": "Half-written thoughts", "body": "", "draft": true},
			{"id": "5", "user_id": "7", "title": "Compilers considered fun", "body": "Parsing!", "draft": false},
		}},
		{stores.Infos, []store.Object{
			{"id": "i1", "entry_id": "1", "views": 42},
		}},
		{stores.Comments, []store.Object{
			{"id": "c1", "entry_id": "1", "user_id": "7", "message": "Congrats!"},
			{"id": "c2", "entry_id": "1", "user_id": "3", "message": "Thanks!"},
		}},
	}

	for _, seed := range seeds {
		for _, row := range seed.rows {
			if _, err := seed.target.Save(ctx, row); err != nil {
				return fmt.Errorf("failed to seed demo data: %w", err)
			}
		}
	}
	return nil
}
