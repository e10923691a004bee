// Package sqlbundle exposes the inspection schema DDL bundles for the SQL
// adapters.
package sqlbundle

import (
	"bufio"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"strings"
)

//go:embed sqlite.sql
var sqliteDDL string

//go:embed postgres.sql
var postgresDDL string

// Tables lists the schema tables in dependency order: parents before children.
var Tables = []string{"clients", "orders", "rooms", "points", "measurements", "visual_inspections"}

// SQLite returns the SQLite DDL for the inspection schema.
func SQLite() string {
	return sqliteDDL
}

// Postgres returns the Postgres DDL for the inspection schema.
func Postgres() string {
	return postgresDDL
}

// Fingerprint returns a short content hash of a DDL bundle. The SQL stores
// report it and the service logs it on open so a deployed schema can be
// matched to a build.
func Fingerprint(ddl string) string {
	sum := sha256.Sum256([]byte(ddl))
	return hex.EncodeToString(sum[:6])
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}

	return stmts
}
