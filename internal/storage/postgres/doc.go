// Package postgres implements storage.Storage on PostgreSQL.
//
// Each namespace is a table in one database, created on first use:
//
//	id          BIGSERIAL PRIMARY KEY
//	payload     BYTEA        encoded model.Request
//	key         TEXT UNIQUE  logical key
//	taken       BOOLEAN      claimed flag
//	claimed_by  TEXT         consumer that claimed the record
//	inserted_at TIMESTAMPTZ
//	taken_at    TIMESTAMPTZ
//
// The table is named spiderq_<namespace>. PostgreSQL truncates identifiers
// longer than 63 bytes, so a namespace that would not fit is shortened and
// suffixed with a BLAKE2b digest of the full name; distinct namespaces
// always get distinct tables and pending indexes.
//
// Claims use UPDATE ... WHERE id IN (SELECT ... FOR UPDATE SKIP LOCKED), so
// concurrent consumers skip rows another transaction is already claiming
// instead of blocking on them or receiving them twice.
package postgres
