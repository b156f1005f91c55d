// Package sqlite implements storage.Storage on top of SQLite.
//
// Every namespace lives in its own file, <dir>/<namespace>.sqlite3, with a
// single queue table:
//
//	id          INTEGER PRIMARY KEY AUTOINCREMENT
//	payload     BLOB     encoded model.Request
//	key         TEXT     UNIQUE logical key
//	taken       BOOLEAN  claimed flag
//	claimed_by  TEXT     consumer that claimed the record
//	inserted_at DATETIME
//	taken_at    DATETIME
//
// Connections are opened with _txlock=immediate, so the claim transaction
// takes the database write lock before selecting rows. Other processes
// wait up to the configured busy timeout instead of racing for the same
// records.
package sqlite
