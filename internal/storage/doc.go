// Package storage saves exported runs to SQLite.
//
// A run records one export of a root directory: its files in output order,
// each file's chunks, the dependency edges found between files, and any
// training samples cut from them. Saving a root replaces every earlier run
// of that root, so the database always holds the latest export per root.
//
// # Database Schema
//
// Tables:
//   - runs: one row per export (uuid id, root path, tokenizer, totals)
//   - files: relative path, language and SHA-256 of the file text
//   - chunks: chunk text and language, by position within the file
//   - edges: from_path depends on to_path
//   - samples: prompt/completion pairs with token counts
//
// Schema versions are tracked in schema_version and compared as semver.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("r2md.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = storage.SaveExport(ctx, db, &storage.Export{
//	    Run:   &storage.Run{RootPath: root, Tokenizer: "cl100k_base"},
//	    Files: result.Files,
//	})
//
// # Build Modes
//
// The default build uses modernc.org/sqlite. Build with -tags sqlite_cgo to
// use github.com/mattn/go-sqlite3 instead; BuildMode reports which one is
// compiled in.
package storage
