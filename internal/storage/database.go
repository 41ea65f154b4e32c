package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"studymate/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database configured for the given driver type.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_user_tokens_user ON user_tokens(user_id)`,
			`CREATE TABLE IF NOT EXISTS materials (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				subject TEXT NOT NULL,
				semester INTEGER NOT NULL,
				file_name TEXT NOT NULL,
				original_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				extraction_status TEXT NOT NULL DEFAULT 'pending',
				extracted_text TEXT NOT NULL DEFAULT '',
				extraction_error TEXT NOT NULL DEFAULT '',
				uploaded_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_materials_status ON materials(extraction_status)`,
			`CREATE INDEX IF NOT EXISTS idx_materials_category ON materials(category)`,
			`CREATE INDEX IF NOT EXISTS idx_materials_uploaded_at ON materials(uploaded_at DESC)`,
			`CREATE TABLE IF NOT EXISTS attendance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				student_id INTEGER NOT NULL,
				date DATETIME NOT NULL,
				status TEXT NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				UNIQUE(student_id, date)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_attendance_student ON attendance(student_id, date DESC)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				username VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token VARCHAR(255) NOT NULL PRIMARY KEY,
				user_id BIGINT UNSIGNED NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				INDEX idx_user_tokens_user (user_id),
				CONSTRAINT fk_user_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS materials (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				category VARCHAR(50) NOT NULL,
				subject VARCHAR(255) NOT NULL,
				semester INT NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				original_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				extraction_status VARCHAR(50) NOT NULL DEFAULT 'pending',
				extracted_text MEDIUMTEXT NOT NULL,
				extraction_error TEXT NOT NULL,
				uploaded_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_materials_status (extraction_status),
				INDEX idx_materials_category (category),
				INDEX idx_materials_uploaded_at (uploaded_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS attendance (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				student_id BIGINT UNSIGNED NOT NULL,
				date DATETIME NOT NULL,
				status VARCHAR(50) NOT NULL,
				subject VARCHAR(255) NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_student_date (student_id, date),
				INDEX idx_attendance_student (student_id, date)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
