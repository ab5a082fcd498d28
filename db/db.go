package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"devconnect/models"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoRows             = errors.New("no rows found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type DB struct {
	conn   *sqlx.DB
	driver string
}

// New opens the store. driver is "sqlite3" or "pgx".
func New(driver, dsn string) (*DB, error) {
	if driver == "sqlite3" && !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// one writer keeps sqlite from returning SQLITE_BUSY under the hub's fan-out
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	seqColumn := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.driver == "pgx" {
		seqColumn = "seq BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			` + seqColumn + `,
			local_id BIGINT,
			sender_id TEXT NOT NULL,
			username TEXT NOT NULL,
			recipient_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, recipient_id, seq)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// User methods

// CreateUser stores a new account with a bcrypt password hash.
func (db *DB) CreateUser(username, email, password string) (models.User, error) {
	exists, err := db.UserExists(username, email)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return models.User{}, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
	}
	_, err = db.conn.Exec(
		db.conn.Rebind("INSERT INTO users (id, username, email, password, created_at) VALUES (?, ?, ?, ?, ?)"),
		user.ID, user.Username, user.Email, string(hashed), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Authenticate checks an email/password pair.
func (db *DB) Authenticate(email, password string) (models.User, error) {
	var row struct {
		models.User
		Password string `db:"password"`
	}
	err := db.conn.Get(&row, db.conn.Rebind("SELECT id, username, email, password FROM users WHERE email = ?"), email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.Password), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return row.User, nil
}

func (db *DB) UserExists(username, email string) (bool, error) {
	var count int
	err := db.conn.Get(&count, db.conn.Rebind("SELECT COUNT(*) FROM users WHERE username = ? OR email = ?"), username, email)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (db *DB) GetUserByID(id string) (models.User, error) {
	return db.getUser("id", id)
}

func (db *DB) GetUserByUsername(username string) (models.User, error) {
	return db.getUser("username", username)
}

func (db *DB) getUser(column, value string) (models.User, error) {
	var user models.User
	err := db.conn.Get(&user, db.conn.Rebind("SELECT id, username, email FROM users WHERE "+column+" = ?"), value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNoRows
	}
	return user, err
}

// ListUsers returns every account ordered by username.
func (db *DB) ListUsers() ([]models.User, error) {
	users := []models.User{}
	err := db.conn.Select(&users, "SELECT id, username, email FROM users ORDER BY username")
	return users, err
}

// Message methods

// SaveMessage stores a public (recipientID == "") or private message.
func (db *DB) SaveMessage(senderID, recipientID string, msg models.Message) error {
	var localID sql.NullInt64
	if msg.ID != nil {
		localID = sql.NullInt64{Int64: *msg.ID, Valid: true}
	}
	_, err := db.conn.Exec(
		db.conn.Rebind("INSERT INTO messages (local_id, sender_id, username, recipient_id, text, timestamp) VALUES (?, ?, ?, ?, ?, ?)"),
		localID, senderID, msg.Username, recipientID, msg.Text, msg.Timestamp,
	)
	return err
}

// GetPublicMessages returns the newest limit public messages, oldest first.
func (db *DB) GetPublicMessages(limit int) ([]models.Message, error) {
	query := `
		SELECT seq, local_id, sender_id, username, recipient_id, text, timestamp
		FROM messages
		WHERE recipient_id = ''
		ORDER BY seq DESC
		LIMIT ?
	`
	return db.selectMessages(db.conn.Rebind(query), limit)
}

// GetPrivateMessages returns the newest limit messages exchanged by a and b, oldest first.
func (db *DB) GetPrivateMessages(a, b string, limit int) ([]models.Message, error) {
	query := `
		SELECT seq, local_id, sender_id, username, recipient_id, text, timestamp
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY seq DESC
		LIMIT ?
	`
	return db.selectMessages(db.conn.Rebind(query), a, b, b, a, limit)
}

func (db *DB) selectMessages(query string, args ...any) ([]models.Message, error) {
	var rows []models.StoredMessage
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	messages := make([]models.Message, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = row.Wire()
	}
	return messages, nil
}
