package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var managerID sql.NullInt64
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &managerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if managerID.Valid {
		u.ManagerID = &managerID.Int64
	}
	return &u, nil
}

const userCols = `id, name, email, password_hash, role, manager_id, created_at, updated_at`

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create inserts a user. It returns ErrDuplicate if the email is taken.
func (s *UserStore) Create(name, email, passwordHash string, role model.Role, managerID *int64) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash, role, manager_id) VALUES (?, ?, ?, ?, ?)`,
		name, email, passwordHash, role, nullID(managerID),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EmailTaken reports whether another user (not excludeID) owns email.
func (s *UserStore) EmailTaken(email string, excludeID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`, email, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

// Update writes the mutable profile fields of u.
func (s *UserStore) Update(u *model.User) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, email = ?, password_hash = ?, manager_id = ? WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, nullID(u.ManagerID), u.ID,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(u.ID)
}

// SetRole changes the role of user id. Promotion clears the user's own
// manager link in the same transaction; demoting a manager who still has
// clients fails with model.ErrManagerHasClients.
func (s *UserStore) SetRole(id int64, role model.Role) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		var clients int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE manager_id = ?`, id).Scan(&clients); err != nil {
			return fmt.Errorf("count clients: %w", err)
		}
		if err := model.ValidateRoleChange(u, role, clients); err != nil {
			return err
		}

		query := `UPDATE users SET role = ? WHERE id = ?`
		if role == model.RoleManager {
			query = `UPDATE users SET role = ?, manager_id = NULL WHERE id = ?`
		}
		if _, err := tx.Exec(query, role, id); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		return nil
	})
}

// ListClients returns the users linked to managerID, ordered by name.
func (s *UserStore) ListClients(managerID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE manager_id = ? ORDER BY name ASC, id ASC`,
		managerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ClientIDs returns the ids of the users linked to managerID.
func (s *UserStore) ClientIDs(managerID int64) ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM users WHERE manager_id = ? ORDER BY id ASC`, managerID)
	if err != nil {
		return nil, fmt.Errorf("list client ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
