package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/tally/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var groupID sql.NullInt64
	err := scanner.Scan(
		&a.ID, &a.UserID, &groupID, &a.CategoryID, &a.Value, &a.Date, &a.Description, &a.CreatedAt,
		&a.CategoryName, &a.CategoryIcon, &a.UserName,
	)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		a.GroupID = &groupID.Int64
	}
	return &a, nil
}

const accountCols = `a.id, a.user_id, a.group_id, a.category_id, a.value, a.date, a.description, a.created_at,
	c.name, c.icon, u.name`

const accountFrom = ` FROM accounts a
	JOIN categories c ON c.id = a.category_id
	JOIN users u ON u.id = a.user_id`

func (s *AccountStore) Create(a *model.Account) (*model.Account, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (user_id, group_id, category_id, value, date, description) VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, nullID(a.GroupID), a.CategoryID, a.Value.String(), a.Date, a.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+accountFrom+` WHERE a.id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// AccountQuery selects accounts owned by any of UserIDs, or tagged with
// GroupID when UserIDs is empty. A query with neither returns nothing.
type AccountQuery struct {
	UserIDs []int64
	Filter  model.AccountFilter
}

// List returns matching accounts, newest date first, then newest entry first.
func (s *AccountStore) List(q AccountQuery) ([]model.Account, error) {
	if len(q.UserIDs) == 0 && q.Filter.GroupID == 0 {
		return nil, nil
	}

	var where []string
	var args []any
	if len(q.UserIDs) > 0 {
		where = append(where, `a.user_id IN (`+placeholders(len(q.UserIDs))+`)`)
		args = append(args, int64Args(q.UserIDs)...)
	}
	f := q.Filter
	if f.GroupID > 0 {
		where = append(where, `a.group_id = ?`)
		args = append(args, f.GroupID)
	}
	if f.CategoryID > 0 {
		where = append(where, `a.category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.DateFrom != nil {
		where = append(where, `a.date >= ?`)
		args = append(args, f.DateFrom.String())
	}
	if f.DateTo != nil {
		where = append(where, `a.date <= ?`)
		args = append(args, f.DateTo.String())
	}
	if f.Month != "" {
		where = append(where, `substr(a.date, 1, 7) = ?`)
		args = append(args, f.Month)
	}

	query := `SELECT ` + accountCols + accountFrom +
		` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY a.date DESC, a.created_at DESC, a.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
