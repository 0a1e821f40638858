package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tally/internal/database"
	"github.com/dukerupert/tally/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	err := scanner.Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt, &g.MemberCount)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGroupMember(scanner interface{ Scan(...any) error }) (*model.GroupMember, error) {
	var m model.GroupMember
	var addedBy sql.NullInt64
	err := scanner.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Name, &m.Email, &addedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if addedBy.Valid {
		m.AddedBy = &addedBy.Int64
	}
	return &m, nil
}

const groupCols = `g.id, g.name, g.owner_id, g.created_at,
	(SELECT COUNT(*) FROM group_memberships gm WHERE gm.group_id = g.id)`

const groupMemberCols = `gm.id, gm.group_id, gm.user_id, u.name, u.email, gm.added_by, gm.created_at`

// Create inserts the group and the owner's membership in one transaction.
func (s *GroupStore) Create(name string, ownerID int64) (*model.Group, error) {
	var id int64
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`INSERT INTO user_groups (name, owner_id) VALUES (?, ?)`, name, ownerID)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO group_memberships (group_id, user_id, added_by) VALUES (?, ?, ?)`,
			id, ownerID, ownerID,
		); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *GroupStore) GetByID(id int64) (*model.Group, error) {
	row := s.db.QueryRow(`SELECT `+groupCols+` FROM user_groups g WHERE g.id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// Delete removes the group and its memberships and untags its accounts.
func (s *GroupStore) Delete(id int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE accounts SET group_id = NULL WHERE group_id = ?`, id); err != nil {
			return fmt.Errorf("untag group accounts: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM group_memberships WHERE group_id = ?`, id); err != nil {
			return fmt.Errorf("delete group memberships: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM user_groups WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
}

// ListForUser returns groups the user owns or belongs to, newest first.
func (s *GroupStore) ListForUser(userID int64) ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT `+groupCols+` FROM user_groups g
		 WHERE g.owner_id = ?
		    OR g.id IN (SELECT group_id FROM group_memberships WHERE user_id = ?)
		 ORDER BY g.id DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// IsMember reports whether userID belongs to the group. The owner always
// counts as a member.
func (s *GroupStore) IsMember(groupID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM user_groups g
		 WHERE g.id = ? AND (g.owner_id = ? OR EXISTS (
		     SELECT 1 FROM group_memberships gm WHERE gm.group_id = g.id AND gm.user_id = ?))`,
		groupID, userID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

// AddMember inserts a membership. It returns ErrDuplicate if the user is
// already a member.
func (s *GroupStore) AddMember(groupID, userID, addedBy int64) (*model.GroupMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO group_memberships (group_id, user_id, added_by) VALUES (?, ?, ?)`,
		groupID, userID, addedBy,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(
		`SELECT `+groupMemberCols+` FROM group_memberships gm JOIN users u ON u.id = gm.user_id WHERE gm.id = ?`,
		id,
	)
	return scanGroupMember(row)
}

// RemoveMember deletes the membership if present.
func (s *GroupStore) RemoveMember(groupID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM group_memberships WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *GroupStore) ListMembers(groupID int64) ([]model.GroupMember, error) {
	rows, err := s.db.Query(
		`SELECT `+groupMemberCols+` FROM group_memberships gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = ?
		 ORDER BY u.name ASC, gm.id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		m, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}
