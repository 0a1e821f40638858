package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/tally/internal/model"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	if err := scanner.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon); err != nil {
		return nil, err
	}
	return &c, nil
}

const categoryCols = `id, name, slug, icon`

func (s *CategoryStore) List() ([]model.Category, error) {
	rows, err := s.db.Query(`SELECT ` + categoryCols + ` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *CategoryStore) GetByID(id int64) (*model.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryCols+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) GetBySlug(slug string) (*model.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryCols+` FROM categories WHERE slug = ?`, slug)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	return c, nil
}
