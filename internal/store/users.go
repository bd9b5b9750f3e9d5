// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const userColumns = `id, email, password_hash, name, slug, image_url, url, tagline, bio, is_admin, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Slug,
		&u.ImageUrl,
		&u.Url,
		&u.Tagline,
		&u.Bio,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams holds parameters for CreateUser.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	ImageUrl     string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUser inserts a new user and returns the created row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, image_url, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.Name, arg.ImageUrl, arg.IsAdmin, arg.CreatedAt, arg.UpdatedAt,
	)
	return scanUser(row)
}

// GetUserByID returns the user with the given id.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserBySlug returns the user with the given profile slug.
func (q *Queries) GetUserBySlug(ctx context.Context, slug string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE slug = ?`, slug)
	return scanUser(row)
}

// ListUsers returns all users ordered by creation time.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountAdmins returns the number of users carrying the admin role.
func (q *Queries) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 1`).Scan(&n)
	return n, err
}

// SetUserAdmin grants the admin role to the given user.
func (q *Queries) SetUserAdmin(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE users SET is_admin = 1, updated_at = ?
		WHERE id = ?
		RETURNING `+userColumns,
		time.Now(), id,
	)
	return scanUser(row)
}

// SetUserSlugParams holds parameters for SetUserSlug.
type SetUserSlugParams struct {
	Slug string
	ID   int64
}

// SetUserSlug assigns a profile slug only if none is set yet; a slug,
// once assigned, is never reassigned. Returns the number of rows changed.
func (q *Queries) SetUserSlug(ctx context.Context, arg SetUserSlugParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users SET slug = ? WHERE id = ? AND slug IS NULL`,
		arg.Slug, arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateUserPasswordParams holds parameters for UpdateUserPassword.
type UpdateUserPasswordParams struct {
	PasswordHash string
	UpdatedAt    time.Time
	ID           int64
}

// UpdateUserPassword replaces a user's password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		arg.PasswordHash, arg.UpdatedAt, arg.ID,
	)
	return err
}

// UpdateUserProfileParams holds parameters for UpdateUserProfile.
type UpdateUserProfileParams struct {
	Name      string
	Email     string
	ImageUrl  string
	Url       string
	Tagline   string
	Bio       string
	UpdatedAt time.Time
	ID        int64
}

// UpdateUserProfile replaces the profile fields of a user.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = ?, email = ?, image_url = ?, url = ?, tagline = ?, bio = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+userColumns,
		arg.Name, arg.Email, arg.ImageUrl, arg.Url, arg.Tagline, arg.Bio, arg.UpdatedAt, arg.ID,
	)
	return scanUser(row)
}
