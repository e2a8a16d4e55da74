// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func setupPostgresTest(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	store, err := newPostgresStore(db, "client_storage")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return store, mock
}

func TestPostgresStore(t *testing.T) {
	store, mock := setupPostgresTest(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("GetExistingKey", func(t *testing.T) {
		mock.ExpectQuery(`SELECT value FROM client_storage`).
			WithArgs("token").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("abc.def.ghi"))

		v, ok, err := store.GetItem(ctx, "token")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc.def.ghi", v)
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		mock.ExpectQuery(`SELECT value FROM client_storage`).
			WithArgs("user").
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		_, ok, err := store.GetItem(ctx, "user")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("GetDatabaseError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT value FROM client_storage`).
			WithArgs("token").
			WillReturnError(sqlmock.ErrCancelled)

		_, ok, err := store.GetItem(ctx, "token")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("SetUpserts", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO client_storage`).
			WithArgs("rememberMe", "true").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.SetItem(ctx, "rememberMe", "true"))
	})

	t.Run("Remove", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM client_storage`).
			WithArgs("rememberMe").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.RemoveItem(ctx, "rememberMe"))
	})

	t.Run("RemoveDatabaseError", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM client_storage`).
			WithArgs("token").
			WillReturnError(sqlmock.ErrCancelled)

		assert.Error(t, store.RemoveItem(ctx, "token"))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	_, err = newPostgresStore(db, "storage; DROP TABLE users")
	assert.Error(t, err)
}
