// Package storetest 为各包测试提供临时 sqlite 库与种子数据。
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"food_order/internal/model"
	"food_order/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New 打开一个迁移过的临时库，测试结束自动关闭。
func New(t testing.TB) *store.Store {
	t.Helper()
	db := OpenDB(t)
	return store.New(db)
}

func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// MenuItem 插入一个菜品；price 形如 "45.50"。
func MenuItem(t testing.TB, st *store.Store, name, price string, prep int, status model.MenuStatus) model.MenuItem {
	t.Helper()
	m := model.MenuItem{
		Name:     name,
		Category: "main",
		Price:    decimal.RequireFromString(price),
		Status:   status,
		PrepTime: prep,
	}
	require.NoError(t, st.CreateMenuItem(context.Background(), &m))
	return m
}
