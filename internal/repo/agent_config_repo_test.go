package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dushixiang/apmview/internal/models"
	"github.com/dushixiang/apmview/internal/protocol"

	"github.com/glebarez/sqlite"
	"github.com/go-orz/orz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openAgentConfigRepo(t *testing.T) (*gorm.DB, *AgentConfigRepo) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "apmview.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.AgentConfiguration{}))
	return db, NewAgentConfigRepo(db)
}

func newAgentConfiguration(id, serviceName string) *models.AgentConfiguration {
	item := &models.AgentConfiguration{
		ID:          id,
		ServiceName: serviceName,
		Settings:    datatypes.NewJSONType(protocol.AgentConfigSettings{CaptureBody: "off"}),
	}
	item.Etag = item.ComputeEtag()
	return item
}

func TestAgentConfigRepoTransaction(t *testing.T) {
	db, r := openAgentConfigRepo(t)
	svc := orz.NewService(db)
	ctx := context.Background()

	t.Run("事务回滚后写入不可见", func(t *testing.T) {
		err := svc.Transaction(ctx, func(ctx context.Context) error {
			require.NoError(t, r.Create(ctx, newAgentConfiguration("a", "opbeans")))

			// 事务内可以读到未提交的写入
			item, err := r.FindByID(ctx, "a")
			require.NoError(t, err)
			require.NotNil(t, item)
			return errors.New("rollback")
		})
		require.Error(t, err)

		item, err := r.FindByID(ctx, "a")
		require.NoError(t, err)
		assert.Nil(t, item)
	})

	t.Run("事务提交后写入可见", func(t *testing.T) {
		err := svc.Transaction(ctx, func(ctx context.Context) error {
			return r.Create(ctx, newAgentConfiguration("b", "opbeans"))
		})
		require.NoError(t, err)

		item, err := r.FindByService(ctx, "opbeans", "")
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "b", item.ID)
	})
}

func TestAgentConfigRepoMarkApplied(t *testing.T) {
	_, r := openAgentConfigRepo(t)
	ctx := context.Background()

	item := newAgentConfiguration("a", "opbeans")
	require.NoError(t, r.Create(ctx, item))

	require.NoError(t, r.MarkApplied(ctx, "a", "stale"))
	found, err := r.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found.AppliedByAgent)

	require.NoError(t, r.MarkApplied(ctx, "a", item.Etag))
	found, err = r.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found.AppliedByAgent)
}
