package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockAuditSink creates a GormAuditSink with a mocked SQL connection
func newMockAuditSink(t *testing.T) (*GormAuditSink, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormAuditSink(gormDB, zap.NewNop()), mock, mockDB
}

func auditRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "actor", "action", "level", "metadata", "timestamp"}).
		AddRow(uuid.New(), "sync-orchestrator", "client.create", "info", `{"rolled_back":0}`, time.Now())
}

func TestGormAuditSink_List_LimitBounds(t *testing.T) {
	cases := []struct {
		name  string
		given int
		want  int
	}{
		{"zero falls back to the default", 0, 100},
		{"negative falls back to the default", -5, 100},
		{"within range passes through", 250, 250},
		{"above the cap clamps to the cap", 9999, 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink, mock, mockDB := newMockAuditSink(t)
			defer mockDB.Close()

			mock.ExpectQuery(`SELECT \* FROM "sync_audit_log" ORDER BY timestamp DESC LIMIT .*`).
				WithArgs(tc.want).
				WillReturnRows(auditRows())

			entries, err := sink.List(context.Background(), AuditFilter{Limit: tc.given})

			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "client.create", entries[0].Action)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
