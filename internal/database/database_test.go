package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoapi/internal/config"
)

func TestBuildPostgresDSN(t *testing.T) {
	full := config.DatabaseConfig{Host: "db", Port: "5432", User: "video", Password: "s3cret", Name: "videos", SSLMode: "disable"}

	tests := []struct {
		name    string
		mutate  func(c *config.DatabaseConfig)
		want    string
		wantErr bool
	}{
		{
			name: "password and sslmode",
			want: "postgres://video:s3cret@db:5432/videos?application_name=videoapi&sslmode=disable",
		},
		{
			name:   "no password",
			mutate: func(c *config.DatabaseConfig) { c.Password = "" },
			want:   "postgres://video@db:5432/videos?application_name=videoapi&sslmode=disable",
		},
		{
			name:   "no sslmode keeps application name",
			mutate: func(c *config.DatabaseConfig) { c.SSLMode = "" },
			want:   "postgres://video:s3cret@db:5432/videos?application_name=videoapi",
		},
		{
			name:   "password is escaped",
			mutate: func(c *config.DatabaseConfig) { c.Password = "p@ss/word" },
			want:   "postgres://video:p%40ss%2Fword@db:5432/videos?application_name=videoapi&sslmode=disable",
		},
		{name: "missing host", mutate: func(c *config.DatabaseConfig) { c.Host = "" }, wantErr: true},
		{name: "missing name", mutate: func(c *config.DatabaseConfig) { c.Name = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := full
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			got, err := BuildPostgresDSN(c)
			if tt.wantErr {
				assert.ErrorIs(t, err, errIncompleteConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// stubOpen routes sqlOpen and registerStats to db for one test.
func stubOpen(t *testing.T, db *sql.DB, statsErr error) *[]*sql.DB {
	t.Helper()
	var registered []*sql.DB

	origOpen, origStats := sqlOpen, registerStats
	sqlOpen = func(string, string) (*sql.DB, error) { return db, nil }
	registerStats = func(d *sql.DB) error {
		registered = append(registered, d)
		return statsErr
	}
	t.Cleanup(func() { sqlOpen, registerStats = origOpen, origStats })
	return &registered
}

func TestNewPostgres(t *testing.T) {
	conf := config.DatabaseConfig{
		Host:               "db",
		Port:               "5432",
		User:               "video",
		Name:               "videos",
		MaxOpenConns:       10,
		MaxIdleConns:       50,
		ConnMaxLifetimeSec: 300,
	}

	t.Run("opens pings and exports pool stats", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		registered := stubOpen(t, db, nil)

		mock.ExpectPing()

		gotDB, err := NewPostgres(context.Background(), conf)
		require.NoError(t, err)
		assert.Same(t, db, gotDB)
		assert.Equal(t, 10, gotDB.Stats().MaxOpenConnections)
		assert.Equal(t, []*sql.DB{db}, *registered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("canceled context aborts before ping", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		registered := stubOpen(t, db, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gotDB, err := NewPostgres(ctx, conf)
		assert.Nil(t, gotDB)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorContains(t, err, "db ping")
		assert.Empty(t, *registered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stats registration failure closes the pool", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		stubOpen(t, db, errors.New("meter unavailable"))

		mock.ExpectPing()
		mock.ExpectClose()

		gotDB, err := NewPostgres(context.Background(), conf)
		assert.Nil(t, gotDB)
		assert.EqualError(t, err, "register db stats metrics: meter unavailable")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping failure", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		registered := stubOpen(t, db, nil)

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		gotDB, err := NewPostgres(context.Background(), conf)
		assert.Nil(t, gotDB)
		assert.EqualError(t, err, "db ping: connection refused")
		assert.Empty(t, *registered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("open failure", func(t *testing.T) {
		origOpen := sqlOpen
		sqlOpen = func(string, string) (*sql.DB, error) { return nil, errors.New("driver missing") }
		defer func() { sqlOpen = origOpen }()

		gotDB, err := NewPostgres(context.Background(), conf)
		assert.Nil(t, gotDB)
		assert.EqualError(t, err, "sql open: driver missing")
	})

	t.Run("incomplete config", func(t *testing.T) {
		gotDB, err := NewPostgres(context.Background(), config.DatabaseConfig{})
		assert.Nil(t, gotDB)
		assert.ErrorIs(t, err, errIncompleteConfig)
	})
}
