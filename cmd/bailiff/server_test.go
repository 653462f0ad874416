package main

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServerConfigErrorsLeaveNothingOpen(t *testing.T) {
	assert := assert.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dbPath := filepath.Join(t.TempDir(), "data", "bailiff.db")

	// missing bot token fails before the database is opened
	_, err := NewServer(Config{
		Logger:      logger,
		GuildID:     "g1",
		StoreKind:   "sql",
		DatabaseURL: "sqlite://" + dbPath,
	})
	assert.ErrorContains(err, "token")
	assert.NoFileExists(dbPath)

	_, err = NewServer(Config{
		Logger:       logger,
		DiscordToken: "token",
		GuildID:      "g1",
		StoreKind:    "etcd",
	})
	assert.ErrorContains(err, "unknown tracked role store")
}

func TestServerCloseRunsClosers(t *testing.T) {
	assert := assert.New(t)
	closed := 0
	srv := &Server{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		closers: []func() error{
			func() error { closed++; return errors.New("already closed") },
			func() error { closed++; return nil },
		},
	}
	srv.close()
	assert.Equal(2, closed)
}
