package ingestion

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rpattn/custimport/internal/repository/sqlite"
	"github.com/rpattn/custimport/internal/session"
)

type fixture struct {
	store    *sqlite.Store
	sessions *session.MemoryStore
	service  *Service
	logs     *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	sessions := session.NewMemoryStore(time.Hour, nil)

	return &fixture{
		store:    store,
		sessions: sessions,
		service:  NewService(store, sessions, Options{}, logger),
		logs:     hook,
	}
}
