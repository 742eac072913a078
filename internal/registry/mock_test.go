package registry

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/lead-resolver/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListDealers(ctx context.Context) ([]model.DealerEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]model.DealerEntry)
	return entries, args.Error(1)
}

func (m *mockStore) UpsertDealer(ctx context.Context, e *model.DealerEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockStore) UpsertDealers(ctx context.Context, entries []model.DealerEntry) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}
