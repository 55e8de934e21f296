package permission

import (
	"context"

	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockGate implements interfaces.PermissionGate for testing.
type MockGate struct {
	mock.Mock
}

func (m *MockGate) HasPermission(ctx context.Context, caller string, permission interfaces.Permission) (bool, error) {
	args := m.Called(ctx, caller, permission)
	return args.Bool(0), args.Error(1)
}
