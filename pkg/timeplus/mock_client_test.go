package timeplus

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of the TimeplusClient interface
type MockClient struct {
	mock.Mock
}

// Ensure MockClient implements TimeplusClient
var _ TimeplusClient = (*MockClient)(nil)

func (m *MockClient) StreamExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) CreateStream(ctx context.Context, name string, schema []Column) error {
	args := m.Called(ctx, name, schema)
	return args.Error(0)
}

func (m *MockClient) DeleteStream(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockClient) ExecuteQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *MockClient) InsertIntoStream(ctx context.Context, streamName string, columns []string, values []interface{}) error {
	args := m.Called(ctx, streamName, columns, values)
	return args.Error(0)
}
