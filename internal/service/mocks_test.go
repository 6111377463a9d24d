package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/example/bundleshop/internal/datamodels/event"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e event.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// publishedTypes 取出 mock 收到的事件类型
func publishedTypes(m *MockPublisher) []event.Type {
	var out []event.Type
	for _, c := range m.Calls {
		if c.Method != "Publish" {
			continue
		}
		out = append(out, c.Arguments.Get(1).(event.Event).Type)
	}
	return out
}
