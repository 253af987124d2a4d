package mocks

import (
	"context"

	"videoapi/internal/access"
	"videoapi/internal/model"
	"videoapi/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockVideoService struct {
	mock.Mock
}

func (m *MockVideoService) Upload(ctx context.Context, caller access.Caller, in service.UploadInput) (*model.Video, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

func (m *MockVideoService) Submit(ctx context.Context, obj service.StoredObject, ownerID, tenantID string) (*model.Video, error) {
	args := m.Called(ctx, obj, ownerID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

func (m *MockVideoService) List(ctx context.Context, caller access.Caller, q service.VideoQuery) (*service.VideoListResult, error) {
	args := m.Called(ctx, caller, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VideoListResult), args.Error(1)
}

func (m *MockVideoService) Get(ctx context.Context, caller access.Caller, id string) (*model.Video, error) {
	args := m.Called(ctx, caller, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Video), args.Error(1)
}

func (m *MockVideoService) Delete(ctx context.Context, caller access.Caller, id string) error {
	args := m.Called(ctx, caller, id)
	return args.Error(0)
}

func (m *MockVideoService) Open(ctx context.Context, caller access.Caller, id, rangeHeader string) (*service.Delivery, error) {
	args := m.Called(ctx, caller, id, rangeHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Delivery), args.Error(1)
}
