package aiprovider

import (
	"context"
)

// MockProvider implements Provider for testing.
type MockProvider struct {
	InvokeFunc func(ctx context.Context, req *InvokeRequest) (*InvokeResult, error)
	NameValue  ModelType
	ModelValue string

	InvokeCalls []*InvokeRequest
}

// Invoke implements Provider.
func (m *MockProvider) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error) {
	m.InvokeCalls = append(m.InvokeCalls, req)
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	return &InvokeResult{
		Images: []GeneratedImage{{Data: []byte("mock-image"), MimeType: "image/png"}},
		Model:  m.ModelValue,
	}, nil
}

// Name implements Provider.
func (m *MockProvider) Name() ModelType {
	if m.NameValue != "" {
		return m.NameValue
	}
	return ModelTypeGemini
}

// Model implements Provider.
func (m *MockProvider) Model() string {
	if m.ModelValue != "" {
		return m.ModelValue
	}
	return "mock-model"
}

var _ Provider = (*MockProvider)(nil)
