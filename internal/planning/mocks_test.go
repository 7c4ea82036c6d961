// Gomock doubles for Fetcher and Approver, kept in the mockgen layout.

package planning

import (
	context "context"
	reflect "reflect"

	model "github.com/stratplan/companion/internal/model"
	gomock "go.uber.org/mock/gomock"
)

// MockFetcher is a mock of Fetcher interface.
type MockFetcher struct {
	ctrl     *gomock.Controller
	recorder *MockFetcherMockRecorder
	isgomock struct{}
}

// MockFetcherMockRecorder is the mock recorder for MockFetcher.
type MockFetcherMockRecorder struct {
	mock *MockFetcher
}

// NewMockFetcher creates a new mock instance.
func NewMockFetcher(ctrl *gomock.Controller) *MockFetcher {
	mock := &MockFetcher{ctrl: ctrl}
	mock.recorder = &MockFetcherMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFetcher) EXPECT() *MockFetcherMockRecorder {
	return m.recorder
}

// FetchPlanning mocks base method.
func (m *MockFetcher) FetchPlanning(ctx context.Context, planningID string) (*model.Planning, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchPlanning", ctx, planningID)
	ret0, _ := ret[0].(*model.Planning)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchPlanning indicates an expected call of FetchPlanning.
func (mr *MockFetcherMockRecorder) FetchPlanning(ctx, planningID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchPlanning", reflect.TypeOf((*MockFetcher)(nil).FetchPlanning), ctx, planningID)
}

// MockApprover is a mock of Approver interface.
type MockApprover struct {
	ctrl     *gomock.Controller
	recorder *MockApproverMockRecorder
	isgomock struct{}
}

// MockApproverMockRecorder is the mock recorder for MockApprover.
type MockApproverMockRecorder struct {
	mock *MockApprover
}

// NewMockApprover creates a new mock instance.
func NewMockApprover(ctrl *gomock.Controller) *MockApprover {
	mock := &MockApprover{ctrl: ctrl}
	mock.recorder = &MockApproverMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockApprover) EXPECT() *MockApproverMockRecorder {
	return m.recorder
}

// ApproveTasks mocks base method.
func (m *MockApprover) ApproveTasks(ctx context.Context, planningID string, tasks []model.Task) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ApproveTasks", ctx, planningID, tasks)
	ret0, _ := ret[0].(error)
	return ret0
}

// ApproveTasks indicates an expected call of ApproveTasks.
func (mr *MockApproverMockRecorder) ApproveTasks(ctx, planningID, tasks any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ApproveTasks", reflect.TypeOf((*MockApprover)(nil).ApproveTasks), ctx, planningID, tasks)
}
