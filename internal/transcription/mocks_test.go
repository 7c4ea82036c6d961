// Gomock doubles for Controller and AnalysisSink, kept in the mockgen layout.

package transcription

import (
	context "context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockController is a mock of Controller interface.
type MockController struct {
	ctrl     *gomock.Controller
	recorder *MockControllerMockRecorder
	isgomock struct{}
}

// MockControllerMockRecorder is the mock recorder for MockController.
type MockControllerMockRecorder struct {
	mock *MockController
}

// NewMockController creates a new mock instance.
func NewMockController(ctrl *gomock.Controller) *MockController {
	mock := &MockController{ctrl: ctrl}
	mock.recorder = &MockControllerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockController) EXPECT() *MockControllerMockRecorder {
	return m.recorder
}

// RequestScreenAudio mocks base method.
func (m *MockController) RequestScreenAudio(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RequestScreenAudio", ctx)
	ret0, _ := ret[0].(error)
	return ret0
}

// RequestScreenAudio indicates an expected call of RequestScreenAudio.
func (mr *MockControllerMockRecorder) RequestScreenAudio(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RequestScreenAudio", reflect.TypeOf((*MockController)(nil).RequestScreenAudio), ctx)
}

// StartTranscription mocks base method.
func (m *MockController) StartTranscription(ctx context.Context, cfg StartConfig) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "StartTranscription", ctx, cfg)
	ret0, _ := ret[0].(error)
	return ret0
}

// StartTranscription indicates an expected call of StartTranscription.
func (mr *MockControllerMockRecorder) StartTranscription(ctx, cfg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "StartTranscription", reflect.TypeOf((*MockController)(nil).StartTranscription), ctx, cfg)
}

// StopTranscription mocks base method.
func (m *MockController) StopTranscription(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "StopTranscription", ctx)
	ret0, _ := ret[0].(error)
	return ret0
}

// StopTranscription indicates an expected call of StopTranscription.
func (mr *MockControllerMockRecorder) StopTranscription(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "StopTranscription", reflect.TypeOf((*MockController)(nil).StopTranscription), ctx)
}

// MockAnalysisSink is a mock of AnalysisSink interface.
type MockAnalysisSink struct {
	ctrl     *gomock.Controller
	recorder *MockAnalysisSinkMockRecorder
	isgomock struct{}
}

// MockAnalysisSinkMockRecorder is the mock recorder for MockAnalysisSink.
type MockAnalysisSinkMockRecorder struct {
	mock *MockAnalysisSink
}

// NewMockAnalysisSink creates a new mock instance.
func NewMockAnalysisSink(ctrl *gomock.Controller) *MockAnalysisSink {
	mock := &MockAnalysisSink{ctrl: ctrl}
	mock.recorder = &MockAnalysisSinkMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAnalysisSink) EXPECT() *MockAnalysisSinkMockRecorder {
	return m.recorder
}

// TrackSessionAnalysis mocks base method.
func (m *MockAnalysisSink) TrackSessionAnalysis(ctx context.Context, t Transcript) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TrackSessionAnalysis", ctx, t)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// TrackSessionAnalysis indicates an expected call of TrackSessionAnalysis.
func (mr *MockAnalysisSinkMockRecorder) TrackSessionAnalysis(ctx, t any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TrackSessionAnalysis", reflect.TypeOf((*MockAnalysisSink)(nil).TrackSessionAnalysis), ctx, t)
}
