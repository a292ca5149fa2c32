// Copyright 2024 The SMT Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merkle

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/fieldtree/smt/field"
)

// MockStorage is a hand-written gomock-style mock of Storage, following
// the EXPECT()/Return() shape mockgen would generate.
type MockStorage struct {
	ctrl     *gomock.Controller
	recorder *MockStorageRecorder
}

type MockStorageRecorder struct {
	mock *MockStorage
}

func NewMockStorage(ctrl *gomock.Controller) *MockStorage {
	m := &MockStorage{ctrl: ctrl}
	m.recorder = &MockStorageRecorder{m}
	return m
}

func (m *MockStorage) EXPECT() *MockStorageRecorder {
	return m.recorder
}

func (m *MockStorage) Get(ctx context.Context, key *field.Hash) (*Node, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", ctx, key)
	n, _ := ret[0].(*Node)
	err, _ := ret[1].(error)
	return n, err
}

func (mr *MockStorageRecorder) Get(ctx, key interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockStorage)(nil).Get), ctx, key)
}

func (m *MockStorage) Put(ctx context.Context, key *field.Hash, n *Node) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Put", ctx, key, n)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockStorageRecorder) Put(ctx, key, n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Put", reflect.TypeOf((*MockStorage)(nil).Put), ctx, key, n)
}

func (m *MockStorage) GetRoot(ctx context.Context) (*field.Hash, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetRoot", ctx)
	h, _ := ret[0].(*field.Hash)
	err, _ := ret[1].(error)
	return h, err
}

func (mr *MockStorageRecorder) GetRoot(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetRoot", reflect.TypeOf((*MockStorage)(nil).GetRoot), ctx)
}

func (m *MockStorage) SetRoot(ctx context.Context, key *field.Hash) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetRoot", ctx, key)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockStorageRecorder) SetRoot(ctx, key interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetRoot", reflect.TypeOf((*MockStorage)(nil).SetRoot), ctx, key)
}
