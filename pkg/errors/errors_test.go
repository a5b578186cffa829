// Copyright 2026 fanjia1024
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

package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
	if wrapped.Error() != "context: base" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrapf(err, "deck=%s", "d1")
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestMark(t *testing.T) {
	if Mark(nil, ErrStorage) != nil {
		t.Error("Mark(nil) should return nil")
	}
	base := errors.New("connection reset")
	marked := Mark(base, ErrStorage)
	if !errors.Is(marked, ErrStorage) {
		t.Error("marked error should match ErrStorage")
	}
	if !errors.Is(marked, base) {
		t.Error("marked error should still match base")
	}
	if !IsStorage(Wrap(marked, "add cards")) {
		t.Error("IsStorage should see through Wrap")
	}
	if Mark(marked, ErrStorage) != marked {
		t.Error("marking twice should be a no-op")
	}
}

func TestSentinels(t *testing.T) {
	for _, s := range []error{ErrNotFound, ErrInvalidArg, ErrConflict, ErrStorage} {
		if !Is(s, s) {
			t.Errorf("%v should match itself", s)
		}
	}
	if Is(ErrConflict, ErrStorage) {
		t.Error("sentinels should be distinct")
	}
}
