// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"
	"log/slog"
)

// assertLog mirrors the teacher's IfPanic(NewError(ret)) idiom: a
// programmer error (null argument, zero size, wrong tag, unbalanced
// scope) is logged and then panics, since the contract says these are
// not recoverable.
func assertLog(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	slog.Error("alloc: programmer error", "msg", msg)
	panic(msg)
}
