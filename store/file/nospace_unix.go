// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package file

import "syscall"

var errNoSpace error = syscall.ENOSPC
