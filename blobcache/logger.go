// Copyright (C) 2021 Alibaba Cloud. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package blobcache

import "github.com/sirupsen/logrus"

var blobcacheLog = logrus.WithField("subsystem", "blobcache")

// SetLogger installs the package-wide logger, mirroring
// pkg/katautils/logger.go's SetLogger hook.
func SetLogger(logger *logrus.Entry) {
	blobcacheLog = logger.WithField("subsystem", "blobcache")
}
