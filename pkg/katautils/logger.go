// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2018 HyperHQ Inc.
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"log/syslog"
	"time"

	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
)

var katautilsLog = logrus.WithField("subsystem", "katautils")

// SYSLOGTAG is for a consistently named syslog identifier
const SYSLOGTAG = "kata"

// SetLogger installs the package-wide logger, mirroring
// sandbox.SetLogger/blobcache.SetLogger's convention so cmd/agentctl wires
// all three packages off the same *logrus.Entry.
func SetLogger(logger *logrus.Entry) {
	katautilsLog = logger.WithField("subsystem", "katautils")
}

// sysLogHook wraps a syslog logrus hook and a formatter to be used for all
// syslog entries.
//
// This is necessary to allow the main logger (for "--log=") to keep its own
// formatter whilst allowing the system logger to use a different formatter.
type sysLogHook struct {
	shook     *lSyslog.SyslogHook
	formatter logrus.Formatter
}

func (h *sysLogHook) Levels() []logrus.Level {
	return h.shook.Levels()
}

// Fire is responsible for adding a log entry to the system log. It switches
// formatter before adding the system log entry, then reverts the original log
// formatter.
func (h *sysLogHook) Fire(e *logrus.Entry) (err error) {
	formatter := e.Logger.Formatter

	e.Logger.Formatter = h.formatter

	err = h.shook.Fire(e)

	e.Logger.Formatter = formatter

	return err
}

func newSystemLogHook(network, raddr string) (*sysLogHook, error) {
	hook, err := lSyslog.NewSyslogHook(network, raddr, syslog.LOG_INFO, SYSLOGTAG)
	if err != nil {
		return nil, err
	}

	return &sysLogHook{
		formatter: &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		},
		shook: hook,
	}, nil
}

// AddSystemLogHook wires a syslog hook into the package logger so every
// subsequent katautils log entry is also forwarded to network/raddr (e.g.
// "", "" for the local syslog daemon, or "udp", "host:514" for a remote
// one). The hook is added to the logrus.Logger behind the package logger,
// so entries from every other package logger built on that same Logger are
// forwarded too (by default, and after cmd/agentctl's SetLogger fan-out,
// the sandbox and blobcache loggers share it).
func AddSystemLogHook(network, raddr string) error {
	hook, err := newSystemLogHook(network, raddr)
	if err != nil {
		return err
	}

	katautilsLog.Logger.Hooks.Add(hook)

	return nil
}
