// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Command agentctl is a thin entry point wiring the sandbox, virtio,
// erofs and blobcache packages into a runnable guest agent skeleton. The
// RPC surface a real guest agent exposes over vsock is out of scope
// here; this binary only proves the pieces link together the way the
// teacher's own cli/main.go wires virtcontainers, the vm factory, and
// the oci package behind one cli.App.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/kata-containers/kata-containers-sub013/blobcache"
	"github.com/kata-containers/kata-containers-sub013/pkg/katautils"
	"github.com/kata-containers/kata-containers-sub013/sandbox"
	"github.com/kata-containers/kata-containers-sub013/virtio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const name = "agentctl"

var agentLog = logrus.WithFields(logrus.Fields{
	"name":   name,
	"source": "agentctl",
	"pid":    os.Getpid(),
})

var defaultOutputFile = os.Stdout
var defaultErrorFile = os.Stderr

func setExternalLoggers(logger *logrus.Entry) {
	sandbox.SetLogger(logger)
	blobcache.SetLogger(logger)
	katautils.SetLogger(logger)
}

var runtimeFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "agent config file path",
	},
	cli.StringFlag{
		Name:  "log",
		Value: "/dev/null",
		Usage: "set the log file path where internal debug information is written",
	},
	cli.UintFlag{
		Name:  "vsock-port",
		Value: 1024,
		Usage: "vsock port the agent listens on",
	},
	cli.StringFlag{
		Name:  "sandbox-id",
		Usage: "sandbox id to use instead of minting a random one",
	},
	cli.StringFlag{
		Name:  "syslog",
		Usage: "network:address of a syslog daemon to forward logs to (e.g. udp:host:514), local daemon if address is empty",
	},
}

var startCommand = cli.Command{
	Name:  "start",
	Usage: "bring up the sandbox controller and bind its transport",
	Action: func(c *cli.Context) error {
		cfg := sandbox.DefaultConfig()
		if path := c.GlobalString("config"); path != "" {
			if !katautils.FileExists(path) {
				return fmt.Errorf("config file %s does not exist", path)
			}
			if err := katautils.LoadToml(path, &cfg); err != nil {
				return err
			}
		}

		sandboxID := randomSandboxID()
		if id := c.GlobalString("sandbox-id"); id != "" {
			if err := katautils.VerifyContainerID(id); err != nil {
				return err
			}
			sandboxID = id
		}

		sb := sandbox.NewSandbox(sandboxID, "kata-agent", cfg)
		agentLog.WithField("sandbox_id", sb.ID).Info("sandbox controller initialized")

		reg := prometheus.NewRegistry()
		virtio.NewMetrics(reg)
		blobcache.NewMetrics(reg)
		mfs, err := reg.Gather()
		if err != nil {
			return fmt.Errorf("failed to self-check metrics registration: %w", err)
		}
		agentLog.WithField("metric_families", len(mfs)).Info("virtio and blobcache metrics registered")

		l, err := katautils.ListenVsock(uint32(c.GlobalUint("vsock-port")))
		if err != nil {
			return fmt.Errorf("failed to bind agent transport: %w", err)
		}
		defer l.Close()

		agentLog.WithField("vsock_port", l.Port).Info("agent transport bound, RPC surface not implemented")
		return nil
	},
}

var versionCommand = cli.Command{
	Name:  "version",
	Usage: "print version information",
	Action: func(c *cli.Context) error {
		fmt.Fprintln(defaultOutputFile, name)
		return nil
	},
}

func beforeCommands(c *cli.Context) error {
	if path := c.GlobalString("log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o640)
		if err != nil {
			return err
		}
		agentLog.Logger.Out = f
	}
	setExternalLoggers(agentLog)

	if spec := c.GlobalString("syslog"); spec != "" {
		network, raddr, err := parseSyslogSpec(spec)
		if err != nil {
			return err
		}
		if err := katautils.AddSystemLogHook(network, raddr); err != nil {
			return fmt.Errorf("failed to wire syslog forwarding: %w", err)
		}
	}

	return nil
}

// parseSyslogSpec splits a "network:address" --syslog flag value, allowing
// the address half to be empty (forwarding to the local syslog daemon).
func parseSyslogSpec(spec string) (network, raddr string, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid --syslog value %q, expected network:address", spec)
	}
	return parts[0], parts[1], nil
}

func createApp() *cli.App {
	app := cli.NewApp()
	app.Name = name
	app.Usage = "guest-side sandbox agent control"
	app.Writer = defaultOutputFile
	app.Flags = runtimeFlags
	app.Commands = []cli.Command{startCommand, versionCommand}
	app.Before = beforeCommands
	return app
}

// randomSandboxID generates a 16-byte hex sandbox identifier. A real
// agent receives its sandbox ID from the runtime's CreateSandbox RPC;
// agentctl has no such caller, so it mints one locally.
func randomSandboxID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		agentLog.WithError(err).Warn("failed to read random sandbox id, falling back to pid-derived id")
		return fmt.Sprintf("sandbox-%d", os.Getpid())
	}
	return hex.EncodeToString(buf)
}

// osExit is a var so tests can intercept process exit, matching the
// teacher's own exitFunc indirection in cli/main.go.
var osExit = os.Exit

func fatal(err error) {
	agentLog.Error(err)
	fmt.Fprintln(defaultErrorFile, err)
	osExit(1)
}

func main() {
	if err := createApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
