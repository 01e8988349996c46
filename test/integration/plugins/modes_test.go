// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package plugins_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"

	"github.com/holomush/snapplugin/internal/preamble"
	"github.com/holomush/snapplugin/internal/tls/tlstest"
	"github.com/holomush/snapplugin/pkg/client"
)

func start(path string, args ...string) *gexec.Session {
	GinkgoHelper()
	session, err := gexec.Start(exec.Command(path, args...), GinkgoWriter, GinkgoWriter)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { session.Kill().Wait(5 * time.Second) })
	return session
}

func startWithOutput(path string, args ...string) (*gexec.Session, *gbytes.Buffer) {
	GinkgoHelper()
	errBuf := gbytes.NewBuffer()
	session, err := gexec.Start(exec.Command(path, args...), GinkgoWriter, io.MultiWriter(errBuf, GinkgoWriter))
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { session.Kill().Wait(5 * time.Second) })
	return session, errBuf
}

var _ = Describe("Mutual TLS", func() {
	It("serves over TLS and advertises the root certificates", func() {
		certs, err := tlstest.WriteBundle(filepath.Join(GinkgoT().TempDir(), "certs"))
		Expect(err).NotTo(HaveOccurred())

		p := launch(bin.Collector, client.LaunchConfig{
			Args: []string{
				"--tls",
				"--cert-path", certs.ServerCert,
				"--key-path", certs.ServerKey,
				"--root-cert-paths", certs.CACert,
			},
			Dial: client.DialConfig{CertPath: certs.ClientCert, KeyPath: certs.ClientKey},
		})

		Expect(p.Preamble.Meta.TLSEnabled).To(BeTrue())
		Expect(p.Preamble.Meta.RootCertPaths).To(ConsistOf(certs.CACert))
		Expect(p.Ping(context.Background())).To(Succeed())
	})

	It("writes a failure preamble when the key is missing", func() {
		session := start(bin.Collector, "--tls", "--cert-path", "/nonexistent.crt", `{"LogLevel": 2}`)

		Eventually(session).WithTimeout(10 * time.Second).Should(gexec.Exit(1))
		pre, err := preamble.Decode(session.Out.Contents())
		Expect(err).NotTo(HaveOccurred())
		Expect(pre.State).To(Equal(preamble.StateFailure))
		Expect(*pre.ErrorMessage).To(ContainSubstring("key-path"))
	})
})

var _ = Describe("Standalone mode", func() {
	It("serves the preamble and metrics over HTTP until interrupted", func() {
		port := freePort()
		session := start(bin.Collector, "--stand-alone", "--stand-alone-port", strconv.Itoa(port))
		Eventually(session.Out).WithTimeout(10 * time.Second).Should(gbytes.Say("Plugin loaded at"))

		base := fmt.Sprintf("http://127.0.0.1:%d", port)
		resp, err := http.Get(base + "/")
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())

		var pre preamble.Preamble
		Expect(json.Unmarshal(body, &pre)).To(Succeed())
		Expect(pre.Meta.Name).To(Equal("rand"))
		Expect(pre.ListenAddress).To(HavePrefix("127.0.0.1:"))

		ready, err := http.Get(base + "/healthz/readiness")
		Expect(err).NotTo(HaveOccurred())
		_ = ready.Body.Close()
		Expect(ready.StatusCode).To(Equal(http.StatusOK))

		metrics, err := http.Get(base + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		text, _ := io.ReadAll(metrics.Body)
		_ = metrics.Body.Close()
		Expect(string(text)).To(ContainSubstring("snap_plugin_"))

		session.Interrupt()
		Eventually(session).WithTimeout(10 * time.Second).Should(gexec.Exit(0))
	})

	It("logs and exits when the port is taken", func() {
		port := freePort()
		first := start(bin.Collector, "--stand-alone", "--stand-alone-port", strconv.Itoa(port))
		Eventually(first.Out).WithTimeout(10 * time.Second).Should(gbytes.Say("Plugin loaded at"))

		second, stderr := startWithOutput(bin.Collector, "--stand-alone", "--stand-alone-port", strconv.Itoa(port))
		Eventually(second).WithTimeout(10 * time.Second).Should(gexec.Exit())
		Expect(stderr).To(gbytes.Say("port already in use"))
	})
})

var _ = Describe("Diagnostic mode", func() {
	It("prints a report for a collector", func() {
		session := start(bin.Collector, "--max", "3")

		Eventually(session).WithTimeout(10 * time.Second).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say("Runtime Details:"))
		Expect(session.Out).To(gbytes.Say("Plugin Name: rand, Plugin Version: 1"))
		Expect(session.Out).To(gbytes.Say("NAMESPACE"))
		Expect(session.Out).To(gbytes.Say("Metrics that can be collected right now are:"))
		Expect(session.Out).To(gbytes.Say("/random/integer"))
		Expect(session.Out).To(gbytes.Say("Printing diagnostic took"))
	})

	It("declines for a processor", func() {
		session := start(bin.Processor)

		Eventually(session).WithTimeout(10 * time.Second).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say("diagnostic is supported only by collector plugins"))
	})

	It("prints the version", func() {
		session := start(bin.Publisher, "--version")

		Eventually(session).WithTimeout(10 * time.Second).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say(`file v1`))
	})
})

var _ = Describe("snapctl", func() {
	It("collects through a processor and a publisher", func() {
		out := filepath.Join(GinkgoT().TempDir(), "published.log")
		session := start(bin.Snapctl, "collect", bin.Collector,
			"--filter", "/random/integer",
			"--set", "max=5",
			"--set", "tags=team:metrics",
			"--set", "file="+out,
			"--process", bin.Processor,
			"--publish", bin.Publisher,
		)

		Eventually(session).WithTimeout(30 * time.Second).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say("/random/integer"))
		Expect(session.Out).To(gbytes.Say("team=metrics"))
		Expect(out).To(BeAnExistingFile())
	})

	It("prints the preamble as JSON", func() {
		session := start(bin.Snapctl, "preamble", bin.Streamer, "--json")

		Eventually(session).WithTimeout(30 * time.Second).Should(gexec.Exit(0))
		var pre preamble.Preamble
		Expect(json.Unmarshal(session.Out.Contents(), &pre)).To(Succeed())
		Expect(pre.Meta.Name).To(Equal("rand-stream"))
	})
})
