// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package plugins_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/holomush/snapplugin/internal/preamble"
	"github.com/holomush/snapplugin/pkg/client"
	"github.com/holomush/snapplugin/pkg/plugin"
)

var _ = Describe("Served mode", func() {
	ctx := context.Background()

	Describe("collector", func() {
		It("advertises itself and serves typed calls", func() {
			p := launch(bin.Collector, client.LaunchConfig{Args: []string{"--max", "5"}})

			Expect(p.Preamble.State).To(Equal(preamble.StateSuccess))
			Expect(p.Preamble.Meta.Name).To(Equal("rand"))
			Expect(p.Preamble.Meta.Type).To(Equal(int(plugin.KindCollector)))
			Expect(p.Preamble.Meta.ConcurrencyCount).To(Equal(2))
			Expect(p.Preamble.Meta.CacheTTL).To(Equal(int64(time.Second)))
			Expect(p.Preamble.ListenAddress).To(HavePrefix("127.0.0.1:"))

			policy, err := p.GetConfigPolicy(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(policy.Defaults(plugin.NewNamespace("random", "integer"))).To(HaveKeyWithValue("max", int64(5)))

			catalog, err := p.GetMetricTypes(ctx, plugin.ConfigMap{"include": "/random/integer"})
			Expect(err).NotTo(HaveOccurred())
			Expect(catalog).To(HaveLen(1))

			values, err := p.CollectMetrics(ctx, catalog)
			Expect(err).NotTo(HaveOccurred())
			Expect(values).To(HaveLen(1))
			Expect(values[0].Data).To(BeNumerically("<", 5))
			Expect(values[0].Version).To(Equal(int64(1)))
		})

		It("speaks the cbor codec", func() {
			p := launch(bin.Collector, client.LaunchConfig{Dial: client.DialConfig{Codec: client.CodecCBOR}})

			values, err := p.CollectMetrics(ctx, []plugin.Metric{{Namespace: plugin.NewNamespace("random", "string")}})
			Expect(err).NotTo(HaveOccurred())
			Expect(values[0].Data).To(HaveLen(8))
		})

		It("reports plugin errors with the plugin's stack trace", func() {
			p := launch(bin.Collector, client.LaunchConfig{})

			_, err := p.CollectMetrics(ctx, []plugin.Metric{{Namespace: plugin.NewNamespace("random", "bogus")}})
			Expect(err).To(MatchError("unknown metric /random/bogus"))
			oopsErr, ok := oops.AsOops(err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal(client.CodePluginFailed))
			Expect(oopsErr.Context()).To(HaveKeyWithValue("plugin_stack", Not(BeEmpty())))
		})

		It("exits cleanly on Kill", func() {
			p := launch(bin.Collector, client.LaunchConfig{})

			Expect(p.Stop(ctx)).To(Succeed())
			Expect(p.ExitCode()).To(Equal(0))
		})

		It("shuts itself down when the orchestrator stops pinging", func() {
			p := launch(bin.Collector, client.LaunchConfig{
				Config: map[string]any{"PingTimeoutDuration": 100},
			})

			Eventually(p.Exited()).WithTimeout(5 * time.Second).Should(BeClosed())
			Expect(p.ExitCode()).To(Equal(0))
		})

		It("keeps running while pinged", func() {
			p := launch(bin.Collector, client.LaunchConfig{
				Config: map[string]any{"PingTimeoutDuration": 200},
			})

			Consistently(func() error {
				return p.Ping(ctx)
			}).WithTimeout(time.Second).WithPolling(50 * time.Millisecond).Should(Succeed())
			Expect(p.Exited()).NotTo(BeClosed())
		})
	})

	Describe("pipeline", func() {
		It("collects, tags and publishes", func() {
			out := filepath.Join(GinkgoT().TempDir(), "metrics.log")
			collector := launch(bin.Collector, client.LaunchConfig{})
			processor := launch(bin.Processor, client.LaunchConfig{})
			publisher := launch(bin.Publisher, client.LaunchConfig{})

			Expect(publisher.Preamble.Meta.Exclusive).To(BeTrue())

			catalog, err := collector.GetMetricTypes(ctx, plugin.ConfigMap{})
			Expect(err).NotTo(HaveOccurred())
			values, err := collector.CollectMetrics(ctx, catalog)
			Expect(err).NotTo(HaveOccurred())

			tagged, err := processor.Process(ctx, values, plugin.ConfigMap{"tags": "dc:east", "match": "/random/*"})
			Expect(err).NotTo(HaveOccurred())
			for _, m := range tagged {
				Expect(m.Tags).To(HaveKeyWithValue("dc", "east"))
			}

			Expect(publisher.Publish(ctx, tagged, plugin.ConfigMap{"file": out})).To(Succeed())

			f, err := os.Open(out)
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()
			var lines []map[string]any
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				var rec map[string]any
				Expect(json.Unmarshal(sc.Bytes(), &rec)).To(Succeed())
				lines = append(lines, rec)
			}
			Expect(lines).To(HaveLen(len(catalog)))
			Expect(lines[0]).To(HaveKey("tags"))
		})
	})

	Describe("stream collector", func() {
		It("delivers batches of the requested size", func() {
			p := launch(bin.Streamer, client.LaunchConfig{Args: []string{"--interval", "10ms"}})

			catalog, err := p.GetMetricTypes(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			streamCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			recv, err := p.StreamMetrics(streamCtx, catalog, client.StreamOptions{MaxMetricsBuffer: 4})
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 3; i++ {
				batch, err := recv()
				Expect(err).NotTo(HaveOccurred())
				Expect(batch).To(HaveLen(4))
			}
		})

		It("flushes partial batches after the collect duration", func() {
			p := launch(bin.Streamer, client.LaunchConfig{Args: []string{"--interval", "20ms"}})

			streamCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			recv, err := p.StreamMetrics(streamCtx,
				[]plugin.Metric{{Namespace: plugin.NewNamespace("random", "stream", "float")}},
				client.StreamOptions{MaxMetricsBuffer: 1000, MaxCollectDuration: 100 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			batch, err := recv()
			Expect(err).NotTo(HaveOccurred())
			Expect(batch).NotTo(BeEmpty())
			Expect(len(batch)).To(BeNumerically("<", 1000))
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		})

		It("stops cleanly on Kill during a stream", func() {
			p := launch(bin.Streamer, client.LaunchConfig{Args: []string{"--interval", "10ms"}})

			recv, err := p.StreamMetrics(ctx,
				[]plugin.Metric{{Namespace: plugin.NewNamespace("random", "stream", "integer")}},
				client.StreamOptions{MaxMetricsBuffer: 1})
			Expect(err).NotTo(HaveOccurred())
			_, err = recv()
			Expect(err).NotTo(HaveOccurred())

			Expect(p.Stop(ctx)).To(Succeed())
			Expect(p.ExitCode()).To(Equal(0))
		})
	})
})
