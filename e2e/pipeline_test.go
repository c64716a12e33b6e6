//go:build e2e

package e2e

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/terassyi/vx/internal/ensure"
	"github.com/terassyi/vx/internal/fetch"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/pipeline"
	"github.com/terassyi/vx/internal/prepare"
	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
)

// fakeArchive builds a tar.gz in memory containing one executable shell
// script at bin/faketool that echoes a marker and exits 0.
func fakeArchive() []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	body := "#!/bin/sh\necho hello-from-faketool\nexit 0\n"
	Expect(tw.WriteHeader(&tar.Header{
		Name: "bin/faketool",
		Mode: 0o755,
		Size: int64(len(body)),
	})).To(Succeed())
	_, err := tw.Write([]byte(body))
	Expect(err).NotTo(HaveOccurred())

	Expect(tw.Close()).To(Succeed())
	Expect(gz.Close()).To(Succeed())
	return buf.Bytes()
}

// newFakePipeline wires a Controller against one fake HTTP-served runtime:
// no real network access, no real tool, just the store/provider/pipeline
// wiring exercised end to end. The httptest server is closed automatically
// via DeferCleanup.
func newFakePipeline() (*pipeline.Controller, *store.Store) {
	archive := fakeArchive()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(archive)
	}))
	DeferCleanup(server.Close)

	s := store.NewAt(GinkgoT().TempDir())

	pm := manifest.ProviderManifest{
		Provider: manifest.ProviderMeta{Name: "faketool"},
		Runtimes: []manifest.RuntimeDef{{
			Name:       "faketool",
			Executable: "faketool",
			Source: &manifest.DownloadSource{
				URLTemplate: server.URL + "/faketool-{version}.tar.gz",
			},
			ArchiveLayout: &manifest.ArchiveLayout{ExecRelPath: "bin/faketool"},
		}},
	}
	idx := manifest.NewIndex(pm)

	reg := provider.NewRegistry(idx)
	reg.Register("faketool", func(meta manifest.RuntimeMetadata) (provider.Runtime, error) {
		fetcher := fetch.FetcherFunc(func(ctx context.Context, rc *rtctx.RuntimeContext) ([]rtctx.VersionInfo, error) {
			v, err := version.Parse("1.0.0")
			if err != nil {
				return nil, err
			}
			return []rtctx.VersionInfo{{Version: v}}, nil
		})
		return provider.NewGenericRuntime(meta, fetcher), nil
	})
	Expect(reg.Build()).To(Succeed())

	rc := &rtctx.RuntimeContext{HTTPClient: server.Client(), Store: s, Platform: version.Current()}
	resolver := resolve.NewResolver(idx, reg, nil, s, rc)
	ensureStage := ensure.NewStage(reg, s, rc, true)
	prepareStage := prepare.NewStage(reg, s, rc)
	return pipeline.NewController(resolver, ensureStage, prepareStage, nil), s
}

// pipelineTests exercises the full Resolve -> Ensure -> Prepare -> Execute
// pipeline against a fake provider.
func pipelineTests() {
	It("resolves, installs, and executes a runtime it has never seen before", func() {
		ctrl, s := newFakePipeline()

		By("Running the pipeline for faketool with no explicit version")
		spec := resolve.ToolSpec{Name: "faketool", Request: resolve.VersionRequest{Kind: resolve.RequestLatest}}

		var published *resolve.ResolutionPlan
		ctrl.OnEnsured = func(plan *resolve.ResolutionPlan) { published = plan }

		code, metrics, err := ctrl.Run(context.Background(), spec, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(0))

		By("Checking every stage recorded a duration")
		Expect(metrics.Stages).To(HaveLen(4))

		By("Checking the resolved plan reached the install version")
		Expect(published).NotTo(BeNil())
		Expect(published.Root().Version.String()).To(Equal("1.0.0"))

		By("Checking the version directory now exists under the store")
		versions, err := s.ListToolVersions("faketool")
		Expect(err).NotTo(HaveOccurred())
		Expect(versions).To(ContainElement("1.0.0"))
	})

	It("reports an unknown runtime as a classified resolve error", func() {
		ctrl, _ := newFakePipeline()
		spec := resolve.ToolSpec{Name: "does-not-exist", Request: resolve.VersionRequest{Kind: resolve.RequestLatest}}

		code, _, err := ctrl.Run(context.Background(), spec, nil)
		Expect(err).To(HaveOccurred())
		Expect(code).To(Equal(1))
		Expect(err.Error()).To(ContainSubstring("does-not-exist"))
	})
}
