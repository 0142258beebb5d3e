package audit_test

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sitescan/engine/pkg/types"
)

var _ = Describe("Check API", Serial, func() {
	Context("service endpoints", func() {
		It("responds to ping without a url", func() {
			resp, body := testEnv.DoJSON(http.MethodGet, "/check", nil)
			Expect(resp.StatusCode).To(Equal(200))
			Expect(body["ok"]).To(BeTrue())
			Expect(body["ping"]).To(Equal("pong"))
		})

		It("answers CORS preflight with 204", func() {
			req, err := http.NewRequest(http.MethodOptions, "http://audit.service/check", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Origin", "https://widget.test")
			req.Header.Set("Access-Control-Request-Headers", "content-type")

			resp, err := testEnv.Client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(204))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("https://widget.test"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("content-type"))
		})

		It("returns 404 for unknown paths", func() {
			resp, body := testEnv.DoJSON(http.MethodGet, "/nope", nil)
			Expect(resp.StatusCode).To(Equal(404))
			Expect(body["ok"]).To(BeFalse())
		})

		It("rejects invalid targets with 400", func() {
			resp, body := testEnv.DoJSON(http.MethodGet, "/check?url="+url.QueryEscape("not a url"), nil)
			Expect(resp.StatusCode).To(Equal(400))
			Expect(body["ok"]).To(BeFalse())
			Expect(body["errors"]).NotTo(BeEmpty())
		})
	})

	Context("running audits", func() {
		It("audits the healthy origin end to end", func() {
			resp, report := testEnv.GetReport("/check?url=" + url.QueryEscape(testEnv.OriginURL) + "&nocache=1")
			Expect(resp.StatusCode).To(Equal(200))

			Expect(report.OK).To(BeTrue())
			Expect(report.FetchedStatus).To(Equal(200))
			Expect(report.Title).To(Equal("Hello World Site Now"))

			By("classifying the core findings")
			for _, id := range []string{"http", "title-length", "meta-description", "viewport", "canonical", "robots", "sitemap", "noindex"} {
				c := report.FindCheck(id)
				Expect(c).NotTo(BeNil(), "check %s", id)
				Expect(c.Status).To(Equal(types.StatusPass), "check %s", id)
			}

			By("including the locked placeholders")
			for _, id := range types.LockedCheckIDs {
				c := report.FindCheck(id)
				Expect(c).NotTo(BeNil(), "locked check %s", id)
				Expect(c.Status).To(Equal(types.StatusLocked))
			}

			Expect(report.Score).NotTo(BeNil())
			Expect(*report.Score).To(BeNumerically(">=", 80))
		})

		It("serves the second audit from cache", func() {
			target := url.QueryEscape(testEnv.OriginURL)

			_, first := testEnv.GetReport("/check?url=" + target)
			Expect(first.Cached).To(BeFalse())

			_, second := testEnv.GetReport("/check?url=" + target)
			Expect(second.Cached).To(BeTrue())
			Expect(second.CacheAgeMs).To(BeNumerically(">=", 0))

			By("matching the original payload apart from the cache fields")
			Expect(second.FinalURL).To(Equal(first.FinalURL))
			Expect(second.Title).To(Equal(first.Title))
			Expect(*second.Score).To(Equal(*first.Score))
			Expect(len(second.Checks)).To(Equal(len(first.Checks)))
		})

		It("bypasses the cache with nocache=1", func() {
			target := url.QueryEscape(testEnv.OriginURL)

			testEnv.GetReport("/check?url=" + target)
			_, fresh := testEnv.GetReport("/check?url=" + target + "&nocache=1")
			Expect(fresh.Cached).To(BeFalse())
		})

		It("accepts POST bodies", func() {
			payload := fmt.Sprintf(`{"url":%q,"nocache":true}`, testEnv.OriginURL)
			resp, body := testEnv.DoJSON(http.MethodPost, "/check", strings.NewReader(payload))
			Expect(resp.StatusCode).To(Equal(200))
			Expect(body["ok"]).To(BeTrue())
			Expect(body["fetchedStatus"]).To(BeNumerically("==", 200))
		})

		It("rejects a POST without a url", func() {
			resp, body := testEnv.DoJSON(http.MethodPost, "/check", strings.NewReader(`{}`))
			Expect(resp.StatusCode).To(Equal(400))
			Expect(body["ok"]).To(BeFalse())
		})
	})

	Context("snapshots", func() {
		It("persists and reloads a shared report", func() {
			payload := fmt.Sprintf(`{"url":%q,"snapshot":true}`, testEnv.OriginURL)
			resp, body := testEnv.DoJSON(http.MethodPost, "/check", strings.NewReader(payload))
			Expect(resp.StatusCode).To(Equal(200))

			blobPath, _ := body["shareBlobPath"].(string)
			Expect(blobPath).To(HavePrefix("audits/"))
			Expect(body["shareBlobUrl"]).NotTo(BeEmpty())

			shareURL, _ := body["shareUrl"].(string)
			Expect(shareURL).To(ContainSubstring("blob="))

			By("loading the snapshot back through the API")
			_, loaded := testEnv.GetReport("/check?blob=" + url.QueryEscape(blobPath))
			Expect(loaded.FromSnapshot).To(BeTrue())
			Expect(loaded.Title).To(Equal("Hello World Site Now"))
		})

		It("returns 404 for a missing snapshot", func() {
			resp, body := testEnv.DoJSON(http.MethodGet, "/check?blob=audits/missing.json", nil)
			Expect(resp.StatusCode).To(Equal(404))
			Expect(body["ok"]).To(BeFalse())
		})
	})

	Context("lead capture", func() {
		It("forwards a valid lead", func() {
			before := testEnv.LeadRequests
			resp, body := testEnv.DoJSON(http.MethodPost, "/lead",
				strings.NewReader(`{"email":"pat@example.com","website":"example.com"}`))
			Expect(resp.StatusCode).To(Equal(200))
			Expect(body["ok"]).To(BeTrue())
			Expect(body["id"]).To(Equal("lead-1"))
			Expect(testEnv.LeadRequests).To(Equal(before + 1))
		})

		It("rejects an invalid lead", func() {
			resp, body := testEnv.DoJSON(http.MethodPost, "/lead",
				strings.NewReader(`{"email":"nope","website":""}`))
			Expect(resp.StatusCode).To(Equal(400))
			Expect(body["ok"]).To(BeFalse())
			Expect(body["errors"]).To(HaveLen(2))
		})
	})
})
