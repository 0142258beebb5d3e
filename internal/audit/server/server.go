// Package server is the HTTP surface of the audit service: the /check and
// /lead endpoints with CORS, JSON encoding, and cache/snapshot coordination.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sitescan/engine/internal/audit/cache"
	"github.com/sitescan/engine/internal/audit/events"
	"github.com/sitescan/engine/internal/audit/lead"
	"github.com/sitescan/engine/internal/audit/metrics"
	"github.com/sitescan/engine/internal/audit/orchestrator"
	"github.com/sitescan/engine/internal/audit/snapshot"
	"github.com/sitescan/engine/internal/audit/urlnorm"
	"github.com/sitescan/engine/internal/common/httputil"
	"github.com/sitescan/engine/internal/common/requestid"
	"github.com/sitescan/engine/pkg/types"
)

// Outcome labels used for metrics and event logging.
const (
	outcomeOK      = "ok"
	outcomeBlocked = "blocked"
	outcomeTimeout = "timeout"
	outcomeCached  = "cached"
	outcomeError   = "error"
)

// Server routes audit service requests.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	cache        cache.Store
	snapshots    *snapshot.BlobStore
	shareBase    string
	forwarder    *lead.Forwarder
	collector    *metrics.Collector
	emitter      events.Emitter
	logger       *zap.Logger
}

// New wires the server. snapshots, forwarder, collector, and emitter may be
// nil when the corresponding feature is disabled.
func New(
	orch *orchestrator.Orchestrator,
	cacheStore cache.Store,
	snapshots *snapshot.BlobStore,
	shareBase string,
	forwarder *lead.Forwarder,
	collector *metrics.Collector,
	emitter events.Emitter,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orch,
		cache:        cacheStore,
		snapshots:    snapshots,
		shareBase:    shareBase,
		forwarder:    forwarder,
		collector:    collector,
		emitter:      emitter,
		logger:       logger,
	}
}

// HandleRequest is the fasthttp entrypoint.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	requestID := requestid.New()
	ctx.Response.Header.Set("X-Request-ID", requestID)
	logger := s.logger.With(zap.String("request_id", requestID))

	switch string(ctx.Path()) {
	case "/health":
		ctx.SetContentType("text/plain")
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("OK")
	case "/check":
		s.handleCheck(ctx, requestID, logger)
	case "/lead":
		s.handleLead(ctx, logger)
	default:
		logger.Warn("Not found", zap.String("path", string(ctx.Path())))
		httputil.JSONErrors(ctx, fasthttp.StatusNotFound, "endpoint not found")
	}
}

type checkRequest struct {
	URL      string `json:"url"`
	NoCache  bool   `json:"nocache,omitempty"`
	Snapshot bool   `json:"snapshot,omitempty"`
}

func (s *Server) handleCheck(ctx *fasthttp.RequestCtx, requestID string, logger *zap.Logger) {
	httputil.ApplyCORS(ctx)

	switch {
	case ctx.IsOptions():
		ctx.SetStatusCode(fasthttp.StatusNoContent)

	case ctx.IsGet():
		args := ctx.QueryArgs()
		blob := string(args.Peek("blob"))
		legacyID := string(args.Peek("id"))
		if blob != "" || legacyID != "" {
			s.serveSnapshot(ctx, blob, legacyID, logger)
			return
		}

		target := string(args.Peek("url"))
		if target == "" {
			httputil.JSON(ctx, fasthttp.StatusOK, map[string]interface{}{"ok": true, "ping": "pong"})
			return
		}

		s.runAudit(ctx, checkRequest{
			URL:     target,
			NoCache: string(args.Peek("nocache")) == "1",
		}, requestID, logger)

	case ctx.IsPost():
		var req checkRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.URL == "" {
			httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, "url is required")
			return
		}
		s.runAudit(ctx, req, requestID, logger)

	default:
		httputil.JSONErrors(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	}
}

// serveSnapshot loads a persisted report by blob path/URL or legacy id.
func (s *Server) serveSnapshot(ctx *fasthttp.RequestCtx, blob, legacyID string, logger *zap.Logger) {
	if s.snapshots == nil {
		httputil.JSONErrors(ctx, fasthttp.StatusNotFound, "snapshot store not configured")
		return
	}

	reqCtx := context.Background()
	var report *types.Report
	var err error
	if blob != "" {
		report, err = s.snapshots.Load(reqCtx, blob)
	} else {
		report, err = s.snapshots.LoadLegacy(reqCtx, legacyID)
	}

	if err != nil {
		if s.collector != nil {
			s.collector.ObserveSnapshot("load", "error")
		}
		if errors.Is(err, snapshot.ErrNotFound) {
			httputil.JSONErrors(ctx, fasthttp.StatusNotFound, err.Error())
			return
		}
		logger.Error("Snapshot load failed", zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}

	if s.collector != nil {
		s.collector.ObserveSnapshot("load", "ok")
	}
	report.FromSnapshot = true
	httputil.JSON(ctx, fasthttp.StatusOK, report)
}

// runAudit serves a report from cache when possible, otherwise runs a fresh
// audit and stores or snapshots the result.
func (s *Server) runAudit(ctx *fasthttp.RequestCtx, req checkRequest, requestID string, logger *zap.Logger) {
	key, err := urlnorm.CanonicalKey(req.URL)
	if err != nil {
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	keyHash := urlnorm.KeyHash(key)

	// In snapshot mode the cache is neither read nor written: a share link
	// must reflect the exact run it was requested for.
	useCache := !req.NoCache && !req.Snapshot
	reqCtx := context.Background()

	if useCache {
		if payload, age, ok := s.cache.Get(reqCtx, keyHash); ok {
			if s.collector != nil {
				s.collector.CacheHit()
			}
			served := *payload
			served.Cached = true
			served.CacheAgeMs = age.Milliseconds()
			s.emitEvent(requestID, served.NormalizedURL, outcomeCached, &served, 0)
			httputil.JSON(ctx, fasthttp.StatusOK, &served)
			return
		}
		if s.collector != nil {
			s.collector.CacheMiss()
		}
	}

	if s.collector != nil {
		s.collector.IncActiveAudits()
		defer s.collector.DecActiveAudits()
	}

	start := time.Now()
	// The audit deliberately runs on a background context: a client
	// disconnect must not cancel it, and its result may still populate the
	// cache.
	report, err := s.orchestrator.Run(reqCtx, req.URL, logger)
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("Audit failed", zap.String("url", req.URL), zap.Error(err))
		if s.collector != nil {
			s.collector.ObserveAudit(outcomeError, elapsed.Seconds())
		}
		s.emitEvent(requestID, req.URL, outcomeError, nil, elapsed)
		httputil.JSONErrors(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}

	outcome := outcomeOK
	switch {
	case report.Blocked:
		outcome = outcomeBlocked
	case report.Timeout:
		outcome = outcomeTimeout
	}
	if s.collector != nil {
		s.collector.ObserveAudit(outcome, elapsed.Seconds())
	}

	if req.Snapshot {
		s.persistSnapshot(reqCtx, report, logger)
	} else if useCache && cache.Cacheable(report) {
		s.cache.Set(reqCtx, keyHash, report)
	}

	s.emitEvent(requestID, report.NormalizedURL, outcome, report, elapsed)
	httputil.JSON(ctx, fasthttp.StatusOK, report)
}

// persistSnapshot saves the report and attaches the share references. A save
// failure degrades to a plain response; the audit result is still returned.
func (s *Server) persistSnapshot(ctx context.Context, report *types.Report, logger *zap.Logger) {
	if s.snapshots == nil {
		logger.Warn("Snapshot requested but store not configured")
		return
	}

	path, absoluteURL, err := s.snapshots.Save(ctx, report)
	if err != nil {
		logger.Error("Snapshot save failed", zap.Error(err))
		if s.collector != nil {
			s.collector.ObserveSnapshot("save", "error")
		}
		return
	}
	if s.collector != nil {
		s.collector.ObserveSnapshot("save", "ok")
	}

	report.ShareBlobPath = path
	report.ShareBlobURL = absoluteURL
	report.ShareURL = snapshot.ShareURL(s.shareBase, path)
}

func (s *Server) handleLead(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	httputil.ApplyCORS(ctx)

	if ctx.IsOptions() {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}
	if !ctx.IsPost() {
		httputil.JSONErrors(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var submission lead.Submission
	if err := json.Unmarshal(ctx.PostBody(), &submission); err != nil {
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	if errs := submission.Validate(); len(errs) > 0 {
		httputil.JSONErrors(ctx, fasthttp.StatusBadRequest, errs...)
		return
	}

	if s.forwarder == nil {
		httputil.JSONErrors(ctx, fasthttp.StatusServiceUnavailable, "lead capture is not configured")
		return
	}

	id, err := s.forwarder.Send(context.Background(), &submission)
	if err != nil {
		logger.Error("Lead forwarding failed", zap.Error(err))
		httputil.JSONErrors(ctx, fasthttp.StatusBadGateway, "failed to forward lead")
		return
	}

	resp := map[string]interface{}{"ok": true}
	if id != "" {
		resp["id"] = id
	}
	httputil.JSON(ctx, fasthttp.StatusOK, resp)
}

// emitEvent logs one completed request to the audit event log.
func (s *Server) emitEvent(requestID, url, outcome string, report *types.Report, elapsed time.Duration) {
	if s.emitter == nil {
		return
	}
	event := events.AuditEvent{
		Time:       time.Now(),
		RequestID:  requestID,
		URL:        url,
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
		Source:     "audit",
	}
	if outcome == outcomeCached {
		event.Source = "cache"
	}
	if report != nil && report.Score != nil {
		event.Score = *report.Score
	}
	s.emitter.Emit(event)
}
