package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"reportchain/pkg/api/router"
	"reportchain/pkg/chain"
	"reportchain/pkg/logger"
	"reportchain/pkg/models"
	"reportchain/pkg/store"
	"reportchain/pkg/store/keys"
	"reportchain/pkg/telemetry"
)

// ChainResponse is the body of the chain route.
type ChainResponse struct {
	Actions   []models.ReportAction `json:"actions"`
	GapBefore string                `json:"gap_before"`
	HasGap    bool                  `json:"has_gap"`
}

// LastResponse is the body of the last visible action route.
type LastResponse struct {
	Action  models.ReportAction `json:"action"`
	Preview string              `json:"preview"`
}

// ActionsResponse is the body of the actions listing route.
// NewestCreated lets the sync layer ask the upstream API for newer actions.
type ActionsResponse struct {
	Actions       []models.ReportAction `json:"actions"`
	NewestCreated string                `json:"newest_created,omitempty"`
}

// Handlers serves the report action routes.
type Handlers struct {
	store    store.ReadWriter
	reader   *chain.Reader
	watcher  *chain.LastVisibleWatcher
	gatherer prometheus.Gatherer
	ready    func() bool
	base     context.Context
}

// Options wires the optional collaborators of Handlers.
// BaseContext bounds store calls and watches; it is cancelled on shutdown.
type Options struct {
	Watcher     *chain.LastVisibleWatcher
	Gatherer    prometheus.Gatherer
	Ready       func() bool
	BaseContext context.Context
}

func NewHandlers(s store.ReadWriter, reader *chain.Reader, o Options) *Handlers {
	h := &Handlers{store: s, reader: reader, watcher: o.Watcher, gatherer: o.Gatherer, ready: o.Ready, base: o.BaseContext}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}
	if h.base == nil {
		h.base = context.Background()
	}
	if h.ready == nil {
		h.ready = func() bool { return true }
	}
	return h
}

// RegisterRoutes mounts every route on r.
func (h *Handlers) RegisterRoutes(r *router.Router) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	r.GET("/v1/reports/{reportID}/actions/chain", h.ReadChain)
	r.GET("/v1/reports/{reportID}/actions/last", h.ReadLastVisible)
	r.GET("/v1/reports/{reportID}/actions", h.ReadActions)
	r.PUT("/v1/reports/{reportID}/actions", h.PutActions)
	r.DELETE("/v1/reports/{reportID}/actions/{actionID}", h.DeleteAction)

	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	})
}

func (h *Handlers) Healthz(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok"})
}

func (h *Handlers) Readyz(ctx *fasthttp.RequestCtx) {
	if !h.ready() {
		router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "not ready")
		return
	}
	_ = router.WriteJSON(ctx, map[string]string{"status": "ready"})
}

// validatedParam reads a path parameter and writes a 400 when it is not a
// valid id.
func validatedParam(ctx *fasthttp.RequestCtx, name string) (string, bool) {
	v := router.PathParam(ctx, name)
	if err := keys.ValidateID(v); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return v, true
}

func (h *Handlers) ReadActions(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("read_actions")
	defer tr.Finish()

	reportID, ok := validatedParam(ctx, "reportID")
	if !ok {
		return
	}

	descending := true
	switch order := strings.ToLower(string(ctx.QueryArgs().Peek("order"))); order {
	case "", "desc":
	case "asc":
		descending = false
	default:
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "order must be asc or desc")
		return
	}
	visibleOnly := ctx.QueryArgs().GetBool("visible")

	tr.Mark("sort")
	actions, err := h.reader.Sorted(h.base, reportID, visibleOnly, descending)
	if err != nil {
		writeStoreError(ctx, "read_actions_failed", reportID, err)
		return
	}

	tr.Mark("encode_response")
	_ = router.WriteJSON(ctx, ActionsResponse{Actions: actions, NewestCreated: chain.NewestCreated(actions)})
}

func (h *Handlers) ReadChain(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("read_chain")
	defer tr.Finish()

	reportID, ok := validatedParam(ctx, "reportID")
	if !ok {
		return
	}
	anchorID := string(ctx.QueryArgs().Peek("anchor"))
	if err := keys.ValidateID(anchorID); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid anchor")
		return
	}

	tr.Mark("build_chain")
	run, gapID, err := h.reader.Chain(h.base, reportID, anchorID)
	if err != nil {
		writeStoreError(ctx, "read_chain_failed", reportID, err)
		return
	}

	tr.Mark("encode_response")
	_ = router.WriteJSON(ctx, ChainResponse{Actions: run, GapBefore: gapID, HasGap: gapID != ""})
}

func (h *Handlers) ReadLastVisible(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("read_last_visible")
	defer tr.Finish()

	reportID, ok := validatedParam(ctx, "reportID")
	if !ok {
		return
	}

	tr.Mark("lookup")
	last, found, err := h.lastVisible(reportID)
	if err != nil {
		writeStoreError(ctx, "read_last_visible_failed", reportID, err)
		return
	}
	if !found {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "no visible actions")
		return
	}

	tr.Mark("encode_response")
	_ = router.WriteJSON(ctx, LastResponse{Action: last, Preview: last.Text()})
}

// lastVisible answers from the watcher cache, subscribing on first use. Empty
// conversations are never held by the watcher and are read directly.
func (h *Handlers) lastVisible(reportID string) (models.ReportAction, bool, error) {
	if h.watcher != nil {
		err := h.watcher.Watch(h.base, reportID)
		if err != nil {
			logger.Warn("watch_failed", "report_id", reportID, "error", err)
		} else if h.watcher.Cached(reportID) {
			last, ok := h.watcher.Get(reportID)
			return last, ok, nil
		}
	}
	return h.reader.GetLastVisibleAction(h.base, reportID)
}

func (h *Handlers) PutActions(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("put_actions")
	defer tr.Finish()

	reportID, ok := validatedParam(ctx, "reportID")
	if !ok {
		return
	}

	tr.Mark("decode_body")
	var actions []models.ReportAction
	if err := json.Unmarshal(ctx.PostBody(), &actions); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	for _, a := range actions {
		if a.ReportID != "" && a.ReportID != reportID {
			router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "action "+a.ReportActionID+" belongs to another report")
			return
		}
	}

	tr.Mark("store")
	if err := h.store.PutActions(h.base, reportID, actions...); err != nil {
		if errors.Is(err, keys.ErrInvalidID) {
			router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(ctx, "put_actions_failed", reportID, err)
		return
	}
	logger.Debug("actions_stored", "report_id", reportID, "count", len(actions))
	_ = router.WriteJSON(ctx, map[string]int{"stored": len(actions)})
}

func (h *Handlers) DeleteAction(ctx *fasthttp.RequestCtx) {
	tr := telemetry.Track("delete_action")
	defer tr.Finish()

	reportID, ok := validatedParam(ctx, "reportID")
	if !ok {
		return
	}
	actionID, ok := validatedParam(ctx, "actionID")
	if !ok {
		return
	}

	tr.Mark("store")
	if err := h.store.RemoveAction(h.base, reportID, actionID); err != nil {
		writeStoreError(ctx, "delete_action_failed", reportID, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func writeStoreError(ctx *fasthttp.RequestCtx, event, reportID string, err error) {
	logger.Error(event, "report_id", reportID, "error", err)
	if errors.Is(err, store.ErrNotOpen) {
		router.WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "store unavailable")
		return
	}
	router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
}
