package host

import (
	"io"
	"net/http"

	"github.com/chaldeaprjkt/gamespace/pkg/api"
	"github.com/chaldeaprjkt/gamespace/pkg/config"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/network/httpx"
)

const maxBody = 4 * 1024

// NewControlServer makes the control API server of the host.
func NewControlServer(conf config.Control, h *Host, log *logger.Logger) (*httpx.Server, error) {
	log = log.Component("ctl")
	return httpx.NewServer(conf.Address, func(*httpx.Server) httpx.Handler {
		return Handlers(h, log)
	}, log)
}

// Handlers routes the control API calls to the host.
func Handlers(h *Host, log *logger.Logger) httpx.Handler {
	mux := httpx.NewServeMux(api.Version)
	mux.HandleFunc(api.StartPath, func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req, err := api.UnwrapChecked[api.StartRequest](io.ReadAll(io.LimitReader(r.Body, maxBody)))
		if err == nil {
			err = req.Validate()
		}
		if err != nil {
			reply(w, http.StatusBadRequest, api.Response{Error: err.Error()}, log)
			return
		}
		ok, err := h.RequestStart(req.App)
		if err != nil {
			log.Error().Err(err).Str(logger.AppField, req.App).Msg("Couldn't start")
			reply(w, http.StatusServiceUnavailable, api.Response{Error: err.Error()}, log)
			return
		}
		accepted(w, ok, log)
	}).HandleFunc(api.StopPath, func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		accepted(w, h.RequestStop(), log)
	}).HandleFunc(api.SessionPath, func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		reply(w, http.StatusOK, h.Status(), log)
	})
	return mux
}

func accepted(w httpx.ResponseWriter, ok bool, log *logger.Logger) {
	code := http.StatusAccepted
	if !ok {
		code = http.StatusConflict
	}
	reply(w, code, api.Response{Accepted: ok}, log)
}

func reply(w httpx.ResponseWriter, code int, v any, log *logger.Logger) {
	data, err := api.Wrap(v)
	if err != nil {
		log.Error().Err(err).Msg("Couldn't encode the reply")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
