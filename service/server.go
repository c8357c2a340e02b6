package service

import (
	"context"
	"encoding/json"
	"errors"
	"fadingrose/rosy-ledger/core"
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/core/vm"
	"fadingrose/rosy-ledger/log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server exposes a processor over HTTP.
type Server struct {
	p        *core.Processor
	client   *LocalClient
	router   *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(p *core.Processor) *Server {
	s := &Server{
		p:      p,
		client: NewLocalClient(p),
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/deploy", s.call(s.client.Deploy)).Methods("POST")
	api.HandleFunc("/invoke", s.call(s.client.Invoke)).Methods("POST")
	api.HandleFunc("/view", s.call(s.client.View)).Methods("POST")
	api.HandleFunc("/accounts/{address}", s.account).Methods("GET")
	api.HandleFunc("/accounts/{address}/storage/{slot}", s.storage).Methods("GET")
	api.HandleFunc("/contracts", s.contracts).Methods("GET")
	api.HandleFunc("/notifications", s.notifications).Methods("GET")
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, core.ErrStaleTimestamp):
		status = http.StatusConflict
	case errors.Is(err, vm.ErrUnknownContract):
		status = http.StatusNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, core.ErrGasLimitReached):
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) call(fn func(ctx context.Context, args *CallArgs) (*Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var args CallArgs
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		res, err := fn(r.Context(), &args)
		if err != nil {
			log.Debug("Request rejected", "path", r.URL.Path, "err", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid address " + addr})
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	acct, err := s.client.Account(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) storage(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	slot, err := parseSlot(mux.Vars(r)["slot"])
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := s.client.Storage(r.Context(), addr, slot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Server) contracts(w http.ResponseWriter, r *http.Request) {
	infos, err := s.client.Contracts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// notifications streams every committed notification to a websocket until
// the peer goes away.
func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	ch := make(chan *types.Notification, 256)
	sub := s.p.SubscribeNotifications(ch)
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade connection to websocket", "err", err)
		return
	}
	defer conn.Close()

	id := uuid.New()
	log.Info("Subscriber connected", "id", id)
	defer log.Info("Subscriber disconnected", "id", id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("Websocket read error", "id", id, "err", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case n := <-ch:
			if err := conn.WriteJSON(NotificationMessage{Subscription: id.String(), Notification: n}); err != nil {
				log.Warn("Websocket write error", "id", id, "err", err)
				return
			}
		case <-sub.Err():
			return
		case <-done:
			return
		}
	}
}
