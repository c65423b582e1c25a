package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dimfeld/httptreemux"
	"github.com/flotilla-net/flotilla/game"
	"github.com/gorilla/handlers"
	"github.com/unrolled/render"
)

type R struct {
	Lobby *game.Lobby
}

type Call struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func NewRouter(lobby *game.Lobby) *httptreemux.TreeMux {
	router, impl := httptreemux.New(), &R{Lobby: lobby}
	router.POST("/", impl.handle)
	registerHandlers(router)
	return router
}

func registerHandlers(router *httptreemux.TreeMux) {
	router.MethodNotAllowedHandler = func(w http.ResponseWriter, r *http.Request, _ map[string]httptreemux.HandlerFunc) {
		render.New().JSON(w, http.StatusNotFound, map[string]interface{}{})
	}
	router.NotFoundHandler = func(w http.ResponseWriter, r *http.Request) {
		render.New().JSON(w, http.StatusNotFound, map[string]interface{}{})
	}
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, rcv interface{}) {
		render.New().JSON(w, http.StatusInternalServerError, map[string]interface{}{"error": fmt.Sprint(rcv)})
	}
}

func (impl *R) handle(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var call Call
	d := json.NewDecoder(r.Body)
	d.UseNumber()
	if err := d.Decode(&call); err != nil {
		render.New().JSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	switch call.Method {
	case "getinfo":
		render.New().JSON(w, http.StatusOK, map[string]interface{}{"data": getInfo(impl.Lobby)})
	case "listplayers":
		render.New().JSON(w, http.StatusOK, map[string]interface{}{"data": listPlayers(impl.Lobby)})
	default:
		render.New().JSON(w, http.StatusOK, map[string]interface{}{"error": fmt.Sprintf("invalid method %s", call.Method)})
	}
}

// NewServer builds the operator endpoint. It is a loopback ops surface, the
// game protocol itself never touches HTTP.
func NewServer(lobby *game.Lobby, port int) *http.Server {
	handler := handlers.ProxyHeaders(NewRouter(lobby))
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler}
}
