package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"time"

	"tunefind/models"
	"tunefind/service"
	"tunefind/tune"
	"tunefind/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

const defaultTopK = 5

type socketController struct {
	svc *service.TuneFind
}

func newSocketController(svc *service.TuneFind) *socketController {
	return &socketController{svc: svc}
}

func emitSearchError(socket socketio.Conn, message string) {
	socket.Emit("searchError", map[string]string{"error": message})
}

// handleSearch decodes a socket search payload, runs it against the
// owner's catalog and emits searchResult or searchError.
func (c *socketController) handleSearch(socket socketio.Conn, payload string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if payload == "" {
		emitSearchError(socket, "no audio data received")
		return
	}

	var recData models.RecordData
	if err := json.Unmarshal([]byte(payload), &recData); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse search payload", slog.Any("error", err))
		emitSearchError(socket, "invalid search payload")
		return
	}
	if recData.OwnerID == "" {
		emitSearchError(socket, "owner_id is required")
		return
	}
	if recData.TopK == 0 {
		recData.TopK = defaultTopK
	}

	audioData, err := base64.StdEncoding.DecodeString(recData.Audio)
	if err != nil {
		emitSearchError(socket, "failed to decode base64 audio")
		return
	}

	started := time.Now()
	result, err := c.svc.SearchByHum(ctx, recData.OwnerID, audioData, recData.TopK)
	if err != nil {
		if tune.IsClientError(err) {
			emitSearchError(socket, err.Error())
			return
		}
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "socket search failed", slog.Any("error", err))
		emitSearchError(socket, "internal server error")
		return
	}

	logger.InfoContext(ctx, "socket search complete",
		slog.String("socketID", socket.ID()),
		slog.String("owner_id", recData.OwnerID),
		slog.Int("matches", result.Count),
		slog.Float64("latency_ms", time.Since(started).Seconds()*1000),
	)
	socket.Emit("searchResult", result)
}

func newSocketServer(controller *socketController) *socketio.Server {
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "search", func(socket socketio.Conn, msg string) {
		// Run handler in goroutine to prevent blocking, with panic recovery
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleSearch for socket %s: %v\n", socket.ID(), r)
					emitSearchError(socket, "internal server error during processing")
				}
			}()
			controller.handleSearch(socket, msg)
		}()
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	return server
}
