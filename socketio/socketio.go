package socketio

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"unimarket/middleware"
	"unimarket/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	eiolog "github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// Server delivers realtime events to the open sessions of a user. Every authenticated
// socket joins the room named after its user id.
type Server struct {
	server  *socket.Server
	options *socket.ServerOptions
	secret  string
	log     *zap.SugaredLogger
}

// New builds the socket.io server. A nil redisClient keeps rooms in process memory.
func New(redisClient *redis.Client, secret string, debug bool, log *zap.SugaredLogger) *Server {
	eiolog.DEBUG = debug

	options := socket.DefaultServerOptions()
	options.SetServeClient(false)
	options.SetPingInterval(25 * time.Second)
	options.SetPingTimeout(20 * time.Second)
	options.SetMaxHttpBufferSize(1000000)
	options.SetConnectTimeout(10 * time.Second)
	if redisClient != nil {
		options.SetAdapter(&adapter.RedisAdapterBuilder{
			Redis: r_type.NewRedisClient(context.Background(), redisClient),
			Opts:  &adapter.RedisAdapterOptions{},
		})
	}

	s := &Server{
		server:  socket.NewServer(nil, nil),
		options: options,
		secret:  secret,
		log:     log,
	}
	s.server.Use(s.authenticate)
	return s
}

func (s *Server) authenticate(client *socket.Socket, next func(*socket.ExtendedError)) {
	token := TokenFromRequest(client.Conn().Request().Request())
	meta, err := utils.CheckAndExtractTokenMetadata(token, s.secret)
	if err != nil || meta.Otp {
		next(socket.NewExtendedError("unauthorized", nil))
		return
	}

	client.Join(room(meta.UserID))
	client.SetData(meta)
	next(nil)
}

// TokenFromRequest reads the session token from the "token" query parameter or, failing
// that, from the session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(middleware.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Session returns the metadata stored on an authenticated socket.
func Session(client *socket.Socket) *utils.TokenMetadata {
	meta, _ := client.Data().(*utils.TokenMetadata)
	return meta
}

func room(userID uint) socket.Room {
	return socket.Room(strconv.FormatUint(uint64(userID), 10))
}

func (s *Server) Mount(app *fiber.App) {
	handler := adaptor.HTTPHandler(s.server.ServeHandler(s.options))
	app.Get("/socket.io/", handler)
	app.Post("/socket.io/", handler)
}

// OnConnection registers fn for every authenticated socket.
func (s *Server) OnConnection(fn func(client *socket.Socket)) {
	s.server.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok || Session(client) == nil {
			return
		}
		fn(client)
	})
}

func (s *Server) Emit(userID uint, event string, message any) {
	s.log.Debugw("realtime emit", "userId", userID, "event", event)
	s.server.To(room(userID)).Emit(event, message)
}

// Online reports whether the user has at least one socket on this node.
func (s *Server) Online(userID uint) bool {
	target := room(userID)
	for _, r := range s.server.Sockets().Adapter().Rooms().Keys() {
		if r == target {
			return true
		}
	}
	return false
}

func (s *Server) Close() {
	s.server.Close(nil)
}
