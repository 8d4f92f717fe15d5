package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/pkg/validate"
)

type Handler struct {
	bookSvc     BookService
	userSvc     UserService
	exchangeSvc ExchangeService
	statsSvc    StatsService
	log         *zap.Logger
}

func New(books BookService, users UserService, exchanges ExchangeService, stats StatsService, log *zap.Logger) *Handler {
	return &Handler{
		bookSvc:     books,
		userSvc:     users,
		exchangeSvc: exchanges,
		statsSvc:    stats,
		log:         log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log)),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.POST("/users/register", h.Register)
	api.POST("/users/login", h.Login)
	api.GET("/users", h.ListUsers)
	api.GET("/users/admin/stats", h.AdminStats)
	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeleteUser)

	api.POST("/books", h.CreateBook)
	api.GET("/books", h.ListBooks)
	api.GET("/books/:bookUid", h.GetBook)
	api.PUT("/books/:bookUid", h.UpdateBook)
	api.DELETE("/books/:bookUid", h.DeleteBook)

	api.POST("/exchange", h.ProposeExchange)
	api.GET("/exchange", h.ListExchanges)
	api.GET("/exchange/incoming", h.IncomingExchanges)
	api.GET("/exchange/outgoing", h.OutgoingExchanges)
	api.GET("/exchange/user/:userId", h.UserExchanges)
	api.GET("/exchange/:exchangeUid", h.GetExchange)
	api.PATCH("/exchange/:exchangeUid", h.ResolveExchange)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
