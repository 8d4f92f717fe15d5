package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bookswap/exchange-service/internal/model"
)

func (h *Handler) ProposeExchange(c echo.Context) error {
	var req model.CreateExchangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	ex, err := h.exchangeSvc.Propose(ctx, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ex)
}

func (h *Handler) ResolveExchange(c echo.Context) error {
	exchangeUid := c.Param("exchangeUid")
	if exchangeUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "exchangeUid is empty")
	}
	var req model.ResolveExchangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	ex, err := h.exchangeSvc.Resolve(ctx, exchangeUid, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ex)
}

func (h *Handler) GetExchange(c echo.Context) error {
	exchangeUid := c.Param("exchangeUid")
	if exchangeUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "exchangeUid is empty")
	}

	ctx := c.Request().Context()
	ex, err := h.exchangeSvc.Get(ctx, exchangeUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ex)
}

func (h *Handler) ListExchanges(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.exchangeSvc.ListAll(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UserExchanges(c echo.Context) error {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "userId must be a number")
	}

	ctx := c.Request().Context()
	items, err := h.exchangeSvc.ListUser(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) IncomingExchanges(c echo.Context) error {
	userID, err := userIDQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	items, err := h.exchangeSvc.Incoming(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) OutgoingExchanges(c echo.Context) error {
	userID, err := userIDQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	items, err := h.exchangeSvc.Outgoing(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func userIDQuery(c echo.Context) (int, error) {
	raw := c.QueryParam("userId")
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	userID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "userId must be a number")
	}
	return userID, nil
}
