package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/order-collab/internal/lock"
	"github.com/iliyamo/order-collab/internal/model"
	"github.com/iliyamo/order-collab/internal/repository"
)

// LockHandler exposes the lock manager to the order-edit screens of the CRUD
// application. The websocket layer broadcasts the outcome; these endpoints
// only return it to the caller.
type LockHandler struct {
	Locks *lock.Manager
	Users *repository.UserRepo
}

func NewLockHandler(locks *lock.Manager, users *repository.UserRepo) *LockHandler {
	return &LockHandler{Locks: locks, Users: users}
}

// Acquire handles POST /v1/orders/:id/lock. A conflict is a normal outcome,
// reported as 409 with the current holder so the UI can render "locked by X".
func (h *LockHandler) Acquire(c echo.Context) error {
	orderID := c.Param("id")
	userID, _ := c.Get("user_id").(string)
	if orderID == "" || userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order or user"})
	}

	ctx := c.Request().Context()
	user, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	res, err := h.Locks.Acquire(ctx, orderID, userID, user.DisplayName())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	if !res.Granted {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "order locked",
			"lock":  model.LockedPayloadFrom(res.Lock),
		})
	}
	return c.JSON(http.StatusOK, model.LockedPayloadFrom(res.Lock))
}

// Release handles DELETE /v1/orders/:id/lock. Releasing a lock that does not
// exist, or that someone else holds, is an idempotent no-op reported as
// released=false, never an error.
func (h *LockHandler) Release(c echo.Context) error {
	orderID := c.Param("id")
	userID, _ := c.Get("user_id").(string)
	if orderID == "" || userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order or user"})
	}

	released, err := h.Locks.Release(c.Request().Context(), orderID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Current handles GET /v1/orders/:id/lock. Observers use it to resync after
// a silent TTL expiry, which produces no unlock broadcast.
func (h *LockHandler) Current(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order"})
	}
	l, found, err := h.Locks.Current(c.Request().Context(), orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active lock"})
	}
	return c.JSON(http.StatusOK, model.LockedPayloadFrom(l))
}
