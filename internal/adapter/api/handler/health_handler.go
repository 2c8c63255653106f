package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"marketchat/pkg/response"
)

type HealthHandler struct {
	storeBackend string
}

func NewHealthHandler(storeBackend string) *HealthHandler {
	return &HealthHandler{
		storeBackend: storeBackend,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return response.Success(c, map[string]string{
		"status": "ok",
		"store":  h.storeBackend,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
