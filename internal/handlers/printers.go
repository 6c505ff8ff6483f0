package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pulseprint"
	"pulseprint/internal/mqtt"
	"pulseprint/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusSubmitted = "submitted"
	statusRemoved   = "removed"

	errAddPrinter      = "failed to add printer"
	errRemovePrinter   = "failed to remove printer"
	errSendCommand     = "failed to send command"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for registering a printer.
type registerPrinterRequest struct {
	ID         string `json:"id,omitempty"` // optional; generated when empty
	Name       string `json:"name" binding:"required"`
	Model      string `json:"model,omitempty"`
	IP         string `json:"ip" binding:"required"`
	AccessCode string `json:"access_code" binding:"required"`
	Serial     string `json:"serial" binding:"required"`
}

// RegisterPrinterRequest is an exported model for Swagger docs of the addPrinter payload.
type RegisterPrinterRequest struct {
	// Optional stable id; generated when empty
	ID string `json:"id,omitempty" example:"workshop-x1c"`
	// Display name
	Name string `json:"name" example:"Workshop X1C"`
	// Printer model
	Model string `json:"model,omitempty" example:"X1 Carbon"`
	// LAN address of the printer
	IP string `json:"ip" example:"192.168.1.42"`
	// LAN access code shown on the printer display
	AccessCode string `json:"access_code" example:"12345678"`
	// Device serial used in MQTT topics
	Serial string `json:"serial" example:"01S00C123456789"`
}

// Request DTO for sending a command.
type commandRequest struct {
	Action string `json:"action" binding:"required"` // pause | resume | stop | get_status
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List printers
// @Description  Live snapshots for every registered printer, ordered by id.
// @Tags         printers
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, printers"
// @Router       /api/v1/printers [get]
func (h *Handler) listPrinters(c *gin.Context) {
	printers := h.services.Fleet.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":    len(printers),
		"printers": printers,
	})
}

// @Summary      Get printer
// @Tags         printers
// @Produce      json
// @Param        id  path  string  true  "Printer id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/printers/{id} [get]
func (h *Handler) getPrinter(c *gin.Context) {
	p, err := h.services.Fleet.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Register printer
// @Description  Persists the printer and starts its connection task.
// @Tags         printers
// @Accept       json
// @Produce      json
// @Param        body  body  RegisterPrinterRequest  true  "Printer definition"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/printers [post]
func (h *Handler) addPrinter(c *gin.Context) {
	var req registerPrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	cfg, err := h.services.Fleet.Add(c.Request.Context(), pulseprint.PrinterConfig{
		ID:         req.ID,
		Name:       req.Name,
		Model:      req.Model,
		IP:         req.IP,
		AccessCode: req.AccessCode,
		Serial:     req.Serial,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidConfig):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyRegistered):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errAddPrinter, "printer_add_failed", err, "name", req.Name)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"printer": cfg})
}

// @Summary      Remove printer
// @Description  Stops the connection task and forgets the printer. Telemetry arriving afterwards is discarded.
// @Tags         printers
// @Produce      json
// @Param        id  path  string  true  "Printer id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/printers/{id} [delete]
func (h *Handler) removePrinter(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Fleet.Remove(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errRemovePrinter, "printer_remove_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusRemoved, "id": id})
}

// @Summary      Send command
// @Description  Enqueues a control action for delivery over the printer's session.
// @Tags         printers
// @Accept       json
// @Produce      json
// @Param        id    path  string          true  "Printer id"
// @Param        body  body  commandRequest  true  "Command payload"
// @Success      202  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/printers/{id}/command [post]
func (h *Handler) sendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.submitCommand(c, req.Action)
}

// commandShortcut builds a handler that submits a fixed action, so the pause,
// resume and stop routes don't need a body.
func (h *Handler) commandShortcut(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.submitCommand(c, action)
	}
}

func (h *Handler) submitCommand(c *gin.Context, action string) {
	id := c.Param("id")
	if err := h.services.Fleet.SendCommand(c.Request.Context(), id, action); err != nil {
		switch {
		case errors.Is(err, service.ErrPrinterNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, mqtt.ErrUnsupportedAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errSendCommand, "command_send_failed", err, "id", id, "action", action)
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusSubmitted, "action": action})
}
