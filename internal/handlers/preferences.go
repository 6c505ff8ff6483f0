package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pulseprint/internal/repository"
	"pulseprint/internal/service"
)

// Request DTO for setting a preference value.
type preferenceRequest struct {
	Value string `json:"value"`
}

// @Summary      List preferences
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "preferences"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/preferences [get]
func (h *Handler) listPreferences(c *gin.Context) {
	prefs, err := h.services.Preferences.All(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load preferences", "prefs_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// @Summary      Get preference
// @Tags         preferences
// @Produce      json
// @Param        key  path  string  true  "Preference key"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/preferences/{key} [get]
func (h *Handler) getPreference(c *gin.Context) {
	key := c.Param("key")
	value, err := h.services.Preferences.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrPrefNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load preference", "pref_get_failed", err, "key", key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// @Summary      Set preference
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        key   path  string             true  "Preference key"
// @Param        body  body  preferenceRequest  true  "Value payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/preferences/{key} [put]
func (h *Handler) setPreference(c *gin.Context) {
	key := c.Param("key")
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Preferences.Set(c.Request.Context(), key, req.Value); err != nil {
		if errors.Is(err, service.ErrEmptyPrefKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to save preference", "pref_set_failed", err, "key", key)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "key": key})
}
