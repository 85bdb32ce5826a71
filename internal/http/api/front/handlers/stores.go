package handlers

import (
	"net/http"

	"github.com/amsel-crm/memberportal/internal/geo"
	apphttp "github.com/amsel-crm/memberportal/internal/http"
	"github.com/gin-gonic/gin"
)

// StoreHandler locates the stores nearest to the member.
type StoreHandler struct {
	stores []geo.Store
}

// NewStoreHandler constructs a StoreHandler. An empty list falls back to geo.DefaultStores.
func NewStoreHandler(stores []geo.Store) *StoreHandler {
	if len(stores) == 0 {
		stores = geo.DefaultStores
	}
	return &StoreHandler{stores: stores}
}

// Nearest ranks stores by distance from ?lat=&lng=.
func (h *StoreHandler) Nearest(c *gin.Context) {
	if c.Query("lat") == "" || c.Query("lng") == "" {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeLocationRequired, "lat and lng are required")
		return
	}
	origin, errPoint := geo.ParsePoint(c.Query("lat"), c.Query("lng"))
	if errPoint != nil {
		apphttp.RespondError(c, http.StatusBadRequest, apphttp.CodeLocationRequired, "invalid coordinates")
		return
	}
	limit := queryInt(c, "limit", geo.DefaultLimit, 1, len(h.stores))
	c.JSON(http.StatusOK, gin.H{
		"origin": origin,
		"stores": geo.Nearest(origin, h.stores, limit),
	})
}
