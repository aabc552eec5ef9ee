package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cafebotify/cafebot-backend/internal/catalog"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/repos"
	"github.com/cafebotify/cafebot-backend/internal/services"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

type AdminHandler struct {
	log         *logger.Logger
	stats       services.StatsService
	orders      repos.OrderRepo
	catalog     *catalog.Catalog
	catalogPath string
}

func NewAdminHandler(baseLog *logger.Logger, stats services.StatsService, orders repos.OrderRepo, cat *catalog.Catalog, catalogPath string) *AdminHandler {
	return &AdminHandler{
		log:         baseLog.With("handler", "AdminHandler"),
		stats:       stats,
		orders:      orders,
		catalog:     cat,
		catalogPath: catalogPath,
	}
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context(), h.catalog.Items())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": summary})
}

// ReloadCatalog re-reads the cafe config file and swaps the catalog
// snapshot. Live carts holding removed items keep them as zero-priced
// stale lines.
func (h *AdminHandler) ReloadCatalog(c *gin.Context) {
	cfg := catalog.LoadFile(h.catalogPath)
	h.catalog.Replace(cfg.Cafe.Menu)
	h.log.Info("Catalog reloaded", "items", len(h.catalog.Items()))
	c.JSON(http.StatusOK, gin.H{"items": h.catalog.Items()})
}

// ListOrders reads the archive, newest first. Optional query params: "user"
// narrows to one customer, "limit" caps the page size.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	if h.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order archive not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	var (
		rows []*types.ArchivedOrder
		err  error
	)
	if user := c.Query("user"); user != "" {
		rows, err = h.orders.ListByUser(c.Request.Context(), nil, user, limit)
	} else {
		rows, err = h.orders.ListRecent(c.Request.Context(), nil, limit)
	}
	if err != nil {
		h.log.Error("Order archive read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows})
}
