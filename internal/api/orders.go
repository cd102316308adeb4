package api

import (
	"net/http"
	"strconv"

	"storefront-api/internal/database"
	"storefront-api/internal/models"
	"storefront-api/internal/response"
	"storefront-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// GetOrders lists all orders, most recent first.
// GET /api/admin/orders
func GetOrders(c *gin.Context) {
	orders, err := database.ListOrders()
	if err != nil {
		logging.Errorf("Failed to list orders: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	response.SuccessJSON(c, "", orders)
}

// GetOrder returns one order with its line items.
// GET /api/admin/orders/:id
func GetOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := database.FindOrderByID(uint(id))
	if err != nil {
		logging.Errorf("Failed to load order %d: %v", id, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to load order")
		return
	}
	if order == nil {
		response.ErrorJSON(c, http.StatusNotFound, "Order not found")
		return
	}
	response.SuccessJSON(c, "", order)
}

// GetRevenue sums the totals of delivered orders.
// GET /api/admin/orders/revenue
func GetRevenue(c *gin.Context) {
	revenue, err := database.DeliveredRevenue()
	if err != nil {
		logging.Errorf("Failed to calculate revenue: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to calculate revenue")
		return
	}
	response.SuccessJSON(c, "", gin.H{"amount": revenue})
}

// GetOrderCounts returns total and pending order counts.
// GET /api/admin/orders/counts
func GetOrderCounts(c *gin.Context) {
	total, err := database.CountOrders()
	if err != nil {
		logging.Errorf("Failed to count orders: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to count orders")
		return
	}
	pending, err := database.CountOrdersByStatus(models.OrderPending)
	if err != nil {
		logging.Errorf("Failed to count pending orders: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to count orders")
		return
	}
	response.SuccessJSON(c, "", gin.H{"total": total, "pending": pending})
}

// GetCustomerOrders lists one customer's orders.
// GET /api/customers/:id/orders
func GetCustomerOrders(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid customer id")
		return
	}

	orders, err := database.ListOrdersByCustomer(uint(id))
	if err != nil {
		logging.Errorf("Failed to list customer %d orders: %v", id, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to list orders")
		return
	}
	response.SuccessJSON(c, "", orders)
}

// GetCustomerOrderCount counts one customer's orders.
// GET /api/customers/:id/orders/count
func GetCustomerOrderCount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid customer id")
		return
	}

	count, err := database.CountOrdersByCustomer(uint(id))
	if err != nil {
		logging.Errorf("Failed to count customer %d orders: %v", id, err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to count orders")
		return
	}
	response.SuccessJSON(c, "", gin.H{"count": count})
}
