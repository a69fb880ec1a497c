// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/domain/analytics"
	"github.com/your-org/lpg-storefront/internal/domain/cart"
	"github.com/your-org/lpg-storefront/internal/domain/checkout"
	"github.com/your-org/lpg-storefront/internal/domain/inventory"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/domain/payment"
	"github.com/your-org/lpg-storefront/internal/domain/pickup"
	"github.com/your-org/lpg-storefront/internal/domain/product"
	"github.com/your-org/lpg-storefront/internal/domain/user"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/handlers"
	"github.com/your-org/lpg-storefront/internal/interfaces/http/middleware"
	"github.com/your-org/lpg-storefront/internal/pkg/auth"
	"github.com/your-org/lpg-storefront/internal/pkg/pdf"
)

// Services bundles everything the routes hand to handlers
type Services struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	JWT       *auth.JWTManager
	Users     *user.Service
	Products  *product.Service
	Inventory *inventory.Service
	Carts     *cart.Service
	Checkout  *checkout.Service
	Orders    *order.Service
	Pickups   *pickup.Service
	Payments  *payment.Service
	Analytics *analytics.Service
	PDF       *pdf.Service
}

// SetupRoutes registers every API route on rg
func SetupRoutes(rg *gin.RouterGroup, s *Services) {
	SetupAuthRoutes(rg, s)
	SetupUserRoutes(rg, s)
	SetupProductRoutes(rg, s)
	SetupCartRoutes(rg, s)
	SetupOrderRoutes(rg, s)
	SetupPaymentRoutes(rg, s)
	SetupAdminRoutes(rg, s)
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, s *Services) {
	authHandler := handlers.NewAuthHandler(s.Users, s.Carts, s.Config, s.Log)

	auth := rg.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(s.JWT))
		{
			protected.GET("/profile", authHandler.GetProfile)
		}
	}
}

// SetupUserRoutes sets up user related routes
func SetupUserRoutes(rg *gin.RouterGroup, s *Services) {
	addressHandler := handlers.NewAddressHandler(s.Users, s.Log)

	users := rg.Group("/users")
	users.Use(middleware.AuthMiddleware(s.JWT))
	{
		users.GET("/addresses", addressHandler.ListAddresses)
		users.POST("/addresses", addressHandler.CreateAddress)
	}
}

// SetupProductRoutes sets up catalog routes
func SetupProductRoutes(rg *gin.RouterGroup, s *Services) {
	productHandler := handlers.NewProductHandler(s.Products, s.Carts, s.Log)
	checkoutHandler := handlers.NewCheckoutHandler(s.Checkout, s.Users, s.Config, s.Log)

	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
		products.GET("/slug/:slug", productHandler.GetProductBySlug)
		products.GET("/variants/:id/availability", productHandler.GetVariantAvailability)
	}

	rg.GET("/categories", productHandler.GetCategories)

	zones := rg.Group("/delivery-zones")
	zones.Use(middleware.OptionalAuthMiddleware(s.JWT))
	{
		zones.GET("", checkoutHandler.ListZones)
	}
}

// SetupCartRoutes sets up cart and checkout routes. The cart works for
// guests keyed by session as well as signed-in users.
func SetupCartRoutes(rg *gin.RouterGroup, s *Services) {
	cartHandler := handlers.NewCartHandler(s.Carts, s.Config, s.Log)
	checkoutHandler := handlers.NewCheckoutHandler(s.Checkout, s.Users, s.Config, s.Log)

	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(s.JWT))
	{
		cart.GET("", cartHandler.GetCart)
		cart.POST("/items", cartHandler.AddItem)
		cart.PUT("/items/:id", cartHandler.UpdateItem)
		cart.DELETE("/items/:id", cartHandler.RemoveItem)
		cart.DELETE("", cartHandler.ClearCart)
	}

	quote := rg.Group("/checkout/quote")
	quote.Use(middleware.OptionalAuthMiddleware(s.JWT))
	{
		quote.GET("", checkoutHandler.Quote)
	}

	checkout := rg.Group("/checkout")
	checkout.Use(middleware.AuthMiddleware(s.JWT))
	{
		checkout.POST("", checkoutHandler.Checkout)
	}
}

// SetupOrderRoutes sets up the customer's order routes
func SetupOrderRoutes(rg *gin.RouterGroup, s *Services) {
	orderHandler := handlers.NewOrderHandler(s.Orders, s.Log)
	pickupHandler := handlers.NewPickupHandler(s.Pickups, s.Orders, s.Log)
	paymentHandler := handlers.NewPaymentHandler(s.Payments, s.Log)
	invoiceHandler := handlers.NewInvoiceHandler(s.Orders, s.PDF, s.Log)

	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(s.JWT))
	{
		orders.GET("", orderHandler.GetUserOrders)
		orders.GET("/:id", orderHandler.GetUserOrder)
		orders.GET("/:id/status", orderHandler.GetUserOrderStatus)
		orders.GET("/:id/history", orderHandler.GetUserOrderHistory)
		orders.POST("/:id/cancel", orderHandler.CancelUserOrder)
		orders.POST("/:id/pay", paymentHandler.Initiate)
		orders.GET("/:id/pickup", pickupHandler.GetToken)
		orders.GET("/:id/pickup/qr", pickupHandler.GetQRCode)
		orders.GET("/:id/invoice", invoiceHandler.GetUserInvoice)
	}
}

// SetupPaymentRoutes sets up the gateway callback. It is authenticated by
// the notification signature, not a token.
func SetupPaymentRoutes(rg *gin.RouterGroup, s *Services) {
	paymentHandler := handlers.NewPaymentHandler(s.Payments, s.Log)

	rg.POST("/payments/notifications", paymentHandler.Notify)
}

// SetupAdminRoutes sets up back-office routes. Operators reach the order
// and pickup desk; the rest is admin only.
func SetupAdminRoutes(rg *gin.RouterGroup, s *Services) {
	productHandler := handlers.NewProductHandler(s.Products, s.Carts, s.Log)
	inventoryHandler := handlers.NewInventoryHandler(s.Inventory, s.Products, s.Log)
	orderHandler := handlers.NewOrderHandler(s.Orders, s.Log)
	pickupHandler := handlers.NewPickupHandler(s.Pickups, s.Orders, s.Log)
	paymentHandler := handlers.NewPaymentHandler(s.Payments, s.Log)
	invoiceHandler := handlers.NewInvoiceHandler(s.Orders, s.PDF, s.Log)
	checkoutHandler := handlers.NewCheckoutHandler(s.Checkout, s.Users, s.Config, s.Log)
	userHandler := handlers.NewUserAdminHandler(s.Users, s.Log)
	analyticsHandler := handlers.NewAnalyticsHandler(s.Analytics, s.Log)

	staff := rg.Group("/admin")
	staff.Use(middleware.AuthMiddleware(s.JWT))
	staff.Use(middleware.StaffMiddleware())
	{
		orders := staff.Group("/orders")
		{
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.GET("/:id/history", orderHandler.GetOrderHistory)
			orders.PUT("/:id/status", orderHandler.UpdateStatus)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
			orders.GET("/:id/reservations", inventoryHandler.GetOrderReservations)
			orders.GET("/:id/payments", paymentHandler.GetOrderPayments)
			orders.GET("/:id/invoice", invoiceHandler.GetInvoice)
			orders.POST("/:id/pickup/reissue", pickupHandler.Reissue)
		}

		staff.POST("/pickup/verify", pickupHandler.Verify)
		staff.GET("/inventory/low-stock", inventoryHandler.GetLowStock)
	}

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(s.JWT))
	admin.Use(middleware.AdminMiddleware())
	{
		products := admin.Group("/products")
		{
			products.POST("", productHandler.AdminCreateProduct)
			products.POST("/:id/variants", productHandler.AdminAddVariant)
		}
		admin.PATCH("/variants/:id", productHandler.AdminUpdateVariant)

		inventory := admin.Group("/inventory")
		{
			inventory.POST("/variants/:id/adjust", inventoryHandler.AdjustStock)
			inventory.GET("/variants/:id/movements", inventoryHandler.GetMovements)
		}

		admin.GET("/delivery-zones", checkoutHandler.ListZones)
		admin.PUT("/delivery-zones", checkoutHandler.SaveZone)

		users := admin.Group("/users")
		{
			users.GET("", userHandler.ListUsers)
			users.POST("", userHandler.CreateStaff)
			users.PUT("/:id/status", userHandler.UpdateUserStatus)
		}

		analytics := admin.Group("/analytics")
		{
			analytics.GET("/dashboard", analyticsHandler.GetDashboard)
			analytics.GET("/sales", analyticsHandler.GetSales)
			analytics.GET("/updates", analyticsHandler.GetUpdates)
		}
	}
}
