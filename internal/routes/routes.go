package routes

import (
	"github.com/gin-gonic/gin"

	"domiflash/internal/handlers"
	"domiflash/internal/middleware"
	"domiflash/internal/models"
	"domiflash/internal/websocket"
)

func SetupRoutes(api *gin.RouterGroup, d *handlers.Deps, ws *websocket.Manager) {
	// Public
	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.AuthRegister(d))
		auth.POST("/login", handlers.AuthLogin(d))
		auth.POST("/forgot-password", handlers.ForgotPassword(d))
		auth.POST("/reset-password", handlers.ResetPassword(d))
	}
	api.GET("/restaurants", handlers.ListRestaurants(d))
	api.GET("/restaurants/:id/menu", handlers.RestaurantMenu(d))
	api.GET("/categories", handlers.ListCategories(d))

	authenticated := middleware.JWTAuth(d.JWTSecret, d.Sessions, d.Log)

	// Session endpoints decide for themselves what counts as activity.
	sess := api.Group("/session")
	sess.Use(authenticated)
	{
		sess.GET("/status", handlers.SessionStatus(d))
		sess.GET("/warning", handlers.SessionWarning(d))
		sess.POST("/refresh", handlers.SessionRefresh(d))
		sess.POST("/extend", handlers.SessionExtend(d))
		sess.POST("/heartbeat", handlers.SessionHeartbeat(d))
		sess.POST("/logout", handlers.SessionLogout(d))
	}

	protected := api.Group("")
	protected.Use(authenticated, middleware.KeepAlive(d.Sessions, d.Log))
	{
		protected.GET("/profile", handlers.UserGetProfile(d))
		protected.PUT("/profile", handlers.UserUpdateProfile(d))
		protected.POST("/auth/change-password", handlers.ChangePassword(d))
		protected.GET("/ws", ws.Handler())
	}

	customer := protected.Group("")
	customer.Use(middleware.RoleRequired(models.RoleCustomer))
	{
		customer.GET("/cart", handlers.GetCart(d))
		customer.POST("/cart/items", handlers.AddCartItem(d))
		customer.PUT("/cart/items/:id", handlers.UpdateCartItem(d))
		customer.DELETE("/cart/items/:id", handlers.RemoveCartItem(d))
		customer.DELETE("/cart", handlers.ClearCart(d))

		customer.POST("/orders/checkout", handlers.Checkout(d))
		customer.GET("/orders", handlers.ListMyOrders(d))
		customer.GET("/orders/confirmation", handlers.OrderConfirmationPage(d))
		customer.GET("/orders/:id", handlers.GetMyOrder(d))
		customer.PUT("/orders/:id/cancel", handlers.CancelMyOrder(d))
	}

	restaurant := protected.Group("/restaurant")
	restaurant.Use(middleware.RoleRequired(models.RoleRestaurant))
	{
		restaurant.GET("/products", handlers.RestaurantListProducts(d))
		restaurant.POST("/products", handlers.RestaurantCreateProduct(d))
		restaurant.PUT("/products/:id", handlers.RestaurantUpdateProduct(d))
		restaurant.DELETE("/products/:id", handlers.RestaurantDeleteProduct(d))
		restaurant.POST("/upload", handlers.UploadImage(d))
		restaurant.GET("/orders", handlers.RestaurantListOrders(d))
		restaurant.PUT("/orders/:id/status", handlers.RestaurantUpdateOrderStatus(d))
	}

	courier := protected.Group("/courier")
	courier.Use(middleware.RoleRequired(models.RoleCourier))
	{
		courier.GET("/orders/available", handlers.CourierAvailableOrders(d))
		courier.GET("/orders", handlers.CourierMyOrders(d))
		courier.PUT("/orders/:id/claim", handlers.CourierClaimOrder(d))
		courier.PUT("/orders/:id/status", handlers.CourierUpdateOrderStatus(d))
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/users", handlers.AdminListUsers(d))
		admin.PUT("/users/:id", handlers.AdminUpdateUser(d))
		admin.PUT("/users/:id/toggle", handlers.AdminToggleUser(d))
		admin.GET("/categories", handlers.AdminListCategories(d))
		admin.POST("/categories", handlers.AdminCreateCategory(d))
		admin.PUT("/categories/:id", handlers.AdminUpdateCategory(d))
		admin.DELETE("/categories/:id", handlers.AdminDeleteCategory(d))
	}
}
