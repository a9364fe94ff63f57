package routes

import (
	"log/slog"
	"net/http"

	"heartbridge-api/auth"
	"heartbridge-api/handlers"
	"heartbridge-api/middleware"
	"heartbridge-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler, gate *auth.Gate) {
	r.GET("/health", h.Health)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.GET("/health", h.Health)
		public.GET("/state-machine", h.GetStateMachineInfo)
		public.GET("/users/stats", h.UserStats)
		public.POST("/users/register", h.Register)
		public.POST("/users/login", h.Login)
	}

	// ── Authenticated routes ───────────────────────────────────────
	authed := r.Group("/api")
	authed.Use(middleware.AuthRequired(gate))
	{
		authed.GET("/users/me", h.GetProfile)
		authed.DELETE("/users/me", h.DeleteMe)
		authed.GET("/users/me/stats", h.MyStats)
		authed.PUT("/users/profile", h.UpdateProfile)
		authed.PUT("/users/change-password", h.ChangePassword)
		authed.POST("/users/logout", h.Logout)

		authed.GET("/requests", h.ListRequests)
		authed.GET("/requests/:id", h.GetRequest)
		authed.GET("/requests/:id/history", h.GetRequestHistory)
		authed.GET("/volunteers/rankings", h.Rankings)
	}

	// ── Elderly routes ─────────────────────────────────────────────
	elderly := r.Group("/api/requests")
	elderly.Use(middleware.AuthRequired(gate), middleware.RoleRequired(models.RoleElderly))
	{
		elderly.POST("", h.CreateRequest)
		elderly.PATCH("/:id/cancel", h.CancelRequest)
		elderly.PATCH("/:id/rate", h.RateRequest)
	}

	// ── Volunteer routes ───────────────────────────────────────────
	volunteer := r.Group("/api/requests")
	volunteer.Use(middleware.AuthRequired(gate), middleware.RoleRequired(models.RoleVolunteer))
	{
		volunteer.PATCH("/:id/assign", h.AssignRequest)
		volunteer.PATCH("/:id/start", h.StartRequest)
		volunteer.PATCH("/:id/complete", h.CompleteRequest)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api")
	admin.Use(middleware.AuthRequired(gate), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.PATCH("/requests/:id/approve", h.ApproveRequest)
		admin.PATCH("/requests/:id/reject", h.RejectRequest)
		admin.GET("/admin/users", h.AdminGetAllUsers)
		admin.PATCH("/admin/users/:id/deactivate", h.AdminDeactivateUser)
		admin.PATCH("/admin/users/:id/reactivate", h.AdminReactivateUser)
		admin.DELETE("/admin/users/:id", h.AdminDeleteUser)
		admin.GET("/admin/summary", h.AdminSummary)
	}
}

// NewRouter builds the gin engine with recovery, request logging and CORS, and registers every route.
func NewRouter(h *handlers.Handler, gate *auth.Gate, log *slog.Logger, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log), middleware.CORS(corsOrigins))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the HeartBridge API",
			"docs":    "/api/state-machine",
			"health":  "/health",
			"roles":   []models.UserRole{models.RoleElderly, models.RoleVolunteer, models.RoleAdmin},
		})
	})
	SetupRoutes(r, h, gate)
	return r
}
