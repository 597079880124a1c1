package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"threpsi/internal/domain"
	"threpsi/internal/service"
)

//go:embed templates/*.html static
var assets embed.FS

var pages = template.Must(template.ParseFS(assets, "templates/*.html"))

const invalidFormMessage = "Invalid or missing form data."

// Handler wires HTTP routes to domain services.
type Handler struct {
	users        service.UserService
	appointments service.AppointmentService
	medicine     *service.MedicineLookup
	limiter      *RateLimiter
	logger       *logrus.Logger
}

// NewHandler builds a Handler. A nil limiter disables rate limiting.
func NewHandler(
	users service.UserService,
	appointments service.AppointmentService,
	medicine *service.MedicineLookup,
	limiter *RateLimiter,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:        users,
		appointments: appointments,
		medicine:     medicine,
		limiter:      limiter,
		logger:       logger,
	}
}

// NewRouter builds a gin engine with panic recovery. Forwarded client addresses are
// only honored from trustedProxies; an empty list makes ClientIP the peer address.
func NewRouter(trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}
	return router, nil
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(pages)
	router.Use(requestLogger(h.logger))

	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	router.StaticFS("/static", http.FS(static))

	limited := rateLimit(h.limiter)

	router.GET("/", h.page("login.html"))
	router.POST("/login", limited, h.login)
	router.GET("/register", h.page("register.html"))
	router.POST("/register", limited, h.register)
	router.GET("/dashboard", h.page("dashboard.html"))
	router.GET("/doctor", h.page("doctor.html"))
	router.POST("/submit_appointment", h.submitAppointment)
	router.GET("/appointments", h.listAppointments)
	router.GET("/medicine-price", h.page("medicine_price.html"))
	router.POST("/medicine-price", h.comparePrice)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

type loginRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type registerRequest struct {
	Username string `form:"username" binding:"required"`
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type appointmentRequest struct {
	Name       string `form:"name" binding:"required"`
	Email      string `form:"email" binding:"required"`
	Department string `form:"department" binding:"required"`
	Date       string `form:"date" binding:"required"`
	Time       string `form:"time" binding:"required"`
}

type medicineRequest struct {
	Brand   string `form:"brand" binding:"required"`
	Generic string `form:"generic" binding:"required"`
}

func (h *Handler) page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, nil)
	}
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindForm(c, &req) {
		return
	}

	err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, "/dashboard")
	case errors.Is(err, service.ErrInvalidCredentials):
		fragment(c, "❌ Invalid credentials", "/", "Try again")
	default:
		h.serverError(c, "authenticate user", err)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bindForm(c, &req) {
		return
	}

	_, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
		h.logger.WithField("username", req.Username).Info("user registered")
		fragment(c, "✅ Registration successful", "/", "Login")
	case errors.Is(err, service.ErrUsernameTaken):
		fragment(c, "❌ Username already exists", "/register", "Try again")
	case errors.Is(err, service.ErrEmailTaken):
		fragment(c, "❌ Email already registered", "/register", "Try again")
	default:
		h.serverError(c, "register user", err)
	}
}

func (h *Handler) submitAppointment(c *gin.Context) {
	var req appointmentRequest
	if !bindForm(c, &req) {
		return
	}

	appt, err := h.appointments.Book(c.Request.Context(), domain.Appointment{
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Date:       req.Date,
		Time:       req.Time,
	})
	if err != nil {
		h.serverError(c, "book appointment", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"appointment_id": appt.ID,
		"department":     appt.Department,
	}).Info("appointment booked")
	fragment(c, "✅ Appointment Booked Successfully", "/dashboard", "Back to Dashboard")
}

func (h *Handler) listAppointments(c *gin.Context) {
	appts, err := h.appointments.List(c.Request.Context())
	if err != nil {
		h.serverError(c, "list appointments", err)
		return
	}
	c.HTML(http.StatusOK, "appointments.html", gin.H{"Appointments": appts})
}

func (h *Handler) comparePrice(c *gin.Context) {
	var req medicineRequest
	if !bindForm(c, &req) {
		return
	}
	c.HTML(http.StatusOK, "medicine_result.html", h.medicine.Compare(req.Brand, req.Generic))
}

// bindForm binds a form body into dst and answers 400 when a required field is absent.
func bindForm(c *gin.Context, dst any) bool {
	if err := c.ShouldBindWith(dst, binding.Form); err != nil {
		c.String(http.StatusBadRequest, invalidFormMessage)
		return false
	}
	return true
}

func fragment(c *gin.Context, heading, href, link string) {
	c.HTML(http.StatusOK, "fragment.html", gin.H{
		"Heading": heading,
		"Href":    href,
		"Link":    link,
	})
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	h.logger.WithError(err).WithField("path", c.FullPath()).Errorf("%s failed", op)
	c.String(http.StatusInternalServerError, "Internal Server Error")
}
