package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"parceltrack/pkg/auth"
	pterrors "parceltrack/pkg/errors"
	"parceltrack/pkg/protocol"
	"parceltrack/pkg/storage"
)

const identityContextKey = "identity"

// requireAuth resolves the bearer token and stores the identity on the
// request context
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		identity, err := s.authn.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) protocol.Identity {
	return c.MustGet(identityContextKey).(protocol.Identity)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap, err := s.hub.Stats()
	storageOK := true
	if _, dbErr := s.store.ListPackages(); dbErr != nil {
		storageOK = false
	}
	active := 0
	if err == nil {
		active = snap.TotalConnections
	}
	c.JSON(http.StatusOK, s.monitor.Snapshot(active, storageOK))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"user":         user,
	})
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, err := protocol.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password hashing failed"})
		return
	}

	user := &storage.User{
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.CreateUser(user); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "could not create user"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleListPackages(c *gin.Context) {
	packages, err := s.store.ListPackages()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing packages failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

type createPackageRequest struct {
	Title          string `json:"title" binding:"required"`
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
	TrackingNumber string `json:"tracking_number"`
}

func (s *Server) handleCreatePackage(c *gin.Context) {
	var req createPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pkg := &storage.Package{
		Title:          req.Title,
		SenderID:       identityFrom(c).UserID,
		RecipientName:  req.RecipientName,
		RecipientPhone: req.RecipientPhone,
		TrackingNumber: req.TrackingNumber,
	}
	if err := s.store.CreatePackage(pkg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create package"})
		return
	}

	s.events.PackageCreated(pkg)
	c.JSON(http.StatusCreated, pkg)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleUpdatePackageStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid package id"})
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := storage.PackageStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	old, err := s.store.GetPackage(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		return
	}
	if err := s.store.UpdatePackageStatus(id, status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	pkg, err := s.store.GetPackage(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
		return
	}
	s.events.PackageStatusUpdated(pkg, old.Status)
	c.JSON(http.StatusOK, pkg)
}

type assignCourierRequest struct {
	CourierID int64 `json:"courier_id" binding:"required"`
}

func (s *Server) handleAssignCourier(c *gin.Context) {
	if identityFrom(c).Role != protocol.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid package id"})
		return
	}
	var req assignCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.AssignCourier(id, req.CourierID); err != nil {
		if errors.Is(err, pterrors.ErrPackageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assignment failed"})
		}
		return
	}

	pkg, err := s.store.GetPackage(id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"id": id, "courier_id": req.CourierID})
		return
	}
	s.events.PackageStatusUpdated(pkg, storage.StatusPending)
	c.JSON(http.StatusOK, pkg)
}

type createDeliveryRequest struct {
	PackageID int64  `json:"package_id" binding:"required"`
	CourierID *int64 `json:"courier_id"`
}

func (s *Server) handleCreateDelivery(c *gin.Context) {
	var req createDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivery := &storage.Delivery{
		PackageID: req.PackageID,
		CourierID: req.CourierID,
	}
	if err := s.store.CreateDelivery(delivery); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create delivery"})
		return
	}
	c.JSON(http.StatusCreated, delivery)
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) handleUpdateDeliveryLocation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delivery id"})
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.UpdateDeliveryLocation(id, req.Lat, req.Lng); err != nil {
		if errors.Is(err, pterrors.ErrDeliveryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}

	s.events.DeliveryLocationUpdated(id, req.Lat, req.Lng)
	c.JSON(http.StatusOK, gin.H{"delivery_id": id, "lat": req.Lat, "lng": req.Lng})
}

type announceRequest struct {
	Message string   `json:"message" binding:"required"`
	Roles   []string `json:"roles"`
}

func (s *Server) handleAnnounce(c *gin.Context) {
	if identityFrom(c).Role != protocol.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roles := make([]protocol.Role, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, err := protocol.ParseRole(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		roles = append(roles, role)
	}

	s.events.Announce(req.Message, roles...)
	c.JSON(http.StatusAccepted, gin.H{"message": req.Message})
}
