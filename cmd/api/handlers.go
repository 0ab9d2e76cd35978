package main

import (
	"errors"
	"log"
	"strings"

	"github.com/kexinw/sit-marketplace-api/internal/auth"
	"github.com/kexinw/sit-marketplace-api/internal/data"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// statusFromErr maps the store error taxonomy onto HTTP status codes.
// Conflicts share 409 with invalid-state: in both cases the caller
// should re-read and decide whether to retry.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, data.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, data.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, data.ErrInvalidState):
		return fiber.StatusConflict
	case errors.Is(err, data.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes an error response. Classified errors are surfaced
// verbatim; anything else is logged and hidden behind a generic 500.
func fail(c *fiber.Ctx, err error) error {
	code := statusFromErr(err)
	if code == fiber.StatusInternalServerError {
		log.Printf("internal error on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(code).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// parseID reads an ObjectID path parameter.
func parseID(c *fiber.Ctx, name string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(c.Params(name))
	if err != nil {
		return bson.ObjectID{}, errors.Join(data.ErrValidation, err)
	}
	return id, nil
}

// requireAuth verifies the bearer token and stores the claims for the
// handlers downstream.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	claims, err := s.auth.VerifyToken(tokenString)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	c.Locals("claims", claims)
	return c.Next()
}

// claims returns the verified claims requireAuth stored.
func claims(c *fiber.Ctx) *auth.Claims {
	return c.Locals("claims").(*auth.Claims)
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}
	if req.Password == "" {
		return fail(c, errors.Join(data.ErrValidation, errors.New("password is required")))
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return fail(c, err)
	}

	user, err := s.users.Create(c.Context(), req.Email, hashed, req.Firstname, req.Lastname)
	if err != nil {
		return fail(c, err)
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":       user,
		"token":      token,
		"expires_at": expiresAt,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	user, err := s.users.GetByEmail(c.Context(), req.Email)
	if err != nil {
		// A wrong email and a wrong password look the same to the caller.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}
	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"user":       user,
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (s *Server) handleGetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	user, err := s.users.GetByID(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		return fail(c, err)
	}
	users, err := s.users.GetByIDs(c.Context(), ids)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(users)
}

// parseIDList splits a comma-separated list of hex ids.
func parseIDList(raw string) ([]bson.ObjectID, error) {
	if raw == "" {
		return nil, errors.Join(data.ErrValidation, errors.New("ids query parameter is required"))
	}
	parts := strings.Split(raw, ",")
	ids := make([]bson.ObjectID, 0, len(parts))
	for _, p := range parts {
		id, err := bson.ObjectIDFromHex(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Join(data.ErrValidation, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
