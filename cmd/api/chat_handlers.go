package main

import (
	"errors"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/data"

	"github.com/gofiber/fiber/v2"
)

type createChatRequest struct {
	With string `json:"with"`
}

// handleCreateChat opens (or returns) the chat between the caller and
// one other user.
func (s *Server) handleCreateChat(c *fiber.Ctx) error {
	var req createChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	chat, err := s.chats.Create(c.Context(), claims(c).UserID, req.With)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}

func (s *Server) handleGetChat(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	chat, err := s.chats.GetByID(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(chat)
}

// handleGetChatByParticipants resolves ?with=<userID> against the
// calling user; argument order never matters.
func (s *Server) handleGetChatByParticipants(c *fiber.Ctx) error {
	chat, err := s.chats.GetByParticipants(c.Context(), claims(c).UserID, c.Query("with"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(chat)
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAddMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	chat, err := s.chats.AddMessage(c.Context(), id, claims(c).UserID, time.Now(), req.Message)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chat)
}
