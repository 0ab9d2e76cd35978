package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/kexinw/sit-marketplace-api/internal/data"
	"github.com/kexinw/sit-marketplace-api/internal/events"

	"github.com/gofiber/fiber/v2"
)

// handleAddPossibleSeller records the caller's interest in a post and
// emits the interest event the chat collaborator listens for. The event
// goes out in the background: the mutation has already committed and
// must not wait on, or fail with, the publisher.
func (s *Server) handleAddPossibleSeller(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	sellerID := claims(c).UserID

	post, err := s.posts.AddPossibleSeller(c.Context(), id, sellerID)
	if err != nil {
		return fail(c, err)
	}

	go func(ev events.Interest) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.events.PublishInterest(ctx, ev); err != nil {
			log.Printf("interest event publish failed: %v", err)
		}
	}(events.Interest{
		PostID:   post.ID.Hex(),
		BuyerID:  post.BuyerID,
		SellerID: sellerID,
	})

	return c.JSON(post)
}

type matchRequest struct {
	SellerID string `json:"seller_id"`
}

// handleMatchPost lets the buyer accept one candidate.
func (s *Server) handleMatchPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req matchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	post, err := s.posts.Match(c.Context(), id, claims(c).UserID, req.SellerID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// handleRetrievePost completes the transaction for the calling seller.
func (s *Server) handleRetrievePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	post, err := s.posts.Retrieve(c.Context(), id, claims(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// handleRepostPost reopens the caller's matched post.
func (s *Server) handleRepostPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	post, err := s.posts.Repost(c.Context(), id, claims(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

type favoriteRequest struct {
	ItemID string `json:"item_id"`
}

// handleAddFavorite bookmarks an item id on the calling user.
func (s *Server) handleAddFavorite(c *fiber.Ctx) error {
	var req favoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}
	userID, err := claims(c).UserObjectID()
	if err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	favorites, err := s.users.AddFavorite(c.Context(), userID, req.ItemID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"favorite": favorites})
}

func (s *Server) handleRemoveFavorite(c *fiber.Ctx) error {
	userID, err := claims(c).UserObjectID()
	if err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	favorites, err := s.users.RemoveFavorite(c.Context(), userID, c.Params("itemId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"favorite": favorites})
}

type commentRequest struct {
	TransactionID string `json:"transaction_id"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// handleAddComment rates the user named in the path for one completed
// transaction.
func (s *Server) handleAddComment(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	user, err := s.users.AddComment(c.Context(), userID, req.TransactionID, req.Rating, req.Comment)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (s *Server) handleEditComment(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	user, err := s.users.EditComment(c.Context(), userID, c.Params("tx"), req.Rating, req.Comment)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handleGetComment(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	comment, err := s.users.GetComment(c.Context(), userID, c.Params("tx"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(comment)
}
