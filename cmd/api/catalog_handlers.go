package main

import (
	"errors"
	"strconv"

	"github.com/kexinw/sit-marketplace-api/internal/data"

	"github.com/gofiber/fiber/v2"
)

type createProductRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Condition   string  `json:"condition"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
}

func (s *Server) handleCreateProduct(c *fiber.Ctx) error {
	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	product, err := s.products.Create(c.Context(), data.ProductInput{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Condition:   req.Condition,
		SellerID:    claims(c).UserID,
		Image:       req.Image,
		Category:    req.Category,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (s *Server) handleGetProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := s.products.GetByID(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

// handleListProducts serves the whole query surface off one route:
// ?q= searches, ?ids= bulk-fetches, ?seller= / ?buyer= / ?category=
// filter, ?high= (with optional ?low=, default 0) selects a price
// range, and no parameters list everything.
func (s *Server) handleListProducts(c *fiber.Ctx) error {
	ctx := c.Context()

	switch {
	case c.Query("q") != "":
		products, err := s.products.Search(ctx, c.Query("q"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	case c.Query("ids") != "":
		ids, err := parseIDList(c.Query("ids"))
		if err != nil {
			return fail(c, err)
		}
		products, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	case c.Query("seller") != "":
		products, err := s.products.GetBySeller(ctx, c.Query("seller"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	case c.Query("buyer") != "":
		products, err := s.products.GetByBuyer(ctx, c.Query("buyer"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	case c.Query("category") != "":
		products, err := s.products.GetByCategory(ctx, c.Query("category"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	case c.Query("high") != "":
		low, high, err := parsePriceRange(c.Query("low"), c.Query("high"))
		if err != nil {
			return fail(c, err)
		}
		products, err := s.products.GetByPriceRange(ctx, low, high)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	default:
		products, err := s.products.All(ctx)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(products)
	}
}

type editProductRequest struct {
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
	Condition   *string  `json:"condition"`
	Image       *string  `json:"image"`
	Category    *string  `json:"category"`
	Status      *string  `json:"status"`
}

func (s *Server) handleEditProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req editProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	product, err := s.products.Edit(c.Context(), id, data.ProductUpdate{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Condition:   req.Condition,
		Image:       req.Image,
		Category:    req.Category,
		Status:      req.Status,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

func (s *Server) handleRemoveProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := s.products.Remove(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

func (s *Server) handleReserveProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := s.products.Reserve(c.Context(), id, claims(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

func (s *Server) handleSellProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := s.products.Sell(c.Context(), id, claims(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

func (s *Server) handleRelistProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := s.products.Relist(c.Context(), id, claims(c).UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(product)
}

type createPostRequest struct {
	Item        string  `json:"item"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
}

func (s *Server) handleCreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	post, err := s.posts.Create(c.Context(), data.PostInput{
		BuyerID:     claims(c).UserID,
		Item:        req.Item,
		Category:    req.Category,
		Price:       req.Price,
		Condition:   req.Condition,
		Description: req.Description,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (s *Server) handleGetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	post, err := s.posts.GetByID(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

func (s *Server) handleListPosts(c *fiber.Ctx) error {
	ctx := c.Context()

	switch {
	case c.Query("q") != "":
		posts, err := s.posts.Search(ctx, c.Query("q"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	case c.Query("ids") != "":
		ids, err := parseIDList(c.Query("ids"))
		if err != nil {
			return fail(c, err)
		}
		posts, err := s.posts.GetByIDs(ctx, ids)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	case c.Query("seller") != "":
		posts, err := s.posts.GetBySeller(ctx, c.Query("seller"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	case c.Query("buyer") != "":
		posts, err := s.posts.GetByBuyer(ctx, c.Query("buyer"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	case c.Query("category") != "":
		posts, err := s.posts.GetByCategory(ctx, c.Query("category"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	case c.Query("high") != "":
		low, high, err := parsePriceRange(c.Query("low"), c.Query("high"))
		if err != nil {
			return fail(c, err)
		}
		posts, err := s.posts.GetByPriceRange(ctx, low, high)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	default:
		posts, err := s.posts.All(ctx)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(posts)
	}
}

type editPostRequest struct {
	Item        *string  `json:"item"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Condition   *string  `json:"condition"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
}

func (s *Server) handleEditPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req editPostRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, errors.Join(data.ErrValidation, err))
	}

	post, err := s.posts.Edit(c.Context(), id, data.PostUpdate{
		Item:        req.Item,
		Category:    req.Category,
		Price:       req.Price,
		Condition:   req.Condition,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

func (s *Server) handleRemovePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	post, err := s.posts.Remove(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// parsePriceRange parses the low/high query parameters; low is optional
// and defaults to 0.
func parsePriceRange(lowRaw, highRaw string) (float64, float64, error) {
	low := 0.0
	if lowRaw != "" {
		v, err := strconv.ParseFloat(lowRaw, 64)
		if err != nil {
			return 0, 0, errors.Join(data.ErrValidation, err)
		}
		low = v
	}
	high, err := strconv.ParseFloat(highRaw, 64)
	if err != nil {
		return 0, 0, errors.Join(data.ErrValidation, err)
	}
	return low, high, nil
}
